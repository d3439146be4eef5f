package models

import (
	"time"
)

// Product is a catalog entry (SKU) tracked across retailers.
type Product struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Aliases   string    `json:"aliases,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Retailer is a seller whose listings are scraped.
type Retailer struct {
	ID      int64              `json:"id"`
	Name    string             `json:"name"`
	BaseURL string             `json:"base_url"`
	Active  bool               `json:"active"`
	Ruleset *ExtractionRuleset `json:"ruleset,omitempty"`
}

// ExtractionRuleset holds the per-retailer CSS selectors used by the
// generic extraction path. A retailer without one can only be scraped
// through a registered handler.
type ExtractionRuleset struct {
	RetailerID         int64  `json:"retailer_id"`
	PriceSelector      string `json:"price_selector"`
	PromoPriceSelector string `json:"promo_price_selector,omitempty"`
	PromoTextSelector  string `json:"promo_text_selector,omitempty"`
}

// Listing binds one product to one retailer at one URL.
type Listing struct {
	ID         int64  `json:"id"`
	ProductID  int64  `json:"product_id"`
	RetailerID int64  `json:"retailer_id"`
	URL        string `json:"url"`
	Active     bool   `json:"active"`

	// Populated by the active-listings join.
	Product  *Product  `json:"product,omitempty"`
	Retailer *Retailer `json:"retailer,omitempty"`
}

// PriceObservation is one immutable, timestamped price reading for a
// listing. At least one of Price, PromoPrice, PromoText must be set.
type PriceObservation struct {
	ID          int64     `json:"id"`
	ListingID   int64     `json:"listing_id"`
	ObservedAt  time.Time `json:"observed_at"`
	Price       *float64  `json:"price,omitempty"`
	PromoPrice  *float64  `json:"promo_price,omitempty"`
	PromoText   string    `json:"promo_text,omitempty"`
	RawCurrency string    `json:"raw_currency,omitempty"`
	RawSnapshot string    `json:"raw_snapshot,omitempty"`
}

// HasSignal reports whether the observation carries any pricing signal
// worth persisting.
func (o *PriceObservation) HasSignal() bool {
	return o.Price != nil || o.PromoPrice != nil || o.PromoText != ""
}

// ExtractResult is what a retailer handler or the generic extractor
// produces for a single listing.
type ExtractResult struct {
	Title       string   `json:"title,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	PromoPrice  *float64 `json:"promo_price,omitempty"`
	PromoText   string   `json:"promo_text,omitempty"`
	Currency    string   `json:"currency,omitempty"`
	RawSnapshot string   `json:"raw_snapshot,omitempty"`
	Markup      string   `json:"-"`
	Method      string   `json:"method,omitempty"`
}

// HasSignal mirrors PriceObservation.HasSignal for pre-persistence checks.
func (r *ExtractResult) HasSignal() bool {
	return r.Price != nil || r.PromoPrice != nil || r.PromoText != ""
}

// RunSummary aggregates one batch run.
type RunSummary struct {
	RunID           string   `json:"run_id"`
	Attempted       int      `json:"attempted"`
	Created         int      `json:"created"`
	FailedRetailers []string `json:"failed_retailers"`
}

// Outcome classifies a run for the presentation layer.
type Outcome string

const (
	OutcomeNoListings Outcome = "no_active_listings"
	OutcomeAllFailed  Outcome = "all_failed"
	OutcomePartial    Outcome = "partial_success"
	OutcomeAllOK      Outcome = "all_succeeded"
)

// Classify maps a summary onto the four user-visible outcomes.
func (s *RunSummary) Classify() Outcome {
	switch {
	case s.Attempted == 0:
		return OutcomeNoListings
	case s.Created == 0:
		return OutcomeAllFailed
	case len(s.FailedRetailers) > 0:
		return OutcomePartial
	default:
		return OutcomeAllOK
	}
}

// ReportEntry is one line of the audit artifact emitted per listing.
type ReportEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Retailer  string    `json:"retailer"`
	Product   string    `json:"product"`
	URL       string    `json:"url"`
	Status    string    `json:"status"`
	Price     *float64  `json:"price,omitempty"`
	Currency  string    `json:"currency,omitempty"`
	Error     string    `json:"error,omitempty"`
	RawMarkup string    `json:"raw_markup,omitempty"`
}

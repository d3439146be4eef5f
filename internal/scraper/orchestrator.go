// Package scraper runs one batch pass over the active listings,
// persisting observations and producing a run report.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/navintel/pricewatch/internal/models"
	"github.com/navintel/pricewatch/internal/transport"
)

// Resolver turns one listing into an extraction result.
type Resolver interface {
	Resolve(ctx context.Context, listing *models.Listing) (*models.ExtractResult, error)
}

// Store is the subset of the database layer a run needs.
type Store interface {
	ListActiveListings(ctx context.Context) ([]*models.Listing, error)
	CreateObservation(ctx context.Context, obs *models.PriceObservation) error
}

// SessionResetter drops per-retailer session state. Each run starts
// with fresh sessions so cookies never carry over between batches.
type SessionResetter interface {
	ResetSessions()
}

// Orchestrator walks the active listings strictly sequentially. One
// listing's failure never aborts the run, and the polite inter-listing
// delay is observed no matter how the listing ended.
type Orchestrator struct {
	store    Store
	resolver Resolver
	sessions SessionResetter
	delays   *transport.DelayPolicy
	report   *ReportWriter
	logger   *slog.Logger
}

func NewOrchestrator(store Store, resolver Resolver, sessions SessionResetter, delays *transport.DelayPolicy, report *ReportWriter, logger *slog.Logger) *Orchestrator {
	if delays == nil {
		delays = transport.DefaultDelayPolicy()
	}
	return &Orchestrator{
		store:    store,
		resolver: resolver,
		sessions: sessions,
		delays:   delays,
		report:   report,
		logger:   logger.With("component", "orchestrator"),
	}
}

// Run processes every active listing once and returns the summary.
// Returns an error only when the listings cannot be loaded; extraction
// failures are reflected in the summary instead.
func (o *Orchestrator) Run(ctx context.Context) (*models.RunSummary, error) {
	if o.sessions != nil {
		o.sessions.ResetSessions()
	}

	listings, err := o.store.ListActiveListings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active listings: %w", err)
	}

	summary := &models.RunSummary{RunID: uuid.NewString()}
	logger := o.logger.With("run_id", summary.RunID)
	logger.Info("run started", "listings", len(listings))

	failed := make(map[string]bool)
	var entries []models.ReportEntry

	for i, listing := range listings {
		summary.Attempted++

		entry := o.processListing(ctx, logger, listing, i < len(listings)-1)
		entries = append(entries, entry)

		if entry.Status == "ok" {
			summary.Created++
		} else if listing.Retailer != nil && !failed[listing.Retailer.Name] {
			failed[listing.Retailer.Name] = true
			summary.FailedRetailers = append(summary.FailedRetailers, listing.Retailer.Name)
		}
	}

	if o.report != nil {
		if err := o.report.Write(summary, entries); err != nil {
			logger.Error("failed to write run report", "error", err)
		}
	}

	logger.Info("run finished",
		"outcome", summary.Classify(),
		"attempted", summary.Attempted,
		"created", summary.Created,
		"failed_retailers", summary.FailedRetailers)

	return summary, nil
}

// processListing handles one listing. The polite delay and panic
// recovery are both deferred so a misbehaving handler can neither skip
// the delay nor kill the run.
func (o *Orchestrator) processListing(ctx context.Context, logger *slog.Logger, listing *models.Listing, delayAfter bool) (entry models.ReportEntry) {
	entry = newReportEntry(listing)

	defer func() {
		if delayAfter {
			o.delays.Wait(transport.Domain(listing.URL))
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("listing panicked", "listing_id", listing.ID, "panic", r)
			entry.Status = "failed"
			entry.Error = fmt.Sprintf("panic: %v", r)
		}
	}()

	result, err := o.resolver.Resolve(ctx, listing)
	if err != nil {
		logger.Warn("extraction failed", "listing_id", listing.ID, "url", listing.URL, "error", err)
		entry.Status = "failed"
		entry.Error = err.Error()
		return entry
	}

	if err := validateResult(result); err != nil {
		logger.Warn("result discarded", "listing_id", listing.ID, "url", listing.URL, "error", err)
		entry.Status = "discarded"
		entry.Error = err.Error()
		if result != nil {
			entry.RawMarkup = result.Markup
		}
		return entry
	}

	obs := &models.PriceObservation{
		ListingID:   listing.ID,
		Price:       result.Price,
		PromoPrice:  result.PromoPrice,
		PromoText:   result.PromoText,
		RawCurrency: result.Currency,
		RawSnapshot: result.RawSnapshot,
	}
	if err := o.store.CreateObservation(ctx, obs); err != nil {
		logger.Error("failed to persist observation", "listing_id", listing.ID, "error", err)
		entry.Status = "failed"
		entry.Error = err.Error()
		entry.RawMarkup = result.Markup
		return entry
	}

	logger.Info("observation recorded",
		"listing_id", listing.ID,
		"method", result.Method,
		"price", priceValue(result.Price),
		"promo_price", priceValue(result.PromoPrice))

	entry.Status = "ok"
	entry.Price = result.Price
	entry.Currency = result.Currency
	entry.RawMarkup = result.Markup
	return entry
}

// validateResult rejects results that would poison the price history:
// no signal at all, or a present price that is not positive.
func validateResult(result *models.ExtractResult) error {
	if result == nil || !result.HasSignal() {
		return fmt.Errorf("no pricing signal")
	}
	if result.Price != nil && *result.Price <= 0 {
		return fmt.Errorf("non-positive price %.2f", *result.Price)
	}
	if result.PromoPrice != nil && *result.PromoPrice <= 0 {
		return fmt.Errorf("non-positive promo price %.2f", *result.PromoPrice)
	}
	return nil
}

func newReportEntry(listing *models.Listing) models.ReportEntry {
	entry := models.ReportEntry{Timestamp: time.Now(), URL: listing.URL}
	if listing.Retailer != nil {
		entry.Retailer = listing.Retailer.Name
	}
	if listing.Product != nil {
		entry.Product = listing.Product.Name
	}
	return entry
}

func priceValue(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

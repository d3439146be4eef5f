package retailers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/navintel/pricewatch/internal/extract"
	"github.com/navintel/pricewatch/internal/models"
	"github.com/navintel/pricewatch/internal/transport"
)

// Dispatcher resolves one listing to an extraction result. A listing
// on a domain with a registered handler goes through that handler
// first; if the handler fails, the generic ruleset path runs after a
// polite delay. When both fail, the handler's original error is the
// one surfaced, since it names the more specific failure.
type Dispatcher struct {
	registry  *Registry
	fetcher   transport.Fetcher
	selectors *extract.SelectorExtractor
	delays    *transport.DelayPolicy
	logger    *slog.Logger
}

func NewDispatcher(registry *Registry, fetcher transport.Fetcher, selectors *extract.SelectorExtractor, delays *transport.DelayPolicy, logger *slog.Logger) *Dispatcher {
	if delays == nil {
		delays = transport.DefaultDelayPolicy()
	}
	return &Dispatcher{
		registry:  registry,
		fetcher:   fetcher,
		selectors: selectors,
		delays:    delays,
		logger:    logger.With("component", "dispatcher"),
	}
}

// Resolve extracts pricing for a listing. Inactive listings and
// listings of inactive retailers are refused outright.
func (d *Dispatcher) Resolve(ctx context.Context, listing *models.Listing) (*models.ExtractResult, error) {
	if !listing.Active || (listing.Retailer != nil && !listing.Retailer.Active) {
		return nil, ErrInactive
	}

	domain := transport.Domain(listing.URL)

	handler, ok := d.registry.Lookup(domain)
	if !ok {
		return d.generic(ctx, listing)
	}

	result, handlerErr := handler.Extract(ctx, listing)
	if handlerErr == nil {
		return result, nil
	}

	d.logger.Warn("handler failed, trying generic path",
		"handler", handler.Name(),
		"url", listing.URL,
		"error", handlerErr)

	d.delays.Wait(domain)

	if result, err := d.generic(ctx, listing); err == nil {
		return result, nil
	}

	return nil, fmt.Errorf("handler %s: %w", handler.Name(), handlerErr)
}

// generic fetches the listing page and runs the retailer's configured
// selectors, with embedded structured data as a second chance and as a
// title source.
func (d *Dispatcher) generic(ctx context.Context, listing *models.Listing) (*models.ExtractResult, error) {
	markup, err := d.fetcher.Fetch(ctx, listing.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", listing.URL, err)
	}

	var ruleset *models.ExtractionRuleset
	if listing.Retailer != nil {
		ruleset = listing.Retailer.Ruleset
	}

	if result := d.selectors.Extract(markup, ruleset); result != nil {
		if result.Title == "" {
			if sp := extract.Structured(markup); sp != nil {
				result.Title = sp.Title
			}
		}
		return result, nil
	}

	if sp := extract.Structured(markup); sp != nil {
		price := sp.Price
		return &models.ExtractResult{
			Title:       sp.Title,
			Price:       &price,
			Currency:    sp.Currency,
			RawSnapshot: sp.Snippet,
			Markup:      markup,
			Method:      "structured",
		}, nil
	}

	return nil, ErrNoPrice
}

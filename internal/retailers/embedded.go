package retailers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/navintel/pricewatch/internal/extract"
	"github.com/navintel/pricewatch/internal/models"
	"github.com/navintel/pricewatch/internal/transport"
)

// EmbeddedHandler serves retailers that ship reliable machine-readable
// product data (JSON-LD or preload-state globals) in their pages. It
// fetches the listing URL and reads the embedded data directly, which
// survives markup redesigns that break CSS selectors.
type EmbeddedHandler struct {
	name    string
	fetcher transport.Fetcher
	logger  *slog.Logger
}

func NewEmbeddedHandler(name string, fetcher transport.Fetcher, logger *slog.Logger) *EmbeddedHandler {
	return &EmbeddedHandler{
		name:    name,
		fetcher: fetcher,
		logger:  logger.With("component", "handler", "handler", name),
	}
}

func (h *EmbeddedHandler) Name() string { return h.name }

func (h *EmbeddedHandler) Extract(ctx context.Context, listing *models.Listing) (*models.ExtractResult, error) {
	markup, err := h.fetcher.Fetch(ctx, listing.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", listing.URL, err)
	}

	sp := extract.Structured(markup)
	if sp == nil {
		return nil, ErrNoPrice
	}

	h.logger.Debug("embedded data extracted", "url", listing.URL, "price", sp.Price)

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

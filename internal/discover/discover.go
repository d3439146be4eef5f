// Package discover seeds the catalog by searching retailer sites for a
// product category and persisting what it finds.
package discover

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/navintel/pricewatch/internal/models"
	"github.com/navintel/pricewatch/internal/parser"
)

var codeCleanPattern = regexp.MustCompile(`[^a-z0-9 -]+`)

// Candidate is one product found on a retailer's search results.
type Candidate struct {
	Title    string
	Price    string
	Currency string
	URL      string
}

// Source finds candidate products for a search term on one retailer.
type Source interface {
	Search(ctx context.Context, retailer *models.Retailer, term string) ([]Candidate, error)
}

// Store is the subset of the database layer discovery needs.
type Store interface {
	ListRetailers(ctx context.Context) ([]*models.Retailer, error)
	GetOrCreateProduct(ctx context.Context, code, name string) (*models.Product, error)
	GetOrCreateListing(ctx context.Context, productID, retailerID int64, url string) (*models.Listing, error)
	CreateObservation(ctx context.Context, obs *models.PriceObservation) error
}

// Discoverer runs a search term across every active retailer and adds
// the results as products and listings. A discovered price is recorded
// as a first observation.
type Discoverer struct {
	store       Store
	sources     map[string]Source
	parser      *parser.PriceParser
	maxProducts int
	logger      *slog.Logger
}

func NewDiscoverer(store Store, sources map[string]Source, maxProducts int, logger *slog.Logger) *Discoverer {
	if maxProducts <= 0 {
		maxProducts = 10
	}
	return &Discoverer{
		store:       store,
		sources:     sources,
		parser:      parser.NewPriceParser(),
		maxProducts: maxProducts,
		logger:      logger.With("component", "discover"),
	}
}

// Run searches all active retailers for term. Returns the number of
// listings created; a retailer without a source is skipped, and a
// source error fails that retailer but not the run.
func (d *Discoverer) Run(ctx context.Context, term string) (int, error) {
	retailers, err := d.store.ListRetailers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load retailers: %w", err)
	}

	created := 0
	for _, retailer := range retailers {
		if !retailer.Active {
			continue
		}
		source, ok := d.sources[retailer.Name]
		if !ok {
			d.logger.Debug("no discovery source for retailer", "retailer", retailer.Name)
			continue
		}

		candidates, err := source.Search(ctx, retailer, term)
		if err != nil {
			d.logger.Error("discovery search failed", "retailer", retailer.Name, "error", err)
			continue
		}
		if len(candidates) > d.maxProducts {
			candidates = candidates[:d.maxProducts]
		}

		for _, c := range candidates {
			if c.Title == "" || c.URL == "" {
				continue
			}
			if err := d.add(ctx, retailer, c); err != nil {
				d.logger.Error("failed to add candidate", "retailer", retailer.Name, "title", c.Title, "error", err)
				continue
			}
			created++
		}
	}

	return created, nil
}

func (d *Discoverer) add(ctx context.Context, retailer *models.Retailer, c Candidate) error {
	code := ProductCode(retailer.Name, c.Title)

	product, err := d.store.GetOrCreateProduct(ctx, code, c.Title)
	if err != nil {
		return err
	}

	listing, err := d.store.GetOrCreateListing(ctx, product.ID, retailer.ID, c.URL)
	if err != nil {
		return err
	}

	d.logger.Info("product discovered", "code", code, "retailer", retailer.Name, "listing_id", listing.ID)

	if c.Price == "" {
		return nil
	}

	sym, price := d.parser.Parse(c.Currency + c.Price)
	if price == nil {
		return nil
	}
	if sym == "" {
		sym = c.Currency
	}

	obs := &models.PriceObservation{
		ListingID:   listing.ID,
		Price:       price,
		RawCurrency: sym,
		RawSnapshot: fmt.Sprintf("Discovered: %s @ %s%s", c.Title, c.Currency, c.Price),
	}
	return d.store.CreateObservation(ctx, obs)
}

// ProductCode derives a stable catalog code from the retailer name and
// the first three words of the product title.
func ProductCode(retailerName, title string) string {
	prefix := strings.ReplaceAll(retailerName, "'", "")
	if len(prefix) > 4 {
		prefix = prefix[:4]
	}
	prefix = strings.ToUpper(prefix)

	cleaned := codeCleanPattern.ReplaceAllString(strings.ToLower(title), "")
	words := strings.Fields(cleaned)
	if len(words) > 3 {
		words = words[:3]
	}
	titlePart := strings.Join(words, "-")
	if len(titlePart) > 20 {
		titlePart = titlePart[:20]
	}

	return prefix + "-" + titlePart
}

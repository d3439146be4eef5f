package database

import (
	"context"
	"fmt"

	"github.com/navintel/pricewatch/internal/models"
)

// ukRetailers are the grocery retailers the system ships configured
// for, with the CSS selectors their product pages used at the time of
// writing. Selectors are data, not code, so markup changes are fixed
// with an update rather than a release.
var ukRetailers = []*models.Retailer{
	{
		Name:    "Tesco",
		BaseURL: "https://www.tesco.com",
		Active:  true,
		Ruleset: &models.ExtractionRuleset{
			PriceSelector:      ".price",
			PromoPriceSelector: ".offer-price",
			PromoTextSelector:  ".offer-text",
		},
	},
	{
		Name:    "Sainsbury's",
		BaseURL: "https://www.sainsburys.co.uk",
		Active:  true,
		Ruleset: &models.ExtractionRuleset{
			PriceSelector:      ".pd__cost__total",
			PromoPriceSelector: ".pd__cost__was",
			PromoTextSelector:  ".pd__cost__offer",
		},
	},
	{
		Name:    "Asda",
		BaseURL: "https://groceries.asda.com",
		Active:  true,
		Ruleset: &models.ExtractionRuleset{
			PriceSelector:      ".co-product__price",
			PromoPriceSelector: ".co-product__price--was",
			PromoTextSelector:  ".co-product__promo-text",
		},
	},
	{
		Name:    "Morrisons",
		BaseURL: "https://groceries.morrisons.com",
		Active:  true,
		Ruleset: &models.ExtractionRuleset{
			PriceSelector:      ".bop-price__current",
			PromoPriceSelector: ".bop-price__was",
			PromoTextSelector:  ".bop-offer-flag",
		},
	},
}

// SeedRetailers installs the default UK retailer set. Existing rows
// are updated in place, so reseeding is safe.
func (s *Store) SeedRetailers(ctx context.Context) error {
	for _, r := range ukRetailers {
		if err := s.UpsertRetailer(ctx, r); err != nil {
			return fmt.Errorf("failed to seed %s: %w", r.Name, err)
		}
		s.logger.Info("retailer seeded", "retailer", r.Name, "retailer_id", r.ID)
	}
	return nil
}

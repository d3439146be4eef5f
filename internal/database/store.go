package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/navintel/pricewatch/internal/models"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNoSignal rejects observations carrying no price, promo price
	// or promo text.
	ErrNoSignal = errors.New("observation has no pricing signal")
)

// Store exposes the domain queries over a DB.
type Store struct {
	db     *DB
	logger *slog.Logger
}

func NewStore(db *DB, logger *slog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// ListActiveListings returns listings whose listing row and retailer
// are both active, with the product, retailer and ruleset joined in.
func (s *Store) ListActiveListings(ctx context.Context) ([]*models.Listing, error) {
	query := `
		SELECT l.id, l.product_id, l.retailer_id, l.url, l.active,
		       p.id, p.code, p.name, p.aliases, p.created_at,
		       r.id, r.name, r.base_url, r.active,
		       er.price_selector, er.promo_price_selector, er.promo_text_selector
		FROM listing l
		JOIN product p ON p.id = l.product_id
		JOIN retailer r ON r.id = l.retailer_id
		LEFT JOIN extraction_ruleset er ON er.retailer_id = r.id
		WHERE l.active AND r.active
		ORDER BY r.name, p.name`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active listings: %w", err)
	}
	defer rows.Close()

	var listings []*models.Listing
	for rows.Next() {
		var (
			l       models.Listing
			p       models.Product
			r       models.Retailer
			priceSel, promoPriceSel, promoTextSel *string
		)
		if err := rows.Scan(
			&l.ID, &l.ProductID, &l.RetailerID, &l.URL, &l.Active,
			&p.ID, &p.Code, &p.Name, &p.Aliases, &p.CreatedAt,
			&r.ID, &r.Name, &r.BaseURL, &r.Active,
			&priceSel, &promoPriceSel, &promoTextSel,
		); err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}

		if priceSel != nil {
			r.Ruleset = &models.ExtractionRuleset{
				RetailerID:         r.ID,
				PriceSelector:      *priceSel,
				PromoPriceSelector: deref(promoPriceSel),
				PromoTextSelector:  deref(promoTextSel),
			}
		}
		l.Product = &p
		l.Retailer = &r
		listings = append(listings, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read listings: %w", err)
	}

	return listings, nil
}

// CreateObservation persists one price reading in its own transaction.
// Observations with no signal are rejected before touching the
// database.
func (s *Store) CreateObservation(ctx context.Context, obs *models.PriceObservation) error {
	if !obs.HasSignal() {
		return ErrNoSignal
	}

	return s.db.WithTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO price_observation
				(listing_id, price, promo_price, promo_text, raw_currency, raw_snapshot)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, observed_at`

		if err := tx.QueryRow(ctx, query,
			obs.ListingID, obs.Price, obs.PromoPrice, obs.PromoText,
			obs.RawCurrency, obs.RawSnapshot,
		).Scan(&obs.ID, &obs.ObservedAt); err != nil {
			return fmt.Errorf("failed to insert observation: %w", err)
		}

		s.logger.Debug("observation created", "listing_id", obs.ListingID, "observation_id", obs.ID)
		return nil
	})
}

// ListObservations returns a listing's observations, newest first.
func (s *Store) ListObservations(ctx context.Context, listingID int64, limit int) ([]*models.PriceObservation, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, listing_id, observed_at, price, promo_price, promo_text, raw_currency, raw_snapshot
		FROM price_observation
		WHERE listing_id = $1
		ORDER BY observed_at DESC
		LIMIT $2`

	rows, err := s.db.Query(ctx, query, listingID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list observations: %w", err)
	}
	defer rows.Close()

	var observations []*models.PriceObservation
	for rows.Next() {
		var o models.PriceObservation
		if err := rows.Scan(&o.ID, &o.ListingID, &o.ObservedAt, &o.Price,
			&o.PromoPrice, &o.PromoText, &o.RawCurrency, &o.RawSnapshot); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		observations = append(observations, &o)
	}
	return observations, rows.Err()
}

// GetOrCreateProduct looks a product up by code, creating it on first
// sight.
func (s *Store) GetOrCreateProduct(ctx context.Context, code, name string) (*models.Product, error) {
	var p models.Product

	query := `
		INSERT INTO product (code, name)
		VALUES ($1, $2)
		ON CONFLICT (code) DO UPDATE SET code = EXCLUDED.code
		RETURNING id, code, name, aliases, created_at`

	if err := s.db.QueryRow(ctx, query, code, name).
		Scan(&p.ID, &p.Code, &p.Name, &p.Aliases, &p.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to get or create product %s: %w", code, err)
	}
	return &p, nil
}

// GetOrCreateListing binds a product to a retailer URL, idempotently.
func (s *Store) GetOrCreateListing(ctx context.Context, productID, retailerID int64, url string) (*models.Listing, error) {
	var l models.Listing

	query := `
		INSERT INTO listing (product_id, retailer_id, url)
		VALUES ($1, $2, $3)
		ON CONFLICT (product_id, retailer_id, url) DO UPDATE SET url = EXCLUDED.url
		RETURNING id, product_id, retailer_id, url, active`

	if err := s.db.QueryRow(ctx, query, productID, retailerID, url).
		Scan(&l.ID, &l.ProductID, &l.RetailerID, &l.URL, &l.Active); err != nil {
		return nil, fmt.Errorf("failed to get or create listing: %w", err)
	}
	return &l, nil
}

// GetListing loads one listing with its product and retailer.
func (s *Store) GetListing(ctx context.Context, id int64) (*models.Listing, error) {
	query := `
		SELECT l.id, l.product_id, l.retailer_id, l.url, l.active,
		       p.id, p.code, p.name, p.aliases, p.created_at,
		       r.id, r.name, r.base_url, r.active
		FROM listing l
		JOIN product p ON p.id = l.product_id
		JOIN retailer r ON r.id = l.retailer_id
		WHERE l.id = $1`

	var (
		l models.Listing
		p models.Product
		r models.Retailer
	)
	err := s.db.QueryRow(ctx, query, id).Scan(
		&l.ID, &l.ProductID, &l.RetailerID, &l.URL, &l.Active,
		&p.ID, &p.Code, &p.Name, &p.Aliases, &p.CreatedAt,
		&r.ID, &r.Name, &r.BaseURL, &r.Active,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get listing %d: %w", id, err)
	}

	l.Product = &p
	l.Retailer = &r
	return &l, nil
}

// ListProducts returns all products, newest first.
func (s *Store) ListProducts(ctx context.Context) ([]*models.Product, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, code, name, aliases, created_at
		FROM product
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Aliases, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, &p)
	}
	return products, rows.Err()
}

// ListRetailers returns all retailers with their rulesets.
func (s *Store) ListRetailers(ctx context.Context) ([]*models.Retailer, error) {
	query := `
		SELECT r.id, r.name, r.base_url, r.active,
		       er.price_selector, er.promo_price_selector, er.promo_text_selector
		FROM retailer r
		LEFT JOIN extraction_ruleset er ON er.retailer_id = r.id
		ORDER BY r.name`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list retailers: %w", err)
	}
	defer rows.Close()

	var retailers []*models.Retailer
	for rows.Next() {
		var (
			r models.Retailer
			priceSel, promoPriceSel, promoTextSel *string
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.BaseURL, &r.Active,
			&priceSel, &promoPriceSel, &promoTextSel); err != nil {
			return nil, fmt.Errorf("failed to scan retailer: %w", err)
		}
		if priceSel != nil {
			r.Ruleset = &models.ExtractionRuleset{
				RetailerID:         r.ID,
				PriceSelector:      *priceSel,
				PromoPriceSelector: deref(promoPriceSel),
				PromoTextSelector:  deref(promoTextSel),
			}
		}
		retailers = append(retailers, &r)
	}
	return retailers, rows.Err()
}

// UpsertRetailer creates or updates a retailer and its ruleset in one
// transaction.
func (s *Store) UpsertRetailer(ctx context.Context, r *models.Retailer) error {
	return s.db.WithTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO retailer (name, base_url, active)
			VALUES ($1, $2, $3)
			ON CONFLICT (name) DO UPDATE SET base_url = EXCLUDED.base_url, active = EXCLUDED.active
			RETURNING id`

		if err := tx.QueryRow(ctx, query, r.Name, r.BaseURL, r.Active).Scan(&r.ID); err != nil {
			return fmt.Errorf("failed to upsert retailer %s: %w", r.Name, err)
		}

		if r.Ruleset == nil {
			return nil
		}
		r.Ruleset.RetailerID = r.ID

		rulesetQuery := `
			INSERT INTO extraction_ruleset (retailer_id, price_selector, promo_price_selector, promo_text_selector)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (retailer_id) DO UPDATE SET
				price_selector = EXCLUDED.price_selector,
				promo_price_selector = EXCLUDED.promo_price_selector,
				promo_text_selector = EXCLUDED.promo_text_selector`

		if _, err := tx.Exec(ctx, rulesetQuery, r.ID,
			r.Ruleset.PriceSelector, r.Ruleset.PromoPriceSelector, r.Ruleset.PromoTextSelector); err != nil {
			return fmt.Errorf("failed to upsert ruleset for %s: %w", r.Name, err)
		}
		return nil
	})
}

// SetListingActive flips a listing's active flag.
func (s *Store) SetListingActive(ctx context.Context, id int64, active bool) error {
	tag, err := s.db.Exec(ctx, `UPDATE listing SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("failed to update listing %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package database

import (
	"context"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS product (
	id          BIGSERIAL PRIMARY KEY,
	code        TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	aliases     TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS retailer (
	id        BIGSERIAL PRIMARY KEY,
	name      TEXT NOT NULL UNIQUE,
	base_url  TEXT NOT NULL,
	active    BOOLEAN NOT NULL DEFAULT true
);

CREATE TABLE IF NOT EXISTS extraction_ruleset (
	retailer_id           BIGINT PRIMARY KEY REFERENCES retailer(id) ON DELETE CASCADE,
	price_selector        TEXT NOT NULL,
	promo_price_selector  TEXT NOT NULL DEFAULT '',
	promo_text_selector   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS listing (
	id           BIGSERIAL PRIMARY KEY,
	product_id   BIGINT NOT NULL REFERENCES product(id) ON DELETE CASCADE,
	retailer_id  BIGINT NOT NULL REFERENCES retailer(id) ON DELETE CASCADE,
	url          TEXT NOT NULL,
	active       BOOLEAN NOT NULL DEFAULT true,
	UNIQUE (product_id, retailer_id, url)
);

CREATE TABLE IF NOT EXISTS price_observation (
	id            BIGSERIAL PRIMARY KEY,
	listing_id    BIGINT NOT NULL REFERENCES listing(id) ON DELETE CASCADE,
	observed_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	price         NUMERIC(12,2),
	promo_price   NUMERIC(12,2),
	promo_text    TEXT NOT NULL DEFAULT '',
	raw_currency  TEXT NOT NULL DEFAULT '',
	raw_snapshot  TEXT NOT NULL DEFAULT '',
	CHECK (price IS NOT NULL OR promo_price IS NOT NULL OR promo_text <> '')
);

CREATE INDEX IF NOT EXISTS idx_observation_listing_time
	ON price_observation (listing_id, observed_at DESC);

CREATE INDEX IF NOT EXISTS idx_listing_active
	ON listing (active) WHERE active;
`

// Migrate applies the schema. Statements are idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

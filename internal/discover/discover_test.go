package discover

import (
	"context"
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navintel/pricewatch/internal/models"
	"github.com/navintel/pricewatch/internal/transport"
)

type fakeStore struct {
	retailers    []*models.Retailer
	products     map[string]*models.Product
	listings     []*models.Listing
	observations []*models.PriceObservation
}

func newFakeStore(retailers ...*models.Retailer) *fakeStore {
	return &fakeStore{retailers: retailers, products: make(map[string]*models.Product)}
}

func (f *fakeStore) ListRetailers(ctx context.Context) ([]*models.Retailer, error) {
	return f.retailers, nil
}

func (f *fakeStore) GetOrCreateProduct(ctx context.Context, code, name string) (*models.Product, error) {
	if p, ok := f.products[code]; ok {
		return p, nil
	}
	p := &models.Product{ID: int64(len(f.products) + 1), Code: code, Name: name}
	f.products[code] = p
	return p, nil
}

func (f *fakeStore) GetOrCreateListing(ctx context.Context, productID, retailerID int64, url string) (*models.Listing, error) {
	for _, l := range f.listings {
		if l.ProductID == productID && l.RetailerID == retailerID && l.URL == url {
			return l, nil
		}
	}
	l := &models.Listing{ID: int64(len(f.listings) + 1), ProductID: productID, RetailerID: retailerID, URL: url, Active: true}
	f.listings = append(f.listings, l)
	return l, nil
}

func (f *fakeStore) CreateObservation(ctx context.Context, obs *models.PriceObservation) error {
	f.observations = append(f.observations, obs)
	return nil
}

type fakeSource struct {
	candidates []Candidate
	err        error
}

func (f *fakeSource) Search(ctx context.Context, retailer *models.Retailer, term string) ([]Candidate, error) {
	return f.candidates, f.err
}

func TestProductCode(t *testing.T) {
	tests := []struct {
		retailer string
		title    string
		want     string
	}{
		{"Tesco", "Soft Toilet Tissue 9 Pack", "TESC-soft-toilet-tissue"},
		{"Sainsbury's", "Kleenex Tissues Ultra Soft", "SAIN-kleenex-tissues-ultr"},
		{"Asda", "Kitchen Roll", "ASDA-kitchen-roll"},
	}

	for _, tt := range tests {
		t.Run(tt.retailer, func(t *testing.T) {
			assert.Equal(t, tt.want, ProductCode(tt.retailer, tt.title))
		})
	}
}

func TestDiscovererRun(t *testing.T) {
	retailer := &models.Retailer{ID: 1, Name: "Tesco", Active: true}
	store := newFakeStore(retailer)

	source := &fakeSource{candidates: []Candidate{
		{Title: "Soft Toilet Tissue 9 Pack", Price: "4.50", Currency: "£", URL: "https://www.tesco.com/p/1"},
		{Title: "Kitchen Roll 3 Pack", Price: "", Currency: "£", URL: "https://www.tesco.com/p/2"},
		{Title: "", Price: "1.00", Currency: "£", URL: "https://www.tesco.com/p/3"},
	}}

	d := NewDiscoverer(store, map[string]Source{"Tesco": source}, 10, slog.Default())

	created, err := d.Run(context.Background(), "paper tissue")
	require.NoError(t, err)
	assert.Equal(t, 2, created, "untitled candidates are skipped")

	assert.Len(t, store.listings, 2)
	require.Len(t, store.observations, 1, "only priced candidates get an observation")
	require.NotNil(t, store.observations[0].Price)
	assert.InDelta(t, 4.50, *store.observations[0].Price, 0.001)
	assert.Equal(t, "£", store.observations[0].RawCurrency)
}

func TestDiscovererSkipsInactiveAndUnsourced(t *testing.T) {
	inactive := &models.Retailer{ID: 1, Name: "Tesco", Active: false}
	unsourced := &models.Retailer{ID: 2, Name: "Asda", Active: true}
	store := newFakeStore(inactive, unsourced)

	source := &fakeSource{candidates: []Candidate{
		{Title: "Soft Toilet Tissue", Price: "4.50", Currency: "£", URL: "https://www.tesco.com/p/1"},
	}}

	d := NewDiscoverer(store, map[string]Source{"Tesco": source}, 10, slog.Default())

	created, err := d.Run(context.Background(), "paper tissue")
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Empty(t, store.listings)
}

type pageFetcher struct {
	markup string
}

func (p *pageFetcher) Name() string { return "page" }
func (p *pageFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	return p.markup, nil
}

func TestSiteSourceSearch(t *testing.T) {
	markup := `<html><body>
		<div class="tile">
			<a href="/groceries/en-GB/products/111">Soft Toilet Tissue 9 Pack</a>
			<span class="value">£4.50</span>
		</div>
		<div class="tile">
			<a href="/groceries/en-GB/products/111">Soft Toilet Tissue 9 Pack</a>
		</div>
		<a href="/help/delivery">Delivery info</a>
	</body></html>`

	source := NewSiteSource(
		"https://www.tesco.com/search?query=%s",
		regexp.MustCompile(`/products/\d+`),
		&pageFetcher{markup: markup},
	)

	retailer := &models.Retailer{Name: "Tesco", BaseURL: "https://www.tesco.com"}
	candidates, err := source.Search(context.Background(), retailer, "paper tissue")
	require.NoError(t, err)

	require.Len(t, candidates, 1, "duplicate links and non-product links are dropped")
	assert.Equal(t, "Soft Toilet Tissue 9 Pack", candidates[0].Title)
	assert.Equal(t, "4.50", candidates[0].Price)
	assert.Equal(t, "https://www.tesco.com/groceries/en-GB/products/111", candidates[0].URL)
}

var _ transport.Fetcher = (*pageFetcher)(nil)

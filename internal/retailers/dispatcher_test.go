package retailers

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navintel/pricewatch/internal/extract"
	"github.com/navintel/pricewatch/internal/models"
	"github.com/navintel/pricewatch/internal/parser"
	"github.com/navintel/pricewatch/internal/transport"
)

type stubFetcher struct {
	pages map[string]string
	errs  map[string]error
	calls []string
}

func (s *stubFetcher) Name() string { return "stub" }

func (s *stubFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	s.calls = append(s.calls, pageURL)
	if err, ok := s.errs[pageURL]; ok {
		return "", err
	}
	if markup, ok := s.pages[pageURL]; ok {
		return markup, nil
	}
	return "", transport.ErrUnavailable
}

type stubHandler struct {
	name   string
	result *models.ExtractResult
	err    error
	calls  int
}

func (s *stubHandler) Name() string { return s.name }

func (s *stubHandler) Extract(ctx context.Context, listing *models.Listing) (*models.ExtractResult, error) {
	s.calls++
	return s.result, s.err
}

func newDispatcher(registry *Registry, fetcher transport.Fetcher) *Dispatcher {
	selectors := extract.NewSelectorExtractor(parser.NewPriceParser())
	return NewDispatcher(registry, fetcher, selectors, &transport.DelayPolicy{}, slog.Default())
}

func testListing(pageURL string) *models.Listing {
	return &models.Listing{
		ID:     1,
		URL:    pageURL,
		Active: true,
		Retailer: &models.Retailer{
			Name:    "Example Shop",
			Active:  true,
			Ruleset: &models.ExtractionRuleset{PriceSelector: ".price"},
		},
		Product: &models.Product{Name: "Soft Toilet Tissue"},
	}
}

func TestDispatcherGenericPath(t *testing.T) {
	pageURL := "https://shop.example.com/p/1"
	fetcher := &stubFetcher{pages: map[string]string{
		pageURL: `<html><body><span class="price">£4.50</span></body></html>`,
	}}

	d := newDispatcher(NewRegistry(nil), fetcher)

	result, err := d.Resolve(context.Background(), testListing(pageURL))
	require.NoError(t, err)
	require.NotNil(t, result.Price)
	assert.InDelta(t, 4.50, *result.Price, 0.001)
	assert.Equal(t, "selector", result.Method)
}

func TestDispatcherHandlerWins(t *testing.T) {
	pageURL := "https://shop.example.com/p/1"
	price := 9.99
	handler := &stubHandler{name: "example", result: &models.ExtractResult{Price: &price, Method: "structured"}}

	fetcher := &stubFetcher{}
	d := newDispatcher(NewRegistry(map[string]Handler{"shop.example.com": handler}), fetcher)

	result, err := d.Resolve(context.Background(), testListing(pageURL))
	require.NoError(t, err)
	assert.InDelta(t, 9.99, *result.Price, 0.001)
	assert.Equal(t, 1, handler.calls)
	assert.Empty(t, fetcher.calls, "handler success must not trigger the generic path")
}

func TestDispatcherHandlerFailureFallsBackToSelectors(t *testing.T) {
	pageURL := "https://shop.example.com/p/1"
	handler := &stubHandler{name: "example", err: ErrNotFound}
	fetcher := &stubFetcher{pages: map[string]string{
		pageURL: `<html><body><span class="price">£4.50</span></body></html>`,
	}}

	d := newDispatcher(NewRegistry(map[string]Handler{"shop.example.com": handler}), fetcher)

	result, err := d.Resolve(context.Background(), testListing(pageURL))
	require.NoError(t, err)
	require.NotNil(t, result.Price)
	assert.InDelta(t, 4.50, *result.Price, 0.001)
	assert.Equal(t, "selector", result.Method)
}

func TestDispatcherSurfacesHandlerError(t *testing.T) {
	pageURL := "https://shop.example.com/p/1"
	handler := &stubHandler{name: "example", err: ErrNotFound}
	fetcher := &stubFetcher{errs: map[string]error{pageURL: transport.ErrUnavailable}}

	d := newDispatcher(NewRegistry(map[string]Handler{"shop.example.com": handler}), fetcher)

	_, err := d.Resolve(context.Background(), testListing(pageURL))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound, "the handler's error names the real failure")
	assert.NotErrorIs(t, err, transport.ErrUnavailable)
}

func TestDispatcherStructuredFallback(t *testing.T) {
	pageURL := "https://shop.example.com/p/1"
	fetcher := &stubFetcher{pages: map[string]string{
		pageURL: `<html><head><script type="application/ld+json">
			{"@type": "Product", "name": "Soft Toilet Tissue", "offers": {"price": "4.50", "priceCurrency": "GBP"}}
		</script></head><body><div>no selector match here</div></body></html>`,
	}}

	listing := testListing(pageURL)
	listing.Retailer.Ruleset = &models.ExtractionRuleset{PriceSelector: ".does-not-exist"}

	d := newDispatcher(NewRegistry(nil), fetcher)

	result, err := d.Resolve(context.Background(), listing)
	require.NoError(t, err)
	require.NotNil(t, result.Price)
	assert.InDelta(t, 4.50, *result.Price, 0.001)
	assert.Equal(t, "structured", result.Method)
	assert.Equal(t, "Soft Toilet Tissue", result.Title)
}

func TestDispatcherRefusesInactive(t *testing.T) {
	fetcher := &stubFetcher{}
	d := newDispatcher(NewRegistry(nil), fetcher)

	inactive := testListing("https://shop.example.com/p/1")
	inactive.Active = false
	_, err := d.Resolve(context.Background(), inactive)
	assert.ErrorIs(t, err, ErrInactive)

	retailerOff := testListing("https://shop.example.com/p/1")
	retailerOff.Retailer.Active = false
	_, err = d.Resolve(context.Background(), retailerOff)
	assert.ErrorIs(t, err, ErrInactive)

	assert.Empty(t, fetcher.calls)
}

func TestDispatcherNoSignal(t *testing.T) {
	pageURL := "https://shop.example.com/p/1"
	fetcher := &stubFetcher{pages: map[string]string{
		pageURL: `<html><body><p>Out of stock</p></body></html>`,
	}}

	d := newDispatcher(NewRegistry(nil), fetcher)

	_, err := d.Resolve(context.Background(), testListing(pageURL))
	assert.True(t, errors.Is(err, ErrNoPrice))
}

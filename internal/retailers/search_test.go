package retailers

import (
	"context"
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navintel/pricewatch/internal/cache"
	"github.com/navintel/pricewatch/internal/models"
	"github.com/navintel/pricewatch/internal/transport"
)

const productPage = `<html><head><script type="application/ld+json">
	{"@type": "Product", "name": "Soft Toilet Tissue 9 Pack", "offers": {"price": "4.50", "priceCurrency": "GBP"}}
</script></head></html>`

func newSearchHandler(fetcher transport.Fetcher, c cache.Cache) *SearchHandler {
	return NewSearchHandler("grocer", SearchConfig{
		SearchURL:   "https://www.grocer.example.com/search?query=%s",
		LinkPattern: regexp.MustCompile(`/products/\d+`),
		BaseURL:     "https://www.grocer.example.com",
	}, fetcher, c, slog.Default())
}

func TestSearchTerms(t *testing.T) {
	assert.Equal(t, "soft toilet tissue", SearchTerms("Soft Toilet Tissue 9 Pack (White)"))
	assert.Equal(t, "kitchen roll", SearchTerms("Kitchen Roll!"))
	assert.Equal(t, "", SearchTerms(""))
}

func TestSearchHandlerDirectURLFirst(t *testing.T) {
	listingURL := "https://www.grocer.example.com/products/111"
	fetcher := &stubFetcher{pages: map[string]string{listingURL: productPage}}

	h := newSearchHandler(fetcher, cache.NewMemoryCache())

	result, err := h.Extract(context.Background(), testListing(listingURL))
	require.NoError(t, err)
	require.NotNil(t, result.Price)
	assert.InDelta(t, 4.50, *result.Price, 0.001)
	assert.Equal(t, []string{listingURL}, fetcher.calls, "no search when the direct URL works")
}

func TestSearchHandlerFallsBackToSearch(t *testing.T) {
	listingURL := "https://www.grocer.example.com/products/111"
	searchURL := "https://www.grocer.example.com/search?query=soft+toilet+tissue"
	resolvedURL := "https://www.grocer.example.com/products/222"

	fetcher := &stubFetcher{
		errs: map[string]error{listingURL: transport.ErrUnavailable},
		pages: map[string]string{
			searchURL:   `<html><body><a href="/products/222">Soft Toilet Tissue</a></body></html>`,
			resolvedURL: productPage,
		},
	}

	h := newSearchHandler(fetcher, cache.NewMemoryCache())

	result, err := h.Extract(context.Background(), testListing(listingURL))
	require.NoError(t, err)
	require.NotNil(t, result.Price)
	assert.InDelta(t, 4.50, *result.Price, 0.001)
	assert.Equal(t, "search", result.Method)
}

func TestSearchHandlerCachesResolvedURL(t *testing.T) {
	listingURL := "https://www.grocer.example.com/products/111"
	searchURL := "https://www.grocer.example.com/search?query=soft+toilet+tissue"
	resolvedURL := "https://www.grocer.example.com/products/222"

	fetcher := &stubFetcher{
		errs: map[string]error{listingURL: transport.ErrUnavailable},
		pages: map[string]string{
			searchURL:   `<html><body><a href="/products/222">Soft Toilet Tissue</a></body></html>`,
			resolvedURL: productPage,
		},
	}

	h := newSearchHandler(fetcher, cache.NewMemoryCache())
	ctx := context.Background()

	_, err := h.Extract(ctx, testListing(listingURL))
	require.NoError(t, err)
	_, err = h.Extract(ctx, testListing(listingURL))
	require.NoError(t, err)

	searches := 0
	for _, u := range fetcher.calls {
		if u == searchURL {
			searches++
		}
	}
	assert.Equal(t, 1, searches, "second extraction reuses the cached product URL")
}

func TestSearchHandlerPrefersListingIdentifier(t *testing.T) {
	listingURL := "https://www.grocer.example.com/products/111?src=email"
	searchURL := "https://www.grocer.example.com/search?query=soft+toilet+tissue"
	canonicalURL := "https://www.grocer.example.com/products/111"
	otherURL := "https://www.grocer.example.com/products/222"

	fetcher := &stubFetcher{
		errs: map[string]error{listingURL: transport.ErrUnavailable},
		pages: map[string]string{
			searchURL:             `<html><body><a href="/products/222">Soft Toilet Tissue Lookalike</a></body></html>`,
			searchURL + "&page=2": `<html><body><a href="/products/111">Soft Toilet Tissue</a></body></html>`,
			canonicalURL:          productPage,
		},
	}

	h := newSearchHandler(fetcher, cache.NewMemoryCache())

	result, err := h.Extract(context.Background(), testListing(listingURL))
	require.NoError(t, err)
	require.NotNil(t, result.Price)
	assert.Contains(t, fetcher.calls, canonicalURL, "the link matching the listing's product id wins")
	assert.NotContains(t, fetcher.calls, otherURL)
}

func TestSearchHandlerRejectsWrongProduct(t *testing.T) {
	listingURL := "https://www.grocer.example.com/products/111"
	searchURL := "https://www.grocer.example.com/search?query=soft+toilet+tissue"
	resolvedURL := "https://www.grocer.example.com/products/333"

	fetcher := &stubFetcher{
		errs: map[string]error{listingURL: transport.ErrUnavailable},
		pages: map[string]string{
			searchURL: `<html><body><a href="/products/333">Something Else</a></body></html>`,
			resolvedURL: `<html><head><script type="application/ld+json">
				{"@type": "Product", "name": "Dishwasher Tablets", "offers": {"price": "8.00", "priceCurrency": "GBP"}}
			</script></head></html>`,
		},
	}

	h := newSearchHandler(fetcher, cache.NewMemoryCache())

	_, err := h.Extract(context.Background(), testListing(listingURL))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearchHandlerNoResults(t *testing.T) {
	listingURL := "https://www.grocer.example.com/products/111"
	searchURL := "https://www.grocer.example.com/search?query=soft+toilet+tissue"

	fetcher := &stubFetcher{
		errs: map[string]error{listingURL: transport.ErrUnavailable},
		pages: map[string]string{
			searchURL: `<html><body><p>No results found</p></body></html>`,
		},
	}

	h := newSearchHandler(fetcher, cache.NewMemoryCache())

	_, err := h.Extract(context.Background(), &models.Listing{URL: listingURL, Product: &models.Product{Name: "Soft Toilet Tissue 9 Pack"}})
	assert.ErrorIs(t, err, ErrNotFound)
}

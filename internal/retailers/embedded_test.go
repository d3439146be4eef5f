package retailers

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedHandlerReadsStructuredData(t *testing.T) {
	pageURL := "https://groceries.example.com/product/12345"
	fetcher := &stubFetcher{pages: map[string]string{pageURL: productPage}}

	h := NewEmbeddedHandler("example", fetcher, slog.Default())

	result, err := h.Extract(context.Background(), testListing(pageURL))
	require.NoError(t, err)
	require.NotNil(t, result.Price)
	assert.InDelta(t, 4.50, *result.Price, 0.001)
	assert.Equal(t, "structured", result.Method)
	assert.Equal(t, "Soft Toilet Tissue 9 Pack", result.Title)
}

func TestEmbeddedHandlerNoPricingData(t *testing.T) {
	pageURL := "https://groceries.example.com/product/12345"
	fetcher := &stubFetcher{pages: map[string]string{
		pageURL: `<html><body><p>About us</p></body></html>`,
	}}

	h := NewEmbeddedHandler("example", fetcher, slog.Default())

	_, err := h.Extract(context.Background(), testListing(pageURL))
	assert.ErrorIs(t, err, ErrNoPrice)
}

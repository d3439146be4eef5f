package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/navintel/pricewatch/internal/models"
	"github.com/navintel/pricewatch/internal/parser"
)

func newSelectorExtractor() *SelectorExtractor {
	return NewSelectorExtractor(parser.NewPriceParser())
}

func TestSelectorExtract(t *testing.T) {
	markup := `<html><body>
		<span class="price">£4.50</span>
		<span class="offer-price">£3.99</span>
		<div class="offer-text">2 for £7</div>
	</body></html>`

	ruleset := &models.ExtractionRuleset{
		PriceSelector:      ".price",
		PromoPriceSelector: ".offer-price",
		PromoTextSelector:  ".offer-text",
	}

	result := newSelectorExtractor().Extract(markup, ruleset)
	require.NotNil(t, result)
	require.NotNil(t, result.Price)
	assert.InDelta(t, 4.50, *result.Price, 0.001)
	require.NotNil(t, result.PromoPrice)
	assert.InDelta(t, 3.99, *result.PromoPrice, 0.001)
	assert.Equal(t, "2 for £7", result.PromoText)
	assert.Equal(t, "£", result.Currency)
	assert.Contains(t, result.RawSnapshot, "£4.50")
}

func TestSelectorExtractPriceOnly(t *testing.T) {
	markup := `<span class="price">£12.00</span>`

	result := newSelectorExtractor().Extract(markup, &models.ExtractionRuleset{PriceSelector: ".price"})
	require.NotNil(t, result)
	require.NotNil(t, result.Price)
	assert.InDelta(t, 12.00, *result.Price, 0.001)
	assert.Nil(t, result.PromoPrice)
	assert.Empty(t, result.PromoText)
}

func TestSelectorExtractRegexFallbackPrefersRepeatedPrice(t *testing.T) {
	// The real price appears twice (header and buy box); the one-off
	// delivery threshold should lose.
	markup := `<html><body>
		<p>Free delivery over £40.00</p>
		<div>Our price: £6.50</div>
		<div class="buybox">£6.50</div>
	</body></html>`

	ruleset := &models.ExtractionRuleset{PriceSelector: ".does-not-match"}

	result := newSelectorExtractor().Extract(markup, ruleset)
	require.NotNil(t, result)
	require.NotNil(t, result.Price)
	assert.InDelta(t, 6.50, *result.Price, 0.001)
	assert.Equal(t, "£", result.Currency)
	assert.Equal(t, "selector", result.Method)
}

func TestSelectorExtractRegexFallbackTieBreaksByFirstOccurrence(t *testing.T) {
	markup := `<body><p>£2.00</p><p>£5.00</p></body>`

	result := newSelectorExtractor().Extract(markup, &models.ExtractionRuleset{PriceSelector: ".missing"})
	require.NotNil(t, result)
	require.NotNil(t, result.Price)
	assert.InDelta(t, 2.00, *result.Price, 0.001)
}

func TestSelectorExtractNoSignal(t *testing.T) {
	markup := `<html><body><p>Out of stock</p></body></html>`

	result := newSelectorExtractor().Extract(markup, &models.ExtractionRuleset{PriceSelector: ".price"})
	assert.Nil(t, result)
}

func TestSelectorExtractNilRuleset(t *testing.T) {
	assert.Nil(t, newSelectorExtractor().Extract("<html></html>", nil))
}

func TestSelectorExtractPromoTextAloneIsSignal(t *testing.T) {
	markup := `<div class="offer-text">Clubcard price ` + strings.Repeat("!", 3) + `</div>`

	result := newSelectorExtractor().Extract(markup, &models.ExtractionRuleset{
		PriceSelector:     ".price",
		PromoTextSelector: ".offer-text",
	})
	require.NotNil(t, result)
	assert.Nil(t, result.Price)
	assert.NotEmpty(t, result.PromoText)
}

package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/navintel/pricewatch/internal/models"
	"github.com/navintel/pricewatch/internal/parser"
)

var currencyTokenPattern = regexp.MustCompile(`[£$€]\s*([0-9]+(?:\.[0-9]{1,2})?)`)

// SelectorExtractor applies a retailer's configured CSS selectors to
// page markup, passing matched text through the price parser. When the
// price selector yields nothing it falls back to a full-page scan for
// currency-prefixed tokens.
type SelectorExtractor struct {
	parser *parser.PriceParser
}

func NewSelectorExtractor(p *parser.PriceParser) *SelectorExtractor {
	return &SelectorExtractor{parser: p}
}

// Extract runs the ruleset against markup. Returns nil when neither
// the selectors nor the regex fallback produce any pricing signal.
func (e *SelectorExtractor) Extract(markup string, ruleset *models.ExtractionRuleset) *models.ExtractResult {
	if ruleset == nil {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}

	rawPrice := selectionText(doc, ruleset.PriceSelector)
	rawPromoPrice := selectionText(doc, ruleset.PromoPriceSelector)
	promoText := selectionText(doc, ruleset.PromoTextSelector)

	priceSym, price := e.parser.Parse(rawPrice)
	promoSym, promoPrice := e.parser.Parse(rawPromoPrice)

	currency := priceSym
	if currency == "" {
		currency = promoSym
	}

	// Selector missed the price block entirely: scan the visible page
	// text. Prices repeated across page regions are more likely the
	// real product price than one-off mentions.
	if price == nil {
		if v, sym := mostFrequentPrice(doc.Text()); v != nil {
			price = v
			if currency == "" {
				currency = sym
			}
			rawPrice = sym + strconv.FormatFloat(*v, 'f', 2, 64)
		}
	}

	result := &models.ExtractResult{
		Price:       price,
		PromoPrice:  promoPrice,
		PromoText:   promoText,
		Currency:    currency,
		RawSnapshot: rawPrice + " | promo: " + rawPromoPrice + " | " + promoText,
		Markup:      markup,
		Method:      "selector",
	}

	if !result.HasSignal() {
		return nil
	}
	return result
}

func selectionText(doc *goquery.Document, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(doc.Find(selector).First().Text())
}

// mostFrequentPrice scans text for currency-prefixed numeric tokens
// and returns the plausible value occurring most often, ties broken by
// first occurrence.
func mostFrequentPrice(text string) (*float64, string) {
	cleaned := strings.ReplaceAll(text, ",", "")

	matches := currencyTokenPattern.FindAllStringSubmatch(cleaned, -1)
	if len(matches) == 0 {
		return nil, ""
	}

	counts := make(map[float64]int)
	var order []float64
	symbols := make(map[float64]string)

	for _, m := range matches {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil || !plausible(v) {
			continue
		}
		if counts[v] == 0 {
			order = append(order, v)
			symbols[v] = string([]rune(m[0])[0])
		}
		counts[v]++
	}

	if len(order) == 0 {
		return nil, ""
	}

	best := order[0]
	for _, v := range order[1:] {
		if counts[v] > counts[best] {
			best = v
		}
	}

	return &best, symbols[best]
}

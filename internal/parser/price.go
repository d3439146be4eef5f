package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// PriceParser turns raw scraped text into a currency symbol and a
// decimal amount. It never fails: malformed numeric text degrades to
// a nil amount.
type PriceParser struct {
	currencyPattern *regexp.Regexp
	numberPattern   *regexp.Regexp
}

func NewPriceParser() *PriceParser {
	return &PriceParser{
		currencyPattern: regexp.MustCompile(`([£$€])\s*([0-9]+(?:\.[0-9]{1,2})?)`),
		numberPattern:   regexp.MustCompile(`([0-9]+(?:\.[0-9]{1,2})?)`),
	}
}

// Parse extracts the first currency-prefixed amount from text, falling
// back to the first bare numeric token. Thousands separators are
// stripped before matching, so "£1,234.50" yields ("£", 1234.50).
// Returns ("", nil) when no numeric token exists.
func (p *PriceParser) Parse(text string) (symbol string, amount *float64) {
	if text == "" {
		return "", nil
	}

	cleaned := strings.ReplaceAll(text, ",", "")

	if m := p.currencyPattern.FindStringSubmatch(cleaned); m != nil {
		symbol = m[1]
		if v, err := strconv.ParseFloat(m[2], 64); err == nil {
			amount = &v
		}
		return symbol, amount
	}

	if m := p.numberPattern.FindStringSubmatch(cleaned); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			amount = &v
		}
	}

	return "", amount
}

package extract

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Plausibility bounds for a structured price. Embedded data frequently
// carries zeroed placeholders and cent-denominated IDs; anything
// outside these bounds is noise, not a price.
const (
	minPlausiblePrice = 0.01
	maxPlausiblePrice = 100000
)

// StructuredPrice is a price recovered from machine-readable data
// embedded in a page, with the snippet it came from kept for audit.
type StructuredPrice struct {
	Price    float64
	Currency string
	Title    string
	Snippet  string
}

// Assignments of page-load state to a known global, e.g.
// window.__PRELOADED_STATE__ = {...};
var preloadStatePattern = regexp.MustCompile(`(?s)window\.__(?:PRELOADED_STATE|INITIAL_STATE|NEXT_DATA|APOLLO_STATE)__\s*=\s*(\{.*?\})\s*;`)

// Structured attempts to recover a price and title from embedded JSON:
// JSON-LD Product blocks first, then preload-state globals. Returns
// nil when nothing plausible is found; an implausible value is never
// returned.
func Structured(markup string) *StructuredPrice {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}

	if sp := fromJSONLD(doc); sp != nil {
		return sp
	}
	return fromPreloadState(doc)
}

func fromJSONLD(doc *goquery.Document) *StructuredPrice {
	var found *StructuredPrice

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(i int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return true
		}

		var data interface{}
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return true
		}

		for _, node := range flattenLDNodes(data) {
			if sp := productOffer(node, raw); sp != nil {
				found = sp
				return false
			}
		}
		return true
	})

	return found
}

// flattenLDNodes unwraps top-level arrays and @graph containers into
// candidate JSON-LD nodes.
func flattenLDNodes(data interface{}) []map[string]interface{} {
	var nodes []map[string]interface{}

	switch v := data.(type) {
	case []interface{}:
		for _, item := range v {
			nodes = append(nodes, flattenLDNodes(item)...)
		}
	case map[string]interface{}:
		nodes = append(nodes, v)
		if graph, ok := v["@graph"].([]interface{}); ok {
			for _, item := range graph {
				nodes = append(nodes, flattenLDNodes(item)...)
			}
		}
	}

	return nodes
}

// productOffer extracts a plausible offer price from a JSON-LD Product
// node.
func productOffer(node map[string]interface{}, snippet string) *StructuredPrice {
	typ, _ := node["@type"].(string)
	if !strings.EqualFold(typ, "Product") {
		return nil
	}

	title, _ := node["name"].(string)

	offers := node["offers"]
	var offerList []interface{}
	switch v := offers.(type) {
	case map[string]interface{}:
		offerList = []interface{}{v}
	case []interface{}:
		offerList = v
	default:
		return nil
	}

	for _, o := range offerList {
		offer, ok := o.(map[string]interface{})
		if !ok {
			continue
		}

		for _, key := range []string{"price", "lowPrice"} {
			price, ok := numericField(offer[key])
			if !ok || !plausible(price) {
				continue
			}
			currency, _ := offer["priceCurrency"].(string)
			return &StructuredPrice{
				Price:    price,
				Currency: currencySymbol(currency),
				Title:    strings.TrimSpace(title),
				Snippet:  clip(snippet, 500),
			}
		}
	}

	return nil
}

func fromPreloadState(doc *goquery.Document) *StructuredPrice {
	var found *StructuredPrice

	doc.Find("script").EachWithBreak(func(i int, s *goquery.Selection) bool {
		m := preloadStatePattern.FindStringSubmatch(s.Text())
		if m == nil {
			return true
		}

		var state map[string]interface{}
		if err := json.Unmarshal([]byte(m[1]), &state); err != nil {
			return true
		}

		if price, ok := findPriceField(state, 0); ok {
			found = &StructuredPrice{
				Price:    price,
				Currency: "£",
				Title:    findTitleField(state, 0),
				Snippet:  clip(m[1], 500),
			}
			return false
		}
		return true
	})

	return found
}

const maxWalkDepth = 8

// findPriceField walks a decoded state object for the first plausible
// price-like field.
func findPriceField(node interface{}, depth int) (float64, bool) {
	if depth > maxWalkDepth {
		return 0, false
	}

	switch v := node.(type) {
	case map[string]interface{}:
		for _, key := range []string{"price", "currentPrice", "sellPrice", "unitPrice"} {
			if price, ok := numericField(v[key]); ok && plausible(price) {
				return price, true
			}
		}
		for _, child := range v {
			if price, ok := findPriceField(child, depth+1); ok {
				return price, true
			}
		}
	case []interface{}:
		for _, child := range v {
			if price, ok := findPriceField(child, depth+1); ok {
				return price, true
			}
		}
	}

	return 0, false
}

func findTitleField(node interface{}, depth int) string {
	if depth > maxWalkDepth {
		return ""
	}

	switch v := node.(type) {
	case map[string]interface{}:
		for _, key := range []string{"title", "name", "displayName"} {
			if title, ok := v[key].(string); ok && title != "" {
				return strings.TrimSpace(title)
			}
		}
		for _, child := range v {
			if title := findTitleField(child, depth+1); title != "" {
				return title
			}
		}
	case []interface{}:
		for _, child := range v {
			if title := findTitleField(child, depth+1); title != "" {
				return title
			}
		}
	}

	return ""
}

// numericField reads a price out of the number-or-string encodings
// embedded data uses interchangeably.
func numericField(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		n = strings.TrimSpace(strings.TrimLeft(n, "£$€"))
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func plausible(price float64) bool {
	return price > minPlausiblePrice && price < maxPlausiblePrice
}

func currencySymbol(code string) string {
	switch strings.ToUpper(code) {
	case "GBP":
		return "£"
	case "USD":
		return "$"
	case "EUR":
		return "€"
	default:
		return code
	}
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

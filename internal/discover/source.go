package discover

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/navintel/pricewatch/internal/models"
	"github.com/navintel/pricewatch/internal/transport"
)

var tileCurrencyPattern = regexp.MustCompile(`[£$€]\s*[0-9]+(?:\.[0-9]{1,2})?`)

// SiteSource discovers products by scraping a retailer's own search
// results page. Product tiles are located by their detail-page links;
// the tile's nearest currency token is taken as the price.
type SiteSource struct {
	// SearchURL is a template with %s for the escaped term.
	SearchURL string
	// LinkPattern matches product detail paths.
	LinkPattern *regexp.Regexp
	fetcher     transport.Fetcher
}

func NewSiteSource(searchURL string, linkPattern *regexp.Regexp, fetcher transport.Fetcher) *SiteSource {
	return &SiteSource{
		SearchURL:   searchURL,
		LinkPattern: linkPattern,
		fetcher:     fetcher,
	}
}

func (s *SiteSource) Search(ctx context.Context, retailer *models.Retailer, term string) ([]Candidate, error) {
	searchURL := fmt.Sprintf(s.SearchURL, url.QueryEscape(term))

	markup, err := s.fetcher.Fetch(ctx, searchURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch search results: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse search results: %w", err)
	}

	seen := make(map[string]bool)
	var candidates []Candidate

	doc.Find("a[href]").Each(func(i int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !s.LinkPattern.MatchString(href) {
			return
		}
		if strings.HasPrefix(href, "/") {
			href = strings.TrimSuffix(retailer.BaseURL, "/") + href
		}
		if seen[href] {
			return
		}

		title := strings.TrimSpace(a.Text())
		if title == "" {
			title = strings.TrimSpace(a.AttrOr("aria-label", ""))
		}
		if title == "" {
			return
		}

		seen[href] = true
		candidates = append(candidates, Candidate{
			Title:    title,
			Price:    tilePrice(a),
			Currency: "£",
			URL:      href,
		})
	})

	return candidates, nil
}

// tilePrice looks for a currency token near the product link, walking
// up a few ancestors until one contains a price.
func tilePrice(a *goquery.Selection) string {
	node := a
	for depth := 0; depth < 3; depth++ {
		node = node.Parent()
		if node.Length() == 0 {
			break
		}
		if token := tileCurrencyPattern.FindString(node.Text()); token != "" {
			return strings.TrimLeft(token, "£$€ ")
		}
	}
	return ""
}

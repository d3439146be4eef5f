package retailers

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/navintel/pricewatch/internal/cache"
	"github.com/navintel/pricewatch/internal/extract"
	"github.com/navintel/pricewatch/internal/models"
	"github.com/navintel/pricewatch/internal/transport"
)

const (
	defaultSearchCacheTTL = 6 * time.Hour
	defaultSearchPages    = 3
)

var nonAlnumPattern = regexp.MustCompile(`[^a-z0-9 ]+`)

// SearchConfig describes how to search one retailer's site.
type SearchConfig struct {
	// SearchURL is a template with %s for the escaped query.
	SearchURL string
	// LinkPattern matches product detail paths in search results.
	LinkPattern *regexp.Regexp
	// BaseURL resolves relative result links.
	BaseURL string
	// MaxPages bounds how many result pages are walked.
	MaxPages int
	// CacheTTL bounds how long a resolved product URL is reused.
	CacheTTL time.Duration
}

// SearchHandler serves retailers whose direct product URLs rot or sit
// behind bot protection that search pages escape. It tries the listing
// URL first, then searches the site for the product by name, resolves
// the first matching detail page and extracts from there. Resolved
// URLs are cached per search term.
type SearchHandler struct {
	name    string
	config  SearchConfig
	fetcher transport.Fetcher
	cache   cache.Cache
	logger  *slog.Logger
}

func NewSearchHandler(name string, config SearchConfig, fetcher transport.Fetcher, c cache.Cache, logger *slog.Logger) *SearchHandler {
	if config.CacheTTL == 0 {
		config.CacheTTL = defaultSearchCacheTTL
	}
	if config.MaxPages <= 0 {
		config.MaxPages = defaultSearchPages
	}
	return &SearchHandler{
		name:    name,
		config:  config,
		fetcher: fetcher,
		cache:   c,
		logger:  logger.With("component", "handler", "handler", name),
	}
}

func (h *SearchHandler) Name() string { return h.name }

func (h *SearchHandler) Extract(ctx context.Context, listing *models.Listing) (*models.ExtractResult, error) {
	if result, err := h.extractFrom(ctx, listing, listing.URL); err == nil {
		return result, nil
	} else {
		h.logger.Debug("direct fetch failed, falling back to search", "url", listing.URL, "error", err)
	}

	if listing.Product == nil || listing.Product.Name == "" {
		return nil, ErrNotFound
	}

	productURL, err := h.resolve(ctx, listing)
	if err != nil {
		return nil, err
	}

	result, err := h.extractFrom(ctx, listing, productURL)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// resolve finds a product detail URL for a listing, consulting the
// per-term cache first. Result pages are walked in order, preferring a
// link carrying the same canonical product identifier as the listing
// URL; the first matching link is kept as a fallback.
func (h *SearchHandler) resolve(ctx context.Context, listing *models.Listing) (string, error) {
	terms := SearchTerms(listing.Product.Name)
	if terms == "" {
		return "", ErrNotFound
	}

	cacheKey := h.name + ":" + terms
	if cached, err := h.cache.Get(ctx, cacheKey); err == nil {
		h.logger.Debug("search cache hit", "terms", terms, "url", cached)
		return cached, nil
	}

	wantID := h.config.LinkPattern.FindString(listing.URL)

	var first string
	var productURL string

	for page := 1; page <= h.config.MaxPages && productURL == ""; page++ {
		searchURL := fmt.Sprintf(h.config.SearchURL, url.QueryEscape(terms))
		if page > 1 {
			searchURL += "&page=" + strconv.Itoa(page)
		}

		markup, err := h.fetcher.Fetch(ctx, searchURL)
		if err != nil {
			if page == 1 {
				return "", fmt.Errorf("failed to fetch search page: %w", err)
			}
			break
		}

		links := h.matchingLinks(markup)
		if len(links) == 0 {
			break
		}
		if first == "" {
			first = links[0]
		}
		if wantID != "" {
			for _, link := range links {
				if h.config.LinkPattern.FindString(link) == wantID {
					productURL = link
					break
				}
			}
		}
	}

	if productURL == "" {
		productURL = first
	}
	if productURL == "" {
		return "", ErrNotFound
	}

	if err := h.cache.Set(ctx, cacheKey, productURL, h.config.CacheTTL); err != nil {
		h.logger.Warn("failed to cache resolved url", "terms", terms, "error", err)
	}

	h.logger.Info("resolved product via search", "terms", terms, "url", productURL)
	return productURL, nil
}

// matchingLinks returns product detail links from a results page, in
// document order, resolved against the base URL.
func (h *SearchHandler) matchingLinks(markup string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}

	var links []string
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !h.config.LinkPattern.MatchString(href) {
			return
		}
		if strings.HasPrefix(href, "/") {
			href = strings.TrimSuffix(h.config.BaseURL, "/") + href
		}
		if !seen[href] {
			seen[href] = true
			links = append(links, href)
		}
	})
	return links
}

// extractFrom fetches a page and requires both a matching title and a
// plausible price before accepting a search-resolved page as the
// product.
func (h *SearchHandler) extractFrom(ctx context.Context, listing *models.Listing, pageURL string) (*models.ExtractResult, error) {
	markup, err := h.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}

	sp := extract.Structured(markup)
	if sp == nil {
		return nil, ErrNoPrice
	}
	if listing.Product != nil && !titleMatches(sp.Title, listing.Product.Name) {
		return nil, fmt.Errorf("%w: title %q does not match product %q", ErrNotFound, sp.Title, listing.Product.Name)
	}

	price := sp.Price
	return &models.ExtractResult{
		Title:       sp.Title,
		Price:       &price,
		Currency:    sp.Currency,
		RawSnapshot: sp.Snippet,
		Markup:      markup,
		Method:      "search",
	}, nil
}

// SearchTerms reduces a product name to its first three significant
// words, lowercased with punctuation stripped.
func SearchTerms(productName string) string {
	cleaned := nonAlnumPattern.ReplaceAllString(strings.ToLower(productName), " ")
	words := strings.Fields(cleaned)
	if len(words) > 3 {
		words = words[:3]
	}
	return strings.Join(words, " ")
}

// titleMatches requires the page title to share at least one
// significant word with the product name.
func titleMatches(title, productName string) bool {
	if title == "" {
		return false
	}
	titleWords := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(title)) {
		titleWords[strings.Trim(w, ".,()")] = true
	}
	for _, w := range strings.Fields(SearchTerms(productName)) {
		if titleWords[w] {
			return true
		}
	}
	return false
}

package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"strings"
	"time"
)

var (
	ErrUnavailable = errors.New("all fetch tiers exhausted")
	ErrChallenge   = errors.New("challenge page detected")
	ErrBlocked     = errors.New("request blocked")
	ErrEmptyBody   = errors.New("response body empty or too small")
)

// Fetcher retrieves raw page markup for a URL.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// DelayPolicy controls the randomized polite delay observed between
// network attempts. Aggressively protected domains get longer bounds.
type DelayPolicy struct {
	Min           time.Duration
	Max           time.Duration
	AggressiveMin time.Duration
	AggressiveMax time.Duration
	// Domains known to penalize fast clients.
	AggressiveDomains []string

	// Overridable in tests.
	sleep func(time.Duration)
}

func DefaultDelayPolicy() *DelayPolicy {
	return &DelayPolicy{
		Min:           1 * time.Second,
		Max:           3 * time.Second,
		AggressiveMin: 4 * time.Second,
		AggressiveMax: 8 * time.Second,
		AggressiveDomains: []string{
			"tesco.com",
			"sainsburys.co.uk",
		},
	}
}

// Bounds returns the delay window applicable to a domain.
func (p *DelayPolicy) Bounds(domain string) (time.Duration, time.Duration) {
	for _, d := range p.AggressiveDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return p.AggressiveMin, p.AggressiveMax
		}
	}
	return p.Min, p.Max
}

// Wait sleeps for a randomized duration within the domain's bounds.
func (p *DelayPolicy) Wait(domain string) {
	min, max := p.Bounds(domain)
	d := min
	if max > min {
		d += time.Duration(rand.Int63n(int64(max - min)))
	}
	if p.sleep != nil {
		p.sleep(d)
		return
	}
	time.Sleep(d)
}

// TieredFetcher tries successively more capable fetchers until one
// returns usable markup. A failure at one tier never aborts the chain.
type TieredFetcher struct {
	tiers  []Fetcher
	delays *DelayPolicy
	logger *slog.Logger
}

func NewTieredFetcher(delays *DelayPolicy, logger *slog.Logger, tiers ...Fetcher) *TieredFetcher {
	if delays == nil {
		delays = DefaultDelayPolicy()
	}
	return &TieredFetcher{
		tiers:  tiers,
		delays: delays,
		logger: logger.With("component", "transport"),
	}
}

func (t *TieredFetcher) Name() string { return "tiered" }

// ResetSessions forwards the reset to any tier that keeps per-retailer
// session state.
func (t *TieredFetcher) ResetSessions() {
	for _, tier := range t.tiers {
		if r, ok := tier.(interface{ ResetSessions() }); ok {
			r.ResetSessions()
		}
	}
}

// Fetch walks the tiers in order. Between attempts a randomized polite
// delay is observed. Returns ErrUnavailable (wrapping the last tier
// error) when every tier fails.
func (t *TieredFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	domain := Domain(pageURL)

	var lastErr error
	for i, tier := range t.tiers {
		if i > 0 {
			t.delays.Wait(domain)
		}

		html, err := tier.Fetch(ctx, pageURL)
		if err == nil && html != "" {
			t.logger.Info("fetched", "tier", tier.Name(), "url", pageURL, "bytes", len(html))
			return html, nil
		}
		if err == nil {
			err = ErrEmptyBody
		}

		t.logger.Warn("tier failed", "tier", tier.Name(), "url", pageURL, "error", err)
		lastErr = err
	}

	if lastErr == nil {
		lastErr = errors.New("no tiers configured")
	}
	return "", fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// Domain extracts the registrable host from a URL, lowercased and with
// any www prefix removed, for handler lookup and delay bounds.
func Domain(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

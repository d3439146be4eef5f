// Package app assembles the scraping stack from configuration. The
// batch CLI, the HTTP server and the discovery tool all wire the same
// components.
package app

import (
	"log/slog"
	"os"
	"regexp"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/redis/go-redis/v9"

	"github.com/navintel/pricewatch/internal/cache"
	"github.com/navintel/pricewatch/internal/config"
	"github.com/navintel/pricewatch/internal/database"
	"github.com/navintel/pricewatch/internal/extract"
	"github.com/navintel/pricewatch/internal/parser"
	"github.com/navintel/pricewatch/internal/retailers"
	"github.com/navintel/pricewatch/internal/scraper"
	"github.com/navintel/pricewatch/internal/transport"
)

var tescoLinkPattern = regexp.MustCompile(`/groceries/en-GB/products/\d+`)

// NewLogger builds the process logger from config.
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// NewCache picks the cache backend from config.
func NewCache(cfg config.CacheConfig) cache.Cache {
	switch cfg.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return cache.NewRedisCache(client, cfg.KeyPrefix)
	case "memcache":
		return cache.NewMemcacheCache(memcache.New(cfg.MemcacheAddr), cfg.KeyPrefix)
	default:
		return cache.NewMemoryCache()
	}
}

// NewDelayPolicy maps scraper config onto the transport delay bounds.
func NewDelayPolicy(cfg config.ScraperConfig) *transport.DelayPolicy {
	return &transport.DelayPolicy{
		Min:               cfg.DelayMin,
		Max:               cfg.DelayMax,
		AggressiveMin:     cfg.AggressiveDelayMin,
		AggressiveMax:     cfg.AggressiveDelayMax,
		AggressiveDomains: cfg.AggressiveDomains,
	}
}

// NewFetcher builds the full tier chain: plain GET, resilient session,
// HTTP/2 alternate, rendered browser.
func NewFetcher(cfg *config.Config, delays *transport.DelayPolicy, logger *slog.Logger) *transport.TieredFetcher {
	browserOpts := &transport.BrowserOptions{
		Headless:       cfg.Browser.Headless,
		Timeout:        cfg.Browser.Timeout,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  cfg.Browser.ViewportWidth,
		ViewportHeight: cfg.Browser.ViewportHeight,
		AcceptLanguage: cfg.Browser.AcceptLanguage,
		TimezoneID:     cfg.Browser.TimezoneID,
		Locale:         cfg.Browser.Locale,
	}

	return transport.NewTieredFetcher(delays, logger,
		transport.NewSimpleFetcher(cfg.Scraper.FetchTimeout),
		transport.NewSessionFetcher(transport.NewSessionCache(cfg.Scraper.FetchTimeout), cfg.Scraper.MaxRetries, cfg.Scraper.RetryDelay, logger),
		transport.NewHTTP2Fetcher(cfg.Scraper.FetchTimeout),
		transport.NewBrowserFetcher(browserOpts, logger),
	)
}

// NewRegistry builds the retailer handler map. Tesco gets the
// search-based handler since its direct URLs rot behind bot checks;
// Asda ships its prices in preload-state globals, so it reads the
// embedded data. Every other retailer goes through its configured
// selectors.
func NewRegistry(fetcher transport.Fetcher, c cache.Cache, searchTTL time.Duration, logger *slog.Logger) *retailers.Registry {
	return retailers.NewRegistry(map[string]retailers.Handler{
		"tesco.com": retailers.NewSearchHandler("tesco", retailers.SearchConfig{
			SearchURL:   "https://www.tesco.com/groceries/en-GB/search?query=%s",
			LinkPattern: tescoLinkPattern,
			BaseURL:     "https://www.tesco.com",
			CacheTTL:    searchTTL,
		}, fetcher, c, logger),
		"asda.com": retailers.NewEmbeddedHandler("asda", fetcher, logger),
	})
}

// NewDispatcher wires the handler registry and generic extraction path.
func NewDispatcher(fetcher *transport.TieredFetcher, c cache.Cache, delays *transport.DelayPolicy, searchTTL time.Duration, logger *slog.Logger) *retailers.Dispatcher {
	registry := NewRegistry(fetcher, c, searchTTL, logger)
	selectors := extract.NewSelectorExtractor(parser.NewPriceParser())
	return retailers.NewDispatcher(registry, fetcher, selectors, delays, logger)
}

// NewOrchestrator builds the batch runner over a store.
func NewOrchestrator(cfg *config.Config, store *database.Store, logger *slog.Logger) *scraper.Orchestrator {
	delays := NewDelayPolicy(cfg.Scraper)
	fetcher := NewFetcher(cfg, delays, logger)
	dispatcher := NewDispatcher(fetcher, NewCache(cfg.Cache), delays, cfg.Cache.SearchTTL, logger)
	report := scraper.NewReportWriter(cfg.Scraper.ReportDir)

	return scraper.NewOrchestrator(store, dispatcher, fetcher, delays, report, logger)
}

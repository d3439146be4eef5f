package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/navintel/pricewatch/internal/app"
	"github.com/navintel/pricewatch/internal/config"
	"github.com/navintel/pricewatch/internal/database"
	"github.com/navintel/pricewatch/internal/discover"
)

// discover seeds the retailer set and searches retailer sites for a
// product category, adding what it finds to the catalog.
func main() {
	godotenv.Load()

	searchTerm := flag.String("search-term", "paper tissue", "search term to discover products for")
	maxProducts := flag.Int("max-products", 10, "maximum products to add per retailer")
	seedRetailers := flag.Bool("setup-retailers", false, "install the default UK retailer set first")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := app.NewLogger(cfg.Logging)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := database.New(ctx, database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: 5,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	store := database.NewStore(db, logger)

	if *seedRetailers {
		if err := store.SeedRetailers(ctx); err != nil {
			logger.Error("failed to seed retailers", "error", err)
			os.Exit(1)
		}
	}

	delays := app.NewDelayPolicy(cfg.Scraper)
	fetcher := app.NewFetcher(cfg, delays, logger)

	sources := map[string]discover.Source{
		"Tesco": discover.NewSiteSource(
			"https://www.tesco.com/groceries/en-GB/search?query=%s",
			regexp.MustCompile(`/groceries/en-GB/products/\d+`),
			fetcher,
		),
	}

	d := discover.NewDiscoverer(store, sources, *maxProducts, logger)

	created, err := d.Run(ctx, *searchTerm)
	if err != nil {
		logger.Error("discovery failed", "error", err)
		os.Exit(1)
	}

	logger.Info("discovery complete", "search_term", *searchTerm, "listings_created", created)
}

// Package config loads settings from the environment with sensible
// defaults for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Scraper  ScraperConfig
	Browser  BrowserConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type ScraperConfig struct {
	// Polite delay bounds between listings.
	DelayMin time.Duration
	DelayMax time.Duration
	// Longer bounds for domains known to penalize fast clients.
	AggressiveDelayMin time.Duration
	AggressiveDelayMax time.Duration
	AggressiveDomains  []string

	MaxRetries   int
	RetryDelay   time.Duration
	FetchTimeout time.Duration
	ReportDir    string
}

type BrowserConfig struct {
	Headless       bool
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type CacheConfig struct {
	// Backend selects "memory", "redis" or "memcache".
	Backend      string
	RedisAddr    string
	MemcacheAddr string
	KeyPrefix    string
	SearchTTL    time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Scraper: ScraperConfig{
			DelayMin:           getDurationOrDefault("SCRAPER_DELAY_MIN", 1*time.Second),
			DelayMax:           getDurationOrDefault("SCRAPER_DELAY_MAX", 3*time.Second),
			AggressiveDelayMin: getDurationOrDefault("SCRAPER_AGGRESSIVE_DELAY_MIN", 4*time.Second),
			AggressiveDelayMax: getDurationOrDefault("SCRAPER_AGGRESSIVE_DELAY_MAX", 8*time.Second),
			AggressiveDomains:  getStringSliceOrDefault("SCRAPER_AGGRESSIVE_DOMAINS", []string{"tesco.com", "sainsburys.co.uk"}),
			MaxRetries:         getIntOrDefault("SCRAPER_MAX_RETRIES", 3),
			RetryDelay:         getDurationOrDefault("SCRAPER_RETRY_DELAY", 2*time.Second),
			FetchTimeout:       getDurationOrDefault("SCRAPER_FETCH_TIMEOUT", 15*time.Second),
			ReportDir:          getEnvOrDefault("SCRAPER_REPORT_DIR", "reports"),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "en-GB,en;q=0.9"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Europe/London"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "en-GB"),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "pricewatch"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
		},
		Cache: CacheConfig{
			Backend:      getEnvOrDefault("CACHE_BACKEND", "memory"),
			RedisAddr:    getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			MemcacheAddr: getEnvOrDefault("MEMCACHE_ADDR", "localhost:11211"),
			KeyPrefix:    getEnvOrDefault("CACHE_KEY_PREFIX", "pricewatch:"),
			SearchTTL:    getDurationOrDefault("CACHE_SEARCH_TTL", 6*time.Hour),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Scraper.DelayMin > c.Scraper.DelayMax {
		return fmt.Errorf("SCRAPER_DELAY_MIN cannot be greater than SCRAPER_DELAY_MAX")
	}

	if c.Scraper.AggressiveDelayMin > c.Scraper.AggressiveDelayMax {
		return fmt.Errorf("SCRAPER_AGGRESSIVE_DELAY_MIN cannot be greater than SCRAPER_AGGRESSIVE_DELAY_MAX")
	}

	switch c.Cache.Backend {
	case "memory", "redis", "memcache":
	default:
		return fmt.Errorf("CACHE_BACKEND must be memory, redis or memcache, got %q", c.Cache.Backend)
	}

	if c.Scraper.MaxRetries < 1 {
		return fmt.Errorf("SCRAPER_MAX_RETRIES must be at least 1")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

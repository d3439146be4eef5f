package transport

import (
	"context"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/navintel/pricewatch/internal/ratelimit"
)

// BrowserOptions configures the rendered-browser tier.
type BrowserOptions struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
}

func DefaultBrowserOptions() *BrowserOptions {
	return &BrowserOptions{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "en-GB,en;q=0.9",
		TimezoneID:     "Europe/London",
		Locale:         "en-GB",
	}
}

// BrowserFetcher is tier 4: a headless browser with anti-detection
// configuration that renders JavaScript before capturing markup. The
// browser process is launched per fetch and released on every exit
// path, including failures.
type BrowserFetcher struct {
	opts    *BrowserOptions
	limiter *ratelimit.AdaptiveRateLimiter
	logger  *slog.Logger
}

func NewBrowserFetcher(opts *BrowserOptions, logger *slog.Logger) *BrowserFetcher {
	if opts == nil {
		opts = DefaultBrowserOptions()
	}
	return &BrowserFetcher{
		opts: opts,
		// Browser launches are expensive and conspicuous, so they get
		// their own pacing on top of the tier delays, widening when a
		// site keeps rejecting rendered fetches.
		limiter: ratelimit.NewAdaptiveRateLimiter(5*time.Second, 10*time.Second),
		logger:  logger.With("component", "transport.browser"),
	}
}

func (f *BrowserFetcher) Name() string { return "browser" }

func (f *BrowserFetcher) Fetch(ctx context.Context, pageURL string) (markup string, err error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			f.limiter.RecordError()
		} else {
			f.limiter.RecordSuccess()
		}
	}()

	pw, err := playwright.Run()
	if err != nil {
		return "", fmt.Errorf("failed to start playwright: %w", err)
	}
	defer func() {
		if stopErr := pw.Stop(); stopErr != nil && err == nil {
			err = fmt.Errorf("failed to stop playwright: %w", stopErr)
		}
	}()

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(f.opts.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
			"--window-size=1920,1080",
			"--user-agent=" + f.opts.UserAgent,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to launch browser: %w", err)
	}
	defer browser.Close()

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         playwright.String(f.opts.UserAgent),
		JavaScriptEnabled: playwright.Bool(true),
		AcceptDownloads:   playwright.Bool(false),
		Locale:            playwright.String(f.opts.Locale),
		TimezoneId:        playwright.String(f.opts.TimezoneID),
		Viewport: &playwright.Size{
			Width:  f.opts.ViewportWidth,
			Height: f.opts.ViewportHeight,
		},
		ExtraHttpHeaders: map[string]string{
			"Accept-Language": f.opts.AcceptLanguage,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to create browser context: %w", err)
	}
	defer bctx.Close()

	page, err := bctx.NewPage()
	if err != nil {
		return "", fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	page.SetDefaultTimeout(float64(f.opts.Timeout.Milliseconds()))

	if _, err := page.Goto(pageURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(f.opts.Timeout.Milliseconds())),
	}); err != nil {
		return "", fmt.Errorf("failed to navigate: %w", err)
	}

	f.humanize(page)

	content, err := page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to capture page content: %w", err)
	}

	if err := UsableMarkup(content); err != nil {
		return "", err
	}

	f.logger.Info("rendered page captured", "url", pageURL, "bytes", len(content))
	return content, nil
}

// humanize waits a randomized human-like delay and performs a small
// scroll so lazy-loaded price blocks render before capture.
func (f *BrowserFetcher) humanize(page playwright.Page) {
	time.Sleep(time.Duration(1500+mathrand.Intn(2000)) * time.Millisecond)

	page.Evaluate(`window.scrollBy(0, 300 + Math.random() * 400)`)
	time.Sleep(time.Duration(400+mathrand.Intn(600)) * time.Millisecond)
	page.Evaluate(`window.scrollTo(0, 0)`)
}

package transport

import (
	"context"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"net/http"
	"net/http/cookiejar"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	uarand "github.com/EDDYCJY/fake-useragent"
	"github.com/go-resty/resty/v2"
)

// SessionCache holds one persistent client per retailer domain so that
// cookies and session state survive across fetches within a batch run.
// Its lifetime is one run; it is not safe for concurrent use.
type SessionCache struct {
	clients map[string]*resty.Client
	timeout time.Duration
}

func NewSessionCache(timeout time.Duration) *SessionCache {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SessionCache{
		clients: make(map[string]*resty.Client),
		timeout: timeout,
	}
}

// Reset drops every cached client so the next fetch per domain starts
// a fresh session with new cookies and a new fingerprint.
func (sc *SessionCache) Reset() {
	sc.clients = make(map[string]*resty.Client)
}

// Client returns the cached client for a domain, building one on first
// use. Each client gets a cookie jar, a challenge-bypass transport and
// a fingerprint randomized at initialization.
func (sc *SessionCache) Client(domain string) *resty.Client {
	if c, ok := sc.clients[domain]; ok {
		return c
	}

	client := resty.New()
	client.SetTimeout(sc.timeout)

	if jar, err := cookiejar.New(nil); err == nil {
		client.SetCookieJar(jar)
	}
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("User-Agent", uarand.Chrome())
	client.SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	client.SetHeader("Accept-Language", acceptLanguages[mathrand.Intn(len(acceptLanguages))])
	client.SetHeader("Sec-Fetch-Mode", "navigate")
	client.SetHeader("Sec-Fetch-Site", "none")
	client.SetHeader("Sec-Fetch-User", "?1")
	client.SetHeader("DNT", dntValues[mathrand.Intn(len(dntValues))])

	sc.clients[domain] = client
	return client
}

var acceptLanguages = []string{
	"en-GB,en;q=0.9",
	"en-GB,en-US;q=0.9,en;q=0.8",
	"en-GB,en;q=0.5",
}

var dntValues = []string{"1", "0"}

// SessionFetcher is tier 2: a persistent, fingerprint-mimicking client
// with bounded retries and exponential backoff on rate limiting and on
// challenge interstitials.
type SessionFetcher struct {
	sessions   *SessionCache
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger

	// Overridable in tests.
	sleep func(time.Duration)
}

func NewSessionFetcher(sessions *SessionCache, maxRetries int, backoff time.Duration, logger *slog.Logger) *SessionFetcher {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	return &SessionFetcher{
		sessions:   sessions,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger.With("component", "transport.session"),
		sleep:      time.Sleep,
	}
}

func (f *SessionFetcher) Name() string { return "session" }

// ResetSessions discards the per-retailer clients. Called between
// batch runs so session state never outlives the run that built it.
func (f *SessionFetcher) ResetSessions() {
	f.sessions.Reset()
}

func (f *SessionFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	client := f.sessions.Client(Domain(pageURL))

	var lastErr error
	for attempt := 0; attempt < f.maxRetries; attempt++ {
		if attempt > 0 {
			f.sleep(f.backoff * time.Duration(1<<(attempt-1)))
		}

		res, err := client.R().SetContext(ctx).Get(pageURL)
		if err != nil {
			lastErr = fmt.Errorf("failed to fetch URL: %w", err)
			continue
		}

		switch res.StatusCode() {
		case http.StatusOK:
			body := string(res.Body())
			// A successful status wrapping a challenge body is a
			// failure that warrants another attempt, not content.
			if usableErr := UsableMarkup(body); usableErr != nil {
				f.logger.Warn("challenge or stub body on 200", "url", pageURL, "attempt", attempt+1, "error", usableErr)
				lastErr = usableErr
				continue
			}
			return body, nil
		case http.StatusTooManyRequests, http.StatusForbidden, 430:
			f.logger.Warn("rate limited", "url", pageURL, "status", res.StatusCode(), "attempt", attempt+1)
			lastErr = fmt.Errorf("%w: status %d", ErrBlocked, res.StatusCode())
			continue
		default:
			return "", fmt.Errorf("unexpected status code: %d", res.StatusCode())
		}
	}

	return "", fmt.Errorf("retries exhausted: %w", lastErr)
}

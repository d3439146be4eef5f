package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	mathrand "math/rand"
	"net/http"
	"time"

	"golang.org/x/net/html/charset"
)

var headerSets = []map[string]string{
	{
		"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Accept-Language": "en-GB,en;q=0.9",
	},
	{
		"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
		"Accept-Language": "en-GB,en-US;q=0.9,en;q=0.8",
	},
	{
		"User-Agent":      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Accept-Language": "en-US,en;q=0.5",
	},
}

// SimpleFetcher is tier 1: a single GET with rotating browser-like
// headers and a short timeout. No retries of its own.
type SimpleFetcher struct {
	client *http.Client
}

func NewSimpleFetcher(timeout time.Duration) *SimpleFetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SimpleFetcher{
		client: &http.Client{Timeout: timeout},
	}
}

func (f *SimpleFetcher) Name() string { return "simple" }

func (f *SimpleFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	headers := headerSets[mathrand.Intn(len(headerSets))]
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("%w: status %d", ErrBlocked, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := decodeUTF8(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return "", err
	}

	if err := UsableMarkup(body); err != nil {
		return "", err
	}
	return body, nil
}

// decodeUTF8 normalizes a response body to UTF-8 based on its declared
// and sniffed encoding.
func decodeUTF8(r io.Reader, contentType string) (string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	enc, name, _ := charset.DetermineEncoding(raw, contentType)
	if name == "utf-8" {
		return string(raw), nil
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, enc.NewDecoder().Reader(bytes.NewReader(raw))); err != nil {
		return "", fmt.Errorf("failed to convert body to UTF-8: %w", err)
	}
	return buf.String(), nil
}

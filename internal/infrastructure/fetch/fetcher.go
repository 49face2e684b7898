package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// SnippetFetcher downloads a bounded prefix of a page body for verdict
// classification. It never reads more than maxBodyBytes, so a misbehaving
// retailer page cannot blow up memory or latency.
type SnippetFetcher struct {
	httpClient   *http.Client
	maxBodyBytes int64
	rateLimiter  *rate.Limiter
}

// NewSnippetFetcher builds a fetcher with a hard per-request timeout and a
// shared outbound rate limit.
func NewSnippetFetcher(timeout time.Duration, maxBodyBytes int64, outboundRPS float64) *SnippetFetcher {
	return &SnippetFetcher{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxBodyBytes: maxBodyBytes,
		rateLimiter:  rate.NewLimiter(rate.Limit(outboundRPS), 3),
	}
}

// FetchSnippet GETs the URL and returns at most maxBodyBytes of the body.
// Non-2xx statuses are errors so the caller can fold them into an UNKNOWN
// verdict rather than a false INVALID.
func (f *SnippetFetcher) FetchSnippet(ctx context.Context, pageURL string) (string, error) {
	if err := f.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body of %s: %w", pageURL, err)
	}
	return string(body), nil
}

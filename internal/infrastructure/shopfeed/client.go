package shopfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/cartcompass/backend/internal/domain"
)

// Client talks to the shopping feed API (search + product detail endpoints)
// and implements domain.ProductSource.
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	rateLimiter *rate.Limiter
}

// NewClient creates a shopping feed client. outboundRPS caps requests per
// second across all categories of a discovery fan-out.
func NewClient(apiKey, baseURL string, outboundRPS float64) *Client {
	limiter := rate.NewLimiter(rate.Limit(outboundRPS), 5) // burst of 5 requests

	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		apiKey:      apiKey,
		baseURL:     baseURL,
		rateLimiter: limiter,
	}
}

// doRequest executes an HTTP GET request with proper headers and error handling
func (c *Client) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "CartCompass/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}

	return resp, nil
}

// Search runs a shopping search and maps the rows into SearchRecords.
// priceMax > 0 is passed through as a server-side price filter.
func (c *Client) Search(ctx context.Context, query string, priceMax float64) ([]domain.SearchRecord, error) {
	log.Printf("[shopfeed] Search called with query: %q", query)

	endpoint := fmt.Sprintf("%s/v1/shopping/search", c.baseURL)
	params := url.Values{}
	params.Add("q", query)
	params.Add("api_key", c.apiKey)
	params.Add("num", "20")
	if priceMax > 0 {
		params.Add("price_max", strconv.FormatFloat(priceMax, 'f', 2, 64))
	}

	reqURL := fmt.Sprintf("%s?%s", endpoint, params.Encode())

	// Retry up to 3 times for transient failures
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			log.Printf("[shopfeed] Rate limiter error: %v", err)
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		resp, err := c.doRequest(ctx, reqURL)
		if err != nil {
			log.Printf("[shopfeed] Request error (attempt %d): %v", attempt, err)
			lastErr = err
			time.Sleep(time.Duration(attempt*500) * time.Millisecond)
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			log.Printf("[shopfeed] API error (attempt %d) - Status: %d, Body: %s", attempt, resp.StatusCode, truncateBody(body))
			if resp.StatusCode == http.StatusNotFound {
				return nil, domain.ErrNotFound
			}
			lastErr = fmt.Errorf("%w: status %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
			time.Sleep(time.Duration(attempt*500) * time.Millisecond)
			continue
		}

		var searchResp searchResponse
		if err := json.Unmarshal(body, &searchResp); err != nil {
			log.Printf("[shopfeed] JSON decode error: %v", err)
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}

		records := mapSearchResponse(&searchResp)
		log.Printf("[shopfeed] Found %d results for query: %q", len(records), query)
		return records, nil
	}

	log.Printf("[shopfeed] All retries failed for query: %q", query)
	return nil, lastErr
}

// Detail looks up a product's detail/multi-store record by feed product ID.
func (c *Client) Detail(ctx context.Context, productID string) (*domain.DetailRecord, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/shopping/product/%s", c.baseURL, url.PathEscape(productID))
	params := url.Values{}
	params.Add("api_key", c.apiKey)

	reqURL := fmt.Sprintf("%s?%s", endpoint, params.Encode())

	resp, err := c.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d, body: %s", domain.ErrUpstreamUnavailable, resp.StatusCode, truncateBody(body))
	}

	var detailResp productResponse
	if err := json.NewDecoder(resp.Body).Decode(&detailResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	record := mapProductResponse(&detailResp)
	if record == nil {
		return nil, domain.ErrNotFound
	}
	return record, nil
}

func truncateBody(body []byte) string {
	const max = 500
	if len(body) <= max {
		return string(body)
	}
	return string(body[:max]) + "..."
}

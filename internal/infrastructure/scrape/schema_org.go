package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/cartcompass/backend/internal/domain"
)

// SchemaOrgScraper pulls structured product data out of a retailer page's
// JSON-LD blocks. It implements domain.PageScraper.
type SchemaOrgScraper struct {
	httpClient *http.Client
}

func NewSchemaOrgScraper(timeout time.Duration) *SchemaOrgScraper {
	return &SchemaOrgScraper{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Scrape fetches the page and returns the first schema.org Product block
// found. ErrNotFound means the page carried no usable product markup.
func (s *SchemaOrgScraper) Scrape(ctx context.Context, pageURL string) (*domain.ScrapedRecord, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; CartCompass/1.0)")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	record := ExtractProduct(doc)
	if record == nil {
		return nil, domain.ErrNotFound
	}
	record.URL = pageURL
	return record, nil
}

// ExtractProduct scans the document's ld+json scripts for a Product node.
func ExtractProduct(doc *goquery.Document) *domain.ScrapedRecord {
	var record *domain.ScrapedRecord

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var raw interface{}
		if err := json.Unmarshal([]byte(sel.Text()), &raw); err != nil {
			return true // malformed block, keep scanning
		}
		if node := findProductNode(raw); node != nil {
			record = mapProductNode(node)
			return false
		}
		return true
	})

	return record
}

// findProductNode walks a decoded ld+json value looking for a node whose
// @type is (or includes) Product. Handles top-level arrays and @graph.
func findProductNode(raw interface{}) map[string]interface{} {
	switch v := raw.(type) {
	case map[string]interface{}:
		if isProductType(v["@type"]) {
			return v
		}
		if graph, ok := v["@graph"]; ok {
			return findProductNode(graph)
		}
	case []interface{}:
		for _, item := range v {
			if node := findProductNode(item); node != nil {
				return node
			}
		}
	}
	return nil
}

func isProductType(t interface{}) bool {
	switch v := t.(type) {
	case string:
		return v == "Product"
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok && s == "Product" {
				return true
			}
		}
	}
	return false
}

func mapProductNode(node map[string]interface{}) *domain.ScrapedRecord {
	record := &domain.ScrapedRecord{
		Name:        stringField(node, "name"),
		Description: stringField(node, "description"),
		Brand:       nameOf(node["brand"]),
		ImageURL:    firstImage(node["image"]),
	}

	if offers, ok := node["offers"].(map[string]interface{}); ok {
		record.Price = numberField(offers, "price")
		record.Currency = stringField(offers, "priceCurrency")
		record.Availability = availabilityToken(stringField(offers, "availability"))
	} else if offersList, ok := node["offers"].([]interface{}); ok && len(offersList) > 0 {
		if first, ok := offersList[0].(map[string]interface{}); ok {
			record.Price = numberField(first, "price")
			record.Currency = stringField(first, "priceCurrency")
			record.Availability = availabilityToken(stringField(first, "availability"))
		}
	}

	if rating, ok := node["aggregateRating"].(map[string]interface{}); ok {
		record.Rating = numberField(rating, "ratingValue")
		if count := numberField(rating, "reviewCount"); count != nil {
			n := int(*count)
			record.ReviewsCount = &n
		} else if count := numberField(rating, "ratingCount"); count != nil {
			n := int(*count)
			record.ReviewsCount = &n
		}
	}

	if record.Name == "" {
		return nil
	}
	return record
}

func stringField(node map[string]interface{}, key string) string {
	if s, ok := node[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// numberField accepts both JSON numbers and numeric strings; schema.org
// markup in the wild uses either.
func numberField(node map[string]interface{}, key string) *float64 {
	switch v := node[key].(type) {
	case float64:
		return &v
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return &f
		}
	}
	return nil
}

// nameOf unwraps the common brand shapes: a bare string or {"name": ...}.
func nameOf(v interface{}) string {
	switch b := v.(type) {
	case string:
		return strings.TrimSpace(b)
	case map[string]interface{}:
		return stringField(b, "name")
	}
	return ""
}

func firstImage(v interface{}) string {
	switch img := v.(type) {
	case string:
		return img
	case []interface{}:
		for _, item := range img {
			if s, ok := item.(string); ok {
				return s
			}
		}
	}
	return ""
}

// availabilityToken reduces a schema.org availability URL to its final
// segment, e.g. https://schema.org/InStock becomes InStock.
func availabilityToken(raw string) string {
	if raw == "" {
		return ""
	}
	if idx := strings.LastIndex(raw, "/"); idx >= 0 {
		return raw[idx+1:]
	}
	return raw
}

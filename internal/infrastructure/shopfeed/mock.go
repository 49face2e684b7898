package shopfeed

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/cartcompass/backend/internal/domain"
)

// MockSource is a deterministic, network-free ProductSource used when the
// feed runs in mock mode (no API key configured). Results are derived from
// the query so the same request always returns the same rows.
type MockSource struct{}

func NewMockSource() *MockSource {
	return &MockSource{}
}

var mockRetailers = []string{"Amazon", "Target", "REI", "Nordstrom", "Walmart"}

// Search fabricates a handful of plausible rows for the query.
func (m *MockSource) Search(ctx context.Context, query string, priceMax float64) ([]domain.SearchRecord, error) {
	if priceMax <= 0 {
		priceMax = 100
	}
	seed := hashQuery(query)

	records := make([]domain.SearchRecord, 0, 5)
	for i := 0; i < 5; i++ {
		price := priceMax * (0.35 + 0.12*float64((seed+uint32(i))%5))
		rating := 3.6 + 0.3*float64((seed+uint32(i))%5)
		reviews := int((seed+uint32(i*37))%900) + 25
		delivery := "Free delivery in 3 days"
		if i%2 == 1 {
			delivery = "Delivery in 6 days"
		}
		retailer := mockRetailers[(int(seed)+i)%len(mockRetailers)]
		records = append(records, domain.SearchRecord{
			ID:           fmt.Sprintf("mock-%d-%d", seed, i),
			Title:        fmt.Sprintf("%s Option %d", titleCase(query), i+1),
			Source:       retailer,
			Price:        &price,
			Rating:       &rating,
			ReviewsCount: &reviews,
			DeliveryText: delivery,
			ProductURL:   fmt.Sprintf("https://%s.example.com/p/mock-%d-%d", strings.ToLower(retailer), seed, i),
		})
	}
	return records, nil
}

// Detail returns a detail record consistent with the mock search rows.
func (m *MockSource) Detail(ctx context.Context, productID string) (*domain.DetailRecord, error) {
	if !strings.HasPrefix(productID, "mock-") {
		return nil, domain.ErrNotFound
	}
	price := 42.50
	shipping := 0.0
	rating := 4.4
	reviews := 310
	return &domain.DetailRecord{
		ID:           productID,
		Title:        "Mock Product " + productID,
		Source:       "Amazon",
		Price:        &price,
		ShippingCost: &shipping,
		Rating:       &rating,
		ReviewsCount: &reviews,
		DeliveryText: "Free 2-day delivery",
		Brand:        "Acme",
		Description:  "Deterministic development stand-in",
		ProductURL:   "https://amazon.example.com/p/" + productID,
		StoreCount:   3,
	}, nil
}

func hashQuery(query string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(strings.TrimSpace(query))))
	return h.Sum32()
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

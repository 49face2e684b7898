// Package catalog ships a small embedded product dataset used when live
// discovery returns nothing for a must-have category. It needs no network,
// which is what makes the availability guarantee unconditional.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/cartcompass/backend/internal/domain"
)

//go:embed seed.json
var seedData []byte

// EmbeddedCatalog implements domain.FallbackCatalog over the embedded seed.
type EmbeddedCatalog struct {
	byCategory map[domain.Category][]domain.Product
}

type seedEntry struct {
	Category domain.Category  `json:"category"`
	Products []domain.Product `json:"products"`
}

// NewEmbeddedCatalog parses the embedded seed. An error here is a build
// defect, not a runtime condition.
func NewEmbeddedCatalog() (*EmbeddedCatalog, error) {
	var entries []seedEntry
	if err := json.Unmarshal(seedData, &entries); err != nil {
		return nil, fmt.Errorf("parse embedded catalog: %w", err)
	}

	byCategory := make(map[domain.Category][]domain.Product, len(entries))
	for _, entry := range entries {
		byCategory[entry.Category] = append(byCategory[entry.Category], entry.Products...)
	}
	return &EmbeddedCatalog{byCategory: byCategory}, nil
}

// Products returns a copy of the seed entries for a category. Callers get
// their own slice so downstream mutation cannot corrupt the seed.
func (c *EmbeddedCatalog) Products(category domain.Category) []domain.Product {
	seed := c.byCategory[category]
	if len(seed) == 0 {
		return nil
	}
	out := make([]domain.Product, len(seed))
	copy(out, seed)
	return out
}

// Categories lists the categories the seed covers.
func (c *EmbeddedCatalog) Categories() []domain.Category {
	out := make([]domain.Category, 0, len(c.byCategory))
	for category := range c.byCategory {
		out = append(out, category)
	}
	return out
}

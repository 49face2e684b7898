package usecase

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/cartcompass/backend/internal/domain"
	"github.com/cartcompass/backend/internal/infrastructure/metrics"
)

const (
	discoveryConcurrency = 4
	// How many thin search rows per category are worth a page scrape
	maxEnrichPerCategory = 2
)

// DiscoveryService fans out product discovery per category, normalizes the
// raw source records, and guarantees must_have categories end up non-empty
// whenever the static fallback catalog has entries for them.
type DiscoveryService struct {
	source     domain.ProductSource
	scraper    domain.PageScraper
	catalog    domain.FallbackCatalog
	normalizer *Normalizer
}

// NewDiscoveryService creates a discovery service. source and scraper may be
// nil: a nil source means catalog-only discovery (mock mode), a nil scraper
// disables page enrichment.
func NewDiscoveryService(
	source domain.ProductSource,
	scraper domain.PageScraper,
	catalog domain.FallbackCatalog,
	normalizer *Normalizer,
) *DiscoveryService {
	return &DiscoveryService{
		source:     source,
		scraper:    scraper,
		catalog:    catalog,
		normalizer: normalizer,
	}
}

// DiscoverAndNormalize discovers products for every category in the spec.
// Categories run concurrently under a bounded semaphore; a failing source
// degrades that category toward the fallback catalog, never into an error.
func (d *DiscoveryService) DiscoverAndNormalize(
	ctx context.Context,
	spec domain.ShoppingSpec,
	today time.Time,
) (map[domain.Category][]domain.Product, error) {
	if spec.Constraints.Budget.Total <= 0 {
		return nil, domain.ErrInvalidInput
	}
	if len(spec.ItemsNeeded) == 0 {
		return map[domain.Category][]domain.Product{}, nil
	}

	perItemBudget := spec.Constraints.Budget.Total / float64(len(spec.ItemsNeeded))

	results := make([][]domain.Product, len(spec.ItemsNeeded))
	var wg sync.WaitGroup
	sem := make(chan struct{}, discoveryConcurrency)

	for i, item := range spec.ItemsNeeded {
		wg.Add(1)
		go func(idx int, itemSpec domain.CategorySpec) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = d.discoverCategory(ctx, itemSpec, spec, perItemBudget, today)
		}(i, item)
	}
	wg.Wait()

	byCategory := make(map[domain.Category][]domain.Product, len(spec.ItemsNeeded))
	for i, item := range spec.ItemsNeeded {
		byCategory[item.Category] = results[i]
	}
	return byCategory, nil
}

func (d *DiscoveryService) discoverCategory(
	ctx context.Context,
	spec domain.CategorySpec,
	shopping domain.ShoppingSpec,
	perItemBudget float64,
	today time.Time,
) []domain.Product {
	var records []domain.SourceRecord

	if d.source != nil {
		query := buildQuery(spec, shopping.Constraints.Size, shopping.Scenario)
		found, err := d.source.Search(ctx, query, perItemBudget)
		if err != nil {
			log.Printf("[discovery] search %s: %v", spec.Category, err)
		}
		for i := range found {
			record := found[i]
			records = append(records, domain.SourceRecord{Kind: domain.SourceSearch, Search: &record})
		}
	}

	products := d.enrichThin(ctx, d.normalizer.Normalize(ctx, records, spec, today))

	// Availability guarantee: a must_have category is never empty when the
	// fallback catalog covers it
	if len(products) == 0 && spec.Priority == domain.PriorityMustHave && d.catalog != nil {
		for _, p := range d.catalog.Products(spec.Category) {
			fallback := p
			records = append(records, domain.SourceRecord{
				Kind:     domain.SourceFallback,
				Fallback: &domain.FallbackRecord{Product: fallback, Category: spec.Category},
			})
		}
		products = d.normalizer.Normalize(ctx, records, spec, today)
		if len(products) > 0 {
			metrics.FallbackServes.WithLabelValues(string(spec.Category)).Inc()
		}
	}

	metrics.DiscoveryProducts.WithLabelValues(string(spec.Category)).Observe(float64(len(products)))
	return products
}

// enrichThin scrapes structured data for a few thin normalized products and
// fills their gaps in place, so scoring sees ratings and descriptions the
// bare feed omits without minting duplicate offers.
func (d *DiscoveryService) enrichThin(ctx context.Context, products []domain.Product) []domain.Product {
	if d.scraper == nil {
		return products
	}

	enriched := 0
	for i := range products {
		if enriched >= maxEnrichPerCategory {
			break
		}
		if products[i].ProductURL == "" || products[i].Rating != nil {
			continue
		}
		scraped, err := d.scraper.Scrape(ctx, products[i].ProductURL)
		if err != nil || scraped == nil {
			continue
		}
		products[i] = Enrich(products[i], scraped)
		enriched++
	}
	return products
}

// buildQuery assembles a feed query from the category spec and constraints.
// Size joins only when the spec carries a concrete one.
func buildQuery(spec domain.CategorySpec, size, scenario string) string {
	categoryName := strings.ReplaceAll(string(spec.Category), "_", " ")

	parts := make([]string, 0, 4)
	if len(spec.Requirements) > 0 {
		parts = append(parts, strings.Join(spec.Requirements, " "))
	}
	if scenario != "" {
		parts = append(parts, strings.TrimSpace(strings.ReplaceAll(scenario, "_", " ")))
	}
	parts = append(parts, categoryName)
	if trimmed := strings.TrimSpace(size); trimmed != "" && !strings.EqualFold(trimmed, "N/A") {
		parts = append(parts, trimmed)
	}

	query := strings.TrimSpace(strings.Join(parts, " "))
	if query == "" {
		return categoryName
	}
	return query
}

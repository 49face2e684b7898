package usecase

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/cartcompass/backend/internal/domain"
)

var dayCountRegex = regexp.MustCompile(`(\d+)\s*(?:business\s+)?days?`)

// Brands commonly seen in feed titles; used when a source carries no
// explicit brand field.
var knownBrands = []string{
	"Arc'teryx", "Patagonia", "The North Face", "Helly Hansen",
	"Columbia", "Burton", "Smith", "Oakley", "Giro", "Anon",
	"Black Diamond", "Hestra", "Dakine", "Smartwool", "Darn Tough",
	"Icebreaker", "Under Armour", "BUFF", "Outdoor Research",
	"Logitech", "Sony", "Bose", "Anker", "Samsung", "Dell", "HP",
}

// Sources get a detail rank so merging can prefer richer records: a
// detail/multi-store lookup beats scraped structured data beats a bare
// search row beats a fallback entry.
var sourceDetailRank = map[domain.SourceKind]int{
	domain.SourceDetail:   3,
	domain.SourceScraped:  2,
	domain.SourceSearch:   1,
	domain.SourceFallback: 0,
}

// Normalizer converts heterogeneous source records into canonical Products,
// merges duplicate offers, and gates product URLs through the link validator.
type Normalizer struct {
	validator *LinkValidator
}

// NewNormalizer creates a normalizer. validator may be nil, in which case no
// link gating happens (useful for offline normalization).
func NewNormalizer(validator *LinkValidator) *Normalizer {
	return &Normalizer{validator: validator}
}

// Normalize maps every record through its kind's adapter, drops records
// without a price, merges near-identical offers, and drops records whose URL
// the validator marks INVALID. UNKNOWN-link products are kept but flagged.
// A single malformed record never fails the batch.
func (n *Normalizer) Normalize(
	ctx context.Context,
	records []domain.SourceRecord,
	spec domain.CategorySpec,
	today time.Time,
) []domain.Product {
	type candidate struct {
		product domain.Product
		kind    domain.SourceKind
	}

	var candidates []candidate
	for _, record := range records {
		product, ok := n.mapRecord(record, spec, today)
		if !ok {
			continue
		}
		if product.Price <= 0 {
			// Price is mandatory; a product we cannot pay for cannot be ranked
			log.Printf("[normalizer] dropping %q from %s: no price", product.Name, product.Retailer)
			continue
		}
		candidates = append(candidates, candidate{product: product, kind: record.Kind})
	}

	// Merge near-identical offers from the same retailer
	var merged []candidate
	for _, cand := range candidates {
		matched := false
		for i, existing := range merged {
			if !sameOffer(existing.product, cand.product) {
				continue
			}
			matched = true

			winner, loser := existing, cand
			if sourceDetailRank[cand.kind] > sourceDetailRank[existing.kind] {
				winner, loser = cand, existing
			}
			// Keep the lower total (price + shipping) as canonical
			if totalPrice(loser.product) < totalPrice(winner.product) {
				winner.product.Price = loser.product.Price
				winner.product.DeliveryCost = loser.product.DeliveryCost
			}
			winner.product = fillGaps(winner.product, loser.product)
			merged[i] = winner
			break
		}
		if !matched {
			merged = append(merged, cand)
		}
	}

	products := make([]domain.Product, 0, len(merged))
	for _, cand := range merged {
		product := cand.product
		if product.ProductURL != "" && n.validator != nil {
			verdict := n.validator.Validate(ctx, product.ProductURL)
			if verdict.State == domain.LinkInvalid {
				log.Printf("[normalizer] dropping %q: dead link (%s)", product.Name, verdict.Reason)
				continue
			}
			product.LinkState = verdict.State
		}
		products = append(products, product)
	}
	return products
}

// mapRecord dispatches to the explicit per-kind adapter.
func (n *Normalizer) mapRecord(record domain.SourceRecord, spec domain.CategorySpec, today time.Time) (domain.Product, bool) {
	switch record.Kind {
	case domain.SourceSearch:
		if record.Search == nil {
			return domain.Product{}, false
		}
		return mapSearchRecord(*record.Search, today), true
	case domain.SourceDetail:
		if record.Detail == nil {
			return domain.Product{}, false
		}
		return mapDetailRecord(*record.Detail, today), true
	case domain.SourceScraped:
		if record.Scraped == nil {
			return domain.Product{}, false
		}
		return MapScrapedRecord(*record.Scraped), true
	case domain.SourceFallback:
		if record.Fallback == nil {
			return domain.Product{}, false
		}
		return record.Fallback.Product, true
	default:
		log.Printf("[normalizer] unknown source kind %q", record.Kind)
		return domain.Product{}, false
	}
}

func mapSearchRecord(r domain.SearchRecord, today time.Time) domain.Product {
	p := domain.Product{
		Name:          r.Title,
		Retailer:      r.Source,
		OriginalPrice: r.OriginalPrice,
		Rating:        r.Rating,
		ReviewsCount:  r.ReviewsCount,
		DeliveryText:  r.DeliveryText,
		ImageURL:      r.ThumbnailURL,
		ProductURL:    r.ProductURL,
		Brand:         extractBrand(r.Title),
	}
	p.ID = recordID("search", r.ID, r.ProductURL, r.Title)
	if r.Price != nil {
		p.Price = *r.Price
	}
	p.DeliveryDays = parseDeliveryDays(r.DeliveryText, today)
	return p
}

func mapDetailRecord(r domain.DetailRecord, today time.Time) domain.Product {
	p := domain.Product{
		Name:         r.Title,
		Retailer:     r.Source,
		Rating:       r.Rating,
		ReviewsCount: r.ReviewsCount,
		DeliveryText: r.DeliveryText,
		DeliveryCost: r.ShippingCost,
		Sizes:        r.Sizes,
		Colors:       r.Colors,
		Brand:        r.Brand,
		Description:  r.Description,
		ProductURL:   r.ProductURL,
		Highlights:   r.Highlights,
	}
	p.ID = recordID("detail", r.ID, r.ProductURL, r.Title)
	if p.Brand == "" {
		p.Brand = extractBrand(r.Title)
	}
	if r.Price != nil {
		p.Price = *r.Price
	}
	p.DeliveryDays = parseDeliveryDays(r.DeliveryText, today)
	return p
}

// MapScrapedRecord converts schema.org structured data into a Product. It is
// exported because the add-by-URL flow mints products directly from a scrape.
func MapScrapedRecord(r domain.ScrapedRecord) domain.Product {
	p := domain.Product{
		Name:         r.Name,
		Rating:       r.Rating,
		ReviewsCount: r.ReviewsCount,
		Brand:        r.Brand,
		Description:  r.Description,
		ImageURL:     r.ImageURL,
		ProductURL:   r.URL,
		Retailer:     retailerFromURL(r.URL),
	}
	p.ID = recordID("scraped", "", r.URL, r.Name)
	if r.Price != nil {
		p.Price = *r.Price
	}
	return p
}

// Enrich fills gaps in a product from scraped structured data, producing a
// new Product rather than mutating the input.
func Enrich(product domain.Product, scraped *domain.ScrapedRecord) domain.Product {
	if scraped == nil {
		return product
	}
	enriched := product
	if enriched.Description == "" {
		enriched.Description = scraped.Description
	}
	if enriched.Brand == "" {
		enriched.Brand = scraped.Brand
	}
	if enriched.Rating == nil && scraped.Rating != nil {
		enriched.Rating = scraped.Rating
	}
	if enriched.ReviewsCount == nil && scraped.ReviewsCount != nil {
		enriched.ReviewsCount = scraped.ReviewsCount
	}
	return enriched
}

// sameOffer reports whether two products are the same underlying offer:
// the same product URL, or the same retailer with either the same name or a
// near-identical name and price.
func sameOffer(a, b domain.Product) bool {
	if a.ProductURL != "" && a.ProductURL == b.ProductURL {
		return true
	}
	if !strings.EqualFold(a.Retailer, b.Retailer) {
		return false
	}
	nameA, nameB := strings.ToLower(strings.TrimSpace(a.Name)), strings.ToLower(strings.TrimSpace(b.Name))
	if nameA == nameB {
		return true
	}
	if strings.HasPrefix(nameA, nameB) || strings.HasPrefix(nameB, nameA) {
		higher := a.Price
		if b.Price > higher {
			higher = b.Price
		}
		if higher > 0 {
			diff := a.Price - b.Price
			if diff < 0 {
				diff = -diff
			}
			return diff/higher < 0.01
		}
	}
	return false
}

// fillGaps copies fields the merge winner lacks from the losing duplicate,
// so a thin search row merged with a richer record keeps the richness.
func fillGaps(winner, loser domain.Product) domain.Product {
	if winner.Rating == nil {
		winner.Rating = loser.Rating
	}
	if winner.ReviewsCount == nil {
		winner.ReviewsCount = loser.ReviewsCount
	}
	if winner.Brand == "" {
		winner.Brand = loser.Brand
	}
	if winner.Description == "" {
		winner.Description = loser.Description
	}
	if winner.ImageURL == "" {
		winner.ImageURL = loser.ImageURL
	}
	if winner.OriginalPrice == nil {
		winner.OriginalPrice = loser.OriginalPrice
	}
	if winner.DeliveryDays == nil {
		winner.DeliveryDays = loser.DeliveryDays
		winner.DeliveryText = loser.DeliveryText
	}
	return winner
}

func totalPrice(p domain.Product) float64 {
	total := p.Price
	if p.DeliveryCost != nil {
		total += *p.DeliveryCost
	}
	return total
}

func recordID(kind, id, productURL, title string) string {
	if id != "" {
		return fmt.Sprintf("%s-%s", kind, id)
	}
	seed := productURL
	if seed == "" {
		seed = title
	}
	return fmt.Sprintf("%s-%s", kind, verdictCacheKey(seed)[5:17])
}

func retailerFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return "unknown"
	}
	return strings.TrimPrefix(parsed.Host, "www.")
}

func extractBrand(title string) string {
	lower := strings.ToLower(title)
	for _, brand := range knownBrands {
		if strings.Contains(lower, strings.ToLower(brand)) {
			return brand
		}
	}
	return ""
}

// parseDeliveryDays reads an estimated day count out of feed delivery text
// like "Free 3-day delivery" or "Arrives Fri".
func parseDeliveryDays(deliveryText string, today time.Time) *int {
	if deliveryText == "" {
		return nil
	}
	text := strings.ToLower(deliveryText)

	switch {
	case strings.Contains(text, "next-day"), strings.Contains(text, "tomorrow"), strings.Contains(text, "1-day"):
		return intPtr(1)
	case strings.Contains(text, "2-day"), strings.Contains(text, "2 day"):
		return intPtr(2)
	case strings.Contains(text, "3-day"), strings.Contains(text, "3 day"):
		return intPtr(3)
	}

	if match := dayCountRegex.FindStringSubmatch(text); match != nil {
		days := 0
		fmt.Sscanf(match[1], "%d", &days)
		return intPtr(days)
	}

	weekdays := []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}
	for i, day := range weekdays {
		if strings.Contains(text, day) {
			// time.Weekday starts at Sunday; the table starts at Monday
			current := (int(today.Weekday()) + 6) % 7
			ahead := (i - current + 7) % 7
			if ahead == 0 {
				ahead = 7
			}
			return intPtr(ahead)
		}
	}
	return nil
}

func intPtr(v int) *int { return &v }

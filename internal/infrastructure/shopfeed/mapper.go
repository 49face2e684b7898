package shopfeed

import (
	"github.com/cartcompass/backend/internal/domain"
)

// searchResponse is the wire shape of the feed's shopping search endpoint.
type searchResponse struct {
	ShoppingResults []shoppingResult `json:"shopping_results"`
}

type shoppingResult struct {
	ProductID      string   `json:"product_id"`
	Title          string   `json:"title"`
	Source         string   `json:"source"`
	ExtractedPrice *float64 `json:"extracted_price"`
	OldPrice       *float64 `json:"extracted_old_price"`
	Rating         *float64 `json:"rating"`
	Reviews        *int     `json:"reviews"`
	Delivery       string   `json:"delivery"`
	Thumbnail      string   `json:"thumbnail"`
	ProductLink    string   `json:"product_link"`
	Link           string   `json:"link"`
}

// productResponse is the wire shape of the feed's product detail endpoint.
type productResponse struct {
	ProductResults productResults `json:"product_results"`
	Sellers        []seller       `json:"sellers_results"`
}

type productResults struct {
	ProductID   string   `json:"product_id"`
	Title       string   `json:"title"`
	Brand       string   `json:"brand"`
	Description string   `json:"description"`
	Rating      *float64 `json:"rating"`
	Reviews     *int     `json:"reviews"`
	Highlights  []string `json:"highlights"`
	Sizes       []string `json:"sizes"`
	Colors      []string `json:"colors"`
}

type seller struct {
	Name         string   `json:"name"`
	BasePrice    *float64 `json:"base_price"`
	ShippingCost *float64 `json:"shipping_cost"`
	TotalPrice   *float64 `json:"total_price"`
	Delivery     string   `json:"delivery"`
	Link         string   `json:"link"`
}

// mapSearchResponse converts feed search rows into domain SearchRecords.
// Rows without a title are dropped here; price filtering belongs downstream.
func mapSearchResponse(resp *searchResponse) []domain.SearchRecord {
	records := make([]domain.SearchRecord, 0, len(resp.ShoppingResults))
	for _, row := range resp.ShoppingResults {
		if row.Title == "" {
			continue
		}
		link := row.ProductLink
		if link == "" {
			link = row.Link
		}
		records = append(records, domain.SearchRecord{
			ID:            row.ProductID,
			Title:         row.Title,
			Source:        row.Source,
			Price:         row.ExtractedPrice,
			OriginalPrice: row.OldPrice,
			Rating:        row.Rating,
			ReviewsCount:  row.Reviews,
			DeliveryText:  row.Delivery,
			ThumbnailURL:  row.Thumbnail,
			ProductURL:    link,
		})
	}
	return records
}

// mapProductResponse flattens a detail response around its best seller. The
// best offer is the one with the lowest landed price (base plus shipping).
func mapProductResponse(resp *productResponse) *domain.DetailRecord {
	pr := resp.ProductResults
	if pr.Title == "" {
		return nil
	}

	record := &domain.DetailRecord{
		ID:           pr.ProductID,
		Title:        pr.Title,
		Brand:        pr.Brand,
		Description:  pr.Description,
		Rating:       pr.Rating,
		ReviewsCount: pr.Reviews,
		Highlights:   pr.Highlights,
		Sizes:        pr.Sizes,
		Colors:       pr.Colors,
		StoreCount:   len(resp.Sellers),
	}

	best := bestSeller(resp.Sellers)
	if best != nil {
		record.Source = best.Name
		record.Price = best.BasePrice
		record.ShippingCost = best.ShippingCost
		record.DeliveryText = best.Delivery
		record.ProductURL = best.Link
	}
	return record
}

func bestSeller(sellers []seller) *seller {
	var best *seller
	var bestTotal float64
	for i := range sellers {
		s := &sellers[i]
		total, ok := landedPrice(s)
		if !ok {
			continue
		}
		if best == nil || total < bestTotal {
			best = s
			bestTotal = total
		}
	}
	return best
}

func landedPrice(s *seller) (float64, bool) {
	if s.TotalPrice != nil {
		return *s.TotalPrice, true
	}
	if s.BasePrice == nil {
		return 0, false
	}
	total := *s.BasePrice
	if s.ShippingCost != nil {
		total += *s.ShippingCost
	}
	return total, true
}

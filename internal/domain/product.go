package domain

import "time"

// Product is the canonical retailer offer record every source normalizes into.
// Products are immutable once constructed: refreshed data produces a new
// Product rather than mutating an existing one.
type Product struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Retailer      string   `json:"retailer"`
	Price         float64  `json:"price"`
	OriginalPrice *float64 `json:"original_price,omitempty"`
	Rating        *float64 `json:"rating,omitempty"`
	ReviewsCount  *int     `json:"reviews_count,omitempty"`
	DeliveryDays  *int     `json:"delivery_days,omitempty"`
	DeliveryCost  *float64 `json:"delivery_cost,omitempty"`
	DeliveryText  string   `json:"delivery_text,omitempty"`
	Sizes         []string `json:"sizes,omitempty"`
	Colors        []string `json:"colors,omitempty"`
	Brand         string   `json:"brand,omitempty"`
	Description   string   `json:"description,omitempty"`
	ImageURL      string   `json:"image_url,omitempty"`
	ProductURL    string   `json:"product_url,omitempty"`
	Highlights    []string `json:"highlights,omitempty"`

	// LinkState carries the validator's verdict for ProductURL at
	// normalization time. UNKNOWN products may be scored but must not be
	// presented as verified.
	LinkState VerdictState `json:"link_state,omitempty"`
}

// CategorySpec is one requested item role, supplied by the external intent
// layer. Read-only input to the core.
type CategorySpec struct {
	Category     Category `json:"category"`
	Priority     Priority `json:"priority"`
	Requirements []string `json:"requirements,omitempty"`
}

// Budget is the total spend ceiling for a shopping spec.
type Budget struct {
	Total    float64 `json:"total"`
	Currency string  `json:"currency"`
}

// Constraints are the cross-category limits for a shopping spec.
type Constraints struct {
	Budget           Budget    `json:"budget"`
	Size             string    `json:"size,omitempty"`
	DeliveryDeadline time.Time `json:"delivery_deadline"`
	StylePreferences []string  `json:"style_preferences,omitempty"`
	BrandPreferences []string  `json:"brand_preferences,omitempty"`
	ColorPreferences []string  `json:"color_preferences,omitempty"`
}

// ShoppingSpec is a confirmed multi-category shopping request.
type ShoppingSpec struct {
	Scenario    string         `json:"scenario,omitempty"`
	ItemsNeeded []CategorySpec `json:"items_needed"`
	Constraints Constraints    `json:"constraints"`
}

// Spec returns the CategorySpec for a category, falling back to a
// nice_to_have spec with no requirements when the category was not in the
// confirmed list (e.g. an item added by URL).
func (s ShoppingSpec) Spec(category Category) CategorySpec {
	for _, item := range s.ItemsNeeded {
		if item.Category == category {
			return item
		}
	}
	return CategorySpec{Category: category, Priority: PriorityNiceToHave}
}

// LikedSnapshot is the minimal immutable projection of a product a user has
// liked. Only the acting user's own snapshots ever feed the recommender.
type LikedSnapshot struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Retailer string  `json:"retailer"`
	Price    float64 `json:"price"`
}

package domain

// MaxAlternatives caps the alternatives list kept on each cart item.
const MaxAlternatives = 5

// CartItem is one category's selection plus its capped alternative list,
// sorted descending by score.
type CartItem struct {
	Category     Category        `json:"category"`
	Selected     RankedProduct   `json:"selected"`
	Alternatives []RankedProduct `json:"alternatives"`
}

// Cart is the assembled multi-retailer selection, one item per category.
type Cart struct {
	Items             []CartItem `json:"items"`
	TotalPrice        float64    `json:"total_price"`
	BudgetRemaining   float64    `json:"budget_remaining"`
	RetailersInvolved []string   `json:"retailers_involved"`
	AllWithinDeadline bool       `json:"all_within_deadline"`
}

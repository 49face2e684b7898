package domain

// Factor weights of the composite score. The base five sum to 100; the
// user-preference sub-score is additive when a profile is supplied and the
// composite is capped at 100.
const (
	WeightReviews        = 35.0
	WeightPrice          = 25.0
	WeightDelivery       = 25.0
	WeightPreference     = 10.0
	WeightCoherence      = 5.0
	WeightUserPreference = 5.0
)

// ScoreBreakdown is the per-factor decomposition of a composite score. Each
// value is already weighted (reviews out of 35, price out of 25, and so on).
// UserPreference is nil when no user profile participated in scoring.
type ScoreBreakdown struct {
	Reviews        float64  `json:"reviews"`
	Price          float64  `json:"price"`
	Delivery       float64  `json:"delivery"`
	Preference     float64  `json:"preference"`
	Coherence      float64  `json:"coherence"`
	UserPreference *float64 `json:"user_preference,omitempty"`
}

// Sum adds the weighted sub-scores, including user preference when present.
func (b ScoreBreakdown) Sum() float64 {
	total := b.Reviews + b.Price + b.Delivery + b.Preference + b.Coherence
	if b.UserPreference != nil {
		total += *b.UserPreference
	}
	return total
}

// RankedProduct wraps a product with its score and ordinal rank within its
// category pool. Rank is recomputed whenever the pool or constraints change.
type RankedProduct struct {
	Product    Product        `json:"product"`
	TotalScore float64        `json:"total_score"`
	Breakdown  ScoreBreakdown `json:"breakdown"`
	Rank       int            `json:"rank"`
}

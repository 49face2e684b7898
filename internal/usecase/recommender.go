package usecase

import (
	"math"
	"strings"

	"github.com/cartcompass/backend/internal/domain"
)

// Recommender weights: retailer affinity dominates, price similarity refines.
const (
	retailerAffinityWeight = 0.6
	priceSimilarityWeight  = 0.4
	userPreferenceScale    = 5.0
)

// Recommender derives a 0-5 user-preference sub-score from the acting user's
// liked-product snapshots. It never aggregates across users.
type Recommender struct{}

// NewRecommender creates a recommender.
func NewRecommender() *Recommender {
	return &Recommender{}
}

// UserPreferenceScore returns 0 for an empty snapshot list, otherwise blends
// retailer membership with closeness to the average liked price.
func (r *Recommender) UserPreferenceScore(product domain.Product, liked []domain.LikedSnapshot) float64 {
	if len(liked) == 0 {
		return 0
	}

	retailerMatch := 0.0
	sum := 0.0
	for _, s := range liked {
		if strings.EqualFold(s.Retailer, product.Retailer) {
			retailerMatch = 1.0
		}
		sum += s.Price
	}
	avgPrice := sum / float64(len(liked))

	priceSim := 0.0
	if avgPrice > 0 {
		diff := math.Abs(product.Price-avgPrice) / avgPrice
		priceSim = math.Max(0, math.Min(1, 1.0-diff))
	}

	raw := retailerAffinityWeight*retailerMatch + priceSimilarityWeight*priceSim
	score := math.Min(userPreferenceScale, raw*userPreferenceScale)
	return math.Round(score*10) / 10
}

package usecase

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/cartcompass/backend/internal/domain"
)

// Factor constants on the unit scale, applied before weighting.
const (
	ratingWeight      = 0.7 // rating vs review-volume blend
	volumeWeight      = 0.3
	reviewVolumeCap   = 500.0 // review count confidence saturates here
	neutralNoReviews  = 0.3   // penalty, not disqualification
	underBudgetSlope  = 0.5
	discountBonusRate = 0.2
	deliveryGraceDays = 2
	riskyDelivery     = 0.5
	lateDelivery      = 0.1
	unknownDelivery   = 0.4
	freeShippingBonus = 0.1
	neutralPreference = 0.5
	baseCoherence     = 0.5
	brandBonus        = 0.3
	colorBonus        = 0.2
)

// ScoreInput is everything scoring depends on besides the product itself.
// Today is passed in explicitly so the deadline math is a pure function of
// its inputs and tests can fix it.
type ScoreInput struct {
	Spec              domain.CategorySpec
	Constraints       domain.Constraints
	CurrentSelections []domain.Product
	Liked             []domain.LikedSnapshot // nil means no user profile
	NumCategories     int
	Today             time.Time
}

// ScoringService computes the deterministic 0-100 composite score and its
// factor breakdown.
type ScoringService struct {
	recommender *Recommender
}

// NewScoringService creates a scoring service with its recommender sub-routine.
func NewScoringService() *ScoringService {
	return &ScoringService{recommender: NewRecommender()}
}

// Score computes the weighted composite and per-factor breakdown for one
// product. Sub-scores are rounded to one decimal; the total is the sum of the
// rounded sub-scores, capped at 100, so breakdown and total always agree.
func (s *ScoringService) Score(product domain.Product, in ScoreInput) (float64, domain.ScoreBreakdown) {
	breakdown := domain.ScoreBreakdown{
		Reviews:    round1(reviewFactor(product) * domain.WeightReviews),
		Price:      round1(priceFactor(product, in) * domain.WeightPrice),
		Delivery:   round1(deliveryFactor(product, in) * domain.WeightDelivery),
		Preference: round1(preferenceFactor(product, in.Spec) * domain.WeightPreference),
		Coherence:  round1(coherenceFactor(product, in.CurrentSelections) * domain.WeightCoherence),
	}

	if in.Liked != nil {
		up := s.recommender.UserPreferenceScore(product, in.Liked)
		breakdown.UserPreference = &up
	}

	total := round1(breakdown.Sum())
	if total > 100 {
		total = 100
	}
	return total, breakdown
}

// RankCategory scores a pool and orders it: higher total first, then lower
// price, then stable input order. Ranks are ordinal from 1.
func (s *ScoringService) RankCategory(products []domain.Product, in ScoreInput) []domain.RankedProduct {
	ranked := make([]domain.RankedProduct, 0, len(products))
	for _, p := range products {
		total, breakdown := s.Score(p, in)
		ranked = append(ranked, domain.RankedProduct{
			Product:    p,
			TotalScore: total,
			Breakdown:  breakdown,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].TotalScore != ranked[j].TotalScore {
			return ranked[i].TotalScore > ranked[j].TotalScore
		}
		return ranked[i].Product.Price < ranked[j].Product.Price
	})

	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// Rank ranks every category pool. Must-have categories are ranked first and
// each category's top pick joins the running selection set, so coherence of
// later categories reflects the cart taking shape.
func (s *ScoringService) Rank(
	pools map[domain.Category][]domain.Product,
	spec domain.ShoppingSpec,
	liked []domain.LikedSnapshot,
	today time.Time,
) (map[domain.Category][]domain.RankedProduct, error) {
	if spec.Constraints.Budget.Total <= 0 {
		return nil, domain.ErrInvalidInput
	}

	numCategories := len(spec.ItemsNeeded)
	if numCategories == 0 {
		numCategories = len(pools)
	}

	order := make([]domain.Category, 0, len(pools))
	for category := range pools {
		order = append(order, category)
	}
	sort.Slice(order, func(i, j int) bool {
		pi, pj := spec.Spec(order[i]).Priority, spec.Spec(order[j]).Priority
		if pi != pj {
			return pi == domain.PriorityMustHave
		}
		return order[i] < order[j]
	})

	ranked := make(map[domain.Category][]domain.RankedProduct, len(pools))
	var selections []domain.Product
	for _, category := range order {
		in := ScoreInput{
			Spec:              spec.Spec(category),
			Constraints:       spec.Constraints,
			CurrentSelections: selections,
			Liked:             liked,
			NumCategories:     numCategories,
			Today:             today,
		}
		pool := s.RankCategory(pools[category], in)
		ranked[category] = pool
		if len(pool) > 0 {
			selections = append(selections, pool[0].Product)
		}
	}
	return ranked, nil
}

// reviewFactor blends normalized rating with review-volume confidence.
// Volume confidence saturates past ~500 reviews. Missing data is a fixed
// neutral penalty rather than zero.
func reviewFactor(p domain.Product) float64 {
	if p.Rating == nil || p.ReviewsCount == nil {
		return neutralNoReviews
	}
	ratingNorm := *p.Rating / 5.0
	volume := math.Min(1.0, math.Log(float64(*p.ReviewsCount)+1)/math.Log(reviewVolumeCap))
	return ratingWeight*ratingNorm + volumeWeight*volume
}

// priceFactor rewards being under the per-item budget without rewarding
// being free, penalizes overshoot linearly, and adds a capped discount bonus.
func priceFactor(p domain.Product, in ScoreInput) float64 {
	perItem := in.Constraints.Budget.Total / math.Max(float64(in.NumCategories), 1)
	ratio := p.Price / math.Max(perItem, 1)

	var score float64
	if ratio <= 1.0 {
		score = 1.0 - ratio*underBudgetSlope
	} else {
		score = math.Max(0, 1.0-(ratio-1.0))
	}

	if p.OriginalPrice != nil && *p.OriginalPrice > p.Price {
		discount := (*p.OriginalPrice - p.Price) / *p.OriginalPrice
		score = math.Min(1.0, score+discount*discountBonusRate)
	}
	return score
}

// deliveryFactor is binary-with-grace against the days left until deadline.
func deliveryFactor(p domain.Product, in ScoreInput) float64 {
	var score float64
	if p.DeliveryDays == nil {
		score = unknownDelivery
	} else {
		daysLeft := daysUntil(in.Today, in.Constraints.DeliveryDeadline)
		switch {
		case *p.DeliveryDays <= daysLeft:
			score = 1.0
		case *p.DeliveryDays <= daysLeft+deliveryGraceDays:
			score = riskyDelivery
		default:
			score = lateDelivery
		}
	}

	if p.DeliveryCost != nil && *p.DeliveryCost == 0 {
		score = math.Min(1.0, score+freeShippingBonus)
	}
	return score
}

// preferenceFactor is the fraction of requirement tokens found in the
// product's searchable text. No requirements means neutral.
func preferenceFactor(p domain.Product, spec domain.CategorySpec) float64 {
	if len(spec.Requirements) == 0 {
		return neutralPreference
	}
	searchable := strings.ToLower(p.Name + " " + p.Description + " " + strings.Join(p.Highlights, " "))
	matched := 0
	for _, req := range spec.Requirements {
		if strings.Contains(searchable, strings.ToLower(req)) {
			matched++
		}
	}
	return float64(matched) / float64(len(spec.Requirements))
}

// coherenceFactor rewards brand and color consistency with the current cart
// selections. Neutral when the cart is empty.
func coherenceFactor(p domain.Product, selections []domain.Product) float64 {
	score := baseCoherence
	if len(selections) == 0 {
		return score
	}

	if p.Brand != "" {
		for _, sel := range selections {
			if sel.Brand != "" && strings.EqualFold(sel.Brand, p.Brand) {
				score += brandBonus
				break
			}
		}
	}

	if len(p.Colors) > 0 {
		cartColors := make(map[string]bool)
		for _, sel := range selections {
			for _, c := range sel.Colors {
				cartColors[strings.ToLower(c)] = true
			}
		}
		for _, c := range p.Colors {
			if cartColors[strings.ToLower(c)] {
				score += colorBonus
				break
			}
		}
	}

	return math.Min(1.0, score)
}

// daysUntil counts whole calendar days from today to the deadline.
func daysUntil(today, deadline time.Time) int {
	t := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	d := time.Date(deadline.Year(), deadline.Month(), deadline.Day(), 0, 0, 0, 0, time.UTC)
	return int(d.Sub(t).Hours() / 24)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

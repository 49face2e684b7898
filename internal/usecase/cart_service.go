package usecase

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/cartcompass/backend/internal/domain"
)

const (
	maxBudgetFitAttempts = 20
	minRetailersTarget   = 3
	// Candidates within this many composite points are "near-equal";
	// the cheapest of them wins during budget optimization.
	nearEqualScoreBand = 1.0
)

// CartContext carries the spec-level inputs cart operations need to re-score
// pools after a mutation. Today is explicit for the same reason it is in
// scoring: deadline math must be reproducible.
type CartContext struct {
	Spec  domain.ShoppingSpec
	Liked []domain.LikedSnapshot
	Today time.Time
}

// CartService assembles carts from ranked pools and re-optimizes them under
// budget and delivery objectives. All operations are total over their input:
// "no improvement found" returns the cart unchanged, never an error.
type CartService struct {
	scorer *ScoringService
}

// NewCartService creates a cart service backed by the given scorer.
func NewCartService(scorer *ScoringService) *CartService {
	return &CartService{scorer: scorer}
}

// Build selects the rank-1 product per category, fits the cart under the
// budget ceiling by swapping the most expensive selections for cheaper
// alternatives, then nudges toward retailer diversity.
func (c *CartService) Build(pools map[domain.Category][]domain.RankedProduct, ctx CartContext) domain.Cart {
	items := make([]domain.CartItem, 0, len(pools))
	for _, category := range c.categoryOrder(pools, ctx.Spec) {
		pool := pools[category]
		if len(pool) == 0 {
			continue
		}
		items = append(items, domain.CartItem{
			Category:     category,
			Selected:     pool[0],
			Alternatives: alternativesFor(pool, pool[0].Product.ID),
		})
	}

	budget := ctx.Spec.Constraints.Budget.Total
	items = c.fitBudget(items, pools, budget)
	items = c.diversifyRetailers(items, pools)

	return c.totals(items, budget, ctx)
}

// Swap replaces one category's selection with a product from that category's
// known pool. Coherence depends on the whole cart's brand and color set, so
// every surviving category's pool is re-scored and re-ranked afterwards; the
// updated pools are returned alongside the cart.
func (c *CartService) Swap(
	cart domain.Cart,
	pools map[domain.Category][]domain.RankedProduct,
	category domain.Category,
	newProductID string,
	ctx CartContext,
) (domain.Cart, map[domain.Category][]domain.RankedProduct, error) {
	idx := -1
	for i, item := range cart.Items {
		if item.Category == category {
			idx = i
			break
		}
	}
	if idx < 0 {
		return cart, pools, fmt.Errorf("category %s not in cart: %w", category, domain.ErrNotFound)
	}

	target, ok := findInPool(pools[category], newProductID)
	if !ok {
		return cart, pools, fmt.Errorf("product %s not in %s pool: %w", newProductID, category, domain.ErrNotFound)
	}

	items := make([]domain.CartItem, len(cart.Items))
	copy(items, cart.Items)
	items[idx].Selected = target

	items, pools = c.rescore(items, pools, ctx)
	return c.totals(items, ctx.Spec.Constraints.Budget.Total, ctx), pools, nil
}

// AddItem puts a pool product into the cart, replacing the category's current
// selection or creating the category entry when the cart lacks one. Pools are
// re-scored the same way Swap does.
func (c *CartService) AddItem(
	cart domain.Cart,
	pools map[domain.Category][]domain.RankedProduct,
	category domain.Category,
	productID string,
	ctx CartContext,
) (domain.Cart, map[domain.Category][]domain.RankedProduct, error) {
	target, ok := findInPool(pools[category], productID)
	if !ok {
		return cart, pools, fmt.Errorf("product %s not in %s pool: %w", productID, category, domain.ErrNotFound)
	}

	items := make([]domain.CartItem, len(cart.Items))
	copy(items, cart.Items)

	idx := -1
	for i, item := range items {
		if item.Category == category {
			idx = i
			break
		}
	}
	if idx >= 0 {
		items[idx].Selected = target
	} else {
		items = append(items, domain.CartItem{
			Category:     category,
			Selected:     target,
			Alternatives: alternativesFor(pools[category], target.Product.ID),
		})
	}

	items, pools = c.rescore(items, pools, ctx)
	return c.totals(items, ctx.Spec.Constraints.Budget.Total, ctx), pools, nil
}

// OptimizeBudget replaces selections with strictly cheaper pool candidates,
// taking the highest-scoring cheaper option and preferring the cheapest among
// near-equal scores. Total price never increases.
func (c *CartService) OptimizeBudget(
	cart domain.Cart,
	pools map[domain.Category][]domain.RankedProduct,
	ctx CartContext,
) domain.Cart {
	if len(cart.Items) == 0 {
		return cart
	}

	items := make([]domain.CartItem, len(cart.Items))
	copy(items, cart.Items)

	for i, item := range items {
		var cheaper []domain.RankedProduct
		for _, candidate := range pools[item.Category] {
			if candidate.Product.ID != item.Selected.Product.ID &&
				candidate.Product.Price < item.Selected.Product.Price {
				cheaper = append(cheaper, candidate)
			}
		}
		if len(cheaper) == 0 {
			continue
		}

		best := cheaper[0]
		for _, candidate := range cheaper[1:] {
			if candidate.TotalScore > best.TotalScore {
				best = candidate
			}
		}
		for _, candidate := range cheaper {
			if best.TotalScore-candidate.TotalScore <= nearEqualScoreBand &&
				candidate.Product.Price < best.Product.Price {
				best = candidate
			}
		}

		items[i].Selected = best
		items[i].Alternatives = alternativesFor(pools[item.Category], best.Product.ID)
	}

	return c.totals(items, ctx.Spec.Constraints.Budget.Total, ctx)
}

// OptimizeDelivery repairs categories whose selection misses the deadline by
// picking the highest-scoring pool candidate that makes it. Categories already
// within the deadline are never touched; when no candidate makes it the
// original selection stays and AllWithinDeadline remains false.
func (c *CartService) OptimizeDelivery(
	cart domain.Cart,
	pools map[domain.Category][]domain.RankedProduct,
	ctx CartContext,
	deadline *time.Time,
) domain.Cart {
	if len(cart.Items) == 0 {
		return cart
	}

	effective := ctx.Spec.Constraints.DeliveryDeadline
	if deadline != nil {
		effective = *deadline
	}
	daysLeft := daysUntil(ctx.Today, effective)

	items := make([]domain.CartItem, len(cart.Items))
	copy(items, cart.Items)

	for i, item := range items {
		if withinDeadline(item.Selected.Product, daysLeft) {
			continue
		}

		var best *domain.RankedProduct
		for _, candidate := range pools[item.Category] {
			if candidate.Product.ID == item.Selected.Product.ID {
				continue
			}
			if !withinDeadline(candidate.Product, daysLeft) {
				continue
			}
			if best == nil || candidate.TotalScore > best.TotalScore {
				cand := candidate
				best = &cand
			}
		}
		if best != nil {
			items[i].Selected = *best
			items[i].Alternatives = alternativesFor(pools[item.Category], best.Product.ID)
		}
	}

	ctxWithDeadline := ctx
	ctxWithDeadline.Spec.Constraints.DeliveryDeadline = effective
	return c.totals(items, ctx.Spec.Constraints.Budget.Total, ctxWithDeadline)
}

// fitBudget swaps the most expensive selection for a strictly cheaper
// alternative until the cart fits or no swap is possible.
func (c *CartService) fitBudget(
	items []domain.CartItem,
	pools map[domain.Category][]domain.RankedProduct,
	budget float64,
) []domain.CartItem {
	for attempt := 0; attempt < maxBudgetFitAttempts; attempt++ {
		total := 0.0
		for _, item := range items {
			total += item.Selected.Product.Price
		}
		if budget-total >= 0 {
			break
		}

		order := make([]int, len(items))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			return items[order[a]].Selected.Product.Price > items[order[b]].Selected.Product.Price
		})

		swapped := false
		for _, idx := range order {
			item := items[idx]
			var cheapest *domain.RankedProduct
			for _, alt := range pools[item.Category] {
				if alt.Product.ID == item.Selected.Product.ID || alt.Product.Price >= item.Selected.Product.Price {
					continue
				}
				if cheapest == nil || alt.Product.Price < cheapest.Product.Price {
					a := alt
					cheapest = &a
				}
			}
			if cheapest != nil {
				items[idx].Selected = *cheapest
				items[idx].Alternatives = alternativesFor(pools[item.Category], cheapest.Product.ID)
				swapped = true
				break
			}
		}
		if !swapped {
			break
		}
	}
	return items
}

// diversifyRetailers swaps selections from over-represented retailers toward
// best-scoring new-retailer alternatives until the cart spans at least three
// retailers, cheapest categories first to limit the budget impact.
func (c *CartService) diversifyRetailers(
	items []domain.CartItem,
	pools map[domain.Category][]domain.RankedProduct,
) []domain.CartItem {
	retailers := make(map[string]int)
	for _, item := range items {
		retailers[item.Selected.Product.Retailer]++
	}
	if len(retailers) >= minRetailersTarget {
		return items
	}

	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return items[order[a]].Selected.Product.Price < items[order[b]].Selected.Product.Price
	})

	for _, idx := range order {
		if len(retailers) >= minRetailersTarget {
			break
		}
		item := items[idx]
		if retailers[item.Selected.Product.Retailer] <= 1 {
			continue
		}

		var best *domain.RankedProduct
		for _, alt := range pools[item.Category] {
			if alt.Product.ID == item.Selected.Product.ID {
				continue
			}
			if _, seen := retailers[alt.Product.Retailer]; seen {
				continue
			}
			if best == nil ||
				alt.TotalScore > best.TotalScore ||
				(alt.TotalScore == best.TotalScore && alt.Product.Price < best.Product.Price) {
				a := alt
				best = &a
			}
		}
		if best == nil {
			continue
		}

		retailers[item.Selected.Product.Retailer]--
		if retailers[item.Selected.Product.Retailer] == 0 {
			delete(retailers, item.Selected.Product.Retailer)
		}
		retailers[best.Product.Retailer]++
		items[idx].Selected = *best
		items[idx].Alternatives = alternativesFor(pools[item.Category], best.Product.ID)
	}
	return items
}

// rescore recomputes every pool's scores and ranks against the cart's current
// selections (each category sees the other categories' picks), then rebuilds
// the items' displayed scores and alternatives. Selections are kept.
func (c *CartService) rescore(
	items []domain.CartItem,
	pools map[domain.Category][]domain.RankedProduct,
	ctx CartContext,
) ([]domain.CartItem, map[domain.Category][]domain.RankedProduct) {
	numCategories := len(ctx.Spec.ItemsNeeded)
	if numCategories == 0 {
		numCategories = len(pools)
	}

	updated := make(map[domain.Category][]domain.RankedProduct, len(pools))
	for category, pool := range pools {
		var others []domain.Product
		for _, item := range items {
			if item.Category != category {
				others = append(others, item.Selected.Product)
			}
		}

		raw := make([]domain.Product, len(pool))
		for i, rp := range pool {
			raw[i] = rp.Product
		}
		updated[category] = c.scorer.RankCategory(raw, ScoreInput{
			Spec:              ctx.Spec.Spec(category),
			Constraints:       ctx.Spec.Constraints,
			CurrentSelections: others,
			Liked:             ctx.Liked,
			NumCategories:     numCategories,
			Today:             ctx.Today,
		})
	}

	for i, item := range items {
		if refreshed, ok := findInPool(updated[item.Category], item.Selected.Product.ID); ok {
			items[i].Selected = refreshed
		}
		items[i].Alternatives = alternativesFor(updated[item.Category], items[i].Selected.Product.ID)
	}
	return items, updated
}

// totals recomputes the cart aggregates from its items.
func (c *CartService) totals(items []domain.CartItem, budget float64, ctx CartContext) domain.Cart {
	daysLeft := daysUntil(ctx.Today, ctx.Spec.Constraints.DeliveryDeadline)

	total := 0.0
	retailers := make(map[string]bool)
	allWithin := true
	for _, item := range items {
		total += item.Selected.Product.Price
		retailers[item.Selected.Product.Retailer] = true
		if !withinDeadline(item.Selected.Product, daysLeft) {
			allWithin = false
		}
	}

	names := make([]string, 0, len(retailers))
	for r := range retailers {
		names = append(names, r)
	}
	sort.Strings(names)

	return domain.Cart{
		Items:             items,
		TotalPrice:        round2(total),
		BudgetRemaining:   round2(budget - total),
		RetailersInvolved: names,
		AllWithinDeadline: allWithin,
	}
}

// categoryOrder lists pool categories must_have first, then alphabetically.
func (c *CartService) categoryOrder(pools map[domain.Category][]domain.RankedProduct, spec domain.ShoppingSpec) []domain.Category {
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
	return order
}

func withinDeadline(p domain.Product, daysLeft int) bool {
	return p.DeliveryDays != nil && *p.DeliveryDays <= daysLeft
}

func alternativesFor(pool []domain.RankedProduct, selectedID string) []domain.RankedProduct {
	alts := make([]domain.RankedProduct, 0, domain.MaxAlternatives)
	for _, rp := range pool {
		if rp.Product.ID == selectedID {
			continue
		}
		alts = append(alts, rp)
		if len(alts) == domain.MaxAlternatives {
			break
		}
	}
	return alts
}

func findInPool(pool []domain.RankedProduct, productID string) (domain.RankedProduct, bool) {
	for _, rp := range pool {
		if rp.Product.ID == productID {
			return rp, true
		}
	}
	return domain.RankedProduct{}, false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cartcompass/backend/internal/domain"
	"github.com/cartcompass/backend/internal/infrastructure/metrics"
	"github.com/cartcompass/backend/internal/usecase"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	discovery   *usecase.DiscoveryService
	scorer      *usecase.ScoringService
	carts       *usecase.CartService
	validator   *usecase.LinkValidator
	recommender *usecase.Recommender
	scraper     domain.PageScraper
	likes       domain.LikesRepository
	sessions    *SessionStore

	now func() time.Time
}

// NewHandler creates a new HTTP handler
func NewHandler(
	discovery *usecase.DiscoveryService,
	scorer *usecase.ScoringService,
	carts *usecase.CartService,
	validator *usecase.LinkValidator,
	scraper domain.PageScraper,
	likes domain.LikesRepository,
) *Handler {
	return &Handler{
		discovery:   discovery,
		scorer:      scorer,
		carts:       carts,
		validator:   validator,
		recommender: usecase.NewRecommender(),
		scraper:     scraper,
		likes:       likes,
		sessions:    NewSessionStore(),
		now:         time.Now,
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "cartcompass-backend",
		"version": "1.0.0",
	})
}

type discoverRequest struct {
	Spec   domain.ShoppingSpec     `json:"spec"`
	UserID string                  `json:"user_id"`
	Liked  []domain.LikedSnapshot  `json:"liked"`
}

// Discover runs discovery plus ranking for a confirmed spec and opens a
// session holding the ranked pools.
func (h *Handler) Discover(c *gin.Context) {
	var req discoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Spec.Constraints.Budget.Total <= 0 || len(req.Spec.ItemsNeeded) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "spec needs items and a positive budget"})
		return
	}

	liked := h.resolveLiked(c, req.UserID, req.Liked)
	today := h.now()

	products, err := h.discovery.DiscoverAndNormalize(c.Request.Context(), req.Spec, today)
	if err != nil {
		respondError(c, err)
		return
	}

	ranked, err := h.scorer.Rank(products, req.Spec, liked, today)
	if err != nil {
		respondError(c, err)
		return
	}

	session := h.sessions.Create(req.UserID, req.Spec, liked, ranked)
	c.JSON(http.StatusOK, gin.H{
		"session_id": session.ID,
		"pools":      ranked,
	})
}

type rankRequest struct {
	SessionID string                               `json:"session_id"`
	Spec      *domain.ShoppingSpec                 `json:"spec"`
	Pools     map[domain.Category][]domain.Product `json:"pools"`
	UserID    string                               `json:"user_id"`
	Liked     []domain.LikedSnapshot               `json:"liked"`
}

// Rank scores and orders product pools. With a session id it re-ranks the
// session's pools in place; otherwise spec and pools come from the request.
func (h *Handler) Rank(c *gin.Context) {
	var req rankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if req.SessionID != "" {
		session, ok := h.sessions.Get(req.SessionID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}

		pools := make(map[domain.Category][]domain.Product, len(session.Pools))
		for category, ranked := range session.Pools {
			products := make([]domain.Product, 0, len(ranked))
			for _, rp := range ranked {
				products = append(products, rp.Product)
			}
			pools[category] = products
		}

		liked := session.Liked
		if req.Liked != nil {
			liked = req.Liked
		}
		ranked, err := h.scorer.Rank(pools, session.Spec, liked, h.now())
		if err != nil {
			respondError(c, err)
			return
		}
		h.sessions.Update(req.SessionID, func(s *Session) {
			s.Pools = ranked
			s.Liked = liked
		})
		c.JSON(http.StatusOK, gin.H{"session_id": req.SessionID, "pools": ranked})
		return
	}

	if req.Spec == nil || len(req.Pools) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "spec and pools are required without a session"})
		return
	}

	liked := h.resolveLiked(c, req.UserID, req.Liked)
	ranked, err := h.scorer.Rank(req.Pools, *req.Spec, liked, h.now())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pools": ranked})
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
}

// BuildCart assembles a cart from the session's ranked pools.
func (h *Handler) BuildCart(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}

	session, ok := h.sessions.Get(req.SessionID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	cart := h.carts.Build(session.Pools, h.cartContext(session))
	h.sessions.Update(req.SessionID, func(s *Session) {
		s.Cart = &cart
	})

	metrics.CartsBuilt.WithLabelValues("build").Inc()
	c.JSON(http.StatusOK, gin.H{"cart": cart})
}

type swapRequest struct {
	SessionID string          `json:"session_id"`
	Category  domain.Category `json:"category"`
	ProductID string          `json:"product_id"`
}

// SwapCartItem replaces one category's selection with another pool product.
func (h *Handler) SwapCartItem(c *gin.Context) {
	var req swapRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id, category and product_id are required"})
		return
	}

	session, cart, ok := h.sessionWithCart(c, req.SessionID)
	if !ok {
		return
	}

	updated, pools, err := h.carts.Swap(cart, session.Pools, req.Category, req.ProductID, h.cartContext(session))
	if err != nil {
		respondError(c, err)
		return
	}

	h.sessions.Update(req.SessionID, func(s *Session) {
		s.Cart = &updated
		s.Pools = pools
	})

	metrics.CartsBuilt.WithLabelValues("swap").Inc()
	c.JSON(http.StatusOK, gin.H{"cart": updated})
}

// OptimizeBudget re-picks cheaper near-equal selections across the cart.
func (h *Handler) OptimizeBudget(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}

	session, cart, ok := h.sessionWithCart(c, req.SessionID)
	if !ok {
		return
	}

	updated := h.carts.OptimizeBudget(cart, session.Pools, h.cartContext(session))
	h.sessions.Update(req.SessionID, func(s *Session) {
		s.Cart = &updated
	})

	metrics.CartsBuilt.WithLabelValues("optimize_budget").Inc()
	c.JSON(http.StatusOK, gin.H{"cart": updated})
}

type optimizeDeliveryRequest struct {
	SessionID string     `json:"session_id"`
	Deadline  *time.Time `json:"deadline"`
}

// OptimizeDelivery repairs selections that miss the delivery deadline.
func (h *Handler) OptimizeDelivery(c *gin.Context) {
	var req optimizeDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}

	session, cart, ok := h.sessionWithCart(c, req.SessionID)
	if !ok {
		return
	}

	updated := h.carts.OptimizeDelivery(cart, session.Pools, h.cartContext(session), req.Deadline)
	h.sessions.Update(req.SessionID, func(s *Session) {
		s.Cart = &updated
	})

	metrics.CartsBuilt.WithLabelValues("optimize_delivery").Inc()
	c.JSON(http.StatusOK, gin.H{"cart": updated})
}

type addByURLRequest struct {
	SessionID string          `json:"session_id"`
	URL       string          `json:"url"`
	Category  domain.Category `json:"category"`
}

// AddByURL scrapes a product page the user pasted, validates its link, scores
// it against the session spec, and puts it in the cart.
func (h *Handler) AddByURL(c *gin.Context) {
	var req addByURLRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" || req.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id and url are required"})
		return
	}
	if req.Category == "" {
		req.Category = domain.CategoryCustom
	}
	if h.scraper == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "page scraping is not configured"})
		return
	}

	session, ok := h.sessions.Get(req.SessionID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	verdict := h.validator.Validate(c.Request.Context(), req.URL)
	if verdict.State == domain.LinkInvalid {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "link did not validate", "verdict": verdict})
		return
	}

	scraped, err := h.scraper.Scrape(c.Request.Context(), req.URL)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "page has no usable product data"})
		return
	}

	product := usecase.MapScrapedRecord(*scraped)
	if product.Price <= 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "product page has no price"})
		return
	}
	product.LinkState = verdict.State

	// score it into the category pool, then select it
	ctx := h.cartContext(session)
	pool := append(poolProducts(session.Pools[req.Category]), product)
	in := usecase.ScoreInput{
		Spec:          session.Spec.Spec(req.Category),
		Constraints:   session.Spec.Constraints,
		Liked:         session.Liked,
		NumCategories: len(session.Spec.ItemsNeeded),
		Today:         ctx.Today,
	}
	ranked := h.scorer.RankCategory(pool, in)

	pools := make(map[domain.Category][]domain.RankedProduct, len(session.Pools)+1)
	for category, existing := range session.Pools {
		pools[category] = existing
	}
	pools[req.Category] = ranked

	cart := domain.Cart{}
	if session.Cart != nil {
		cart = *session.Cart
	}
	updated, pools, err := h.carts.AddItem(cart, pools, req.Category, product.ID, ctx)
	if err != nil {
		respondError(c, err)
		return
	}

	h.sessions.Update(req.SessionID, func(s *Session) {
		s.Cart = &updated
		s.Pools = pools
	})

	metrics.CartsBuilt.WithLabelValues("add_by_url").Inc()
	c.JSON(http.StatusOK, gin.H{"cart": updated, "verdict": verdict})
}

type validateURLRequest struct {
	URL       string          `json:"url"`
	SessionID string          `json:"session_id"`
	Category  domain.Category `json:"category"`
}

// ValidateURL runs the staged link check for one URL. When the verdict is not
// VALID and the request names a session category, the best-ranked pool product
// with a verified link rides along as a suggested replacement.
func (h *Handler) ValidateURL(c *gin.Context) {
	var req validateURLRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	verdict := h.validator.Validate(c.Request.Context(), req.URL)

	response := gin.H{"verdict": verdict}
	if verdict.State != domain.LinkValid && req.SessionID != "" && req.Category != "" {
		if session, ok := h.sessions.Get(req.SessionID); ok {
			if alt := h.validator.FirstValidAlternative(c.Request.Context(), session.Pools[req.Category], ""); alt != nil {
				response["alternative"] = alt
			}
		}
	}
	c.JSON(http.StatusOK, response)
}

type preferenceScoreRequest struct {
	Product domain.Product         `json:"product"`
	UserID  string                 `json:"user_id"`
	Liked   []domain.LikedSnapshot `json:"liked"`
}

// PreferenceScore computes the 0-5 liked-similarity score for one product.
func (h *Handler) PreferenceScore(c *gin.Context) {
	var req preferenceScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	liked := h.resolveLiked(c, req.UserID, req.Liked)
	score := h.recommender.UserPreferenceScore(req.Product, liked)
	c.JSON(http.StatusOK, gin.H{"score": score})
}

type addLikeRequest struct {
	UserID   string                `json:"user_id"`
	Snapshot domain.LikedSnapshot  `json:"snapshot"`
}

// AddLike stores a liked-product snapshot for a user.
func (h *Handler) AddLike(c *gin.Context) {
	var req addLikeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and snapshot are required"})
		return
	}
	if h.likes == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "likes storage is not configured"})
		return
	}

	if err := h.likes.Add(c.Request.Context(), req.UserID, req.Snapshot); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "liked"})
}

// RemoveLike deletes one liked snapshot.
func (h *Handler) RemoveLike(c *gin.Context) {
	userID := c.Query("user_id")
	productID := c.Param("productId")
	if userID == "" || productID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and product id are required"})
		return
	}
	if h.likes == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "likes storage is not configured"})
		return
	}

	if err := h.likes.Remove(c.Request.Context(), userID, productID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

// resolveLiked keeps the nil/non-nil distinction: inline snapshots win, then
// the stored profile of user_id; no user means no profile at all.
func (h *Handler) resolveLiked(c *gin.Context, userID string, inline []domain.LikedSnapshot) []domain.LikedSnapshot {
	if inline != nil {
		return inline
	}
	if userID == "" || h.likes == nil {
		return nil
	}
	snapshots, err := h.likes.Snapshots(c.Request.Context(), userID)
	if err != nil {
		return nil
	}
	if snapshots == nil {
		snapshots = []domain.LikedSnapshot{}
	}
	return snapshots
}

func (h *Handler) cartContext(session Session) usecase.CartContext {
	return usecase.CartContext{
		Spec:  session.Spec,
		Liked: session.Liked,
		Today: h.now(),
	}
}

// sessionWithCart loads a session snapshot and requires a built cart; it
// writes the error response itself when either is missing.
func (h *Handler) sessionWithCart(c *gin.Context, sessionID string) (Session, domain.Cart, bool) {
	session, ok := h.sessions.Get(sessionID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return Session{}, domain.Cart{}, false
	}
	if session.Cart == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "no cart built for this session"})
		return Session{}, domain.Cart{}, false
	}
	return session, *session.Cart, true
}

func poolProducts(ranked []domain.RankedProduct) []domain.Product {
	products := make([]domain.Product, 0, len(ranked))
	for _, rp := range ranked {
		products = append(products, rp.Product)
	}
	return products
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

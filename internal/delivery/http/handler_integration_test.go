package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cartcompass/backend/config"
	"github.com/cartcompass/backend/internal/domain"
	"github.com/cartcompass/backend/internal/usecase"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// --- Mock implementations ---

// fakeSource returns a fixed pool of search rows regardless of query.
type fakeSource struct{}

func (f *fakeSource) Search(ctx context.Context, query string, priceMax float64) ([]domain.SearchRecord, error) {
	p1, p2, p3 := 59.99, 39.99, 89.99
	r1, r2 := 4.7, 4.2
	n1, n2 := 850, 120
	return []domain.SearchRecord{
		{
			ID: "s-1", Title: "Alpine Jacket " + query, Source: "Amazon",
			Price: &p1, Rating: &r1, ReviewsCount: &n1,
			DeliveryText: "Free delivery in 2 days",
			ProductURL:   "https://amazon.example.com/p/s-1",
		},
		{
			ID: "s-2", Title: "Budget Jacket " + query, Source: "Walmart",
			Price: &p2, Rating: &r2, ReviewsCount: &n2,
			DeliveryText: "Delivery in 5 days",
			ProductURL:   "https://walmart.example.com/p/s-2",
		},
		{
			ID: "s-3", Title: "Premium Jacket " + query, Source: "REI",
			Price: &p3, Rating: &r1, ReviewsCount: &n1,
			DeliveryText: "Free delivery in 3 days",
			ProductURL:   "https://rei.example.com/p/s-3",
		},
	}, nil
}

func (f *fakeSource) Detail(ctx context.Context, productID string) (*domain.DetailRecord, error) {
	return nil, domain.ErrNotFound
}

// fakeFetcher makes every link look like a live product page.
type fakeFetcher struct{}

func (f *fakeFetcher) FetchSnippet(ctx context.Context, url string) (string, error) {
	return "<html><body>Add to cart. Price: $49.99</body></html>", nil
}

// fakeScraper returns one fixed scraped product.
type fakeScraper struct{}

func (f *fakeScraper) Scrape(ctx context.Context, url string) (*domain.ScrapedRecord, error) {
	price := 64.0
	return &domain.ScrapedRecord{
		URL: url, Name: "Pasted Softshell Jacket", Price: &price,
		Currency: "USD", Brand: "Arcteryx",
	}, nil
}

// fakeLikes is an in-memory LikesRepository.
type fakeLikes struct {
	data map[string][]domain.LikedSnapshot
}

func (f *fakeLikes) Snapshots(ctx context.Context, userID string) ([]domain.LikedSnapshot, error) {
	return f.data[userID], nil
}

func (f *fakeLikes) Add(ctx context.Context, userID string, s domain.LikedSnapshot) error {
	if s.ID == "" {
		return domain.ErrInvalidInput
	}
	f.data[userID] = append(f.data[userID], s)
	return nil
}

func (f *fakeLikes) Remove(ctx context.Context, userID string, productID string) error {
	kept := f.data[userID][:0]
	for _, s := range f.data[userID] {
		if s.ID != productID {
			kept = append(kept, s)
		}
	}
	f.data[userID] = kept
	return nil
}

func setupTestRouter() *gin.Engine {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"chrome-extension://*", "http://localhost:3000"},
		},
		Cache: config.CacheConfig{Type: "memory"},
	}

	validator := usecase.NewLinkValidator(&fakeFetcher{}, nil, nil, nil, nil, usecase.LinkValidatorConfig{})
	normalizer := usecase.NewNormalizer(validator)
	discovery := usecase.NewDiscoveryService(&fakeSource{}, nil, nil, normalizer)
	scorer := usecase.NewScoringService()
	carts := usecase.NewCartService(scorer)
	likes := &fakeLikes{data: make(map[string][]domain.LikedSnapshot)}

	handler := NewHandler(discovery, scorer, carts, validator, &fakeScraper{}, likes)
	return SetupRouter(cfg, handler)
}

func postJSON(t *testing.T, router *gin.Engine, path, payload string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req, _ := http.NewRequest("POST", path, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var response map[string]interface{}
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("response is not JSON: %v, body: %s", err, w.Body.String())
		}
	}
	return w, response
}

const specPayload = `{
	"spec": {
		"scenario": "weekend ski trip",
		"items_needed": [
			{"category": "jacket", "priority": "must_have", "requirements": ["waterproof"]},
			{"category": "gloves", "priority": "nice_to_have"}
		],
		"constraints": {
			"budget": {"total": 300, "currency": "USD"},
			"delivery_deadline": "2026-09-10T00:00:00Z"
		}
	}
}`

// openSession drives POST /discover and returns the session id along with
// the full discover response, so tests can resolve pool product ids.
func openSession(t *testing.T, router *gin.Engine) (string, map[string]interface{}) {
	t.Helper()
	w, response := postJSON(t, router, "/api/v1/discover", specPayload)
	if w.Code != http.StatusOK {
		t.Fatalf("discover Status = %d, body %s", w.Code, w.Body.String())
	}
	id, ok := response["session_id"].(string)
	if !ok || id == "" {
		t.Fatalf("session_id missing in %v", response)
	}
	return id, response
}

// poolProductID finds the id of the first product from the given retailer in
// a discover response's category pool.
func poolProductID(t *testing.T, response map[string]interface{}, category, retailer string) string {
	t.Helper()
	pools, ok := response["pools"].(map[string]interface{})
	if !ok {
		t.Fatalf("pools missing in %v", response)
	}
	pool, _ := pools[category].([]interface{})
	for _, raw := range pool {
		product := raw.(map[string]interface{})["product"].(map[string]interface{})
		if product["retailer"] == retailer {
			return product["id"].(string)
		}
	}
	t.Fatalf("no %s product from %s in %v", category, retailer, pool)
	return ""
}

func TestHealthCheckEndpoint(t *testing.T) {
	t.Run("returns healthy status", func(t *testing.T) {
		router := setupTestRouter()

		req, _ := http.NewRequest("GET", "/health", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}

		var response map[string]interface{}
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("Failed to unmarshal response: %v", err)
		}
		if response["status"] != "healthy" {
			t.Errorf("status = %v, want healthy", response["status"])
		}
		if response["service"] != "cartcompass-backend" {
			t.Errorf("service = %v, want cartcompass-backend", response["service"])
		}
	})

	t.Run("accepts GET requests only", func(t *testing.T) {
		router := setupTestRouter()

		for _, method := range []string{"POST", "PUT", "DELETE", "PATCH"} {
			req, _ := http.NewRequest(method, "/health", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusNotFound {
				t.Errorf("Method %s: Status = %d, want %d", method, w.Code, http.StatusNotFound)
			}
		}
	})
}

func TestDiscoverEndpoint(t *testing.T) {
	t.Run("returns session and ranked pools", func(t *testing.T) {
		router := setupTestRouter()

		w, response := postJSON(t, router, "/api/v1/discover", specPayload)
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, body %s", w.Code, w.Body.String())
		}

		pools, ok := response["pools"].(map[string]interface{})
		if !ok {
			t.Fatalf("pools missing in %v", response)
		}
		jacketPool, ok := pools["jacket"].([]interface{})
		if !ok || len(jacketPool) == 0 {
			t.Fatal("jacket pool is empty")
		}

		first := jacketPool[0].(map[string]interface{})
		if first["rank"] != float64(1) {
			t.Errorf("first rank = %v, want 1", first["rank"])
		}
		if _, ok := first["total_score"]; !ok {
			t.Error("ranked product has no total_score")
		}
	})

	t.Run("rejects spec without budget", func(t *testing.T) {
		router := setupTestRouter()

		payload := `{"spec": {"items_needed": [{"category": "jacket", "priority": "must_have"}], "constraints": {"budget": {"total": 0}}}}`
		w, _ := postJSON(t, router, "/api/v1/discover", payload)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("rejects invalid JSON", func(t *testing.T) {
		router := setupTestRouter()

		w, _ := postJSON(t, router, "/api/v1/discover", `{invalid`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

func TestCartLifecycle(t *testing.T) {
	router := setupTestRouter()
	sessionID, discovered := openSession(t, router)

	t.Run("build requires a session", func(t *testing.T) {
		w, _ := postJSON(t, router, "/api/v1/cart/build", `{"session_id": "nope"}`)
		if w.Code != http.StatusNotFound {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("optimize before build conflicts", func(t *testing.T) {
		w, _ := postJSON(t, router, "/api/v1/cart/optimize-budget", `{"session_id": "`+sessionID+`"}`)
		if w.Code != http.StatusConflict {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusConflict)
		}
	})

	var firstCart map[string]interface{}
	t.Run("build assembles one item per category", func(t *testing.T) {
		w, response := postJSON(t, router, "/api/v1/cart/build", `{"session_id": "`+sessionID+`"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, body %s", w.Code, w.Body.String())
		}

		cart, ok := response["cart"].(map[string]interface{})
		if !ok {
			t.Fatalf("cart missing in %v", response)
		}
		firstCart = cart

		items, ok := cart["items"].([]interface{})
		if !ok || len(items) != 2 {
			t.Fatalf("items = %v, want 2 cart items", cart["items"])
		}
		if cart["total_price"].(float64) <= 0 {
			t.Error("total_price should be positive")
		}
	})

	t.Run("swap to a known pool product", func(t *testing.T) {
		// pool ids are minted by the normalizer, so resolve the budget
		// jacket's id from the discover response rather than guessing it
		budgetID := poolProductID(t, discovered, "jacket", "Walmart")
		payload := `{"session_id": "` + sessionID + `", "category": "jacket", "product_id": "` + budgetID + `"}`
		w, response := postJSON(t, router, "/api/v1/cart/swap", payload)
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, body %s", w.Code, w.Body.String())
		}

		cart := response["cart"].(map[string]interface{})
		items := cart["items"].([]interface{})
		var jacketID string
		for _, raw := range items {
			item := raw.(map[string]interface{})
			if item["category"] == "jacket" {
				selected := item["selected"].(map[string]interface{})
				jacketID = selected["product"].(map[string]interface{})["id"].(string)
			}
		}
		if jacketID != budgetID {
			t.Errorf("jacket selection = %q, want %q", jacketID, budgetID)
		}
	})

	t.Run("swap to unknown product is 404 and cart unchanged", func(t *testing.T) {
		payload := `{"session_id": "` + sessionID + `", "category": "jacket", "product_id": "ghost"}`
		w, _ := postJSON(t, router, "/api/v1/cart/swap", payload)
		if w.Code != http.StatusNotFound {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("optimize budget never raises the total", func(t *testing.T) {
		w, response := postJSON(t, router, "/api/v1/cart/optimize-budget", `{"session_id": "`+sessionID+`"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, body %s", w.Code, w.Body.String())
		}
		cart := response["cart"].(map[string]interface{})
		if firstCart != nil && cart["total_price"].(float64) > firstCart["total_price"].(float64) {
			t.Errorf("optimized total %v exceeds original %v", cart["total_price"], firstCart["total_price"])
		}
	})

	t.Run("optimize delivery returns a cart", func(t *testing.T) {
		w, response := postJSON(t, router, "/api/v1/cart/optimize-delivery", `{"session_id": "`+sessionID+`"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, body %s", w.Code, w.Body.String())
		}
		if _, ok := response["cart"]; !ok {
			t.Error("cart missing from response")
		}
	})

	t.Run("add by url scores the pasted product into the cart", func(t *testing.T) {
		payload := `{"session_id": "` + sessionID + `", "url": "https://arcteryx.example.com/p/99", "category": "jacket"}`
		w, response := postJSON(t, router, "/api/v1/cart/add-by-url", payload)
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d, body %s", w.Code, w.Body.String())
		}

		cart := response["cart"].(map[string]interface{})
		items := cart["items"].([]interface{})
		found := false
		for _, raw := range items {
			item := raw.(map[string]interface{})
			if item["category"] == "jacket" {
				selected := item["selected"].(map[string]interface{})
				name := selected["product"].(map[string]interface{})["name"].(string)
				found = name == "Pasted Softshell Jacket"
			}
		}
		if !found {
			t.Error("pasted product is not the jacket selection")
		}
	})
}

func TestConcurrentSessionRequests(t *testing.T) {
	router := setupTestRouter()
	sessionID, _ := openSession(t, router)

	send := func(path, payload string) int {
		req, _ := http.NewRequest("POST", path, strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	// interleave pool re-ranks with add-by-url pool writes on one session;
	// every request must succeed and none may trample another's state
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if n%2 == 0 {
				payload := `{"session_id": "` + sessionID + `", "url": "https://arcteryx.example.com/p/` + string(rune('a'+n)) + `", "category": "jacket"}`
				if code := send("/api/v1/cart/add-by-url", payload); code != http.StatusOK {
					t.Errorf("add-by-url status = %d, want %d", code, http.StatusOK)
				}
			} else {
				payload := `{"session_id": "` + sessionID + `"}`
				if code := send("/api/v1/rank", payload); code != http.StatusOK {
					t.Errorf("rank status = %d, want %d", code, http.StatusOK)
				}
			}
		}(i)
	}
	wg.Wait()

	// the session is still coherent afterwards
	w, response := postJSON(t, router, "/api/v1/rank", `{"session_id": "`+sessionID+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("final rank status = %d, body %s", w.Code, w.Body.String())
	}
	if _, ok := response["pools"].(map[string]interface{}); !ok {
		t.Fatalf("pools missing in %v", response)
	}
}

func TestValidateURLEndpoint(t *testing.T) {
	router := setupTestRouter()

	t.Run("live page is VALID", func(t *testing.T) {
		w, response := postJSON(t, router, "/api/v1/validate-url", `{"url": "https://shop.example.com/p/1"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d", w.Code)
		}
		verdict := response["verdict"].(map[string]interface{})
		if verdict["state"] != "VALID" {
			t.Errorf("state = %v, want VALID", verdict["state"])
		}
	})

	t.Run("malformed url is INVALID", func(t *testing.T) {
		w, response := postJSON(t, router, "/api/v1/validate-url", `{"url": "not-a-url"}`)
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d", w.Code)
		}
		verdict := response["verdict"].(map[string]interface{})
		if verdict["state"] != "INVALID" {
			t.Errorf("state = %v, want INVALID", verdict["state"])
		}
	})

	t.Run("empty url is 400", func(t *testing.T) {
		w, _ := postJSON(t, router, "/api/v1/validate-url", `{}`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

func TestPreferenceScoreEndpoint(t *testing.T) {
	router := setupTestRouter()

	t.Run("scores against inline likes", func(t *testing.T) {
		payload := `{
			"product": {"id": "p-1", "name": "Jacket", "retailer": "REI", "price": 100},
			"liked": [{"id": "l-1", "name": "Other Jacket", "retailer": "REI", "price": 100}]
		}`
		w, response := postJSON(t, router, "/api/v1/preference-score", payload)
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d", w.Code)
		}
		// same retailer and identical price is a full-strength match
		if response["score"].(float64) != 5.0 {
			t.Errorf("score = %v, want 5.0", response["score"])
		}
	})

	t.Run("no likes scores zero", func(t *testing.T) {
		payload := `{"product": {"id": "p-1", "name": "Jacket", "retailer": "REI", "price": 100}}`
		w, response := postJSON(t, router, "/api/v1/preference-score", payload)
		if w.Code != http.StatusOK {
			t.Fatalf("Status = %d", w.Code)
		}
		if response["score"].(float64) != 0.0 {
			t.Errorf("score = %v, want 0", response["score"])
		}
	})
}

func TestLikesEndpoints(t *testing.T) {
	router := setupTestRouter()

	t.Run("add then remove", func(t *testing.T) {
		payload := `{"user_id": "u-1", "snapshot": {"id": "p-1", "name": "Jacket", "retailer": "REI", "price": 100}}`
		w, _ := postJSON(t, router, "/api/v1/likes", payload)
		if w.Code != http.StatusCreated {
			t.Fatalf("Status = %d, want %d", w.Code, http.StatusCreated)
		}

		req, _ := http.NewRequest("DELETE", "/api/v1/likes/p-1?user_id=u-1", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("DELETE Status = %d, want %d", rec.Code, http.StatusOK)
		}
	})

	t.Run("snapshot without id is 400", func(t *testing.T) {
		payload := `{"user_id": "u-1", "snapshot": {"name": "No ID"}}`
		w, _ := postJSON(t, router, "/api/v1/likes", payload)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

func TestCORSIntegration(t *testing.T) {
	t.Run("health endpoint has CORS for Chrome extension", func(t *testing.T) {
		router := setupTestRouter()

		req, _ := http.NewRequest("GET", "/health", nil)
		req.Header.Set("Origin", "chrome-extension://abcdefghijklmnop")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		gotOrigin := w.Header().Get("Access-Control-Allow-Origin")
		if gotOrigin != "chrome-extension://abcdefghijklmnop" {
			t.Errorf("Access-Control-Allow-Origin = %q", gotOrigin)
		}
		if w.Header().Get("Access-Control-Allow-Credentials") != "true" {
			t.Error("Access-Control-Allow-Credentials not set")
		}
	})

	t.Run("discover endpoint has CORS for localhost", func(t *testing.T) {
		router := setupTestRouter()

		req, _ := http.NewRequest("POST", "/api/v1/discover", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		gotOrigin := w.Header().Get("Access-Control-Allow-Origin")
		if gotOrigin != "http://localhost:3000" {
			t.Errorf("Access-Control-Allow-Origin = %q", gotOrigin)
		}
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	t.Run("recovers from panic without crashing server", func(t *testing.T) {
		router := setupTestRouter()

		router.GET("/panic", func(c *gin.Context) {
			panic("test panic")
		})

		req, _ := http.NewRequest("GET", "/panic", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusInternalServerError)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	router := setupTestRouter()

	req, _ := http.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), "go_") {
		t.Error("metrics output looks empty")
	}
}

func TestRateLimitMiddleware_Enforced(t *testing.T) {
	cfg := &config.Config{
		Server:    config.ServerConfig{Environment: "test"},
		RateLimit: config.RateLimitConfig{PerIP: 2},
	}

	validator := usecase.NewLinkValidator(&fakeFetcher{}, nil, nil, nil, nil, usecase.LinkValidatorConfig{})
	normalizer := usecase.NewNormalizer(validator)
	discovery := usecase.NewDiscoveryService(&fakeSource{}, nil, nil, normalizer)
	scorer := usecase.NewScoringService()
	handler := NewHandler(discovery, scorer, usecase.NewCartService(scorer), validator, nil, nil)
	router := SetupRouter(cfg, handler)

	limited := false
	for i := 0; i < 10; i++ {
		req, _ := http.NewRequest("GET", "/health", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Error("burst of requests was never rate limited")
	}

	// the limiter refills at PerIP/60 per second
	time.Sleep(50 * time.Millisecond)
}

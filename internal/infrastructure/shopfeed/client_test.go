package shopfeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartcompass/backend/internal/domain"
)

const testRPS = 100.0 // keep the limiter out of the way in tests

func TestNewClient(t *testing.T) {
	client := NewClient("test-api-key", "https://api.example.com", testRPS)

	assert.NotNil(t, client)
	assert.Equal(t, "test-api-key", client.apiKey)
	assert.Equal(t, "https://api.example.com", client.baseURL)
	assert.NotNil(t, client.httpClient)
	assert.NotNil(t, client.rateLimiter)
}

func TestSearch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/shopping/search", r.URL.Path)
		assert.Equal(t, "waterproof hiking jacket", r.URL.Query().Get("q"))
		assert.Equal(t, "test-api-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "120.00", r.URL.Query().Get("price_max"))

		price := 89.99
		rating := 4.5
		reviews := 210
		response := searchResponse{
			ShoppingResults: []shoppingResult{
				{
					ProductID:      "p-1",
					Title:          "Trail Shell Jacket",
					Source:         "REI",
					ExtractedPrice: &price,
					Rating:         &rating,
					Reviews:        &reviews,
					Delivery:       "Free delivery in 3 days",
					ProductLink:    "https://rei.example.com/p/1",
				},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := NewClient("test-api-key", server.URL, testRPS)
	ctx := context.Background()

	records, err := client.Search(ctx, "waterproof hiking jacket", 120)

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "p-1", records[0].ID)
	assert.Equal(t, "Trail Shell Jacket", records[0].Title)
	assert.Equal(t, "REI", records[0].Source)
	require.NotNil(t, records[0].Price)
	assert.Equal(t, 89.99, *records[0].Price)
	assert.Equal(t, "https://rei.example.com/p/1", records[0].ProductURL)
}

func TestSearch_NoPriceMaxParam(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("price_max"))
		json.NewEncoder(w).Encode(searchResponse{})
	}))
	defer server.Close()

	client := NewClient("test-api-key", server.URL, testRPS)
	records, err := client.Search(context.Background(), "scarf", 0)

	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSearch_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient("test-api-key", server.URL, testRPS)
	records, err := client.Search(context.Background(), "nonexistent", 0)

	assert.Nil(t, records)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSearch_ServerError_Retries(t *testing.T) {
	attempts := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		price := 20.0
		json.NewEncoder(w).Encode(searchResponse{
			ShoppingResults: []shoppingResult{
				{ProductID: "p-2", Title: "Success after retry", ExtractedPrice: &price},
			},
		})
	}))
	defer server.Close()

	client := NewClient("test-api-key", server.URL, testRPS)
	records, err := client.Search(context.Background(), "retry-test", 0)

	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 3, attempts)
}

func TestSearch_AllRetriesFail(t *testing.T) {
	attempts := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient("test-api-key", server.URL, testRPS)
	records, err := client.Search(context.Background(), "all-fail", 0)

	assert.Nil(t, records)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.Equal(t, 3, attempts)
}

func TestSearch_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("invalid json"))
	}))
	defer server.Close()

	client := NewClient("test-api-key", server.URL, testRPS)
	records, err := client.Search(context.Background(), "invalid-json", 0)

	assert.Nil(t, records)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode response")
}

func TestSearch_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	client := NewClient("test-api-key", server.URL, testRPS)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	records, err := client.Search(ctx, "timeout-test", 0)

	assert.Nil(t, records)
	assert.Error(t, err)
}

func TestDetail_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/shopping/product/p-9", r.URL.Path)
		assert.Equal(t, "test-api-key", r.URL.Query().Get("api_key"))

		base := 45.0
		ship := 5.0
		cheaperTotal := 44.0
		json.NewEncoder(w).Encode(productResponse{
			ProductResults: productResults{
				ProductID:   "p-9",
				Title:       "Merino Base Layer",
				Brand:       "Smartwool",
				Description: "Midweight merino crew",
				Highlights:  []string{"Machine washable"},
			},
			Sellers: []seller{
				{Name: "Backcountry", BasePrice: &base, ShippingCost: &ship, Link: "https://bc.example.com/p/9"},
				{Name: "Amazon", TotalPrice: &cheaperTotal, Delivery: "2-day delivery", Link: "https://amazon.example.com/p/9"},
			},
		})
	}))
	defer server.Close()

	client := NewClient("test-api-key", server.URL, testRPS)
	record, err := client.Detail(context.Background(), "p-9")

	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "Merino Base Layer", record.Title)
	assert.Equal(t, "Smartwool", record.Brand)
	assert.Equal(t, 2, record.StoreCount)
	// cheapest landed price wins the canonical offer
	assert.Equal(t, "Amazon", record.Source)
	assert.Equal(t, "https://amazon.example.com/p/9", record.ProductURL)
}

func TestDetail_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient("test-api-key", server.URL, testRPS)
	record, err := client.Detail(context.Background(), "nonexistent")

	assert.Nil(t, record)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDetail_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
	}))
	defer server.Close()

	client := NewClient("test-api-key", server.URL, testRPS)
	record, err := client.Detail(context.Background(), "error-test")

	assert.Nil(t, record)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestDetail_EmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(productResponse{})
	}))
	defer server.Close()

	client := NewClient("test-api-key", server.URL, testRPS)
	record, err := client.Detail(context.Background(), "empty")

	assert.Nil(t, record)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

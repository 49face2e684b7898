package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/cartcompass/backend/config"
	httpDelivery "github.com/cartcompass/backend/internal/delivery/http"
	"github.com/cartcompass/backend/internal/domain"
	"github.com/cartcompass/backend/internal/infrastructure/browser"
	"github.com/cartcompass/backend/internal/infrastructure/cache"
	"github.com/cartcompass/backend/internal/infrastructure/catalog"
	"github.com/cartcompass/backend/internal/infrastructure/fetch"
	"github.com/cartcompass/backend/internal/infrastructure/judge"
	"github.com/cartcompass/backend/internal/infrastructure/likes"
	"github.com/cartcompass/backend/internal/infrastructure/scrape"
	"github.com/cartcompass/backend/internal/infrastructure/shopfeed"
	"github.com/cartcompass/backend/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting CartCompass Backend v1.0.0")
	log.Printf("Environment: %s", cfg.Server.Environment)
	log.Printf("Port: %s", cfg.Server.Port)
	log.Printf("Cache Type: %s", cfg.Cache.Type)

	// Initialize infrastructure dependencies
	var (
		cacheRepo domain.CacheRepository
		likesRepo domain.LikesRepository
	)
	if cfg.Cache.Type == "redis" {
		redisCache, err := cache.NewRedisCache(context.Background(), cfg.Cache.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer redisCache.Close()
		cacheRepo = redisCache
		likesRepo = likes.NewRedisLikes(redisCache.Client())
		log.Printf("Redis connected: %s", cfg.Cache.RedisURL)
	} else {
		cacheRepo = cache.NewMemoryCache()
		likesRepo = likes.NewMemoryLikes()
	}

	var source domain.ProductSource
	if cfg.ShopFeed.MockMode {
		source = shopfeed.NewMockSource()
		log.Printf("Shopping feed running in mock mode")
	} else {
		source = shopfeed.NewClient(cfg.ShopFeed.APIKey, cfg.ShopFeed.BaseURL, cfg.RateLimit.Outbound)
		log.Printf("Shopping feed configured: %s", cfg.ShopFeed.BaseURL)
	}

	fetcher := fetch.NewSnippetFetcher(cfg.Validator.FetchTimeout, cfg.Validator.MaxBodyBytes, cfg.RateLimit.Outbound)
	scraper := scrape.NewSchemaOrgScraper(cfg.Validator.FetchTimeout)

	var (
		capturer    domain.ScreenshotCapturer
		visionJudge domain.Judge
		textJudge   domain.Judge
	)
	if cfg.Validator.EnableVision {
		capturer = browser.NewChromeCapturer(cfg.Validator.FetchTimeout * 3)
		visionJudge = judge.NewVisionJudge(cfg.Judge.APIKey, cfg.Judge.BaseURL, cfg.Judge.VisionModel, cfg.Judge.Timeout)
		log.Printf("Vision judge enabled: %s", cfg.Judge.VisionModel)
	}
	if cfg.Validator.EnableTextJudge {
		textJudge = judge.NewTextJudge(cfg.Judge.APIKey, cfg.Judge.BaseURL, cfg.Judge.TextModel, cfg.Judge.Timeout)
		log.Printf("Text judge enabled: %s", cfg.Judge.TextModel)
	}

	seedCatalog, err := catalog.NewEmbeddedCatalog()
	if err != nil {
		log.Fatalf("Failed to load embedded catalog: %v", err)
	}
	log.Printf("Fallback catalog covers %d categories", len(seedCatalog.Categories()))

	// Initialize usecase layer
	validator := usecase.NewLinkValidator(fetcher, capturer, visionJudge, textJudge, cacheRepo, usecase.LinkValidatorConfig{
		TTLValid:         cfg.Validator.TTLValid,
		TTLInvalid:       cfg.Validator.TTLInvalid,
		TTLUnknown:       cfg.Validator.TTLUnknown,
		BackoffThreshold: cfg.Validator.BackoffThreshold,
		BackoffCooldown:  cfg.Validator.BackoffCooldown,
	})
	normalizer := usecase.NewNormalizer(validator)
	discovery := usecase.NewDiscoveryService(source, scraper, seedCatalog, normalizer)
	scorer := usecase.NewScoringService()
	carts := usecase.NewCartService(scorer)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(discovery, scorer, carts, validator, scraper, likesRepo)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("Server listening on %s", addr)

	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func init() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stdout)
}

package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cartcompass/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(MetricsMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))
	if cfg.RateLimit.PerIP > 0 {
		router.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
	}

	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.POST("/discover", handler.Discover)
		v1.POST("/rank", handler.Rank)
		v1.POST("/validate-url", handler.ValidateURL)
		v1.POST("/preference-score", handler.PreferenceScore)

		cart := v1.Group("/cart")
		{
			cart.POST("/build", handler.BuildCart)
			cart.POST("/swap", handler.SwapCartItem)
			cart.POST("/add-by-url", handler.AddByURL)
			cart.POST("/optimize-budget", handler.OptimizeBudget)
			cart.POST("/optimize-delivery", handler.OptimizeDelivery)
		}

		likes := v1.Group("/likes")
		{
			likes.POST("", handler.AddLike)
			likes.DELETE("/:productId", handler.RemoveLike)
		}
	}

	return router
}

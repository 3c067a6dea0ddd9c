package http

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/smartshop/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	logger := log.With().Str("component", "http").Logger()

	// Global middleware
	router.Use(RequestIDMiddleware())
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	if cfg.RateLimit.PerIP > 0 {
		v1.Use(RateLimitMiddleware(cfg.RateLimit.PerIP, cfg.RateLimit.Burst))
	}
	{
		products := v1.Group("/products")
		{
			products.GET("", handler.SearchProducts)
			products.POST("/normalize", handler.NormalizeProducts)
		}

		v1.GET("/stores/nearby", handler.NearbyStores)
		v1.POST("/basket/best-stores", handler.BestStores)

		lists := v1.Group("/lists")
		{
			lists.POST("", handler.CreateList)
			lists.GET("/:id", handler.GetList)
			lists.POST("/:id/items", handler.AddListItem)
			lists.DELETE("/:id/items", handler.ClearList)
			lists.DELETE("/:id/items/:itemId", handler.RemoveListItem)
			lists.POST("/:id/best-stores", handler.ListBestStores)
		}
	}

	return router
}

package api

import (
	"github.com/gin-gonic/gin"

	"github.com/amiyamandal-dev/feedsync/internal/api/handlers"
	"github.com/amiyamandal-dev/feedsync/internal/api/middleware"
	"github.com/amiyamandal-dev/feedsync/internal/config"
	"github.com/amiyamandal-dev/feedsync/pkg/logger"
)

// Router sets up the HTTP router with all routes and middleware
type Router struct {
	engine        *gin.Engine
	feedHandler   *handlers.FeedHandler
	itemHandler   *handlers.ItemHandler
	searchHandler *handlers.SearchHandler
	healthHandler *handlers.HealthHandler
	cfg           *config.Config
	logger        *logger.Logger
}

// NewRouter creates a new router
func NewRouter(
	feedHandler *handlers.FeedHandler,
	itemHandler *handlers.ItemHandler,
	searchHandler *handlers.SearchHandler,
	healthHandler *handlers.HealthHandler,
	cfg *config.Config,
	logger *logger.Logger,
) *Router {
	return &Router{
		feedHandler:   feedHandler,
		itemHandler:   itemHandler,
		searchHandler: searchHandler,
		healthHandler: healthHandler,
		cfg:           cfg,
		logger:        logger,
	}
}

// Setup configures all routes and middleware
func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.cfg.Server.Mode)

	r.engine = gin.New()
	r.engine.Use(gin.Recovery())
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.LoggerMiddleware(r.logger))

	// Health check endpoints (no rate limiting)
	r.engine.GET("/health", r.healthHandler.Health)
	r.engine.GET("/health/ready", r.healthHandler.Readiness)
	r.engine.GET("/health/live", r.healthHandler.Liveness)

	v1 := r.engine.Group("/api/v1")
	v1.Use(middleware.RateLimitMiddleware(
		r.cfg.RateLimit.RequestsPerMinute,
		r.cfg.RateLimit.Burst,
	))
	{
		feeds := v1.Group("/feeds")
		{
			feeds.GET("", r.feedHandler.List)
			feeds.GET("/:name", r.feedHandler.Get)
			feeds.GET("/:name/items", r.feedHandler.GetItems)
			feeds.POST("/:name/sync", r.feedHandler.TriggerSync)
		}

		items := v1.Group("/items/:partition")
		{
			items.DELETE("", r.itemHandler.DeleteBatch)
			items.GET("/:id", r.itemHandler.Get)
			items.PUT("/:id/read", r.itemHandler.MarkRead)
			items.DELETE("/:id", r.itemHandler.Delete)
			items.GET("/:id/content", r.itemHandler.Content)
		}

		v1.GET("/search", r.searchHandler.Search)
	}

	return r.engine
}

// GetEngine returns the Gin engine
func (r *Router) GetEngine() *gin.Engine {
	if r.engine == nil {
		return r.Setup()
	}
	return r.engine
}

package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amiyamandal-dev/feedsync/internal/work"
	"github.com/amiyamandal-dev/feedsync/pkg/logger"
)

// HealthChecker reports whether a dependency is usable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// DocumentCounter reports the size of the search index
type DocumentCounter interface {
	Count() (uint64, error)
}

// HealthHandler handles health check requests
type HealthHandler struct {
	store  HealthChecker
	index  DocumentCounter
	pool   *work.Pool
	logger *logger.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store HealthChecker, index DocumentCounter, pool *work.Pool, logger *logger.Logger) *HealthHandler {
	return &HealthHandler{
		store:  store,
		index:  index,
		pool:   pool,
		logger: logger.WithComponent("health-handler"),
	}
}

// Health returns basic health status
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(200, gin.H{
		"status": "ok",
	})
}

// Readiness checks if the service is ready to handle requests
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	var (
		storeErr    error
		searchErr   error
		searchCount uint64
		wg          sync.WaitGroup
	)

	wg.Add(2)

	go func() {
		defer wg.Done()
		storeErr = h.store.HealthCheck(ctx)
	}()

	go func() {
		defer wg.Done()
		searchCount, searchErr = h.index.Count()
	}()

	wg.Wait()

	if storeErr != nil {
		h.logger.Warn("Store health check failed", "error", storeErr)
	}

	checks := map[string]interface{}{
		"storage": map[string]interface{}{
			"healthy": storeErr == nil,
		},
		"search": map[string]interface{}{
			"healthy":        searchErr == nil,
			"document_count": searchCount,
		},
		"workers": h.pool.Stats(),
	}

	status := "ready"
	code := 200
	if storeErr != nil || searchErr != nil {
		status = "not ready"
		code = 503
	}

	c.JSON(code, gin.H{
		"status": status,
		"checks": checks,
	})
}

// Liveness checks if the service is alive
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(200, gin.H{
		"status": "alive",
	})
}

package handlers

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/amiyamandal-dev/feedsync/internal/domain"
	"github.com/amiyamandal-dev/feedsync/pkg/logger"
	"github.com/amiyamandal-dev/feedsync/pkg/response"
)

// respondError maps a service error to an HTTP status. Unexpected errors
// are logged and reported as failing to do action.
func respondError(c *gin.Context, log *logger.Logger, err error, action string) {
	switch {
	case errors.Is(err, domain.ErrFeedNotFound):
		response.NotFound(c, "Feed not found")
	case errors.Is(err, domain.ErrItemNotFound), errors.Is(err, domain.ErrNotFound):
		response.NotFound(c, "Item not found")
	case errors.Is(err, domain.ErrValidationFailed), errors.Is(err, domain.ErrInvalidInput):
		response.BadRequest(c, err.Error())
	case errors.Is(err, domain.ErrTransientFetch), errors.Is(err, domain.ErrAggregateChild):
		log.Warn("Upstream feed failed", "action", action, "error", err)
		response.BadGateway(c, err.Error())
	case errors.Is(err, domain.ErrStoreUnavailable), errors.Is(err, domain.ErrStoreClosed):
		log.Error("Store unavailable", "action", action, "error", err)
		response.ServiceUnavailable(c, "Storage unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		response.GatewayTimeout(c, "Timed out while trying to "+action)
	default:
		log.Error("Request failed", "action", action, "error", err)
		response.InternalServerError(c, "Failed to "+action)
	}
}

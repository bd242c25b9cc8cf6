package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/amiyamandal-dev/feedsync/internal/service"
	"github.com/amiyamandal-dev/feedsync/pkg/logger"
	"github.com/amiyamandal-dev/feedsync/pkg/response"
)

// FeedHandler handles feed-related requests
type FeedHandler struct {
	feedService *service.FeedService
	syncService *service.SyncService
	logger      *logger.Logger
}

// NewFeedHandler creates a new feed handler
func NewFeedHandler(feedService *service.FeedService, syncService *service.SyncService, logger *logger.Logger) *FeedHandler {
	return &FeedHandler{
		feedService: feedService,
		syncService: syncService,
		logger:      logger.WithComponent("feed-handler"),
	}
}

// List returns the status of every feed
func (h *FeedHandler) List(c *gin.Context) {
	response.Success(c, h.feedService.List(c.Request.Context()))
}

// Get returns the status of one feed
func (h *FeedHandler) Get(c *gin.Context) {
	feed, err := h.feedService.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, h.logger, err, "get feed")
		return
	}

	response.Success(c, feed)
}

// GetItems returns a page of a feed's items, newest first.
// q narrows the page to items matching every whitespace separated term.
func (h *FeedHandler) GetItems(c *gin.Context) {
	name := c.Param("name")

	params := NewQueryParamParser(c)
	pagination := params.Pagination(20)
	query := params.String("q", "")
	unread := params.Bool("unread")
	if err := params.Error(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	page, err := h.feedService.Items(c.Request.Context(), name, service.ItemQuery{
		Query:  query,
		Unread: unread,
		Page:   pagination.Page,
		Limit:  pagination.Limit,
	})
	if err != nil {
		respondError(c, h.logger, err, "get feed items")
		return
	}

	response.Paginated(c, page.Items, page.Page, page.Limit, page.Total)
}

// TriggerSync synchronizes a feed and returns its new status
func (h *FeedHandler) TriggerSync(c *gin.Context) {
	name := c.Param("name")

	if err := h.syncService.TriggerSync(c.Request.Context(), name); err != nil {
		respondError(c, h.logger, err, "synchronize feed")
		return
	}

	feed, err := h.feedService.Get(c.Request.Context(), name)
	if err != nil {
		respondError(c, h.logger, err, "get feed")
		return
	}
	response.SuccessWithMessage(c, "Feed synchronized", feed)
}

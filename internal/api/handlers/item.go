package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/amiyamandal-dev/feedsync/internal/service"
	"github.com/amiyamandal-dev/feedsync/pkg/logger"
	"github.com/amiyamandal-dev/feedsync/pkg/response"
)

// ItemHandler handles requests on stored items
type ItemHandler struct {
	feedService *service.FeedService
	logger      *logger.Logger
}

// NewItemHandler creates a new item handler
func NewItemHandler(feedService *service.FeedService, logger *logger.Logger) *ItemHandler {
	return &ItemHandler{
		feedService: feedService,
		logger:      logger.WithComponent("item-handler"),
	}
}

type markReadRequest struct {
	Read *bool `json:"read" binding:"required"`
}

type deleteItemsRequest struct {
	IDs []uuid.UUID `json:"ids" binding:"required,min=1,max=500"`
}

// Get returns one item
func (h *ItemHandler) Get(c *gin.Context) {
	params := NewQueryParamParser(c)
	id := params.UUIDParam("id")
	if err := params.Error(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	item, err := h.feedService.GetItem(c.Request.Context(), c.Param("partition"), id)
	if err != nil {
		respondError(c, h.logger, err, "get item")
		return
	}
	response.Success(c, item)
}

// MarkRead sets or clears the read flag of an item
func (h *ItemHandler) MarkRead(c *gin.Context) {
	params := NewQueryParamParser(c)
	id := params.UUIDParam("id")
	if err := params.Error(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Body must be {\"read\": true|false}")
		return
	}

	item, err := h.feedService.MarkRead(c.Request.Context(), c.Param("partition"), id, *req.Read)
	if err != nil {
		respondError(c, h.logger, err, "update item")
		return
	}
	response.Success(c, item)
}

// Delete removes one item
func (h *ItemHandler) Delete(c *gin.Context) {
	params := NewQueryParamParser(c)
	id := params.UUIDParam("id")
	if err := params.Error(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.feedService.DeleteItems(c.Request.Context(), c.Param("partition"), []uuid.UUID{id}); err != nil {
		respondError(c, h.logger, err, "delete item")
		return
	}
	response.SuccessWithMessage(c, "Item deleted", nil)
}

// DeleteBatch removes several items of one partition
func (h *ItemHandler) DeleteBatch(c *gin.Context) {
	var req deleteItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Body must be {\"ids\": [uuid, ...]} with 1 to 500 ids")
		return
	}

	if err := h.feedService.DeleteItems(c.Request.Context(), c.Param("partition"), req.IDs); err != nil {
		respondError(c, h.logger, err, "delete items")
		return
	}
	response.SuccessWithMessage(c, "Items deleted", gin.H{"count": len(req.IDs)})
}

// Content returns the sanitized HTML body of an item
func (h *ItemHandler) Content(c *gin.Context) {
	params := NewQueryParamParser(c)
	id := params.UUIDParam("id")
	reload := params.Bool("reload")
	if err := params.Error(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	body, err := h.feedService.Content(c.Request.Context(), c.Param("partition"), id, reload)
	if err != nil {
		respondError(c, h.logger, err, "load item content")
		return
	}
	response.Success(c, gin.H{"id": id, "html": body})
}

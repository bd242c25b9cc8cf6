package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/amiyamandal-dev/feedsync/internal/search"
	"github.com/amiyamandal-dev/feedsync/internal/service"
	"github.com/amiyamandal-dev/feedsync/pkg/logger"
	"github.com/amiyamandal-dev/feedsync/pkg/response"
)

// SearchHandler handles search-related requests
type SearchHandler struct {
	searchService *service.SearchService
	logger        *logger.Logger
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(searchService *service.SearchService, logger *logger.Logger) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
		logger:        logger.WithComponent("search-handler"),
	}
}

// Search runs a full-text query across every stored item
func (h *SearchHandler) Search(c *gin.Context) {
	params := NewQueryParamParser(c)
	text := params.String("q", "")
	feed := params.String("feed", "")
	author := params.String("author", "")
	dates := params.DateRange("from", "to")
	pagination := params.Pagination(20)
	if err := params.Error(); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.searchService.Search(c.Request.Context(), &search.Query{
		Text:      text,
		Partition: feed,
		Author:    author,
		FromDate:  dates.From,
		ToDate:    dates.To,
		Page:      pagination.Page,
		Limit:     pagination.Limit,
	})
	if err != nil {
		respondError(c, h.logger, err, "search")
		return
	}

	response.Success(c, result)
}

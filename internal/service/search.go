package service

import (
	"context"
	"errors"

	"github.com/amiyamandal-dev/feedsync/internal/domain"
	"github.com/amiyamandal-dev/feedsync/internal/search"
	"github.com/amiyamandal-dev/feedsync/internal/storage"
	"github.com/amiyamandal-dev/feedsync/pkg/logger"
)

// SearchResponse is one page of full-text results
type SearchResponse struct {
	Items      []ItemView `json:"items"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
	TotalPages int        `json:"total_pages"`
	QueryTime  int64      `json:"query_time_ms"`
}

// SearchService runs full-text searches across every partition
type SearchService struct {
	index   search.Index
	storage *storage.Storage
	logger  *logger.Logger
}

// NewSearchService creates a new search service
func NewSearchService(index search.Index, store *storage.Storage, logger *logger.Logger) *SearchService {
	return &SearchService{
		index:   index,
		storage: store,
		logger:  logger.WithComponent("search-service"),
	}
}

// Search runs q and resolves hits to the canonical items
func (s *SearchService) Search(ctx context.Context, q *search.Query) (*SearchResponse, error) {
	result, err := s.index.Search(ctx, q)
	if err != nil {
		s.logger.Error("Search failed", "query", q.Text, "error", err)
		return nil, err
	}

	items := make([]ItemView, 0, len(result.Hits))
	for _, hit := range result.Hits {
		item, err := s.storage.Partition(hit.Partition).Get(ctx, hit.ID)
		if err != nil {
			if errors.Is(err, domain.ErrItemNotFound) {
				s.logger.Warn("Index refers to missing item", "partition", hit.Partition, "item_id", hit.ID)
				continue
			}
			return nil, err
		}
		items = append(items, NewItemView(item))
	}

	return &SearchResponse{
		Items:      items,
		Total:      result.Total,
		Page:       result.Page,
		Limit:      result.Limit,
		TotalPages: result.TotalPages,
		QueryTime:  result.QueryTime,
	}, nil
}

// Count returns the number of indexed items
func (s *SearchService) Count() (uint64, error) {
	return s.index.Count()
}

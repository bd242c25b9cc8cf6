// Package search keeps a full-text index over every persisted item so items
// can be found across feeds.
package search

import (
	"context"
	"time"

	"github.com/amiyamandal-dev/feedsync/internal/domain"
	"github.com/google/uuid"
)

// Document is what gets indexed for one item
type Document struct {
	ID        string    `json:"id"`
	Partition string    `json:"partition"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Author    string    `json:"author"`
	URL       string    `json:"url"`
	Published time.Time `json:"published"`
}

// Query is a search over the index
type Query struct {
	Text      string
	Partition string
	Author    string
	FromDate  time.Time
	ToDate    time.Time
	Page      int
	Limit     int
}

// Hit identifies one matching item
type Hit struct {
	ID        uuid.UUID `json:"id"`
	Partition string    `json:"partition"`
	Score     float64   `json:"score"`
}

// Result is one page of hits
type Result struct {
	Hits       []Hit `json:"hits"`
	Total      int   `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
	QueryTime  int64 `json:"query_time_ms"`
}

// Index is the item search index
type Index interface {
	IndexItems(ctx context.Context, items []*domain.Item) error
	DeleteItems(ctx context.Context, ids []uuid.UUID) error
	Search(ctx context.Context, q *Query) (*Result, error)
	Count() (uint64, error)
	Close() error
}

// ItemToDocument converts an item, with plain turning HTML into text
func ItemToDocument(item *domain.Item, plain func(string) string) *Document {
	return &Document{
		ID:        item.ID.String(),
		Partition: item.Partition,
		Title:     item.Title(),
		Summary:   plain(item.Summary()),
		Author:    item.Author(),
		URL:       item.URL(),
		Published: item.Published(),
	}
}

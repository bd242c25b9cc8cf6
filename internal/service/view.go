package service

import (
	"time"

	"github.com/amiyamandal-dev/feedsync/internal/domain"
	"github.com/google/uuid"
)

// ItemView is the JSON shape of an item
type ItemView struct {
	ID         uuid.UUID `json:"id"`
	Partition  string    `json:"partition"`
	URL        string    `json:"url,omitempty"`
	ContentURL string    `json:"content_url,omitempty"`
	Title      string    `json:"title"`
	Author     string    `json:"author,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	Published  time.Time `json:"published"`
	Modified   time.Time `json:"modified"`
	Read       bool      `json:"read"`
}

// NewItemView snapshots item
func NewItemView(item *domain.Item) ItemView {
	f := item.Fields()
	return ItemView{
		ID:         item.ID,
		Partition:  item.Partition,
		URL:        f.URL,
		ContentURL: f.ContentURL,
		Title:      f.Title,
		Author:     f.Author,
		Summary:    f.Summary,
		Published:  f.Published,
		Modified:   f.Modified,
		Read:       f.Read,
	}
}

// ItemQuery selects a page of a feed's items
type ItemQuery struct {
	Query  string
	Unread bool
	Page   int
	Limit  int
}

// ItemPage is one page of items, newest first
type ItemPage struct {
	Items      []ItemView `json:"items"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
	TotalPages int        `json:"total_pages"`
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

func paginate(items []*domain.Item, page, limit int) *ItemPage {
	page, limit = normalizePage(page, limit)

	total := len(items)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	views := make([]ItemView, 0, end-start)
	for _, item := range items[start:end] {
		views = append(views, NewItemView(item))
	}

	totalPages := total / limit
	if total%limit > 0 {
		totalPages++
	}

	return &ItemPage{
		Items:      views,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}
}

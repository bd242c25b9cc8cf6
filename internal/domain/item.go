package domain

import (
	"context"
	"sync"
	"time"

	"github.com/amiyamandal-dev/feedsync/pkg/event"
	"github.com/google/uuid"
)

// ContentLoader produces the full body of an item on demand
type ContentLoader interface {
	// Load returns the body, bypassing any memoized copy when reload is set
	Load(ctx context.Context, reload bool) (string, error)
}

// ItemDescriptor is a fetched item that has not been reconciled yet
type ItemDescriptor struct {
	URL        string    `json:"url"`
	ContentURL string    `json:"content_url,omitempty"`
	Published  time.Time `json:"published"`
	Modified   time.Time `json:"modified"`
	Title      string    `json:"title"`
	Author     string    `json:"author,omitempty"`
	Summary    string    `json:"summary,omitempty"`
}

// ItemFields is a point-in-time copy of an item's mutable state
type ItemFields struct {
	ItemDescriptor
	Read bool `json:"read"`
}

// Item is the canonical, persisted representation of a feed entry.
// Identity never changes; fields are mutated in place and announced on Changed.
type Item struct {
	ID        uuid.UUID
	Partition string

	mu      sync.RWMutex
	fields  ItemFields
	content ContentLoader
	changed event.Event[*Item]
}

// NewItem creates an item with the given identity and state
func NewItem(id uuid.UUID, partition string, fields ItemFields) *Item {
	return &Item{ID: id, Partition: partition, fields: fields}
}

// Fields returns a copy of the current state
func (i *Item) Fields() ItemFields {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.fields
}

func (i *Item) URL() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.fields.URL
}

func (i *Item) ContentURL() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.fields.ContentURL
}

func (i *Item) Title() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.fields.Title
}

func (i *Item) Author() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.fields.Author
}

func (i *Item) Summary() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.fields.Summary
}

func (i *Item) Published() time.Time {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.fields.Published
}

func (i *Item) Modified() time.Time {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.fields.Modified
}

func (i *Item) IsRead() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.fields.Read
}

// Apply overwrites the descriptor fields, keeping identity and read state
func (i *Item) Apply(d ItemDescriptor) {
	i.mu.Lock()
	i.fields.ItemDescriptor = d
	i.mu.Unlock()

	i.changed.Fire(i)
}

// SetRead updates the read flag and reports whether it changed
func (i *Item) SetRead(read bool) bool {
	i.mu.Lock()
	if i.fields.Read == read {
		i.mu.Unlock()
		return false
	}
	i.fields.Read = read
	i.mu.Unlock()

	i.changed.Fire(i)
	return true
}

// ContentLoader returns the attached body loader, or nil
func (i *Item) ContentLoader() ContentLoader {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.content
}

// SetContentLoader attaches a body loader
func (i *Item) SetContentLoader(loader ContentLoader) {
	i.mu.Lock()
	i.content = loader
	i.mu.Unlock()
}

// Changed fires after any in-place mutation
func (i *Item) Changed() *event.Event[*Item] {
	return &i.changed
}

package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/amiyamandal-dev/feedsync/internal/domain"
	"github.com/amiyamandal-dev/feedsync/pkg/event"
	"github.com/amiyamandal-dev/feedsync/pkg/logger"
	"github.com/google/uuid"
)

// Partition is the durable item collection of one feed.
//
// Items are loaded from the backend once and then served from an identity
// map. Within a partition at most one item exists per non-empty URL.
// Every change is persisted before memory is touched, so a backend failure
// leaves the partition exactly as it was.
type Partition struct {
	name    string
	backend Backend
	indexer Indexer
	content ContentSource
	logger  *logger.Logger

	loadMu sync.Mutex
	loaded bool

	// serializes mutations so reconciliation decisions see a stable map
	writeMu sync.Mutex

	mu    sync.RWMutex
	byID  map[uuid.UUID]*domain.Item
	byURL map[string]*domain.Item

	deleted event.Event[[]uuid.UUID]
}

func newPartition(name string, backend Backend, indexer Indexer, content ContentSource, log *logger.Logger) *Partition {
	return &Partition{
		name:    name,
		backend: backend,
		indexer: indexer,
		content: content,
		logger:  log.WithFields(map[string]interface{}{"partition": name}),
		byID:    make(map[uuid.UUID]*domain.Item),
		byURL:   make(map[string]*domain.Item),
	}
}

// Name returns the partition name
func (p *Partition) Name() string {
	return p.name
}

// ItemsDeleted fires with the removed IDs after a successful delete
func (p *Partition) ItemsDeleted() *event.Event[[]uuid.UUID] {
	return &p.deleted
}

// GetItems returns every item of the partition
func (p *Partition) GetItems(ctx context.Context) ([]*domain.Item, error) {
	if err := p.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	items := make([]*domain.Item, 0, len(p.byID))
	for _, item := range p.byID {
		items = append(items, item)
	}
	return items, nil
}

// Get returns one item by ID
func (p *Partition) Get(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	if err := p.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	item, ok := p.byID[id]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	return item, nil
}

type staged struct {
	item   *domain.Item // nil for new items
	id     uuid.UUID
	fields domain.ItemFields
	dirty  bool
}

// AddOrUpdateItems reconciles fetched descriptors against the partition by URL.
//
// A descriptor whose URL matches an existing item overwrites that item's
// fields in place only when its Modified time is newer; the matched item is
// returned either way. Descriptors without a match become new items.
func (p *Partition) AddOrUpdateItems(ctx context.Context, descriptors []domain.ItemDescriptor) ([]*domain.Item, error) {
	if err := p.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	var (
		order   []*staged
		byURL   = make(map[string]*staged)
		records []Record
	)

	p.mu.RLock()
	for _, d := range descriptors {
		if d.URL != "" {
			if s, ok := byURL[d.URL]; ok {
				if d.Modified.After(s.fields.Modified) {
					s.fields.ItemDescriptor = d
					s.dirty = true
				}
				continue
			}
			if existing, ok := p.byURL[d.URL]; ok {
				s := &staged{item: existing, id: existing.ID, fields: existing.Fields()}
				if d.Modified.After(s.fields.Modified) {
					s.fields.ItemDescriptor = d
					s.dirty = true
				}
				byURL[d.URL] = s
				order = append(order, s)
				continue
			}
		}

		s := &staged{id: uuid.New(), fields: domain.ItemFields{ItemDescriptor: d}, dirty: true}
		if d.URL != "" {
			byURL[d.URL] = s
		}
		order = append(order, s)
	}
	p.mu.RUnlock()

	for _, s := range order {
		if s.dirty {
			records = append(records, Record{ID: s.id, Partition: p.name, Fields: s.fields})
		}
	}

	if len(records) > 0 {
		if err := p.backend.SaveRecords(ctx, records); err != nil {
			p.logger.Error("Failed to persist items", "count", len(records), "error", err)
			return nil, domain.NewReconciliationError(p.name, err)
		}
	}

	result := make([]*domain.Item, 0, len(order))
	var touched, added []*domain.Item

	for _, s := range order {
		switch {
		case s.item == nil:
			item := domain.NewItem(s.id, p.name, s.fields)
			if p.content != nil {
				item.SetContentLoader(p.content.LoaderFor(item))
			}
			added = append(added, item)
			result = append(result, item)
		case s.dirty:
			touched = append(touched, s.item)
			result = append(result, s.item)
		default:
			result = append(result, s.item)
		}
	}

	p.mu.Lock()
	for _, item := range added {
		p.byID[item.ID] = item
		if url := item.URL(); url != "" {
			p.byURL[url] = item
		}
	}
	p.mu.Unlock()

	// in-place updates fire item change events, so run them outside p.mu
	for _, s := range order {
		if s.item != nil && s.dirty {
			s.item.Apply(s.fields.ItemDescriptor)
		}
	}

	p.index(ctx, append(added, touched...))

	p.logger.Debug("Reconciled items",
		"incoming", len(descriptors),
		"added", len(added),
		"updated", len(touched),
		"unchanged", len(result)-len(added)-len(touched),
	)

	return result, nil
}

// SetRead persists and applies the read flag of one item
func (p *Partition) SetRead(ctx context.Context, id uuid.UUID, read bool) (*domain.Item, error) {
	if err := p.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.mu.RLock()
	item, ok := p.byID[id]
	p.mu.RUnlock()
	if !ok {
		return nil, domain.ErrItemNotFound
	}

	if item.IsRead() == read {
		return item, nil
	}

	fields := item.Fields()
	fields.Read = read
	if err := p.backend.SaveRecords(ctx, []Record{{ID: id, Partition: p.name, Fields: fields}}); err != nil {
		p.logger.Error("Failed to persist read state", "item_id", id.String(), "error", err)
		return nil, domain.NewReconciliationError(p.name, err)
	}

	item.SetRead(read)
	p.index(ctx, []*domain.Item{item})
	return item, nil
}

// DeleteItems removes items by ID and fires ItemsDeleted. Unknown IDs are ignored.
func (p *Partition) DeleteItems(ctx context.Context, ids []uuid.UUID) error {
	if err := p.ensureLoaded(ctx); err != nil {
		return err
	}

	p.writeMu.Lock()

	p.mu.RLock()
	present := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if _, ok := p.byID[id]; ok && !seen[id] {
			seen[id] = true
			present = append(present, id)
		}
	}
	p.mu.RUnlock()

	if len(present) == 0 {
		p.writeMu.Unlock()
		return nil
	}

	if err := p.backend.DeleteRecords(ctx, p.name, present); err != nil {
		p.writeMu.Unlock()
		p.logger.Error("Failed to delete items", "count", len(present), "error", err)
		return domain.NewReconciliationError(p.name, err)
	}

	p.mu.Lock()
	for _, id := range present {
		item := p.byID[id]
		delete(p.byID, id)
		if url := item.URL(); url != "" && p.byURL[url] == item {
			delete(p.byURL, url)
		}
	}
	p.mu.Unlock()

	if p.indexer != nil {
		if err := p.indexer.DeleteItems(ctx, present); err != nil {
			p.logger.Warn("Failed to remove items from index", "count", len(present), "error", err)
		}
	}
	p.writeMu.Unlock()

	p.logger.Info("Deleted items", "count", len(present))
	p.deleted.Fire(present)
	return nil
}

func (p *Partition) ensureLoaded(ctx context.Context) error {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()

	if p.loaded {
		return nil
	}

	records, err := p.backend.LoadPartition(ctx, p.name)
	if err != nil {
		p.logger.Error("Failed to load partition", "error", err)
		return fmt.Errorf("failed to load partition %s: %w", p.name, err)
	}

	p.mu.Lock()
	for _, r := range records {
		item := domain.NewItem(r.ID, p.name, r.Fields)
		if p.content != nil {
			item.SetContentLoader(p.content.LoaderFor(item))
		}
		p.byID[r.ID] = item
		if url := r.Fields.URL; url != "" {
			p.byURL[url] = item
		}
	}
	p.mu.Unlock()

	p.loaded = true
	p.logger.Debug("Loaded partition", "count", len(records))
	return nil
}

func (p *Partition) index(ctx context.Context, items []*domain.Item) {
	if p.indexer == nil || len(items) == 0 {
		return
	}
	if err := p.indexer.IndexItems(ctx, items); err != nil {
		p.logger.Warn("Failed to index items", "count", len(items), "error", err)
	}
}

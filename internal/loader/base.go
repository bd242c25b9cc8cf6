// Package loader implements the feed loading state machine and the loaders
// built on it: storage-backed feeds, groups of feeds and filtered views.
package loader

import (
	"context"
	"sync"
	"time"

	"github.com/amiyamandal-dev/feedsync/internal/domain"
	"github.com/amiyamandal-dev/feedsync/pkg/event"
)

// LoadState tracks whether the initial load has completed
type LoadState int

const (
	Unloaded LoadState = iota
	Loading
	Loaded
)

func (s LoadState) String() string {
	switch s {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	default:
		return "unloaded"
	}
}

// SyncState tracks whether a synchronize has completed
type SyncState int

const (
	NotSynchronized SyncState = iota
	Synchronizing
	Synchronized
)

func (s SyncState) String() string {
	switch s {
	case Synchronizing:
		return "synchronizing"
	case Synchronized:
		return "synchronized"
	default:
		return "not_synchronized"
	}
}

// Loader is a feed as seen by its consumers
type Loader interface {
	Items() domain.ItemSet
	Metadata() domain.Metadata
	LastSynchronized() (time.Time, bool)
	LoadState() LoadState
	SyncState() SyncState

	// Initialize loads the feed once. Concurrent callers share one load;
	// after a success it returns nil immediately.
	Initialize(ctx context.Context) error

	// Synchronize initializes if needed and then refreshes the feed.
	// Concurrent callers share the outstanding refresh.
	Synchronize(ctx context.Context) error

	ItemsUpdated() *event.Event[domain.ItemSet]
	MetadataUpdated() *event.Event[domain.Metadata]
}

// hooks are the per-kind steps Base drives
type hooks interface {
	loadHook(ctx context.Context) error
	syncHook(ctx context.Context) error
}

// Base implements Loader's lifecycle and snapshots over a hooks implementation.
// Hooks run detached from the caller's context: a caller that gives up stops
// waiting but the operation completes for everyone else.
type Base struct {
	hooks hooks

	initOp operation
	syncOp operation

	// serializes snapshot replacement with its notification
	publishMu sync.Mutex

	mu           sync.RWMutex
	items        domain.ItemSet
	metadata     domain.Metadata
	lastSync     time.Time
	synchronized bool

	itemsUpdated    event.Event[domain.ItemSet]
	metadataUpdated event.Event[domain.Metadata]
}

func newBase(h hooks, metadata domain.Metadata) *Base {
	return &Base{
		hooks:    h,
		initOp:   operation{once: true},
		metadata: metadata,
	}
}

// Items returns the current snapshot
func (b *Base) Items() domain.ItemSet {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.items
}

// Metadata returns the current metadata
func (b *Base) Metadata() domain.Metadata {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.metadata
}

// LastSynchronized returns the completion time of the last successful synchronize
func (b *Base) LastSynchronized() (time.Time, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastSync, b.synchronized
}

func (b *Base) LoadState() LoadState {
	switch {
	case b.initOp.done():
		return Loaded
	case b.initOp.running():
		return Loading
	default:
		return Unloaded
	}
}

func (b *Base) SyncState() SyncState {
	if b.syncOp.running() {
		return Synchronizing
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.synchronized {
		return Synchronized
	}
	return NotSynchronized
}

func (b *Base) ItemsUpdated() *event.Event[domain.ItemSet] {
	return &b.itemsUpdated
}

func (b *Base) MetadataUpdated() *event.Event[domain.Metadata] {
	return &b.metadataUpdated
}

func (b *Base) Initialize(ctx context.Context) error {
	return b.initOp.run(ctx, b.hooks.loadHook)
}

func (b *Base) Synchronize(ctx context.Context) error {
	return b.syncOp.run(ctx, func(ctx context.Context) error {
		if err := b.Initialize(ctx); err != nil {
			return err
		}
		if err := b.hooks.syncHook(ctx); err != nil {
			return err
		}

		b.mu.Lock()
		b.lastSync = time.Now()
		b.synchronized = true
		b.mu.Unlock()
		return nil
	})
}

// SetItems replaces the snapshot and fires ItemsUpdated, even for an equal set
func (b *Base) SetItems(items domain.ItemSet) {
	b.UpdateItems(func(domain.ItemSet) domain.ItemSet { return items })
}

// UpdateItems replaces the snapshot with fn(current) and fires ItemsUpdated.
// Concurrent updates are applied one after another.
func (b *Base) UpdateItems(fn func(current domain.ItemSet) domain.ItemSet) {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	b.mu.Lock()
	next := fn(b.items)
	b.items = next
	b.mu.Unlock()

	b.itemsUpdated.Fire(next)
}

// storeItems replaces the snapshot without notifying; the caller holds
// publishMu and fires ItemsUpdated itself
func (b *Base) storeItems(items domain.ItemSet) {
	b.mu.Lock()
	b.items = items
	b.mu.Unlock()
}

// SetMetadata replaces the metadata and fires MetadataUpdated
func (b *Base) SetMetadata(metadata domain.Metadata) {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	b.mu.Lock()
	b.metadata = metadata
	b.mu.Unlock()

	b.metadataUpdated.Fire(metadata)
}

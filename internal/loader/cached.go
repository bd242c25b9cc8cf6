package loader

import (
	"context"

	"github.com/amiyamandal-dev/feedsync/internal/domain"
	"github.com/amiyamandal-dev/feedsync/internal/work"
	"github.com/amiyamandal-dev/feedsync/pkg/event"
	"github.com/amiyamandal-dev/feedsync/pkg/logger"
	"github.com/google/uuid"
)

// Fetcher retrieves the current remote state of a feed
type Fetcher interface {
	Fetch(ctx context.Context) (domain.Metadata, []domain.ItemDescriptor, error)
}

// ItemStorage is the durable partition behind a cached feed
type ItemStorage interface {
	GetItems(ctx context.Context) ([]*domain.Item, error)
	AddOrUpdateItems(ctx context.Context, descriptors []domain.ItemDescriptor) ([]*domain.Item, error)
	SetRead(ctx context.Context, id uuid.UUID, read bool) (*domain.Item, error)
	DeleteItems(ctx context.Context, ids []uuid.UUID) error
	ItemsDeleted() *event.Event[[]uuid.UUID]
}

// CachedLoader serves a feed from its storage partition and refreshes it
// from a remote fetcher.
type CachedLoader struct {
	*Base

	name    string
	fetcher Fetcher
	storage ItemStorage
	pool    *work.Pool
	logger  *logger.Logger

	deletedSub *event.Subscription
}

// NewCachedLoader creates a loader for one feed partition
func NewCachedLoader(name string, metadata domain.Metadata, fetcher Fetcher, storage ItemStorage, pool *work.Pool, log *logger.Logger) *CachedLoader {
	if metadata.Name == "" {
		metadata.Name = name
	}

	l := &CachedLoader{
		name:    name,
		fetcher: fetcher,
		storage: storage,
		pool:    pool,
		logger:  log.WithComponent("cached-loader").WithFeed(name),
	}
	l.Base = newBase(l, metadata)
	l.deletedSub = storage.ItemsDeleted().Subscribe(l.onItemsDeleted)
	return l
}

func (l *CachedLoader) loadHook(ctx context.Context) error {
	items, err := l.storage.GetItems(ctx)
	if err != nil {
		l.logger.Error("Failed to load stored items", "error", err)
		return err
	}

	l.SetItems(domain.NewItemSet(items...))
	l.logger.Debug("Loaded stored items", "count", len(items))
	return nil
}

type fetchResult struct {
	metadata    domain.Metadata
	descriptors []domain.ItemDescriptor
}

func (l *CachedLoader) syncHook(ctx context.Context) error {
	res, err := work.Call(l.pool, func() (fetchResult, error) {
		metadata, descriptors, err := l.fetcher.Fetch(ctx)
		return fetchResult{metadata: metadata, descriptors: descriptors}, err
	})
	if err != nil {
		l.logger.Warn("Fetch failed", "error", err)
		return domain.NewFetchError(l.name, err)
	}

	items, err := l.storage.AddOrUpdateItems(ctx, res.descriptors)
	if err != nil {
		l.logger.Error("Failed to reconcile fetched items", "error", err)
		return err
	}

	fetched := domain.NewItemSet(items...)
	l.UpdateItems(func(current domain.ItemSet) domain.ItemSet {
		return current.Union(fetched)
	})

	metadata := res.metadata
	if metadata.Name == "" {
		metadata.Name = l.name
	}
	if metadata.Symbol == "" {
		metadata.Symbol = l.Metadata().Symbol
	}
	l.SetMetadata(metadata)

	l.logger.Info("Synchronized feed", "fetched", len(res.descriptors), "items", l.Items().Len())
	return nil
}

// onItemsDeleted reloads the whole snapshot so deleted items never linger
func (l *CachedLoader) onItemsDeleted(ids []uuid.UUID) {
	if l.LoadState() != Loaded {
		return
	}

	items, err := l.storage.GetItems(context.Background())
	if err != nil {
		l.logger.Error("Failed to reload items after delete", "error", err)
		return
	}
	l.SetItems(domain.NewItemSet(items...))
}

// SetRead marks one item of this feed read or unread
func (l *CachedLoader) SetRead(ctx context.Context, id uuid.UUID, read bool) (*domain.Item, error) {
	return l.storage.SetRead(ctx, id, read)
}

// DeleteItems removes items from this feed's partition
func (l *CachedLoader) DeleteItems(ctx context.Context, ids []uuid.UUID) error {
	return l.storage.DeleteItems(ctx, ids)
}

// Close detaches the loader from its storage partition
func (l *CachedLoader) Close() {
	l.deletedSub.Unsubscribe()
}

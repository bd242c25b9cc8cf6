package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/amiyamandal-dev/feedsync/internal/domain"
	"github.com/amiyamandal-dev/feedsync/internal/loader"
	"github.com/amiyamandal-dev/feedsync/internal/storage"
	"github.com/amiyamandal-dev/feedsync/internal/work"
	"github.com/amiyamandal-dev/feedsync/pkg/logger"
)

// FeedService exposes the loader tree to consumers
type FeedService struct {
	tree    *loader.Tree
	descs   map[string]domain.FeedDescriptor
	storage *storage.Storage
	pool    *work.Pool
	logger  *logger.Logger
}

// NewFeedService creates a new feed service over a built tree
func NewFeedService(
	tree *loader.Tree,
	descs []domain.FeedDescriptor,
	store *storage.Storage,
	pool *work.Pool,
	logger *logger.Logger,
) *FeedService {
	byName := make(map[string]domain.FeedDescriptor, len(descs))
	for _, d := range descs {
		byName[d.Name] = d
	}
	return &FeedService{
		tree:    tree,
		descs:   byName,
		storage: store,
		pool:    pool,
		logger:  logger.WithComponent("feed-service"),
	}
}

// List returns the status of every configured feed
func (s *FeedService) List(ctx context.Context) []domain.FeedStatus {
	nodes := s.tree.Nodes()
	statuses := make([]domain.FeedStatus, 0, len(nodes))
	for _, node := range nodes {
		statuses = append(statuses, s.status(node))
	}
	return statuses
}

// Get returns the status of one feed
func (s *FeedService) Get(ctx context.Context, name string) (*domain.FeedStatus, error) {
	node, err := s.node(name)
	if err != nil {
		return nil, err
	}
	st := s.status(node)
	return &st, nil
}

func (s *FeedService) status(node *loader.Node) domain.FeedStatus {
	l := node.Loader()
	st := domain.FeedStatus{
		Name:          node.Name(),
		Kind:          s.descs[node.Name()].Kind,
		Metadata:      l.Metadata(),
		ItemCount:     l.Items().Len(),
		Loaded:        l.LoadState() == loader.Loaded,
		Synchronized:  l.SyncState() == loader.Synchronized,
		Synchronizing: l.SyncState() == loader.Synchronizing,
	}
	if last, ok := l.LastSynchronized(); ok {
		st.LastSynchronized = &last
	}
	return st
}

func (s *FeedService) node(name string) (*loader.Node, error) {
	node, ok := s.tree.Node(name)
	if !ok {
		return nil, domain.ErrFeedNotFound
	}
	return node, nil
}

// nodesOfKind returns nodes in configuration order
func (s *FeedService) nodesOfKind(kind domain.FeedKind) []*loader.Node {
	var nodes []*loader.Node
	for _, node := range s.tree.Nodes() {
		if s.descs[node.Name()].Kind == kind {
			nodes = append(nodes, node)
		}
	}
	return nodes
}

// Items returns a page of a feed's items. A non-empty query narrows the
// page to items matching every term.
func (s *FeedService) Items(ctx context.Context, name string, q ItemQuery) (*ItemPage, error) {
	node, err := s.node(name)
	if err != nil {
		return nil, err
	}

	l := node.Loader()
	if err := l.Initialize(ctx); err != nil {
		s.logger.Error("Failed to initialize feed", "feed_name", name, "error", err)
		return nil, err
	}

	set := l.Items()
	if terms := loader.ParseTerms(q.Query); len(terms) > 0 {
		view := loader.NewSearchLoader(l, terms, s.pool, s.logger)
		defer view.Close()
		if err := view.Wait(ctx); err != nil {
			return nil, err
		}
		set = view.Items()
	}
	if q.Unread {
		set = set.Filter(func(item *domain.Item) bool { return !item.IsRead() })
	}

	return paginate(set.Items(), q.Page, q.Limit), nil
}

// Synchronize refreshes one feed and waits for it
func (s *FeedService) Synchronize(ctx context.Context, name string) error {
	node, err := s.node(name)
	if err != nil {
		return err
	}

	s.logger.Info("Synchronizing feed", "feed_name", name)
	if err := node.Loader().Synchronize(ctx); err != nil {
		s.logger.Error("Failed to synchronize feed", "feed_name", name, "error", err)
		return err
	}
	return nil
}

// partition returns the storage partition of an rss feed
func (s *FeedService) partition(name string) (*storage.Partition, error) {
	d, ok := s.descs[name]
	if !ok || d.Kind != domain.FeedKindRSS {
		return nil, domain.ErrFeedNotFound
	}
	return s.storage.Partition(name), nil
}

// GetItem returns one stored item
func (s *FeedService) GetItem(ctx context.Context, partition string, id uuid.UUID) (*ItemView, error) {
	p, err := s.partition(partition)
	if err != nil {
		return nil, err
	}
	item, err := p.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	view := NewItemView(item)
	return &view, nil
}

// MarkRead sets the read flag of an item
func (s *FeedService) MarkRead(ctx context.Context, partition string, id uuid.UUID, read bool) (*ItemView, error) {
	p, err := s.partition(partition)
	if err != nil {
		return nil, err
	}

	item, err := p.SetRead(ctx, id, read)
	if err != nil {
		s.logger.Error("Failed to mark item", "partition", partition, "item_id", id, "read", read, "error", err)
		return nil, err
	}

	view := NewItemView(item)
	return &view, nil
}

// DeleteItems removes items from a partition; feeds over it reload
func (s *FeedService) DeleteItems(ctx context.Context, partition string, ids []uuid.UUID) error {
	p, err := s.partition(partition)
	if err != nil {
		return err
	}

	if err := p.DeleteItems(ctx, ids); err != nil {
		s.logger.Error("Failed to delete items", "partition", partition, "count", len(ids), "error", err)
		return err
	}

	s.logger.Info("Deleted items", "partition", partition, "count", len(ids))
	return nil
}

// Content loads the body of an item
func (s *FeedService) Content(ctx context.Context, partition string, id uuid.UUID, reload bool) (string, error) {
	p, err := s.partition(partition)
	if err != nil {
		return "", err
	}
	item, err := p.Get(ctx, id)
	if err != nil {
		return "", err
	}

	cl := item.ContentLoader()
	if cl == nil {
		return "", fmt.Errorf("item %s has no content: %w", id, domain.ErrNotFound)
	}
	return cl.Load(ctx, reload)
}

// Close releases the loader tree
func (s *FeedService) Close() {
	s.tree.Close()
}

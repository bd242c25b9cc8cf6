package loader

import (
	"fmt"

	"github.com/amiyamandal-dev/feedsync/internal/domain"
	"github.com/amiyamandal-dev/feedsync/internal/storage"
	"github.com/amiyamandal-dev/feedsync/internal/work"
	"github.com/amiyamandal-dev/feedsync/pkg/logger"
)

// FetcherFunc builds the remote fetcher of an rss descriptor
type FetcherFunc func(desc domain.FeedDescriptor) Fetcher

// Factory turns feed descriptors into a tree of loaders
type Factory struct {
	storage    *storage.Storage
	newFetcher FetcherFunc
	pool       *work.Pool
	logger     *logger.Logger
}

func NewFactory(store *storage.Storage, newFetcher FetcherFunc, pool *work.Pool, log *logger.Logger) *Factory {
	return &Factory{
		storage:    store,
		newFetcher: newFetcher,
		pool:       pool,
		logger:     log,
	}
}

// Tree is the built feed graph
type Tree struct {
	nodes   map[string]*Node
	order   []string
	closers []func()
}

// Node returns the node of a configured feed
func (t *Tree) Node(name string) (*Node, bool) {
	n, ok := t.nodes[name]
	return n, ok
}

// Nodes returns every node in configuration order
func (t *Tree) Nodes() []*Node {
	nodes := make([]*Node, 0, len(t.order))
	for _, name := range t.order {
		nodes = append(nodes, t.nodes[name])
	}
	return nodes
}

// Close releases loaders in reverse creation order
func (t *Tree) Close() {
	for i := len(t.closers) - 1; i >= 0; i-- {
		t.closers[i]()
	}
	t.closers = nil
}

type treeBuilder struct {
	f       *Factory
	descs   map[string]domain.FeedDescriptor
	tree    *Tree
	visited map[string]bool
}

// Build validates descs and creates one node per descriptor. Group children
// and search sources refer to other descriptors by name; reference cycles
// are rejected.
func (f *Factory) Build(descs []domain.FeedDescriptor) (*Tree, error) {
	b := &treeBuilder{
		f:       f,
		descs:   make(map[string]domain.FeedDescriptor, len(descs)),
		tree:    &Tree{nodes: make(map[string]*Node, len(descs))},
		visited: make(map[string]bool),
	}

	for _, desc := range descs {
		if err := desc.Validate(); err != nil {
			return nil, fmt.Errorf("feed %q: %w", desc.Name, err)
		}
		if _, dup := b.descs[desc.Name]; dup {
			return nil, fmt.Errorf("feed %q: %w", desc.Name, domain.ErrFeedAlreadyExists)
		}
		b.descs[desc.Name] = desc
		b.tree.order = append(b.tree.order, desc.Name)
	}

	for _, desc := range descs {
		if _, err := b.resolve(desc.Name); err != nil {
			b.tree.Close()
			return nil, err
		}
	}

	f.logger.Info("Built feed tree", "feeds", len(b.tree.order))
	return b.tree, nil
}

func (b *treeBuilder) resolve(name string) (*Node, error) {
	if n, ok := b.tree.nodes[name]; ok {
		return n, nil
	}
	if b.visited[name] {
		return nil, fmt.Errorf("feed %q references itself: %w", name, domain.ErrInvalidFeed)
	}
	desc, ok := b.descs[name]
	if !ok {
		return nil, fmt.Errorf("feed %q: %w", name, domain.ErrFeedNotFound)
	}
	b.visited[name] = true

	var (
		node *Node
		err  error
	)
	switch desc.Kind {
	case domain.FeedKindRSS:
		node = b.buildRSS(desc)
	case domain.FeedKindGroup:
		node, err = b.buildGroup(desc)
	case domain.FeedKindSearch:
		node, err = b.buildSearch(desc)
	default:
		err = fmt.Errorf("feed %q: unknown kind %q: %w", name, desc.Kind, domain.ErrInvalidFeed)
	}
	if err != nil {
		return nil, err
	}

	node.SetExcluded(desc.Excluded)
	b.tree.nodes[name] = node
	return node, nil
}

func (b *treeBuilder) buildRSS(desc domain.FeedDescriptor) *Node {
	l := NewCachedLoader(
		desc.Name,
		domain.Metadata{Name: desc.Name, Symbol: desc.Symbol},
		b.f.newFetcher(desc),
		b.f.storage.Partition(desc.Name),
		b.f.pool,
		b.f.logger,
	)
	b.tree.closers = append(b.tree.closers, l.Close)
	return NewNode(desc.Name, l)
}

func (b *treeBuilder) buildGroup(desc domain.FeedDescriptor) (*Node, error) {
	node := NewNode(desc.Name, nil)

	children := make([]*Node, 0, len(desc.Children))
	for _, childName := range desc.Children {
		child, err := b.resolve(childName)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", desc.Name, err)
		}
		children = append(children, child)
	}
	node.SetChildren(children)

	g := NewTrackingGroup(node, b.f.logger)
	g.SetMetadata(domain.Metadata{Name: desc.Name, Symbol: desc.Symbol})
	node.SetLoader(g)
	b.tree.closers = append(b.tree.closers, g.Close)
	return node, nil
}

func (b *treeBuilder) buildSearch(desc domain.FeedDescriptor) (*Node, error) {
	source, err := b.resolve(desc.Source)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", desc.Name, err)
	}

	s := NewSearchLoader(source.Loader(), ParseTerms(desc.Query), b.f.pool, b.f.logger)
	b.tree.closers = append(b.tree.closers, s.Close)
	return NewNode(desc.Name, s), nil
}

package loader

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/amiyamandal-dev/feedsync/internal/domain"
	"github.com/amiyamandal-dev/feedsync/pkg/event"
	"github.com/amiyamandal-dev/feedsync/pkg/logger"
	"go.uber.org/multierr"
)

// GroupLoader presents the union of its children's items.
//
// While the group's own initialize or synchronize runs, child notifications
// are ignored and the union is recomputed once after every child settled.
// Outside of that, a child notification recomputes immediately, but only
// once a group load has completed, successfully or not.
type GroupLoader struct {
	*Base

	name   string
	logger *logger.Logger

	mu                sync.Mutex
	loaders           []Loader
	subs              map[Loader]*event.Subscription
	hasStartedLoading bool

	ignoreUpdates atomic.Int32
	loadSettled   atomic.Bool
	deferred      sync.WaitGroup

	onClose func()
}

// NewGroupLoader creates an empty group
func NewGroupLoader(name string, metadata domain.Metadata, log *logger.Logger) *GroupLoader {
	if metadata.Name == "" {
		metadata.Name = name
	}
	g := &GroupLoader{
		name:   name,
		logger: log.WithComponent("group-loader").WithFeed(name),
		subs:   make(map[Loader]*event.Subscription),
	}
	g.Base = newBase(g, metadata)
	return g
}

// Loaders returns the current children
func (g *GroupLoader) Loaders() []Loader {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Loader(nil), g.loaders...)
}

// SetLoaders replaces the children. Removed children are unsubscribed at
// once; if the group has started loading the union is recomputed right away
// and added children are initialized in the background.
func (g *GroupLoader) SetLoaders(loaders []Loader) {
	next := make([]Loader, 0, len(loaders))
	nextSet := make(map[Loader]bool, len(loaders))
	for _, l := range loaders {
		if l == nil || nextSet[l] {
			continue
		}
		nextSet[l] = true
		next = append(next, l)
	}

	g.mu.Lock()
	var added []Loader
	for l, sub := range g.subs {
		if !nextSet[l] {
			sub.Unsubscribe()
			delete(g.subs, l)
		}
	}
	for _, l := range next {
		if _, ok := g.subs[l]; !ok {
			g.subs[l] = l.ItemsUpdated().Subscribe(g.onChildUpdated)
			added = append(added, l)
		}
	}
	g.loaders = next
	started := g.hasStartedLoading
	g.mu.Unlock()

	if !started {
		return
	}

	g.recompute()
	for _, l := range added {
		g.deferred.Add(1)
		go func(l Loader) {
			defer g.deferred.Done()
			if err := l.Initialize(context.Background()); err != nil {
				// retried by the next synchronize of the group
				g.logger.Warn("Deferred child initialize failed", "child", l.Metadata().Name, "error", err)
			}
		}(l)
	}
}

func (g *GroupLoader) onChildUpdated(domain.ItemSet) {
	if g.ignoreUpdates.Load() > 0 {
		return
	}
	if !g.loadSettled.Load() {
		return
	}
	g.recompute()
}

// recompute reads the children inside the publish step, so a union built
// from an older membership can never be published after a newer one
func (g *GroupLoader) recompute() {
	g.UpdateItems(func(domain.ItemSet) domain.ItemSet {
		children := g.Loaders()
		sets := make([]domain.ItemSet, 0, len(children))
		for _, l := range children {
			sets = append(sets, l.Items())
		}
		return domain.ItemSet{}.Union(sets...)
	})
}

func (g *GroupLoader) loadHook(ctx context.Context) error {
	return g.forEachChild(ctx, "initialize", Loader.Initialize)
}

func (g *GroupLoader) syncHook(ctx context.Context) error {
	return g.forEachChild(ctx, "synchronize", Loader.Synchronize)
}

func (g *GroupLoader) forEachChild(ctx context.Context, op string, fn func(Loader, context.Context) error) error {
	g.mu.Lock()
	g.hasStartedLoading = true
	children := append([]Loader(nil), g.loaders...)
	g.mu.Unlock()

	g.ignoreUpdates.Add(1)

	var (
		mu   sync.Mutex
		errs error
		wg   sync.WaitGroup
	)
	for _, child := range children {
		wg.Add(1)
		go func(child Loader) {
			defer wg.Done()
			if err := fn(child, ctx); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", child.Metadata().Name, err))
				mu.Unlock()
			}
		}(child)
	}
	wg.Wait()

	// updates arriving from here on recompute on their own
	g.loadSettled.Store(true)
	g.ignoreUpdates.Add(-1)
	g.recompute()

	if errs != nil {
		g.logger.Warn("Child feeds failed", "op", op, "failed", len(multierr.Errors(errs)), "children", len(children))
	}
	return domain.NewAggregateError(op, multierr.Errors(errs))
}

// Close unsubscribes from every child and waits for deferred initializations
func (g *GroupLoader) Close() {
	if g.onClose != nil {
		g.onClose()
	}

	g.mu.Lock()
	for l, sub := range g.subs {
		sub.Unsubscribe()
		delete(g.subs, l)
	}
	g.mu.Unlock()

	g.deferred.Wait()
}

// NewTrackingGroup creates a group whose children follow the loaders of
// node's non-excluded children.
func NewTrackingGroup(node *Node, log *logger.Logger) *GroupLoader {
	g := NewGroupLoader(node.Name(), domain.Metadata{Name: node.Name()}, log)

	var (
		mu        sync.Mutex
		childSubs = make(map[*Node]*event.Subscription)
	)

	update := func() {
		g.SetLoaders(node.ActiveLoaders())
	}

	// follow exclusion and loader changes of each current child
	rewire := func() {
		children := node.Children()
		current := make(map[*Node]bool, len(children))

		mu.Lock()
		for _, child := range children {
			current[child] = true
			if _, ok := childSubs[child]; !ok {
				childSubs[child] = child.Changed().Subscribe(func(*Node) { update() })
			}
		}
		for child, sub := range childSubs {
			if !current[child] {
				sub.Unsubscribe()
				delete(childSubs, child)
			}
		}
		mu.Unlock()

		update()
	}

	nodeSub := node.ChildrenChanged().Subscribe(func([]*Node) { rewire() })
	rewire()

	g.onClose = func() {
		nodeSub.Unsubscribe()
		mu.Lock()
		for child, sub := range childSubs {
			sub.Unsubscribe()
			delete(childSubs, child)
		}
		mu.Unlock()
	}
	return g
}

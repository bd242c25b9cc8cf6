package loader

import (
	"context"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/amiyamandal-dev/feedsync/internal/domain"
	"github.com/amiyamandal-dev/feedsync/internal/work"
	"github.com/amiyamandal-dev/feedsync/pkg/event"
	"github.com/amiyamandal-dev/feedsync/pkg/logger"
)

// SearchLoader is a filtered view over a source loader: an item stays when
// every term occurs in its title or author (ignoring case) or verbatim in
// its summary.
//
// Each recompute takes a new generation; a filter pass that finishes after
// a newer one started is dropped. A result is settled before ItemsUpdated
// fires, so handlers may call Wait. Handlers must not clear the terms
// synchronously: that republishes from inside the running publication.
type SearchLoader struct {
	*Base

	source Loader
	pool   *work.Pool
	logger *logger.Logger

	termsMu sync.Mutex
	terms   []string

	generation atomic.Uint64

	mu      sync.Mutex
	settled uint64
	notify  chan struct{}

	tasks   sync.WaitGroup
	subs    []*event.Subscription
	closing atomic.Bool
}

// NewSearchLoader creates a view over source and computes it right away
func NewSearchLoader(source Loader, terms []string, pool *work.Pool, log *logger.Logger) *SearchLoader {
	s := &SearchLoader{
		source: source,
		pool:   pool,
		logger: log.WithComponent("search-loader").WithFeed(source.Metadata().Name),
		terms:  slices.Clone(terms),
		notify: make(chan struct{}),
	}
	s.Base = newBase(s, source.Metadata())

	s.subs = append(s.subs,
		source.ItemsUpdated().Subscribe(func(domain.ItemSet) { s.recompute() }),
		source.MetadataUpdated().Subscribe(s.SetMetadata),
	)
	s.recompute()
	return s
}

// ParseTerms splits a query on whitespace
func ParseTerms(query string) []string {
	return strings.Fields(query)
}

func (s *SearchLoader) Source() Loader {
	return s.source
}

func (s *SearchLoader) Terms() []string {
	s.termsMu.Lock()
	defer s.termsMu.Unlock()
	return slices.Clone(s.terms)
}

// SetTerms replaces the search terms; an identical list changes nothing
func (s *SearchLoader) SetTerms(terms []string) {
	s.termsMu.Lock()
	if slices.Equal(s.terms, terms) {
		s.termsMu.Unlock()
		return
	}
	s.terms = slices.Clone(terms)
	s.termsMu.Unlock()

	s.recompute()
}

// LastSynchronized reports the source's synchronization time
func (s *SearchLoader) LastSynchronized() (time.Time, bool) {
	return s.source.LastSynchronized()
}

func (s *SearchLoader) loadHook(ctx context.Context) error {
	return s.source.Initialize(ctx)
}

func (s *SearchLoader) syncHook(ctx context.Context) error {
	return s.source.Synchronize(ctx)
}

// Wait blocks until the most recent recompute has settled
func (s *SearchLoader) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.settled >= s.generation.Load() {
			s.mu.Unlock()
			return nil
		}
		ch := s.notify
		s.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

type searchEntry struct {
	item   *domain.Item
	fields [3]string
}

func (s *SearchLoader) recompute() {
	if s.closing.Load() {
		return
	}

	gen := s.generation.Add(1)
	terms := s.Terms()
	items := s.source.Items()

	if len(terms) == 0 || items.Len() == 0 {
		s.publish(gen, items)
		return
	}

	entries := make([]searchEntry, 0, items.Len())
	for _, item := range items.Items() {
		entries = append(entries, searchEntry{
			item: item,
			fields: [3]string{
				strings.ToLower(item.Title()),
				strings.ToLower(item.Author()),
				item.Summary(),
			},
		})
	}

	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()

		filtered, err := work.Call(s.pool, func() (domain.ItemSet, error) {
			return filterEntries(entries, terms), nil
		})
		if err != nil {
			s.logger.Error("Search filter failed", "error", err)
			s.settle(gen)
			return
		}
		s.publish(gen, filtered)
	}()
}

func filterEntries(entries []searchEntry, terms []string) domain.ItemSet {
	idx := make([]int, len(entries))
	for i := range idx {
		idx[i] = i
	}

	for _, term := range terms {
		lower := strings.ToLower(term)
		kept := idx[:0]
		for _, i := range idx {
			f := entries[i].fields
			if strings.Contains(f[0], lower) || strings.Contains(f[1], lower) || strings.Contains(f[2], term) {
				kept = append(kept, i)
			}
		}
		idx = kept
		if len(idx) == 0 {
			break
		}
	}

	items := make([]*domain.Item, 0, len(idx))
	for _, i := range idx {
		items = append(items, entries[i].item)
	}
	return domain.NewItemSet(items...)
}

// publish stores and settles a current result under s.mu, then fires
// outside it; publishMu keeps the notifications in store order
func (s *SearchLoader) publish(gen uint64, items domain.ItemSet) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	if gen != s.generation.Load() {
		s.mu.Unlock()
		s.logger.Debug("Discarded stale search result", "generation", gen)
		return
	}
	s.storeItems(items)
	s.settleLocked(gen)
	s.mu.Unlock()

	s.itemsUpdated.Fire(items)
}

func (s *SearchLoader) settle(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settleLocked(gen)
}

func (s *SearchLoader) settleLocked(gen uint64) {
	if gen <= s.settled {
		return
	}
	s.settled = gen
	close(s.notify)
	s.notify = make(chan struct{})
}

// Close detaches from the source and waits for running filter passes
func (s *SearchLoader) Close() {
	s.closing.Store(true)
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	s.tasks.Wait()
}

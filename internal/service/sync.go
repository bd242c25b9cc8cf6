package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/amiyamandal-dev/feedsync/internal/domain"
	"github.com/amiyamandal-dev/feedsync/pkg/logger"
)

// settler is implemented by loaders that publish asynchronously
type settler interface {
	Wait(ctx context.Context) error
}

// SyncService synchronizes every feed on an interval
type SyncService struct {
	feeds    *FeedService
	workers  int
	logger   *logger.Logger
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewSyncService creates a new sync service. workers bounds how many feeds
// are fetched at once; 0 means no bound.
func NewSyncService(feeds *FeedService, workers int, logger *logger.Logger) *SyncService {
	return &SyncService{
		feeds:    feeds,
		workers:  workers,
		logger:   logger.WithComponent("sync-service"),
		stopChan: make(chan struct{}),
	}
}

// Start runs the sync loop until Stop or ctx ends. A non-positive interval
// only runs the initial sync.
func (s *SyncService) Start(ctx context.Context, interval time.Duration, onStart bool) {
	s.logger.Info("Starting feed sync service", "interval", interval.String())

	if interval <= 0 {
		if onStart {
			s.syncAllFeeds(ctx)
		}
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if onStart {
		s.syncAllFeeds(ctx)
	}

	for {
		select {
		case <-ticker.C:
			s.syncAllFeeds(ctx)
		case <-s.stopChan:
			s.logger.Info("Stopping feed sync service")
			return
		case <-ctx.Done():
			s.logger.Info("Context cancelled, stopping sync service")
			return
		}
	}
}

// Stop stops the background sync service
func (s *SyncService) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

func (s *SyncService) syncAllFeeds(ctx context.Context) {
	if err := s.SyncAll(ctx); err != nil {
		s.logger.Warn("Feed sync finished with failures", "error", err)
	}
}

// SyncAll synchronizes every rss feed, then brings groups and searches up
// to date. Every feed is attempted; failures are returned together.
func (s *SyncService) SyncAll(ctx context.Context) error {
	start := time.Now()

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs error
	)
	if s.workers > 0 {
		g.SetLimit(s.workers)
	}

	leaves := s.feeds.nodesOfKind(domain.FeedKindRSS)
	for _, node := range leaves {
		g.Go(func() error {
			if err := node.Loader().Synchronize(ctx); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", node.Name(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, kind := range []domain.FeedKind{domain.FeedKindGroup, domain.FeedKindSearch} {
		for _, node := range s.feeds.nodesOfKind(kind) {
			l := node.Loader()
			if err := l.Initialize(ctx); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", node.Name(), err))
				continue
			}
			if view, ok := l.(settler); ok {
				if err := view.Wait(ctx); err != nil {
					errs = multierr.Append(errs, fmt.Errorf("%s: %w", node.Name(), err))
				}
			}
		}
	}

	failed := len(multierr.Errors(errs))
	s.logger.Info("Feed sync completed",
		"feeds", len(leaves),
		"failed", failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return domain.NewAggregateError("synchronize", multierr.Errors(errs))
}

// TriggerSync manually synchronizes one feed
func (s *SyncService) TriggerSync(ctx context.Context, feedName string) error {
	return s.feeds.Synchronize(ctx, feedName)
}

package main

import (
	"fmt"
	"net/http"

	"go.uber.org/multierr"
	"golang.org/x/time/rate"

	"github.com/amiyamandal-dev/feedsync/internal/config"
	"github.com/amiyamandal-dev/feedsync/internal/content"
	"github.com/amiyamandal-dev/feedsync/internal/domain"
	"github.com/amiyamandal-dev/feedsync/internal/fetch"
	"github.com/amiyamandal-dev/feedsync/internal/loader"
	"github.com/amiyamandal-dev/feedsync/internal/repository/badger"
	"github.com/amiyamandal-dev/feedsync/internal/repository/sqlite"
	"github.com/amiyamandal-dev/feedsync/internal/search"
	"github.com/amiyamandal-dev/feedsync/internal/service"
	"github.com/amiyamandal-dev/feedsync/internal/storage"
	"github.com/amiyamandal-dev/feedsync/internal/work"
	"github.com/amiyamandal-dev/feedsync/pkg/logger"
)

// app holds every long-lived component, built in dependency order
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	index   *search.BleveIndex
	store   *storage.Storage
	pool    *work.Pool
	feeds   *service.FeedService
	syncer  *service.SyncService
	search  *service.SearchService
	closers []func() error
}

func newApp(cfg *config.Config, log *logger.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	backend, err := openBackend(cfg.Database, log)
	if err != nil {
		return nil, err
	}

	a.index, err = search.OpenBleveIndex(cfg.Search.IndexPath, log)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("failed to open search index: %w", err)
	}
	a.closers = append(a.closers, a.index.Close)

	count, _ := a.index.Count()
	log.Info("Search index opened", "path", cfg.Search.IndexPath, "document_count", count)

	a.pool = work.NewPool(cfg.Sync.Workers, log)
	client := &http.Client{Timeout: cfg.Content.FetchTimeout}
	limiter := rate.NewLimiter(rate.Limit(cfg.Content.RequestsPerSecond), cfg.Content.Burst)

	provider, err := a.contentProvider(client, limiter)
	if err != nil {
		backend.Close()
		return nil, err
	}

	a.store = storage.New(backend, a.index, provider, log)
	a.closers = append(a.closers, a.store.Close)

	factory := loader.NewFactory(a.store, func(desc domain.FeedDescriptor) loader.Fetcher {
		return fetch.NewRSSFetcher(desc.URL, client, limiter, log)
	}, a.pool, log)

	tree, err := factory.Build(cfg.Feeds)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed tree: %w", err)
	}

	a.feeds = service.NewFeedService(tree, cfg.Feeds, a.store, a.pool, log)
	a.closers = append(a.closers, func() error {
		a.feeds.Close()
		a.pool.Wait()
		return nil
	})
	a.syncer = service.NewSyncService(a.feeds, cfg.Sync.Workers, log)
	a.search = service.NewSearchService(a.index, a.store, log)

	log.Info("Feed tree built", "feeds", len(cfg.Feeds))
	return a, nil
}

func openBackend(cfg config.DatabaseConfig, log *logger.Logger) (storage.Backend, error) {
	switch cfg.Mode {
	case "memory":
		log.Info("Using in-memory item store")
		return storage.NewMemoryBackend(), nil
	case "badger":
		db, err := badger.New(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger store: %w", err)
		}
		log.Info("Database initialized", "mode", cfg.Mode, "path", cfg.Path)
		return badger.NewItemRepo(db, log), nil
	default:
		db, err := sqlite.New(cfg.Path, cfg.MaxOpenConns, cfg.MaxIdleConns)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		log.Info("Database initialized", "mode", cfg.Mode, "path", cfg.Path)
		return sqlite.NewItemRepo(db, log), nil
	}
}

func (a *app) contentProvider(client *http.Client, limiter *rate.Limiter) (*content.Provider, error) {
	cache, err := content.NewCache(a.cfg.Content.CacheCapacity, a.log)
	if err != nil {
		return nil, err
	}

	var bodies content.BodyStore
	if path := a.cfg.Content.BodyCachePath; path != "" {
		db, err := badger.New(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open body cache: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		bodies = badger.NewBodyCache(db, a.cfg.Content.BodyTTL)
		a.log.Info("Body cache opened", "path", path)
	}

	return content.NewProvider(cache, client, limiter, bodies, content.NewRenderer(), a.pool, a.log), nil
}

// Close releases components in reverse construction order
func (a *app) Close() error {
	var errs error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, a.closers[i]())
	}
	a.closers = nil
	return errs
}

func loadApp() (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a, err := newApp(cfg, log)
	if err != nil {
		log.Error("Failed to initialize", "error", err)
		_ = log.Sync()
		return nil, err
	}
	return a, nil
}

package content

import (
	"context"
	"net/http"

	"github.com/amiyamandal-dev/feedsync/internal/domain"
	"github.com/amiyamandal-dev/feedsync/internal/work"
	"github.com/amiyamandal-dev/feedsync/pkg/logger"
	"golang.org/x/time/rate"
)

const userAgent = "feedsync/1.0 (+https://github.com/amiyamandal-dev/feedsync)"

// Provider attaches cache-backed body loaders to items.
// Loaders are keyed by item ID and constructed warm: the factory performs
// the first load, so a failed fetch leaves nothing in the cache.
type Provider struct {
	cache    *Cache
	client   *http.Client
	limiter  *rate.Limiter
	store    BodyStore
	renderer *Renderer
	pool     *work.Pool
	logger   *logger.Logger
}

// NewProvider creates a provider. limiter and store may be nil.
func NewProvider(cache *Cache, client *http.Client, limiter *rate.Limiter, store BodyStore, renderer *Renderer, pool *work.Pool, log *logger.Logger) *Provider {
	return &Provider{
		cache:    cache,
		client:   client,
		limiter:  limiter,
		store:    store,
		renderer: renderer,
		pool:     pool,
		logger:   log.WithComponent("content-provider"),
	}
}

// LoaderFor returns a lazy loader for item
func (p *Provider) LoaderFor(item *domain.Item) domain.ContentLoader {
	return &itemLoader{provider: p, item: item}
}

type itemLoader struct {
	provider *Provider
	item     *domain.Item
}

func (l *itemLoader) Load(ctx context.Context, reload bool) (string, error) {
	p := l.provider
	key := l.item.ID.String()

	return work.Call(p.pool, func() (string, error) {
		constructed := false
		loader, err := p.cache.GetOrCreate(ctx, key, func(ctx context.Context) (domain.ContentLoader, error) {
			constructed = true
			return p.construct(ctx, key, l.item)
		})
		if err != nil {
			return "", err
		}
		// a fresh construction already loaded once
		return loader.Load(ctx, reload && !constructed)
	})
}

func (p *Provider) construct(ctx context.Context, key string, item *domain.Item) (domain.ContentLoader, error) {
	url := item.ContentURL()
	if url == "" {
		url = item.URL()
	}
	if url == "" {
		return summaryLoader{item: item, renderer: p.renderer}, nil
	}

	loader := NewHTTPLoader(key, url, p.client, p.limiter, p.store, p.renderer, p.logger)
	if _, err := loader.Load(ctx, false); err != nil {
		return nil, err
	}
	p.logger.Debug("Constructed content loader", "key", key, "url", url)
	return loader, nil
}

// Invalidate drops the cached loader and stored body of an item
func (p *Provider) Invalidate(ctx context.Context, item *domain.Item) {
	key := item.ID.String()
	p.cache.Remove(key)
	if p.store != nil {
		if err := p.store.Invalidate(ctx, key); err != nil {
			p.logger.Warn("Failed to invalidate stored body", "key", key, "error", err)
		}
	}
}

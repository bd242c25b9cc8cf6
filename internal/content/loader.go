package content

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/amiyamandal-dev/feedsync/internal/domain"
	"github.com/amiyamandal-dev/feedsync/pkg/logger"
	"golang.org/x/time/rate"
)

const maxBodySize = 5 << 20

// BodyStore is the persistent tier behind loaders
type BodyStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, body string) error
	Invalidate(ctx context.Context, key string) error
}

// HTTPLoader fetches, renders and memoizes the body at one URL
type HTTPLoader struct {
	key      string
	url      string
	client   *http.Client
	limiter  *rate.Limiter
	store    BodyStore
	renderer *Renderer
	logger   *logger.Logger

	mu     sync.Mutex
	body   string
	loaded bool
}

// NewHTTPLoader creates a loader. limiter and store may be nil.
func NewHTTPLoader(key, url string, client *http.Client, limiter *rate.Limiter, store BodyStore, renderer *Renderer, log *logger.Logger) *HTTPLoader {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPLoader{
		key:      key,
		url:      url,
		client:   client,
		limiter:  limiter,
		store:    store,
		renderer: renderer,
		logger:   log.WithComponent("content-loader"),
	}
}

// Load returns the body. Without reload the memoized or stored copy is
// preferred; with reload the URL is fetched again.
func (l *HTTPLoader) Load(ctx context.Context, reload bool) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.loaded && !reload {
		return l.body, nil
	}

	if !reload && l.store != nil {
		body, ok, err := l.store.Get(ctx, l.key)
		if err != nil {
			l.logger.Warn("Failed to read stored body", "key", l.key, "error", err)
		} else if ok {
			l.body, l.loaded = body, true
			return body, nil
		}
	}

	body, err := l.fetch(ctx)
	if err != nil {
		return "", err
	}

	if l.store != nil {
		// the body is usable even if it could not be persisted
		if err := l.store.Put(ctx, l.key, body); err != nil {
			l.logger.Warn("Failed to store body", "key", l.key, "url", l.url, "error", err)
		}
	}

	l.body, l.loaded = body, true
	return body, nil
}

func (l *HTTPLoader) fetch(ctx context.Context) (string, error) {
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("failed to read content: %w", err)
	}

	return l.renderer.Render(resp.Header.Get("Content-Type"), raw)
}

// summaryLoader serves the rendered summary of items without a content URL
type summaryLoader struct {
	item     *domain.Item
	renderer *Renderer
}

func (l summaryLoader) Load(ctx context.Context, reload bool) (string, error) {
	return l.renderer.Summary(l.item.Summary()), nil
}

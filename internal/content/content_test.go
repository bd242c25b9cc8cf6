package content

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amiyamandal-dev/feedsync/internal/domain"
	"github.com/amiyamandal-dev/feedsync/internal/work"
	"github.com/amiyamandal-dev/feedsync/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"))
}

type staticLoader string

func (s staticLoader) Load(ctx context.Context, reload bool) (string, error) {
	return string(s), nil
}

func newTestCache(t *testing.T, capacity int) *Cache {
	t.Helper()
	c, err := NewCache(capacity, logger.NewNop())
	require.NoError(t, err)
	return c
}

func TestNewCacheRejectsZeroCapacity(t *testing.T) {
	_, err := NewCache(0, logger.NewNop())
	assert.Error(t, err)
}

func TestCacheRunsFactoryOncePerKey(t *testing.T) {
	c := newTestCache(t, 4)
	release := make(chan struct{})
	var calls atomic.Int64

	const callers = 16
	results := make([]domain.ContentLoader, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			loader, err := c.GetOrCreate(context.Background(), "k", func(ctx context.Context) (domain.ContentLoader, error) {
				calls.Add(1)
				<-release
				return staticLoader(fmt.Sprintf("loader-%d", i)), nil
			})
			assert.NoError(t, err)
			results[i] = loader
		}(i)
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, results[0], r)
	}
	assert.Equal(t, 1, c.Len())
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := newTestCache(t, 2)
	ctx := context.Background()
	calls := map[string]int{}

	get := func(key string) {
		_, err := c.GetOrCreate(ctx, key, func(ctx context.Context) (domain.ContentLoader, error) {
			calls[key]++
			return staticLoader(key), nil
		})
		require.NoError(t, err)
	}

	get("a")
	get("b")
	get("a") // a becomes most recently used
	get("c") // evicts b

	assert.True(t, c.Contains("a"))
	assert.False(t, c.Contains("b"))
	assert.True(t, c.Contains("c"))

	get("b")
	assert.Equal(t, 2, calls["b"])
	assert.Equal(t, 1, calls["a"])
}

func TestCacheDoesNotKeepFailures(t *testing.T) {
	c := newTestCache(t, 2)
	ctx := context.Background()
	boom := errors.New("unreachable")

	_, err := c.GetOrCreate(ctx, "k", func(ctx context.Context) (domain.ContentLoader, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, domain.ErrCacheConstruction)
	assert.ErrorIs(t, err, boom)
	assert.False(t, c.Contains("k"))

	loader, err := c.GetOrCreate(ctx, "k", func(ctx context.Context) (domain.ContentLoader, error) {
		return staticLoader("ok"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, staticLoader("ok"), loader)
}

func TestCacheWaiterCancellationKeepsConstruction(t *testing.T) {
	c := newTestCache(t, 2)
	release := make(chan struct{})
	done := make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.GetOrCreate(ctx, "k", func(fctx context.Context) (domain.ContentLoader, error) {
			defer close(done)
			<-release
			assert.NoError(t, fctx.Err())
			return staticLoader("late"), nil
		})
		errCh <- err
	}()

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	close(release)
	<-done

	require.Eventually(t, func() bool { return c.Contains("k") }, time.Second, time.Millisecond)
}

type memoryBodies struct {
	mu     sync.Mutex
	bodies map[string]string
}

func (m *memoryBodies) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bodies[key]
	return b, ok, nil
}

func (m *memoryBodies) Put(ctx context.Context, key, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bodies == nil {
		m.bodies = map[string]string{}
	}
	m.bodies[key] = body
	return nil
}

func (m *memoryBodies) Invalidate(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bodies, key)
	return nil
}

func TestHTTPLoaderSanitizesAndMemoizes(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<p>hello</p><script>alert(1)</script>`)
	}))
	defer srv.Close()

	store := &memoryBodies{}
	loader := NewHTTPLoader("k", srv.URL, srv.Client(), nil, store, NewRenderer(), logger.NewNop())
	ctx := context.Background()

	body, err := loader.Load(ctx, false)
	require.NoError(t, err)
	assert.Contains(t, body, "<p>hello</p>")
	assert.NotContains(t, body, "script")

	_, err = loader.Load(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits.Load())

	_, err = loader.Load(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())

	stored, ok, _ := store.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, body, stored)
}

type brokenBodies struct{}

func (brokenBodies) Get(ctx context.Context, key string) (string, bool, error) {
	return "", false, errors.New("disk unreadable")
}

func (brokenBodies) Put(ctx context.Context, key, body string) error {
	return errors.New("disk full")
}

func (brokenBodies) Invalidate(ctx context.Context, key string) error { return nil }

func TestHTTPLoaderLogsStoreFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<p>fresh</p>")
	}))
	defer srv.Close()

	core, logs := observer.New(zapcore.WarnLevel)
	log := &logger.Logger{Logger: zap.New(core)}

	body, err := NewHTTPLoader("k", srv.URL, srv.Client(), nil, brokenBodies{}, NewRenderer(), log).Load(context.Background(), false)
	require.NoError(t, err)
	assert.Contains(t, body, "fresh")

	assert.Equal(t, 1, logs.FilterMessage("Failed to read stored body").Len())
	stored := logs.FilterMessage("Failed to store body").All()
	require.Len(t, stored, 1)
	assert.Equal(t, "disk full", stored[0].ContextMap()["error"])
}

func TestHTTPLoaderPrefersStoredBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("stored body must be served without fetching")
	}))
	defer srv.Close()

	store := &memoryBodies{bodies: map[string]string{"k": "<p>cached</p>"}}
	body, err := NewHTTPLoader("k", srv.URL, srv.Client(), nil, store, NewRenderer(), logger.NewNop()).Load(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "<p>cached</p>", body)
}

func TestHTTPLoaderReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	_, err := NewHTTPLoader("k", srv.URL, srv.Client(), nil, nil, NewRenderer(), logger.NewNop()).Load(context.Background(), false)
	assert.Error(t, err)
}

func TestRendererMarkdownAndPlainText(t *testing.T) {
	r := NewRenderer()

	html, err := r.Render("text/markdown", []byte("# Title\n\n*em*"))
	require.NoError(t, err)
	assert.Contains(t, html, "<h1")
	assert.Contains(t, html, "<em>em</em>")

	pre, err := r.Render("text/plain", []byte("a < b"))
	require.NoError(t, err)
	assert.Equal(t, "<pre>a &lt; b</pre>", pre)

	assert.Equal(t, "", r.Summary("   "))
	assert.Contains(t, r.Summary("**bold**"), "<strong>bold</strong>")
	assert.Equal(t, "x & y", r.PlainText("<b>x &amp; y</b>"))
}

func TestProviderCachesPerItem(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<p>"+strings.TrimPrefix(r.URL.Path, "/")+"</p>")
	}))
	defer srv.Close()

	pool := work.NewPool(2, logger.NewNop())
	defer pool.Wait()
	p := NewProvider(newTestCache(t, 8), srv.Client(), nil, nil, NewRenderer(), pool, logger.NewNop())

	item := domain.NewItem(uuid.New(), "tech", domain.ItemFields{ItemDescriptor: domain.ItemDescriptor{
		URL: srv.URL + "/story", ContentURL: srv.URL + "/body",
	}})
	item.SetContentLoader(p.LoaderFor(item))
	ctx := context.Background()

	body, err := item.ContentLoader().Load(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "<p>body</p>", body)

	_, err = item.ContentLoader().Load(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())

	p.Invalidate(ctx, item)
	_, err = item.ContentLoader().Load(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, int64(3), hits.Load())

	noURL := domain.NewItem(uuid.New(), "tech", domain.ItemFields{ItemDescriptor: domain.ItemDescriptor{Summary: "*short*"}})
	summary, err := p.LoaderFor(noURL).Load(ctx, false)
	require.NoError(t, err)
	assert.Contains(t, summary, "<em>short</em>")
}

package loader

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amiyamandal-dev/feedsync/internal/domain"
	"github.com/amiyamandal-dev/feedsync/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// testLoader drives Base with scripted hooks
type testLoader struct {
	*Base

	loads atomic.Int32
	syncs atomic.Int32

	load func(ctx context.Context) error
	sync func(ctx context.Context) error
}

func newTestLoader(name string) *testLoader {
	l := &testLoader{}
	l.Base = newBase(l, domain.Metadata{Name: name})
	return l
}

// withItems returns a loader whose initialize publishes items
func withItems(name string, items ...*domain.Item) *testLoader {
	l := newTestLoader(name)
	l.load = func(context.Context) error {
		l.SetItems(domain.NewItemSet(items...))
		return nil
	}
	return l
}

func (l *testLoader) loadHook(ctx context.Context) error {
	l.loads.Add(1)
	if l.load != nil {
		return l.load(ctx)
	}
	return nil
}

func (l *testLoader) syncHook(ctx context.Context) error {
	l.syncs.Add(1)
	if l.sync != nil {
		return l.sync(ctx)
	}
	return nil
}

func newItem(title, author, summary string) *domain.Item {
	return domain.NewItem(uuid.New(), "test", domain.ItemFields{ItemDescriptor: domain.ItemDescriptor{
		Title:   title,
		Author:  author,
		Summary: summary,
	}})
}

var testLog = logger.NewNop()

func TestInitializeRunsHookOnce(t *testing.T) {
	release := make(chan struct{})
	item := newItem("one", "", "")
	l := newTestLoader("feed")
	l.load = func(context.Context) error {
		<-release
		l.SetItems(domain.NewItemSet(item))
		return nil
	}

	const callers = 8
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() { errs <- l.Initialize(context.Background()) }()
	}

	require.Eventually(t, func() bool { return l.LoadState() == Loading }, time.Second, time.Millisecond)
	close(release)
	for i := 0; i < callers; i++ {
		assert.NoError(t, <-errs)
	}

	assert.Equal(t, int32(1), l.loads.Load())
	assert.Equal(t, Loaded, l.LoadState())
	assert.True(t, l.Items().Contains(item))

	require.NoError(t, l.Initialize(context.Background()))
	assert.Equal(t, int32(1), l.loads.Load())
}

func TestInitializeFailureIsSharedThenRetried(t *testing.T) {
	boom := errors.New("disk unavailable")
	release := make(chan struct{})
	var fail atomic.Bool
	fail.Store(true)

	l := newTestLoader("feed")
	l.load = func(context.Context) error {
		<-release
		if fail.Load() {
			return boom
		}
		return nil
	}

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { errs <- l.Initialize(context.Background()) }()
	}
	require.Eventually(t, func() bool { return l.LoadState() == Loading }, time.Second, time.Millisecond)
	close(release)
	assert.ErrorIs(t, <-errs, boom)
	assert.ErrorIs(t, <-errs, boom)
	assert.Equal(t, int32(1), l.loads.Load())
	assert.Equal(t, Unloaded, l.LoadState())

	fail.Store(false)
	require.NoError(t, l.Initialize(context.Background()))
	assert.Equal(t, int32(2), l.loads.Load())
	assert.Equal(t, Loaded, l.LoadState())
}

func TestSynchronizeJoinsInFlightCall(t *testing.T) {
	release := make(chan struct{})
	l := newTestLoader("feed")
	l.sync = func(context.Context) error {
		<-release
		return nil
	}

	errs := make(chan error, 2)
	go func() { errs <- l.Synchronize(context.Background()) }()
	require.Eventually(t, func() bool { return l.syncs.Load() == 1 }, time.Second, time.Millisecond)
	joined := make(chan struct{})
	go func() {
		close(joined)
		errs <- l.Synchronize(context.Background())
	}()
	<-joined
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, Synchronizing, l.SyncState())
	close(release)
	assert.NoError(t, <-errs)
	assert.NoError(t, <-errs)
	assert.Equal(t, int32(1), l.syncs.Load())
	assert.Equal(t, int32(1), l.loads.Load())

	last, ok := l.LastSynchronized()
	assert.True(t, ok)
	assert.False(t, last.IsZero())
	assert.Equal(t, Synchronized, l.SyncState())

	require.NoError(t, l.Synchronize(context.Background()))
	assert.Equal(t, int32(2), l.syncs.Load())
	assert.Equal(t, int32(1), l.loads.Load())
}

func TestSynchronizeFailureKeepsSnapshot(t *testing.T) {
	boom := errors.New("timeout")
	kept := newItem("kept", "", "")
	l := withItems("feed", kept)
	l.sync = func(context.Context) error { return boom }

	err := l.Synchronize(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.True(t, l.Items().Contains(kept))
	assert.Equal(t, Loaded, l.LoadState())
	assert.Equal(t, NotSynchronized, l.SyncState())

	_, ok := l.LastSynchronized()
	assert.False(t, ok)

	l.sync = nil
	require.NoError(t, l.Synchronize(context.Background()))
	_, ok = l.LastSynchronized()
	assert.True(t, ok)
}

func TestCallerCancellationDoesNotStopOperation(t *testing.T) {
	release := make(chan struct{})
	done := make(chan struct{})
	l := newTestLoader("feed")
	l.load = func(ctx context.Context) error {
		defer close(done)
		<-release
		return ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Initialize(ctx) }()
	require.Eventually(t, func() bool { return l.LoadState() == Loading }, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	close(release)
	<-done

	require.Eventually(t, func() bool { return l.LoadState() == Loaded }, time.Second, time.Millisecond)
}

func TestSetItemsAlwaysNotifies(t *testing.T) {
	l := newTestLoader("feed")
	set := domain.NewItemSet(newItem("a", "", ""))

	var mu sync.Mutex
	var seen []domain.ItemSet
	sub := l.ItemsUpdated().Subscribe(func(s domain.ItemSet) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})
	defer sub.Unsubscribe()

	l.SetItems(set)
	l.SetItems(set)

	var metas int
	l.MetadataUpdated().Subscribe(func(domain.Metadata) { metas++ })
	l.SetMetadata(l.Metadata())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.True(t, seen[1].Equal(set))
	assert.Equal(t, 1, metas)
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "unloaded", Unloaded.String())
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "loaded", Loaded.String())
	assert.Equal(t, "not_synchronized", NotSynchronized.String())
	assert.Equal(t, "synchronizing", Synchronizing.String())
	assert.Equal(t, "synchronized", Synchronized.String())
}

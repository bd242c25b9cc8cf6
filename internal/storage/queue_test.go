package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amiyamandal-dev/feedsync/internal/domain"
	"github.com/amiyamandal-dev/feedsync/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingHandle struct {
	id int64
}

type fakeFactory struct {
	opened  atomic.Int64
	open    atomic.Int64
	closed  atomic.Int64
	openErr error

	mu      sync.Mutex
	results []error
}

func (f *fakeFactory) Open(ctx context.Context) (*countingHandle, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	if n := f.open.Add(1); n > 1 {
		return nil, errors.New("overlapping handles")
	}
	return &countingHandle{id: f.opened.Add(1)}, nil
}

func (f *fakeFactory) Close(h *countingHandle, opErr error) error {
	f.open.Add(-1)
	f.closed.Add(1)
	f.mu.Lock()
	f.results = append(f.results, opErr)
	f.mu.Unlock()
	return nil
}

func TestQueueRunsInSubmissionOrder(t *testing.T) {
	factory := &fakeFactory{}
	q := NewQueue[*countingHandle](factory, nil, logger.NewNop())
	defer q.Close()

	var (
		mu    sync.Mutex
		order []int
	)
	block := make(chan struct{})

	// Hold the queue so the rest pile up behind the first operation.
	first := make(chan error, 1)
	go func() {
		first <- q.Do(context.Background(), func(ctx context.Context, h *countingHandle) error {
			<-block
			mu.Lock()
			order = append(order, 0)
			mu.Unlock()
			return nil
		})
	}()
	require.Eventually(t, func() bool { return factory.opened.Load() == 1 }, time.Second, time.Millisecond)

	const n = 20
	results := make([]chan error, n)
	for i := 1; i <= n; i++ {
		i := i
		results[i-1] = make(chan error, 1)
		submitted := make(chan struct{})
		go func() {
			close(submitted)
			results[i-1] <- q.Do(context.Background(), func(ctx context.Context, h *countingHandle) error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}()
		<-submitted
		require.Eventually(t, func() bool { return q.pendingLen() == i }, time.Second, time.Millisecond)
	}

	close(block)
	require.NoError(t, <-first)
	for _, r := range results {
		require.NoError(t, <-r)
	}

	require.Len(t, order, n+1)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
	assert.Equal(t, int64(n+1), factory.closed.Load())
}

func TestQueueFailureDoesNotPoisonQueue(t *testing.T) {
	factory := &fakeFactory{}
	q := NewQueue[*countingHandle](factory, nil, logger.NewNop())
	defer q.Close()

	boom := errors.New("boom")
	err := q.Do(context.Background(), func(ctx context.Context, h *countingHandle) error { return boom })
	assert.ErrorIs(t, err, boom)

	err = q.Do(context.Background(), func(ctx context.Context, h *countingHandle) error { return nil })
	assert.NoError(t, err)

	factory.mu.Lock()
	defer factory.mu.Unlock()
	require.Len(t, factory.results, 2)
	assert.ErrorIs(t, factory.results[0], boom, "handle must see the operation error")
	assert.NoError(t, factory.results[1])
}

func TestQueueInitRunsOnceAndRetriesAfterFailure(t *testing.T) {
	factory := &fakeFactory{}
	var calls atomic.Int64
	initHook := func(ctx context.Context, h *countingHandle) error {
		if calls.Add(1) == 1 {
			return errors.New("disk not ready")
		}
		return nil
	}
	q := NewQueue[*countingHandle](factory, initHook, logger.NewNop())
	defer q.Close()

	ran := false
	err := q.Do(context.Background(), func(ctx context.Context, h *countingHandle) error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.False(t, ran, "operation must not run when init fails")

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Do(context.Background(), func(ctx context.Context, h *countingHandle) error { return nil }))
	}
	assert.Equal(t, int64(2), calls.Load())
}

func TestQueueOpenFailureIsStoreUnavailable(t *testing.T) {
	factory := &fakeFactory{openErr: errors.New("locked")}
	q := NewQueue[*countingHandle](factory, nil, logger.NewNop())
	defer q.Close()

	err := q.Do(context.Background(), func(ctx context.Context, h *countingHandle) error { return nil })
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestRunReturnsValue(t *testing.T) {
	q := NewQueue[*countingHandle](&fakeFactory{}, nil, logger.NewNop())
	defer q.Close()

	id, err := Run(context.Background(), q, func(ctx context.Context, h *countingHandle) (int64, error) {
		return h.id, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestQueueCallerCancellationDoesNotStopOperation(t *testing.T) {
	q := NewQueue[*countingHandle](&fakeFactory{}, nil, logger.NewNop())
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	finished := make(chan struct{})

	errCh := make(chan error, 1)
	go func() {
		errCh <- q.Do(ctx, func(opCtx context.Context, h *countingHandle) error {
			<-release
			assert.NoError(t, opCtx.Err())
			close(finished)
			return nil
		})
	}()

	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)
	close(release)
	<-finished
}

func TestQueueRejectsWorkAfterClose(t *testing.T) {
	q := NewQueue[*countingHandle](&fakeFactory{}, nil, logger.NewNop())
	q.Close()
	q.Close()

	err := q.Do(context.Background(), func(ctx context.Context, h *countingHandle) error { return nil })
	assert.ErrorIs(t, err, domain.ErrStoreClosed)
}

func (q *Queue[H]) pendingLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

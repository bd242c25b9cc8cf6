package storage

import (
	"context"
	"sync"

	"github.com/amiyamandal-dev/feedsync/internal/domain"
	"github.com/amiyamandal-dev/feedsync/pkg/logger"
)

// HandleFactory opens a scoped store handle for one operation.
// Close receives the operation's error so it can commit or roll back.
type HandleFactory[H any] interface {
	Open(ctx context.Context) (H, error)
	Close(h H, opErr error) error
}

// InitFunc prepares the store before the first operation runs
type InitFunc[H any] func(ctx context.Context, h H) error

type queuedOp[H any] struct {
	ctx  context.Context
	fn   func(ctx context.Context, h H) error
	done chan error
}

// Queue runs store operations one at a time in submission order on a
// background goroutine. The first operation is preceded by the init hook in
// the same slot; a failed init is retried by the next operation.
type Queue[H any] struct {
	factory HandleFactory[H]
	init    InitFunc[H]
	logger  *logger.Logger

	mu      sync.Mutex
	pending []*queuedOp[H]
	closed  bool

	wake    chan struct{}
	stopped chan struct{}

	// owned by the runner goroutine
	initialized bool
}

// NewQueue starts the queue's runner. init may be nil.
func NewQueue[H any](factory HandleFactory[H], init InitFunc[H], log *logger.Logger) *Queue[H] {
	q := &Queue[H]{
		factory: factory,
		init:    init,
		logger:  log.WithComponent("store-queue"),
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go q.run()
	return q
}

// Do schedules fn after every previously scheduled operation and waits for it.
// If ctx ends first Do returns ctx.Err(), but the operation still runs.
func (q *Queue[H]) Do(ctx context.Context, fn func(ctx context.Context, h H) error) error {
	op := &queuedOp[H]{
		ctx:  context.WithoutCancel(ctx),
		fn:   fn,
		done: make(chan error, 1),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return domain.ErrStoreClosed
	}
	q.pending = append(q.pending, op)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}

	select {
	case err := <-op.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is Do for operations that produce a value
func Run[H, T any](ctx context.Context, q *Queue[H], fn func(ctx context.Context, h H) (T, error)) (T, error) {
	var result T
	err := q.Do(ctx, func(ctx context.Context, h H) error {
		v, err := fn(ctx, h)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

// Close rejects new operations, waits for queued ones to finish and stops the runner
func (q *Queue[H]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.stopped
		return
	}
	q.closed = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	<-q.stopped
}

func (q *Queue[H]) run() {
	defer close(q.stopped)

	for range q.wake {
		for {
			op, closed := q.next()
			if op == nil {
				if closed {
					return
				}
				break
			}
			op.done <- q.execute(op)
		}
	}
}

func (q *Queue[H]) next() (*queuedOp[H], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return nil, q.closed
	}
	op := q.pending[0]
	q.pending[0] = nil
	q.pending = q.pending[1:]
	return op, false
}

func (q *Queue[H]) execute(op *queuedOp[H]) error {
	h, err := q.factory.Open(op.ctx)
	if err != nil {
		q.logger.Error("Failed to open store handle", "error", err)
		return domain.NewStoreUnavailableError(err)
	}

	if !q.initialized && q.init != nil {
		if err := q.init(op.ctx, h); err != nil {
			q.logger.Error("Store initialization failed", "error", err)
			if cerr := q.factory.Close(h, err); cerr != nil {
				q.logger.Warn("Failed to close store handle", "error", cerr)
			}
			return domain.NewStoreUnavailableError(err)
		}
	}

	opErr := op.fn(op.ctx, h)
	closeErr := q.factory.Close(h, opErr)

	if opErr != nil {
		return opErr
	}
	if closeErr != nil {
		return domain.NewStoreUnavailableError(closeErr)
	}
	q.initialized = true
	return nil
}

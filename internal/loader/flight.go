package loader

import (
	"context"
	"sync"
)

type flight struct {
	done chan struct{}
	err  error
}

// operation is a shared in-flight call. Concurrent callers join the
// running flight and all observe its result. When once is set a successful
// result is kept forever; failures always reset the cell so a later call
// can retry.
type operation struct {
	once bool

	mu        sync.Mutex
	current   *flight
	succeeded bool
}

func (o *operation) run(ctx context.Context, fn func(ctx context.Context) error) error {
	o.mu.Lock()
	if o.once && o.succeeded {
		o.mu.Unlock()
		return nil
	}

	f := o.current
	if f == nil {
		f = &flight{done: make(chan struct{})}
		o.current = f

		detached := context.WithoutCancel(ctx)
		go func() {
			err := fn(detached)

			o.mu.Lock()
			f.err = err
			if err == nil && o.once {
				o.succeeded = true
			}
			o.current = nil
			o.mu.Unlock()

			close(f.done)
		}()
	}
	o.mu.Unlock()

	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *operation) running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current != nil
}

func (o *operation) done() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.succeeded
}

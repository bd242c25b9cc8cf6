// Package work runs offloaded leaf operations (remote fetches, search
// filtering, content body loads) on a bounded set of goroutines.
//
// Work submitted to the pool must not itself wait on other pool work;
// callers that fan out and join use their own goroutines.
package work

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/amiyamandal-dev/feedsync/pkg/logger"
)

// Stats is a snapshot of pool counters
type Stats struct {
	Workers   int   `json:"workers"`
	Active    int64 `json:"active"`
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// Pool bounds how many submitted functions run at once
type Pool struct {
	workers int
	slots   chan struct{}
	wg      sync.WaitGroup
	logger  *logger.Logger

	active    atomic.Int64
	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// NewPool creates a pool with the given concurrency.
// If workers <= 0, uses runtime.NumCPU().
func NewPool(workers int, log *logger.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{
		workers: workers,
		slots:   make(chan struct{}, workers),
		logger:  log.WithComponent("work-pool"),
	}
}

// Go schedules fn and returns a channel that receives its result once.
// A panic in fn is recovered and reported as an error.
func (p *Pool) Go(fn func() error) <-chan error {
	done := make(chan error, 1)
	p.submitted.Add(1)
	p.wg.Add(1)

	go func() {
		defer p.wg.Done()

		p.slots <- struct{}{}
		p.active.Add(1)
		err := p.run(fn)
		p.active.Add(-1)
		<-p.slots

		if err != nil {
			p.failed.Add(1)
		} else {
			p.completed.Add(1)
		}
		done <- err
	}()

	return done
}

func (p *Pool) run(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Work item panicked", "panic", fmt.Sprint(r))
			err = fmt.Errorf("work item panicked: %v", r)
		}
	}()
	return fn()
}

// Wait blocks until every submitted function has returned
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Stats returns the current counters
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.workers,
		Active:    p.active.Load(),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
	}
}

// Call runs fn on the pool and waits for its value
func Call[T any](p *Pool, fn func() (T, error)) (T, error) {
	var result T
	err := <-p.Go(func() error {
		v, err := fn()
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}

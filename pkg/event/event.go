// Package event provides synchronous, typed change notifications.
//
// Handlers run on the goroutine that calls Fire, in subscription order, and
// never under the event's internal lock, so a handler may subscribe,
// unsubscribe or fire other events.
package event

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Event is a typed notification source.
// The zero value is ready to use.
type Event[T any] struct {
	mu       sync.RWMutex
	nextID   atomic.Int64
	handlers map[int64]func(T)
}

// Subscription is returned by Subscribe and detaches the handler.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Unsubscribe detaches the handler. Calling it more than once is a no-op.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(s.cancel)
}

// Subscribe registers handler and returns its subscription.
func (e *Event[T]) Subscribe(handler func(T)) *Subscription {
	id := e.nextID.Add(1)

	e.mu.Lock()
	if e.handlers == nil {
		e.handlers = make(map[int64]func(T))
	}
	e.handlers[id] = handler
	e.mu.Unlock()

	return &Subscription{cancel: func() {
		e.mu.Lock()
		delete(e.handlers, id)
		e.mu.Unlock()
	}}
}

// Fire invokes every current handler with value.
func (e *Event[T]) Fire(value T) {
	for _, handler := range e.snapshot() {
		handler(value)
	}
}

// Len reports the number of attached handlers.
func (e *Event[T]) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers)
}

func (e *Event[T]) snapshot() []func(T) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(e.handlers) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(e.handlers))
	for id := range e.handlers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	handlers := make([]func(T), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, e.handlers[id])
	}
	return handlers
}

// Package events provides the in-process observer bus that decouples anchor
// cache mutations from the code reacting to them.
package events

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Subscription identifies a registered listener. The zero value never matches
// a live listener.
type Subscription uint64

// Listener receives every published value.
type Listener[T any] func(T)

type entry[T any] struct {
	id Subscription
	fn Listener[T]
}

// Bus delivers published values synchronously to listeners in subscription
// order. A panicking listener is logged and skipped; the rest still run.
type Bus[T any] struct {
	mu        sync.RWMutex
	next      Subscription
	listeners []entry[T]
	log       zerolog.Logger
}

// NewBus creates an empty bus that reports listener failures to log.
func NewBus[T any](log zerolog.Logger) *Bus[T] {
	return &Bus[T]{log: log}
}

// Subscribe registers fn and returns the handle needed to remove it.
func (b *Bus[T]) Subscribe(fn Listener[T]) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.listeners = append(b.listeners, entry[T]{id: b.next, fn: fn})
	return b.next
}

// Unsubscribe removes the listener registered under s. It reports whether a
// listener was removed.
func (b *Bus[T]) Unsubscribe(s Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range b.listeners {
		if e.id == s {
			b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of registered listeners.
func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Publish invokes every listener registered at call time with v.
func (b *Bus[T]) Publish(v T) {
	b.mu.RLock()
	snapshot := make([]entry[T], len(b.listeners))
	copy(snapshot, b.listeners)
	b.mu.RUnlock()

	for _, e := range snapshot {
		b.deliver(e, v)
	}
}

func (b *Bus[T]) deliver(e entry[T], v T) {
	defer func() {
		if rec := recover(); rec != nil {
			b.log.Error().
				Uint64("subscription", uint64(e.id)).
				Str("panic", fmt.Sprint(rec)).
				Msg("listener panicked")
		}
	}()
	e.fn(v)
}

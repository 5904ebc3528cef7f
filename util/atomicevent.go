package util

import (
	"sync"
)

// AtomicEvent keeps only the most recent value sent to it. Readers are
// woken through a one-slot channel, so any number of Sends between two
// reads collapse into a single notification.
type AtomicEvent[T any] struct {
	mu     sync.Mutex
	value  T
	notify chan struct{}
}

// NewAtomicEvent creates an AtomicEvent holding initial.
func NewAtomicEvent[T any](initial T) *AtomicEvent[T] {
	return &AtomicEvent[T]{
		value:  initial,
		notify: make(chan struct{}, 1),
	}
}

// Send replaces the stored value and flags a pending notification.
// It never blocks.
func (ae *AtomicEvent[T]) Send(event T) {
	ae.mu.Lock()
	defer ae.mu.Unlock()

	ae.value = event
	select {
	case ae.notify <- struct{}{}:
	default:
		// a notification is already pending
	}
}

// Channel is signalled after every Send that found no pending
// notification.
func (ae *AtomicEvent[T]) Channel() <-chan struct{} {
	return ae.notify
}

// Value returns the latest value.
func (ae *AtomicEvent[T]) Value() T {
	ae.mu.Lock()
	defer ae.mu.Unlock()
	return ae.value
}

// Consume clears a pending notification, if any, and returns the latest
// value.
func (ae *AtomicEvent[T]) Consume() T {
	ae.mu.Lock()
	defer ae.mu.Unlock()
	select {
	case <-ae.notify:
	default:
	}
	return ae.value
}

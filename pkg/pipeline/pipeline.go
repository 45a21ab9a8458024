// Package pipeline provides a bounded frame relay between a capture
// producer and slower consumers such as preview rendering.
//
// Each consumer key owns a single-slot mailbox with drop-oldest
// semantics: publishing over an unread value replaces it, so a slow
// consumer always sees the most recent frame and the producer never
// blocks. Memory is O(1) per consumer.
package pipeline

import "sync"

// Pipeline relays values to consumers identified by key.
// The zero value is not usable; construct with New.
type Pipeline[T any] struct {
	mu    sync.Mutex
	slots map[string]*slot[T]

	// onDrop, if set, receives values displaced before being taken.
	// Used to release frame buffers that never reached a consumer.
	onDrop func(T)
}

type slot[T any] struct {
	value T
	full  bool
}

// New creates an empty pipeline.
func New[T any]() *Pipeline[T] {
	return &Pipeline[T]{slots: make(map[string]*slot[T])}
}

// NewWithDrop creates a pipeline that calls onDrop for every value
// displaced by a newer publish before any consumer took it.
func NewWithDrop[T any](onDrop func(T)) *Pipeline[T] {
	return &Pipeline[T]{slots: make(map[string]*slot[T]), onDrop: onDrop}
}

// Publish places v in the consumer's mailbox, displacing any unread
// value. It never blocks, regardless of consumer speed.
func (p *Pipeline[T]) Publish(consumer string, v T) {
	var dropped T
	var didDrop bool

	p.mu.Lock()
	s, ok := p.slots[consumer]
	if !ok {
		s = &slot[T]{}
		p.slots[consumer] = s
	}
	if s.full {
		dropped = s.value
		didDrop = true
	}
	s.value = v
	s.full = true
	p.mu.Unlock()

	if didDrop && p.onDrop != nil {
		p.onDrop(dropped)
	}
}

// TryTake removes and returns the pending value for the consumer.
// It never blocks; ok is false when the mailbox is empty.
func (p *Pipeline[T]) TryTake(consumer string) (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.slots[consumer]
	if !ok || !s.full {
		var zero T
		return zero, false
	}
	v := s.value
	var zero T
	s.value = zero
	s.full = false
	return v, true
}

// Clear empties every mailbox, passing unread values to onDrop.
// Call between sessions so stale frames never leak across runs.
func (p *Pipeline[T]) Clear() {
	p.mu.Lock()
	var dropped []T
	for _, s := range p.slots {
		if s.full {
			dropped = append(dropped, s.value)
			var zero T
			s.value = zero
			s.full = false
		}
	}
	p.mu.Unlock()

	if p.onDrop != nil {
		for _, v := range dropped {
			p.onDrop(v)
		}
	}
}

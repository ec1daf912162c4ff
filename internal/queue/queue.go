// Package queue provides the batch buffers that sit between the recording
// pipeline and its storage writers.
package queue

import "sync"

// Queue is a mutex-guarded FIFO buffer.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
}

// New returns an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Push appends items in order.
func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
}

// Pop removes and returns the oldest item, or the zero value when empty.
func (q *Queue[T]) Pop() (item T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) > 0 {
		item = q.items[0]
		q.items = q.items[1:]
	}
	return item
}

// Empty reports whether the queue holds nothing.
func (q *Queue[T]) Empty() bool {
	return q.Len() == 0
}

// Len returns the number of buffered items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear discards all buffered items.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = q.items[:0]
}

// Drain hands the whole buffer to the caller and starts a fresh one with
// the same capacity.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	drained := q.items
	q.items = make([]T, 0, cap(drained))
	return drained
}

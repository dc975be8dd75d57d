// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package queue provides the blocking FIFO used to serialize asynchronous
// callbacks onto a single worker goroutine.
package queue

import "sync"

// BlockingQueue is a FIFO whose Pop blocks until an item is available.
// Producers may run on any goroutine. Once aborted, the queue stays empty and
// silently drops every push.
type BlockingQueue[T any] struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []T
	head    int
	aborted bool
}

// New returns an empty queue.
func New[T any]() *BlockingQueue[T] {
	q := &BlockingQueue[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends v to the back of the queue.
func (q *BlockingQueue[T]) Push(v T) {
	q.push(v, false)
}

// PushFront inserts v at the head of the queue so it is popped before any
// queued work.
func (q *BlockingQueue[T]) PushFront(v T) {
	q.push(v, true)
}

func (q *BlockingQueue[T]) push(v T, front bool) {
	q.mu.Lock()
	if q.aborted {
		q.mu.Unlock()
		return
	}
	if front {
		if q.head > 0 {
			q.head--
			q.items[q.head] = v
		} else {
			q.items = append(q.items, v)
			copy(q.items[1:], q.items[:len(q.items)-1])
			q.items[0] = v
		}
	} else {
		q.items = append(q.items, v)
	}
	q.mu.Unlock()
	q.cond.Signal()
}

// Pop removes and returns the head of the queue, blocking while it is empty.
func (q *BlockingQueue[T]) Pop() T {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.head == len(q.items) {
		q.cond.Wait()
	}
	v := q.items[q.head]
	var zero T
	q.items[q.head] = zero
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return v
}

// Abort empties the queue and makes all later pushes no-ops.
// Must not be called while another goroutine is blocked in Pop.
func (q *BlockingQueue[T]) Abort() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.aborted = true
	q.items = nil
	q.head = 0
}

// Len reports the number of queued items.
func (q *BlockingQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

package sched

import (
	"container/list"
	"context"
	"runtime"
	"sync"
)

// Queue is an unbounded FIFO connecting two tasks. Send never blocks;
// Recv suspends until a value is available. Values are moved, so senders
// must not keep references into what they sent.
type Queue[T any] struct {
	name  string
	lock  sync.Mutex
	items list.List
	ready chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue[T any](name string) *Queue[T] {
	return &Queue[T]{name: name, ready: make(chan struct{}, 1)}
}

// Name returns the queue name.
func (q *Queue[T]) Name() string { return q.name }

// Send appends v and yields to other runnable tasks.
func (q *Queue[T]) Send(v T) {
	q.lock.Lock()
	q.items.PushBack(v)
	q.lock.Unlock()
	select {
	case q.ready <- struct{}{}:
	default:
	}
	runtime.Gosched()
}

// TryRecv pops the oldest value without suspending.
func (q *Queue[T]) TryRecv() (T, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()
	elm := q.items.Front()
	if elm == nil {
		var zero T
		return zero, false
	}
	q.items.Remove(elm)
	return elm.Value.(T), true
}

// Recv pops the oldest value, suspending while the queue is empty.
func (q *Queue[T]) Recv(ctx context.Context) (T, error) {
	for {
		if v, ok := q.TryRecv(); ok {
			return v, nil
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-q.ready:
		}
	}
}

// Len reports the number of buffered values.
func (q *Queue[T]) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.items.Len()
}

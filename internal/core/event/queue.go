package event

import "sync"

// Queue is a double-buffered FIFO. Items pushed during frame N become visible
// to Swap at the start of frame N+1; items pushed while that batch is being
// delivered wait for the frame after.
type Queue[T any] struct {
	mu    sync.Mutex
	back  []T
	front []T
}

func NewQueue[T any](capacity int) *Queue[T] {
	return &Queue[T]{
		back:  make([]T, 0, capacity),
		front: make([]T, 0, capacity),
	}
}

// Push appends v to the pending buffer. Safe from any goroutine.
func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	q.back = append(q.back, v)
	q.mu.Unlock()
}

// Swap rotates the pending buffer to the front and returns it in push order.
// The returned slice is only valid until the next Swap.
func (q *Queue[T]) Swap() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	for i := range q.front {
		q.front[i] = zero
	}
	q.front, q.back = q.back, q.front[:0]
	return q.front
}

// Len reports how many items wait for the next Swap.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.back)
}

// Drain empties both buffers and returns everything still pending.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := append([]T(nil), q.back...)
	q.back = q.back[:0]
	q.front = q.front[:0]
	return out
}

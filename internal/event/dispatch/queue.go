package dispatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

// Queue marshals work onto the main loop. Any goroutine may Post; only the
// goroutine that owns the registries calls Run or Drain, so every posted
// mutation executes there, in posting order.
type Queue struct {
	mu     sync.Mutex
	tasks  []func()
	wake   chan struct{}
	closed bool

	panicHandler PanicHandler
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithQueuePanicHandler sets the function told about panicking tasks.
func WithQueuePanicHandler(h PanicHandler) QueueOption {
	return func(q *Queue) {
		q.panicHandler = h
	}
}

// NewQueue creates an empty queue.
func NewQueue(opts ...QueueOption) *Queue {
	q := &Queue{wake: make(chan struct{}, 1)}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Post appends fn. It never blocks.
func (q *Queue) Post(fn func()) error {
	if fn == nil {
		return nil
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.tasks = append(q.tasks, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Call posts fn and waits for it to run on the main loop.
func (q *Queue) Call(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	if err := q.Post(func() { done <- fn() }); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of pending tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Drain runs pending tasks on the calling goroutine until the queue is
// empty, including tasks posted by the tasks themselves. It returns the
// number of tasks run.
func (q *Queue) Drain() int {
	n := 0
	for {
		q.mu.Lock()
		batch := q.tasks
		q.tasks = nil
		q.mu.Unlock()
		if len(batch) == 0 {
			return n
		}
		for _, fn := range batch {
			q.run(fn)
			n++
		}
	}
}

// Run drains the queue whenever work arrives until ctx is done or the
// queue is closed.
func (q *Queue) Run(ctx context.Context) error {
	for {
		q.Drain()
		q.mu.Lock()
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil
		}
		select {
		case <-ctx.Done():
			q.Drain()
			return ctx.Err()
		case <-q.wake:
		}
	}
}

// Close rejects further posts and wakes Run so it can exit after the
// remaining tasks.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) run(fn func()) {
	defer func() {
		if r := recover(); r != nil && q.panicHandler != nil {
			q.panicHandler(fmt.Sprintf("queued task %p", fn), r, debug.Stack())
		}
	}()
	fn()
}

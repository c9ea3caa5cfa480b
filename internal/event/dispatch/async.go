package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// AsyncDispatcher runs handlers on a bounded worker pool. It serves
// read-only observers (event feed, metrics) that must not slow down the
// main loop. With the default single worker, events reach observers in
// publication order.
type AsyncDispatcher struct {
	queueSize   int
	workerCount int
	timeout     time.Duration

	mu      sync.RWMutex
	queue   chan asyncTask
	running bool
	wg      sync.WaitGroup

	panicHandler PanicHandler

	enqueued  atomic.Uint64
	processed atomic.Uint64
	failed    atomic.Uint64
	panicked  atomic.Uint64
	dropped   atomic.Uint64
}

type asyncTask struct {
	ctx     context.Context
	event   any
	handler Handler
}

// AsyncOption configures an AsyncDispatcher.
type AsyncOption func(*AsyncDispatcher)

// WithQueueSize sets the task queue capacity.
func WithQueueSize(size int) AsyncOption {
	return func(d *AsyncDispatcher) {
		if size > 0 {
			d.queueSize = size
		}
	}
}

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) AsyncOption {
	return func(d *AsyncDispatcher) {
		if count > 0 {
			d.workerCount = count
		}
	}
}

// WithAsyncTimeout sets the per-handler timeout.
func WithAsyncTimeout(timeout time.Duration) AsyncOption {
	return func(d *AsyncDispatcher) {
		d.timeout = timeout
	}
}

// WithAsyncPanicHandler sets the panic handler used by the workers.
func WithAsyncPanicHandler(h PanicHandler) AsyncOption {
	return func(d *AsyncDispatcher) {
		d.panicHandler = h
	}
}

// NewAsyncDispatcher creates a stopped dispatcher.
func NewAsyncDispatcher(opts ...AsyncOption) *AsyncDispatcher {
	d := &AsyncDispatcher{
		queueSize:   1024,
		workerCount: 1,
		timeout:     5 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the workers.
func (d *AsyncDispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return ErrAlreadyRunning
	}
	d.queue = make(chan asyncTask, d.queueSize)
	d.running = true
	for i := 0; i < d.workerCount; i++ {
		d.wg.Add(1)
		go d.worker(d.queue)
	}
	return nil
}

// Stop closes the queue and waits for queued tasks or ctx.
func (d *AsyncDispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return ErrNotRunning
	}
	d.running = false
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue submits a task without blocking; a full queue drops it.
func (d *AsyncDispatcher) Enqueue(ctx context.Context, event any, handler Handler) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.running {
		return ErrNotRunning
	}
	select {
	case d.queue <- asyncTask{ctx: context.WithoutCancel(ctx), event: event, handler: handler}:
		d.enqueued.Add(1)
		return nil
	default:
		d.dropped.Add(1)
		return ErrQueueFull
	}
}

// IsRunning reports whether workers are active.
func (d *AsyncDispatcher) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

func (d *AsyncDispatcher) worker(queue <-chan asyncTask) {
	defer d.wg.Done()
	executor := NewExecutor(WithExecutorPanicHandler(d.panicHandler))
	for task := range queue {
		result := executor.ExecuteWithTimeout(task.ctx, task.event, task.handler, d.timeout)
		d.processed.Add(1)
		switch {
		case result.Panicked:
			d.panicked.Add(1)
		case result.Error != nil:
			d.failed.Add(1)
		}
	}
}

// AsyncStats summarises dispatcher activity.
type AsyncStats struct {
	Enqueued  uint64
	Processed uint64
	Failed    uint64
	Panicked  uint64
	Dropped   uint64
}

// Stats returns counters; values may be mutually inconsistent while running.
func (d *AsyncDispatcher) Stats() AsyncStats {
	return AsyncStats{
		Enqueued:  d.enqueued.Load(),
		Processed: d.processed.Load(),
		Failed:    d.failed.Load(),
		Panicked:  d.panicked.Load(),
		Dropped:   d.dropped.Load(),
	}
}

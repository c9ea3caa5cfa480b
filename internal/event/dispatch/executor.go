package dispatch

import (
	"context"
	"runtime/debug"
	"time"
)

// Executor runs handlers with panic recovery and timing.
type Executor struct {
	panicHandler PanicHandler
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithExecutorPanicHandler sets the function told about recovered panics.
func WithExecutorPanicHandler(h PanicHandler) ExecutorOption {
	return func(e *Executor) {
		e.panicHandler = h
	}
}

// NewExecutor creates an executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs handler with event. A panicking handler is recovered and
// reported in the Result; it never unwinds into the publisher.
func (e *Executor) Execute(ctx context.Context, event any, handler Handler) (result Result) {
	if err := ctx.Err(); err != nil {
		return Result{Error: err, Skipped: true}
	}

	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)
		r := recover()
		if r == nil {
			return
		}
		stack := debug.Stack()
		result.Success = false
		result.Panicked = true
		result.PanicValue = r
		result.PanicStack = stack
		if e.panicHandler != nil {
			func() {
				defer func() { _ = recover() }()
				e.panicHandler(event, r, stack)
			}()
		}
	}()

	if err := handler.Handle(ctx, event); err != nil {
		result.Error = err
		return result
	}
	result.Success = true
	return result
}

// ExecuteWithTimeout runs handler under a derived context with timeout.
// The handler must honour ctx for the timeout to have an effect.
func (e *Executor) ExecuteWithTimeout(ctx context.Context, event any, handler Handler, timeout time.Duration) Result {
	if timeout <= 0 {
		return e.Execute(ctx, event, handler)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return e.Execute(ctx, event, handler)
}

// Package dispatch executes event handlers. The executor runs one handler with
// panic recovery, AsyncDispatcher runs handlers on a worker pool for read-only
// observers, and Queue marshals work from arbitrary goroutines back onto the
// single goroutine that owns the registries.
package dispatch

import (
	"context"
	"time"
)

// Handler mirrors event.Handler to avoid an import cycle.
type Handler interface {
	Handle(ctx context.Context, event any) error
}

// Result is the outcome of one handler execution.
type Result struct {
	Success    bool
	Error      error
	Panicked   bool
	PanicValue any
	PanicStack []byte
	Duration   time.Duration

	// Skipped is set when the context was already done.
	Skipped bool
}

// IsSuccess reports whether the handler returned without error or panic.
func (r Result) IsSuccess() bool {
	return r.Success && !r.Panicked && r.Error == nil
}

// PanicHandler is called with the event, the recovered value and the stack.
type PanicHandler func(event any, panicValue any, stack []byte)

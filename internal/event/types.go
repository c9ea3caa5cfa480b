package event

import "context"

// Priority orders synchronous handlers; lower values run first.
type Priority int

const (
	// PriorityCritical is for registries reacting to each other.
	PriorityCritical Priority = 0

	// PriorityHigh is for components that keep derived state consistent.
	PriorityHigh Priority = 100

	// PriorityNormal is the default for views and plugins.
	PriorityNormal Priority = 200

	// PriorityLow is for logging and metrics.
	PriorityLow Priority = 300
)

// String returns a human-readable priority name.
func (p Priority) String() string {
	switch {
	case p <= PriorityCritical:
		return "critical"
	case p <= PriorityHigh:
		return "high"
	case p <= PriorityNormal:
		return "normal"
	default:
		return "low"
	}
}

// DeliveryMode selects synchronous or asynchronous delivery.
type DeliveryMode int

const (
	// DeliverySync runs the handler inside Publish.
	DeliverySync DeliveryMode = iota

	// DeliveryAsync queues the handler on a worker.
	DeliveryAsync
)

// String returns a human-readable delivery mode name.
func (m DeliveryMode) String() string {
	switch m {
	case DeliverySync:
		return "sync"
	case DeliveryAsync:
		return "async"
	default:
		return "unknown"
	}
}

// Handler processes a type-erased event.
type Handler interface {
	Handle(ctx context.Context, event any) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event any) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, event any) error {
	return f(ctx, event)
}

// TypedHandlerFunc handles events with a known payload type.
type TypedHandlerFunc[T any] func(ctx context.Context, event Event[T]) error

// AsHandler converts a typed handler into a Handler. Events with another
// payload type are skipped.
func AsHandler[T any](fn TypedHandlerFunc[T]) Handler {
	return HandlerFunc(func(ctx context.Context, event any) error {
		if e, ok := event.(Event[T]); ok {
			return fn(ctx, e)
		}
		return nil
	})
}

// FilterFunc decides whether an event is delivered to a subscription.
type FilterFunc func(event any) bool

// PanicHandler is told about a recovered handler panic.
type PanicHandler func(event any, recovered any)

// Stats contains bus counters.
type Stats struct {
	EventsPublished   uint64
	HandlersExecuted  uint64
	HandlerErrors     uint64
	HandlerPanics     uint64
	AsyncDropped      uint64
	ActiveSubscribers int
}

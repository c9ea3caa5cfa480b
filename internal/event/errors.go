package event

import (
	"errors"
	"fmt"
)

var (
	// ErrBusNotRunning is returned when asynchronous work is requested from a stopped bus.
	ErrBusNotRunning = errors.New("event bus is not running")

	// ErrBusAlreadyRunning is returned when Start is called twice.
	ErrBusAlreadyRunning = errors.New("event bus is already running")

	// ErrInvalidEvent is returned for values without a topic.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrInvalidTopic is returned for empty or malformed topics.
	ErrInvalidTopic = errors.New("invalid topic")

	// ErrInvalidSubscription is returned when a nil subscription is unsubscribed.
	ErrInvalidSubscription = errors.New("invalid subscription")

	// ErrSubscriptionNotFound is returned when unsubscribing twice.
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrNilHandler is returned when subscribing without a handler.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrHandlerPanic matches PanicError.
	ErrHandlerPanic = errors.New("handler panicked")
)

// HandlerError wraps the error a handler returned.
type HandlerError struct {
	SubscriptionID string
	Topic          string
	Err            error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s on %s: %v", e.SubscriptionID, e.Topic, e.Err)
}

// Unwrap returns the handler's error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// PanicError describes a recovered handler panic.
type PanicError struct {
	SubscriptionID string
	Topic          string
	Value          any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler %s on %s panicked: %v", e.SubscriptionID, e.Topic, e.Value)
}

// Is makes errors.Is(err, ErrHandlerPanic) true.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanic
}

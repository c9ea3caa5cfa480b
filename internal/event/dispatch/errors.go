package dispatch

import "errors"

var (
	// ErrAlreadyRunning is returned when Start is called twice.
	ErrAlreadyRunning = errors.New("dispatcher is already running")

	// ErrNotRunning is returned when work is submitted to a stopped dispatcher.
	ErrNotRunning = errors.New("dispatcher is not running")

	// ErrQueueFull is returned when a bounded queue cannot accept more work.
	ErrQueueFull = errors.New("dispatch queue is full")

	// ErrQueueClosed is returned by Post after the main-loop queue is closed.
	ErrQueueClosed = errors.New("dispatch queue is closed")
)

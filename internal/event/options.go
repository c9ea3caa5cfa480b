package event

import (
	"time"

	"go.uber.org/zap"
)

// BusOption configures a Bus.
type BusOption func(*busConfig)

type busConfig struct {
	asyncQueueSize   int
	asyncWorkerCount int
	asyncTimeout     time.Duration
	panicHandler     PanicHandler
	logger           *zap.Logger
}

func defaultBusConfig() busConfig {
	return busConfig{
		asyncQueueSize:   1024,
		asyncWorkerCount: 1,
		asyncTimeout:     5 * time.Second,
		logger:           zap.NewNop(),
	}
}

// WithAsyncQueueSize sets the asynchronous queue capacity.
func WithAsyncQueueSize(size int) BusOption {
	return func(c *busConfig) {
		if size > 0 {
			c.asyncQueueSize = size
		}
	}
}

// WithAsyncWorkerCount sets the number of asynchronous workers. More than
// one worker gives up ordering between events.
func WithAsyncWorkerCount(count int) BusOption {
	return func(c *busConfig) {
		if count > 0 {
			c.asyncWorkerCount = count
		}
	}
}

// WithAsyncTimeout sets the per-handler timeout for asynchronous delivery.
func WithAsyncTimeout(timeout time.Duration) BusOption {
	return func(c *busConfig) {
		c.asyncTimeout = timeout
	}
}

// WithPanicHandler sets the function told about recovered handler panics.
func WithPanicHandler(h PanicHandler) BusOption {
	return func(c *busConfig) {
		c.panicHandler = h
	}
}

// WithLogger sets the bus logger.
func WithLogger(logger *zap.Logger) BusOption {
	return func(c *busConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ShutdownTimeout bounds Close when the caller's context has no deadline.
const ShutdownTimeout = 5 * time.Second

// Run executes posted work on the calling goroutine until ctx is done or
// Close is called. The calling goroutine becomes the main loop.
func (c *Core) Run(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)

	done := make(chan struct{})
	c.mu.Lock()
	c.loopDone = done
	c.mu.Unlock()
	defer close(done)

	c.logger.Info("main loop started")
	err := c.queue.Run(ctx)
	c.logger.Info("main loop stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// IsRunning reports whether Run is executing.
func (c *Core) IsRunning() bool {
	return c.running.Load()
}

// Post hands fn to the main loop.
func (c *Core) Post(fn func()) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.queue.Post(fn)
}

// Call runs fn on the main loop and waits for its result.
func (c *Core) Call(ctx context.Context, fn func() error) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.queue.Call(ctx, fn)
}

// Close stops the main loop, removes every dataset, destroys every plugin
// and stops the bus. Work still queued when Run returns is executed on the
// calling goroutine.
func (c *Core) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ShutdownTimeout)
		defer cancel()
	}

	c.queue.Close()
	c.mu.Lock()
	done := c.loopDone
	c.mu.Unlock()
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.closeAll(ctx)
	if err != nil {
		c.logger.Warn("shutdown finished with errors", zap.Error(err))
	}
	return err
}

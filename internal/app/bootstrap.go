package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/manivault/internal/action"
	"github.com/dshills/manivault/internal/data"
	"github.com/dshills/manivault/internal/datatypes"
	"github.com/dshills/manivault/internal/event"
	"github.com/dshills/manivault/internal/event/dispatch"
	"github.com/dshills/manivault/internal/hierarchy"
	"github.com/dshills/manivault/internal/plugin"
	"github.com/dshills/manivault/internal/project"
)

// bootstrapper initializes components in dependency order and unwinds the
// ones already started when a later one fails.
type bootstrapper struct {
	core      *Core
	initOrder []string
}

func newBootstrapper(c *Core) *bootstrapper {
	return &bootstrapper{core: c, initOrder: make([]string, 0, 8)}
}

func (b *bootstrapper) bootstrap(ctx context.Context) error {
	steps := []struct {
		name string
		init func(context.Context) error
	}{
		{"bus", b.initBus},
		{"plugins", b.initPlugins},
		{"actions", b.initActions},
		{"hierarchy", b.initHierarchy},
		{"data", b.initData},
		{"project", b.initProject},
		{"queue", b.initQueue},
	}
	for _, step := range steps {
		if err := step.init(ctx); err != nil {
			b.cleanup()
			return err
		}
		b.initOrder = append(b.initOrder, step.name)
	}
	return nil
}

func (b *bootstrapper) initBus(context.Context) error {
	c := b.core
	c.bus = event.NewBus(event.WithLogger(c.logger))
	if err := c.bus.Start(); err != nil {
		return &InitError{Component: "event bus", Err: err}
	}
	return nil
}

func (b *bootstrapper) initPlugins(ctx context.Context) error {
	c := b.core
	c.plugins = plugin.NewManager(c.bus, plugin.WithLogger(c.logger))
	if err := datatypes.Register(c.plugins); err != nil {
		return &InitError{Component: "data types", Err: err}
	}

	c.loader = plugin.NewLoader(
		plugin.WithPaths(c.config.Plugins.Paths...),
		plugin.WithLoaderTimeout(c.config.Plugins.Timeout()),
		plugin.WithLoaderLogger(c.logger))
	loaded, err := c.loader.Load(ctx, c.plugins)
	if err != nil {
		c.pluginErr = err
		c.logger.Warn("some plugins were not loaded", zap.Error(err))
	}
	c.logger.Debug("plugins ready",
		zap.Int("factories", len(c.plugins.Factories())),
		zap.Int("scripted", len(loaded)))
	return nil
}

func (b *bootstrapper) initActions(context.Context) error {
	c := b.core
	c.actions = action.NewRegistry(c.bus, action.WithLogger(c.logger))
	subs, err := wirePluginActions(c.bus, c.plugins, c.actions, c.logger.Named("app"))
	if err != nil {
		return &InitError{Component: "plugin actions", Err: err}
	}
	c.subs = append(c.subs, subs...)
	return nil
}

func (b *bootstrapper) initHierarchy(context.Context) error {
	c := b.core
	opts := []hierarchy.Option{
		hierarchy.WithLogger(c.logger),
		hierarchy.WithGroupBuckets(c.config.Data.GroupBuckets),
	}
	key, err := c.config.Data.Key()
	if err != nil {
		return &InitError{Component: "hierarchy", Err: err}
	}
	if key != nil {
		opts = append(opts, hierarchy.WithSessionKey(key))
	}
	if c.hierarchy, err = hierarchy.New(c.bus, opts...); err != nil {
		return &InitError{Component: "hierarchy", Err: err}
	}
	return nil
}

func (b *bootstrapper) initData(context.Context) error {
	c := b.core
	c.producer = NewStorageProducer(c.plugins, c.logger)
	c.data = data.NewRegistry(c.bus, c.producer,
		data.WithTree(c.hierarchy),
		data.WithLogger(c.logger),
		data.WithRemovalPolicy(removalPolicy(c.config.Data.RemovalPolicy)))
	return nil
}

func (b *bootstrapper) initProject(context.Context) error {
	c := b.core
	c.project = project.New(c.bus, c.data, c.hierarchy, c.actions, project.WithLogger(c.logger))
	return nil
}

func (b *bootstrapper) initQueue(context.Context) error {
	c := b.core
	logger := c.logger.Named("loop")
	c.queue = dispatch.NewQueue(dispatch.WithQueuePanicHandler(func(task any, value any, stack []byte) {
		logger.Error("main loop task panicked",
			zap.Any("task", task), zap.Any("panic", value), zap.ByteString("stack", stack))
	}))
	return nil
}

// cleanup releases started components in reverse order.
func (b *bootstrapper) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(b.initOrder) - 1; i >= 0; i-- {
		b.cleanupComponent(ctx, b.initOrder[i])
	}
}

func (b *bootstrapper) cleanupComponent(ctx context.Context, component string) {
	c := b.core
	switch component {
	case "bus":
		_ = c.bus.Stop(ctx)
	case "plugins":
		_ = c.plugins.DestroyAll()
	case "actions":
		for _, sub := range c.subs {
			sub.Cancel()
		}
		c.subs = nil
	case "data":
		c.data.Close()
	case "queue":
		c.queue.Close()
	}
}

func removalPolicy(name string) data.RemovalPolicy {
	if name == data.PolicyReparent.String() {
		return data.PolicyReparent
	}
	return data.PolicyCascade
}

// closeAll is the orderly counterpart of cleanup used by Close.
func (c *Core) closeAll(ctx context.Context) error {
	var errs []error
	c.queue.Close()
	c.queue.Drain()

	var roots []data.Dataset
	for _, it := range c.hierarchy.Roots() {
		roots = append(roots, it.Dataset())
	}
	if len(roots) > 0 {
		errs = append(errs, c.data.RemoveDatasets(roots...))
	}
	errs = append(errs, c.plugins.DestroyAll())
	for _, sub := range c.subs {
		sub.Cancel()
	}
	c.subs = nil
	c.data.Close()
	if err := c.bus.Stop(ctx); err != nil && !errors.Is(err, event.ErrBusNotRunning) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

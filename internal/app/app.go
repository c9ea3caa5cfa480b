// Package app wires the registries of manivault into one Core and runs its
// main loop.
//
// Every registry is constructed exactly once, in dependency order: the
// notification bus, the plugin manager with the built-in data types and
// any discovered scripted plugins, the action registry, the data hierarchy
// the dataset registry, which produces storages through the plugin
// manager, and the project persistence over all of them. Registry mutations must happen on the goroutine running
// Run; other goroutines hand work to it with Post or Call.
package app

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/dshills/manivault/internal/action"
	"github.com/dshills/manivault/internal/config"
	"github.com/dshills/manivault/internal/data"
	"github.com/dshills/manivault/internal/event"
	"github.com/dshills/manivault/internal/event/dispatch"
	"github.com/dshills/manivault/internal/hierarchy"
	"github.com/dshills/manivault/internal/plugin"
	"github.com/dshills/manivault/internal/project"
)

// Core is the dependency container shared by every command.
type Core struct {
	mu sync.Mutex

	config *config.Config
	logger *zap.Logger

	bus       event.Bus
	queue     *dispatch.Queue
	plugins   *plugin.Manager
	loader    *plugin.Loader
	producer  *StorageProducer
	actions   *action.Registry
	hierarchy *hierarchy.Hierarchy
	data      *data.Registry
	project   *project.Project

	subs      []event.Subscription
	pluginErr error

	running  atomic.Bool
	closed   atomic.Bool
	loopDone chan struct{}
}

// Options configures New.
type Options struct {
	// Config defaults to config.Default().
	Config *config.Config

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// New builds a Core. Scripted plugins that fail to load do not fail New;
// their errors are available from PluginLoadError.
func New(ctx context.Context, opts Options) (*Core, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Core{config: cfg, logger: logger}
	if err := newBootstrapper(c).bootstrap(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Config returns the configuration the core was built with.
func (c *Core) Config() *config.Config { return c.config }

// Logger returns the root logger.
func (c *Core) Logger() *zap.Logger { return c.logger }

// Bus returns the notification bus.
func (c *Core) Bus() event.Bus { return c.bus }

// Queue returns the main loop queue.
func (c *Core) Queue() *dispatch.Queue { return c.queue }

// Plugins returns the plugin manager.
func (c *Core) Plugins() *plugin.Manager { return c.plugins }

// Loader returns the scripted plugin loader.
func (c *Core) Loader() *plugin.Loader { return c.loader }

// Storages returns the plugin-backed storage producer.
func (c *Core) Storages() *StorageProducer { return c.producer }

// Actions returns the action registry.
func (c *Core) Actions() *action.Registry { return c.actions }

// Hierarchy returns the data hierarchy.
func (c *Core) Hierarchy() *hierarchy.Hierarchy { return c.hierarchy }

// Data returns the dataset registry.
func (c *Core) Data() *data.Registry { return c.data }

// Project returns the session persistence.
func (c *Core) Project() *project.Project { return c.project }

// PluginLoadError returns the joined errors of scripted plugins that could
// not be loaded, or nil.
func (c *Core) PluginLoadError() error { return c.pluginErr }

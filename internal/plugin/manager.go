package plugin

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/manivault/internal/event"
	"github.com/dshills/manivault/internal/event/events"
	"github.com/dshills/manivault/internal/event/topic"
)

const eventSource = "plugin"

// Kinds closer than this to a requested kind are offered as suggestions.
const suggestionThreshold = 0.5

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

type instance struct {
	plugin Plugin
	state  State
}

// Manager owns the registered factories and every live plugin instance.
type Manager struct {
	mu sync.RWMutex

	bus    event.Bus
	logger *zap.Logger

	factories map[string]Factory
	instances []*instance
	byID      map[string]*instance

	// live counts instances per kind; produced never decreases.
	live     map[string]int
	produced map[string]int
}

// NewManager creates a manager publishing on bus.
func NewManager(bus event.Bus, opts ...Option) *Manager {
	m := &Manager{
		bus:       bus,
		logger:    zap.NewNop(),
		factories: make(map[string]Factory),
		byID:      make(map[string]*instance),
		live:      make(map[string]int),
		produced:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.Named("plugin")
	return m
}

// RegisterFactory makes f available. Kinds are unique.
func (m *Manager) RegisterFactory(f Factory) error {
	m.mu.Lock()
	if _, exists := m.factories[f.Kind()]; exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, f.Kind())
	}
	m.factories[f.Kind()] = f
	m.mu.Unlock()

	m.logger.Debug("factory registered",
		zap.String("kind", f.Kind()),
		zap.Stringer("type", f.Type()),
		zap.Stringer("version", f.Version()))
	emit(m, events.TopicFactoryRegistered, events.FactoryRegistered{
		Kind:    f.Kind(),
		Type:    f.Type().String(),
		Version: f.Version().String(),
	})
	return nil
}

// Factory returns the factory of kind.
func (m *Manager) Factory(kind string) (Factory, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.factories[kind]
	return f, ok
}

// FactoryVersion returns the version of the factory of kind.
func (m *Manager) FactoryVersion(kind string) (*semver.Version, bool) {
	f, ok := m.Factory(kind)
	if !ok {
		return nil, false
	}
	return f.Version(), true
}

// Factories returns every factory sorted by kind.
func (m *Manager) Factories() []Factory {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Factory, 0, len(m.factories))
	for _, f := range m.factories {
		out = append(out, f)
	}
	sortFactories(out)
	return out
}

// FactoriesByType returns the factories of type t sorted by kind.
func (m *Manager) FactoriesByType(t Type) []Factory {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Factory
	for _, f := range m.factories {
		if f.Type() == t {
			out = append(out, f)
		}
	}
	sortFactories(out)
	return out
}

// IsPluginLoaded reports whether a factory for kind is registered.
func (m *Manager) IsPluginLoaded(kind string) bool {
	_, ok := m.Factory(kind)
	return ok
}

// SuggestKind returns the registered kind closest to kind, or "" when
// none is close enough.
func (m *Manager) SuggestKind(kind string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lev := metrics.NewLevenshtein()
	lev.CaseSensitive = false
	best, bestScore := "", 0.0
	for _, k := range sortedKeys(m.factories) {
		if score := strutil.Similarity(kind, k, lev); score >= suggestionThreshold && score > bestScore {
			best, bestScore = k, score
		}
	}
	return best
}

// ProduceKind produces an instance from the factory of kind.
func (m *Manager) ProduceKind(kind string) (Plugin, error) {
	f, ok := m.Factory(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFactoryNotFound, kind)
	}
	return m.Produce(f)
}

// Produce creates and initializes an instance from f and announces it with
// plugin.added. Nothing is kept when the cap is reached, the factory fails
// or Init fails.
func (m *Manager) Produce(f Factory) (Plugin, error) {
	kind := f.Kind()

	m.mu.Lock()
	if limit := f.MaxInstances(); limit > 0 && m.live[kind] >= limit {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s allows %d", ErrMaxInstances, kind, limit)
	}
	// Reserve the slot so concurrent producers respect the cap.
	m.live[kind]++
	m.mu.Unlock()

	release := func() {
		m.mu.Lock()
		m.live[kind]--
		m.mu.Unlock()
	}

	p, err := f.Produce(uuid.NewString())
	if err != nil {
		release()
		return nil, fmt.Errorf("produce %s: %w", kind, err)
	}
	if err := p.Init(); err != nil {
		release()
		if derr := p.Destroy(); derr != nil {
			err = errors.Join(err, derr)
		}
		return nil, fmt.Errorf("init %s: %w", kind, err)
	}

	inst := &instance{plugin: p, state: StateInitialized}
	m.mu.Lock()
	m.instances = append(m.instances, inst)
	m.byID[p.ID()] = inst
	m.produced[kind]++
	live := m.live[kind]
	m.mu.Unlock()

	m.logger.Debug("plugin produced", zap.String("kind", kind), zap.String("id", p.ID()), zap.Int("instances", live))
	emit(m, events.TopicPluginAdded, instanceEvent(p, live))
	return p, nil
}

// Destroy announces plugin.destroying, destroys p, forgets it and
// announces plugin.destroyed.
func (m *Manager) Destroy(p Plugin) error {
	m.mu.Lock()
	inst, ok := m.byID[p.ID()]
	if !ok || inst.state != StateInitialized {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrPluginNotFound, p.ID())
	}
	inst.state = StateDestroying
	live := m.live[p.Kind()]
	m.mu.Unlock()

	emit(m, events.TopicPluginDestroying, instanceEvent(p, live))
	err := p.Destroy()

	m.mu.Lock()
	inst.state = StateDestroyed
	m.instances = slices.DeleteFunc(m.instances, func(x *instance) bool { return x == inst })
	delete(m.byID, p.ID())
	m.live[p.Kind()]--
	live = m.live[p.Kind()]
	m.mu.Unlock()

	emit(m, events.TopicPluginDestroyed, instanceEvent(p, live))
	if err != nil {
		m.logger.Warn("plugin destroy failed", zap.String("kind", p.Kind()), zap.String("id", p.ID()), zap.Error(err))
		return fmt.Errorf("destroy %s: %w", p.Kind(), err)
	}
	return nil
}

// DestroyAll destroys every instance, newest first.
func (m *Manager) DestroyAll() error {
	plugins := m.Plugins()
	slices.Reverse(plugins)
	var errs []error
	for _, p := range plugins {
		if err := m.Destroy(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Plugin returns the live instance with id.
func (m *Manager) Plugin(id string) (Plugin, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.byID[id]
	if !ok {
		return nil, false
	}
	return inst.plugin, true
}

// Plugins returns the live instances in production order.
func (m *Manager) Plugins() []Plugin {
	return m.filter(func(Plugin) bool { return true })
}

// PluginsOfKind returns the live instances of kind in production order.
func (m *Manager) PluginsOfKind(kind string) []Plugin {
	return m.filter(func(p Plugin) bool { return p.Kind() == kind })
}

// StateOf returns the lifecycle state of p; unknown plugins report
// StateDestroyed.
func (m *Manager) StateOf(p Plugin) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if inst, ok := m.byID[p.ID()]; ok {
		return inst.state
	}
	return StateDestroyed
}

// InstanceCount returns the live instances of kind.
func (m *Manager) InstanceCount(kind string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.live[kind]
}

// ProducedCount returns how many instances of kind were ever produced.
func (m *Manager) ProducedCount(kind string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.produced[kind]
}

func (m *Manager) filter(keep func(Plugin) bool) []Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Plugin
	for _, inst := range m.instances {
		if keep(inst.plugin) {
			out = append(out, inst.plugin)
		}
	}
	return out
}

func instanceEvent(p Plugin, live int) events.PluginInstance {
	return events.PluginInstance{ID: p.ID(), Kind: p.Kind(), Type: p.Type().String(), Instances: live}
}

func sortFactories(fs []Factory) {
	sort.Slice(fs, func(i, j int) bool {
		return fs[i].Kind() < fs[j].Kind()
	})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func emit[T any](m *Manager, t topic.Topic, payload T) {
	if err := event.Emit(context.Background(), m.bus, t, payload, eventSource); err != nil {
		m.logger.Warn("publish failed", zap.String("topic", t.String()), zap.Error(err))
	}
}

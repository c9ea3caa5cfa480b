package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/dshills/manivault/internal/action"
	"github.com/dshills/manivault/internal/data"
	"github.com/dshills/manivault/internal/event"
	"github.com/dshills/manivault/internal/event/events"
	"github.com/dshills/manivault/internal/plugin"
)

// StorageProducer adapts the plugin manager to data.Producer: every raw
// data entry is backed by its own DATA plugin instance.
type StorageProducer struct {
	plugins *plugin.Manager
	logger  *zap.Logger

	mu     sync.Mutex
	owners map[data.Storage]string
}

var _ data.Producer = (*StorageProducer)(nil)

// NewStorageProducer creates a producer over plugins.
func NewStorageProducer(plugins *plugin.Manager, logger *zap.Logger) *StorageProducer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StorageProducer{
		plugins: plugins,
		logger:  logger.Named("storage"),
		owners:  make(map[data.Storage]string),
	}
}

// ProduceStorage produces a DATA plugin of kind and returns its storage.
func (p *StorageProducer) ProduceStorage(kind string) (data.Storage, error) {
	f, ok := p.plugins.Factory(kind)
	if !ok || f.Type() != plugin.TypeData {
		return nil, &data.UnknownKindError{Kind: kind, Suggestion: p.suggest(kind)}
	}
	pl, err := p.plugins.Produce(f)
	if err != nil {
		return nil, err
	}
	sp, ok := pl.(plugin.StorageProvider)
	if !ok || sp.Storage() == nil {
		err := fmt.Errorf("%w: %s", ErrNotStorageProvider, kind)
		return nil, errors.Join(err, p.plugins.Destroy(pl))
	}

	s := sp.Storage()
	p.mu.Lock()
	p.owners[s] = pl.ID()
	p.mu.Unlock()
	return s, nil
}

// ReleaseStorage destroys the plugin that owns s.
func (p *StorageProducer) ReleaseStorage(s data.Storage) error {
	p.mu.Lock()
	id, ok := p.owners[s]
	delete(p.owners, s)
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: storage of kind %s has no owner", plugin.ErrPluginNotFound, s.DataKind())
	}
	pl, ok := p.plugins.Plugin(id)
	if !ok {
		return fmt.Errorf("%w: %s", plugin.ErrPluginNotFound, id)
	}
	return p.plugins.Destroy(pl)
}

// Owned returns the number of storages currently owned by plugins.
func (p *StorageProducer) Owned() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.owners)
}

// suggest only proposes DATA kinds.
func (p *StorageProducer) suggest(kind string) string {
	s := p.plugins.SuggestKind(kind)
	if f, ok := p.plugins.Factory(s); ok && f.Type() == plugin.TypeData {
		return s
	}
	return ""
}

// wirePluginActions registers the actions of every produced plugin and
// unregisters them when the plugin goes.
func wirePluginActions(bus event.Bus, plugins *plugin.Manager, actions *action.Registry, logger *zap.Logger) ([]event.Subscription, error) {
	added, err := event.Subscribe(bus, events.TopicPluginAdded,
		func(_ context.Context, ev event.Event[events.PluginInstance]) error {
			pl, ok := plugins.Plugin(ev.Payload.ID)
			if !ok {
				return nil
			}
			for _, a := range pl.Actions() {
				if err := actions.Add(a); err != nil {
					logger.Warn("plugin action not registered",
						zap.String("plugin", ev.Payload.Kind), zap.String("action", a.Text()), zap.Error(err))
				}
			}
			return nil
		})
	if err != nil {
		return nil, err
	}

	destroying, err := event.Subscribe(bus, events.TopicPluginDestroying,
		func(_ context.Context, ev event.Event[events.PluginInstance]) error {
			pl, ok := plugins.Plugin(ev.Payload.ID)
			if !ok {
				return nil
			}
			for _, a := range pl.Actions() {
				if err := actions.Remove(a); err != nil && !errors.Is(err, action.ErrActionNotFound) {
					return err
				}
			}
			return nil
		})
	if err != nil {
		added.Cancel()
		return nil, err
	}
	return []event.Subscription{added, destroying}, nil
}

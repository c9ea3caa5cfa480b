package action

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/dshills/manivault/internal/event"
	"github.com/dshills/manivault/internal/event/events"
	"github.com/dshills/manivault/internal/event/topic"
)

const eventSource = "action"

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Registry tracks actions, the public subset and the links between private
// and public actions.
type Registry struct {
	bus    event.Bus
	logger *zap.Logger

	actions []*Action
	byID    map[string]*Action
	public  []*Action
	types   map[string]int
}

// NewRegistry creates an empty registry publishing on bus.
func NewRegistry(bus event.Bus, opts ...Option) *Registry {
	r := &Registry{
		bus:    bus,
		logger: zap.NewNop(),
		byID:   make(map[string]*Action),
		types:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("action")
	return r
}

// Add registers a and its descendants. Restored links waiting on either
// side are completed.
func (r *Registry) Add(a *Action) error {
	var dup error
	a.walk(func(x *Action) {
		if dup == nil {
			if _, ok := r.byID[x.id]; ok {
				dup = fmt.Errorf("%w: %s (%s)", ErrAlreadyRegistered, x.id, x.Location())
			}
		}
	})
	if dup != nil {
		return dup
	}

	var added []*Action
	a.walk(func(x *Action) {
		x.reg = r
		r.actions = append(r.actions, x)
		r.byID[x.id] = x
		added = append(added, x)
		emit(r, events.TopicActionAdded, r.actionEvent(x))
		r.addType(x.TypeString())
		if x.IsPublic() {
			r.public = append(r.public, x)
			emit(r, events.TopicPublicActionAdded, r.actionEvent(x))
		}
	})
	for _, x := range added {
		r.resolvePending(x)
	}
	return nil
}

// Remove unregisters a and its descendants, children first. Removing a
// public action disconnects its followers; removing a connected private
// action disconnects it.
func (r *Registry) Remove(a *Action) error {
	if r.byID[a.id] != a {
		return fmt.Errorf("%w: %s", ErrActionNotFound, a.id)
	}
	r.remove(a)
	return nil
}

func (r *Registry) remove(a *Action) {
	for _, c := range slices.Clone(a.children) {
		if c.reg == r {
			r.remove(c)
		}
	}

	emit(r, events.TopicActionRemoving, r.actionEvent(a))
	if a.public != nil {
		r.disconnect(a)
	}
	if a.IsPublic() {
		for _, follower := range slices.Clone(a.connected) {
			r.disconnect(follower)
		}
		r.public = slices.DeleteFunc(r.public, func(x *Action) bool { return x == a })
		emit(r, events.TopicPublicActionRemoved, r.actionEvent(a))
	}

	r.actions = slices.DeleteFunc(r.actions, func(x *Action) bool { return x == a })
	delete(r.byID, a.id)
	a.reg = nil
	emit(r, events.TopicActionRemoved, r.actionEvent(a))
	r.removeType(a.TypeString())
}

// Action returns the registered action with id.
func (r *Registry) Action(id string) (*Action, error) {
	a, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrActionNotFound, id)
	}
	return a, nil
}

// Actions returns every registered action in registration order.
func (r *Registry) Actions() []*Action {
	return slices.Clone(r.actions)
}

// PublicActions returns the public actions in registration order.
func (r *Registry) PublicActions() []*Action {
	return slices.Clone(r.public)
}

// ActionByName returns the action with display text. Names are not unique;
// the most recently registered match wins.
func (r *Registry) ActionByName(text string) *Action {
	var found *Action
	for _, a := range r.actions {
		if a.text == text {
			found = a
		}
	}
	return found
}

// Types returns the registered action types in lexical order.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.types))
	for t := range r.types {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// TypeCount returns how many registered actions have type t.
func (r *Registry) TypeCount(t string) int {
	return r.types[t]
}

// Len returns the number of registered actions.
func (r *Registry) Len() int {
	return len(r.actions)
}

func (r *Registry) addType(t string) {
	r.types[t]++
	if r.types[t] == 1 {
		emit(r, events.TopicActionTypeAdded, events.ActionType{Type: t})
	}
}

func (r *Registry) removeType(t string) {
	n, ok := r.types[t]
	if !ok {
		return
	}
	if n <= 1 {
		delete(r.types, t)
		emit(r, events.TopicActionTypeRemoved, events.ActionType{Type: t})
		return
	}
	r.types[t] = n - 1
}

func (r *Registry) valueChanged(a *Action) {
	emit(r, events.TopicActionValueChanged, events.ActionValueChanged{ID: a.id, Text: a.text, Value: a.value})
}

func (r *Registry) actionEvent(a *Action) events.ActionEvent {
	return events.ActionEvent{ID: a.id, Text: a.text, Type: a.TypeString(), Public: a.IsPublic()}
}

func emit[T any](r *Registry, t topic.Topic, payload T) {
	if err := event.Emit(context.Background(), r.bus, t, payload, eventSource); err != nil {
		r.logger.Warn("publish failed", zap.String("topic", t.String()), zap.Error(err))
	}
}

package plugin

import (
	"slices"

	"github.com/dshills/manivault/internal/action"
	"github.com/dshills/manivault/internal/data"
)

// Plugin is an instance produced by a Factory.
type Plugin interface {
	ID() string
	Kind() string
	Type() Type

	// Actions returns the settings the plugin exposes. The application
	// registers them with the action registry once the plugin is added.
	Actions() []*action.Action

	// Init runs once after production. A failing Init destroys the plugin.
	Init() error

	// Destroy releases the plugin's resources.
	Destroy() error
}

// StorageProvider is implemented by DATA plugins that hold raw data.
type StorageProvider interface {
	Storage() data.Storage
}

// Base implements the bookkeeping part of Plugin. Embed it and override
// Init and Destroy as needed.
type Base struct {
	id      string
	factory Factory
	actions []*action.Action
}

// NewBase returns the base of a plugin with id produced by f.
func NewBase(id string, f Factory) Base {
	return Base{id: id, factory: f}
}

func (b *Base) ID() string       { return b.id }
func (b *Base) Kind() string     { return b.factory.Kind() }
func (b *Base) Type() Type       { return b.factory.Type() }
func (b *Base) Factory() Factory { return b.factory }

// Actions returns the actions added with AddAction.
func (b *Base) Actions() []*action.Action {
	return slices.Clone(b.actions)
}

// AddAction adds a setting.
func (b *Base) AddAction(a *action.Action) {
	b.actions = append(b.actions, a)
}

func (b *Base) Init() error    { return nil }
func (b *Base) Destroy() error { return nil }

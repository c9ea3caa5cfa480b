package plugin

import "github.com/Masterminds/semver/v3"

// Factory creates plugins of one kind.
type Factory interface {
	Kind() string
	Type() Type
	Version() *semver.Version

	// MaxInstances caps the live instances; zero means unlimited.
	MaxInstances() int

	// Produce creates an instance with id.
	Produce(id string) (Plugin, error)
}

// ProduceFunc builds a plugin for NewFactory.
type ProduceFunc func(id string, f Factory) (Plugin, error)

// FactoryOption configures a factory built with NewFactory.
type FactoryOption func(*BaseFactory)

// WithVersion sets the factory version.
func WithVersion(v *semver.Version) FactoryOption {
	return func(f *BaseFactory) {
		if v != nil {
			f.version = v
		}
	}
}

// WithMaxInstances caps the live instances.
func WithMaxInstances(n int) FactoryOption {
	return func(f *BaseFactory) {
		f.maxInstances = max(n, 0)
	}
}

// BaseFactory is a Factory backed by a ProduceFunc.
type BaseFactory struct {
	kind         string
	typ          Type
	version      *semver.Version
	maxInstances int
	produce      ProduceFunc
}

var defaultVersion = semver.MustParse("1.0.0")

// NewFactory creates a factory for kind. The version defaults to 1.0.0.
func NewFactory(kind string, t Type, produce ProduceFunc, opts ...FactoryOption) *BaseFactory {
	f := &BaseFactory{
		kind:    kind,
		typ:     t,
		version: defaultVersion,
		produce: produce,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *BaseFactory) Kind() string             { return f.kind }
func (f *BaseFactory) Type() Type               { return f.typ }
func (f *BaseFactory) Version() *semver.Version { return f.version }
func (f *BaseFactory) MaxInstances() int        { return f.maxInstances }

// Produce calls the ProduceFunc.
func (f *BaseFactory) Produce(id string) (Plugin, error) {
	return f.produce(id, f)
}

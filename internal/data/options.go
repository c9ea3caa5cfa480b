package data

import "go.uber.org/zap"

// RemovalPolicy decides what happens to the children of a removed dataset.
type RemovalPolicy int

const (
	// PolicyCascade removes the whole subtree.
	PolicyCascade RemovalPolicy = iota

	// PolicyReparent moves children whose kind may underive to the root
	// and removes the rest.
	PolicyReparent
)

func (p RemovalPolicy) String() string {
	if p == PolicyReparent {
		return "reparent"
	}
	return "cascade"
}

// Option configures a Registry.
type Option func(*Registry)

// WithTree sets the hierarchy the registry attaches datasets to.
func WithTree(t Tree) Option {
	return func(r *Registry) {
		if t != nil {
			r.tree = t
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRemovalPolicy sets the child policy used by RemoveDatasets.
func WithRemovalPolicy(p RemovalPolicy) Option {
	return func(r *Registry) {
		r.policy = p
	}
}

// AddOption configures a single dataset creation.
type AddOption func(*addConfig)

type addConfig struct {
	parent    Dataset
	parentSet bool
	guid      string
}

// WithParent attaches the new dataset under parent. A zero parent means
// the root, which overrides the default placement of derived datasets and
// subsets under their source.
func WithParent(parent Dataset) AddOption {
	return func(c *addConfig) {
		c.parent = parent
		c.parentSet = true
	}
}

// WithGUID uses guid instead of a fresh one. It fails with ErrDuplicateGUID
// if the GUID was ever issued by this registry.
func WithGUID(guid string) AddOption {
	return func(c *addConfig) {
		c.guid = guid
	}
}

func applyAddOptions(opts []AddOption) addConfig {
	var c addConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

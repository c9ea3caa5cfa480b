package plugin

import (
	"errors"
	"fmt"
)

var (
	// ErrFactoryNotFound is returned when no factory is registered for a kind.
	ErrFactoryNotFound = errors.New("plugin factory not found")

	// ErrAlreadyRegistered is returned when a kind already has a factory.
	ErrAlreadyRegistered = errors.New("plugin factory already registered")

	// ErrMaxInstances is returned when a factory's instance cap is reached.
	ErrMaxInstances = errors.New("plugin instance limit reached")

	// ErrPluginNotFound is returned for instances the manager does not own.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrNoEntryPoint is returned for manifests without a script.
	ErrNoEntryPoint = errors.New("plugin has no script")

	// ErrDependencyNotFound is returned when a required plugin kind is missing.
	ErrDependencyNotFound = errors.New("plugin dependency not found")

	// ErrDependencyVersion is returned when a dependency's version does not
	// satisfy the constraint.
	ErrDependencyVersion = errors.New("plugin dependency version mismatch")

	// ErrCyclicDependency is returned when plugins depend on each other.
	ErrCyclicDependency = errors.New("cyclic plugin dependency detected")

	// ErrInvalidSettings is returned when a script declares unusable settings.
	ErrInvalidSettings = errors.New("invalid plugin settings")
)

// DependencyError reports an unsatisfied dependency of Kind.
type DependencyError struct {
	Kind       string
	Dependency string
	Constraint string

	// Found is the version of Dependency that is available, if any.
	Found string

	Err error
}

func (e *DependencyError) Error() string {
	if e.Found != "" {
		return fmt.Sprintf("plugin %s: dependency %s %s: found %s: %v", e.Kind, e.Dependency, e.Constraint, e.Found, e.Err)
	}
	return fmt.Sprintf("plugin %s: dependency %s %s: %v", e.Kind, e.Dependency, e.Constraint, e.Err)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}

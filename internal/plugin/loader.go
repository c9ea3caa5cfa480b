package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	plua "github.com/dshills/manivault/internal/plugin/lua"
)

// Loader discovers plugin directories and registers scripted factories.
type Loader struct {
	paths   []string
	timeout time.Duration
	logger  *zap.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithPaths sets the search paths, checked in order. A leading ~ is
// expanded.
func WithPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.paths = expandPaths(paths)
	}
}

// WithLoaderTimeout bounds each script execution.
func WithLoaderTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) {
		l.timeout = d
	}
}

// WithLoaderLogger sets the logger.
func WithLoaderLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader creates a loader searching DefaultPluginPaths unless WithPaths
// is given.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		paths:   DefaultPluginPaths(),
		timeout: plua.DefaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.Named("loader")
	return l
}

// DefaultPluginPaths returns ~/.manivault/plugins and .manivault/plugins
// under the working directory.
func DefaultPluginPaths() []string {
	var paths []string
	if home, err := homedir.Expand("~/.manivault/plugins"); err == nil {
		paths = append(paths, home)
	}
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".manivault", "plugins"))
	}
	return paths
}

// Paths returns the search paths.
func (l *Loader) Paths() []string {
	return l.paths
}

// Discover reads every plugin.json one directory below the search paths.
// The first manifest of a kind wins. Broken manifests are reported in the
// joined error and skipped. The result is sorted by kind.
func (l *Loader) Discover() ([]*Manifest, error) {
	byKind := make(map[string]*Manifest)
	var errs []error
	for _, base := range l.paths {
		entries, err := os.ReadDir(base)
		if err != nil {
			if !os.IsNotExist(err) {
				errs = append(errs, err)
			}
			continue
		}
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			dir := filepath.Join(base, entry.Name())
			if _, err := os.Stat(filepath.Join(dir, ManifestFile)); err != nil {
				continue
			}
			m, err := LoadManifestFromDir(dir)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if prev, exists := byKind[m.Kind]; exists {
				l.logger.Debug("manifest shadowed", zap.String("kind", m.Kind), zap.String("path", dir), zap.String("by", prev.Path()))
				continue
			}
			byKind[m.Kind] = m
		}
	}
	return sortedManifests(byKind), errors.Join(errs...)
}

// Load discovers manifests, orders them by dependency and registers a
// scripted factory for each with m. Plugins that fail are reported in the
// joined error; the others stay registered.
func (l *Loader) Load(ctx context.Context, m *Manager) ([]Factory, error) {
	manifests, discoverErr := l.Discover()
	ordered, orderErr := ResolveOrder(manifests, m.FactoryVersion)

	var loaded []Factory
	errs := []error{discoverErr, orderErr}
	for _, man := range ordered {
		f, err := NewScriptedFactory(ctx, man,
			WithScriptTimeout(l.timeout),
			WithScriptLogger(l.logger))
		if err == nil {
			err = m.RegisterFactory(f)
		}
		if err != nil {
			l.logger.Warn("plugin not loaded", zap.String("kind", man.Kind), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", man.Kind, err))
			continue
		}
		l.logger.Info("plugin loaded", zap.String("kind", man.Kind), zap.String("version", man.Version))
		loaded = append(loaded, f)
	}
	return loaded, errors.Join(errs...)
}

func expandPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if expanded, err := homedir.Expand(p); err == nil {
			p = expanded
		}
		out = append(out, p)
	}
	return out
}

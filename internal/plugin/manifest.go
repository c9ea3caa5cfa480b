package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// ManifestFile is the manifest name inside a plugin directory.
const ManifestFile = "plugin.json"

// Manifest describes a scripted plugin.
type Manifest struct {
	Kind        string `json:"kind"`
	Type        Type   `json:"type"`
	Version     string `json:"version"`
	DisplayName string `json:"displayName,omitempty"`
	Description string `json:"description,omitempty"`

	// Dependencies maps plugin kinds to semver constraints.
	Dependencies map[string]string `json:"dependencies,omitempty"`

	MaxInstances int `json:"maxInstances,omitempty"`

	// Script is the Lua file relative to the plugin directory.
	Script string `json:"script"`

	path    string
	version *semver.Version
}

// Validation errors.
var (
	ErrMissingKind       = errors.New("manifest: kind is required")
	ErrInvalidKind       = errors.New("manifest: kind must start with a letter and hold letters, digits, spaces, '-' or '_'")
	ErrInvalidVersion    = errors.New("manifest: version must be valid semver")
	ErrInvalidConstraint = errors.New("manifest: invalid dependency constraint")
	ErrInvalidScript     = errors.New("manifest: script must be a .lua file")
	ErrInvalidMax        = errors.New("manifest: maxInstances must not be negative")
)

var kindPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9 _-]*$`)

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	m.path = filepath.Dir(path)
	if m.Version == "" {
		m.Version = "0.0.0"
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// LoadManifestFromDir reads plugin.json from dir.
func LoadManifestFromDir(dir string) (*Manifest, error) {
	return LoadManifest(filepath.Join(dir, ManifestFile))
}

// Validate checks the manifest and caches the parsed version.
func (m *Manifest) Validate() error {
	if m.Kind == "" {
		return ErrMissingKind
	}
	if !kindPattern.MatchString(m.Kind) {
		return fmt.Errorf("%w: %q", ErrInvalidKind, m.Kind)
	}
	v, err := semver.StrictNewVersion(m.Version)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidVersion, m.Version)
	}
	m.version = v
	for kind, c := range m.Dependencies {
		if _, err := semver.NewConstraint(c); err != nil {
			return fmt.Errorf("%w: %s %q: %v", ErrInvalidConstraint, kind, c, err)
		}
	}
	if m.Script != "" && filepath.Ext(m.Script) != ".lua" {
		return fmt.Errorf("%w: %s", ErrInvalidScript, m.Script)
	}
	if m.MaxInstances < 0 {
		return ErrInvalidMax
	}
	return nil
}

// SemVer returns the parsed version. Validate must have succeeded.
func (m *Manifest) SemVer() *semver.Version {
	if m.version == nil {
		m.version, _ = semver.NewVersion(m.Version)
	}
	return m.version
}

// Path returns the plugin directory.
func (m *Manifest) Path() string {
	return m.path
}

// ScriptPath returns the absolute script path, or "" without a script.
func (m *Manifest) ScriptPath() string {
	if m.Script == "" {
		return ""
	}
	return filepath.Join(m.path, m.Script)
}

// DependencyKinds returns the required kinds in lexical order.
func (m *Manifest) DependencyKinds() []string {
	kinds := make([]string, 0, len(m.Dependencies))
	for k := range m.Dependencies {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func (m *Manifest) String() string {
	name := m.DisplayName
	if name == "" {
		name = m.Kind
	}
	return fmt.Sprintf("%s v%s", name, m.Version)
}

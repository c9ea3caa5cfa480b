package plugin

import (
	"errors"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func manifest(t *testing.T, kind, version string, deps map[string]string) *Manifest {
	t.Helper()
	m := &Manifest{Kind: kind, Type: TypeAnalysis, Version: version, Dependencies: deps, Script: "init.lua"}
	require.NoError(t, m.Validate())
	return m
}

func TestResolveOrder(t *testing.T) {
	builtin := func(kind string) (*semver.Version, bool) {
		if kind == "Points" {
			return semver.MustParse("1.4.0"), true
		}
		return nil, false
	}
	ms := []*Manifest{
		manifest(t, "E", "1.0.0", map[string]string{"C": "*"}),
		manifest(t, "B", "1.0.0", map[string]string{"A": "^1.0.0"}),
		manifest(t, "A", "1.2.0", nil),
		manifest(t, "C", "1.0.0", map[string]string{"B": ">=2.0.0"}),
		manifest(t, "D", "1.0.0", map[string]string{"Missing": "*"}),
		manifest(t, "F", "1.0.0", map[string]string{"Points": "~1.4"}),
		manifest(t, "X", "1.0.0", map[string]string{"Y": "*"}),
		manifest(t, "Y", "1.0.0", map[string]string{"X": "*"}),
	}

	ordered, err := ResolveOrder(ms, builtin)
	var kinds []string
	for _, m := range ordered {
		kinds = append(kinds, m.Kind)
	}
	assert.Equal(t, []string{"A", "B", "F"}, kinds)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDependencyVersion)
	assert.ErrorIs(t, err, ErrDependencyNotFound)
	assert.ErrorIs(t, err, ErrCyclicDependency)
	assert.Contains(t, err.Error(), "X, Y")

	var depErr *DependencyError
	require.True(t, errors.As(err, &depErr))
	assert.Equal(t, "C", depErr.Kind)
	assert.Equal(t, "B", depErr.Dependency)
	assert.Equal(t, "1.0.0", depErr.Found)
}

func TestResolveOrderWithoutProblems(t *testing.T) {
	ms := []*Manifest{
		manifest(t, "Top", "1.0.0", map[string]string{"Mid": "^2"}),
		manifest(t, "Mid", "2.1.0", map[string]string{"Base": "1.x"}),
		manifest(t, "Base", "1.9.3", nil),
	}
	ordered, err := ResolveOrder(ms, nil)
	require.NoError(t, err)
	require.Len(t, ordered, 3)
	assert.Equal(t, "Base", ordered[0].Kind)
	assert.Equal(t, "Mid", ordered[1].Kind)
	assert.Equal(t, "Top", ordered[2].Kind)
}

func TestManifestValidate(t *testing.T) {
	tests := []struct {
		name string
		m    Manifest
		err  error
	}{
		{"ok", Manifest{Kind: "Point Size", Version: "1.0.0"}, nil},
		{"missing kind", Manifest{Version: "1.0.0"}, ErrMissingKind},
		{"bad kind", Manifest{Kind: "9lives", Version: "1.0.0"}, ErrInvalidKind},
		{"loose version", Manifest{Kind: "A", Version: "v1"}, ErrInvalidVersion},
		{"bad constraint", Manifest{Kind: "A", Version: "1.0.0", Dependencies: map[string]string{"B": "~>banana"}}, ErrInvalidConstraint},
		{"bad script", Manifest{Kind: "A", Version: "1.0.0", Script: "init.py"}, ErrInvalidScript},
		{"negative max", Manifest{Kind: "A", Version: "1.0.0", MaxInstances: -1}, ErrInvalidMax},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.m.Validate()
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

package plugin

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// VersionLookup reports the version of an already available kind.
type VersionLookup func(kind string) (*semver.Version, bool)

// ResolveOrder orders manifests so that every plugin follows the plugins it
// depends on. Dependencies are satisfied by other manifests or by lookup.
// Manifests with a missing or mismatched dependency, those caught in a
// cycle and those depending on any of them are left out and reported in
// the joined error; the rest are still returned.
func ResolveOrder(manifests []*Manifest, lookup VersionLookup) ([]*Manifest, error) {
	byKind := make(map[string]*Manifest, len(manifests))
	for _, m := range manifests {
		byKind[m.Kind] = m
	}

	var errs []error
	rejected := make(map[string]bool)

	// Direct failures first.
	for _, m := range sortedManifests(byKind) {
		for _, dep := range m.DependencyKinds() {
			constraint := m.Dependencies[dep]
			var v *semver.Version
			if other, ok := byKind[dep]; ok {
				v = other.SemVer()
			} else if lookup != nil {
				v, _ = lookup(dep)
			}
			if err := checkDependency(m.Kind, dep, constraint, v); err != nil {
				errs = append(errs, err)
				rejected[m.Kind] = true
				break
			}
		}
	}

	// Kahn's algorithm over the manifest-to-manifest edges, lexical among
	// ready nodes.
	indegree := make(map[string]int, len(byKind))
	dependents := make(map[string][]string)
	for kind := range byKind {
		indegree[kind] = 0
	}
	for kind, m := range byKind {
		for dep := range m.Dependencies {
			if _, ok := byKind[dep]; ok {
				indegree[kind]++
				dependents[dep] = append(dependents[dep], kind)
			}
		}
	}
	var ready []string
	for kind, n := range indegree {
		if n == 0 {
			ready = append(ready, kind)
		}
	}
	sort.Strings(ready)

	var ordered []*Manifest
	for len(ready) > 0 {
		kind := ready[0]
		ready = ready[1:]
		m := byKind[kind]
		if !rejected[kind] {
			for dep := range m.Dependencies {
				if rejected[dep] {
					rejected[kind] = true
					errs = append(errs, &DependencyError{
						Kind: kind, Dependency: dep, Constraint: m.Dependencies[dep],
						Err: fmt.Errorf("%w: %s was rejected", ErrDependencyNotFound, dep),
					})
					break
				}
			}
		}
		if !rejected[kind] {
			ordered = append(ordered, m)
		}
		next := dependents[kind]
		sort.Strings(next)
		for _, d := range next {
			indegree[d]--
			if indegree[d] == 0 {
				ready = insertSorted(ready, d)
			}
		}
	}

	var cyclic []string
	for kind, n := range indegree {
		if n > 0 {
			cyclic = append(cyclic, kind)
		}
	}
	if len(cyclic) > 0 {
		sort.Strings(cyclic)
		errs = append(errs, fmt.Errorf("%w: %s", ErrCyclicDependency, strings.Join(cyclic, ", ")))
	}
	return ordered, errors.Join(errs...)
}

func checkDependency(kind, dep, constraint string, v *semver.Version) error {
	if v == nil {
		return &DependencyError{Kind: kind, Dependency: dep, Constraint: constraint, Err: ErrDependencyNotFound}
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return &DependencyError{Kind: kind, Dependency: dep, Constraint: constraint, Err: err}
	}
	if !c.Check(v) {
		return &DependencyError{Kind: kind, Dependency: dep, Constraint: constraint, Found: v.String(), Err: ErrDependencyVersion}
	}
	return nil
}

func sortedManifests(byKind map[string]*Manifest) []*Manifest {
	out := make([]*Manifest, 0, len(byKind))
	for _, kind := range sortedKeys(byKind) {
		out = append(out, byKind[kind])
	}
	return out
}

func insertSorted(list []string, s string) []string {
	i := sort.SearchStrings(list, s)
	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = s
	return list
}

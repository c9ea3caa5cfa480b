package action

import (
	"strings"

	"golang.org/x/text/cases"
)

// Filter selects actions by name, type and scope. The zero value of a
// field matches everything; set fields must all match.
type Filter struct {
	// Name is a case-insensitive substring of the action text.
	Name string

	// Type is the exact action type, e.g. "Decimal".
	Type string

	// Scope is a mask of the accepted scopes.
	Scope Scope
}

// Match reports whether a passes every set filter.
func (f Filter) Match(a *Action) bool {
	if f.Name != "" {
		fold := cases.Fold()
		if !strings.Contains(fold.String(a.text), fold.String(f.Name)) {
			return false
		}
	}
	if f.Type != "" && a.TypeString() != f.Type {
		return false
	}
	if f.Scope != 0 && f.Scope&a.scope == 0 {
		return false
	}
	return true
}

// Filter returns the registered actions matching f in registration order.
func (r *Registry) Filter(f Filter) []*Action {
	var out []*Action
	for _, a := range r.actions {
		if f.Match(a) {
			out = append(out, a)
		}
	}
	return out
}

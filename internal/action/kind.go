package action

import (
	"fmt"
	"strings"
)

// ValueKind tags the value an action carries.
type ValueKind int

const (
	KindTrigger ValueKind = iota
	KindToggle
	KindDecimal
	KindIntegral
	KindString
	KindOption
	KindColor
	KindGroup
)

var kindNames = [...]string{
	KindTrigger:  "Trigger",
	KindToggle:   "Toggle",
	KindDecimal:  "Decimal",
	KindIntegral: "Integral",
	KindString:   "String",
	KindOption:   "Option",
	KindColor:    "Color",
	KindGroup:    "Group",
}

func (k ValueKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("ValueKind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseValueKind maps a kind name back to its ValueKind, ignoring case.
func ParseValueKind(name string) (ValueKind, error) {
	for k, n := range kindNames {
		if strings.EqualFold(n, name) {
			return ValueKind(k), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownValueKind, name)
}

// Capability is a bit set of what an action of a kind supports.
type Capability uint8

const (
	CapGettable Capability = 1 << iota
	CapSettable
	CapSerializable
	CapPublicLink
)

// Capabilities returns the capability set of k.
func (k ValueKind) Capabilities() Capability {
	switch k {
	case KindTrigger, KindGroup:
		return CapSerializable | CapPublicLink
	default:
		return CapGettable | CapSettable | CapSerializable | CapPublicLink
	}
}

// Has reports whether every capability in c is set.
func (c Capability) Has(want Capability) bool {
	return c&want == want
}

// Scope is a bit set used both as an action's scope and as a filter mask.
type Scope uint8

const (
	ScopePrivate Scope = 1 << iota
	ScopePublic

	ScopeAny = ScopePrivate | ScopePublic
)

func (s Scope) String() string {
	switch s {
	case ScopePrivate:
		return "private"
	case ScopePublic:
		return "public"
	case ScopeAny:
		return "any"
	default:
		return "none"
	}
}

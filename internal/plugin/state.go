package plugin

import (
	"fmt"
	"strings"
)

// Type is the role a plugin plays.
type Type int

const (
	TypeAnalysis Type = iota
	TypeData
	TypeLoader
	TypeWriter
	TypeTransformation
	TypeView
)

var typeNames = [...]string{
	TypeAnalysis:       "ANALYSIS",
	TypeData:           "DATA",
	TypeLoader:         "LOADER",
	TypeWriter:         "WRITER",
	TypeTransformation: "TRANSFORMATION",
	TypeView:           "VIEW",
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// ParseType maps a type name back to its Type, ignoring case.
func ParseType(name string) (Type, error) {
	for t, n := range typeNames {
		if strings.EqualFold(n, name) {
			return Type(t), nil
		}
	}
	return 0, fmt.Errorf("unknown plugin type %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// State is the lifecycle state of a plugin instance.
type State int

const (
	StateProduced State = iota
	StateInitialized
	StateDestroying
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateProduced:
		return "produced"
	case StateInitialized:
		return "initialized"
	case StateDestroying:
		return "destroying"
	case StateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

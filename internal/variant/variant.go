// Package variant is the generic key-value tree every serializable entity
// reads and writes. Maps decoded from JSON or YAML arrive with loosely typed
// numbers, so the accessors coerce rather than assert.
package variant

import (
	"errors"
	"fmt"
	"sort"
)

// Map is a serialized entity.
type Map = map[string]any

// Serializable is implemented by entities that survive save/load.
// FromVariantMap(ToVariantMap()) must reproduce observable state.
type Serializable interface {
	ToVariantMap() Map
	FromVariantMap(m Map) error
}

// ErrMissingKey is returned when a required key is absent.
var ErrMissingKey = errors.New("variant map is missing a required key")

// ErrWrongType is returned when a value cannot be coerced.
var ErrWrongType = errors.New("variant value has the wrong type")

// MustContain fails with ErrMissingKey naming the first absent key.
func MustContain(m Map, keys ...string) error {
	for _, k := range keys {
		if _, ok := m[k]; !ok {
			return fmt.Errorf("%w: %q", ErrMissingKey, k)
		}
	}
	return nil
}

// String returns m[key] as a string.
func String(m Map, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrMissingKey, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q is %T", ErrWrongType, key, v)
	}
	return s, nil
}

// StringOr returns m[key] as a string or def.
func StringOr(m Map, key, def string) string {
	if s, err := String(m, key); err == nil {
		return s
	}
	return def
}

// Bool returns m[key] as a bool.
func Bool(m Map, key string) (bool, error) {
	v, ok := m[key]
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrMissingKey, key)
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q is %T", ErrWrongType, key, v)
	}
	return b, nil
}

// BoolOr returns m[key] as a bool or def.
func BoolOr(m Map, key string, def bool) bool {
	if b, err := Bool(m, key); err == nil {
		return b
	}
	return def
}

// Float returns m[key] as a float64, accepting any numeric type.
func Float(m Map, key string) (float64, error) {
	v, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrMissingKey, key)
	}
	f, ok := ToFloat(v)
	if !ok {
		return 0, fmt.Errorf("%w: %q is %T", ErrWrongType, key, v)
	}
	return f, nil
}

// FloatOr returns m[key] as a float64 or def.
func FloatOr(m Map, key string, def float64) float64 {
	if f, err := Float(m, key); err == nil {
		return f
	}
	return def
}

// Int returns m[key] as an int, accepting any numeric type.
func Int(m Map, key string) (int, error) {
	f, err := Float(m, key)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// IntOr returns m[key] as an int or def.
func IntOr(m Map, key string, def int) int {
	if i, err := Int(m, key); err == nil {
		return i
	}
	return def
}

// Sub returns the nested map at key; absent keys give an empty map.
func Sub(m Map, key string) (Map, error) {
	v, ok := m[key]
	if !ok {
		return Map{}, nil
	}
	sub, ok := ToMap(v)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %T", ErrWrongType, key, v)
	}
	return sub, nil
}

// Strings returns m[key] as a string slice; absent keys give nil.
func Strings(m Map, key string) ([]string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...), nil
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %q holds %T", ErrWrongType, key, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q is %T", ErrWrongType, key, v)
	}
}

// ToFloat coerces the numeric types produced by JSON, YAML and Go code.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// ToMap accepts Map and the map[any]any shape some YAML decoders produce.
func ToMap(v any) (Map, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(Map, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}

// SortedKeys returns the keys of m in lexical order.
func SortedKeys(m Map) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Ints returns m[key] as an int slice; absent keys give nil.
func Ints(m Map, key string) ([]int, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch list := v.(type) {
	case []int:
		return append([]int(nil), list...), nil
	case []any:
		out := make([]int, 0, len(list))
		for _, item := range list {
			f, ok := ToFloat(item)
			if !ok {
				return nil, fmt.Errorf("%w: %q holds %T", ErrWrongType, key, item)
			}
			out = append(out, int(f))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q is %T", ErrWrongType, key, v)
	}
}

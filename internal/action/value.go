package action

import (
	"fmt"
	"slices"

	"github.com/dshills/manivault/internal/variant"
)

// defaultValue is the value of a fresh action of kind k.
func defaultValue(k ValueKind, options []string) any {
	switch k {
	case KindToggle:
		return false
	case KindDecimal:
		return 0.0
	case KindIntegral:
		return 0
	case KindString:
		return ""
	case KindOption:
		if len(options) > 0 {
			return options[0]
		}
		return ""
	case KindColor:
		return "#000000"
	default:
		return nil
	}
}

// normalize coerces v to the value type of a and applies its range and
// options. Integral values are ints, decimals float64, the rest strings or
// bools.
func (a *Action) normalize(v any) (any, error) {
	if !a.kind.Capabilities().Has(CapSettable) {
		return nil, fmt.Errorf("%s %q: %w", a.kind, a.text, ErrNotSettable)
	}
	switch a.kind {
	case KindToggle:
		b, ok := v.(bool)
		if !ok {
			return nil, a.wrongType(v)
		}
		return b, nil

	case KindDecimal:
		f, ok := variant.ToFloat(v)
		if !ok {
			return nil, a.wrongType(v)
		}
		if a.hasRange {
			f = min(max(f, a.minimum), a.maximum)
		}
		return f, nil

	case KindIntegral:
		f, ok := variant.ToFloat(v)
		if !ok {
			return nil, a.wrongType(v)
		}
		if a.hasRange {
			f = min(max(f, a.minimum), a.maximum)
		}
		return int(f), nil

	case KindString:
		s, ok := v.(string)
		if !ok {
			return nil, a.wrongType(v)
		}
		return s, nil

	case KindOption:
		if i, ok := v.(int); ok {
			if i < 0 || i >= len(a.options) {
				return nil, fmt.Errorf("%w: index %d of %q", ErrUnknownOption, i, a.text)
			}
			return a.options[i], nil
		}
		s, ok := v.(string)
		if !ok {
			return nil, a.wrongType(v)
		}
		if len(a.options) > 0 && !slices.Contains(a.options, s) {
			return nil, fmt.Errorf("%w: %q of %q", ErrUnknownOption, s, a.text)
		}
		return s, nil

	case KindColor:
		s, ok := v.(string)
		if !ok || !isHexColor(s) {
			return nil, a.wrongType(v)
		}
		return s, nil
	}
	return nil, a.wrongType(v)
}

func (a *Action) wrongType(v any) error {
	return fmt.Errorf("%w: %T for %s %q", ErrWrongValueType, v, a.kind, a.text)
}

// isHexColor accepts #rgb, #rrggbb and #rrggbbaa.
func isHexColor(s string) bool {
	if len(s) != 4 && len(s) != 7 && len(s) != 9 {
		return false
	}
	if s[0] != '#' {
		return false
	}
	for _, c := range s[1:] {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

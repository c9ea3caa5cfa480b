package variant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessorsCoerceNumbers(t *testing.T) {
	m := Map{
		"f64":  float64(2.5),
		"i":    7,
		"u8":   uint8(3),
		"name": "points",
		"on":   true,
	}

	f, err := Float(m, "f64")
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)

	i, err := Int(m, "i")
	require.NoError(t, err)
	assert.Equal(t, 7, i)
	assert.Equal(t, 3, IntOr(m, "u8", 0))
	assert.Equal(t, 9, IntOr(m, "missing", 9))

	assert.Equal(t, "points", StringOr(m, "name", ""))
	assert.True(t, BoolOr(m, "on", false))

	_, err = Float(m, "name")
	assert.ErrorIs(t, err, ErrWrongType)
	_, err = String(m, "nope")
	assert.ErrorIs(t, err, ErrMissingKey)
}

func TestMustContain(t *testing.T) {
	m := Map{"ID": "x", "Value": 1}
	assert.NoError(t, MustContain(m, "ID", "Value"))
	err := MustContain(m, "ID", "SortIndex")
	assert.ErrorIs(t, err, ErrMissingKey)
	assert.Contains(t, err.Error(), "SortIndex")
}

func TestSubAndStrings(t *testing.T) {
	m := Map{
		"Children": map[any]any{"a": 1},
		"List":     []any{"x", "y"},
		"Bad":      []any{"x", 1},
	}
	sub, err := Sub(m, "Children")
	require.NoError(t, err)
	assert.Equal(t, Map{"a": 1}, sub)

	empty, err := Sub(m, "Absent")
	require.NoError(t, err)
	assert.Empty(t, empty)

	list, err := Strings(m, "List")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, list)

	_, err = Strings(m, "Bad")
	assert.ErrorIs(t, err, ErrWrongType)

	assert.Equal(t, []string{"Bad", "Children", "List"}, SortedKeys(m))
}

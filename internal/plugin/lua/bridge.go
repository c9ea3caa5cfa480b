package lua

import (
	"fmt"
	"math"
	"sort"

	lua "github.com/yuin/gopher-lua"
)

// ToGo converts a Lua value. Integral numbers become int, other numbers
// float64. A table with keys 1..n becomes []any, any other table
// map[string]any. Functions and userdata become nil.
func ToGo(lv lua.LValue) any {
	return toGo(lv, make(map[*lua.LTable]bool))
}

func toGo(lv lua.LValue, seen map[*lua.LTable]bool) any {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if seen[v] {
			return nil
		}
		seen[v] = true
		defer delete(seen, v)
		return tableToGo(v, seen)
	default:
		return nil
	}
}

func tableToGo(t *lua.LTable, seen map[*lua.LTable]bool) any {
	n := t.Len()
	count := 0
	t.ForEach(func(_, _ lua.LValue) { count++ })
	if n > 0 && n == count {
		out := make([]any, n)
		for i := 1; i <= n; i++ {
			out[i-1] = toGo(t.RawGetInt(i), seen)
		}
		return out
	}
	out := make(map[string]any, count)
	t.ForEach(func(k, v lua.LValue) {
		out[keyString(k)] = toGo(v, seen)
	})
	return out
}

func keyString(k lua.LValue) string {
	if n, ok := k.(lua.LNumber); ok {
		if f := float64(n); f == math.Trunc(f) {
			return fmt.Sprintf("%d", int64(f))
		}
	}
	return k.String()
}

// ToLua converts a Go value built from bools, numbers, strings, slices and
// string-keyed maps. Other values become userdata.
func ToLua(L *lua.LState, v any) lua.LValue {
	switch x := v.(type) {
	case nil:
		return lua.LNil
	case lua.LValue:
		return x
	case bool:
		return lua.LBool(x)
	case int:
		return lua.LNumber(x)
	case int32:
		return lua.LNumber(x)
	case int64:
		return lua.LNumber(x)
	case uint32:
		return lua.LNumber(x)
	case float32:
		return lua.LNumber(x)
	case float64:
		return lua.LNumber(x)
	case string:
		return lua.LString(x)
	case []string:
		t := L.CreateTable(len(x), 0)
		for _, s := range x {
			t.Append(lua.LString(s))
		}
		return t
	case []int:
		t := L.CreateTable(len(x), 0)
		for _, n := range x {
			t.Append(lua.LNumber(n))
		}
		return t
	case []float64:
		t := L.CreateTable(len(x), 0)
		for _, f := range x {
			t.Append(lua.LNumber(f))
		}
		return t
	case []any:
		t := L.CreateTable(len(x), 0)
		for _, item := range x {
			t.Append(ToLua(L, item))
		}
		return t
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		t := L.CreateTable(0, len(x))
		for _, k := range keys {
			t.RawSetString(k, ToLua(L, x[k]))
		}
		return t
	default:
		ud := L.NewUserData()
		ud.Value = v
		return ud
	}
}

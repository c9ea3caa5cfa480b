// Package lua runs plugin scripts in a sandboxed gopher-lua state.
//
// A State opens only the base, table, string and math libraries, removes
// the loaders that read files or compile strings, and restricts require to
// those libraries. Every execution runs under a context with a timeout.
//
//	s := lua.NewState(lua.WithTimeout(time.Second))
//	defer s.Close()
//	if err := s.DoFile(ctx, "init.lua"); err != nil {
//	    return err
//	}
//	out, err := s.Call(ctx, "describe", "points")
//
// Host functions are offered to scripts as Modules, each bound to one
// global table.
//
// Values cross the boundary through ToGo and ToLua: integral numbers come
// back as int, other numbers as float64, sequences as []any and other
// tables as map[string]any.
package lua

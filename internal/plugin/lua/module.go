package lua

import lua "github.com/yuin/gopher-lua"

// Module is a table of host functions a State installs as a global.
type Module interface {
	// Name is the global the table is bound to.
	Name() string

	// Register builds the table. It runs once per State.
	Register(L *lua.LState) *lua.LTable
}

// WithModules installs host modules after the sandbox is in place.
func WithModules(mods ...Module) StateOption {
	return func(s *State) {
		s.modules = append(s.modules, mods...)
	}
}

func installModules(L *lua.LState, mods []Module) {
	for _, m := range mods {
		L.SetGlobal(m.Name(), m.Register(L))
	}
}

package plugin

import (
	"strings"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/dshills/manivault/internal/action"
	plua "github.com/dshills/manivault/internal/plugin/lua"
)

// HostModule is the global table scripts use to reach their plugin.
const HostModule = "manivault"

// host implements the manivault table:
//
//	manivault.id()               -> plugin ID
//	manivault.kind()             -> plugin kind
//	manivault.log(level, msg)    -> logs through the plugin logger
//	manivault.get(location)      -> setting value or nil
//	manivault.set(location, v)   -> true, or nil and an error message
//
// Values set from a script do not call back into on_change.
type host struct {
	plugin  *ScriptedPlugin
	logger  *zap.Logger
	setting atomic.Bool
}

var _ plua.Module = (*host)(nil)

func (h *host) Name() string { return HostModule }

func (h *host) Register(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	L.SetField(mod, "id", L.NewFunction(h.id))
	L.SetField(mod, "kind", L.NewFunction(h.kind))
	L.SetField(mod, "log", L.NewFunction(h.log))
	L.SetField(mod, "get", L.NewFunction(h.get))
	L.SetField(mod, "set", L.NewFunction(h.set))
	return mod
}

func (h *host) id(L *lua.LState) int {
	if h.plugin == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(h.plugin.ID()))
	return 1
}

func (h *host) kind(L *lua.LState) int {
	if h.plugin == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(h.plugin.Kind()))
	return 1
}

func (h *host) log(L *lua.LState) int {
	level := strings.ToLower(L.CheckString(1))
	msg := L.CheckString(2)
	switch level {
	case "debug":
		h.logger.Debug(msg)
	case "warn":
		h.logger.Warn(msg)
	case "error":
		h.logger.Error(msg)
	default:
		h.logger.Info(msg)
	}
	return 0
}

func (h *host) get(L *lua.LState) int {
	a := h.find(L.CheckString(1))
	if a == nil {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(plua.ToLua(L, a.Value()))
	return 1
}

func (h *host) set(L *lua.LState) int {
	location := L.CheckString(1)
	a := h.find(location)
	if a == nil {
		L.Push(lua.LNil)
		L.Push(lua.LString("no setting " + location))
		return 2
	}
	h.setting.Store(true)
	err := a.SetValue(plua.ToGo(L.CheckAny(2)))
	h.setting.Store(false)
	if err != nil {
		L.Push(lua.LNil)
		L.Push(lua.LString(err.Error()))
		return 2
	}
	L.Push(lua.LTrue)
	return 1
}

// find resolves a slash-separated setting location.
func (h *host) find(location string) *action.Action {
	if h.plugin == nil {
		return nil
	}
	for _, root := range h.plugin.Actions() {
		var found *action.Action
		walk(root, func(a *action.Action) {
			if found == nil && a.Location() == location {
				found = a
			}
		})
		if found != nil {
			return found
		}
	}
	return nil
}

func walk(a *action.Action, fn func(*action.Action)) {
	fn(a)
	for _, c := range a.Children() {
		walk(c, fn)
	}
}

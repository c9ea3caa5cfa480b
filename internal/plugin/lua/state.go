package lua

import (
	"context"
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// DefaultTimeout bounds every script execution.
const DefaultTimeout = 5 * time.Second

// State is a sandboxed Lua interpreter. gopher-lua states are not goroutine
// safe; the mutex serializes callers.
type State struct {
	mu      sync.Mutex
	L       *lua.LState
	timeout time.Duration
	modules []Module
	closed  bool
}

// StateOption configures a State.
type StateOption func(*State)

// WithTimeout bounds each execution. Zero disables the bound.
func WithTimeout(d time.Duration) StateOption {
	return func(s *State) {
		s.timeout = d
	}
}

// NewState creates a sandboxed state.
func NewState(opts ...StateOption) *State {
	s := &State{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(s)
	}
	s.L = lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(s.L)
	installSandbox(s.L)
	installModules(s.L, s.modules)
	return s
}

func openSafeLibraries(L *lua.LState) {
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
}

// DoFile runs the script at path.
func (s *State) DoFile(ctx context.Context, path string) error {
	return s.run(ctx, func() error { return s.L.DoFile(path) })
}

// DoString runs code.
func (s *State) DoString(ctx context.Context, code string) error {
	return s.run(ctx, func() error { return s.L.DoString(code) })
}

// HasFunction reports whether the global name is a function.
func (s *State) HasFunction(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	return s.L.GetGlobal(name).Type() == lua.LTFunction
}

// Global returns the global name converted with ToGo.
func (s *State) Global(name string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return ToGo(s.L.GetGlobal(name))
}

// Call calls the global function fn with args converted by ToLua and
// returns its results converted by ToGo.
func (s *State) Call(ctx context.Context, fn string, args ...any) ([]any, error) {
	var out []any
	err := s.run(ctx, func() error {
		f, ok := s.L.GetGlobal(fn).(*lua.LFunction)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFunction, fn)
		}
		top := s.L.GetTop()
		largs := make([]lua.LValue, len(args))
		for i, a := range args {
			largs[i] = ToLua(s.L, a)
		}
		if err := s.L.CallByParam(lua.P{Fn: f, NRet: lua.MultRet, Protect: true}, largs...); err != nil {
			return err
		}
		n := s.L.GetTop() - top
		out = make([]any, n)
		for i := range n {
			out[i] = ToGo(s.L.Get(top + i + 1))
		}
		s.L.Pop(n)
		return nil
	})
	return out, err
}

// Close releases the interpreter. Further calls return ErrStateClosed.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.L.Close()
	s.closed = true
	return nil
}

func (s *State) run(ctx context.Context, fn func() error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStateClosed
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn()
}

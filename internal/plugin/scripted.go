package plugin

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"

	"github.com/dshills/manivault/internal/action"
	plua "github.com/dshills/manivault/internal/plugin/lua"
	"github.com/dshills/manivault/internal/variant"
)

// Lua globals a script may define.
const (
	scriptSettings = "settings"
	scriptInit     = "init"
	scriptChange   = "on_change"
	scriptDestroy  = "destroy"
)

// ScriptOption configures a ScriptedFactory.
type ScriptOption func(*ScriptedFactory)

// WithScriptTimeout bounds every script call.
func WithScriptTimeout(d time.Duration) ScriptOption {
	return func(f *ScriptedFactory) {
		f.timeout = d
	}
}

// WithScriptLogger sets the logger for script failures.
func WithScriptLogger(logger *zap.Logger) ScriptOption {
	return func(f *ScriptedFactory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// ScriptedFactory produces plugins described by a manifest and a Lua
// script. Each instance runs in its own Lua state.
type ScriptedFactory struct {
	manifest *Manifest
	settings []variant.Map
	timeout  time.Duration
	logger   *zap.Logger
}

// NewScriptedFactory runs the script of m once to read and check its
// settings declaration.
func NewScriptedFactory(ctx context.Context, m *Manifest, opts ...ScriptOption) (*ScriptedFactory, error) {
	if m.Script == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoEntryPoint, m.Kind)
	}
	f := &ScriptedFactory{
		manifest: m,
		timeout:  plua.DefaultTimeout,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}

	s := plua.NewState(plua.WithTimeout(f.timeout), plua.WithModules(&host{logger: f.logger}))
	defer s.Close()
	if err := s.DoFile(ctx, m.ScriptPath()); err != nil {
		return nil, fmt.Errorf("load %s: %w", m.Kind, err)
	}
	settings, err := settingsList(s.Global(scriptSettings))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.Kind, err)
	}
	if _, err := buildActions(settings); err != nil {
		return nil, fmt.Errorf("%s: %w", m.Kind, err)
	}
	f.settings = settings
	return f, nil
}

func (f *ScriptedFactory) Kind() string             { return f.manifest.Kind }
func (f *ScriptedFactory) Type() Type               { return f.manifest.Type }
func (f *ScriptedFactory) Version() *semver.Version { return f.manifest.SemVer() }
func (f *ScriptedFactory) MaxInstances() int        { return f.manifest.MaxInstances }
func (f *ScriptedFactory) Manifest() *Manifest      { return f.manifest }

// Produce loads the script into a fresh state and builds the declared
// settings.
func (f *ScriptedFactory) Produce(id string) (Plugin, error) {
	logger := f.logger.With(zap.String("kind", f.Kind()), zap.String("id", id))
	h := &host{logger: logger}
	s := plua.NewState(plua.WithTimeout(f.timeout), plua.WithModules(h))
	if err := s.DoFile(context.Background(), f.manifest.ScriptPath()); err != nil {
		s.Close()
		return nil, err
	}
	actions, err := buildActions(f.settings)
	if err != nil {
		s.Close()
		return nil, err
	}

	p := &ScriptedPlugin{
		Base:   NewBase(id, f),
		state:  s,
		host:   h,
		logger: logger,
	}
	h.plugin = p
	for _, a := range actions {
		p.AddAction(a)
		p.watch(a)
	}
	return p, nil
}

// ScriptedPlugin is an instance of a ScriptedFactory.
type ScriptedPlugin struct {
	Base
	state   *plua.State
	host    *host
	logger  *zap.Logger
	cancels []func()
}

// Init calls the script's init function with the plugin ID, if defined.
func (p *ScriptedPlugin) Init() error {
	if !p.state.HasFunction(scriptInit) {
		return nil
	}
	_, err := p.state.Call(context.Background(), scriptInit, p.ID())
	return err
}

// Call calls a script function.
func (p *ScriptedPlugin) Call(ctx context.Context, fn string, args ...any) ([]any, error) {
	return p.state.Call(ctx, fn, args...)
}

// Destroy stops watching the settings, calls the script's destroy function
// and closes the Lua state.
func (p *ScriptedPlugin) Destroy() error {
	for _, cancel := range p.cancels {
		cancel()
	}
	p.cancels = nil

	var err error
	if p.state.HasFunction(scriptDestroy) {
		_, err = p.state.Call(context.Background(), scriptDestroy, p.ID())
	}
	if cerr := p.state.Close(); err == nil {
		err = cerr
	}
	return err
}

// watch forwards value changes of a and its descendants to on_change.
func (p *ScriptedPlugin) watch(a *action.Action) {
	p.cancels = append(p.cancels, a.OnValueChanged(p.changed))
	for _, c := range a.Children() {
		p.watch(c)
	}
}

func (p *ScriptedPlugin) changed(a *action.Action) {
	if p.host.setting.Load() || !p.state.HasFunction(scriptChange) {
		return
	}
	if _, err := p.state.Call(context.Background(), scriptChange, p.ID(), a.Location(), a.Value()); err != nil {
		p.logger.Warn("on_change failed", zap.String("setting", a.Location()), zap.Error(err))
	}
}

func settingsList(v any) ([]variant.Map, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		if m, isMap := v.(map[string]any); isMap && len(m) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: settings must be a list, got %T", ErrInvalidSettings, v)
	}
	out := make([]variant.Map, 0, len(list))
	for i, item := range list {
		m, ok := variant.ToMap(item)
		if !ok {
			return nil, fmt.Errorf("%w: setting %d is %T", ErrInvalidSettings, i+1, item)
		}
		out = append(out, m)
	}
	return out, nil
}

func buildActions(settings []variant.Map) ([]*action.Action, error) {
	out := make([]*action.Action, 0, len(settings))
	for i, spec := range settings {
		a, err := buildAction(spec)
		if err != nil {
			return nil, fmt.Errorf("setting %d: %w", i+1, err)
		}
		out = append(out, a)
	}
	return out, nil
}

func buildAction(spec variant.Map) (*action.Action, error) {
	typ, err := variant.String(spec, "type")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	kind, err := action.ParseValueKind(typ)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	text, err := variant.String(spec, "text")
	if err != nil || text == "" {
		return nil, fmt.Errorf("%w: %s setting without text", ErrInvalidSettings, typ)
	}

	switch kind {
	case action.KindTrigger:
		return action.NewTrigger(text), nil
	case action.KindToggle:
		return action.NewToggle(text, variant.BoolOr(spec, "value", false)), nil
	case action.KindDecimal:
		return action.NewDecimal(text, variant.FloatOr(spec, "value", 0), variant.FloatOr(spec, "min", 0), variant.FloatOr(spec, "max", 100)), nil
	case action.KindIntegral:
		return action.NewIntegral(text, variant.IntOr(spec, "value", 0), variant.IntOr(spec, "min", 0), variant.IntOr(spec, "max", 100)), nil
	case action.KindString:
		return action.NewString(text, variant.StringOr(spec, "value", "")), nil
	case action.KindOption:
		opts, err := variant.Strings(spec, "options")
		if err != nil || len(opts) == 0 {
			return nil, fmt.Errorf("%w: option %q needs options", ErrInvalidSettings, text)
		}
		return action.NewOption(text, opts, variant.StringOr(spec, "value", "")), nil
	case action.KindColor:
		return action.NewColor(text, variant.StringOr(spec, "value", "#000000")), nil
	default:
		children, err := settingsList(spec["children"])
		if err != nil {
			return nil, err
		}
		built, err := buildActions(children)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", text, err)
		}
		return action.NewGroup(text, built...), nil
	}
}

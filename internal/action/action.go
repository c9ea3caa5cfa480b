package action

import (
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Action is a named, typed parameter. Plugins own their actions; the
// registry tracks them and owns the links between them.
type Action struct {
	id    string
	text  string
	kind  ValueKind
	value any

	hasRange bool
	minimum  float64
	maximum  float64
	options  []string

	scope   Scope
	exposed bool
	enabled bool
	visible bool

	permissions       Permission
	cachedPermissions Permission
	sortIndex         int

	parent   *Action
	children []*Action

	public    *Action
	connected []*Action

	// Restored links waiting for the other side to be registered.
	pendingPublicID  string
	pendingFollowers []string

	reg       *Registry
	observers map[int]func(*Action)
	nextObs   int
}

// New creates a private action of kind with its default value.
func New(text string, kind ValueKind) *Action {
	return &Action{
		id:                uuid.NewString(),
		text:              text,
		kind:              kind,
		value:             defaultValue(kind, nil),
		scope:             ScopePrivate,
		enabled:           true,
		visible:           true,
		permissions:       PermissionDefault,
		cachedPermissions: PermissionDefault,
	}
}

// NewTrigger creates a trigger action.
func NewTrigger(text string) *Action {
	return New(text, KindTrigger)
}

// NewToggle creates a toggle action.
func NewToggle(text string, checked bool) *Action {
	a := New(text, KindToggle)
	a.value = checked
	return a
}

// NewDecimal creates a decimal action limited to [minimum, maximum].
func NewDecimal(text string, value, minimum, maximum float64) *Action {
	a := New(text, KindDecimal)
	a.setRange(minimum, maximum)
	a.value = min(max(value, a.minimum), a.maximum)
	return a
}

// NewIntegral creates an integral action limited to [minimum, maximum].
func NewIntegral(text string, value, minimum, maximum int) *Action {
	a := New(text, KindIntegral)
	a.setRange(float64(minimum), float64(maximum))
	a.value = int(min(max(float64(value), a.minimum), a.maximum))
	return a
}

// NewString creates a string action.
func NewString(text, value string) *Action {
	a := New(text, KindString)
	a.value = value
	return a
}

// NewOption creates an option action. An empty or unknown current selects
// the first option.
func NewOption(text string, options []string, current string) *Action {
	a := New(text, KindOption)
	a.options = slices.Clone(options)
	a.value = defaultValue(KindOption, a.options)
	if slices.Contains(a.options, current) {
		a.value = current
	}
	return a
}

// NewColor creates a color action. Invalid colors fall back to black.
func NewColor(text, color string) *Action {
	a := New(text, KindColor)
	if isHexColor(color) {
		a.value = color
	}
	return a
}

// NewGroup creates a group action holding children.
func NewGroup(text string, children ...*Action) *Action {
	a := New(text, KindGroup)
	for _, c := range children {
		a.AddChild(c)
	}
	return a
}

func (a *Action) setRange(minimum, maximum float64) {
	if minimum > maximum {
		minimum, maximum = maximum, minimum
	}
	a.hasRange = true
	a.minimum = minimum
	a.maximum = maximum
}

func (a *Action) ID() string            { return a.id }
func (a *Action) Text() string          { return a.text }
func (a *Action) Kind() ValueKind       { return a.kind }
func (a *Action) Scope() Scope          { return a.scope }
func (a *Action) IsPublic() bool        { return a.scope == ScopePublic }
func (a *Action) IsPrivate() bool       { return a.scope == ScopePrivate }
func (a *Action) IsExposed() bool       { return a.exposed }
func (a *Action) IsEnabled() bool       { return a.enabled }
func (a *Action) IsVisible() bool       { return a.visible }
func (a *Action) SortIndex() int        { return a.sortIndex }
func (a *Action) Parent() *Action       { return a.parent }
func (a *Action) PublicAction() *Action { return a.public }

// TypeString is the action type used by filters and serialization.
func (a *Action) TypeString() string { return a.kind.String() }

// IsConnected reports whether a private action follows a public one.
func (a *Action) IsConnected() bool { return a.public != nil }

// IsRegistered reports whether a registry tracks the action.
func (a *Action) IsRegistered() bool { return a.reg != nil }

// ConnectedActions returns the private actions following a public action.
func (a *Action) ConnectedActions() []*Action {
	return slices.Clone(a.connected)
}

// Children returns the child actions in order.
func (a *Action) Children() []*Action {
	return slices.Clone(a.children)
}

// Child returns the first child with text.
func (a *Action) Child(text string) *Action {
	for _, c := range a.children {
		if c.text == text {
			return c
		}
	}
	return nil
}

// Range returns the numeric limits; ok is false for kinds without range.
func (a *Action) Range() (minimum, maximum float64, ok bool) {
	return a.minimum, a.maximum, a.hasRange
}

// Options returns the options of an option action.
func (a *Action) Options() []string {
	return slices.Clone(a.options)
}

// Location is the slash-separated path of texts from the root action.
func (a *Action) Location() string {
	var parts []string
	for p := a; p != nil; p = p.parent {
		parts = append(parts, p.text)
	}
	slices.Reverse(parts)
	return strings.Join(parts, "/")
}

// SetText renames the action.
func (a *Action) SetText(text string) { a.text = text }

// SetEnabled enables or disables the action.
func (a *Action) SetEnabled(enabled bool) { a.enabled = enabled }

// SetVisible shows or hides the action.
func (a *Action) SetVisible(visible bool) { a.visible = visible }

// SetSortIndex orders the action among its siblings.
func (a *Action) SetSortIndex(i int) { a.sortIndex = i }

// AddChild appends child to a group. A child of a registered action is
// registered with it.
func (a *Action) AddChild(child *Action) {
	if child.parent != nil {
		child.parent.children = slices.DeleteFunc(child.parent.children, func(c *Action) bool { return c == child })
	}
	child.parent = a
	child.sortIndex = len(a.children)
	a.children = append(a.children, child)
	if a.reg != nil && child.reg == nil {
		_ = a.reg.Add(child)
	}
}

// Value returns the current value: bool, float64, int or string depending
// on the kind, nil for triggers and groups.
func (a *Action) Value() any { return a.value }

// SetValue sets the value. Setting the current value does nothing. A public
// action passes the value on to every connected private action before
// SetValue returns.
func (a *Action) SetValue(v any) error {
	nv, err := a.normalize(v)
	if err != nil {
		return err
	}
	if nv == a.value {
		return nil
	}
	a.value = nv
	a.changed()

	if a.IsPublic() {
		for _, c := range slices.Clone(a.connected) {
			c.follow(nv)
		}
	}
	return nil
}

// Trigger fires a trigger action and, for a public one, its followers.
func (a *Action) Trigger() {
	if a.kind != KindTrigger {
		return
	}
	a.changed()
	if a.IsPublic() {
		for _, c := range slices.Clone(a.connected) {
			c.Trigger()
		}
	}
}

// follow takes a value from the public action. Ranges of the follower
// still apply.
func (a *Action) follow(v any) {
	nv, err := a.normalize(v)
	if err != nil || nv == a.value {
		return
	}
	a.value = nv
	a.changed()
}

// OnValueChanged registers fn for value changes and triggers. The returned
// function removes it.
func (a *Action) OnValueChanged(fn func(*Action)) func() {
	if a.observers == nil {
		a.observers = make(map[int]func(*Action))
	}
	id := a.nextObs
	a.nextObs++
	a.observers[id] = fn
	return func() { delete(a.observers, id) }
}

func (a *Action) changed() {
	ids := make([]int, 0, len(a.observers))
	for id := range a.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if fn, ok := a.observers[id]; ok {
			fn(a)
		}
	}
	if a.reg != nil {
		a.reg.valueChanged(a)
	}
}

// walk visits a and its descendants in pre-order.
func (a *Action) walk(fn func(*Action)) {
	fn(a)
	for _, c := range a.children {
		c.walk(fn)
	}
}

// publicCopy clones a and its descendants as public actions with fresh
// IDs and no links.
func (a *Action) publicCopy(text string) *Action {
	cp := &Action{
		id:                uuid.NewString(),
		text:              text,
		kind:              a.kind,
		value:             a.value,
		hasRange:          a.hasRange,
		minimum:           a.minimum,
		maximum:           a.maximum,
		options:           slices.Clone(a.options),
		scope:             ScopePublic,
		exposed:           true,
		enabled:           true,
		visible:           true,
		permissions:       a.permissions,
		cachedPermissions: a.permissions,
		sortIndex:         a.sortIndex,
	}
	for _, c := range a.children {
		child := c.publicCopy(c.text)
		child.parent = cp
		cp.children = append(cp.children, child)
	}
	return cp
}

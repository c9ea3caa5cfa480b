package action

// View describes how a front end should present an action. Front ends
// render views; they never reach into actions directly.
type View struct {
	ID      string   `json:"id"`
	Label   string   `json:"label"`
	Widget  string   `json:"widget"`
	Value   any      `json:"value,omitempty"`
	Minimum float64  `json:"minimum,omitempty"`
	Maximum float64  `json:"maximum,omitempty"`
	Options []string `json:"options,omitempty"`

	Enabled bool `json:"enabled"`
	Public  bool `json:"public"`

	// Linked is set for private actions following a public one.
	Linked bool `json:"linked"`

	// Connectable tells a GUI whether to offer drag-to-connect.
	Connectable bool `json:"connectable"`

	Children []View `json:"children,omitempty"`
}

// ViewBuilder fills the kind-specific part of a view.
type ViewBuilder func(a *Action, v *View)

var viewBuilders = map[ValueKind]ViewBuilder{
	KindTrigger:  func(_ *Action, v *View) { v.Widget = "button" },
	KindToggle:   func(_ *Action, v *View) { v.Widget = "checkbox" },
	KindDecimal:  numericView("slider"),
	KindIntegral: numericView("spinbox"),
	KindString:   func(_ *Action, v *View) { v.Widget = "line-edit" },
	KindOption: func(a *Action, v *View) {
		v.Widget = "combobox"
		v.Options = a.Options()
	},
	KindColor: func(_ *Action, v *View) { v.Widget = "color-picker" },
}

func init() {
	viewBuilders[KindGroup] = groupView
}

func groupView(a *Action, v *View) {
	v.Widget = "group"
	for _, c := range a.children {
		if c.visible {
			v.Children = append(v.Children, Describe(c))
		}
	}
}

func numericView(widget string) ViewBuilder {
	return func(a *Action, v *View) {
		v.Widget = widget
		if lo, hi, ok := a.Range(); ok {
			v.Minimum, v.Maximum = lo, hi
		}
	}
}

// RegisterViewBuilder replaces the builder of kind.
func RegisterViewBuilder(kind ValueKind, b ViewBuilder) {
	viewBuilders[kind] = b
}

// Describe builds the view of a.
func Describe(a *Action) View {
	v := View{
		ID:          a.id,
		Label:       a.text,
		Enabled:     a.enabled,
		Public:      a.IsPublic(),
		Linked:      a.IsConnected(),
		Connectable: a.IsPrivate() && a.MayConnect(ContextGUI),
	}
	if a.kind.Capabilities().Has(CapGettable) {
		v.Value = a.value
	}
	if b, ok := viewBuilders[a.kind]; ok {
		b(a, &v)
	}
	return v
}

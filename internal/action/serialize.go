package action

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/dshills/manivault/internal/variant"
)

// Serialization keys of an action.
const (
	keyID                    = "ID"
	keyActionType            = "ActionType"
	keyText                  = "Text"
	keyIsPublic              = "IsPublic"
	keyIsExposed             = "IsExposed"
	keyPublicActionID        = "PublicActionID"
	keyConnectedActionIDs    = "ConnectedActionIDs"
	keyConnectionPermissions = "ConnectionPermissions"
	keySortIndex             = "SortIndex"
	keyValue                 = "Value"
	keyMinimum               = "Minimum"
	keyMaximum               = "Maximum"
	keyOptions               = "Options"
	keyChildren              = "Children"
)

// ToVariantMap serializes a and its children. Children are keyed by text.
func (a *Action) ToVariantMap() variant.Map {
	m := variant.Map{
		keyID:                    a.id,
		keyActionType:            a.TypeString(),
		keyText:                  a.text,
		keyIsPublic:              a.IsPublic(),
		keyIsExposed:             a.exposed,
		keyPublicActionID:        "",
		keyConnectionPermissions: int(a.permissions),
		keySortIndex:             a.sortIndex,
	}
	if a.public != nil {
		m[keyPublicActionID] = a.public.id
	}
	if len(a.connected) > 0 {
		ids := make([]any, len(a.connected))
		for i, c := range a.connected {
			ids[i] = c.id
		}
		m[keyConnectedActionIDs] = ids
	}
	if a.kind.Capabilities().Has(CapGettable) {
		m[keyValue] = a.value
	}
	if a.hasRange {
		m[keyMinimum] = a.minimum
		m[keyMaximum] = a.maximum
	}
	if len(a.options) > 0 {
		opts := make([]any, len(a.options))
		for i, o := range a.options {
			opts[i] = o
		}
		m[keyOptions] = opts
	}
	if len(a.children) > 0 {
		children := make(variant.Map, len(a.children))
		for _, c := range a.children {
			children[c.text] = c.ToVariantMap()
		}
		m[keyChildren] = children
	}
	return m
}

// FromVariantMap restores the state of a from m. Children present in both
// are restored by text. Links are restored when the other side is, or
// becomes, registered.
func (a *Action) FromVariantMap(m variant.Map) error {
	if err := variant.MustContain(m, keyID, keyConnectionPermissions, keySortIndex); err != nil {
		return err
	}
	if t := variant.StringOr(m, keyActionType, a.TypeString()); t != a.TypeString() {
		return fmt.Errorf("%w: %s into %s %q", ErrWrongValueType, t, a.TypeString(), a.text)
	}

	if id := variant.StringOr(m, keyID, a.id); id != a.id {
		if a.reg != nil {
			if _, taken := a.reg.byID[id]; taken {
				return fmt.Errorf("%w: %s", ErrAlreadyRegistered, id)
			}
			delete(a.reg.byID, a.id)
			a.reg.byID[id] = a
		}
		a.id = id
	}
	a.text = variant.StringOr(m, keyText, a.text)
	a.exposed = variant.BoolOr(m, keyIsExposed, a.exposed)
	a.sortIndex = variant.IntOr(m, keySortIndex, a.sortIndex)
	a.permissions = Permission(variant.IntOr(m, keyConnectionPermissions, int(a.permissions)))
	a.CachePermissions(false)

	if variant.BoolOr(m, keyIsPublic, false) && a.reg == nil {
		a.scope = ScopePublic
	}

	if _, ok := m[keyMinimum]; ok {
		lo, err := variant.Float(m, keyMinimum)
		if err != nil {
			return err
		}
		hi, err := variant.Float(m, keyMaximum)
		if err != nil {
			return err
		}
		a.setRange(lo, hi)
	}
	if _, ok := m[keyOptions]; ok {
		opts, err := variant.Strings(m, keyOptions)
		if err != nil {
			return err
		}
		a.options = opts
	}
	if v, ok := m[keyValue]; ok && a.kind.Capabilities().Has(CapSettable) {
		if err := a.SetValue(v); err != nil {
			return err
		}
	}

	children, err := variant.Sub(m, keyChildren)
	if err != nil {
		return err
	}
	for _, c := range a.children {
		cm, ok := variant.ToMap(children[c.text])
		if !ok {
			continue
		}
		if err := c.FromVariantMap(cm); err != nil {
			return fmt.Errorf("%s: %w", c.text, err)
		}
	}

	followers, err := variant.Strings(m, keyConnectedActionIDs)
	if err != nil {
		return err
	}
	a.pendingFollowers = followers
	a.pendingPublicID = ""
	if id := variant.StringOr(m, keyPublicActionID, ""); id != "" && (a.public == nil || a.public.id != id) {
		a.pendingPublicID = id
	}
	if a.reg != nil {
		a.reg.resolvePending(a)
	}
	return nil
}

// FromVariant builds a new unregistered action from a serialized one,
// including children.
func FromVariant(m variant.Map) (*Action, error) {
	t, err := variant.String(m, keyActionType)
	if err != nil {
		return nil, err
	}
	kind, err := ParseValueKind(t)
	if err != nil {
		return nil, err
	}
	a := New(variant.StringOr(m, keyText, ""), kind)

	children, err := variant.Sub(m, keyChildren)
	if err != nil {
		return nil, err
	}
	type child struct {
		order int
		m     variant.Map
	}
	var ordered []child
	for _, text := range variant.SortedKeys(children) {
		cm, ok := variant.ToMap(children[text])
		if !ok {
			return nil, fmt.Errorf("%w: child %q", variant.ErrWrongType, text)
		}
		ordered = append(ordered, child{order: variant.IntOr(cm, keySortIndex, 0), m: cm})
	}
	slices.SortStableFunc(ordered, func(x, y child) int { return cmp.Compare(x.order, y.order) })
	for _, c := range ordered {
		ca, err := FromVariant(c.m)
		if err != nil {
			return nil, err
		}
		a.AddChild(ca)
	}

	if err := a.FromVariantMap(m); err != nil {
		return nil, err
	}
	return a, nil
}

// ToVariantMap serializes the public actions keyed by ID.
func (r *Registry) ToVariantMap() variant.Map {
	out := make(variant.Map, len(r.public))
	for _, p := range r.public {
		if p.parent != nil && p.parent.IsPublic() {
			continue
		}
		out[p.id] = p.ToVariantMap()
	}
	return out
}

// RestorePublicActions registers the public actions of m that are not
// registered yet. Private actions restored later reconnect to them.
func (r *Registry) RestorePublicActions(m variant.Map) ([]*Action, error) {
	var restored []*Action
	for _, id := range variant.SortedKeys(m) {
		if _, ok := r.byID[id]; ok {
			continue
		}
		am, ok := variant.ToMap(m[id])
		if !ok {
			return restored, fmt.Errorf("%w: public action %q", variant.ErrWrongType, id)
		}
		a, err := FromVariant(am)
		if err != nil {
			return restored, fmt.Errorf("public action %s: %w", id, err)
		}
		if err := r.Add(a); err != nil {
			return restored, err
		}
		restored = append(restored, a)
	}
	return restored, nil
}

package action

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/manivault/internal/event"
	"github.com/dshills/manivault/internal/event/topic"
	"github.com/dshills/manivault/internal/variant"
)

func topicsOf(t *testing.T, bus event.Bus, pattern string) *[]string {
	t.Helper()
	var got []string
	_, err := bus.SubscribeFunc(topic.Topic(pattern), func(_ context.Context, ev any) error {
		got = append(got, ev.(event.TopicProvider).EventTopic().String())
		return nil
	})
	require.NoError(t, err)
	return &got
}

func TestValueNormalization(t *testing.T) {
	tests := []struct {
		name   string
		action *Action
		in     any
		want   any
		err    error
	}{
		{"toggle", NewToggle("t", false), true, true, nil},
		{"toggle wrong type", NewToggle("t", false), 1, nil, ErrWrongValueType},
		{"decimal clamps", NewDecimal("d", 0, 0, 1), 3, 1.0, nil},
		{"integral from float", NewIntegral("i", 0, 0, 10), 4.0, 4, nil},
		{"integral clamps low", NewIntegral("i", 5, 0, 10), -2, 0, nil},
		{"string", NewString("s", ""), "x", "x", nil},
		{"option by text", NewOption("o", []string{"a", "b"}, ""), "b", "b", nil},
		{"option by index", NewOption("o", []string{"a", "b"}, ""), 1, "b", nil},
		{"option unknown", NewOption("o", []string{"a", "b"}, ""), "c", nil, ErrUnknownOption},
		{"color", NewColor("c", "#fff"), "#00ff00", "#00ff00", nil},
		{"color invalid", NewColor("c", "#fff"), "green", nil, ErrWrongValueType},
		{"trigger", NewTrigger("go"), true, nil, ErrNotSettable},
		{"group", NewGroup("g"), 1, nil, ErrNotSettable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.action.SetValue(tt.in)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, tt.action.Value())
		})
	}
}

func TestConstructorsApplyDefaults(t *testing.T) {
	assert.Equal(t, 1.0, NewDecimal("d", 7, 0, 1).Value())
	lo, hi, ok := NewDecimal("d", 0, 5, -5).Range()
	assert.True(t, ok)
	assert.Equal(t, -5.0, lo)
	assert.Equal(t, 5.0, hi)
	assert.Equal(t, "a", NewOption("o", []string{"a", "b"}, "zzz").Value())
	assert.Equal(t, "#000000", NewColor("c", "nope").Value())
	assert.Nil(t, NewTrigger("x").Value())

	g := NewGroup("settings", NewToggle("on", true), NewIntegral("n", 1, 0, 9))
	assert.Equal(t, "settings/n", g.Child("n").Location())
	assert.Equal(t, 1, g.Child("n").SortIndex())
}

func TestPublicValuePropagatesDownOnly(t *testing.T) {
	r := NewRegistry(nil)
	p := NewIntegral("P", 5, 0, 100)
	q := NewIntegral("Q", 0, 0, 100)
	require.NoError(t, r.Add(q))

	pub, err := r.PublishPrivateAction(p, "", false, false)
	require.NoError(t, err)
	assert.Equal(t, "P_pub", pub.Text())
	assert.True(t, pub.IsPublic())
	assert.Same(t, pub, p.PublicAction())

	assert.True(t, r.ConnectToPublicAction(q, pub, false))
	assert.Equal(t, 5, q.Value(), "connecting copies the public value")

	require.NoError(t, pub.SetValue(10))
	assert.Equal(t, 10, q.Value())
	assert.Equal(t, 10, p.Value())

	require.NoError(t, q.SetValue(99))
	assert.Equal(t, 10, pub.Value())
	assert.Equal(t, 10, p.Value())

	r.DisconnectFromPublicAction(q, false)
	assert.Equal(t, 99, q.Value())
	assert.False(t, q.IsConnected())
	assert.NotContains(t, pub.ConnectedActions(), q)
	assert.Contains(t, pub.ConnectedActions(), p)

	require.NoError(t, pub.SetValue(20))
	assert.Equal(t, 99, q.Value())
}

func TestConnectNoOps(t *testing.T) {
	r := NewRegistry(nil)
	p1 := NewDecimal("P1", 1, 0, 10)
	p2 := NewDecimal("P2", 2, 0, 10)
	pub1, err := r.PublishPrivateAction(p1, "", false, false)
	require.NoError(t, err)
	pub2, err := r.PublishPrivateAction(p2, "", false, false)
	require.NoError(t, err)

	q := NewDecimal("Q", 0, 0, 10)
	require.NoError(t, r.Add(q))
	require.True(t, r.ConnectToPublicAction(q, pub1, false))
	assert.True(t, r.ConnectToPublicAction(q, pub1, false), "reconnecting to the same action")
	assert.Len(t, pub1.ConnectedActions(), 2)

	assert.False(t, r.ConnectToPublicAction(q, pub2, false), "must disconnect first")
	assert.Same(t, pub1, q.PublicAction())

	other := NewDecimal("other", 0, 0, 10)
	require.NoError(t, r.Add(other))
	assert.False(t, r.ConnectToPublicAction(other, p2, false), "target not public")
	assert.False(t, r.ConnectToPublicAction(NewToggle("t", false), pub2, false), "kinds differ")
	assert.False(t, r.ConnectToPublicAction(pub1, pub2, false), "source is public")

	locked := NewDecimal("locked", 0, 0, 10)
	locked.SetPermissionFlag(PermissionForceNone, false, false)
	assert.False(t, r.ConnectToPublicAction(locked, pub2, false))
	assert.False(t, locked.MayPublish(ContextAPI))
	_, err = r.PublishPrivateAction(locked, "", false, false)
	assert.ErrorIs(t, err, ErrPublishNotAllowed)
}

func TestPublishRejectsDuplicatesAndRepublish(t *testing.T) {
	r := NewRegistry(nil)
	a := NewString("name", "x")
	_, err := r.PublishPrivateAction(a, "shared", false, false)
	require.NoError(t, err)

	_, err = r.PublishPrivateAction(a, "again", false, false)
	assert.ErrorIs(t, err, ErrAlreadyPublished)

	b := NewString("other", "y")
	_, err = r.PublishPrivateAction(b, "shared", false, false)
	assert.ErrorIs(t, err, ErrDuplicateName)

	dup, err := r.PublishPrivateAction(b, "shared", false, true)
	require.NoError(t, err)
	assert.Equal(t, "shared", dup.Text())
	assert.Same(t, dup, r.ActionByName("shared"), "last writer wins")

	_, err = r.PublishPrivateAction(dup, "", false, false)
	assert.ErrorIs(t, err, ErrNotPrivate)
}

func TestRecursiveConnectMatchesChildText(t *testing.T) {
	r := NewRegistry(nil)
	src := NewGroup("point size", NewDecimal("size", 3, 1, 50), NewOption("scale", []string{"absolute", "relative"}, "absolute"))
	pub, err := r.PublishPrivateAction(src, "", true, false)
	require.NoError(t, err)
	require.Len(t, pub.Children(), 2)
	assert.True(t, pub.Child("size").IsPublic())
	assert.Same(t, pub.Child("size"), src.Child("size").PublicAction())

	dst := NewGroup("point size", NewDecimal("size", 10, 1, 50), NewOption("scale", []string{"absolute", "relative"}, "relative"), NewToggle("extra", true))
	require.NoError(t, r.Add(dst))
	assert.True(t, r.ConnectToPublicAction(dst, pub, true))
	assert.Equal(t, 3.0, dst.Child("size").Value())
	assert.Equal(t, "absolute", dst.Child("scale").Value())
	assert.False(t, dst.Child("extra").IsConnected())

	require.NoError(t, pub.Child("size").SetValue(7.5))
	assert.Equal(t, 7.5, dst.Child("size").Value())
	assert.Equal(t, 7.5, src.Child("size").Value())

	r.DisconnectFromPublicAction(dst, true)
	assert.False(t, dst.IsConnected())
	assert.False(t, dst.Child("size").IsConnected())
	assert.Equal(t, 7.5, dst.Child("size").Value())
}

func TestRefusedConnectLeavesChildrenAlone(t *testing.T) {
	r := NewRegistry(nil)
	pubA, err := r.PublishPrivateAction(NewGroup("point size", NewDecimal("size", 3, 0, 50)), "a", true, false)
	require.NoError(t, err)
	pubB, err := r.PublishPrivateAction(NewGroup("point size", NewDecimal("size", 9, 0, 50)), "b", true, false)
	require.NoError(t, err)

	q := NewGroup("point size", NewDecimal("size", 0, 0, 50))
	require.NoError(t, r.Add(q))
	require.True(t, r.ConnectToPublicAction(q, pubA, false))

	assert.False(t, r.ConnectToPublicAction(q, pubB, true))
	assert.Same(t, pubA, q.PublicAction())
	assert.False(t, q.Child("size").IsConnected())
	assert.Equal(t, 0.0, q.Child("size").Value())

	// Reconnecting to the same public action still reaches the children.
	assert.True(t, r.ConnectToPublicAction(q, pubA, true))
	assert.Same(t, pubA.Child("size"), q.Child("size").PublicAction())
	assert.Equal(t, 3.0, q.Child("size").Value())
}

func TestExposeConcealIdempotent(t *testing.T) {
	bus := event.NewBus()
	r := NewRegistry(bus)
	a := NewToggle("a", false)
	require.NoError(t, r.Add(a))
	got := topicsOf(t, bus, "action.*")

	r.Conceal(a)
	r.Expose(a)
	r.Expose(a)
	assert.True(t, a.IsExposed())
	r.Conceal(a)
	r.Conceal(a)
	assert.False(t, a.IsExposed())
	assert.Equal(t, []string{"action.exposed", "action.concealed"}, *got)
}

func TestRemovingPublicActionDisconnectsFollowers(t *testing.T) {
	bus := event.NewBus()
	r := NewRegistry(bus)
	p := NewIntegral("P", 1, 0, 10)
	pub, err := r.PublishPrivateAction(p, "", false, false)
	require.NoError(t, err)
	got := topicsOf(t, bus, "action.**")

	require.NoError(t, r.Remove(pub))
	assert.False(t, p.IsConnected())
	assert.Empty(t, r.PublicActions())
	assert.Equal(t, []string{
		"action.removing",
		"action.disconnected",
		"action.public.removed",
		"action.removed",
	}, *got)
	assert.ErrorIs(t, r.Remove(pub), ErrActionNotFound)
	assert.Equal(t, 1, r.TypeCount("Integral"))
}

func TestActionTypesAreCounted(t *testing.T) {
	bus := event.NewBus()
	r := NewRegistry(bus)
	got := topicsOf(t, bus, "action.type.*")

	a := NewToggle("a", false)
	b := NewToggle("b", true)
	require.NoError(t, r.Add(a))
	require.NoError(t, r.Add(b))
	assert.ErrorIs(t, r.Add(a), ErrAlreadyRegistered)
	assert.Equal(t, 2, r.TypeCount("Toggle"))
	assert.Equal(t, []string{"Toggle"}, r.Types())

	require.NoError(t, r.Remove(a))
	require.NoError(t, r.Remove(b))
	assert.Empty(t, r.Types())
	assert.Equal(t, []string{"action.type.added", "action.type.removed"}, *got)
}

func TestFilter(t *testing.T) {
	r := NewRegistry(nil)
	size := NewDecimal("Point Size", 1, 0, 10)
	opacity := NewDecimal("Point opacity", 1, 0, 1)
	flag := NewToggle("Visible", true)
	for _, a := range []*Action{size, opacity, flag} {
		require.NoError(t, r.Add(a))
	}
	pub, err := r.PublishPrivateAction(size, "shared size", false, false)
	require.NoError(t, err)

	assert.Equal(t, []*Action{size, opacity}, r.Filter(Filter{Name: "POINT"}))
	assert.Equal(t, []*Action{size, pub}, r.Filter(Filter{Name: "Size"}))
	assert.Equal(t, []*Action{size, opacity}, r.Filter(Filter{Name: "point", Type: "Decimal", Scope: ScopePrivate}))
	assert.Equal(t, []*Action{pub}, r.Filter(Filter{Scope: ScopePublic}))
	assert.Equal(t, []*Action{flag}, r.Filter(Filter{Type: "Toggle", Scope: ScopeAny}))
	assert.Empty(t, r.Filter(Filter{Name: "size", Type: "Toggle"}))
}

func TestRoundTripRestoresValueScopeAndLinks(t *testing.T) {
	r := NewRegistry(nil)
	p := NewDecimal("P", 5, 0, 100)
	pub, err := r.PublishPrivateAction(p, "", false, false)
	require.NoError(t, err)
	q := NewDecimal("Q", 0, 0, 100)
	require.NoError(t, r.Add(q))
	require.True(t, r.ConnectToPublicAction(q, pub, false))
	require.NoError(t, pub.SetValue(42))

	publicMaps := r.ToVariantMap()
	qMap := q.ToVariantMap()
	pMap := p.ToVariantMap()
	assert.Equal(t, pub.ID(), qMap["PublicActionID"])

	s := NewRegistry(nil)
	restored, err := s.RestorePublicActions(publicMaps)
	require.NoError(t, err)
	require.Len(t, restored, 1)
	rpub := restored[0]
	assert.Equal(t, pub.ID(), rpub.ID())
	assert.True(t, rpub.IsPublic())
	assert.Equal(t, 42.0, rpub.Value())

	rq := NewDecimal("Q", 0, 0, 100)
	require.NoError(t, rq.FromVariantMap(qMap))
	require.NoError(t, s.Add(rq))
	rp := NewDecimal("P", 0, 0, 100)
	require.NoError(t, s.Add(rp))
	require.NoError(t, rp.FromVariantMap(pMap))

	assert.Equal(t, q.ID(), rq.ID())
	assert.Equal(t, 42.0, rq.Value())
	assert.Same(t, rpub, rq.PublicAction())
	assert.Same(t, rpub, rp.PublicAction())
	assert.ElementsMatch(t, []string{p.ID(), q.ID()}, ids(rpub.ConnectedActions()))

	_, err = s.Action(p.ID())
	require.NoError(t, err, "registered action reindexed under its restored ID")

	require.NoError(t, rpub.SetValue(1))
	assert.Equal(t, 1.0, rq.Value())
}

func TestFromVariantRebuildsChildren(t *testing.T) {
	g := NewGroup("g", NewToggle("on", true), NewOption("mode", []string{"x", "y"}, "y"))
	m := g.ToVariantMap()

	back, err := FromVariant(m)
	require.NoError(t, err)
	assert.Equal(t, KindGroup, back.Kind())
	assert.Equal(t, g.ID(), back.ID())
	require.Len(t, back.Children(), 2)
	assert.Equal(t, "on", back.Children()[0].Text())
	assert.Equal(t, "y", back.Child("mode").Value())
	assert.Equal(t, []string{"x", "y"}, back.Child("mode").Options())

	_, err = FromVariant(variant.Map{"ActionType": "Spline"})
	assert.ErrorIs(t, err, ErrUnknownValueKind)
}

func TestDescribe(t *testing.T) {
	r := NewRegistry(nil)
	size := NewDecimal("size", 2, 0, 10)
	hidden := NewToggle("debug", false)
	hidden.SetVisible(false)
	g := NewGroup("g", size, hidden)
	require.NoError(t, r.Add(g))

	v := Describe(g)
	assert.Equal(t, "group", v.Widget)
	require.Len(t, v.Children, 1)
	assert.Equal(t, "slider", v.Children[0].Widget)
	assert.Equal(t, 10.0, v.Children[0].Maximum)
	assert.Equal(t, 2.0, v.Children[0].Value)
	assert.False(t, v.Children[0].Connectable, "default permissions do not allow GUI connects")

	size.SetPermissions(PermissionAll, false)
	assert.True(t, Describe(size).Connectable)
}

func TestValueObservers(t *testing.T) {
	a := NewIntegral("n", 0, 0, 10)
	var seen []any
	cancel := a.OnValueChanged(func(x *Action) { seen = append(seen, x.Value()) })

	require.NoError(t, a.SetValue(1))
	require.NoError(t, a.SetValue(1))
	cancel()
	require.NoError(t, a.SetValue(2))
	assert.Equal(t, []any{1}, seen)
}

func ids(list []*Action) []string {
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = a.ID()
	}
	return out
}

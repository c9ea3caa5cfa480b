package data

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/manivault/internal/event"
	"github.com/dshills/manivault/internal/event/events"
)

func TestAddDataAttachesAndAnnounces(t *testing.T) {
	f := newFixture(t)
	rec := record(t, f.bus, "dataset.added", "rawdata.added")

	a, err := f.reg.AddData("Points", "A")
	require.NoError(t, err)
	b, err := f.reg.AddData("Points", "B", WithParent(a))
	require.NoError(t, err)

	assert.NotEqual(t, a.GUID(), b.GUID())
	assert.Equal(t, "", f.tree.parentOf(a))
	assert.Equal(t, a.GUID(), f.tree.parentOf(b))
	assert.Equal(t, []string{
		"rawdata.added",
		"dataset.added " + a.GUID(),
		"rawdata.added",
		"dataset.added " + b.GUID(),
	}, rec.lines)

	got, err := f.reg.RequestData(a.GUID())
	require.NoError(t, err)
	assert.True(t, got.Equal(a))

	name, err := a.GUIName()
	require.NoError(t, err)
	assert.Equal(t, "A", name)
	assert.Equal(t, []Dataset{a, b}, f.reg.Datasets())
}

func TestAddDataUnknownKind(t *testing.T) {
	f := newFixture(t)

	_, err := f.reg.AddData("Pionts", "typo")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownKind))

	var kindErr *UnknownKindError
	require.ErrorAs(t, err, &kindErr)
	assert.Equal(t, "Points", kindErr.Suggestion)
	assert.Contains(t, err.Error(), "did you mean")
	assert.Empty(t, f.reg.Datasets())
}

func TestAddDataWithoutProducer(t *testing.T) {
	reg := NewRegistry(nil, nil)
	_, err := reg.AddData("Points", "A")
	assert.ErrorIs(t, err, ErrNoProducer)
}

func TestAddDataRollsBackWhenAttachFails(t *testing.T) {
	f := newFixture(t)
	f.tree.attachErr = errors.New("tree is closed")

	_, err := f.reg.AddData("Points", "A")
	require.Error(t, err)
	assert.Empty(t, f.reg.Datasets())
	assert.Empty(t, f.reg.RawDataNames())
	assert.Len(t, f.producer.released, 1)
}

func TestWithGUIDRejectsIssuedGUID(t *testing.T) {
	f := newFixture(t)
	a, err := f.reg.AddData("Points", "A", WithGUID("fixed"))
	require.NoError(t, err)
	assert.Equal(t, "fixed", a.GUID())

	require.NoError(t, f.reg.RemoveDatasets(a))
	_, err = f.reg.AddData("Points", "again", WithGUID("fixed"))
	assert.ErrorIs(t, err, ErrDuplicateGUID)
}

func TestRemovedHandleGoesStale(t *testing.T) {
	f := newFixture(t)
	a := f.addPoints(t, "A", []float64{1, 2})
	guid := a.GUID()

	require.NoError(t, f.reg.RemoveDatasets(a))

	assert.False(t, a.IsValid())
	_, err := a.Resolve()
	assert.ErrorIs(t, err, ErrInvalidHandle)
	assert.Equal(t, guid, a.GUID())

	_, err = f.reg.RequestData(guid)
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, guid, notFound.GUID)
	assert.ErrorIs(t, err, ErrNotFound)

	// The freed slot is reused without reviving the old handle.
	b := f.addPoints(t, "B", nil)
	assert.Equal(t, a.Handle().index, b.Handle().index)
	assert.NotEqual(t, a.Handle(), b.Handle())
	assert.NotEqual(t, guid, b.GUID())
	assert.False(t, a.IsValid())

	var zero Dataset
	assert.True(t, zero.IsZero())
	assert.ErrorIs(t, zero.SetGUIName("x"), ErrInvalidHandle)
}

func TestRemoveDatasetsIsLeafFirst(t *testing.T) {
	f := newFixture(t)
	a := f.addPoints(t, "A", nil)
	b := f.addPoints(t, "B", nil, WithParent(a))
	c := f.addPoints(t, "C", nil, WithParent(b))
	d := f.addPoints(t, "D", nil)
	rec := record(t, f.bus, "dataset.removing", "dataset.removed")

	require.NoError(t, f.reg.RemoveDatasets(b, a))

	assert.Equal(t, []string{
		"dataset.removing " + c.GUID(),
		"dataset.removed " + c.GUID(),
		"dataset.removing " + b.GUID(),
		"dataset.removed " + b.GUID(),
		"dataset.removing " + a.GUID(),
		"dataset.removed " + a.GUID(),
	}, rec.lines)
	assert.Equal(t, []Dataset{d}, f.reg.Datasets())
	assert.Equal(t, []string{c.GUID(), b.GUID(), a.GUID()}, f.tree.removing)
	assert.Len(t, f.producer.released, 3)
}

func TestRemoveDatasetsValidatesFirst(t *testing.T) {
	f := newFixture(t)
	a := f.addPoints(t, "A", nil)
	stale := f.addPoints(t, "stale", nil)
	require.NoError(t, f.reg.RemoveDatasets(stale))

	err := f.reg.RemoveDatasets(a, stale)
	assert.ErrorIs(t, err, ErrInvalidHandle)
	assert.True(t, a.IsValid())

	assert.ErrorIs(t, f.reg.RemoveDatasets(), ErrNoDatasets)
}

func TestRemovalDeferredWhileLocked(t *testing.T) {
	f := newFixture(t)
	a := f.addPoints(t, "A", nil)
	b := f.addPoints(t, "B", nil, WithParent(a))
	f.tree.locked[b.GUID()] = true
	rec := record(t, f.bus, "dataset.removal.deferred", "dataset.removed")

	require.NoError(t, f.reg.RemoveDatasets(a))
	assert.True(t, a.IsValid())
	assert.True(t, b.IsValid())
	assert.Equal(t, []Dataset{a}, f.reg.PendingRemovals())
	assert.Equal(t, []string{"dataset.removal.deferred"}, rec.lines)

	// Repeated requests do not queue twice.
	require.NoError(t, f.reg.RemoveDatasets(a))
	assert.Len(t, f.reg.PendingRemovals(), 1)

	f.tree.locked[b.GUID()] = false
	require.NoError(t, event.Emit(context.Background(), f.bus, events.TopicItemUnlocked,
		events.ItemEvent{GUID: b.GUID()}, "test"))

	assert.False(t, a.IsValid())
	assert.False(t, b.IsValid())
	assert.Empty(t, f.reg.PendingRemovals())
}

func TestSubsetSharesRawData(t *testing.T) {
	f := newFixture(t)
	a := f.addPoints(t, "A", []float64{1, 2, 3, 4})

	sub, err := f.reg.CreateSubset(a, "evens", []int{1, 3})
	require.NoError(t, err)
	assert.Equal(t, a.GUID(), f.tree.parentOf(sub))

	subRec, err := sub.Resolve()
	require.NoError(t, err)
	aRec, err := a.Resolve()
	require.NoError(t, err)
	assert.Equal(t, aRec.RawDataName(), subRec.RawDataName())
	assert.False(t, subRec.IsFull())
	assert.Equal(t, []int{1, 3}, subRec.Indices())
	assert.Equal(t, 2, subRec.Len())
	assert.Equal(t, 4, aRec.Len())

	_, err = f.reg.CreateSubset(a, "bad", []int{4})
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	root, err := f.reg.CreateSubset(a, "at root", []int{0}, WithParent(Dataset{}))
	require.NoError(t, err)
	assert.Equal(t, "", f.tree.parentOf(root))

	// The raw data outlives the full dataset while the root subset views it.
	require.NoError(t, f.reg.RemoveDatasets(a))
	assert.False(t, sub.IsValid())
	assert.True(t, root.IsValid())
	assert.Len(t, f.reg.RawDataNames(), 1)
	assert.Empty(t, f.producer.released)

	require.NoError(t, f.reg.RemoveDatasets(root))
	assert.Empty(t, f.reg.RawDataNames())
	assert.Len(t, f.producer.released, 1)
}

func TestSelectionIsSharedPerRawData(t *testing.T) {
	f := newFixture(t)
	a := f.addPoints(t, "A", []float64{1, 2, 3})
	sub, err := f.reg.CreateSubset(a, "sub", []int{0, 1})
	require.NoError(t, err)
	rec := record(t, f.bus, "dataset.selection.changed")

	selA, err := f.reg.SelectionOf(a)
	require.NoError(t, err)
	selSub, err := f.reg.SelectionOf(sub)
	require.NoError(t, err)
	assert.True(t, selA.Equal(selSub))
	assert.NotContains(t, f.reg.Datasets(), selA)

	require.NoError(t, f.reg.Select(sub, []int{2, 0}))
	assert.Equal(t, []string{"dataset.selection.changed"}, rec.lines)

	selRec, err := selA.Resolve()
	require.NoError(t, err)
	assert.True(t, selRec.IsSelection())
	assert.Equal(t, []int{2, 0}, selRec.Indices())

	fromSel, err := f.reg.CreateSubsetFromSelection(a, "picked")
	require.NoError(t, err)
	pickedRec, err := fromSel.Resolve()
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0}, pickedRec.Indices())

	assert.ErrorIs(t, f.reg.Select(a, []int{-1}), ErrIndexOutOfRange)

	require.NoError(t, f.reg.RemoveDatasets(a))
	assert.False(t, selA.IsValid())
}

func TestSelectionCannotBeRemovedDirectly(t *testing.T) {
	f := newFixture(t)
	a := f.addPoints(t, "A", []float64{1, 2, 3})
	sel, err := f.reg.SelectionOf(a)
	require.NoError(t, err)

	assert.ErrorIs(t, f.reg.RemoveDatasets(sel), ErrSelectionDataset)
	assert.ErrorIs(t, f.reg.RemoveDatasets(a, sel), ErrSelectionDataset)
	assert.True(t, a.IsValid())
	assert.True(t, sel.IsValid())
	assert.Empty(t, f.producer.released)
	assert.Len(t, f.reg.RawDataNames(), 1)
}

func TestCopyDatasetDuplicationModes(t *testing.T) {
	f := newFixture(t)
	a := f.addPoints(t, "A", []float64{1, 2})

	deep, err := f.reg.CopyDataset(a, "deep")
	require.NoError(t, err)
	assert.False(t, f.tree.has(deep))

	aRec, _ := a.Resolve()
	deepRec, err := deep.Resolve()
	require.NoError(t, err)
	assert.NotEqual(t, aRec.RawDataName(), deepRec.RawDataName())
	assert.Equal(t, []float64{1, 2}, deepRec.Storage().(*points).Values)

	aRec.Storage().(*points).Values[0] = 99
	assert.Equal(t, 1.0, deepRec.Storage().(*points).Values[0])

	c, err := f.reg.AddData("Clusters", "C")
	require.NoError(t, err)
	shared, err := f.reg.CopyDataset(c, "shared")
	require.NoError(t, err)
	cRec, _ := c.Resolve()
	sharedRec, _ := shared.Resolve()
	assert.Equal(t, cRec.RawDataName(), sharedRec.RawDataName())
}

func TestGroupDatasets(t *testing.T) {
	f := newFixture(t)
	a := f.addPoints(t, "A", []float64{1, 2})
	b := f.addPoints(t, "B", []float64{3})
	c, err := f.reg.AddData("Clusters", "C")
	require.NoError(t, err)

	_, err = f.reg.GroupDatasets([]Dataset{a, c}, "")
	assert.ErrorIs(t, err, ErrMixedKinds)
	_, err = f.reg.GroupDatasets(nil, "")
	assert.ErrorIs(t, err, ErrNoDatasets)

	g, err := f.reg.GroupDatasets([]Dataset{a, b}, "")
	require.NoError(t, err)
	gRec, err := g.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "A+B", gRec.GUIName())
	assert.Equal(t, StorageProxy, gRec.StorageType())
	assert.Equal(t, []Dataset{a, b}, gRec.ProxyMembers())
	assert.Equal(t, 3, gRec.Len())
	assert.Equal(t, "", f.tree.parentOf(g))
	assert.Equal(t, g.GUID(), f.tree.parentOf(a))
	assert.Equal(t, g.GUID(), f.tree.parentOf(b))

	require.NoError(t, f.reg.RemoveDatasets(g))
	assert.False(t, a.IsValid())
	assert.Len(t, f.producer.released, 2)
}

func TestGroupDatasetsRollsBackWhenMoveFails(t *testing.T) {
	f := newFixture(t)
	root := f.addPoints(t, "root", nil)
	a := f.addPoints(t, "A", []float64{1}, WithParent(root))
	b := f.addPoints(t, "B", []float64{2})
	f.tree.reparentErr[b.GUID()] = errors.New("item busy")
	rec := record(t, f.bus, "dataset.added", "dataset.removed")

	g, err := f.reg.GroupDatasets([]Dataset{a, b}, "")
	assert.ErrorContains(t, err, "item busy")
	assert.True(t, g.IsZero())
	assert.Equal(t, root.GUID(), f.tree.parentOf(a), "moved member goes back")
	assert.Equal(t, "", f.tree.parentOf(b))
	assert.True(t, a.IsValid())
	assert.True(t, b.IsValid())
	assert.Len(t, f.reg.Datasets(), 3)
	require.Len(t, rec.lines, 2)
	assert.Equal(t, strings.Fields(rec.lines[0])[1], strings.Fields(rec.lines[1])[1], "the group is added then removed")
	assert.Empty(t, f.producer.released, "members keep their storage")
}

func TestDerivedDependents(t *testing.T) {
	f := newFixture(t)
	a := f.addPoints(t, "A", nil)
	other := f.addPoints(t, "other", nil)

	emb, err := f.reg.CreateDerivedDataset("Points", "embedding", a, WithParent(other))
	require.NoError(t, err)
	labels, err := f.reg.CreateDerivedDataset("Clusters", "labels", a, WithParent(Dataset{}))
	require.NoError(t, err)

	embRec, _ := emb.Resolve()
	assert.True(t, embRec.IsDerived())
	assert.True(t, embRec.Source().Equal(a))

	require.NoError(t, f.reg.RemoveDatasets(a))

	assert.False(t, emb.IsValid(), "points cannot underive and go with their source")
	require.True(t, labels.IsValid())
	labelsRec, _ := labels.Resolve()
	assert.False(t, labelsRec.IsDerived())
	assert.True(t, labelsRec.Source().IsZero())
	assert.True(t, other.IsValid())

	_, err = f.reg.CreateDerivedDataset("Points", "orphan", a)
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestReparentPolicyKeepsUnderivableChildren(t *testing.T) {
	f := newFixture(t, WithRemovalPolicy(PolicyReparent))
	a := f.addPoints(t, "A", nil)
	pts := f.addPoints(t, "pts", nil, WithParent(a))
	labels, err := f.reg.AddData("Clusters", "labels", WithParent(a))
	require.NoError(t, err)

	require.NoError(t, f.reg.RemoveDatasets(a))
	assert.False(t, pts.IsValid())
	assert.True(t, labels.IsValid())
	assert.Equal(t, "", f.tree.parentOf(labels))
	assert.True(t, f.tree.has(labels))
}

func TestRenameAndProperties(t *testing.T) {
	f := newFixture(t)
	a := f.addPoints(t, "A", nil)
	var renames []events.DatasetRenamed
	_, err := event.Subscribe(f.bus, events.TopicDatasetRenamed,
		func(_ context.Context, ev event.Event[events.DatasetRenamed]) error {
			renames = append(renames, ev.Payload)
			return nil
		})
	require.NoError(t, err)
	changed := record(t, f.bus, events.TopicDatasetChanged)

	require.NoError(t, a.SetGUIName("A2"))
	require.NoError(t, a.SetGUIName("A2"))
	require.Len(t, renames, 1)
	assert.Equal(t, events.DatasetRenamed{GUID: a.GUID(), OldName: "A", NewName: "A2"}, renames[0])
	assert.Empty(t, changed.lines, "renames are not content changes")

	require.NoError(t, f.reg.SetProperty(a, "color", "red"))
	require.NoError(t, f.reg.NotifyChanged(a))
	assert.Len(t, changed.lines, 2)

	rec, _ := a.Resolve()
	v, ok := rec.Property("color")
	assert.True(t, ok)
	assert.Equal(t, "red", v)
}

func TestSerializeAndRestore(t *testing.T) {
	f := newFixture(t)
	a := f.addPoints(t, "A", []float64{1, 2, 3})
	sub, err := f.reg.CreateSubset(a, "sub", []int{2})
	require.NoError(t, err)
	require.NoError(t, f.reg.SetProperty(a, "unit", "mm"))

	aMap, err := f.reg.ToVariantMap(a)
	require.NoError(t, err)
	subMap, err := f.reg.ToVariantMap(sub)
	require.NoError(t, err)
	assert.Equal(t, "Owner", aMap["StorageType"])
	assert.NotContains(t, subMap, "Data")

	g := newFixture(t)
	restored, err := g.reg.Restore(aMap, Dataset{})
	require.NoError(t, err)
	restoredSub, err := g.reg.Restore(subMap, restored)
	require.NoError(t, err)

	assert.Equal(t, a.GUID(), restored.GUID())
	rec, err := restored.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "A", rec.GUIName())
	assert.Equal(t, []float64{1, 2, 3}, rec.Storage().(*points).Values)
	unit, _ := rec.Property("unit")
	assert.Equal(t, "mm", unit)

	subRec, err := restoredSub.Resolve()
	require.NoError(t, err)
	assert.Equal(t, rec.RawDataName(), subRec.RawDataName())
	assert.Equal(t, []int{2}, subRec.Indices())
	assert.Equal(t, restored.GUID(), g.tree.parentOf(restoredSub))

	_, err = g.reg.Restore(aMap, Dataset{})
	assert.ErrorIs(t, err, ErrDuplicateGUID)
}

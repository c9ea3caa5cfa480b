package hierarchy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/manivault/internal/data"
	"github.com/dshills/manivault/internal/event"
	"github.com/dshills/manivault/internal/event/events"
)

func TestGroupDatasetsReparentsMembers(t *testing.T) {
	e := newEnv(t)
	a, _ := e.add(t, "A", data.Dataset{})
	b, _ := e.add(t, "B", data.Dataset{})

	g, err := e.reg.GroupDatasets([]data.Dataset{a, b}, "")
	require.NoError(t, err)

	itG, err := e.h.ItemOf(g)
	require.NoError(t, err)
	assert.Equal(t, []string{a.GUID(), b.GUID()}, guids(e.h.Children(itG, false)))

	found, err := e.reg.RequestData(a.GUID())
	require.NoError(t, err)
	itA, err := e.h.ItemOf(found)
	require.NoError(t, err)
	assert.Same(t, itG, itA.Parent())
	assert.Equal(t, []string{g.GUID()}, guids(e.h.Roots()))
}

func TestRemovingGroupIsLeafFirst(t *testing.T) {
	e := newEnv(t)
	a, _ := e.add(t, "A", data.Dataset{})
	b, _ := e.add(t, "B", data.Dataset{})
	g, err := e.reg.GroupDatasets([]data.Dataset{a, b}, "G")
	require.NoError(t, err)

	var removed []string
	_, err = event.Subscribe(e.bus, events.TopicDatasetRemoved,
		func(_ context.Context, ev event.Event[events.DatasetRemoved]) error {
			removed = append(removed, ev.Payload.GUID)
			return nil
		})
	require.NoError(t, err)

	require.NoError(t, e.reg.RemoveDatasets(g))

	assert.False(t, a.IsValid())
	assert.False(t, b.IsValid())
	require.Len(t, removed, 3)
	assert.ElementsMatch(t, []string{a.GUID(), b.GUID()}, removed[:2])
	assert.Equal(t, g.GUID(), removed[2])
	assert.Zero(t, e.h.Len())
}

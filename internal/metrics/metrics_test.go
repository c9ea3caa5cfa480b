package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/manivault/internal/event"
	"github.com/dshills/manivault/internal/event/events"
	"github.com/dshills/manivault/internal/event/topic"
)

// value returns the gauge or counter value of the series with labels.
func value(t *testing.T, r *Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := r.Prometheus().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if !hasLabels(m, labels) {
				continue
			}
			if g := m.GetGauge(); g != nil {
				return g.GetValue()
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func hasLabels(m *dto.Metric, want map[string]string) bool {
	got := map[string]string{}
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func emit[T any](t *testing.T, bus event.Bus, tp topic.Topic, payload T) {
	t.Helper()
	require.NoError(t, event.Emit(context.Background(), bus, tp, payload, "test"))
}

func TestRegistryFollowsEvents(t *testing.T) {
	bus := event.NewBus()
	r, err := NewRegistry(bus)
	require.NoError(t, err)
	defer r.Close()

	emit(t, bus, events.TopicDatasetAdded, events.DatasetAdded{GUID: "a", Kind: "Points"})
	emit(t, bus, events.TopicDatasetAdded, events.DatasetAdded{GUID: "b", Kind: "Points"})
	emit(t, bus, events.TopicDatasetAdded, events.DatasetAdded{GUID: "c", Kind: "Text"})
	emit(t, bus, events.TopicDatasetRemoved, events.DatasetRemoved{GUID: "a", Kind: "Points"})
	emit(t, bus, events.TopicDatasetRemovalDeferred, events.DatasetRemovalDeferred{GUID: "b", LockedGUID: "b"})

	assert.Equal(t, 1.0, value(t, r, "manivault_data_datasets", map[string]string{"kind": "Points"}))
	assert.Equal(t, 1.0, value(t, r, "manivault_data_datasets", map[string]string{"kind": "Text"}))
	assert.Equal(t, 1.0, value(t, r, "manivault_data_removals_deferred_total", nil))

	emit(t, bus, events.TopicActionAdded, events.ActionEvent{ID: "p"})
	emit(t, bus, events.TopicActionAdded, events.ActionEvent{ID: "q"})
	emit(t, bus, events.TopicPublicActionAdded, events.ActionEvent{ID: "q", Public: true})
	emit(t, bus, events.TopicActionConnected, events.ActionLink{PrivateID: "p", PublicID: "q"})
	assert.Equal(t, 2.0, value(t, r, "manivault_actions_registered", nil))
	assert.Equal(t, 1.0, value(t, r, "manivault_actions_public", nil))
	assert.Equal(t, 1.0, value(t, r, "manivault_actions_connections", nil))

	emit(t, bus, events.TopicActionDisconnected, events.ActionLink{PrivateID: "p", PublicID: "q"})
	emit(t, bus, events.TopicPublicActionRemoved, events.ActionEvent{ID: "q", Public: true})
	emit(t, bus, events.TopicActionRemoved, events.ActionEvent{ID: "q"})
	assert.Equal(t, 1.0, value(t, r, "manivault_actions_registered", nil))
	assert.Zero(t, value(t, r, "manivault_actions_public", nil))
	assert.Zero(t, value(t, r, "manivault_actions_connections", nil))

	emit(t, bus, events.TopicPluginAdded, events.PluginInstance{ID: "1", Kind: "Points", Type: "Data", Instances: 1})
	emit(t, bus, events.TopicPluginAdded, events.PluginInstance{ID: "2", Kind: "Points", Type: "Data", Instances: 2})
	emit(t, bus, events.TopicPluginDestroyed, events.PluginInstance{ID: "1", Kind: "Points", Type: "Data", Instances: 1})
	assert.Equal(t, 1.0, value(t, r, "manivault_plugins_instances", map[string]string{"kind": "Points"}))

	emit(t, bus, events.TopicProjectSaved, events.ProjectEvent{Format: "json"})
	emit(t, bus, events.TopicProjectLoaded, events.ProjectEvent{Format: "yaml"})
	assert.Equal(t, 1.0, value(t, r, "manivault_projects_total", map[string]string{"op": "save", "format": "json"}))
	assert.Equal(t, 1.0, value(t, r, "manivault_projects_total", map[string]string{"op": "load", "format": "yaml"}))

	assert.Equal(t, 2.0, value(t, r, "manivault_events_published_total", map[string]string{"topic": "action.added"}))
}

func TestCloseStopsFollowing(t *testing.T) {
	bus := event.NewBus()
	r, err := NewRegistry(bus)
	require.NoError(t, err)

	emit(t, bus, events.TopicActionAdded, events.ActionEvent{ID: "p"})
	r.Close()
	emit(t, bus, events.TopicActionAdded, events.ActionEvent{ID: "q"})
	assert.Equal(t, 1.0, value(t, r, "manivault_actions_registered", nil))
}

type feedStats struct{}

func (feedStats) Clients() int { return 3 }
func (feedStats) Sent() uint64 { return 10 }
func (feedStats) Dropped() uint64 { return 2 }

func TestHandlerExposesMetrics(t *testing.T) {
	bus := event.NewBus()
	r, err := NewRegistry(bus, WithRuntime())
	require.NoError(t, err)
	defer r.Close()
	require.NoError(t, r.RegisterFeed(feedStats{}))
	assert.Error(t, r.RegisterFeed(feedStats{}), "duplicate collectors are rejected")

	emit(t, bus, events.TopicDatasetAdded, events.DatasetAdded{GUID: "a", Kind: "Points"})

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, `manivault_data_datasets{kind="Points"} 1`)
	assert.Contains(t, text, "manivault_feed_clients 3")
	assert.Contains(t, text, "manivault_feed_messages_dropped_total 2")
	assert.Contains(t, text, "manivault_bus_handlers_executed_total")
	assert.Contains(t, text, "go_goroutines")
}

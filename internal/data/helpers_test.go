package data

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dshills/manivault/internal/event"
	"github.com/dshills/manivault/internal/event/events"
	"github.com/dshills/manivault/internal/event/topic"
	"github.com/dshills/manivault/internal/variant"
)

type points struct {
	Values []float64
}

func (p *points) DataKind() string { return "Points" }
func (p *points) Len() int         { return len(p.Values) }
func (p *points) Traits() Traits   { return Traits{Duplication: DuplicateDeep} }

func (p *points) ToVariantMap() variant.Map {
	values := make([]any, len(p.Values))
	for i, v := range p.Values {
		values[i] = v
	}
	return variant.Map{"Values": values}
}

func (p *points) FromVariantMap(m variant.Map) error {
	list, _ := m["Values"].([]any)
	p.Values = p.Values[:0]
	for _, v := range list {
		f, _ := variant.ToFloat(v)
		p.Values = append(p.Values, f)
	}
	return nil
}

type clusters struct {
	Names []string
}

func (c *clusters) DataKind() string { return "Clusters" }
func (c *clusters) Len() int         { return len(c.Names) }
func (c *clusters) Traits() Traits   { return Traits{MayUnderive: true} }

type testProducer struct {
	produced int
	released []Storage
}

func (p *testProducer) ProduceStorage(kind string) (Storage, error) {
	p.produced++
	switch kind {
	case "Points":
		return &points{}, nil
	case "Clusters":
		return &clusters{}, nil
	default:
		return nil, &UnknownKindError{Kind: kind, Suggestion: "Points"}
	}
}

func (p *testProducer) ReleaseStorage(s Storage) error {
	p.released = append(p.released, s)
	return nil
}

type fakeTree struct {
	parent      map[string]string
	parentSet   map[string]Dataset
	children    map[string][]Dataset
	roots       []Dataset
	locked      map[string]bool
	removing    []string
	attachErr   error
	reparentErr map[string]error
}

func newFakeTree() *fakeTree {
	return &fakeTree{
		parent:      make(map[string]string),
		parentSet:   make(map[string]Dataset),
		children:    make(map[string][]Dataset),
		locked:      make(map[string]bool),
		reparentErr: make(map[string]error),
	}
}

func (t *fakeTree) AttachDataset(d, parent Dataset) error {
	if t.attachErr != nil {
		return t.attachErr
	}
	t.parent[d.guid] = parent.guid
	t.parentSet[d.guid] = parent
	if parent.IsZero() {
		t.roots = append(t.roots, d)
	} else {
		t.children[parent.guid] = append(t.children[parent.guid], d)
	}
	return nil
}

func (t *fakeTree) ReparentDataset(d, parent Dataset) error {
	if err := t.reparentErr[d.guid]; err != nil {
		return err
	}
	if t.has(d) {
		t.unlink(d)
	}
	return t.AttachDataset(d, parent)
}

func (t *fakeTree) ChildDatasets(d Dataset) []Dataset {
	return slices.Clone(t.children[d.guid])
}

func (t *fakeTree) ParentDataset(d Dataset) Dataset { return t.parentSet[d.guid] }

func (t *fakeTree) IsDatasetLocked(d Dataset) bool { return t.locked[d.guid] }

func (t *fakeTree) MarkDatasetRemoving(d Dataset) {
	t.removing = append(t.removing, d.guid)
}

func (t *fakeTree) DetachDataset(d Dataset) {
	if t.has(d) {
		t.unlink(d)
	}
}

func (t *fakeTree) has(d Dataset) bool {
	_, ok := t.parent[d.guid]
	return ok
}

func (t *fakeTree) parentOf(d Dataset) string {
	return t.parent[d.guid]
}

func (t *fakeTree) unlink(d Dataset) {
	drop := func(list []Dataset) []Dataset {
		return slices.DeleteFunc(list, func(x Dataset) bool { return x.guid == d.guid })
	}
	if p := t.parent[d.guid]; p == "" {
		t.roots = drop(t.roots)
	} else {
		t.children[p] = drop(t.children[p])
	}
	delete(t.parent, d.guid)
	delete(t.parentSet, d.guid)
}

// recorder collects "topic guid" lines for the removal and creation topics.
type recorder struct {
	lines []string
}

func record(t *testing.T, bus event.Bus, patterns ...topic.Topic) *recorder {
	t.Helper()
	rec := &recorder{}
	for _, p := range patterns {
		_, err := bus.SubscribeFunc(p, func(_ context.Context, ev any) error {
			line := ev.(event.TopicProvider).EventTopic().String()
			switch e := ev.(type) {
			case event.Event[events.DatasetRemoving]:
				line += " " + e.Payload.GUID
			case event.Event[events.DatasetRemoved]:
				line += " " + e.Payload.GUID
			case event.Event[events.DatasetAdded]:
				line += " " + e.Payload.GUID
			}
			rec.lines = append(rec.lines, line)
			return nil
		})
		require.NoError(t, err)
	}
	return rec
}

type fixture struct {
	bus      event.Bus
	producer *testProducer
	tree     *fakeTree
	reg      *Registry
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		bus:      event.NewBus(),
		producer: &testProducer{},
		tree:     newFakeTree(),
	}
	f.reg = NewRegistry(f.bus, f.producer, append([]Option{WithTree(f.tree)}, opts...)...)
	t.Cleanup(f.reg.Close)
	return f
}

func (f *fixture) addPoints(t *testing.T, name string, values []float64, opts ...AddOption) Dataset {
	t.Helper()
	d, err := f.reg.AddData("Points", name, opts...)
	require.NoError(t, err)
	rec, err := d.Resolve()
	require.NoError(t, err)
	rec.Storage().(*points).Values = values
	return d
}

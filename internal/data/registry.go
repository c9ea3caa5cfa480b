package data

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/manivault/internal/event"
	"github.com/dshills/manivault/internal/event/events"
	"github.com/dshills/manivault/internal/event/topic"
)

const eventSource = "data"

type slot struct {
	generation uint32
	rec        *Record
}

// Registry owns raw data and datasets.
type Registry struct {
	bus      event.Bus
	producer Producer
	tree     Tree
	logger   *zap.Logger
	policy   RemovalPolicy

	slots []slot
	free  []uint32

	byGUID map[string]Handle
	issued map[string]struct{}
	order  []string

	raw map[string]*rawData

	pending   []pendingRemoval
	unlockSub event.Subscription
}

// NewRegistry creates a registry that produces storages through producer
// and publishes on bus. Either may be nil; without a producer AddData
// fails with ErrNoProducer.
func NewRegistry(bus event.Bus, producer Producer, opts ...Option) *Registry {
	r := &Registry{
		bus:      bus,
		producer: producer,
		tree:     detachedTree{},
		logger:   zap.NewNop(),
		byGUID:   make(map[string]Handle),
		issued:   make(map[string]struct{}),
		raw:      make(map[string]*rawData),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("data")

	if bus != nil {
		sub, err := event.Subscribe(bus, events.TopicItemUnlocked,
			func(context.Context, event.Event[events.ItemEvent]) error {
				r.retryPending()
				return nil
			}, event.WithPriority(event.PriorityLow))
		if err != nil {
			r.logger.Warn("cannot watch unlocks, deferred removals will not resume", zap.Error(err))
		} else {
			r.unlockSub = sub
		}
	}
	return r
}

// SetTree replaces the hierarchy. It exists for wiring where the tree is
// built after the registry.
func (r *Registry) SetTree(t Tree) {
	if t == nil {
		t = detachedTree{}
	}
	r.tree = t
}

// Close releases the bus subscription.
func (r *Registry) Close() {
	if r.unlockSub != nil {
		r.unlockSub.Cancel()
		r.unlockSub = nil
	}
}

// AddData creates raw data of kind and a full dataset viewing it.
func (r *Registry) AddData(kind, guiName string, opts ...AddOption) (Dataset, error) {
	cfg := applyAddOptions(opts)
	raw, err := r.produceRaw(kind, "")
	if err != nil {
		return Dataset{}, err
	}
	return r.create(createSpec{
		guid:   cfg.guid,
		name:   guiName,
		kind:   kind,
		raw:    raw,
		newRaw: true,
		full:   true,
		attach: true,
		parent: cfg.parent,
	})
}

// CreateDerivedDataset creates a dataset with its own raw data that records
// source as the dataset it was computed from. It is attached under source
// unless WithParent says otherwise.
func (r *Registry) CreateDerivedDataset(kind, guiName string, source Dataset, opts ...AddOption) (Dataset, error) {
	if _, err := source.Resolve(); err != nil {
		return Dataset{}, fmt.Errorf("derive from %s: %w", source, err)
	}
	cfg := applyAddOptions(opts)
	if !cfg.parentSet {
		cfg.parent = source
	}
	raw, err := r.produceRaw(kind, "")
	if err != nil {
		return Dataset{}, err
	}
	return r.create(createSpec{
		guid:    cfg.guid,
		name:    guiName,
		kind:    kind,
		raw:     raw,
		newRaw:  true,
		full:    true,
		derived: true,
		source:  source,
		attach:  true,
		parent:  cfg.parent,
	})
}

// CreateSubset creates a dataset viewing indices of the raw data behind
// source. It is attached under source unless WithParent says otherwise.
func (r *Registry) CreateSubset(source Dataset, guiName string, indices []int, opts ...AddOption) (Dataset, error) {
	rec, err := source.Resolve()
	if err != nil {
		return Dataset{}, fmt.Errorf("subset of %s: %w", source, err)
	}
	if err := checkIndices(indices, rec.raw.storage.Len()); err != nil {
		return Dataset{}, err
	}
	cfg := applyAddOptions(opts)
	if !cfg.parentSet {
		cfg.parent = source
	}
	return r.create(createSpec{
		guid:    cfg.guid,
		name:    guiName,
		kind:    rec.kind,
		raw:     rec.raw,
		indices: slices.Clone(indices),
		attach:  true,
		parent:  cfg.parent,
	})
}

// CreateSubsetFromSelection creates a subset from the current selection of
// the raw data behind source.
func (r *Registry) CreateSubsetFromSelection(source Dataset, guiName string, opts ...AddOption) (Dataset, error) {
	rec, err := source.Resolve()
	if err != nil {
		return Dataset{}, fmt.Errorf("subset of %s: %w", source, err)
	}
	return r.CreateSubset(source, guiName, rec.raw.selection, opts...)
}

// CopyDataset creates an unattached copy of source. Kinds whose traits ask
// for DuplicateDeep get a new raw data holding a deep copy of the storage;
// the others share the raw data.
func (r *Registry) CopyDataset(source Dataset, newName string) (Dataset, error) {
	rec, err := source.Resolve()
	if err != nil {
		return Dataset{}, fmt.Errorf("copy %s: %w", source, err)
	}

	spec := createSpec{
		name:        newName,
		kind:        rec.kind,
		raw:         rec.raw,
		full:        rec.full,
		indices:     slices.Clone(rec.indices),
		derived:     rec.derived,
		source:      rec.source,
		storageType: rec.storageType,
		members:     slices.Clone(rec.members),
		properties:  maps.Clone(rec.properties),
	}
	if rec.storageType == StorageOwner && rec.Traits().Duplication == DuplicateDeep {
		raw, err := r.produceRaw(rec.kind, "")
		if err != nil {
			return Dataset{}, err
		}
		if err := deepCopyStorage(raw.storage, rec.raw.storage); err != nil {
			r.releaseStorage(raw)
			return Dataset{}, fmt.Errorf("copy %s: %w", source, err)
		}
		spec.raw = raw
		spec.newRaw = true
	}
	return r.create(spec)
}

// GroupDatasets creates a proxy dataset standing for datasets and moves
// them under it. The members must share a kind. An empty guiName joins the
// member names with "+".
func (r *Registry) GroupDatasets(datasets []Dataset, guiName string) (Dataset, error) {
	if len(datasets) == 0 {
		return Dataset{}, ErrNoDatasets
	}
	recs := make([]*Record, 0, len(datasets))
	for _, d := range datasets {
		rec, err := d.Resolve()
		if err != nil {
			return Dataset{}, fmt.Errorf("group %s: %w", d, err)
		}
		if len(recs) > 0 && rec.kind != recs[0].kind {
			return Dataset{}, fmt.Errorf("%w: %s and %s", ErrMixedKinds, recs[0].kind, rec.kind)
		}
		recs = append(recs, rec)
	}

	members := make([]string, len(recs))
	names := make([]string, len(recs))
	for i, rec := range recs {
		members[i] = rec.GUID()
		names[i] = rec.name
	}
	if guiName == "" {
		guiName = strings.Join(names, "+")
	}

	kind := recs[0].kind
	group, err := r.create(createSpec{
		name:        guiName,
		kind:        kind,
		raw:         r.newRaw(kind, &proxyStorage{kind: kind, reg: r, members: members}, ""),
		newRaw:      true,
		full:        true,
		storageType: StorageProxy,
		members:     members,
		attach:      true,
	})
	if err != nil {
		return Dataset{}, err
	}

	parents := make([]Dataset, 0, len(recs))
	for _, rec := range recs {
		prev := r.tree.ParentDataset(rec.self)
		if err := r.tree.ReparentDataset(rec.self, group); err != nil {
			r.ungroup(group, recs[:len(parents)], parents)
			return Dataset{}, fmt.Errorf("move %s into group: %w", rec.self, err)
		}
		parents = append(parents, prev)
	}
	return group, nil
}

// ungroup moves members back to their parents and removes group.
func (r *Registry) ungroup(group Dataset, members []*Record, parents []Dataset) {
	for i, rec := range members {
		if err := r.tree.ReparentDataset(rec.self, parents[i]); err != nil {
			r.logger.Warn("cannot restore dataset parent",
				zap.String("dataset", rec.GUID()),
				zap.String("group", group.guid),
				zap.Error(err))
		}
	}
	r.removeSubtree(group)
}

// RequestData returns the live dataset with guid.
func (r *Registry) RequestData(guid string) (Dataset, error) {
	h, ok := r.byGUID[guid]
	if !ok {
		return Dataset{}, &NotFoundError{GUID: guid}
	}
	return Dataset{handle: h, guid: guid, reg: r}, nil
}

// Datasets returns the live datasets in creation order. Hidden selection
// datasets are not included.
func (r *Registry) Datasets() []Dataset {
	out := make([]Dataset, 0, len(r.order))
	for _, guid := range r.order {
		h := r.byGUID[guid]
		if r.slots[h.index].rec.selection {
			continue
		}
		out = append(out, Dataset{handle: h, guid: guid, reg: r})
	}
	return out
}

// DatasetsOfKind returns the live datasets of kind in creation order.
func (r *Registry) DatasetsOfKind(kind string) []Dataset {
	var out []Dataset
	for _, d := range r.Datasets() {
		if r.slots[d.handle.index].rec.kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// Len returns the number of live datasets, selections excluded.
func (r *Registry) Len() int {
	return len(r.Datasets())
}

// RawDataNames returns the names of the live raw data entries.
func (r *Registry) RawDataNames() []string {
	names := make([]string, 0, len(r.raw))
	for name := range r.raw {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// SetProperty stores a named property and publishes dataset.changed.
func (r *Registry) SetProperty(d Dataset, name string, value any) error {
	rec, err := d.Resolve()
	if err != nil {
		return err
	}
	if rec.properties == nil {
		rec.properties = make(map[string]any)
	}
	rec.properties[name] = value
	emit(r, events.TopicDatasetChanged, events.DatasetChanged{GUID: d.guid, Property: name})
	return nil
}

// NotifyChanged publishes dataset.changed for a content change made by the
// owner of the storage.
func (r *Registry) NotifyChanged(d Dataset) error {
	if _, err := d.Resolve(); err != nil {
		return err
	}
	emit(r, events.TopicDatasetChanged, events.DatasetChanged{GUID: d.guid})
	return nil
}

func (r *Registry) rename(d Dataset, name string) error {
	rec, err := d.Resolve()
	if err != nil {
		return err
	}
	if rec.name == name {
		return nil
	}
	old := rec.name
	rec.name = name
	emit(r, events.TopicDatasetRenamed, events.DatasetRenamed{GUID: d.guid, OldName: old, NewName: name})
	return nil
}

func (r *Registry) lookup(h Handle) (*Record, error) {
	if h.generation == 0 || int(h.index) >= len(r.slots) {
		return nil, ErrInvalidHandle
	}
	s := r.slots[h.index]
	if s.generation != h.generation || s.rec == nil {
		return nil, ErrInvalidHandle
	}
	return s.rec, nil
}

type createSpec struct {
	guid        string
	name        string
	kind        string
	raw         *rawData
	newRaw      bool
	full        bool
	indices     []int
	derived     bool
	source      Dataset
	storageType StorageType
	members     []string
	properties  map[string]any
	selection   bool

	attach bool
	parent Dataset
}

// create inserts a record, attaches it and publishes the creation events.
// A failed attach rolls everything back, including a new raw data.
func (r *Registry) create(spec createSpec) (Dataset, error) {
	rollbackRaw := func() {
		if spec.newRaw {
			r.releaseStorage(spec.raw)
		}
	}

	if !spec.parent.IsZero() {
		if _, err := spec.parent.Resolve(); err != nil {
			rollbackRaw()
			return Dataset{}, fmt.Errorf("parent %s: %w", spec.parent, err)
		}
	}

	guid, err := r.issueGUID(spec.guid)
	if err != nil {
		rollbackRaw()
		return Dataset{}, err
	}

	rec := &Record{
		name:        spec.name,
		kind:        spec.kind,
		raw:         spec.raw,
		full:        spec.full,
		indices:     spec.indices,
		derived:     spec.derived,
		source:      spec.source,
		storageType: spec.storageType,
		members:     spec.members,
		properties:  spec.properties,
		selection:   spec.selection,
	}
	d := r.insert(rec, guid)
	if spec.newRaw {
		r.raw[spec.raw.name] = spec.raw
	}
	if !spec.selection {
		spec.raw.refs++
	}

	if spec.attach {
		if err := r.tree.AttachDataset(d, spec.parent); err != nil {
			r.invalidate(rec)
			delete(r.issued, guid)
			if !spec.selection {
				spec.raw.refs--
			}
			if spec.newRaw {
				delete(r.raw, spec.raw.name)
				rollbackRaw()
			}
			return Dataset{}, fmt.Errorf("attach %s: %w", guid, err)
		}
	}

	if spec.selection {
		return d, nil
	}

	if spec.newRaw {
		emit(r, events.TopicRawDataAdded, events.RawDataEvent{Name: spec.raw.name, Kind: spec.kind})
	}
	r.logger.Debug("dataset added",
		zap.String("guid", guid),
		zap.String("name", spec.name),
		zap.String("kind", spec.kind))
	emit(r, events.TopicDatasetAdded, events.DatasetAdded{
		GUID:       guid,
		Name:       spec.name,
		Kind:       spec.kind,
		RawData:    spec.raw.name,
		ParentGUID: spec.parent.guid,
		SourceGUID: spec.source.guid,
		Derived:    spec.derived,
		Proxy:      spec.storageType == StorageProxy,
	})
	return d, nil
}

func (r *Registry) issueGUID(requested string) (string, error) {
	if requested != "" {
		if _, taken := r.issued[requested]; taken {
			return "", fmt.Errorf("%w: %s", ErrDuplicateGUID, requested)
		}
		r.issued[requested] = struct{}{}
		return requested, nil
	}
	for {
		guid := uuid.NewString()
		if _, taken := r.issued[guid]; !taken {
			r.issued[guid] = struct{}{}
			return guid, nil
		}
	}
}

func (r *Registry) insert(rec *Record, guid string) Dataset {
	var idx uint32
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		r.slots = append(r.slots, slot{generation: 1})
		idx = uint32(len(r.slots) - 1)
	}
	r.slots[idx].rec = rec
	h := Handle{index: idx, generation: r.slots[idx].generation}
	rec.self = Dataset{handle: h, guid: guid, reg: r}
	r.byGUID[guid] = h
	r.order = append(r.order, guid)
	return rec.self
}

// invalidate frees the slot of rec. Every outstanding handle becomes stale.
func (r *Registry) invalidate(rec *Record) {
	h := rec.self.handle
	s := &r.slots[h.index]
	s.rec = nil
	s.generation++
	if s.generation == 0 {
		s.generation = 1
	}
	r.free = append(r.free, h.index)
	delete(r.byGUID, rec.self.guid)
	if i := slices.Index(r.order, rec.self.guid); i >= 0 {
		r.order = slices.Delete(r.order, i, i+1)
	}
}

func (r *Registry) produceRaw(kind, name string) (*rawData, error) {
	if r.producer == nil {
		return nil, ErrNoProducer
	}
	storage, err := r.producer.ProduceStorage(kind)
	if err != nil {
		return nil, err
	}
	return r.newRaw(kind, storage, name), nil
}

func (r *Registry) newRaw(kind string, storage Storage, name string) *rawData {
	if name == "" {
		name = uuid.NewString()
	}
	return &rawData{name: name, kind: kind, storage: storage}
}

func (r *Registry) releaseStorage(raw *rawData) {
	if _, ok := raw.storage.(*proxyStorage); ok || r.producer == nil {
		return
	}
	if err := r.producer.ReleaseStorage(raw.storage); err != nil {
		r.logger.Warn("releasing raw data failed",
			zap.String("rawData", raw.name),
			zap.Error(err))
	}
}

func emit[T any](r *Registry, t topic.Topic, payload T) {
	if err := event.Emit(context.Background(), r.bus, t, payload, eventSource); err != nil {
		r.logger.Warn("publish failed", zap.String("topic", t.String()), zap.Error(err))
	}
}

func checkIndices(indices []int, n int) error {
	for _, i := range indices {
		if i < 0 || i >= n {
			return fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, i, n)
		}
	}
	return nil
}

// detachedTree is used until a hierarchy is wired in.
type detachedTree struct{}

func (detachedTree) AttachDataset(Dataset, Dataset) error   { return nil }
func (detachedTree) ReparentDataset(Dataset, Dataset) error { return nil }
func (detachedTree) ChildDatasets(Dataset) []Dataset        { return nil }
func (detachedTree) ParentDataset(Dataset) Dataset          { return Dataset{} }
func (detachedTree) IsDatasetLocked(Dataset) bool           { return false }
func (detachedTree) MarkDatasetRemoving(Dataset)            {}
func (detachedTree) DetachDataset(Dataset)                  {}

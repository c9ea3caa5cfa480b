package data

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/dshills/manivault/internal/event/events"
)

type pendingRemoval struct {
	dataset Dataset
	locked  string
}

// RemoveDatasets removes datasets and their subtrees. Each removed dataset
// publishes dataset.removing while still valid and dataset.removed after
// its handle went stale, children before parents.
//
// All inputs are validated before anything changes; hidden selection
// datasets are refused with ErrSelectionDataset. A subtree holding a
// locked item is not touched: its removal is deferred until the item is
// unlocked and dataset.removal.deferred is published.
func (r *Registry) RemoveDatasets(datasets ...Dataset) error {
	if len(datasets) == 0 {
		return ErrNoDatasets
	}
	for _, d := range datasets {
		rec, err := d.Resolve()
		if err != nil {
			return fmt.Errorf("remove %s: %w", d, err)
		}
		if rec.selection {
			return fmt.Errorf("remove %s: %w", d, ErrSelectionDataset)
		}
	}

	for _, d := range r.topLevel(datasets) {
		if locked, ok := r.lockedIn(d); ok {
			r.deferRemoval(d, locked)
			continue
		}
		r.removeSubtree(d)
	}
	return nil
}

// PendingRemovals returns the datasets waiting for an unlock.
func (r *Registry) PendingRemovals() []Dataset {
	out := make([]Dataset, 0, len(r.pending))
	for _, p := range r.pending {
		out = append(out, p.dataset)
	}
	return out
}

// topLevel drops the inputs that lie in the subtree of another input.
func (r *Registry) topLevel(datasets []Dataset) []Dataset {
	covered := make(map[string]bool)
	for _, d := range datasets {
		for _, desc := range r.descendants(d) {
			covered[desc.guid] = true
		}
	}
	seen := make(map[string]bool)
	var out []Dataset
	for _, d := range datasets {
		if covered[d.guid] || seen[d.guid] {
			continue
		}
		seen[d.guid] = true
		out = append(out, d)
	}
	return out
}

func (r *Registry) descendants(d Dataset) []Dataset {
	var out []Dataset
	for _, child := range r.tree.ChildDatasets(d) {
		out = append(out, child)
		out = append(out, r.descendants(child)...)
	}
	return out
}

func (r *Registry) lockedIn(d Dataset) (string, bool) {
	if r.tree.IsDatasetLocked(d) {
		return d.guid, true
	}
	for _, desc := range r.descendants(d) {
		if r.tree.IsDatasetLocked(desc) {
			return desc.guid, true
		}
	}
	return "", false
}

func (r *Registry) deferRemoval(d Dataset, locked string) {
	for _, p := range r.pending {
		if p.dataset.Equal(d) {
			return
		}
	}
	r.pending = append(r.pending, pendingRemoval{dataset: d, locked: locked})
	r.logger.Debug("removal deferred",
		zap.String("dataset", d.guid),
		zap.String("locked", locked))
	emit(r, events.TopicDatasetRemovalDeferred, events.DatasetRemovalDeferred{GUID: d.guid, LockedGUID: locked})
}

// retryPending runs the deferred removals whose subtrees are unlocked now.
func (r *Registry) retryPending() {
	pending := r.pending
	r.pending = nil
	for _, p := range pending {
		if !p.dataset.IsValid() {
			continue
		}
		if locked, ok := r.lockedIn(p.dataset); ok {
			p.locked = locked
			r.pending = append(r.pending, p)
			continue
		}
		r.removeSubtree(p.dataset)
	}
}

func (r *Registry) removeSubtree(d Dataset) {
	rec, err := d.Resolve()
	if err != nil || rec.removing {
		return
	}
	rec.removing = true

	for _, dep := range r.dependents(d) {
		depRec, err := dep.Resolve()
		if err != nil || depRec.removing {
			continue
		}
		if depRec.Traits().MayUnderive {
			depRec.derived = false
			depRec.source = Dataset{}
			emit(r, events.TopicDatasetChanged, events.DatasetChanged{GUID: dep.guid, Property: "derived"})
			continue
		}
		r.removeSubtree(dep)
	}

	for _, child := range r.tree.ChildDatasets(d) {
		childRec, err := child.Resolve()
		if err != nil {
			continue
		}
		if r.policy == PolicyReparent && childRec.Traits().MayUnderive {
			if err := r.tree.ReparentDataset(child, Dataset{}); err == nil {
				continue
			}
		}
		r.removeSubtree(child)
	}

	r.removeOne(rec)
}

func (r *Registry) dependents(d Dataset) []Dataset {
	var out []Dataset
	for _, guid := range r.order {
		rec := r.slots[r.byGUID[guid].index].rec
		if rec.derived && rec.source.Equal(d) {
			out = append(out, rec.self)
		}
	}
	return out
}

func (r *Registry) removeOne(rec *Record) {
	d := rec.self
	r.tree.MarkDatasetRemoving(d)
	emit(r, events.TopicDatasetRemoving, events.DatasetRemoving{GUID: d.guid, Name: rec.name, Kind: rec.kind})

	r.invalidate(rec)
	r.dropPending(d)

	raw := rec.raw
	raw.refs--
	if raw.refs <= 0 {
		r.releaseRaw(raw)
	}

	r.tree.DetachDataset(d)
	r.logger.Debug("dataset removed", zap.String("guid", d.guid), zap.String("kind", rec.kind))
	emit(r, events.TopicDatasetRemoved, events.DatasetRemoved{GUID: d.guid, Kind: rec.kind})
}

func (r *Registry) releaseRaw(raw *rawData) {
	if sel, err := raw.selectionSet.Resolve(); err == nil {
		r.invalidate(sel)
	}
	delete(r.raw, raw.name)
	r.releaseStorage(raw)
	emit(r, events.TopicRawDataRemoved, events.RawDataEvent{Name: raw.name, Kind: raw.kind})
}

func (r *Registry) dropPending(d Dataset) {
	for i, p := range r.pending {
		if p.dataset.Equal(d) {
			r.pending = append(r.pending[:i], r.pending[i+1:]...)
			return
		}
	}
}

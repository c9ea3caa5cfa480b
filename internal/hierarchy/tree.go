package hierarchy

import (
	"go.uber.org/zap"

	"github.com/dshills/manivault/internal/data"
	"github.com/dshills/manivault/internal/event/events"
)

var _ data.Tree = (*Hierarchy)(nil)

// AttachDataset implements data.Tree.
func (h *Hierarchy) AttachDataset(d, parent data.Dataset) error {
	p, err := h.parentItem(parent)
	if err != nil {
		return err
	}
	_, err = h.AddItem(d, p)
	return err
}

// ReparentDataset implements data.Tree.
func (h *Hierarchy) ReparentDataset(d, parent data.Dataset) error {
	p, err := h.parentItem(parent)
	if err != nil {
		return err
	}
	it, ok := h.items[d.GUID()]
	if !ok {
		_, err := h.AddItem(d, p)
		return err
	}
	return h.Reparent(it, p)
}

// ChildDatasets implements data.Tree.
func (h *Hierarchy) ChildDatasets(d data.Dataset) []data.Dataset {
	it, ok := h.items[d.GUID()]
	if !ok {
		return nil
	}
	out := make([]data.Dataset, len(it.children))
	for i, child := range it.children {
		out[i] = child.dataset
	}
	return out
}

// ParentDataset implements data.Tree.
func (h *Hierarchy) ParentDataset(d data.Dataset) data.Dataset {
	it, ok := h.items[d.GUID()]
	if !ok || it.parent == nil {
		return data.Dataset{}
	}
	return it.parent.dataset
}

// IsDatasetLocked implements data.Tree.
func (h *Hierarchy) IsDatasetLocked(d data.Dataset) bool {
	it, ok := h.items[d.GUID()]
	return ok && it.locked
}

// MarkDatasetRemoving implements data.Tree.
func (h *Hierarchy) MarkDatasetRemoving(d data.Dataset) {
	it, ok := h.items[d.GUID()]
	if !ok || it.state != StateAttached {
		return
	}
	it.state = StateAboutToBeRemoved
	emit(h, events.TopicItemRemoving, events.ItemEvent{GUID: it.GUID(), ParentGUID: it.parentGUID()})
}

// DetachDataset implements data.Tree. Children still attached are moved to
// the root.
func (h *Hierarchy) DetachDataset(d data.Dataset) {
	it, ok := h.items[d.GUID()]
	if !ok {
		return
	}
	for _, child := range append([]*Item(nil), it.children...) {
		h.logger.Warn("orphaned child moved to root",
			zap.String("item", child.GUID()),
			zap.String("parent", it.GUID()))
		_ = h.Reparent(child, nil)
	}
	if it.selected {
		h.Deselect(it)
	}

	parentGUID := it.parentGUID()
	h.unlink(it)
	delete(h.items, d.GUID())
	it.state = StateRemoved
	emit(h, events.TopicItemRemoved, events.ItemEvent{GUID: it.GUID(), ParentGUID: parentGUID})
}

func (h *Hierarchy) parentItem(parent data.Dataset) (*Item, error) {
	if parent.IsZero() {
		return nil, nil
	}
	return h.ItemOf(parent)
}

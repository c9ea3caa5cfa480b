package hierarchy

import (
	"slices"

	"github.com/dshills/manivault/internal/event/events"
)

// SelectedItems returns the selected items in selection order.
func (h *Hierarchy) SelectedItems() []*Item {
	return slices.Clone(h.selected)
}

// Select selects item, replacing the selection when clear is set.
func (h *Hierarchy) Select(item *Item, clear bool) {
	var next []*Item
	if !clear {
		next = slices.Clone(h.selected)
	}
	if !slices.Contains(next, item) {
		next = append(next, item)
	}
	h.setSelection(next)
}

// Deselect removes item from the selection.
func (h *Hierarchy) Deselect(item *Item) {
	h.setSelection(slices.DeleteFunc(slices.Clone(h.selected), func(x *Item) bool { return x == item }))
}

// SetSelection replaces the selection.
func (h *Hierarchy) SetSelection(items []*Item) {
	var next []*Item
	for _, it := range items {
		if !slices.Contains(next, it) {
			next = append(next, it)
		}
	}
	h.setSelection(next)
}

// ClearSelection deselects everything.
func (h *Hierarchy) ClearSelection() {
	h.setSelection(nil)
}

// setSelection installs next and publishes hierarchy.selection.changed with
// the full list when it differs from the current selection.
func (h *Hierarchy) setSelection(next []*Item) {
	if slices.Equal(next, h.selected) {
		return
	}
	for _, it := range h.selected {
		it.selected = false
	}
	for _, it := range next {
		it.selected = true
	}
	h.selected = next

	guids := make([]string, len(next))
	for i, it := range next {
		guids[i] = it.GUID()
	}
	emit(h, events.TopicSelectionChanged, events.SelectionChanged{GUIDs: guids})
}

package data

import (
	"fmt"
	"slices"

	"github.com/dshills/manivault/internal/event/events"
)

// SelectionOf returns the hidden selection dataset of the raw data behind d,
// creating it on first use. Every dataset sharing that raw data shares the
// selection.
func (r *Registry) SelectionOf(d Dataset) (Dataset, error) {
	rec, err := d.Resolve()
	if err != nil {
		return Dataset{}, err
	}
	raw := rec.raw
	if raw.selectionSet.IsValid() {
		return raw.selectionSet, nil
	}
	sel, err := r.create(createSpec{
		name:      rec.name + " selection",
		kind:      rec.kind,
		raw:       raw,
		selection: true,
	})
	if err != nil {
		return Dataset{}, err
	}
	raw.selectionSet = sel
	return sel, nil
}

// Select replaces the selection of the raw data behind d and publishes
// dataset.selection.changed.
func (r *Registry) Select(d Dataset, indices []int) error {
	rec, err := d.Resolve()
	if err != nil {
		return err
	}
	if err := checkIndices(indices, rec.raw.storage.Len()); err != nil {
		return fmt.Errorf("select in %s: %w", d, err)
	}
	rec.raw.selection = slices.Clone(indices)
	emit(r, events.TopicDatasetSelectionChanged, events.DatasetSelectionChanged{
		GUID:    d.guid,
		RawData: rec.raw.name,
		Count:   len(indices),
	})
	return nil
}

// SelectionIndices returns the current selection of the raw data behind d.
func (r *Registry) SelectionIndices(d Dataset) ([]int, error) {
	rec, err := d.Resolve()
	if err != nil {
		return nil, err
	}
	return slices.Clone(rec.raw.selection), nil
}

package hierarchy

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/dshills/manivault/internal/data"
	"github.com/dshills/manivault/internal/variant"
)

// Serialization keys of an item.
const (
	keyName       = "Name"
	keyExpanded   = "Expanded"
	keyVisible    = "Visible"
	keySelected   = "Selected"
	keyLocked     = "Locked"
	keyGroupIndex = "GroupIndex"
	keyDataset    = "Dataset"
	keyChildren   = "Children"
	keySortIndex  = "SortIndex"
)

// DatasetCodec serializes the datasets wrapped by items. The dataset
// registry implements it.
type DatasetCodec interface {
	ToVariantMap(d data.Dataset) (variant.Map, error)
	Restore(m variant.Map, parent data.Dataset) (data.Dataset, error)
}

// ToVariantMap serializes the forest as a map from root GUID to item map.
// Children nest under "Children" keyed by GUID, with "SortIndex" keeping
// their order.
func (h *Hierarchy) ToVariantMap(codec DatasetCodec) (variant.Map, error) {
	return h.levelToVariantMap(h.roots, codec)
}

func (h *Hierarchy) levelToVariantMap(level []*Item, codec DatasetCodec) (variant.Map, error) {
	out := make(variant.Map, len(level))
	for i, it := range level {
		m, err := h.itemToVariantMap(it, codec)
		if err != nil {
			return nil, err
		}
		m[keySortIndex] = i
		out[it.GUID()] = m
	}
	return out, nil
}

func (h *Hierarchy) itemToVariantMap(it *Item, codec DatasetCodec) (variant.Map, error) {
	ds, err := codec.ToVariantMap(it.dataset)
	if err != nil {
		return nil, fmt.Errorf("item %s: %w", it.GUID(), err)
	}
	children, err := h.levelToVariantMap(it.children, codec)
	if err != nil {
		return nil, err
	}
	return variant.Map{
		keyName:       it.Name(),
		keyExpanded:   it.expanded,
		keyVisible:    it.visible,
		keySelected:   it.selected,
		keyLocked:     it.locked,
		keyGroupIndex: it.groupIndex,
		keyDataset:    ds,
		keyChildren:   children,
	}, nil
}

type pendingItem struct {
	guid   string
	parent string
	item   variant.Map
	ds     variant.Map
}

// Restore recreates a forest produced by ToVariantMap. Datasets are
// restored through codec, which attaches them to this hierarchy. Items are
// restored parents first, and derived datasets wait until their source
// exists; what cannot be ordered is restored last. The items restored
// before a failure stay in place.
func (h *Hierarchy) Restore(m variant.Map, codec DatasetCodec) ([]*Item, error) {
	var pending []pendingItem
	if err := flatten(m, "", &pending); err != nil {
		return nil, err
	}

	inDoc := make(map[string]bool, len(pending))
	for _, p := range pending {
		inDoc[p.guid] = true
	}

	done := make(map[string]bool, len(pending))
	var restored []*Item
	ready := func(p pendingItem, strict bool) bool {
		if p.parent != "" && !done[p.parent] {
			return false
		}
		if !strict || !variant.BoolOr(p.ds, "Derived", false) {
			return true
		}
		source := variant.StringOr(p.ds, "SourceDatasetID", "")
		return !inDoc[source] || done[source]
	}

	for strict := true; len(pending) > 0; {
		progressed := false
		rest := pending[:0]
		for _, p := range pending {
			if !ready(p, strict) {
				rest = append(rest, p)
				continue
			}
			it, err := h.restoreItem(p, codec)
			if err != nil {
				return restored, err
			}
			done[p.guid] = true
			progressed = true
			if it != nil {
				restored = append(restored, it)
			}
		}
		pending = rest
		if !progressed {
			if !strict {
				return restored, fmt.Errorf("%d items have no restorable parent", len(pending))
			}
			strict = false
		}
	}
	return restored, nil
}

func (h *Hierarchy) restoreItem(p pendingItem, codec DatasetCodec) (*Item, error) {
	var parent data.Dataset
	if p.parent != "" {
		pit, ok := h.items[p.parent]
		if !ok {
			return nil, fmt.Errorf("parent %s: %w", p.parent, ErrItemNotFound)
		}
		parent = pit.dataset
	}
	d, err := codec.Restore(p.ds, parent)
	if err != nil {
		return nil, fmt.Errorf("restore %s: %w", p.guid, err)
	}
	it, ok := h.items[d.GUID()]
	if !ok {
		h.logger.Warn("restored dataset was not attached here", zap.String("dataset", d.GUID()))
		return nil, nil
	}

	h.SetExpanded(it, variant.BoolOr(p.item, keyExpanded, false))
	h.SetVisible(it, variant.BoolOr(p.item, keyVisible, true), false)
	if variant.BoolOr(p.item, keySelected, false) {
		h.Select(it, false)
	}
	if variant.BoolOr(p.item, keyLocked, false) {
		h.Lock(it)
	}
	if idx := variant.IntOr(p.item, keyGroupIndex, NoGroup); idx != NoGroup {
		if err := h.SetGroupIndex(it, idx); err != nil {
			return nil, err
		}
	}
	return it, nil
}

// flatten lists the items of a level in sort order, each followed by its
// subtree.
func flatten(level variant.Map, parent string, out *[]pendingItem) error {
	type entry struct {
		guid  string
		item  variant.Map
		order int
	}
	entries := make([]entry, 0, len(level))
	for _, guid := range variant.SortedKeys(level) {
		item, ok := variant.ToMap(level[guid])
		if !ok {
			return fmt.Errorf("%w: item %q is %T", variant.ErrWrongType, guid, level[guid])
		}
		entries = append(entries, entry{guid: guid, item: item, order: variant.IntOr(item, keySortIndex, 0)})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].order < entries[j].order })

	for _, e := range entries {
		ds, err := variant.Sub(e.item, keyDataset)
		if err != nil {
			return err
		}
		if _, ok := ds["ID"]; !ok {
			ds["ID"] = e.guid
		}
		*out = append(*out, pendingItem{guid: e.guid, parent: parent, item: e.item, ds: ds})

		children, err := variant.Sub(e.item, keyChildren)
		if err != nil {
			return err
		}
		if err := flatten(children, e.guid, out); err != nil {
			return err
		}
	}
	return nil
}

// DatasetGUIDs lists the dataset GUIDs of a forest produced by
// ToVariantMap, parents first.
func DatasetGUIDs(m variant.Map) ([]string, error) {
	var pending []pendingItem
	if err := flatten(m, "", &pending); err != nil {
		return nil, err
	}
	guids := make([]string, 0, len(pending))
	for _, p := range pending {
		guid, err := variant.String(p.ds, "ID")
		if err != nil {
			return nil, fmt.Errorf("item %q: %w", p.guid, err)
		}
		guids = append(guids, guid)
	}
	return guids, nil
}

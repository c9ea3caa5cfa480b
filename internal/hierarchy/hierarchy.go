package hierarchy

import (
	"context"
	"crypto/rand"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/dshills/manivault/internal/data"
	"github.com/dshills/manivault/internal/event"
	"github.com/dshills/manivault/internal/event/events"
	"github.com/dshills/manivault/internal/event/topic"
)

const (
	eventSource = "hierarchy"

	// DefaultGroupBuckets is the number of group colors.
	DefaultGroupBuckets = 12
)

// Option configures a Hierarchy.
type Option func(*Hierarchy)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Hierarchy) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithSessionKey fixes the 32-byte key behind group buckets. Without it
// every hierarchy draws a random key, so buckets are stable for a session
// only.
func WithSessionKey(key []byte) Option {
	return func(h *Hierarchy) {
		h.key = slices.Clone(key)
	}
}

// WithGroupBuckets sets the number of group colors.
func WithGroupBuckets(n int) Option {
	return func(h *Hierarchy) {
		if n > 0 {
			h.buckets = n
		}
	}
}

// Hierarchy is the forest of dataset items.
type Hierarchy struct {
	bus     event.Bus
	logger  *zap.Logger
	key     []byte
	buckets int

	items    map[string]*Item
	roots    []*Item
	selected []*Item
}

// New creates an empty hierarchy publishing on bus.
func New(bus event.Bus, opts ...Option) (*Hierarchy, error) {
	h := &Hierarchy{
		bus:     bus,
		logger:  zap.NewNop(),
		buckets: DefaultGroupBuckets,
		items:   make(map[string]*Item),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.Named("hierarchy")

	if h.key == nil {
		h.key = make([]byte, 32)
		if _, err := rand.Read(h.key); err != nil {
			return nil, fmt.Errorf("session key: %w", err)
		}
	}
	if len(h.key) != 32 {
		return nil, fmt.Errorf("session key must be 32 bytes, got %d", len(h.key))
	}
	return h, nil
}

// AddItem wraps dataset in a new item under parent; a nil parent inserts
// at the root.
func (h *Hierarchy) AddItem(dataset data.Dataset, parent *Item) (*Item, error) {
	if _, err := dataset.Resolve(); err != nil {
		return nil, err
	}
	if _, ok := h.items[dataset.GUID()]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyAttached, dataset)
	}
	if parent != nil && h.items[parent.GUID()] != parent {
		return nil, fmt.Errorf("parent %s: %w", parent.GUID(), ErrItemNotFound)
	}

	it := &Item{
		dataset:     dataset,
		state:       StateCreated,
		visible:     true,
		groupIndex:  NoGroup,
		groupBucket: NoGroup,
	}
	h.link(it, parent)
	h.items[dataset.GUID()] = it
	it.state = StateAttached

	emit(h, events.TopicItemAdded, events.ItemEvent{GUID: it.GUID(), ParentGUID: it.parentGUID()})
	return it, nil
}

// Item returns the item of the dataset with guid.
func (h *Hierarchy) Item(guid string) (*Item, bool) {
	it, ok := h.items[guid]
	return it, ok
}

// ItemOf returns the item wrapping d.
func (h *Hierarchy) ItemOf(d data.Dataset) (*Item, error) {
	it, ok := h.items[d.GUID()]
	if !ok {
		return nil, fmt.Errorf("%s: %w", d, ErrItemNotFound)
	}
	return it, nil
}

// Roots returns the top-level items in order.
func (h *Hierarchy) Roots() []*Item {
	return slices.Clone(h.roots)
}

// Len returns the number of items.
func (h *Hierarchy) Len() int {
	return len(h.items)
}

// Children returns the children of item, or the roots when item is nil.
// Recursive enumeration is pre-order depth first.
func (h *Hierarchy) Children(item *Item, recursive bool) []*Item {
	level := h.roots
	if item != nil {
		level = item.children
	}
	if !recursive {
		return slices.Clone(level)
	}
	var out []*Item
	var walk func([]*Item)
	walk = func(list []*Item) {
		for _, it := range list {
			out = append(out, it)
			walk(it.children)
		}
	}
	walk(level)
	return out
}

// Items returns every item in pre-order.
func (h *Hierarchy) Items() []*Item {
	return h.Children(nil, true)
}

// RenameDataset renames the dataset of item. The registry publishes
// dataset.renamed.
func (h *Hierarchy) RenameDataset(item *Item, name string) error {
	if item.state == StateRemoved {
		return ErrItemRemoved
	}
	return item.dataset.SetGUIName(name)
}

// Reparent moves item under parent, or to the root when parent is nil.
// A move below the item's own subtree is ignored.
func (h *Hierarchy) Reparent(item, parent *Item) error {
	if h.items[item.GUID()] != item {
		return fmt.Errorf("%s: %w", item.GUID(), ErrItemNotFound)
	}
	if parent != nil && h.items[parent.GUID()] != parent {
		return fmt.Errorf("parent %s: %w", parent.GUID(), ErrItemNotFound)
	}
	if parent == item || (parent != nil && item.isAncestorOf(parent)) {
		h.logger.Debug("reparent ignored",
			zap.String("item", item.GUID()),
			zap.String("parent", parent.GUID()),
			zap.Error(ErrCycle))
		return nil
	}
	if item.parent == parent {
		return nil
	}

	old := item.parentGUID()
	h.unlink(item)
	h.link(item, parent)
	emit(h, events.TopicItemReparented, events.ItemReparented{
		GUID:          item.GUID(),
		OldParentGUID: old,
		NewParentGUID: item.parentGUID(),
	})
	return nil
}

// Lock locks item. Removing a dataset whose subtree holds a locked item is
// deferred until the item is unlocked.
func (h *Hierarchy) Lock(item *Item) {
	if item.locked {
		return
	}
	item.locked = true
	emit(h, events.TopicItemLocked, events.ItemEvent{GUID: item.GUID(), ParentGUID: item.parentGUID()})
}

// Unlock unlocks item.
func (h *Hierarchy) Unlock(item *Item) {
	if !item.locked {
		return
	}
	item.locked = false
	emit(h, events.TopicItemUnlocked, events.ItemEvent{GUID: item.GUID(), ParentGUID: item.parentGUID()})
}

// SetAnalyzing toggles between Analyzing and Idle. Going idle resets the
// progress.
func (h *Hierarchy) SetAnalyzing(item *Item, analyzing bool) {
	if item.analyzing == analyzing {
		return
	}
	item.analyzing = analyzing
	t := events.TopicItemIdle
	if analyzing {
		t = events.TopicItemAnalyzing
	} else {
		item.progress = 0
		item.section = ""
	}
	emit(h, t, events.ItemEvent{GUID: item.GUID(), ParentGUID: item.parentGUID()})
}

// SetProgress reports analysis progress, clamped to [0,1].
func (h *Hierarchy) SetProgress(item *Item, progress float64, section string) {
	progress = min(max(progress, 0), 1)
	item.progress = progress
	item.section = section
	emit(h, events.TopicItemProgress, events.ItemProgress{GUID: item.GUID(), Progress: progress, Section: section})
}

// SetExpanded records whether the item is expanded in views.
func (h *Hierarchy) SetExpanded(item *Item, expanded bool) {
	if item.expanded == expanded {
		return
	}
	item.expanded = expanded
	emit(h, events.TopicItemExpanded, events.ItemFlag{GUID: item.GUID(), Value: expanded})
}

// SetVisible shows or hides item. Showing an item shows its ancestors;
// hiding deselects it. With recursive the change applies to the subtree,
// even when item itself already had the requested visibility.
func (h *Hierarchy) SetVisible(item *Item, visible, recursive bool) {
	changed := item.visible != visible
	if changed {
		item.visible = visible
		if visible {
			if item.parent != nil {
				h.SetVisible(item.parent, true, false)
			}
		} else if item.selected {
			h.setSelection(slices.DeleteFunc(slices.Clone(h.selected), func(x *Item) bool { return x == item }))
		}
	}
	if recursive {
		for _, child := range item.children {
			h.SetVisible(child, visible, true)
		}
	}
	if changed {
		emit(h, events.TopicItemVisibility, events.ItemFlag{GUID: item.GUID(), Value: visible})
	}
}

// SetGroupIndex assigns a group index and derives its color bucket. The
// bucket is a keyed hash of the index, so it is stable within a session
// and unrelated across sessions. NoGroup clears the group.
func (h *Hierarchy) SetGroupIndex(item *Item, index int) error {
	bucket := NoGroup
	if index != NoGroup {
		b, err := groupBucket(h.key, index, h.buckets)
		if err != nil {
			return err
		}
		bucket = b
	}
	item.groupIndex = index
	item.groupBucket = bucket
	emit(h, events.TopicItemGroup, events.ItemGroup{GUID: item.GUID(), Index: index, Bucket: bucket})
	return nil
}

func (h *Hierarchy) link(it, parent *Item) {
	it.parent = parent
	if parent == nil {
		h.roots = append(h.roots, it)
		return
	}
	parent.children = append(parent.children, it)
}

func (h *Hierarchy) unlink(it *Item) {
	drop := func(list []*Item) []*Item {
		return slices.DeleteFunc(list, func(x *Item) bool { return x == it })
	}
	if it.parent == nil {
		h.roots = drop(h.roots)
	} else {
		it.parent.children = drop(it.parent.children)
	}
	it.parent = nil
}

func emit[T any](h *Hierarchy, t topic.Topic, payload T) {
	if err := event.Emit(context.Background(), h.bus, t, payload, eventSource); err != nil {
		h.logger.Warn("publish failed", zap.String("topic", t.String()), zap.Error(err))
	}
}

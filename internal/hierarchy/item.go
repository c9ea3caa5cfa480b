package hierarchy

import "github.com/dshills/manivault/internal/data"

// State is the lifecycle state of an item.
type State int

const (
	StateCreated State = iota
	StateAttached
	StateAboutToBeRemoved
	StateRemoved
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateAttached:
		return "attached"
	case StateAboutToBeRemoved:
		return "about-to-be-removed"
	case StateRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// NoGroup is the group index of ungrouped items.
const NoGroup = -1

// Item is a node of the hierarchy. It wraps exactly one dataset and refers
// to its parent without owning it.
type Item struct {
	dataset  data.Dataset
	parent   *Item
	children []*Item
	state    State

	locked    bool
	analyzing bool
	progress  float64
	section   string

	visible  bool
	selected bool
	expanded bool

	groupIndex  int
	groupBucket int
}

// Dataset returns the wrapped dataset.
func (it *Item) Dataset() data.Dataset { return it.dataset }

// GUID returns the GUID of the wrapped dataset.
func (it *Item) GUID() string { return it.dataset.GUID() }

// Name returns the GUI name of the dataset, or "" once it is gone.
func (it *Item) Name() string {
	name, _ := it.dataset.GUIName()
	return name
}

// Parent returns the parent item; nil for roots.
func (it *Item) Parent() *Item { return it.parent }

// HasParent reports whether the item is below a root.
func (it *Item) HasParent() bool { return it.parent != nil }

// ChildCount returns the number of direct children.
func (it *Item) ChildCount() int { return len(it.children) }

// Depth returns the number of ancestors.
func (it *Item) Depth() int {
	n := 0
	for p := it.parent; p != nil; p = p.parent {
		n++
	}
	return n
}

func (it *Item) State() State      { return it.state }
func (it *Item) IsLocked() bool    { return it.locked }
func (it *Item) IsAnalyzing() bool { return it.analyzing }
func (it *Item) Progress() float64 { return it.progress }
func (it *Item) IsVisible() bool   { return it.visible }
func (it *Item) IsSelected() bool  { return it.selected }
func (it *Item) IsExpanded() bool  { return it.expanded }

// ProgressSection names the running analysis step.
func (it *Item) ProgressSection() string { return it.section }

// GroupIndex returns the group index or NoGroup.
func (it *Item) GroupIndex() int { return it.groupIndex }

// GroupBucket returns the color bucket of the group index, or NoGroup.
func (it *Item) GroupBucket() int { return it.groupBucket }

func (it *Item) isAncestorOf(other *Item) bool {
	for p := other.parent; p != nil; p = p.parent {
		if p == it {
			return true
		}
	}
	return false
}

func (it *Item) parentGUID() string {
	if it.parent == nil {
		return ""
	}
	return it.parent.GUID()
}

package events

import "github.com/dshills/manivault/internal/event/topic"

// Hierarchy topics.
const (
	TopicItemAdded      topic.Topic = "hierarchy.item.added"
	TopicItemRemoving   topic.Topic = "hierarchy.item.removing"
	TopicItemRemoved    topic.Topic = "hierarchy.item.removed"
	TopicItemReparented topic.Topic = "hierarchy.item.reparented"
	TopicItemLocked     topic.Topic = "hierarchy.item.locked"
	TopicItemUnlocked   topic.Topic = "hierarchy.item.unlocked"
	TopicItemAnalyzing  topic.Topic = "hierarchy.item.analyzing"
	TopicItemIdle       topic.Topic = "hierarchy.item.idle"
	TopicItemProgress   topic.Topic = "hierarchy.item.progress"
	TopicItemVisibility topic.Topic = "hierarchy.item.visibility"
	TopicItemExpanded   topic.Topic = "hierarchy.item.expanded"
	TopicItemGroup      topic.Topic = "hierarchy.item.group"

	TopicSelectionChanged topic.Topic = "hierarchy.selection.changed"
)

// ItemEvent identifies a hierarchy item by the GUID of its dataset.
type ItemEvent struct {
	GUID       string `json:"guid"`
	ParentGUID string `json:"parentGuid,omitempty"`
}

// ItemReparented records a move.
type ItemReparented struct {
	GUID          string `json:"guid"`
	OldParentGUID string `json:"oldParentGuid,omitempty"`
	NewParentGUID string `json:"newParentGuid,omitempty"`
}

// ItemProgress reports analysis progress in [0,1].
type ItemProgress struct {
	GUID     string  `json:"guid"`
	Progress float64 `json:"progress"`
	Section  string  `json:"section,omitempty"`
}

// ItemFlag reports a boolean UI state change.
type ItemFlag struct {
	GUID  string `json:"guid"`
	Value bool   `json:"value"`
}

// ItemGroup reports a group index assignment.
type ItemGroup struct {
	GUID   string `json:"guid"`
	Index  int    `json:"index"`
	Bucket int    `json:"bucket"`
}

// SelectionChanged lists the selected items in selection order.
type SelectionChanged struct {
	GUIDs []string `json:"guids"`
}

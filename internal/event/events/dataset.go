package events

import "github.com/dshills/manivault/internal/event/topic"

// Dataset and raw data topics.
const (
	TopicDatasetAdded            topic.Topic = "dataset.added"
	TopicDatasetRemoving         topic.Topic = "dataset.removing"
	TopicDatasetRemoved          topic.Topic = "dataset.removed"
	TopicDatasetRenamed          topic.Topic = "dataset.renamed"
	TopicDatasetChanged          topic.Topic = "dataset.changed"
	TopicDatasetSelectionChanged topic.Topic = "dataset.selection.changed"
	TopicDatasetRemovalDeferred  topic.Topic = "dataset.removal.deferred"

	TopicRawDataAdded   topic.Topic = "rawdata.added"
	TopicRawDataRemoved topic.Topic = "rawdata.removed"
)

// DatasetAdded is published after a dataset has been created and attached.
type DatasetAdded struct {
	GUID       string `json:"guid"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	RawData    string `json:"rawData"`
	ParentGUID string `json:"parentGuid,omitempty"`
	SourceGUID string `json:"sourceGuid,omitempty"`
	Derived    bool   `json:"derived"`
	Proxy      bool   `json:"proxy"`
}

// DatasetRemoving is published while the dataset is still valid.
type DatasetRemoving struct {
	GUID string `json:"guid"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// DatasetRemoved is published after the dataset handle became invalid.
type DatasetRemoved struct {
	GUID string `json:"guid"`
	Kind string `json:"kind"`
}

// DatasetRenamed carries the old and new GUI names.
type DatasetRenamed struct {
	GUID    string `json:"guid"`
	OldName string `json:"oldName"`
	NewName string `json:"newName"`
}

// DatasetChanged signals a content or property change.
type DatasetChanged struct {
	GUID     string `json:"guid"`
	Property string `json:"property,omitempty"`
}

// DatasetSelectionChanged is published when the selection of the raw data
// behind a dataset changes.
type DatasetSelectionChanged struct {
	GUID    string `json:"guid"`
	RawData string `json:"rawData"`
	Count   int    `json:"count"`
}

// DatasetRemovalDeferred is published when removal waits for an unlock.
type DatasetRemovalDeferred struct {
	GUID       string `json:"guid"`
	LockedGUID string `json:"lockedGuid"`
}

// RawDataEvent is the payload of the raw data topics.
type RawDataEvent struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

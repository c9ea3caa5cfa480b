package events

import "github.com/dshills/manivault/internal/event/topic"

// Project topics.
const (
	TopicProjectSaved  topic.Topic = "project.saved"
	TopicProjectLoaded topic.Topic = "project.loaded"
)

// ProjectEvent describes a saved or loaded project document.
type ProjectEvent struct {
	URL      string `json:"url"`
	Format   string `json:"format"`
	Version  int    `json:"version"`
	Datasets int    `json:"datasets"`
	Actions  int    `json:"actions"`
}

package events

import "github.com/dshills/manivault/internal/event/topic"

// Plugin topics.
const (
	TopicFactoryRegistered topic.Topic = "plugin.factory.registered"
	TopicPluginAdded       topic.Topic = "plugin.added"
	TopicPluginDestroying  topic.Topic = "plugin.destroying"
	TopicPluginDestroyed   topic.Topic = "plugin.destroyed"
)

// FactoryRegistered is published when a factory becomes available.
type FactoryRegistered struct {
	Kind    string `json:"kind"`
	Type    string `json:"type"`
	Version string `json:"version"`
}

// PluginInstance identifies a produced plugin.
type PluginInstance struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Type      string `json:"type"`
	Instances int    `json:"instances"`
}

package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/dshills/manivault/internal/event/topic"
)

// Event is an immutable notification with a typed payload.
type Event[T any] struct {
	Type     topic.Topic `json:"type"`
	Payload  T           `json:"payload"`
	Metadata Metadata    `json:"metadata"`
}

// Metadata is attached to every event.
type Metadata struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	// Source names the component that published the event.
	Source string `json:"source"`
}

// NewEvent creates an event with fresh metadata.
func NewEvent[T any](eventType topic.Topic, payload T, source string) Event[T] {
	return Event[T]{
		Type:    eventType,
		Payload: payload,
		Metadata: Metadata{
			ID:        generateID(),
			Timestamp: time.Now(),
			Source:    source,
		},
	}
}

// EventTopic returns the event topic for type-erased handling.
func (e Event[T]) EventTopic() topic.Topic {
	return e.Type
}

// EventMetadata returns the metadata for type-erased handling.
func (e Event[T]) EventMetadata() Metadata {
	return e.Metadata
}

// EventPayload returns the payload for type-erased handling.
func (e Event[T]) EventPayload() any {
	return e.Payload
}

// TopicProvider is implemented by every Event.
type TopicProvider interface {
	EventTopic() topic.Topic
}

// Envelope is a type-erased view of an event, used by observers that
// forward events without knowing their payload types.
type Envelope struct {
	Topic    topic.Topic `json:"topic"`
	Payload  any         `json:"payload"`
	Metadata Metadata    `json:"metadata"`
}

type envelopeSource interface {
	TopicProvider
	EventMetadata() Metadata
	EventPayload() any
}

// ToEnvelope converts an event to an Envelope. The second result is false
// for values that are not events.
func ToEnvelope(event any) (Envelope, bool) {
	switch e := event.(type) {
	case Envelope:
		return e, true
	case envelopeSource:
		return Envelope{Topic: e.EventTopic(), Payload: e.EventPayload(), Metadata: e.EventMetadata()}, true
	default:
		return Envelope{}, false
	}
}

// EventTopic implements TopicProvider.
func (e Envelope) EventTopic() topic.Topic {
	return e.Topic
}

func generateID() string {
	return uuid.NewString()
}

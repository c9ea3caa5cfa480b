package events

import "github.com/dshills/manivault/internal/event/topic"

// Action topics.
const (
	TopicActionAdded         topic.Topic = "action.added"
	TopicActionRemoving      topic.Topic = "action.removing"
	TopicActionRemoved       topic.Topic = "action.removed"
	TopicActionValueChanged  topic.Topic = "action.value.changed"
	TopicActionExposed       topic.Topic = "action.exposed"
	TopicActionConcealed     topic.Topic = "action.concealed"
	TopicActionConnected     topic.Topic = "action.connected"
	TopicActionDisconnected  topic.Topic = "action.disconnected"
	TopicPublicActionAdded   topic.Topic = "action.public.added"
	TopicPublicActionRemoved topic.Topic = "action.public.removed"
	TopicActionTypeAdded     topic.Topic = "action.type.added"
	TopicActionTypeRemoved   topic.Topic = "action.type.removed"
)

// ActionEvent identifies an action.
type ActionEvent struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Type   string `json:"type"`
	Public bool   `json:"public"`
}

// ActionValueChanged carries the new value in its variant form.
type ActionValueChanged struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Value any    `json:"value"`
}

// ActionLink describes a private to public connection.
type ActionLink struct {
	PrivateID string `json:"privateId"`
	PublicID  string `json:"publicId"`
}

// ActionType reports type reference count transitions.
type ActionType struct {
	Type string `json:"type"`
}

package event

import (
	"sync/atomic"

	"github.com/dshills/manivault/internal/event/topic"
)

// SubscriptionState is the state of a subscription.
type SubscriptionState int32

const (
	// SubscriptionStateActive receives events.
	SubscriptionStateActive SubscriptionState = iota

	// SubscriptionStateCancelled is final.
	SubscriptionStateCancelled
)

// String returns a human-readable state name.
func (s SubscriptionState) String() string {
	switch s {
	case SubscriptionStateActive:
		return "active"
	case SubscriptionStateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Subscription is the handle returned by Subscribe. Observers must Cancel
// it (or Unsubscribe it from the bus) before they go away.
type Subscription interface {
	ID() string
	Topic() topic.Topic
	State() SubscriptionState
	IsActive() bool

	// Cancel stops delivery permanently and detaches the subscription from
	// the bus it came from.
	Cancel()
}

// SubscriptionConfig holds per-subscription settings.
type SubscriptionConfig struct {
	Priority     Priority
	DeliveryMode DeliveryMode
	Filter       FilterFunc

	// Once cancels the subscription after its first successful delivery.
	Once bool
}

// SubscriptionOption configures a subscription.
type SubscriptionOption func(*SubscriptionConfig)

// WithPriority sets the handler priority.
func WithPriority(p Priority) SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.Priority = p
	}
}

// WithDeliveryMode selects sync or async delivery.
func WithDeliveryMode(m DeliveryMode) SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.DeliveryMode = m
	}
}

// WithFilter sets a delivery predicate.
func WithFilter(f FilterFunc) SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.Filter = f
	}
}

// WithOnce makes the subscription one-shot.
func WithOnce() SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.Once = true
	}
}

type subscription struct {
	id      string
	topic   topic.Topic
	handler Handler
	config  SubscriptionConfig
	state   atomic.Int32

	// detach removes the subscription from its registry.
	detach func(id string) bool
}

func newSubscription(id string, t topic.Topic, h Handler, opts ...SubscriptionOption) *subscription {
	config := SubscriptionConfig{Priority: PriorityNormal, DeliveryMode: DeliverySync}
	for _, opt := range opts {
		opt(&config)
	}
	s := &subscription{id: id, topic: t, handler: h, config: config}
	s.state.Store(int32(SubscriptionStateActive))
	return s
}

func (s *subscription) ID() string                 { return s.id }
func (s *subscription) Topic() topic.Topic         { return s.topic }
func (s *subscription) Handler() Handler           { return s.handler }
func (s *subscription) Config() SubscriptionConfig { return s.config }

func (s *subscription) State() SubscriptionState {
	return SubscriptionState(s.state.Load())
}

func (s *subscription) IsActive() bool {
	return s.State() == SubscriptionStateActive
}

func (s *subscription) Cancel() {
	if SubscriptionState(s.state.Swap(int32(SubscriptionStateCancelled))) == SubscriptionStateCancelled {
		return
	}
	if s.detach != nil {
		s.detach(s.id)
	}
}

// ShouldDeliver applies the state and filter checks.
func (s *subscription) ShouldDeliver(event any) bool {
	if !s.IsActive() {
		return false
	}
	if s.config.Filter != nil && !s.config.Filter(event) {
		return false
	}
	return true
}

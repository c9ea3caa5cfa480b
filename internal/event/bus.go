package event

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/dshills/manivault/internal/event/dispatch"
	"github.com/dshills/manivault/internal/event/topic"
)

// Bus is the notification bus shared by the registries.
type Bus interface {
	// Publish runs every matching synchronous handler before it returns and
	// queues matching asynchronous handlers when the bus is running.
	Publish(ctx context.Context, event any) error

	Subscribe(topicPattern topic.Topic, handler Handler, opts ...SubscriptionOption) (Subscription, error)
	SubscribeFunc(topicPattern topic.Topic, fn HandlerFunc, opts ...SubscriptionOption) (Subscription, error)
	Unsubscribe(sub Subscription) error

	// Start launches the asynchronous workers. Synchronous delivery works
	// without Start.
	Start() error
	Stop(ctx context.Context) error
	IsRunning() bool

	Stats() Stats
}

type bus struct {
	registry *Registry
	executor *dispatch.Executor
	async    *dispatch.AsyncDispatcher
	config   busConfig
	logger   *zap.Logger

	running atomic.Bool

	published atomic.Uint64
	executed  atomic.Uint64
	errors    atomic.Uint64
	panics    atomic.Uint64
}

// NewBus creates a bus.
func NewBus(opts ...BusOption) Bus {
	config := defaultBusConfig()
	for _, opt := range opts {
		opt(&config)
	}

	b := &bus{
		registry: NewRegistry(),
		config:   config,
		logger:   config.logger.Named("event"),
	}

	onPanic := func(ev any, value any, stack []byte) {
		b.logger.Error("event handler panicked",
			zap.Any("panic", value),
			zap.String("topic", topicOf(ev).String()),
			zap.ByteString("stack", stack))
		if config.panicHandler != nil {
			config.panicHandler(ev, value)
		}
	}
	b.executor = dispatch.NewExecutor(dispatch.WithExecutorPanicHandler(onPanic))
	b.async = dispatch.NewAsyncDispatcher(
		dispatch.WithQueueSize(config.asyncQueueSize),
		dispatch.WithWorkerCount(config.asyncWorkerCount),
		dispatch.WithAsyncTimeout(config.asyncTimeout),
		dispatch.WithAsyncPanicHandler(onPanic),
	)
	return b
}

func (b *bus) Start() error {
	if b.running.Load() {
		return ErrBusAlreadyRunning
	}
	if err := b.async.Start(); err != nil {
		return err
	}
	b.running.Store(true)
	return nil
}

func (b *bus) Stop(ctx context.Context) error {
	if !b.running.Swap(false) {
		return ErrBusNotRunning
	}
	return b.async.Stop(ctx)
}

func (b *bus) IsRunning() bool {
	return b.running.Load()
}

func (b *bus) Publish(ctx context.Context, event any) error {
	eventTopic := topicOf(event)
	if eventTopic == "" {
		return ErrInvalidEvent
	}
	b.published.Add(1)

	for _, sub := range b.registry.Match(eventTopic) {
		if !sub.ShouldDeliver(event) {
			continue
		}
		if sub.config.DeliveryMode == DeliveryAsync {
			if !b.running.Load() {
				continue
			}
			if err := b.async.Enqueue(ctx, event, sub.handler); err != nil {
				b.logger.Warn("async event dropped",
					zap.String("topic", eventTopic.String()),
					zap.String("subscription", sub.id),
					zap.Error(err))
			}
			continue
		}

		result := b.executor.Execute(ctx, event, sub.handler)
		b.executed.Add(1)
		switch {
		case result.Panicked:
			b.panics.Add(1)
		case result.Error != nil:
			b.errors.Add(1)
			b.logger.Debug("event handler failed",
				zap.Error(&HandlerError{SubscriptionID: sub.id, Topic: eventTopic.String(), Err: result.Error}))
		}
		if sub.config.Once && result.Success {
			sub.Cancel()
		}
	}
	return nil
}

func (b *bus) Subscribe(topicPattern topic.Topic, handler Handler, opts ...SubscriptionOption) (Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if !topicPattern.IsValid() {
		return nil, ErrInvalidTopic
	}
	sub := newSubscription(generateID(), topicPattern, handler, opts...)
	sub.detach = b.registry.Remove
	b.registry.Add(sub)
	return sub, nil
}

func (b *bus) SubscribeFunc(topicPattern topic.Topic, fn HandlerFunc, opts ...SubscriptionOption) (Subscription, error) {
	if fn == nil {
		return nil, ErrNilHandler
	}
	return b.Subscribe(topicPattern, fn, opts...)
}

func (b *bus) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return ErrInvalidSubscription
	}
	if !b.registry.Remove(sub.ID()) {
		return ErrSubscriptionNotFound
	}
	sub.Cancel()
	return nil
}

func (b *bus) Stats() Stats {
	asyncStats := b.async.Stats()
	return Stats{
		EventsPublished:   b.published.Load(),
		HandlersExecuted:  b.executed.Load() + asyncStats.Processed,
		HandlerErrors:     b.errors.Load() + asyncStats.Failed,
		HandlerPanics:     b.panics.Load() + asyncStats.Panicked,
		AsyncDropped:      asyncStats.Dropped,
		ActiveSubscribers: b.registry.CountActive(),
	}
}

func topicOf(event any) topic.Topic {
	if tp, ok := event.(TopicProvider); ok {
		return tp.EventTopic()
	}
	return ""
}

// Emit builds an Event from payload and publishes it. Registries use it for
// every notification they send.
func Emit[T any](ctx context.Context, b Bus, eventType topic.Topic, payload T, source string) error {
	if b == nil {
		return nil
	}
	return b.Publish(ctx, NewEvent(eventType, payload, source))
}

// Subscribe registers a typed handler for eventType.
func Subscribe[T any](b Bus, eventType topic.Topic, fn TypedHandlerFunc[T], opts ...SubscriptionOption) (Subscription, error) {
	return b.Subscribe(eventType, AsHandler(fn), opts...)
}

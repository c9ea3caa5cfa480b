package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/manivault/internal/event/topic"
)

type payload struct {
	Name string
}

func TestBusSyncDeliveryInPriorityOrder(t *testing.T) {
	b := NewBus()
	var order []string

	_, err := b.SubscribeFunc("dataset.added", func(context.Context, any) error {
		order = append(order, "normal")
		return nil
	})
	require.NoError(t, err)
	_, err = b.SubscribeFunc("dataset.*", func(context.Context, any) error {
		order = append(order, "critical")
		return nil
	}, WithPriority(PriorityCritical))
	require.NoError(t, err)
	_, err = b.SubscribeFunc("**", func(context.Context, any) error {
		order = append(order, "low")
		return nil
	}, WithPriority(PriorityLow))
	require.NoError(t, err)

	require.NoError(t, Emit(context.Background(), b, "dataset.added", payload{Name: "A"}, "test"))
	assert.Equal(t, []string{"critical", "normal", "low"}, order)
}

func TestBusTypedSubscribe(t *testing.T) {
	b := NewBus()
	var got []string
	_, err := Subscribe(b, "dataset.renamed", func(_ context.Context, ev Event[payload]) error {
		got = append(got, ev.Payload.Name)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, Emit(context.Background(), b, "dataset.renamed", payload{Name: "B"}, "test"))
	require.NoError(t, Emit(context.Background(), b, "dataset.renamed", "not a payload", "test"))
	assert.Equal(t, []string{"B"}, got)
}

func TestBusReentrantPublish(t *testing.T) {
	b := NewBus()
	var seen []topic.Topic

	_, err := b.SubscribeFunc("dataset.added", func(ctx context.Context, ev any) error {
		seen = append(seen, "dataset.added")
		return Emit(ctx, b, "action.added", payload{}, "handler")
	})
	require.NoError(t, err)
	_, err = b.SubscribeFunc("action.added", func(ctx context.Context, ev any) error {
		seen = append(seen, "action.added")
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, Emit(context.Background(), b, "dataset.added", payload{}, "test"))
	assert.Equal(t, []topic.Topic{"dataset.added", "action.added"}, seen)
}

func TestBusHandlerMayCancelDuringDelivery(t *testing.T) {
	b := NewBus()
	calls := 0
	var sub Subscription
	sub, err := b.SubscribeFunc("x.y", func(context.Context, any) error {
		calls++
		sub.Cancel()
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, Emit(context.Background(), b, "x.y", 1, "test"))
	require.NoError(t, Emit(context.Background(), b, "x.y", 2, "test"))
	assert.Equal(t, 1, calls)
	assert.Equal(t, SubscriptionStateCancelled, sub.State())
	assert.ErrorIs(t, b.Unsubscribe(sub), ErrSubscriptionNotFound)
}

func TestBusOnceFilterAndCancel(t *testing.T) {
	b := NewBus()
	once, filtered := 0, 0

	_, err := b.SubscribeFunc("a.b", func(context.Context, any) error {
		once++
		return nil
	}, WithOnce())
	require.NoError(t, err)

	sub, err := Subscribe(b, "a.b", func(_ context.Context, ev Event[int]) error {
		filtered++
		return nil
	}, WithFilter(func(ev any) bool { return ev.(Event[int]).Payload%2 == 0 }))
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		require.NoError(t, Emit(context.Background(), b, "a.b", i, "test"))
	}
	assert.Equal(t, 1, once)
	assert.Equal(t, 2, filtered)

	sub.Cancel()
	require.NoError(t, Emit(context.Background(), b, "a.b", 6, "test"))
	assert.Equal(t, 2, filtered)
}

func TestBusRecoversPanicsAndCountsErrors(t *testing.T) {
	var recovered any
	b := NewBus(WithPanicHandler(func(_ any, v any) { recovered = v }))
	after := false

	_, err := b.SubscribeFunc("p.q", func(context.Context, any) error { panic("bad") }, WithPriority(PriorityCritical))
	require.NoError(t, err)
	_, err = b.SubscribeFunc("p.q", func(context.Context, any) error { return errors.New("failed") })
	require.NoError(t, err)
	_, err = b.SubscribeFunc("p.q", func(context.Context, any) error {
		after = true
		return nil
	}, WithPriority(PriorityLow))
	require.NoError(t, err)

	require.NoError(t, Emit(context.Background(), b, "p.q", 0, "test"))
	assert.Equal(t, "bad", recovered)
	assert.True(t, after)

	stats := b.Stats()
	assert.Equal(t, uint64(1), stats.EventsPublished)
	assert.Equal(t, uint64(3), stats.HandlersExecuted)
	assert.Equal(t, uint64(1), stats.HandlerPanics)
	assert.Equal(t, uint64(1), stats.HandlerErrors)
	assert.Equal(t, 3, stats.ActiveSubscribers)
}

func TestBusAsyncDelivery(t *testing.T) {
	b := NewBus()
	require.NoError(t, b.Start())
	assert.ErrorIs(t, b.Start(), ErrBusAlreadyRunning)

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})
	_, err := Subscribe(b, "feed.*", func(_ context.Context, ev Event[int]) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev.Payload)
		if len(got) == 3 {
			close(done)
		}
		return nil
	}, WithDeliveryMode(DeliveryAsync))
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		require.NoError(t, Emit(context.Background(), b, "feed.tick", i, "test"))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async events not delivered")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, b.Stop(ctx))
	assert.ErrorIs(t, b.Stop(ctx), ErrBusNotRunning)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestBusRejectsInvalidInput(t *testing.T) {
	b := NewBus()
	_, err := b.Subscribe("a", nil)
	assert.ErrorIs(t, err, ErrNilHandler)
	_, err = b.SubscribeFunc("", func(context.Context, any) error { return nil })
	assert.ErrorIs(t, err, ErrInvalidTopic)
	assert.ErrorIs(t, b.Publish(context.Background(), 42), ErrInvalidEvent)
	assert.ErrorIs(t, b.Unsubscribe(nil), ErrInvalidSubscription)
}

func TestToEnvelope(t *testing.T) {
	ev := NewEvent[payload]("dataset.added", payload{Name: "A"}, "data")
	env, ok := ToEnvelope(ev)
	require.True(t, ok)
	assert.Equal(t, topic.Topic("dataset.added"), env.Topic)
	assert.Equal(t, payload{Name: "A"}, env.Payload)
	assert.Equal(t, "data", env.Metadata.Source)
	assert.NotEmpty(t, env.Metadata.ID)

	_, ok = ToEnvelope("nope")
	assert.False(t, ok)
}

package messaging

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/shared"
)

func syncBus() *EventBus {
	return NewEventBus(EventBusConfig{AsyncMode: false})
}

func starsEvent(studentID string) shared.Event {
	return shared.NewBaseEventEnvelope(shared.EventStarsEarned, studentID)
}

func TestEventBus_SubscribeAndPublish(t *testing.T) {
	bus := syncBus()

	var got []shared.Event
	err := bus.Subscribe(shared.EventStarsEarned, shared.EventHandlerFunc(func(e shared.Event) error {
		got = append(got, e)
		return nil
	}))
	require.NoError(t, err)

	require.NoError(t, bus.Publish(starsEvent("s1")))
	require.NoError(t, bus.Publish(shared.NewBaseEventEnvelope(shared.EventStudentRegistered, "s2")))

	// Only the subscribed type is delivered.
	require.Len(t, got, 1)
	assert.Equal(t, shared.EventStarsEarned, got[0].EventType())
	assert.Equal(t, "s1", got[0].AggregateID())
}

func TestEventBus_MultipleHandlersPerType(t *testing.T) {
	bus := syncBus()

	calls := 0
	handler := shared.EventHandlerFunc(func(shared.Event) error {
		calls++
		return nil
	})
	require.NoError(t, bus.Subscribe(shared.EventStarsEarned, handler))
	require.NoError(t, bus.Subscribe(shared.EventStarsEarned, handler))

	require.NoError(t, bus.Publish(starsEvent("s1")))
	assert.Equal(t, 2, calls)
}

func TestEventBus_SubscribeAll(t *testing.T) {
	bus := syncBus()

	var types []shared.EventType
	err := bus.SubscribeAll(shared.EventHandlerFunc(func(e shared.Event) error {
		types = append(types, e.EventType())
		return nil
	}))
	require.NoError(t, err)

	require.NoError(t, bus.Publish(starsEvent("s1")))
	require.NoError(t, bus.Publish(shared.NewBaseEventEnvelope(shared.EventRewardRedeemed, "s1")))

	assert.Equal(t, []shared.EventType{shared.EventStarsEarned, shared.EventRewardRedeemed}, types)
}

func TestEventBus_HandlerErrorDoesNotStopOthers(t *testing.T) {
	bus := syncBus()

	secondCalled := false
	require.NoError(t, bus.Subscribe(shared.EventStarsEarned, shared.EventHandlerFunc(func(shared.Event) error {
		return errors.New("boom")
	})))
	require.NoError(t, bus.Subscribe(shared.EventStarsEarned, shared.EventHandlerFunc(func(shared.Event) error {
		secondCalled = true
		return nil
	})))

	// Publish itself never fails on handler errors.
	require.NoError(t, bus.Publish(starsEvent("s1")))
	assert.True(t, secondCalled)
}

func TestEventBus_RecoversFromHandlerPanic(t *testing.T) {
	bus := syncBus()

	require.NoError(t, bus.Subscribe(shared.EventStarsEarned, shared.EventHandlerFunc(func(shared.Event) error {
		panic("handler exploded")
	})))

	require.NoError(t, bus.Publish(starsEvent("s1")))

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.HandlerFailures)
}

func TestEventBus_AsyncDelivery(t *testing.T) {
	bus := NewEventBus(EventBusConfig{AsyncMode: true, WorkerPoolSize: 4})

	var wg sync.WaitGroup
	wg.Add(3)
	var mu sync.Mutex
	delivered := 0

	require.NoError(t, bus.Subscribe(shared.EventStarsEarned, shared.EventHandlerFunc(func(shared.Event) error {
		mu.Lock()
		delivered++
		mu.Unlock()
		wg.Done()
		return nil
	})))

	for i := 0; i < 3; i++ {
		require.NoError(t, bus.Publish(starsEvent("s1")))
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async handlers did not run")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, delivered)
}

func TestEventBus_CloseWaitsAndRejects(t *testing.T) {
	bus := syncBus()
	require.NoError(t, bus.Close())

	err := bus.Publish(starsEvent("s1"))
	assert.ErrorIs(t, err, ErrEventBusClosed)

	err = bus.Subscribe(shared.EventStarsEarned, shared.EventHandlerFunc(func(shared.Event) error { return nil }))
	assert.ErrorIs(t, err, ErrEventBusClosed)

	// Closing twice is a no-op.
	assert.NoError(t, bus.Close())
}

func TestEventBus_NilArguments(t *testing.T) {
	bus := syncBus()

	assert.Error(t, bus.Subscribe(shared.EventStarsEarned, nil))
	assert.Error(t, bus.SubscribeAll(nil))
	assert.Error(t, bus.Publish(nil))
}

func TestEventBusMetrics_Snapshot(t *testing.T) {
	bus := syncBus()

	require.NoError(t, bus.Subscribe(shared.EventStarsEarned, shared.EventHandlerFunc(func(shared.Event) error {
		return nil
	})))
	require.NoError(t, bus.Subscribe(shared.EventRewardRedeemed, shared.EventHandlerFunc(func(shared.Event) error {
		return errors.New("boom")
	})))

	require.NoError(t, bus.Publish(starsEvent("s1")))
	require.NoError(t, bus.Publish(starsEvent("s1")))
	require.NoError(t, bus.Publish(shared.NewBaseEventEnvelope(shared.EventRewardRedeemed, "s1")))

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(3), snap.TotalPublished)
	assert.Equal(t, int64(3), snap.TotalHandlerExecs)
	assert.Equal(t, int64(1), snap.HandlerFailures)
	assert.InDelta(t, 2.0/3.0, snap.HandlerSuccessRate, 0.001)
}

package events

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hk-health-ai/backend/internal/domain/entities"
	"github.com/hk-health-ai/backend/internal/domain/providers"
)

func newEvent(id string) *entities.StreamEvent {
	return &entities.StreamEvent{
		ID:        id,
		Type:      entities.StreamEventAirQuality,
		Payload:   []byte(`{}`),
		Timestamp: time.Now().UTC(),
	}
}

func TestMemoryBusDeliversInOrder(t *testing.T) {
	bus := NewMemoryEventBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := bus.Subscribe(ctx, providers.EventChannelUpdates)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(ctx, providers.EventChannelUpdates, newEvent(fmt.Sprintf("e%d", i))))
	}

	for i := 0; i < 5; i++ {
		select {
		case event := <-events:
			assert.Equal(t, fmt.Sprintf("e%d", i), event.ID)
		case <-time.After(time.Second):
			t.Fatalf("event %d not delivered", i)
		}
	}
}

func TestMemoryBusChannelsAreIsolated(t *testing.T) {
	bus := NewMemoryEventBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	alerts, err := bus.Subscribe(ctx, providers.EventChannelAlerts)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(ctx, providers.EventChannelUpdates, newEvent("update")))

	select {
	case event := <-alerts:
		t.Fatalf("alert subscriber received %q from the updates channel", event.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBusUnsubscribeOnContextCancel(t *testing.T) {
	bus := NewMemoryEventBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	events, err := bus.Subscribe(ctx, providers.EventChannelAlerts)
	require.NoError(t, err)

	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, open := <-events:
			return !open
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond, "subscriber channel closed after cancel")

	// Publishing afterwards must not panic
	require.NoError(t, bus.Publish(context.Background(), providers.EventChannelAlerts, newEvent("late")))
}

func TestMemoryBusCloseIsIdempotent(t *testing.T) {
	bus := NewMemoryEventBus()

	ctx := context.Background()
	events, err := bus.Subscribe(ctx, providers.EventChannelAlerts)
	require.NoError(t, err)

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	_, open := <-events
	assert.False(t, open)
}

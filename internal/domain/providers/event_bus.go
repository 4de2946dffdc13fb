package providers

import (
	"context"

	"github.com/hk-health-ai/backend/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to
// real-time events. Delivery to one subscriber is FIFO; order across
// subscribers is unspecified.
type EventBus interface {
	// Publish publishes an event to all subscribers of a channel
	Publish(ctx context.Context, channel string, event *entities.StreamEvent) error

	// Subscribe subscribes to events on a channel; the returned channel is
	// closed when ctx is done or the bus shuts down
	Subscribe(ctx context.Context, channel string) (<-chan *entities.StreamEvent, error)

	// Unsubscribe drops all subscribers of a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// Event channel names
const (
	// EventChannelAlerts carries emergency alerts to every subscriber
	EventChannelAlerts = "alerts"

	// EventChannelUpdates carries metric refreshes (waiting times, air
	// quality, advisories)
	EventChannelUpdates = "updates"

	// eventChannelDistrictPrefix scopes updates to one district
	eventChannelDistrictPrefix = "updates:district:"
)

// DistrictUpdatesChannel returns the update channel for one district
func DistrictUpdatesChannel(district string) string {
	return eventChannelDistrictPrefix + district
}

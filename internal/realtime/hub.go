package realtime

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/hk-health-ai/backend/internal/domain/entities"
	"github.com/hk-health-ai/backend/internal/domain/providers"
	"github.com/hk-health-ai/backend/internal/infrastructure/observability"
)

// defaultQueueSize bounds each subscriber's pending-event queue
const defaultQueueSize = 64

// Subscriber is one connected client's handle on the hub. Events arrive
// in publish order; a subscriber that cannot keep up loses its oldest
// pending events and is marked degraded.
type Subscriber struct {
	id       string
	events   chan *entities.StreamEvent
	degraded atomic.Bool
}

// ID returns the subscriber's unique identifier
func (s *Subscriber) ID() string { return s.id }

// Events returns the subscriber's event stream. Closed on unsubscribe.
func (s *Subscriber) Events() <-chan *entities.StreamEvent { return s.events }

// Degraded reports whether the subscriber has lost events
func (s *Subscriber) Degraded() bool { return s.degraded.Load() }

// Hub fans events out to all subscribers. One slow consumer never blocks
// delivery to the others.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	queueSize   int
	metrics     *observability.Metrics
}

// NewHub creates a hub; queueSize <= 0 uses the default
func NewHub(queueSize int, metrics *observability.Metrics) *Hub {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Hub{
		subscribers: make(map[string]*Subscriber),
		queueSize:   queueSize,
		metrics:     metrics,
	}
}

// Subscribe registers a new subscriber
func (h *Hub) Subscribe() *Subscriber {
	subscriber := &Subscriber{
		id:     uuid.NewString(),
		events: make(chan *entities.StreamEvent, h.queueSize),
	}

	h.mu.Lock()
	h.subscribers[subscriber.id] = subscriber
	count := len(h.subscribers)
	h.mu.Unlock()

	observability.GetLogger().Debug().Str("subscriber_id", subscriber.id).
		Int("subscribers", count).Msg("subscriber joined")
	return subscriber
}

// Unsubscribe removes a subscriber and closes its event stream
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	subscriber, ok := h.subscribers[id]
	if ok {
		delete(h.subscribers, id)
	}
	count := len(h.subscribers)
	h.mu.Unlock()

	if !ok {
		return
	}
	close(subscriber.events)
	observability.GetLogger().Debug().Str("subscriber_id", id).
		Int("subscribers", count).Msg("subscriber left")
}

// Broadcast delivers an event to every subscriber. A full queue sheds its
// oldest event to make room, preserving FIFO order for what remains.
func (h *Hub) Broadcast(event *entities.StreamEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, subscriber := range h.subscribers {
		select {
		case subscriber.events <- event:
			continue
		default:
		}

		// Queue full: shed the oldest, then retry once. The retry can
		// still lose the race against the consumer, in which case the
		// event is dropped instead.
		select {
		case <-subscriber.events:
		default:
		}
		select {
		case subscriber.events <- event:
		default:
		}

		if subscriber.degraded.CompareAndSwap(false, true) {
			observability.GetLogger().Warn().Str("subscriber_id", subscriber.id).
				Msg("subscriber degraded, shedding oldest events")
		}
		if h.metrics != nil {
			h.metrics.BroadcastDrops.Add(context.Background(), 1)
		}
	}
}

// Count returns the number of connected subscribers
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Run bridges event-bus channels into the hub until ctx is done
func (h *Hub) Run(ctx context.Context, bus providers.EventBus, channels ...string) error {
	logger := observability.GetLogger()

	merged := make(chan *entities.StreamEvent)
	var wg sync.WaitGroup
	for _, channel := range channels {
		events, err := bus.Subscribe(ctx, channel)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func(channel string) {
			defer wg.Done()
			for event := range events {
				select {
				case merged <- event:
				case <-ctx.Done():
					return
				}
			}
		}(channel)
	}
	go func() {
		wg.Wait()
		close(merged)
	}()

	logger.Info().Strs("channels", channels).Msg("broadcast hub running")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-merged:
			if !ok {
				return nil
			}
			h.Broadcast(event)
		}
	}
}

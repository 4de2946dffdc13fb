package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hk-health-ai/backend/internal/infrastructure/observability"
	"github.com/hk-health-ai/backend/internal/realtime"
)

// heartbeatInterval keeps idle SSE connections from being reaped by
// intermediaries
const heartbeatInterval = 30 * time.Second

// SSEHandler streams alerts and metric updates over Server-Sent Events
type SSEHandler struct {
	hub *realtime.Hub
}

// NewSSEHandler creates a new SSE handler
func NewSSEHandler(hub *realtime.Hub) *SSEHandler {
	return &SSEHandler{hub: hub}
}

// StreamAlerts handles GET /api/stream/alerts
func (h *SSEHandler) StreamAlerts(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	subscriber := h.hub.Subscribe()
	defer h.hub.Unsubscribe(subscriber.ID())

	logger := observability.LoggerFromContext(r.Context())
	logger.Debug().Str("subscriber_id", subscriber.ID()).Msg("sse client connected")

	h.sendEvent(w, "connected", map[string]any{
		"subscriber_id": subscriber.ID(),
		"timestamp":     time.Now().UTC(),
	})
	flusher.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	degradedAnnounced := false
	for {
		select {
		case <-r.Context().Done():
			logger.Debug().Str("subscriber_id", subscriber.ID()).Msg("sse client disconnected")
			return
		case <-ticker.C:
			h.sendEvent(w, "heartbeat", map[string]any{"timestamp": time.Now().UTC()})
			flusher.Flush()
		case event, open := <-subscriber.Events():
			if !open {
				return
			}
			if subscriber.Degraded() && !degradedAnnounced {
				degradedAnnounced = true
				h.sendEvent(w, "degraded", map[string]any{
					"message": "events were dropped, refresh state via the REST API",
				})
			}
			h.sendEvent(w, string(event.Type), event)
			flusher.Flush()
		}
	}
}

// ClientCount returns the number of connected subscribers
func (h *SSEHandler) ClientCount() int {
	return h.hub.Count()
}

// sendEvent writes one SSE frame
func (h *SSEHandler) sendEvent(w http.ResponseWriter, eventType string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		observability.GetLogger().Error().Err(err).Msg("failed to marshal sse event")
		return
	}

	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
}

package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hk-health-ai/backend/internal/api/handlers"
	"github.com/hk-health-ai/backend/internal/domain/entities"
	"github.com/hk-health-ai/backend/internal/realtime"
)

func alertEvent(t *testing.T, id string) *entities.StreamEvent {
	t.Helper()
	alert := entities.NewAlertEvent(entities.AlertKindAirQuality, entities.AlertSeverityWarning,
		"Air quality health index at Central reached 8 (high)", nil, time.Now().UTC())
	event, err := alert.ToStreamEvent()
	require.NoError(t, err)
	event.ID = id
	return event
}

func TestStreamAlertsDeliversEvents(t *testing.T) {
	hub := realtime.NewHub(8, nil)
	handler := handlers.NewSSEHandler(hub)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/stream/alerts", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		handler.StreamAlerts(w, req)
		close(done)
	}()

	require.Eventually(t, func() bool { return hub.Count() == 1 },
		time.Second, 5*time.Millisecond)

	hub.Broadcast(alertEvent(t, "evt-1"))
	require.Eventually(t, func() bool { return strings.Contains(w.Body.String(), "evt-1") },
		time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not exit after cancel")
	}

	result := w.Result()
	assert.Equal(t, "text/event-stream", result.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", result.Header.Get("Cache-Control"))

	body := w.Body.String()
	assert.Contains(t, body, "event: connected")
	assert.Contains(t, body, "event: emergency_alert")
	assert.Equal(t, 0, hub.Count(), "subscriber removed on disconnect")
}

func TestStreamAlertsClientCount(t *testing.T) {
	hub := realtime.NewHub(8, nil)
	handler := handlers.NewSSEHandler(hub)

	assert.Equal(t, 0, handler.ClientCount())

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/stream/alerts", nil).WithContext(ctx)
	done := make(chan struct{})
	go func() {
		handler.StreamAlerts(httptest.NewRecorder(), req)
		close(done)
	}()

	require.Eventually(t, func() bool { return handler.ClientCount() == 1 },
		time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, 0, handler.ClientCount())
}

func TestServeAlertsWebSocket(t *testing.T) {
	hub := realtime.NewHub(8, nil)
	handler := handlers.NewWSHandler(hub)

	server := httptest.NewServer(http.HandlerFunc(handler.ServeAlerts))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Count() == 1 },
		time.Second, 5*time.Millisecond)

	hub.Broadcast(alertEvent(t, "evt-ws"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event entities.StreamEvent
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, "evt-ws", event.ID)
	assert.Equal(t, entities.StreamEventEmergencyAlert, event.Type)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Count() == 0 },
		time.Second, 5*time.Millisecond, "subscriber removed when the socket closes")
}

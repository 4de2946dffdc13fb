package streamclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hk-health-ai/backend/internal/domain/entities"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func streamEvent(id string) *entities.StreamEvent {
	return &entities.StreamEvent{
		ID:        id,
		Type:      entities.StreamEventEmergencyAlert,
		Payload:   []byte(`{}`),
		Timestamp: time.Now().UTC(),
	}
}

func TestClientReceivesEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		require.NoError(t, conn.WriteJSON(streamEvent("evt-1")))
		// Hold the connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client := New(Options{URL: wsURL(server), ReconnectDelay: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	select {
	case event := <-client.Events():
		assert.Equal(t, "evt-1", event.ID)
		assert.Equal(t, entities.StreamEventEmergencyAlert, event.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
	assert.Equal(t, StateOpen, client.State())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("client did not stop on cancel")
	}
	assert.Equal(t, StateClosed, client.State())

	_, open := <-client.Events()
	assert.False(t, open, "event channel closed after Run returns")
}

func TestClientReconnectsAfterDrop(t *testing.T) {
	var connections atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		// First connection drops immediately; the retry gets an event
		if connections.Add(1) == 1 {
			return
		}
		require.NoError(t, conn.WriteJSON(streamEvent("evt-2")))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client := New(Options{URL: wsURL(server), ReconnectDelay: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = client.Run(ctx) }()

	select {
	case event := <-client.Events():
		assert.Equal(t, "evt-2", event.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received after reconnect")
	}
	assert.GreaterOrEqual(t, connections.Load(), int64(2), "client reconnected")
}

func TestClientKeepsRetryingWhileServerDown(t *testing.T) {
	client := New(Options{URL: "ws://127.0.0.1:1/ws/alerts", ReconnectDelay: 5 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := client.Run(ctx)

	// Run only returns because the context expired, never with success
	require.Error(t, err)
	assert.Equal(t, StateClosed, client.State())
}

package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hk-health-ai/backend/internal/infrastructure/observability"
	"github.com/hk-health-ai/backend/internal/realtime"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is enforced by the CORS layer in front of this handler
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler streams alerts and metric updates over WebSocket
type WSHandler struct {
	hub *realtime.Hub
}

// NewWSHandler creates a new WebSocket handler
func NewWSHandler(hub *realtime.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

// ServeAlerts handles GET /ws/alerts
func (h *WSHandler) ServeAlerts(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		observability.LoggerFromContext(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	subscriber := h.hub.Subscribe()
	logger := observability.GetLogger().With().Str("subscriber_id", subscriber.ID()).Logger()
	logger.Debug().Msg("websocket client connected")

	done := make(chan struct{})
	go h.readLoop(conn, done)
	h.writeLoop(conn, subscriber, done)

	h.hub.Unsubscribe(subscriber.ID())
	_ = conn.Close()
	logger.Debug().Msg("websocket client disconnected")
}

// readLoop consumes inbound frames so control messages are processed and
// a closed peer is detected
func (h *WSHandler) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop pushes hub events to the peer; any write failure ends the
// connection and removes the subscriber
func (h *WSHandler) writeLoop(conn *websocket.Conn, subscriber *realtime.Subscriber, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case event, open := <-subscriber.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !open {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				observability.GetLogger().Debug().Err(err).
					Str("subscriber_id", subscriber.ID()).Msg("websocket write failed")
				return
			}
		}
	}
}

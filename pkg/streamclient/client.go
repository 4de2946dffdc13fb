// Package streamclient is the Go client for the alert stream. It keeps a
// WebSocket subscription alive across server restarts: a dropped
// connection is retried at a fixed cadence until the context is
// cancelled, and events keep flowing on the same channel after a
// reconnect.
package streamclient

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/hk-health-ai/backend/internal/domain/entities"
	"github.com/hk-health-ai/backend/pkg/retry"
)

// State describes the client's connection lifecycle
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

// defaultReconnectDelay between connection attempts
const defaultReconnectDelay = 5 * time.Second

// eventBuffer bounds the delivery channel to the consumer
const eventBuffer = 64

// Options configures a Client
type Options struct {
	// URL is the WebSocket endpoint, e.g. ws://host:port/ws/alerts
	URL string

	// ReconnectDelay between attempts; zero uses the default
	ReconnectDelay time.Duration

	// Dialer overrides the default websocket dialer
	Dialer *websocket.Dialer

	// Logger for connection lifecycle events; zerolog.Nop() when unset
	Logger *zerolog.Logger
}

// Client is a reconnecting subscriber to the alert stream
type Client struct {
	opts   Options
	events chan *entities.StreamEvent

	mu    sync.RWMutex
	state State
}

// New creates a stream client; Run must be called to start it
func New(opts Options) *Client {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	return &Client{
		opts:   opts,
		events: make(chan *entities.StreamEvent, eventBuffer),
		state:  StateConnecting,
	}
}

// Events returns the stream of received events. Closed when Run returns.
func (c *Client) Events() <-chan *entities.StreamEvent {
	return c.events
}

// State returns the current connection state
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

// Run connects and pumps events until ctx is cancelled. Connection
// failures and drops trigger a reconnect after the configured delay;
// Run itself only returns on cancellation.
func (c *Client) Run(ctx context.Context) error {
	defer func() {
		c.setState(StateClosed)
		close(c.events)
	}()

	logger := c.opts.Logger
	cfg := retry.Fixed(c.opts.ReconnectDelay)

	return retry.Do(ctx, cfg, func() error {
		c.setState(StateConnecting)

		conn, _, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, nil)
		if err != nil {
			return err
		}
		c.setState(StateOpen)
		logger.Info().Str("url", c.opts.URL).Msg("stream connected")

		err = c.pump(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		logger.Warn().Err(err).Msg("stream connection lost")
		return err
	}, func(attempt int, err error, nextDelay time.Duration) {
		logger.Debug().Int("attempt", attempt).Err(err).Dur("retry_in", nextDelay).
			Msg("stream reconnect scheduled")
	})
}

// pump reads events until the connection breaks or ctx is cancelled
func (c *Client) pump(ctx context.Context, conn *websocket.Conn) error {
	// Unblock the blocking read when the caller cancels
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var event entities.StreamEvent
		if err := json.Unmarshal(data, &event); err != nil {
			c.opts.Logger.Warn().Err(err).Msg("discarding unparseable stream event")
			continue
		}

		select {
		case c.events <- &event:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Package peer maintains the realtime user-to-user channel: a websocket
// connection with an application-level heartbeat, bounded reconnection, and
// offline-message reconciliation on regained connectivity.
package peer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parley-im/parley/internal/domain"
	"github.com/parley-im/parley/internal/logging"
)

// ErrNotConnected is returned by Send while the channel is down. Callers
// surface it to the user immediately instead of queueing silently.
var ErrNotConnected = errors.New("peer channel not connected")

// Config tunes the peer channel.
type Config struct {
	// URL is the websocket endpoint, e.g. ws://host/ws?userId=u1.
	URL string

	// HandshakeTimeout bounds the websocket dial. Default 5 seconds.
	HandshakeTimeout time.Duration

	// PingInterval spaces the application-level heartbeat frames.
	// Default 30 seconds.
	PingInterval time.Duration

	// ReconnectBase is the first reconnect delay; each further attempt
	// doubles it. Default 1 second.
	ReconnectBase time.Duration

	// MaxReconnects bounds automatic reconnection attempts per outage.
	// Default 5. A network-regained signal or a manual Reconnect resets
	// the count.
	MaxReconnects int

	// Reachable, when set, is consulted before scheduling an automatic
	// reconnect. While it reports false the channel stays down without
	// spending its budget and waits for a NetworkOnline signal.
	Reachable func() bool
}

func (c *Config) applyDefaults() {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 5 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.ReconnectBase <= 0 {
		c.ReconnectBase = time.Second
	}
	if c.MaxReconnects <= 0 {
		c.MaxReconnects = 5
	}
}

// nextDelay is the backoff before reconnect attempt n (1-based):
// base, 2*base, 4*base, ...
func nextDelay(base time.Duration, attempt int) time.Duration {
	return base << (attempt - 1)
}

// Channel is a self-healing websocket connection to the peer relay.
type Channel struct {
	cfg    Config
	dialer *websocket.Dialer
	log    *logging.Logger

	// OnMessage receives inbound peer frames. OnConnect fires after every
	// successful (re)connect, OnDisconnect after every loss. Set before
	// Connect; not synchronized afterwards.
	OnMessage    func(domain.InboundPeerFrame)
	OnConnect    func()
	OnDisconnect func()

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	closed    bool
	attempts  int
	retry     *time.Timer
	gen       int
}

// NewChannel creates a peer channel for the given endpoint.
func NewChannel(cfg Config, log *logging.Logger) *Channel {
	cfg.applyDefaults()
	return &Channel{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		log:    log.Sub("peer"),
	}
}

// Connect dials the relay and starts the read and heartbeat loops. On
// success the reconnect budget resets.
func (c *Channel) Connect(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return errors.New("peer channel closed")
	}
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = conn
	c.connected = true
	c.attempts = 0
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	c.log.Info().Str("url", c.cfg.URL).Msg("peer channel connected")

	go c.readLoop(conn, gen)
	go c.heartbeat(conn, gen)

	if c.OnConnect != nil {
		c.OnConnect()
	}
	return nil
}

// Connected reports whether the channel currently has a live connection.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Send writes an outbound frame. It fails fast with ErrNotConnected while
// the channel is down.
func (c *Channel) Send(frame domain.PeerFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected || c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteJSON(frame)
}

// Reconnect forces an immediate dial and resets the backoff budget. Used
// for user-initiated retry.
func (c *Channel) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	c.attempts = 0
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	c.mu.Unlock()
	return c.Connect(ctx)
}

// NetworkOnline is the connectivity-regained signal: it resets the backoff
// budget and, if the channel is down, dials immediately instead of waiting
// out a scheduled retry.
func (c *Channel) NetworkOnline() {
	c.mu.Lock()
	c.attempts = 0
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	down := !c.connected && !c.closed
	c.mu.Unlock()

	if down {
		c.log.Info().Msg("network regained, reconnecting peer channel")
		if err := c.Connect(context.Background()); err != nil {
			c.handleClose(err)
		}
	}
}

// Close shuts the channel down permanently.
func (c *Channel) Close() error {
	c.mu.Lock()
	c.closed = true
	c.connected = false
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (c *Channel) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.current(gen) {
				c.handleClose(err)
			}
			return
		}

		var frame domain.InboundPeerFrame
		if jsonErr := json.Unmarshal(data, &frame); jsonErr != nil {
			c.log.Warn().Err(jsonErr).Msg("unreadable peer frame")
			continue
		}

		switch frame.MessageType {
		case domain.FramePong:
			// Heartbeat answered.
		case domain.FramePing:
			_ = c.Send(domain.PeerFrame{Type: domain.FramePong})
		default:
			if c.OnMessage != nil {
				c.OnMessage(frame)
			}
		}
	}
}

func (c *Channel) heartbeat(conn *websocket.Conn, gen int) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for range ticker.C {
		if !c.current(gen) {
			return
		}
		c.mu.Lock()
		err := conn.WriteJSON(domain.PeerFrame{Type: domain.FramePing})
		c.mu.Unlock()
		if err != nil {
			return
		}
	}
}

// current reports whether gen is still the live connection generation, so
// loops belonging to a replaced connection exit quietly.
func (c *Channel) current(gen int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen && c.connected
}

func (c *Channel) handleClose(cause error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	wasConnected := c.connected
	c.connected = false
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	if c.cfg.Reachable != nil && !c.cfg.Reachable() {
		c.mu.Unlock()
		c.log.Warn().Err(cause).Msg("peer channel lost while offline, waiting for connectivity")
		if wasConnected && c.OnDisconnect != nil {
			c.OnDisconnect()
		}
		return
	}

	c.attempts++
	attempt := c.attempts
	if attempt > c.cfg.MaxReconnects {
		c.mu.Unlock()
		c.log.Error().Err(cause).
			Int("attempts", attempt-1).
			Msg("peer channel down, reconnect budget exhausted")
		if wasConnected && c.OnDisconnect != nil {
			c.OnDisconnect()
		}
		return
	}

	delay := nextDelay(c.cfg.ReconnectBase, attempt)
	c.retry = time.AfterFunc(delay, func() {
		if err := c.Connect(context.Background()); err != nil {
			c.log.Warn().Err(err).Int("attempt", attempt).Msg("peer reconnect failed")
			c.handleClose(err)
		}
	})
	c.mu.Unlock()

	c.log.Warn().Err(cause).
		Int("attempt", attempt).
		Dur("retryIn", delay).
		Msg("peer channel lost, scheduling reconnect")

	if wasConnected && c.OnDisconnect != nil {
		c.OnDisconnect()
	}
}

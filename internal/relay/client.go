package relay

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/loqui-chat/loqui/pkg/errors"
	"github.com/loqui-chat/loqui/pkg/metrics"
	"github.com/loqui-chat/loqui/pkg/packet"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = 45 * time.Second
	maxFrameSize   = 4096
	sendBufferSize = 256
	authorizeWait  = 5 * time.Second
)

// Connection states.
const (
	stateUnauthenticated int32 = iota
	stateAuthenticated
	stateClosed
)

// Authorizer validates a handshake token and resolves the user identity
// behind it. Failures carry the token error taxonomy.
type Authorizer interface {
	Authorize(ctx context.Context, token string) (string, error)
}

// Client owns one websocket connection and drives its lifecycle:
// unauthenticated until a valid handshake, then attached to the registry
// until close or transport error.
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	registry *Registry
	auth     Authorizer
	log      *zap.Logger

	state    atomic.Int32
	identity string

	handshakeTimeout time.Duration
	handshakeTimer   *time.Timer
}

// NewClient wraps an upgraded websocket connection. Start must be called to
// begin the pumps.
func NewClient(conn *websocket.Conn, registry *Registry, auth Authorizer, handshakeTimeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		conn:             conn,
		send:             make(chan []byte, sendBufferSize),
		registry:         registry,
		auth:             auth,
		log:              log.With(zap.String("module", "client"), zap.String("remote", conn.RemoteAddr().String())),
		handshakeTimeout: handshakeTimeout,
	}
}

// Start launches the read and write pumps. ctx bounds authorization calls
// made during the handshake.
func (c *Client) Start(ctx context.Context) {
	if c.handshakeTimeout > 0 {
		c.handshakeTimer = time.AfterFunc(c.handshakeTimeout, func() {
			if c.state.Load() == stateUnauthenticated {
				c.log.Info("closing connection: handshake timed out")
				c.conn.Close()
			}
		})
	}
	go c.writePump()
	go c.readPump(ctx)
}

// Deliver enqueues a payload for the write pump without blocking. A false
// return means the buffer is full and the payload was dropped.
func (c *Client) Deliver(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Close tears the connection down. The read pump's cleanup detaches the
// client from the registry.
func (c *Client) Close() {
	c.conn.Close()
}

// Identity returns the authenticated identity, or "" before the handshake.
func (c *Client) Identity() string {
	if c.state.Load() != stateAuthenticated {
		return ""
	}
	return c.identity
}

// readPump consumes inbound frames until the connection closes or faults,
// then defensively detaches the client.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.state.Store(stateClosed)
		if c.handshakeTimer != nil {
			c.handshakeTimer.Stop()
		}
		c.registry.Detach(c)
		c.conn.Close()
		c.log.Info("client disconnected", zap.String("identity", c.identity))
	}()

	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("transport error", zap.Error(err))
			}
			return
		}
		c.handleInbound(ctx, raw)
	}
}

// handleInbound runs the handshake state machine for one inbound frame.
func (c *Client) handleInbound(ctx context.Context, raw []byte) {
	if c.state.Load() == stateAuthenticated {
		// No re-authentication protocol: frames after the handshake are ignored.
		c.log.Debug("ignoring frame from authenticated client", zap.String("identity", c.identity))
		return
	}

	hs := packet.Decode(raw)
	if hs.Token == "" {
		c.reject(errors.ErrTokenMissing, "handshake message must carry a token field")
		return
	}

	authCtx, cancel := context.WithTimeout(ctx, authorizeWait)
	identity, err := c.auth.Authorize(authCtx, hs.Token)
	cancel()
	if err != nil {
		c.reject(err, "token was not accepted")
		return
	}

	c.identity = identity
	c.state.Store(stateAuthenticated)
	if c.handshakeTimer != nil {
		c.handshakeTimer.Stop()
	}
	c.registry.Attach(c, identity)

	pkt, err := packet.Encode(packet.VerbConnected, "", map[string]string{headerFor: identity}, nil)
	if err != nil {
		c.log.Error("failed to encode CONNECTED packet", zap.Error(err))
		return
	}
	c.Deliver(pkt)
	metrics.PacketsSent.WithLabelValues(packet.VerbConnected).Inc()
	c.log.Info("client authenticated", zap.String("identity", identity))
}

// reject sends an ERROR packet for a failed handshake attempt. The
// connection stays open; the client may retry.
func (c *Client) reject(cause error, details string) {
	code := errors.Code(cause)
	metrics.HandshakeFailures.WithLabelValues(failureLabel(code)).Inc()
	c.log.Info("handshake rejected", zap.Error(cause))

	body := errors.NewBody(code, cause.Error(), details)
	pkt, err := packet.Encode(packet.VerbError, "", nil, body)
	if err != nil {
		c.log.Error("failed to encode ERROR packet", zap.Error(err))
		return
	}
	if c.Deliver(pkt) {
		metrics.PacketsSent.WithLabelValues(packet.VerbError).Inc()
	}
}

// failureLabel maps a client-facing error code to a stable metric label.
func failureLabel(code int) string {
	switch code {
	case errors.CodeTokenMissing:
		return "token_missing"
	case errors.CodeTokenMalformed:
		return "token_malformed"
	case errors.CodeTokenNotFound:
		return "token_not_found"
	case errors.CodeTokenExpired:
		return "token_expired"
	default:
		return "other"
	}
}

// writePump drains the send channel to the socket and keeps the connection
// alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Warn("write error", zap.Error(err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Warn("ping error", zap.Error(err))
				return
			}
		}
	}
}

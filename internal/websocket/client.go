package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"solarchat/internal/config"
	"solarchat/internal/models"
	"solarchat/internal/services"
	"solarchat/internal/utils"
	"solarchat/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Fallbacks used when the corresponding configuration value is unset or
// non-positive.
const (
	// Time allowed to write a message to the peer
	defaultWriteWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	defaultPongWait = 60 * time.Second

	// Maximum frame size allowed from peer
	defaultMaxFrameSize = 64 * 1024

	// Buffer size for client send channel
	defaultSendBufferSize = 256

	// Time a connection may stay unjoined before it is dropped
	defaultJoinGrace = 30 * time.Second
)

// ConnState is the lifecycle state of one connection.
type ConnState int

const (
	// StateConnecting: transport open, no join event accepted yet.
	StateConnecting ConnState = iota
	// StateJoined: identity registered in the presence table.
	StateJoined
	// StateDisconnected: terminal; no further events are accepted.
	StateDisconnected
)

// Client is one live connection and its lifecycle state machine:
// connecting -> joined -> disconnected. The identity claim arrives
// verified at upgrade time; the explicit join event confirms it and
// registers presence.
type Client struct {
	// ID is the connection handle, unique per connection (not per
	// identity; one identity may hold several).
	ID string

	conn     *websocket.Conn
	hub      *Hub
	router   *Router
	sessions services.SessionStore

	send chan []byte

	mu        sync.RWMutex
	state     ConnState
	claim     models.Identity
	sessionID string

	connectedAt time.Time
	joinGrace   time.Duration

	writeWait    time.Duration
	pongWait     time.Duration
	maxFrameSize int64
}

// NewClient creates a client in the connecting state. The claim is the
// verified identity triple from the authentication collaborator. A
// non-positive grace falls back to the default join grace period;
// transport timings and buffer sizes come from configuration, with the
// package defaults as fallback.
func NewClient(conn *websocket.Conn, hub *Hub, router *Router, sessions services.SessionStore, claim models.Identity, grace time.Duration) *Client {
	cfg := config.Load()

	if grace <= 0 {
		grace = defaultJoinGrace
	}
	writeWait := cfg.WebSocket.WriteWait
	if writeWait <= 0 {
		writeWait = defaultWriteWait
	}
	pongWait := cfg.WebSocket.PongWait
	if pongWait <= 0 {
		pongWait = defaultPongWait
	}
	maxFrameSize := cfg.WebSocket.MaxMessageSize
	if maxFrameSize <= 0 {
		maxFrameSize = defaultMaxFrameSize
	}
	bufferSize := cfg.WebSocket.SendBufferSize
	if bufferSize <= 0 {
		bufferSize = defaultSendBufferSize
	}

	return &Client{
		ID:           uuid.NewString(),
		conn:         conn,
		hub:          hub,
		router:       router,
		sessions:     sessions,
		send:         make(chan []byte, bufferSize),
		state:        StateConnecting,
		claim:        claim,
		connectedAt:  time.Now(),
		joinGrace:    grace,
		writeWait:    writeWait,
		pongWait:     pongWait,
		maxFrameSize: maxFrameSize,
	}
}

// Identity returns the connection's identity claim.
func (c *Client) Identity() models.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.claim
}

// State returns the current lifecycle state.
func (c *Client) State() ConnState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// SessionID returns the chat session resolved at join, if any.
func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// ReadPump pumps events from the WebSocket connection into the state
// machine. Events for one connection are processed strictly one at a
// time, which preserves per-connection message ordering across the
// persist/deliver suspension points.
func (c *Client) ReadPump() {
	defer c.disconnect()

	c.conn.SetReadLimit(c.maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
		return nil
	})

	// Drop connections that never send a valid join.
	graceTimer := time.AfterFunc(c.joinGrace, func() {
		if c.State() == StateConnecting {
			logger.LogChatEvent("join_grace_expired", c.claim.ID, map[string]interface{}{
				"connection_id": c.ID,
			})
			c.conn.Close()
		}
	})
	defer graceTimer.Stop()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.WithError(err).WithField("user_id", c.claim.ID).Error("WebSocket read error")
			}
			break
		}

		ev, err := DecodeEvent(data)
		if err != nil {
			c.sendAck(false, fmt.Sprintf("invalid event format: %v", err))
			continue
		}

		c.handleEvent(ev)
	}
}

// WritePump pumps queued frames to the WebSocket connection and keeps
// the transport alive with pings.
func (c *Client) WritePump() {
	// Ping period stays under the pong wait so the read deadline is
	// always refreshed in time.
	ticker := time.NewTicker((c.pongWait * 9) / 10)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleEvent dispatches one inbound event according to the lifecycle
// state. Nothing is accepted after disconnect.
func (c *Client) handleEvent(ev *Event) {
	if c.State() == StateDisconnected {
		return
	}

	switch ev.Type {
	case EventJoin:
		var payload JoinPayload
		if err := ev.decodePayload(&payload); err != nil {
			c.sendAck(false, fmt.Sprintf("invalid join payload: %v", err))
			return
		}
		c.handleJoin(payload)

	case EventSend:
		var payload SendPayload
		if err := ev.decodePayload(&payload); err != nil {
			c.sendAck(false, fmt.Sprintf("invalid send payload: %v", err))
			return
		}
		c.handleSend(payload.Message, ParseRecipient(payload.RecipientID), payload.Timestamp)

	case EventMentorReply:
		var payload MentorReplyPayload
		if err := ev.decodePayload(&payload); err != nil {
			c.sendAck(false, fmt.Sprintf("invalid mentor-reply payload: %v", err))
			return
		}
		c.handleMentorReply(payload)

	default:
		c.sendEvent(NewEvent(EventError, map[string]interface{}{
			"error": fmt.Sprintf("unknown event type: %s", ev.Type),
		}))
	}
}

// handleJoin validates the join payload against the verified claim,
// resolves the user's chat session, and registers presence. The claim is
// authoritative for name and role; the payload must name the same
// identity.
func (c *Client) handleJoin(payload JoinPayload) {
	if c.State() == StateJoined {
		c.sendEvent(NewEvent(EventError, map[string]interface{}{
			"error": "already joined",
		}))
		return
	}

	if err := utils.ValidateStruct(payload); err != nil {
		c.sendAck(false, fmt.Sprintf("invalid join payload: %v", err))
		return
	}
	if payload.UserID != c.claim.ID {
		c.sendAck(false, "join payload does not match authenticated identity")
		return
	}
	if err := c.claim.Validate(); err != nil {
		c.sendAck(false, fmt.Sprintf("invalid identity claim: %v", err))
		return
	}

	// Regular users get a session resolved before presence goes live;
	// a failed session lookup leaves the connection in connecting state.
	if c.claim.Role == models.RoleUser {
		session, err := c.sessions.FindOrCreateOpen(context.Background(), c.claim.ID, c.claim.Name)
		if err != nil {
			c.sendSystemMessage("Unable to start your support session. Please try again.")
			c.sendAck(false, "failed to resolve chat session")
			return
		}
		c.mu.Lock()
		c.sessionID = session.ID.Hex()
		c.mu.Unlock()
	}

	c.mu.Lock()
	c.state = StateJoined
	c.mu.Unlock()

	c.hub.Register(c)

	logger.LogChatEvent("client_joined", c.claim.ID, map[string]interface{}{
		"connection_id": c.ID,
		"role":          c.claim.Role,
		"session_id":    c.SessionID(),
	})
}

// handleSend routes a message through the router. Requires joined state.
func (c *Client) handleSend(content string, recipient Recipient, timestamp *time.Time) {
	if c.State() != StateJoined {
		c.sendAck(false, "join required before sending")
		return
	}
	c.router.HandleSend(c, content, recipient, timestamp)
}

// handleMentorReply is the mentor-origin path: only staff may use it and
// the target is always one specific user.
func (c *Client) handleMentorReply(payload MentorReplyPayload) {
	if c.State() != StateJoined {
		c.sendAck(false, "join required before sending")
		return
	}
	if !c.Identity().IsStaff() {
		c.sendAck(false, "mentor-reply requires a mentor role")
		return
	}
	if payload.RecipientUserID == "" {
		c.sendAck(false, "recipientUserId is required")
		return
	}
	c.router.HandleSend(c, payload.Message, SpecificUser(payload.RecipientUserID), nil)
}

// disconnect moves the connection to its terminal state. In-flight
// routing started before the disconnect still runs to completion; only
// the presence entry goes away here.
func (c *Client) disconnect() {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	wasJoined := c.state == StateJoined
	c.state = StateDisconnected
	c.mu.Unlock()

	if wasJoined {
		c.hub.Unregister(c)
	}
	if c.conn != nil {
		c.conn.Close()
	}

	logger.LogChatEvent("client_disconnected", c.claim.ID, map[string]interface{}{
		"connection_id": c.ID,
		"duration_s":    time.Since(c.connectedAt).Seconds(),
	})
}

// sendEvent queues an event frame for the write pump. A full buffer
// drops the frame: the client will recover missed messages through the
// pull-based history query.
func (c *Client) sendEvent(ev *Event) {
	frame, err := ev.Encode()
	if err != nil {
		logger.WithError(err).Error("Failed to encode event")
		return
	}

	select {
	case c.send <- frame:
	default:
		logger.WithField("user_id", c.claim.ID).Warn("Client send buffer full, dropping frame")
	}
}

// sendAck acknowledges a send to this connection only.
func (c *Client) sendAck(success bool, errMsg string) {
	c.sendEvent(NewEvent(EventSendAck, AckPayload{
		Success: success,
		Error:   errMsg,
	}))
}

// sendSystemMessage inserts a synthesized system-type message into this
// connection's own message list, the user-visible failure surface.
func (c *Client) sendSystemMessage(content string) {
	c.sendEvent(NewEvent(EventReceive, ReceivePayload{
		Message:     content,
		Sender:      "System",
		SenderID:    "system",
		Timestamp:   time.Now(),
		MessageType: models.MessageTypeSystem,
	}))
}

// decodePayload unmarshals the event payload into dst.
func (e *Event) decodePayload(dst interface{}) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("payload is required")
	}
	return json.Unmarshal(e.Payload, dst)
}

package websocket

import (
	"context"
	"time"

	"solarchat/internal/config"
	"solarchat/internal/models"
	"solarchat/internal/services"
	"solarchat/pkg/logger"
)

// Router decides message routing and applies the side effects of every
// send: validate, persist, resolve delivery targets from the presence
// table, push, echo, acknowledge. Persistence happens strictly before
// delivery, so a storage failure never leaks a half-delivered message.
type Router struct {
	hub              *Hub
	messages         services.MessageStore
	sessions         services.SessionStore
	maxMessageLength int
}

// NewRouter wires the router to the presence hub and the stores. The
// message length limit comes from configuration.
func NewRouter(hub *Hub, messages services.MessageStore, sessions services.SessionStore) *Router {
	cfg := config.Load()

	return &Router{
		hub:              hub,
		messages:         messages,
		sessions:         sessions,
		maxMessageLength: cfg.Chat.MaxMessageLength,
	}
}

// HandleSend routes one send event from an originating connection.
//
// User-role senders broadcast to every connected mentor and admin; the
// wire recipient "mentor" means exactly that pool. Mentor-role senders
// target one user's live connections. Either way the persisted message
// is echoed to the sender's other connections for multi-tab consistency,
// and the originating connection gets a send-ack.
func (r *Router) HandleSend(c *Client, content string, recipient Recipient, timestamp *time.Time) {
	sender := c.Identity()

	if err := models.ValidateContent(content, r.maxMessageLength); err != nil {
		c.sendSystemMessage(err.Error())
		c.sendAck(false, err.Error())
		return
	}

	ts := time.Now()
	if timestamp != nil && !timestamp.IsZero() {
		ts = *timestamp
	}

	msg := &models.Message{
		Content:     content,
		Sender:      sender.ID,
		SenderName:  sender.Name,
		SenderType:  sender.SenderType(),
		RecipientID: recipient.Wire(),
		IsRead:      false,
		Timestamp:   ts,
		MessageType: models.MessageTypeText,
		Status:      models.MessageStatusSent,
	}

	sessionID := r.resolveSessionID(c, sender, recipient)
	msg.ChatSessionID = sessionID

	if err := r.messages.Insert(context.Background(), msg); err != nil {
		c.sendSystemMessage("Your message could not be delivered. Please try again.")
		c.sendAck(false, "failed to store message")
		return
	}

	r.updateSession(sender, sessionID)

	targets := r.deliveryTargets(sender, recipient)

	receive := NewEvent(EventReceive, ReceivePayload{
		Message:     msg.Content,
		Sender:      msg.SenderName,
		SenderID:    msg.Sender,
		Timestamp:   msg.Timestamp,
		MessageType: msg.MessageType,
	})

	delivered := 0
	for _, target := range targets {
		target.sendEvent(receive)
		delivered++
	}

	// Echo to the sender's other tabs; the originating connection
	// already holds the message as optimistic local state.
	for _, own := range r.hub.ConnectionsFor(sender.ID) {
		if own == c {
			continue
		}
		own.sendEvent(receive)
	}

	c.sendAck(true, "")

	logger.LogChatEvent("message_routed", sender.ID, map[string]interface{}{
		"recipient":   msg.RecipientID,
		"sender_type": msg.SenderType,
		"delivered":   delivered,
		"session_id":  sessionID,
	})
}

// deliveryTargets resolves the live connections a message should be
// pushed to. An empty result is a delivery miss, not an error: the
// message is durable and surfaces through the history query.
func (r *Router) deliveryTargets(sender models.Identity, recipient Recipient) []*Client {
	if sender.IsStaff() {
		return r.hub.ConnectionsFor(recipient.UserID())
	}
	return r.hub.AllMentorConnections()
}

// resolveSessionID finds the chat session a message belongs to. User
// senders carry the session resolved at join; mentor senders inherit the
// recipient user's open session when one exists.
func (r *Router) resolveSessionID(c *Client, sender models.Identity, recipient Recipient) string {
	if !sender.IsStaff() {
		return c.SessionID()
	}

	if recipient.IsAnyMentor() {
		return ""
	}

	session, err := r.sessions.FindOpenByUser(context.Background(), recipient.UserID())
	if err != nil || session == nil {
		return ""
	}
	return session.ID.Hex()
}

// updateSession applies the session-side effects of a routed message:
// activity bump always, mentor attachment on a mentor's first reply.
// These follow the durable message write and are best-effort; a failure
// here never fails the send.
func (r *Router) updateSession(sender models.Identity, sessionID string) {
	if sessionID == "" {
		return
	}

	ctx := context.Background()

	if sender.IsStaff() {
		if err := r.sessions.AssignMentor(ctx, sessionID, sender.ID); err != nil {
			logger.WithError(err).WithField("session_id", sessionID).Warn("Failed to assign mentor to session")
		}
	}

	if err := r.sessions.TouchActivity(ctx, sessionID); err != nil {
		logger.WithError(err).WithField("session_id", sessionID).Warn("Failed to update session activity")
	}
}

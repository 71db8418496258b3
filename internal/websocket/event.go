package websocket

import (
	"encoding/json"
	"time"

	"solarchat/internal/models"
)

// EventType identifies the logical message shape on the live channel.
type EventType string

const (
	// Client to server
	EventJoin        EventType = "join"
	EventSend        EventType = "send"
	EventMentorReply EventType = "mentor-reply"

	// Server to client
	EventReceive EventType = "receive"
	EventSendAck EventType = "send-ack"

	// Server to mentors
	EventUserJoined EventType = "user-joined"
	EventUserLeft   EventType = "user-left"

	EventError EventType = "error"
)

// Event is the wire envelope for everything on the live channel.
type Event struct {
	Type      EventType       `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// JoinPayload carries the identity triple on the explicit join event.
type JoinPayload struct {
	UserName string `json:"userName" validate:"required"`
	UserID   string `json:"userId" validate:"required"`
	UserType string `json:"userType" validate:"required,oneof=user mentor admin"`
}

// SendPayload is a user-origin message.
type SendPayload struct {
	Message     string     `json:"message"`
	RecipientID string     `json:"recipientId"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

// MentorReplyPayload is a mentor-origin message targeted at one user.
type MentorReplyPayload struct {
	Message         string `json:"message"`
	RecipientUserID string `json:"recipientUserId"`
}

// ReceivePayload is the delivery shape pushed to recipients.
type ReceivePayload struct {
	Message     string    `json:"message"`
	Sender      string    `json:"sender"`
	SenderID    string    `json:"senderId"`
	Timestamp   time.Time `json:"timestamp"`
	MessageType string    `json:"messageType"`
}

// AckPayload acknowledges a send to the originating connection.
type AckPayload struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// PresenceUser is one entry in the mentor-visible user list.
type PresenceUser struct {
	UserID   string    `json:"userId"`
	UserName string    `json:"userName"`
	JoinedAt time.Time `json:"joinedAt"`
}

// PresencePayload carries the full active-user list on presence
// broadcasts.
type PresencePayload struct {
	Users []PresenceUser `json:"users"`
}

// NewEvent wraps a payload into an envelope. Marshalling a payload built
// from our own types does not fail; errors would indicate a programming
// mistake, so the payload is dropped and the envelope still carries the
// type.
func NewEvent(eventType EventType, payload interface{}) *Event {
	ev := &Event{
		Type:      eventType,
		Timestamp: time.Now(),
	}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			ev.Payload = data
		}
	}
	return ev
}

// Encode converts the event to JSON bytes.
func (e *Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEvent parses an inbound frame.
func DecodeEvent(data []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// Recipient is the routing target of a message: either one specific user
// or any connected mentor. The literal wire value "mentor" selects the
// latter.
type Recipient struct {
	userID    string
	anyMentor bool
}

// ParseRecipient interprets the wire recipient value.
func ParseRecipient(raw string) Recipient {
	if raw == "" || raw == models.RecipientAnyMentor {
		return AnyMentor()
	}
	return SpecificUser(raw)
}

// SpecificUser targets one user's live connections.
func SpecificUser(userID string) Recipient {
	return Recipient{userID: userID}
}

// AnyMentor targets every connected mentor and admin.
func AnyMentor() Recipient {
	return Recipient{anyMentor: true}
}

// IsAnyMentor reports whether the recipient is the mentor pool.
func (r Recipient) IsAnyMentor() bool {
	return r.anyMentor
}

// UserID returns the targeted user id; empty for the mentor pool.
func (r Recipient) UserID() string {
	return r.userID
}

// Wire returns the stored recipient_id value.
func (r Recipient) Wire() string {
	if r.anyMentor {
		return models.RecipientAnyMentor
	}
	return r.userID
}

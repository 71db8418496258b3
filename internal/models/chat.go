package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roles carried by the identity claim.
const (
	RoleUser   = "user"
	RoleMentor = "mentor"
	RoleAdmin  = "admin"
)

// Sender types stored on messages.
const (
	SenderTypeUser   = "user"
	SenderTypeMentor = "mentor"
	SenderTypeSystem = "system"
)

// Session statuses.
const (
	SessionWaiting = "waiting"
	SessionActive  = "active"
	SessionClosed  = "closed"
)

// Message statuses.
const (
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
)

// Message types.
const (
	MessageTypeText     = "text"
	MessageTypeSystem   = "system"
	MessageTypeFile     = "file"
	MessageTypeImage    = "image"
	MessageTypeDocument = "document"
)

// RecipientAnyMentor is the wire value meaning "any connected mentor".
const RecipientAnyMentor = "mentor"

// MaxMessageLength is the maximum accepted message content length.
const MaxMessageLength = 1000

// Identity is the trusted {id, name, role} triple attached to a connection.
// It is supplied by the authentication collaborator and never re-validated.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// IsStaff reports whether the identity belongs to mentor-side staff.
func (i Identity) IsStaff() bool {
	return i.Role == RoleMentor || i.Role == RoleAdmin
}

// SenderType maps the identity role to the stored sender type.
func (i Identity) SenderType() string {
	if i.IsStaff() {
		return SenderTypeMentor
	}
	return SenderTypeUser
}

// Validate checks that the identity claim is well-formed.
func (i Identity) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return fmt.Errorf("identity id is required")
	}
	if strings.TrimSpace(i.Name) == "" {
		return fmt.Errorf("identity name is required")
	}
	if !ValidRole(i.Role) {
		return fmt.Errorf("unknown role: %s", i.Role)
	}
	return nil
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleMentor, RoleAdmin:
		return true
	}
	return false
}

// ChatSession is one bounded support conversation between a user and
// (eventually) one mentor. At most one session per user may be open
// (waiting or active) at a time.
type ChatSession struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID       string             `bson:"user_id" json:"userId"`
	UserName     string             `bson:"user_name" json:"userName"`
	MentorID     string             `bson:"mentor_id,omitempty" json:"mentorId,omitempty"`
	Status       string             `bson:"status" json:"status"` // waiting, active, closed
	StartTime    time.Time          `bson:"start_time" json:"startTime"`
	EndTime      *time.Time         `bson:"end_time,omitempty" json:"endTime,omitempty"`
	LastActivity time.Time          `bson:"last_activity" json:"lastActivity"`
	MessageCount int64              `bson:"message_count" json:"messageCount"`
	Rating       *int               `bson:"rating,omitempty" json:"rating,omitempty"` // 1..5
	Feedback     string             `bson:"feedback,omitempty" json:"feedback,omitempty"`
}

// IsOpen reports whether the session still accepts messages.
func (s *ChatSession) IsOpen() bool {
	return s.Status == SessionWaiting || s.Status == SessionActive
}

// Message is a single chat message. Content is immutable once stored;
// only the read state (is_read, read_at, status) may change afterwards.
type Message struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Content       string             `bson:"content" json:"content"`
	Sender        string             `bson:"sender" json:"sender"`
	SenderName    string             `bson:"sender_name" json:"senderName"`
	SenderType    string             `bson:"sender_type" json:"senderType"` // user, mentor, system
	RecipientID   string             `bson:"recipient_id" json:"recipientId"`
	RecipientName string             `bson:"recipient_name,omitempty" json:"recipientName,omitempty"`
	IsRead        bool               `bson:"is_read" json:"isRead"`
	ReadAt        *time.Time         `bson:"read_at,omitempty" json:"readAt,omitempty"`
	Timestamp     time.Time          `bson:"timestamp" json:"timestamp"`
	MessageType   string             `bson:"message_type" json:"messageType"` // text, system, file, image, document
	Status        string             `bson:"status" json:"status"`            // sent, delivered, read
	ChatSessionID string             `bson:"chat_session_id,omitempty" json:"chatSessionId,omitempty"`
	ReplyTo       string             `bson:"reply_to,omitempty" json:"replyTo,omitempty"`
}

// ValidateContent checks message content against the routing rules:
// empty after trimming is rejected, as is anything over maxLength
// characters. Length is counted in runes, not bytes, so multibyte
// content is not penalized. A non-positive maxLength falls back to
// MaxMessageLength.
func ValidateContent(content string, maxLength int) error {
	if maxLength <= 0 {
		maxLength = MaxMessageLength
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("message content is empty")
	}
	if utf8.RuneCountInString(content) > maxLength {
		return fmt.Errorf("message content exceeds %d characters", maxLength)
	}
	return nil
}

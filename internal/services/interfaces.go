package services

import (
	"context"

	"solarchat/internal/models"
)

// SessionStore persists chat sessions. Implementations must make
// FindOrCreateOpen atomic so that concurrent joins from the same user's
// tabs never produce two open sessions.
type SessionStore interface {
	// FindOrCreateOpen returns the user's open session (waiting or active),
	// creating one with status waiting if none exists.
	FindOrCreateOpen(ctx context.Context, userID, userName string) (*models.ChatSession, error)

	// GetByID returns a session by its id.
	GetByID(ctx context.Context, sessionID string) (*models.ChatSession, error)

	// FindOpenByUser returns the user's open session, or nil when the
	// user has none.
	FindOpenByUser(ctx context.Context, userID string) (*models.ChatSession, error)

	// AssignMentor attaches a mentor to the session and moves it to active.
	AssignMentor(ctx context.Context, sessionID, mentorID string) error

	// TouchActivity bumps last_activity and the message counter.
	TouchActivity(ctx context.Context, sessionID string) error

	// Close moves the session to closed, stamping end_time and recording
	// the optional rating and feedback.
	Close(ctx context.Context, sessionID string, rating *int, feedback string) (*models.ChatSession, error)

	// ListActive returns sessions in waiting or active state.
	ListActive(ctx context.Context) ([]models.ChatSession, error)

	// Stats aggregates session counts and ratings.
	Stats(ctx context.Context) (*SessionStats, error)
}

// MessageStore persists chat messages and serves the pull-based history
// queries.
type MessageStore interface {
	// Insert stores a new message and fills in its generated id.
	Insert(ctx context.Context, msg *models.Message) error

	// Conversation returns the thread between a user and a mentor,
	// oldest first. As a side effect it marks the user's unread messages
	// to that mentor as read (idempotent; is_read only ever goes
	// false to true).
	Conversation(ctx context.Context, userID, mentorID string, limit int64) ([]models.Message, error)

	// HistoryForUser returns messages sent by or addressed to the user,
	// oldest first.
	HistoryForUser(ctx context.Context, userID string, limit int64) ([]models.Message, error)

	// MarkThreadRead bulk-marks messages from userID to mentorID as read
	// and returns how many were updated.
	MarkThreadRead(ctx context.Context, userID, mentorID string) (int64, error)

	// UnreadTotal counts unread messages across all threads.
	UnreadTotal(ctx context.Context) (int64, error)
}

// SessionStats is the aggregation served by the admin stats endpoint.
type SessionStats struct {
	TotalSessions   int64    `json:"totalSessions"`
	WaitingSessions int64    `json:"waitingSessions"`
	ActiveSessions  int64    `json:"activeSessions"`
	ClosedSessions  int64    `json:"closedSessions"`
	AverageRating   *float64 `json:"averageRating,omitempty"`
}

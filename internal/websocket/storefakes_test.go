package websocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"solarchat/internal/models"
	"solarchat/internal/services"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memSessionStore is an in-memory SessionStore for router and lifecycle
// tests.
type memSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*models.ChatSession // hex id -> session
	creates  int
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{sessions: make(map[string]*models.ChatSession)}
}

func (s *memSessionStore) FindOrCreateOpen(_ context.Context, userID, userName string) (*models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, session := range s.sessions {
		if session.UserID == userID && session.IsOpen() {
			copied := *session
			return &copied, nil
		}
	}

	now := time.Now()
	session := &models.ChatSession{
		ID:           primitive.NewObjectID(),
		UserID:       userID,
		UserName:     userName,
		Status:       models.SessionWaiting,
		StartTime:    now,
		LastActivity: now,
	}
	s.sessions[session.ID.Hex()] = session
	s.creates++

	copied := *session
	return &copied, nil
}

func (s *memSessionStore) GetByID(_ context.Context, sessionID string) (*models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session not found")
	}
	copied := *session
	return &copied, nil
}

func (s *memSessionStore) FindOpenByUser(_ context.Context, userID string) (*models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, session := range s.sessions {
		if session.UserID == userID && session.IsOpen() {
			copied := *session
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *memSessionStore) AssignMentor(_ context.Context, sessionID, mentorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok || !session.IsOpen() {
		return nil
	}
	session.MentorID = mentorID
	session.Status = models.SessionActive
	session.LastActivity = time.Now()
	return nil
}

func (s *memSessionStore) TouchActivity(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[sessionID]; ok {
		session.LastActivity = time.Now()
		session.MessageCount++
	}
	return nil
}

func (s *memSessionStore) Close(_ context.Context, sessionID string, rating *int, feedback string) (*models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session not found")
	}

	now := time.Now()
	session.Status = models.SessionClosed
	session.EndTime = &now
	session.LastActivity = now
	if rating != nil {
		session.Rating = rating
	}
	if feedback != "" {
		session.Feedback = feedback
	}

	copied := *session
	return &copied, nil
}

func (s *memSessionStore) ListActive(_ context.Context) ([]models.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := make([]models.ChatSession, 0)
	for _, session := range s.sessions {
		if session.IsOpen() {
			active = append(active, *session)
		}
	}
	return active, nil
}

func (s *memSessionStore) Stats(_ context.Context) (*services.SessionStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &services.SessionStats{}
	for _, session := range s.sessions {
		stats.TotalSessions++
		switch session.Status {
		case models.SessionWaiting:
			stats.WaitingSessions++
		case models.SessionActive:
			stats.ActiveSessions++
		case models.SessionClosed:
			stats.ClosedSessions++
		}
	}
	return stats, nil
}

// memMessageStore is an in-memory MessageStore. Setting failInsert makes
// every Insert fail, for persistence-error paths.
type memMessageStore struct {
	mu         sync.Mutex
	messages   []*models.Message
	failInsert bool
}

func newMemMessageStore() *memMessageStore {
	return &memMessageStore{}
}

func (s *memMessageStore) Insert(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failInsert {
		return fmt.Errorf("storage unavailable")
	}

	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	copied := *msg
	s.messages = append(s.messages, &copied)
	return nil
}

func (s *memMessageStore) Conversation(ctx context.Context, userID, mentorID string, limit int64) ([]models.Message, error) {
	if _, err := s.MarkThreadRead(ctx, userID, mentorID); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]models.Message, 0)
	for _, msg := range s.messages {
		inThread := (msg.Sender == userID && (msg.RecipientID == mentorID || msg.RecipientID == models.RecipientAnyMentor)) ||
			(msg.Sender == mentorID && msg.RecipientID == userID)
		if inThread {
			result = append(result, *msg)
		}
		if limit > 0 && int64(len(result)) >= limit {
			break
		}
	}
	return result, nil
}

func (s *memMessageStore) HistoryForUser(_ context.Context, userID string, limit int64) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]models.Message, 0)
	for _, msg := range s.messages {
		if msg.Sender == userID || msg.RecipientID == userID {
			result = append(result, *msg)
		}
		if limit > 0 && int64(len(result)) >= limit {
			break
		}
	}
	return result, nil
}

func (s *memMessageStore) MarkThreadRead(_ context.Context, userID, mentorID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated int64
	now := time.Now()
	for _, msg := range s.messages {
		if msg.Sender != userID || msg.IsRead {
			continue
		}
		if msg.RecipientID != mentorID && msg.RecipientID != models.RecipientAnyMentor {
			continue
		}
		msg.IsRead = true
		msg.ReadAt = &now
		msg.Status = models.MessageStatusRead
		updated++
	}
	return updated, nil
}

func (s *memMessageStore) UnreadTotal(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for _, msg := range s.messages {
		if !msg.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *memMessageStore) all() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]models.Message, 0, len(s.messages))
	for _, msg := range s.messages {
		result = append(result, *msg)
	}
	return result
}

var _ services.SessionStore = (*memSessionStore)(nil)
var _ services.MessageStore = (*memMessageStore)(nil)

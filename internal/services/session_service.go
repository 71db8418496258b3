package services

import (
	"context"
	"fmt"
	"time"

	"solarchat/internal/models"
	"solarchat/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SessionService is the MongoDB-backed SessionStore.
type SessionService struct {
	collection *mongo.Collection
	timeout    time.Duration
}

// NewSessionService creates a SessionService over the chat_sessions
// collection.
func NewSessionService(db *mongo.Database, timeout time.Duration) *SessionService {
	return &SessionService{
		collection: db.Collection("chat_sessions"),
		timeout:    timeout,
	}
}

var openStatuses = bson.A{models.SessionWaiting, models.SessionActive}

// FindOrCreateOpen resolves the user's open session or creates a waiting
// one. The lookup and insert are a single upsert so concurrent joins from
// multiple tabs cannot race into duplicate open sessions.
func (s *SessionService) FindOrCreateOpen(ctx context.Context, userID, userName string) (*models.ChatSession, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := time.Now()

	filter := bson.M{
		"user_id": userID,
		"status":  bson.M{"$in": openStatuses},
	}
	update := bson.M{
		"$setOnInsert": bson.M{
			"user_id":       userID,
			"user_name":     userName,
			"status":        models.SessionWaiting,
			"start_time":    now,
			"last_activity": now,
			"message_count": int64(0),
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var session models.ChatSession
	err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&session)
	if err != nil {
		logger.WithError(err).WithField("user_id", userID).Error("Failed to resolve chat session")
		return nil, fmt.Errorf("failed to resolve chat session: %w", err)
	}

	return &session, nil
}

// GetByID returns a session by its hex id.
func (s *SessionService) GetByID(ctx context.Context, sessionID string) (*models.ChatSession, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(sessionID)
	if err != nil {
		return nil, fmt.Errorf("invalid session id: %w", err)
	}

	var session models.ChatSession
	err = s.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("session not found")
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &session, nil
}

// FindOpenByUser returns the user's open session, or nil when the user
// has none.
func (s *SessionService) FindOpenByUser(ctx context.Context, userID string) (*models.ChatSession, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	filter := bson.M{
		"user_id": userID,
		"status":  bson.M{"$in": openStatuses},
	}

	var session models.ChatSession
	err := s.collection.FindOne(ctx, filter).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find open session: %w", err)
	}

	return &session, nil
}

// AssignMentor attaches a mentor to an open session and activates it.
// A closed session is left untouched.
func (s *SessionService) AssignMentor(ctx context.Context, sessionID, mentorID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(sessionID)
	if err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}

	filter := bson.M{
		"_id":    objectID,
		"status": bson.M{"$in": openStatuses},
	}
	update := bson.M{
		"$set": bson.M{
			"mentor_id":     mentorID,
			"status":        models.SessionActive,
			"last_activity": time.Now(),
		},
	}

	if _, err := s.collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to assign mentor: %w", err)
	}

	return nil
}

// TouchActivity bumps last_activity and the message counter.
func (s *SessionService) TouchActivity(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(sessionID)
	if err != nil {
		return fmt.Errorf("invalid session id: %w", err)
	}

	update := bson.M{
		"$set": bson.M{"last_activity": time.Now()},
		"$inc": bson.M{"message_count": int64(1)},
	}

	if _, err := s.collection.UpdateByID(ctx, objectID, update); err != nil {
		return fmt.Errorf("failed to touch session activity: %w", err)
	}

	return nil
}

// Close ends the session, stamping end_time and recording the optional
// rating and feedback.
func (s *SessionService) Close(ctx context.Context, sessionID string, rating *int, feedback string) (*models.ChatSession, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(sessionID)
	if err != nil {
		return nil, fmt.Errorf("invalid session id: %w", err)
	}

	now := time.Now()
	set := bson.M{
		"status":        models.SessionClosed,
		"end_time":      now,
		"last_activity": now,
	}
	if rating != nil {
		set["rating"] = *rating
	}
	if feedback != "" {
		set["feedback"] = feedback
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var session models.ChatSession
	err = s.collection.FindOneAndUpdate(ctx, bson.M{"_id": objectID}, bson.M{"$set": set}, opts).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("session not found")
		}
		logger.WithError(err).WithField("session_id", sessionID).Error("Failed to close chat session")
		return nil, fmt.Errorf("failed to close session: %w", err)
	}

	logger.LogChatEvent("session_closed", session.UserID, map[string]interface{}{
		"session_id": sessionID,
		"rating":     rating,
	})

	return &session, nil
}

// ListActive returns sessions in waiting or active state, oldest first.
func (s *SessionService) ListActive(ctx context.Context) ([]models.ChatSession, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}})

	cursor, err := s.collection.Find(ctx, bson.M{"status": bson.M{"$in": openStatuses}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}
	defer cursor.Close(ctx)

	sessions := make([]models.ChatSession, 0)
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}

	return sessions, nil
}

// Stats aggregates per-status session counts and the average rating of
// rated sessions.
func (s *SessionService) Stats(ctx context.Context) (*SessionStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate session stats: %w", err)
	}
	defer cursor.Close(ctx)

	var counts []struct {
		Status string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &counts); err != nil {
		return nil, fmt.Errorf("failed to decode session stats: %w", err)
	}

	stats := &SessionStats{}
	for _, c := range counts {
		stats.TotalSessions += c.Count
		switch c.Status {
		case models.SessionWaiting:
			stats.WaitingSessions = c.Count
		case models.SessionActive:
			stats.ActiveSessions = c.Count
		case models.SessionClosed:
			stats.ClosedSessions = c.Count
		}
	}

	ratingPipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"rating": bson.M{"$exists": true}}}},
		{{Key: "$group", Value: bson.M{
			"_id":        nil,
			"avg_rating": bson.M{"$avg": "$rating"},
		}}},
	}

	ratingCursor, err := s.collection.Aggregate(ctx, ratingPipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate ratings: %w", err)
	}
	defer ratingCursor.Close(ctx)

	var ratings []struct {
		AvgRating float64 `bson:"avg_rating"`
	}
	if err := ratingCursor.All(ctx, &ratings); err != nil {
		return nil, fmt.Errorf("failed to decode rating stats: %w", err)
	}
	if len(ratings) > 0 {
		stats.AverageRating = &ratings[0].AvgRating
	}

	return stats, nil
}

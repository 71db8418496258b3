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

// MessageService is the MongoDB-backed MessageStore.
type MessageService struct {
	collection *mongo.Collection
	timeout    time.Duration
}

// NewMessageService creates a MessageService over the messages collection.
func NewMessageService(db *mongo.Database, timeout time.Duration) *MessageService {
	return &MessageService{
		collection: db.Collection("messages"),
		timeout:    timeout,
	}
}

// Insert stores a new message and fills in its generated id.
func (s *MessageService) Insert(ctx context.Context, msg *models.Message) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	_, err := s.collection.InsertOne(ctx, msg)
	if err != nil {
		logger.WithError(err).WithField("sender", msg.Sender).Error("Failed to store message")
		return fmt.Errorf("failed to store message: %w", err)
	}

	return nil
}

// Conversation returns the thread between a user and a mentor, oldest
// first. Fetching the thread marks the user's unread messages to that
// mentor as read.
func (s *MessageService) Conversation(ctx context.Context, userID, mentorID string, limit int64) ([]models.Message, error) {
	if _, err := s.MarkThreadRead(ctx, userID, mentorID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// Both directions of the pair, plus the user's broadcasts to any
	// mentor, which belong to the same thread.
	filter := bson.M{
		"$or": bson.A{
			bson.M{"sender": userID, "recipient_id": mentorID},
			bson.M{"sender": mentorID, "recipient_id": userID},
			bson.M{"sender": userID, "recipient_id": models.RecipientAnyMentor},
		},
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	defer cursor.Close(ctx)

	messages := make([]models.Message, 0)
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode conversation: %w", err)
	}

	return messages, nil
}

// HistoryForUser returns messages sent by or addressed to the user,
// oldest first.
func (s *MessageService) HistoryForUser(ctx context.Context, userID string, limit int64) ([]models.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	filter := bson.M{
		"$or": bson.A{
			bson.M{"sender": userID},
			bson.M{"recipient_id": userID},
		},
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer cursor.Close(ctx)

	messages := make([]models.Message, 0)
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}

	return messages, nil
}

// MarkThreadRead bulk-marks the user's unread messages to the mentor as
// read. The filter matches only unread messages, so repeating the call is
// a no-op: is_read only ever transitions false to true.
func (s *MessageService) MarkThreadRead(ctx context.Context, userID, mentorID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	filter := bson.M{
		"sender":  userID,
		"is_read": false,
		"recipient_id": bson.M{
			"$in": bson.A{mentorID, models.RecipientAnyMentor},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"is_read": true,
			"read_at": time.Now(),
			"status":  models.MessageStatusRead,
		},
	}

	result, err := s.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		logger.WithError(err).WithFields(map[string]interface{}{
			"user_id":   userID,
			"mentor_id": mentorID,
		}).Error("Failed to mark thread read")
		return 0, fmt.Errorf("failed to mark thread read: %w", err)
	}

	return result.ModifiedCount, nil
}

// UnreadTotal counts unread messages across all threads.
func (s *MessageService) UnreadTotal(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	count, err := s.collection.CountDocuments(ctx, bson.M{"is_read": false})
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}

	return count, nil
}

var _ MessageStore = (*MessageService)(nil)
var _ SessionStore = (*SessionService)(nil)

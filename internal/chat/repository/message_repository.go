package repository

import (
	"context"
	"fmt"
	"time"

	"vanish_chat_service/internal/chat/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageRepository definition session message store
type MessageRepository interface {
	// Insert 寫入一筆訊息，由 store 指定 id 與 created_at
	Insert(ctx context.Context, msg *domain.Message) (string, error)
	// FindBySession 依 created_at 升冪查詢 session 全部訊息
	FindBySession(ctx context.Context, sessionID string) ([]domain.Message, error)
	// MarkSeen 將訊息標記為已讀，seen 只會 false -> true
	MarkSeen(ctx context.Context, sessionID, messageID string) error
	// FindSeenBySender 查詢 sender 已讀訊息（reaper 用）
	FindSeenBySender(ctx context.Context, sessionID, senderID string) ([]domain.Message, error)
	// Delete 刪除單筆訊息
	Delete(ctx context.Context, sessionID, messageID string) error
}

type chatMessageRepository struct {
	coll *mongo.Collection
}

// NewMongoMessageRepository create a MessageRepository
func NewMongoMessageRepository(db *mongo.Database) MessageRepository {
	return &chatMessageRepository{
		coll: db.Collection("messages"),
	}
}

// Insert assigns the id and server timestamp, then writes the message.
func (r *chatMessageRepository) Insert(ctx context.Context, msg *domain.Message) (string, error) {
	msg.ID = primitive.NewObjectID()
	msg.CreatedAt = primitive.NewDateTimeFromTime(time.Now().UTC())
	msg.Seen = false

	if _, err := r.coll.InsertOne(ctx, msg); err != nil {
		return "", fmt.Errorf("insert message: %w", err)
	}
	return msg.ID.Hex(), nil
}

// FindBySession returns every message of the session ordered by created_at
// ascending; insertion order (_id) breaks timestamp ties.
func (r *chatMessageRepository) FindBySession(ctx context.Context, sessionID string) ([]domain.Message, error) {
	filter := bson.M{"session_id": sessionID}
	opts := options.Find().SetSort(bson.D{
		{Key: "created_at", Value: 1},
		{Key: "_id", Value: 1},
	})

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find session messages: %w", err)
	}
	var messages []domain.Message
	if err := cur.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("decode session messages: %w", err)
	}
	return messages, nil
}

// MarkSeen flips seen to true. The filter matches only unseen documents, so
// the write is idempotent and seen never goes back to false.
func (r *chatMessageRepository) MarkSeen(ctx context.Context, sessionID, messageID string) error {
	oid, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return fmt.Errorf("mark seen, bad message id %q: %w", messageID, err)
	}

	filter := bson.M{"_id": oid, "session_id": sessionID, "seen": false}
	update := bson.M{"$set": bson.M{"seen": true}}
	if _, err := r.coll.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

// FindSeenBySender returns the sender's already-seen messages in the session.
func (r *chatMessageRepository) FindSeenBySender(ctx context.Context, sessionID, senderID string) ([]domain.Message, error) {
	filter := bson.M{
		"session_id": sessionID,
		"sender_id":  senderID,
		"seen":       true,
	}

	cur, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find seen messages: %w", err)
	}
	var messages []domain.Message
	if err := cur.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("decode seen messages: %w", err)
	}
	return messages, nil
}

// Delete removes one message from the session.
func (r *chatMessageRepository) Delete(ctx context.Context, sessionID, messageID string) error {
	oid, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return fmt.Errorf("delete, bad message id %q: %w", messageID, err)
	}

	if _, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid, "session_id": sessionID}); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

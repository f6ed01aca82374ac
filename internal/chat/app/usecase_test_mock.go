package app

import (
	"context"

	"vanish_chat_service/internal/chat/domain"

	"github.com/stretchr/testify/mock"
)

// MockMessageRepository Mock MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

// Insert mock insert msg
func (m *MockMessageRepository) Insert(ctx context.Context, msg *domain.Message) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

// FindBySession mock ordered session snapshot
func (m *MockMessageRepository) FindBySession(ctx context.Context, sessionID string) ([]domain.Message, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// MarkSeen mock seen transition
func (m *MockMessageRepository) MarkSeen(ctx context.Context, sessionID, messageID string) error {
	args := m.Called(ctx, sessionID, messageID)
	return args.Error(0)
}

// FindSeenBySender mock reap query
func (m *MockMessageRepository) FindSeenBySender(ctx context.Context, sessionID, senderID string) ([]domain.Message, error) {
	args := m.Called(ctx, sessionID, senderID)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// Delete mock delete msg
func (m *MockMessageRepository) Delete(ctx context.Context, sessionID, messageID string) error {
	args := m.Called(ctx, sessionID, messageID)
	return args.Error(0)
}

// MockMediaRepository Mock MediaRepository
type MockMediaRepository struct {
	mock.Mock
}

// Upload mock attachment upload
func (m *MockMediaRepository) Upload(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, objectName, data, contentType)
	return args.String(0), args.Error(1)
}

// MockFeedPubSub Mock FeedPubSub
type MockFeedPubSub struct {
	mock.Mock
}

// Publish mock publisher
func (m *MockFeedPubSub) Publish(sessionID string, event domain.FeedEvent) error {
	args := m.Called(sessionID, event)
	return args.Error(0)
}

// Subscribe mock subscriber
func (m *MockFeedPubSub) Subscribe(ctx context.Context, sessionID string, handler func(event domain.FeedEvent)) error {
	args := m.Called(ctx, sessionID, handler)
	return args.Error(0)
}

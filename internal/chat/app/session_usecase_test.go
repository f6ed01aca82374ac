package app

import (
	"context"
	"errors"
	"os"
	"testing"

	"vanish_chat_service/internal/chat/domain"
	"vanish_chat_service/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "chat_test_log")
	if err != nil {
		panic(err)
	}
	logger.Log = logger.Initialize("chat_test", dir)

	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

func newTestSession(msgRepo *MockMessageRepository, media *MockMediaRepository, feed *MockFeedPubSub) *ChatSession {
	return &ChatSession{
		localID:   "u1",
		remoteID:  "u2",
		sessionID: domain.SessionID("u1", "u2"),
		msgRepo:   msgRepo,
		media:     media,
		feed:      feed,
		cancel:    func() {},
		marked:    make(map[string]struct{}),
	}
}

// Open subscribes once and delivers the complete ordered set to the handler.
func TestChatSessionUseCase_Open_InitialSnapshot(t *testing.T) {
	ctx := context.Background()
	sessionID := domain.SessionID("u1", "u2")

	localMsg := domain.Message{ID: primitive.NewObjectID(), SessionID: sessionID, SenderID: "u1", Text: "mine", Seen: false}
	remoteMsg := domain.Message{ID: primitive.NewObjectID(), SessionID: sessionID, SenderID: "u2", Text: "hi", Seen: false}

	mockMsgRepo := new(MockMessageRepository)
	mockFeed := new(MockFeedPubSub)

	mockFeed.On("Subscribe", mock.Anything, sessionID, mock.Anything).Return(nil)
	mockMsgRepo.On("FindBySession", mock.Anything, sessionID).Return([]domain.Message{localMsg, remoteMsg}, nil)

	// only the unseen remote message gets a seen-mark
	mockMsgRepo.On("MarkSeen", mock.Anything, sessionID, remoteMsg.ID.Hex()).Return(nil)
	mockFeed.On("Publish", sessionID, domain.FeedEvent{
		Type:      domain.FeedMessageSeen,
		SessionID: sessionID,
		MessageID: remoteMsg.ID.Hex(),
	}).Return(nil)

	var snapshot []domain.Message
	uc := NewChatSessionUseCase(mockMsgRepo, new(MockMediaRepository), mockFeed)
	session, err := uc.Open(ctx, "u1", "u2", func(messages []domain.Message) {
		snapshot = messages
	})

	assert.NoError(t, err)
	assert.Equal(t, "u2-u1", session.SessionID())
	assert.Len(t, snapshot, 2)
	assert.False(t, snapshot[1].Seen)

	session.markWG.Wait()
	mockMsgRepo.AssertExpectations(t)
	mockFeed.AssertExpectations(t)
	mockMsgRepo.AssertNotCalled(t, "MarkSeen", mock.Anything, sessionID, localMsg.ID.Hex())
}

func TestChatSessionUseCase_Open_SamePair(t *testing.T) {
	uc := NewChatSessionUseCase(new(MockMessageRepository), new(MockMediaRepository), new(MockFeedPubSub))

	_, err := uc.Open(context.Background(), "u1", "u1", nil)
	assert.Error(t, err)

	_, err = uc.Open(context.Background(), "u1", "", nil)
	assert.Error(t, err)
}

// A mark already issued for an id is not re-issued on the next snapshot.
func TestChatSession_MarkSeen_IssuedOnce(t *testing.T) {
	sessionID := domain.SessionID("u1", "u2")
	remoteMsg := domain.Message{ID: primitive.NewObjectID(), SessionID: sessionID, SenderID: "u2", Text: "hi"}

	mockMsgRepo := new(MockMessageRepository)
	mockFeed := new(MockFeedPubSub)

	mockMsgRepo.On("FindBySession", mock.Anything, sessionID).Return([]domain.Message{remoteMsg}, nil)
	mockMsgRepo.On("MarkSeen", mock.Anything, sessionID, remoteMsg.ID.Hex()).Return(nil)
	mockFeed.On("Publish", sessionID, mock.Anything).Return(nil)

	s := newTestSession(mockMsgRepo, nil, mockFeed)
	s.refresh(context.Background())
	s.markWG.Wait()
	s.refresh(context.Background())
	s.markWG.Wait()

	mockMsgRepo.AssertNumberOfCalls(t, "MarkSeen", 1)
}

// A failed mark is dropped from the issued set and retried on the next snapshot.
func TestChatSession_MarkSeen_RetriedAfterFailure(t *testing.T) {
	sessionID := domain.SessionID("u1", "u2")
	remoteMsg := domain.Message{ID: primitive.NewObjectID(), SessionID: sessionID, SenderID: "u2", Text: "hi"}

	mockMsgRepo := new(MockMessageRepository)
	mockFeed := new(MockFeedPubSub)

	mockMsgRepo.On("FindBySession", mock.Anything, sessionID).Return([]domain.Message{remoteMsg}, nil)
	mockMsgRepo.On("MarkSeen", mock.Anything, sessionID, remoteMsg.ID.Hex()).Return(errors.New("store down")).Once()
	mockMsgRepo.On("MarkSeen", mock.Anything, sessionID, remoteMsg.ID.Hex()).Return(nil).Once()
	mockFeed.On("Publish", sessionID, mock.Anything).Return(nil).Once()

	s := newTestSession(mockMsgRepo, nil, mockFeed)
	s.refresh(context.Background())
	s.markWG.Wait()
	s.refresh(context.Background())
	s.markWG.Wait()

	mockMsgRepo.AssertNumberOfCalls(t, "MarkSeen", 2)
	mockFeed.AssertExpectations(t)
}

// Already-seen remote messages are left alone by the marking agent.
func TestChatSession_MarkSeen_SkipsSeen(t *testing.T) {
	sessionID := domain.SessionID("u1", "u2")
	seenMsg := domain.Message{ID: primitive.NewObjectID(), SessionID: sessionID, SenderID: "u2", Text: "old", Seen: true}

	mockMsgRepo := new(MockMessageRepository)
	mockMsgRepo.On("FindBySession", mock.Anything, sessionID).Return([]domain.Message{seenMsg}, nil)

	s := newTestSession(mockMsgRepo, nil, new(MockFeedPubSub))
	s.refresh(context.Background())
	s.markWG.Wait()

	mockMsgRepo.AssertNotCalled(t, "MarkSeen", mock.Anything, mock.Anything, mock.Anything)
}

func TestChatSession_Send_Text(t *testing.T) {
	ctx := context.Background()
	sessionID := domain.SessionID("u1", "u2")
	msgID := primitive.NewObjectID().Hex()

	mockMsgRepo := new(MockMessageRepository)
	mockFeed := new(MockFeedPubSub)

	var inserted *domain.Message
	mockMsgRepo.On("Insert", ctx, mock.Anything).Run(func(args mock.Arguments) {
		inserted = args.Get(1).(*domain.Message)
	}).Return(msgID, nil)
	mockFeed.On("Publish", sessionID, domain.FeedEvent{
		Type:      domain.FeedMessageCreated,
		SessionID: sessionID,
		MessageID: msgID,
	}).Return(nil)

	s := newTestSession(mockMsgRepo, nil, mockFeed)
	sent, err := s.Send(ctx, "hello", nil)

	assert.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, "u1", inserted.SenderID)
	assert.Equal(t, "hello", inserted.Text)
	assert.Nil(t, inserted.Attachment)
	mockFeed.AssertExpectations(t)
}

func TestChatSession_Send_AttachmentOnly(t *testing.T) {
	ctx := context.Background()
	sessionID := domain.SessionID("u1", "u2")

	mockMsgRepo := new(MockMessageRepository)
	mockMedia := new(MockMediaRepository)
	mockFeed := new(MockFeedPubSub)

	blob := []byte{0x89, 0x50, 0x4e, 0x47}
	mockMedia.On("Upload", ctx, mock.Anything, blob, "image/png").Return("http://store/obj.png", nil)

	var inserted *domain.Message
	mockMsgRepo.On("Insert", ctx, mock.Anything).Run(func(args mock.Arguments) {
		inserted = args.Get(1).(*domain.Message)
	}).Return(primitive.NewObjectID().Hex(), nil)
	mockFeed.On("Publish", sessionID, mock.Anything).Return(nil)

	s := newTestSession(mockMsgRepo, mockMedia, mockFeed)
	sent, err := s.Send(ctx, "", &domain.PendingMedia{Data: blob, ContentType: "image/png"})

	assert.NoError(t, err)
	assert.True(t, sent)
	assert.Empty(t, inserted.Text)
	assert.Equal(t, "http://store/obj.png", inserted.Attachment.URL)
	assert.Equal(t, domain.AttachmentImage, inserted.Attachment.Kind)
	mockMedia.AssertExpectations(t)
}

// Neither text nor media: nothing is written, no error either.
func TestChatSession_Send_Empty_NoOp(t *testing.T) {
	mockMsgRepo := new(MockMessageRepository)
	mockMedia := new(MockMediaRepository)
	mockFeed := new(MockFeedPubSub)

	s := newTestSession(mockMsgRepo, mockMedia, mockFeed)
	sent, err := s.Send(context.Background(), "", nil)

	assert.NoError(t, err)
	assert.False(t, sent)
	mockMsgRepo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	mockMedia.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockFeed.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestChatSession_Send_UploadFailure(t *testing.T) {
	ctx := context.Background()

	mockMsgRepo := new(MockMessageRepository)
	mockMedia := new(MockMediaRepository)

	mockMedia.On("Upload", ctx, mock.Anything, mock.Anything, "video/mp4").Return("", errors.New("storage down"))

	s := newTestSession(mockMsgRepo, mockMedia, new(MockFeedPubSub))
	sent, err := s.Send(ctx, "clip", &domain.PendingMedia{Data: []byte{1}, ContentType: "video/mp4"})

	assert.Error(t, err)
	assert.False(t, sent)
	mockMsgRepo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestChatSession_Send_UnsupportedMediaType(t *testing.T) {
	mockMedia := new(MockMediaRepository)

	s := newTestSession(new(MockMessageRepository), mockMedia, new(MockFeedPubSub))
	sent, err := s.Send(context.Background(), "", &domain.PendingMedia{Data: []byte{1}, ContentType: "application/pdf"})

	assert.ErrorIs(t, err, ErrMediaType)
	assert.False(t, sent)
	mockMedia.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestChatSession_Send_Busy(t *testing.T) {
	s := newTestSession(new(MockMessageRepository), nil, new(MockFeedPubSub))
	s.sending = 1

	sent, err := s.Send(context.Background(), "hello", nil)

	assert.ErrorIs(t, err, ErrSendInFlight)
	assert.False(t, sent)
}

// Close reaps exactly the remote messages seen at query time, once.
func TestChatSession_Close_ReapsSeenRemote(t *testing.T) {
	ctx := context.Background()
	sessionID := domain.SessionID("u1", "u2")

	seenA := domain.Message{ID: primitive.NewObjectID(), SessionID: sessionID, SenderID: "u2", Text: "a", Seen: true}
	seenB := domain.Message{ID: primitive.NewObjectID(), SessionID: sessionID, SenderID: "u2", Text: "b", Seen: true}

	mockMsgRepo := new(MockMessageRepository)
	mockFeed := new(MockFeedPubSub)

	// a third remote message not seen at query time is absent from the
	// snapshot and must survive this teardown
	mockMsgRepo.On("FindSeenBySender", ctx, sessionID, "u2").Return([]domain.Message{seenA, seenB}, nil).Once()
	mockMsgRepo.On("Delete", ctx, sessionID, seenA.ID.Hex()).Return(nil)
	mockMsgRepo.On("Delete", ctx, sessionID, seenB.ID.Hex()).Return(nil)
	mockFeed.On("Publish", sessionID, mock.Anything).Return(nil)

	s := newTestSession(mockMsgRepo, nil, mockFeed)
	assert.NoError(t, s.Close(ctx))

	mockMsgRepo.AssertExpectations(t)
	mockMsgRepo.AssertNumberOfCalls(t, "Delete", 2)

	// second close is a no-op, the reap ran exactly once
	assert.NoError(t, s.Close(ctx))
	mockMsgRepo.AssertNumberOfCalls(t, "FindSeenBySender", 1)
}

func TestChatSession_Close_DeleteFailureDoesNotAbort(t *testing.T) {
	ctx := context.Background()
	sessionID := domain.SessionID("u1", "u2")

	seenA := domain.Message{ID: primitive.NewObjectID(), SessionID: sessionID, SenderID: "u2", Seen: true}
	seenB := domain.Message{ID: primitive.NewObjectID(), SessionID: sessionID, SenderID: "u2", Seen: true}

	mockMsgRepo := new(MockMessageRepository)
	mockFeed := new(MockFeedPubSub)

	mockMsgRepo.On("FindSeenBySender", ctx, sessionID, "u2").Return([]domain.Message{seenA, seenB}, nil)
	mockMsgRepo.On("Delete", ctx, sessionID, seenA.ID.Hex()).Return(errors.New("gone already"))
	mockMsgRepo.On("Delete", ctx, sessionID, seenB.ID.Hex()).Return(nil)
	mockFeed.On("Publish", sessionID, mock.Anything).Return(nil)

	s := newTestSession(mockMsgRepo, nil, mockFeed)
	assert.NoError(t, s.Close(ctx))

	mockMsgRepo.AssertNumberOfCalls(t, "Delete", 2)
}

// Deletion is one-directional even if the store hands back a local message.
func TestChatSession_Close_NeverDeletesLocal(t *testing.T) {
	ctx := context.Background()
	sessionID := domain.SessionID("u1", "u2")

	localMsg := domain.Message{ID: primitive.NewObjectID(), SessionID: sessionID, SenderID: "u1", Seen: true}

	mockMsgRepo := new(MockMessageRepository)
	mockMsgRepo.On("FindSeenBySender", ctx, sessionID, "u2").Return([]domain.Message{localMsg}, nil)

	s := newTestSession(mockMsgRepo, nil, new(MockFeedPubSub))
	assert.NoError(t, s.Close(ctx))

	mockMsgRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

func TestChatSession_Close_QueryFailure(t *testing.T) {
	ctx := context.Background()
	sessionID := domain.SessionID("u1", "u2")

	mockMsgRepo := new(MockMessageRepository)
	mockMsgRepo.On("FindSeenBySender", ctx, sessionID, "u2").Return(nil, errors.New("store down"))

	s := newTestSession(mockMsgRepo, nil, new(MockFeedPubSub))
	assert.Error(t, s.Close(ctx))
	mockMsgRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

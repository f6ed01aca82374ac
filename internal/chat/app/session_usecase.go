package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"vanish_chat_service/internal/chat/domain"
	"vanish_chat_service/internal/chat/repository"
	errprocess "vanish_chat_service/pkg/err"
	"vanish_chat_service/pkg/logger"

	"github.com/google/uuid"
)

var (
	// ErrSendInFlight a previous send has not settled yet
	ErrSendInFlight = errors.New("send already in flight")
	// ErrMediaType the declared MIME type is neither image/* nor video/*
	ErrMediaType = errors.New("unsupported media type")
)

// SnapshotHandler receives the full ordered message set on every feed update
type SnapshotHandler func(messages []domain.Message)

// ChatSessionUseCase opens live sessions between two participants
type ChatSessionUseCase struct {
	msgRepo repository.MessageRepository
	media   repository.MediaRepository
	feed    repository.FeedPubSub
}

// NewChatSessionUseCase init chat session use case
func NewChatSessionUseCase(
	msgRepo repository.MessageRepository,
	media repository.MediaRepository,
	feed repository.FeedPubSub,
) *ChatSessionUseCase {
	return &ChatSessionUseCase{
		msgRepo: msgRepo,
		media:   media,
		feed:    feed,
	}
}

// ChatSession is one participant's live view of a two-party conversation.
// The caller must invoke Close exactly once when leaving the session.
type ChatSession struct {
	localID   string
	remoteID  string
	sessionID string

	msgRepo repository.MessageRepository
	media   repository.MediaRepository
	feed    repository.FeedPubSub

	onSnapshot SnapshotHandler

	cancel    context.CancelFunc
	closeOnce sync.Once

	// refreshMu serializes snapshot queries so the handler sees them in order
	refreshMu sync.Mutex

	// ids a seen-mark has already been issued for; dropped again on failure
	// so the next snapshot retries
	markMu sync.Mutex
	marked map[string]struct{}
	markWG sync.WaitGroup

	sending int32
}

// Open subscribes to the session feed and delivers the initial snapshot.
// onSnapshot is called once per feed update with the complete ordered set.
func (uc *ChatSessionUseCase) Open(ctx context.Context, localID, remoteID string, onSnapshot SnapshotHandler) (*ChatSession, error) {
	if localID == "" || remoteID == "" || localID == remoteID {
		return nil, errprocess.Set("session needs two distinct participants")
	}

	feedCtx, cancel := context.WithCancel(context.Background())
	s := &ChatSession{
		localID:    localID,
		remoteID:   remoteID,
		sessionID:  domain.SessionID(localID, remoteID),
		msgRepo:    uc.msgRepo,
		media:      uc.media,
		feed:       uc.feed,
		onSnapshot: onSnapshot,
		cancel:     cancel,
		marked:     make(map[string]struct{}),
	}

	err := uc.feed.Subscribe(feedCtx, s.sessionID, func(event domain.FeedEvent) {
		s.refresh(context.Background())
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe session [%s]: %w", s.sessionID, err)
	}

	s.refresh(ctx)
	return s, nil
}

// SessionID the derived conversation id
func (s *ChatSession) SessionID() string {
	return s.sessionID
}

// refresh re-queries the full message set, replaces the snapshot wholesale,
// and dispatches seen-marks for unseen remote messages.
func (s *ChatSession) refresh(ctx context.Context) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	messages, err := s.msgRepo.FindBySession(ctx, s.sessionID)
	if err != nil {
		logger.Log.Errorf("session feed query failed:", err)
		return
	}

	if s.onSnapshot != nil {
		s.onSnapshot(messages)
	}
	s.markUnseen(messages)
}

// markUnseen fires one async seen-mark per remote message still unseen.
// Marks are fire-and-forget: failures are logged and retried implicitly on
// the next snapshot.
func (s *ChatSession) markUnseen(messages []domain.Message) {
	for _, m := range messages {
		if m.SenderID == s.localID || m.Seen {
			continue
		}

		id := m.ID.Hex()
		s.markMu.Lock()
		if _, issued := s.marked[id]; issued {
			s.markMu.Unlock()
			continue
		}
		s.marked[id] = struct{}{}
		s.markMu.Unlock()

		s.markWG.Add(1)
		go func(messageID string) {
			defer s.markWG.Done()
			if err := s.msgRepo.MarkSeen(context.Background(), s.sessionID, messageID); err != nil {
				logger.Log.Errorf("mark seen failed:", err)
				s.markMu.Lock()
				delete(s.marked, messageID)
				s.markMu.Unlock()
				return
			}
			if err := s.feed.Publish(s.sessionID, domain.FeedEvent{
				Type:      domain.FeedMessageSeen,
				SessionID: s.sessionID,
				MessageID: messageID,
			}); err != nil {
				logger.Log.Errorf("publish seen event failed:", err)
			}
		}(id)
	}
}

// Send uploads the media (if any) and appends a new message record.
// With neither text nor media the send is a no-op; the bool reports whether
// a record was created, so the caller knows when to clear pending input.
func (s *ChatSession) Send(ctx context.Context, text string, media *domain.PendingMedia) (bool, error) {
	if !atomic.CompareAndSwapInt32(&s.sending, 0, 1) {
		return false, ErrSendInFlight
	}
	defer atomic.StoreInt32(&s.sending, 0)

	if text == "" && media == nil {
		return false, nil
	}

	msg := &domain.Message{
		SessionID: s.sessionID,
		SenderID:  s.localID,
		Text:      text,
	}

	if media != nil {
		kind, ok := domain.KindForContentType(media.ContentType)
		if !ok {
			return false, fmt.Errorf("%w: %s", ErrMediaType, media.ContentType)
		}

		objectName := s.objectName(media.ContentType)
		url, err := s.media.Upload(ctx, objectName, media.Data, media.ContentType)
		if err != nil {
			logger.Log.Errorf("attachment upload failed:", err)
			return false, err
		}
		msg.Attachment = &domain.Attachment{URL: url, Kind: kind}
	}

	id, err := s.msgRepo.Insert(ctx, msg)
	if err != nil {
		logger.Log.Errorf("message insert failed:", err)
		return false, err
	}

	if err := s.feed.Publish(s.sessionID, domain.FeedEvent{
		Type:      domain.FeedMessageCreated,
		SessionID: s.sessionID,
		MessageID: id,
	}); err != nil {
		logger.Log.Errorf("publish created event failed:", err)
	}
	return true, nil
}

// objectName scopes the object under the session with a fresh unique name
func (s *ChatSession) objectName(contentType string) string {
	name := s.sessionID + "/" + uuid.New().String()
	if idx := strings.Index(contentType, "/"); idx >= 0 && idx+1 < len(contentType) {
		name += "." + contentType[idx+1:]
	}
	return name
}

// Close releases the feed subscription and reaps the remote party's seen
// messages. It runs the cleanup exactly once; later calls are no-ops.
// Individual delete failures are logged and do not abort the rest; only a
// failed reap query is returned, the next Close picks those messages up.
func (s *ChatSession) Close(ctx context.Context) error {
	var reapErr error
	s.closeOnce.Do(func() {
		s.cancel()
		// let in-flight seen-marks settle before the reap query snapshot
		s.markWG.Wait()
		reapErr = s.reap(ctx)
	})
	return reapErr
}

// reap deletes every seen message authored by the remote participant as of
// the query snapshot. A message marked seen after the query survives until
// the next teardown; that window is accepted, not closed.
func (s *ChatSession) reap(ctx context.Context) error {
	messages, err := s.msgRepo.FindSeenBySender(ctx, s.sessionID, s.remoteID)
	if err != nil {
		logger.Log.Errorf("reap query failed:", err)
		return err
	}

	var wg sync.WaitGroup
	for _, m := range messages {
		// disappearance is one-directional, never touch the local side
		if m.SenderID == s.localID {
			continue
		}

		wg.Add(1)
		go func(messageID string) {
			defer wg.Done()
			if err := s.msgRepo.Delete(ctx, s.sessionID, messageID); err != nil {
				logger.Log.Errorf("reap delete failed:", err)
				return
			}
			if err := s.feed.Publish(s.sessionID, domain.FeedEvent{
				Type:      domain.FeedMessageDeleted,
				SessionID: s.sessionID,
				MessageID: messageID,
			}); err != nil {
				logger.Log.Errorf("publish deleted event failed:", err)
			}
		}(m.ID.Hex())
	}
	wg.Wait()
	return nil
}

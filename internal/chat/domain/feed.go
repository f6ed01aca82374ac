package domain

// FeedEventType what happened to the session's message set
type FeedEventType string

const (
	// FeedMessageCreated a new message was written
	FeedMessageCreated FeedEventType = "created"
	// FeedMessageSeen a message transitioned to seen
	FeedMessageSeen FeedEventType = "seen"
	// FeedMessageDeleted a message was removed
	FeedMessageDeleted FeedEventType = "deleted"
)

// FeedEvent is published on the session channel after every store write.
// Subscribers re-query the full message set on every event, so the event
// itself only identifies what changed.
type FeedEvent struct {
	Type      FeedEventType `json:"type"`
	SessionID string        `json:"session_id"`
	MessageID string        `json:"message_id"`
}

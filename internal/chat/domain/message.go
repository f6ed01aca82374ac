package domain

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AttachmentKind classifies message media
type AttachmentKind string

const (
	// AttachmentImage kind for image/* media
	AttachmentImage AttachmentKind = "image"
	// AttachmentVideo kind for video/* media
	AttachmentVideo AttachmentKind = "video"
)

// Attachment stored media reference on a message
type Attachment struct {
	URL  string         `bson:"url" json:"url"`
	Kind AttachmentKind `bson:"kind" json:"kind"`
}

// Message one unit of conversation content
type Message struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID  string             `bson:"session_id" json:"session_id"`
	SenderID   string             `bson:"sender_id" json:"sender_id"`
	Text       string             `bson:"text,omitempty" json:"text,omitempty"`
	Attachment *Attachment        `bson:"attachment,omitempty" json:"attachment,omitempty"`
	CreatedAt  primitive.DateTime `bson:"created_at" json:"created_at"`
	Seen       bool               `bson:"seen" json:"seen"`
}

// Empty reports whether the message carries neither text nor media.
// The composer never persists such a message.
func (m *Message) Empty() bool {
	return m.Text == "" && m.Attachment == nil
}

// PendingMedia is an attachment selected by the sender but not uploaded yet
type PendingMedia struct {
	Data        []byte
	ContentType string
}

// KindForContentType maps a declared MIME type onto an attachment kind.
// Anything that is not image/* or video/* is rejected.
func KindForContentType(contentType string) (AttachmentKind, bool) {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return AttachmentImage, true
	case strings.HasPrefix(contentType, "video/"):
		return AttachmentVideo, true
	}
	return "", false
}

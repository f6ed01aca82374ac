package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindForContentType(t *testing.T) {
	kind, ok := KindForContentType("image/png")
	assert.True(t, ok)
	assert.Equal(t, AttachmentImage, kind)

	kind, ok = KindForContentType("video/mp4")
	assert.True(t, ok)
	assert.Equal(t, AttachmentVideo, kind)

	_, ok = KindForContentType("application/pdf")
	assert.False(t, ok)

	_, ok = KindForContentType("")
	assert.False(t, ok)
}

func TestMessage_Empty(t *testing.T) {
	m := Message{}
	assert.True(t, m.Empty())

	m.Text = "hi"
	assert.False(t, m.Empty())

	m = Message{Attachment: &Attachment{URL: "http://store/x", Kind: AttachmentImage}}
	assert.False(t, m.Empty())
}

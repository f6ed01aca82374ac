package domain

// Action websocket request action
type Action string

const (
	// SendMessage websocket action send_message
	SendMessage Action = "send_message"

	// FeedSnapshot websocket push action feed_snapshot
	FeedSnapshot Action = "feed_snapshot"
)

// WSRequest websocket Request
type WSRequest struct {
	Action string `json:"action"`

	// send_message fields; media is base64 encoded with its declared MIME type
	Text      string `json:"text,omitempty"`
	MediaData string `json:"media_data,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

// WSResponse websocket Response
type WSResponse struct {
	Action  string                 `json:"action"`
	Success bool                   `json:"success"`
	Error   string                 `json:"error,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

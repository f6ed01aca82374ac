package app

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	"vanish_chat_service/internal/chat/domain"
	errprocess "vanish_chat_service/pkg/err"
	"vanish_chat_service/pkg/logger"
	"vanish_chat_service/pkg/middlewares"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// ChatWebsocketHandler binds one websocket connection to one chat session
type ChatWebsocketHandler struct {
	sessionUC *ChatSessionUseCase
}

// NewChatWebsocketHandler create ChatWebsocketHandler
func NewChatWebsocketHandler(sessionUC *ChatSessionUseCase) *ChatWebsocketHandler {
	return &ChatWebsocketHandler{
		sessionUC: sessionUC,
	}
}

// HandleConnection is the websocket entry point: the token supplies the local
// identity, the "peer" query param the remote one. Snapshots stream down for
// the lifetime of the connection; the session is closed (and reaped) when the
// connection ends, on every exit path.
func (h *ChatWebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	tokenUser := conn.Locals(middlewares.TokenUserID)
	localID, ok := tokenUser.(string)
	if !ok || localID == "" {
		logger.Log.Warn("websocket connection without identity")
		conn.Close()
		return
	}
	remoteID := conn.Query("peer")

	logger.Log.Info("websocket session open",
		zap.String("local", localID), zap.String("remote", remoteID))

	// conn is not safe for concurrent writers; snapshots and action replies
	// both go through writeMu
	var writeMu sync.Mutex
	writeJSON := func(v interface{}) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(v); err != nil {
			logger.Log.Errorf("websocket write error:", err)
		}
	}

	session, err := h.sessionUC.Open(ctx, localID, remoteID, func(messages []domain.Message) {
		writeJSON(domain.WSResponse{
			Action:  string(domain.FeedSnapshot),
			Success: true,
			Payload: map[string]interface{}{
				"session_id": domain.SessionID(localID, remoteID),
				"messages":   messages,
			},
		})
	})
	if err != nil {
		logger.Log.Errorf("open session failed:", err)
		conn.Close()
		return
	}

	ticker := time.NewTicker(10 * time.Minute)
	pingCtx, cancelPing := context.WithCancel(context.Background())

	defer func() {
		ticker.Stop()
		cancelPing()
		// best-effort cleanup, failures are logged inside Close
		if err := session.Close(context.Background()); err != nil {
			logger.Log.Errorf("session close:", err)
		}
		logger.Log.Info("websocket session closed", zap.String("local", localID))
		conn.Close()
	}()

	conn.SetCloseHandler(func(code int, text string) error {
		logger.Log.Infof("WebSocket closed:", conn.RemoteAddr())
		return nil
	})

	conn.SetPongHandler(func(appData string) error {
		logger.Log.Debug("received PONG", zap.String("local", localID))
		return nil
	})

	// keepalive ping
	go func() {
		for {
			select {
			case <-ticker.C:
				writeMu.Lock()
				err := conn.WriteMessage(websocket.PingMessage, []byte("ping"))
				writeMu.Unlock()
				if err != nil {
					logger.Log.Errorf("Ping error:", err)
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Log.Infof("Connection closed:", err)
			} else {
				logger.Log.Errorf("websocket read error:", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		h.textMessageAction(ctx, session, writeJSON, message)
	}
}

func (h *ChatWebsocketHandler) textMessageAction(ctx context.Context, session *ChatSession, writeJSON func(interface{}), msg []byte) {
	var req domain.WSRequest
	if err := json.Unmarshal(msg, &req); err != nil {
		logger.Log.Errorf("json unmarshal error:", err)
		return
	}

	resp := domain.WSResponse{Action: req.Action, Success: false, Payload: map[string]interface{}{}}
	switch req.Action {
	case string(domain.SendMessage):
		media, err := decodePendingMedia(req)
		if err != nil {
			resp.Error = err.Error()
			break
		}

		sent, err := session.Send(ctx, req.Text, media)
		if err != nil {
			// the client keeps its pending input and may retry
			resp.Error = err.Error()
			break
		}
		resp.Success = true
		resp.Payload["sent"] = sent

	default:
		resp.Error = "unknown action"
	}

	writeJSON(resp)
}

// decodePendingMedia turns the base64 request fields into a PendingMedia;
// no media fields at all is a valid text-only send.
func decodePendingMedia(req domain.WSRequest) (*domain.PendingMedia, error) {
	if req.MediaData == "" {
		return nil, nil
	}
	if req.MediaType == "" {
		return nil, errprocess.Set("media without content type")
	}

	data, err := base64.StdEncoding.DecodeString(req.MediaData)
	if err != nil {
		return nil, errprocess.Set("media data is not valid base64")
	}
	return &domain.PendingMedia{Data: data, ContentType: req.MediaType}, nil
}

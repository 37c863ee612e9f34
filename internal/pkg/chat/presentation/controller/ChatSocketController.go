package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"social-chat/internal/infrastructure/auth"
	cacheport "social-chat/internal/infrastructure/cache/port"
	"social-chat/internal/infrastructure/realtime"
	"social-chat/internal/pkg/chat/application/usecase"
	chat "social-chat/internal/pkg/chat/domain"
	repository "social-chat/internal/pkg/chat/persistence/repository/port"
)

const (
	socketReadTimeout = 60 * time.Second
	socketReadLimit   = 1 << 20
	presenceTTL       = 5 * time.Minute
)

// ChatSocketController owns the websocket endpoint. Every frame acts on the
// identity from the handshake token; user ids inside frame payloads are never
// trusted for anything but addressing lookups the server verifies itself.
type ChatSocketController struct {
	hub       *realtime.Hub
	store     repository.MessageStore
	directory repository.ConversationDirectory
	cache     cacheport.Cache
	jwtSecret string
	log       *logrus.Logger
}

func NewChatSocketController(
	hub *realtime.Hub,
	store repository.MessageStore,
	directory repository.ConversationDirectory,
	cache cacheport.Cache,
	jwtSecret string,
	log *logrus.Logger,
) *ChatSocketController {
	return &ChatSocketController{
		hub:       hub,
		store:     store,
		directory: directory,
		cache:     cache,
		jwtSecret: jwtSecret,
		log:       log,
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origins are enforced by the CORS layer in front; the handshake token
		// is what authenticates the socket.
		return true
	},
}

type sendMessageFrame struct {
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	ReceiverID     string    `json:"receiverId"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

type typingFrame struct {
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

type markReadFrame struct {
	ConversationID string `json:"conversationId"`
}

// Handle upgrades the request and pumps inbound frames until the client goes
// away. Browsers cannot set headers on the websocket handshake, so the JWT
// arrives as a query parameter.
func (ctl *ChatSocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := auth.ParseUserID(c.Query("token"), ctl.jwtSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response.
			return
		}

		conn := realtime.NewConnection(userID, ws)
		ctl.hub.Join(conn)
		ctl.setPresence(c.Request.Context(), userID)
		ctl.log.WithFields(logrus.Fields{"userId": userID, "connId": conn.ID}).Info("socket connected")

		defer func() {
			ctl.hub.Leave(conn)
			conn.Close(websocket.CloseNormalClosure, "session closed")
			// Presence holds while any tab stays open.
			if !ctl.hub.Connected(userID) {
				ctl.clearPresence(userID)
			}
			ctl.log.WithFields(logrus.Fields{"userId": userID, "connId": conn.ID}).Info("socket disconnected")
		}()

		ws.SetReadLimit(socketReadLimit)
		_ = ws.SetReadDeadline(time.Now().Add(socketReadTimeout))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(socketReadTimeout))
		})

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			_ = ws.SetReadDeadline(time.Now().Add(socketReadTimeout))
			ctl.setPresence(c.Request.Context(), userID)

			var frame realtime.Frame
			if err := json.Unmarshal(data, &frame); err != nil {
				continue
			}

			switch frame.Event {
			case realtime.EventJoin:
				// Membership is already bound to the token identity at
				// upgrade time; join only refreshes presence.
			case realtime.EventSendMessage:
				ctl.handleSend(c.Request.Context(), conn, userID, frame.Data)
			case realtime.EventTyping:
				ctl.handleTyping(c.Request.Context(), userID, frame.Data)
			case realtime.EventMarkRead:
				ctl.handleMarkRead(c.Request.Context(), userID, frame.Data)
			}
		}
	}
}

// handleSend relays an already-persisted message to the receiver's room. The
// client POSTs /messages first and emits this frame with the returned
// messageId; nothing is written here. Only membership is verified, so a
// socket cannot spray events into foreign rooms.
func (ctl *ChatSocketController) handleSend(parent context.Context, conn *realtime.Connection, userID string, data json.RawMessage) {
	var req sendMessageFrame
	if err := json.Unmarshal(data, &req); err != nil {
		ctl.ackSend(conn, "", errors.New("malformed frame"))
		return
	}
	if req.MessageID == "" || req.ConversationID == "" || req.ReceiverID == "" {
		ctl.ackSend(conn, "", errors.New("messageId, conversationId and receiverId are required"))
		return
	}

	ctx, cancel := context.WithTimeout(parent, requestTimeout)
	defer cancel()

	conv, err := ctl.directory.Get(ctx, req.ConversationID)
	if err != nil {
		ctl.ackSend(conn, "", errors.New("conversation not found"))
		return
	}
	if !conv.HasParticipant(userID) || !conv.HasParticipant(req.ReceiverID) {
		ctl.ackSend(conn, "", errors.New("not a participant in the conversation"))
		return
	}

	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	ctl.hub.Emit(req.ReceiverID, realtime.EventReceiveMessage, chat.Message{
		ID:             req.MessageID,
		ConversationID: conv.ID,
		SenderID:       userID,
		ReceiverID:     req.ReceiverID,
		Content:        req.Content,
		CreatedAt:      createdAt,
	})
	ctl.ackSend(conn, req.MessageID, nil)
}

// ackSend answers only the tab that sent the message, so other tabs of the
// same user do not see a stray acknowledgement.
func (ctl *ChatSocketController) ackSend(conn *realtime.Connection, messageID string, err error) {
	data := gin.H{"success": err == nil}
	if messageID != "" {
		data["messageId"] = messageID
	}
	if err != nil {
		data["error"] = err.Error()
	}
	_ = ctl.hub.EmitTo(conn, realtime.EventMessageSent, data)
}

// handleTyping forwards a transient typing signal to the conversation peer.
// Nothing is persisted and errors are dropped with the signal.
func (ctl *ChatSocketController) handleTyping(parent context.Context, userID string, data json.RawMessage) {
	var req typingFrame
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(parent, requestTimeout)
	defer cancel()

	conv, err := ctl.directory.Get(ctx, req.ConversationID)
	if err != nil || !conv.HasParticipant(userID) {
		return
	}

	ctl.hub.Emit(conv.Peer(userID), realtime.EventUserTyping, gin.H{
		"userId":   userID,
		"isTyping": req.IsTyping,
	})
}

// handleMarkRead acknowledges a conversation from the socket. The receipt
// goes to the peer resolved from the conversation record, never to an id the
// client supplied.
func (ctl *ChatSocketController) handleMarkRead(parent context.Context, userID string, data json.RawMessage) {
	var req markReadFrame
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(parent, requestTimeout)
	defer cancel()

	conv, err := ctl.directory.Get(ctx, req.ConversationID)
	if err != nil || !conv.HasParticipant(userID) {
		return
	}

	changed, err := ctl.store.MarkRead(ctx, conv.ID, userID)
	if err != nil {
		ctl.log.WithError(err).WithField("conversationId", conv.ID).Warn("mark-read failed")
		return
	}
	if _, err := ctl.directory.ResetUnread(ctx, conv.ID, userID); err != nil {
		ctl.log.WithError(err).WithField("conversationId", conv.ID).Warn("unread reset failed")
	}
	if changed > 0 {
		ctl.hub.Emit(conv.Peer(userID), realtime.EventMessagesRead, gin.H{
			"conversationId": conv.ID,
		})
	}
}

func (ctl *ChatSocketController) setPresence(ctx context.Context, userID string) {
	if ctl.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := ctl.cache.Set(ctx, usecase.PresenceKeyPrefix+userID, "1", presenceTTL); err != nil {
		ctl.log.WithError(err).Debug("presence refresh failed")
	}
}

func (ctl *ChatSocketController) clearPresence(userID string) {
	if ctl.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := ctl.cache.Del(ctx, usecase.PresenceKeyPrefix+userID); err != nil {
		ctl.log.WithError(err).Debug("presence clear failed")
	}
}

package controller

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"social-chat/internal/infrastructure/auth"
	"social-chat/internal/infrastructure/realtime"
	"social-chat/internal/pkg/chat/application/usecase"
	repository "social-chat/internal/pkg/chat/persistence/repository/port"
)

// SendMessageController persists a message and then fans it out to the
// receiver's sockets. The 201 response carries the authoritative message;
// realtime delivery is best-effort on top.
type SendMessageController struct {
	UC  *usecase.SendMessageUseCase
	Hub *realtime.Hub
}

func NewSendMessageController(store repository.MessageStore, directory repository.ConversationDirectory, hub *realtime.Hub) *SendMessageController {
	return &SendMessageController{
		UC:  usecase.NewSendMessageUseCase(store, directory),
		Hub: hub,
	}
}

type sendMessageRequest struct {
	ReceiverID     string `json:"receiverId" binding:"required"`
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
}

func (h *SendMessageController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		out, err := h.UC.Execute(ctx, usecase.SendMessageInput{
			SenderID:       auth.MustUserID(c),
			ReceiverID:     req.ReceiverID,
			ConversationID: req.ConversationID,
			Content:        req.Content,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		if h.Hub != nil {
			h.Hub.Emit(out.Message.ReceiverID, realtime.EventReceiveMessage, out.Message)
		}

		c.JSON(http.StatusCreated, gin.H{
			"message":      out.Message,
			"conversation": out.Conversation,
		})
	}
}

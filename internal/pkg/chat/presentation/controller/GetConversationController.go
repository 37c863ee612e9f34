package controller

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"social-chat/internal/infrastructure/auth"
	"social-chat/internal/infrastructure/realtime"
	"social-chat/internal/pkg/chat/application/usecase"
	repository "social-chat/internal/pkg/chat/persistence/repository/port"
)

// GetConversationController serves one page of conversation history. Opening
// a conversation acknowledges it, so the peer is told their messages were
// read when anything actually flipped.
type GetConversationController struct {
	UC  *usecase.GetConversationUseCase
	Hub *realtime.Hub
}

func NewGetConversationController(store repository.MessageStore, directory repository.ConversationDirectory, hub *realtime.Hub) *GetConversationController {
	return &GetConversationController{
		UC:  usecase.NewGetConversationUseCase(store, directory),
		Hub: hub,
	}
}

func (h *GetConversationController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		in := usecase.GetConversationInput{
			ConversationID: c.Param("conversationId"),
			RequesterID:    auth.MustUserID(c),
		}
		if v := c.Query("page"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				in.Page = n
			}
		}
		if v := c.Query("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				in.Limit = n
			}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		out, err := h.UC.Execute(ctx, in)
		if err != nil {
			respondError(c, err)
			return
		}

		// The read receipt goes to the peer whose messages were just
		// acknowledged, not back to the reader.
		if out.ReadChanged > 0 && h.Hub != nil {
			h.Hub.Emit(out.Conversation.Peer(in.RequesterID), realtime.EventMessagesRead, gin.H{
				"conversationId": out.Conversation.ID,
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"conversation": out.Conversation,
			"messages":     out.Messages,
			"page":         out.Page,
			"limit":        out.Limit,
			"total":        out.Total,
		})
	}
}

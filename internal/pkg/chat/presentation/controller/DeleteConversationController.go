package controller

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"social-chat/internal/infrastructure/auth"
	qport "social-chat/internal/infrastructure/queue/port"
	"social-chat/internal/pkg/chat/application/usecase"
	repository "social-chat/internal/pkg/chat/persistence/repository/port"
)

// DeleteConversationController removes a conversation for a participant.
type DeleteConversationController struct {
	UC *usecase.DeleteConversationUseCase
}

func NewDeleteConversationController(store repository.MessageStore, directory repository.ConversationDirectory, queue qport.Client) *DeleteConversationController {
	return &DeleteConversationController{UC: usecase.NewDeleteConversationUseCase(store, directory, queue)}
}

func (h *DeleteConversationController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		if err := h.UC.Execute(ctx, c.Param("conversationId"), auth.MustUserID(c)); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

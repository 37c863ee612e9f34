package controller

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"social-chat/internal/infrastructure/auth"
	cacheport "social-chat/internal/infrastructure/cache/port"
	"social-chat/internal/pkg/chat/application/usecase"
	repository "social-chat/internal/pkg/chat/persistence/repository/port"
)

// ListConversationsController returns the caller's conversation sidebar.
type ListConversationsController struct {
	UC *usecase.ListConversationsUseCase
}

func NewListConversationsController(directory repository.ConversationDirectory, cache cacheport.Cache) *ListConversationsController {
	return &ListConversationsController{UC: usecase.NewListConversationsUseCase(directory, cache)}
}

func (h *ListConversationsController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		summaries, err := h.UC.Execute(ctx, auth.MustUserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversations": summaries})
	}
}

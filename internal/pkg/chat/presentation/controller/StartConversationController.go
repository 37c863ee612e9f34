package controller

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"social-chat/internal/infrastructure/auth"
	"social-chat/internal/pkg/chat/application/usecase"
	repository "social-chat/internal/pkg/chat/persistence/repository/port"
)

// StartConversationController handles conversation creation (one controller
// per endpoint). Repeated requests for the same pair return the existing
// record with 200 instead of 201.
type StartConversationController struct {
	UC *usecase.StartConversationUseCase
}

func NewStartConversationController(directory repository.ConversationDirectory) *StartConversationController {
	return &StartConversationController{UC: usecase.NewStartConversationUseCase(directory)}
}

type startConversationRequest struct {
	ParticipantID string `json:"participantId" binding:"required"`
}

func (h *StartConversationController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req startConversationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		out, err := h.UC.Execute(ctx, usecase.StartConversationInput{
			RequesterID:   auth.MustUserID(c),
			ParticipantID: req.ParticipantID,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		status := http.StatusOK
		if out.Created {
			status = http.StatusCreated
		}
		c.JSON(status, gin.H{"conversation": out.Conversation})
	}
}

package controller

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"social-chat/internal/pkg/chat/application/usecase"
	chat "social-chat/internal/pkg/chat/domain"
)

// Each endpoint has its own controller in its own file; this file holds the
// pieces they share.

const requestTimeout = 3 * time.Second

// respondError maps domain and use-case errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, chat.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, chat.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, usecase.ErrPersistence):
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

package task

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	qport "social-chat/internal/infrastructure/queue/port"
	"social-chat/internal/pkg/chat/application/usecase"
	repository "social-chat/internal/pkg/chat/persistence/repository/port"
)

// RegisterPurgeMessagesTask binds the message-purge handler to the worker
// server. The handler is idempotent: deleting an already-empty log is a no-op,
// so retries after partial failures are safe.
func RegisterPurgeMessagesTask(srv qport.Server, store repository.MessageStore, log *logrus.Logger) {
	srv.Register(usecase.PurgeMessagesTaskType, func(ctx context.Context, t qport.Task) error {
		var p usecase.PurgeMessagesPayload
		if err := json.Unmarshal(t.Payload, &p); err != nil {
			// Malformed payloads never become valid; do not retry.
			log.WithError(err).Error("purge task: malformed payload")
			return nil
		}
		if p.ConversationID == "" {
			return nil
		}

		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		if err := store.DeleteByConversation(ctx, p.ConversationID); err != nil {
			log.WithFields(logrus.Fields{
				"conversationId": p.ConversationID,
			}).WithError(err).Warn("purge task: delete failed, will retry")
			return err
		}
		log.WithFields(logrus.Fields{
			"conversationId": p.ConversationID,
		}).Info("purged conversation messages")
		return nil
	})
}

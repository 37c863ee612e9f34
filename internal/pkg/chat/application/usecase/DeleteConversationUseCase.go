package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	qport "social-chat/internal/infrastructure/queue/port"
	chat "social-chat/internal/pkg/chat/domain"
	repository "social-chat/internal/pkg/chat/persistence/repository/port"
)

// PurgeMessagesTaskType is the queue task that deletes a removed
// conversation's message log in the background.
const PurgeMessagesTaskType = "chat:purge_messages"

// PurgeMessagesPayload is the task's JSON payload.
type PurgeMessagesPayload struct {
	ConversationID string `json:"conversationId"`
}

// DeleteConversationUseCase removes a conversation for a participant. The
// directory record goes synchronously; the message log is purged through the
// task queue so the request does not pay for bulk deletion. Without a queue
// (or when the enqueue fails) the purge runs inline instead.
type DeleteConversationUseCase struct {
	Store     repository.MessageStore
	Directory repository.ConversationDirectory
	Queue     qport.Client
}

func NewDeleteConversationUseCase(store repository.MessageStore, directory repository.ConversationDirectory, queue qport.Client) *DeleteConversationUseCase {
	return &DeleteConversationUseCase{Store: store, Directory: directory, Queue: queue}
}

func (uc *DeleteConversationUseCase) Execute(ctx context.Context, conversationID, requesterID string) error {
	conv, err := uc.Directory.Get(ctx, conversationID)
	if err != nil {
		if isDomainErr(err) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !conv.HasParticipant(requesterID) {
		return chat.ErrForbidden
	}

	if err := uc.Directory.Delete(ctx, conv.ID); err != nil {
		if isDomainErr(err) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if uc.Queue != nil {
		payload, _ := json.Marshal(PurgeMessagesPayload{ConversationID: conv.ID})
		_, err := uc.Queue.Enqueue(ctx, qport.Task{Type: PurgeMessagesTaskType, Payload: payload}, qport.EnqueueOption{
			Queue:     "chat",
			MaxRetry:  5,
			UniqueTTL: time.Minute,
		})
		if err == nil {
			return nil
		}
	}

	if err := uc.Store.DeleteByConversation(ctx, conv.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

package usecase

import (
	"context"
	"errors"
	"fmt"

	chat "social-chat/internal/pkg/chat/domain"
	repository "social-chat/internal/pkg/chat/persistence/repository/port"
)

// SendMessageInput carries a new message. ConversationID is optional; when
// empty the conversation is resolved (or created) from the sender/receiver
// pair, so a first message needs no prior conversation call.
type SendMessageInput struct {
	SenderID       string
	ReceiverID     string
	ConversationID string
	Content        string
}

type SendMessageOutput struct {
	Message      *chat.Message
	Conversation *chat.Conversation
}

// SendMessageUseCase persists a message and updates the conversation record
// before any realtime fan-out happens. Persistence is the source of truth; a
// message only reaches the hub after this use case succeeds.
type SendMessageUseCase struct {
	Store     repository.MessageStore
	Directory repository.ConversationDirectory
}

func NewSendMessageUseCase(store repository.MessageStore, directory repository.ConversationDirectory) *SendMessageUseCase {
	return &SendMessageUseCase{Store: store, Directory: directory}
}

func (uc *SendMessageUseCase) Execute(ctx context.Context, in SendMessageInput) (*SendMessageOutput, error) {
	if in.SenderID == "" || in.ReceiverID == "" {
		return nil, chat.ErrTooFewMembers
	}
	if in.SenderID == in.ReceiverID {
		return nil, chat.ErrSelfConversation
	}

	conv, err := uc.resolveConversation(ctx, in)
	if err != nil {
		return nil, err
	}

	msg, err := uc.Store.Append(ctx, conv.ID, in.SenderID, in.ReceiverID, in.Content)
	if err != nil {
		if isDomainErr(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	conv, err = uc.Directory.RecordNewMessage(ctx, conv.ID, msg, in.ReceiverID)
	if err != nil {
		if isDomainErr(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	return &SendMessageOutput{Message: msg, Conversation: conv}, nil
}

func (uc *SendMessageUseCase) resolveConversation(ctx context.Context, in SendMessageInput) (*chat.Conversation, error) {
	if in.ConversationID == "" {
		conv, _, err := uc.Directory.FindOrCreate(ctx, []string{in.SenderID, in.ReceiverID})
		if err != nil {
			if isDomainErr(err) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		return conv, nil
	}

	conv, err := uc.Directory.Get(ctx, in.ConversationID)
	if err != nil {
		if isDomainErr(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !conv.HasParticipant(in.SenderID) {
		return nil, chat.ErrForbidden
	}
	if !conv.HasParticipant(in.ReceiverID) {
		return nil, chat.ErrNotFound
	}
	return conv, nil
}

func isDomainErr(err error) bool {
	return errors.Is(err, chat.ErrEmptyContent) ||
		errors.Is(err, chat.ErrNotFound) ||
		errors.Is(err, chat.ErrForbidden) ||
		errors.Is(err, chat.ErrTooFewMembers) ||
		errors.Is(err, chat.ErrSelfConversation)
}

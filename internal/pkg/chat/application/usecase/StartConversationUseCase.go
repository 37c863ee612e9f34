package usecase

import (
	"context"
	"fmt"

	chat "social-chat/internal/pkg/chat/domain"
	repository "social-chat/internal/pkg/chat/persistence/repository/port"
)

// StartConversationInput names the two parties. RequesterID always comes from
// the authenticated token, never from the request body.
type StartConversationInput struct {
	RequesterID   string
	ParticipantID string
}

type StartConversationOutput struct {
	Conversation *chat.Conversation
	Created      bool
}

// StartConversationUseCase resolves or creates the conversation between the
// requester and one other user.
type StartConversationUseCase struct {
	Directory repository.ConversationDirectory
}

func NewStartConversationUseCase(directory repository.ConversationDirectory) *StartConversationUseCase {
	return &StartConversationUseCase{Directory: directory}
}

func (uc *StartConversationUseCase) Execute(ctx context.Context, in StartConversationInput) (*StartConversationOutput, error) {
	if in.ParticipantID == "" {
		return nil, chat.ErrTooFewMembers
	}
	if in.RequesterID == in.ParticipantID {
		return nil, chat.ErrSelfConversation
	}

	conv, created, err := uc.Directory.FindOrCreate(ctx, []string{in.RequesterID, in.ParticipantID})
	if err != nil {
		switch err {
		case chat.ErrTooFewMembers, chat.ErrSelfConversation:
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return &StartConversationOutput{Conversation: conv, Created: created}, nil
}

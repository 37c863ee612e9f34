package usecase

import (
	"context"
	"fmt"

	chat "social-chat/internal/pkg/chat/domain"
	repository "social-chat/internal/pkg/chat/persistence/repository/port"
)

type GetConversationInput struct {
	ConversationID string
	RequesterID    string
	Page           int
	Limit          int
}

// GetConversationOutput is one page of history plus the post-read state of the
// conversation. ReadChanged reports how many messages flipped to read during
// this fetch so the caller can notify the peer exactly once.
type GetConversationOutput struct {
	Conversation *chat.Conversation
	Messages     []chat.Message
	Total        int
	Page         int
	Limit        int
	ReadChanged  int64
}

// GetConversationUseCase fetches conversation history for a participant.
// Opening a conversation acknowledges it: unread messages addressed to the
// requester are marked read and the requester's unread counter is zeroed.
type GetConversationUseCase struct {
	Store     repository.MessageStore
	Directory repository.ConversationDirectory
}

func NewGetConversationUseCase(store repository.MessageStore, directory repository.ConversationDirectory) *GetConversationUseCase {
	return &GetConversationUseCase{Store: store, Directory: directory}
}

func (uc *GetConversationUseCase) Execute(ctx context.Context, in GetConversationInput) (*GetConversationOutput, error) {
	conv, err := uc.Directory.Get(ctx, in.ConversationID)
	if err != nil {
		if isDomainErr(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	// Existence is only revealed to participants.
	if !conv.HasParticipant(in.RequesterID) {
		return nil, chat.ErrForbidden
	}

	page := in.Page
	if page < 1 {
		page = 1
	}
	limit := in.Limit
	if limit <= 0 {
		limit = 20
	}

	msgs, total, err := uc.Store.ListByConversation(ctx, conv.ID, page, limit)
	if err != nil {
		if isDomainErr(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	changed, err := uc.Store.MarkRead(ctx, conv.ID, in.RequesterID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if changed > 0 || conv.UnreadCount[in.RequesterID] > 0 {
		if conv, err = uc.Directory.ResetUnread(ctx, conv.ID, in.RequesterID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
	}
	// Messages were fetched before the flip; reflect the acknowledged state.
	for i := range msgs {
		if msgs[i].ReceiverID == in.RequesterID {
			msgs[i].Read = true
		}
	}

	return &GetConversationOutput{
		Conversation: conv,
		Messages:     msgs,
		Total:        total,
		Page:         page,
		Limit:        limit,
		ReadChanged:  changed,
	}, nil
}

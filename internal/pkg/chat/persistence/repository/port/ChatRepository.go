package repository

import (
	"context"

	chat "social-chat/internal/pkg/chat/domain"
)

// MessageStore is the persisted, append-only message log. It is the source of
// truth for history and read state; the Delivery Hub never writes here.
type MessageStore interface {
	// Append persists a new message. It fails with chat.ErrEmptyContent for
	// blank content and with chat.ErrNotFound if the conversation does not
	// exist or does not contain both parties (a defensive invariant check;
	// the REST layer resolves the conversation first).
	Append(ctx context.Context, conversationID, senderID, receiverID, content string) (*chat.Message, error)

	// ListByConversation returns one page of messages ordered oldest->newest
	// plus the total message count. Pagination is offset-based with page >= 1;
	// pages beyond the range return an empty slice, not an error.
	ListByConversation(ctx context.Context, conversationID string, page, limit int) ([]chat.Message, int, error)

	// MarkRead bulk-sets read=true on all unread messages in the conversation
	// addressed to receiverID and reports how many rows changed. Idempotent.
	MarkRead(ctx context.Context, conversationID, receiverID string) (int64, error)

	// DeleteByConversation removes every message of a conversation. Used only
	// by the conversation-deletion cascade.
	DeleteByConversation(ctx context.Context, conversationID string) error
}

// ConversationDirectory maps participant sets to conversation records and
// maintains the per-participant unread counters. It performs no authorization;
// callers enforce participant checks.
type ConversationDirectory interface {
	// FindOrCreate resolves the conversation for the given participant set,
	// matching on set equality regardless of order, and reports whether a new
	// record was created. Concurrent first contact is resolved internally via
	// the uniqueness constraint on the normalized set (create, then fall back
	// to re-reading on conflict).
	FindOrCreate(ctx context.Context, participantIDs []string) (*chat.Conversation, bool, error)

	// Get fetches a conversation by id, chat.ErrNotFound if absent.
	Get(ctx context.Context, conversationID string) (*chat.Conversation, error)

	// RecordNewMessage points lastMessage at msg, increments the receiver's
	// unread counter and touches updatedAt, all in one statement.
	RecordNewMessage(ctx context.Context, conversationID string, msg *chat.Message, receiverID string) (*chat.Conversation, error)

	// ResetUnread zeroes one participant's unread counter.
	ResetUnread(ctx context.Context, conversationID, participantID string) (*chat.Conversation, error)

	// ListForUser returns the user's conversations sorted by updatedAt
	// descending, each with its LastMessage hydrated when present.
	ListForUser(ctx context.Context, userID string) ([]chat.Conversation, error)

	// Delete removes the conversation record only; the message cascade runs
	// through MessageStore.DeleteByConversation.
	Delete(ctx context.Context, conversationID string) error
}

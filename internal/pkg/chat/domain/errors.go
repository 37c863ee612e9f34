package chat

import "errors"

// Domain-level errors for the messaging subsystem.
// Controllers map these to HTTP statuses; ErrConflict never reaches a caller,
// the directory resolves it internally by re-reading.
var (
	ErrEmptyContent     = errors.New("chat: message content is empty")
	ErrNotFound         = errors.New("chat: conversation not found")
	ErrForbidden        = errors.New("chat: user is not a participant in the conversation")
	ErrConflict         = errors.New("chat: conversation already exists for participant set")
	ErrTooFewMembers    = errors.New("chat: a conversation needs at least two distinct participants")
	ErrSelfConversation = errors.New("chat: cannot start a conversation with yourself")
)

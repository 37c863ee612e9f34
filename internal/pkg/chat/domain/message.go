package chat

import (
	"strings"
	"time"
)

// Message is an append-only log entry in a conversation. Once persisted, the
// only field that ever changes is Read, flipped false->true in bulk when the
// receiver acknowledges the conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	ReceiverID     string    `json:"receiverId"`
	Content        string    `json:"content"`
	Read           bool      `json:"read"`
	CreatedAt      time.Time `json:"createdAt"`
}

// NewMessage validates and normalizes a message before persistence.
// Content is trimmed; whitespace-only content is rejected.
func NewMessage(m Message) (*Message, error) {
	if m.ConversationID == "" || m.SenderID == "" || m.ReceiverID == "" {
		return nil, ErrNotFound
	}

	m.Content = strings.TrimSpace(m.Content)
	if m.Content == "" {
		return nil, ErrEmptyContent
	}

	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	return &m, nil
}

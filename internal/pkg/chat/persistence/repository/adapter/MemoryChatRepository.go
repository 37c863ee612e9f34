package adapter

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	chat "social-chat/internal/pkg/chat/domain"
)

// MemoryChatRepository is an in-memory implementation of the MessageStore and
// ConversationDirectory ports with the same semantics as the Postgres adapter.
// It backs the test suites and is safe for concurrent use.
type MemoryChatRepository struct {
	mu            sync.Mutex
	conversations map[string]*chat.Conversation
	byKey         map[string]string // normalized participant key -> conversation id
	messages      map[string][]chat.Message
}

func NewMemoryChatRepository() *MemoryChatRepository {
	return &MemoryChatRepository{
		conversations: make(map[string]*chat.Conversation),
		byKey:         make(map[string]string),
		messages:      make(map[string][]chat.Message),
	}
}

// ===================== ConversationDirectory =====================

func (r *MemoryChatRepository) FindOrCreate(_ context.Context, participantIDs []string) (*chat.Conversation, bool, error) {
	normalized, err := chat.NormalizeParticipants(participantIDs)
	if err != nil {
		return nil, false, err
	}
	key := strings.Join(normalized, "\x00")

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byKey[key]; ok {
		return cloneConversation(r.conversations[id]), false, nil
	}

	now := time.Now().UTC()
	conv := &chat.Conversation{
		ID:           uuid.NewString(),
		Participants: normalized,
		UnreadCount:  make(map[string]int, len(normalized)),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, p := range normalized {
		conv.UnreadCount[p] = 0
	}
	r.conversations[conv.ID] = conv
	r.byKey[key] = conv.ID
	return cloneConversation(conv), true, nil
}

func (r *MemoryChatRepository) Get(_ context.Context, conversationID string) (*chat.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.conversations[conversationID]
	if !ok {
		return nil, chat.ErrNotFound
	}
	return cloneConversation(conv), nil
}

func (r *MemoryChatRepository) RecordNewMessage(_ context.Context, conversationID string, msg *chat.Message, receiverID string) (*chat.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.conversations[conversationID]
	if !ok {
		return nil, chat.ErrNotFound
	}
	id := msg.ID
	conv.LastMessageID = &id
	conv.UnreadCount[receiverID]++
	conv.UpdatedAt = time.Now().UTC()
	return cloneConversation(conv), nil
}

func (r *MemoryChatRepository) ResetUnread(_ context.Context, conversationID, participantID string) (*chat.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.conversations[conversationID]
	if !ok {
		return nil, chat.ErrNotFound
	}
	conv.UnreadCount[participantID] = 0
	return cloneConversation(conv), nil
}

func (r *MemoryChatRepository) ListForUser(_ context.Context, userID string) ([]chat.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []chat.Conversation
	for _, conv := range r.conversations {
		if !conv.HasParticipant(userID) {
			continue
		}
		c := cloneConversation(conv)
		if conv.LastMessageID != nil {
			for _, m := range r.messages[conv.ID] {
				if m.ID == *conv.LastMessageID {
					last := m
					c.LastMessage = &last
					break
				}
			}
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (r *MemoryChatRepository) Delete(_ context.Context, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.conversations[conversationID]
	if !ok {
		return chat.ErrNotFound
	}
	delete(r.conversations, conversationID)
	delete(r.byKey, strings.Join(conv.Participants, "\x00"))
	return nil
}

// ===================== MessageStore =====================

func (r *MemoryChatRepository) Append(_ context.Context, conversationID, senderID, receiverID, content string) (*chat.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.conversations[conversationID]
	if !ok {
		return nil, chat.ErrNotFound
	}
	if !conv.HasParticipant(senderID) || !conv.HasParticipant(receiverID) {
		return nil, chat.ErrNotFound
	}

	msg, err := chat.NewMessage(chat.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
	})
	if err != nil {
		return nil, err
	}
	msg.ID = uuid.NewString()
	r.messages[conversationID] = append(r.messages[conversationID], *msg)
	return msg, nil
}

func (r *MemoryChatRepository) ListByConversation(_ context.Context, conversationID string, page, limit int) ([]chat.Message, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conversations[conversationID]; !ok {
		return nil, 0, chat.ErrNotFound
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	all := r.messages[conversationID]
	total := len(all)

	start := (page - 1) * limit
	if start >= total {
		return []chat.Message{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	out := make([]chat.Message, end-start)
	copy(out, all[start:end])
	return out, total, nil
}

func (r *MemoryChatRepository) MarkRead(_ context.Context, conversationID, receiverID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conversations[conversationID]; !ok {
		return 0, chat.ErrNotFound
	}
	msgs := r.messages[conversationID]
	var changed int64
	for i := range msgs {
		if msgs[i].ReceiverID == receiverID && !msgs[i].Read {
			msgs[i].Read = true
			changed++
		}
	}
	return changed, nil
}

func (r *MemoryChatRepository) DeleteByConversation(_ context.Context, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.messages, conversationID)
	return nil
}

func cloneConversation(conv *chat.Conversation) *chat.Conversation {
	c := *conv
	c.Participants = append([]string(nil), conv.Participants...)
	c.UnreadCount = make(map[string]int, len(conv.UnreadCount))
	for k, v := range conv.UnreadCount {
		c.UnreadCount[k] = v
	}
	return &c
}

package session

import (
	"sort"
	"sync"

	chat "social-chat/internal/pkg/chat/domain"
)

// Sidebar is the client's conversation list. Instead of re-fetching the whole
// list on every pushed message, rows are updated in place from the event
// payload: last message, unread counter and recency order.
type Sidebar struct {
	mu     sync.Mutex
	selfID string
	rows   []chat.Conversation // sorted by UpdatedAt descending
}

func NewSidebar(selfID string, convs []chat.Conversation) *Sidebar {
	sb := &Sidebar{selfID: selfID, rows: make([]chat.Conversation, len(convs))}
	copy(sb.rows, convs)
	sb.sortLocked()
	return sb
}

// Conversations returns a snapshot, most recently active first.
func (sb *Sidebar) Conversations() []chat.Conversation {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	out := make([]chat.Conversation, len(sb.rows))
	copy(out, sb.rows)
	return out
}

// ApplyIncoming folds one pushed message into the list. A message for an
// unknown conversation starts a new row, so first contact appears without a
// refetch.
func (sb *Sidebar) ApplyIncoming(msg chat.Message) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	i := sb.indexLocked(msg.ConversationID)
	if i < 0 {
		id := msg.ID
		sb.rows = append(sb.rows, chat.Conversation{
			ID:            msg.ConversationID,
			Participants:  []string{msg.SenderID, msg.ReceiverID},
			LastMessageID: &id,
			UnreadCount:   map[string]int{msg.SenderID: 0, msg.ReceiverID: 0},
			CreatedAt:     msg.CreatedAt,
			UpdatedAt:     msg.CreatedAt,
		})
		i = len(sb.rows) - 1
	}

	row := &sb.rows[i]
	last := msg
	id := msg.ID
	row.LastMessage = &last
	row.LastMessageID = &id
	row.UpdatedAt = msg.CreatedAt
	if msg.ReceiverID == sb.selfID {
		if row.UnreadCount == nil {
			row.UnreadCount = map[string]int{}
		}
		row.UnreadCount[sb.selfID]++
	}
	sb.sortLocked()
}

// ApplyRead zeroes the local unread counter when the user opens a
// conversation.
func (sb *Sidebar) ApplyRead(conversationID string) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if i := sb.indexLocked(conversationID); i >= 0 && sb.rows[i].UnreadCount != nil {
		sb.rows[i].UnreadCount[sb.selfID] = 0
	}
}

// Remove drops a deleted conversation from the list.
func (sb *Sidebar) Remove(conversationID string) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if i := sb.indexLocked(conversationID); i >= 0 {
		sb.rows = append(sb.rows[:i], sb.rows[i+1:]...)
	}
}

func (sb *Sidebar) indexLocked(conversationID string) int {
	for i := range sb.rows {
		if sb.rows[i].ID == conversationID {
			return i
		}
	}
	return -1
}

func (sb *Sidebar) sortLocked() {
	sort.SliceStable(sb.rows, func(i, j int) bool {
		return sb.rows[i].UpdatedAt.After(sb.rows[j].UpdatedAt)
	})
}

package chat

import (
	"sort"
	"time"
)

// Conversation groups the set of participants exchanging messages.
// There is exactly one conversation per unordered participant set; lookups
// always go through the normalized (sorted) form of that set.
type Conversation struct {
	ID            string         `json:"id"`
	Participants  []string       `json:"participants"`
	LastMessageID *string        `json:"lastMessageId,omitempty"`
	UnreadCount   map[string]int `json:"unreadCount"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`

	// LastMessage is the hydrated weak reference, populated by list queries
	// for the conversation sidebar. Nil when the conversation is empty.
	LastMessage *Message `json:"lastMessage,omitempty"`
}

// HasParticipant tells whether userID is part of this conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Peer returns the other participant of a two-party conversation.
// For larger groups it returns the first participant that is not userID.
func (c *Conversation) Peer(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// NormalizeParticipants sorts and de-duplicates a participant set so that the
// same unordered set always produces the same key, regardless of how the
// caller supplied it.
func NormalizeParticipants(ids []string) ([]string, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) < 2 {
		return nil, ErrTooFewMembers
	}
	sort.Strings(out)
	return out, nil
}

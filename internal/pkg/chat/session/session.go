// Package session holds the view-model state for one open conversation: the
// ordered message timeline a client renders, optimistic sends awaiting their
// acknowledgement, and the read receipts owed to the peer.
package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	chat "social-chat/internal/pkg/chat/domain"
)

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("session: closed")

// API is the slice of the backend a session talks to.
type API interface {
	SendMessage(ctx context.Context, receiverID, conversationID, content string) (*chat.Message, error)
	FetchPage(ctx context.Context, conversationID string, page, limit int) ([]chat.Message, int, error)
}

// Emitter pushes transient signals to the peer over the socket.
type Emitter interface {
	EmitTyping(conversationID string, isTyping bool)
	EmitMarkRead(conversationID string)
}

const tempIDPrefix = "temp-"

// Session tracks one conversation's timeline. Sends are optimistic: the
// message appears immediately under a temporary id and is swapped in place
// once the server acknowledges it, so the list never jumps. Incoming events
// are deduplicated against everything already known.
type Session struct {
	mu       sync.Mutex
	selfID   string
	conv     *chat.Conversation
	api      API
	emitter  Emitter
	pageSize int

	timeline []chat.Message
	known    map[string]struct{} // server-assigned ids already in the timeline
	closed   bool
}

func New(selfID string, conv *chat.Conversation, api API, emitter Emitter) *Session {
	return &Session{
		selfID:   selfID,
		conv:     conv,
		api:      api,
		emitter:  emitter,
		pageSize: 20,
		known:    make(map[string]struct{}),
	}
}

// Messages returns a snapshot of the timeline, oldest first.
func (s *Session) Messages() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chat.Message, len(s.timeline))
	copy(out, s.timeline)
	return out
}

// Send performs an optimistic send. The returned message carries the
// server-assigned id; on failure the placeholder is rolled back.
func (s *Session) Send(ctx context.Context, content string) (*chat.Message, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	temp := chat.Message{
		ID:             tempIDPrefix + uuid.NewString(),
		ConversationID: s.conv.ID,
		SenderID:       s.selfID,
		ReceiverID:     s.conv.Peer(s.selfID),
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	s.timeline = append(s.timeline, temp)
	s.mu.Unlock()

	msg, err := s.api.SendMessage(ctx, temp.ReceiverID, s.conv.ID, content)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.removeLocked(temp.ID)
		return nil, err
	}

	// If the server copy is already in the timeline (a page reload or socket
	// echo beat the ack), the placeholder is redundant; drop it instead of
	// swapping it into a duplicate.
	if _, ok := s.known[msg.ID]; ok {
		s.removeLocked(temp.ID)
		return msg, nil
	}

	// The acknowledged message replaces the placeholder at its position; the
	// server id and timestamp win.
	swapped := false
	for i := range s.timeline {
		if s.timeline[i].ID == temp.ID {
			s.timeline[i] = *msg
			swapped = true
			break
		}
	}
	if !swapped {
		// Placeholder already gone; fall back to a normal insert.
		s.insertSortedLocked(*msg)
	}
	s.known[msg.ID] = struct{}{}
	return msg, nil
}

// HandleIncoming incorporates a message pushed over the socket. Messages for
// other conversations and duplicates are ignored. A message from the peer is
// acknowledged immediately, since the conversation is open on screen.
func (s *Session) HandleIncoming(msg chat.Message) {
	s.mu.Lock()
	if s.closed || msg.ConversationID != s.conv.ID {
		s.mu.Unlock()
		return
	}
	if _, ok := s.known[msg.ID]; ok {
		s.mu.Unlock()
		return
	}
	s.known[msg.ID] = struct{}{}
	s.insertSortedLocked(msg)
	fromPeer := msg.SenderID != s.selfID
	s.mu.Unlock()

	if fromPeer && s.emitter != nil {
		s.emitter.EmitMarkRead(s.conv.ID)
	}
}

// LoadPage fetches one page of history. Page 1 replaces the timeline while
// keeping unacknowledged placeholders; deeper pages merge in front. Returns
// the total number of messages on the server.
func (s *Session) LoadPage(ctx context.Context, page int) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	convID := s.conv.ID
	limit := s.pageSize
	s.mu.Unlock()

	msgs, total, err := s.api.FetchPage(ctx, convID, page, limit)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	if page <= 1 {
		var pending []chat.Message
		for _, m := range s.timeline {
			if isTempID(m.ID) {
				pending = append(pending, m)
			}
		}
		s.timeline = s.timeline[:0]
		s.known = make(map[string]struct{}, len(msgs))
		for _, m := range msgs {
			s.known[m.ID] = struct{}{}
			s.timeline = append(s.timeline, m)
		}
		s.timeline = append(s.timeline, pending...)
		return total, nil
	}

	for _, m := range msgs {
		if _, ok := s.known[m.ID]; ok {
			continue
		}
		s.known[m.ID] = struct{}{}
		s.insertSortedLocked(m)
	}
	return total, nil
}

// Typing forwards the local typing state to the peer.
func (s *Session) Typing(isTyping bool) {
	s.mu.Lock()
	closed := s.closed
	convID := s.conv.ID
	s.mu.Unlock()
	if closed || s.emitter == nil {
		return
	}
	s.emitter.EmitTyping(convID, isTyping)
}

// MarkRead tells the peer the conversation was read.
func (s *Session) MarkRead() {
	s.mu.Lock()
	closed := s.closed
	convID := s.conv.ID
	s.mu.Unlock()
	if closed || s.emitter == nil {
		return
	}
	s.emitter.EmitMarkRead(convID)
}

// Close stops the session; later events are dropped.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *Session) insertSortedLocked(msg chat.Message) {
	i := sort.Search(len(s.timeline), func(i int) bool {
		return s.timeline[i].CreatedAt.After(msg.CreatedAt)
	})
	s.timeline = append(s.timeline, chat.Message{})
	copy(s.timeline[i+1:], s.timeline[i:])
	s.timeline[i] = msg
}

func (s *Session) removeLocked(id string) {
	for i := range s.timeline {
		if s.timeline[i].ID == id {
			s.timeline = append(s.timeline[:i], s.timeline[i+1:]...)
			return
		}
	}
}

func isTempID(id string) bool {
	return len(id) > len(tempIDPrefix) && id[:len(tempIDPrefix)] == tempIDPrefix
}

package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	cacheport "social-chat/internal/infrastructure/cache/port"
	qport "social-chat/internal/infrastructure/queue/port"
	chat "social-chat/internal/pkg/chat/domain"
	"social-chat/internal/pkg/chat/persistence/repository/adapter"
)

// fakeCache holds presence keys in a map.
type fakeCache struct {
	values map[string]string
}

func (f *fakeCache) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.values[key]; ok {
		return v, nil
	}
	return "", cacheport.ErrMiss
}

func (f *fakeCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	f.values[key] = value
	return nil
}

func (f *fakeCache) Del(_ context.Context, keys ...string) (int64, error) {
	var n int64
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			delete(f.values, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeCache) Ping(context.Context) error { return nil }
func (f *fakeCache) Close() error               { return nil }

// fakeQueue records enqueued tasks, optionally failing every call.
type fakeQueue struct {
	tasks []qport.Task
	fail  bool
}

func (f *fakeQueue) Enqueue(_ context.Context, t qport.Task, _ ...qport.EnqueueOption) (string, error) {
	if f.fail {
		return "", errors.New("queue unavailable")
	}
	f.tasks = append(f.tasks, t)
	return "task-id", nil
}

func (f *fakeQueue) Close() error { return nil }

func TestStartConversation(t *testing.T) {
	repo := adapter.NewMemoryChatRepository()
	uc := NewStartConversationUseCase(repo)
	ctx := context.Background()

	out, err := uc.Execute(ctx, StartConversationInput{RequesterID: "alice", ParticipantID: "bob"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !out.Created {
		t.Error("first contact should create")
	}

	again, err := uc.Execute(ctx, StartConversationInput{RequesterID: "bob", ParticipantID: "alice"})
	if err != nil {
		t.Fatalf("Execute (reversed): %v", err)
	}
	if again.Created {
		t.Error("reversed pair created a duplicate")
	}
	if again.Conversation.ID != out.Conversation.ID {
		t.Errorf("reversed pair resolved %s, want %s", again.Conversation.ID, out.Conversation.ID)
	}

	if _, err := uc.Execute(ctx, StartConversationInput{RequesterID: "alice", ParticipantID: "alice"}); !errors.Is(err, chat.ErrSelfConversation) {
		t.Errorf("self conversation: got %v", err)
	}
	if _, err := uc.Execute(ctx, StartConversationInput{RequesterID: "alice"}); !errors.Is(err, chat.ErrTooFewMembers) {
		t.Errorf("missing participant: got %v", err)
	}
}

func TestSendMessageFirstContactCreatesConversation(t *testing.T) {
	repo := adapter.NewMemoryChatRepository()
	uc := NewSendMessageUseCase(repo, repo)
	ctx := context.Background()

	out, err := uc.Execute(ctx, SendMessageInput{SenderID: "alice", ReceiverID: "bob", Content: "hello"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.Message.ID == "" {
		t.Error("message has no id")
	}
	if out.Conversation.UnreadCount["bob"] != 1 {
		t.Errorf("bob's unread = %d, want 1", out.Conversation.UnreadCount["bob"])
	}
	if out.Conversation.LastMessageID == nil || *out.Conversation.LastMessageID != out.Message.ID {
		t.Error("conversation does not point at the new message")
	}

	// A second message reuses the conversation.
	out2, err := uc.Execute(ctx, SendMessageInput{SenderID: "bob", ReceiverID: "alice", Content: "hi back"})
	if err != nil {
		t.Fatalf("Execute (reply): %v", err)
	}
	if out2.Conversation.ID != out.Conversation.ID {
		t.Error("reply created a second conversation")
	}
}

func TestSendMessageValidation(t *testing.T) {
	repo := adapter.NewMemoryChatRepository()
	uc := NewSendMessageUseCase(repo, repo)
	ctx := context.Background()

	seed, err := uc.Execute(ctx, SendMessageInput{SenderID: "alice", ReceiverID: "bob", Content: "seed"})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	convID := seed.Conversation.ID

	cases := []struct {
		name string
		in   SendMessageInput
		want error
	}{
		{"blank content", SendMessageInput{SenderID: "alice", ReceiverID: "bob", ConversationID: convID, Content: "   "}, chat.ErrEmptyContent},
		{"sender outside conversation", SendMessageInput{SenderID: "mallory", ReceiverID: "bob", ConversationID: convID, Content: "hi"}, chat.ErrForbidden},
		{"receiver outside conversation", SendMessageInput{SenderID: "alice", ReceiverID: "mallory", ConversationID: convID, Content: "hi"}, chat.ErrNotFound},
		{"unknown conversation", SendMessageInput{SenderID: "alice", ReceiverID: "bob", ConversationID: "missing", Content: "hi"}, chat.ErrNotFound},
		{"self message", SendMessageInput{SenderID: "alice", ReceiverID: "alice", Content: "hi"}, chat.ErrSelfConversation},
		{"missing receiver", SendMessageInput{SenderID: "alice", Content: "hi"}, chat.ErrTooFewMembers},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := uc.Execute(ctx, tc.in); !errors.Is(err, tc.want) {
				t.Errorf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestGetConversationAcknowledgesReads(t *testing.T) {
	repo := adapter.NewMemoryChatRepository()
	send := NewSendMessageUseCase(repo, repo)
	get := NewGetConversationUseCase(repo, repo)
	ctx := context.Background()

	var convID string
	for i := 0; i < 3; i++ {
		out, err := send.Execute(ctx, SendMessageInput{SenderID: "alice", ReceiverID: "bob", Content: "ping"})
		if err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
		convID = out.Conversation.ID
	}

	out, err := get.Execute(ctx, GetConversationInput{ConversationID: convID, RequesterID: "bob"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out.ReadChanged != 3 {
		t.Errorf("ReadChanged = %d, want 3", out.ReadChanged)
	}
	if out.Conversation.UnreadCount["bob"] != 0 {
		t.Errorf("unread counter not reset: %d", out.Conversation.UnreadCount["bob"])
	}
	if out.Total != 3 || len(out.Messages) != 3 {
		t.Fatalf("got %d/%d messages, want 3/3", len(out.Messages), out.Total)
	}
	for _, m := range out.Messages {
		if !m.Read {
			t.Error("returned message still unread after acknowledgement")
		}
	}

	// Re-opening is idempotent.
	out, err = get.Execute(ctx, GetConversationInput{ConversationID: convID, RequesterID: "bob"})
	if err != nil {
		t.Fatalf("second Execute: %v", err)
	}
	if out.ReadChanged != 0 {
		t.Errorf("second open ReadChanged = %d, want 0", out.ReadChanged)
	}

	if _, err := get.Execute(ctx, GetConversationInput{ConversationID: convID, RequesterID: "mallory"}); !errors.Is(err, chat.ErrForbidden) {
		t.Errorf("outsider: got %v, want ErrForbidden", err)
	}
	if _, err := get.Execute(ctx, GetConversationInput{ConversationID: "missing", RequesterID: "bob"}); !errors.Is(err, chat.ErrNotFound) {
		t.Errorf("unknown conversation: got %v, want ErrNotFound", err)
	}
}

func TestListConversationsDecoratesPresence(t *testing.T) {
	repo := adapter.NewMemoryChatRepository()
	send := NewSendMessageUseCase(repo, repo)
	ctx := context.Background()

	if _, err := send.Execute(ctx, SendMessageInput{SenderID: "alice", ReceiverID: "bob", Content: "hi bob"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := send.Execute(ctx, SendMessageInput{SenderID: "alice", ReceiverID: "carol", Content: "hi carol"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	cache := &fakeCache{values: map[string]string{PresenceKeyPrefix + "bob": "1"}}
	list := NewListConversationsUseCase(repo, cache)

	summaries, err := list.Execute(ctx, "alice")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("got %d summaries, want 2", len(summaries))
	}

	statuses := map[string]string{}
	for _, s := range summaries {
		statuses[s.PeerID] = s.PeerStatus
		if s.LastMessage == nil {
			t.Errorf("summary for peer %s has no last message", s.PeerID)
		}
	}
	if statuses["bob"] != "online" {
		t.Errorf("bob's status = %q, want online", statuses["bob"])
	}
	if statuses["carol"] != "offline" {
		t.Errorf("carol's status = %q, want offline", statuses["carol"])
	}

	// Nil cache reads as everyone offline.
	list = NewListConversationsUseCase(repo, nil)
	summaries, err = list.Execute(ctx, "alice")
	if err != nil {
		t.Fatalf("Execute (nil cache): %v", err)
	}
	for _, s := range summaries {
		if s.PeerStatus != "offline" {
			t.Errorf("peer %s status = %q without cache", s.PeerID, s.PeerStatus)
		}
	}
}

func TestDeleteConversationEnqueuesPurge(t *testing.T) {
	repo := adapter.NewMemoryChatRepository()
	send := NewSendMessageUseCase(repo, repo)
	ctx := context.Background()

	out, err := send.Execute(ctx, SendMessageInput{SenderID: "alice", ReceiverID: "bob", Content: "doomed"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	convID := out.Conversation.ID

	queue := &fakeQueue{}
	del := NewDeleteConversationUseCase(repo, repo, queue)

	if err := del.Execute(ctx, convID, "mallory"); !errors.Is(err, chat.ErrForbidden) {
		t.Fatalf("outsider delete: got %v, want ErrForbidden", err)
	}
	if err := del.Execute(ctx, convID, "alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(queue.tasks) != 1 || queue.tasks[0].Type != PurgeMessagesTaskType {
		t.Fatalf("enqueued %+v, want one %s task", queue.tasks, PurgeMessagesTaskType)
	}
	if err := del.Execute(ctx, convID, "alice"); !errors.Is(err, chat.ErrNotFound) {
		t.Errorf("second delete: got %v, want ErrNotFound", err)
	}
}

func TestDeleteConversationFallsBackToInlinePurge(t *testing.T) {
	repo := adapter.NewMemoryChatRepository()
	send := NewSendMessageUseCase(repo, repo)
	ctx := context.Background()

	out, err := send.Execute(ctx, SendMessageInput{SenderID: "alice", ReceiverID: "bob", Content: "doomed"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	convID := out.Conversation.ID

	del := NewDeleteConversationUseCase(repo, repo, &fakeQueue{fail: true})
	if err := del.Execute(ctx, convID, "bob"); err != nil {
		t.Fatalf("delete with failing queue: %v", err)
	}

	// The pair can start fresh and sees no leftover history.
	out, err = send.Execute(ctx, SendMessageInput{SenderID: "alice", ReceiverID: "bob", Content: "fresh"})
	if err != nil {
		t.Fatalf("send after delete: %v", err)
	}
	get := NewGetConversationUseCase(repo, repo)
	page, err := get.Execute(ctx, GetConversationInput{ConversationID: out.Conversation.ID, RequesterID: "bob"})
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if page.Total != 1 {
		t.Errorf("new conversation has %d messages, want 1", page.Total)
	}
}

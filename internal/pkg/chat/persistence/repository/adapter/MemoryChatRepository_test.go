package adapter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	chat "social-chat/internal/pkg/chat/domain"
)

func newConversation(t *testing.T, repo *MemoryChatRepository, participants ...string) *chat.Conversation {
	t.Helper()
	conv, _, err := repo.FindOrCreate(context.Background(), participants)
	if err != nil {
		t.Fatalf("FindOrCreate(%v): %v", participants, err)
	}
	return conv
}

func TestFindOrCreateMatchesOnSetEquality(t *testing.T) {
	repo := NewMemoryChatRepository()
	ctx := context.Background()

	first, created, err := repo.FindOrCreate(ctx, []string{"alice", "bob"})
	if err != nil {
		t.Fatalf("FindOrCreate: %v", err)
	}
	if !created {
		t.Fatal("expected first call to create")
	}

	// Reversed order and duplicated entries still resolve to the same record.
	cases := [][]string{
		{"bob", "alice"},
		{"alice", "bob", "alice"},
		{"bob", "alice", "bob", ""},
	}
	for _, participants := range cases {
		conv, created, err := repo.FindOrCreate(ctx, participants)
		if err != nil {
			t.Fatalf("FindOrCreate(%v): %v", participants, err)
		}
		if created {
			t.Errorf("FindOrCreate(%v) created a duplicate", participants)
		}
		if conv.ID != first.ID {
			t.Errorf("FindOrCreate(%v) = %s, want %s", participants, conv.ID, first.ID)
		}
	}
}

func TestFindOrCreateRejectsDegenerateSets(t *testing.T) {
	repo := NewMemoryChatRepository()
	ctx := context.Background()

	for _, participants := range [][]string{
		{"alice"},
		{"alice", "alice"},
		{"", ""},
		nil,
	} {
		if _, _, err := repo.FindOrCreate(ctx, participants); !errors.Is(err, chat.ErrTooFewMembers) {
			t.Errorf("FindOrCreate(%v) = %v, want ErrTooFewMembers", participants, err)
		}
	}
}

func TestFindOrCreateConcurrentFirstContact(t *testing.T) {
	repo := NewMemoryChatRepository()
	ctx := context.Background()

	const racers = 16
	ids := make([]string, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			participants := []string{"alice", "bob"}
			if i%2 == 1 {
				participants = []string{"bob", "alice"}
			}
			conv, _, err := repo.FindOrCreate(ctx, participants)
			if err != nil {
				t.Errorf("racer %d: %v", i, err)
				return
			}
			ids[i] = conv.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < racers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("racer %d got conversation %s, racer 0 got %s", i, ids[i], ids[0])
		}
	}

	convs, err := repo.ListForUser(ctx, "alice")
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("got %d conversations after the race, want 1", len(convs))
	}
}

func TestListByConversationPagination(t *testing.T) {
	repo := NewMemoryChatRepository()
	ctx := context.Background()
	conv := newConversation(t, repo, "alice", "bob")

	const n = 47
	for i := 0; i < n; i++ {
		if _, err := repo.Append(ctx, conv.ID, "alice", "bob", fmt.Sprintf("message %02d", i)); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	// Walking all pages reassembles the full log in order, no gaps or dupes.
	const limit = 10
	var got []chat.Message
	for page := 1; ; page++ {
		msgs, total, err := repo.ListByConversation(ctx, conv.ID, page, limit)
		if err != nil {
			t.Fatalf("page %d: %v", page, err)
		}
		if total != n {
			t.Fatalf("page %d reported total %d, want %d", page, total, n)
		}
		if len(msgs) == 0 {
			break
		}
		got = append(got, msgs...)
	}
	if len(got) != n {
		t.Fatalf("reassembled %d messages, want %d", len(got), n)
	}
	for i, m := range got {
		if want := fmt.Sprintf("message %02d", i); m.Content != want {
			t.Errorf("position %d: content %q, want %q", i, m.Content, want)
		}
	}

	msgs, total, err := repo.ListByConversation(ctx, conv.ID, 99, limit)
	if err != nil {
		t.Fatalf("out-of-range page: %v", err)
	}
	if len(msgs) != 0 || total != n {
		t.Errorf("out-of-range page returned %d messages (total %d), want 0 (total %d)", len(msgs), total, n)
	}
}

func TestAppendValidation(t *testing.T) {
	repo := NewMemoryChatRepository()
	ctx := context.Background()
	conv := newConversation(t, repo, "alice", "bob")

	if _, err := repo.Append(ctx, conv.ID, "alice", "bob", "   \n\t "); !errors.Is(err, chat.ErrEmptyContent) {
		t.Errorf("blank content: got %v, want ErrEmptyContent", err)
	}
	if _, err := repo.Append(ctx, conv.ID, "alice", "mallory", "hi"); !errors.Is(err, chat.ErrNotFound) {
		t.Errorf("receiver outside conversation: got %v, want ErrNotFound", err)
	}
	if _, err := repo.Append(ctx, "missing", "alice", "bob", "hi"); !errors.Is(err, chat.ErrNotFound) {
		t.Errorf("missing conversation: got %v, want ErrNotFound", err)
	}

	msg, err := repo.Append(ctx, conv.ID, "alice", "bob", "  hello  ")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if msg.Content != "hello" {
		t.Errorf("content not trimmed: %q", msg.Content)
	}
	if msg.Read {
		t.Error("new message must start unread")
	}
	if msg.ID == "" {
		t.Error("new message has no id")
	}
}

func TestMarkReadIsIdempotent(t *testing.T) {
	repo := NewMemoryChatRepository()
	ctx := context.Background()
	conv := newConversation(t, repo, "alice", "bob")

	for i := 0; i < 3; i++ {
		if _, err := repo.Append(ctx, conv.ID, "alice", "bob", "hey"); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	// One message in the other direction stays untouched.
	if _, err := repo.Append(ctx, conv.ID, "bob", "alice", "yo"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	changed, err := repo.MarkRead(ctx, conv.ID, "bob")
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if changed != 3 {
		t.Errorf("first MarkRead changed %d, want 3", changed)
	}

	changed, err = repo.MarkRead(ctx, conv.ID, "bob")
	if err != nil {
		t.Fatalf("second MarkRead: %v", err)
	}
	if changed != 0 {
		t.Errorf("second MarkRead changed %d, want 0", changed)
	}

	if _, err := repo.MarkRead(ctx, "missing", "bob"); !errors.Is(err, chat.ErrNotFound) {
		t.Errorf("MarkRead on unknown conversation: got %v, want ErrNotFound", err)
	}

	msgs, _, err := repo.ListByConversation(ctx, conv.ID, 1, 10)
	if err != nil {
		t.Fatalf("ListByConversation: %v", err)
	}
	for _, m := range msgs {
		switch m.ReceiverID {
		case "bob":
			if !m.Read {
				t.Errorf("message to bob still unread")
			}
		case "alice":
			if m.Read {
				t.Errorf("message to alice was marked read by bob's acknowledgement")
			}
		}
	}
}

func TestUnreadCounterLifecycle(t *testing.T) {
	repo := NewMemoryChatRepository()
	ctx := context.Background()
	conv := newConversation(t, repo, "alice", "bob")

	for i := 0; i < 4; i++ {
		msg, err := repo.Append(ctx, conv.ID, "alice", "bob", "ping")
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		if _, err := repo.RecordNewMessage(ctx, conv.ID, msg, "bob"); err != nil {
			t.Fatalf("RecordNewMessage: %v", err)
		}
	}

	got, err := repo.Get(ctx, conv.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UnreadCount["bob"] != 4 {
		t.Errorf("bob's unread = %d, want 4", got.UnreadCount["bob"])
	}
	if got.UnreadCount["alice"] != 0 {
		t.Errorf("alice's unread = %d, want 0", got.UnreadCount["alice"])
	}
	if got.LastMessageID == nil {
		t.Fatal("LastMessageID not set")
	}

	got, err = repo.ResetUnread(ctx, conv.ID, "bob")
	if err != nil {
		t.Fatalf("ResetUnread: %v", err)
	}
	if got.UnreadCount["bob"] != 0 {
		t.Errorf("bob's unread after reset = %d, want 0", got.UnreadCount["bob"])
	}
}

func TestListForUserOrderingAndHydration(t *testing.T) {
	repo := NewMemoryChatRepository()
	ctx := context.Background()

	older := newConversation(t, repo, "alice", "bob")
	newer := newConversation(t, repo, "alice", "carol")

	msg, err := repo.Append(ctx, older.ID, "bob", "alice", "first")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := repo.RecordNewMessage(ctx, older.ID, msg, "alice"); err != nil {
		t.Fatalf("RecordNewMessage: %v", err)
	}
	msg, err = repo.Append(ctx, newer.ID, "carol", "alice", "second")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := repo.RecordNewMessage(ctx, newer.ID, msg, "alice"); err != nil {
		t.Fatalf("RecordNewMessage: %v", err)
	}

	convs, err := repo.ListForUser(ctx, "alice")
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(convs) != 2 {
		t.Fatalf("got %d conversations, want 2", len(convs))
	}
	if convs[0].ID != newer.ID {
		t.Errorf("most recently active conversation not first")
	}
	if convs[0].LastMessage == nil || convs[0].LastMessage.Content != "second" {
		t.Errorf("LastMessage not hydrated: %+v", convs[0].LastMessage)
	}

	convs, err = repo.ListForUser(ctx, "bob")
	if err != nil {
		t.Fatalf("ListForUser(bob): %v", err)
	}
	if len(convs) != 1 {
		t.Errorf("bob sees %d conversations, want 1", len(convs))
	}
}

func TestDeleteConversationAndPurge(t *testing.T) {
	repo := NewMemoryChatRepository()
	ctx := context.Background()
	conv := newConversation(t, repo, "alice", "bob")

	if _, err := repo.Append(ctx, conv.ID, "alice", "bob", "doomed"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if err := repo.Delete(ctx, conv.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(ctx, conv.ID); !errors.Is(err, chat.ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
	if err := repo.DeleteByConversation(ctx, conv.ID); err != nil {
		t.Fatalf("DeleteByConversation: %v", err)
	}

	// The participant pair can start over with a fresh record.
	again, created, err := repo.FindOrCreate(ctx, []string{"alice", "bob"})
	if err != nil {
		t.Fatalf("FindOrCreate after delete: %v", err)
	}
	if !created {
		t.Error("expected a fresh conversation after deletion")
	}
	if again.ID == conv.ID {
		t.Error("deleted conversation id was reused")
	}
}

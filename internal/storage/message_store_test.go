package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/nuanyu/companion/backend/internal/model/chat"
	"github.com/nuanyu/companion/backend/internal/storage"
)

func TestAppendFillsIDAndTimestamp(t *testing.T) {
	store := storage.NewMessageStore(openTestDB(t))
	ctx := context.Background()

	msg := &chat.Message{
		UserID:      "u1",
		CompanionID: "c1",
		SenderType:  chat.SenderUser,
		Content:     "你好",
	}
	if err := store.Append(ctx, msg); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if msg.ID == "" {
		t.Fatal("append must assign an id")
	}
	if msg.CreatedAt.IsZero() {
		t.Fatal("append must assign a timestamp")
	}
}

func TestHistoryReturnsChronologicalTail(t *testing.T) {
	store := storage.NewMessageStore(openTestDB(t))
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	contents := []string{"one", "two", "three", "four", "five"}
	for i, c := range contents {
		msg := &chat.Message{
			UserID:      "u1",
			CompanionID: "c1",
			SenderType:  chat.SenderUser,
			Content:     c,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.Append(ctx, msg); err != nil {
			t.Fatalf("append %q failed: %v", c, err)
		}
	}

	history, err := store.History(ctx, "u1", "c1", 3)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(history))
	}
	want := []string{"three", "four", "five"}
	for i, m := range history {
		if m.Content != want[i] {
			t.Errorf("history[%d] = %q, want %q", i, m.Content, want[i])
		}
	}
}

func TestHistoryScopedToPair(t *testing.T) {
	store := storage.NewMessageStore(openTestDB(t))
	ctx := context.Background()

	pairs := []struct{ user, companion, content string }{
		{"u1", "c1", "mine"},
		{"u1", "c2", "other companion"},
		{"u2", "c1", "other user"},
	}
	for _, p := range pairs {
		msg := &chat.Message{
			UserID:      p.user,
			CompanionID: p.companion,
			SenderType:  chat.SenderUser,
			Content:     p.content,
		}
		if err := store.Append(ctx, msg); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	history, err := store.History(ctx, "u1", "c1", 10)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 1 || history[0].Content != "mine" {
		t.Fatalf("history leaked across pairs: %+v", history)
	}
}

package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	contractx "github.com/tanpawarit/majordomo/agent/contract"
)

func TestInMemoryStoreRecentWindow(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		msg := contractx.UserMessage(fmt.Sprintf("message %d", i), time.Now().UTC())
		if err := store.AppendTurn(ctx, "family", "", []contractx.Message{msg}); err != nil {
			t.Fatalf("AppendTurn() error = %v", err)
		}
	}

	got, err := store.Recent(ctx, "family", 5)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("Recent() returned %d messages, want 5", len(got))
	}
	if got[0].Content != "message 3" || got[4].Content != "message 7" {
		t.Fatalf("Recent() not chronological: first=%q last=%q", got[0].Content, got[4].Content)
	}

	got, err = store.Recent(ctx, "family", 50)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 8 {
		t.Fatalf("Recent() returned %d messages, want all 8", len(got))
	}
}

func TestInMemoryStoreReceiptSuperseded(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	userMsg := contractx.UserMessage("[Ann]: hello", now)
	receiptID, err := store.AppendUserReceipt(ctx, "family", userMsg)
	if err != nil {
		t.Fatalf("AppendUserReceipt() error = %v", err)
	}

	turn := []contractx.Message{
		userMsg,
		contractx.AssistantMessage("Good evening.", now),
	}
	if err := store.AppendTurn(ctx, "family", receiptID, turn); err != nil {
		t.Fatalf("AppendTurn() error = %v", err)
	}

	got, err := store.Recent(ctx, "family", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent() returned %d messages, want 2 (receipt must be superseded)", len(got))
	}
	if got[0].Role != contractx.RoleUser || got[1].Role != contractx.RoleAssistant {
		t.Fatalf("unexpected roles: %s, %s", got[0].Role, got[1].Role)
	}
}

func TestInMemoryStoreOrphanReceiptSurvives(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	ctx := context.Background()

	msg := contractx.UserMessage("[Ann]: did you get that?", time.Now().UTC())
	if _, err := store.AppendUserReceipt(ctx, "family", msg); err != nil {
		t.Fatalf("AppendUserReceipt() error = %v", err)
	}

	// No AppendTurn: the turn crashed. The user message must still be there.
	got, err := store.Recent(ctx, "family", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 1 || got[0].Content != "[Ann]: did you get that?" {
		t.Fatalf("orphan receipt not surfaced: %+v", got)
	}
}

func TestInMemoryStoreTrim(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		msg := contractx.UserMessage(fmt.Sprintf("m%d", i), time.Now().UTC())
		if err := store.AppendTurn(ctx, "family", "", []contractx.Message{msg}); err != nil {
			t.Fatalf("AppendTurn() error = %v", err)
		}
	}

	if err := store.Trim(ctx, "family", 3); err != nil {
		t.Fatalf("Trim() error = %v", err)
	}

	got, err := store.Recent(ctx, "family", 0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("after Trim got %d messages, want 3", len(got))
	}
	if got[0].Content != "m7" {
		t.Fatalf("Trim kept wrong prefix: first=%q", got[0].Content)
	}
}

func TestInMemoryStoreTrimOlderThan(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 6; i++ {
		msg := contractx.UserMessage(fmt.Sprintf("m%d", i), base.Add(time.Duration(i)*time.Hour))
		if err := store.AppendTurn(ctx, "family", "", []contractx.Message{msg}); err != nil {
			t.Fatalf("AppendTurn() error = %v", err)
		}
	}

	if err := store.TrimOlderThan(ctx, "family", base.Add(4*time.Hour)); err != nil {
		t.Fatalf("TrimOlderThan() error = %v", err)
	}

	got, err := store.Recent(ctx, "family", 0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 || got[0].Content != "m4" {
		t.Fatalf("unexpected messages after age trim: %+v", got)
	}
}

func TestInMemoryStoreConcurrentConversations(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	ctx := context.Background()

	const perConversation = 50
	var wg sync.WaitGroup
	for _, id := range []string{"conv-a", "conv-b"} {
		wg.Add(1)
		go func(conversationID string) {
			defer wg.Done()
			for i := 0; i < perConversation; i++ {
				msg := contractx.UserMessage(fmt.Sprintf("%s %d", conversationID, i), time.Now().UTC())
				if err := store.AppendTurn(ctx, conversationID, "", []contractx.Message{msg}); err != nil {
					t.Errorf("AppendTurn(%s) error = %v", conversationID, err)
					return
				}
			}
		}(id)
	}
	wg.Wait()

	for _, id := range []string{"conv-a", "conv-b"} {
		got, err := store.Recent(ctx, id, 0)
		if err != nil {
			t.Fatalf("Recent(%s) error = %v", id, err)
		}
		if len(got) != perConversation {
			t.Fatalf("Recent(%s) returned %d messages, want %d", id, len(got), perConversation)
		}
	}
}

func TestInMemoryStoreNotes(t *testing.T) {
	t.Parallel()

	store := NewInMemoryStore()
	ctx := context.Background()

	if _, err := store.SaveNote(ctx, "Ann prefers oat milk"); err != nil {
		t.Fatalf("SaveNote() error = %v", err)
	}
	if _, err := store.SaveNote(ctx, "piano lesson moved to Thursdays"); err != nil {
		t.Fatalf("SaveNote() error = %v", err)
	}

	notes, err := store.SearchNotes(ctx, "piano", 10)
	if err != nil {
		t.Fatalf("SearchNotes() error = %v", err)
	}
	if len(notes) != 1 || notes[0].Content != "piano lesson moved to Thursdays" {
		t.Fatalf("unexpected search result: %+v", notes)
	}

	all, err := store.SearchNotes(ctx, "", 10)
	if err != nil {
		t.Fatalf("SearchNotes() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("SearchNotes(\"\") returned %d notes, want 2", len(all))
	}
	if all[0].ID < all[1].ID {
		t.Fatal("notes must be newest first")
	}
}

package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	contractx "github.com/tanpawarit/majordomo/agent/contract"
)

type inMemoryEntry struct {
	receiptID string
	msg       contractx.Message
}

// InMemoryStore is a thread-safe Store for development and tests. Data is
// lost on restart.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string][]inMemoryEntry
	notes         []Note
	nextNoteID    int64
}

var _ Store = (*InMemoryStore)(nil)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		conversations: make(map[string][]inMemoryEntry),
		nextNoteID:    1,
	}
}

func (s *InMemoryStore) AppendUserReceipt(ctx context.Context, conversationID string, msg contractx.Message) (string, error) {
	receiptID := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conversationID] = append(s.conversations[conversationID], inMemoryEntry{
		receiptID: receiptID,
		msg:       msg,
	})
	return receiptID, nil
}

func (s *InMemoryStore) AppendTurn(ctx context.Context, conversationID, receiptID string, msgs []contractx.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.conversations[conversationID]
	if receiptID != "" {
		kept := entries[:0]
		for _, e := range entries {
			if e.receiptID != receiptID {
				kept = append(kept, e)
			}
		}
		entries = kept
	}
	for _, m := range msgs {
		entries = append(entries, inMemoryEntry{msg: m})
	}
	s.conversations[conversationID] = entries
	return nil
}

func (s *InMemoryStore) Recent(ctx context.Context, conversationID string, window int) ([]contractx.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.conversations[conversationID]
	if window > 0 && len(entries) > window {
		entries = entries[len(entries)-window:]
	}
	msgs := make([]contractx.Message, 0, len(entries))
	for _, e := range entries {
		msgs = append(msgs, e.msg)
	}
	return msgs, nil
}

func (s *InMemoryStore) Trim(ctx context.Context, conversationID string, keep int) error {
	if keep < 0 {
		keep = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.conversations[conversationID]
	if len(entries) > keep {
		trimmed := make([]inMemoryEntry, keep)
		copy(trimmed, entries[len(entries)-keep:])
		s.conversations[conversationID] = trimmed
	}
	return nil
}

func (s *InMemoryStore) TrimOlderThan(ctx context.Context, conversationID string, cutoff time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.conversations[conversationID]
	keepFrom := len(entries)
	for i, e := range entries {
		if !e.msg.Timestamp.Before(cutoff) {
			keepFrom = i
			break
		}
	}
	if keepFrom > 0 {
		trimmed := make([]inMemoryEntry, len(entries)-keepFrom)
		copy(trimmed, entries[keepFrom:])
		s.conversations[conversationID] = trimmed
	}
	return nil
}

func (s *InMemoryStore) SaveNote(ctx context.Context, content string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextNoteID
	s.nextNoteID++
	s.notes = append(s.notes, Note{ID: id, Content: content, CreatedAt: time.Now().UTC()})
	return id, nil
}

func (s *InMemoryStore) SearchNotes(ctx context.Context, query string, limit int) ([]Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(query))
	matched := make([]Note, 0, len(s.notes))
	for _, n := range s.notes {
		if needle == "" || strings.Contains(strings.ToLower(n.Content), needle) {
			matched = append(matched, n)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *InMemoryStore) Close() error { return nil }

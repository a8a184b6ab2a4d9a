package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	contractx "github.com/tanpawarit/majordomo/agent/contract"
)

const defaultRedisKeyPrefix = "majordomo"

// RedisConfig configures the Redis-backed Store.
type RedisConfig struct {
	Addr      string `envconfig:"ADDR" split_words:"true" default:"localhost:6379"`
	Password  string `envconfig:"PASSWORD" split_words:"true"`
	DB        int    `envconfig:"DB" split_words:"true" default:"0"`
	KeyPrefix string `envconfig:"KEY_PREFIX" split_words:"true" default:"majordomo"`
}

// storedMessage is the serialized list entry. ReceiptID is set only on the
// provisional user-receipt entry and lets AppendTurn remove it by value.
type storedMessage struct {
	ReceiptID string            `json:"receipt_id,omitempty"`
	Message   contractx.Message `json:"message"`
}

// RedisStore keeps each conversation as a Redis list of serialized
// messages, appended with RPUSH and windowed with LRANGE.
type RedisStore struct {
	client redis.UniversalClient
	prefix string

	// receipt payloads by id, so the closing AppendTurn can LREM the
	// provisional entry. A crash loses the mapping and leaves the receipt
	// behind as a bare user message, which is the intended fallback.
	receipts sync.Map
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore dials Redis and verifies connectivity.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: ping redis: %v", contractx.ErrMemoryStore, err)
	}
	return NewRedisStoreWithClient(client, cfg.KeyPrefix), nil
}

// NewRedisStoreWithClient wraps an existing client (tests use miniredis).
func NewRedisStoreWithClient(client redis.UniversalClient, prefix string) *RedisStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultRedisKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) logKey(conversationID string) string {
	return fmt.Sprintf("%s:conv:%s:log", s.prefix, conversationID)
}

func (s *RedisStore) notesKey() string {
	return s.prefix + ":notes"
}

func (s *RedisStore) noteSeqKey() string {
	return s.prefix + ":notes:seq"
}

func (s *RedisStore) AppendUserReceipt(ctx context.Context, conversationID string, msg contractx.Message) (string, error) {
	receiptID := uuid.NewString()
	payload, err := json.Marshal(storedMessage{ReceiptID: receiptID, Message: msg})
	if err != nil {
		return "", fmt.Errorf("%w: marshal receipt: %v", contractx.ErrMemoryStore, err)
	}
	if err := s.client.RPush(ctx, s.logKey(conversationID), payload).Err(); err != nil {
		return "", fmt.Errorf("%w: append receipt: %v", contractx.ErrMemoryStore, err)
	}
	s.receipts.Store(receiptID, string(payload))
	return receiptID, nil
}

func (s *RedisStore) AppendTurn(ctx context.Context, conversationID, receiptID string, msgs []contractx.Message) error {
	payloads := make([]any, 0, len(msgs))
	for _, m := range msgs {
		raw, err := json.Marshal(storedMessage{Message: m})
		if err != nil {
			return fmt.Errorf("%w: marshal message: %v", contractx.ErrMemoryStore, err)
		}
		payloads = append(payloads, raw)
	}

	key := s.logKey(conversationID)
	pipe := s.client.TxPipeline()
	if receiptID != "" {
		if raw, ok := s.receipts.LoadAndDelete(receiptID); ok {
			pipe.LRem(ctx, key, 1, raw)
		}
	}
	pipe.RPush(ctx, key, payloads...)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: append turn: %v", contractx.ErrMemoryStore, err)
	}
	return nil
}

func (s *RedisStore) Recent(ctx context.Context, conversationID string, window int) ([]contractx.Message, error) {
	start := int64(0)
	if window > 0 {
		start = int64(-window)
	}
	raws, err := s.client.LRange(ctx, s.logKey(conversationID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: read recent: %v", contractx.ErrMemoryStore, err)
	}

	msgs := make([]contractx.Message, 0, len(raws))
	for _, raw := range raws {
		var entry storedMessage
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("%w: decode message: %v", contractx.ErrMemoryStore, err)
		}
		msgs = append(msgs, entry.Message)
	}
	return msgs, nil
}

func (s *RedisStore) Trim(ctx context.Context, conversationID string, keep int) error {
	if keep < 0 {
		keep = 0
	}
	if err := s.client.LTrim(ctx, s.logKey(conversationID), int64(-keep), -1).Err(); err != nil {
		return fmt.Errorf("%w: trim: %v", contractx.ErrMemoryStore, err)
	}
	return nil
}

func (s *RedisStore) TrimOlderThan(ctx context.Context, conversationID string, cutoff time.Time) error {
	key := s.logKey(conversationID)
	raws, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("%w: trim by age: %v", contractx.ErrMemoryStore, err)
	}

	keepFrom := len(raws)
	for i, raw := range raws {
		var entry storedMessage
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return fmt.Errorf("%w: decode message: %v", contractx.ErrMemoryStore, err)
		}
		if !entry.Message.Timestamp.Before(cutoff) {
			keepFrom = i
			break
		}
	}
	if keepFrom == 0 {
		return nil
	}
	if err := s.client.LTrim(ctx, key, int64(keepFrom), -1).Err(); err != nil {
		return fmt.Errorf("%w: trim by age: %v", contractx.ErrMemoryStore, err)
	}
	return nil
}

func (s *RedisStore) SaveNote(ctx context.Context, content string) (int64, error) {
	id, err := s.client.Incr(ctx, s.noteSeqKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: note sequence: %v", contractx.ErrMemoryStore, err)
	}
	payload, err := json.Marshal(Note{ID: id, Content: content, CreatedAt: time.Now().UTC()})
	if err != nil {
		return 0, fmt.Errorf("%w: marshal note: %v", contractx.ErrMemoryStore, err)
	}
	if err := s.client.RPush(ctx, s.notesKey(), payload).Err(); err != nil {
		return 0, fmt.Errorf("%w: save note: %v", contractx.ErrMemoryStore, err)
	}
	return id, nil
}

func (s *RedisStore) SearchNotes(ctx context.Context, query string, limit int) ([]Note, error) {
	raws, err := s.client.LRange(ctx, s.notesKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: read notes: %v", contractx.ErrMemoryStore, err)
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	notes := make([]Note, 0, len(raws))
	for _, raw := range raws {
		var n Note
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			return nil, fmt.Errorf("%w: decode note: %v", contractx.ErrMemoryStore, err)
		}
		if needle == "" || strings.Contains(strings.ToLower(n.Content), needle) {
			notes = append(notes, n)
		}
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].ID > notes[j].ID })
	if limit > 0 && len(notes) > limit {
		notes = notes[:limit]
	}
	return notes, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/tanpawarit/majordomo/agent/contract"
)

// PostgresConfig configures the Postgres-backed Store.
type PostgresConfig struct {
	DSN string `envconfig:"DSN" split_words:"true" required:"true"`
}

// messageRow is one conversation log entry. The serial id doubles as the
// monotonically increasing per-message sequence required for ordering.
type messageRow struct {
	bun.BaseModel `bun:"table:messages,alias:m"`

	ID             int64     `bun:"id,pk,autoincrement"`
	ConversationID string    `bun:"conversation_id,notnull"`
	ReceiptID      string    `bun:"receipt_id,nullzero"`
	Role           string    `bun:"role,notnull"`
	Payload        string    `bun:"payload,notnull"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
}

type noteRow struct {
	bun.BaseModel `bun:"table:notes,alias:n"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Content   string    `bun:"content,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

// PostgresStore persists the conversation log and notes in Postgres via bun.
type PostgresStore struct {
	db *bun.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore opens the database and ensures the schema exists.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres dsn is required", contractx.ErrMemoryStore)
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	store := &PostgresStore{db: db}
	if err := store.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) init(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*messageRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("%w: create messages table: %v", contractx.ErrMemoryStore, err)
	}
	if _, err := s.db.NewCreateTable().Model((*noteRow)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("%w: create notes table: %v", contractx.ErrMemoryStore, err)
	}
	if _, err := s.db.NewCreateIndex().
		Model((*messageRow)(nil)).
		Index("idx_messages_conversation_id_id").
		IfNotExists().
		Column("conversation_id", "id").
		Exec(ctx); err != nil {
		return fmt.Errorf("%w: create messages index: %v", contractx.ErrMemoryStore, err)
	}
	return nil
}

func newMessageRow(conversationID, receiptID string, msg contractx.Message) (*messageRow, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal message: %v", contractx.ErrMemoryStore, err)
	}
	at := msg.Timestamp
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return &messageRow{
		ConversationID: conversationID,
		ReceiptID:      receiptID,
		Role:           string(msg.Role),
		Payload:        string(payload),
		CreatedAt:      at,
	}, nil
}

func (s *PostgresStore) AppendUserReceipt(ctx context.Context, conversationID string, msg contractx.Message) (string, error) {
	receiptID := uuid.NewString()
	row, err := newMessageRow(conversationID, receiptID, msg)
	if err != nil {
		return "", err
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return "", fmt.Errorf("%w: append receipt: %v", contractx.ErrMemoryStore, err)
	}
	return receiptID, nil
}

func (s *PostgresStore) AppendTurn(ctx context.Context, conversationID, receiptID string, msgs []contractx.Message) error {
	rows := make([]*messageRow, 0, len(msgs))
	for _, m := range msgs {
		row, err := newMessageRow(conversationID, "", m)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if receiptID != "" {
			if _, err := tx.NewDelete().
				Model((*messageRow)(nil)).
				Where("conversation_id = ?", conversationID).
				Where("receipt_id = ?", receiptID).
				Exec(ctx); err != nil {
				return err
			}
		}
		if len(rows) == 0 {
			return nil
		}
		_, err := tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: append turn: %v", contractx.ErrMemoryStore, err)
	}
	return nil
}

func (s *PostgresStore) Recent(ctx context.Context, conversationID string, window int) ([]contractx.Message, error) {
	var rows []messageRow
	q := s.db.NewSelect().
		Model(&rows).
		Where("conversation_id = ?", conversationID).
		OrderExpr("id DESC")
	if window > 0 {
		q = q.Limit(window)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("%w: read recent: %v", contractx.ErrMemoryStore, err)
	}

	// Rows arrive newest first; flip back to chronological order.
	msgs := make([]contractx.Message, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		var m contractx.Message
		if err := json.Unmarshal([]byte(rows[i].Payload), &m); err != nil {
			return nil, fmt.Errorf("%w: decode message: %v", contractx.ErrMemoryStore, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (s *PostgresStore) Trim(ctx context.Context, conversationID string, keep int) error {
	if keep < 0 {
		keep = 0
	}
	newest := s.db.NewSelect().
		Model((*messageRow)(nil)).
		Column("id").
		Where("conversation_id = ?", conversationID).
		OrderExpr("id DESC").
		Limit(keep)
	if _, err := s.db.NewDelete().
		Model((*messageRow)(nil)).
		Where("conversation_id = ?", conversationID).
		Where("id NOT IN (?)", newest).
		Exec(ctx); err != nil {
		return fmt.Errorf("%w: trim: %v", contractx.ErrMemoryStore, err)
	}
	return nil
}

func (s *PostgresStore) TrimOlderThan(ctx context.Context, conversationID string, cutoff time.Time) error {
	if _, err := s.db.NewDelete().
		Model((*messageRow)(nil)).
		Where("conversation_id = ?", conversationID).
		Where("created_at < ?", cutoff).
		Exec(ctx); err != nil {
		return fmt.Errorf("%w: trim by age: %v", contractx.ErrMemoryStore, err)
	}
	return nil
}

func (s *PostgresStore) SaveNote(ctx context.Context, content string) (int64, error) {
	row := &noteRow{Content: content, CreatedAt: time.Now().UTC()}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return 0, fmt.Errorf("%w: save note: %v", contractx.ErrMemoryStore, err)
	}
	return row.ID, nil
}

func (s *PostgresStore) SearchNotes(ctx context.Context, query string, limit int) ([]Note, error) {
	var rows []noteRow
	q := s.db.NewSelect().Model(&rows).OrderExpr("id DESC")
	if needle := strings.TrimSpace(query); needle != "" {
		q = q.Where("content ILIKE ?", "%"+needle+"%")
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("%w: read notes: %v", contractx.ErrMemoryStore, err)
	}

	notes := make([]Note, 0, len(rows))
	for _, r := range rows {
		notes = append(notes, Note{ID: r.ID, Content: r.Content, CreatedAt: r.CreatedAt})
	}
	return notes, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

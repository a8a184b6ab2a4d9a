package memory

import (
	"context"
	"time"

	contractx "github.com/tanpawarit/majordomo/agent/contract"
)

// Note is a free-form thought the assistant chose to remember.
type Note struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the durable conversation log. Messages are append-only and
// never edited; the only removal is whole-prefix trimming.
//
// A turn is persisted in one atomic AppendTurn at the end of the loop. The
// user message alone is additionally made durable on receipt via
// AppendUserReceipt; the returned receipt id lets the closing AppendTurn
// supersede that provisional entry. A receipt left behind by a crashed turn
// surfaces from Recent as a bare user message.
type Store interface {
	AppendUserReceipt(ctx context.Context, conversationID string, msg contractx.Message) (receiptID string, err error)
	AppendTurn(ctx context.Context, conversationID, receiptID string, msgs []contractx.Message) error

	// Recent returns the most recent window messages, oldest first.
	Recent(ctx context.Context, conversationID string, window int) ([]contractx.Message, error)

	// Trim drops all but the newest keep messages of one conversation.
	Trim(ctx context.Context, conversationID string, keep int) error

	// TrimOlderThan drops every message of one conversation timestamped
	// before cutoff.
	TrimOlderThan(ctx context.Context, conversationID string, cutoff time.Time) error

	SaveNote(ctx context.Context, content string) (int64, error)
	SearchNotes(ctx context.Context, query string, limit int) ([]Note, error)

	Close() error
}

// Config selects the storage backend.
type Config struct {
	Backend string `envconfig:"BACKEND" split_words:"true" default:"postgres"`
}

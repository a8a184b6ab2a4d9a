// Package telegram is the chat transport: long polling, the family
// allow-list, command routing, and long-message splitting.
package telegram

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Telegram rejects messages longer than this.
const maxMessageLength = 4096

const startText = "Good day. I am Majordomo, at your service.\n\n" +
	"You may address me freely and I shall do my utmost to assist.\n\n" +
	"Available commands:\n" +
	"/today — today's agenda\n" +
	"/week  — the week ahead"

const errorText = "I do beg your pardon — an unforeseen difficulty has arisen " +
	"on my end. Rest assured I shall look into it promptly."

// Handler is the conversational brain behind the bot.
type Handler interface {
	HandleMessage(ctx context.Context, conversationID, userName, text string) (string, error)
	TodaySummary(ctx context.Context, conversationID string) (string, error)
	WeekSummary(ctx context.Context, conversationID string) (string, error)
}

// Bot polls for updates and routes them to the handler. Only allow-listed
// users in private chats are answered; everyone else is silently ignored.
type Bot struct {
	client      *Client
	handler     Handler
	allowed     map[int64]bool
	pollTimeout time.Duration
}

func NewBot(cfg Config, client *Client, handler Handler) (*Bot, error) {
	if client == nil {
		return nil, errors.New("telegram client is required")
	}
	if handler == nil {
		return nil, errors.New("message handler is required")
	}
	if len(cfg.AllowedUserIDs) == 0 {
		return nil, errors.New("allow-list must not be empty")
	}

	allowed := make(map[int64]bool, len(cfg.AllowedUserIDs))
	for _, id := range cfg.AllowedUserIDs {
		allowed[id] = true
	}

	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 30 * time.Second
	}

	return &Bot{
		client:      client,
		handler:     handler,
		allowed:     allowed,
		pollTimeout: pollTimeout,
	}, nil
}

// Run polls until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	log.Info().Int("allowed_users", len(b.allowed)).Msg("telegram bot polling")

	var offset int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		updates, err := b.client.GetUpdates(ctx, offset, b.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Msg("getUpdates failed, backing off")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(3 * time.Second):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || strings.TrimSpace(msg.Text) == "" {
		return
	}
	if msg.Chat.Type != "private" {
		return
	}
	if !b.allowed[msg.From.ID] {
		log.Debug().Int64("user_id", msg.From.ID).Msg("ignoring non-allow-listed user")
		return
	}

	if err := b.client.SendTyping(ctx, msg.Chat.ID); err != nil {
		log.Debug().Err(err).Msg("sendChatAction failed")
	}

	conversationID := strconv.FormatInt(msg.Chat.ID, 10)
	command, _, _ := strings.Cut(strings.TrimSpace(msg.Text), " ")

	var (
		response string
		err      error
	)
	switch command {
	case "/start":
		response = startText
	case "/today":
		response, err = b.handler.TodaySummary(ctx, conversationID)
	case "/week":
		response, err = b.handler.WeekSummary(ctx, conversationID)
	default:
		response, err = b.handler.HandleMessage(ctx, conversationID, msg.From.FirstName, msg.Text)
	}
	if err != nil {
		log.Error().Err(err).Int64("user_id", msg.From.ID).Msg("handler failed")
		if response == "" {
			response = errorText
		}
	}

	b.reply(ctx, msg.Chat.ID, response)
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	for _, chunk := range splitMessage(text, maxMessageLength) {
		if err := b.client.SendMessage(ctx, chatID, chunk); err != nil {
			log.Error().Err(err).Int64("chat_id", chatID).Msg("sendMessage failed")
			return
		}
	}
}

// splitMessage cuts text into chunks of at most limit bytes, preferring
// newline boundaries.
func splitMessage(text string, limit int) []string {
	if text == "" {
		return nil
	}
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(text) > limit {
		cut := limit
		if idx := strings.LastIndexByte(text[:limit], '\n'); idx > 0 {
			cut = idx
		}
		chunks = append(chunks, strings.TrimRight(text[:cut], "\n"))
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

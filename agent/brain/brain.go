// Package brain runs the agentic loop: load context, call the model,
// execute requested tools, feed results back, persist the closed turn.
package brain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/majordomo/agent/contract"
	memoryx "github.com/tanpawarit/majordomo/agent/memory"
	promptx "github.com/tanpawarit/majordomo/agent/prompt"
	toolx "github.com/tanpawarit/majordomo/agent/tool"
)

const (
	defaultHistoryWindow = 50
	defaultMaxToolRounds = 5

	apologyLostThread = "I do beg your pardon — I seem to have lost my train of thought."
	apologyUnable     = "I regret that I was unable to complete the task despite my best efforts."
	apologyIndisposed = "My sincere apologies, I appear to be indisposed at the moment. Do try again shortly."
)

// Config tunes the loop.
type Config struct {
	HistoryWindow int    `envconfig:"HISTORY_WINDOW" split_words:"true" default:"50"`
	MaxToolRounds int    `envconfig:"MAX_TOOL_ROUNDS" split_words:"true" default:"5"`
	RetainLast    int    `envconfig:"RETAIN_LAST" split_words:"true" default:"500"`
	// RetainFor drops messages older than this after each turn. Zero
	// disables age-based trimming.
	RetainFor time.Duration `envconfig:"RETAIN_FOR" split_words:"true" default:"720h"`
	Timezone  string        `envconfig:"TIMEZONE" split_words:"true" default:"UTC"`
}

// Brain ties the provider, the tool registry, and the memory store
// together. Safe for concurrent use; turns within one conversation are
// serialized, distinct conversations proceed in parallel.
type Brain struct {
	provider contractx.Provider
	registry *toolx.Registry
	store    memoryx.Store
	location *time.Location

	historyWindow int
	maxToolRounds int
	retainLast    int
	retainFor     time.Duration

	locks sync.Map // conversationID -> *sync.Mutex
	now   func() time.Time
}

func New(cfg Config, provider contractx.Provider, registry *toolx.Registry, store memoryx.Store) (*Brain, error) {
	if provider == nil {
		return nil, errors.New("provider is required")
	}
	if registry == nil {
		return nil, errors.New("tool registry is required")
	}
	if store == nil {
		return nil, errors.New("memory store is required")
	}

	location := time.UTC
	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
		}
		location = loc
	}

	b := &Brain{
		provider:      provider,
		registry:      registry,
		store:         store,
		location:      location,
		historyWindow: cfg.HistoryWindow,
		maxToolRounds: cfg.MaxToolRounds,
		retainLast:    cfg.RetainLast,
		retainFor:     cfg.RetainFor,
		now:           time.Now,
	}
	if b.historyWindow <= 0 {
		b.historyWindow = defaultHistoryWindow
	}
	if b.maxToolRounds <= 0 {
		b.maxToolRounds = defaultMaxToolRounds
	}
	return b, nil
}

// Location exposes the household timezone for tool construction.
func (b *Brain) Location() *time.Location { return b.location }

func (b *Brain) lock(conversationID string) *sync.Mutex {
	mu, _ := b.locks.LoadOrStore(conversationID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// HandleMessage runs one full turn and returns the answer text. Memory
// store failures are returned alongside an apology so the transport can
// still say something to the user.
func (b *Brain) HandleMessage(ctx context.Context, conversationID, userName, text string) (string, error) {
	mu := b.lock(conversationID)
	mu.Lock()
	defer mu.Unlock()

	start := b.now()
	userMsg := contractx.UserMessage(fmt.Sprintf("[%s]: %s", userName, text), start)

	history, err := b.store.Recent(ctx, conversationID, b.historyWindow)
	if err != nil {
		return apologyIndisposed, fmt.Errorf("%w: load history: %v", contractx.ErrMemoryStore, err)
	}

	// The user message is durable from this point even if the turn dies.
	receiptID, err := b.store.AppendUserReceipt(ctx, conversationID, userMsg)
	if err != nil {
		return apologyIndisposed, fmt.Errorf("%w: persist user message: %v", contractx.ErrMemoryStore, err)
	}

	transcript := append(append([]contractx.Message{}, history...), userMsg)
	turn := []contractx.Message{userMsg}
	system := promptx.System(start, b.location)
	tools := b.registry.Descriptors()

	answer := ""
	rounds := 0
	for rounds < b.maxToolRounds {
		rounds++
		log.Debug().
			Str("conversation_id", conversationID).
			Int("round", rounds).
			Msg("requesting completion")

		completion, err := b.provider.Complete(ctx, contractx.CompletionRequest{
			System:   system,
			Messages: transcript,
			Tools:    tools,
		})
		if err != nil {
			return b.abortTurn(ctx, conversationID, receiptID, err)
		}

		if len(completion.ToolCalls) == 0 {
			answer = completion.Text
			if answer == "" {
				answer = apologyLostThread
			}
			assistant := contractx.AssistantMessage(answer, b.now())
			transcript = append(transcript, assistant)
			turn = append(turn, assistant)
			break
		}

		assistant := contractx.ToolCallMessage(completion.Text, completion.ToolCalls, b.now())
		transcript = append(transcript, assistant)
		turn = append(turn, assistant)

		results := b.dispatchAll(ctx, completion.ToolCalls)
		resultMsg := contractx.ToolResultsMessage(results, b.now())
		transcript = append(transcript, resultMsg)
		turn = append(turn, resultMsg)
	}

	if answer == "" {
		// Iteration cap hit with tools still pending.
		log.Warn().
			Str("conversation_id", conversationID).
			Int("rounds", rounds).
			Msg("tool round cap reached without final answer")
		answer = apologyUnable
		assistant := contractx.AssistantMessage(answer, b.now())
		turn = append(turn, assistant)
	}

	if err := b.store.AppendTurn(ctx, conversationID, receiptID, turn); err != nil {
		return apologyIndisposed, fmt.Errorf("%w: persist turn: %v", contractx.ErrMemoryStore, err)
	}
	if b.retainLast > 0 {
		if err := b.store.Trim(ctx, conversationID, b.retainLast); err != nil {
			log.Error().Err(err).Str("conversation_id", conversationID).Msg("conversation trim failed")
		}
	}
	if b.retainFor > 0 {
		if err := b.store.TrimOlderThan(ctx, conversationID, b.now().Add(-b.retainFor)); err != nil {
			log.Error().Err(err).Str("conversation_id", conversationID).Msg("conversation age trim failed")
		}
	}

	log.Info().
		Str("conversation_id", conversationID).
		Int("rounds", rounds).
		Dur("took", b.now().Sub(start)).
		Msg("turn complete")
	return answer, nil
}

// abortTurn handles a provider failure mid-turn. The receipt stays in
// place so the user message survives as a bare entry; nothing else of
// the half-finished turn is stored.
func (b *Brain) abortTurn(ctx context.Context, conversationID, receiptID string, cause error) (string, error) {
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	log.Error().
		Err(cause).
		Str("conversation_id", conversationID).
		Str("receipt_id", receiptID).
		Msg("turn aborted on provider failure")

	if errors.Is(cause, contractx.ErrProviderFatal) || errors.Is(cause, contractx.ErrProviderTransient) {
		return apologyIndisposed, nil
	}
	return apologyIndisposed, cause
}

// dispatchAll fans the round's tool calls out concurrently and joins the
// results back in call order.
func (b *Brain) dispatchAll(ctx context.Context, calls []contractx.ToolCall) []contractx.ToolResult {
	results := make([]contractx.ToolResult, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call contractx.ToolCall) {
			defer wg.Done()
			results[i] = b.registry.Dispatch(ctx, call)
		}(i, call)
	}
	wg.Wait()
	return results
}

// TodaySummary routes a canned prompt through the normal loop.
func (b *Brain) TodaySummary(ctx context.Context, conversationID string) (string, error) {
	return b.HandleMessage(ctx, conversationID, "User",
		"Please check today's calendar and give me a concise summary of the day's schedule. "+
			"If there is nothing scheduled, let me know.")
}

// WeekSummary summarises the next seven days.
func (b *Brain) WeekSummary(ctx context.Context, conversationID string) (string, error) {
	return b.HandleMessage(ctx, conversationID, "User",
		"Please check the calendar for the next seven days and give me a concise overview "+
			"of the week ahead. Highlight anything that needs preparation.")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	brainx "github.com/tanpawarit/majordomo/agent/brain"
	memoryx "github.com/tanpawarit/majordomo/agent/memory"
	providerx "github.com/tanpawarit/majordomo/agent/provider"
	toolx "github.com/tanpawarit/majordomo/agent/tool"
	telegramx "github.com/tanpawarit/majordomo/channel/telegram"
	configx "github.com/tanpawarit/majordomo/pkg/config"
	_ "github.com/tanpawarit/majordomo/pkg/logger/autoload"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := mustNewStore(ctx)
	defer store.Close()

	llmCfg := configx.MustNew[providerx.Config]("LLM")
	llm, err := providerx.New(*llmCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize llm provider")
	}

	brainCfg := configx.MustNew[brainx.Config]("BRAIN")
	registry := toolx.NewRegistry()
	brain, err := brainx.New(*brainCfg, llm, registry, store)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize brain")
	}
	registerTools(registry, brain, store)

	telegramCfg := configx.MustNew[telegramx.Config]("TELEGRAM")
	client, err := telegramx.NewClient(*telegramCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telegram client")
	}
	bot, err := telegramx.NewBot(*telegramCfg, client, brain)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telegram bot")
	}

	log.Info().
		Str("provider", llmCfg.Provider).
		Int("tools", registry.Len()).
		Msg("majordomo ready")

	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("bot stopped")
	}
	log.Info().Msg("shutting down")
}

func mustNewStore(ctx context.Context) memoryx.Store {
	memCfg := configx.MustNew[memoryx.Config]("MEMORY")

	switch strings.ToLower(strings.TrimSpace(memCfg.Backend)) {
	case "postgres":
		dbCfg := configx.MustNew[memoryx.PostgresConfig]("DATABASE")
		store, err := memoryx.NewPostgresStore(ctx, *dbCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize postgres store")
		}
		return store
	case "redis":
		redisCfg := configx.MustNew[memoryx.RedisConfig]("REDIS")
		store, err := memoryx.NewRedisStore(ctx, *redisCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize redis store")
		}
		return store
	case "inmemory":
		log.Warn().Msg("using in-memory store, conversations will not survive restart")
		return memoryx.NewInMemoryStore()
	default:
		log.Fatal().Str("backend", memCfg.Backend).Msg("unknown memory backend")
		return nil
	}
}

// registerTools wires every builtin tool. Calendar and email are
// optional: they register only when their credentials are configured.
func registerTools(registry *toolx.Registry, brain *brainx.Brain, store memoryx.Store) {
	mustRegister(registry, toolx.NewDateTimeTool(brain.Location()))
	mustRegister(registry, toolx.NewRememberTool(store))
	mustRegister(registry, toolx.NewRecallTool(store))
	mustRegister(registry, toolx.NewWebSearchTool())
	mustRegister(registry, toolx.NewFetchWebPageTool(nil))

	calendarCfg := configx.MustNew[toolx.CalendarConfig]("CALENDAR")
	if strings.TrimSpace(calendarCfg.BaseURL) != "" {
		calendar, err := toolx.NewCalendarClient(*calendarCfg, brain.Location())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize calendar client")
		}
		mustRegister(registry, toolx.NewCreateEventTool(calendar))
		mustRegister(registry, toolx.NewListEventsTool(calendar))
		mustRegister(registry, toolx.NewDeleteEventTool(calendar))
		mustRegister(registry, toolx.NewSearchEventsTool(calendar))
	} else {
		log.Info().Msg("calendar base url not set, calendar tools disabled")
	}

	emailCfg := configx.MustNew[toolx.EmailConfig]("EMAIL")
	if strings.TrimSpace(emailCfg.Address) != "" && strings.TrimSpace(emailCfg.Password) != "" {
		email, err := toolx.NewSendEmailTool(*emailCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize email tool")
		}
		mustRegister(registry, email)
	} else {
		log.Info().Msg("email credentials not set, send_email disabled")
	}
}

func mustRegister(registry *toolx.Registry, tool toolx.Tool) {
	if err := registry.Register(tool); err != nil {
		panic(fmt.Sprintf("register tool: %v", err))
	}
}

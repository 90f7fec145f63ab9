package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-bot/internal/api/http"
	"github.com/spec-kit/support-bot/internal/api/http/handlers"
	"github.com/spec-kit/support-bot/internal/auth"
	"github.com/spec-kit/support-bot/internal/completion"
	"github.com/spec-kit/support-bot/internal/config"
	"github.com/spec-kit/support-bot/internal/conversation"
	"github.com/spec-kit/support-bot/internal/discord"
	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/internal/intent"
	"github.com/spec-kit/support-bot/internal/lock"
	"github.com/spec-kit/support-bot/internal/observability"
	"github.com/spec-kit/support-bot/internal/persistence"
	"github.com/spec-kit/support-bot/internal/prompt"
	"github.com/spec-kit/support-bot/internal/repository"
	"github.com/spec-kit/support-bot/internal/service"
	"github.com/spec-kit/support-bot/internal/storage"
	"github.com/spec-kit/support-bot/internal/worker"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Discord bot and the operator API",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe()
		},
	}
}

type stores struct {
	tickets  repository.TicketRepository
	teaches  repository.TeachRepository
	memory   repository.MemoryRepository
	settings repository.SettingsRepository
	history  repository.TicketHistoryRepository
}

// newStores picks Postgres repositories when a pool is available and in-memory ones otherwise.
func newStores(pg *persistence.Postgres, logger *zap.Logger) stores {
	if pg.Enabled() {
		pool := pg.PoolHandle()
		return stores{
			tickets:  repository.NewTicketRepository(pool),
			teaches:  repository.NewTeachRepository(pool),
			memory:   repository.NewMemoryRepository(pool),
			settings: repository.NewSettingsRepository(pool),
			history:  repository.NewTicketHistoryRepository(pool),
		}
	}
	logger.Warn("running on in-memory stores; tickets will not survive a restart")
	return stores{
		tickets:  repository.NewInMemoryTicketRepository(),
		teaches:  repository.NewInMemoryTeachRepository(),
		memory:   repository.NewInMemoryMemoryRepository(),
		settings: repository.NewInMemorySettingsRepository(),
		history:  repository.NewInMemoryTicketHistoryRepository(),
	}
}

func newLocker(rdb *persistence.Redis, cfg config.RedisConfig, logger *zap.Logger) lock.Locker {
	if rdb.Enabled() {
		return lock.NewRedisLocker(rdb.Client, cfg.LockTTL(), logger)
	}
	return lock.NewKeyedMutex()
}

// newArchive returns nil when archiving is not configured or the bucket is unreachable.
func newArchive(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) service.TranscriptArchive {
	if !cfg.Enabled() {
		return nil
	}
	archive, err := storage.NewTranscriptArchive(ctx, cfg, logger)
	if err != nil {
		logger.Warn("transcript archive disabled", zap.Error(err))
		return nil
	}
	return archive
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Discord.Token == "" {
		return fmt.Errorf("DISCORD_TOKEN is required")
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations && pg.Enabled() {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	rdb := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer rdb.Close()

	store := newStores(pg, logger)
	locker := newLocker(rdb, cfg.Redis, logger)
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)

	session, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		return err
	}
	platform := discord.NewPlatform(session, discord.BotIDFromSession(session, cfg.Discord.BotUserID), logger)

	if cfg.AI.APIKey == "" {
		logger.Warn("AI_API_KEY not provided; the assistant will stay silent in tickets")
	}
	completer := completion.NewClient(completion.Options{
		APIKey:      cfg.AI.APIKey,
		URL:         cfg.AI.URL,
		Model:       cfg.AI.Model,
		MaxTokens:   cfg.AI.MaxTokens,
		Temperature: &cfg.AI.Temperature,
		Timeout:     cfg.AI.Timeout(),
	})
	knowledge := prompt.NewKnowledgeCache(store.teaches, cfg.AI.KnowledgeTTL(), logger)
	composer := prompt.NewComposer(prompt.NewBuilder(prompt.Settings{
		CommunityName:       cfg.Discord.CommunityName,
		AICategoryIDs:       cfg.Discord.TicketCategories,
		TicketManagerRoleID: cfg.Discord.TicketManagerRoleID,
		AppealManagerRoleID: cfg.Discord.AppealManagerRoleID,
		OwnerIDs:            cfg.Discord.OwnerIDs,
	}), knowledge)
	controller := conversation.NewController(
		store.tickets,
		intent.NewClassifier(intent.Redirects{
			FAQChannelID:         cfg.Discord.FAQChannelID,
			InfoChannelID:        cfg.Discord.InfoChannelID,
			SuggestionsChannelID: cfg.Discord.SuggestionsChannelID,
		}),
		composer,
		completer,
		platform,
		metrics,
		logger,
		conversation.Options{
			MaxWarnings:         cfg.AI.MaxWarnings,
			TicketManagerRoleID: cfg.Discord.TicketManagerRoleID,
		},
	)

	ops := service.NewOpsService(store.settings, store.tickets, cfg.AI.OpsEnabled, logger)
	memory := service.NewMemoryService(store.memory, cfg.Memory.MaxEntries, cfg.Memory.Retention(), logger)
	teach := service.NewTeachService(store.teaches, logger)
	assignments := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo: store.tickets,
		Platform:   platform,
		Locker:     locker,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   store.tickets,
		Conversation: controller,
		Gate:         conversation.NewGate(cfg.Discord.AICategoryIDs, cfg.Discord.PrivilegedRoleIDs()),
		Ops:          ops,
		Memory:       memory,
		Assignments:  assignments,
		Platform:     platform,
		Archive:      newArchive(ctx, cfg.Storage, logger),
		Locker:       locker,
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Logger:       logger,
		Settings: service.TicketSettings{
			Categories:        cfg.Discord.TicketCategories,
			StaffRoleIDs:      append([]string{cfg.Discord.StaffRoleID}, cfg.Discord.PrivilegedRoleIDs()...),
			LogsChannelID:     cfg.Discord.LogsChannelID,
			Bot:               service.Participant{ID: cfg.Discord.BotUserID, Name: cfg.App.Name},
			InactivityTimeout: cfg.Tickets.InactivityTimeout(),
			TranscriptLimit:   cfg.Tickets.TranscriptLimit,
		},
	})

	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, platform, logger, cfg.Discord.LogsChannelID))
	history := service.NewHistoryService(store.history, logger)
	history.RegisterHandlers(dispatcher)

	scheduler := worker.NewScheduler(logger,
		worker.InactivitySweepJob(tickets, cfg.Tickets.SweepInterval(), logger),
		worker.MemoryPruneJob(memory, cfg.Memory.PruneInterval()),
	)
	scheduler.Start(ctx)

	var app *fiber.App
	if cfg.App.HTTPEnabled {
		app = fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true})
		httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

		authService := service.NewAuthService(cfg.Auth, logger)
		httptransport.RegisterRoutes(app, httptransport.RouteConfig{
			Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Dependency{
				"postgres": pg,
				"redis":    rdb,
			}),
			Auth:    handlers.NewAuthHandler(authService),
			Tickets: handlers.NewTicketsHandler(tickets, history),
			Admin: handlers.NewAdminHandler(handlers.AdminDependencies{
				Ops:       ops,
				Teach:     teach,
				Memory:    memory,
				Knowledge: knowledge,
				Metrics:   metrics,
			}),
			AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), authService),
		})

		go func() {
			if err := app.Listen(cfg.App.Addr()); err != nil {
				logger.Fatal("fiber listen", zap.Error(err))
			}
		}()
	}

	bot := discord.NewBot(session, discord.NewRouter(discord.RouterDependencies{
		Tickets:     tickets,
		Assignments: assignments,
		Teach:       teach,
		Ops:         ops,
		Replier:     platform,
		Access: discord.Access{
			Prefix:            cfg.Discord.CommandPrefix,
			PrivilegedRoleIDs: cfg.Discord.PrivilegedRoleIDs(),
			StaffRoleID:       cfg.Discord.StaffRoleID,
			OwnerIDs:          cfg.Discord.OwnerIDs,
		},
		Logger: logger,
	}), cfg.Discord.GuildID, 0, logger)
	if err := bot.Start(); err != nil {
		logger.Error("failed to start discord bot", zap.Error(err))
		return err
	}

	waitForShutdown(logger)

	if err := bot.Close(); err != nil {
		logger.Warn("discord close", zap.Error(err))
	}
	if app != nil {
		_ = app.Shutdown()
	}
	cancel()
	scheduler.Wait()
	return nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"tush00nka/bbbab_chatsync/internal/config"
	"tush00nka/bbbab_chatsync/internal/gateway"
	"tush00nka/bbbab_chatsync/internal/handler"
	"tush00nka/bbbab_chatsync/internal/pkg/auth"
	"tush00nka/bbbab_chatsync/internal/pkg/storage"
	"tush00nka/bbbab_chatsync/internal/presence"
	"tush00nka/bbbab_chatsync/internal/ratelimit"
	"tush00nka/bbbab_chatsync/internal/repository"
	"tush00nka/bbbab_chatsync/internal/service"
	"tush00nka/bbbab_chatsync/internal/ws"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Run собирает зависимости и блокируется до SIGINT/SIGTERM
func Run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewDB(cfg.DSN(), cfg.Environment == "development")
	if err != nil {
		return err
	}
	if err := repository.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = storage.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		log.Info().Str("addr", cfg.RedisAddr).Msg("Redis connected")
	}

	// Репозитории
	chatRepo := repository.NewChatRepository(db)
	if rdb != nil {
		chatRepo = repository.NewCachedChatRepository(chatRepo, rdb)
	}
	messageRepo := repository.NewMessageRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	userRepo := repository.NewUserRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	hub := ws.NewHub()
	defer hub.Shutdown()

	// Сервисы
	notifier := service.NewNotificationService(chatRepo, userRepo, notificationRepo)
	chatService := service.NewChatService(chatRepo)
	messageService := service.NewMessageService(chatRepo, messageRepo, notifier, hub)
	ledgerService := service.NewLedgerService(chatRepo, messageRepo, ledgerRepo)
	dispatcher := gateway.NewDispatcher(chatService, messageService, ledgerService)

	scheduler := cron.New()
	limiter := newLimiter(cfg, rdb, scheduler)
	if _, err := scheduler.AddFunc("@every 5m", func() {
		rooms, conns := hub.Stats()
		log.Info().Int("rooms", rooms).Int64("connections", conns).Msg("Hub stats")
	}); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	transport := newTransport(cfg, rdb)
	go func() {
		if err := transport.Listen(ctx, hub.DeliverTyping); err != nil {
			log.Error().Err(err).Msg("Typing listener stopped")
		}
	}()

	checks := map[string]handler.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	var mediaHandler *handler.MediaHandler
	if cfg.S3Enabled() {
		media, err := service.NewS3Service(ctx, cfg)
		if err != nil {
			return err
		}
		checks["storage"] = media.HealthCheck
		mediaHandler = handler.NewMediaHandler(chatService, media)
	} else {
		log.Warn().Msg("S3 is not configured, media upload disabled")
	}

	server := NewServer(Handlers{
		Gateway: handler.NewGatewayHandler(dispatcher),
		Chat:    handler.NewChatHandler(chatService),
		Media:   mediaHandler,
		Typing:  handler.NewTypingHandler(chatService, userRepo, transport, hub, ws.NewUpgrader(cfg.AllowedOrigins)),
		Health:  handler.NewHealthHandler(checks),
	}, auth.NewIdentity(cfg.JWTKey), limiter, cfg.AllowedOrigins)

	return server.Run(ctx, cfg.ServerPort)
}

func newLimiter(cfg *config.Config, rdb *redis.Client, scheduler *cron.Cron) *ratelimit.Limiter {
	if cfg.RateLimitBackend == config.BackendRedis && rdb != nil {
		log.Info().Msg("Rate limit counters in redis")
		return ratelimit.New(ratelimit.NewRedisCounter(rdb), cfg.RateLimitRequests, cfg.RateLimitWindow)
	}

	// счетчики живут в процессе; у каждого инстанса свой лимит
	counter := ratelimit.NewMemoryCounter()
	_, err := scheduler.AddFunc("@every 1m", func() {
		if n := counter.Sweep(); n > 0 {
			log.Debug().Int("removed", n).Int("left", counter.Len()).Msg("Rate limit windows swept")
		}
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to schedule rate limit sweep")
	}
	return ratelimit.New(counter, cfg.RateLimitRequests, cfg.RateLimitWindow)
}

func newTransport(cfg *config.Config, rdb *redis.Client) presence.Transport {
	if cfg.TypingBackend == config.BackendRedis && rdb != nil {
		return presence.NewRedisTransport(rdb)
	}
	return presence.NewMemoryTransport()
}

// Package main - точка входа для REST API приложения Zhuldyz Hub.
//
// Zhuldyz Hub - звёздная экономика для детской образовательной программы:
// уроки открываются по порядку, оценки приносят звёзды, звёзды
// обмениваются на призы.
//
// Архитектура следует принципам Clean Architecture и DDD:
// - Domain: чистая бизнес-логика без внешних зависимостей
// - Application: оркестрация use cases (Commands/Queries)
// - Infrastructure: PostgreSQL, Redis, event bus
// - Interface: HTTP handlers
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/zhuldyz-hub/zhuldyz-hub/config"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/application/access"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/application/command"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/application/eventhandler"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/application/query"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/infrastructure/messaging"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/infrastructure/persistence/postgres"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/infrastructure/persistence/redis"
	httpapi "github.com/zhuldyz-hub/zhuldyz-hub/internal/interface/http"
	"github.com/zhuldyz-hub/zhuldyz-hub/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
	}).With(logger.Component("api"))

	log.Info("starting zhuldyz-hub api",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ── PostgreSQL ────────────────────────────────────────────────────────

	conn, err := connectPostgres(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer conn.Close()

	migrator := postgres.NewMigrator(conn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	studentRepo := postgres.NewStudentRepository(conn)
	lessonRepo := postgres.NewLessonRepository(conn)
	progressRepo := postgres.NewProgressRepository(conn)
	ledgerRepo := postgres.NewLedgerRepository(conn)
	rewardRepo := postgres.NewRewardRepository(conn)
	redemptionRepo := postgres.NewRedemptionRepository(conn)
	accountRepo := postgres.NewAccountRepository(conn)
	uowFactory := postgres.NewUnitOfWorkFactory(conn)

	// ── Redis ─────────────────────────────────────────────────────────────

	cache, err := redis.NewCache(redis.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer cache.Close()

	leaderboardCache := redis.NewLeaderboardCache(cache)
	sessionStore := redis.NewSessionStore(cache)

	// ── Event bus ─────────────────────────────────────────────────────────

	eventBus := messaging.NewEventBus(messaging.EventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 10,
		Logger:         log,
	})
	defer eventBus.Close()

	starsChanged := eventhandler.NewOnStarsChangedHandler(studentRepo, leaderboardCache, log)
	for _, eventType := range eventhandler.StarsChangedEvents {
		if err := eventBus.Subscribe(eventType, starsChanged); err != nil {
			return fmt.Errorf("subscribe %s: %w", eventType, err)
		}
	}

	// ── Application layer ─────────────────────────────────────────────────

	deps := httpapi.Dependencies{
		CompleteLesson:    command.NewCompleteLessonHandler(lessonRepo, uowFactory, eventBus),
		RedeemRewards:     command.NewRedeemRewardsHandler(uowFactory, eventBus),
		UpdateRedemption:  command.NewUpdateRedemptionHandler(uowFactory, eventBus),
		RegisterStudent:   command.NewRegisterStudentHandler(studentRepo, eventBus),
		DeactivateStudent: command.NewDeactivateStudentHandler(studentRepo, eventBus),
		CreateLesson:      command.NewCreateLessonHandler(lessonRepo),
		CreateReward:      command.NewCreateRewardHandler(rewardRepo),

		GetLeaderboard:     query.NewGetLeaderboardHandler(studentRepo, leaderboardCache),
		GetStudentProgress: query.NewGetStudentProgressHandler(studentRepo, lessonRepo, progressRepo, ledgerRepo, redemptionRepo),
		GetStatistics:      query.NewGetStatisticsHandler(studentRepo, lessonRepo, progressRepo, ledgerRepo),
		GetRewards:         query.NewGetRewardsHandler(rewardRepo),

		Accounts: accountRepo,
		Sessions: sessionStore,
		Logger:   log,
		HealthChecker: &healthChecker{
			conn:  conn,
			cache: cache,
		},
	}

	if err := seedAdmin(ctx, cfg, accountRepo, log); err != nil {
		return fmt.Errorf("seed admin account: %w", err)
	}

	// ── HTTP server ───────────────────────────────────────────────────────

	server := httpapi.NewServer(httpapi.Config{
		Host:               cfg.HTTP.Host,
		Port:               cfg.HTTP.Port,
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		MaxHeaderBytes:     1 << 20,
		EnableCORS:         cfg.HTTP.EnableCORS,
		AllowedOrigins:     cfg.HTTP.AllowedOrigins,
		RateLimitPerMinute: cfg.HTTP.RateLimitPerMinute,
	}, deps)

	errCh := server.StartAsync()
	log.Info("api listening", logger.String("address", server.Address()))

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info("stopped cleanly")
	return nil
}

// connectPostgres prefers DATABASE_URL and falls back to the individual
// DB_* settings.
func connectPostgres(ctx context.Context, cfg *config.Config) (*postgres.Connection, error) {
	if cfg.Database.URL != "" {
		return postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	}
	return postgres.NewConnection(ctx, postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		Database:        cfg.Database.Name,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnectTimeout:  cfg.Database.ConnectTimeout,
	})
}

// seedAdmin создаёт стартовый админ-аккаунт из окружения. Создание
// аккаунтов через API доступно только админам, поэтому первый админ
// приходит из ADMIN_LOGIN / ADMIN_PASSWORD.
func seedAdmin(ctx context.Context, cfg *config.Config, accounts access.AccountRepository, log *logger.Logger) error {
	if cfg.Admin.Login == "" || cfg.Admin.Password == "" {
		return nil
	}

	_, err := accounts.GetByLogin(ctx, cfg.Admin.Login)
	if err == nil {
		return nil // already seeded
	}
	if !errors.Is(err, access.ErrAccountNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Admin.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	account, err := access.NewAccount(uuid.NewString(), cfg.Admin.Login, string(hash), "Administrator", access.RoleAdmin)
	if err != nil {
		return err
	}
	if err := accounts.Create(ctx, account); err != nil {
		return err
	}

	log.Info("seeded admin account", logger.String("login", cfg.Admin.Login))
	return nil
}

// healthChecker reports backing service health for /health.
type healthChecker struct {
	conn  *postgres.Connection
	cache *redis.Cache
}

func (h *healthChecker) CheckHealth(ctx context.Context) map[string]error {
	return map[string]error{
		"postgres": h.conn.Ping(ctx),
		"redis":    h.cache.Ping(ctx),
	}
}

// Package main - точка входа для фоновых процессов (Worker) Zhuldyz Hub.
//
// Worker отвечает за периодические задачи:
// - Прогрев кеша лидерборда (глобального и по учителям)
// - Ночная сверка материализованных балансов с журналом транзакций
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zhuldyz-hub/zhuldyz-hub/config"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/infrastructure/persistence/postgres"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/infrastructure/persistence/redis"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/infrastructure/scheduler"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/infrastructure/scheduler/jobs"
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
	}).With(logger.Component("worker"))

	log.Info("starting zhuldyz-hub worker",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("timezone", cfg.App.Timezone))

	if !cfg.Scheduler.Enabled {
		log.Warn("scheduler disabled, nothing to do")
		return nil
	}

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
	ledgerRepo := postgres.NewLedgerRepository(conn)

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

	// ── Scheduler ─────────────────────────────────────────────────────────

	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:   log,
		Timezone: cfg.App.Location,
	})

	rebuildJob := jobs.NewRebuildLeaderboardJob(studentRepo, leaderboardCache, log, jobs.RebuildLeaderboardConfig{
		TopSize: cfg.Scheduler.LeaderboardTopSize,
		Timeout: cfg.Scheduler.JobTimeout,
	})
	if err := sched.Register(rebuildJob, scheduler.NewIntervalSchedule(cfg.Scheduler.RebuildLeaderboardInterval)); err != nil {
		return fmt.Errorf("register %s: %w", rebuildJob.Name(), err)
	}

	auditJob := jobs.NewAuditLedgerJob(studentRepo, ledgerRepo, log)
	auditSchedule := scheduler.NewDailySchedule(
		cfg.Scheduler.LedgerAuditHour,
		cfg.Scheduler.LedgerAuditMinute,
		cfg.App.Location,
	)
	if err := sched.Register(auditJob, auditSchedule); err != nil {
		return fmt.Errorf("register %s: %w", auditJob.Name(), err)
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	log.Info("worker running",
		logger.String("leaderboard_interval", cfg.Scheduler.RebuildLeaderboardInterval.String()),
		logger.String("audit_schedule", auditSchedule.String()))

	<-ctx.Done()

	log.Info("shutting down")
	if err := sched.Stop(); err != nil {
		log.Error("scheduler stop failed", logger.Err(err))
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

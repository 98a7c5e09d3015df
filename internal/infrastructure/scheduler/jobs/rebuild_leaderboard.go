// Package jobs contains implementations of scheduled background jobs.
package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/zhuldyz-hub/zhuldyz-hub/internal/application/query"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/student"
	"github.com/zhuldyz-hub/zhuldyz-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD LEADERBOARD JOB
// Периодически пересобирает кеш топов из базы: глобальный и по каждому
// учителю. Между пересборками кеш сбрасывают обработчики событий, так что
// задача - тёплый кеш для первого запроса после TTL, а не единственный
// источник актуальности.
// ══════════════════════════════════════════════════════════════════════════════

// RebuildLeaderboardJob rebuilds cached leaderboard tops from the database.
type RebuildLeaderboardJob struct {
	studentRepo student.Repository
	cache       query.LeaderboardCache
	log         *logger.Logger

	config RebuildLeaderboardConfig

	lastStats atomic.Value // *RebuildStats
}

// RebuildLeaderboardConfig contains configuration for the rebuild job.
type RebuildLeaderboardConfig struct {
	// TopSize is how many entries each cached top holds.
	TopSize int

	// Timeout is the maximum duration for one rebuild run.
	Timeout time.Duration
}

// DefaultRebuildLeaderboardConfig returns sensible defaults.
func DefaultRebuildLeaderboardConfig() RebuildLeaderboardConfig {
	return RebuildLeaderboardConfig{
		TopSize: 100,
		Timeout: time.Minute,
	}
}

// RebuildStats contains statistics from a rebuild run.
type RebuildStats struct {
	StartedAt     time.Time
	CompletedAt   time.Time
	Duration      time.Duration
	TotalStudents int
	ScopesCached  int
	Errors        int
}

// NewRebuildLeaderboardJob creates a new rebuild leaderboard job.
func NewRebuildLeaderboardJob(
	studentRepo student.Repository,
	cache query.LeaderboardCache,
	log *logger.Logger,
	config RebuildLeaderboardConfig,
) *RebuildLeaderboardJob {
	if log == nil {
		log = logger.Default()
	}
	if config.TopSize <= 0 {
		config.TopSize = 100
	}

	return &RebuildLeaderboardJob{
		studentRepo: studentRepo,
		cache:       cache,
		log:         log.With(logger.Component("jobs.rebuild_leaderboard")),
		config:      config,
	}
}

// Name returns the job name.
func (j *RebuildLeaderboardJob) Name() string {
	return "rebuild_leaderboard"
}

// Description returns a human-readable description.
func (j *RebuildLeaderboardJob) Description() string {
	return "Rebuilds cached leaderboard tops for the global scope and every teacher"
}

// Run executes the rebuild job.
func (j *RebuildLeaderboardJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &RebuildStats{StartedAt: startedAt}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	// Ученики приходят уже в порядке рейтинга: баланс по убыванию,
	// при равенстве раньше зарегистрированный выше.
	students, err := j.studentRepo.GetAll(ctx, student.DefaultListOptions().WithLimit(0))
	if err != nil {
		return fmt.Errorf("failed to load students: %w", err)
	}
	stats.TotalStudents = len(students)

	global := make([]query.LeaderboardEntryDTO, 0, j.config.TopSize)
	byTeacher := make(map[string][]query.LeaderboardEntryDTO)

	for i, s := range students {
		if len(global) < j.config.TopSize {
			global = append(global, j.entry(s, i+1))
		}

		teacherKey := s.TeacherID.String()
		own := byTeacher[teacherKey]
		if len(own) < j.config.TopSize {
			byTeacher[teacherKey] = append(own, j.entry(s, len(own)+1))
		}
	}

	if err := j.cache.CacheTop(ctx, query.GlobalScopeKey, global); err != nil {
		stats.Errors++
		j.log.Warn("failed to cache global top", logger.Err(err))
	} else {
		stats.ScopesCached++
	}

	for teacherKey, entries := range byTeacher {
		if err := j.cache.CacheTop(ctx, teacherKey, entries); err != nil {
			stats.Errors++
			j.log.Warn("failed to cache teacher top",
				logger.TeacherID(teacherKey), logger.Err(err))
			continue
		}
		stats.ScopesCached++
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastStats.Store(stats)

	j.log.Info("leaderboard cache rebuilt",
		logger.Int("students", stats.TotalStudents),
		logger.Int("scopes", stats.ScopesCached),
		logger.Int("errors", stats.Errors),
		logger.String("duration", stats.Duration.String()))

	if stats.Errors > 0 {
		return fmt.Errorf("rebuild completed with %d errors", stats.Errors)
	}
	return nil
}

// entry builds a leaderboard entry with the given rank.
func (j *RebuildLeaderboardJob) entry(s *student.Student, rank int) query.LeaderboardEntryDTO {
	return query.LeaderboardEntryDTO{
		Rank:         rank,
		StudentID:    s.ID,
		DisplayName:  s.DisplayName,
		TeacherID:    s.TeacherID.String(),
		StarBalance:  int(s.StarBalance),
		RegisteredAt: s.CreatedAt,
	}
}

// LastStats returns statistics from the last rebuild.
func (j *RebuildLeaderboardJob) LastStats() *RebuildStats {
	stats := j.lastStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*RebuildStats)
}

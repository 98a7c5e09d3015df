// Package eventhandler содержит обработчики доменных событий.
// Обработчики - "реактивная" часть системы: они реагируют на изменения
// и запускают побочные эффекты, например сброс кеша лидерборда.
package eventhandler

import (
	"context"
	"errors"
	"time"

	"github.com/zhuldyz-hub/zhuldyz-hub/internal/application/query"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/shared"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/student"
	"github.com/zhuldyz-hub/zhuldyz-hub/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON STARS CHANGED HANDLER
// Любое движение баланса делает закешированный лидерборд устаревшим.
// Обработчик сбрасывает кеш глобальной области и области учителя ученика;
// следующий запрос пересоберёт топ из базы.
// ═══════════════════════════════════════════════════════════════════════════

// StarsChangedEvents - типы событий, двигающие баланс.
var StarsChangedEvents = []shared.EventType{
	shared.EventStarsEarned,
	shared.EventLessonRegraded,
	shared.EventRewardRedeemed,
	shared.EventRedemptionCancelled,
}

// OnStarsChangedHandler сбрасывает кеш лидерборда при движении баланса.
type OnStarsChangedHandler struct {
	studentRepo student.Repository
	cache       query.LeaderboardCache
	log         *logger.Logger

	// timeout ограничивает обработку одного события.
	timeout time.Duration
}

// NewOnStarsChangedHandler создаёт новый обработчик.
func NewOnStarsChangedHandler(
	studentRepo student.Repository,
	cache query.LeaderboardCache,
	log *logger.Logger,
) *OnStarsChangedHandler {
	if log == nil {
		log = logger.Default()
	}
	return &OnStarsChangedHandler{
		studentRepo: studentRepo,
		cache:       cache,
		log:         log.With(logger.Component("eventhandler.stars_changed")),
		timeout:     5 * time.Second,
	}
}

// Handle реализует shared.EventHandler.
func (h *OnStarsChangedHandler) Handle(event shared.Event) error {
	if h.cache == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	studentID := event.AggregateID()

	if err := h.cache.Invalidate(ctx, query.GlobalScopeKey); err != nil {
		h.log.Warn("failed to invalidate global leaderboard cache",
			logger.Err(err), logger.StudentID(studentID))
	}

	stud, err := h.studentRepo.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, student.ErrStudentNotFound) {
			return nil
		}
		h.log.Warn("failed to resolve student for cache invalidation",
			logger.Err(err), logger.StudentID(studentID))
		return err
	}

	if err := h.cache.Invalidate(ctx, stud.TeacherID.String()); err != nil {
		h.log.Warn("failed to invalidate teacher leaderboard cache",
			logger.Err(err), logger.TeacherID(stud.TeacherID.String()))
		return err
	}

	h.log.Debug("leaderboard cache invalidated",
		logger.StudentID(studentID),
		logger.String("event_type", string(event.EventType())))

	return nil
}

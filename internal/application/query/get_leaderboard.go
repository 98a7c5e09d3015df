// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"errors"
	"time"

	"github.com/zhuldyz-hub/zhuldyz-hub/internal/application/access"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/shared"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Рейтинг учеников по балансу звёзд. Ранги позиционные: строго возрастают
// без пропусков, при равном балансе выше стоит зарегистрировавшийся раньше.
// Учителя видят только своих учеников, админы - всю платформу.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery содержит параметры запроса лидерборда.
type GetLeaderboardQuery struct {
	// Actor - аутентифицированный вызывающий; определяет область видимости.
	Actor access.Actor

	// Search - фильтр по имени ученика (пустая строка = без фильтра).
	Search string

	// Limit - количество записей (по умолчанию 20, максимум 100).
	Limit int

	// Offset - смещение для пагинации.
	Offset int
}

// Validate проверяет корректность параметров запроса.
func (q *GetLeaderboardQuery) Validate() error {
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		return errors.New("offset cannot be negative")
	}
	return nil
}

// LeaderboardEntryDTO - запись лидерборда.
type LeaderboardEntryDTO struct {
	// Rank - позиция в рейтинге (начиная с 1).
	Rank int `json:"rank"`

	// StudentID - внутренний ID ученика.
	StudentID string `json:"student_id"`

	// DisplayName - отображаемое имя.
	DisplayName string `json:"display_name"`

	// TeacherID - учитель ученика.
	TeacherID string `json:"teacher_id"`

	// StarBalance - текущий баланс звёзд.
	StarBalance int `json:"star_balance"`

	// RegisteredAt - дата регистрации (тай-брейк при равном балансе).
	RegisteredAt time.Time `json:"registered_at"`
}

// GetLeaderboardResult содержит результат запроса лидерборда.
type GetLeaderboardResult struct {
	// Entries - записи лидерборда в порядке рангов.
	Entries []LeaderboardEntryDTO `json:"entries"`

	// TotalCount - общее количество учеников в области видимости.
	TotalCount int `json:"total_count"`

	// FromCache - получен ли результат из кеша.
	FromCache bool `json:"from_cache"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// LeaderboardCache кеширует верх рейтинга. Ключ - область видимости
// ("global" или ID учителя). Реализация живёт в infrastructure/persistence/redis.
type LeaderboardCache interface {
	// GetCachedTop возвращает закешированный топ или ошибку при промахе.
	GetCachedTop(ctx context.Context, scopeKey string, limit int) ([]LeaderboardEntryDTO, error)

	// CacheTop сохраняет топ рейтинга.
	CacheTop(ctx context.Context, scopeKey string, entries []LeaderboardEntryDTO) error

	// Invalidate сбрасывает кеш области видимости.
	Invalidate(ctx context.Context, scopeKey string) error
}

// GlobalScopeKey - ключ кеша для рейтинга всей платформы.
const GlobalScopeKey = "global"

// ScopeKeyFor возвращает ключ кеша для области видимости актора.
func ScopeKeyFor(scope access.Scope) string {
	if scope.Restricted() {
		return scope.TeacherID.String()
	}
	return GlobalScopeKey
}

// GetLeaderboardHandler обрабатывает запросы на получение лидерборда.
type GetLeaderboardHandler struct {
	studentRepo student.Repository
	cache       LeaderboardCache
}

// NewGetLeaderboardHandler создаёт новый обработчик запроса лидерборда.
func NewGetLeaderboardHandler(studentRepo student.Repository, cache LeaderboardCache) *GetLeaderboardHandler {
	return &GetLeaderboardHandler{
		studentRepo: studentRepo,
		cache:       cache,
	}
}

// Handle выполняет запрос на получение лидерборда.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, query GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetLeaderboard", shared.ErrValidation, err.Error(), err)
	}

	scope := access.ScopeFor(query.Actor)

	// Поиск по имени мимо кеша: кешируется только чистый топ.
	if query.Search == "" {
		if result, err := h.tryGetFromCache(ctx, scope, query); err == nil {
			return result, nil
		}
	}

	students, err := h.loadStudents(ctx, scope, query)
	if err != nil {
		return nil, shared.WrapError("query", "GetLeaderboard", shared.ErrInternal, "failed to load students", err)
	}

	entries := make([]LeaderboardEntryDTO, len(students))
	for i, s := range students {
		entries[i] = LeaderboardEntryDTO{
			// Репозиторий отдаёт учеников в порядке рейтинга, поэтому ранг -
			// это позиция с учётом смещения.
			Rank:         query.Offset + i + 1,
			StudentID:    s.ID,
			DisplayName:  s.DisplayName,
			TeacherID:    s.TeacherID.String(),
			StarBalance:  int(s.StarBalance),
			RegisteredAt: s.CreatedAt,
		}
	}

	totalCount, err := h.countScope(ctx, scope)
	if err != nil {
		totalCount = len(entries)
	}

	if query.Search == "" && query.Offset == 0 && h.cache != nil {
		_ = h.cache.CacheTop(ctx, ScopeKeyFor(scope), entries)
	}

	return &GetLeaderboardResult{
		Entries:     entries,
		TotalCount:  totalCount,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// tryGetFromCache пытается собрать страницу из закешированного топа.
func (h *GetLeaderboardHandler) tryGetFromCache(
	ctx context.Context,
	scope access.Scope,
	query GetLeaderboardQuery,
) (*GetLeaderboardResult, error) {
	if h.cache == nil {
		return nil, errors.New("cache not available")
	}

	cached, err := h.cache.GetCachedTop(ctx, ScopeKeyFor(scope), query.Offset+query.Limit)
	if err != nil {
		return nil, err
	}
	if len(cached) <= query.Offset {
		return nil, errors.New("cached page too short")
	}

	end := query.Offset + query.Limit
	if end > len(cached) {
		end = len(cached)
	}

	totalCount, err := h.countScope(ctx, scope)
	if err != nil {
		totalCount = len(cached)
	}

	return &GetLeaderboardResult{
		Entries:     cached[query.Offset:end],
		TotalCount:  totalCount,
		FromCache:   true,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// loadStudents читает учеников области видимости в порядке рейтинга.
func (h *GetLeaderboardHandler) loadStudents(
	ctx context.Context,
	scope access.Scope,
	query GetLeaderboardQuery,
) ([]*student.Student, error) {
	opts := student.DefaultListOptions().
		WithOffset(query.Offset).
		WithLimit(query.Limit)

	switch {
	case query.Search != "" && scope.Restricted():
		// Поиск внутри своих учеников: фильтр по учителю уходит в запрос,
		// чтобы страница считалась внутри области видимости.
		return h.studentRepo.SearchByTeacher(ctx, scope.TeacherID, query.Search, opts)
	case query.Search != "":
		return h.studentRepo.Search(ctx, query.Search, opts)
	case scope.Restricted():
		return h.studentRepo.GetByTeacher(ctx, scope.TeacherID, opts)
	default:
		return h.studentRepo.GetAll(ctx, opts)
	}
}

// countScope возвращает количество учеников в области видимости.
func (h *GetLeaderboardHandler) countScope(ctx context.Context, scope access.Scope) (int, error) {
	if scope.Restricted() {
		// Для учителя точный счётчик не критичен: берём размер его списка.
		list, err := h.studentRepo.GetByTeacher(ctx, scope.TeacherID,
			student.DefaultListOptions().WithLimit(0))
		if err != nil {
			return 0, err
		}
		return len(list), nil
	}
	return h.studentRepo.Count(ctx)
}

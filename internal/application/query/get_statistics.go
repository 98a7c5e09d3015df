package query

import (
	"context"
	"time"

	"github.com/zhuldyz-hub/zhuldyz-hub/internal/application/access"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/lesson"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/progress"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/shared"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/student"
	"github.com/zhuldyz-hub/zhuldyz-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STATISTICS QUERY
// Aggregates for the caller's scope: headline counts, a trailing seven day
// activity series and the most active teachers. Admins get the whole
// platform, teachers get their own class. Days are bucketed in local
// (Almaty) time so "today" matches what teachers see on the wall clock.
// ══════════════════════════════════════════════════════════════════════════════

// TopTeachersLimit is how many teachers the ranking returns.
const TopTeachersLimit = 10

// GetStatisticsQuery contains the parameters for the statistics request.
type GetStatisticsQuery struct {
	// Actor is the authenticated caller; determines the scope.
	Actor access.Actor

	// Now overrides the reference time; zero means time.Now. Used in tests.
	Now time.Time
}

// DailyActivityDTO is one day of the weekly series.
type DailyActivityDTO struct {
	// Date is the local day start.
	Date time.Time `json:"date"`

	// LessonsCompleted is the number of gradings recorded that day,
	// first completions and re-grades alike.
	LessonsCompleted int `json:"lessons_completed"`

	// StarsEarned is the sum of grades recorded that day.
	StarsEarned int `json:"stars_earned"`
}

// TopTeacherDTO is one entry of the teacher ranking.
type TopTeacherDTO struct {
	// TeacherID identifies the teacher.
	TeacherID string `json:"teacher_id"`

	// StudentCount is the number of active students.
	StudentCount int `json:"student_count"`

	// TotalStars is the summed star balance of those students.
	TotalStars int `json:"total_stars"`
}

// GetStatisticsResult contains the platform statistics.
type GetStatisticsResult struct {
	// TotalStudents is the number of active students in scope.
	TotalStudents int `json:"total_students"`

	// TotalLessons is the number of active lessons in the catalog.
	TotalLessons int `json:"total_lessons"`

	// MasteredLessons is the number of mastered completion records in scope.
	MasteredLessons int `json:"mastered_lessons"`

	// StarsInCirculation is everything earned minus everything spent,
	// refunds included: the whole star journal for admins, the summed
	// balances of the class for a teacher.
	StarsInCirculation int `json:"stars_in_circulation"`

	// WeeklyActivity is the trailing seven days, oldest first.
	WeeklyActivity []DailyActivityDTO `json:"weekly_activity"`

	// TopTeachers ranks teachers by student count, ties broken by stars.
	// A restricted scope sees only the caller's own row.
	TopTeachers []TopTeacherDTO `json:"top_teachers"`

	// GeneratedAt is when the result was computed.
	GeneratedAt time.Time `json:"generated_at"`
}

// GetStatisticsHandler handles the GetStatisticsQuery.
type GetStatisticsHandler struct {
	studentRepo  student.Repository
	lessonRepo   lesson.Repository
	progressRepo progress.Repository
	ledgerRepo   progress.LedgerRepository
}

// NewGetStatisticsHandler creates a new GetStatisticsHandler.
func NewGetStatisticsHandler(
	studentRepo student.Repository,
	lessonRepo lesson.Repository,
	progressRepo progress.Repository,
	ledgerRepo progress.LedgerRepository,
) *GetStatisticsHandler {
	return &GetStatisticsHandler{
		studentRepo:  studentRepo,
		lessonRepo:   lessonRepo,
		progressRepo: progressRepo,
		ledgerRepo:   ledgerRepo,
	}
}

// Handle computes the statistics for the caller's scope.
func (h *GetStatisticsHandler) Handle(ctx context.Context, query GetStatisticsQuery) (*GetStatisticsResult, error) {
	now := query.Now
	if now.IsZero() {
		now = timeutil.Now()
	}

	scope := access.ScopeFor(query.Actor)
	result := &GetStatisticsResult{GeneratedAt: time.Now().UTC()}

	var err error
	// The lesson catalog is shared by the whole program, so its size is the
	// same in every scope.
	if result.TotalLessons, err = h.lessonRepo.Count(ctx); err != nil {
		return nil, shared.WrapError("query", "GetStatistics", shared.ErrInternal, "failed to count lessons", err)
	}
	if result.MasteredLessons, err = h.progressRepo.CountMastered(ctx, scope.TeacherID.String()); err != nil {
		return nil, shared.WrapError("query", "GetStatistics", shared.ErrInternal, "failed to count mastered", err)
	}

	if scope.Restricted() {
		err = h.fillTeacherCounts(ctx, scope, result)
	} else {
		err = h.fillPlatformCounts(ctx, result)
	}
	if err != nil {
		return nil, shared.WrapError("query", "GetStatistics", shared.ErrInternal, "failed to count students", err)
	}

	if result.WeeklyActivity, err = h.weeklyActivity(ctx, scope, now); err != nil {
		return nil, shared.WrapError("query", "GetStatistics", shared.ErrInternal, "failed to build weekly series", err)
	}

	return result, nil
}

// fillPlatformCounts computes the admin view: platform-wide counts and the
// full teacher ranking.
func (h *GetStatisticsHandler) fillPlatformCounts(ctx context.Context, result *GetStatisticsResult) error {
	var err error
	if result.TotalStudents, err = h.studentRepo.Count(ctx); err != nil {
		return err
	}
	if result.StarsInCirculation, err = h.ledgerRepo.TotalInCirculation(ctx); err != nil {
		return err
	}

	top, err := h.studentRepo.TopTeachers(ctx, TopTeachersLimit)
	if err != nil {
		return err
	}
	result.TopTeachers = make([]TopTeacherDTO, len(top))
	for i, t := range top {
		result.TopTeachers[i] = TopTeacherDTO{
			TeacherID:    t.TeacherID.String(),
			StudentCount: t.StudentCount,
			TotalStars:   t.TotalStars,
		}
	}
	return nil
}

// fillTeacherCounts computes the headline numbers for one teacher's class.
// Circulation within a class is the sum of the students' balances: the
// journal carries no teacher column, and the audit job keeps every balance
// equal to its journal sum. Other teachers' aggregates stay invisible, so
// the ranking holds at most the caller's own row.
func (h *GetStatisticsHandler) fillTeacherCounts(ctx context.Context, scope access.Scope, result *GetStatisticsResult) error {
	own, err := h.studentRepo.GetByTeacher(ctx, scope.TeacherID, student.DefaultListOptions().WithLimit(0))
	if err != nil {
		return err
	}

	result.TotalStudents = len(own)
	for _, s := range own {
		result.StarsInCirculation += int(s.StarBalance)
	}

	if len(own) > 0 {
		result.TopTeachers = []TopTeacherDTO{{
			TeacherID:    scope.TeacherID.String(),
			StudentCount: result.TotalStudents,
			TotalStars:   result.StarsInCirculation,
		}}
	}
	return nil
}

// weeklyActivity buckets the last seven local days of gradings visible to
// the scope.
func (h *GetStatisticsHandler) weeklyActivity(ctx context.Context, scope access.Scope, now time.Time) ([]DailyActivityDTO, error) {
	days := timeutil.LastNDays(now, 7)
	from := days[0]
	to := timeutil.StartOfDay(now).Add(24 * time.Hour)

	records, err := h.progressRepo.GetCompletedBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	series := make([]DailyActivityDTO, len(days))
	index := make(map[time.Time]int, len(days))
	for i, day := range days {
		series[i] = DailyActivityDTO{Date: day}
		index[day] = i
	}

	for _, rec := range records {
		if scope.Restricted() && rec.TeacherID != scope.TeacherID.String() {
			continue
		}
		day := timeutil.StartOfDay(rec.CompletedAt)
		i, ok := index[day]
		if !ok {
			continue
		}
		series[i].LessonsCompleted++
		series[i].StarsEarned += rec.StarsEarned
	}

	return series, nil
}

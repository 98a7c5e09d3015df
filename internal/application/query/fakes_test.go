package query

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/lesson"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/progress"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/reward"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeStudentRepo struct {
	students []*student.Student
}

func (r *fakeStudentRepo) ranked(includeInactive bool) []*student.Student {
	out := make([]*student.Student, 0, len(r.students))
	for _, s := range r.students {
		if !s.Active && !includeInactive {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StarBalance != out[j].StarBalance {
			return out[i].StarBalance > out[j].StarBalance
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func page(list []*student.Student, opts student.ListOptions) []*student.Student {
	if opts.Offset >= len(list) {
		return nil
	}
	list = list[opts.Offset:]
	if opts.Limit > 0 && len(list) > opts.Limit {
		list = list[:opts.Limit]
	}
	return list
}

func (r *fakeStudentRepo) Create(_ context.Context, s *student.Student) error {
	r.students = append(r.students, s)
	return nil
}

func (r *fakeStudentRepo) GetByID(_ context.Context, id string) (*student.Student, error) {
	for _, s := range r.students {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, student.ErrStudentNotFound
}

func (r *fakeStudentRepo) Update(_ context.Context, _ *student.Student) error { return nil }
func (r *fakeStudentRepo) Delete(_ context.Context, _ string) error           { return nil }

func (r *fakeStudentRepo) ApplyStarDelta(_ context.Context, id string, delta student.Stars) (student.Stars, error) {
	for _, s := range r.students {
		if s.ID == id {
			return s.ApplyStarDelta(delta)
		}
	}
	return 0, student.ErrStudentNotFound
}

func (r *fakeStudentRepo) GetAll(_ context.Context, opts student.ListOptions) ([]*student.Student, error) {
	return page(r.ranked(opts.IncludeInactive), opts), nil
}

func (r *fakeStudentRepo) GetByTeacher(_ context.Context, teacherID student.TeacherID, opts student.ListOptions) ([]*student.Student, error) {
	own := make([]*student.Student, 0)
	for _, s := range r.ranked(opts.IncludeInactive) {
		if s.TeacherID == teacherID {
			own = append(own, s)
		}
	}
	return page(own, opts), nil
}

func (r *fakeStudentRepo) Search(_ context.Context, query string, opts student.ListOptions) ([]*student.Student, error) {
	found := make([]*student.Student, 0)
	for _, s := range r.ranked(opts.IncludeInactive) {
		if strings.Contains(strings.ToLower(s.DisplayName), strings.ToLower(query)) {
			found = append(found, s)
		}
	}
	return page(found, opts), nil
}

func (r *fakeStudentRepo) SearchByTeacher(_ context.Context, teacherID student.TeacherID, query string, opts student.ListOptions) ([]*student.Student, error) {
	found := make([]*student.Student, 0)
	for _, s := range r.ranked(opts.IncludeInactive) {
		if s.TeacherID != teacherID {
			continue
		}
		if strings.Contains(strings.ToLower(s.DisplayName), strings.ToLower(query)) {
			found = append(found, s)
		}
	}
	return page(found, opts), nil
}

func (r *fakeStudentRepo) Count(_ context.Context) (int, error) {
	return len(r.ranked(false)), nil
}

func (r *fakeStudentRepo) Exists(_ context.Context, id string) (bool, error) {
	_, err := r.GetByID(context.Background(), id)
	return err == nil, nil
}

func (r *fakeStudentRepo) TopTeachers(_ context.Context, limit int) ([]student.TeacherStats, error) {
	byTeacher := make(map[student.TeacherID]*student.TeacherStats)
	for _, s := range r.ranked(false) {
		stats, ok := byTeacher[s.TeacherID]
		if !ok {
			stats = &student.TeacherStats{TeacherID: s.TeacherID}
			byTeacher[s.TeacherID] = stats
		}
		stats.StudentCount++
		stats.TotalStars += int(s.StarBalance)
	}
	out := make([]student.TeacherStats, 0, len(byTeacher))
	for _, stats := range byTeacher {
		out = append(out, *stats)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StudentCount != out[j].StudentCount {
			return out[i].StudentCount > out[j].StudentCount
		}
		return out[i].TotalStars > out[j].TotalStars
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ── lesson.Repository ─────────────────────────────────────────────────────────

type fakeLessonRepo struct {
	lessons []*lesson.Lesson
}

func (r *fakeLessonRepo) Create(_ context.Context, l *lesson.Lesson) error {
	r.lessons = append(r.lessons, l)
	return nil
}

func (r *fakeLessonRepo) GetByID(_ context.Context, id string) (*lesson.Lesson, error) {
	for _, l := range r.lessons {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, lesson.ErrLessonNotFound
}

func (r *fakeLessonRepo) Update(_ context.Context, _ *lesson.Lesson) error { return nil }
func (r *fakeLessonRepo) Delete(_ context.Context, _ string) error         { return nil }

func (r *fakeLessonRepo) GetActive(_ context.Context) ([]*lesson.Lesson, error) {
	out := make([]*lesson.Lesson, 0, len(r.lessons))
	for _, l := range r.lessons {
		if l.Active {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *fakeLessonRepo) GetCatalog(ctx context.Context) (*lesson.Catalog, error) {
	active, _ := r.GetActive(ctx)
	return lesson.NewCatalog(active), nil
}

func (r *fakeLessonRepo) Count(ctx context.Context) (int, error) {
	active, _ := r.GetActive(ctx)
	return len(active), nil
}

// ── progress repositories ─────────────────────────────────────────────────────

type fakeProgressRepo struct {
	records []*progress.Record
}

func (r *fakeProgressRepo) Create(_ context.Context, rec *progress.Record) error {
	r.records = append(r.records, rec)
	return nil
}

func (r *fakeProgressRepo) Get(_ context.Context, studentID, lessonID string) (*progress.Record, error) {
	for _, rec := range r.records {
		if rec.StudentID == studentID && rec.LessonID == lessonID {
			return rec, nil
		}
	}
	return nil, progress.ErrRecordNotFound
}

func (r *fakeProgressRepo) Update(_ context.Context, _ *progress.Record) error { return nil }

func (r *fakeProgressRepo) GetByStudent(_ context.Context, studentID string) ([]*progress.Record, error) {
	out := make([]*progress.Record, 0)
	for _, rec := range r.records {
		if rec.StudentID == studentID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeProgressRepo) GetMasteredLessonIDs(_ context.Context, studentID string) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, rec := range r.records {
		if rec.StudentID == studentID && rec.Mastered() {
			out[rec.LessonID] = true
		}
	}
	return out, nil
}

func (r *fakeProgressRepo) GetCompletedBetween(_ context.Context, from, to time.Time) ([]*progress.Record, error) {
	out := make([]*progress.Record, 0)
	for _, rec := range r.records {
		if !rec.CompletedAt.Before(from) && rec.CompletedAt.Before(to) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeProgressRepo) CountMastered(_ context.Context, teacherID string) (int, error) {
	n := 0
	for _, rec := range r.records {
		if teacherID != "" && rec.TeacherID != teacherID {
			continue
		}
		if rec.Mastered() {
			n++
		}
	}
	return n, nil
}

type fakeLedgerRepo struct {
	entries []*progress.Transaction
}

func (r *fakeLedgerRepo) Append(_ context.Context, tx *progress.Transaction) error {
	r.entries = append(r.entries, tx)
	return nil
}

func (r *fakeLedgerRepo) GetByStudent(_ context.Context, studentID string, limit int) ([]*progress.Transaction, error) {
	out := make([]*progress.Transaction, 0)
	for _, tx := range r.entries {
		if tx.StudentID == studentID {
			out = append(out, tx)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeLedgerRepo) SumForStudent(_ context.Context, studentID string) (int, error) {
	sum := 0
	for _, tx := range r.entries {
		if tx.StudentID == studentID {
			sum += tx.Amount
		}
	}
	return sum, nil
}

func (r *fakeLedgerRepo) TotalInCirculation(_ context.Context) (int, error) {
	sum := 0
	for _, tx := range r.entries {
		sum += tx.Amount
	}
	return sum, nil
}

// ── reward repositories ───────────────────────────────────────────────────────

type fakeRewardRepo struct {
	rewards []*reward.Reward
}

func (r *fakeRewardRepo) Create(_ context.Context, rw *reward.Reward) error {
	r.rewards = append(r.rewards, rw)
	return nil
}

func (r *fakeRewardRepo) GetByID(_ context.Context, id string) (*reward.Reward, error) {
	for _, rw := range r.rewards {
		if rw.ID == id {
			return rw, nil
		}
	}
	return nil, reward.ErrRewardNotFound
}

func (r *fakeRewardRepo) GetByIDs(_ context.Context, ids []string) (map[string]*reward.Reward, error) {
	out := make(map[string]*reward.Reward)
	for _, rw := range r.rewards {
		for _, id := range ids {
			if rw.ID == id && rw.Active {
				out[id] = rw
			}
		}
	}
	return out, nil
}

func (r *fakeRewardRepo) Update(_ context.Context, _ *reward.Reward) error { return nil }

func (r *fakeRewardRepo) GetActive(_ context.Context) ([]*reward.Reward, error) {
	out := make([]*reward.Reward, 0)
	for _, rw := range r.rewards {
		if rw.Active {
			out = append(out, rw)
		}
	}
	return out, nil
}

func (r *fakeRewardRepo) TakeStock(_ context.Context, _ string, _ int) error    { return nil }
func (r *fakeRewardRepo) RestoreStock(_ context.Context, _ string, _ int) error { return nil }

type fakeRedemptionRepo struct {
	redemptions []*reward.Redemption
}

func (r *fakeRedemptionRepo) Create(_ context.Context, red *reward.Redemption) error {
	r.redemptions = append(r.redemptions, red)
	return nil
}

func (r *fakeRedemptionRepo) GetByID(_ context.Context, id string) (*reward.Redemption, error) {
	for _, red := range r.redemptions {
		if red.ID == id {
			return red, nil
		}
	}
	return nil, reward.ErrRedemptionNotFound
}

func (r *fakeRedemptionRepo) GetByIdempotencyKey(_ context.Context, key string) (*reward.Redemption, error) {
	for _, red := range r.redemptions {
		if red.IdempotencyKey == key {
			return red, nil
		}
	}
	return nil, reward.ErrRedemptionNotFound
}

func (r *fakeRedemptionRepo) Update(_ context.Context, _ *reward.Redemption) error { return nil }

func (r *fakeRedemptionRepo) GetByStudent(_ context.Context, studentID string) ([]*reward.Redemption, error) {
	out := make([]*reward.Redemption, 0)
	for _, red := range r.redemptions {
		if red.StudentID == studentID {
			out = append(out, red)
		}
	}
	return out, nil
}

func (r *fakeRedemptionRepo) SumSpentByStudent(_ context.Context, studentID string) (int, error) {
	sum := 0
	for _, red := range r.redemptions {
		if red.StudentID == studentID && red.Status != reward.StatusCancelled {
			sum += red.StarsCost
		}
	}
	return sum, nil
}

// ── LeaderboardCache ──────────────────────────────────────────────────────────

var errCacheMiss = errors.New("cache miss")

type fakeLeaderboardCache struct {
	tops        map[string][]LeaderboardEntryDTO
	cacheCalls  int
	invalidated []string
}

func newFakeLeaderboardCache() *fakeLeaderboardCache {
	return &fakeLeaderboardCache{tops: make(map[string][]LeaderboardEntryDTO)}
}

func (c *fakeLeaderboardCache) GetCachedTop(_ context.Context, scopeKey string, limit int) ([]LeaderboardEntryDTO, error) {
	top, ok := c.tops[scopeKey]
	if !ok {
		return nil, errCacheMiss
	}
	if limit > 0 && len(top) < limit {
		return nil, errCacheMiss
	}
	if limit > 0 && len(top) > limit {
		top = top[:limit]
	}
	return top, nil
}

func (c *fakeLeaderboardCache) CacheTop(_ context.Context, scopeKey string, entries []LeaderboardEntryDTO) error {
	c.tops[scopeKey] = entries
	c.cacheCalls++
	return nil
}

func (c *fakeLeaderboardCache) Invalidate(_ context.Context, scopeKey string) error {
	delete(c.tops, scopeKey)
	c.invalidated = append(c.invalidated, scopeKey)
	return nil
}

package jobs

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhuldyz-hub/zhuldyz-hub/internal/application/query"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/progress"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/student"
)

// stubStudentRepo serves GetAll in leaderboard order; the rest of the
// interface is unused by the jobs.
type stubStudentRepo struct {
	students []*student.Student
}

func (r *stubStudentRepo) GetAll(_ context.Context, opts student.ListOptions) ([]*student.Student, error) {
	out := make([]*student.Student, 0, len(r.students))
	for _, s := range r.students {
		if !s.Active && !opts.IncludeInactive {
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
	return out, nil
}

func (r *stubStudentRepo) Create(context.Context, *student.Student) error { return nil }

func (r *stubStudentRepo) GetByID(context.Context, string) (*student.Student, error) {
	return nil, student.ErrStudentNotFound
}

func (r *stubStudentRepo) Update(context.Context, *student.Student) error { return nil }
func (r *stubStudentRepo) Delete(context.Context, string) error           { return nil }

func (r *stubStudentRepo) ApplyStarDelta(context.Context, string, student.Stars) (student.Stars, error) {
	return 0, nil
}

func (r *stubStudentRepo) GetByTeacher(context.Context, student.TeacherID, student.ListOptions) ([]*student.Student, error) {
	return nil, nil
}

func (r *stubStudentRepo) Search(context.Context, string, student.ListOptions) ([]*student.Student, error) {
	return nil, nil
}

func (r *stubStudentRepo) SearchByTeacher(context.Context, student.TeacherID, string, student.ListOptions) ([]*student.Student, error) {
	return nil, nil
}

func (r *stubStudentRepo) Count(context.Context) (int, error)           { return 0, nil }
func (r *stubStudentRepo) Exists(context.Context, string) (bool, error) { return false, nil }

func (r *stubStudentRepo) TopTeachers(context.Context, int) ([]student.TeacherStats, error) {
	return nil, nil
}

type stubCache struct {
	tops map[string][]query.LeaderboardEntryDTO
	fail bool
}

func (c *stubCache) GetCachedTop(context.Context, string, int) ([]query.LeaderboardEntryDTO, error) {
	return nil, errors.New("miss")
}

func (c *stubCache) CacheTop(_ context.Context, scopeKey string, entries []query.LeaderboardEntryDTO) error {
	if c.fail {
		return errors.New("redis down")
	}
	if c.tops == nil {
		c.tops = make(map[string][]query.LeaderboardEntryDTO)
	}
	c.tops[scopeKey] = entries
	return nil
}

func (c *stubCache) Invalidate(context.Context, string) error { return nil }

type stubLedger struct {
	sums map[string]int
}

func (l *stubLedger) Append(context.Context, *progress.Transaction) error { return nil }

func (l *stubLedger) GetByStudent(context.Context, string, int) ([]*progress.Transaction, error) {
	return nil, nil
}

func (l *stubLedger) SumForStudent(_ context.Context, studentID string) (int, error) {
	return l.sums[studentID], nil
}

func (l *stubLedger) TotalInCirculation(context.Context) (int, error) { return 0, nil }

func seedStudent(t *testing.T, id string, teacherID student.TeacherID, balance int, createdAt time.Time) *student.Student {
	t.Helper()
	s, err := student.NewStudent(student.NewStudentParams{
		ID:          id,
		TeacherID:   teacherID,
		DisplayName: "Student " + id,
	})
	require.NoError(t, err)
	s.StarBalance = student.Stars(balance)
	s.CreatedAt = createdAt
	return s
}

func TestRebuildLeaderboardJob_CachesGlobalAndTeacherTops(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	repo := &stubStudentRepo{students: []*student.Student{
		seedStudent(t, "s1", "t1", 10, base),
		seedStudent(t, "s2", "t2", 25, base.Add(time.Hour)),
		seedStudent(t, "s3", "t1", 5, base.Add(2*time.Hour)),
	}}
	cache := &stubCache{}
	job := NewRebuildLeaderboardJob(repo, cache, nil, DefaultRebuildLeaderboardConfig())

	require.NoError(t, job.Run(context.Background()))

	global := cache.tops[query.GlobalScopeKey]
	require.Len(t, global, 3)
	assert.Equal(t, "s2", global[0].StudentID)
	assert.Equal(t, 1, global[0].Rank)
	assert.Equal(t, 3, global[2].Rank)

	// Each teacher's top is ranked within the class.
	t1 := cache.tops["t1"]
	require.Len(t, t1, 2)
	assert.Equal(t, "s1", t1[0].StudentID)
	assert.Equal(t, 1, t1[0].Rank)
	assert.Equal(t, 2, t1[1].Rank)

	stats := job.LastStats()
	require.NotNil(t, stats)
	assert.Equal(t, 3, stats.TotalStudents)
	assert.Equal(t, 3, stats.ScopesCached, "global plus two teachers")
	assert.Zero(t, stats.Errors)
}

func TestRebuildLeaderboardJob_TruncatesToTopSize(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	repo := &stubStudentRepo{students: []*student.Student{
		seedStudent(t, "s1", "t1", 30, base),
		seedStudent(t, "s2", "t1", 20, base),
		seedStudent(t, "s3", "t1", 10, base),
	}}
	cache := &stubCache{}
	job := NewRebuildLeaderboardJob(repo, cache, nil, RebuildLeaderboardConfig{TopSize: 2})

	require.NoError(t, job.Run(context.Background()))

	assert.Len(t, cache.tops[query.GlobalScopeKey], 2)
	assert.Len(t, cache.tops["t1"], 2)
}

func TestRebuildLeaderboardJob_ReportsCacheErrors(t *testing.T) {
	repo := &stubStudentRepo{students: []*student.Student{
		seedStudent(t, "s1", "t1", 10, time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)),
	}}
	job := NewRebuildLeaderboardJob(repo, &stubCache{fail: true}, nil, DefaultRebuildLeaderboardConfig())

	err := job.Run(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 2, job.LastStats().Errors)
}

func TestAuditLedgerJob_PassesWhenJournalMatches(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	repo := &stubStudentRepo{students: []*student.Student{
		seedStudent(t, "s1", "t1", 10, base),
		seedStudent(t, "s2", "t1", 0, base),
	}}
	ledger := &stubLedger{sums: map[string]int{"s1": 10, "s2": 0}}

	job := NewAuditLedgerJob(repo, ledger, nil)
	assert.NoError(t, job.Run(context.Background()))
}

func TestAuditLedgerJob_FailsOnDrift(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	repo := &stubStudentRepo{students: []*student.Student{
		seedStudent(t, "s1", "t1", 10, base),
	}}
	ledger := &stubLedger{sums: map[string]int{"s1": 7}}

	job := NewAuditLedgerJob(repo, ledger, nil)
	assert.Error(t, job.Run(context.Background()))
}

func TestAuditLedgerJob_IncludesArchivedStudents(t *testing.T) {
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	archived := seedStudent(t, "s1", "t1", 10, base)
	require.NoError(t, archived.Deactivate())
	repo := &stubStudentRepo{students: []*student.Student{archived}}

	// The archived student's journal is off, and the audit must still see it.
	ledger := &stubLedger{sums: map[string]int{"s1": 3}}
	job := NewAuditLedgerJob(repo, ledger, nil)
	assert.Error(t, job.Run(context.Background()))
}

package eventhandler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhuldyz-hub/zhuldyz-hub/internal/application/query"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/shared"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/student"
)

// stubStudentRepo answers GetByID from a map; the rest of the interface
// is unused by the handler.
type stubStudentRepo struct {
	students map[string]*student.Student
}

func (r *stubStudentRepo) GetByID(_ context.Context, id string) (*student.Student, error) {
	if s, ok := r.students[id]; ok {
		return s, nil
	}
	return nil, student.ErrStudentNotFound
}

func (r *stubStudentRepo) Create(context.Context, *student.Student) error { return nil }
func (r *stubStudentRepo) Update(context.Context, *student.Student) error { return nil }
func (r *stubStudentRepo) Delete(context.Context, string) error           { return nil }

func (r *stubStudentRepo) ApplyStarDelta(context.Context, string, student.Stars) (student.Stars, error) {
	return 0, nil
}

func (r *stubStudentRepo) GetAll(context.Context, student.ListOptions) ([]*student.Student, error) {
	return nil, nil
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

func (r *stubStudentRepo) Count(context.Context) (int, error)         { return 0, nil }
func (r *stubStudentRepo) Exists(context.Context, string) (bool, error) { return false, nil }

func (r *stubStudentRepo) TopTeachers(context.Context, int) ([]student.TeacherStats, error) {
	return nil, nil
}

type recordingCache struct {
	invalidated []string
	failOn      string
}

func (c *recordingCache) GetCachedTop(context.Context, string, int) ([]query.LeaderboardEntryDTO, error) {
	return nil, errors.New("miss")
}

func (c *recordingCache) CacheTop(context.Context, string, []query.LeaderboardEntryDTO) error {
	return nil
}

func (c *recordingCache) Invalidate(_ context.Context, scopeKey string) error {
	if c.failOn == scopeKey {
		return errors.New("redis down")
	}
	c.invalidated = append(c.invalidated, scopeKey)
	return nil
}

func seedRepo(t *testing.T) *stubStudentRepo {
	t.Helper()
	s, err := student.NewStudent(student.NewStudentParams{
		ID:          "s1",
		TeacherID:   "t1",
		DisplayName: "Aruzhan",
	})
	require.NoError(t, err)
	return &stubStudentRepo{students: map[string]*student.Student{"s1": s}}
}

func TestOnStarsChanged_InvalidatesGlobalAndTeacherScopes(t *testing.T) {
	cache := &recordingCache{}
	h := NewOnStarsChangedHandler(seedRepo(t), cache, nil)

	err := h.Handle(shared.NewBaseEventEnvelope(shared.EventStarsEarned, "s1"))
	require.NoError(t, err)

	assert.Equal(t, []string{query.GlobalScopeKey, "t1"}, cache.invalidated)
}

func TestOnStarsChanged_UnknownStudentInvalidatesGlobalOnly(t *testing.T) {
	cache := &recordingCache{}
	h := NewOnStarsChangedHandler(seedRepo(t), cache, nil)

	// The student may already be deleted by the time the event is handled.
	err := h.Handle(shared.NewBaseEventEnvelope(shared.EventRedemptionCancelled, "ghost"))
	require.NoError(t, err)

	assert.Equal(t, []string{query.GlobalScopeKey}, cache.invalidated)
}

func TestOnStarsChanged_TeacherInvalidationFailureSurfaces(t *testing.T) {
	cache := &recordingCache{failOn: "t1"}
	h := NewOnStarsChangedHandler(seedRepo(t), cache, nil)

	err := h.Handle(shared.NewBaseEventEnvelope(shared.EventStarsEarned, "s1"))
	assert.Error(t, err)
}

func TestOnStarsChanged_NilCacheIsNoOp(t *testing.T) {
	h := NewOnStarsChangedHandler(seedRepo(t), nil, nil)
	assert.NoError(t, h.Handle(shared.NewBaseEventEnvelope(shared.EventStarsEarned, "s1")))
}

func TestStarsChangedEvents_CoverBalanceMovingEvents(t *testing.T) {
	assert.ElementsMatch(t, []shared.EventType{
		shared.EventStarsEarned,
		shared.EventLessonRegraded,
		shared.EventRewardRedeemed,
		shared.EventRedemptionCancelled,
	}, StarsChangedEvents)
}

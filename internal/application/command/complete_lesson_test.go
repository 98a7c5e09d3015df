package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhuldyz-hub/zhuldyz-hub/internal/application/access"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/lesson"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/shared"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/student"
)

func seedStudent(t *testing.T, store *memStore, id string, teacherID student.TeacherID) *student.Student {
	t.Helper()
	s, err := student.NewStudent(student.NewStudentParams{
		ID:          id,
		TeacherID:   teacherID,
		DisplayName: "Student " + id,
	})
	require.NoError(t, err)
	store.students[s.ID] = s
	return s
}

func seedLesson(t *testing.T, store *memStore, id string, level, order int) *lesson.Lesson {
	t.Helper()
	l, err := lesson.NewLesson(lesson.NewLessonParams{
		ID:    id,
		Title: "Lesson " + id,
		Level: lesson.Level(level),
		Order: lesson.Order(order),
	})
	require.NoError(t, err)
	store.lessons[l.ID] = l
	return l
}

func newCompleteLessonHandler(store *memStore) (*CompleteLessonHandler, *capturingPublisher) {
	pub := &capturingPublisher{}
	h := NewCompleteLessonHandler(
		&fakeLessonRepo{store: store},
		&fakeUowFactory{store: store},
		pub,
	)
	return h, pub
}

func teacherActor(id student.TeacherID) access.Actor {
	return access.NewActor(id, access.RoleTeacher)
}

func TestCompleteLesson_FirstCompletion(t *testing.T) {
	store := newMemStore()
	seedStudent(t, store, "s1", "t1")
	seedLesson(t, store, "l1", 1, 1)
	h, pub := newCompleteLessonHandler(store)

	result, err := h.Handle(context.Background(), CompleteLessonCommand{
		StudentID:   "s1",
		LessonID:    "l1",
		StarsEarned: 4,
		Actor:       teacherActor("t1"),
	})
	require.NoError(t, err)

	assert.Equal(t, 4, result.NewBalance)
	assert.Equal(t, 4, result.Delta)
	assert.False(t, result.Mastered)
	assert.False(t, result.Regraded)

	// Balance, journal and record all land together.
	assert.Equal(t, student.Stars(4), store.students["s1"].StarBalance)
	require.Len(t, store.ledger, 1)
	assert.Equal(t, 4, store.ledger[0].Amount)
	assert.True(t, store.committed)

	assert.Contains(t, pub.typesSeen(), shared.EventLessonCompleted)
	assert.Contains(t, pub.typesSeen(), shared.EventStarsEarned)
}

func TestCompleteLesson_GatedByPredecessor(t *testing.T) {
	store := newMemStore()
	seedStudent(t, store, "s1", "t1")
	seedLesson(t, store, "l1", 1, 1)
	seedLesson(t, store, "l2", 1, 2)
	h, _ := newCompleteLessonHandler(store)

	// l1 has never been completed, so l2 is locked.
	_, err := h.Handle(context.Background(), CompleteLessonCommand{
		StudentID:   "s1",
		LessonID:    "l2",
		StarsEarned: 5,
		Actor:       teacherActor("t1"),
	})
	require.Error(t, err)
	assert.True(t, shared.IsOrderingViolation(err))

	var ordering *OrderingViolationError
	require.ErrorAs(t, err, &ordering)
	assert.Equal(t, "l1", ordering.BlockingLessonID)
}

func TestCompleteLesson_PredecessorMustBeMastered(t *testing.T) {
	store := newMemStore()
	seedStudent(t, store, "s1", "t1")
	seedLesson(t, store, "l1", 1, 1)
	seedLesson(t, store, "l2", 1, 2)
	h, _ := newCompleteLessonHandler(store)
	ctx := context.Background()

	// 4 stars on l1: completed but not mastered, l2 stays locked.
	_, err := h.Handle(ctx, CompleteLessonCommand{
		StudentID: "s1", LessonID: "l1", StarsEarned: 4, Actor: teacherActor("t1"),
	})
	require.NoError(t, err)

	_, err = h.Handle(ctx, CompleteLessonCommand{
		StudentID: "s1", LessonID: "l2", StarsEarned: 3, Actor: teacherActor("t1"),
	})
	assert.True(t, shared.IsOrderingViolation(err))

	// Mastering l1 unlocks l2.
	_, err = h.Handle(ctx, CompleteLessonCommand{
		StudentID: "s1", LessonID: "l1", StarsEarned: 5, Actor: teacherActor("t1"),
	})
	require.NoError(t, err)

	result, err := h.Handle(ctx, CompleteLessonCommand{
		StudentID: "s1", LessonID: "l2", StarsEarned: 3, Actor: teacherActor("t1"),
	})
	require.NoError(t, err)
	assert.Equal(t, 8, result.NewBalance, "4 + regrade delta 1 + 3")
}

func TestCompleteLesson_RegradeMovesBalanceByDelta(t *testing.T) {
	store := newMemStore()
	seedStudent(t, store, "s1", "t1")
	seedLesson(t, store, "l1", 1, 1)
	h, pub := newCompleteLessonHandler(store)
	ctx := context.Background()

	_, err := h.Handle(ctx, CompleteLessonCommand{
		StudentID: "s1", LessonID: "l1", StarsEarned: 4, Actor: teacherActor("t1"),
	})
	require.NoError(t, err)

	result, err := h.Handle(ctx, CompleteLessonCommand{
		StudentID: "s1", LessonID: "l1", StarsEarned: 2, Actor: teacherActor("t1"),
	})
	require.NoError(t, err)

	assert.True(t, result.Regraded)
	assert.Equal(t, -2, result.Delta)
	assert.Equal(t, 2, result.NewBalance)
	assert.Equal(t, student.Stars(2), store.students["s1"].StarBalance)

	// earn +4, adjust -2
	require.Len(t, store.ledger, 2)
	assert.Equal(t, -2, store.ledger[1].Amount)

	assert.Contains(t, pub.typesSeen(), shared.EventLessonRegraded)
}

func TestCompleteLesson_SameGradeIsNoOp(t *testing.T) {
	store := newMemStore()
	seedStudent(t, store, "s1", "t1")
	seedLesson(t, store, "l1", 1, 1)
	h, _ := newCompleteLessonHandler(store)
	ctx := context.Background()

	_, err := h.Handle(ctx, CompleteLessonCommand{
		StudentID: "s1", LessonID: "l1", StarsEarned: 3, Actor: teacherActor("t1"),
	})
	require.NoError(t, err)

	result, err := h.Handle(ctx, CompleteLessonCommand{
		StudentID: "s1", LessonID: "l1", StarsEarned: 3, Actor: teacherActor("t1"),
	})
	require.NoError(t, err)

	assert.Zero(t, result.Delta)
	assert.Equal(t, 3, result.NewBalance)
	require.Len(t, store.ledger, 1, "a zero delta writes no journal entry")
}

func TestCompleteLesson_MasteredScoreIsFrozen(t *testing.T) {
	store := newMemStore()
	seedStudent(t, store, "s1", "t1")
	seedLesson(t, store, "l1", 1, 1)
	h, _ := newCompleteLessonHandler(store)
	ctx := context.Background()

	_, err := h.Handle(ctx, CompleteLessonCommand{
		StudentID: "s1", LessonID: "l1", StarsEarned: 5, Actor: teacherActor("t1"),
	})
	require.NoError(t, err)

	_, err = h.Handle(ctx, CompleteLessonCommand{
		StudentID: "s1", LessonID: "l1", StarsEarned: 3, Actor: teacherActor("t1"),
	})
	assert.True(t, shared.IsConflict(err))
	assert.Equal(t, student.Stars(5), store.students["s1"].StarBalance)
}

func TestCompleteLesson_LostCreateRaceSurfacesConflict(t *testing.T) {
	store := newMemStore()
	seedStudent(t, store, "s1", "t1")
	seedLesson(t, store, "l1", 1, 1)
	h, _ := newCompleteLessonHandler(store)

	// The record insert keeps losing to a concurrent twin on every retry.
	store.raceOnRecordCreate = true

	_, err := h.Handle(context.Background(), CompleteLessonCommand{
		StudentID: "s1", LessonID: "l1", StarsEarned: 4, Actor: teacherActor("t1"),
	})
	require.Error(t, err)
	assert.True(t, shared.IsConflict(err), "exhausted retries are a conflict, not an internal error")
	assert.False(t, shared.IsRetryable(err))

	// Nothing committed on any attempt.
	assert.Equal(t, student.Stars(0), store.students["s1"].StarBalance)
	assert.Empty(t, store.ledger)
	assert.True(t, store.rolledBack)
}

func TestCompleteLesson_ForeignStudentForbidden(t *testing.T) {
	store := newMemStore()
	seedStudent(t, store, "s1", "t1")
	seedLesson(t, store, "l1", 1, 1)
	h, _ := newCompleteLessonHandler(store)

	_, err := h.Handle(context.Background(), CompleteLessonCommand{
		StudentID: "s1", LessonID: "l1", StarsEarned: 4, Actor: teacherActor("t2"),
	})
	assert.True(t, shared.IsForbidden(err))

	// Admins grade anyone's students.
	_, err = h.Handle(context.Background(), CompleteLessonCommand{
		StudentID: "s1", LessonID: "l1", StarsEarned: 4,
		Actor: access.NewActor("t2", access.RoleAdmin),
	})
	assert.NoError(t, err)
}

func TestCompleteLesson_ArchivedStudentRejected(t *testing.T) {
	store := newMemStore()
	s := seedStudent(t, store, "s1", "t1")
	require.NoError(t, s.Deactivate())
	seedLesson(t, store, "l1", 1, 1)
	h, _ := newCompleteLessonHandler(store)

	_, err := h.Handle(context.Background(), CompleteLessonCommand{
		StudentID: "s1", LessonID: "l1", StarsEarned: 4, Actor: teacherActor("t1"),
	})
	assert.True(t, shared.IsValidation(err))
}

func TestCompleteLesson_UnknownLessonOrStudent(t *testing.T) {
	store := newMemStore()
	seedStudent(t, store, "s1", "t1")
	seedLesson(t, store, "l1", 1, 1)
	h, _ := newCompleteLessonHandler(store)

	_, err := h.Handle(context.Background(), CompleteLessonCommand{
		StudentID: "s1", LessonID: "missing", StarsEarned: 4, Actor: teacherActor("t1"),
	})
	assert.True(t, shared.IsNotFound(err))

	_, err = h.Handle(context.Background(), CompleteLessonCommand{
		StudentID: "missing", LessonID: "l1", StarsEarned: 4, Actor: teacherActor("t1"),
	})
	assert.True(t, shared.IsNotFound(err))
}

func TestCompleteLesson_Validation(t *testing.T) {
	h, _ := newCompleteLessonHandler(newMemStore())

	_, err := h.Handle(context.Background(), CompleteLessonCommand{
		StudentID: "s1", LessonID: "l1", StarsEarned: 6, Actor: teacherActor("t1"),
	})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(context.Background(), CompleteLessonCommand{
		LessonID: "l1", StarsEarned: 3, Actor: teacherActor("t1"),
	})
	assert.True(t, shared.IsValidation(err))
}

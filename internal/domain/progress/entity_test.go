package progress

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRecord(t *testing.T, stars int) *Record {
	t.Helper()
	rec, err := NewRecord(NewRecordParams{
		ID:          "rec1",
		StudentID:   "s1",
		LessonID:    "l1",
		TeacherID:   "t1",
		StarsEarned: stars,
	})
	require.NoError(t, err)
	return rec
}

func TestNewRecord_Validation(t *testing.T) {
	_, err := NewRecord(NewRecordParams{ID: "r", StudentID: "", LessonID: "l1", TeacherID: "t1", StarsEarned: 3})
	assert.ErrorIs(t, err, ErrInvalidStudentID)

	_, err = NewRecord(NewRecordParams{ID: "r", StudentID: "s1", LessonID: "l1", TeacherID: "t1", StarsEarned: 0})
	assert.ErrorIs(t, err, ErrStarsOutOfRange)

	_, err = NewRecord(NewRecordParams{ID: "r", StudentID: "s1", LessonID: "l1", TeacherID: "t1", StarsEarned: 6})
	assert.ErrorIs(t, err, ErrStarsOutOfRange)

	_, err = NewRecord(NewRecordParams{
		ID: "r", StudentID: "s1", LessonID: "l1", TeacherID: "t1",
		StarsEarned: 3, Notes: strings.Repeat("x", 1001),
	})
	assert.ErrorIs(t, err, ErrNotesTooLong)
}

func TestNewRecord_DefaultsCompletedAt(t *testing.T) {
	rec := mustRecord(t, 3)
	assert.WithinDuration(t, time.Now().UTC(), rec.CompletedAt, time.Minute)

	past := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	rec2, err := NewRecord(NewRecordParams{
		ID: "r2", StudentID: "s1", LessonID: "l1", TeacherID: "t1",
		StarsEarned: 4, CompletedAt: past,
	})
	require.NoError(t, err)
	assert.Equal(t, past, rec2.CompletedAt)
}

func TestRecord_Mastered(t *testing.T) {
	assert.False(t, mustRecord(t, 4).Mastered())
	assert.True(t, mustRecord(t, 5).Mastered())
}

func TestRecord_Regrade(t *testing.T) {
	rec := mustRecord(t, 3)

	delta, err := rec.Regrade(5, "excellent")
	require.NoError(t, err)
	assert.Equal(t, 2, delta)
	assert.Equal(t, 5, rec.StarsEarned)
	assert.Equal(t, "excellent", rec.Notes)
	assert.True(t, rec.Mastered())
}

func TestRecord_Regrade_Downward(t *testing.T) {
	rec := mustRecord(t, 4)

	delta, err := rec.Regrade(2, "")
	require.NoError(t, err)
	assert.Equal(t, -2, delta)
	assert.Equal(t, 2, rec.StarsEarned)
}

func TestRecord_Regrade_MasteredIsFrozen(t *testing.T) {
	rec := mustRecord(t, 5)

	_, err := rec.Regrade(3, "")
	assert.ErrorIs(t, err, ErrAlreadyMastered)
	assert.Equal(t, 5, rec.StarsEarned)
}

func TestRecord_Regrade_OutOfRange(t *testing.T) {
	rec := mustRecord(t, 3)

	_, err := rec.Regrade(0, "")
	assert.ErrorIs(t, err, ErrStarsOutOfRange)

	_, err = rec.Regrade(6, "")
	assert.ErrorIs(t, err, ErrStarsOutOfRange)
}

func TestRecord_UpdateNotes_AllowedAfterMastery(t *testing.T) {
	rec := mustRecord(t, 5)

	require.NoError(t, rec.UpdateNotes("great work"))
	assert.Equal(t, "great work", rec.Notes)
	assert.Equal(t, 5, rec.StarsEarned)
}

func TestNewTransaction_SignAgreesWithKind(t *testing.T) {
	tx, err := NewTransaction("tx1", "s1", 5, TxEarn, "rec1")
	require.NoError(t, err)
	assert.Equal(t, 5, tx.Amount)

	// Credits must be positive, debits negative.
	_, err = NewTransaction("tx2", "s1", -5, TxEarn, "rec1")
	assert.Error(t, err)

	_, err = NewTransaction("tx3", "s1", 5, TxSpend, "red1")
	assert.Error(t, err)

	tx, err = NewTransaction("tx4", "s1", -10, TxSpend, "red1")
	require.NoError(t, err)
	assert.Equal(t, -10, tx.Amount)

	_, err = NewTransaction("tx5", "s1", 0, TxEarn, "rec1")
	assert.ErrorIs(t, err, ErrZeroAmount)

	_, err = NewTransaction("tx6", "s1", 3, TxKind("bogus"), "rec1")
	assert.ErrorIs(t, err, ErrInvalidTxKind)
}

func TestSumBalance(t *testing.T) {
	earn, _ := NewTransaction("tx1", "s1", 5, TxEarn, "rec1")
	spend, _ := NewTransaction("tx2", "s1", -3, TxSpend, "red1")
	refund, _ := NewTransaction("tx3", "s1", 3, TxRefund, "red1")
	adjust, _ := NewTransaction("tx4", "s1", -1, TxAdjust, "rec1")

	assert.Equal(t, 4, SumBalance([]*Transaction{earn, spend, refund, adjust}))
	assert.Equal(t, 0, SumBalance(nil))
}

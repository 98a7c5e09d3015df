package student

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustStudent(t *testing.T) *Student {
	t.Helper()
	s, err := NewStudent(NewStudentParams{
		ID:          "s1",
		TeacherID:   "t1",
		DisplayName: "Aruzhan",
	})
	require.NoError(t, err)
	return s
}

func TestNewStudent(t *testing.T) {
	s := mustStudent(t)

	assert.Equal(t, Stars(0), s.StarBalance, "new students start with zero stars")
	assert.True(t, s.Active)
	assert.True(t, s.OwnedBy("t1"))
	assert.False(t, s.OwnedBy("t2"))
}

func TestNewStudent_Validation(t *testing.T) {
	_, err := NewStudent(NewStudentParams{ID: "s1", TeacherID: "", DisplayName: "Aruzhan"})
	assert.ErrorIs(t, err, ErrInvalidTeacherID)

	_, err = NewStudent(NewStudentParams{ID: "s1", TeacherID: "t1", DisplayName: "   "})
	assert.ErrorIs(t, err, ErrInvalidDisplayName)

	_, err = NewStudent(NewStudentParams{ID: "s1", TeacherID: "t1", DisplayName: strings.Repeat("x", 101)})
	assert.ErrorIs(t, err, ErrInvalidDisplayName)
}

func TestStudent_ApplyStarDelta(t *testing.T) {
	s := mustStudent(t)

	balance, err := s.ApplyStarDelta(5)
	require.NoError(t, err)
	assert.Equal(t, Stars(5), balance)

	balance, err = s.ApplyStarDelta(-3)
	require.NoError(t, err)
	assert.Equal(t, Stars(2), balance)

	// A delta below zero is rejected and the balance stays put.
	_, err = s.ApplyStarDelta(-3)
	assert.ErrorIs(t, err, ErrInsufficientStars)
	assert.Equal(t, Stars(2), s.StarBalance)
}

func TestStudent_Spend(t *testing.T) {
	s := mustStudent(t)
	_, err := s.ApplyStarDelta(10)
	require.NoError(t, err)

	balance, err := s.Spend(10)
	require.NoError(t, err)
	assert.Equal(t, Stars(0), balance)

	_, err = s.Spend(1)
	assert.ErrorIs(t, err, ErrInsufficientStars)
}

func TestStudent_Deactivate(t *testing.T) {
	s := mustStudent(t)

	require.NoError(t, s.Deactivate())
	assert.False(t, s.Active)

	// Archiving twice is an error.
	assert.ErrorIs(t, s.Deactivate(), ErrStudentNotActive)

	s.Reactivate()
	assert.True(t, s.Active)
}

func TestStars_CanAfford(t *testing.T) {
	assert.True(t, Stars(10).CanAfford(10))
	assert.True(t, Stars(10).CanAfford(0))
	assert.False(t, Stars(10).CanAfford(11))
}

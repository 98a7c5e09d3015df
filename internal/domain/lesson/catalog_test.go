package lesson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLesson(t *testing.T, id, title string, level, order int) *Lesson {
	t.Helper()
	l, err := NewLesson(NewLessonParams{
		ID:    id,
		Title: title,
		Level: Level(level),
		Order: Order(order),
	})
	require.NoError(t, err)
	return l
}

func TestNewCatalog_SortsAndDropsInactive(t *testing.T) {
	l1 := mustLesson(t, "l1", "Counting", 1, 1)
	l2 := mustLesson(t, "l2", "Addition", 1, 2)
	l3 := mustLesson(t, "l3", "Subtraction", 2, 1)
	inactive := mustLesson(t, "l4", "Retired", 1, 3)
	inactive.Deactivate()

	// Shuffled input, plus a nil entry.
	catalog := NewCatalog([]*Lesson{l3, nil, inactive, l1, l2})

	assert.Equal(t, 3, catalog.Len())
	lessons := catalog.Lessons()
	assert.Equal(t, "l1", lessons[0].ID)
	assert.Equal(t, "l2", lessons[1].ID)
	assert.Equal(t, "l3", lessons[2].ID)
	assert.Equal(t, "l1", catalog.First().ID)
}

func TestCatalog_ByID(t *testing.T) {
	l1 := mustLesson(t, "l1", "Counting", 1, 1)
	inactive := mustLesson(t, "l2", "Retired", 1, 2)
	inactive.Deactivate()

	catalog := NewCatalog([]*Lesson{l1, inactive})

	found, err := catalog.ByID("l1")
	require.NoError(t, err)
	assert.Equal(t, "Counting", found.Title)

	// Inactive lessons are invisible to the catalog.
	_, err = catalog.ByID("l2")
	assert.ErrorIs(t, err, ErrLessonNotFound)

	_, err = catalog.ByID("missing")
	assert.ErrorIs(t, err, ErrLessonNotFound)
}

func TestCatalog_PredecessorOf(t *testing.T) {
	l1 := mustLesson(t, "l1", "Counting", 1, 1)
	l2 := mustLesson(t, "l2", "Addition", 1, 2)
	l3 := mustLesson(t, "l3", "Subtraction", 2, 1)

	catalog := NewCatalog([]*Lesson{l1, l2, l3})

	assert.Nil(t, catalog.PredecessorOf(l1), "first lesson has no predecessor")
	assert.Equal(t, "l1", catalog.PredecessorOf(l2).ID)

	// Level boundary: predecessor of the first lesson of level 2 is the
	// last lesson of level 1.
	assert.Equal(t, "l2", catalog.PredecessorOf(l3).ID)

	assert.Nil(t, catalog.PredecessorOf(nil))
}

func TestCatalog_PredecessorOf_SkipsInactive(t *testing.T) {
	l1 := mustLesson(t, "l1", "Counting", 1, 1)
	l2 := mustLesson(t, "l2", "Addition", 1, 2)
	l3 := mustLesson(t, "l3", "Subtraction", 1, 3)
	l2.Deactivate()

	catalog := NewCatalog([]*Lesson{l1, l2, l3})

	// The retired lesson drops out of the chain entirely.
	assert.Equal(t, "l1", catalog.PredecessorOf(l3).ID)
}

func TestPosition_Before(t *testing.T) {
	a := Position{Level: 1, Order: 2}
	b := Position{Level: 1, Order: 3}
	c := Position{Level: 2, Order: 1}

	assert.True(t, a.Before(b))
	assert.True(t, b.Before(c))
	assert.False(t, c.Before(a))
	assert.False(t, a.Before(a))
}

func TestNewLesson_Validation(t *testing.T) {
	_, err := NewLesson(NewLessonParams{ID: "l1", Title: "", Level: 1, Order: 1})
	assert.ErrorIs(t, err, ErrInvalidTitle)

	_, err = NewLesson(NewLessonParams{ID: "l1", Title: "Counting", Level: 0, Order: 1})
	assert.ErrorIs(t, err, ErrInvalidLevel)

	_, err = NewLesson(NewLessonParams{ID: "l1", Title: "Counting", Level: 1, Order: 0})
	assert.ErrorIs(t, err, ErrInvalidOrder)

	l, err := NewLesson(NewLessonParams{ID: "l1", Title: "Counting", Level: 1, Order: 1})
	require.NoError(t, err)
	assert.True(t, l.Active)
	assert.Equal(t, "L1.1", l.Position.String())
}

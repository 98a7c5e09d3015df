package progress

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines operations on completion records.
type Repository interface {
	// Create inserts a new completion record.
	// Returns ErrRecordExists if the (student, lesson) pair is taken.
	Create(ctx context.Context, record *Record) error

	// Get returns the record for a (student, lesson) pair.
	// Returns ErrRecordNotFound if absent.
	Get(ctx context.Context, studentID, lessonID string) (*Record, error)

	// Update overwrites an existing record.
	Update(ctx context.Context, record *Record) error

	// GetByStudent returns all records for a student, newest first.
	GetByStudent(ctx context.Context, studentID string) ([]*Record, error)

	// GetMasteredLessonIDs returns the IDs of lessons the student has mastered.
	GetMasteredLessonIDs(ctx context.Context, studentID string) (map[string]bool, error)

	// GetCompletedBetween returns records graded within [from, to).
	GetCompletedBetween(ctx context.Context, from, to time.Time) ([]*Record, error)

	// CountMastered returns the number of mastered records. A non-empty
	// teacherID narrows the count to that teacher's records; empty counts
	// platform-wide.
	CountMastered(ctx context.Context, teacherID string) (int, error)
}

// LedgerRepository defines operations on the star transaction journal.
type LedgerRepository interface {
	// Append records a transaction. Entries are immutable once written.
	Append(ctx context.Context, tx *Transaction) error

	// GetByStudent returns a student's transactions, newest first.
	GetByStudent(ctx context.Context, studentID string, limit int) ([]*Transaction, error)

	// SumForStudent returns the journal balance for a student.
	// Used to audit the materialized counter.
	SumForStudent(ctx context.Context, studentID string) (int, error)

	// TotalInCirculation returns the signed sum over all transactions,
	// i.e. the number of unspent stars platform-wide.
	TotalInCirculation(ctx context.Context) (int, error)
}

// Package progress contains domain entities and business logic for the
// progress ledger: one completion record per student and lesson, plus the
// append-only journal of signed star transactions that backs every balance.
// This is a pure domain layer with zero external dependencies.
package progress

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Grading bounds. A lesson is mastered once it is graded with MaxStars.
const (
	MinStars = 1
	MaxStars = 5
)

// Domain errors for progress package.
var (
	ErrInvalidStudentID  = errors.New("progress: invalid student ID")
	ErrInvalidLessonID   = errors.New("progress: invalid lesson ID")
	ErrInvalidTeacherID  = errors.New("progress: invalid teacher ID")
	ErrStarsOutOfRange   = errors.New("progress: stars must be between 1 and 5")
	ErrAlreadyMastered   = errors.New("progress: lesson already mastered")
	ErrRecordNotFound    = errors.New("progress: record not found")
	ErrRecordExists      = errors.New("progress: record already exists")
	ErrNotesTooLong      = errors.New("progress: notes must be at most 1000 chars")
	ErrZeroAmount        = errors.New("progress: transaction amount cannot be zero")
	ErrInvalidTxKind     = errors.New("progress: invalid transaction kind")
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS RECORD
// ══════════════════════════════════════════════════════════════════════════════

// Record is the durable completion record for one (student, lesson) pair.
// At most one record exists per pair; it is the source of truth for mastery.
type Record struct {
	// ID is the internal unique identifier (UUID string).
	ID string

	// StudentID is the student who completed the lesson.
	StudentID string

	// LessonID is the completed lesson.
	LessonID string

	// TeacherID is the teacher who owns the student at grading time.
	TeacherID string

	// StarsEarned is the grade, 1 to 5. A grade of 5 means mastery and
	// freezes the score: only notes may change afterwards.
	StarsEarned int

	// Notes is free-text commentary from the grading teacher.
	Notes string

	// CompletedAt is when the lesson was (last) graded.
	CompletedAt time.Time

	// CreatedAt is when the record was first created.
	CreatedAt time.Time

	// UpdatedAt is when the record was last modified.
	UpdatedAt time.Time
}

// NewRecordParams contains parameters for creating a completion record.
type NewRecordParams struct {
	ID          string
	StudentID   string
	LessonID    string
	TeacherID   string
	StarsEarned int
	Notes       string
	CompletedAt time.Time
}

// NewRecord creates a completion record with full validation.
func NewRecord(params NewRecordParams) (*Record, error) {
	if params.ID == "" {
		return nil, errors.New("progress: record id is required")
	}
	if strings.TrimSpace(params.StudentID) == "" {
		return nil, ErrInvalidStudentID
	}
	if strings.TrimSpace(params.LessonID) == "" {
		return nil, ErrInvalidLessonID
	}
	if strings.TrimSpace(params.TeacherID) == "" {
		return nil, ErrInvalidTeacherID
	}
	if params.StarsEarned < MinStars || params.StarsEarned > MaxStars {
		return nil, ErrStarsOutOfRange
	}
	if len(params.Notes) > 1000 {
		return nil, ErrNotesTooLong
	}

	now := time.Now().UTC()
	completedAt := params.CompletedAt
	if completedAt.IsZero() {
		completedAt = now
	}

	return &Record{
		ID:          params.ID,
		StudentID:   params.StudentID,
		LessonID:    params.LessonID,
		TeacherID:   params.TeacherID,
		StarsEarned: params.StarsEarned,
		Notes:       params.Notes,
		CompletedAt: completedAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Mastered reports whether the lesson has been mastered.
func (r *Record) Mastered() bool {
	return r.StarsEarned >= MaxStars
}

// Regrade replaces the stored grade with newStars and returns the signed
// balance delta. The delta is computed against the value held BEFORE the
// overwrite; a mastered record rejects any further regrade.
func (r *Record) Regrade(newStars int, notes string) (delta int, err error) {
	if r.Mastered() {
		return 0, ErrAlreadyMastered
	}
	if newStars < MinStars || newStars > MaxStars {
		return 0, ErrStarsOutOfRange
	}
	if len(notes) > 1000 {
		return 0, ErrNotesTooLong
	}

	delta = newStars - r.StarsEarned
	r.StarsEarned = newStars
	if notes != "" {
		r.Notes = notes
	}
	now := time.Now().UTC()
	r.CompletedAt = now
	r.UpdatedAt = now

	return delta, nil
}

// UpdateNotes changes the free-text notes. Allowed even after mastery:
// only the score is frozen.
func (r *Record) UpdateNotes(notes string) error {
	if len(notes) > 1000 {
		return ErrNotesTooLong
	}
	r.Notes = notes
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// String returns a loggable representation of the record.
func (r *Record) String() string {
	return fmt.Sprintf("Record{Student: %s, Lesson: %s, Stars: %d, Mastered: %t}",
		r.StudentID, r.LessonID, r.StarsEarned, r.Mastered())
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// ══════════════════════════════════════════════════════════════════════════════
// STAR TRANSACTIONS
// The append-only journal of signed star movements. The materialized
// student balance is a cached projection of this journal; the journal is
// what makes the economy auditable and replayable.
// ══════════════════════════════════════════════════════════════════════════════

// TxKind classifies a star transaction.
type TxKind string

const (
	// TxEarn credits stars for a lesson completion or an upward regrade.
	TxEarn TxKind = "earn"

	// TxAdjust debits stars on a downward regrade.
	TxAdjust TxKind = "adjust"

	// TxSpend debits stars for a redemption.
	TxSpend TxKind = "spend"

	// TxRefund credits stars back for a cancelled redemption.
	TxRefund TxKind = "refund"
)

// IsValid reports whether the kind is one of the known values.
func (k TxKind) IsValid() bool {
	switch k {
	case TxEarn, TxAdjust, TxSpend, TxRefund:
		return true
	default:
		return false
	}
}

// IsCredit reports whether the kind increases the balance.
func (k TxKind) IsCredit() bool {
	return k == TxEarn || k == TxRefund
}

// Transaction is one signed entry in the star journal.
type Transaction struct {
	// ID is the internal unique identifier (UUID string).
	ID string

	// StudentID is the student whose balance moved.
	StudentID string

	// Amount is the signed star delta: positive for credits, negative for debits.
	Amount int

	// Kind classifies the movement.
	Kind TxKind

	// ReferenceID points at the originating record: a progress record ID
	// for earn/adjust, a redemption ID for spend/refund.
	ReferenceID string

	// CreatedAt is when the transaction was recorded.
	CreatedAt time.Time
}

// NewTransaction creates a journal entry with validation. The sign of amount
// must agree with the kind: credits are positive, debits negative.
func NewTransaction(id, studentID string, amount int, kind TxKind, referenceID string) (*Transaction, error) {
	if id == "" {
		return nil, errors.New("progress: transaction id is required")
	}
	if strings.TrimSpace(studentID) == "" {
		return nil, ErrInvalidStudentID
	}
	if amount == 0 {
		return nil, ErrZeroAmount
	}
	if !kind.IsValid() {
		return nil, ErrInvalidTxKind
	}
	if kind.IsCredit() && amount < 0 {
		return nil, fmt.Errorf("progress: %s amount must be positive", kind)
	}
	if !kind.IsCredit() && amount > 0 {
		return nil, fmt.Errorf("progress: %s amount must be negative", kind)
	}

	return &Transaction{
		ID:          id,
		StudentID:   studentID,
		Amount:      amount,
		Kind:        kind,
		ReferenceID: referenceID,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// SumBalance folds a transaction list into a balance. Used to verify the
// materialized counter against the journal.
func SumBalance(txs []*Transaction) int {
	total := 0
	for _, tx := range txs {
		if tx != nil {
			total += tx.Amount
		}
	}
	return total
}

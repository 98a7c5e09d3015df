package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/progress"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY IMPLEMENTATION
// Completion records plus the append-only star journal.
// ══════════════════════════════════════════════════════════════════════════════

const progressColumns = `id, student_id, lesson_id, teacher_id, stars_earned, notes, completed_at, created_at, updated_at`

// ProgressRepository implements progress.Repository for PostgreSQL.
type ProgressRepository struct {
	q Querier
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(q Querier) *ProgressRepository {
	return &ProgressRepository{q: q}
}

// Create inserts a new completion record. The (student_id, lesson_id)
// unique constraint is the storage-level guard against double completion.
func (r *ProgressRepository) Create(ctx context.Context, rec *progress.Record) error {
	query := `
		INSERT INTO progress_records (id, student_id, lesson_id, teacher_id, stars_earned, notes, completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.q.Exec(ctx, query,
		rec.ID,
		rec.StudentID,
		rec.LessonID,
		rec.TeacherID,
		rec.StarsEarned,
		rec.Notes,
		rec.CompletedAt,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return progress.ErrRecordExists
		}
		return fmt.Errorf("failed to create progress record: %w", err)
	}

	return nil
}

// Get returns the record for a (student, lesson) pair.
func (r *ProgressRepository) Get(ctx context.Context, studentID, lessonID string) (*progress.Record, error) {
	query := `SELECT ` + progressColumns + ` FROM progress_records WHERE student_id = $1 AND lesson_id = $2`

	return r.scanRecord(r.q.QueryRow(ctx, query, studentID, lessonID))
}

// Update overwrites an existing record.
func (r *ProgressRepository) Update(ctx context.Context, rec *progress.Record) error {
	query := `
		UPDATE progress_records
		SET stars_earned = $2, notes = $3, completed_at = $4, updated_at = $5
		WHERE id = $1
	`

	tag, err := r.q.Exec(ctx, query,
		rec.ID,
		rec.StarsEarned,
		rec.Notes,
		rec.CompletedAt,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update progress record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return progress.ErrRecordNotFound
	}

	return nil
}

// GetByStudent returns all records for a student, newest first.
func (r *ProgressRepository) GetByStudent(ctx context.Context, studentID string) ([]*progress.Record, error) {
	query := `SELECT ` + progressColumns + ` FROM progress_records WHERE student_id = $1 ORDER BY completed_at DESC`

	rows, err := r.q.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress records: %w", err)
	}
	defer rows.Close()

	return r.scanRecords(rows)
}

// GetMasteredLessonIDs returns the IDs of lessons the student has mastered.
func (r *ProgressRepository) GetMasteredLessonIDs(ctx context.Context, studentID string) (map[string]bool, error) {
	query := `SELECT lesson_id FROM progress_records WHERE student_id = $1 AND stars_earned >= $2`

	rows, err := r.q.Query(ctx, query, studentID, progress.MaxStars)
	if err != nil {
		return nil, fmt.Errorf("failed to query mastered lessons: %w", err)
	}
	defer rows.Close()

	mastered := make(map[string]bool)
	for rows.Next() {
		var lessonID string
		if err := rows.Scan(&lessonID); err != nil {
			return nil, fmt.Errorf("failed to scan lesson id: %w", err)
		}
		mastered[lessonID] = true
	}

	return mastered, rows.Err()
}

// GetCompletedBetween returns records graded within [from, to).
func (r *ProgressRepository) GetCompletedBetween(ctx context.Context, from, to time.Time) ([]*progress.Record, error) {
	query := `SELECT ` + progressColumns + ` FROM progress_records WHERE completed_at >= $1 AND completed_at < $2 ORDER BY completed_at`

	rows, err := r.q.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query completed records: %w", err)
	}
	defer rows.Close()

	return r.scanRecords(rows)
}

// CountMastered returns the number of mastered records, optionally narrowed
// to one teacher.
func (r *ProgressRepository) CountMastered(ctx context.Context, teacherID string) (int, error) {
	query := `SELECT COUNT(*) FROM progress_records WHERE stars_earned >= $1`
	args := []interface{}{progress.MaxStars}
	if teacherID != "" {
		query += ` AND teacher_id = $2`
		args = append(args, teacherID)
	}

	var count int
	if err := r.q.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count mastered records: %w", err)
	}

	return count, nil
}

func (r *ProgressRepository) scanRecord(row pgx.Row) (*progress.Record, error) {
	var rec progress.Record

	err := row.Scan(
		&rec.ID,
		&rec.StudentID,
		&rec.LessonID,
		&rec.TeacherID,
		&rec.StarsEarned,
		&rec.Notes,
		&rec.CompletedAt,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, progress.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to scan progress record: %w", err)
	}

	return &rec, nil
}

func (r *ProgressRepository) scanRecords(rows pgx.Rows) ([]*progress.Record, error) {
	var records []*progress.Record
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// STAR LEDGER IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LedgerRepository implements progress.LedgerRepository for PostgreSQL.
type LedgerRepository struct {
	q Querier
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(q Querier) *LedgerRepository {
	return &LedgerRepository{q: q}
}

// Append records a transaction. There is no update or delete: the journal
// is append-only by construction.
func (r *LedgerRepository) Append(ctx context.Context, tx *progress.Transaction) error {
	query := `
		INSERT INTO star_transactions (id, student_id, amount, kind, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.q.Exec(ctx, query,
		tx.ID,
		tx.StudentID,
		tx.Amount,
		string(tx.Kind),
		tx.ReferenceID,
		tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append star transaction: %w", err)
	}

	return nil
}

// GetByStudent returns a student's transactions, newest first.
func (r *LedgerRepository) GetByStudent(ctx context.Context, studentID string, limit int) ([]*progress.Transaction, error) {
	query := `
		SELECT id, student_id, amount, kind, reference_id, created_at
		FROM star_transactions
		WHERE student_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, studentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query star transactions: %w", err)
	}
	defer rows.Close()

	var txs []*progress.Transaction
	for rows.Next() {
		var tx progress.Transaction
		var kind string
		if err := rows.Scan(&tx.ID, &tx.StudentID, &tx.Amount, &kind, &tx.ReferenceID, &tx.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan star transaction: %w", err)
		}
		tx.Kind = progress.TxKind(kind)
		txs = append(txs, &tx)
	}

	return txs, rows.Err()
}

// SumForStudent returns the journal balance for a student.
func (r *LedgerRepository) SumForStudent(ctx context.Context, studentID string) (int, error) {
	var sum int
	err := r.q.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM star_transactions WHERE student_id = $1`, studentID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum star transactions: %w", err)
	}

	return sum, nil
}

// TotalInCirculation returns the signed sum over all transactions.
func (r *LedgerRepository) TotalInCirculation(ctx context.Context) (int, error) {
	var sum int
	err := r.q.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM star_transactions`).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum star transactions: %w", err)
	}

	return sum, nil
}

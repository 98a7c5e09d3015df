package postgres

import (
	"context"
	"fmt"

	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/student"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const studentColumns = `id, teacher_id, display_name, star_balance, active, created_at, updated_at`

// StudentRepository implements student.Repository for PostgreSQL.
type StudentRepository struct {
	q Querier
}

// NewStudentRepository creates a new StudentRepository. The querier may be
// the shared connection or an open transaction.
func NewStudentRepository(q Querier) *StudentRepository {
	return &StudentRepository{q: q}
}

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create creates a new student.
func (r *StudentRepository) Create(ctx context.Context, s *student.Student) error {
	query := `
		INSERT INTO students (id, teacher_id, display_name, star_balance, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.q.Exec(ctx, query,
		s.ID,
		s.TeacherID.String(),
		s.DisplayName,
		int(s.StarBalance),
		s.Active,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return student.ErrStudentAlreadyExists
		}
		return fmt.Errorf("failed to create student: %w", err)
	}

	return nil
}

// GetByID returns a student by internal ID.
func (r *StudentRepository) GetByID(ctx context.Context, id string) (*student.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1`

	return r.scanStudent(r.q.QueryRow(ctx, query, id))
}

// Update updates a student's fields except the balance (see ApplyStarDelta).
func (r *StudentRepository) Update(ctx context.Context, s *student.Student) error {
	query := `
		UPDATE students
		SET teacher_id = $2, display_name = $3, active = $4, updated_at = $5
		WHERE id = $1
	`

	tag, err := r.q.Exec(ctx, query,
		s.ID,
		s.TeacherID.String(),
		s.DisplayName,
		s.Active,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update student: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return student.ErrStudentNotFound
	}

	return nil
}

// Delete removes a student. Progress, ledger and redemptions go with it
// via ON DELETE CASCADE.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete student: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return student.ErrStudentNotFound
	}

	return nil
}

// ApplyStarDelta atomically moves the balance by delta and returns the new
// balance. The WHERE clause is the race-proof guard: a delta that would
// push the balance below zero matches no row.
func (r *StudentRepository) ApplyStarDelta(ctx context.Context, id string, delta student.Stars) (student.Stars, error) {
	query := `
		UPDATE students
		SET star_balance = star_balance + $2, updated_at = NOW()
		WHERE id = $1 AND star_balance + $2 >= 0
		RETURNING star_balance
	`

	var balance int
	err := r.q.QueryRow(ctx, query, id, int(delta)).Scan(&balance)
	if err != nil {
		if IsNoRows(err) {
			exists, exErr := r.Exists(ctx, id)
			if exErr != nil {
				return 0, fmt.Errorf("failed to apply star delta: %w", exErr)
			}
			if !exists {
				return 0, student.ErrStudentNotFound
			}
			return 0, student.ErrInsufficientStars
		}
		return 0, fmt.Errorf("failed to apply star delta: %w", err)
	}

	return student.Stars(balance), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Listing & search
// ─────────────────────────────────────────────────────────────────────────────

// GetAll returns students with pagination, in leaderboard order by default.
func (r *StudentRepository) GetAll(ctx context.Context, opts student.ListOptions) ([]*student.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students` +
		r.whereActive(opts, "") + r.orderAndLimit(opts)

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query students: %w", err)
	}
	defer rows.Close()

	return r.scanStudents(rows)
}

// GetByTeacher returns one teacher's students.
func (r *StudentRepository) GetByTeacher(ctx context.Context, teacherID student.TeacherID, opts student.ListOptions) ([]*student.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE teacher_id = $1` +
		r.whereActive(opts, "AND") + r.orderAndLimit(opts)

	rows, err := r.q.Query(ctx, query, teacherID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query students by teacher: %w", err)
	}
	defer rows.Close()

	return r.scanStudents(rows)
}

// Search finds students by display name, case-insensitive substring match.
func (r *StudentRepository) Search(ctx context.Context, search string, opts student.ListOptions) ([]*student.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE display_name ILIKE $1` +
		r.whereActive(opts, "AND") + r.orderAndLimit(opts)

	rows, err := r.q.Query(ctx, query, "%"+search+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to search students: %w", err)
	}
	defer rows.Close()

	return r.scanStudents(rows)
}

// SearchByTeacher finds one teacher's students by display name. The teacher
// filter sits inside the query, so LIMIT/OFFSET page within the scope and
// never drop matches to higher-ranked foreign rows.
func (r *StudentRepository) SearchByTeacher(ctx context.Context, teacherID student.TeacherID, search string, opts student.ListOptions) ([]*student.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE teacher_id = $1 AND display_name ILIKE $2` +
		r.whereActive(opts, "AND") + r.orderAndLimit(opts)

	rows, err := r.q.Query(ctx, query, teacherID.String(), "%"+search+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to search students by teacher: %w", err)
	}
	defer rows.Close()

	return r.scanStudents(rows)
}

// Count returns the number of active students.
func (r *StudentRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM students WHERE active`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count students: %w", err)
	}

	return count, nil
}

// Exists checks whether a student exists.
func (r *StudentRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM students WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check student existence: %w", err)
	}

	return exists, nil
}

// TopTeachers aggregates active students per teacher, ranked by student
// count, then by summed balances, then by teacher ID for stable output.
func (r *StudentRepository) TopTeachers(ctx context.Context, limit int) ([]student.TeacherStats, error) {
	query := `
		SELECT teacher_id, COUNT(*) AS student_count, COALESCE(SUM(star_balance), 0) AS total_stars
		FROM students
		WHERE active
		GROUP BY teacher_id
		ORDER BY student_count DESC, total_stars DESC, teacher_id ASC
		LIMIT $1
	`

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top teachers: %w", err)
	}
	defer rows.Close()

	var stats []student.TeacherStats
	for rows.Next() {
		var s student.TeacherStats
		var teacherID string
		if err := rows.Scan(&teacherID, &s.StudentCount, &s.TotalStars); err != nil {
			return nil, fmt.Errorf("failed to scan teacher stats: %w", err)
		}
		s.TeacherID = student.TeacherID(teacherID)
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func (r *StudentRepository) whereActive(opts student.ListOptions, conjunction string) string {
	if opts.IncludeInactive {
		return ""
	}
	if conjunction == "" {
		return " WHERE active"
	}
	return " " + conjunction + " active"
}

// orderAndLimit renders ORDER BY / LIMIT / OFFSET. The sort column comes
// from a whitelist; anything else falls back to leaderboard order.
func (r *StudentRepository) orderAndLimit(opts student.ListOptions) string {
	column := "star_balance"
	switch opts.SortBy {
	case "display_name", "created_at", "star_balance":
		column = opts.SortBy
	}

	direction := "ASC"
	if opts.SortDesc {
		direction = "DESC"
	}

	// created_at ASC is the leaderboard tie-break for equal balances.
	clause := fmt.Sprintf(" ORDER BY %s %s, created_at ASC", column, direction)
	if column == "created_at" {
		clause = fmt.Sprintf(" ORDER BY created_at %s", direction)
	}

	if opts.Limit > 0 {
		clause += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	if opts.Offset > 0 {
		clause += fmt.Sprintf(" OFFSET %d", opts.Offset)
	}

	return clause
}

func (r *StudentRepository) scanStudent(row pgx.Row) (*student.Student, error) {
	var s student.Student
	var teacherID string
	var balance int

	err := row.Scan(
		&s.ID,
		&teacherID,
		&s.DisplayName,
		&balance,
		&s.Active,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, student.ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to scan student: %w", err)
	}

	s.TeacherID = student.TeacherID(teacherID)
	s.StarBalance = student.Stars(balance)
	return &s, nil
}

func (r *StudentRepository) scanStudents(rows pgx.Rows) ([]*student.Student, error) {
	var students []*student.Student
	for rows.Next() {
		s, err := r.scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, s)
	}

	return students, rows.Err()
}

package postgres

import (
	"context"
	"fmt"

	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/lesson"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// LESSON REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const lessonColumns = `id, title, level, lesson_order, active, created_at, updated_at`

// LessonRepository implements lesson.Repository for PostgreSQL.
type LessonRepository struct {
	q Querier
}

// NewLessonRepository creates a new LessonRepository.
func NewLessonRepository(q Querier) *LessonRepository {
	return &LessonRepository{q: q}
}

// Create creates a new lesson.
func (r *LessonRepository) Create(ctx context.Context, l *lesson.Lesson) error {
	query := `
		INSERT INTO lessons (id, title, level, lesson_order, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.q.Exec(ctx, query,
		l.ID,
		l.Title,
		int(l.Position.Level),
		int(l.Position.Order),
		l.Active,
		l.CreatedAt,
		l.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return lesson.ErrDuplicatePosition
		}
		return fmt.Errorf("failed to create lesson: %w", err)
	}

	return nil
}

// GetByID returns a lesson by ID.
func (r *LessonRepository) GetByID(ctx context.Context, id string) (*lesson.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE id = $1`

	return r.scanLesson(r.q.QueryRow(ctx, query, id))
}

// Update updates a lesson.
func (r *LessonRepository) Update(ctx context.Context, l *lesson.Lesson) error {
	query := `
		UPDATE lessons
		SET title = $2, level = $3, lesson_order = $4, active = $5, updated_at = $6
		WHERE id = $1
	`

	tag, err := r.q.Exec(ctx, query,
		l.ID,
		l.Title,
		int(l.Position.Level),
		int(l.Position.Order),
		l.Active,
		l.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return lesson.ErrDuplicatePosition
		}
		return fmt.Errorf("failed to update lesson: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return lesson.ErrLessonNotFound
	}

	return nil
}

// Delete removes a lesson. Progress records go with it via ON DELETE CASCADE.
func (r *LessonRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM lessons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete lesson: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return lesson.ErrLessonNotFound
	}

	return nil
}

// GetActive returns all active lessons in catalog order.
func (r *LessonRepository) GetActive(ctx context.Context) ([]*lesson.Lesson, error) {
	query := `SELECT ` + lessonColumns + ` FROM lessons WHERE active ORDER BY level, lesson_order`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query lessons: %w", err)
	}
	defer rows.Close()

	var lessons []*lesson.Lesson
	for rows.Next() {
		l, err := r.scanLesson(rows)
		if err != nil {
			return nil, err
		}
		lessons = append(lessons, l)
	}

	return lessons, rows.Err()
}

// GetCatalog returns the catalog of active lessons.
func (r *LessonRepository) GetCatalog(ctx context.Context) (*lesson.Catalog, error) {
	lessons, err := r.GetActive(ctx)
	if err != nil {
		return nil, err
	}

	return lesson.NewCatalog(lessons), nil
}

// Count returns the number of active lessons.
func (r *LessonRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM lessons WHERE active`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count lessons: %w", err)
	}

	return count, nil
}

func (r *LessonRepository) scanLesson(row pgx.Row) (*lesson.Lesson, error) {
	var l lesson.Lesson
	var level, order int

	err := row.Scan(
		&l.ID,
		&l.Title,
		&level,
		&order,
		&l.Active,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, lesson.ErrLessonNotFound
		}
		return nil, fmt.Errorf("failed to scan lesson: %w", err)
	}

	l.Position = lesson.Position{Level: lesson.Level(level), Order: lesson.Order(order)}
	return &l, nil
}

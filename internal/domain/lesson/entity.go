// Package lesson содержит доменную модель каталога уроков Zhuldyz Hub.
// Каталог - это строго упорядоченная программа: ученик не может получить
// звёзды за урок, пока не освоил его непосредственного предшественника.
package lesson

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Level представляет уровень программы (1, 2, 3, ...).
type Level int

// IsValid проверяет, что уровень положительный.
func (l Level) IsValid() bool {
	return l >= 1
}

// Order представляет порядковый номер урока внутри уровня.
type Order int

// IsValid проверяет, что номер положительный.
func (o Order) IsValid() bool {
	return o >= 1
}

// Position - позиция урока в каталоге. Полный порядок каталога задаётся
// сортировкой по (Level, Order) по возрастанию.
type Position struct {
	Level Level
	Order Order
}

// Before возвращает true, если позиция строго раньше other в порядке каталога.
func (p Position) Before(other Position) bool {
	if p.Level != other.Level {
		return p.Level < other.Level
	}
	return p.Order < other.Order
}

// Equal возвращает true, если позиции совпадают.
func (p Position) Equal(other Position) bool {
	return p.Level == other.Level && p.Order == other.Order
}

// String возвращает строковое представление позиции.
func (p Position) String() string {
	return fmt.Sprintf("L%d.%d", p.Level, p.Order)
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: LESSON
// ══════════════════════════════════════════════════════════════════════════════

// Lesson - один урок программы.
type Lesson struct {
	// ID - внутренний уникальный идентификатор (UUID в строковом формате).
	ID string

	// Title - название урока.
	Title string

	// Position - позиция в каталоге (уровень + порядок внутри уровня).
	Position Position

	// Active - участвует ли урок в программе. Неактивные уроки
	// не учитываются при вычислении предшественника.
	Active bool

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidTitle - невалидное название урока.
	ErrInvalidTitle = errors.New("invalid lesson title: must be 1-200 chars")

	// ErrInvalidLevel - уровень должен быть >= 1.
	ErrInvalidLevel = errors.New("invalid lesson level: must be >= 1")

	// ErrInvalidOrder - порядок должен быть >= 1.
	ErrInvalidOrder = errors.New("invalid lesson order: must be >= 1")

	// ErrLessonNotFound - урок не найден.
	ErrLessonNotFound = errors.New("lesson not found")

	// ErrLessonNotActive - урок исключён из программы.
	ErrLessonNotActive = errors.New("lesson is not active")

	// ErrDuplicatePosition - позиция (level, order) уже занята другим уроком.
	ErrDuplicatePosition = errors.New("catalog position already taken")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewLessonParams содержит параметры для создания нового урока.
type NewLessonParams struct {
	ID    string
	Title string
	Level Level
	Order Order
}

// NewLesson создаёт новый урок с валидацией всех полей.
func NewLesson(params NewLessonParams) (*Lesson, error) {
	if params.ID == "" {
		return nil, errors.New("lesson id is required")
	}

	title := strings.TrimSpace(params.Title)
	if len(title) == 0 || len(title) > 200 {
		return nil, ErrInvalidTitle
	}

	if !params.Level.IsValid() {
		return nil, ErrInvalidLevel
	}

	if !params.Order.IsValid() {
		return nil, ErrInvalidOrder
	}

	now := time.Now().UTC()

	return &Lesson{
		ID:        params.ID,
		Title:     title,
		Position:  Position{Level: params.Level, Order: params.Order},
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// Deactivate исключает урок из программы.
func (l *Lesson) Deactivate() {
	l.Active = false
	l.UpdatedAt = time.Now().UTC()
}

// Reactivate возвращает урок в программу.
func (l *Lesson) Reactivate() {
	l.Active = true
	l.UpdatedAt = time.Now().UTC()
}

// String возвращает строковое представление урока для логирования.
func (l *Lesson) String() string {
	return fmt.Sprintf("Lesson{ID: %s, %s, Title: %q, Active: %t}",
		l.ID, l.Position, l.Title, l.Active)
}

// Clone создаёт глубокую копию урока.
func (l *Lesson) Clone() *Lesson {
	if l == nil {
		return nil
	}

	clone := *l
	return &clone
}

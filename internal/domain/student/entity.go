// Package student содержит доменную модель ученика Zhuldyz Hub.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package student

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Stars представляет количество звёзд - внутреннюю валюту платформы.
// Баланс ученика никогда не опускается ниже нуля.
type Stars int

// IsValid проверяет, что значение неотрицательное.
func (s Stars) IsValid() bool {
	return s >= 0
}

// Add складывает звёзды.
func (s Stars) Add(delta Stars) Stars {
	return s + delta
}

// CanAfford проверяет, хватает ли звёзд на указанную стоимость.
func (s Stars) CanAfford(cost Stars) bool {
	return cost >= 0 && s >= cost
}

// TeacherID представляет идентификатор учителя, которому принадлежит ученик.
type TeacherID string

// IsValid проверяет, что идентификатор непустой.
func (t TeacherID) IsValid() bool {
	return strings.TrimSpace(string(t)) != ""
}

// String возвращает строковое представление идентификатора.
func (t TeacherID) String() string {
	return string(t)
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// Student - центральная сущность системы: ребёнок, который проходит уроки,
// зарабатывает звёзды и обменивает их на призы.
type Student struct {
	// ID - внутренний уникальный идентификатор (UUID в строковом формате).
	ID string

	// TeacherID - учитель, которому принадлежит ученик.
	TeacherID TeacherID

	// DisplayName - отображаемое имя ученика.
	DisplayName string

	// StarBalance - текущий баланс звёзд. Материализованный счётчик,
	// производный от журнала звёздных транзакций.
	StarBalance Stars

	// Active - активен ли ученик (false = архивирован учителем).
	Active bool

	// CreatedAt - время регистрации. Используется как тай-брейк в лидерборде:
	// при равном балансе выше стоит тот, кто зарегистрировался раньше.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidDisplayName - невалидное отображаемое имя.
	ErrInvalidDisplayName = errors.New("invalid display name: must be 1-100 chars")

	// ErrInvalidTeacherID - невалидный идентификатор учителя.
	ErrInvalidTeacherID = errors.New("invalid teacher id: must not be empty")

	// ErrInvalidBalance - баланс не может быть отрицательным.
	ErrInvalidBalance = errors.New("invalid star balance: must be non-negative")

	// ErrInsufficientStars - недостаточно звёзд для списания.
	ErrInsufficientStars = errors.New("insufficient star balance")

	// ErrStudentNotFound - ученик не найден.
	ErrStudentNotFound = errors.New("student not found")

	// ErrStudentAlreadyExists - ученик уже существует.
	ErrStudentAlreadyExists = errors.New("student already exists")

	// ErrStudentNotActive - ученик архивирован и не участвует в программе.
	ErrStudentNotActive = errors.New("student is not active")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewStudentParams содержит параметры для создания нового ученика.
type NewStudentParams struct {
	ID          string
	TeacherID   TeacherID
	DisplayName string
}

// NewStudent создаёт нового ученика с валидацией всех полей.
// Новый ученик всегда начинает с нулевым балансом.
func NewStudent(params NewStudentParams) (*Student, error) {
	if params.ID == "" {
		return nil, errors.New("student id is required")
	}

	if !params.TeacherID.IsValid() {
		return nil, ErrInvalidTeacherID
	}

	displayName := strings.TrimSpace(params.DisplayName)
	if len(displayName) == 0 || len(displayName) > 100 {
		return nil, ErrInvalidDisplayName
	}

	now := time.Now().UTC()

	return &Student{
		ID:          params.ID,
		TeacherID:   params.TeacherID,
		DisplayName: displayName,
		StarBalance: 0,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS (Business Logic)
// ══════════════════════════════════════════════════════════════════════════════

// ApplyStarDelta применяет изменение баланса (положительное или отрицательное)
// и возвращает новый баланс. Дельта, уводящая баланс ниже нуля, отклоняется -
// такое возможно, если ученик уже потратил звёзды, которые у него снимают.
func (s *Student) ApplyStarDelta(delta Stars) (Stars, error) {
	newBalance := s.StarBalance.Add(delta)
	if !newBalance.IsValid() {
		return s.StarBalance, ErrInsufficientStars
	}

	s.StarBalance = newBalance
	s.UpdatedAt = time.Now().UTC()
	return s.StarBalance, nil
}

// Spend списывает стоимость с баланса. Возвращает ErrInsufficientStars,
// если звёзд не хватает.
func (s *Student) Spend(cost Stars) (Stars, error) {
	if !s.StarBalance.CanAfford(cost) {
		return s.StarBalance, ErrInsufficientStars
	}
	return s.ApplyStarDelta(-cost)
}

// OwnedBy проверяет, принадлежит ли ученик указанному учителю.
func (s *Student) OwnedBy(teacherID TeacherID) bool {
	return s.TeacherID == teacherID
}

// Deactivate архивирует ученика.
func (s *Student) Deactivate() error {
	if !s.Active {
		return ErrStudentNotActive
	}

	s.Active = false
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Reactivate возвращает архивированного ученика в программу.
func (s *Student) Reactivate() {
	s.Active = true
	s.UpdatedAt = time.Now().UTC()
}

// String возвращает строковое представление ученика для логирования.
func (s *Student) String() string {
	return fmt.Sprintf(
		"Student{ID: %s, Teacher: %s, Stars: %d, Active: %t}",
		s.ID, s.TeacherID, s.StarBalance, s.Active,
	)
}

// Clone создаёт глубокую копию ученика.
func (s *Student) Clone() *Student {
	if s == nil {
		return nil
	}

	clone := *s
	return &clone
}

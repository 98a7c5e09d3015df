package student

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем данных.
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет основные операции CRUD для учеников.
type Repository interface {
	// Create создаёт нового ученика.
	// Возвращает ErrStudentAlreadyExists, если ученик уже существует.
	Create(ctx context.Context, student *Student) error

	// GetByID возвращает ученика по внутреннему ID.
	// Возвращает ErrStudentNotFound, если ученик не найден.
	GetByID(ctx context.Context, id string) (*Student, error)

	// Update обновляет данные ученика (кроме баланса - см. ApplyStarDelta).
	// Возвращает ErrStudentNotFound, если ученик не найден.
	Update(ctx context.Context, student *Student) error

	// Delete удаляет ученика. Журнал прогресса и транзакций удаляется каскадно.
	Delete(ctx context.Context, id string) error

	// ApplyStarDelta атомарно изменяет баланс ученика на delta и возвращает
	// новый баланс. Изменение, уводящее баланс ниже нуля, отклоняется
	// на уровне хранилища - это защита от гонок параллельных запросов.
	ApplyStarDelta(ctx context.Context, id string, delta Stars) (Stars, error)

	// GetAll возвращает всех учеников с пагинацией.
	GetAll(ctx context.Context, opts ListOptions) ([]*Student, error)

	// GetByTeacher возвращает учеников указанного учителя.
	GetByTeacher(ctx context.Context, teacherID TeacherID, opts ListOptions) ([]*Student, error)

	// Search выполняет поиск учеников по имени.
	Search(ctx context.Context, query string, opts ListOptions) ([]*Student, error)

	// SearchByTeacher выполняет поиск по имени среди учеников одного учителя.
	// Фильтр по учителю входит в сам запрос, поэтому пагинация считается
	// внутри области видимости.
	SearchByTeacher(ctx context.Context, teacherID TeacherID, query string, opts ListOptions) ([]*Student, error)

	// Count возвращает общее количество активных учеников.
	Count(ctx context.Context) (int, error)

	// Exists проверяет существование ученика по ID.
	Exists(ctx context.Context, id string) (bool, error)

	// TopTeachers возвращает агрегаты по учителям: сначала по количеству
	// активных учеников, при равенстве - по суммарным звёздам учеников.
	TopTeachers(ctx context.Context, limit int) ([]TeacherStats, error)
}

// TeacherStats - агрегат по одному учителю для статистики платформы.
type TeacherStats struct {
	// TeacherID - идентификатор учителя.
	TeacherID TeacherID

	// StudentCount - количество активных учеников.
	StudentCount int

	// TotalStars - сумма текущих балансов учеников.
	TotalStars int
}

// ListOptions содержит параметры для пагинации и сортировки.
type ListOptions struct {
	// Offset - смещение (для пагинации).
	Offset int

	// Limit - максимальное количество записей (0 = без ограничения).
	Limit int

	// SortBy - поле для сортировки.
	SortBy string

	// SortDesc - сортировка по убыванию.
	SortDesc bool

	// IncludeInactive - включать архивированных учеников.
	IncludeInactive bool
}

// DefaultListOptions возвращает параметры по умолчанию: сортировка по балансу
// по убыванию, тай-брейк по дате регистрации по возрастанию.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Offset:          0,
		Limit:           50,
		SortBy:          "star_balance",
		SortDesc:        true,
		IncludeInactive: false,
	}
}

// WithOffset устанавливает смещение.
func (o ListOptions) WithOffset(offset int) ListOptions {
	o.Offset = offset
	return o
}

// WithLimit устанавливает лимит.
func (o ListOptions) WithLimit(limit int) ListOptions {
	o.Limit = limit
	return o
}

// WithSort устанавливает сортировку.
func (o ListOptions) WithSort(field string, desc bool) ListOptions {
	o.SortBy = field
	o.SortDesc = desc
	return o
}

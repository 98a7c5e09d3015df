package lesson

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// Каталог уроков для ядра read-only: создание и правка уроков -
// административная операция за пределами движка начисления звёзд.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции для работы с каталогом уроков.
type Repository interface {
	// Create создаёт новый урок.
	// Возвращает ErrDuplicatePosition, если позиция (level, order) занята.
	Create(ctx context.Context, lesson *Lesson) error

	// GetByID возвращает урок по ID.
	// Возвращает ErrLessonNotFound, если урок не найден.
	GetByID(ctx context.Context, id string) (*Lesson, error)

	// Update обновляет данные урока.
	Update(ctx context.Context, lesson *Lesson) error

	// Delete удаляет урок. Записи прогресса удаляются каскадно.
	Delete(ctx context.Context, id string) error

	// GetActive возвращает все активные уроки в порядке каталога.
	GetActive(ctx context.Context) ([]*Lesson, error)

	// GetCatalog возвращает каталог активных уроков.
	GetCatalog(ctx context.Context) (*Catalog, error)

	// Count возвращает количество активных уроков.
	Count(ctx context.Context) (int, error)
}

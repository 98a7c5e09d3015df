package lesson

import (
	"sort"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// Каталог - упорядоченный снимок активных уроков. Вся логика "кто чей
// предшественник" живёт здесь, чтобы команды работали с чистой функцией,
// а не с SQL-запросами.
// ══════════════════════════════════════════════════════════════════════════════

// Catalog - отсортированный по (Level, Order) список активных уроков.
type Catalog struct {
	lessons []*Lesson
}

// NewCatalog строит каталог из произвольного списка уроков.
// Неактивные уроки отбрасываются, остальные сортируются в порядке каталога.
func NewCatalog(lessons []*Lesson) *Catalog {
	active := make([]*Lesson, 0, len(lessons))
	for _, l := range lessons {
		if l != nil && l.Active {
			active = append(active, l)
		}
	}

	sort.Slice(active, func(i, j int) bool {
		return active[i].Position.Before(active[j].Position)
	})

	return &Catalog{lessons: active}
}

// Len возвращает количество активных уроков в каталоге.
func (c *Catalog) Len() int {
	return len(c.lessons)
}

// Lessons возвращает уроки в порядке каталога.
func (c *Catalog) Lessons() []*Lesson {
	out := make([]*Lesson, len(c.lessons))
	copy(out, c.lessons)
	return out
}

// ByID возвращает активный урок по ID или ErrLessonNotFound.
func (c *Catalog) ByID(id string) (*Lesson, error) {
	for _, l := range c.lessons {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, ErrLessonNotFound
}

// PredecessorOf возвращает непосредственного предшественника урока:
// среди активных уроков строго раньше target в порядке каталога берётся
// ближайший, то есть с наибольшей позицией (Level, Order).
// Возвращает nil, если предшественника нет - урок первый в программе.
func (c *Catalog) PredecessorOf(target *Lesson) *Lesson {
	if target == nil {
		return nil
	}

	var best *Lesson
	for _, l := range c.lessons {
		if l.ID == target.ID {
			continue
		}
		if !l.Position.Before(target.Position) {
			continue
		}
		if best == nil || best.Position.Before(l.Position) {
			best = l
		}
	}

	return best
}

// First возвращает первый урок программы или nil для пустого каталога.
func (c *Catalog) First() *Lesson {
	if len(c.lessons) == 0 {
		return nil
	}
	return c.lessons[0]
}

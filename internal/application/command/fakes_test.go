package command

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/lesson"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/progress"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/reward"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/shared"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY FAKES
// Одно in-memory "хранилище" на тест: все фейковые репозитории смотрят в
// одни и те же map'ы, unit of work раздаёт их как транзакционные.
// ══════════════════════════════════════════════════════════════════════════════

type memStore struct {
	students    map[string]*student.Student
	lessons     map[string]*lesson.Lesson
	records     map[string]*progress.Record // key: studentID|lessonID
	ledger      []*progress.Transaction
	rewards     map[string]*reward.Reward
	redemptions map[string]*reward.Redemption

	committed  bool
	rolledBack bool

	// Гонки хранилища: имитируют проигрыш конкурентной записи.
	raceOnRecordCreate bool   // вставка записи прогресса всегда проигрывает двойнику
	raceOnTakeStock    string // остаток этого приза исчезает в момент списания
}

func newMemStore() *memStore {
	return &memStore{
		students:    make(map[string]*student.Student),
		lessons:     make(map[string]*lesson.Lesson),
		records:     make(map[string]*progress.Record),
		rewards:     make(map[string]*reward.Reward),
		redemptions: make(map[string]*reward.Redemption),
	}
}

func recordKey(studentID, lessonID string) string {
	return studentID + "|" + lessonID
}

// snapshot deep-copies the stored entities so a rollback can restore the
// pre-transaction state even after in-place mutations.
func (m *memStore) snapshot() *memStore {
	snap := newMemStore()
	for id, s := range m.students {
		snap.students[id] = s.Clone()
	}
	for id, l := range m.lessons {
		snap.lessons[id] = l.Clone()
	}
	for key, rec := range m.records {
		snap.records[key] = rec.Clone()
	}
	// Journal entries are immutable, copying the slice header is enough.
	snap.ledger = append(snap.ledger, m.ledger...)
	for id, rw := range m.rewards {
		snap.rewards[id] = rw.Clone()
	}
	for id, red := range m.redemptions {
		snap.redemptions[id] = red.Clone()
	}
	return snap
}

func (m *memStore) restore(snap *memStore) {
	m.students = snap.students
	m.lessons = snap.lessons
	m.records = snap.records
	m.ledger = snap.ledger
	m.rewards = snap.rewards
	m.redemptions = snap.redemptions
}

// ── student.Repository ────────────────────────────────────────────────────────

type fakeStudentRepo struct{ store *memStore }

func (r *fakeStudentRepo) Create(_ context.Context, s *student.Student) error {
	if _, ok := r.store.students[s.ID]; ok {
		return student.ErrStudentAlreadyExists
	}
	r.store.students[s.ID] = s.Clone()
	return nil
}

func (r *fakeStudentRepo) GetByID(_ context.Context, id string) (*student.Student, error) {
	s, ok := r.store.students[id]
	if !ok {
		return nil, student.ErrStudentNotFound
	}
	return s.Clone(), nil
}

func (r *fakeStudentRepo) Update(_ context.Context, s *student.Student) error {
	if _, ok := r.store.students[s.ID]; !ok {
		return student.ErrStudentNotFound
	}
	r.store.students[s.ID] = s.Clone()
	return nil
}

func (r *fakeStudentRepo) Delete(_ context.Context, id string) error {
	delete(r.store.students, id)
	return nil
}

func (r *fakeStudentRepo) ApplyStarDelta(_ context.Context, id string, delta student.Stars) (student.Stars, error) {
	s, ok := r.store.students[id]
	if !ok {
		return 0, student.ErrStudentNotFound
	}
	return s.ApplyStarDelta(delta)
}

func (r *fakeStudentRepo) GetAll(_ context.Context, opts student.ListOptions) ([]*student.Student, error) {
	out := make([]*student.Student, 0, len(r.store.students))
	for _, s := range r.store.students {
		if !s.Active && !opts.IncludeInactive {
			continue
		}
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StarBalance != out[j].StarBalance {
			return out[i].StarBalance > out[j].StarBalance
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *fakeStudentRepo) GetByTeacher(ctx context.Context, teacherID student.TeacherID, opts student.ListOptions) ([]*student.Student, error) {
	all, _ := r.GetAll(ctx, opts)
	out := make([]*student.Student, 0, len(all))
	for _, s := range all {
		if s.TeacherID == teacherID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeStudentRepo) Search(ctx context.Context, query string, opts student.ListOptions) ([]*student.Student, error) {
	all, _ := r.GetAll(ctx, opts)
	out := make([]*student.Student, 0, len(all))
	for _, s := range all {
		if strings.Contains(strings.ToLower(s.DisplayName), strings.ToLower(query)) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeStudentRepo) SearchByTeacher(ctx context.Context, teacherID student.TeacherID, query string, opts student.ListOptions) ([]*student.Student, error) {
	found, _ := r.Search(ctx, query, opts)
	out := make([]*student.Student, 0, len(found))
	for _, s := range found {
		if s.TeacherID == teacherID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeStudentRepo) Count(_ context.Context) (int, error) {
	n := 0
	for _, s := range r.store.students {
		if s.Active {
			n++
		}
	}
	return n, nil
}

func (r *fakeStudentRepo) Exists(_ context.Context, id string) (bool, error) {
	_, ok := r.store.students[id]
	return ok, nil
}

func (r *fakeStudentRepo) TopTeachers(_ context.Context, _ int) ([]student.TeacherStats, error) {
	return nil, nil
}

// ── lesson.Repository ─────────────────────────────────────────────────────────

type fakeLessonRepo struct{ store *memStore }

func (r *fakeLessonRepo) Create(_ context.Context, l *lesson.Lesson) error {
	for _, existing := range r.store.lessons {
		if existing.Active && existing.Position.Equal(l.Position) {
			return lesson.ErrDuplicatePosition
		}
	}
	r.store.lessons[l.ID] = l.Clone()
	return nil
}

func (r *fakeLessonRepo) GetByID(_ context.Context, id string) (*lesson.Lesson, error) {
	l, ok := r.store.lessons[id]
	if !ok {
		return nil, lesson.ErrLessonNotFound
	}
	return l.Clone(), nil
}

func (r *fakeLessonRepo) Update(_ context.Context, l *lesson.Lesson) error {
	r.store.lessons[l.ID] = l.Clone()
	return nil
}

func (r *fakeLessonRepo) Delete(_ context.Context, id string) error {
	delete(r.store.lessons, id)
	return nil
}

func (r *fakeLessonRepo) GetActive(_ context.Context) ([]*lesson.Lesson, error) {
	out := make([]*lesson.Lesson, 0, len(r.store.lessons))
	for _, l := range r.store.lessons {
		if l.Active {
			out = append(out, l.Clone())
		}
	}
	return out, nil
}

func (r *fakeLessonRepo) GetCatalog(ctx context.Context) (*lesson.Catalog, error) {
	active, _ := r.GetActive(ctx)
	return lesson.NewCatalog(active), nil
}

func (r *fakeLessonRepo) Count(_ context.Context) (int, error) {
	n := 0
	for _, l := range r.store.lessons {
		if l.Active {
			n++
		}
	}
	return n, nil
}

// ── progress.Repository ───────────────────────────────────────────────────────

type fakeProgressRepo struct{ store *memStore }

func (r *fakeProgressRepo) Create(_ context.Context, rec *progress.Record) error {
	if r.store.raceOnRecordCreate {
		return progress.ErrRecordExists
	}
	key := recordKey(rec.StudentID, rec.LessonID)
	if _, ok := r.store.records[key]; ok {
		return progress.ErrRecordExists
	}
	r.store.records[key] = rec.Clone()
	return nil
}

func (r *fakeProgressRepo) Get(_ context.Context, studentID, lessonID string) (*progress.Record, error) {
	rec, ok := r.store.records[recordKey(studentID, lessonID)]
	if !ok {
		return nil, progress.ErrRecordNotFound
	}
	return rec.Clone(), nil
}

func (r *fakeProgressRepo) Update(_ context.Context, rec *progress.Record) error {
	r.store.records[recordKey(rec.StudentID, rec.LessonID)] = rec.Clone()
	return nil
}

func (r *fakeProgressRepo) GetByStudent(_ context.Context, studentID string) ([]*progress.Record, error) {
	out := make([]*progress.Record, 0)
	for _, rec := range r.store.records {
		if rec.StudentID == studentID {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (r *fakeProgressRepo) GetMasteredLessonIDs(_ context.Context, studentID string) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, rec := range r.store.records {
		if rec.StudentID == studentID && rec.Mastered() {
			out[rec.LessonID] = true
		}
	}
	return out, nil
}

func (r *fakeProgressRepo) GetCompletedBetween(_ context.Context, from, to time.Time) ([]*progress.Record, error) {
	out := make([]*progress.Record, 0)
	for _, rec := range r.store.records {
		if !rec.CompletedAt.Before(from) && rec.CompletedAt.Before(to) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

func (r *fakeProgressRepo) CountMastered(_ context.Context, teacherID string) (int, error) {
	n := 0
	for _, rec := range r.store.records {
		if teacherID != "" && rec.TeacherID != teacherID {
			continue
		}
		if rec.Mastered() {
			n++
		}
	}
	return n, nil
}

// ── progress.LedgerRepository ─────────────────────────────────────────────────

type fakeLedgerRepo struct{ store *memStore }

func (r *fakeLedgerRepo) Append(_ context.Context, tx *progress.Transaction) error {
	r.store.ledger = append(r.store.ledger, tx)
	return nil
}

func (r *fakeLedgerRepo) GetByStudent(_ context.Context, studentID string, limit int) ([]*progress.Transaction, error) {
	out := make([]*progress.Transaction, 0)
	for _, tx := range r.store.ledger {
		if tx.StudentID == studentID {
			out = append(out, tx)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeLedgerRepo) SumForStudent(_ context.Context, studentID string) (int, error) {
	sum := 0
	for _, tx := range r.store.ledger {
		if tx.StudentID == studentID {
			sum += tx.Amount
		}
	}
	return sum, nil
}

func (r *fakeLedgerRepo) TotalInCirculation(_ context.Context) (int, error) {
	sum := 0
	for _, tx := range r.store.ledger {
		sum += tx.Amount
	}
	return sum, nil
}

// ── reward.Repository ─────────────────────────────────────────────────────────

type fakeRewardRepo struct{ store *memStore }

func (r *fakeRewardRepo) Create(_ context.Context, rw *reward.Reward) error {
	r.store.rewards[rw.ID] = rw.Clone()
	return nil
}

func (r *fakeRewardRepo) GetByID(_ context.Context, id string) (*reward.Reward, error) {
	rw, ok := r.store.rewards[id]
	if !ok {
		return nil, reward.ErrRewardNotFound
	}
	return rw.Clone(), nil
}

func (r *fakeRewardRepo) GetByIDs(_ context.Context, ids []string) (map[string]*reward.Reward, error) {
	out := make(map[string]*reward.Reward, len(ids))
	for _, id := range ids {
		if rw, ok := r.store.rewards[id]; ok && rw.Active {
			out[id] = rw.Clone()
		}
	}
	return out, nil
}

func (r *fakeRewardRepo) Update(_ context.Context, rw *reward.Reward) error {
	r.store.rewards[rw.ID] = rw.Clone()
	return nil
}

func (r *fakeRewardRepo) GetActive(_ context.Context) ([]*reward.Reward, error) {
	out := make([]*reward.Reward, 0)
	for _, rw := range r.store.rewards {
		if rw.Active {
			out = append(out, rw.Clone())
		}
	}
	return out, nil
}

func (r *fakeRewardRepo) TakeStock(_ context.Context, id string, quantity int) error {
	if id == r.store.raceOnTakeStock {
		return reward.ErrOutOfStock
	}
	rw, ok := r.store.rewards[id]
	if !ok {
		return reward.ErrRewardNotFound
	}
	return rw.TakeStock(quantity)
}

func (r *fakeRewardRepo) RestoreStock(_ context.Context, id string, quantity int) error {
	rw, ok := r.store.rewards[id]
	if !ok {
		return reward.ErrRewardNotFound
	}
	return rw.RestoreStock(quantity)
}

// ── reward.RedemptionRepository ───────────────────────────────────────────────

type fakeRedemptionRepo struct{ store *memStore }

func (r *fakeRedemptionRepo) Create(_ context.Context, red *reward.Redemption) error {
	if red.IdempotencyKey != "" {
		for _, existing := range r.store.redemptions {
			if existing.IdempotencyKey == red.IdempotencyKey {
				return reward.ErrDuplicateRedemption
			}
		}
	}
	r.store.redemptions[red.ID] = red.Clone()
	return nil
}

func (r *fakeRedemptionRepo) GetByID(_ context.Context, id string) (*reward.Redemption, error) {
	red, ok := r.store.redemptions[id]
	if !ok {
		return nil, reward.ErrRedemptionNotFound
	}
	return red.Clone(), nil
}

func (r *fakeRedemptionRepo) GetByIdempotencyKey(_ context.Context, key string) (*reward.Redemption, error) {
	for _, red := range r.store.redemptions {
		if red.IdempotencyKey == key {
			return red.Clone(), nil
		}
	}
	return nil, reward.ErrRedemptionNotFound
}

func (r *fakeRedemptionRepo) Update(_ context.Context, red *reward.Redemption) error {
	r.store.redemptions[red.ID] = red.Clone()
	return nil
}

func (r *fakeRedemptionRepo) GetByStudent(_ context.Context, studentID string) ([]*reward.Redemption, error) {
	out := make([]*reward.Redemption, 0)
	for _, red := range r.store.redemptions {
		if red.StudentID == studentID {
			out = append(out, red.Clone())
		}
	}
	return out, nil
}

func (r *fakeRedemptionRepo) SumSpentByStudent(_ context.Context, studentID string) (int, error) {
	sum := 0
	for _, red := range r.store.redemptions {
		if red.StudentID == studentID && red.Status != reward.StatusCancelled {
			sum += red.StarsCost
		}
	}
	return sum, nil
}

// ── Unit of work ──────────────────────────────────────────────────────────────

// fakeUow имитирует транзакционность снимком: Begin снимает копию стора,
// Rollback возвращает её на место, поэтому упавшая на полпути пачка
// откатывает и уже сделанные записи.
type fakeUow struct {
	store     *memStore
	snapshot  *memStore
	committed bool
}

func (u *fakeUow) Students() student.Repository             { return &fakeStudentRepo{store: u.store} }
func (u *fakeUow) Progress() progress.Repository            { return &fakeProgressRepo{store: u.store} }
func (u *fakeUow) Ledger() progress.LedgerRepository        { return &fakeLedgerRepo{store: u.store} }
func (u *fakeUow) Rewards() reward.Repository               { return &fakeRewardRepo{store: u.store} }
func (u *fakeUow) Redemptions() reward.RedemptionRepository {
	return &fakeRedemptionRepo{store: u.store}
}

func (u *fakeUow) Commit(_ context.Context) error {
	u.committed = true
	u.store.committed = true
	return nil
}

func (u *fakeUow) Rollback(_ context.Context) error {
	if u.committed {
		return nil
	}
	u.store.restore(u.snapshot)
	u.store.rolledBack = true
	return nil
}

type fakeUowFactory struct{ store *memStore }

func (f *fakeUowFactory) Begin(_ context.Context) (UnitOfWork, error) {
	return &fakeUow{store: f.store, snapshot: f.store.snapshot()}, nil
}

// ── Event publisher ───────────────────────────────────────────────────────────

type capturingPublisher struct {
	events []shared.Event
}

func (p *capturingPublisher) Publish(event shared.Event) error {
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) typesSeen() []shared.EventType {
	out := make([]shared.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.EventType()
	}
	return out
}

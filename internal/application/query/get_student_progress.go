package query

import (
	"context"
	"errors"
	"time"

	"github.com/zhuldyz-hub/zhuldyz-hub/internal/application/access"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/lesson"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/progress"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/reward"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/shared"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT PROGRESS QUERY
// Everything a teacher sees on one student's page: the balance, the next
// lesson the student is allowed to take, every completion record, the
// redemption history and the star journal that backs the balance.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultLedgerLimit bounds the journal tail returned with the page.
const DefaultLedgerLimit = 50

// GetStudentProgressQuery contains the parameters for the request.
type GetStudentProgressQuery struct {
	// StudentID is the student to inspect.
	StudentID string

	// Actor is the authenticated caller.
	Actor access.Actor

	// LedgerLimit caps the journal entries returned (default 50).
	LedgerLimit int
}

// Validate validates the query.
func (q *GetStudentProgressQuery) Validate() error {
	if q.StudentID == "" {
		return errors.New("student_id is required")
	}
	if q.LedgerLimit < 0 {
		return errors.New("ledger_limit cannot be negative")
	}
	if q.LedgerLimit == 0 {
		q.LedgerLimit = DefaultLedgerLimit
	}
	return nil
}

// ProgressRecordDTO is one completion record enriched with lesson data.
type ProgressRecordDTO struct {
	LessonID    string    `json:"lesson_id"`
	LessonTitle string    `json:"lesson_title"`
	Position    string    `json:"position"`
	StarsEarned int       `json:"stars_earned"`
	Mastered    bool      `json:"mastered"`
	Notes       string    `json:"notes,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// LedgerEntryDTO is one journal entry.
type LedgerEntryDTO struct {
	Amount      int       `json:"amount"`
	Kind        string    `json:"kind"`
	ReferenceID string    `json:"reference_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// RedemptionDTO is one redemption of the student.
type RedemptionDTO struct {
	ID        string    `json:"id"`
	RewardID  string    `json:"reward_id"`
	Quantity  int       `json:"quantity"`
	StarsCost int       `json:"stars_cost"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// GetStudentProgressResult is the student page payload.
type GetStudentProgressResult struct {
	// StudentID is the inspected student.
	StudentID string `json:"student_id"`

	// DisplayName is the student's name.
	DisplayName string `json:"display_name"`

	// StarBalance is the current materialized balance.
	StarBalance int `json:"star_balance"`

	// Active is whether the student participates in the program.
	Active bool `json:"active"`

	// NextLesson is the first catalog lesson the student may take now,
	// nil when the whole program is mastered.
	NextLesson *ProgressRecordDTO `json:"next_lesson,omitempty"`

	// Records are the completion records in catalog order.
	Records []ProgressRecordDTO `json:"records"`

	// Redemptions is the redemption history, newest first.
	Redemptions []RedemptionDTO `json:"redemptions"`

	// Ledger is the tail of the star journal, newest first.
	Ledger []LedgerEntryDTO `json:"ledger"`
}

// GetStudentProgressHandler handles the GetStudentProgressQuery.
type GetStudentProgressHandler struct {
	studentRepo    student.Repository
	lessonRepo     lesson.Repository
	progressRepo   progress.Repository
	ledgerRepo     progress.LedgerRepository
	redemptionRepo reward.RedemptionRepository
}

// NewGetStudentProgressHandler creates a new GetStudentProgressHandler.
func NewGetStudentProgressHandler(
	studentRepo student.Repository,
	lessonRepo lesson.Repository,
	progressRepo progress.Repository,
	ledgerRepo progress.LedgerRepository,
	redemptionRepo reward.RedemptionRepository,
) *GetStudentProgressHandler {
	return &GetStudentProgressHandler{
		studentRepo:    studentRepo,
		lessonRepo:     lessonRepo,
		progressRepo:   progressRepo,
		ledgerRepo:     ledgerRepo,
		redemptionRepo: redemptionRepo,
	}
}

// Handle executes the query.
func (h *GetStudentProgressHandler) Handle(ctx context.Context, query GetStudentProgressQuery) (*GetStudentProgressResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "GetStudentProgress", shared.ErrValidation, err.Error(), err)
	}

	stud, err := h.studentRepo.GetByID(ctx, query.StudentID)
	if err != nil {
		if errors.Is(err, student.ErrStudentNotFound) {
			return nil, shared.NewDomainError("query", "GetStudentProgress", shared.ErrNotFound, "student not found")
		}
		return nil, shared.WrapError("query", "GetStudentProgress", shared.ErrInternal, "failed to get student", err)
	}
	if err := query.Actor.Authorize("GetStudentProgress", stud); err != nil {
		return nil, err
	}

	catalog, err := h.lessonRepo.GetCatalog(ctx)
	if err != nil {
		return nil, shared.WrapError("query", "GetStudentProgress", shared.ErrInternal, "failed to load catalog", err)
	}

	records, err := h.progressRepo.GetByStudent(ctx, query.StudentID)
	if err != nil {
		return nil, shared.WrapError("query", "GetStudentProgress", shared.ErrInternal, "failed to load records", err)
	}
	byLesson := make(map[string]*progress.Record, len(records))
	for _, rec := range records {
		byLesson[rec.LessonID] = rec
	}

	result := &GetStudentProgressResult{
		StudentID:   stud.ID,
		DisplayName: stud.DisplayName,
		StarBalance: int(stud.StarBalance),
		Active:      stud.Active,
		Records:     make([]ProgressRecordDTO, 0, len(records)),
	}

	// Walk the catalog in order: collect completed lessons and find the
	// first lesson whose predecessor chain is satisfied but which is not
	// yet mastered - that is the student's next step.
	for _, l := range catalog.Lessons() {
		rec, done := byLesson[l.ID]
		if done {
			result.Records = append(result.Records, ProgressRecordDTO{
				LessonID:    l.ID,
				LessonTitle: l.Title,
				Position:    l.Position.String(),
				StarsEarned: rec.StarsEarned,
				Mastered:    rec.Mastered(),
				Notes:       rec.Notes,
				CompletedAt: rec.CompletedAt,
			})
		}
		if result.NextLesson == nil && (!done || !rec.Mastered()) {
			if h.unlocked(catalog, l, byLesson) {
				result.NextLesson = &ProgressRecordDTO{
					LessonID:    l.ID,
					LessonTitle: l.Title,
					Position:    l.Position.String(),
				}
			}
		}
	}

	redemptions, err := h.redemptionRepo.GetByStudent(ctx, query.StudentID)
	if err != nil {
		return nil, shared.WrapError("query", "GetStudentProgress", shared.ErrInternal, "failed to load redemptions", err)
	}
	result.Redemptions = make([]RedemptionDTO, len(redemptions))
	for i, red := range redemptions {
		result.Redemptions[i] = RedemptionDTO{
			ID:        red.ID,
			RewardID:  red.RewardID,
			Quantity:  red.Quantity,
			StarsCost: red.StarsCost,
			Status:    string(red.Status),
			CreatedAt: red.CreatedAt,
		}
	}

	entries, err := h.ledgerRepo.GetByStudent(ctx, query.StudentID, query.LedgerLimit)
	if err != nil {
		return nil, shared.WrapError("query", "GetStudentProgress", shared.ErrInternal, "failed to load ledger", err)
	}
	result.Ledger = make([]LedgerEntryDTO, len(entries))
	for i, e := range entries {
		result.Ledger[i] = LedgerEntryDTO{
			Amount:      e.Amount,
			Kind:        string(e.Kind),
			ReferenceID: e.ReferenceID,
			CreatedAt:   e.CreatedAt,
		}
	}

	return result, nil
}

// unlocked reports whether the lesson's immediate predecessor, if any,
// is mastered by the student.
func (h *GetStudentProgressHandler) unlocked(
	catalog *lesson.Catalog,
	l *lesson.Lesson,
	byLesson map[string]*progress.Record,
) bool {
	pred := catalog.PredecessorOf(l)
	if pred == nil {
		return true
	}
	rec, ok := byLesson[pred.ID]
	return ok && rec.Mastered()
}

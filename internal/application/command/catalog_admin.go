package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/zhuldyz-hub/zhuldyz-hub/internal/application/access"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/lesson"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/reward"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG ADMINISTRATION
// Lessons and rewards are platform-wide, so only admins touch them. These
// are plain inserts and flag flips; the ordering and stock semantics live
// in the domain entities.
// ══════════════════════════════════════════════════════════════════════════════

// CreateLessonCommand adds a lesson to the program catalog.
type CreateLessonCommand struct {
	// Title is the lesson name.
	Title string

	// Level is the program level, starting at 1.
	Level int

	// Order is the position within the level, starting at 1.
	Order int

	// Actor is the authenticated caller; must be an admin.
	Actor access.Actor
}

// Validate validates the command.
func (c CreateLessonCommand) Validate() error {
	if c.Title == "" {
		return errors.New("create_lesson: title is required")
	}
	if !c.Actor.TeacherID.IsValid() {
		return errors.New("create_lesson: actor is required")
	}
	return nil
}

// CreateLessonHandler handles the CreateLessonCommand.
type CreateLessonHandler struct {
	lessonRepo lesson.Repository
}

// NewCreateLessonHandler creates a new CreateLessonHandler.
func NewCreateLessonHandler(lessonRepo lesson.Repository) *CreateLessonHandler {
	return &CreateLessonHandler{lessonRepo: lessonRepo}
}

// Handle executes the lesson creation.
func (h *CreateLessonHandler) Handle(ctx context.Context, cmd CreateLessonCommand) (*lesson.Lesson, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("lesson", "CreateLesson", shared.ErrValidation, "validation failed", err)
	}
	if !cmd.Actor.IsAdmin() {
		return nil, shared.NewDomainError("lesson", "CreateLesson", shared.ErrForbidden,
			"only admins manage the lesson catalog")
	}

	l, err := lesson.NewLesson(lesson.NewLessonParams{
		ID:    uuid.NewString(),
		Title: cmd.Title,
		Level: lesson.Level(cmd.Level),
		Order: lesson.Order(cmd.Order),
	})
	if err != nil {
		return nil, shared.NewDomainError("lesson", "CreateLesson", shared.ErrValidation, err.Error())
	}

	if err := h.lessonRepo.Create(ctx, l); err != nil {
		if errors.Is(err, lesson.ErrDuplicatePosition) {
			return nil, shared.NewDomainError("lesson", "CreateLesson", shared.ErrConflict,
				fmt.Sprintf("position %s is already taken", l.Position))
		}
		return nil, fmt.Errorf("create_lesson: failed to create lesson: %w", err)
	}

	return l, nil
}

// CreateRewardCommand adds a reward to the prize catalog.
type CreateRewardCommand struct {
	// Title is the prize name.
	Title string

	// Cost is the price of one unit in stars.
	Cost int

	// Stock is the available units; -1 means unlimited.
	Stock int

	// Actor is the authenticated caller; must be an admin.
	Actor access.Actor
}

// Validate validates the command.
func (c CreateRewardCommand) Validate() error {
	if c.Title == "" {
		return errors.New("create_reward: title is required")
	}
	if !c.Actor.TeacherID.IsValid() {
		return errors.New("create_reward: actor is required")
	}
	return nil
}

// CreateRewardHandler handles the CreateRewardCommand.
type CreateRewardHandler struct {
	rewardRepo reward.Repository
}

// NewCreateRewardHandler creates a new CreateRewardHandler.
func NewCreateRewardHandler(rewardRepo reward.Repository) *CreateRewardHandler {
	return &CreateRewardHandler{rewardRepo: rewardRepo}
}

// Handle executes the reward creation.
func (h *CreateRewardHandler) Handle(ctx context.Context, cmd CreateRewardCommand) (*reward.Reward, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("reward", "CreateReward", shared.ErrValidation, "validation failed", err)
	}
	if !cmd.Actor.IsAdmin() {
		return nil, shared.NewDomainError("reward", "CreateReward", shared.ErrForbidden,
			"only admins manage the reward catalog")
	}

	rw, err := reward.NewReward(reward.NewRewardParams{
		ID:    uuid.NewString(),
		Title: cmd.Title,
		Cost:  cmd.Cost,
		Stock: cmd.Stock,
	})
	if err != nil {
		return nil, shared.NewDomainError("reward", "CreateReward", shared.ErrValidation, err.Error())
	}

	if err := h.rewardRepo.Create(ctx, rw); err != nil {
		return nil, fmt.Errorf("create_reward: failed to create reward: %w", err)
	}

	return rw, nil
}

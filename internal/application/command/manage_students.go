package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/zhuldyz-hub/zhuldyz-hub/internal/application/access"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/shared"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT MANAGEMENT COMMANDS
// Teachers register and archive their own students. Registration is a
// plain insert; archival keeps the student's history but removes them from
// grading, redemption and the leaderboard.
// ══════════════════════════════════════════════════════════════════════════════

// RegisterStudentCommand contains the data to register a student.
type RegisterStudentCommand struct {
	// DisplayName is the student's visible name.
	DisplayName string

	// TeacherID is the owning teacher. Empty defaults to the actor;
	// only admins may register students for other teachers.
	TeacherID string

	// Actor is the authenticated caller.
	Actor access.Actor
}

// Validate validates the command.
func (c RegisterStudentCommand) Validate() error {
	if c.DisplayName == "" {
		return errors.New("register_student: display_name is required")
	}
	if !c.Actor.TeacherID.IsValid() {
		return errors.New("register_student: actor is required")
	}
	return nil
}

// RegisterStudentResult contains the result of a registration.
type RegisterStudentResult struct {
	// Student is the created student, zero balance, active.
	Student *student.Student
}

// RegisterStudentHandler handles the RegisterStudentCommand.
type RegisterStudentHandler struct {
	studentRepo    student.Repository
	eventPublisher shared.EventPublisher
}

// NewRegisterStudentHandler creates a new RegisterStudentHandler.
func NewRegisterStudentHandler(studentRepo student.Repository, eventPublisher shared.EventPublisher) *RegisterStudentHandler {
	return &RegisterStudentHandler{
		studentRepo:    studentRepo,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the registration.
func (h *RegisterStudentHandler) Handle(ctx context.Context, cmd RegisterStudentCommand) (*RegisterStudentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("student", "RegisterStudent", shared.ErrValidation, "validation failed", err)
	}

	teacherID := student.TeacherID(cmd.TeacherID)
	if teacherID == "" {
		teacherID = cmd.Actor.TeacherID
	}
	if teacherID != cmd.Actor.TeacherID && !cmd.Actor.IsAdmin() {
		return nil, shared.NewDomainError("student", "RegisterStudent", shared.ErrForbidden,
			"cannot register a student for another teacher")
	}

	stud, err := student.NewStudent(student.NewStudentParams{
		ID:          uuid.NewString(),
		TeacherID:   teacherID,
		DisplayName: cmd.DisplayName,
	})
	if err != nil {
		return nil, shared.NewDomainError("student", "RegisterStudent", shared.ErrValidation, err.Error())
	}

	if err := h.studentRepo.Create(ctx, stud); err != nil {
		return nil, fmt.Errorf("register_student: failed to create student: %w", err)
	}

	_ = h.eventPublisher.Publish(shared.NewBaseEventEnvelope(shared.EventStudentRegistered, stud.ID))

	return &RegisterStudentResult{Student: stud}, nil
}

// DeactivateStudentCommand archives a student.
type DeactivateStudentCommand struct {
	// StudentID is the student to archive.
	StudentID string

	// Actor is the authenticated caller.
	Actor access.Actor
}

// Validate validates the command.
func (c DeactivateStudentCommand) Validate() error {
	if c.StudentID == "" {
		return errors.New("deactivate_student: student_id is required")
	}
	if !c.Actor.TeacherID.IsValid() {
		return errors.New("deactivate_student: actor is required")
	}
	return nil
}

// DeactivateStudentHandler handles the DeactivateStudentCommand.
type DeactivateStudentHandler struct {
	studentRepo    student.Repository
	eventPublisher shared.EventPublisher
}

// NewDeactivateStudentHandler creates a new DeactivateStudentHandler.
func NewDeactivateStudentHandler(studentRepo student.Repository, eventPublisher shared.EventPublisher) *DeactivateStudentHandler {
	return &DeactivateStudentHandler{
		studentRepo:    studentRepo,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the archival.
func (h *DeactivateStudentHandler) Handle(ctx context.Context, cmd DeactivateStudentCommand) (*student.Student, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("student", "DeactivateStudent", shared.ErrValidation, "validation failed", err)
	}

	stud, err := h.studentRepo.GetByID(ctx, cmd.StudentID)
	if err != nil {
		if errors.Is(err, student.ErrStudentNotFound) {
			return nil, shared.NewDomainError("student", "DeactivateStudent", shared.ErrNotFound,
				"student not found")
		}
		return nil, fmt.Errorf("deactivate_student: failed to get student: %w", err)
	}

	if err := cmd.Actor.Authorize("DeactivateStudent", stud); err != nil {
		return nil, err
	}

	if err := stud.Deactivate(); err != nil {
		return nil, shared.NewDomainError("student", "DeactivateStudent", shared.ErrConflict,
			"student is already archived")
	}

	if err := h.studentRepo.Update(ctx, stud); err != nil {
		return nil, fmt.Errorf("deactivate_student: failed to update student: %w", err)
	}

	_ = h.eventPublisher.Publish(shared.NewBaseEventEnvelope(shared.EventStudentDeactivated, stud.ID))

	return stud, nil
}

package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/zhuldyz-hub/zhuldyz-hub/internal/application/access"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/progress"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/reward"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/shared"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// REDEMPTION LIFECYCLE COMMANDS
// A redemption is born pending. Handing the prize over marks it delivered;
// cancelling a pending redemption refunds the stars and puts finite stock
// back, in the same transaction. Delivered and cancelled are terminal.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateRedemptionCommand transitions a redemption to a terminal status.
type UpdateRedemptionCommand struct {
	// RedemptionID is the redemption to transition.
	RedemptionID string

	// Status is the target status: delivered or cancelled.
	Status reward.Status

	// Actor is the authenticated caller.
	Actor access.Actor

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c UpdateRedemptionCommand) Validate() error {
	if c.RedemptionID == "" {
		return errors.New("update_redemption: redemption_id is required")
	}
	if c.Status != reward.StatusDelivered && c.Status != reward.StatusCancelled {
		return fmt.Errorf("update_redemption: unsupported target status: %s", c.Status)
	}
	if !c.Actor.TeacherID.IsValid() {
		return errors.New("update_redemption: actor is required")
	}
	return nil
}

// UpdateRedemptionResult contains the result of a status transition.
type UpdateRedemptionResult struct {
	// Redemption is the record after the transition.
	Redemption *reward.Redemption

	// Refunded is the number of stars credited back (cancellations only).
	Refunded int

	// NewBalance is the student's balance after a refund; unchanged for
	// deliveries.
	NewBalance int

	// Events contains domain events generated.
	Events []shared.Event
}

// UpdateRedemptionHandler handles the UpdateRedemptionCommand.
type UpdateRedemptionHandler struct {
	uowFactory     UnitOfWorkFactory
	eventPublisher shared.EventPublisher
}

// NewUpdateRedemptionHandler creates a new UpdateRedemptionHandler.
func NewUpdateRedemptionHandler(uowFactory UnitOfWorkFactory, eventPublisher shared.EventPublisher) *UpdateRedemptionHandler {
	return &UpdateRedemptionHandler{
		uowFactory:     uowFactory,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the status transition.
func (h *UpdateRedemptionHandler) Handle(ctx context.Context, cmd UpdateRedemptionCommand) (*UpdateRedemptionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("reward", "UpdateRedemption", shared.ErrValidation, "validation failed", err)
	}

	uow, err := h.uowFactory.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("update_redemption: failed to begin transaction: %w", err)
	}
	defer uow.Rollback(ctx)

	red, err := uow.Redemptions().GetByID(ctx, cmd.RedemptionID)
	if err != nil {
		if errors.Is(err, reward.ErrRedemptionNotFound) {
			return nil, shared.NewDomainError("reward", "UpdateRedemption", shared.ErrNotFound,
				"redemption not found")
		}
		return nil, fmt.Errorf("update_redemption: failed to get redemption: %w", err)
	}

	stud, err := uow.Students().GetByID(ctx, red.StudentID)
	if err != nil {
		return nil, fmt.Errorf("update_redemption: failed to get student: %w", err)
	}
	if err := cmd.Actor.Authorize("UpdateRedemption", stud); err != nil {
		return nil, err
	}

	result := &UpdateRedemptionResult{
		Redemption: red,
		NewBalance: int(stud.StarBalance),
		Events:     make([]shared.Event, 0, 1),
	}

	switch cmd.Status {
	case reward.StatusDelivered:
		if err := red.MarkDelivered(); err != nil {
			return nil, shared.NewDomainError("reward", "UpdateRedemption", shared.ErrConflict,
				fmt.Sprintf("redemption is %s, cannot deliver", red.Status))
		}

	case reward.StatusCancelled:
		if err := red.MarkCancelled(); err != nil {
			return nil, shared.NewDomainError("reward", "UpdateRedemption", shared.ErrConflict,
				fmt.Sprintf("redemption is %s, cannot cancel", red.Status))
		}

		// Refund and stock restore ride the same transaction as the
		// status flip so a crash cannot leave stars half-refunded.
		tx, err := progress.NewTransaction(uuid.NewString(), red.StudentID,
			red.StarsCost, progress.TxRefund, red.ID)
		if err != nil {
			return nil, fmt.Errorf("update_redemption: %w", err)
		}
		if err := uow.Ledger().Append(ctx, tx); err != nil {
			return nil, fmt.Errorf("update_redemption: failed to append ledger entry: %w", err)
		}

		newBalance, err := uow.Students().ApplyStarDelta(ctx, red.StudentID, student.Stars(red.StarsCost))
		if err != nil {
			return nil, fmt.Errorf("update_redemption: failed to refund stars: %w", err)
		}
		result.Refunded = red.StarsCost
		result.NewBalance = int(newBalance)

		if err := uow.Rewards().RestoreStock(ctx, red.RewardID, red.Quantity); err != nil {
			return nil, fmt.Errorf("update_redemption: failed to restore stock: %w", err)
		}

		cancelled := shared.NewRedemptionCancelledEvent(red.StudentID, red.ID, red.StarsCost, result.NewBalance)
		cancelled.BaseEvent = cancelled.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		result.Events = append(result.Events, cancelled)
	}

	if err := uow.Redemptions().Update(ctx, red); err != nil {
		return nil, fmt.Errorf("update_redemption: failed to update redemption: %w", err)
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, fmt.Errorf("update_redemption: commit failed: %w", err)
	}

	for _, event := range result.Events {
		_ = h.eventPublisher.Publish(event)
	}

	return result, nil
}

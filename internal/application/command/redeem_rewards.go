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
// REDEEM REWARDS COMMAND
// Exchanges a student's stars for prizes, all-or-nothing: every item in the
// batch must be in stock and the total cost must fit the balance, otherwise
// nothing is debited and no stock moves. Stock and balance guards live in
// the storage layer, so two students racing for the last unit cannot both
// win it.
// ══════════════════════════════════════════════════════════════════════════════

// RedemptionItem is one requested prize in a redemption batch.
type RedemptionItem struct {
	// RewardID is the reward to redeem.
	RewardID string

	// Quantity is the number of units, at least 1.
	Quantity int
}

// RedeemRewardsCommand contains the data for a redemption batch.
type RedeemRewardsCommand struct {
	// StudentID is the internal ID of the spending student.
	StudentID string

	// Items is the non-empty batch of requested prizes.
	Items []RedemptionItem

	// IdempotencyKey makes client retries safe: a key that was already
	// committed is rejected with a conflict instead of double-charging.
	// Optional.
	IdempotencyKey string

	// Actor is the authenticated caller.
	Actor access.Actor

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c RedeemRewardsCommand) Validate() error {
	if c.StudentID == "" {
		return errors.New("redeem_rewards: student_id is required")
	}
	if len(c.Items) == 0 {
		return errors.New("redeem_rewards: at least one item is required")
	}
	seen := make(map[string]bool, len(c.Items))
	for i, item := range c.Items {
		if item.RewardID == "" {
			return fmt.Errorf("redeem_rewards: item %d: reward_id is required", i)
		}
		if item.Quantity < 1 {
			return fmt.Errorf("redeem_rewards: item %d: quantity must be at least 1", i)
		}
		if seen[item.RewardID] {
			return fmt.Errorf("redeem_rewards: item %d: duplicate reward %s in batch", i, item.RewardID)
		}
		seen[item.RewardID] = true
	}
	if !c.Actor.TeacherID.IsValid() {
		return errors.New("redeem_rewards: actor is required")
	}
	return nil
}

// RedeemRewardsResult contains the result of a committed redemption batch.
type RedeemRewardsResult struct {
	// Redemptions are the created records, one per item, all pending.
	Redemptions []*reward.Redemption

	// TotalCost is the number of stars debited.
	TotalCost int

	// NewBalance is the student's star balance after the debit.
	NewBalance int

	// Events contains domain events generated.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RedeemRewardsHandler handles the RedeemRewardsCommand.
type RedeemRewardsHandler struct {
	uowFactory     UnitOfWorkFactory
	eventPublisher shared.EventPublisher
}

// NewRedeemRewardsHandler creates a new RedeemRewardsHandler.
func NewRedeemRewardsHandler(uowFactory UnitOfWorkFactory, eventPublisher shared.EventPublisher) *RedeemRewardsHandler {
	return &RedeemRewardsHandler{
		uowFactory:     uowFactory,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the redemption batch in one transaction.
func (h *RedeemRewardsHandler) Handle(ctx context.Context, cmd RedeemRewardsCommand) (*RedeemRewardsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, shared.WrapError("reward", "RedeemRewards", shared.ErrValidation, "validation failed", err)
	}

	uow, err := h.uowFactory.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("redeem_rewards: failed to begin transaction: %w", err)
	}
	defer uow.Rollback(ctx)

	stud, err := uow.Students().GetByID(ctx, cmd.StudentID)
	if err != nil {
		if errors.Is(err, student.ErrStudentNotFound) {
			return nil, shared.NewDomainError("reward", "RedeemRewards", shared.ErrNotFound,
				"student not found")
		}
		return nil, fmt.Errorf("redeem_rewards: failed to get student: %w", err)
	}

	if err := cmd.Actor.Authorize("RedeemRewards", stud); err != nil {
		return nil, err
	}
	if !stud.Active {
		return nil, shared.NewDomainError("reward", "RedeemRewards", shared.ErrValidation,
			"student is archived")
	}

	if cmd.IdempotencyKey != "" {
		if _, err := uow.Redemptions().GetByIdempotencyKey(ctx, cmd.IdempotencyKey); err == nil {
			return nil, shared.NewDomainError("reward", "RedeemRewards", shared.ErrConflict,
				"redemption already processed")
		} else if !errors.Is(err, reward.ErrRedemptionNotFound) {
			return nil, fmt.Errorf("redeem_rewards: failed to check idempotency key: %w", err)
		}
	}

	// Load the full batch up front: a missing or inactive reward fails the
	// whole batch before anything is written.
	ids := make([]string, len(cmd.Items))
	for i, item := range cmd.Items {
		ids[i] = item.RewardID
	}
	rewards, err := uow.Rewards().GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("redeem_rewards: failed to load rewards: %w", err)
	}

	totalCost := 0
	for _, item := range cmd.Items {
		rw, ok := rewards[item.RewardID]
		if !ok {
			return nil, shared.NewDomainError("reward", "RedeemRewards", shared.ErrNotFound,
				fmt.Sprintf("reward %s not found or not active", item.RewardID))
		}
		if !rw.HasStock(item.Quantity) {
			return nil, shared.NewDomainError("reward", "RedeemRewards", shared.ErrConflict,
				fmt.Sprintf("reward %q is out of stock", rw.Title))
		}
		totalCost += rw.Cost * item.Quantity
	}

	if !stud.StarBalance.CanAfford(student.Stars(totalCost)) {
		return nil, shared.NewDomainError("reward", "RedeemRewards", shared.ErrConflict,
			fmt.Sprintf("insufficient balance: need %d stars, have %d", totalCost, stud.StarBalance))
	}

	redemptions := make([]*reward.Redemption, 0, len(cmd.Items))
	redemptionIDs := make([]string, 0, len(cmd.Items))
	for i, item := range cmd.Items {
		rw := rewards[item.RewardID]

		// The storage-level decrement re-checks stock under the row lock;
		// the in-memory check above only produces a friendlier early error.
		if err := uow.Rewards().TakeStock(ctx, item.RewardID, item.Quantity); err != nil {
			if errors.Is(err, reward.ErrOutOfStock) {
				return nil, shared.NewDomainError("reward", "RedeemRewards", shared.ErrConflict,
					fmt.Sprintf("reward %q is out of stock", rw.Title))
			}
			return nil, fmt.Errorf("redeem_rewards: failed to take stock: %w", err)
		}

		// Only the first redemption of a batch carries the key; one key
		// maps to one row and the whole batch commits or rolls back anyway.
		key := ""
		if i == 0 {
			key = cmd.IdempotencyKey
		}

		red, err := reward.NewRedemption(reward.NewRedemptionParams{
			ID:             uuid.NewString(),
			StudentID:      cmd.StudentID,
			RewardID:       item.RewardID,
			TeacherID:      stud.TeacherID.String(),
			Quantity:       item.Quantity,
			UnitCost:       rw.Cost,
			IdempotencyKey: key,
		})
		if err != nil {
			return nil, fmt.Errorf("redeem_rewards: %w", err)
		}

		if err := uow.Redemptions().Create(ctx, red); err != nil {
			if errors.Is(err, reward.ErrDuplicateRedemption) {
				return nil, shared.NewDomainError("reward", "RedeemRewards", shared.ErrConflict,
					"redemption already processed")
			}
			return nil, fmt.Errorf("redeem_rewards: failed to create redemption: %w", err)
		}

		tx, err := progress.NewTransaction(uuid.NewString(), cmd.StudentID,
			-red.StarsCost, progress.TxSpend, red.ID)
		if err != nil {
			return nil, fmt.Errorf("redeem_rewards: %w", err)
		}
		if err := uow.Ledger().Append(ctx, tx); err != nil {
			return nil, fmt.Errorf("redeem_rewards: failed to append ledger entry: %w", err)
		}

		redemptions = append(redemptions, red)
		redemptionIDs = append(redemptionIDs, red.ID)
	}

	newBalance, err := uow.Students().ApplyStarDelta(ctx, cmd.StudentID, student.Stars(-totalCost))
	if err != nil {
		if errors.Is(err, student.ErrInsufficientStars) {
			// Balance moved under us between the read and the debit.
			return nil, shared.NewDomainError("reward", "RedeemRewards", shared.ErrConflict,
				fmt.Sprintf("insufficient balance: need %d stars", totalCost))
		}
		return nil, fmt.Errorf("redeem_rewards: failed to debit balance: %w", err)
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, fmt.Errorf("redeem_rewards: commit failed: %w", err)
	}

	redeemed := shared.NewRewardRedeemedEvent(cmd.StudentID, redemptionIDs, totalCost, int(newBalance))
	redeemed.BaseEvent = redeemed.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	events := []shared.Event{redeemed}
	for _, event := range events {
		_ = h.eventPublisher.Publish(event)
	}

	return &RedeemRewardsResult{
		Redemptions: redemptions,
		TotalCost:   totalCost,
		NewBalance:  int(newBalance),
		Events:      events,
	}, nil
}

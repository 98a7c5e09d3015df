// Package reward contains domain entities and business logic for the reward
// catalog and redemptions: the exchange of earned stars for physical prizes
// against a finite, shared stock.
// This is a pure domain layer with zero external dependencies.
package reward

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// UnlimitedStock marks a reward that never runs out.
const UnlimitedStock = -1

// Domain errors for reward package.
var (
	ErrInvalidTitle        = errors.New("reward: invalid title: must be 1-200 chars")
	ErrInvalidCost         = errors.New("reward: cost must be at least 1 star")
	ErrInvalidStock        = errors.New("reward: stock must be >= 0 or -1 for unlimited")
	ErrInvalidQuantity     = errors.New("reward: quantity must be at least 1")
	ErrOutOfStock          = errors.New("reward: out of stock")
	ErrRewardNotFound      = errors.New("reward: not found")
	ErrRewardNotActive     = errors.New("reward: not active")
	ErrRedemptionNotFound  = errors.New("reward: redemption not found")
	ErrInvalidTransition   = errors.New("reward: invalid redemption status transition")
	ErrDuplicateRedemption = errors.New("reward: redemption already processed")
)

// ══════════════════════════════════════════════════════════════════════════════
// REWARD
// ══════════════════════════════════════════════════════════════════════════════

// Reward is one item in the prize catalog.
type Reward struct {
	// ID is the internal unique identifier (UUID string).
	ID string

	// Title is the display name of the prize.
	Title string

	// Cost is the price of one unit in stars.
	Cost int

	// Stock is the remaining units; UnlimitedStock means no limit.
	// Finite stock is decremented on redemption and never goes negative.
	Stock int

	// Active marks whether the reward can currently be redeemed.
	Active bool

	// CreatedAt is when the reward was added to the catalog.
	CreatedAt time.Time

	// UpdatedAt is when the reward was last modified.
	UpdatedAt time.Time
}

// NewRewardParams contains parameters for creating a reward.
type NewRewardParams struct {
	ID    string
	Title string
	Cost  int
	Stock int
}

// NewReward creates a reward with full validation.
func NewReward(params NewRewardParams) (*Reward, error) {
	if params.ID == "" {
		return nil, errors.New("reward: id is required")
	}

	title := strings.TrimSpace(params.Title)
	if len(title) == 0 || len(title) > 200 {
		return nil, ErrInvalidTitle
	}

	if params.Cost < 1 {
		return nil, ErrInvalidCost
	}

	if params.Stock < UnlimitedStock {
		return nil, ErrInvalidStock
	}

	now := time.Now().UTC()

	return &Reward{
		ID:        params.ID,
		Title:     title,
		Cost:      params.Cost,
		Stock:     params.Stock,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Unlimited reports whether the reward has no stock limit.
func (r *Reward) Unlimited() bool {
	return r.Stock == UnlimitedStock
}

// HasStock reports whether quantity units can currently be taken.
func (r *Reward) HasStock(quantity int) bool {
	if quantity < 1 {
		return false
	}
	return r.Unlimited() || r.Stock >= quantity
}

// TakeStock removes quantity units from a finite stock. Unlimited stock
// is left untouched.
func (r *Reward) TakeStock(quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	if r.Unlimited() {
		return nil
	}
	if r.Stock < quantity {
		return ErrOutOfStock
	}

	r.Stock -= quantity
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// RestoreStock puts quantity units back after a cancellation.
func (r *Reward) RestoreStock(quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	if r.Unlimited() {
		return nil
	}

	r.Stock += quantity
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// Deactivate removes the reward from the redeemable catalog.
// Existing redemptions are kept for audit.
func (r *Reward) Deactivate() {
	r.Active = false
	r.UpdatedAt = time.Now().UTC()
}

// Reactivate returns the reward to the catalog.
func (r *Reward) Reactivate() {
	r.Active = true
	r.UpdatedAt = time.Now().UTC()
}

// String returns a loggable representation of the reward.
func (r *Reward) String() string {
	stock := fmt.Sprintf("%d", r.Stock)
	if r.Unlimited() {
		stock = "unlimited"
	}
	return fmt.Sprintf("Reward{ID: %s, Title: %q, Cost: %d, Stock: %s}", r.ID, r.Title, r.Cost, stock)
}

// Clone returns a deep copy of the reward.
func (r *Reward) Clone() *Reward {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// ══════════════════════════════════════════════════════════════════════════════
// REDEMPTION
// ══════════════════════════════════════════════════════════════════════════════

// Status is the lifecycle state of a redemption.
// A redemption is created once, only ever transitions status, and is never
// deleted - it stays for audit even if the reward is later removed.
type Status string

const (
	// StatusPending - stars are debited, the prize has not been handed over yet.
	StatusPending Status = "pending"

	// StatusDelivered - the prize was handed to the student.
	StatusDelivered Status = "delivered"

	// StatusCancelled - the redemption was cancelled and the stars refunded.
	StatusCancelled Status = "cancelled"
)

// IsValid reports whether the status is one of the known values.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusDelivered, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the transition s -> next is allowed.
// Only pending redemptions may move; delivered and cancelled are terminal.
func (s Status) CanTransitionTo(next Status) bool {
	if s != StatusPending {
		return false
	}
	return next == StatusDelivered || next == StatusCancelled
}

// Redemption is one star-for-prize exchange.
type Redemption struct {
	// ID is the internal unique identifier (UUID string).
	ID string

	// StudentID is the student who spent the stars.
	StudentID string

	// RewardID is the redeemed reward.
	RewardID string

	// TeacherID is the owning teacher at redemption time.
	TeacherID string

	// Quantity is the number of units taken.
	Quantity int

	// StarsCost is cost x quantity frozen at redemption time; later price
	// changes never affect past redemptions.
	StarsCost int

	// Status is the lifecycle state.
	Status Status

	// IdempotencyKey is the client-supplied key that makes retries safe.
	// Empty for redemptions submitted without one.
	IdempotencyKey string

	// CreatedAt is when the redemption was committed.
	CreatedAt time.Time

	// UpdatedAt is when the status last changed.
	UpdatedAt time.Time
}

// NewRedemptionParams contains parameters for creating a redemption.
type NewRedemptionParams struct {
	ID             string
	StudentID      string
	RewardID       string
	TeacherID      string
	Quantity       int
	UnitCost       int
	IdempotencyKey string
}

// NewRedemption creates a pending redemption with full validation.
// StarsCost is derived here so cost accounting cannot drift from the
// quantity that was actually taken.
func NewRedemption(params NewRedemptionParams) (*Redemption, error) {
	if params.ID == "" {
		return nil, errors.New("reward: redemption id is required")
	}
	if strings.TrimSpace(params.StudentID) == "" {
		return nil, errors.New("reward: student id is required")
	}
	if strings.TrimSpace(params.RewardID) == "" {
		return nil, errors.New("reward: reward id is required")
	}
	if strings.TrimSpace(params.TeacherID) == "" {
		return nil, errors.New("reward: teacher id is required")
	}
	if params.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}
	if params.UnitCost < 1 {
		return nil, ErrInvalidCost
	}

	now := time.Now().UTC()

	return &Redemption{
		ID:             params.ID,
		StudentID:      params.StudentID,
		RewardID:       params.RewardID,
		TeacherID:      params.TeacherID,
		Quantity:       params.Quantity,
		StarsCost:      params.UnitCost * params.Quantity,
		Status:         StatusPending,
		IdempotencyKey: params.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// MarkDelivered transitions the redemption to delivered.
func (r *Redemption) MarkDelivered() error {
	if !r.Status.CanTransitionTo(StatusDelivered) {
		return ErrInvalidTransition
	}
	r.Status = StatusDelivered
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkCancelled transitions the redemption to cancelled. The caller is
// responsible for refunding the stars and restoring stock in the same
// unit of work.
func (r *Redemption) MarkCancelled() error {
	if !r.Status.CanTransitionTo(StatusCancelled) {
		return ErrInvalidTransition
	}
	r.Status = StatusCancelled
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// String returns a loggable representation of the redemption.
func (r *Redemption) String() string {
	return fmt.Sprintf("Redemption{ID: %s, Student: %s, Reward: %s, Qty: %d, Cost: %d, Status: %s}",
		r.ID, r.StudentID, r.RewardID, r.Quantity, r.StarsCost, r.Status)
}

// Clone returns a deep copy of the redemption.
func (r *Redemption) Clone() *Redemption {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

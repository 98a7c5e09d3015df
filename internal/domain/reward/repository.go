package reward

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines operations on the reward catalog.
type Repository interface {
	// Create adds a reward to the catalog.
	Create(ctx context.Context, reward *Reward) error

	// GetByID returns a reward by ID.
	// Returns ErrRewardNotFound if absent.
	GetByID(ctx context.Context, id string) (*Reward, error)

	// GetByIDs returns active rewards for the given IDs, keyed by ID.
	// Missing or inactive rewards are simply absent from the map.
	GetByIDs(ctx context.Context, ids []string) (map[string]*Reward, error)

	// Update overwrites a reward.
	Update(ctx context.Context, reward *Reward) error

	// GetActive returns all active rewards.
	GetActive(ctx context.Context) ([]*Reward, error)

	// TakeStock atomically decrements a finite stock by quantity, leaving
	// unlimited stock untouched. Returns ErrOutOfStock when the decrement
	// would push the stock negative - this is the storage-level guard
	// against concurrent redemptions of the last unit.
	TakeStock(ctx context.Context, id string, quantity int) error

	// RestoreStock atomically puts quantity units back on a finite stock.
	RestoreStock(ctx context.Context, id string, quantity int) error
}

// RedemptionRepository defines operations on redemption records.
type RedemptionRepository interface {
	// Create inserts a redemption.
	// Returns ErrDuplicateRedemption when the idempotency key was already used.
	Create(ctx context.Context, redemption *Redemption) error

	// GetByID returns a redemption by ID.
	GetByID(ctx context.Context, id string) (*Redemption, error)

	// GetByIdempotencyKey returns the redemption previously committed under
	// the given key, or ErrRedemptionNotFound.
	GetByIdempotencyKey(ctx context.Context, key string) (*Redemption, error)

	// Update overwrites a redemption (status transitions only).
	Update(ctx context.Context, redemption *Redemption) error

	// GetByStudent returns a student's redemptions, newest first.
	GetByStudent(ctx context.Context, studentID string) ([]*Redemption, error)

	// SumSpentByStudent returns the total stars ever spent by a student,
	// cancelled redemptions excluded.
	SumSpentByStudent(ctx context.Context, studentID string) (int, error)
}

package postgres

import (
	"context"
	"fmt"

	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/reward"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// REWARD REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const rewardColumns = `id, title, cost, stock, active, created_at, updated_at`

// RewardRepository implements reward.Repository for PostgreSQL.
type RewardRepository struct {
	q Querier
}

// NewRewardRepository creates a new RewardRepository.
func NewRewardRepository(q Querier) *RewardRepository {
	return &RewardRepository{q: q}
}

// Create adds a reward to the catalog.
func (r *RewardRepository) Create(ctx context.Context, rw *reward.Reward) error {
	query := `
		INSERT INTO rewards (id, title, cost, stock, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.q.Exec(ctx, query,
		rw.ID,
		rw.Title,
		rw.Cost,
		rw.Stock,
		rw.Active,
		rw.CreatedAt,
		rw.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create reward: %w", err)
	}

	return nil
}

// GetByID returns a reward by ID.
func (r *RewardRepository) GetByID(ctx context.Context, id string) (*reward.Reward, error) {
	query := `SELECT ` + rewardColumns + ` FROM rewards WHERE id = $1`

	return r.scanReward(r.q.QueryRow(ctx, query, id))
}

// GetByIDs returns active rewards for the given IDs, keyed by ID.
// Missing or inactive rewards are simply absent from the map.
func (r *RewardRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*reward.Reward, error) {
	query := `SELECT ` + rewardColumns + ` FROM rewards WHERE active AND id = ANY($1)`

	rows, err := r.q.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query rewards: %w", err)
	}
	defer rows.Close()

	rewards := make(map[string]*reward.Reward, len(ids))
	for rows.Next() {
		rw, err := r.scanReward(rows)
		if err != nil {
			return nil, err
		}
		rewards[rw.ID] = rw
	}

	return rewards, rows.Err()
}

// Update overwrites a reward.
func (r *RewardRepository) Update(ctx context.Context, rw *reward.Reward) error {
	query := `
		UPDATE rewards
		SET title = $2, cost = $3, stock = $4, active = $5, updated_at = $6
		WHERE id = $1
	`

	tag, err := r.q.Exec(ctx, query,
		rw.ID,
		rw.Title,
		rw.Cost,
		rw.Stock,
		rw.Active,
		rw.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update reward: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return reward.ErrRewardNotFound
	}

	return nil
}

// GetActive returns all active rewards, cheapest first.
func (r *RewardRepository) GetActive(ctx context.Context) ([]*reward.Reward, error) {
	query := `SELECT ` + rewardColumns + ` FROM rewards WHERE active ORDER BY cost, title`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query rewards: %w", err)
	}
	defer rows.Close()

	var rewards []*reward.Reward
	for rows.Next() {
		rw, err := r.scanReward(rows)
		if err != nil {
			return nil, err
		}
		rewards = append(rewards, rw)
	}

	return rewards, rows.Err()
}

// TakeStock atomically decrements a finite stock. The WHERE clause matches
// only when enough units remain (or stock is unlimited), so two concurrent
// redemptions of the last unit cannot both succeed.
func (r *RewardRepository) TakeStock(ctx context.Context, id string, quantity int) error {
	query := `
		UPDATE rewards
		SET stock = CASE WHEN stock = -1 THEN stock ELSE stock - $2 END,
		    updated_at = NOW()
		WHERE id = $1 AND active AND (stock = -1 OR stock >= $2)
	`

	tag, err := r.q.Exec(ctx, query, id, quantity)
	if err != nil {
		return fmt.Errorf("failed to take stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return reward.ErrOutOfStock
	}

	return nil
}

// RestoreStock puts quantity units back on a finite stock.
func (r *RewardRepository) RestoreStock(ctx context.Context, id string, quantity int) error {
	query := `
		UPDATE rewards
		SET stock = CASE WHEN stock = -1 THEN stock ELSE stock + $2 END,
		    updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.q.Exec(ctx, query, id, quantity)
	if err != nil {
		return fmt.Errorf("failed to restore stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return reward.ErrRewardNotFound
	}

	return nil
}

func (r *RewardRepository) scanReward(row pgx.Row) (*reward.Reward, error) {
	var rw reward.Reward

	err := row.Scan(
		&rw.ID,
		&rw.Title,
		&rw.Cost,
		&rw.Stock,
		&rw.Active,
		&rw.CreatedAt,
		&rw.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, reward.ErrRewardNotFound
		}
		return nil, fmt.Errorf("failed to scan reward: %w", err)
	}

	return &rw, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REDEMPTION REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const redemptionColumns = `id, student_id, reward_id, teacher_id, quantity, stars_cost, status, idempotency_key, created_at, updated_at`

// RedemptionRepository implements reward.RedemptionRepository for PostgreSQL.
type RedemptionRepository struct {
	q Querier
}

// NewRedemptionRepository creates a new RedemptionRepository.
func NewRedemptionRepository(q Querier) *RedemptionRepository {
	return &RedemptionRepository{q: q}
}

// Create inserts a redemption. The partial unique index on idempotency_key
// rejects a key replay.
func (r *RedemptionRepository) Create(ctx context.Context, red *reward.Redemption) error {
	query := `
		INSERT INTO redemptions (id, student_id, reward_id, teacher_id, quantity, stars_cost, status, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.q.Exec(ctx, query,
		red.ID,
		red.StudentID,
		red.RewardID,
		red.TeacherID,
		red.Quantity,
		red.StarsCost,
		string(red.Status),
		red.IdempotencyKey,
		red.CreatedAt,
		red.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return reward.ErrDuplicateRedemption
		}
		return fmt.Errorf("failed to create redemption: %w", err)
	}

	return nil
}

// GetByID returns a redemption by ID.
func (r *RedemptionRepository) GetByID(ctx context.Context, id string) (*reward.Redemption, error) {
	query := `SELECT ` + redemptionColumns + ` FROM redemptions WHERE id = $1`

	return r.scanRedemption(r.q.QueryRow(ctx, query, id))
}

// GetByIdempotencyKey returns the redemption committed under the given key.
func (r *RedemptionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*reward.Redemption, error) {
	query := `SELECT ` + redemptionColumns + ` FROM redemptions WHERE idempotency_key = $1`

	return r.scanRedemption(r.q.QueryRow(ctx, query, key))
}

// Update overwrites a redemption (status transitions only).
func (r *RedemptionRepository) Update(ctx context.Context, red *reward.Redemption) error {
	query := `
		UPDATE redemptions
		SET status = $2, updated_at = $3
		WHERE id = $1
	`

	tag, err := r.q.Exec(ctx, query, red.ID, string(red.Status), red.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update redemption: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return reward.ErrRedemptionNotFound
	}

	return nil
}

// GetByStudent returns a student's redemptions, newest first.
func (r *RedemptionRepository) GetByStudent(ctx context.Context, studentID string) ([]*reward.Redemption, error) {
	query := `SELECT ` + redemptionColumns + ` FROM redemptions WHERE student_id = $1 ORDER BY created_at DESC`

	rows, err := r.q.Query(ctx, query, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query redemptions: %w", err)
	}
	defer rows.Close()

	var redemptions []*reward.Redemption
	for rows.Next() {
		red, err := r.scanRedemption(rows)
		if err != nil {
			return nil, err
		}
		redemptions = append(redemptions, red)
	}

	return redemptions, rows.Err()
}

// SumSpentByStudent returns the total stars ever spent by a student,
// cancelled redemptions excluded.
func (r *RedemptionRepository) SumSpentByStudent(ctx context.Context, studentID string) (int, error) {
	query := `
		SELECT COALESCE(SUM(stars_cost), 0)
		FROM redemptions
		WHERE student_id = $1 AND status <> 'cancelled'
	`

	var sum int
	if err := r.q.QueryRow(ctx, query, studentID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("failed to sum redemptions: %w", err)
	}

	return sum, nil
}

func (r *RedemptionRepository) scanRedemption(row pgx.Row) (*reward.Redemption, error) {
	var red reward.Redemption
	var status string

	err := row.Scan(
		&red.ID,
		&red.StudentID,
		&red.RewardID,
		&red.TeacherID,
		&red.Quantity,
		&red.StarsCost,
		&status,
		&red.IdempotencyKey,
		&red.CreatedAt,
		&red.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, reward.ErrRedemptionNotFound
		}
		return nil, fmt.Errorf("failed to scan redemption: %w", err)
	}

	red.Status = reward.Status(status)
	return &red, nil
}

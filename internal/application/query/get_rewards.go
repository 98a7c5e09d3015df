package query

import (
	"context"
	"time"

	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/reward"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET REWARDS QUERY
// The redeemable prize catalog, as shown to teachers picking prizes with
// a student.
// ══════════════════════════════════════════════════════════════════════════════

// RewardDTO is one catalog entry.
type RewardDTO struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Cost      int       `json:"cost"`
	Stock     int       `json:"stock"`
	Unlimited bool      `json:"unlimited"`
	CreatedAt time.Time `json:"created_at"`
}

// GetRewardsResult contains the active reward catalog.
type GetRewardsResult struct {
	Rewards []RewardDTO `json:"rewards"`
}

// GetRewardsHandler returns the active reward catalog.
type GetRewardsHandler struct {
	rewardRepo reward.Repository
}

// NewGetRewardsHandler creates a new GetRewardsHandler.
func NewGetRewardsHandler(rewardRepo reward.Repository) *GetRewardsHandler {
	return &GetRewardsHandler{rewardRepo: rewardRepo}
}

// Handle executes the query.
func (h *GetRewardsHandler) Handle(ctx context.Context) (*GetRewardsResult, error) {
	rewards, err := h.rewardRepo.GetActive(ctx)
	if err != nil {
		return nil, shared.WrapError("query", "GetRewards", shared.ErrInternal, "failed to load rewards", err)
	}

	result := &GetRewardsResult{Rewards: make([]RewardDTO, len(rewards))}
	for i, rw := range rewards {
		result.Rewards[i] = RewardDTO{
			ID:        rw.ID,
			Title:     rw.Title,
			Cost:      rw.Cost,
			Stock:     rw.Stock,
			Unlimited: rw.Unlimited(),
			CreatedAt: rw.CreatedAt,
		}
	}

	return result, nil
}

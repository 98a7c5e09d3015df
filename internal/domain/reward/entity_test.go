package reward

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustReward(t *testing.T, stock int) *Reward {
	t.Helper()
	rw, err := NewReward(NewRewardParams{
		ID:    "rw1",
		Title: "Sticker pack",
		Cost:  10,
		Stock: stock,
	})
	require.NoError(t, err)
	return rw
}

func TestNewReward_Validation(t *testing.T) {
	_, err := NewReward(NewRewardParams{ID: "rw1", Title: "", Cost: 10, Stock: 5})
	assert.ErrorIs(t, err, ErrInvalidTitle)

	_, err = NewReward(NewRewardParams{ID: "rw1", Title: "Sticker pack", Cost: 0, Stock: 5})
	assert.ErrorIs(t, err, ErrInvalidCost)

	_, err = NewReward(NewRewardParams{ID: "rw1", Title: "Sticker pack", Cost: 10, Stock: -2})
	assert.ErrorIs(t, err, ErrInvalidStock)

	rw := mustReward(t, 5)
	assert.True(t, rw.Active)
	assert.False(t, rw.Unlimited())
}

func TestReward_Stock(t *testing.T) {
	rw := mustReward(t, 2)

	assert.True(t, rw.HasStock(2))
	assert.False(t, rw.HasStock(3))
	assert.False(t, rw.HasStock(0))

	require.NoError(t, rw.TakeStock(2))
	assert.Equal(t, 0, rw.Stock)
	assert.ErrorIs(t, rw.TakeStock(1), ErrOutOfStock)

	require.NoError(t, rw.RestoreStock(1))
	assert.Equal(t, 1, rw.Stock)
}

func TestReward_UnlimitedStock(t *testing.T) {
	rw := mustReward(t, UnlimitedStock)

	assert.True(t, rw.Unlimited())
	assert.True(t, rw.HasStock(1000))

	// Take and restore are no-ops for an unlimited stock.
	require.NoError(t, rw.TakeStock(1000))
	require.NoError(t, rw.RestoreStock(5))
	assert.Equal(t, UnlimitedStock, rw.Stock)
}

func mustRedemption(t *testing.T) *Redemption {
	t.Helper()
	red, err := NewRedemption(NewRedemptionParams{
		ID:        "red1",
		StudentID: "s1",
		RewardID:  "rw1",
		TeacherID: "t1",
		Quantity:  2,
		UnitCost:  10,
	})
	require.NoError(t, err)
	return red
}

func TestNewRedemption_FreezesCost(t *testing.T) {
	red := mustRedemption(t)

	assert.Equal(t, StatusPending, red.Status)
	assert.Equal(t, 20, red.StarsCost, "cost is unit cost x quantity, frozen at redemption time")
}

func TestRedemption_Lifecycle(t *testing.T) {
	red := mustRedemption(t)
	require.NoError(t, red.MarkDelivered())
	assert.Equal(t, StatusDelivered, red.Status)

	// Delivered is terminal.
	assert.ErrorIs(t, red.MarkCancelled(), ErrInvalidTransition)
	assert.ErrorIs(t, red.MarkDelivered(), ErrInvalidTransition)

	red2 := mustRedemption(t)
	require.NoError(t, red2.MarkCancelled())
	assert.Equal(t, StatusCancelled, red2.Status)
	assert.ErrorIs(t, red2.MarkDelivered(), ErrInvalidTransition)
}

func TestStatus_CanTransitionTo(t *testing.T) {
	assert.True(t, StatusPending.CanTransitionTo(StatusDelivered))
	assert.True(t, StatusPending.CanTransitionTo(StatusCancelled))
	assert.False(t, StatusDelivered.CanTransitionTo(StatusCancelled))
	assert.False(t, StatusCancelled.CanTransitionTo(StatusDelivered))
	assert.False(t, StatusPending.CanTransitionTo(StatusPending))
}

package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/reward"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/shared"
	"github.com/zhuldyz-hub/zhuldyz-hub/internal/domain/student"
)

// redeemOne commits one pending redemption and returns its ID.
func redeemOne(t *testing.T, store *memStore) string {
	t.Helper()
	h, _ := newRedeemHandler(store)
	result, err := h.Handle(context.Background(), RedeemRewardsCommand{
		StudentID: "s1",
		Items:     []RedemptionItem{{RewardID: "rw1", Quantity: 2}},
		Actor:     teacherActor("t1"),
	})
	require.NoError(t, err)
	return result.Redemptions[0].ID
}

func TestUpdateRedemption_Deliver(t *testing.T) {
	store := newMemStore()
	seedStudent(t, store, "s1", "t1")
	seedBalance(t, store, "s1", 50)
	seedReward(t, store, "rw1", 10, 5)
	redID := redeemOne(t, store)

	h := NewUpdateRedemptionHandler(&fakeUowFactory{store: store}, &capturingPublisher{})
	result, err := h.Handle(context.Background(), UpdateRedemptionCommand{
		RedemptionID: redID,
		Status:       reward.StatusDelivered,
		Actor:        teacherActor("t1"),
	})
	require.NoError(t, err)

	assert.Equal(t, reward.StatusDelivered, result.Redemption.Status)
	assert.Zero(t, result.Refunded)
	assert.Equal(t, 30, result.NewBalance, "delivery does not move the balance")
	assert.Equal(t, 3, store.rewards["rw1"].Stock, "delivery does not restore stock")
}

func TestUpdateRedemption_CancelRefundsAndRestocks(t *testing.T) {
	store := newMemStore()
	seedStudent(t, store, "s1", "t1")
	seedBalance(t, store, "s1", 50)
	seedReward(t, store, "rw1", 10, 5)
	redID := redeemOne(t, store)

	pub := &capturingPublisher{}
	h := NewUpdateRedemptionHandler(&fakeUowFactory{store: store}, pub)
	result, err := h.Handle(context.Background(), UpdateRedemptionCommand{
		RedemptionID: redID,
		Status:       reward.StatusCancelled,
		Actor:        teacherActor("t1"),
	})
	require.NoError(t, err)

	assert.Equal(t, reward.StatusCancelled, result.Redemption.Status)
	assert.Equal(t, 20, result.Refunded)
	assert.Equal(t, 50, result.NewBalance)
	assert.Equal(t, student.Stars(50), store.students["s1"].StarBalance)
	assert.Equal(t, 5, store.rewards["rw1"].Stock)

	// spend -20, refund +20
	require.Len(t, store.ledger, 2)
	assert.Equal(t, 20, store.ledger[1].Amount)

	assert.Contains(t, pub.typesSeen(), shared.EventRedemptionCancelled)
}

func TestUpdateRedemption_TerminalStatesReject(t *testing.T) {
	store := newMemStore()
	seedStudent(t, store, "s1", "t1")
	seedBalance(t, store, "s1", 50)
	seedReward(t, store, "rw1", 10, 5)
	redID := redeemOne(t, store)

	h := NewUpdateRedemptionHandler(&fakeUowFactory{store: store}, &capturingPublisher{})
	ctx := context.Background()

	_, err := h.Handle(ctx, UpdateRedemptionCommand{
		RedemptionID: redID, Status: reward.StatusDelivered, Actor: teacherActor("t1"),
	})
	require.NoError(t, err)

	// Delivered is terminal: no cancel, no re-deliver, no late refund.
	_, err = h.Handle(ctx, UpdateRedemptionCommand{
		RedemptionID: redID, Status: reward.StatusCancelled, Actor: teacherActor("t1"),
	})
	assert.True(t, shared.IsConflict(err))
	assert.Equal(t, student.Stars(30), store.students["s1"].StarBalance)

	_, err = h.Handle(ctx, UpdateRedemptionCommand{
		RedemptionID: redID, Status: reward.StatusDelivered, Actor: teacherActor("t1"),
	})
	assert.True(t, shared.IsConflict(err))
}

func TestUpdateRedemption_Validation(t *testing.T) {
	h := NewUpdateRedemptionHandler(&fakeUowFactory{store: newMemStore()}, &capturingPublisher{})

	_, err := h.Handle(context.Background(), UpdateRedemptionCommand{
		RedemptionID: "red1", Status: reward.StatusPending, Actor: teacherActor("t1"),
	})
	assert.True(t, shared.IsValidation(err), "pending is not a valid target status")

	_, err = h.Handle(context.Background(), UpdateRedemptionCommand{
		RedemptionID: "missing", Status: reward.StatusDelivered, Actor: teacherActor("t1"),
	})
	assert.True(t, shared.IsNotFound(err))
}

func TestUpdateRedemption_ForeignTeacherForbidden(t *testing.T) {
	store := newMemStore()
	seedStudent(t, store, "s1", "t1")
	seedBalance(t, store, "s1", 50)
	seedReward(t, store, "rw1", 10, 5)
	redID := redeemOne(t, store)

	h := NewUpdateRedemptionHandler(&fakeUowFactory{store: store}, &capturingPublisher{})
	_, err := h.Handle(context.Background(), UpdateRedemptionCommand{
		RedemptionID: redID, Status: reward.StatusDelivered, Actor: teacherActor("t2"),
	})
	assert.True(t, shared.IsForbidden(err))
}

package order_test

import (
	"testing"
	"time"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var placedAt = time.Date(2026, 5, 4, 18, 30, 0, 0, time.UTC)

func newTestOrder(t *testing.T) *order.Order {
	t.Helper()

	item, err := order.NewItem("Margherita", 2, 1150, []string{"extra basil"})
	require.NoError(t, err)
	payment, err := order.NewPayment(order.PaymentCard, order.PaymentPaid)
	require.NoError(t, err)

	o, err := order.NewOrder(kernel.NewUUID(), 17, "+15550100", payment, []order.Item{item}, placedAt)
	require.NoError(t, err)
	return o
}

func TestNewOrder(t *testing.T) {
	t.Run("should create order in new status", func(t *testing.T) {
		o := newTestOrder(t)

		require.NoError(t, o.Validate())
		assert.Equal(t, order.New, o.Status())
		assert.Equal(t, int64(17), o.Number())
		assert.Equal(t, placedAt, o.CreatedAt())
		assert.Equal(t, placedAt, o.UpdatedAt())
		assert.Nil(t, o.RiderID())
		assert.Equal(t, int64(1), o.Version())
		assert.Equal(t, int64(2300), o.Total())
		assert.Equal(t, order.Milestones{}, o.Milestones())
	})

	t.Run("should join all validation errors", func(t *testing.T) {
		_, err := order.NewOrder(kernel.UUID{}, 0, "", order.Payment{}, nil, time.Time{})

		require.Error(t, err)
		require.ErrorIs(t, err, kernel.ErrUUIDIsNotConstructed)
		require.ErrorIs(t, err, errs.ErrValueIsInvalid)
		require.ErrorIs(t, err, errs.ErrValueIsRequired)
		assert.Contains(t, err.Error(), "items")
		assert.Contains(t, err.Error(), "createdAt")
	})
}

func TestOrder_Validate(t *testing.T) {
	var nilOrder *order.Order
	require.ErrorIs(t, nilOrder.Validate(), order.ErrOrderIsNotConstructed)
	require.ErrorIs(t, (&order.Order{}).Validate(), order.ErrOrderIsNotConstructed)
}

func TestOrder_Apply(t *testing.T) {
	t.Run("should walk the whole forward chain", func(t *testing.T) {
		o := newTestOrder(t)
		rider := kernel.NewUUID()
		at := placedAt

		at = at.Add(time.Minute)
		require.NoError(t, o.Apply(order.TransitionTo(order.Preparing, at)))
		at = at.Add(10 * time.Minute)
		require.NoError(t, o.Apply(order.TransitionTo(order.ReadyForPickup, at)))
		at = at.Add(time.Minute)
		require.NoError(t, o.Apply(order.ClaimBy(rider, at)))
		at = at.Add(20 * time.Minute)
		require.NoError(t, o.Apply(order.TransitionTo(order.Delivered, at)))

		assert.Equal(t, order.Delivered, o.Status())
		assert.True(t, o.IsHeldBy(rider))
		assert.Equal(t, int64(5), o.Version())
		m := o.Milestones()
		require.NotNil(t, m.PreparingAt)
		require.NotNil(t, m.ReadyAt)
		require.NotNil(t, m.AssignedAt)
		require.NotNil(t, m.DeliveredAt)
		assert.Nil(t, m.CancelledAt)
		assert.Equal(t, placedAt.Add(11*time.Minute), *m.ReadyAt)
	})

	t.Run("should refuse to regress or repeat", func(t *testing.T) {
		o := newTestOrder(t)
		require.NoError(t, o.Apply(order.TransitionTo(order.Preparing, placedAt.Add(time.Minute))))

		require.ErrorIs(t, o.Apply(order.TransitionTo(order.Preparing, placedAt.Add(2*time.Minute))), order.ErrStatusRegression)
		require.ErrorIs(t, o.Apply(order.TransitionTo(order.New, placedAt.Add(2*time.Minute))), errs.ErrValueIsInvalid)
		assert.Equal(t, placedAt.Add(time.Minute), *o.Milestones().PreparingAt)
		assert.Equal(t, int64(2), o.Version())
	})

	t.Run("should refuse to leave a terminal status", func(t *testing.T) {
		o := newTestOrder(t)
		require.NoError(t, o.Apply(order.CancelWith("customer left", placedAt.Add(time.Minute))))

		err := o.Apply(order.TransitionTo(order.Preparing, placedAt.Add(2*time.Minute)))
		require.ErrorIs(t, err, order.ErrStatusRegression)
		assert.Equal(t, "customer left", o.CancelReason())
	})

	t.Run("should require a cancel reason", func(t *testing.T) {
		o := newTestOrder(t)
		err := o.Apply(order.CancelWith("  ", placedAt.Add(time.Minute)))
		require.ErrorIs(t, err, errs.ErrValueIsRequired)
		assert.Equal(t, order.New, o.Status())
	})
}

func TestOrder_Matches(t *testing.T) {
	o := newTestOrder(t)
	require.NoError(t, o.Apply(order.TransitionTo(order.Preparing, placedAt.Add(time.Minute))))
	require.NoError(t, o.Apply(order.TransitionTo(order.ReadyForPickup, placedAt.Add(2*time.Minute))))

	rider := kernel.NewUUID()
	assert.True(t, o.Matches(order.Predicate{Status: order.ReadyForPickup, RiderUnassigned: true}))
	assert.False(t, o.Matches(order.Predicate{Status: order.Preparing}))
	assert.False(t, o.Matches(order.Predicate{Status: order.ReadyForPickup, RiderID: &rider}))

	require.NoError(t, o.Apply(order.ClaimBy(rider, placedAt.Add(3*time.Minute))))
	assert.False(t, o.Matches(order.Predicate{Status: order.OutForDelivery, RiderUnassigned: true}))
	assert.True(t, o.Matches(order.Predicate{Status: order.OutForDelivery, RiderID: &rider}))
}

func TestRestoreOrder(t *testing.T) {
	t.Run("should round trip a snapshot", func(t *testing.T) {
		o := newTestOrder(t)
		rider := kernel.NewUUID()
		require.NoError(t, o.Apply(order.TransitionTo(order.Preparing, placedAt.Add(time.Minute))))
		require.NoError(t, o.Apply(order.TransitionTo(order.ReadyForPickup, placedAt.Add(2*time.Minute))))
		require.NoError(t, o.Apply(order.ClaimBy(rider, placedAt.Add(3*time.Minute))))

		restored, err := order.RestoreOrder(o.Snapshot())
		require.NoError(t, err)
		assert.Equal(t, o.Snapshot(), restored.Snapshot())
	})

	t.Run("should reject a claimed status without a rider", func(t *testing.T) {
		snap := newTestOrder(t).Snapshot()
		snap.Status = order.OutForDelivery

		_, err := order.RestoreOrder(snap)
		require.ErrorIs(t, err, errs.ErrValueIsInvalid)
		assert.Contains(t, err.Error(), "must have a rider")
	})

	t.Run("should reject a ready order with a rider", func(t *testing.T) {
		snap := newTestOrder(t).Snapshot()
		rider := kernel.NewUUID()
		snap.Status = order.ReadyForPickup
		snap.RiderID = &rider

		_, err := order.RestoreOrder(snap)
		require.Error(t, err)
	})
}

func TestOrder_Clone(t *testing.T) {
	o := newTestOrder(t)
	cp := o.Clone()

	require.NoError(t, cp.Apply(order.TransitionTo(order.Preparing, placedAt.Add(time.Minute))))
	assert.Equal(t, order.New, o.Status())
	assert.Nil(t, o.Milestones().PreparingAt)
}

func TestNewItem(t *testing.T) {
	_, err := order.NewItem("", 0, -1, nil)
	require.ErrorIs(t, err, errs.ErrValueIsRequired)
	require.ErrorIs(t, err, errs.ErrValueIsOutOfRange)
	require.ErrorIs(t, err, errs.ErrValueIsInvalid)

	item, err := order.NewItem(" Calzone ", 3, 900, nil)
	require.NoError(t, err)
	assert.Equal(t, "Calzone", item.Name())
	assert.Equal(t, int64(2700), item.LineTotal())
}

func TestNewPayment(t *testing.T) {
	_, err := order.NewPayment("crypto", order.PaymentPaid)
	require.ErrorIs(t, err, errs.ErrValueIsInvalid)

	p, err := order.NewPayment(order.PaymentCash, order.PaymentPending)
	require.NoError(t, err)
	assert.Equal(t, order.PaymentCash, p.Method())
}

package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagebook/backend/internal/clock"
	"github.com/stagebook/backend/internal/model"
)

var testNow = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

func newTestEngine(units ...Unit) (*Engine, *fakeStore, *clock.Fixed) {
	store := newFakeStore()
	for _, u := range units {
		store.addUnit(u)
	}
	clk := clock.NewFixed(testNow)
	return NewEngine(store, clk), store, clk
}

func publishedUnit(id uint64, capacity int) Unit {
	return Unit{
		ID:         id,
		ScheduleID: id,
		ManagerID:  100,
		Capacity:   capacity,
		Price:      decimal.NewFromFloat(49.90),
		Published:  true,
	}
}

func TestCreateReservation(t *testing.T) {
	ctx := context.Background()

	t.Run("card reservation is born confirmed", func(t *testing.T) {
		eng, store, _ := newTestEngine(publishedUnit(1, 10))

		r, err := eng.CreateReservation(ctx, 7, 1, model.PaymentCard)
		require.NoError(t, err)
		assert.Equal(t, model.PaymentCompleted, r.PaymentStatus)
		assert.Equal(t, model.ReservationConfirmed, r.ReservationStatus)
		assert.True(t, r.Amount.Equal(decimal.NewFromFloat(49.90)))
		assert.NotEmpty(t, r.QRToken)
		assert.Equal(t, testNow, r.CreatedAt)
		assert.Equal(t, 1, store.unit(1).Reserved)
	})

	t.Run("bank transfer reservation is born pending", func(t *testing.T) {
		eng, _, _ := newTestEngine(publishedUnit(1, 10))

		r, err := eng.CreateReservation(ctx, 7, 1, model.PaymentBankTransfer)
		require.NoError(t, err)
		assert.Equal(t, model.PaymentPending, r.PaymentStatus)
		assert.Equal(t, model.ReservationPending, r.ReservationStatus)
	})

	t.Run("rejects unknown payment method", func(t *testing.T) {
		eng, _, _ := newTestEngine(publishedUnit(1, 10))

		_, err := eng.CreateReservation(ctx, 7, 1, model.PaymentMethod("CASH"))
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("rejects unknown unit", func(t *testing.T) {
		eng, _, _ := newTestEngine(publishedUnit(1, 10))

		_, err := eng.CreateReservation(ctx, 7, 99, model.PaymentCard)
		assert.ErrorIs(t, err, ErrUnitNotFound)
	})

	t.Run("rejects unpublished unit", func(t *testing.T) {
		u := publishedUnit(1, 10)
		u.Published = false
		eng, store, _ := newTestEngine(u)

		_, err := eng.CreateReservation(ctx, 7, 1, model.PaymentCard)
		assert.ErrorIs(t, err, ErrUnitUnpublished)
		assert.Equal(t, 0, store.unit(1).Reserved)
	})

	t.Run("rejects capacity exhausted", func(t *testing.T) {
		eng, store, _ := newTestEngine(publishedUnit(1, 1))

		_, err := eng.CreateReservation(ctx, 7, 1, model.PaymentCard)
		require.NoError(t, err)
		_, err = eng.CreateReservation(ctx, 8, 1, model.PaymentCard)
		assert.ErrorIs(t, err, ErrCapacityExhausted)
		assert.Equal(t, 1, store.unit(1).Reserved)
	})

	t.Run("duplicate admission rolls the slot back", func(t *testing.T) {
		eng, store, _ := newTestEngine(publishedUnit(1, 10))

		_, err := eng.CreateReservation(ctx, 7, 1, model.PaymentBankTransfer)
		require.NoError(t, err)
		_, err = eng.CreateReservation(ctx, 7, 1, model.PaymentCard)
		assert.ErrorIs(t, err, ErrAlreadyReserved)
		// the failed attempt must not leak its increment
		assert.Equal(t, 1, store.unit(1).Reserved)
	})

	t.Run("cancelled reservation does not block re-admission", func(t *testing.T) {
		eng, _, _ := newTestEngine(publishedUnit(1, 10))
		manager := Actor{ID: 100, Role: "MANAGER"}

		r, err := eng.CreateReservation(ctx, 7, 1, model.PaymentCard)
		require.NoError(t, err)
		_, err = eng.Cancel(ctx, manager, r.ID)
		require.NoError(t, err)

		_, err = eng.CreateReservation(ctx, 7, 1, model.PaymentCard)
		assert.NoError(t, err)
	})
}

func TestCreateReservation_NoOverbooking(t *testing.T) {
	const capacity = 5
	const attempts = 40
	ctx := context.Background()
	eng, store, _ := newTestEngine(publishedUnit(1, capacity))

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = eng.CreateReservation(ctx, uint64(i+1), 1, model.PaymentCard)
		}(i)
	}
	wg.Wait()

	admitted := 0
	for _, err := range errs {
		switch {
		case err == nil:
			admitted++
		default:
			assert.ErrorIs(t, err, ErrCapacityExhausted)
		}
	}
	assert.Equal(t, capacity, admitted)
	assert.Equal(t, capacity, store.unit(1).Reserved)
}

func TestConfirmPayment(t *testing.T) {
	ctx := context.Background()
	manager := Actor{ID: 100, Role: "MANAGER"}
	admin := Actor{ID: 999, Role: "ADMIN"}
	stranger := Actor{ID: 55, Role: "MANAGER"}

	t.Run("manager confirms a pending transfer", func(t *testing.T) {
		eng, store, _ := newTestEngine(publishedUnit(1, 10))
		r, err := eng.CreateReservation(ctx, 7, 1, model.PaymentBankTransfer)
		require.NoError(t, err)

		got, err := eng.ConfirmPayment(ctx, manager, r.ID)
		require.NoError(t, err)
		assert.Equal(t, model.PaymentCompleted, got.PaymentStatus)
		assert.Equal(t, model.ReservationConfirmed, got.ReservationStatus)
		assert.Equal(t, model.ReservationConfirmed, store.reservation(r.ID).ReservationStatus)
	})

	t.Run("admin may confirm any reservation", func(t *testing.T) {
		eng, _, _ := newTestEngine(publishedUnit(1, 10))
		r, err := eng.CreateReservation(ctx, 7, 1, model.PaymentBankTransfer)
		require.NoError(t, err)

		_, err = eng.ConfirmPayment(ctx, admin, r.ID)
		assert.NoError(t, err)
	})

	t.Run("foreign manager is forbidden", func(t *testing.T) {
		eng, store, _ := newTestEngine(publishedUnit(1, 10))
		r, err := eng.CreateReservation(ctx, 7, 1, model.PaymentBankTransfer)
		require.NoError(t, err)

		_, err = eng.ConfirmPayment(ctx, stranger, r.ID)
		assert.ErrorIs(t, err, ErrForbidden)
		assert.Equal(t, model.ReservationPending, store.reservation(r.ID).ReservationStatus)
	})

	t.Run("confirming an already confirmed reservation fails", func(t *testing.T) {
		eng, _, _ := newTestEngine(publishedUnit(1, 10))
		r, err := eng.CreateReservation(ctx, 7, 1, model.PaymentCard)
		require.NoError(t, err)

		_, err = eng.ConfirmPayment(ctx, manager, r.ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("unknown reservation", func(t *testing.T) {
		eng, _, _ := newTestEngine(publishedUnit(1, 10))
		_, err := eng.ConfirmPayment(ctx, manager, 42)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCancel(t *testing.T) {
	ctx := context.Background()
	manager := Actor{ID: 100, Role: "MANAGER"}

	t.Run("cancelling releases the slot exactly once", func(t *testing.T) {
		eng, store, _ := newTestEngine(publishedUnit(1, 10))
		r, err := eng.CreateReservation(ctx, 7, 1, model.PaymentCard)
		require.NoError(t, err)
		require.Equal(t, 1, store.unit(1).Reserved)

		got, err := eng.Cancel(ctx, manager, r.ID)
		require.NoError(t, err)
		assert.Equal(t, model.ReservationCancelled, got.ReservationStatus)
		assert.Equal(t, model.PaymentCancelled, got.PaymentStatus)
		assert.Equal(t, 0, store.unit(1).Reserved)

		// repeated cancellation is rejected and must not release again
		_, err = eng.Cancel(ctx, manager, r.ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, 0, store.unit(1).Reserved)
	})

	t.Run("pending reservations can be cancelled", func(t *testing.T) {
		eng, store, _ := newTestEngine(publishedUnit(1, 10))
		r, err := eng.CreateReservation(ctx, 7, 1, model.PaymentBankTransfer)
		require.NoError(t, err)

		_, err = eng.Cancel(ctx, manager, r.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, store.unit(1).Reserved)
	})

	t.Run("used reservations are terminal", func(t *testing.T) {
		eng, store, _ := newTestEngine(publishedUnit(1, 10))
		r, err := eng.CreateReservation(ctx, 7, 1, model.PaymentCard)
		require.NoError(t, err)
		_, err = eng.CheckIn(ctx, manager, Selector{ID: r.ID})
		require.NoError(t, err)

		_, err = eng.Cancel(ctx, manager, r.ID)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Equal(t, 1, store.unit(1).Reserved)
	})
}

func TestCheckIn(t *testing.T) {
	ctx := context.Background()
	manager := Actor{ID: 100, Role: "MANAGER"}

	t.Run("first scan admits, second returns already used", func(t *testing.T) {
		eng, store, _ := newTestEngine(publishedUnit(1, 10))
		r, err := eng.CreateReservation(ctx, 7, 1, model.PaymentCard)
		require.NoError(t, err)

		got, err := eng.CheckIn(ctx, manager, Selector{ID: r.ID})
		require.NoError(t, err)
		assert.True(t, got.Entered)
		require.NotNil(t, got.EnteredAt)
		assert.Equal(t, testNow, *got.EnteredAt)
		assert.Equal(t, model.ReservationUsed, got.ReservationStatus)

		_, err = eng.CheckIn(ctx, manager, Selector{ID: r.ID})
		assert.ErrorIs(t, err, ErrAlreadyUsed)

		stored := store.reservation(r.ID)
		assert.Equal(t, model.ReservationUsed, stored.ReservationStatus)
		assert.Equal(t, testNow, *stored.EnteredAt)
	})

	t.Run("resolves by qr token", func(t *testing.T) {
		eng, _, _ := newTestEngine(publishedUnit(1, 10))
		r, err := eng.CreateReservation(ctx, 7, 1, model.PaymentCard)
		require.NoError(t, err)

		got, err := eng.CheckIn(ctx, manager, Selector{QRToken: r.QRToken})
		require.NoError(t, err)
		assert.Equal(t, r.ID, got.ID)
	})

	t.Run("unknown qr token", func(t *testing.T) {
		eng, _, _ := newTestEngine(publishedUnit(1, 10))
		_, err := eng.CheckIn(ctx, manager, Selector{QRToken: "nope"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("pending reservation cannot enter", func(t *testing.T) {
		eng, _, _ := newTestEngine(publishedUnit(1, 10))
		r, err := eng.CreateReservation(ctx, 7, 1, model.PaymentBankTransfer)
		require.NoError(t, err)

		_, err = eng.CheckIn(ctx, manager, Selector{ID: r.ID})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("cancelled reservation cannot enter", func(t *testing.T) {
		eng, _, _ := newTestEngine(publishedUnit(1, 10))
		r, err := eng.CreateReservation(ctx, 7, 1, model.PaymentCard)
		require.NoError(t, err)
		_, err = eng.Cancel(ctx, manager, r.ID)
		require.NoError(t, err)

		_, err = eng.CheckIn(ctx, manager, Selector{ID: r.ID})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("plain user cannot run the door", func(t *testing.T) {
		eng, _, _ := newTestEngine(publishedUnit(1, 10))
		r, err := eng.CreateReservation(ctx, 7, 1, model.PaymentCard)
		require.NoError(t, err)

		_, err = eng.CheckIn(ctx, Actor{ID: 7, Role: "USER"}, Selector{ID: r.ID})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("concurrent scans admit exactly once", func(t *testing.T) {
		eng, _, _ := newTestEngine(publishedUnit(1, 10))
		r, err := eng.CreateReservation(ctx, 7, 1, model.PaymentCard)
		require.NoError(t, err)

		const scans = 8
		var wg sync.WaitGroup
		errs := make([]error, scans)
		for i := 0; i < scans; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = eng.CheckIn(ctx, manager, Selector{ID: r.ID})
			}(i)
		}
		wg.Wait()

		admitted := 0
		for _, err := range errs {
			if err == nil {
				admitted++
			} else {
				assert.ErrorIs(t, err, ErrAlreadyUsed)
			}
		}
		assert.Equal(t, 1, admitted)
	})
}

func TestCheckIn_SlotScopedUnit(t *testing.T) {
	ctx := context.Background()
	slotID := uint64(20)
	eng, store, _ := newTestEngine(Unit{
		ID:         slotID,
		ScheduleID: 3,
		SlotID:     &slotID,
		ManagerID:  100,
		Capacity:   2,
		Price:      decimal.NewFromInt(15),
		Published:  true,
	})

	r, err := eng.CreateReservation(ctx, 7, slotID, model.PaymentCard)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), r.ScheduleID)
	require.NotNil(t, r.TimeSlotID)
	assert.Equal(t, slotID, *r.TimeSlotID)
	assert.Equal(t, 1, store.unit(slotID).Reserved)

	_, err = eng.CheckIn(ctx, Actor{ID: 100, Role: "MANAGER"}, Selector{ID: r.ID})
	assert.NoError(t, err)
}

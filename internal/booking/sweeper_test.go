package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagebook/backend/internal/clock"
	"github.com/stagebook/backend/internal/model"
)

const (
	sweepGrace    = 72 * time.Hour
	sweepInterval = time.Hour
)

func newTestSweeper(units ...Unit) (*Sweeper, *Engine, *fakeStore, *clock.Fixed) {
	eng, store, clk := newTestEngine(units...)
	sw := NewSweeper(eng, store, clk, sweepGrace, sweepInterval)
	return sw, eng, store, clk
}

func TestSweeper_RunOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("leaves reservations inside the grace window alone", func(t *testing.T) {
		sw, eng, store, clk := newTestSweeper(publishedUnit(1, 10))
		r, err := eng.CreateReservation(ctx, 7, 1, model.PaymentBankTransfer)
		require.NoError(t, err)

		clk.Advance(71 * time.Hour)
		sum, err := sw.RunOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, sum.Checked)
		assert.Equal(t, model.ReservationPending, store.reservation(r.ID).ReservationStatus)
		assert.Equal(t, 1, store.unit(1).Reserved)
	})

	t.Run("cancels stale unpaid reservations and releases capacity", func(t *testing.T) {
		sw, eng, store, clk := newTestSweeper(publishedUnit(1, 10))
		r, err := eng.CreateReservation(ctx, 7, 1, model.PaymentBankTransfer)
		require.NoError(t, err)

		var notified []uint64
		sw.OnExpired = func(ctx context.Context, r *model.Reservation) {
			notified = append(notified, r.ID)
		}

		clk.Advance(73 * time.Hour)
		sum, err := sw.RunOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, SweepSummary{Checked: 1, Cancelled: 1}, sum)

		stored := store.reservation(r.ID)
		assert.Equal(t, model.ReservationCancelled, stored.ReservationStatus)
		assert.Equal(t, model.PaymentCancelled, stored.PaymentStatus)
		assert.Equal(t, 0, store.unit(1).Reserved)
		assert.Equal(t, []uint64{r.ID}, notified)
	})

	t.Run("never touches card reservations", func(t *testing.T) {
		sw, eng, store, clk := newTestSweeper(publishedUnit(1, 10))
		r, err := eng.CreateReservation(ctx, 7, 1, model.PaymentCard)
		require.NoError(t, err)

		clk.Advance(100 * time.Hour)
		sum, err := sw.RunOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, sum.Checked)
		assert.Equal(t, model.ReservationConfirmed, store.reservation(r.ID).ReservationStatus)
	})

	t.Run("cancellation no-ops on a reservation confirmed meanwhile", func(t *testing.T) {
		// A manager confirming between the scan and the cancellation is
		// the classic race; the conditional update simply matches nothing.
		_, eng, store, clk := newTestSweeper(publishedUnit(1, 10))
		r, err := eng.CreateReservation(ctx, 7, 1, model.PaymentBankTransfer)
		require.NoError(t, err)

		clk.Advance(73 * time.Hour)
		_, err = eng.ConfirmPayment(ctx, Actor{ID: 100, Role: "MANAGER"}, r.ID)
		require.NoError(t, err)

		_, cancelled, err := eng.ExpireOne(ctx, r.ID)
		require.NoError(t, err)
		assert.False(t, cancelled)
		assert.Equal(t, model.ReservationConfirmed, store.reservation(r.ID).ReservationStatus)
		// the confirmed reservation keeps its slot
		assert.Equal(t, 1, store.unit(1).Reserved)
	})

	t.Run("one failing reservation does not abort the batch", func(t *testing.T) {
		sw, eng, store, clk := newTestSweeper(publishedUnit(1, 10))
		r1, err := eng.CreateReservation(ctx, 7, 1, model.PaymentBankTransfer)
		require.NoError(t, err)
		r2, err := eng.CreateReservation(ctx, 8, 1, model.PaymentBankTransfer)
		require.NoError(t, err)

		store.failGet[r1.ID] = errors.New("row gone sideways")

		clk.Advance(73 * time.Hour)
		sum, err := sw.RunOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, sum.Checked)
		assert.Equal(t, 1, sum.Failed)
		assert.Equal(t, 1, sum.Cancelled)
		assert.Equal(t, model.ReservationCancelled, store.reservation(r2.ID).ReservationStatus)
	})

	t.Run("a failed scan aborts the cycle", func(t *testing.T) {
		sw, _, store, clk := newTestSweeper(publishedUnit(1, 10))
		store.failList = errors.New("db down")

		clk.Advance(73 * time.Hour)
		_, err := sw.RunOnce(ctx)
		assert.Error(t, err)
	})
}

package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stagebook/backend/internal/clock"
	"github.com/stagebook/backend/internal/model"
)

// Unit is the engine's view of a bookable unit: a schedule, or a time
// slot when the deployment tracks capacity per slot.  The store
// resolves the granularity; the engine never inspects it.
type Unit struct {
	ID        uint64          // unit identifier (schedule or slot id)
	ScheduleID uint64         // owning schedule (equals ID at schedule scope)
	SlotID    *uint64         // slot id when capacity is per slot
	ManagerID uint64          // user who manages the schedule
	Capacity  int             // total admittable reservations
	Reserved  int             // active reservations admitted so far
	Price     decimal.Decimal // current price, captured at admission
	Published bool            // whether the unit accepts reservations
}

// Actor identifies the authenticated caller of a lifecycle operation.
type Actor struct {
	ID   uint64
	Role string
}

// CanManage is the single authorization policy for lifecycle
// operations and manager listings: the unit's manager or an
// administrator.  The requester who created the reservation
// deliberately has no access through this path.
func (a Actor) CanManage(managerID uint64) bool {
	return a.Role == "ADMIN" || a.ID == managerID
}

// Selector resolves a reservation for check-in, either by primary key
// or by the QR token printed on the ticket.
type Selector struct {
	ID      uint64
	QRToken string
}

// Store is the persistence contract the engine runs on.  Within
// WithTx every method operates on the same transaction; the
// conditional mutations return false, nil when their guard matched
// no row, which is how the engine detects lost races without ever
// doing an unguarded read-then-write.
type Store interface {
	// WithTx runs fn inside a transaction.  An error from fn rolls
	// everything back, including any slot already reserved.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	// GetUnit loads a bookable unit.  Returns ErrUnitNotFound.
	GetUnit(ctx context.Context, unitID uint64) (Unit, error)

	// GetUnitForReservation loads the unit a reservation was admitted
	// against.
	GetUnitForReservation(ctx context.Context, r *model.Reservation) (Unit, error)

	// ReserveSlot increments the unit's active count only while it is
	// below capacity, reporting whether a slot was taken.  The update
	// locks the unit row, serialising concurrent admissions.
	ReserveSlot(ctx context.Context, unitID uint64) (bool, error)

	// ReleaseSlot gives one slot back after a cancellation.
	ReleaseSlot(ctx context.Context, r *model.Reservation) error

	// InsertReservationGuarded inserts r unless the user already has
	// an active reservation on the same unit, reporting whether the
	// row was written.
	InsertReservationGuarded(ctx context.Context, r *model.Reservation) (bool, error)

	GetReservation(ctx context.Context, id uint64) (*model.Reservation, error)
	GetReservationByQR(ctx context.Context, token string) (*model.Reservation, error)

	// ConfirmPending moves (PENDING, PENDING) to (COMPLETED, CONFIRMED).
	ConfirmPending(ctx context.Context, id uint64) (bool, error)

	// CancelActive moves a PENDING or CONFIRMED reservation to
	// (CANCELLED, CANCELLED).  Terminal rows are left untouched.
	CancelActive(ctx context.Context, id uint64) (bool, error)

	// CancelPendingUnpaid is the sweep variant of CancelActive: it
	// only matches (PENDING, PENDING), so a reservation confirmed in
	// the meantime is naturally skipped.
	CancelPendingUnpaid(ctx context.Context, id uint64) (bool, error)

	// MarkEntered sets entered and advances a CONFIRMED reservation to
	// USED, only while entered is still false.
	MarkEntered(ctx context.Context, id uint64, at time.Time) (bool, error)

	// ListExpiredPendingIDs returns ids of (PENDING, PENDING)
	// reservations created before the cutoff.
	ListExpiredPendingIDs(ctx context.Context, cutoff time.Time) ([]uint64, error)
}

// Engine drives reservation admission and every later status change.
// All mutations run as a single guarded transaction against the
// store; the engine holds no state of its own.
type Engine struct {
	store Store
	clock clock.Clock
}

// NewEngine wires the engine to its store and clock.
func NewEngine(store Store, clk clock.Clock) *Engine {
	return &Engine{store: store, clock: clk}
}

// CreateReservation admits a user onto a bookable unit.  The capacity
// check-and-increment and the duplicate guard both run inside one
// transaction; a failed duplicate guard rolls the slot increment back,
// leaving no partial state.  The reservation's amount is the unit's
// price at this moment and never changes afterwards.
func (e *Engine) CreateReservation(ctx context.Context, requesterID, unitID uint64, method model.PaymentMethod) (*model.Reservation, error) {
	if method != model.PaymentCard && method != model.PaymentBankTransfer {
		return nil, ErrInvalidTransition
	}
	var res *model.Reservation
	err := e.store.WithTx(ctx, func(txCtx context.Context) error {
		unit, err := e.store.GetUnit(txCtx, unitID)
		if err != nil {
			return err
		}
		if !unit.Published {
			return ErrUnitUnpublished
		}
		admitted, err := e.store.ReserveSlot(txCtx, unit.ID)
		if err != nil {
			return err
		}
		if !admitted {
			return ErrCapacityExhausted
		}
		pay, status := model.InitialState(method)
		now := e.clock.Now()
		r := &model.Reservation{
			UserID:            requesterID,
			ScheduleID:        unit.ScheduleID,
			TimeSlotID:        unit.SlotID,
			PaymentMethod:     method,
			PaymentStatus:     pay,
			ReservationStatus: status,
			Amount:            unit.Price,
			QRToken:           uuid.NewString(),
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		inserted, err := e.store.InsertReservationGuarded(txCtx, r)
		if err != nil {
			return err
		}
		if !inserted {
			return ErrAlreadyReserved
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ConfirmPayment records a verified bank transfer.  Only the unit's
// manager or an admin may call it, and only a (PENDING, PENDING)
// reservation can be confirmed; anything else is InvalidTransition.
func (e *Engine) ConfirmPayment(ctx context.Context, actor Actor, id uint64) (*model.Reservation, error) {
	var res *model.Reservation
	err := e.store.WithTx(ctx, func(txCtx context.Context) error {
		r, _, err := e.loadManaged(txCtx, actor, id)
		if err != nil {
			return err
		}
		ok, err := e.store.ConfirmPending(txCtx, r.ID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition
		}
		r.PaymentStatus = model.PaymentCompleted
		r.ReservationStatus = model.ReservationConfirmed
		r.UpdatedAt = e.clock.Now()
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Cancel voids a PENDING or CONFIRMED reservation on behalf of the
// unit's manager or an admin and releases its capacity slot.  The
// release is guarded by the conditional status update, so cancelling
// twice only ever gives the slot back once.
func (e *Engine) Cancel(ctx context.Context, actor Actor, id uint64) (*model.Reservation, error) {
	var res *model.Reservation
	err := e.store.WithTx(ctx, func(txCtx context.Context) error {
		r, _, err := e.loadManaged(txCtx, actor, id)
		if err != nil {
			return err
		}
		ok, err := e.store.CancelActive(txCtx, r.ID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidTransition
		}
		if err := e.store.ReleaseSlot(txCtx, r); err != nil {
			return err
		}
		r.PaymentStatus = model.PaymentCancelled
		r.ReservationStatus = model.ReservationCancelled
		r.UpdatedAt = e.clock.Now()
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// CheckIn marks a reservation as used for entry, exactly once.  The
// selector may carry either the reservation id or its QR token; both
// paths share the same authorization and idempotency rules.  A second
// scan returns ErrAlreadyUsed and changes nothing.
func (e *Engine) CheckIn(ctx context.Context, actor Actor, sel Selector) (*model.Reservation, error) {
	var res *model.Reservation
	err := e.store.WithTx(ctx, func(txCtx context.Context) error {
		var r *model.Reservation
		var err error
		if sel.QRToken != "" {
			r, err = e.store.GetReservationByQR(txCtx, sel.QRToken)
		} else {
			r, err = e.store.GetReservation(txCtx, sel.ID)
		}
		if err != nil {
			return err
		}
		unit, err := e.store.GetUnitForReservation(txCtx, r)
		if err != nil {
			return err
		}
		if !actor.CanManage(unit.ManagerID) {
			return ErrForbidden
		}
		if r.Entered {
			return ErrAlreadyUsed
		}
		now := e.clock.Now()
		ok, err := e.store.MarkEntered(txCtx, r.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			// The guard matched nothing: either a concurrent scan won
			// the race or the reservation was never CONFIRMED.
			if r.ReservationStatus == model.ReservationConfirmed {
				return ErrAlreadyUsed
			}
			return ErrInvalidTransition
		}
		r.Entered = true
		r.EnteredAt = &now
		r.ReservationStatus = model.ReservationUsed
		r.UpdatedAt = now
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ExpireOne is the sweeper's cancellation path for a single stale
// reservation.  It reports false when the conditional update matched
// nothing, which happens whenever a manual confirmation won the race.
func (e *Engine) ExpireOne(ctx context.Context, id uint64) (*model.Reservation, bool, error) {
	var (
		res       *model.Reservation
		cancelled bool
	)
	err := e.store.WithTx(ctx, func(txCtx context.Context) error {
		r, err := e.store.GetReservation(txCtx, id)
		if err != nil {
			return err
		}
		ok, err := e.store.CancelPendingUnpaid(txCtx, r.ID)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := e.store.ReleaseSlot(txCtx, r); err != nil {
			return err
		}
		r.PaymentStatus = model.PaymentCancelled
		r.ReservationStatus = model.ReservationCancelled
		res = r
		cancelled = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return res, cancelled, nil
}

// loadManaged resolves a reservation and enforces the owner-or-admin
// policy shared by payment confirmation, cancellation and check-in.
func (e *Engine) loadManaged(ctx context.Context, actor Actor, id uint64) (*model.Reservation, Unit, error) {
	r, err := e.store.GetReservation(ctx, id)
	if err != nil {
		return nil, Unit{}, err
	}
	unit, err := e.store.GetUnitForReservation(ctx, r)
	if err != nil {
		return nil, Unit{}, err
	}
	if !actor.CanManage(unit.ManagerID) {
		return nil, Unit{}, ErrForbidden
	}
	return r, unit, nil
}

package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/stagebook/backend/internal/booking"
	"github.com/stagebook/backend/internal/model"
)

// CapacityScope selects the bookable unit the ledger counts against.
// It is fixed at deployment time via CAPACITY_SCOPE.
type CapacityScope string

const (
	// ScopeSchedule tracks one capacity counter per schedule.
	ScopeSchedule CapacityScope = "schedule"
	// ScopeSlot tracks a counter per time slot within a schedule.
	ScopeSlot CapacityScope = "slot"
)

// Store is the MySQL implementation of booking.Store.  A single Store
// serves either schedule-level or slot-level capacity depending on
// the configured scope.
type Store struct {
	db    *sql.DB
	scope CapacityScope
}

// NewStore binds a Store to the database with the given capacity scope.
func NewStore(db *sql.DB, scope CapacityScope) *Store {
	if scope != ScopeSchedule && scope != ScopeSlot {
		panic(fmt.Sprintf("unknown capacity scope %q", scope))
	}
	return &Store{db: db, scope: scope}
}

// DB exposes the underlying handle for callers that manage their own
// transactions (auth, listings).
func (s *Store) DB() *sql.DB { return s.db }

type txKey struct{}

// WithTx runs fn inside a transaction carried through the context.
// Nested calls reuse the outer transaction.  Any error from fn rolls
// the whole transaction back, which is what makes a failed duplicate
// guard undo the slot increment taken moments earlier.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func txFromContext(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// conn returns the transaction from the context when present,
// otherwise the plain database handle.
func (s *Store) conn(ctx context.Context) execer {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return s.db
}

// unitTable is the table the capacity counter lives in.
func (s *Store) unitTable() string {
	if s.scope == ScopeSlot {
		return "time_slots"
	}
	return "schedules"
}

// unitColumn is the reservations column identifying the bookable unit.
func (s *Store) unitColumn() string {
	if s.scope == ScopeSlot {
		return "time_slot_id"
	}
	return "schedule_id"
}

// unitID extracts the bookable unit id a reservation was admitted
// against, honouring the configured scope.
func (s *Store) unitID(r *model.Reservation) uint64 {
	if s.scope == ScopeSlot && r.TimeSlotID != nil {
		return *r.TimeSlotID
	}
	return r.ScheduleID
}

// GetUnit loads the bookable unit snapshot used by admission: the
// capacity counter pair plus the price and publication flag captured
// from the owning schedule.
func (s *Store) GetUnit(ctx context.Context, unitID uint64) (booking.Unit, error) {
	var u booking.Unit
	var err error
	if s.scope == ScopeSlot {
		const q = `SELECT ts.id, ts.schedule_id, s.manager_id, ts.capacity, ts.reserved_count, s.price, s.is_published
		           FROM time_slots ts
		           JOIN schedules s ON s.id = ts.schedule_id
		           WHERE ts.id = ?`
		var slotID uint64
		err = s.conn(ctx).QueryRowContext(ctx, q, unitID).Scan(
			&slotID, &u.ScheduleID, &u.ManagerID, &u.Capacity, &u.Reserved, &u.Price, &u.Published,
		)
		u.ID = slotID
		u.SlotID = &slotID
	} else {
		const q = `SELECT id, id, manager_id, capacity, reserved_count, price, is_published
		           FROM schedules WHERE id = ?`
		err = s.conn(ctx).QueryRowContext(ctx, q, unitID).Scan(
			&u.ID, &u.ScheduleID, &u.ManagerID, &u.Capacity, &u.Reserved, &u.Price, &u.Published,
		)
	}
	if err != nil {
		if err == sql.ErrNoRows {
			return booking.Unit{}, booking.ErrUnitNotFound
		}
		return booking.Unit{}, err
	}
	return u, nil
}

// GetUnitForReservation resolves the unit a reservation counts against.
func (s *Store) GetUnitForReservation(ctx context.Context, r *model.Reservation) (booking.Unit, error) {
	return s.GetUnit(ctx, s.unitID(r))
}

// ReserveSlot takes one capacity slot with a conditional increment.
// The WHERE clause is the overbooking guard: the update only matches
// while the active count is below capacity, and the row lock it takes
// serialises every concurrent admission on the same unit.
func (s *Store) ReserveSlot(ctx context.Context, unitID uint64) (bool, error) {
	q := fmt.Sprintf(
		`UPDATE %s SET reserved_count = reserved_count + 1 WHERE id = ? AND reserved_count < capacity`,
		s.unitTable(),
	)
	res, err := s.conn(ctx).ExecContext(ctx, q, unitID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ReleaseSlot returns one capacity slot after a cancellation.  The
// floor guard keeps a miscounted unit from going negative.
func (s *Store) ReleaseSlot(ctx context.Context, r *model.Reservation) error {
	q := fmt.Sprintf(
		`UPDATE %s SET reserved_count = reserved_count - 1 WHERE id = ? AND reserved_count > 0`,
		s.unitTable(),
	)
	_, err := s.conn(ctx).ExecContext(ctx, q, s.unitID(r))
	return err
}

// InsertReservationGuarded writes the reservation row unless the user
// already holds an active reservation on the same unit.  The guard is
// part of the INSERT itself, so there is no separate round-trip for a
// duplicate check to race against.
func (s *Store) InsertReservationGuarded(ctx context.Context, r *model.Reservation) (bool, error) {
	q := fmt.Sprintf(`INSERT INTO reservations
		(user_id, schedule_id, time_slot_id, payment_method, payment_status, reservation_status,
		 amount, qr_token, entered, created_at, updated_at)
		SELECT ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?
		FROM DUAL
		WHERE NOT EXISTS (
			SELECT 1 FROM reservations
			WHERE %s = ? AND user_id = ? AND reservation_status <> 'CANCELLED'
		)`, s.unitColumn())
	res, err := s.conn(ctx).ExecContext(ctx, q,
		r.UserID, r.ScheduleID, r.TimeSlotID, r.PaymentMethod, r.PaymentStatus, r.ReservationStatus,
		r.Amount, r.QRToken, r.CreatedAt, r.UpdatedAt,
		s.unitID(r), r.UserID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, err
	}
	r.ID = uint64(id)
	return true, nil
}

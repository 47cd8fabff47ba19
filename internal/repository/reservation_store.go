package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stagebook/backend/internal/booking"
	"github.com/stagebook/backend/internal/model"
)

const reservationColumns = `id, user_id, schedule_id, time_slot_id, payment_method, payment_status,
	reservation_status, amount, qr_token, entered, entered_at, created_at, updated_at`

func scanReservation(row *sql.Row) (*model.Reservation, error) {
	var r model.Reservation
	var slotID sql.NullInt64
	var enteredAt sql.NullTime
	err := row.Scan(
		&r.ID, &r.UserID, &r.ScheduleID, &slotID, &r.PaymentMethod, &r.PaymentStatus,
		&r.ReservationStatus, &r.Amount, &r.QRToken, &r.Entered, &enteredAt, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if slotID.Valid {
		v := uint64(slotID.Int64)
		r.TimeSlotID = &v
	}
	if enteredAt.Valid {
		t := enteredAt.Time
		r.EnteredAt = &t
	}
	return &r, nil
}

// GetReservation loads a reservation by primary key.
func (s *Store) GetReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
	r, err := scanReservation(s.conn(ctx).QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, booking.ErrNotFound
	}
	return r, err
}

// GetReservationByQR loads a reservation by its QR token.  The token
// column carries a unique index, so at most one row can match.
func (s *Store) GetReservationByQR(ctx context.Context, token string) (*model.Reservation, error) {
	const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE qr_token = ?`
	r, err := scanReservation(s.conn(ctx).QueryRowContext(ctx, q, token))
	if err == sql.ErrNoRows {
		return nil, booking.ErrNotFound
	}
	return r, err
}

// ConfirmPending records a verified bank transfer.  The WHERE clause
// pins the source state, so a reservation already cancelled by the
// sweeper (or confirmed by a racing call) matches nothing.
func (s *Store) ConfirmPending(ctx context.Context, id uint64) (bool, error) {
	const q = `UPDATE reservations
		SET payment_status = 'COMPLETED', reservation_status = 'CONFIRMED', updated_at = UTC_TIMESTAMP()
		WHERE id = ? AND payment_status = 'PENDING' AND reservation_status = 'PENDING'`
	return s.execOne(ctx, q, id)
}

// CancelActive voids a PENDING or CONFIRMED reservation.  Terminal
// rows (CANCELLED, USED) are excluded by the status list, which is
// what makes the subsequent capacity release idempotent: the second
// cancel matches nothing and never reaches the ledger.
func (s *Store) CancelActive(ctx context.Context, id uint64) (bool, error) {
	const q = `UPDATE reservations
		SET payment_status = 'CANCELLED', reservation_status = 'CANCELLED', updated_at = UTC_TIMESTAMP()
		WHERE id = ? AND reservation_status IN ('PENDING', 'CONFIRMED')`
	return s.execOne(ctx, q, id)
}

// CancelPendingUnpaid is the sweep's cancellation: it only matches a
// reservation still awaiting payment, so a manual confirmation that
// won the race makes this a no-op rather than a double-process.
func (s *Store) CancelPendingUnpaid(ctx context.Context, id uint64) (bool, error) {
	const q = `UPDATE reservations
		SET payment_status = 'CANCELLED', reservation_status = 'CANCELLED', updated_at = UTC_TIMESTAMP()
		WHERE id = ? AND payment_status = 'PENDING' AND reservation_status = 'PENDING'`
	return s.execOne(ctx, q, id)
}

// MarkEntered flips the single-use entry flag.  Two simultaneous
// scans are serialised by the row lock; exactly one sees an affected
// row.
func (s *Store) MarkEntered(ctx context.Context, id uint64, at time.Time) (bool, error) {
	const q = `UPDATE reservations
		SET entered = 1, entered_at = ?, reservation_status = 'USED', updated_at = ?
		WHERE id = ? AND entered = 0 AND reservation_status = 'CONFIRMED'`
	return s.execOne(ctx, q, at, at, id)
}

// ListExpiredPendingIDs returns the sweep candidates: unpaid, still
// pending, created before the cutoff.
func (s *Store) ListExpiredPendingIDs(ctx context.Context, cutoff time.Time) ([]uint64, error) {
	const q = `SELECT id FROM reservations
		WHERE payment_status = 'PENDING' AND reservation_status = 'PENDING' AND created_at < ?
		ORDER BY id`
	rows, err := s.conn(ctx).QueryContext(ctx, q, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) execOne(ctx context.Context, q string, args ...interface{}) (bool, error) {
	res, err := s.conn(ctx).ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ReservationDetail is the read-model projection returned by the
// listing endpoints.  User and schedule summary fields are assembled
// here, outside the entity, so the core reservation never carries
// denormalised display data.
type ReservationDetail struct {
	ID                uint64          `json:"id"`
	UserID            uint64          `json:"user_id"`
	UserName          string          `json:"user_name"`
	UserPhone         string          `json:"user_phone,omitempty"`
	ScheduleID        uint64          `json:"schedule_id"`
	ScheduleTitle     string          `json:"schedule_title"`
	TimeSlotID        *uint64         `json:"time_slot_id,omitempty"`
	PaymentMethod     string          `json:"payment_method"`
	PaymentStatus     string          `json:"payment_status"`
	ReservationStatus string          `json:"reservation_status"`
	Amount            decimal.Decimal `json:"amount"`
	QRToken           string          `json:"qr_token"`
	Entered           bool            `json:"entered"`
	EnteredAt         *time.Time      `json:"entered_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

const detailQuery = `SELECT r.id, r.user_id, u.name, u.phone, r.schedule_id, s.title, r.time_slot_id,
		r.payment_method, r.payment_status, r.reservation_status, r.amount, r.qr_token,
		r.entered, r.entered_at, r.created_at
	FROM reservations r
	JOIN users u ON u.id = r.user_id
	JOIN schedules s ON s.id = r.schedule_id`

func scanDetails(rows *sql.Rows) ([]ReservationDetail, error) {
	defer rows.Close()
	details := make([]ReservationDetail, 0)
	for rows.Next() {
		var d ReservationDetail
		var slotID sql.NullInt64
		var enteredAt sql.NullTime
		if err := rows.Scan(
			&d.ID, &d.UserID, &d.UserName, &d.UserPhone, &d.ScheduleID, &d.ScheduleTitle, &slotID,
			&d.PaymentMethod, &d.PaymentStatus, &d.ReservationStatus, &d.Amount, &d.QRToken,
			&d.Entered, &enteredAt, &d.CreatedAt,
		); err != nil {
			return nil, err
		}
		if slotID.Valid {
			v := uint64(slotID.Int64)
			d.TimeSlotID = &v
		}
		if enteredAt.Valid {
			t := enteredAt.Time
			d.EnteredAt = &t
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

// ListByUser returns the requester's reservations, newest first.
func (s *Store) ListByUser(ctx context.Context, userID uint64) ([]ReservationDetail, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		detailQuery+` WHERE r.user_id = ? ORDER BY r.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return scanDetails(rows)
}

// ListBySchedule returns every reservation on a schedule for its
// manager, newest first.
func (s *Store) ListBySchedule(ctx context.Context, scheduleID uint64) ([]ReservationDetail, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		detailQuery+` WHERE r.schedule_id = ? ORDER BY r.created_at DESC`, scheduleID)
	if err != nil {
		return nil, err
	}
	return scanDetails(rows)
}

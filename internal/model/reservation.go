package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod is how the requester pays for a reservation.  Card
// payments are captured synchronously before admission, bank
// transfers are verified manually by the schedule's manager.
type PaymentMethod string

// PaymentStatus tracks the money side of a reservation.
type PaymentStatus string

// ReservationStatus tracks the booking side of a reservation.
type ReservationStatus string

const (
	PaymentCard         PaymentMethod = "CARD"
	PaymentBankTransfer PaymentMethod = "BANK_TRANSFER"

	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
	PaymentCancelled PaymentStatus = "CANCELLED"

	ReservationPending   ReservationStatus = "PENDING"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationCancelled ReservationStatus = "CANCELLED"
	ReservationUsed      ReservationStatus = "USED"
)

// Reservation records a user's booking against a schedule, or against a
// single time slot when capacity is tracked per slot.  The QR token is
// generated once at creation and never changes; check-in resolves a
// reservation either by ID or by that token.
//
// Fields:
//  ID                – primary key identifier.
//  UserID            – user who made the reservation.
//  ScheduleID        – schedule being reserved.
//  TimeSlotID        – time slot within the schedule (nullable).
//  PaymentMethod     – CARD or BANK_TRANSFER, fixed at creation.
//  PaymentStatus     – PENDING, COMPLETED, REFUNDED or CANCELLED.
//  ReservationStatus – PENDING, CONFIRMED, CANCELLED or USED.
//  Amount            – price captured at admission time, immutable.
//  QRToken           – unique single-use entry token.
//  Entered           – whether the reservation was used for entry.
//  EnteredAt         – when entry happened (nullable, set at most once).
//  CreatedAt         – creation timestamp.
//  UpdatedAt         – last update timestamp.
type Reservation struct {
	ID                uint64            // reservations.id
	UserID            uint64            // reservations.user_id
	ScheduleID        uint64            // reservations.schedule_id
	TimeSlotID        *uint64           // reservations.time_slot_id (nullable)
	PaymentMethod     PaymentMethod     // reservations.payment_method
	PaymentStatus     PaymentStatus     // reservations.payment_status
	ReservationStatus ReservationStatus // reservations.reservation_status
	Amount            decimal.Decimal   // reservations.amount
	QRToken           string            // reservations.qr_token
	Entered           bool              // reservations.entered
	EnteredAt         *time.Time        // reservations.entered_at (nullable)
	CreatedAt         time.Time         // reservations.created_at
	UpdatedAt         time.Time         // reservations.updated_at
}

// InitialState returns the (payment, reservation) status pair a new
// reservation starts in for the given payment method.  Card capture is
// assumed complete by the time admission runs, so card reservations
// are born confirmed; bank transfers wait for manual verification.
func InitialState(m PaymentMethod) (PaymentStatus, ReservationStatus) {
	if m == PaymentCard {
		return PaymentCompleted, ReservationConfirmed
	}
	return PaymentPending, ReservationPending
}

// Terminal reports whether no further status transition is allowed.
func (r *Reservation) Terminal() bool {
	return r.ReservationStatus == ReservationCancelled || r.ReservationStatus == ReservationUsed
}

// Active reports whether the reservation still counts against its
// unit's capacity.  Only cancelled reservations release their slot.
func (r *Reservation) Active() bool {
	return r.ReservationStatus != ReservationCancelled
}

// Package booking implements the reservation admission and lifecycle
// engine: capacity-guarded admission, the payment/attendance state
// machine, single-use QR check-in and the unpaid-reservation sweeper.
package booking

import "errors"

// Sentinel errors returned by the engine.  Handlers translate these
// into distinct HTTP responses so a client can tell "sold out" from
// "you already booked this".
var (
	// ErrUnitNotFound is returned when the requested bookable unit
	// does not exist.
	ErrUnitNotFound = errors.New("bookable unit not found")

	// ErrUnitUnpublished is returned when the unit exists but is not
	// open for booking.
	ErrUnitUnpublished = errors.New("bookable unit not published")

	// ErrAlreadyReserved is returned when the requester already holds
	// an active reservation on the unit.
	ErrAlreadyReserved = errors.New("already reserved")

	// ErrCapacityExhausted is returned when no slots remain on the unit.
	ErrCapacityExhausted = errors.New("capacity exhausted")

	// ErrInvalidTransition is returned when a status change is not in
	// the legal transition set, including any attempt to move a
	// reservation out of a terminal state.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrAlreadyUsed is returned when a reservation is checked in a
	// second time.  This is deliberately an error, not an idempotent
	// success: a gate scanner seeing it twice is a fraud signal.
	ErrAlreadyUsed = errors.New("reservation already used")

	// ErrForbidden is returned when the caller is neither the unit's
	// manager nor an administrator.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is returned when a reservation cannot be resolved by
	// id or QR token.
	ErrNotFound = errors.New("reservation not found")
)

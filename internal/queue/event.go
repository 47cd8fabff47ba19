// Package queue defines message payloads exchanged over the message broker
// and the background consumer that processes them.
package queue

// Event type values carried in ReservationEvent.Type.
const (
	EventReservationConfirmed = "reservation.confirmed"
	EventReservationCancelled = "reservation.cancelled"
)

// ReservationEvent is published on reservation lifecycle changes.  It carries
// enough information for downstream consumers to log, notify, or trigger
// analytics without querying the primary database.
type ReservationEvent struct {
	Type          string `json:"type"`
	ReservationID uint64 `json:"reservation_id"`
	UserID        uint64 `json:"user_id"`
	ScheduleID    uint64 `json:"schedule_id"`
	TimeSlotID    uint64 `json:"time_slot_id,omitempty"`
	ScheduleTitle string `json:"schedule_title,omitempty"`
	Amount        string `json:"amount"`
	Reason        string `json:"reason,omitempty"` // "user" or "expired" on cancellations
	OccurredAt    string `json:"occurred_at"`
}

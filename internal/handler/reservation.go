package handler

import (
	"context"  // detached contexts for fire-and-forget event publishing
	"net/http" // HTTP status codes
	"time"     // timestamps and publish timeouts

	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/stagebook/backend/internal/booking"
	"github.com/stagebook/backend/internal/model"
	"github.com/stagebook/backend/internal/monitoring"
	"github.com/stagebook/backend/internal/queue"
	"github.com/stagebook/backend/internal/repository"
	queue_publisher "github.com/stagebook/backend/internal/service"
)

// ReservationHandler serves the customer-facing reservation endpoints.
// Admission and lifecycle decisions live in the booking engine; the
// handler only translates HTTP into engine calls and engine errors
// back into status codes.
type ReservationHandler struct {
	Engine *booking.Engine
	Store  *repository.Store
}

func NewReservationHandler(engine *booking.Engine, store *repository.Store) *ReservationHandler {
	if engine == nil || store == nil {
		panic("nil dependency passed to NewReservationHandler")
	}
	return &ReservationHandler{Engine: engine, Store: store}
}

type createReservationReq struct {
	UnitID        uint64 `json:"unit_id" validate:"required,gt=0"`
	PaymentMethod string `json:"payment_method" validate:"required,oneof=CARD BANK_TRANSFER"`
}

// reservationView is the JSON shape returned for a single reservation.
type reservationView struct {
	ID                uint64     `json:"id"`
	ScheduleID        uint64     `json:"schedule_id"`
	TimeSlotID        *uint64    `json:"time_slot_id,omitempty"`
	PaymentMethod     string     `json:"payment_method"`
	PaymentStatus     string     `json:"payment_status"`
	ReservationStatus string     `json:"reservation_status"`
	Amount            string     `json:"amount"`
	QRToken           string     `json:"qr_token"`
	Entered           bool       `json:"entered"`
	EnteredAt         *time.Time `json:"entered_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func newReservationView(r *model.Reservation) reservationView {
	return reservationView{
		ID:                r.ID,
		ScheduleID:        r.ScheduleID,
		TimeSlotID:        r.TimeSlotID,
		PaymentMethod:     string(r.PaymentMethod),
		PaymentStatus:     string(r.PaymentStatus),
		ReservationStatus: string(r.ReservationStatus),
		Amount:            r.Amount.StringFixed(2),
		QRToken:           r.QRToken,
		Entered:           r.Entered,
		EnteredAt:         r.EnteredAt,
		CreatedAt:         r.CreatedAt,
	}
}

// Create handles POST /v1/reservations.  Card payments come back
// CONFIRMED immediately; bank transfers come back PENDING until a
// manager verifies the transfer.  Duplicate and sold-out attempts are
// rejected with 409 and leave no trace in the database.
func (h *ReservationHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createReservationReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unit_id and payment_method (CARD or BANK_TRANSFER) required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	r, err := h.Engine.CreateReservation(ctx, userID, req.UnitID, model.PaymentMethod(req.PaymentMethod))
	if err != nil {
		monitoring.TrackAdmission(admissionOutcome(err))
		return writeBookingError(c, err)
	}

	if r.ReservationStatus == model.ReservationConfirmed {
		monitoring.TrackAdmission("confirmed")
		publishReservationEvent(queue.EventReservationConfirmed, r, "")
	} else {
		monitoring.TrackAdmission("pending")
	}

	return c.JSON(http.StatusCreated, newReservationView(r))
}

// MyReservations handles GET /v1/my-reservations and lists every
// reservation the caller has ever made, newest first.
func (h *ReservationHandler) MyReservations(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Store.ListByUser(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": items})
}

func admissionOutcome(err error) string {
	switch err {
	case booking.ErrAlreadyReserved:
		return "duplicate"
	case booking.ErrCapacityExhausted:
		return "exhausted"
	}
	return "error"
}

// publishReservationEvent sends a lifecycle event to the broker without
// blocking the request.  Publish failures are logged by the publisher
// and otherwise ignored.
func publishReservationEvent(eventType string, r *model.Reservation, reason string) {
	ev := queue.ReservationEvent{
		Type:          eventType,
		ReservationID: r.ID,
		UserID:        r.UserID,
		ScheduleID:    r.ScheduleID,
		Amount:        r.Amount.StringFixed(2),
		Reason:        reason,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
	}
	if r.TimeSlotID != nil {
		ev.TimeSlotID = *r.TimeSlotID
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = queue_publisher.PublishReservationEvent(ctx, ev)
	}()
}

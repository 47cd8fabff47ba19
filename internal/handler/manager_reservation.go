package handler

import (
	"context"  // request-scoped timeouts for DB calls
	"errors"   // sentinel comparisons
	"net/http" // HTTP status codes
	"strconv"  // parsing path parameters
	"strings"  // trimming the QR token parameter
	"time"     // timeouts

	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/stagebook/backend/internal/booking"
	"github.com/stagebook/backend/internal/model"
	"github.com/stagebook/backend/internal/monitoring"
	"github.com/stagebook/backend/internal/queue"
	"github.com/stagebook/backend/internal/repository"
)

// ScheduleSource resolves schedules for ownership checks.
type ScheduleSource interface {
	GetByID(ctx context.Context, id uint64) (*model.Schedule, error)
}

// ManagerHandler serves the lifecycle endpoints that require the
// schedule's manager or an admin: payment confirmation, cancellation,
// check-in and reservation listings.  For the per-reservation
// operations the ownership check lives inside the engine; the listing
// runs the same policy here against the resolved schedule.  The
// route-level role check only keeps plain users out.
type ManagerHandler struct {
	Engine    *booking.Engine
	Store     *repository.Store
	Schedules ScheduleSource
}

func NewManagerHandler(engine *booking.Engine, store *repository.Store, schedules ScheduleSource) *ManagerHandler {
	if engine == nil || store == nil || schedules == nil {
		panic("nil dependency passed to NewManagerHandler")
	}
	return &ManagerHandler{Engine: engine, Store: store, Schedules: schedules}
}

// ListBySchedule handles GET /v1/schedules/:id/reservations.  The
// listing exposes customer names, phones and QR tokens, so it is
// restricted to the schedule's own manager or an admin.
func (h *ManagerHandler) ListBySchedule(c echo.Context) error {
	actor, err := getActor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	scheduleID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || scheduleID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid schedule id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.Schedules.GetByID(ctx, scheduleID)
	if err != nil {
		if errors.Is(err, booking.ErrUnitNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "schedule not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !actor.CanManage(s.ManagerID) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	items, err := h.Store.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": items})
}

// ConfirmPayment handles POST /v1/reservations/:id/confirm-payment.
// It records a verified bank transfer, moving the reservation from
// (PENDING, PENDING) to (COMPLETED, CONFIRMED).
func (h *ManagerHandler) ConfirmPayment(c echo.Context) error {
	actor, err := getActor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	r, err := h.Engine.ConfirmPayment(ctx, actor, id)
	if err != nil {
		return writeBookingError(c, err)
	}
	publishReservationEvent(queue.EventReservationConfirmed, r, "")
	return c.JSON(http.StatusOK, newReservationView(r))
}

// Cancel handles DELETE /v1/reservations/:id.  Cancelling releases the
// capacity slot exactly once; repeating the call on an already
// cancelled or used reservation returns 409.
func (h *ManagerHandler) Cancel(c echo.Context) error {
	actor, err := getActor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	r, err := h.Engine.Cancel(ctx, actor, id)
	if err != nil {
		return writeBookingError(c, err)
	}
	monitoring.TrackCancellation("user")
	publishReservationEvent(queue.EventReservationCancelled, r, "user")
	return c.JSON(http.StatusOK, newReservationView(r))
}

// Enter handles POST /v1/reservations/:id/enter: check-in by
// reservation id at the door.
func (h *ManagerHandler) Enter(c echo.Context) error {
	actor, err := getActor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	return h.checkIn(c, actor, booking.Selector{ID: id})
}

// EnterByQR handles POST /v1/reservations/qr/:token: check-in by
// scanning the ticket's QR token.
func (h *ManagerHandler) EnterByQR(c echo.Context) error {
	actor, err := getActor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid qr token"})
	}
	return h.checkIn(c, actor, booking.Selector{QRToken: token})
}

func (h *ManagerHandler) checkIn(c echo.Context, actor booking.Actor, sel booking.Selector) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	r, err := h.Engine.CheckIn(ctx, actor, sel)
	if err != nil {
		monitoring.TrackCheckin(checkinOutcome(err))
		return writeBookingError(c, err)
	}
	monitoring.TrackCheckin("used")
	return c.JSON(http.StatusOK, newReservationView(r))
}

func checkinOutcome(err error) string {
	switch err {
	case booking.ErrAlreadyUsed:
		return "already_used"
	case booking.ErrInvalidTransition, booking.ErrForbidden, booking.ErrNotFound:
		return "rejected"
	}
	return "error"
}

package handler // handler defines http handlers

import (
	"errors"   // errors provides sentinel values used in getUserID
	"net/http" // HTTP status codes
	"strconv"  // strconv converts strings to numeric types

	"github.com/labstack/echo/v4" // echo defines request context types

	"github.com/stagebook/backend/internal/booking"
)

// getUserID extracts the user_id from echo.Context and converts it to uint64.
// The JWT middleware stores claims without normalising their type, so the
// value may arrive as any numeric type or a string.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		if t >= 0 {
			return uint64(t), nil
		}
	case int64:
		if t >= 0 {
			return uint64(t), nil
		}
	case float64:
		if t >= 0 {
			return uint64(t), nil
		}
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// getActor builds the booking actor for the authenticated caller.
func getActor(c echo.Context) (booking.Actor, error) {
	uid, err := getUserID(c)
	if err != nil {
		return booking.Actor{}, err
	}
	role, _ := c.Get("role").(string)
	return booking.Actor{ID: uid, Role: role}, nil
}

// writeBookingError maps engine sentinel errors to HTTP responses.  Every
// lifecycle conflict surfaces as 409 with a distinct message so clients can
// tell a duplicate from a sold-out unit without parsing free text.
func writeBookingError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, booking.ErrUnitNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "schedule not found"})
	case errors.Is(err, booking.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	case errors.Is(err, booking.ErrUnitUnpublished):
		return c.JSON(http.StatusConflict, echo.Map{"error": "schedule not open for reservations"})
	case errors.Is(err, booking.ErrAlreadyReserved):
		return c.JSON(http.StatusConflict, echo.Map{"error": "active reservation already exists"})
	case errors.Is(err, booking.ErrCapacityExhausted):
		return c.JSON(http.StatusConflict, echo.Map{"error": "capacity exhausted"})
	case errors.Is(err, booking.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": "invalid reservation state"})
	case errors.Is(err, booking.ErrAlreadyUsed):
		return c.JSON(http.StatusConflict, echo.Map{"error": "reservation already used"})
	case errors.Is(err, booking.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
}

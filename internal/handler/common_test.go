package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagebook/backend/internal/booking"
)

func newTestContext(t *testing.T) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestWriteBookingError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"unit not found", booking.ErrUnitNotFound, http.StatusNotFound},
		{"reservation not found", booking.ErrNotFound, http.StatusNotFound},
		{"unpublished", booking.ErrUnitUnpublished, http.StatusConflict},
		{"duplicate", booking.ErrAlreadyReserved, http.StatusConflict},
		{"exhausted", booking.ErrCapacityExhausted, http.StatusConflict},
		{"invalid transition", booking.ErrInvalidTransition, http.StatusConflict},
		{"already used", booking.ErrAlreadyUsed, http.StatusConflict},
		{"forbidden", booking.ErrForbidden, http.StatusForbidden},
		{"unknown", assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := newTestContext(t)
			require.NoError(t, writeBookingError(c, tc.err))
			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestGetActor(t *testing.T) {
	t.Run("reads numeric claims from context", func(t *testing.T) {
		c, _ := newTestContext(t)
		// JWT claims decode as float64
		c.Set("user_id", float64(42))
		c.Set("role", "MANAGER")

		actor, err := getActor(c)
		require.NoError(t, err)
		assert.Equal(t, uint64(42), actor.ID)
		assert.Equal(t, "MANAGER", actor.Role)
	})

	t.Run("rejects missing user id", func(t *testing.T) {
		c, _ := newTestContext(t)
		_, err := getActor(c)
		assert.Error(t, err)
	})
}

func TestGetUserID_RejectsNegative(t *testing.T) {
	// A negative id must not wrap around into a huge uint64.
	for _, v := range []any{int(-5), int64(-1), float64(-1)} {
		c, _ := newTestContext(t)
		c.Set("user_id", v)
		_, err := getUserID(c)
		assert.Error(t, err)
	}
}

package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagebook/backend/internal/booking"
	"github.com/stagebook/backend/internal/model"
)

// fakeScheduleSource serves a single schedule by ID.
type fakeScheduleSource struct {
	schedule *model.Schedule
}

func (f *fakeScheduleSource) GetByID(_ context.Context, id uint64) (*model.Schedule, error) {
	if f.schedule == nil || f.schedule.ID != id {
		return nil, booking.ErrUnitNotFound
	}
	return f.schedule, nil
}

// The listing exposes customer names, phones and QR tokens, so the
// handler must resolve the schedule and refuse managers that do not
// own it before touching the reservation store.  The store is nil
// here: any rejected request that reached it would panic the test.
func TestListBySchedule_Ownership(t *testing.T) {
	source := &fakeScheduleSource{schedule: &model.Schedule{ID: 7, ManagerID: 100}}

	listAs := func(t *testing.T, userID float64, role, param string) int {
		t.Helper()
		h := &ManagerHandler{Schedules: source}
		c, rec := newTestContext(t)
		c.Set("user_id", userID)
		c.Set("role", role)
		c.SetParamNames("id")
		c.SetParamValues(param)
		require.NoError(t, h.ListBySchedule(c))
		return rec.Code
	}

	t.Run("foreign manager is refused", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, listAs(t, 55, "MANAGER", "7"))
	})

	t.Run("unknown schedule", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, listAs(t, 100, "MANAGER", "8"))
	})

	t.Run("invalid id", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, listAs(t, 100, "MANAGER", "abc"))
	})

	t.Run("missing claims", func(t *testing.T) {
		h := &ManagerHandler{Schedules: source}
		c, rec := newTestContext(t)
		c.SetParamNames("id")
		c.SetParamValues("7")
		require.NoError(t, h.ListBySchedule(c))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

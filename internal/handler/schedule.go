package handler

import (
	"context"  // timeouts for DB calls
	"errors"   // sentinel comparisons
	"net/http" // HTTP status codes
	"strconv"  // parsing path parameters
	"time"     // timeouts and date formatting

	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/stagebook/backend/internal/booking"
	"github.com/stagebook/backend/internal/model"
	"github.com/stagebook/backend/internal/repository"
)

// ScheduleHandler serves the public schedule browsing endpoint.
type ScheduleHandler struct {
	Schedules *repository.ScheduleRepo
}

func NewScheduleHandler(schedules *repository.ScheduleRepo) *ScheduleHandler {
	if schedules == nil {
		panic("nil repository passed to NewScheduleHandler")
	}
	return &ScheduleHandler{Schedules: schedules}
}

type slotView struct {
	ID         uint64 `json:"id"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	ArtistName string `json:"artist_name"`
	Capacity   int    `json:"capacity"`
	Remaining  int    `json:"remaining"`
}

type scheduleView struct {
	ID          uint64     `json:"id"`
	Title       string     `json:"title"`
	Venue       string     `json:"venue"`
	Date        string     `json:"date"`
	Capacity    int        `json:"capacity"`
	Remaining   int        `json:"remaining"`
	Price       string     `json:"price"`
	IsPublished bool       `json:"is_published"`
	Slots       []slotView `json:"slots,omitempty"`
}

// Get handles GET /v1/schedules/:id.  The snapshot reports remaining
// capacity per schedule and, when present, per time slot.  The counts
// are a point-in-time read; only admission itself is authoritative.
func (h *ScheduleHandler) Get(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid schedule id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.Schedules.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, booking.ErrUnitNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "schedule not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	slots, err := h.Schedules.SlotsBySchedule(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	view := scheduleView{
		ID:          s.ID,
		Title:       s.Title,
		Venue:       s.Venue,
		Date:        s.Date.Format("2006-01-02"),
		Capacity:    s.Capacity,
		Remaining:   remaining(s.Capacity, s.ReservedCount),
		Price:       s.Price.StringFixed(2),
		IsPublished: s.IsPublished,
	}
	for _, sl := range slots {
		view.Slots = append(view.Slots, newSlotView(sl))
	}
	return c.JSON(http.StatusOK, view)
}

func newSlotView(sl model.TimeSlot) slotView {
	return slotView{
		ID:         sl.ID,
		StartTime:  sl.StartTime,
		EndTime:    sl.EndTime,
		ArtistName: sl.ArtistName,
		Capacity:   sl.Capacity,
		Remaining:  remaining(sl.Capacity, sl.ReservedCount),
	}
}

func remaining(capacity, reserved int) int {
	if reserved > capacity {
		return 0
	}
	return capacity - reserved
}

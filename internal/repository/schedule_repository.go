package repository

import (
	"context"
	"database/sql"

	"github.com/stagebook/backend/internal/booking"
	"github.com/stagebook/backend/internal/model"
)

// ScheduleRepo provides read access to schedules and their time
// slots.  Schedule management itself (create, edit, publish) is
// owned by the catalog service; the engine only consumes snapshots.
type ScheduleRepo struct {
	db *sql.DB
}

// NewScheduleRepo returns a ScheduleRepo bound to the given database.
func NewScheduleRepo(db *sql.DB) *ScheduleRepo { return &ScheduleRepo{db: db} }

// GetByID loads a schedule.  Returns booking.ErrUnitNotFound when no
// row matches so handlers can map it straight to 404.
func (r *ScheduleRepo) GetByID(ctx context.Context, id uint64) (*model.Schedule, error) {
	const q = `SELECT id, manager_id, title, venue, date, capacity, reserved_count, price,
		is_published, created_at, updated_at
		FROM schedules WHERE id = ?`
	var s model.Schedule
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&s.ID, &s.ManagerID, &s.Title, &s.Venue, &s.Date, &s.Capacity, &s.ReservedCount,
		&s.Price, &s.IsPublished, &s.CreatedAt, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, booking.ErrUnitNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SlotsBySchedule lists the time slots of a schedule in start order.
func (r *ScheduleRepo) SlotsBySchedule(ctx context.Context, scheduleID uint64) ([]model.TimeSlot, error) {
	const q = `SELECT id, schedule_id, start_time, end_time, artist_name, capacity, reserved_count, created_at
		FROM time_slots WHERE schedule_id = ? ORDER BY start_time`
	rows, err := r.db.QueryContext(ctx, q, scheduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	slots := make([]model.TimeSlot, 0)
	for rows.Next() {
		var ts model.TimeSlot
		if err := rows.Scan(&ts.ID, &ts.ScheduleID, &ts.StartTime, &ts.EndTime,
			&ts.ArtistName, &ts.Capacity, &ts.ReservedCount, &ts.CreatedAt); err != nil {
			return nil, err
		}
		slots = append(slots, ts)
	}
	return slots, rows.Err()
}

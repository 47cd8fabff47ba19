package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Schedule is a bookable event run by a manager: a performance date
// with a seat capacity and a single price.  When capacity is tracked
// per time slot the schedule acts as the container for its slots and
// the slots carry the counters instead.
//
// Fields:
//  ID            – primary key identifier.
//  ManagerID     – user who owns this schedule.
//  Title         – display title of the event.
//  Venue         – free-form venue name.
//  Date          – day the event takes place.
//  Capacity      – total number of admittable reservations.
//  ReservedCount – active reservations currently admitted.
//  Price         – price per reservation, captured into each
//                  reservation at admission time.
//  IsPublished   – only published schedules accept reservations.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Schedule struct {
	ID            uint64          // schedules.id
	ManagerID     uint64          // schedules.manager_id
	Title         string          // schedules.title
	Venue         string          // schedules.venue
	Date          time.Time       // schedules.date
	Capacity      int             // schedules.capacity
	ReservedCount int             // schedules.reserved_count
	Price         decimal.Decimal // schedules.price
	IsPublished   bool            // schedules.is_published
	CreatedAt     time.Time       // schedules.created_at
	UpdatedAt     time.Time       // schedules.updated_at
}

// TimeSlot subdivides a schedule into performance windows with their
// own capacity, for deployments that track capacity per slot.
//
// Fields:
//  ID            – primary key identifier.
//  ScheduleID    – schedule this slot belongs to.
//  StartTime     – slot start, minutes within the event day.
//  EndTime       – slot end.
//  ArtistName    – team or artist performing in this window.
//  Capacity      – admittable reservations for this slot.
//  ReservedCount – active reservations currently admitted.
type TimeSlot struct {
	ID            uint64    // time_slots.id
	ScheduleID    uint64    // time_slots.schedule_id
	StartTime     string    // time_slots.start_time (HH:MM)
	EndTime       string    // time_slots.end_time (HH:MM)
	ArtistName    string    // time_slots.artist_name
	Capacity      int       // time_slots.capacity
	ReservedCount int       // time_slots.reserved_count
	CreatedAt     time.Time // time_slots.created_at
}

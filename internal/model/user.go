package model

import "time"

// User represents an application user as stored in the `users` table.
// The json tags are omitted because these structs are used by the
// repository layer; handlers define their own response types.
//
// Roles:
//  USER    – regular account that creates reservations.
//  MANAGER – runs schedules; may confirm payments, check guests in
//            and cancel reservations on their own schedules.
//  ADMIN   – may do everything a manager can, on any schedule.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Name         string    // users.name
	Phone        string    // users.phone
	Role         string    // users.role (USER, MANAGER, ADMIN)
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

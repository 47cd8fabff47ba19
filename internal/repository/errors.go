// Package repository implements MySQL persistence for stagebook.  The
// booking engine's store contract lives here; all capacity and status
// mutations are conditional single-statement updates checked through
// their affected-row count, never application-level read-then-write.
package repository

import "errors"

// ErrEmailExists is returned when registering a user with an email
// that is already taken.  Handlers translate this into HTTP 409.
var ErrEmailExists = errors.New("email already exists")

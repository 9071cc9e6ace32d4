package scheduling

import "errors"

var (
	// ErrCapacityExhausted is returned when a slot has no remaining capacity.
	// Callers should offer the waitlist instead of failing the request outright.
	ErrCapacityExhausted = errors.New("slot capacity exhausted")

	// ErrStaleReservation is returned when a reservation is released twice.
	// Duplicate cancellation signals are tolerated; the counter is untouched.
	ErrStaleReservation = errors.New("reservation already released")
)

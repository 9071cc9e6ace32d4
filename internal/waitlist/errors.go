package waitlist

import "errors"

var (
	// ErrMissingPatient is returned when the patient id is absent.
	ErrMissingPatient = errors.New("patient id is required")

	// ErrMissingDoctor is returned when the doctor id is absent.
	ErrMissingDoctor = errors.New("doctor id is required")

	// ErrMissingDesiredTime is returned when no desired time is given.
	ErrMissingDesiredTime = errors.New("desired time is required")

	// ErrEntryNotFound is returned when an entry does not exist.
	ErrEntryNotFound = errors.New("waitlist entry not found")

	// ErrInvalidStatusChange is returned when a status move is not allowed,
	// e.g. promoting an entry that was never notified.
	ErrInvalidStatusChange = errors.New("invalid waitlist status change")
)

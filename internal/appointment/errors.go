package appointment

import "errors"

var (
	// ErrMissingPatient is returned when the patient id is absent.
	ErrMissingPatient = errors.New("patient id is required")

	// ErrMissingDoctor is returned when the doctor id is absent.
	ErrMissingDoctor = errors.New("doctor id is required")

	// ErrMissingSchedule is returned when no appointment time is given.
	ErrMissingSchedule = errors.New("appointment time is required")

	// ErrNotFound is returned when an appointment does not exist.
	ErrNotFound = errors.New("appointment not found")

	// ErrInvalidTransition is returned when a status move violates the
	// lifecycle table. The appointment is left unchanged.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrPaymentFailed is returned when settlement was declined at
	// confirmation. The appointment reverts to APPROVED for retry.
	ErrPaymentFailed = errors.New("payment settlement failed")

	// ErrForbidden is returned when the caller's role does not permit the
	// operation.
	ErrForbidden = errors.New("operation not permitted for caller")
)

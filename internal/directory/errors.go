package directory

import "errors"

var (
	// ErrMissingDoctorID is returned when a doctor record has no id.
	ErrMissingDoctorID = errors.New("doctor id is required")

	// ErrMissingDoctorName is returned when a doctor record has no name.
	ErrMissingDoctorName = errors.New("doctor name is required")

	// ErrDoctorNotFound is returned when a doctor does not exist.
	ErrDoctorNotFound = errors.New("doctor not found")

	// ErrHospitalNotFound is returned when a hospital does not exist.
	ErrHospitalNotFound = errors.New("hospital not found")

	// ErrPatientNotFound is returned when a patient does not exist.
	ErrPatientNotFound = errors.New("patient not found")
)

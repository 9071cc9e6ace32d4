// Package appointment owns the booking lifecycle: reserving slot capacity,
// driving status transitions, and dispatching payment at confirmation.
package appointment

import (
	"strings"
	"time"

	"github.com/careflow/clinic-scheduling/internal/scheduling"
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusConfirmed Status = "CONFIRMED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// NormalizeStatus maps stored status values to the canonical set. Rows
// written before the lifecycle rework carry SCHEDULED and REJECTED; they are
// normalized here, at the storage boundary, and nowhere else. New writes
// always use canonical values.
func NormalizeStatus(raw string) Status {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SCHEDULED":
		return StatusPending
	case "REJECTED":
		return StatusCancelled
	case string(StatusApproved):
		return StatusApproved
	case string(StatusConfirmed):
		return StatusConfirmed
	case string(StatusCompleted):
		return StatusCompleted
	case string(StatusCancelled):
		return StatusCancelled
	default:
		return StatusPending
	}
}

// Appointment is one booking holding one unit of slot capacity for its
// doctor's day. Identity and monetary fields are immutable once CONFIRMED.
type Appointment struct {
	ID                string    `json:"id"`
	PatientID         string    `json:"patient_id"`
	DoctorID          string    `json:"doctor_id"`
	HospitalID        string    `json:"hospital_id,omitempty"`
	ServiceCategoryID string    `json:"service_category_id,omitempty"`
	ScheduledAt       time.Time `json:"scheduled_at"`
	Status            Status    `json:"status"`
	Priority          bool      `json:"priority"`
	PaymentMethod     string    `json:"payment_method,omitempty"`
	PaymentAmount     int64     `json:"payment_amount_cents,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// SlotKey returns the capacity bucket this appointment occupies.
func (a *Appointment) SlotKey() scheduling.SlotKey {
	return scheduling.NewSlotKey(a.DoctorID, a.ScheduledAt)
}

// BookRequest is the request body for creating an appointment.
type BookRequest struct {
	PatientID         string    `json:"-"`
	DoctorID          string    `json:"doctor_id"`
	HospitalID        string    `json:"hospital_id"`
	ServiceCategoryID string    `json:"service_category_id"`
	ScheduledAt       time.Time `json:"scheduled_at"`
	Priority          bool      `json:"priority"`
}

// Validate validates the booking request.
func (r *BookRequest) Validate() error {
	if strings.TrimSpace(r.PatientID) == "" {
		return ErrMissingPatient
	}
	if strings.TrimSpace(r.DoctorID) == "" {
		return ErrMissingDoctor
	}
	if r.ScheduledAt.IsZero() {
		return ErrMissingSchedule
	}
	return nil
}

// Package waitlist queues booking desires that could not be satisfied
// immediately, per doctor per day, and ranks them for promotion.
package waitlist

import (
	"strings"
	"time"

	"github.com/careflow/clinic-scheduling/internal/scheduling"
)

// Status is the lifecycle state of a waitlist entry.
type Status string

const (
	// StatusQueued means the entry is waiting for capacity.
	StatusQueued Status = "QUEUED"
	// StatusNotified means the patient holds an open promotion offer.
	StatusNotified Status = "NOTIFIED"
	// StatusPromoted means the offer was accepted into a pending booking.
	StatusPromoted Status = "PROMOTED"
	// StatusApproved means promotion created a pre-approved booking directly.
	StatusApproved Status = "APPROVED"
	// StatusExpired means the desired time passed or the offer lapsed.
	StatusExpired Status = "EXPIRED"
)

// Terminal reports whether no further status change is allowed.
func (s Status) Terminal() bool {
	switch s {
	case StatusPromoted, StatusApproved, StatusExpired:
		return true
	}
	return false
}

// Entry is one queued booking desire. It belongs to exactly one slot,
// derived from (DoctorID, DesiredTime's calendar day).
type Entry struct {
	ID                string    `json:"id"`
	PatientID         string    `json:"patient_id"`
	DoctorID          string    `json:"doctor_id"`
	HospitalID        string    `json:"hospital_id,omitempty"`
	ServiceCategoryID string    `json:"service_category_id,omitempty"`
	DesiredTime       time.Time `json:"desired_time"`
	Priority          bool      `json:"priority"`
	Status            Status    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
}

// SlotKey returns the capacity bucket this entry is queued for.
func (e *Entry) SlotKey() scheduling.SlotKey {
	return scheduling.NewSlotKey(e.DoctorID, e.DesiredTime)
}

// ranksBefore orders candidates: priority entries first, then earliest
// CreatedAt among equal priority.
func (e *Entry) ranksBefore(other *Entry) bool {
	if e.Priority != other.Priority {
		return e.Priority
	}
	return e.CreatedAt.Before(other.CreatedAt)
}

// JoinRequest is the request body for joining the waitlist.
type JoinRequest struct {
	PatientID         string    `json:"-"`
	DoctorID          string    `json:"doctor_id"`
	HospitalID        string    `json:"hospital_id"`
	ServiceCategoryID string    `json:"service_category_id"`
	DesiredTime       time.Time `json:"desired_time"`
	Priority          bool      `json:"priority"`
}

// Validate validates the join request.
func (r *JoinRequest) Validate() error {
	if strings.TrimSpace(r.PatientID) == "" {
		return ErrMissingPatient
	}
	if strings.TrimSpace(r.DoctorID) == "" {
		return ErrMissingDoctor
	}
	if r.DesiredTime.IsZero() {
		return ErrMissingDesiredTime
	}
	return nil
}

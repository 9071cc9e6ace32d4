// Package events records scheduling state transitions for reporting and
// audit subscribers. The core inserts into the outbox and never waits on
// delivery.
package events

import "time"

// Event type names, versioned so subscribers can evolve independently.
const (
	TypeAppointmentCreated   = "appointment.created.v1"
	TypeAppointmentCancelled = "appointment.cancelled.v1"
	TypeAppointmentConfirmed = "appointment.confirmed.v1"
	TypeAppointmentCompleted = "appointment.completed.v1"
	TypeWaitlistJoined       = "waitlist.joined.v1"
	TypeWaitlistPromoted     = "waitlist.promoted.v1"
	TypeOfferExpired         = "offer.expired.v1"
)

type AppointmentCreatedV1 struct {
	AppointmentID string    `json:"appointment_id"`
	PatientID     string    `json:"patient_id"`
	DoctorID      string    `json:"doctor_id"`
	HospitalID    string    `json:"hospital_id,omitempty"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	Priority      bool      `json:"priority"`
	Promoted      bool      `json:"promoted,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type AppointmentCancelledV1 struct {
	AppointmentID string    `json:"appointment_id"`
	PatientID     string    `json:"patient_id"`
	DoctorID      string    `json:"doctor_id"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	CancelledBy   string    `json:"cancelled_by"`
	CancelledAt   time.Time `json:"cancelled_at"`
}

type AppointmentConfirmedV1 struct {
	AppointmentID  string    `json:"appointment_id"`
	PatientID      string    `json:"patient_id"`
	DoctorID       string    `json:"doctor_id"`
	AmountCents    int64     `json:"amount_cents"`
	PaymentMethod  string    `json:"payment_method"`
	PaymentOutcome string    `json:"payment_outcome"`
	ConfirmedAt    time.Time `json:"confirmed_at"`
}

type AppointmentCompletedV1 struct {
	AppointmentID string    `json:"appointment_id"`
	PatientID     string    `json:"patient_id"`
	DoctorID      string    `json:"doctor_id"`
	CompletedAt   time.Time `json:"completed_at"`
}

type WaitlistJoinedV1 struct {
	EntryID     string    `json:"entry_id"`
	PatientID   string    `json:"patient_id"`
	DoctorID    string    `json:"doctor_id"`
	DesiredTime time.Time `json:"desired_time"`
	Priority    bool      `json:"priority"`
	JoinedAt    time.Time `json:"joined_at"`
}

type WaitlistPromotedV1 struct {
	EntryID       string    `json:"entry_id"`
	AppointmentID string    `json:"appointment_id"`
	PatientID     string    `json:"patient_id"`
	DoctorID      string    `json:"doctor_id"`
	OfferDeadline time.Time `json:"offer_deadline"`
	PromotedAt    time.Time `json:"promoted_at"`
}

type OfferExpiredV1 struct {
	EntryID   string    `json:"entry_id"`
	PatientID string    `json:"patient_id"`
	DoctorID  string    `json:"doctor_id"`
	ExpiredAt time.Time `json:"expired_at"`
}

// Package payments settles appointment charges through interchangeable
// strategies (card, cash, insurance). Selection is explicit data on the
// request; the state machine only sees the Outcome.
package payments

import (
	"context"
	"strings"
	"time"
)

// Outcome is the result of one settlement attempt.
type Outcome string

const (
	// OutcomePaid means the settlement authority accepted the charge.
	OutcomePaid Outcome = "paid"
	// OutcomePending means settlement awaits out-of-band confirmation,
	// e.g. cash collected at the front desk.
	OutcomePending Outcome = "pending"
	// OutcomeFailed means the settlement authority declined the charge.
	OutcomeFailed Outcome = "failed"
)

// Method identifies a settlement strategy.
type Method string

const (
	MethodCard      Method = "card"
	MethodCash      Method = "cash"
	MethodInsurance Method = "insurance"
)

// ParseMethod validates a wire-format method string.
func ParseMethod(raw string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(raw))) {
	case MethodCard:
		return MethodCard, nil
	case MethodCash:
		return MethodCash, nil
	case MethodInsurance:
		return MethodInsurance, nil
	default:
		return "", ErrUnknownMethod
	}
}

// Context carries everything a strategy needs to settle one appointment.
type Context struct {
	AppointmentID string
	PatientID     string
	DoctorID      string
	HospitalID    string
	AmountCents   int64
	ScheduledAt   time.Time
}

// Strategy settles a payment for an appointment. Implementations must be
// safe for concurrent use and must never be called while a slot lock is held.
type Strategy interface {
	Process(ctx context.Context, pc Context) (Outcome, error)
}

// Package directory holds the clinic's reference data: hospitals, doctors
// and patient contact details. Booking consults it for consultation fees and
// per-doctor capacity overrides.
package directory

import "strings"

// Hospital is one clinic location.
type Hospital struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// Doctor is a bookable practitioner. DailyCapacity overrides the global
// default when positive; ConsultationFeeCents of zero means no fee on file.
type Doctor struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	HospitalID           string `json:"hospital_id"`
	Specialty            string `json:"specialty,omitempty"`
	ConsultationFeeCents int64  `json:"consultation_fee_cents"`
	DailyCapacity        int    `json:"daily_capacity"`
}

// Validate validates a doctor record before it is stored.
func (d *Doctor) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return ErrMissingDoctorID
	}
	if strings.TrimSpace(d.Name) == "" {
		return ErrMissingDoctorName
	}
	return nil
}

// Patient is the contact record used for offer and booking notifications.
type Patient struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

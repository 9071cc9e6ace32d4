package notify

import (
	"context"
	"fmt"

	"github.com/careflow/clinic-scheduling/internal/appointment"
	"github.com/careflow/clinic-scheduling/internal/directory"
	"github.com/careflow/clinic-scheduling/internal/promotion"
	"github.com/careflow/clinic-scheduling/pkg/logging"
)

// ContactResolver looks up patient contact details.
type ContactResolver interface {
	PatientContact(ctx context.Context, patientID string) (*directory.Patient, error)
}

// Service composes and sends scheduling messages. It implements
// promotion.Notifier.
type Service struct {
	email    EmailSender
	contacts ContactResolver
	// publicBaseURL prefixes offer links in outgoing messages.
	publicBaseURL string
	logger        *logging.Logger
}

func NewService(email EmailSender, contacts ContactResolver, publicBaseURL string, logger *logging.Logger) *Service {
	if email == nil {
		email = NewLogSender(logger)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:         email,
		contacts:      contacts,
		publicBaseURL: publicBaseURL,
		logger:        logger,
	}
}

// OfferOpened tells the patient a slot opened up and how long they have.
func (s *Service) OfferOpened(ctx context.Context, offer *promotion.Offer) error {
	contact, err := s.contact(ctx, offer.PatientID)
	if err != nil {
		return err
	}
	body := fmt.Sprintf(
		"A slot opened up on %s. Accept before %s or the offer passes to the next patient.\n\nAccept: %s/offers/%s/accept",
		offer.DesiredTime.Format("Mon, 02 Jan 2006"),
		offer.Deadline.Format("15:04 MST"),
		s.publicBaseURL, offer.EntryID,
	)
	return s.send(ctx, contact, "A slot opened up for you", body)
}

// BookingConfirmed acknowledges a confirmed appointment.
func (s *Service) BookingConfirmed(ctx context.Context, appt *appointment.Appointment) error {
	contact, err := s.contact(ctx, appt.PatientID)
	if err != nil {
		return err
	}
	body := fmt.Sprintf(
		"Your appointment on %s is confirmed. Reference: %s.",
		appt.ScheduledAt.Format("Mon, 02 Jan 2006 15:04 MST"),
		appt.ID,
	)
	return s.send(ctx, contact, "Appointment confirmed", body)
}

// BookingCancelled acknowledges a cancellation.
func (s *Service) BookingCancelled(ctx context.Context, appt *appointment.Appointment) error {
	contact, err := s.contact(ctx, appt.PatientID)
	if err != nil {
		return err
	}
	body := fmt.Sprintf(
		"Your appointment on %s has been cancelled.",
		appt.ScheduledAt.Format("Mon, 02 Jan 2006 15:04 MST"),
	)
	return s.send(ctx, contact, "Appointment cancelled", body)
}

func (s *Service) contact(ctx context.Context, patientID string) (*directory.Patient, error) {
	if s.contacts == nil {
		return nil, fmt.Errorf("notify: no contact resolver configured")
	}
	contact, err := s.contacts.PatientContact(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("notify: resolve contact: %w", err)
	}
	if contact.Email == "" {
		return nil, fmt.Errorf("notify: patient %s has no email on file", patientID)
	}
	return contact, nil
}

func (s *Service) send(ctx context.Context, contact *directory.Patient, subject, body string) error {
	err := s.email.Send(ctx, EmailMessage{
		To:      contact.Email,
		ToName:  contact.Name,
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		s.logger.Error("notification send failed", "to", contact.Email, "error", err)
	}
	return err
}

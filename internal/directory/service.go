package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/careflow/clinic-scheduling/internal/scheduling"
	"github.com/careflow/clinic-scheduling/pkg/logging"
)

// Service answers directory lookups for the booking flows.
type Service struct {
	repo   Repository
	logger *logging.Logger
}

func NewService(repo Repository, logger *logging.Logger) *Service {
	if repo == nil {
		panic("directory: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// ConsultationFee returns the doctor's fee in cents. Zero with no error
// means no fee is on file; an unknown doctor is reported as such so billing
// can fall back.
func (s *Service) ConsultationFee(ctx context.Context, doctorID string) (int64, error) {
	doc, err := s.repo.GetDoctor(ctx, doctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return doc.ConsultationFeeCents, nil
}

// PatientContact returns the contact record for notifications.
func (s *Service) PatientContact(ctx context.Context, patientID string) (*Patient, error) {
	return s.repo.GetPatient(ctx, patientID)
}

// Doctor returns the doctor by id.
func (s *Service) Doctor(ctx context.Context, id string) (*Doctor, error) {
	return s.repo.GetDoctor(ctx, id)
}

// Doctors lists doctors, optionally scoped to one hospital.
func (s *Service) Doctors(ctx context.Context, hospitalID string) ([]*Doctor, error) {
	return s.repo.ListDoctors(ctx, hospitalID)
}

// Hospitals lists all hospitals.
func (s *Service) Hospitals(ctx context.Context) ([]*Hospital, error) {
	return s.repo.ListHospitals(ctx)
}

// SaveDoctor upserts a doctor record and applies its capacity override.
func (s *Service) SaveDoctor(ctx context.Context, doc *Doctor, tracker *scheduling.CapacityTracker) error {
	if err := s.repo.UpsertDoctor(ctx, doc); err != nil {
		return err
	}
	if tracker != nil && doc.DailyCapacity > 0 {
		tracker.SetCapacity(doc.ID, doc.DailyCapacity)
	}
	return nil
}

// ApplyCapacityOverrides pushes every stored per-doctor capacity into the
// tracker. Called once at startup, after the tracker is primed.
func (s *Service) ApplyCapacityOverrides(ctx context.Context, tracker *scheduling.CapacityTracker) error {
	docs, err := s.repo.ListDoctors(ctx, "")
	if err != nil {
		return fmt.Errorf("directory: capacity overrides: %w", err)
	}
	applied := 0
	for _, doc := range docs {
		if doc.DailyCapacity > 0 {
			tracker.SetCapacity(doc.ID, doc.DailyCapacity)
			applied++
		}
	}
	s.logger.Info("doctor capacity overrides applied", "count", applied)
	return nil
}

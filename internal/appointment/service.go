package appointment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/careflow/clinic-scheduling/internal/events"
	"github.com/careflow/clinic-scheduling/internal/identity"
	"github.com/careflow/clinic-scheduling/internal/observability/metrics"
	"github.com/careflow/clinic-scheduling/internal/payments"
	"github.com/careflow/clinic-scheduling/internal/scheduling"
	"github.com/careflow/clinic-scheduling/pkg/logging"
)

var apptTracer = otel.Tracer("careflow.internal.appointment")

// PaymentDispatcher settles an appointment charge. Satisfied by
// *payments.Dispatcher.
type PaymentDispatcher interface {
	Dispatch(ctx context.Context, method payments.Method, pc payments.Context) (payments.Outcome, error)
}

// AmountResolver decides the billed amount at confirmation time.
type AmountResolver interface {
	Resolve(ctx context.Context, doctorID string, storedAmount int64) int64
}

// EventRecorder appends a scheduling event to the outbox.
type EventRecorder interface {
	Record(ctx context.Context, eventType string, payload any) error
}

// Promoter reacts to freed capacity. Satisfied by *promotion.Engine; wired
// after construction because promotion creates appointments through this
// service.
type Promoter interface {
	OnRelease(ctx context.Context, key scheduling.SlotKey)
}

// Service drives the appointment lifecycle. Payment settlement happens after
// the slot reservation is committed and never under a slot lock.
type Service struct {
	repo       Repository
	tracker    *scheduling.CapacityTracker
	dispatcher PaymentDispatcher
	amounts    AmountResolver
	recorder   EventRecorder
	metrics    *metrics.SchedulingMetrics
	logger     *logging.Logger
	now        func() time.Time

	promoterMu sync.RWMutex
	promoter   Promoter

	// Live reservation handles for bookings made by this process. Bookings
	// reloaded after a restart release through tracker.Adopt instead.
	resMu        sync.Mutex
	reservations map[string]*scheduling.Reservation
}

// NewService constructs the booking service.
func NewService(repo Repository, tracker *scheduling.CapacityTracker, dispatcher PaymentDispatcher, amounts AmountResolver, recorder EventRecorder, m *metrics.SchedulingMetrics, logger *logging.Logger) *Service {
	if repo == nil {
		panic("appointment: repository required")
	}
	if tracker == nil {
		panic("appointment: capacity tracker required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:         repo,
		tracker:      tracker,
		dispatcher:   dispatcher,
		amounts:      amounts,
		recorder:     recorder,
		metrics:      m,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
		reservations: make(map[string]*scheduling.Reservation),
	}
}

// WithNow overrides the clock (for testing).
func (s *Service) WithNow(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// SetPromoter wires the promotion engine once both sides exist.
func (s *Service) SetPromoter(p Promoter) {
	s.promoterMu.Lock()
	s.promoter = p
	s.promoterMu.Unlock()
}

// PrimeCapacity seeds the tracker from storage. Called once at startup.
func (s *Service) PrimeCapacity(ctx context.Context) error {
	counts, err := s.repo.ActiveCountsBySlot(ctx)
	if err != nil {
		return fmt.Errorf("appointment: prime capacity: %w", err)
	}
	for key, booked := range counts {
		s.tracker.Prime(key, booked)
	}
	s.logger.Info("capacity primed from storage", "slots", len(counts))
	return nil
}

// Book reserves capacity and creates a PENDING appointment. On
// ErrCapacityExhausted the caller should offer the waitlist.
func (s *Service) Book(ctx context.Context, ident identity.Identity, req *BookRequest) (*Appointment, error) {
	ctx, span := apptTracer.Start(ctx, "appointment.book")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	key := scheduling.NewSlotKey(req.DoctorID, req.ScheduledAt)
	span.SetAttributes(attribute.String("careflow.slot", key.String()))

	res, err := s.tracker.Reserve(key)
	if err != nil {
		s.metrics.ObserveReservation("exhausted")
		span.RecordError(err)
		return nil, err
	}
	s.metrics.ObserveReservation("reserved")

	appt := &Appointment{
		ID:                uuid.New().String(),
		PatientID:         req.PatientID,
		DoctorID:          req.DoctorID,
		HospitalID:        req.HospitalID,
		ServiceCategoryID: req.ServiceCategoryID,
		ScheduledAt:       req.ScheduledAt.UTC(),
		Status:            StatusPending,
		Priority:          req.Priority,
		CreatedAt:         s.now(),
	}
	if err := s.repo.Create(ctx, appt); err != nil {
		// Undo the reservation: no partial effects on failure.
		if relErr := s.tracker.Release(res); relErr != nil {
			s.logger.Error("release after failed create", "error", relErr)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("appointment: create: %w", err)
	}
	s.trackReservation(appt.ID, res)

	s.recordEvent(ctx, events.TypeAppointmentCreated, events.AppointmentCreatedV1{
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		DoctorID:      appt.DoctorID,
		HospitalID:    appt.HospitalID,
		ScheduledAt:   appt.ScheduledAt,
		Priority:      appt.Priority,
		CreatedAt:     appt.CreatedAt,
	})
	s.logger.Info("appointment booked",
		"appointment_id", appt.ID,
		"slot", key.String(),
		"booked_by", ident.SubjectID,
	)
	return appt, nil
}

// PromotedBooking carries the fields for an appointment created on behalf of
// a promoted waitlist entry.
type PromotedBooking struct {
	PatientID         string
	DoctorID          string
	HospitalID        string
	ServiceCategoryID string
	ScheduledAt       time.Time
	Priority          bool
	// Approved creates the appointment pre-approved, skipping staff review.
	Approved bool
}

// CreatePromoted creates an appointment bound to a reservation the promotion
// engine already holds. On failure the reservation is released here; the
// caller must not release it again.
func (s *Service) CreatePromoted(ctx context.Context, pb PromotedBooking, res *scheduling.Reservation) (*Appointment, error) {
	ctx, span := apptTracer.Start(ctx, "appointment.create_promoted")
	defer span.End()

	status := StatusPending
	if pb.Approved {
		status = StatusApproved
	}
	appt := &Appointment{
		ID:                uuid.New().String(),
		PatientID:         pb.PatientID,
		DoctorID:          pb.DoctorID,
		HospitalID:        pb.HospitalID,
		ServiceCategoryID: pb.ServiceCategoryID,
		ScheduledAt:       pb.ScheduledAt.UTC(),
		Status:            status,
		Priority:          pb.Priority,
		CreatedAt:         s.now(),
	}
	if err := s.repo.Create(ctx, appt); err != nil {
		if relErr := s.tracker.Release(res); relErr != nil {
			s.logger.Error("release after failed promoted create", "error", relErr)
		}
		span.RecordError(err)
		return nil, fmt.Errorf("appointment: create promoted: %w", err)
	}
	s.trackReservation(appt.ID, res)

	s.recordEvent(ctx, events.TypeAppointmentCreated, events.AppointmentCreatedV1{
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		DoctorID:      appt.DoctorID,
		HospitalID:    appt.HospitalID,
		ScheduledAt:   appt.ScheduledAt,
		Priority:      appt.Priority,
		Promoted:      true,
		CreatedAt:     appt.CreatedAt,
	})
	return appt, nil
}

// Get returns the appointment by id.
func (s *Service) Get(ctx context.Context, id string) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// Approve moves PENDING -> APPROVED. Staff only.
func (s *Service) Approve(ctx context.Context, ident identity.Identity, id string) (*Appointment, error) {
	if !ident.IsStaff() {
		return nil, ErrForbidden
	}
	return s.simpleTransition(ctx, id, StatusApproved)
}

// Complete moves CONFIRMED -> COMPLETED after the visit. Staff only.
func (s *Service) Complete(ctx context.Context, ident identity.Identity, id string) (*Appointment, error) {
	if !ident.IsStaff() {
		return nil, ErrForbidden
	}
	appt, err := s.simpleTransition(ctx, id, StatusCompleted)
	if err != nil {
		return nil, err
	}
	s.recordEvent(ctx, events.TypeAppointmentCompleted, events.AppointmentCompletedV1{
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		DoctorID:      appt.DoctorID,
		CompletedAt:   s.now(),
	})
	return appt, nil
}

// Confirm moves APPROVED -> CONFIRMED, dispatching payment settlement. A
// failed settlement leaves the appointment APPROVED and surfaces
// ErrPaymentFailed; Paid and Pending both confirm, Pending awaiting manual
// collection.
func (s *Service) Confirm(ctx context.Context, ident identity.Identity, id string, method payments.Method) (*Appointment, error) {
	ctx, span := apptTracer.Start(ctx, "appointment.confirm")
	defer span.End()
	span.SetAttributes(attribute.String("careflow.appointment_id", id))

	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := CheckTransition(appt.Status, StatusConfirmed); err != nil {
		s.metrics.ObserveTransition(string(StatusConfirmed), "rejected")
		return nil, err
	}

	amount := appt.PaymentAmount
	if s.amounts != nil {
		amount = s.amounts.Resolve(ctx, appt.DoctorID, appt.PaymentAmount)
	}

	outcome := payments.OutcomePending
	if s.dispatcher != nil {
		// The reservation is already committed; settlement latency and
		// failure stay outside any slot lock.
		outcome, err = s.dispatcher.Dispatch(ctx, method, payments.Context{
			AppointmentID: appt.ID,
			PatientID:     appt.PatientID,
			DoctorID:      appt.DoctorID,
			HospitalID:    appt.HospitalID,
			AmountCents:   amount,
			ScheduledAt:   appt.ScheduledAt,
		})
		s.metrics.ObservePaymentDispatch(string(method), string(outcome))
		if outcome == payments.OutcomeFailed {
			s.metrics.ObserveTransition(string(StatusConfirmed), "payment_failed")
			span.RecordError(ErrPaymentFailed)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
			}
			return nil, ErrPaymentFailed
		}
	}

	if err := s.repo.UpdatePayment(ctx, id, string(method), amount); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusConfirmed); err != nil {
		return nil, err
	}
	s.metrics.ObserveTransition(string(StatusConfirmed), "ok")

	appt.Status = StatusConfirmed
	appt.PaymentMethod = string(method)
	appt.PaymentAmount = amount

	s.recordEvent(ctx, events.TypeAppointmentConfirmed, events.AppointmentConfirmedV1{
		AppointmentID:  appt.ID,
		PatientID:      appt.PatientID,
		DoctorID:       appt.DoctorID,
		AmountCents:    amount,
		PaymentMethod:  string(method),
		PaymentOutcome: string(outcome),
		ConfirmedAt:    s.now(),
	})
	s.logger.Info("appointment confirmed",
		"appointment_id", appt.ID,
		"method", method,
		"outcome", outcome,
		"amount_cents", amount,
	)
	return appt, nil
}

// Cancel moves any active appointment to CANCELLED, releases its capacity,
// and fires promotion for the vacated slot. Patients may cancel only their
// own bookings.
func (s *Service) Cancel(ctx context.Context, ident identity.Identity, id string) (*Appointment, error) {
	ctx, span := apptTracer.Start(ctx, "appointment.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("careflow.appointment_id", id))

	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ident.Role == identity.RolePatient && ident.SubjectID != appt.PatientID {
		return nil, ErrForbidden
	}
	if err := CheckTransition(appt.Status, StatusCancelled); err != nil {
		s.metrics.ObserveTransition(string(StatusCancelled), "rejected")
		return nil, err
	}

	if err := s.repo.UpdateStatus(ctx, id, StatusCancelled); err != nil {
		return nil, err
	}
	s.metrics.ObserveTransition(string(StatusCancelled), "ok")
	appt.Status = StatusCancelled

	key := appt.SlotKey()
	s.releaseFor(appt.ID, key)

	s.recordEvent(ctx, events.TypeAppointmentCancelled, events.AppointmentCancelledV1{
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		DoctorID:      appt.DoctorID,
		ScheduledAt:   appt.ScheduledAt,
		CancelledBy:   ident.SubjectID,
		CancelledAt:   s.now(),
	})
	s.logger.Info("appointment cancelled", "appointment_id", appt.ID, "slot", key.String())

	// Promotion happens after the release is recorded. Its failures are the
	// engine's to handle; they never block the cancellation.
	s.firePromoter(ctx, key)
	return appt, nil
}

// Reschedule cancels the appointment and books a new PENDING one at the new
// time. The new slot is reserved before the old one is released; if the new
// reservation fails the original booking is untouched.
func (s *Service) Reschedule(ctx context.Context, ident identity.Identity, id string, newTime time.Time) (*Appointment, error) {
	ctx, span := apptTracer.Start(ctx, "appointment.reschedule")
	defer span.End()
	span.SetAttributes(attribute.String("careflow.appointment_id", id))

	if newTime.IsZero() {
		return nil, ErrMissingSchedule
	}

	old, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ident.Role == identity.RolePatient && ident.SubjectID != old.PatientID {
		return nil, ErrForbidden
	}
	if old.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s -> reschedule", ErrInvalidTransition, old.Status)
	}

	oldKey := old.SlotKey()
	newKey := scheduling.NewSlotKey(old.DoctorID, newTime)

	var newRes *scheduling.Reservation
	sameSlot := newKey == oldKey
	if sameSlot {
		// Same capacity bucket: the booking keeps its unit, only the time
		// moves, so a full day must not make the reschedule fail.
		newRes = s.popReservation(id)
		if newRes == nil {
			newRes = s.tracker.Adopt(newKey)
		}
	} else {
		newRes, err = s.tracker.Reserve(newKey)
		if err != nil {
			s.metrics.ObserveReservation("exhausted")
			span.RecordError(err)
			return nil, err
		}
		s.metrics.ObserveReservation("reserved")
	}

	replacement := &Appointment{
		ID:                uuid.New().String(),
		PatientID:         old.PatientID,
		DoctorID:          old.DoctorID,
		HospitalID:        old.HospitalID,
		ServiceCategoryID: old.ServiceCategoryID,
		ScheduledAt:       newTime.UTC(),
		Status:            StatusPending,
		Priority:          old.Priority,
		CreatedAt:         s.now(),
	}
	if err := s.repo.Create(ctx, replacement); err != nil {
		if !sameSlot {
			if relErr := s.tracker.Release(newRes); relErr != nil {
				s.logger.Error("release after failed reschedule", "error", relErr)
			}
		} else {
			s.trackReservation(id, newRes) // hand the unit back to the original
		}
		return nil, fmt.Errorf("appointment: reschedule create: %w", err)
	}

	if err := s.repo.UpdateStatus(ctx, id, StatusCancelled); err != nil {
		s.logger.Error("reschedule: cancel of original failed", "appointment_id", id, "error", err)
	}
	s.trackReservation(replacement.ID, newRes)

	if !sameSlot {
		s.releaseFor(id, oldKey)
	}

	s.recordEvent(ctx, events.TypeAppointmentCreated, events.AppointmentCreatedV1{
		AppointmentID: replacement.ID,
		PatientID:     replacement.PatientID,
		DoctorID:      replacement.DoctorID,
		HospitalID:    replacement.HospitalID,
		ScheduledAt:   replacement.ScheduledAt,
		Priority:      replacement.Priority,
		CreatedAt:     replacement.CreatedAt,
	})
	s.recordEvent(ctx, events.TypeAppointmentCancelled, events.AppointmentCancelledV1{
		AppointmentID: old.ID,
		PatientID:     old.PatientID,
		DoctorID:      old.DoctorID,
		ScheduledAt:   old.ScheduledAt,
		CancelledBy:   ident.SubjectID,
		CancelledAt:   s.now(),
	})
	s.logger.Info("appointment rescheduled",
		"old_appointment_id", old.ID,
		"new_appointment_id", replacement.ID,
		"slot", newKey.String(),
	)

	if !sameSlot {
		s.firePromoter(ctx, oldKey)
	}
	return replacement, nil
}

// ChangeStatus is the generic transition surface. CONFIRMED uses the
// appointment's stored payment method, defaulting to cash.
func (s *Service) ChangeStatus(ctx context.Context, ident identity.Identity, id string, target Status) (*Appointment, error) {
	switch target {
	case StatusApproved:
		return s.Approve(ctx, ident, id)
	case StatusConfirmed:
		appt, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		method := payments.Method(appt.PaymentMethod)
		if method == "" {
			method = payments.MethodCash
		}
		return s.Confirm(ctx, ident, id, method)
	case StatusCompleted:
		return s.Complete(ctx, ident, id)
	case StatusCancelled:
		return s.Cancel(ctx, ident, id)
	default:
		return nil, fmt.Errorf("%w: -> %s", ErrInvalidTransition, target)
	}
}

// Availability returns the capacity snapshot for a doctor's day.
func (s *Service) Availability(doctorID string, day time.Time) scheduling.Availability {
	return s.tracker.Availability(scheduling.NewSlotKey(doctorID, day))
}

// SetCapacity applies an administrative capacity override. Staff only.
func (s *Service) SetCapacity(ident identity.Identity, doctorID string, capacity int) error {
	if !ident.IsStaff() {
		return ErrForbidden
	}
	s.tracker.SetCapacity(doctorID, capacity)
	return nil
}

func (s *Service) simpleTransition(ctx context.Context, id string, target Status) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := CheckTransition(appt.Status, target); err != nil {
		s.metrics.ObserveTransition(string(target), "rejected")
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, target); err != nil {
		return nil, err
	}
	s.metrics.ObserveTransition(string(target), "ok")
	appt.Status = target
	return appt, nil
}

func (s *Service) trackReservation(apptID string, res *scheduling.Reservation) {
	s.resMu.Lock()
	s.reservations[apptID] = res
	s.resMu.Unlock()
}

func (s *Service) popReservation(apptID string) *scheduling.Reservation {
	s.resMu.Lock()
	defer s.resMu.Unlock()
	res := s.reservations[apptID]
	delete(s.reservations, apptID)
	return res
}

// releaseFor returns the appointment's capacity unit. Stale releases are
// logged and ignored so duplicate cancellation signals stay harmless.
func (s *Service) releaseFor(apptID string, key scheduling.SlotKey) {
	res := s.popReservation(apptID)
	if res == nil {
		res = s.tracker.Adopt(key)
	}
	if err := s.tracker.Release(res); err != nil {
		if errors.Is(err, scheduling.ErrStaleReservation) {
			s.logger.Warn("stale reservation release", "appointment_id", apptID, "slot", key.String())
			return
		}
		s.logger.Error("capacity release failed", "appointment_id", apptID, "error", err)
	}
}

func (s *Service) firePromoter(ctx context.Context, key scheduling.SlotKey) {
	s.promoterMu.RLock()
	p := s.promoter
	s.promoterMu.RUnlock()
	if p == nil {
		return
	}
	p.OnRelease(ctx, key)
}

func (s *Service) recordEvent(ctx context.Context, eventType string, payload any) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, eventType, payload); err != nil {
		s.logger.Error("event record failed", "type", eventType, "error", err)
	}
}

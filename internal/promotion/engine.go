// Package promotion fills freed capacity from the waitlist. On every release
// it reserves the vacated unit, offers it to the best-ranked queued entry,
// and books a placeholder appointment that holds the unit until the patient
// responds or the offer lapses.
package promotion

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/careflow/clinic-scheduling/internal/appointment"
	"github.com/careflow/clinic-scheduling/internal/events"
	"github.com/careflow/clinic-scheduling/internal/identity"
	"github.com/careflow/clinic-scheduling/internal/observability/metrics"
	"github.com/careflow/clinic-scheduling/internal/scheduling"
	"github.com/careflow/clinic-scheduling/internal/waitlist"
	"github.com/careflow/clinic-scheduling/pkg/logging"
)

var promoTracer = otel.Tracer("careflow.internal.promotion")

// Bookings is the slice of the appointment service the engine drives:
// creating the placeholder booking behind an offer, reading it back on
// accept, and cancelling it when the offer closes. Satisfied by
// *appointment.Service.
type Bookings interface {
	CreatePromoted(ctx context.Context, pb appointment.PromotedBooking, res *scheduling.Reservation) (*appointment.Appointment, error)
	Get(ctx context.Context, id string) (*appointment.Appointment, error)
	Cancel(ctx context.Context, ident identity.Identity, id string) (*appointment.Appointment, error)
}

// Notifier tells the patient an offer is open. Satisfied by the notify
// service; nil skips notification.
type Notifier interface {
	OfferOpened(ctx context.Context, offer *Offer) error
}

// EventRecorder appends a scheduling event to the outbox.
type EventRecorder interface {
	Record(ctx context.Context, eventType string, payload any) error
}

// Engine reacts to freed capacity and runs the offer lifecycle. Every open
// offer is backed by a placeholder PENDING appointment that owns the freed
// unit, so the hold is visible in storage, survives restarts through the
// normal capacity priming, and the slot can never be double-filled while a
// patient decides.
type Engine struct {
	queue    *waitlist.Queue
	bookings Bookings
	tracker  *scheduling.CapacityTracker
	offers   OfferStore
	notifier Notifier
	recorder EventRecorder
	metrics  *metrics.SchedulingMetrics
	logger   *logging.Logger
	window   time.Duration
	// autoApprove books the best candidate directly as APPROVED, skipping
	// the offer round-trip. Clinics that pre-screen their waitlist run this.
	autoApprove bool
	now         func() time.Time
}

// Option configures the engine.
type Option func(*Engine)

// WithAutoApprove promotes straight to APPROVED bookings without an offer.
func WithAutoApprove(on bool) Option {
	return func(e *Engine) { e.autoApprove = on }
}

// WithNotifier wires offer notifications.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithRecorder wires the event outbox.
func WithRecorder(r EventRecorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithMetrics wires promotion counters.
func WithMetrics(m *metrics.SchedulingMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithNow overrides the clock (for testing).
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine constructs the promotion engine. window bounds how long a
// promoted patient may sit on an offer before it lapses.
func NewEngine(queue *waitlist.Queue, bookings Bookings, tracker *scheduling.CapacityTracker, offers OfferStore, window time.Duration, logger *logging.Logger, opts ...Option) *Engine {
	if queue == nil {
		panic("promotion: waitlist queue required")
	}
	if bookings == nil {
		panic("promotion: booking creator required")
	}
	if tracker == nil {
		panic("promotion: capacity tracker required")
	}
	if offers == nil {
		offers = NewInMemoryOfferStore()
	}
	if window <= 0 {
		window = 2 * time.Hour
	}
	if logger == nil {
		logger = logging.Default()
	}
	e := &Engine{
		queue:    queue,
		bookings: bookings,
		tracker:  tracker,
		offers:   offers,
		logger:   logger,
		window:   window,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OnRelease claims the freed unit and offers it to the best-ranked live
// entry for the slot. With no candidates the unit goes back to open
// availability. Failures are logged, never propagated: a promotion problem
// must not fail the cancellation that triggered it.
func (e *Engine) OnRelease(ctx context.Context, key scheduling.SlotKey) {
	ctx, span := promoTracer.Start(ctx, "promotion.on_release")
	defer span.End()
	span.SetAttributes(attribute.String("careflow.slot", key.String()))

	res, err := e.tracker.Reserve(key)
	if err != nil {
		// A concurrent booking already took the unit. Nothing to promote.
		return
	}

	entry, err := e.queue.NextCandidate(ctx, key)
	if err != nil {
		e.logger.Error("candidate lookup failed", "slot", key.String(), "error", err)
		e.giveBack(res)
		return
	}
	if entry == nil {
		e.giveBack(res)
		return
	}

	if e.autoApprove {
		e.promoteDirect(ctx, entry, res)
		return
	}
	e.openOffer(ctx, entry, res)
}

// Accept confirms the placeholder booking for the patient. The appointment
// already exists as PENDING from when the offer opened; accepting only marks
// the entry PROMOTED and consumes the offer, so a failure at any step leaves
// both the offer and the booking intact.
func (e *Engine) Accept(ctx context.Context, entryID string) (*appointment.Appointment, error) {
	ctx, span := promoTracer.Start(ctx, "promotion.accept")
	defer span.End()

	offer, err := e.offers.Get(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if offer.Expired(e.now()) {
		// The sweep will reclaim the unit; the patient is too late.
		return nil, ErrOfferNotFound
	}
	appt, err := e.bookings.Get(ctx, offer.AppointmentID)
	if err != nil {
		e.observe("failed")
		return nil, err
	}
	if err := e.queue.MarkPromoted(ctx, entryID); err != nil {
		return nil, err
	}
	if err := e.offers.Delete(ctx, entryID); err != nil {
		e.logger.Error("offer cleanup failed", "entry_id", entryID, "error", err)
	}
	e.observe("accepted")
	e.recordPromoted(ctx, offer, appt.ID)
	e.logger.Info("offer accepted", "entry_id", entryID, "appointment_id", appt.ID)
	return appt, nil
}

// Decline gives up the offer: the entry expires and the unit cascades to the
// next candidate.
func (e *Engine) Decline(ctx context.Context, entryID string) error {
	ctx, span := promoTracer.Start(ctx, "promotion.decline")
	defer span.End()

	offer, err := e.offers.Get(ctx, entryID)
	if err != nil {
		return err
	}
	e.closeOffer(ctx, offer, "declined")
	return nil
}

// ExpireSweep closes every offer whose deadline has passed, cascading each
// freed unit to the next candidate. Returns the number of offers expired.
func (e *Engine) ExpireSweep(ctx context.Context) int {
	ctx, span := promoTracer.Start(ctx, "promotion.expire_sweep")
	defer span.End()

	offers, err := e.offers.List(ctx)
	if err != nil {
		e.logger.Error("offer list failed", "error", err)
		return 0
	}
	now := e.now()
	expired := 0
	for _, offer := range offers {
		if !offer.Expired(now) {
			continue
		}
		e.closeOffer(ctx, offer, "expired")
		expired++
	}
	return expired
}

// openOffer creates the placeholder PENDING appointment that holds the freed
// unit, then records the offer against it. The placeholder is a real stored
// booking, so the hold is counted by capacity priming after a restart.
func (e *Engine) openOffer(ctx context.Context, entry *waitlist.Entry, res *scheduling.Reservation) {
	if err := e.queue.MarkNotified(ctx, entry.ID); err != nil {
		e.logger.Error("mark notified failed", "entry_id", entry.ID, "error", err)
		e.giveBack(res)
		return
	}
	appt, err := e.bookings.CreatePromoted(ctx, appointment.PromotedBooking{
		PatientID:         entry.PatientID,
		DoctorID:          entry.DoctorID,
		HospitalID:        entry.HospitalID,
		ServiceCategoryID: entry.ServiceCategoryID,
		ScheduledAt:       entry.DesiredTime,
		Priority:          entry.Priority,
	}, res)
	if err != nil {
		// CreatePromoted released the reservation on failure.
		e.observe("failed")
		e.logger.Error("placeholder booking failed", "entry_id", entry.ID, "error", err)
		return
	}
	offer := &Offer{
		EntryID:           entry.ID,
		AppointmentID:     appt.ID,
		PatientID:         entry.PatientID,
		DoctorID:          entry.DoctorID,
		HospitalID:        entry.HospitalID,
		ServiceCategoryID: entry.ServiceCategoryID,
		DesiredTime:       entry.DesiredTime,
		Priority:          entry.Priority,
		Deadline:          e.now().Add(e.window),
	}
	if err := e.offers.Save(ctx, offer); err != nil {
		// The patient could never respond to an unstored offer. Close the
		// entry and withdraw the placeholder; cancelling cascades the unit.
		e.logger.Error("offer save failed", "entry_id", entry.ID, "error", err)
		if err := e.queue.MarkExpired(ctx, entry.ID); err != nil && !errors.Is(err, waitlist.ErrInvalidStatusChange) {
			e.logger.Error("mark expired failed", "entry_id", entry.ID, "error", err)
		}
		e.cancelPlaceholder(ctx, appt.ID)
		return
	}

	if e.notifier != nil {
		if err := e.notifier.OfferOpened(ctx, offer); err != nil {
			// The offer stands; the sweep reclaims it if the patient
			// never hears about it and lets it lapse.
			e.logger.Error("offer notification failed", "entry_id", entry.ID, "error", err)
		}
	}
	e.observe("offered")
	e.recordEvent(ctx, events.TypeWaitlistPromoted, events.WaitlistPromotedV1{
		EntryID:       entry.ID,
		AppointmentID: appt.ID,
		PatientID:     entry.PatientID,
		DoctorID:      entry.DoctorID,
		OfferDeadline: offer.Deadline,
		PromotedAt:    e.now(),
	})
	e.logger.Info("offer opened",
		"entry_id", entry.ID,
		"slot", entry.SlotKey().String(),
		"deadline", offer.Deadline,
	)
}

func (e *Engine) promoteDirect(ctx context.Context, entry *waitlist.Entry, res *scheduling.Reservation) {
	if err := e.queue.MarkNotified(ctx, entry.ID); err != nil {
		e.logger.Error("mark notified failed", "entry_id", entry.ID, "error", err)
		e.giveBack(res)
		return
	}
	if err := e.queue.MarkApproved(ctx, entry.ID); err != nil {
		e.logger.Error("mark approved failed", "entry_id", entry.ID, "error", err)
		e.giveBack(res)
		return
	}
	appt, err := e.bookings.CreatePromoted(ctx, appointment.PromotedBooking{
		PatientID:         entry.PatientID,
		DoctorID:          entry.DoctorID,
		HospitalID:        entry.HospitalID,
		ServiceCategoryID: entry.ServiceCategoryID,
		ScheduledAt:       entry.DesiredTime,
		Priority:          entry.Priority,
		Approved:          true,
	}, res)
	if err != nil {
		e.observe("failed")
		e.logger.Error("direct promotion failed", "entry_id", entry.ID, "error", err)
		return
	}
	e.observe("auto_approved")
	e.recordEvent(ctx, events.TypeWaitlistPromoted, events.WaitlistPromotedV1{
		EntryID:       entry.ID,
		AppointmentID: appt.ID,
		PatientID:     entry.PatientID,
		DoctorID:      entry.DoctorID,
		PromotedAt:    e.now(),
	})
	e.logger.Info("waitlist entry auto-promoted", "entry_id", entry.ID, "appointment_id", appt.ID)
}

// closeOffer expires the entry and withdraws the placeholder booking.
// Cancelling the placeholder releases the held unit and fires promotion for
// the slot again, which is the cascade to the next candidate.
func (e *Engine) closeOffer(ctx context.Context, offer *Offer, reason string) {
	if err := e.queue.MarkExpired(ctx, offer.EntryID); err != nil && !errors.Is(err, waitlist.ErrInvalidStatusChange) {
		e.logger.Error("mark expired failed", "entry_id", offer.EntryID, "error", err)
	}
	if err := e.offers.Delete(ctx, offer.EntryID); err != nil {
		e.logger.Error("offer cleanup failed", "entry_id", offer.EntryID, "error", err)
	}
	e.observe(reason)
	e.logger.Info("offer closed", "entry_id", offer.EntryID, "reason", reason)

	e.cancelPlaceholder(ctx, offer.AppointmentID)
}

// cancelPlaceholder withdraws an offer's placeholder booking through the
// normal cancellation path, so the unit is released and re-offered exactly
// like any other cancellation.
func (e *Engine) cancelPlaceholder(ctx context.Context, appointmentID string) {
	if appointmentID == "" {
		return
	}
	if _, err := e.bookings.Cancel(ctx, identity.System(), appointmentID); err != nil {
		e.logger.Error("placeholder cancel failed", "appointment_id", appointmentID, "error", err)
	}
}

func (e *Engine) giveBack(res *scheduling.Reservation) {
	if err := e.tracker.Release(res); err != nil {
		e.logger.Warn("reservation give-back failed", "error", err)
	}
}

func (e *Engine) observe(outcome string) {
	e.metrics.ObservePromotion(outcome)
}

func (e *Engine) recordPromoted(ctx context.Context, offer *Offer, apptID string) {
	e.recordEvent(ctx, events.TypeWaitlistPromoted, events.WaitlistPromotedV1{
		EntryID:       offer.EntryID,
		AppointmentID: apptID,
		PatientID:     offer.PatientID,
		DoctorID:      offer.DoctorID,
		OfferDeadline: offer.Deadline,
		PromotedAt:    e.now(),
	})
}

func (e *Engine) recordEvent(ctx context.Context, eventType string, payload any) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.Record(ctx, eventType, payload); err != nil {
		e.logger.Error("event record failed", "type", eventType, "error", err)
	}
}

package waitlist

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/careflow/clinic-scheduling/internal/events"
	"github.com/careflow/clinic-scheduling/internal/observability/metrics"
	"github.com/careflow/clinic-scheduling/internal/scheduling"
	"github.com/careflow/clinic-scheduling/pkg/logging"
)

// EventRecorder appends a scheduling event to the outbox.
type EventRecorder interface {
	Record(ctx context.Context, eventType string, payload any) error
}

// Queue is the waitlist service: it enqueues desires and selects promotion
// candidates. Expiry is a read-time check; entries past their desired time
// are marked EXPIRED when encountered, not swept by a second loop.
type Queue struct {
	repo     Repository
	recorder EventRecorder
	metrics  *metrics.SchedulingMetrics
	logger   *logging.Logger
	now      func() time.Time
}

// NewQueue creates the waitlist service.
func NewQueue(repo Repository, recorder EventRecorder, logger *logging.Logger) *Queue {
	if repo == nil {
		panic("waitlist: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Queue{
		repo:     repo,
		recorder: recorder,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithNow overrides the clock (for testing).
func (q *Queue) WithNow(now func() time.Time) *Queue {
	if now != nil {
		q.now = now
	}
	return q
}

// WithMetrics wires the waitlist depth gauge.
func (q *Queue) WithMetrics(m *metrics.SchedulingMetrics) *Queue {
	q.metrics = m
	return q
}

// Join appends a QUEUED entry for the request and returns it.
func (q *Queue) Join(ctx context.Context, req *JoinRequest) (*Entry, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:                uuid.New().String(),
		PatientID:         req.PatientID,
		DoctorID:          req.DoctorID,
		HospitalID:        req.HospitalID,
		ServiceCategoryID: req.ServiceCategoryID,
		DesiredTime:       req.DesiredTime.UTC(),
		Priority:          req.Priority,
		Status:            StatusQueued,
		CreatedAt:         q.now(),
	}
	if err := q.repo.Enqueue(ctx, entry); err != nil {
		return nil, fmt.Errorf("waitlist: enqueue: %w", err)
	}
	q.refreshDepth(ctx, entry.SlotKey())

	q.recordEvent(ctx, events.TypeWaitlistJoined, events.WaitlistJoinedV1{
		EntryID:     entry.ID,
		PatientID:   entry.PatientID,
		DoctorID:    entry.DoctorID,
		DesiredTime: entry.DesiredTime,
		Priority:    entry.Priority,
		JoinedAt:    entry.CreatedAt,
	})

	q.logger.Info("waitlist entry queued",
		"entry_id", entry.ID,
		"slot", entry.SlotKey().String(),
		"priority", entry.Priority,
	)
	return entry, nil
}

// Active lists the live entries for a slot in promotion order.
func (q *Queue) Active(ctx context.Context, key scheduling.SlotKey) ([]*Entry, error) {
	return q.repo.ListActive(ctx, key)
}

// Get returns the entry by id.
func (q *Queue) Get(ctx context.Context, id string) (*Entry, error) {
	return q.repo.GetByID(ctx, id)
}

// NextCandidate returns the highest-ranked live entry for the slot, or nil
// when the queue is empty. Entries whose desired time has passed are lazily
// expired and skipped.
func (q *Queue) NextCandidate(ctx context.Context, key scheduling.SlotKey) (*Entry, error) {
	active, err := q.repo.ListActive(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("waitlist: next candidate: %w", err)
	}

	now := q.now()
	for _, entry := range active {
		if entry.DesiredTime.Before(now) {
			if err := q.expire(ctx, entry); err != nil {
				q.logger.Error("lazy expiry failed", "entry_id", entry.ID, "error", err)
			}
			continue
		}
		return entry, nil
	}
	return nil, nil
}

// MarkNotified records that the entry's patient holds an open offer.
func (q *Queue) MarkNotified(ctx context.Context, id string) error {
	return q.transition(ctx, id, StatusNotified, StatusQueued)
}

// MarkPromoted records acceptance of an offer into a pending booking.
func (q *Queue) MarkPromoted(ctx context.Context, id string) error {
	return q.transition(ctx, id, StatusPromoted, StatusNotified)
}

// MarkApproved records promotion straight into a pre-approved booking.
func (q *Queue) MarkApproved(ctx context.Context, id string) error {
	return q.transition(ctx, id, StatusApproved, StatusNotified)
}

// MarkExpired terminates an entry whose offer lapsed or whose desired time
// passed.
func (q *Queue) MarkExpired(ctx context.Context, id string) error {
	entry, err := q.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if entry.Status.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusChange, entry.Status, StatusExpired)
	}
	return q.expire(ctx, entry)
}

func (q *Queue) transition(ctx context.Context, id string, to Status, allowedFrom ...Status) error {
	entry, err := q.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	for _, from := range allowedFrom {
		if entry.Status == from {
			if err := q.repo.UpdateStatus(ctx, id, to); err != nil {
				return err
			}
			q.refreshDepth(ctx, entry.SlotKey())
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusChange, entry.Status, to)
}

func (q *Queue) expire(ctx context.Context, entry *Entry) error {
	if err := q.repo.UpdateStatus(ctx, entry.ID, StatusExpired); err != nil {
		return err
	}
	q.recordEvent(ctx, events.TypeOfferExpired, events.OfferExpiredV1{
		EntryID:   entry.ID,
		PatientID: entry.PatientID,
		DoctorID:  entry.DoctorID,
		ExpiredAt: q.now(),
	})
	q.logger.Info("waitlist entry expired", "entry_id", entry.ID, "slot", entry.SlotKey().String())
	q.refreshDepth(ctx, entry.SlotKey())
	return nil
}

// refreshDepth republishes the live-entry gauge for the slot.
func (q *Queue) refreshDepth(ctx context.Context, key scheduling.SlotKey) {
	if q.metrics == nil {
		return
	}
	active, err := q.repo.ListActive(ctx, key)
	if err != nil {
		q.logger.Warn("waitlist depth refresh failed", "slot", key.String(), "error", err)
		return
	}
	q.metrics.SetWaitlistDepth(key.DoctorID, key.Day, len(active))
}

func (q *Queue) recordEvent(ctx context.Context, eventType string, payload any) {
	if q.recorder == nil {
		return
	}
	if err := q.recorder.Record(ctx, eventType, payload); err != nil {
		q.logger.Error("event record failed", "type", eventType, "error", err)
	}
}

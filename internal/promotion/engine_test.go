package promotion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careflow/clinic-scheduling/internal/appointment"
	"github.com/careflow/clinic-scheduling/internal/identity"
	"github.com/careflow/clinic-scheduling/internal/scheduling"
	"github.com/careflow/clinic-scheduling/internal/waitlist"
)

func identityStaff() identity.Identity {
	return identity.Identity{SubjectID: "staff-1", Role: identity.RoleStaff}
}

var (
	testNow    = time.Date(2026, 9, 10, 9, 0, 0, 0, time.UTC)
	desiredAt  = time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC)
	testWindow = 2 * time.Hour
)

type fixture struct {
	engine  *Engine
	queue   *waitlist.Queue
	tracker *scheduling.CapacityTracker
	svc     *appointment.Service
	repo    *appointment.InMemoryRepository
	offers  *InMemoryOfferStore
	clock   *fakeClock
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newFixture(t *testing.T, capacity int, opts ...Option) *fixture {
	t.Helper()
	clock := &fakeClock{t: testNow}
	tracker := scheduling.NewCapacityTracker(capacity, nil)
	repo := appointment.NewInMemoryRepository()
	svc := appointment.NewService(repo, tracker, nil, nil, nil, nil, nil).WithNow(clock.now)
	queue := waitlist.NewQueue(waitlist.NewInMemoryRepository(), nil, nil).WithNow(clock.now)
	offers := NewInMemoryOfferStore()

	opts = append(opts, WithNow(clock.now))
	engine := NewEngine(queue, svc, tracker, offers, testWindow, nil, opts...)
	svc.SetPromoter(engine)
	return &fixture{engine: engine, queue: queue, tracker: tracker, svc: svc, repo: repo, offers: offers, clock: clock}
}

func (f *fixture) join(t *testing.T, patientID string, priority bool) *waitlist.Entry {
	t.Helper()
	entry, err := f.queue.Join(context.Background(), &waitlist.JoinRequest{
		PatientID:   patientID,
		DoctorID:    "doc-1",
		DesiredTime: desiredAt,
		Priority:    priority,
	})
	require.NoError(t, err)
	return entry
}

func slotKey() scheduling.SlotKey {
	return scheduling.NewSlotKey("doc-1", desiredAt)
}

func TestOnReleaseEmptyQueueReturnsCapacity(t *testing.T) {
	f := newFixture(t, 1)
	res, err := f.tracker.Reserve(slotKey())
	require.NoError(t, err)
	require.NoError(t, f.tracker.Release(res))

	f.engine.OnRelease(context.Background(), slotKey())

	avail := f.tracker.Availability(slotKey())
	assert.Equal(t, 0, avail.Booked)
	assert.Equal(t, 1, avail.Available)
}

func TestOnReleaseOffersToBestRankedEntry(t *testing.T) {
	f := newFixture(t, 1)
	f.clock.advance(time.Millisecond)
	regular := f.join(t, "pat-regular", false)
	f.clock.advance(time.Millisecond)
	urgent := f.join(t, "pat-urgent", true)

	f.engine.OnRelease(context.Background(), slotKey())

	// Priority beats earlier arrival.
	offer, err := f.offers.Get(context.Background(), urgent.ID)
	require.NoError(t, err)
	assert.Equal(t, "pat-urgent", offer.PatientID)
	assert.Equal(t, f.clock.t.Add(testWindow), offer.Deadline)

	_, err = f.offers.Get(context.Background(), regular.ID)
	assert.ErrorIs(t, err, ErrOfferNotFound)

	// The hold is a stored PENDING booking, not just an in-process counter.
	require.NotEmpty(t, offer.AppointmentID)
	placeholder, err := f.repo.GetByID(context.Background(), offer.AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusPending, placeholder.Status)
	assert.Equal(t, "pat-urgent", placeholder.PatientID)

	counts, err := f.repo.ActiveCountsBySlot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts[slotKey()])

	// The unit is held for the offer, not open for walk-ins.
	avail := f.tracker.Availability(slotKey())
	assert.Equal(t, 1, avail.Booked)
	assert.Equal(t, 0, avail.Available)
}

func TestAcceptConfirmsPlaceholderBooking(t *testing.T) {
	f := newFixture(t, 1)
	entry := f.join(t, "pat-1", false)
	f.engine.OnRelease(context.Background(), slotKey())

	offer, err := f.offers.Get(context.Background(), entry.ID)
	require.NoError(t, err)

	appt, err := f.engine.Accept(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, offer.AppointmentID, appt.ID)
	assert.Equal(t, appointment.StatusPending, appt.Status)
	assert.Equal(t, "pat-1", appt.PatientID)

	stored, err := f.repo.GetByID(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusPending, stored.Status)

	// Offer consumed; capacity stays spoken for by the booking.
	_, err = f.offers.Get(context.Background(), entry.ID)
	assert.ErrorIs(t, err, ErrOfferNotFound)
	assert.Equal(t, 1, f.tracker.Availability(slotKey()).Booked)
}

func TestAcceptWithoutOpenOffer(t *testing.T) {
	f := newFixture(t, 1)
	_, err := f.engine.Accept(context.Background(), "never-offered")
	assert.ErrorIs(t, err, ErrOfferNotFound)
}

func TestAcceptAfterDeadlineRejected(t *testing.T) {
	f := newFixture(t, 1)
	entry := f.join(t, "pat-1", false)
	f.engine.OnRelease(context.Background(), slotKey())

	f.clock.advance(testWindow + time.Minute)
	_, err := f.engine.Accept(context.Background(), entry.ID)
	assert.ErrorIs(t, err, ErrOfferNotFound)
}

func TestDeclineCascadesToNextCandidate(t *testing.T) {
	f := newFixture(t, 1)
	first := f.join(t, "pat-1", false)
	f.clock.advance(time.Millisecond)
	second := f.join(t, "pat-2", false)

	f.engine.OnRelease(context.Background(), slotKey())
	declined, err := f.offers.Get(context.Background(), first.ID)
	require.NoError(t, err)
	require.NoError(t, f.engine.Decline(context.Background(), first.ID))

	// The declined placeholder is withdrawn, not left dangling.
	cancelled, err := f.repo.GetByID(context.Background(), declined.AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusCancelled, cancelled.Status)

	// The unit moved straight to the next entry's offer and its placeholder.
	offer, err := f.offers.Get(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, "pat-2", offer.PatientID)
	next, err := f.repo.GetByID(context.Background(), offer.AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusPending, next.Status)
	assert.Equal(t, 1, f.tracker.Availability(slotKey()).Booked)
}

func TestExpireSweepCascadesAndFinallyFrees(t *testing.T) {
	f := newFixture(t, 1)
	first := f.join(t, "pat-1", true)
	f.clock.advance(time.Millisecond)
	second := f.join(t, "pat-2", false)

	f.engine.OnRelease(context.Background(), slotKey())

	// First offer lapses; the sweep hands the unit to the second entry.
	f.clock.advance(testWindow + time.Minute)
	assert.Equal(t, 1, f.engine.ExpireSweep(context.Background()))

	offer, err := f.offers.Get(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, "pat-2", offer.PatientID)

	// Second offer lapses too; nothing left, so the unit opens up.
	f.clock.advance(testWindow + time.Minute)
	assert.Equal(t, 1, f.engine.ExpireSweep(context.Background()))

	avail := f.tracker.Availability(slotKey())
	assert.Equal(t, 0, avail.Booked)
	assert.Equal(t, 1, avail.Available)

	// Both entries ended EXPIRED; accepting either is refused.
	_, err = f.engine.Accept(context.Background(), first.ID)
	assert.ErrorIs(t, err, ErrOfferNotFound)
	_, err = f.engine.Accept(context.Background(), second.ID)
	assert.ErrorIs(t, err, ErrOfferNotFound)
}

func TestExpireSweepIgnoresLiveOffers(t *testing.T) {
	f := newFixture(t, 1)
	entry := f.join(t, "pat-1", false)
	f.engine.OnRelease(context.Background(), slotKey())

	f.clock.advance(testWindow / 2)
	assert.Equal(t, 0, f.engine.ExpireSweep(context.Background()))

	_, err := f.offers.Get(context.Background(), entry.ID)
	assert.NoError(t, err)
}

func TestAutoApprovePromotesDirectly(t *testing.T) {
	f := newFixture(t, 1, WithAutoApprove(true))
	f.join(t, "pat-1", false)

	f.engine.OnRelease(context.Background(), slotKey())

	counts, err := f.repo.ActiveCountsBySlot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, counts[slotKey()])

	// No offer opened; the booking exists already as APPROVED.
	offers, err := f.offers.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, offers)
	assert.Equal(t, 1, f.tracker.Availability(slotKey()).Booked)
}

func TestOnReleaseSkipsWhenWalkInTookTheUnit(t *testing.T) {
	f := newFixture(t, 1)
	f.join(t, "pat-1", false)

	// All capacity consumed before promotion runs.
	_, err := f.tracker.Reserve(slotKey())
	require.NoError(t, err)

	f.engine.OnRelease(context.Background(), slotKey())

	offers, err := f.offers.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, offers)
}

// Cancel on the booking service must drive the whole promotion round-trip.
func TestCancellationTriggersPromotion(t *testing.T) {
	f := newFixture(t, 1)

	booked, err := f.svc.Book(context.Background(), identityStaff(), &appointment.BookRequest{
		PatientID:   "pat-walkin",
		DoctorID:    "doc-1",
		ScheduledAt: desiredAt,
	})
	require.NoError(t, err)

	entry := f.join(t, "pat-waiting", false)

	_, err = f.svc.Cancel(context.Background(), identityStaff(), booked.ID)
	require.NoError(t, err)

	offer, err := f.offers.Get(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "pat-waiting", offer.PatientID)

	appt, err := f.engine.Accept(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "pat-waiting", appt.PatientID)
	assert.Equal(t, 1, f.tracker.Availability(slotKey()).Booked)
}

// An open offer's hold must survive a process restart: the placeholder
// booking is stored, so priming from storage counts it and walk-ins cannot
// steal the unit before the patient responds.
func TestOfferHoldSurvivesRestart(t *testing.T) {
	f := newFixture(t, 1)

	booked, err := f.svc.Book(context.Background(), identityStaff(), &appointment.BookRequest{
		PatientID:   "pat-walkin",
		DoctorID:    "doc-1",
		ScheduledAt: desiredAt,
	})
	require.NoError(t, err)
	entry := f.join(t, "pat-waiting", false)

	_, err = f.svc.Cancel(context.Background(), identityStaff(), booked.ID)
	require.NoError(t, err)

	counts, err := f.repo.ActiveCountsBySlot(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, counts[slotKey()])

	// Fresh tracker, service, and engine over the same storage.
	tracker := scheduling.NewCapacityTracker(1, nil)
	svc := appointment.NewService(f.repo, tracker, nil, nil, nil, nil, nil).WithNow(f.clock.now)
	require.NoError(t, svc.PrimeCapacity(context.Background()))
	engine := NewEngine(f.queue, svc, tracker, f.offers, testWindow, nil, WithNow(f.clock.now))
	svc.SetPromoter(engine)

	avail := tracker.Availability(slotKey())
	assert.Equal(t, 1, avail.Booked)
	assert.Equal(t, 0, avail.Available)

	_, err = svc.Book(context.Background(), identityStaff(), &appointment.BookRequest{
		PatientID:   "pat-late-walkin",
		DoctorID:    "doc-1",
		ScheduledAt: desiredAt,
	})
	assert.ErrorIs(t, err, scheduling.ErrCapacityExhausted)

	appt, err := engine.Accept(context.Background(), entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "pat-waiting", appt.PatientID)
	assert.Equal(t, 1, tracker.Availability(slotKey()).Booked)
}

// A failed accept must not strand the entry: the offer and placeholder stay
// untouched when the status change is refused.
func TestAcceptFailureLeavesOfferAndBookingIntact(t *testing.T) {
	f := newFixture(t, 1)
	entry := f.join(t, "pat-1", false)
	f.engine.OnRelease(context.Background(), slotKey())

	// The entry is closed out from under the engine.
	require.NoError(t, f.queue.MarkExpired(context.Background(), entry.ID))

	_, err := f.engine.Accept(context.Background(), entry.ID)
	assert.ErrorIs(t, err, waitlist.ErrInvalidStatusChange)

	offer, err := f.offers.Get(context.Background(), entry.ID)
	require.NoError(t, err)
	placeholder, err := f.repo.GetByID(context.Background(), offer.AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusPending, placeholder.Status)
}

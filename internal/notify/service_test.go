package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careflow/clinic-scheduling/internal/appointment"
	"github.com/careflow/clinic-scheduling/internal/directory"
	"github.com/careflow/clinic-scheduling/internal/promotion"
)

type capturingSender struct {
	mu   sync.Mutex
	sent []EmailMessage
}

func (c *capturingSender) Send(_ context.Context, msg EmailMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func newTestNotify(t *testing.T) (*Service, *capturingSender) {
	t.Helper()
	repo := directory.NewInMemoryRepository()
	repo.AddPatient(&directory.Patient{ID: "pat-1", Name: "Ngozi", Email: "ngozi@example.com"})
	repo.AddPatient(&directory.Patient{ID: "pat-noemail", Name: "Silent"})
	sender := &capturingSender{}
	svc := NewService(sender, directory.NewService(repo, nil), "https://clinic.example.com", nil)
	return svc, sender
}

func TestOfferOpenedEmailsAcceptLink(t *testing.T) {
	svc, sender := newTestNotify(t)

	err := svc.OfferOpened(context.Background(), &promotion.Offer{
		EntryID:     "e1",
		PatientID:   "pat-1",
		DoctorID:    "doc-1",
		DesiredTime: time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC),
		Deadline:    time.Date(2026, 9, 10, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "ngozi@example.com", msg.To)
	assert.Contains(t, msg.Body, "https://clinic.example.com/offers/e1/accept")
	assert.Contains(t, msg.Body, "14 Sep 2026")
}

func TestBookingConfirmedEmail(t *testing.T) {
	svc, sender := newTestNotify(t)

	err := svc.BookingConfirmed(context.Background(), &appointment.Appointment{
		ID:          "appt-1",
		PatientID:   "pat-1",
		ScheduledAt: time.Date(2026, 9, 14, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Body, "appt-1")
}

func TestMissingEmailFailsWithoutSending(t *testing.T) {
	svc, sender := newTestNotify(t)

	err := svc.BookingCancelled(context.Background(), &appointment.Appointment{
		ID: "appt-1", PatientID: "pat-noemail", ScheduledAt: time.Now(),
	})
	assert.Error(t, err)
	assert.Empty(t, sender.sent)
}

func TestUnknownPatientFails(t *testing.T) {
	svc, sender := newTestNotify(t)

	err := svc.BookingConfirmed(context.Background(), &appointment.Appointment{
		ID: "appt-1", PatientID: "ghost", ScheduledAt: time.Now(),
	})
	assert.Error(t, err)
	assert.Empty(t, sender.sent)
}

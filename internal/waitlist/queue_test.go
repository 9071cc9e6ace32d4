package waitlist

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careflow/clinic-scheduling/internal/observability/metrics"
	"github.com/careflow/clinic-scheduling/internal/scheduling"
)

var fixedNow = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	return NewQueue(NewInMemoryRepository(), nil, nil).WithNow(func() time.Time { return fixedNow })
}

func join(t *testing.T, q *Queue, patientID string, priority bool, desired time.Time) *Entry {
	t.Helper()
	entry, err := q.Join(context.Background(), &JoinRequest{
		PatientID:   patientID,
		DoctorID:    "doc-1",
		DesiredTime: desired,
		Priority:    priority,
	})
	require.NoError(t, err)
	return entry
}

func TestJoinValidation(t *testing.T) {
	q := newTestQueue(t)

	_, err := q.Join(context.Background(), &JoinRequest{DoctorID: "doc-1", DesiredTime: fixedNow})
	assert.ErrorIs(t, err, ErrMissingPatient)

	_, err = q.Join(context.Background(), &JoinRequest{PatientID: "pat-1", DesiredTime: fixedNow})
	assert.ErrorIs(t, err, ErrMissingDoctor)

	_, err = q.Join(context.Background(), &JoinRequest{PatientID: "pat-1", DoctorID: "doc-1"})
	assert.ErrorIs(t, err, ErrMissingDesiredTime)
}

func TestNextCandidateOrdering(t *testing.T) {
	q := newTestQueue(t)
	desired := fixedNow.Add(4 * time.Hour)
	key := scheduling.NewSlotKey("doc-1", desired)

	// priority flags [true, false, true] with createdAt t1 < t2 < t3.
	times := []time.Time{fixedNow, fixedNow.Add(time.Minute), fixedNow.Add(2 * time.Minute)}
	flags := []bool{true, false, true}
	ids := make([]string, 3)
	for i := range flags {
		created := times[i]
		q.WithNow(func() time.Time { return created })
		entry := join(t, q, "pat-"+string(rune('a'+i)), flags[i], desired)
		ids[i] = entry.ID
	}
	q.WithNow(func() time.Time { return fixedNow })

	// Priority entries first, earliest createdAt among equals.
	first, err := q.NextCandidate(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, ids[0], first.ID)

	require.NoError(t, q.MarkNotified(context.Background(), ids[0]))
	require.NoError(t, q.MarkPromoted(context.Background(), ids[0]))

	second, err := q.NextCandidate(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, ids[2], second.ID, "second priority entry outranks the earlier non-priority one")

	require.NoError(t, q.MarkNotified(context.Background(), ids[2]))
	require.NoError(t, q.MarkExpired(context.Background(), ids[2]))

	third, err := q.NextCandidate(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, third)
	assert.Equal(t, ids[1], third.ID)
}

func TestNextCandidateLazyExpiry(t *testing.T) {
	q := newTestQueue(t)
	desired := fixedNow.Add(2 * time.Hour)
	key := scheduling.NewSlotKey("doc-1", desired)

	stale := join(t, q, "pat-old", true, desired)
	fresh := join(t, q, "pat-new", false, desired.Add(time.Hour))

	// Move the clock past the first entry's desired time.
	q.WithNow(func() time.Time { return desired.Add(time.Minute) })

	candidate, err := q.NextCandidate(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, candidate)
	assert.Equal(t, fresh.ID, candidate.ID)

	// The stale entry was expired in passing.
	got, err := q.repo.GetByID(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)
}

func TestNextCandidateEmpty(t *testing.T) {
	q := newTestQueue(t)
	key := scheduling.NewSlotKey("doc-1", fixedNow)

	candidate, err := q.NextCandidate(context.Background(), key)
	require.NoError(t, err)
	assert.Nil(t, candidate)
}

func TestStatusChangeGuards(t *testing.T) {
	q := newTestQueue(t)
	entry := join(t, q, "pat-1", false, fixedNow.Add(time.Hour))

	// PROMOTED requires a prior NOTIFIED.
	err := q.MarkPromoted(context.Background(), entry.ID)
	assert.ErrorIs(t, err, ErrInvalidStatusChange)

	require.NoError(t, q.MarkNotified(context.Background(), entry.ID))
	require.NoError(t, q.MarkPromoted(context.Background(), entry.ID))

	// Terminal entries stay terminal.
	err = q.MarkExpired(context.Background(), entry.ID)
	assert.ErrorIs(t, err, ErrInvalidStatusChange)
	err = q.MarkNotified(context.Background(), entry.ID)
	assert.ErrorIs(t, err, ErrInvalidStatusChange)
}

func TestMarkUnknownEntry(t *testing.T) {
	q := newTestQueue(t)
	err := q.MarkNotified(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestEntriesScopedToSlot(t *testing.T) {
	q := newTestQueue(t)
	desired := fixedNow.Add(3 * time.Hour)

	join(t, q, "pat-1", false, desired)
	otherDay := join(t, q, "pat-2", true, desired.Add(48*time.Hour))

	key := scheduling.NewSlotKey("doc-1", desired)
	candidate, err := q.NextCandidate(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, candidate)
	assert.NotEqual(t, otherDay.ID, candidate.ID)
}

func depthGauge(t *testing.T, reg *prometheus.Registry, key scheduling.SlotKey) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "careflow_scheduling_waitlist_depth" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["doctor_id"] == key.DoctorID && labels["day"] == key.Day {
				return m.GetGauge().GetValue()
			}
		}
	}
	return -1
}

func TestDepthGaugeTracksLiveEntries(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewSchedulingMetrics(reg)
	q := NewQueue(NewInMemoryRepository(), nil, nil).
		WithNow(func() time.Time { return fixedNow }).
		WithMetrics(m)

	desired := fixedNow.Add(4 * time.Hour)
	key := scheduling.NewSlotKey("doc-1", desired)

	first := join(t, q, "pat-1", false, desired)
	join(t, q, "pat-2", true, desired)
	assert.Equal(t, 2.0, depthGauge(t, reg, key))

	// An open offer keeps the entry live.
	require.NoError(t, q.MarkNotified(context.Background(), first.ID))
	assert.Equal(t, 2.0, depthGauge(t, reg, key))

	require.NoError(t, q.MarkExpired(context.Background(), first.ID))
	assert.Equal(t, 1.0, depthGauge(t, reg, key))
}

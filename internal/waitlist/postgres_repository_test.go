package waitlist

import (
	"context"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careflow/clinic-scheduling/internal/scheduling"
)

func TestPostgresListActive(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	key := scheduling.SlotKey{DoctorID: "doc-1", Day: "2025-06-01"}
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{
		"id", "patient_id", "doctor_id", "hospital_id", "service_category_id",
		"desired_time", "priority", "status", "created_at",
	}).
		AddRow("w-1", "pat-1", "doc-1", "hosp-1", "svc-1", now.Add(time.Hour), true, "QUEUED", now).
		AddRow("w-2", "pat-2", "doc-1", "hosp-1", "svc-1", now.Add(time.Hour), false, "NOTIFIED", now)

	mock.ExpectQuery("SELECT id, patient_id").
		WithArgs("doc-1", "2025-06-01").
		WillReturnRows(rows)

	entries, err := repo.ListActive(context.Background(), key)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "w-1", entries[0].ID)
	assert.Equal(t, StatusQueued, entries[0].Status)
	assert.Equal(t, StatusNotified, entries[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateStatusNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)

	mock.ExpectExec("UPDATE waitlist_entries").
		WithArgs("missing", "EXPIRED").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.UpdateStatus(context.Background(), "missing", StatusExpired)
	assert.ErrorIs(t, err, ErrEntryNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEnqueueDerivesSlotDay(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	desired := time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC)
	entry := &Entry{
		ID:          "w-1",
		PatientID:   "pat-1",
		DoctorID:    "doc-1",
		DesiredTime: desired,
		Status:      StatusQueued,
		CreatedAt:   desired.Add(-time.Hour),
	}

	mock.ExpectExec("INSERT INTO waitlist_entries").
		WithArgs("w-1", "pat-1", "doc-1", "", "", desired, "2025-06-01", false, "QUEUED", entry.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Enqueue(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

package waitlist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/careflow/clinic-scheduling/internal/scheduling"
)

// dbConn is the subset of pgxpool.Pool the repository needs; pgxmock
// satisfies it in tests.
type dbConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores waitlist entries in the relational database.
type PostgresRepository struct {
	db dbConn
}

// NewPostgresRepository initializes a repo backed by pgx.
func NewPostgresRepository(db dbConn) *PostgresRepository {
	if db == nil {
		panic("waitlist: db connection required")
	}
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Enqueue(ctx context.Context, entry *Entry) error {
	query := `
		INSERT INTO waitlist_entries
			(id, patient_id, doctor_id, hospital_id, service_category_id, desired_time, slot_day, priority, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if _, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.PatientID,
		entry.DoctorID,
		entry.HospitalID,
		entry.ServiceCategoryID,
		entry.DesiredTime,
		entry.SlotKey().Day,
		entry.Priority,
		string(entry.Status),
		entry.CreatedAt,
	); err != nil {
		return fmt.Errorf("waitlist: insert failed: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Entry, error) {
	query := `
		SELECT id, patient_id, doctor_id, hospital_id, service_category_id, desired_time, priority, status, created_at
		FROM waitlist_entries
		WHERE id = $1
	`
	entry, err := scanEntry(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("waitlist: select failed: %w", err)
	}
	return entry, nil
}

func (r *PostgresRepository) ListActive(ctx context.Context, key scheduling.SlotKey) ([]*Entry, error) {
	query := `
		SELECT id, patient_id, doctor_id, hospital_id, service_category_id, desired_time, priority, status, created_at
		FROM waitlist_entries
		WHERE doctor_id = $1 AND slot_day = $2 AND status IN ('QUEUED', 'NOTIFIED')
		ORDER BY priority DESC, created_at ASC
	`
	rows, err := r.db.Query(ctx, query, key.DoctorID, key.Day)
	if err != nil {
		return nil, fmt.Errorf("waitlist: list active: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("waitlist: scan entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status Status) error {
	ct, err := r.db.Exec(ctx, `UPDATE waitlist_entries SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("waitlist: update status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var entry Entry
	var status string
	if err := row.Scan(
		&entry.ID,
		&entry.PatientID,
		&entry.DoctorID,
		&entry.HospitalID,
		&entry.ServiceCategoryID,
		&entry.DesiredTime,
		&entry.Priority,
		&status,
		&entry.CreatedAt,
	); err != nil {
		return nil, err
	}
	entry.Status = Status(status)
	return &entry, nil
}

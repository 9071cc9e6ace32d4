package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/careflow/clinic-scheduling/internal/scheduling"
)

type dbConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores appointments in the relational database.
// Statuses are normalized on read so legacy rows never leak their historical
// values into the lifecycle logic.
type PostgresRepository struct {
	db dbConn
}

// NewPostgresRepository initializes a repo backed by pgx.
func NewPostgresRepository(db dbConn) *PostgresRepository {
	if db == nil {
		panic("appointment: db connection required")
	}
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, appt *Appointment) error {
	query := `
		INSERT INTO appointments
			(id, patient_id, doctor_id, hospital_id, service_category_id, scheduled_at, slot_day, status, priority, payment_method, payment_amount_cents, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	if _, err := r.db.Exec(ctx, query,
		appt.ID,
		appt.PatientID,
		appt.DoctorID,
		appt.HospitalID,
		appt.ServiceCategoryID,
		appt.ScheduledAt,
		appt.SlotKey().Day,
		string(appt.Status),
		appt.Priority,
		appt.PaymentMethod,
		appt.PaymentAmount,
		appt.CreatedAt,
	); err != nil {
		return fmt.Errorf("appointment: insert failed: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Appointment, error) {
	query := `
		SELECT id, patient_id, doctor_id, hospital_id, service_category_id, scheduled_at, status, priority, payment_method, payment_amount_cents, created_at
		FROM appointments
		WHERE id = $1
	`
	row := r.db.QueryRow(ctx, query, id)
	var appt Appointment
	var status string
	if err := row.Scan(
		&appt.ID,
		&appt.PatientID,
		&appt.DoctorID,
		&appt.HospitalID,
		&appt.ServiceCategoryID,
		&appt.ScheduledAt,
		&status,
		&appt.Priority,
		&appt.PaymentMethod,
		&appt.PaymentAmount,
		&appt.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointment: select failed: %w", err)
	}
	appt.Status = NormalizeStatus(status)
	return &appt, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status Status) error {
	ct, err := r.db.Exec(ctx, `UPDATE appointments SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("appointment: update status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) UpdatePayment(ctx context.Context, id string, method string, amountCents int64) error {
	ct, err := r.db.Exec(ctx,
		`UPDATE appointments SET payment_method = $2, payment_amount_cents = $3 WHERE id = $1`,
		id, method, amountCents,
	)
	if err != nil {
		return fmt.Errorf("appointment: update payment: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) ActiveCountsBySlot(ctx context.Context) (map[scheduling.SlotKey]int, error) {
	// Legacy SCHEDULED rows are still active; REJECTED rows are not.
	query := `
		SELECT doctor_id, slot_day, count(*)
		FROM appointments
		WHERE status IN ('PENDING', 'APPROVED', 'CONFIRMED', 'SCHEDULED')
		GROUP BY doctor_id, slot_day
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("appointment: active counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[scheduling.SlotKey]int)
	for rows.Next() {
		var doctorID, day string
		var n int
		if err := rows.Scan(&doctorID, &day, &n); err != nil {
			return nil, fmt.Errorf("appointment: scan counts: %w", err)
		}
		counts[scheduling.SlotKey{DoctorID: doctorID, Day: day}] = n
	}
	return counts, rows.Err()
}

package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type dbConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores directory data in the relational database.
type PostgresRepository struct {
	db dbConn
}

// NewPostgresRepository initializes a repo backed by pgx.
func NewPostgresRepository(db dbConn) *PostgresRepository {
	if db == nil {
		panic("directory: db connection required")
	}
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) UpsertDoctor(ctx context.Context, doc *Doctor) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	query := `
		INSERT INTO doctors (id, name, hospital_id, specialty, consultation_fee_cents, daily_capacity)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			hospital_id = EXCLUDED.hospital_id,
			specialty = EXCLUDED.specialty,
			consultation_fee_cents = EXCLUDED.consultation_fee_cents,
			daily_capacity = EXCLUDED.daily_capacity
	`
	if _, err := r.db.Exec(ctx, query,
		doc.ID, doc.Name, doc.HospitalID, doc.Specialty, doc.ConsultationFeeCents, doc.DailyCapacity,
	); err != nil {
		return fmt.Errorf("directory: upsert doctor: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetDoctor(ctx context.Context, id string) (*Doctor, error) {
	query := `
		SELECT id, name, hospital_id, specialty, consultation_fee_cents, daily_capacity
		FROM doctors WHERE id = $1
	`
	var doc Doctor
	err := r.db.QueryRow(ctx, query, id).Scan(
		&doc.ID, &doc.Name, &doc.HospitalID, &doc.Specialty, &doc.ConsultationFeeCents, &doc.DailyCapacity,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("directory: select doctor: %w", err)
	}
	return &doc, nil
}

func (r *PostgresRepository) ListDoctors(ctx context.Context, hospitalID string) ([]*Doctor, error) {
	query := `
		SELECT id, name, hospital_id, specialty, consultation_fee_cents, daily_capacity
		FROM doctors
		WHERE ($1 = '' OR hospital_id = $1)
		ORDER BY name
	`
	rows, err := r.db.Query(ctx, query, hospitalID)
	if err != nil {
		return nil, fmt.Errorf("directory: list doctors: %w", err)
	}
	defer rows.Close()

	var docs []*Doctor
	for rows.Next() {
		var doc Doctor
		if err := rows.Scan(
			&doc.ID, &doc.Name, &doc.HospitalID, &doc.Specialty, &doc.ConsultationFeeCents, &doc.DailyCapacity,
		); err != nil {
			return nil, fmt.Errorf("directory: scan doctor: %w", err)
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

func (r *PostgresRepository) GetHospital(ctx context.Context, id string) (*Hospital, error) {
	var h Hospital
	err := r.db.QueryRow(ctx, `SELECT id, name, address FROM hospitals WHERE id = $1`, id).
		Scan(&h.ID, &h.Name, &h.Address)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrHospitalNotFound
		}
		return nil, fmt.Errorf("directory: select hospital: %w", err)
	}
	return &h, nil
}

func (r *PostgresRepository) ListHospitals(ctx context.Context) ([]*Hospital, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, address FROM hospitals ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("directory: list hospitals: %w", err)
	}
	defer rows.Close()

	var hs []*Hospital
	for rows.Next() {
		var h Hospital
		if err := rows.Scan(&h.ID, &h.Name, &h.Address); err != nil {
			return nil, fmt.Errorf("directory: scan hospital: %w", err)
		}
		hs = append(hs, &h)
	}
	return hs, rows.Err()
}

func (r *PostgresRepository) GetPatient(ctx context.Context, id string) (*Patient, error) {
	var p Patient
	err := r.db.QueryRow(ctx, `SELECT id, name, email, phone FROM patients WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Email, &p.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("directory: select patient: %w", err)
	}
	return &p, nil
}

// Package ops serves the operational reporting surface for clinic staff:
// booking volumes, revenue and live scheduling metrics.
package ops

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// BookingVolumeDay is one day of booking funnel counts.
type BookingVolumeDay struct {
	Day          time.Time `json:"-"`
	DayLabel     string    `json:"day"`
	Booked       int64     `json:"booked"`
	Completed    int64     `json:"completed"`
	Cancelled    int64     `json:"cancelled"`
	RevenueCents int64     `json:"revenue_cents"`
}

// DoctorLoad is one doctor's standing demand.
type DoctorLoad struct {
	DoctorID      string `json:"doctor_id"`
	ActiveCount   int64  `json:"active_appointments"`
	WaitlistDepth int64  `json:"waitlist_depth"`
}

// ReportRepository reads aggregate reporting queries. It runs over
// database/sql with the pq driver, separate from the transactional pgx pool,
// so heavy reporting reads never contend for booking connections.
type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	if db == nil {
		panic("ops: sql.DB required")
	}
	return &ReportRepository{db: db}
}

// Revenue counts amounts on appointments that reached settlement.
var revenueStatuses = []string{"CONFIRMED", "COMPLETED"}

// BookingVolumeByDay returns the booking funnel per created day.
func (r *ReportRepository) BookingVolumeByDay(ctx context.Context, start, end time.Time) ([]BookingVolumeDay, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("ops: invalid time range")
	}
	query := `
		SELECT date_trunc('day', created_at) AS day,
		       COUNT(*) AS booked,
		       COUNT(*) FILTER (WHERE status = 'COMPLETED') AS completed,
		       COUNT(*) FILTER (WHERE status IN ('CANCELLED', 'REJECTED')) AS cancelled,
		       COALESCE(SUM(payment_amount_cents) FILTER (WHERE status = ANY($3)), 0) AS revenue_cents
		FROM appointments
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY day
		ORDER BY day
	`
	rows, err := r.db.QueryContext(ctx, query, start, end, pq.Array(revenueStatuses))
	if err != nil {
		return nil, fmt.Errorf("ops: query booking volume: %w", err)
	}
	defer rows.Close()

	var out []BookingVolumeDay
	for rows.Next() {
		var d BookingVolumeDay
		if err := rows.Scan(&d.Day, &d.Booked, &d.Completed, &d.Cancelled, &d.RevenueCents); err != nil {
			return nil, fmt.Errorf("ops: scan booking volume: %w", err)
		}
		d.Day = d.Day.UTC()
		d.DayLabel = d.Day.Format("2006-01-02")
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ops: iterate booking volume: %w", err)
	}
	return out, nil
}

// DoctorLoads returns active bookings and waitlist depth per doctor.
func (r *ReportRepository) DoctorLoads(ctx context.Context) ([]DoctorLoad, error) {
	query := `
		SELECT a.doctor_id,
		       COUNT(*) FILTER (WHERE a.status = ANY($1)) AS active,
		       COALESCE(w.depth, 0) AS waitlist_depth
		FROM appointments a
		LEFT JOIN (
			SELECT doctor_id, COUNT(*) AS depth
			FROM waitlist_entries
			WHERE status IN ('QUEUED', 'NOTIFIED')
			GROUP BY doctor_id
		) w ON w.doctor_id = a.doctor_id
		GROUP BY a.doctor_id, w.depth
		ORDER BY a.doctor_id
	`
	active := []string{"PENDING", "APPROVED", "CONFIRMED", "SCHEDULED"}
	rows, err := r.db.QueryContext(ctx, query, pq.Array(active))
	if err != nil {
		return nil, fmt.Errorf("ops: query doctor loads: %w", err)
	}
	defer rows.Close()

	var out []DoctorLoad
	for rows.Next() {
		var d DoctorLoad
		if err := rows.Scan(&d.DoctorID, &d.ActiveCount, &d.WaitlistDepth); err != nil {
			return nil, fmt.Errorf("ops: scan doctor loads: %w", err)
		}
		out = append(out, d)
	}
	if out == nil {
		out = []DoctorLoad{}
	}
	return out, rows.Err()
}

// FillMissingDays pads the volume series so charts render every day in the
// window, zeroed where nothing happened.
func FillMissingDays(existing []BookingVolumeDay, start, end time.Time) []BookingVolumeDay {
	startDay := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	endDay := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)

	lookup := map[string]BookingVolumeDay{}
	for _, d := range existing {
		lookup[d.Day.Format("2006-01-02")] = d
	}

	out := make([]BookingVolumeDay, 0, int(endDay.Sub(startDay).Hours()/24)+1)
	for day := startDay; day.Before(endDay); day = day.AddDate(0, 0, 1) {
		key := day.Format("2006-01-02")
		if found, ok := lookup[key]; ok {
			out = append(out, found)
			continue
		}
		out = append(out, BookingVolumeDay{Day: day, DayLabel: key})
	}
	return out
}

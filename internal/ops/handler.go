package ops

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/careflow/clinic-scheduling/pkg/logging"
)

// Handler serves the staff reporting endpoints.
type Handler struct {
	repo     *ReportRepository
	gatherer prometheus.Gatherer
	logger   *logging.Logger
}

func NewHandler(repo *ReportRepository, gatherer prometheus.Gatherer, logger *logging.Logger) *Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{repo: repo, gatherer: gatherer, logger: logger}
}

// Routes mounts the reporting endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/ops/report", h.Report)
	r.Get("/ops/doctors", h.Doctors)
	r.Get("/ops/scheduling", h.Scheduling)
}

type reportResponse struct {
	PeriodStart string             `json:"period_start"`
	PeriodEnd   string             `json:"period_end"`
	Daily       []BookingVolumeDay `json:"daily"`
}

// Report returns the booking funnel per day.
// Query params: start/end as RFC3339 (both or neither), or days (default 7).
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		http.Error(w, `{"error":"reporting disabled (db not configured)"}`, http.StatusServiceUnavailable)
		return
	}
	start, end, err := parseReportWindow(r)
	if err != nil {
		http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
		return
	}
	daily, err := h.repo.BookingVolumeByDay(r.Context(), start, end)
	if err != nil {
		h.logger.Error("booking volume query failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	resp := reportResponse{
		PeriodStart: start.Format(time.RFC3339),
		PeriodEnd:   end.Format(time.RFC3339),
		Daily:       FillMissingDays(daily, start, end),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// Doctors returns active load and waitlist depth per doctor.
func (h *Handler) Doctors(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		http.Error(w, `{"error":"reporting disabled (db not configured)"}`, http.StatusServiceUnavailable)
		return
	}
	loads, err := h.repo.DoctorLoads(r.Context())
	if err != nil {
		h.logger.Error("doctor loads query failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(loads)
}

// Scheduling returns the live metrics summary.
func (h *Handler) Scheduling(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(SnapshotScheduling(h.gatherer))
}

func parseReportWindow(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()

	startRaw := strings.TrimSpace(q.Get("start"))
	endRaw := strings.TrimSpace(q.Get("end"))
	if (startRaw == "") != (endRaw == "") {
		return time.Time{}, time.Time{}, errBothOrNeither
	}
	if startRaw != "" {
		start, err := time.Parse(time.RFC3339, startRaw)
		if err != nil {
			return time.Time{}, time.Time{}, errBadStart
		}
		end, err := time.Parse(time.RFC3339, endRaw)
		if err != nil {
			return time.Time{}, time.Time{}, errBadEnd
		}
		if !end.After(start) {
			return time.Time{}, time.Time{}, errEndBeforeStart
		}
		return start.UTC(), end.UTC(), nil
	}

	days := 7
	if raw := strings.TrimSpace(q.Get("days")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 90 {
			return time.Time{}, time.Time{}, errBadDays
		}
		days = parsed
	}

	now := time.Now().UTC()
	end := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	return end.AddDate(0, 0, -days), end, nil
}

package waitlist

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/careflow/clinic-scheduling/internal/identity"
	"github.com/careflow/clinic-scheduling/internal/scheduling"
	"github.com/careflow/clinic-scheduling/pkg/logging"
)

// Handler exposes the waitlist over HTTP.
type Handler struct {
	queue  *Queue
	logger *logging.Logger
}

func NewHandler(queue *Queue, logger *logging.Logger) *Handler {
	if queue == nil {
		panic("waitlist: queue required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{queue: queue, logger: logger}
}

// Routes mounts the waitlist endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/waitlist", h.Join)
	r.Get("/waitlist", h.List)
	r.Get("/waitlist/{id}", h.Get)
}

type joinPayload struct {
	PatientID         string    `json:"patient_id"`
	DoctorID          string    `json:"doctor_id"`
	HospitalID        string    `json:"hospital_id"`
	ServiceCategoryID string    `json:"service_category_id"`
	DesiredTime       time.Time `json:"desired_time"`
	Priority          bool      `json:"priority"`
}

func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	var body joinPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ident := identity.FromContext(r.Context())
	req := &JoinRequest{
		PatientID:         body.PatientID,
		DoctorID:          body.DoctorID,
		HospitalID:        body.HospitalID,
		ServiceCategoryID: body.ServiceCategoryID,
		DesiredTime:       body.DesiredTime,
		Priority:          body.Priority,
	}
	if ident.Role == identity.RolePatient {
		req.PatientID = ident.SubjectID
		// Priority is a clinical judgement, not a self-service flag.
		req.Priority = false
	}

	entry, err := h.queue.Join(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, entry)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	doctorID := r.URL.Query().Get("doctor_id")
	dateStr := r.URL.Query().Get("date")
	if doctorID == "" || dateStr == "" {
		h.writeError(w, http.StatusBadRequest, "doctor_id and date are required")
		return
	}
	if _, err := time.Parse(scheduling.DayFormat, dateStr); err != nil {
		h.writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	entries, err := h.queue.Active(r.Context(), scheduling.SlotKey{DoctorID: doctorID, Day: dateStr})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []*Entry{}
	}
	h.writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	entry, err := h.queue.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEntryNotFound):
		h.writeError(w, http.StatusNotFound, "waitlist entry not found")
	case errors.Is(err, ErrMissingPatient), errors.Is(err, ErrMissingDoctor), errors.Is(err, ErrMissingDesiredTime):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidStatusChange):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.logger.Error("waitlist handler error", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

package appointment

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/careflow/clinic-scheduling/internal/identity"
	"github.com/careflow/clinic-scheduling/internal/payments"
	"github.com/careflow/clinic-scheduling/internal/scheduling"
	"github.com/careflow/clinic-scheduling/pkg/logging"
)

// Handler exposes the appointment lifecycle over HTTP.
type Handler struct {
	svc    *Service
	logger *logging.Logger
}

func NewHandler(svc *Service, logger *logging.Logger) *Handler {
	if svc == nil {
		panic("appointment: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts the appointment endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/appointments", h.Book)
	r.Get("/appointments/{id}", h.Get)
	r.Post("/appointments/{id}/approve", h.Approve)
	r.Post("/appointments/{id}/confirm", h.Confirm)
	r.Post("/appointments/{id}/complete", h.Complete)
	r.Post("/appointments/{id}/cancel", h.Cancel)
	r.Post("/appointments/{id}/reschedule", h.Reschedule)
	r.Patch("/appointments/{id}/status", h.ChangeStatus)
	r.Get("/availability", h.Availability)
}

type bookPayload struct {
	PatientID         string    `json:"patient_id"`
	DoctorID          string    `json:"doctor_id"`
	HospitalID        string    `json:"hospital_id"`
	ServiceCategoryID string    `json:"service_category_id"`
	ScheduledAt       time.Time `json:"scheduled_at"`
	Priority          bool      `json:"priority"`
}

func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	var body bookPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ident := identity.FromContext(r.Context())
	req := &BookRequest{
		PatientID:         body.PatientID,
		DoctorID:          body.DoctorID,
		HospitalID:        body.HospitalID,
		ServiceCategoryID: body.ServiceCategoryID,
		ScheduledAt:       body.ScheduledAt,
		Priority:          body.Priority,
	}
	// Patients book for themselves regardless of what the body claims.
	if ident.Role == identity.RolePatient {
		req.PatientID = ident.SubjectID
	}

	appt, err := h.svc.Book(r.Context(), ident, req)
	if err != nil {
		if errors.Is(err, scheduling.ErrCapacityExhausted) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":    "doctor is fully booked for that day",
				"waitlist": true,
			})
			return
		}
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	appt, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	ident := identity.FromContext(r.Context())
	appt, err := h.svc.Approve(r.Context(), ident, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

type confirmPayload struct {
	PaymentMethod string `json:"payment_method"`
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	var body confirmPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	method, err := payments.ParseMethod(body.PaymentMethod)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unknown payment method")
		return
	}
	ident := identity.FromContext(r.Context())
	appt, err := h.svc.Confirm(r.Context(), ident, chi.URLParam(r, "id"), method)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	ident := identity.FromContext(r.Context())
	appt, err := h.svc.Complete(r.Context(), ident, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	ident := identity.FromContext(r.Context())
	appt, err := h.svc.Cancel(r.Context(), ident, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

type reschedulePayload struct {
	ScheduledAt time.Time `json:"scheduled_at"`
}

func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	var body reschedulePayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ident := identity.FromContext(r.Context())
	appt, err := h.svc.Reschedule(r.Context(), ident, chi.URLParam(r, "id"), body.ScheduledAt)
	if err != nil {
		if errors.Is(err, scheduling.ErrCapacityExhausted) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":    "doctor is fully booked for that day",
				"waitlist": true,
			})
			return
		}
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

type changeStatusPayload struct {
	Status string `json:"status"`
}

func (h *Handler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	var body changeStatusPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ident := identity.FromContext(r.Context())
	target := NormalizeStatus(body.Status)
	appt, err := h.svc.ChangeStatus(r.Context(), ident, chi.URLParam(r, "id"), target)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	doctorID := r.URL.Query().Get("doctor_id")
	dateStr := r.URL.Query().Get("date")
	if doctorID == "" || dateStr == "" {
		writeError(w, http.StatusBadRequest, "doctor_id and date are required")
		return
	}
	day, err := time.Parse(scheduling.DayFormat, dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	avail := h.svc.Availability(doctorID, day)
	writeJSON(w, http.StatusOK, map[string]any{
		"doctor_id": doctorID,
		"date":      dateStr,
		"capacity":  avail.Capacity,
		"booked":    avail.Booked,
		"available": avail.Available,
	})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment not found")
	case errors.Is(err, ErrForbidden):
		writeError(w, http.StatusForbidden, "not allowed")
	case errors.Is(err, ErrInvalidTransition):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrPaymentFailed):
		writeError(w, http.StatusPaymentRequired, "payment was declined")
	case errors.Is(err, ErrMissingPatient), errors.Is(err, ErrMissingDoctor), errors.Is(err, ErrMissingSchedule):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("appointment handler error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

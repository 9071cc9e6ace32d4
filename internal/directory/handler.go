package directory

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/careflow/clinic-scheduling/internal/identity"
	"github.com/careflow/clinic-scheduling/internal/scheduling"
	"github.com/careflow/clinic-scheduling/pkg/logging"
)

// Handler exposes the directory over HTTP.
type Handler struct {
	svc     *Service
	tracker *scheduling.CapacityTracker
	logger  *logging.Logger
}

func NewHandler(svc *Service, tracker *scheduling.CapacityTracker, logger *logging.Logger) *Handler {
	if svc == nil {
		panic("directory: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{svc: svc, tracker: tracker, logger: logger}
}

// Routes mounts the directory endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/hospitals", h.ListHospitals)
	r.Get("/doctors", h.ListDoctors)
	r.Get("/doctors/{id}", h.GetDoctor)
	r.Put("/doctors/{id}", h.SaveDoctor)
}

func (h *Handler) ListHospitals(w http.ResponseWriter, r *http.Request) {
	hs, err := h.svc.Hospitals(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if hs == nil {
		hs = []*Hospital{}
	}
	h.writeJSON(w, http.StatusOK, hs)
}

func (h *Handler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.Doctors(r.Context(), r.URL.Query().Get("hospital_id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if docs == nil {
		docs = []*Doctor{}
	}
	h.writeJSON(w, http.StatusOK, docs)
}

func (h *Handler) GetDoctor(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.Doctor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) SaveDoctor(w http.ResponseWriter, r *http.Request) {
	if !identity.FromContext(r.Context()).IsStaff() {
		h.writeError(w, http.StatusForbidden, "not allowed")
		return
	}
	var doc Doctor
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	doc.ID = chi.URLParam(r, "id")
	if err := h.svc.SaveDoctor(r.Context(), &doc, h.tracker); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, &doc)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrDoctorNotFound), errors.Is(err, ErrHospitalNotFound), errors.Is(err, ErrPatientNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrMissingDoctorID), errors.Is(err, ErrMissingDoctorName):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("directory handler error", "error", err)
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

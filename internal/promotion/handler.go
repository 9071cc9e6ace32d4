package promotion

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/careflow/clinic-scheduling/internal/waitlist"
	"github.com/careflow/clinic-scheduling/pkg/logging"
)

// Handler exposes the offer round-trip over HTTP.
type Handler struct {
	engine *Engine
	logger *logging.Logger
}

func NewHandler(engine *Engine, logger *logging.Logger) *Handler {
	if engine == nil {
		panic("promotion: engine required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{engine: engine, logger: logger}
}

// Routes mounts the offer endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/offers/{entryID}", h.Get)
	r.Post("/offers/{entryID}/accept", h.Accept)
	r.Post("/offers/{entryID}/decline", h.Decline)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	offer, err := h.engine.offers.Get(r.Context(), chi.URLParam(r, "entryID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, offer)
}

func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	appt, err := h.engine.Accept(r.Context(), chi.URLParam(r, "entryID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, appt)
}

func (h *Handler) Decline(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Decline(r.Context(), chi.URLParam(r, "entryID")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrOfferNotFound):
		h.writeError(w, http.StatusNotFound, "no open offer")
	case errors.Is(err, waitlist.ErrEntryNotFound):
		h.writeError(w, http.StatusNotFound, "waitlist entry not found")
	case errors.Is(err, waitlist.ErrInvalidStatusChange):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("offer handler error", "error", err)
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

// Package router assembles the HTTP surface: public booking and waitlist
// endpoints, staff reporting, and operational plumbing.
package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/careflow/clinic-scheduling/internal/appointment"
	"github.com/careflow/clinic-scheduling/internal/directory"
	httpmiddleware "github.com/careflow/clinic-scheduling/internal/http/middleware"
	"github.com/careflow/clinic-scheduling/internal/ops"
	"github.com/careflow/clinic-scheduling/internal/promotion"
	"github.com/careflow/clinic-scheduling/internal/waitlist"
	"github.com/careflow/clinic-scheduling/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	AppointmentHandler *appointment.Handler
	WaitlistHandler    *waitlist.Handler
	OfferHandler       *promotion.Handler
	DirectoryHandler   *directory.Handler
	OpsHandler         *ops.Handler
	MetricsHandler     http.Handler

	AuthSecret         string
	CORSAllowedOrigins []string

	// Booking endpoints sit behind this limiter when set.
	BookingLimiter httpmiddleware.Limiter
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Group(func(api chi.Router) {
		api.Use(httpmiddleware.Authenticate(cfg.AuthSecret))
		if cfg.BookingLimiter != nil {
			api.Use(httpmiddleware.RateLimit(cfg.BookingLimiter))
		}

		if cfg.AppointmentHandler != nil {
			api.Group(cfg.AppointmentHandler.Routes)
		}
		if cfg.WaitlistHandler != nil {
			api.Group(cfg.WaitlistHandler.Routes)
		}
		if cfg.OfferHandler != nil {
			api.Group(cfg.OfferHandler.Routes)
		}
		if cfg.DirectoryHandler != nil {
			api.Group(cfg.DirectoryHandler.Routes)
		}

		if cfg.OpsHandler != nil {
			api.Group(func(staff chi.Router) {
				staff.Use(httpmiddleware.RequireStaff)
				staff.Group(cfg.OpsHandler.Routes)
			})
		}
	})

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

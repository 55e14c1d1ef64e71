package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vendora-app/vendora/internal/http/handlers"
	httpmiddleware "github.com/vendora-app/vendora/internal/http/middleware"
	"github.com/vendora-app/vendora/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger          *logging.Logger
	Appointments    *handlers.AppointmentsHandler
	Services        *handlers.ServicesHandler
	MetricsHandler  http.Handler
	PortalJWTSecret string

	// Requests/sec and burst per client IP for the booking API.
	RateLimitPerSec float64
	RateLimitBurst  int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(api chi.Router) {
		if cfg.RateLimitPerSec > 0 {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSec, cfg.RateLimitBurst))
		}

		if cfg.Services != nil {
			api.Route("/stores", cfg.Services.RegisterRoutes)
		}
		if cfg.Appointments != nil {
			api.Route("/appointments", func(appts chi.Router) {
				if cfg.PortalJWTSecret != "" {
					appts.Use(httpmiddleware.PortalJWT(cfg.PortalJWTSecret))
				}
				cfg.Appointments.RegisterRoutes(appts)
			})
		}
	})

	return r
}

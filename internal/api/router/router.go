package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/http/handlers"
	httpmiddleware "github.com/Innovatel-Q/malaikasante-main-backend-sub000/internal/http/middleware"
	"github.com/Innovatel-Q/malaikasante-main-backend-sub000/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	Scheduling     *handlers.SchedulingHandler
	AuthSecret     string
	RateLimiter    *httpmiddleware.RateLimiter
	MetricsHandler http.Handler
	Health         http.HandlerFunc
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		health := cfg.Health
		if health == nil {
			health = handlers.HealthCheck(nil)
		}
		public.Get("/health", health)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	if cfg.Scheduling == nil {
		return r
	}
	h := cfg.Scheduling

	// Authenticated scheduling API
	r.Route("/v1", func(api chi.Router) {
		api.Use(httpmiddleware.Actor(cfg.AuthSecret))

		api.Route("/providers/{providerID}", func(p chi.Router) {
			p.Get("/slots", h.ListSlots)
			p.Get("/rules", h.ListRules)
			p.Get("/leaves", h.ListLeaves)
			p.Group(func(w chi.Router) {
				useRateLimit(w, cfg.RateLimiter)
				w.Post("/rules", h.CreateRule)
				w.Post("/leaves", h.AddLeave)
			})
		})

		api.Route("/bookings", func(b chi.Router) {
			b.Get("/{bookingID}", h.GetBooking)
			b.Get("/{bookingID}/history", h.BookingHistory)
			b.Group(func(w chi.Router) {
				useRateLimit(w, cfg.RateLimiter)
				w.Post("/", h.CreateBooking)
				w.Post("/{bookingID}/respond", h.RespondToBooking)
				w.Post("/{bookingID}/cancel", h.CancelBooking)
				w.Post("/{bookingID}/reschedule", h.RescheduleBooking)
				w.Post("/{bookingID}/complete", h.CompleteBooking)
			})
		})

		api.Group(func(w chi.Router) {
			useRateLimit(w, cfg.RateLimiter)
			w.Put("/rules/{ruleID}", h.UpdateRule)
			w.Delete("/rules/{ruleID}", h.DisableRule)
			w.Delete("/leaves/{leaveID}", h.RemoveLeave)
			w.Post("/leaves/{leaveID}/sweep", h.SweepLeave)
		})
	})

	return r
}

func useRateLimit(r chi.Router, limiter *httpmiddleware.RateLimiter) {
	if limiter != nil {
		r.Use(httpmiddleware.RateLimit(limiter))
	}
}

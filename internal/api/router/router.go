package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clinicbase/clinic-platform/internal/appointments"
	"github.com/clinicbase/clinic-platform/internal/booking"
	"github.com/clinicbase/clinic-platform/internal/consent"
	httpmiddleware "github.com/clinicbase/clinic-platform/internal/http/middleware"
	"github.com/clinicbase/clinic-platform/internal/messaging"
	"github.com/clinicbase/clinic-platform/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger              *logging.Logger
	AppointmentsHandler *appointments.Handler
	BookingHandler      *booking.Handler
	ConsentHandler      *consent.Handler
	MessagingHandler    *messaging.Handler
	MetricsHandler      http.Handler
	StaffAuthSecret     string
	CORSAllowedOrigins  []string

	// PublicRateLimit caps unauthenticated booking traffic per IP, in
	// requests per second. Zero disables the limiter.
	PublicRateLimit float64
	PublicBurst     int
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

	// Public endpoints: health, metrics, and the slug-addressed booking pages.
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.BookingHandler != nil {
			public.Route("/public/booking/{slug}", func(pb chi.Router) {
				if cfg.PublicRateLimit > 0 {
					pb.Use(httpmiddleware.RateLimit(cfg.PublicRateLimit, cfg.PublicBurst))
				}
				pb.Get("/slots", cfg.BookingHandler.Slots)
				pb.Post("/", cfg.BookingHandler.Create)
			})
		}
	})

	// Staff endpoints require a tenant-scoped JWT.
	r.Group(func(staff chi.Router) {
		staff.Use(httpmiddleware.StaffJWT(cfg.StaffAuthSecret))

		if cfg.AppointmentsHandler != nil {
			staff.Route("/appointments", func(a chi.Router) {
				a.Post("/", cfg.AppointmentsHandler.Create)
				a.Patch("/{id}/status", cfg.AppointmentsHandler.UpdateStatus)
				a.Post("/{id}/cancel", cfg.AppointmentsHandler.Cancel)
			})
			staff.Get("/doctors/{id}/slots", cfg.AppointmentsHandler.DoctorSlots)
		}
		if cfg.ConsentHandler != nil {
			staff.Post("/optouts", cfg.ConsentHandler.OptOut)
		}
		if cfg.MessagingHandler != nil {
			staff.Get("/messages/stats", cfg.MessagingHandler.Stats)
		}
	})

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

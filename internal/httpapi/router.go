package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/Freeeeeet/clinic_scheduler/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Pinger проверка доступности БД для /healthz
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	Handler        *Handler
	Logger         *zap.Logger
	AuthSecret     string
	BookingLimiter *RateLimiter
	MetricsHandler http.Handler
	DB             Pinger
	Users          UserSyncer
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(cfg.Logger))

	r.Get("/healthz", healthz(cfg.DB))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	h := cfg.Handler
	r.Route("/api", func(api chi.Router) {
		api.Use(Authenticate(cfg.AuthSecret))
		if cfg.Users != nil {
			api.Use(SyncUser(cfg.Users, cfg.Logger))
		}

		// Врач
		api.Group(func(doctor chi.Router) {
			doctor.Use(RequireRole(model.RoleDoctor))
			doctor.Get("/schedule", h.GetOwnSchedule)
			doctor.Put("/schedule", h.ReplaceSchedule)
			doctor.Delete("/schedule", h.DeleteSchedule)
			doctor.Get("/requests", h.ListRequests)
			doctor.Post("/requests/{id}/confirm", h.ConfirmRequest)
			doctor.Post("/requests/{id}/reject", h.RejectRequest)
			doctor.Get("/patients/confirmed", h.ConfirmedPatients)
		})

		// Пациент
		api.Group(func(patient chi.Router) {
			patient.Use(RequireRole(model.RolePatient))
			patient.Get("/doctors/{doctorID}/schedule", h.GetDoctorSchedule)
			if cfg.BookingLimiter != nil {
				patient.With(RateLimit(cfg.BookingLimiter)).Post("/appointments", h.BookAppointment)
			} else {
				patient.Post("/appointments", h.BookAppointment)
			}
		})

		// Обе роли
		api.Get("/appointments/upcoming", h.NextAppointment)
		api.Post("/appointments/{id}/session", h.JoinSession)
		api.Get("/notifications", h.ListNotifications)
		api.Get("/notifications/unread-count", h.UnreadCount)
		api.Post("/notifications/{id}/read", h.MarkNotificationRead)
	})

	return r
}

func healthz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				writeError(w, http.StatusServiceUnavailable, "unavailable", "database unreachable")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// NewRouter creates a new router with all routes configured. An empty
// corsOrigins list disables cross-origin access.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)
	if len(corsOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}).Handler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Get("/health", h.Health)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.apiKey))

			r.Post("/agent/run", h.RunAgent)
			r.With(UserIDMiddleware).Get("/agent/state/{userID}", h.AgentState)
			r.With(UserIDMiddleware).Get("/agent/runs/{userID}", h.AgentRuns)
			r.Post("/tasks/{taskID}/complete", h.CompleteTask)
			r.Post("/notifications/daily-reminders", h.DailyReminders)
			r.With(UserIDMiddleware).Put("/profiles/{userID}", h.PutProfile)
			r.Get("/snapshot", h.Snapshot)
		})
	})

	return r
}

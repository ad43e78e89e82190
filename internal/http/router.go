package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"fieldtrack/internal/auth"
	"fieldtrack/internal/models"
	"fieldtrack/internal/repo"
	"fieldtrack/internal/service"
)

type API struct {
	Repo    *repo.Repo
	Service *service.Service
	Auth    *auth.Manager
	Origins []string
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(loggingMiddleware)
	r.Use(a.corsMiddleware)

	r.Get("/health", a.handleHealth)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", a.handleRegister)
		r.Post("/login", a.handleLogin)
	})

	r.Group(func(r chi.Router) {
		r.Use(a.authMiddleware)
		r.Get("/me", a.handleMe)

		r.Route("/activities", a.activityRoutes(models.KindActivity))
		r.Route("/osi-activities", a.activityRoutes(models.KindOSI))

		r.Route("/recurring", func(r chi.Router) {
			r.Get("/", a.handleListRules)
			r.Post("/", a.handleCreateRule)
			r.Put("/{id}", a.handleUpdateRule)
			r.Delete("/{id}", a.handleDeleteRule)
			r.Post("/generate", a.handleGenerate)
			r.Post("/{id}/generate", a.handleGenerate)
		})
		r.Route("/goals", func(r chi.Router) {
			r.Get("/", a.handleListGoals)
			r.Post("/", a.handleCreateGoal)
			r.Put("/{id}", a.handleUpdateGoal)
			r.Delete("/{id}", a.handleDeleteGoal)
			r.Get("/{id}/progress", a.handleGoalProgress)
		})
		r.Get("/reports/activities", a.handleActivityReport)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAdmin)
			r.Get("/audit", a.handleListAudit)
		})
	})

	return r
}

func (a *API) activityRoutes(kind string) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", a.handleListActivities(kind))
		r.Post("/", a.handleCreateActivity(kind))
		r.Put("/{id}", a.handleUpdateActivity(kind))
		r.Delete("/{id}", a.handleDeleteActivity(kind))
		r.Get("/deadlines", a.handleDeadlines(kind))
	}
}

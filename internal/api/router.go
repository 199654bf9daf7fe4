package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hugh/go-crm/internal/api/handlers"
	"github.com/hugh/go-crm/internal/api/middleware"
	"github.com/hugh/go-crm/internal/auth"
	"github.com/hugh/go-crm/internal/database/models"
	"github.com/hugh/go-crm/internal/imports"
	"github.com/hugh/go-crm/internal/leads"
	"gorm.io/gorm"
)

// Uploads per user per minute.
const importRateLimit = 10

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB             *gorm.DB
	Redis          handlers.Pinger
	Logger         *slog.Logger
	JWTService     *auth.JWTService
	AuthService    *auth.Service
	LeadService    *leads.Service
	ImportService  *imports.Service
	MaxImportBytes int64
	SecureCookies  bool
	AllowedOrigins []string // CORS allowed origins
	RateLimitReqs  int      // Rate limit requests per window
	RateLimitSecs  int      // Rate limit window in seconds
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	if cfg.RateLimitReqs > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimitReqs, cfg.RateLimitSecs))
	}

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	leadService := cfg.LeadService
	if leadService == nil {
		leadService = leads.NewService(cfg.DB, cfg.Logger)
	}

	var health *handlers.HealthHandler
	if sqlDB, err := cfg.DB.DB(); err == nil {
		health = handlers.NewHealthHandler(sqlDB, cfg.Redis)
	} else {
		health = handlers.NewHealthHandler(nil, cfg.Redis)
	}
	authHandler := handlers.NewAuthHandler(cfg.AuthService, cfg.JWTService, cfg.SecureCookies, cfg.Logger)
	leadHandler := handlers.NewLeadHandler(leadService, cfg.Logger)
	importHandler := handlers.NewImportHandler(cfg.ImportService, cfg.MaxImportBytes, cfg.Logger)
	companyHandler := handlers.NewCompanyHandler(cfg.DB, cfg.Logger)
	projectHandler := handlers.NewProjectHandler(cfg.DB, cfg.Logger)
	activityHandler := handlers.NewActivityHandler(cfg.DB, cfg.Logger)
	userHandler := handlers.NewUserHandler(cfg.DB, cfg.Logger)

	// Health endpoints (no auth required)
	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)

	r.Route("/api", func(r chi.Router) {
		// Public auth endpoints
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTService))
			r.Use(middleware.ReadOnlyViewers)

			r.Get("/me", authHandler.Me)

			r.Route("/leads", func(r chi.Router) {
				r.Get("/", leadHandler.List)
				r.Post("/", leadHandler.Create)
				r.Get("/stats", leadHandler.Stats)
				r.Get("/pipeline", leadHandler.Pipeline)
				r.Get("/sources", leadHandler.Sources)
				r.Get("/export", leadHandler.Export)
				r.Put("/bulk-update", leadHandler.BulkUpdate)

				if cfg.ImportService != nil {
					r.With(middleware.RateLimitByUser(importRateLimit, 60)).Post("/import", importHandler.Upload)
					r.Get("/import/template", importHandler.Template)
					r.Get("/import/{id}", importHandler.Status)
				}

				r.Get("/{id}", leadHandler.Get)
				r.Put("/{id}", leadHandler.Update)
				r.Patch("/{id}", leadHandler.Update)
				r.Delete("/{id}", leadHandler.Delete)
				r.Put("/{id}/status", leadHandler.UpdateStatus)
				r.Get("/{id}/convert", leadHandler.ConvertDraft)
				r.Post("/{id}/convert", leadHandler.Convert)
				r.Post("/{id}/followup", leadHandler.AddFollowUp)
				r.Post("/{id}/activities", leadHandler.AddActivity)
			})

			r.Route("/companies", func(r chi.Router) {
				r.Get("/", companyHandler.List)
				r.Post("/", companyHandler.Create)
				r.Get("/{id}", companyHandler.Get)
				r.Put("/{id}", companyHandler.Update)
				r.Delete("/{id}", companyHandler.Delete)
			})

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", projectHandler.List)
				r.Post("/", projectHandler.Create)
				r.Get("/{id}", projectHandler.Get)
				r.Put("/{id}", projectHandler.Update)
			})

			r.Route("/activities", func(r chi.Router) {
				r.Get("/", activityHandler.List)
				r.Post("/", activityHandler.Create)
				r.Get("/{id}", activityHandler.Get)
				r.Put("/{id}", activityHandler.Update)
				r.Delete("/{id}", activityHandler.Delete)
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/", userHandler.List)
				r.Get("/{id}", userHandler.Get)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(models.RoleAdmin))
					r.Post("/", userHandler.Create)
					r.Patch("/{id}", userHandler.Update)
					r.Delete("/{id}", userHandler.Delete)
				})
			})
		})
	})

	return &Router{r}
}

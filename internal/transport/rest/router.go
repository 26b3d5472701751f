package rest

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/research-hours/internal/approval"
	"github.com/frahmantamala/research-hours/internal/auth"
	"github.com/frahmantamala/research-hours/internal/core/identity"
	"github.com/frahmantamala/research-hours/internal/hours"
	"github.com/frahmantamala/research-hours/internal/orgunit"
	"github.com/frahmantamala/research-hours/internal/record"
	"github.com/frahmantamala/research-hours/internal/report"
	"github.com/frahmantamala/research-hours/internal/transport/middleware"
	"github.com/frahmantamala/research-hours/internal/transport/openapi"
	"github.com/frahmantamala/research-hours/internal/transport/swagger"
	"github.com/frahmantamala/research-hours/internal/user"
	"github.com/go-chi/chi"
)

// Handlers groups everything the router mounts. Health and Auth are
// required; the rest are skipped when nil.
type Handlers struct {
	Health   *HealthHandler
	Auth     *auth.Handler
	User     *user.Handler
	OrgUnit  *orgunit.Handler
	Record   *record.Handler
	Approval *approval.Handler
	Report   *report.Handler
	Rules    *hours.Handler
}

type RouterOptions struct {
	AllowedOrigins string
	MetricsPath    string
	MetricsHandler http.Handler
	OpenAPI        *openapi.Document
}

func RegisterAllRoutes(router *chi.Mux, h Handlers, opts RouterOptions, logger *slog.Logger) {
	rbac := auth.NewRBACAuthorization(logger)

	router.Use(middleware.CORS(opts.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.Metrics)
	router.Use(middleware.LoggingMiddleware(logger))

	if opts.MetricsHandler != nil && opts.MetricsPath != "" {
		router.Handle(opts.MetricsPath, opts.MetricsHandler)
	}

	if opts.OpenAPI != nil {
		router.Get("/openapi.yml", opts.OpenAPI.Handler().ServeHTTP)
		router.Handle("/swagger/*", swagger.Handler("/openapi.yml"))
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health.healthCheckHandler)
		r.Get("/ping", h.Health.pingHandler)

		r.Route("/auth", func(sr chi.Router) {
			sr.Post("/login", h.Auth.Login)
			sr.Post("/refresh", h.Auth.RefreshToken)
			sr.Post("/logout", h.Auth.Logout)
		})

		// Protected routes that require authentication
		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.AuthMiddleware)

			if h.User != nil {
				pr.Get("/users/me", h.User.GetCurrentUser)
				pr.With(rbac.RequireUniversityAdmin()).Post("/users", h.User.CreateUser)
			}

			if h.OrgUnit != nil {
				pr.Get("/org-units", h.OrgUnit.ListOrgUnits)
				pr.Get("/org-units/{id}/departments", h.OrgUnit.ListDepartments)

				pr.Group(func(ar chi.Router) {
					ar.Use(rbac.RequireUniversityAdmin())
					ar.Post("/org-units", h.OrgUnit.CreateOrgUnit)
					ar.Post("/org-units/{id}/departments", h.OrgUnit.CreateDepartment)
					ar.Post("/users/{id}/assignment", h.OrgUnit.AssignUser)
				})

				// the service narrows faculty grantors to their own departments
				pr.With(rbac.RequireScope(identity.ScopeUniversity, identity.ScopeFaculty)).
					Post("/users/{id}/roles", h.OrgUnit.GrantRole)
			}

			if h.Record != nil {
				pr.Post("/records", h.Record.CreateRecord)
				pr.Get("/records", h.Record.ListRecords)
				pr.Get("/records/{id}", h.Record.GetRecord)
				pr.Put("/records/{id}", h.Record.UpdateRecord)
			}

			if h.Approval != nil {
				pr.Get("/records/{id}/audit", h.Approval.History)
				pr.Post("/records/{id}/advance", h.Approval.Advance)
				pr.Post("/records/{id}/reject", h.Approval.Reject)
				pr.Post("/records/{id}/resubmit", h.Approval.Resubmit)
				pr.With(rbac.RequireUniversityAdmin()).Post("/records/{id}/reopen", h.Approval.Reopen)
				pr.With(rbac.RequireAnyAdmin()).Get("/approvals/pending", h.Approval.ListPending)
			}

			if h.Report != nil {
				pr.Get("/reports", h.Report.GetReport)
			}

			if h.Rules != nil {
				pr.Get("/rules", h.Rules.List)
				pr.Get("/rules/current", h.Rules.GetCurrent)
				pr.Get("/rules/{version}", h.Rules.GetVersion)
				pr.Post("/rules/preview", h.Rules.Preview)
			}
		})
	})
}

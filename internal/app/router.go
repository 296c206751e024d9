package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/metafirst/supervisor/internal/audit"
	"github.com/metafirst/supervisor/internal/auth"
	"github.com/metafirst/supervisor/internal/membership"
	"github.com/metafirst/supervisor/internal/projects"
	"github.com/metafirst/supervisor/internal/rawdata"
	"github.com/metafirst/supervisor/internal/rdmp"
	"github.com/metafirst/supervisor/internal/release"
	"github.com/metafirst/supervisor/internal/samples"
	"github.com/metafirst/supervisor/internal/shared"
	"github.com/metafirst/supervisor/internal/users"
	"github.com/metafirst/supervisor/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger   *slog.Logger
	Config   *Config
	Sessions *shared.SessionStore

	AuthHandler       *auth.Handler
	ProjectsHandler   *projects.Handler
	RDMPHandler       *rdmp.Handler
	MembershipHandler *membership.Handler
	SamplesHandler    *samples.Handler
	ReleaseHandler    *release.Handler
	AuditHandler      *audit.Handler
	RawDataHandler    *rawdata.Handler
	UsersHandler      *users.Handler
	JobHandler        *jobs.Handler
}

// NewRouter constructs the chi.Router for the JSON API.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:   params.Logger,
		Config:   params.Config,
		Sessions: params.Sessions,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountRoutes)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser)

			r.Route("/templates", params.RDMPHandler.MountTemplateRoutes)
			r.Route("/projects", func(r chi.Router) {
				params.ProjectsHandler.MountRoutes(r)
				r.Route("/{projectID}", func(r chi.Router) {
					r.Route("/rdmp", params.RDMPHandler.MountProjectRoutes)
					r.Route("/members", params.MembershipHandler.MountRoutes)
					r.Route("/samples", params.SamplesHandler.MountRoutes)
					r.Route("/releases", params.ReleaseHandler.MountRoutes)
					r.Route("/audit", params.AuditHandler.MountRoutes)
					r.Route("/rawdata", params.RawDataHandler.MountRoutes)
				})
			})
			r.Route("/users", params.UsersHandler.MountRoutes)
			if params.JobHandler != nil {
				r.Route("/jobs", params.JobHandler.MountRoutes)
			}
		})
	})

	return r
}

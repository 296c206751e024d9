package permission

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/metafirst/supervisor/internal/platform/httpx"
	"github.com/metafirst/supervisor/internal/shared"
)

// Middleware wires permission checks into HTTP handlers. Every guarded
// route resolves the caller's permission map and inspects the result; a
// denial is a 403, never an error.
type Middleware struct {
	Resolver *Resolver
	Logger   *slog.Logger
}

// Require ensures the current user holds the named permission for the
// project identified by the projectID URL parameter.
func (m Middleware) Require(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := shared.ActorFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			projectID, err := strconv.ParseInt(chi.URLParam(r, "projectID"), 10, 64)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "projectID must be an integer")
				return
			}
			granted, err := m.Resolver.Check(r.Context(), projectID, userID, permission)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("permission check", slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			if !granted {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "permission "+permission+" not granted")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

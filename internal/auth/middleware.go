package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/metafirst/supervisor/internal/platform/httpx"
	"github.com/metafirst/supervisor/internal/shared"
)

// SourceDeviceHeader names the client device for audit trails. The desktop
// helper sets it on every request.
const SourceDeviceHeader = "X-Source-Device"

// TokenLoader resolves the bearer token on each request and, when valid,
// stores the actor and source device in the request context. Requests
// without a token pass through unauthenticated.
func TokenLoader(sessions *shared.SessionStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			userID, err := sessions.Lookup(r.Context(), token)
			if err != nil {
				if errors.Is(err, shared.ErrUnauthenticated) {
					next.ServeHTTP(w, r)
					return
				}
				if logger != nil {
					logger.Error("session lookup", slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			ctx := shared.ContextWithActor(r.Context(), userID)
			if device := r.Header.Get(SourceDeviceHeader); device != "" {
				ctx = shared.ContextWithSourceDevice(ctx, device)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects unauthenticated requests.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := shared.ActorFromContext(r.Context()); !ok {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

package membership

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/metafirst/supervisor/internal/platform/httpx"
	"github.com/metafirst/supervisor/internal/rdmp"
	"github.com/metafirst/supervisor/internal/shared"
)

// PermissionGuard guards membership mutation routes.
type PermissionGuard interface {
	Require(permission string) func(http.Handler) http.Handler
}

// Handler wires HTTP endpoints for project memberships.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     PermissionGuard
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard PermissionGuard) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, validator: validator.New()}
}

// MountRoutes registers membership routes. The router must carry a
// projectID URL parameter.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Group(func(r chi.Router) {
		if h.guard != nil {
			r.Use(h.guard.Require(rdmp.PermManageRDMP))
		}
		r.Post("/", h.add)
		r.Put("/{userID}", h.changeRole)
		r.Delete("/{userID}", h.remove)
	})
}

type memberRequest struct {
	UserID   int64  `json:"user_id" validate:"required"`
	RoleName string `json:"role_name" validate:"required"`
}

type roleRequest struct {
	RoleName string `json:"role_name" validate:"required"`
}

type memberResponse struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project_id"`
	UserID    int64     `json:"user_id"`
	RoleName  string    `json:"role_name"`
	CreatedAt time.Time `json:"created_at"`
}

func toResponse(m Membership) memberResponse {
	return memberResponse{ID: m.ID, ProjectID: m.ProjectID, UserID: m.UserID, RoleName: m.RoleName, CreatedAt: m.CreatedAt}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	projectID, err := urlID(r, "projectID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "projectID must be an integer")
		return
	}
	members, err := h.service.List(r.Context(), projectID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]memberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, toResponse(m))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) add(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	projectID, err := urlID(r, "projectID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "projectID must be an integer")
		return
	}
	var req memberRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	m, err := h.service.Add(r.Context(), projectID, req.UserID, req.RoleName, actor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(m))
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	projectID, err := urlID(r, "projectID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "projectID must be an integer")
		return
	}
	userID, err := urlID(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "userID must be an integer")
		return
	}
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	m, err := h.service.ChangeRole(r.Context(), projectID, userID, req.RoleName, actor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(m))
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	projectID, err := urlID(r, "projectID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "projectID must be an integer")
		return
	}
	userID, err := urlID(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "userID must be an integer")
		return
	}
	if err := h.service.Remove(r.Context(), projectID, userID, actor); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrAlreadyMember):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "user is already a member of this project")
	case errors.Is(err, ErrRoleNameRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "membership not found")
	default:
		h.logger.Error("membership request", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func urlID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

package release

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

// PermissionGuard guards release creation.
type PermissionGuard interface {
	Require(permission string) func(http.Handler) http.Handler
}

// Handler wires HTTP endpoints for release snapshots.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	builder   SnapshotBuilder
	guard     PermissionGuard
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, builder SnapshotBuilder, guard PermissionGuard) *Handler {
	return &Handler{logger: logger, service: service, builder: builder, guard: guard, validator: validator.New()}
}

// MountRoutes registers release routes. The router must carry a projectID
// URL parameter.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{releaseID}", h.get)
	r.Get("/{releaseID}/chain", h.chain)
	r.Group(func(r chi.Router) {
		if h.guard != nil {
			r.Use(h.guard.Require(rdmp.PermCreateRelease))
		}
		r.Post("/", h.create)
	})
}

type createRequest struct {
	Tag             string `json:"tag" validate:"required"`
	RDMPVersionID   int64  `json:"rdmp_version_id" validate:"required"`
	ParentReleaseID *int64 `json:"parent_release_id"`
	Description     string `json:"description"`
}

type releaseResponse struct {
	ID              int64          `json:"id"`
	ProjectID       int64          `json:"project_id"`
	ReleaseTag      string         `json:"release_tag"`
	RDMPVersionID   int64          `json:"rdmp_version_id"`
	ParentReleaseID *int64         `json:"parent_release_id,omitempty"`
	Description     string         `json:"description,omitempty"`
	Snapshot        map[string]any `json:"snapshot,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	CreatedBy       int64          `json:"created_by"`
}

func toResponse(rel Release, withSnapshot bool) releaseResponse {
	resp := releaseResponse{
		ID:              rel.ID,
		ProjectID:       rel.ProjectID,
		ReleaseTag:      rel.ReleaseTag,
		RDMPVersionID:   rel.RDMPVersionID,
		ParentReleaseID: rel.ParentReleaseID,
		Description:     rel.Description,
		CreatedAt:       rel.CreatedAt,
		CreatedBy:       rel.CreatedBy,
	}
	if withSnapshot {
		resp.Snapshot = rel.Snapshot
	}
	return resp
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
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
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	rel, err := h.service.Create(r.Context(), CreateParams{
		ProjectID:       projectID,
		Tag:             req.Tag,
		RDMPVersionID:   req.RDMPVersionID,
		ParentReleaseID: req.ParentReleaseID,
		Description:     req.Description,
		Author:          actor,
	}, h.builder)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(rel, true))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	projectID, err := urlID(r, "projectID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "projectID must be an integer")
		return
	}
	list, err := h.service.List(r.Context(), projectID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]releaseResponse, 0, len(list))
	for _, rel := range list {
		out = append(out, toResponse(rel, false))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	rel, ok := h.releaseForRequest(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(rel, true))
}

func (h *Handler) chain(w http.ResponseWriter, r *http.Request) {
	rel, ok := h.releaseForRequest(w, r)
	if !ok {
		return
	}
	chain, err := h.service.Chain(r.Context(), rel.ID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]releaseResponse, 0, len(chain))
	for _, link := range chain {
		out = append(out, toResponse(link, false))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) releaseForRequest(w http.ResponseWriter, r *http.Request) (Release, bool) {
	projectID, err := urlID(r, "projectID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "projectID must be an integer")
		return Release{}, false
	}
	releaseID, err := urlID(r, "releaseID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "releaseID must be an integer")
		return Release{}, false
	}
	rel, err := h.service.Get(r.Context(), releaseID)
	if err != nil {
		h.respondError(w, err)
		return Release{}, false
	}
	if rel.ProjectID != projectID {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "release does not belong to this project")
		return Release{}, false
	}
	return rel, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrDuplicateTag):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "release tag already exists for this project")
	case errors.Is(err, ErrTagRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "release tag required")
	case errors.Is(err, ErrUnknownRDMPVersion):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unknown RDMP Version", "rdmp version does not belong to this project")
	case errors.Is(err, ErrUnknownParentRelease):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unknown Parent Release", "parent release does not belong to this project")
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "release not found")
	default:
		h.logger.Error("release request", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func urlID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

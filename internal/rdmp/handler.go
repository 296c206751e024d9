package rdmp

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/metafirst/supervisor/internal/platform/httpx"
	"github.com/metafirst/supervisor/internal/shared"
)

// PermissionGuard guards project scoped routes with an RDMP permission.
type PermissionGuard interface {
	Require(permission string) func(http.Handler) http.Handler
}

// Handler wires HTTP endpoints for templates and project RDMP versions.
type Handler struct {
	logger    *slog.Logger
	store     *Store
	guard     PermissionGuard
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, store *Store, guard PermissionGuard) *Handler {
	return &Handler{logger: logger, store: store, guard: guard, validator: validator.New()}
}

// MountTemplateRoutes registers template routes.
func (h *Handler) MountTemplateRoutes(r chi.Router) {
	r.Post("/", h.createTemplate)
	r.Get("/", h.listTemplates)
	r.Get("/{templateID}", h.getTemplate)
	r.Get("/{templateID}/versions", h.listTemplateVersions)
	r.Post("/{templateID}/versions", h.appendTemplateVersion)
}

// MountProjectRoutes registers project RDMP routes. The router must carry a
// projectID URL parameter.
func (h *Handler) MountProjectRoutes(r chi.Router) {
	r.Get("/", h.getCurrent)
	r.Get("/versions", h.listVersions)
	r.Get("/versions/{versionID}", h.getVersion)
	r.Post("/validate", h.validateBody)
	r.Get("/ingestion/match", h.matchIngestion)
	r.Group(func(r chi.Router) {
		if h.guard != nil {
			r.Use(h.guard.Require(PermManageRDMP))
		}
		r.Post("/", h.appendVersion)
	})
}

type documentResponse struct {
	ID         int64          `json:"id"`
	Scope      string         `json:"scope"`
	VersionInt int            `json:"version_int"`
	Body       map[string]any `json:"body"`
	Provenance map[string]any `json:"provenance,omitempty"`
	Status     string         `json:"status,omitempty"`
	Title      string         `json:"title,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	CreatedBy  int64          `json:"created_by"`
	ApprovedBy *int64         `json:"approved_by,omitempty"`
}

func toDocumentResponse(doc Document) documentResponse {
	return documentResponse{
		ID:         doc.ID,
		Scope:      doc.Scope,
		VersionInt: doc.VersionInt,
		Body:       doc.Body,
		Provenance: doc.Provenance,
		Status:     doc.Status,
		Title:      doc.Title,
		CreatedAt:  doc.CreatedAt,
		CreatedBy:  doc.CreatedBy,
		ApprovedBy: doc.ApprovedBy,
	}
}

type templateResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type createTemplateRequest struct {
	Name        string         `json:"name" validate:"required"`
	Description string         `json:"description"`
	Body        map[string]any `json:"body" validate:"required"`
}

func (h *Handler) createTemplate(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	var req createTemplateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	tpl, doc, err := h.store.CreateTemplate(r.Context(), req.Name, req.Description, req.Body, actor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"template": templateResponse{ID: tpl.ID, Name: tpl.Name, Description: tpl.Description, CreatedAt: tpl.CreatedAt},
		"version":  toDocumentResponse(doc),
	})
}

func (h *Handler) listTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.store.ListTemplates(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]templateResponse, 0, len(templates))
	for _, tpl := range templates {
		out = append(out, templateResponse{ID: tpl.ID, Name: tpl.Name, Description: tpl.Description, CreatedAt: tpl.CreatedAt})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "templateID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "templateID must be an integer")
		return
	}
	tpl, err := h.store.GetTemplate(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	current, err := h.store.GetLatest(r.Context(), TemplateScope(id))
	if err != nil {
		h.respondError(w, err)
		return
	}
	resp := map[string]any{
		"template": templateResponse{ID: tpl.ID, Name: tpl.Name, Description: tpl.Description, CreatedAt: tpl.CreatedAt},
	}
	if current != nil {
		resp["current_version"] = toDocumentResponse(*current)
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) listTemplateVersions(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "templateID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "templateID must be an integer")
		return
	}
	h.respondVersionList(w, r, TemplateScope(id))
}

type appendVersionRequest struct {
	Body       map[string]any `json:"body" validate:"required"`
	Title      string         `json:"title"`
	Status     string         `json:"status"`
	Provenance map[string]any `json:"provenance"`
}

func (h *Handler) appendTemplateVersion(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "templateID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "templateID must be an integer")
		return
	}
	if _, err := h.store.GetTemplate(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	h.appendToScope(w, r, TemplateScope(id))
}

func (h *Handler) getCurrent(w http.ResponseWriter, r *http.Request) {
	projectID, err := urlID(r, "projectID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "projectID must be an integer")
		return
	}
	doc, err := h.store.GetLatest(r.Context(), ProjectScope(projectID))
	if err != nil {
		h.respondError(w, err)
		return
	}
	if doc == nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "project has no RDMP yet")
		return
	}
	httpx.JSON(w, http.StatusOK, toDocumentResponse(*doc))
}

func (h *Handler) listVersions(w http.ResponseWriter, r *http.Request) {
	projectID, err := urlID(r, "projectID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "projectID must be an integer")
		return
	}
	h.respondVersionList(w, r, ProjectScope(projectID))
}

func (h *Handler) getVersion(w http.ResponseWriter, r *http.Request) {
	projectID, err := urlID(r, "projectID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "projectID must be an integer")
		return
	}
	versionID, err := urlID(r, "versionID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "versionID must be an integer")
		return
	}
	doc, err := h.store.GetVersion(r.Context(), versionID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if doc.Scope != ProjectScope(projectID) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "version does not belong to this project")
		return
	}
	httpx.JSON(w, http.StatusOK, toDocumentResponse(*doc))
}

func (h *Handler) appendVersion(w http.ResponseWriter, r *http.Request) {
	projectID, err := urlID(r, "projectID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "projectID must be an integer")
		return
	}
	h.appendToScope(w, r, ProjectScope(projectID))
}

func (h *Handler) appendToScope(w http.ResponseWriter, r *http.Request, scope string) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	var req appendVersionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	doc, err := h.store.Append(r.Context(), scope, req.Body, AppendOptions{
		Author:     actor,
		Title:      req.Title,
		Status:     req.Status,
		Provenance: req.Provenance,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toDocumentResponse(doc))
}

type validateResponse struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

func (h *Handler) validateBody(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	ok, validationErrs := ValidateSchema(body)
	if validationErrs == nil {
		validationErrs = []string{}
	}
	httpx.JSON(w, http.StatusOK, validateResponse{Valid: ok, Errors: validationErrs})
}

func (h *Handler) matchIngestion(w http.ResponseWriter, r *http.Request) {
	projectID, err := urlID(r, "projectID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "projectID must be an integer")
		return
	}
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "filename query parameter required")
		return
	}
	doc, err := h.store.GetLatest(r.Context(), ProjectScope(projectID))
	if err != nil {
		h.respondError(w, err)
		return
	}
	if doc == nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "project has no RDMP yet")
		return
	}
	body, err := DecodeBody(doc.Body)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, MatchIngestion(body.IngestionRules, filename))
}

func (h *Handler) respondVersionList(w http.ResponseWriter, r *http.Request, scope string) {
	docs, err := h.store.List(r.Context(), scope)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]documentResponse, 0, len(docs))
	for _, doc := range docs {
		out = append(out, toDocumentResponse(doc))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var schemaErr *SchemaError
	switch {
	case errors.As(err, &schemaErr):
		httpx.JSON(w, http.StatusUnprocessableEntity, map[string]any{
			"title":  "Schema Validation Failed",
			"status": http.StatusUnprocessableEntity,
			"errors": schemaErr.Errors,
		})
	case errors.Is(err, ErrVersionConflict):
		httpx.Problem(w, http.StatusConflict, "Version Conflict", "a concurrent append won this version number")
	case errors.Is(err, ErrDuplicateTemplate):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "template name already exists")
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error("rdmp request", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func urlID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

package samples

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

// PermissionGuard guards sample mutation routes.
type PermissionGuard interface {
	Require(permission string) func(http.Handler) http.Handler
}

// Handler wires HTTP endpoints for samples and their metadata.
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

// MountRoutes registers sample routes. The router must carry a projectID
// URL parameter.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{sampleID}", h.get)
	r.Get("/{sampleID}/fields", h.fieldValues)
	r.Get("/{sampleID}/completeness", h.completeness)
	r.Group(func(r chi.Router) {
		if h.guard != nil {
			r.Use(h.guard.Require(rdmp.PermEditMetadata))
		}
		r.Post("/", h.create)
		r.Put("/{sampleID}/fields/{fieldKey}", h.setField)
	})
}

type createRequest struct {
	SampleIdentifier string `json:"sample_identifier" validate:"required"`
}

type setFieldRequest struct {
	Value any `json:"value"`
}

type sampleResponse struct {
	ID               int64     `json:"id"`
	ProjectID        int64     `json:"project_id"`
	SampleIdentifier string    `json:"sample_identifier"`
	CreatedAt        time.Time `json:"created_at"`
	CreatedBy        int64     `json:"created_by"`
}

type fieldValueResponse struct {
	FieldKey  string    `json:"field_key"`
	Value     any       `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy int64     `json:"updated_by"`
}

func toSampleResponse(s Sample) sampleResponse {
	return sampleResponse{ID: s.ID, ProjectID: s.ProjectID, SampleIdentifier: s.SampleIdentifier, CreatedAt: s.CreatedAt, CreatedBy: s.CreatedBy}
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
	sample, err := h.service.Create(r.Context(), projectID, req.SampleIdentifier, actor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toSampleResponse(sample))
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
	out := make([]sampleResponse, 0, len(list))
	for _, s := range list {
		out = append(out, toSampleResponse(s))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	sample, ok := h.sampleForRequest(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, toSampleResponse(sample))
}

func (h *Handler) fieldValues(w http.ResponseWriter, r *http.Request) {
	sample, ok := h.sampleForRequest(w, r)
	if !ok {
		return
	}
	values, err := h.service.FieldValues(r.Context(), sample.ID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]fieldValueResponse, 0, len(values))
	for _, v := range values {
		out = append(out, fieldValueResponse{FieldKey: v.FieldKey, Value: v.Value, UpdatedAt: v.UpdatedAt, UpdatedBy: v.UpdatedBy})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) setField(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	sample, ok := h.sampleForRequest(w, r)
	if !ok {
		return
	}
	fieldKey := chi.URLParam(r, "fieldKey")
	var req setFieldRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	fv, err := h.service.SetField(r.Context(), sample.ID, fieldKey, req.Value, actor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, fieldValueResponse{FieldKey: fv.FieldKey, Value: fv.Value, UpdatedAt: fv.UpdatedAt, UpdatedBy: fv.UpdatedBy})
}

func (h *Handler) completeness(w http.ResponseWriter, r *http.Request) {
	sample, ok := h.sampleForRequest(w, r)
	if !ok {
		return
	}
	result, err := h.service.Completeness(r.Context(), sample.ID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

// sampleForRequest loads the sample and checks it belongs to the project in
// the URL. Writes the error response itself on failure.
func (h *Handler) sampleForRequest(w http.ResponseWriter, r *http.Request) (Sample, bool) {
	projectID, err := urlID(r, "projectID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "projectID must be an integer")
		return Sample{}, false
	}
	sampleID, err := urlID(r, "sampleID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "sampleID must be an integer")
		return Sample{}, false
	}
	sample, err := h.service.Get(r.Context(), sampleID)
	if err != nil {
		h.respondError(w, err)
		return Sample{}, false
	}
	if sample.ProjectID != projectID {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "sample does not belong to this project")
		return Sample{}, false
	}
	return sample, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr):
		httpx.JSON(w, http.StatusUnprocessableEntity, map[string]any{
			"title":     "Field Validation Failed",
			"status":    http.StatusUnprocessableEntity,
			"field_key": validationErr.FieldKey,
			"detail":    validationErr.Reason,
		})
	case errors.Is(err, ErrUnknownField):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Unknown Field", "field is not declared in the project's current RDMP")
	case errors.Is(err, ErrNoRDMP):
		httpx.Problem(w, http.StatusConflict, "No RDMP", "project has no RDMP yet")
	case errors.Is(err, ErrDuplicateIdentifier):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "sample identifier already exists in this project")
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "sample not found")
	default:
		h.logger.Error("samples request", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func urlID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

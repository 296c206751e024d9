package rawdata

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

// PermissionGuard guards raw data mutation routes.
type PermissionGuard interface {
	Require(permission string) func(http.Handler) http.Handler
}

// Handler wires HTTP endpoints for storage roots, raw data items, and
// pending ingests.
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

// MountRoutes registers raw data routes. The router must carry a projectID
// URL parameter.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/storage-roots", h.listStorageRoots)
	r.Put("/storage-roots/{rootID}/mapping", h.setMapping)
	r.Get("/items", h.listItems)
	r.Get("/ingest-runs", h.listIngestRuns)
	r.Get("/pending", h.listPending)
	r.Group(func(r chi.Router) {
		if h.guard != nil {
			r.Use(h.guard.Require(rdmp.PermEditPaths))
		}
		r.Post("/storage-roots", h.createStorageRoot)
		r.Post("/items", h.registerItem)
		r.Post("/items/{itemID}/move", h.moveItem)
		r.Post("/ingest-runs", h.startIngestRun)
		r.Post("/pending", h.registerPending)
		r.Post("/pending/{pendingID}/complete", h.completePending)
		r.Post("/pending/{pendingID}/cancel", h.cancelPending)
	})
}

type storageRootRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

type mappingRequest struct {
	LocalMountPath string `json:"local_mount_path" validate:"required"`
}

type itemRequest struct {
	SampleID       *int64 `json:"sample_id"`
	StorageRootID  int64  `json:"storage_root_id" validate:"required"`
	RelativePath   string `json:"relative_path" validate:"required"`
	FileSizeBytes  *int64 `json:"file_size_bytes"`
	FileHashSHA256 string `json:"file_hash_sha256"`
}

type moveRequest struct {
	NewStorageRootID int64  `json:"new_storage_root_id" validate:"required"`
	NewRelativePath  string `json:"new_relative_path" validate:"required"`
	Reason           string `json:"reason"`
}

type ingestRunRequest struct {
	StorageRootID int64  `json:"storage_root_id" validate:"required"`
	Note          string `json:"note"`
}

type pendingRequest struct {
	IngestRunID              *int64 `json:"ingest_run_id"`
	StorageRootID            int64  `json:"storage_root_id" validate:"required"`
	RelativePath             string `json:"relative_path" validate:"required"`
	InferredSampleIdentifier string `json:"inferred_sample_identifier"`
	FileSizeBytes            *int64 `json:"file_size_bytes"`
	FileHashSHA256           string `json:"file_hash_sha256"`
}

type completeRequest struct {
	SampleID *int64 `json:"sample_id"`
}

type itemResponse struct {
	ID             int64     `json:"id"`
	ProjectID      int64     `json:"project_id"`
	SampleID       *int64    `json:"sample_id,omitempty"`
	StorageRootID  int64     `json:"storage_root_id"`
	RelativePath   string    `json:"relative_path"`
	FileSizeBytes  *int64    `json:"file_size_bytes,omitempty"`
	FileHashSHA256 string    `json:"file_hash_sha256,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	CreatedBy      int64     `json:"created_by"`
}

func toItemResponse(item RawDataItem) itemResponse {
	return itemResponse{
		ID:             item.ID,
		ProjectID:      item.ProjectID,
		SampleID:       item.SampleID,
		StorageRootID:  item.StorageRootID,
		RelativePath:   item.RelativePath,
		FileSizeBytes:  item.FileSizeBytes,
		FileHashSHA256: item.FileHashSHA256,
		CreatedAt:      item.CreatedAt,
		CreatedBy:      item.CreatedBy,
	}
}

type pendingResponse struct {
	ID                       int64      `json:"id"`
	ProjectID                int64      `json:"project_id"`
	IngestRunID              *int64     `json:"ingest_run_id,omitempty"`
	StorageRootID            int64      `json:"storage_root_id"`
	RelativePath             string     `json:"relative_path"`
	InferredSampleIdentifier string     `json:"inferred_sample_identifier,omitempty"`
	FileSizeBytes            *int64     `json:"file_size_bytes,omitempty"`
	FileHashSHA256           string     `json:"file_hash_sha256,omitempty"`
	Status                   string     `json:"status"`
	CreatedAt                time.Time  `json:"created_at"`
	CompletedAt              *time.Time `json:"completed_at,omitempty"`
	RawDataItemID            *int64     `json:"raw_data_item_id,omitempty"`
}

func toPendingResponse(p PendingIngest) pendingResponse {
	return pendingResponse{
		ID:                       p.ID,
		ProjectID:                p.ProjectID,
		IngestRunID:              p.IngestRunID,
		StorageRootID:            p.StorageRootID,
		RelativePath:             p.RelativePath,
		InferredSampleIdentifier: p.InferredSampleIdentifier,
		FileSizeBytes:            p.FileSizeBytes,
		FileHashSHA256:           p.FileHashSHA256,
		Status:                   p.Status,
		CreatedAt:                p.CreatedAt,
		CompletedAt:              p.CompletedAt,
		RawDataItemID:            p.RawDataItemID,
	}
}

func (h *Handler) createStorageRoot(w http.ResponseWriter, r *http.Request) {
	actor, projectID, ok := h.actorAndProject(w, r)
	if !ok {
		return
	}
	var req storageRootRequest
	if !h.decode(w, r, &req) {
		return
	}
	root, err := h.service.CreateStorageRoot(r.Context(), projectID, req.Name, req.Description, actor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, root)
}

func (h *Handler) listStorageRoots(w http.ResponseWriter, r *http.Request) {
	projectID, err := urlID(r, "projectID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "projectID must be an integer")
		return
	}
	roots, err := h.service.ListStorageRoots(r.Context(), projectID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, roots)
}

func (h *Handler) setMapping(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := h.actorAndProject(w, r)
	if !ok {
		return
	}
	rootID, err := urlID(r, "rootID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "rootID must be an integer")
		return
	}
	var req mappingRequest
	if !h.decode(w, r, &req) {
		return
	}
	mapping, err := h.service.SetMapping(r.Context(), actor, rootID, req.LocalMountPath)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, mapping)
}

func (h *Handler) registerItem(w http.ResponseWriter, r *http.Request) {
	actor, projectID, ok := h.actorAndProject(w, r)
	if !ok {
		return
	}
	var req itemRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.service.RegisterItem(r.Context(), RawDataItem{
		ProjectID:      projectID,
		SampleID:       req.SampleID,
		StorageRootID:  req.StorageRootID,
		RelativePath:   req.RelativePath,
		FileSizeBytes:  req.FileSizeBytes,
		FileHashSHA256: req.FileHashSHA256,
	}, actor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toItemResponse(item))
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	projectID, err := urlID(r, "projectID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "projectID must be an integer")
		return
	}
	items, err := h.service.ListItems(r.Context(), projectID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]itemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toItemResponse(item))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) moveItem(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := h.actorAndProject(w, r)
	if !ok {
		return
	}
	itemID, err := urlID(r, "itemID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "itemID must be an integer")
		return
	}
	var req moveRequest
	if !h.decode(w, r, &req) {
		return
	}
	change, err := h.service.MovePath(r.Context(), itemID, req.NewStorageRootID, req.NewRelativePath, req.Reason, actor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, change)
}

func (h *Handler) startIngestRun(w http.ResponseWriter, r *http.Request) {
	actor, projectID, ok := h.actorAndProject(w, r)
	if !ok {
		return
	}
	var req ingestRunRequest
	if !h.decode(w, r, &req) {
		return
	}
	run, err := h.service.StartIngestRun(r.Context(), projectID, req.StorageRootID, req.Note, actor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, run)
}

func (h *Handler) listIngestRuns(w http.ResponseWriter, r *http.Request) {
	projectID, err := urlID(r, "projectID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "projectID must be an integer")
		return
	}
	runs, err := h.service.ListIngestRuns(r.Context(), projectID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, runs)
}

func (h *Handler) registerPending(w http.ResponseWriter, r *http.Request) {
	actor, projectID, ok := h.actorAndProject(w, r)
	if !ok {
		return
	}
	var req pendingRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.service.RegisterPending(r.Context(), PendingIngest{
		ProjectID:                projectID,
		IngestRunID:              req.IngestRunID,
		StorageRootID:            req.StorageRootID,
		RelativePath:             req.RelativePath,
		InferredSampleIdentifier: req.InferredSampleIdentifier,
		FileSizeBytes:            req.FileSizeBytes,
		FileHashSHA256:           req.FileHashSHA256,
	}, actor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toPendingResponse(p))
}

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	projectID, err := urlID(r, "projectID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "projectID must be an integer")
		return
	}
	pending, err := h.service.ListPending(r.Context(), projectID, r.URL.Query().Get("status"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]pendingResponse, 0, len(pending))
	for _, p := range pending {
		out = append(out, toPendingResponse(p))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) completePending(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := h.actorAndProject(w, r)
	if !ok {
		return
	}
	pendingID, err := urlID(r, "pendingID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "pendingID must be an integer")
		return
	}
	var req completeRequest
	if !h.decode(w, r, &req) {
		return
	}
	item, err := h.service.CompletePending(r.Context(), pendingID, req.SampleID, actor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toItemResponse(item))
}

func (h *Handler) cancelPending(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := h.actorAndProject(w, r)
	if !ok {
		return
	}
	pendingID, err := urlID(r, "pendingID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "pendingID must be an integer")
		return
	}
	if err := h.service.CancelPending(r.Context(), pendingID, actor); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) actorAndProject(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return 0, 0, false
	}
	projectID, err := urlID(r, "projectID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "projectID must be an integer")
		return 0, 0, false
	}
	return actor, projectID, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrDuplicatePath):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "path already registered under this storage root")
	case errors.Is(err, ErrAlreadyResolved):
		httpx.Problem(w, http.StatusConflict, "Already Resolved", "pending ingest was already completed or cancelled")
	case errors.Is(err, ErrNoRDMP):
		httpx.Problem(w, http.StatusConflict, "No RDMP", "project has no rdmp version to pin the run to")
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error("rawdata request", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func urlID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

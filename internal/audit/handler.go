package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/metafirst/supervisor/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the audit timeline.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers audit routes. The router must carry a projectID URL
// parameter.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.timeline)
	r.Get("/export.csv", h.exportCSV)
}

type entryResponse struct {
	ID           int64          `json:"id"`
	ActorID      int64          `json:"actor_id"`
	ActionType   string         `json:"action_type"`
	TargetType   string         `json:"target_type"`
	TargetID     string         `json:"target_id"`
	Before       map[string]any `json:"before,omitempty"`
	After        map[string]any `json:"after,omitempty"`
	SourceDevice string         `json:"source_device,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

type timelineResponse struct {
	Rows   []entryResponse `json:"rows"`
	Paging pagingResponse  `json:"paging"`
}

type pagingResponse struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	projectID, err := strconv.ParseInt(chi.URLParam(r, "projectID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "projectID must be an integer")
		return
	}
	filters, err := filtersFromQuery(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.Timeline(r.Context(), projectID, filters)
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	rows := make([]entryResponse, 0, len(result.Rows))
	for _, e := range result.Rows {
		rows = append(rows, entryResponse{
			ID:           e.ID,
			ActorID:      e.ActorID,
			ActionType:   e.ActionType,
			TargetType:   e.TargetType,
			TargetID:     e.TargetID,
			Before:       e.Before,
			After:        e.After,
			SourceDevice: e.SourceDevice,
			Timestamp:    e.Timestamp,
		})
	}
	httpx.JSON(w, http.StatusOK, timelineResponse{
		Rows: rows,
		Paging: pagingResponse{
			Page:     result.Paging.Page,
			PageSize: result.Paging.PageSize,
			HasNext:  result.Paging.HasNext,
		},
	})
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	projectID, err := strconv.ParseInt(chi.URLParam(r, "projectID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "projectID must be an integer")
		return
	}
	filters, err := filtersFromQuery(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	data, err := h.service.ExportCSV(r.Context(), projectID, filters)
	if err != nil {
		h.logger.Error("audit export", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-log.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func filtersFromQuery(r *http.Request) (TimelineFilters, error) {
	q := r.URL.Query()
	var filters TimelineFilters
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return TimelineFilters{}, err
		}
		filters.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return TimelineFilters{}, err
		}
		filters.To = t
	}
	if raw := q.Get("actor_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return TimelineFilters{}, err
		}
		filters.ActorID = id
	}
	filters.TargetType = q.Get("target_type")
	filters.ActionType = q.Get("action_type")
	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return TimelineFilters{}, err
		}
		filters.Page = page
	}
	if raw := q.Get("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return TimelineFilters{}, err
		}
		filters.PageSize = size
	}
	return filters, nil
}

package audit

import (
	"context"
	"errors"
	"fmt"
)

// Recorder accepts audit entries from mutating services. Storage failures
// propagate unchanged; the recorder never interprets them.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Repository persists and queries audit entries.
type Repository interface {
	Insert(ctx context.Context, entry Entry) error
	TimelineWindow(ctx context.Context, projectID int64, filters TimelineFilters, limit, offset int) ([]Entry, error)
}

// Service records mutations and serves the audit timeline.
type Service struct {
	repo Repository
}

// NewService constructs an audit service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Record appends one entry. Exactly one entry is written per logical change;
// creations carry no before snapshot and deletions no after snapshot.
func (s *Service) Record(ctx context.Context, entry Entry) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: recorder not configured")
	}
	if entry.ActionType == "" || entry.TargetType == "" || entry.TargetID == "" {
		return errors.New("audit: entry requires action/target/target_id")
	}
	return s.repo.Insert(ctx, entry)
}

// Timeline returns one page of audit entries for a project, newest first.
func (s *Service) Timeline(ctx context.Context, projectID int64, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	rows, err := s.repo.TimelineWindow(ctx, projectID, filters, pageSize+1, offset)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

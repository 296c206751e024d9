package rawdata

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/metafirst/supervisor/internal/audit"
	"github.com/metafirst/supervisor/internal/rdmp"
)

// ErrAlreadyResolved indicates a pending ingest was completed or cancelled
// before.
var ErrAlreadyResolved = errors.New("rawdata: pending ingest already resolved")

// ErrNoRDMP indicates the project has no RDMP version yet, so an ingest run
// cannot be pinned to one.
var ErrNoRDMP = errors.New("rawdata: project has no rdmp")

// ServiceRepository is the persistence contract the service needs.
type ServiceRepository interface {
	CreateStorageRoot(ctx context.Context, root StorageRoot) (StorageRoot, error)
	ListStorageRoots(ctx context.Context, projectID int64) ([]StorageRoot, error)
	UpsertMapping(ctx context.Context, m StorageRootMapping) (StorageRootMapping, error)
	InsertItem(ctx context.Context, item RawDataItem) (RawDataItem, error)
	GetItem(ctx context.Context, id int64) (RawDataItem, error)
	ListItems(ctx context.Context, projectID int64) ([]RawDataItem, error)
	MoveItemPath(ctx context.Context, change PathChange) (PathChange, error)
	InsertRun(ctx context.Context, run IngestRun) (IngestRun, error)
	ListRuns(ctx context.Context, projectID int64) ([]IngestRun, error)
	InsertPending(ctx context.Context, p PendingIngest) (PendingIngest, error)
	GetPending(ctx context.Context, id int64) (PendingIngest, error)
	ListPending(ctx context.Context, projectID int64, status string) ([]PendingIngest, error)
	ResolvePending(ctx context.Context, id int64, status string, rawDataItemID *int64) error
}

// PlanSource supplies the current RDMP of a project.
type PlanSource interface {
	GetLatest(ctx context.Context, scope string) (*rdmp.Document, error)
}

// Service manages storage roots, raw data references, and pending ingests.
type Service struct {
	repo     ServiceRepository
	plans    PlanSource
	recorder audit.Recorder
	logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(repo ServiceRepository, plans PlanSource, recorder audit.Recorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, plans: plans, recorder: recorder, logger: logger}
}

// CreateStorageRoot registers a storage location for a project.
func (s *Service) CreateStorageRoot(ctx context.Context, projectID int64, name, description string, actor int64) (StorageRoot, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return StorageRoot{}, errors.New("rawdata: storage root name required")
	}
	root, err := s.repo.CreateStorageRoot(ctx, StorageRoot{ProjectID: projectID, Name: name, Description: description})
	if err != nil {
		return StorageRoot{}, err
	}
	s.record(ctx, audit.Entry{
		ProjectID:  projectID,
		ActorID:    actor,
		ActionType: audit.ActionCreate,
		TargetType: "storage_root",
		TargetID:   strconv.FormatInt(root.ID, 10),
		After:      map[string]any{"name": root.Name},
	})
	return root, nil
}

// ListStorageRoots returns the storage roots of a project.
func (s *Service) ListStorageRoots(ctx context.Context, projectID int64) ([]StorageRoot, error) {
	return s.repo.ListStorageRoots(ctx, projectID)
}

// SetMapping stores a user's local mount path for a storage root.
func (s *Service) SetMapping(ctx context.Context, userID, storageRootID int64, localMountPath string) (StorageRootMapping, error) {
	localMountPath = strings.TrimSpace(localMountPath)
	if localMountPath == "" {
		return StorageRootMapping{}, errors.New("rawdata: local mount path required")
	}
	return s.repo.UpsertMapping(ctx, StorageRootMapping{
		UserID:         userID,
		StorageRootID:  storageRootID,
		LocalMountPath: localMountPath,
	})
}

// RegisterItem records one raw data file reference.
func (s *Service) RegisterItem(ctx context.Context, item RawDataItem, actor int64) (RawDataItem, error) {
	if strings.TrimSpace(item.RelativePath) == "" {
		return RawDataItem{}, errors.New("rawdata: relative path required")
	}
	item.CreatedBy = actor
	created, err := s.repo.InsertItem(ctx, item)
	if err != nil {
		return RawDataItem{}, err
	}
	s.record(ctx, audit.Entry{
		ProjectID:  created.ProjectID,
		ActorID:    actor,
		ActionType: audit.ActionCreate,
		TargetType: "raw_data_item",
		TargetID:   strconv.FormatInt(created.ID, 10),
		After:      itemSnapshot(created),
	})
	return created, nil
}

// ListItems returns all raw data items for a project.
func (s *Service) ListItems(ctx context.Context, projectID int64) ([]RawDataItem, error) {
	return s.repo.ListItems(ctx, projectID)
}

// MovePath relocates a raw data item and appends the path change record.
func (s *Service) MovePath(ctx context.Context, itemID, newStorageRootID int64, newRelativePath, reason string, actor int64) (PathChange, error) {
	if strings.TrimSpace(newRelativePath) == "" {
		return PathChange{}, errors.New("rawdata: relative path required")
	}
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return PathChange{}, err
	}
	change, err := s.repo.MoveItemPath(ctx, PathChange{
		RawDataItemID:    itemID,
		OldStorageRootID: item.StorageRootID,
		OldRelativePath:  item.RelativePath,
		NewStorageRootID: newStorageRootID,
		NewRelativePath:  newRelativePath,
		Reason:           reason,
		ChangedBy:        actor,
	})
	if err != nil {
		return PathChange{}, err
	}
	s.record(ctx, audit.Entry{
		ProjectID:  item.ProjectID,
		ActorID:    actor,
		ActionType: audit.ActionUpdate,
		TargetType: "raw_data_item",
		TargetID:   strconv.FormatInt(itemID, 10),
		Before:     map[string]any{"storage_root_id": item.StorageRootID, "relative_path": item.RelativePath},
		After:      map[string]any{"storage_root_id": newStorageRootID, "relative_path": newRelativePath},
	})
	return change, nil
}

// StartIngestRun opens a batch for the helper, pinned to the project's
// current RDMP version.
func (s *Service) StartIngestRun(ctx context.Context, projectID, storageRootID int64, note string, actor int64) (IngestRun, error) {
	doc, err := s.plans.GetLatest(ctx, rdmp.ProjectScope(projectID))
	if err != nil {
		return IngestRun{}, err
	}
	if doc == nil {
		return IngestRun{}, ErrNoRDMP
	}
	run, err := s.repo.InsertRun(ctx, IngestRun{
		ProjectID:     projectID,
		StorageRootID: storageRootID,
		RDMPVersionID: doc.ID,
		Note:          note,
		CreatedBy:     actor,
	})
	if err != nil {
		return IngestRun{}, err
	}
	s.record(ctx, audit.Entry{
		ProjectID:  projectID,
		ActorID:    actor,
		ActionType: audit.ActionCreate,
		TargetType: "ingest_run",
		TargetID:   strconv.FormatInt(run.ID, 10),
		After:      map[string]any{"storage_root_id": run.StorageRootID, "rdmp_version_id": run.RDMPVersionID},
	})
	return run, nil
}

// ListIngestRuns returns a project's ingest runs, newest first.
func (s *Service) ListIngestRuns(ctx context.Context, projectID int64) ([]IngestRun, error) {
	return s.repo.ListRuns(ctx, projectID)
}

// RegisterPending records a file the helper found, awaiting confirmation.
func (s *Service) RegisterPending(ctx context.Context, p PendingIngest, actor int64) (PendingIngest, error) {
	if strings.TrimSpace(p.RelativePath) == "" {
		return PendingIngest{}, errors.New("rawdata: relative path required")
	}
	p.Status = IngestPending
	p.CreatedBy = actor
	created, err := s.repo.InsertPending(ctx, p)
	if err != nil {
		return PendingIngest{}, err
	}
	s.record(ctx, audit.Entry{
		ProjectID:  created.ProjectID,
		ActorID:    actor,
		ActionType: audit.ActionCreate,
		TargetType: "pending_ingest",
		TargetID:   strconv.FormatInt(created.ID, 10),
		After:      map[string]any{"relative_path": created.RelativePath, "status": created.Status},
	})
	return created, nil
}

// ListPending returns pending ingests for a project, optionally filtered by
// status.
func (s *Service) ListPending(ctx context.Context, projectID int64, status string) ([]PendingIngest, error) {
	return s.repo.ListPending(ctx, projectID, status)
}

// CompletePending turns a pending ingest into a raw data item.
func (s *Service) CompletePending(ctx context.Context, pendingID int64, sampleID *int64, actor int64) (RawDataItem, error) {
	p, err := s.repo.GetPending(ctx, pendingID)
	if err != nil {
		return RawDataItem{}, err
	}
	if p.Status != IngestPending {
		return RawDataItem{}, ErrAlreadyResolved
	}
	item, err := s.RegisterItem(ctx, RawDataItem{
		ProjectID:      p.ProjectID,
		SampleID:       sampleID,
		StorageRootID:  p.StorageRootID,
		RelativePath:   p.RelativePath,
		FileSizeBytes:  p.FileSizeBytes,
		FileHashSHA256: p.FileHashSHA256,
	}, actor)
	if err != nil {
		return RawDataItem{}, err
	}
	if err := s.repo.ResolvePending(ctx, pendingID, IngestCompleted, &item.ID); err != nil {
		return RawDataItem{}, err
	}
	s.record(ctx, audit.Entry{
		ProjectID:  p.ProjectID,
		ActorID:    actor,
		ActionType: audit.ActionUpdate,
		TargetType: "pending_ingest",
		TargetID:   strconv.FormatInt(pendingID, 10),
		Before:     map[string]any{"status": IngestPending},
		After:      map[string]any{"status": IngestCompleted, "raw_data_item_id": item.ID},
	})
	return item, nil
}

// CancelPending marks a pending ingest cancelled.
func (s *Service) CancelPending(ctx context.Context, pendingID int64, actor int64) error {
	p, err := s.repo.GetPending(ctx, pendingID)
	if err != nil {
		return err
	}
	if p.Status != IngestPending {
		return ErrAlreadyResolved
	}
	if err := s.repo.ResolvePending(ctx, pendingID, IngestCancelled, nil); err != nil {
		return err
	}
	s.record(ctx, audit.Entry{
		ProjectID:  p.ProjectID,
		ActorID:    actor,
		ActionType: audit.ActionUpdate,
		TargetType: "pending_ingest",
		TargetID:   strconv.FormatInt(pendingID, 10),
		Before:     map[string]any{"status": IngestPending},
		After:      map[string]any{"status": IngestCancelled},
	})
	return nil
}

func (s *Service) record(ctx context.Context, entry audit.Entry) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, entry); err != nil && s.logger != nil {
		s.logger.Error("record raw data change", slog.Any("error", err))
	}
}

func itemSnapshot(item RawDataItem) map[string]any {
	snapshot := map[string]any{
		"storage_root_id": item.StorageRootID,
		"relative_path":   item.RelativePath,
	}
	if item.SampleID != nil {
		snapshot["sample_id"] = *item.SampleID
	}
	if item.FileHashSHA256 != "" {
		snapshot["file_hash_sha256"] = item.FileHashSHA256
	}
	return snapshot
}

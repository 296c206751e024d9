package release

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/metafirst/supervisor/internal/audit"
	"github.com/metafirst/supervisor/internal/rdmp"
)

var (
	// ErrDuplicateTag indicates the release tag is taken for the project.
	ErrDuplicateTag = errors.New("release: duplicate tag")
	// ErrUnknownRDMPVersion indicates the referenced RDMP version does not
	// belong to the project.
	ErrUnknownRDMPVersion = errors.New("release: unknown rdmp version")
	// ErrUnknownParentRelease indicates the referenced parent release does
	// not exist for the project.
	ErrUnknownParentRelease = errors.New("release: unknown parent release")
	// ErrNotFound indicates the release does not exist.
	ErrNotFound = errors.New("release: not found")
	// ErrTagRequired indicates an empty release tag.
	ErrTagRequired = errors.New("release: tag required")
)

// SnapshotBuilder materializes the denormalized project state frozen into a
// release. Supplied by the caller so the release manager stays independent
// of how project data is laid out.
type SnapshotBuilder func(ctx context.Context, projectID int64) (map[string]any, error)

// ServiceRepository is the persistence contract the service needs.
type ServiceRepository interface {
	Insert(ctx context.Context, rel Release) (Release, error)
	Get(ctx context.Context, id int64) (Release, error)
	List(ctx context.Context, projectID int64) ([]Release, error)
}

// VersionSource resolves RDMP version references.
type VersionSource interface {
	GetVersion(ctx context.Context, id int64) (*rdmp.Document, error)
}

// CreateParams carries the inputs for one release.
type CreateParams struct {
	ProjectID       int64
	Tag             string
	RDMPVersionID   int64
	ParentReleaseID *int64
	Description     string
	Author          int64
}

// Service creates and reads immutable release snapshots.
type Service struct {
	repo     ServiceRepository
	versions VersionSource
	recorder audit.Recorder
	logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(repo ServiceRepository, versions VersionSource, recorder audit.Recorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, versions: versions, recorder: recorder, logger: logger}
}

// Create freezes project state into a release after checking that the tag
// is unused, the RDMP version belongs to the project, and any parent
// release exists for the same project.
func (s *Service) Create(ctx context.Context, params CreateParams, builder SnapshotBuilder) (Release, error) {
	tag := strings.TrimSpace(params.Tag)
	if tag == "" {
		return Release{}, ErrTagRequired
	}

	doc, err := s.versions.GetVersion(ctx, params.RDMPVersionID)
	if err != nil {
		if errors.Is(err, rdmp.ErrNotFound) {
			return Release{}, ErrUnknownRDMPVersion
		}
		return Release{}, err
	}
	if doc.Scope != rdmp.ProjectScope(params.ProjectID) {
		return Release{}, ErrUnknownRDMPVersion
	}

	if params.ParentReleaseID != nil {
		parent, err := s.repo.Get(ctx, *params.ParentReleaseID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return Release{}, ErrUnknownParentRelease
			}
			return Release{}, err
		}
		if parent.ProjectID != params.ProjectID {
			return Release{}, ErrUnknownParentRelease
		}
	}

	snapshot, err := builder(ctx, params.ProjectID)
	if err != nil {
		return Release{}, err
	}

	rel, err := s.repo.Insert(ctx, Release{
		ProjectID:       params.ProjectID,
		ReleaseTag:      tag,
		RDMPVersionID:   params.RDMPVersionID,
		ParentReleaseID: params.ParentReleaseID,
		Description:     params.Description,
		Snapshot:        snapshot,
		CreatedBy:       params.Author,
	})
	if err != nil {
		return Release{}, err
	}

	s.record(ctx, rel)
	return rel, nil
}

// Get fetches one release.
func (s *Service) Get(ctx context.Context, id int64) (Release, error) {
	return s.repo.Get(ctx, id)
}

// List returns all releases for a project, newest first.
func (s *Service) List(ctx context.Context, projectID int64) ([]Release, error) {
	return s.repo.List(ctx, projectID)
}

// Chain returns a release followed by its correction ancestry, oldest
// parent last, by walking parent references.
func (s *Service) Chain(ctx context.Context, id int64) ([]Release, error) {
	var chain []Release
	next := &id
	for next != nil {
		rel, err := s.repo.Get(ctx, *next)
		if err != nil {
			return nil, err
		}
		chain = append(chain, rel)
		next = rel.ParentReleaseID
	}
	return chain, nil
}

func (s *Service) record(ctx context.Context, rel Release) {
	if s.recorder == nil {
		return
	}
	after := map[string]any{
		"release_tag":     rel.ReleaseTag,
		"rdmp_version_id": rel.RDMPVersionID,
	}
	if rel.ParentReleaseID != nil {
		after["parent_release_id"] = *rel.ParentReleaseID
	}
	entry := audit.Entry{
		ProjectID:  rel.ProjectID,
		ActorID:    rel.CreatedBy,
		ActionType: audit.ActionCreate,
		TargetType: "release",
		TargetID:   strconv.FormatInt(rel.ID, 10),
		After:      after,
	}
	if err := s.recorder.Record(ctx, entry); err != nil && s.logger != nil {
		s.logger.Error("record release", slog.Any("error", err))
	}
}

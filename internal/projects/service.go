package projects

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/metafirst/supervisor/internal/audit"
	"github.com/metafirst/supervisor/internal/membership"
)

// ServiceRepository is the persistence contract the service needs.
type ServiceRepository interface {
	Insert(ctx context.Context, p Project) (Project, error)
	Get(ctx context.Context, id int64) (Project, error)
	List(ctx context.Context) ([]Project, error)
}

// MembershipWriter seeds the creator's membership on new projects.
type MembershipWriter interface {
	Add(ctx context.Context, projectID, userID int64, roleName string, actor int64) (membership.Membership, error)
}

// Service manages the project registry.
type Service struct {
	repo        ServiceRepository
	memberships MembershipWriter
	recorder    audit.Recorder
	logger      *slog.Logger
}

// NewService constructs a Service.
func NewService(repo ServiceRepository, memberships MembershipWriter, recorder audit.Recorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, memberships: memberships, recorder: recorder, logger: logger}
}

// Create registers a project and makes the creator a member under the
// given role name. The role only grants anything once a project RDMP
// declaring it exists.
func (s *Service) Create(ctx context.Context, name, description, creatorRole string, actor int64) (Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Project{}, errors.New("projects: name required")
	}
	p, err := s.repo.Insert(ctx, Project{Name: name, Description: description, CreatedBy: actor})
	if err != nil {
		return Project{}, err
	}
	if s.memberships != nil && creatorRole != "" {
		if _, err := s.memberships.Add(ctx, p.ID, actor, creatorRole, actor); err != nil {
			return Project{}, err
		}
	}
	if s.recorder != nil {
		entry := audit.Entry{
			ProjectID:  p.ID,
			ActorID:    actor,
			ActionType: audit.ActionCreate,
			TargetType: "project",
			TargetID:   strconv.FormatInt(p.ID, 10),
			After:      map[string]any{"name": p.Name},
		}
		if err := s.recorder.Record(ctx, entry); err != nil && s.logger != nil {
			s.logger.Error("record project create", slog.Any("error", err))
		}
	}
	return p, nil
}

// Get fetches one project.
func (s *Service) Get(ctx context.Context, id int64) (Project, error) {
	return s.repo.Get(ctx, id)
}

// List returns all projects.
func (s *Service) List(ctx context.Context) ([]Project, error) {
	return s.repo.List(ctx)
}

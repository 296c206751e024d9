package membership

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/metafirst/supervisor/internal/audit"
)

// ServiceRepository is the persistence contract the service needs.
type ServiceRepository interface {
	Insert(ctx context.Context, m Membership) (Membership, error)
	Get(ctx context.Context, projectID, userID int64) (Membership, error)
	List(ctx context.Context, projectID int64) ([]Membership, error)
	UpdateRole(ctx context.Context, projectID, userID int64, roleName string) (Membership, error)
	Delete(ctx context.Context, projectID, userID int64) error
}

// Service orchestrates membership mutations and keeps the audit trail.
type Service struct {
	repo     ServiceRepository
	recorder audit.Recorder
	logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(repo ServiceRepository, recorder audit.Recorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, recorder: recorder, logger: logger}
}

// Add creates a membership.
func (s *Service) Add(ctx context.Context, projectID, userID int64, roleName string, actor int64) (Membership, error) {
	roleName = strings.TrimSpace(roleName)
	if roleName == "" {
		return Membership{}, ErrRoleNameRequired
	}
	m, err := s.repo.Insert(ctx, Membership{
		ProjectID: projectID,
		UserID:    userID,
		RoleName:  roleName,
		CreatedBy: actor,
	})
	if err != nil {
		return Membership{}, err
	}
	s.record(ctx, audit.Entry{
		ProjectID:  projectID,
		ActorID:    actor,
		ActionType: audit.ActionCreate,
		TargetType: "membership",
		TargetID:   strconv.FormatInt(m.ID, 10),
		After:      snapshot(m),
	})
	return m, nil
}

// RoleName implements the membership lookup the permission resolver and
// collaborator tooling need. A missing membership is reported, not an error.
func (s *Service) RoleName(ctx context.Context, projectID, userID int64) (string, bool, error) {
	m, err := s.repo.Get(ctx, projectID, userID)
	if err != nil {
		if err == ErrNotFound {
			return "", false, nil
		}
		return "", false, err
	}
	return m.RoleName, true, nil
}

// List returns all memberships for a project.
func (s *Service) List(ctx context.Context, projectID int64) ([]Membership, error) {
	return s.repo.List(ctx, projectID)
}

// ChangeRole updates the role assignment for a member.
func (s *Service) ChangeRole(ctx context.Context, projectID, userID int64, roleName string, actor int64) (Membership, error) {
	roleName = strings.TrimSpace(roleName)
	if roleName == "" {
		return Membership{}, ErrRoleNameRequired
	}
	before, err := s.repo.Get(ctx, projectID, userID)
	if err != nil {
		return Membership{}, err
	}
	m, err := s.repo.UpdateRole(ctx, projectID, userID, roleName)
	if err != nil {
		return Membership{}, err
	}
	s.record(ctx, audit.Entry{
		ProjectID:  projectID,
		ActorID:    actor,
		ActionType: audit.ActionUpdate,
		TargetType: "membership",
		TargetID:   strconv.FormatInt(m.ID, 10),
		Before:     snapshot(before),
		After:      snapshot(m),
	})
	return m, nil
}

// Remove deletes a membership.
func (s *Service) Remove(ctx context.Context, projectID, userID int64, actor int64) error {
	before, err := s.repo.Get(ctx, projectID, userID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, projectID, userID); err != nil {
		return err
	}
	s.record(ctx, audit.Entry{
		ProjectID:  projectID,
		ActorID:    actor,
		ActionType: audit.ActionDelete,
		TargetType: "membership",
		TargetID:   strconv.FormatInt(before.ID, 10),
		Before:     snapshot(before),
	})
	return nil
}

func (s *Service) record(ctx context.Context, entry audit.Entry) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, entry); err != nil && s.logger != nil {
		s.logger.Error("record membership change", slog.Any("error", err))
	}
}

func snapshot(m Membership) map[string]any {
	return map[string]any{
		"project_id": m.ProjectID,
		"user_id":    m.UserID,
		"role_name":  m.RoleName,
	}
}

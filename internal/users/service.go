package users

import (
	"context"
	"strings"
)

// RepositoryPort defines data access methods for the directory.
type RepositoryPort interface {
	ListUsers(ctx context.Context, query string) ([]User, error)
}

// Service handles directory lookups used by membership pickers.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// List returns active users matching the optional search query.
func (s *Service) List(ctx context.Context, query string) ([]User, error) {
	return s.repo.ListUsers(ctx, strings.TrimSpace(query))
}

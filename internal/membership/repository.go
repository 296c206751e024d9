package membership

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAlreadyMember indicates the (project, user) pair already has a row.
var ErrAlreadyMember = errors.New("membership: user already a member")

// ErrNotFound indicates the membership does not exist.
var ErrNotFound = errors.New("membership: not found")

// ErrRoleNameRequired indicates an empty role name on a mutation.
var ErrRoleNameRequired = errors.New("membership: role name required")

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert creates one membership row.
func (r *Repository) Insert(ctx context.Context, m Membership) (Membership, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO memberships (project_id, user_id, role_name, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		m.ProjectID, m.UserID, m.RoleName, m.CreatedBy).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Membership{}, ErrAlreadyMember
		}
		return Membership{}, err
	}
	return m, nil
}

// Get fetches the membership for a (project, user) pair.
func (r *Repository) Get(ctx context.Context, projectID, userID int64) (Membership, error) {
	var m Membership
	err := r.pool.QueryRow(ctx, `
		SELECT id, project_id, user_id, role_name, created_at, created_by
		FROM memberships WHERE project_id = $1 AND user_id = $2`,
		projectID, userID).Scan(&m.ID, &m.ProjectID, &m.UserID, &m.RoleName, &m.CreatedAt, &m.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Membership{}, ErrNotFound
		}
		return Membership{}, err
	}
	return m, nil
}

// List returns all memberships for a project.
func (r *Repository) List(ctx context.Context, projectID int64) ([]Membership, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, project_id, user_id, role_name, created_at, created_by
		FROM memberships WHERE project_id = $1 ORDER BY id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var memberships []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.UserID, &m.RoleName, &m.CreatedAt, &m.CreatedBy); err != nil {
			return nil, err
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

// UpdateRole changes the role name for a membership.
func (r *Repository) UpdateRole(ctx context.Context, projectID, userID int64, roleName string) (Membership, error) {
	var m Membership
	err := r.pool.QueryRow(ctx, `
		UPDATE memberships SET role_name = $3
		WHERE project_id = $1 AND user_id = $2
		RETURNING id, project_id, user_id, role_name, created_at, created_by`,
		projectID, userID, roleName).Scan(&m.ID, &m.ProjectID, &m.UserID, &m.RoleName, &m.CreatedAt, &m.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Membership{}, ErrNotFound
		}
		return Membership{}, err
	}
	return m, nil
}

// Delete removes a membership. Returns ErrNotFound when nothing was deleted.
func (r *Repository) Delete(ctx context.Context, projectID, userID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM memberships WHERE project_id = $1 AND user_id = $2`, projectID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

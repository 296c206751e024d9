package projects

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the project does not exist.
var ErrNotFound = errors.New("projects: not found")

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert creates one project row.
func (r *Repository) Insert(ctx context.Context, p Project) (Project, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO projects (name, description, created_by)
		VALUES ($1, NULLIF($2, ''), $3)
		RETURNING id, created_at`,
		p.Name, p.Description, p.CreatedBy).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return Project{}, err
	}
	return p, nil
}

// Get fetches one project by id.
func (r *Repository) Get(ctx context.Context, id int64) (Project, error) {
	var p Project
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, COALESCE(description, ''), created_at, created_by
		FROM projects WHERE id = $1`, id).Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Project{}, ErrNotFound
		}
		return Project{}, err
	}
	return p, nil
}

// List returns all projects ordered by name.
func (r *Repository) List(ctx context.Context) ([]Project, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, COALESCE(description, ''), created_at, created_by
		FROM projects ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.CreatedBy); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

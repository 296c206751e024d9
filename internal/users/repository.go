package users

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListUsers returns active users, optionally filtered by a case-insensitive
// substring match on email or display name.
func (r *Repository) ListUsers(ctx context.Context, query string) ([]User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, email, COALESCE(display_name, ''), is_active, created_at
		FROM users
		WHERE is_active
		  AND ($1 = '' OR email ILIKE '%' || $1 || '%' OR display_name ILIKE '%' || $1 || '%')
		ORDER BY email`, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []User
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Email, &user.DisplayName, &user.IsActive, &user.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

var _ RepositoryPort = (*Repository)(nil)

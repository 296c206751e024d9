package release

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence. Release rows are
// insert-only.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const releaseColumns = `id, project_id, release_tag, rdmp_version_id, parent_release_id, COALESCE(description, ''), snapshot_json, created_at, created_by`

// Insert creates one release row. A unique violation on
// (project_id, release_tag) maps to ErrDuplicateTag.
func (r *Repository) Insert(ctx context.Context, rel Release) (Release, error) {
	snapshotJSON, err := json.Marshal(rel.Snapshot)
	if err != nil {
		return Release{}, err
	}
	err = r.pool.QueryRow(ctx, `
		INSERT INTO releases (project_id, release_tag, rdmp_version_id, parent_release_id, description, snapshot_json, created_by)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
		RETURNING id, created_at`,
		rel.ProjectID, rel.ReleaseTag, rel.RDMPVersionID, rel.ParentReleaseID, rel.Description, snapshotJSON, rel.CreatedBy).
		Scan(&rel.ID, &rel.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Release{}, ErrDuplicateTag
		}
		return Release{}, err
	}
	return rel, nil
}

// Get fetches one release by id.
func (r *Repository) Get(ctx context.Context, id int64) (Release, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+releaseColumns+` FROM releases WHERE id = $1`, id)
	rel, err := scanRelease(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Release{}, ErrNotFound
		}
		return Release{}, err
	}
	return rel, nil
}

// List returns all releases for a project, newest first.
func (r *Repository) List(ctx context.Context, projectID int64) ([]Release, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+releaseColumns+` FROM releases
		WHERE project_id = $1 ORDER BY created_at DESC, id DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var releases []Release
	for rows.Next() {
		rel, err := scanRelease(rows)
		if err != nil {
			return nil, err
		}
		releases = append(releases, rel)
	}
	return releases, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRelease(row rowScanner) (Release, error) {
	var rel Release
	var snapshotJSON []byte
	if err := row.Scan(&rel.ID, &rel.ProjectID, &rel.ReleaseTag, &rel.RDMPVersionID, &rel.ParentReleaseID,
		&rel.Description, &snapshotJSON, &rel.CreatedAt, &rel.CreatedBy); err != nil {
		return Release{}, err
	}
	if err := json.Unmarshal(snapshotJSON, &rel.Snapshot); err != nil {
		return Release{}, err
	}
	return rel, nil
}

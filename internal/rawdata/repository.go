package rawdata

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/metafirst/supervisor/internal/platform/db"
)

var (
	// ErrNotFound indicates the record does not exist.
	ErrNotFound = errors.New("rawdata: not found")
	// ErrDuplicatePath indicates the (storage root, relative path) pair is
	// already registered.
	ErrDuplicatePath = errors.New("rawdata: path already registered")
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateStorageRoot inserts a storage root.
func (r *Repository) CreateStorageRoot(ctx context.Context, root StorageRoot) (StorageRoot, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO storage_roots (project_id, name, description)
		VALUES ($1, $2, NULLIF($3, ''))
		RETURNING id, created_at`,
		root.ProjectID, root.Name, root.Description).Scan(&root.ID, &root.CreatedAt)
	if err != nil {
		return StorageRoot{}, err
	}
	return root, nil
}

// ListStorageRoots returns the storage roots of a project.
func (r *Repository) ListStorageRoots(ctx context.Context, projectID int64) ([]StorageRoot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, project_id, name, COALESCE(description, ''), created_at
		FROM storage_roots WHERE project_id = $1 ORDER BY name`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roots []StorageRoot
	for rows.Next() {
		var root StorageRoot
		if err := rows.Scan(&root.ID, &root.ProjectID, &root.Name, &root.Description, &root.CreatedAt); err != nil {
			return nil, err
		}
		roots = append(roots, root)
	}
	return roots, rows.Err()
}

// UpsertMapping sets a user's local mount path for a storage root.
func (r *Repository) UpsertMapping(ctx context.Context, m StorageRootMapping) (StorageRootMapping, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO storage_root_mappings (user_id, storage_root_id, local_mount_path)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, storage_root_id)
		DO UPDATE SET local_mount_path = EXCLUDED.local_mount_path, updated_at = NOW()
		RETURNING id, updated_at`,
		m.UserID, m.StorageRootID, m.LocalMountPath).Scan(&m.ID, &m.UpdatedAt)
	if err != nil {
		return StorageRootMapping{}, err
	}
	return m, nil
}

const itemColumns = `id, project_id, sample_id, storage_root_id, relative_path, file_size_bytes, COALESCE(file_hash_sha256, ''), created_at, created_by`

// InsertItem registers a raw data item.
func (r *Repository) InsertItem(ctx context.Context, item RawDataItem) (RawDataItem, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO raw_data_items (project_id, sample_id, storage_root_id, relative_path, file_size_bytes, file_hash_sha256, created_by)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
		RETURNING id, created_at`,
		item.ProjectID, item.SampleID, item.StorageRootID, item.RelativePath,
		item.FileSizeBytes, item.FileHashSHA256, item.CreatedBy).Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return RawDataItem{}, ErrDuplicatePath
		}
		return RawDataItem{}, err
	}
	return item, nil
}

// GetItem fetches one raw data item.
func (r *Repository) GetItem(ctx context.Context, id int64) (RawDataItem, error) {
	var item RawDataItem
	err := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM raw_data_items WHERE id = $1`, id).
		Scan(&item.ID, &item.ProjectID, &item.SampleID, &item.StorageRootID, &item.RelativePath,
			&item.FileSizeBytes, &item.FileHashSHA256, &item.CreatedAt, &item.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RawDataItem{}, ErrNotFound
		}
		return RawDataItem{}, err
	}
	return item, nil
}

// ListItems returns all raw data items for a project.
func (r *Repository) ListItems(ctx context.Context, projectID int64) ([]RawDataItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+itemColumns+` FROM raw_data_items WHERE project_id = $1 ORDER BY id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []RawDataItem
	for rows.Next() {
		var item RawDataItem
		if err := rows.Scan(&item.ID, &item.ProjectID, &item.SampleID, &item.StorageRootID, &item.RelativePath,
			&item.FileSizeBytes, &item.FileHashSHA256, &item.CreatedAt, &item.CreatedBy); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// MoveItemPath moves an item to a new root/path and records the change in
// path_changes within one transaction.
func (r *Repository) MoveItemPath(ctx context.Context, change PathChange) (PathChange, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE raw_data_items SET storage_root_id = $2, relative_path = $3 WHERE id = $1`,
			change.RawDataItemID, change.NewStorageRootID, change.NewRelativePath)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrDuplicatePath
			}
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return tx.QueryRow(ctx, `
			INSERT INTO path_changes (raw_data_item_id, old_storage_root_id, old_relative_path, new_storage_root_id, new_relative_path, reason, changed_by)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)
			RETURNING id, changed_at`,
			change.RawDataItemID, change.OldStorageRootID, change.OldRelativePath,
			change.NewStorageRootID, change.NewRelativePath, change.Reason, change.ChangedBy).
			Scan(&change.ID, &change.ChangedAt)
	})
	if err != nil {
		return PathChange{}, err
	}
	return change, nil
}

// InsertRun records an ingest run.
func (r *Repository) InsertRun(ctx context.Context, run IngestRun) (IngestRun, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO ingest_runs (project_id, storage_root_id, rdmp_version_id, note, created_by)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		RETURNING id, started_at`,
		run.ProjectID, run.StorageRootID, run.RDMPVersionID, run.Note, run.CreatedBy).
		Scan(&run.ID, &run.StartedAt)
	if err != nil {
		return IngestRun{}, err
	}
	return run, nil
}

// ListRuns returns the ingest runs of a project, newest first.
func (r *Repository) ListRuns(ctx context.Context, projectID int64) ([]IngestRun, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, project_id, storage_root_id, rdmp_version_id, COALESCE(note, ''), started_at, created_by
		FROM ingest_runs WHERE project_id = $1 ORDER BY id DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []IngestRun
	for rows.Next() {
		var run IngestRun
		if err := rows.Scan(&run.ID, &run.ProjectID, &run.StorageRootID, &run.RDMPVersionID,
			&run.Note, &run.StartedAt, &run.CreatedBy); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

const pendingColumns = `id, project_id, ingest_run_id, storage_root_id, relative_path, COALESCE(inferred_sample_identifier, ''), file_size_bytes, COALESCE(file_hash_sha256, ''), status, created_at, created_by, completed_at, raw_data_item_id`

// InsertPending registers a pending ingest.
func (r *Repository) InsertPending(ctx context.Context, p PendingIngest) (PendingIngest, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO pending_ingests (project_id, ingest_run_id, storage_root_id, relative_path, inferred_sample_identifier, file_size_bytes, file_hash_sha256, status, created_by)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NULLIF($7, ''), $8, $9)
		RETURNING id, created_at`,
		p.ProjectID, p.IngestRunID, p.StorageRootID, p.RelativePath, p.InferredSampleIdentifier,
		p.FileSizeBytes, p.FileHashSHA256, p.Status, p.CreatedBy).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return PendingIngest{}, err
	}
	return p, nil
}

// GetPending fetches one pending ingest.
func (r *Repository) GetPending(ctx context.Context, id int64) (PendingIngest, error) {
	var p PendingIngest
	err := r.pool.QueryRow(ctx, `SELECT `+pendingColumns+` FROM pending_ingests WHERE id = $1`, id).
		Scan(&p.ID, &p.ProjectID, &p.IngestRunID, &p.StorageRootID, &p.RelativePath, &p.InferredSampleIdentifier,
			&p.FileSizeBytes, &p.FileHashSHA256, &p.Status, &p.CreatedAt, &p.CreatedBy, &p.CompletedAt, &p.RawDataItemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PendingIngest{}, ErrNotFound
		}
		return PendingIngest{}, err
	}
	return p, nil
}

// ListPending returns pending ingests for a project filtered by status.
func (r *Repository) ListPending(ctx context.Context, projectID int64, status string) ([]PendingIngest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+pendingColumns+` FROM pending_ingests
		WHERE project_id = $1 AND ($2::text = '' OR status = $2)
		ORDER BY id`, projectID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []PendingIngest
	for rows.Next() {
		var p PendingIngest
		if err := rows.Scan(&p.ID, &p.ProjectID, &p.IngestRunID, &p.StorageRootID, &p.RelativePath, &p.InferredSampleIdentifier,
			&p.FileSizeBytes, &p.FileHashSHA256, &p.Status, &p.CreatedAt, &p.CreatedBy, &p.CompletedAt, &p.RawDataItemID); err != nil {
			return nil, err
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// ResolvePending marks a pending ingest completed or cancelled.
func (r *Repository) ResolvePending(ctx context.Context, id int64, status string, rawDataItemID *int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE pending_ingests SET status = $2, raw_data_item_id = $3, completed_at = NOW()
		WHERE id = $1 AND status = $4`,
		id, status, rawDataItemID, IngestPending)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

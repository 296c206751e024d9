package permission

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/metafirst/supervisor/internal/platform/db"
	"github.com/metafirst/supervisor/internal/rdmp"
)

// PGSnapshotReader reads membership and the current RDMP inside one
// RepeatableRead transaction.
type PGSnapshotReader struct {
	pool *pgxpool.Pool
}

// NewSnapshotReader constructs a PGSnapshotReader.
func NewSnapshotReader(pool *pgxpool.Pool) *PGSnapshotReader {
	return &PGSnapshotReader{pool: pool}
}

// Snapshot implements SnapshotReader.
func (r *PGSnapshotReader) Snapshot(ctx context.Context, projectID, userID int64) (Snapshot, error) {
	var snapshot Snapshot
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`SELECT role_name FROM memberships WHERE project_id = $1 AND user_id = $2`,
			projectID, userID).Scan(&snapshot.RoleName)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return err
		}
		snapshot.HasMembership = true

		var doc rdmp.Document
		var bodyJSON []byte
		err = tx.QueryRow(ctx, `
			SELECT id, scope, version_int, body, created_at, created_by
			FROM rdmp_documents WHERE scope = $1
			ORDER BY version_int DESC LIMIT 1`,
			rdmp.ProjectScope(projectID)).Scan(
			&doc.ID, &doc.Scope, &doc.VersionInt, &bodyJSON, &doc.CreatedAt, &doc.CreatedBy)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return err
		}
		if err := json.Unmarshal(bodyJSON, &doc.Body); err != nil {
			return err
		}
		snapshot.Document = &doc
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return snapshot, nil
}

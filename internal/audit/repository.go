package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository provides PostgreSQL backed persistence for audit entries.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Insert appends one audit entry.
func (r *PGRepository) Insert(ctx context.Context, entry Entry) error {
	beforeJSON, err := marshalSnapshot(entry.Before)
	if err != nil {
		return err
	}
	afterJSON, err := marshalSnapshot(entry.After)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO audit_logs (project_id, actor_user_id, action_type, target_type, target_id, before_json, after_json, source_device, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, NOW()))`,
		entry.ProjectID, entry.ActorID, entry.ActionType, entry.TargetType, entry.TargetID,
		beforeJSON, afterJSON, nullableText(entry.SourceDevice), nullableTime(entry.Timestamp))
	return err
}

// TimelineWindow returns one window of entries for a project, newest first.
func (r *PGRepository) TimelineWindow(ctx context.Context, projectID int64, filters TimelineFilters, limit, offset int) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, project_id, actor_user_id, action_type, target_type, target_id, before_json, after_json, COALESCE(source_device, ''), occurred_at
		FROM audit_logs
		WHERE project_id = $1
		  AND ($2::timestamptz IS NULL OR occurred_at >= $2)
		  AND ($3::timestamptz IS NULL OR occurred_at <= $3)
		  AND ($4::bigint = 0 OR actor_user_id = $4)
		  AND ($5::text = '' OR target_type = $5)
		  AND ($6::text = '' OR action_type = $6)
		ORDER BY occurred_at DESC, id DESC
		LIMIT $7 OFFSET $8`,
		projectID, nullableTime(filters.From), nullableTime(filters.To),
		filters.ActorID, filters.TargetType, filters.ActionType, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var beforeJSON, afterJSON []byte
		if err := rows.Scan(&entry.ID, &entry.ProjectID, &entry.ActorID, &entry.ActionType, &entry.TargetType,
			&entry.TargetID, &beforeJSON, &afterJSON, &entry.SourceDevice, &entry.Timestamp); err != nil {
			return nil, err
		}
		if entry.Before, err = unmarshalSnapshot(beforeJSON); err != nil {
			return nil, err
		}
		if entry.After, err = unmarshalSnapshot(afterJSON); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func marshalSnapshot(snapshot map[string]any) ([]byte, error) {
	if snapshot == nil {
		return nil, nil
	}
	return json.Marshal(snapshot)
}

func unmarshalSnapshot(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var snapshot map[string]any
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

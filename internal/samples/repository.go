package samples

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates the sample does not exist.
var ErrNotFound = errors.New("samples: not found")

// ErrDuplicateIdentifier indicates the sample identifier is taken within
// the project.
var ErrDuplicateIdentifier = errors.New("samples: duplicate sample identifier")

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert creates one sample row.
func (r *Repository) Insert(ctx context.Context, s Sample) (Sample, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO samples (project_id, sample_identifier, created_by)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		s.ProjectID, s.SampleIdentifier, s.CreatedBy).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Sample{}, ErrDuplicateIdentifier
		}
		return Sample{}, err
	}
	return s, nil
}

// Get fetches one sample by id.
func (r *Repository) Get(ctx context.Context, id int64) (Sample, error) {
	var s Sample
	err := r.pool.QueryRow(ctx, `
		SELECT id, project_id, sample_identifier, created_at, created_by
		FROM samples WHERE id = $1`, id).Scan(&s.ID, &s.ProjectID, &s.SampleIdentifier, &s.CreatedAt, &s.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sample{}, ErrNotFound
		}
		return Sample{}, err
	}
	return s, nil
}

// List returns all samples for a project ordered by identifier.
func (r *Repository) List(ctx context.Context, projectID int64) ([]Sample, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, project_id, sample_identifier, created_at, created_by
		FROM samples WHERE project_id = $1 ORDER BY sample_identifier`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Sample
	for rows.Next() {
		var s Sample
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.SampleIdentifier, &s.CreatedAt, &s.CreatedBy); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// FieldValues returns all field values for a sample in field key order.
func (r *Repository) FieldValues(ctx context.Context, sampleID int64) ([]FieldValue, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, sample_id, field_key, value_json, updated_at, updated_by
		FROM field_values WHERE sample_id = $1 ORDER BY field_key`, sampleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []FieldValue
	for rows.Next() {
		fv, err := scanFieldValue(rows)
		if err != nil {
			return nil, err
		}
		values = append(values, fv)
	}
	return values, rows.Err()
}

// GetFieldValue fetches one field value by key, if present.
func (r *Repository) GetFieldValue(ctx context.Context, sampleID int64, fieldKey string) (FieldValue, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, sample_id, field_key, value_json, updated_at, updated_by
		FROM field_values WHERE sample_id = $1 AND field_key = $2`, sampleID, fieldKey)
	fv, err := scanFieldValue(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FieldValue{}, ErrNotFound
		}
		return FieldValue{}, err
	}
	return fv, nil
}

// UpsertFieldValue sets one field value, replacing any prior value for the
// same key.
func (r *Repository) UpsertFieldValue(ctx context.Context, fv FieldValue) (FieldValue, error) {
	valueJSON, err := json.Marshal(fv.Value)
	if err != nil {
		return FieldValue{}, err
	}
	err = r.pool.QueryRow(ctx, `
		INSERT INTO field_values (sample_id, field_key, value_json, updated_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (sample_id, field_key)
		DO UPDATE SET value_json = EXCLUDED.value_json, updated_by = EXCLUDED.updated_by, updated_at = NOW()
		RETURNING id, updated_at`,
		fv.SampleID, fv.FieldKey, valueJSON, fv.UpdatedBy).Scan(&fv.ID, &fv.UpdatedAt)
	if err != nil {
		return FieldValue{}, err
	}
	return fv, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFieldValue(row rowScanner) (FieldValue, error) {
	var fv FieldValue
	var valueJSON []byte
	if err := row.Scan(&fv.ID, &fv.SampleID, &fv.FieldKey, &valueJSON, &fv.UpdatedAt, &fv.UpdatedBy); err != nil {
		return FieldValue{}, err
	}
	if err := json.Unmarshal(valueJSON, &fv.Value); err != nil {
		return FieldValue{}, err
	}
	return fv, nil
}

package rdmp

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for templates and
// document versions. Document rows are insert-only.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const documentColumns = `id, scope, version_int, body, COALESCE(provenance, 'null'::jsonb), COALESCE(status, ''), COALESCE(title, ''), created_at, created_by, updated_at, approved_by`

// InsertDocument appends one document version. A unique violation on
// (scope, version_int) maps to errVersionTaken so the store can retry.
func (r *Repository) InsertDocument(ctx context.Context, doc Document) (Document, error) {
	bodyJSON, err := json.Marshal(doc.Body)
	if err != nil {
		return Document{}, err
	}
	var provenanceJSON []byte
	if doc.Provenance != nil {
		if provenanceJSON, err = json.Marshal(doc.Provenance); err != nil {
			return Document{}, err
		}
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO rdmp_documents (scope, version_int, body, provenance, status, title, created_by, approved_by)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8)
		RETURNING `+documentColumns,
		doc.Scope, doc.VersionInt, bodyJSON, provenanceJSON, doc.Status, doc.Title, doc.CreatedBy, doc.ApprovedBy)
	inserted, err := scanDocument(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "uq_rdmp_scope_version" {
			return Document{}, errVersionTaken
		}
		return Document{}, err
	}
	return inserted, nil
}

// MaxVersion returns the highest committed version number for a scope, zero
// when the scope has no versions.
func (r *Repository) MaxVersion(ctx context.Context, scope string) (int, error) {
	var max int
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(MAX(version_int), 0) FROM rdmp_documents WHERE scope = $1`, scope).Scan(&max)
	return max, err
}

// GetLatest returns the document with the highest version number for a
// scope, or nil when the scope has no versions.
func (r *Repository) GetLatest(ctx context.Context, scope string) (*Document, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+documentColumns+` FROM rdmp_documents
		WHERE scope = $1 ORDER BY version_int DESC LIMIT 1`, scope)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

// GetByID fetches one document version by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Document, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM rdmp_documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// List returns all versions for a scope, newest first.
func (r *Repository) List(ctx context.Context, scope string) ([]Document, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+documentColumns+` FROM rdmp_documents
		WHERE scope = $1 ORDER BY version_int DESC`, scope)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// CreateTemplate inserts a template registry row.
func (r *Repository) CreateTemplate(ctx context.Context, name, description string) (Template, error) {
	var tpl Template
	err := r.pool.QueryRow(ctx, `
		INSERT INTO rdmp_templates (name, description) VALUES ($1, $2)
		RETURNING id, name, COALESCE(description, ''), created_at`,
		name, description).Scan(&tpl.ID, &tpl.Name, &tpl.Description, &tpl.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Template{}, ErrDuplicateTemplate
		}
		return Template{}, err
	}
	return tpl, nil
}

// GetTemplate fetches a template by id.
func (r *Repository) GetTemplate(ctx context.Context, id int64) (Template, error) {
	var tpl Template
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, COALESCE(description, ''), created_at FROM rdmp_templates WHERE id = $1`,
		id).Scan(&tpl.ID, &tpl.Name, &tpl.Description, &tpl.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Template{}, ErrNotFound
		}
		return Template{}, err
	}
	return tpl, nil
}

// ListTemplates returns all templates ordered by name.
func (r *Repository) ListTemplates(ctx context.Context) ([]Template, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, COALESCE(description, ''), created_at FROM rdmp_templates ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []Template
	for rows.Next() {
		var tpl Template
		if err := rows.Scan(&tpl.ID, &tpl.Name, &tpl.Description, &tpl.CreatedAt); err != nil {
			return nil, err
		}
		templates = append(templates, tpl)
	}
	return templates, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var bodyJSON, provenanceJSON []byte
	if err := row.Scan(&doc.ID, &doc.Scope, &doc.VersionInt, &bodyJSON, &provenanceJSON,
		&doc.Status, &doc.Title, &doc.CreatedAt, &doc.CreatedBy, &doc.UpdatedAt, &doc.ApprovedBy); err != nil {
		return Document{}, err
	}
	if err := json.Unmarshal(bodyJSON, &doc.Body); err != nil {
		return Document{}, err
	}
	if err := json.Unmarshal(provenanceJSON, &doc.Provenance); err != nil {
		return Document{}, err
	}
	return doc, nil
}

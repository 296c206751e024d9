package rdmp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/metafirst/supervisor/internal/audit"
)

// maxAppendRetries bounds the optimistic retry loop in Append. Appends are
// rare relative to reads, so contention past this is treated as a conflict.
const maxAppendRetries = 3

// StoreRepository is the persistence contract the version store needs.
type StoreRepository interface {
	InsertDocument(ctx context.Context, doc Document) (Document, error)
	MaxVersion(ctx context.Context, scope string) (int, error)
	GetLatest(ctx context.Context, scope string) (*Document, error)
	GetByID(ctx context.Context, id int64) (*Document, error)
	List(ctx context.Context, scope string) ([]Document, error)
	CreateTemplate(ctx context.Context, name, description string) (Template, error)
	GetTemplate(ctx context.Context, id int64) (Template, error)
	ListTemplates(ctx context.Context) ([]Template, error)
}

// AppendOptions carries the metadata persisted alongside a new version.
type AppendOptions struct {
	Author     int64
	Title      string
	Status     string
	Provenance map[string]any
	ApprovedBy *int64
}

// Store is the append-only version store for template and project scoped
// RDMP documents.
type Store struct {
	repo     StoreRepository
	recorder audit.Recorder
	logger   *slog.Logger
}

// NewStore constructs a Store.
func NewStore(repo StoreRepository, recorder audit.Recorder, logger *slog.Logger) *Store {
	return &Store{repo: repo, recorder: recorder, logger: logger}
}

// Append validates the body and commits it as the next version for the
// scope. Version numbers per scope are contiguous from 1; two concurrent
// appends can never both commit the same number. The read-max-then-insert
// race is resolved by the unique (scope, version_int) constraint plus a
// bounded retry with a re-read max.
func (s *Store) Append(ctx context.Context, scope string, body map[string]any, opts AppendOptions) (Document, error) {
	if ok, validationErrs := ValidateSchema(body); !ok {
		return Document{}, &SchemaError{Errors: validationErrs}
	}

	var inserted Document
	for attempt := 0; attempt <= maxAppendRetries; attempt++ {
		max, err := s.repo.MaxVersion(ctx, scope)
		if err != nil {
			return Document{}, err
		}
		inserted, err = s.repo.InsertDocument(ctx, Document{
			Scope:      scope,
			VersionInt: max + 1,
			Body:       body,
			Provenance: opts.Provenance,
			Status:     opts.Status,
			Title:      opts.Title,
			CreatedBy:  opts.Author,
			ApprovedBy: opts.ApprovedBy,
		})
		if err == nil {
			break
		}
		if !errors.Is(err, errVersionTaken) {
			return Document{}, err
		}
		if attempt == maxAppendRetries {
			return Document{}, ErrVersionConflict
		}
		if s.logger != nil {
			s.logger.Debug("rdmp append retry", slog.String("scope", scope), slog.Int("attempt", attempt+1))
		}
	}

	s.recordAppend(ctx, inserted)
	return inserted, nil
}

// GetLatest returns the current document for a scope, or nil when the scope
// has no versions yet. An empty scope is not an error.
func (s *Store) GetLatest(ctx context.Context, scope string) (*Document, error) {
	return s.repo.GetLatest(ctx, scope)
}

// GetVersion fetches one version by id.
func (s *Store) GetVersion(ctx context.Context, id int64) (*Document, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns all versions for a scope, newest first.
func (s *Store) List(ctx context.Context, scope string) ([]Document, error) {
	return s.repo.List(ctx, scope)
}

// CreateTemplate registers a template and commits its initial version.
func (s *Store) CreateTemplate(ctx context.Context, name, description string, body map[string]any, author int64) (Template, Document, error) {
	if ok, validationErrs := ValidateSchema(body); !ok {
		return Template{}, Document{}, &SchemaError{Errors: validationErrs}
	}
	tpl, err := s.repo.CreateTemplate(ctx, name, description)
	if err != nil {
		return Template{}, Document{}, err
	}
	doc, err := s.Append(ctx, TemplateScope(tpl.ID), body, AppendOptions{Author: author})
	if err != nil {
		return Template{}, Document{}, fmt.Errorf("rdmp: initial template version: %w", err)
	}
	return tpl, doc, nil
}

// GetTemplate fetches a template registry row.
func (s *Store) GetTemplate(ctx context.Context, id int64) (Template, error) {
	return s.repo.GetTemplate(ctx, id)
}

// ListTemplates returns all registered templates.
func (s *Store) ListTemplates(ctx context.Context) ([]Template, error) {
	return s.repo.ListTemplates(ctx)
}

func (s *Store) recordAppend(ctx context.Context, doc Document) {
	if s.recorder == nil {
		return
	}
	entry := audit.Entry{
		ProjectID:  ProjectIDFromScope(doc.Scope),
		ActorID:    doc.CreatedBy,
		ActionType: audit.ActionCreate,
		TargetType: "rdmp_version",
		TargetID:   strconv.FormatInt(doc.ID, 10),
		After: map[string]any{
			"scope":       doc.Scope,
			"version_int": doc.VersionInt,
			"title":       doc.Title,
			"status":      doc.Status,
		},
	}
	if err := s.recorder.Record(ctx, entry); err != nil && s.logger != nil {
		s.logger.Error("record rdmp append", slog.Any("error", err))
	}
}

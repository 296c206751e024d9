package samples

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/metafirst/supervisor/internal/audit"
	"github.com/metafirst/supervisor/internal/rdmp"
)

// ErrUnknownField indicates the field key is not declared in the project's
// current RDMP.
var ErrUnknownField = errors.New("samples: field not declared in current rdmp")

// ErrNoRDMP indicates the project has no RDMP version yet, so field keys
// cannot be interpreted.
var ErrNoRDMP = errors.New("samples: project has no rdmp")

// ValidationError reports a value rejected by the field declaration.
type ValidationError struct {
	FieldKey string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("samples: field %s: %s", e.FieldKey, e.Reason)
}

// ServiceRepository is the persistence contract the service needs.
type ServiceRepository interface {
	Insert(ctx context.Context, s Sample) (Sample, error)
	Get(ctx context.Context, id int64) (Sample, error)
	List(ctx context.Context, projectID int64) ([]Sample, error)
	FieldValues(ctx context.Context, sampleID int64) ([]FieldValue, error)
	GetFieldValue(ctx context.Context, sampleID int64, fieldKey string) (FieldValue, error)
	UpsertFieldValue(ctx context.Context, fv FieldValue) (FieldValue, error)
}

// RDMPSource supplies the current governance document for a project.
type RDMPSource interface {
	GetLatest(ctx context.Context, scope string) (*rdmp.Document, error)
}

// Service manages samples and their metadata under the project's RDMP.
type Service struct {
	repo     ServiceRepository
	rdmps    RDMPSource
	recorder audit.Recorder
	logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(repo ServiceRepository, rdmps RDMPSource, recorder audit.Recorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, rdmps: rdmps, recorder: recorder, logger: logger}
}

// Create registers a sample.
func (s *Service) Create(ctx context.Context, projectID int64, identifier string, actor int64) (Sample, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return Sample{}, errors.New("samples: sample identifier required")
	}
	sample, err := s.repo.Insert(ctx, Sample{ProjectID: projectID, SampleIdentifier: identifier, CreatedBy: actor})
	if err != nil {
		return Sample{}, err
	}
	s.record(ctx, audit.Entry{
		ProjectID:  projectID,
		ActorID:    actor,
		ActionType: audit.ActionCreate,
		TargetType: "sample",
		TargetID:   strconv.FormatInt(sample.ID, 10),
		After:      map[string]any{"sample_identifier": sample.SampleIdentifier},
	})
	return sample, nil
}

// Get fetches one sample.
func (s *Service) Get(ctx context.Context, id int64) (Sample, error) {
	return s.repo.Get(ctx, id)
}

// List returns all samples for a project.
func (s *Service) List(ctx context.Context, projectID int64) ([]Sample, error) {
	return s.repo.List(ctx, projectID)
}

// FieldValues returns all field values for a sample.
func (s *Service) FieldValues(ctx context.Context, sampleID int64) ([]FieldValue, error) {
	return s.repo.FieldValues(ctx, sampleID)
}

// SetField validates and stores one field value. The key must be declared
// in the project's current RDMP and the value must pass the field's type
// and constraint checks.
func (s *Service) SetField(ctx context.Context, sampleID int64, fieldKey string, value any, actor int64) (FieldValue, error) {
	sample, err := s.repo.Get(ctx, sampleID)
	if err != nil {
		return FieldValue{}, err
	}

	body, err := s.currentBody(ctx, sample.ProjectID)
	if err != nil {
		return FieldValue{}, err
	}
	field, ok := body.FindField(fieldKey)
	if !ok {
		return FieldValue{}, ErrUnknownField
	}
	if valid, reason := ValidateFieldValue(field, value); !valid {
		return FieldValue{}, &ValidationError{FieldKey: fieldKey, Reason: reason}
	}

	var before map[string]any
	if prior, err := s.repo.GetFieldValue(ctx, sampleID, fieldKey); err == nil {
		before = map[string]any{"field_key": prior.FieldKey, "value": prior.Value}
	} else if !errors.Is(err, ErrNotFound) {
		return FieldValue{}, err
	}

	fv, err := s.repo.UpsertFieldValue(ctx, FieldValue{
		SampleID:  sampleID,
		FieldKey:  fieldKey,
		Value:     value,
		UpdatedBy: actor,
	})
	if err != nil {
		return FieldValue{}, err
	}

	action := audit.ActionCreate
	if before != nil {
		action = audit.ActionUpdate
	}
	s.record(ctx, audit.Entry{
		ProjectID:  sample.ProjectID,
		ActorID:    actor,
		ActionType: action,
		TargetType: "field_value",
		TargetID:   strconv.FormatInt(sampleID, 10) + ":" + fieldKey,
		Before:     before,
		After:      map[string]any{"field_key": fieldKey, "value": value},
	})
	return fv, nil
}

// Completeness reports the sample's required fields against the current RDMP.
func (s *Service) Completeness(ctx context.Context, sampleID int64) (Completeness, error) {
	sample, err := s.repo.Get(ctx, sampleID)
	if err != nil {
		return Completeness{}, err
	}
	body, err := s.currentBody(ctx, sample.ProjectID)
	if err != nil {
		return Completeness{}, err
	}
	values, err := s.repo.FieldValues(ctx, sampleID)
	if err != nil {
		return Completeness{}, err
	}
	return CheckCompleteness(values, body), nil
}

func (s *Service) currentBody(ctx context.Context, projectID int64) (rdmp.Body, error) {
	doc, err := s.rdmps.GetLatest(ctx, rdmp.ProjectScope(projectID))
	if err != nil {
		return rdmp.Body{}, err
	}
	if doc == nil {
		return rdmp.Body{}, ErrNoRDMP
	}
	return rdmp.DecodeBody(doc.Body)
}

func (s *Service) record(ctx context.Context, entry audit.Entry) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, entry); err != nil && s.logger != nil {
		s.logger.Error("record sample change", slog.Any("error", err))
	}
}

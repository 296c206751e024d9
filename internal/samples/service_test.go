package samples

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metafirst/supervisor/internal/rdmp"
)

type stubRepo struct {
	samples map[int64]Sample
	values  map[int64]map[string]FieldValue
	nextID  int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{samples: map[int64]Sample{}, values: map[int64]map[string]FieldValue{}, nextID: 1}
}

func (r *stubRepo) Insert(ctx context.Context, s Sample) (Sample, error) {
	for _, existing := range r.samples {
		if existing.ProjectID == s.ProjectID && existing.SampleIdentifier == s.SampleIdentifier {
			return Sample{}, ErrDuplicateIdentifier
		}
	}
	s.ID = r.nextID
	r.nextID++
	r.samples[s.ID] = s
	return s, nil
}

func (r *stubRepo) Get(ctx context.Context, id int64) (Sample, error) {
	s, ok := r.samples[id]
	if !ok {
		return Sample{}, ErrNotFound
	}
	return s, nil
}

func (r *stubRepo) List(ctx context.Context, projectID int64) ([]Sample, error) {
	var out []Sample
	for _, s := range r.samples {
		if s.ProjectID == projectID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *stubRepo) FieldValues(ctx context.Context, sampleID int64) ([]FieldValue, error) {
	var out []FieldValue
	for _, fv := range r.values[sampleID] {
		out = append(out, fv)
	}
	return out, nil
}

func (r *stubRepo) GetFieldValue(ctx context.Context, sampleID int64, fieldKey string) (FieldValue, error) {
	fv, ok := r.values[sampleID][fieldKey]
	if !ok {
		return FieldValue{}, ErrNotFound
	}
	return fv, nil
}

func (r *stubRepo) UpsertFieldValue(ctx context.Context, fv FieldValue) (FieldValue, error) {
	if r.values[fv.SampleID] == nil {
		r.values[fv.SampleID] = map[string]FieldValue{}
	}
	fv.ID = r.nextID
	r.nextID++
	r.values[fv.SampleID][fv.FieldKey] = fv
	return fv, nil
}

type stubRDMPSource struct {
	doc *rdmp.Document
}

func (s *stubRDMPSource) GetLatest(ctx context.Context, scope string) (*rdmp.Document, error) {
	return s.doc, nil
}

func labDoc() *rdmp.Document {
	return &rdmp.Document{
		Scope:      "project:1",
		VersionInt: 1,
		Body: map[string]any{
			"roles": []any{},
			"fields": []any{
				map[string]any{"key": "organism", "label": "Organism", "type": "string", "required": true},
				map[string]any{"key": "tissue", "label": "Tissue", "type": "categorical", "required": true,
					"allowed_values": []any{"liver", "brain"}},
				map[string]any{"key": "weight_mg", "label": "Weight", "type": "number"},
			},
		},
	}
}

func TestCreateRejectsBlankIdentifier(t *testing.T) {
	svc := NewService(newStubRepo(), &stubRDMPSource{}, nil, nil)
	_, err := svc.Create(context.Background(), 1, "   ", 7)
	require.Error(t, err)
}

func TestCreateRejectsDuplicateIdentifier(t *testing.T) {
	svc := NewService(newStubRepo(), &stubRDMPSource{}, nil, nil)
	_, err := svc.Create(context.Background(), 1, "ML-0001", 7)
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), 1, "ML-0001", 7)
	require.ErrorIs(t, err, ErrDuplicateIdentifier)
}

func TestSetFieldValidatesAgainstCurrentRDMP(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, &stubRDMPSource{doc: labDoc()}, nil, nil)
	sample, err := svc.Create(context.Background(), 1, "ML-0001", 7)
	require.NoError(t, err)

	_, err = svc.SetField(context.Background(), sample.ID, "organism", "mouse", 7)
	require.NoError(t, err)

	_, err = svc.SetField(context.Background(), sample.ID, "ghost_field", "x", 7)
	require.ErrorIs(t, err, ErrUnknownField)

	_, err = svc.SetField(context.Background(), sample.ID, "tissue", "kidney", 7)
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "tissue", valErr.FieldKey)

	_, err = svc.SetField(context.Background(), sample.ID, "weight_mg", "not a number", 7)
	require.ErrorAs(t, err, &valErr)
}

func TestSetFieldWithoutRDMP(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, &stubRDMPSource{doc: nil}, nil, nil)
	sample, err := svc.Create(context.Background(), 1, "ML-0001", 7)
	require.NoError(t, err)

	_, err = svc.SetField(context.Background(), sample.ID, "organism", "mouse", 7)
	require.ErrorIs(t, err, ErrNoRDMP)
}

func TestSetFieldOverwritesPriorValue(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, &stubRDMPSource{doc: labDoc()}, nil, nil)
	sample, err := svc.Create(context.Background(), 1, "ML-0001", 7)
	require.NoError(t, err)

	_, err = svc.SetField(context.Background(), sample.ID, "tissue", "liver", 7)
	require.NoError(t, err)
	_, err = svc.SetField(context.Background(), sample.ID, "tissue", "brain", 7)
	require.NoError(t, err)

	values, err := svc.FieldValues(context.Background(), sample.ID)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, "brain", values[0].Value)
}

func TestCompletenessAgainstCurrentRDMP(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, &stubRDMPSource{doc: labDoc()}, nil, nil)
	sample, err := svc.Create(context.Background(), 1, "ML-0001", 7)
	require.NoError(t, err)

	result, err := svc.Completeness(context.Background(), sample.ID)
	require.NoError(t, err)
	assert.False(t, result.IsComplete)
	assert.Equal(t, []string{"organism", "tissue"}, result.MissingFields)

	_, err = svc.SetField(context.Background(), sample.ID, "organism", "mouse", 7)
	require.NoError(t, err)
	_, err = svc.SetField(context.Background(), sample.ID, "tissue", "liver", 7)
	require.NoError(t, err)

	result, err = svc.Completeness(context.Background(), sample.ID)
	require.NoError(t, err)
	assert.True(t, result.IsComplete)
	assert.Equal(t, 2, result.TotalFilled)
}

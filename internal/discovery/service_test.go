package discovery

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metafirst/supervisor/internal/projects"
	"github.com/metafirst/supervisor/internal/rdmp"
	"github.com/metafirst/supervisor/internal/samples"
)

type stubPusher struct {
	records []ProjectRecord
	err     error
}

func (s *stubPusher) Push(ctx context.Context, record ProjectRecord) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, record)
	return nil
}

type stubProjects struct {
	list []projects.Project
}

func (s *stubProjects) List(ctx context.Context) ([]projects.Project, error) {
	return s.list, nil
}

type stubPlans struct {
	docs map[string]*rdmp.Document
}

func (s *stubPlans) GetLatest(ctx context.Context, scope string) (*rdmp.Document, error) {
	return s.docs[scope], nil
}

type stubSamples struct {
	samples map[int64][]samples.Sample
	values  map[int64][]samples.FieldValue
}

func (s *stubSamples) List(ctx context.Context, projectID int64) ([]samples.Sample, error) {
	return s.samples[projectID], nil
}

func (s *stubSamples) FieldValues(ctx context.Context, sampleID int64) ([]samples.FieldValue, error) {
	return s.values[sampleID], nil
}

func indexableDoc(version int) *rdmp.Document {
	return &rdmp.Document{
		VersionInt: version,
		Body: map[string]any{
			"roles": []any{},
			"fields": []any{
				map[string]any{"key": "organism", "label": "Organism", "type": "string", "visibility": "public_index"},
				map[string]any{"key": "tissue", "label": "Tissue", "type": "categorical", "visibility": "collaborators"},
			},
		},
	}
}

func newTestService(t *testing.T, plans *stubPlans, sampleSrc *stubSamples, pusher *stubPusher, projectList []projects.Project) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewService(&stubProjects{list: projectList}, plans, sampleSrc, pusher, client, nil)
}

func TestPushProjectFiltersToPublicFields(t *testing.T) {
	plans := &stubPlans{docs: map[string]*rdmp.Document{"project:1": indexableDoc(3)}}
	sampleSrc := &stubSamples{
		samples: map[int64][]samples.Sample{1: {{ID: 10, ProjectID: 1, SampleIdentifier: "ML-0001"}}},
		values: map[int64][]samples.FieldValue{10: {
			{FieldKey: "organism", Value: "mouse"},
			{FieldKey: "tissue", Value: "liver"},
		}},
	}
	pusher := &stubPusher{}
	svc := newTestService(t, plans, sampleSrc, pusher, nil)

	pushed, err := svc.PushProject(context.Background(), projects.Project{ID: 1, Name: "Atlas"}, false)
	require.NoError(t, err)
	require.True(t, pushed)
	require.Len(t, pusher.records, 1)

	record := pusher.records[0]
	assert.Equal(t, 3, record.RDMPVersion)
	require.Len(t, record.Fields, 1)
	assert.Equal(t, "organism", record.Fields[0].Key)
	require.Len(t, record.Samples, 1)
	assert.Equal(t, map[string]any{"organism": "mouse"}, record.Samples[0].Values,
		"collaborator-only values must not leak")
}

func TestPushProjectSkipsWithoutRDMP(t *testing.T) {
	pusher := &stubPusher{}
	svc := newTestService(t, &stubPlans{docs: map[string]*rdmp.Document{}}, &stubSamples{}, pusher, nil)

	pushed, err := svc.PushProject(context.Background(), projects.Project{ID: 1}, false)
	require.NoError(t, err)
	assert.False(t, pushed)
	assert.Empty(t, pusher.records)
}

func TestPushProjectSkipsWithoutPublicFields(t *testing.T) {
	doc := &rdmp.Document{VersionInt: 1, Body: map[string]any{
		"roles": []any{},
		"fields": []any{
			map[string]any{"key": "tissue", "label": "Tissue", "type": "string", "visibility": "private"},
		},
	}}
	pusher := &stubPusher{}
	svc := newTestService(t, &stubPlans{docs: map[string]*rdmp.Document{"project:1": doc}}, &stubSamples{}, pusher, nil)

	pushed, err := svc.PushProject(context.Background(), projects.Project{ID: 1}, false)
	require.NoError(t, err)
	assert.False(t, pushed)
}

func TestPushProjectSkipsUnchangedVersion(t *testing.T) {
	plans := &stubPlans{docs: map[string]*rdmp.Document{"project:1": indexableDoc(2)}}
	pusher := &stubPusher{}
	svc := newTestService(t, plans, &stubSamples{}, pusher, nil)
	project := projects.Project{ID: 1, Name: "Atlas"}

	pushed, err := svc.PushProject(context.Background(), project, false)
	require.NoError(t, err)
	require.True(t, pushed)

	pushed, err = svc.PushProject(context.Background(), project, false)
	require.NoError(t, err)
	assert.False(t, pushed, "same version must not be pushed twice")

	pushed, err = svc.PushProject(context.Background(), project, true)
	require.NoError(t, err)
	assert.True(t, pushed, "force bypasses the cursor")

	plans.docs["project:1"] = indexableDoc(3)
	pushed, err = svc.PushProject(context.Background(), project, false)
	require.NoError(t, err)
	assert.True(t, pushed, "new version pushes again")
}

func TestPushAllContinuesPastFailures(t *testing.T) {
	plans := &stubPlans{docs: map[string]*rdmp.Document{
		"project:1": indexableDoc(1),
		"project:2": indexableDoc(1),
	}}
	pusher := &stubPusher{err: errors.New("catalogue down")}
	list := []projects.Project{{ID: 1}, {ID: 2}}
	svc := newTestService(t, plans, &stubSamples{}, pusher, list)

	pushed, err := svc.PushAll(context.Background(), false)
	require.NoError(t, err)
	assert.Zero(t, pushed)

	pusher.err = nil
	pushed, err = svc.PushAll(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, pushed)
}

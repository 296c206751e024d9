package release

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metafirst/supervisor/internal/rawdata"
	"github.com/metafirst/supervisor/internal/samples"
)

type stubSampleSource struct {
	list   []samples.Sample
	values map[int64][]samples.FieldValue
}

func (s *stubSampleSource) List(ctx context.Context, projectID int64) ([]samples.Sample, error) {
	return s.list, nil
}

func (s *stubSampleSource) FieldValues(ctx context.Context, sampleID int64) ([]samples.FieldValue, error) {
	return s.values[sampleID], nil
}

type stubItemSource struct {
	items []rawdata.RawDataItem
}

func (s *stubItemSource) ListItems(ctx context.Context, projectID int64) ([]rawdata.RawDataItem, error) {
	return s.items, nil
}

func TestProjectSnapshotBuilder(t *testing.T) {
	sampleID := int64(10)
	builder := NewProjectSnapshotBuilder(
		&stubSampleSource{
			list: []samples.Sample{{ID: 10, SampleIdentifier: "ML-0001"}},
			values: map[int64][]samples.FieldValue{10: {
				{FieldKey: "organism", Value: "mouse"},
				{FieldKey: "tissue", Value: "liver"},
			}},
		},
		&stubItemSource{items: []rawdata.RawDataItem{
			{StorageRootID: 2, RelativePath: "runs/a.fastq.gz", FileHashSHA256: "abc123", SampleID: &sampleID},
			{StorageRootID: 2, RelativePath: "runs/b.fastq.gz"},
		}},
	)

	snapshot, err := builder(context.Background(), 1)
	require.NoError(t, err)

	snapSamples, ok := snapshot["samples"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, snapSamples, 1)
	assert.Equal(t, "ML-0001", snapSamples[0]["sample_identifier"])
	assert.Equal(t, map[string]any{"organism": "mouse", "tissue": "liver"}, snapSamples[0]["fields"])

	snapItems, ok := snapshot["raw_data_items"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, snapItems, 2)
	assert.Equal(t, "abc123", snapItems[0]["file_hash_sha256"])
	assert.Equal(t, sampleID, snapItems[0]["sample_id"])
	_, hasHash := snapItems[1]["file_hash_sha256"]
	assert.False(t, hasHash)
}

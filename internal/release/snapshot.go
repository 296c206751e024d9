package release

import (
	"context"

	"github.com/metafirst/supervisor/internal/rawdata"
	"github.com/metafirst/supervisor/internal/samples"
)

// SampleSource provides samples and their field values for snapshots.
type SampleSource interface {
	List(ctx context.Context, projectID int64) ([]samples.Sample, error)
	FieldValues(ctx context.Context, sampleID int64) ([]samples.FieldValue, error)
}

// ItemSource provides raw data references for snapshots.
type ItemSource interface {
	ListItems(ctx context.Context, projectID int64) ([]rawdata.RawDataItem, error)
}

// NewProjectSnapshotBuilder freezes the project's samples, their field
// values, and raw data references into the release snapshot document.
func NewProjectSnapshotBuilder(sampleSrc SampleSource, itemSrc ItemSource) SnapshotBuilder {
	return func(ctx context.Context, projectID int64) (map[string]any, error) {
		sampleList, err := sampleSrc.List(ctx, projectID)
		if err != nil {
			return nil, err
		}
		snapSamples := make([]map[string]any, 0, len(sampleList))
		for _, s := range sampleList {
			values, err := sampleSrc.FieldValues(ctx, s.ID)
			if err != nil {
				return nil, err
			}
			fields := make(map[string]any, len(values))
			for _, v := range values {
				fields[v.FieldKey] = v.Value
			}
			snapSamples = append(snapSamples, map[string]any{
				"sample_identifier": s.SampleIdentifier,
				"fields":            fields,
			})
		}

		items, err := itemSrc.ListItems(ctx, projectID)
		if err != nil {
			return nil, err
		}
		snapItems := make([]map[string]any, 0, len(items))
		for _, item := range items {
			entry := map[string]any{
				"storage_root_id": item.StorageRootID,
				"relative_path":   item.RelativePath,
			}
			if item.FileHashSHA256 != "" {
				entry["file_hash_sha256"] = item.FileHashSHA256
			}
			if item.SampleID != nil {
				entry["sample_id"] = *item.SampleID
			}
			snapItems = append(snapItems, entry)
		}

		return map[string]any{
			"samples":        snapSamples,
			"raw_data_items": snapItems,
		}, nil
	}
}

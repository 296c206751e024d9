package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strconv"
	"time"
)

const exportPageSize = 500

// ExportCSV renders the full timeline for a project as CSV, newest first.
func (s *Service) ExportCSV(ctx context.Context, projectID int64, filters TimelineFilters) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write([]string{"occurred_at", "actor_id", "action", "target_type", "target_id", "before", "after"}); err != nil {
		return nil, err
	}

	offset := 0
	for {
		rows, err := s.repo.TimelineWindow(ctx, projectID, filters, exportPageSize, offset)
		if err != nil {
			return nil, err
		}
		for _, entry := range rows {
			record := []string{
				entry.Timestamp.Format(time.RFC3339),
				strconv.FormatInt(entry.ActorID, 10),
				entry.ActionType,
				entry.TargetType,
				entry.TargetID,
				snapshotCell(entry.Before),
				snapshotCell(entry.After),
			}
			if err := writer.Write(record); err != nil {
				return nil, err
			}
		}
		if len(rows) < exportPageSize {
			break
		}
		offset += exportPageSize
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func snapshotCell(snapshot map[string]any) string {
	if snapshot == nil {
		return ""
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return ""
	}
	return string(data)
}

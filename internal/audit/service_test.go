package audit

import (
	"context"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuditRepo struct {
	entries []Entry

	lastLimit  int
	lastOffset int
}

func (s *stubAuditRepo) Insert(ctx context.Context, entry Entry) error {
	s.entries = append(s.entries, entry)
	return nil
}

func (s *stubAuditRepo) TimelineWindow(ctx context.Context, projectID int64, filters TimelineFilters, limit, offset int) ([]Entry, error) {
	s.lastLimit = limit
	s.lastOffset = offset
	if offset >= len(s.entries) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.entries) {
		end = len(s.entries)
	}
	return s.entries[offset:end], nil
}

func entryAt(hour int, action string) Entry {
	return Entry{
		ProjectID:  1,
		ActorID:    7,
		ActionType: action,
		TargetType: "sample",
		TargetID:   "1",
		Timestamp:  time.Date(2026, 3, 1, hour, 0, 0, 0, time.UTC),
	}
}

func TestRecordRejectsIncompleteEntries(t *testing.T) {
	svc := NewService(&stubAuditRepo{})
	err := svc.Record(context.Background(), Entry{ActionType: ActionCreate})
	require.Error(t, err)

	err = svc.Record(context.Background(), entryAt(10, ActionCreate))
	require.NoError(t, err)
}

func TestTimelinePaging(t *testing.T) {
	repo := &stubAuditRepo{}
	for i := 0; i < 5; i++ {
		repo.entries = append(repo.entries, entryAt(10+i, ActionUpdate))
	}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), 1, TimelineFilters{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 2)
	assert.True(t, result.Paging.HasNext)
	assert.Equal(t, 2, result.Paging.NextPage)
	assert.Zero(t, result.Paging.PrevPage)
	assert.Equal(t, 3, repo.lastLimit, "reads one extra row to detect a next page")

	result, err = svc.Timeline(context.Background(), 1, TimelineFilters{Page: 3, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, result.Rows, 1)
	assert.False(t, result.Paging.HasNext)
	assert.Equal(t, 2, result.Paging.PrevPage)
	assert.Equal(t, 4, repo.lastOffset)
}

func TestTimelineClampsPageSize(t *testing.T) {
	repo := &stubAuditRepo{}
	svc := NewService(repo)

	_, err := svc.Timeline(context.Background(), 1, TimelineFilters{Page: 1, PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, 51, repo.lastLimit)

	_, err = svc.Timeline(context.Background(), 1, TimelineFilters{})
	require.NoError(t, err)
	assert.Equal(t, 21, repo.lastLimit, "defaults to 20 rows")
}

func TestExportCSV(t *testing.T) {
	repo := &stubAuditRepo{}
	repo.entries = []Entry{
		{
			ProjectID:  1,
			ActorID:    7,
			ActionType: ActionUpdate,
			TargetType: "field_value",
			TargetID:   "3:tissue",
			Before:     map[string]any{"value": "liver"},
			After:      map[string]any{"value": "brain"},
			Timestamp:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		},
		entryAt(9, ActionCreate),
	}
	svc := NewService(repo)

	data, err := svc.ExportCSV(context.Background(), 1, TimelineFilters{})
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"occurred_at", "actor_id", "action", "target_type", "target_id", "before", "after"}, rows[0])
	assert.Equal(t, "2026-03-01T10:00:00Z", rows[1][0])
	assert.Equal(t, "UPDATE", rows[1][2])
	assert.Contains(t, rows[1][5], "liver")
	assert.Contains(t, rows[1][6], "brain")
	assert.Empty(t, rows[2][5], "creations carry no before snapshot")
}

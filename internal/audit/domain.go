package audit

import "time"

// Action types recorded in the audit log.
const (
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// Entry is one append-only audit record. Rows are never updated or deleted;
// they are the permanent history of every mutation.
type Entry struct {
	ID           int64
	ProjectID    int64
	ActorID      int64
	ActionType   string
	TargetType   string
	TargetID     string
	Before       map[string]any
	After        map[string]any
	SourceDevice string
	Timestamp    time.Time
}

// TimelineFilters narrows a timeline query.
type TimelineFilters struct {
	From       time.Time
	To         time.Time
	ActorID    int64
	TargetType string
	ActionType string
	Page       int
	PageSize   int
}

// PagingInfo carries pagination metadata for timeline results.
type PagingInfo struct {
	Page     int
	PageSize int
	HasNext  bool
	PrevPage int
	NextPage int
}

// Result wraps a timeline page.
type Result struct {
	Rows   []Entry
	Paging PagingInfo
}

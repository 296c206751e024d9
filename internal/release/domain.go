package release

import "time"

// Release is an immutable snapshot of project state tied to one RDMP
// version. Corrections reference the release they correct through
// ParentReleaseID; prior releases are never mutated.
type Release struct {
	ID              int64
	ProjectID       int64
	ReleaseTag      string
	RDMPVersionID   int64
	ParentReleaseID *int64
	Description     string
	Snapshot        map[string]any
	CreatedAt       time.Time
	CreatedBy       int64
}

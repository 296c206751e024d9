package rawdata

import "time"

// Pending ingest statuses.
const (
	IngestPending   = "PENDING"
	IngestCompleted = "COMPLETED"
	IngestCancelled = "CANCELLED"
)

// StorageRoot names a storage location for a project. Paths of raw data
// items are relative to a root so references survive machine moves.
type StorageRoot struct {
	ID          int64
	ProjectID   int64
	Name        string
	Description string
	CreatedAt   time.Time
}

// StorageRootMapping is a user's local mount path for a storage root. One
// of the few mutable records in the system.
type StorageRootMapping struct {
	ID             int64
	UserID         int64
	StorageRootID  int64
	LocalMountPath string
	UpdatedAt      time.Time
}

// RawDataItem references one raw data file by storage root and relative
// path. Unique per (storage root, path).
type RawDataItem struct {
	ID             int64
	ProjectID      int64
	SampleID       *int64
	StorageRootID  int64
	RelativePath   string
	FileSizeBytes  *int64
	FileHashSHA256 string
	CreatedAt      time.Time
	CreatedBy      int64
}

// PathChange records one move of a raw data item between roots or paths.
type PathChange struct {
	ID               int64
	RawDataItemID    int64
	OldStorageRootID int64
	OldRelativePath  string
	NewStorageRootID int64
	NewRelativePath  string
	Reason           string
	ChangedAt        time.Time
	ChangedBy        int64
}

// IngestRun ties one helper batch to the RDMP version that was in force
// when the batch started.
type IngestRun struct {
	ID            int64
	ProjectID     int64
	StorageRootID int64
	RDMPVersionID int64
	Note          string
	StartedAt     time.Time
	CreatedBy     int64
}

// PendingIngest is a file the desktop helper registered for confirmation in
// the browser before it becomes a raw data item.
type PendingIngest struct {
	ID                       int64
	ProjectID                int64
	IngestRunID              *int64
	StorageRootID            int64
	RelativePath             string
	InferredSampleIdentifier string
	FileSizeBytes            *int64
	FileHashSHA256           string
	Status                   string
	CreatedAt                time.Time
	CreatedBy                int64
	CompletedAt              *time.Time
	RawDataItemID            *int64
}

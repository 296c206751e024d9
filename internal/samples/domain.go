package samples

import "time"

// Sample belongs to exactly one project and is identified inside it by a
// sample identifier supplied at registration time.
type Sample struct {
	ID               int64
	ProjectID        int64
	SampleIdentifier string
	CreatedAt        time.Time
	CreatedBy        int64
}

// FieldValue carries one typed value for a sample. The field key is only
// meaningful when it matches a key declared in the project's current RDMP.
type FieldValue struct {
	ID        int64
	SampleID  int64
	FieldKey  string
	Value     any
	UpdatedAt time.Time
	UpdatedBy int64
}

// Completeness reports a sample's required fields against the current RDMP.
type Completeness struct {
	IsComplete    bool     `json:"is_complete"`
	MissingFields []string `json:"missing_fields"`
	TotalRequired int      `json:"total_required"`
	TotalFilled   int      `json:"total_filled"`
}

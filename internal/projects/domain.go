package projects

import "time"

// Project is the unit of governance: memberships, RDMP versions, samples,
// raw data, and releases all hang off one project.
type Project struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	CreatedBy   int64
}

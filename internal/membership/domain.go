package membership

import "time"

// Membership binds a user to a project with one role name. The role name
// must match a role declared in the project's current RDMP to grant
// anything; an unmatched name simply resolves to no permissions.
type Membership struct {
	ID        int64
	ProjectID int64
	UserID    int64
	RoleName  string
	CreatedAt time.Time
	CreatedBy int64
}

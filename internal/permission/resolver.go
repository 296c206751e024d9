package permission

import (
	"context"

	"github.com/metafirst/supervisor/internal/rdmp"
)

// Snapshot is the membership role plus current RDMP for one (project, user)
// pair, read within a single transaction so a concurrent role rename cannot
// be observed half-applied.
type Snapshot struct {
	RoleName      string
	HasMembership bool
	Document      *rdmp.Document
}

// SnapshotReader loads a consistent membership + RDMP snapshot.
type SnapshotReader interface {
	Snapshot(ctx context.Context, projectID, userID int64) (Snapshot, error)
}

// Resolver derives a user's effective permission set for a project from
// membership and the project's current RDMP.
type Resolver struct {
	reader SnapshotReader
}

// NewResolver constructs a Resolver.
func NewResolver(reader SnapshotReader) *Resolver {
	return &Resolver{reader: reader}
}

// Resolve returns a map holding exactly the four recognized permission keys.
// Missing membership, missing RDMP, or a role name no longer declared in the
// current document all resolve to all-false: these are expected
// administrative states, not faults.
func (r *Resolver) Resolve(ctx context.Context, projectID, userID int64) (map[string]bool, error) {
	snapshot, err := r.reader.Snapshot(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if !snapshot.HasMembership || snapshot.Document == nil {
		return denyAll(), nil
	}

	body, err := rdmp.DecodeBody(snapshot.Document.Body)
	if err != nil {
		return nil, err
	}
	role, ok := body.FindRole(snapshot.RoleName)
	if !ok {
		return denyAll(), nil
	}

	perms := denyAll()
	for _, key := range rdmp.PermissionKeys {
		if granted, ok := role.Permissions[key]; ok {
			perms[key] = granted
		}
	}
	return perms, nil
}

// Check reports whether the user holds one named permission for the project.
func (r *Resolver) Check(ctx context.Context, projectID, userID int64, permission string) (bool, error) {
	perms, err := r.Resolve(ctx, projectID, userID)
	if err != nil {
		return false, err
	}
	return perms[permission], nil
}

func denyAll() map[string]bool {
	perms := make(map[string]bool, len(rdmp.PermissionKeys))
	for _, key := range rdmp.PermissionKeys {
		perms[key] = false
	}
	return perms
}

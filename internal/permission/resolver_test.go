package permission

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metafirst/supervisor/internal/rdmp"
)

type stubSnapshotReader struct {
	snapshot Snapshot
	err      error
}

func (s *stubSnapshotReader) Snapshot(ctx context.Context, projectID, userID int64) (Snapshot, error) {
	return s.snapshot, s.err
}

func docWithRoles(roles []any) *rdmp.Document {
	return &rdmp.Document{
		Scope:      "project:1",
		VersionInt: 1,
		Body:       map[string]any{"roles": roles, "fields": []any{}},
	}
}

func TestResolveGrantsDeclaredPermissions(t *testing.T) {
	reader := &stubSnapshotReader{snapshot: Snapshot{
		RoleName:      "lab_manager",
		HasMembership: true,
		Document: docWithRoles([]any{
			map[string]any{
				"name": "lab_manager",
				"permissions": map[string]any{
					"can_edit_metadata":  true,
					"can_edit_paths":     true,
					"can_create_release": false,
					"can_manage_rdmp":    false,
				},
			},
		}),
	}}
	resolver := NewResolver(reader)

	perms, err := resolver.Resolve(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{
		rdmp.PermEditMetadata:  true,
		rdmp.PermEditPaths:     true,
		rdmp.PermCreateRelease: false,
		rdmp.PermManageRDMP:    false,
	}, perms)
}

func TestResolveDeniesWithoutMembership(t *testing.T) {
	reader := &stubSnapshotReader{snapshot: Snapshot{HasMembership: false}}
	resolver := NewResolver(reader)

	perms, err := resolver.Resolve(context.Background(), 1, 2)
	require.NoError(t, err)
	for _, key := range rdmp.PermissionKeys {
		assert.False(t, perms[key], key)
	}
	require.Len(t, perms, len(rdmp.PermissionKeys))
}

func TestResolveDeniesWithoutRDMP(t *testing.T) {
	reader := &stubSnapshotReader{snapshot: Snapshot{RoleName: "pi", HasMembership: true}}
	resolver := NewResolver(reader)

	ok, err := resolver.Check(context.Background(), 1, 2, rdmp.PermManageRDMP)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveDeniesUndeclaredRole(t *testing.T) {
	reader := &stubSnapshotReader{snapshot: Snapshot{
		RoleName:      "retired_role",
		HasMembership: true,
		Document: docWithRoles([]any{
			map[string]any{
				"name": "pi",
				"permissions": map[string]any{
					"can_edit_metadata":  true,
					"can_edit_paths":     true,
					"can_create_release": true,
					"can_manage_rdmp":    true,
				},
			},
		}),
	}}
	resolver := NewResolver(reader)

	perms, err := resolver.Resolve(context.Background(), 1, 2)
	require.NoError(t, err)
	for _, key := range rdmp.PermissionKeys {
		assert.False(t, perms[key], key)
	}
}

func TestCheckReadsSinglePermission(t *testing.T) {
	reader := &stubSnapshotReader{snapshot: Snapshot{
		RoleName:      "collaborator",
		HasMembership: true,
		Document: docWithRoles([]any{
			map[string]any{
				"name": "collaborator",
				"permissions": map[string]any{
					"can_edit_metadata":  true,
					"can_edit_paths":     false,
					"can_create_release": false,
					"can_manage_rdmp":    false,
				},
			},
		}),
	}}
	resolver := NewResolver(reader)

	ok, err := resolver.Check(context.Background(), 1, 2, rdmp.PermEditMetadata)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = resolver.Check(context.Background(), 1, 2, rdmp.PermEditPaths)
	require.NoError(t, err)
	assert.False(t, ok)
}

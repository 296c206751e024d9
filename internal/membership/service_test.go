package membership

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metafirst/supervisor/internal/audit"
)

type stubRepo struct {
	members map[[2]int64]Membership
	nextID  int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{members: map[[2]int64]Membership{}, nextID: 1}
}

func key(projectID, userID int64) [2]int64 { return [2]int64{projectID, userID} }

func (r *stubRepo) Insert(ctx context.Context, m Membership) (Membership, error) {
	if _, ok := r.members[key(m.ProjectID, m.UserID)]; ok {
		return Membership{}, ErrAlreadyMember
	}
	m.ID = r.nextID
	r.nextID++
	r.members[key(m.ProjectID, m.UserID)] = m
	return m, nil
}

func (r *stubRepo) Get(ctx context.Context, projectID, userID int64) (Membership, error) {
	m, ok := r.members[key(projectID, userID)]
	if !ok {
		return Membership{}, ErrNotFound
	}
	return m, nil
}

func (r *stubRepo) List(ctx context.Context, projectID int64) ([]Membership, error) {
	var out []Membership
	for _, m := range r.members {
		if m.ProjectID == projectID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *stubRepo) UpdateRole(ctx context.Context, projectID, userID int64, roleName string) (Membership, error) {
	m, ok := r.members[key(projectID, userID)]
	if !ok {
		return Membership{}, ErrNotFound
	}
	m.RoleName = roleName
	r.members[key(projectID, userID)] = m
	return m, nil
}

func (r *stubRepo) Delete(ctx context.Context, projectID, userID int64) error {
	if _, ok := r.members[key(projectID, userID)]; !ok {
		return ErrNotFound
	}
	delete(r.members, key(projectID, userID))
	return nil
}

type captureRecorder struct {
	entries []audit.Entry
}

func (c *captureRecorder) Record(ctx context.Context, entry audit.Entry) error {
	c.entries = append(c.entries, entry)
	return nil
}

func TestAddRequiresRoleName(t *testing.T) {
	svc := NewService(newStubRepo(), nil, nil)
	_, err := svc.Add(context.Background(), 1, 2, "  ", 7)
	require.ErrorIs(t, err, ErrRoleNameRequired)
}

func TestAddRejectsDuplicateMembership(t *testing.T) {
	svc := NewService(newStubRepo(), nil, nil)
	_, err := svc.Add(context.Background(), 1, 2, "pi", 7)
	require.NoError(t, err)
	_, err = svc.Add(context.Background(), 1, 2, "collaborator", 7)
	require.ErrorIs(t, err, ErrAlreadyMember)
}

func TestRoleNameMissingMembershipIsNotAnError(t *testing.T) {
	svc := NewService(newStubRepo(), nil, nil)
	role, ok, err := svc.RoleName(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, role)
}

func TestChangeRoleRecordsBeforeAndAfter(t *testing.T) {
	recorder := &captureRecorder{}
	svc := NewService(newStubRepo(), recorder, nil)

	_, err := svc.Add(context.Background(), 1, 2, "collaborator", 7)
	require.NoError(t, err)

	m, err := svc.ChangeRole(context.Background(), 1, 2, "lab_manager", 7)
	require.NoError(t, err)
	assert.Equal(t, "lab_manager", m.RoleName)

	require.Len(t, recorder.entries, 2)
	change := recorder.entries[1]
	assert.Equal(t, audit.ActionUpdate, change.ActionType)
	assert.Equal(t, "collaborator", change.Before["role_name"])
	assert.Equal(t, "lab_manager", change.After["role_name"])
}

func TestRemoveRecordsDeletion(t *testing.T) {
	recorder := &captureRecorder{}
	svc := NewService(newStubRepo(), recorder, nil)

	_, err := svc.Add(context.Background(), 1, 2, "pi", 7)
	require.NoError(t, err)
	require.NoError(t, svc.Remove(context.Background(), 1, 2, 7))

	_, ok, err := svc.RoleName(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	require.Len(t, recorder.entries, 2)
	assert.Equal(t, audit.ActionDelete, recorder.entries[1].ActionType)
	assert.Equal(t, "pi", recorder.entries[1].Before["role_name"])

	err = svc.Remove(context.Background(), 1, 2, 7)
	require.ErrorIs(t, err, ErrNotFound)
}

package projects

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metafirst/supervisor/internal/membership"
)

type stubRepo struct {
	projects map[int64]Project
	nextID   int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{projects: map[int64]Project{}, nextID: 1}
}

func (r *stubRepo) Insert(ctx context.Context, p Project) (Project, error) {
	p.ID = r.nextID
	r.nextID++
	r.projects[p.ID] = p
	return p, nil
}

func (r *stubRepo) Get(ctx context.Context, id int64) (Project, error) {
	p, ok := r.projects[id]
	if !ok {
		return Project{}, ErrNotFound
	}
	return p, nil
}

func (r *stubRepo) List(ctx context.Context) ([]Project, error) {
	var out []Project
	for _, p := range r.projects {
		out = append(out, p)
	}
	return out, nil
}

type stubMembershipWriter struct {
	added []membership.Membership
}

func (s *stubMembershipWriter) Add(ctx context.Context, projectID, userID int64, roleName string, actor int64) (membership.Membership, error) {
	m := membership.Membership{ProjectID: projectID, UserID: userID, RoleName: roleName, CreatedBy: actor}
	s.added = append(s.added, m)
	return m, nil
}

func TestCreateSeedsCreatorMembership(t *testing.T) {
	members := &stubMembershipWriter{}
	svc := NewService(newStubRepo(), members, nil, nil)

	p, err := svc.Create(context.Background(), "Mouse Liver Atlas", "demo", "pi", 7)
	require.NoError(t, err)
	assert.Equal(t, "Mouse Liver Atlas", p.Name)

	require.Len(t, members.added, 1)
	assert.Equal(t, p.ID, members.added[0].ProjectID)
	assert.Equal(t, int64(7), members.added[0].UserID)
	assert.Equal(t, "pi", members.added[0].RoleName)
}

func TestCreateWithoutCreatorRole(t *testing.T) {
	members := &stubMembershipWriter{}
	svc := NewService(newStubRepo(), members, nil, nil)

	_, err := svc.Create(context.Background(), "Atlas", "", "", 7)
	require.NoError(t, err)
	assert.Empty(t, members.added)
}

func TestCreateRequiresName(t *testing.T) {
	svc := NewService(newStubRepo(), nil, nil, nil)
	_, err := svc.Create(context.Background(), "   ", "", "pi", 7)
	require.Error(t, err)
}

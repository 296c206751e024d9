package rdmp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metafirst/supervisor/internal/audit"
)

type stubStoreRepo struct {
	docs      map[string][]Document
	templates []Template
	nextID    int64

	// conflictsLeft injects (scope, version) collisions on insert, as if a
	// concurrent writer committed first.
	conflictsLeft int
	insertCalls   int
}

func newStubStoreRepo() *stubStoreRepo {
	return &stubStoreRepo{docs: map[string][]Document{}, nextID: 1}
}

func (s *stubStoreRepo) InsertDocument(ctx context.Context, doc Document) (Document, error) {
	s.insertCalls++
	if s.conflictsLeft > 0 {
		s.conflictsLeft--
		s.docs[doc.Scope] = append(s.docs[doc.Scope], Document{Scope: doc.Scope, VersionInt: doc.VersionInt})
		return Document{}, errVersionTaken
	}
	for _, existing := range s.docs[doc.Scope] {
		if existing.VersionInt == doc.VersionInt {
			return Document{}, errVersionTaken
		}
	}
	doc.ID = s.nextID
	s.nextID++
	s.docs[doc.Scope] = append(s.docs[doc.Scope], doc)
	return doc, nil
}

func (s *stubStoreRepo) MaxVersion(ctx context.Context, scope string) (int, error) {
	max := 0
	for _, doc := range s.docs[scope] {
		if doc.VersionInt > max {
			max = doc.VersionInt
		}
	}
	return max, nil
}

func (s *stubStoreRepo) GetLatest(ctx context.Context, scope string) (*Document, error) {
	var latest *Document
	for i := range s.docs[scope] {
		doc := s.docs[scope][i]
		if latest == nil || doc.VersionInt > latest.VersionInt {
			latest = &doc
		}
	}
	return latest, nil
}

func (s *stubStoreRepo) GetByID(ctx context.Context, id int64) (*Document, error) {
	for _, list := range s.docs {
		for i := range list {
			if list[i].ID == id {
				return &list[i], nil
			}
		}
	}
	return nil, ErrNotFound
}

func (s *stubStoreRepo) List(ctx context.Context, scope string) ([]Document, error) {
	return s.docs[scope], nil
}

func (s *stubStoreRepo) CreateTemplate(ctx context.Context, name, description string) (Template, error) {
	for _, tpl := range s.templates {
		if tpl.Name == name {
			return Template{}, ErrDuplicateTemplate
		}
	}
	tpl := Template{ID: s.nextID, Name: name, Description: description}
	s.nextID++
	s.templates = append(s.templates, tpl)
	return tpl, nil
}

func (s *stubStoreRepo) GetTemplate(ctx context.Context, id int64) (Template, error) {
	for _, tpl := range s.templates {
		if tpl.ID == id {
			return tpl, nil
		}
	}
	return Template{}, ErrNotFound
}

func (s *stubStoreRepo) ListTemplates(ctx context.Context) ([]Template, error) {
	return s.templates, nil
}

type captureRecorder struct {
	entries []audit.Entry
}

func (c *captureRecorder) Record(ctx context.Context, entry audit.Entry) error {
	c.entries = append(c.entries, entry)
	return nil
}

func TestAppendAssignsContiguousVersions(t *testing.T) {
	repo := newStubStoreRepo()
	recorder := &captureRecorder{}
	store := NewStore(repo, recorder, nil)

	first, err := store.Append(context.Background(), "project:1", validBody(), AppendOptions{Author: 7, Title: "initial"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.VersionInt)

	second, err := store.Append(context.Background(), "project:1", validBody(), AppendOptions{Author: 7})
	require.NoError(t, err)
	assert.Equal(t, 2, second.VersionInt)

	other, err := store.Append(context.Background(), "project:2", validBody(), AppendOptions{Author: 7})
	require.NoError(t, err)
	assert.Equal(t, 1, other.VersionInt, "scopes version independently")

	require.Len(t, recorder.entries, 3)
	assert.Equal(t, audit.ActionCreate, recorder.entries[0].ActionType)
	assert.Equal(t, "rdmp_version", recorder.entries[0].TargetType)
	assert.Equal(t, int64(1), recorder.entries[0].ProjectID)
}

func TestAppendRejectsInvalidBody(t *testing.T) {
	repo := newStubStoreRepo()
	store := NewStore(repo, nil, nil)

	_, err := store.Append(context.Background(), "project:1", map[string]any{}, AppendOptions{Author: 7})
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.NotEmpty(t, schemaErr.Errors)
	assert.Zero(t, repo.insertCalls, "nothing persisted on validation failure")
}

func TestAppendRetriesOnVersionCollision(t *testing.T) {
	repo := newStubStoreRepo()
	repo.conflictsLeft = 2
	store := NewStore(repo, nil, nil)

	doc, err := store.Append(context.Background(), "project:1", validBody(), AppendOptions{Author: 7})
	require.NoError(t, err)
	assert.Equal(t, 3, doc.VersionInt, "re-reads max after each collision")
	assert.Equal(t, 3, repo.insertCalls)
}

func TestAppendGivesUpAfterBoundedRetries(t *testing.T) {
	repo := newStubStoreRepo()
	repo.conflictsLeft = maxAppendRetries + 1
	store := NewStore(repo, nil, nil)

	_, err := store.Append(context.Background(), "project:1", validBody(), AppendOptions{Author: 7})
	require.ErrorIs(t, err, ErrVersionConflict)
}

func TestGetLatestEmptyScope(t *testing.T) {
	store := NewStore(newStubStoreRepo(), nil, nil)
	doc, err := store.GetLatest(context.Background(), "project:99")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestCreateTemplateCommitsInitialVersion(t *testing.T) {
	repo := newStubStoreRepo()
	store := NewStore(repo, nil, nil)

	tpl, doc, err := store.CreateTemplate(context.Background(), "Wet Lab", "starter", validBody(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Wet Lab", tpl.Name)
	assert.Equal(t, 1, doc.VersionInt)
	assert.Equal(t, TemplateScope(tpl.ID), doc.Scope)

	_, _, err = store.CreateTemplate(context.Background(), "Wet Lab", "again", validBody(), 7)
	require.ErrorIs(t, err, ErrDuplicateTemplate)
}

func TestMatchIngestion(t *testing.T) {
	rules := IngestionRules{
		FilePatterns: []string{"*.fastq.gz", "*.csv", "["},
		Prompts:      []string{"sample_identifier"},
	}

	match := MatchIngestion(rules, "/mnt/runs/sample_A.fastq.gz")
	assert.True(t, match.Matched)
	assert.Equal(t, "*.fastq.gz", match.Pattern)
	assert.Equal(t, []string{"sample_identifier"}, match.Prompts)

	miss := MatchIngestion(rules, "notes.txt")
	assert.False(t, miss.Matched)
	assert.Empty(t, miss.Pattern)
	assert.Equal(t, []string{"sample_identifier"}, miss.Prompts)
}

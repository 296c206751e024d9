package discovery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientPush(t *testing.T) {
	var received ProjectRecord
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/datasets", r.URL.Path)
		gotKey = r.Header.Get("X-Api-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret-key")
	err := client.Push(context.Background(), ProjectRecord{
		ProjectID:   1,
		ProjectName: "Atlas",
		RDMPVersion: 2,
		Fields:      []FieldRecord{{Key: "organism", Label: "Organism", Type: "string"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "secret-key", gotKey)
	assert.Equal(t, int64(1), received.ProjectID)
	assert.Equal(t, "Atlas", received.ProjectName)
}

func TestClientPushRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "schema mismatch", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret-key")
	err := client.Push(context.Background(), ProjectRecord{ProjectID: 1})
	require.ErrorIs(t, err, ErrPushRejected)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "schema mismatch")
}

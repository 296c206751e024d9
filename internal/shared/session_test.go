package shared_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metafirst/supervisor/internal/shared"
	_ "github.com/metafirst/supervisor/testing"
)

func newStore(t *testing.T) (*shared.SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return shared.NewSessionStore(client, "test_session", time.Hour), mr
}

func TestSessionRoundTrip(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	token, err := store.Create(ctx, 42)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := store.Lookup(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestSessionLookupUnknownToken(t *testing.T) {
	store, _ := newStore(t)

	_, err := store.Lookup(context.Background(), "no-such-token")
	require.ErrorIs(t, err, shared.ErrUnauthenticated)

	_, err = store.Lookup(context.Background(), "")
	require.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestSessionExpires(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	token, err := store.Create(ctx, 42)
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)
	_, err = store.Lookup(ctx, token)
	require.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestSessionLookupRefreshesTTL(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	token, err := store.Create(ctx, 42)
	require.NoError(t, err)

	mr.FastForward(50 * time.Minute)
	_, err = store.Lookup(ctx, token)
	require.NoError(t, err)

	mr.FastForward(50 * time.Minute)
	userID, err := store.Lookup(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestSessionDelete(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	token, err := store.Create(ctx, 42)
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, token))

	_, err = store.Lookup(ctx, token)
	require.ErrorIs(t, err, shared.ErrUnauthenticated)

	require.NoError(t, store.Delete(ctx, "already-gone"))
}

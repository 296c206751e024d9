package shared

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionStore keeps bearer-token sessions in Redis. Tokens are opaque; the
// stored value is only the user id the token authenticates.
type SessionStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewSessionStore constructs a SessionStore.
func NewSessionStore(client *redis.Client, prefix string, ttl time.Duration) *SessionStore {
	if prefix == "" {
		prefix = "supervisor_session"
	}
	return &SessionStore{client: client, prefix: prefix, ttl: ttl}
}

// Create issues a new token for the user.
func (s *SessionStore) Create(ctx context.Context, userID int64) (string, error) {
	token := uuid.NewString()
	if err := s.client.Set(ctx, s.key(token), strconv.FormatInt(userID, 10), s.ttl).Err(); err != nil {
		return "", fmt.Errorf("shared: create session: %w", err)
	}
	return token, nil
}

// Lookup resolves a token to a user id, refreshing the TTL on hit.
func (s *SessionStore) Lookup(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return 0, ErrUnauthenticated
	}
	raw, err := s.client.Get(ctx, s.key(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrUnauthenticated
		}
		return 0, err
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, ErrUnauthenticated
	}
	_ = s.client.Expire(ctx, s.key(token), s.ttl).Err()
	return userID, nil
}

// Delete revokes a token.
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func (s *SessionStore) key(token string) string {
	return s.prefix + ":" + token
}

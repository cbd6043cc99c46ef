package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrSessionNotFound = errors.New("session not found")

// Store is the server-side session record store. Records expire by TTL; an
// explicit Delete revokes a session before its natural expiry.
type Store interface {
	Save(ctx context.Context, sessionID, accountID string, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (accountID string, err error)
	Delete(ctx context.Context, sessionID string) error
}

// RedisStore keeps session records in Redis hashes with a TTL.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

// Save stores a session record with the given TTL.
func (s *RedisStore) Save(ctx context.Context, sessionID, accountID string, ttl time.Duration) error {
	key := sessionKey(sessionID)

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"account_id": accountID,
		"created_at": time.Now().Unix(),
	})
	pipe.Expire(ctx, key, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

// Get returns the account bound to a session, or ErrSessionNotFound if the
// session never existed, expired, or was destroyed.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (string, error) {
	accountID, err := s.client.HGet(ctx, sessionKey(sessionID), "account_id").Result()
	if err == redis.Nil {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get session: %w", err)
	}
	return accountID, nil
}

// Delete removes a session record. Deleting an unknown session is a no-op.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

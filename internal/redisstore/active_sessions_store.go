package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ActiveSession is the cached projection of a running session, keyed by its
// correlation token for fast driver-display lookups.
type ActiveSession struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ChargerID string    `json:"charger_id"`
	AccountID string    `json:"account_id,omitempty"`
	StartTime time.Time `json:"start_time"`
}

// Store manages the active session cache.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore returns redis-backed store.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func (s *Store) key(token string) string {
	return fmt.Sprintf("sessions:active:%s", token)
}

// Save caches session.
func (s *Store) Save(ctx context.Context, session ActiveSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(session.Token), data, s.ttl).Err()
}

// Get returns cached session by token.
func (s *Store) Get(ctx context.Context, token string) (*ActiveSession, error) {
	result, err := s.client.Get(ctx, s.key(token)).Result()
	if err != nil {
		return nil, err
	}
	var session ActiveSession
	if err := json.Unmarshal([]byte(result), &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Delete removes cached session.
func (s *Store) Delete(ctx context.Context, token string) error {
	return s.client.Del(ctx, s.key(token)).Err()
}

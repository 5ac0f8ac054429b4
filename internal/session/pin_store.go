// Package session persists resolved content references against visitor
// sessions. Re-resolving with a saved reference reproduces the exact
// revision a visitor started their assessment with, even after the
// pointer has moved.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gutcheck/api/internal/resolver"
	"github.com/redis/go-redis/v9"
)

// PinStore stores content references in Redis, keyed by visitor session
// and content slot, with a TTL matching how long an abandoned
// assessment stays resumable.
type PinStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewPinStore connects to Redis and verifies the connection.
func NewPinStore(redisURL string, ttl time.Duration) (*PinStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewPinStoreWithClient(client, ttl), nil
}

// NewPinStoreWithClient wraps an existing Redis client.
func NewPinStoreWithClient(client *redis.Client, ttl time.Duration) *PinStore {
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}
	return &PinStore{client: client, prefix: "pin:", ttl: ttl}
}

// Slot derives the storage slot for an identity. One session holds at
// most one pin per slot.
func Slot(ident resolver.Identity) string {
	slot := string(ident.Kind) + ":" + ident.AssessmentType + ":" + ident.Version
	if ident.LevelID != "" {
		slot += ":" + ident.LevelID
	}
	if ident.Locale != "" {
		slot += ":" + ident.Locale
	}
	return slot
}

func (s *PinStore) key(sessionID, slot string) string {
	return s.prefix + sessionID + ":" + slot
}

// Save stores a reference for a session and slot, refreshing the TTL.
func (s *PinStore) Save(ctx context.Context, sessionID, slot string, ref *resolver.Ref) error {
	payload, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("marshal content ref: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sessionID, slot), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("save content ref: %w", err)
	}
	return nil
}

// Get returns the saved reference, or nil when the session has none for
// the slot.
func (s *PinStore) Get(ctx context.Context, sessionID, slot string) (*resolver.Ref, error) {
	payload, err := s.client.Get(ctx, s.key(sessionID, slot)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup content ref: %w", err)
	}

	var ref resolver.Ref
	if err := json.Unmarshal([]byte(payload), &ref); err != nil {
		return nil, fmt.Errorf("unmarshal content ref: %w", err)
	}
	return &ref, nil
}

// Clear removes a saved reference.
func (s *PinStore) Clear(ctx context.Context, sessionID, slot string) error {
	if err := s.client.Del(ctx, s.key(sessionID, slot)).Err(); err != nil {
		return fmt.Errorf("clear content ref: %w", err)
	}
	return nil
}

func (s *PinStore) Close() error {
	return s.client.Close()
}

func (s *PinStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

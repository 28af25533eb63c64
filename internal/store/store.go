// Package store provides the typed session-store client backed by Redis.
// All room and session state lives here and nowhere else.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Room state key fields under room:{name}:.
const (
	FieldUsers              = "users"
	FieldPassword           = "password"
	FieldAnime              = "anime"
	FieldControlledByMods   = "controlledByMods"
	FieldBannedParticipants = "bannedParticipants"
	FieldMutedParticipants  = "mutedParticipants"
)

// RoomKey returns the store key for a room field, e.g. room:r1:users.
func RoomKey(room, field string) string {
	return fmt.Sprintf("room:%s:%s", room, field)
}

// RoomPrefix returns the deletion pattern covering every key of a room.
func RoomPrefix(room string) string {
	return fmt.Sprintf("room:%s:*", room)
}

// SIDKey returns the store key of a connection's session binding.
func SIDKey(connID string) string {
	return fmt.Sprintf("sid:%s", connID)
}

// SessionStore is a typed wrapper over the shared key-value store. Values are
// serialized as JSON.
type SessionStore struct {
	client *redis.Client
}

// New creates a SessionStore on top of an established Redis client.
func New(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

// GetJSON fetches the key and unmarshals it into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func (s *SessionStore) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, fmt.Errorf("store get %s: decode: %w", key, err)
	}
	return true, nil
}

// SetJSON marshals v and sets the key. A zero ttl means no expiry.
func (s *SessionStore) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store set %s: encode: %w", key, err)
	}
	if err := s.client.Set(ctx, key, b, ttl).Err(); err != nil {
		return fmt.Errorf("store set %s: %w", key, err)
	}
	return nil
}

// MSetJSON marshals every value and sets all keys in a single MSET.
func (s *SessionStore) MSetJSON(ctx context.Context, values map[string]any) error {
	pairs := make([]any, 0, len(values)*2)
	for key, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("store mset %s: encode: %w", key, err)
		}
		pairs = append(pairs, key, b)
	}
	if err := s.client.MSet(ctx, pairs...).Err(); err != nil {
		return fmt.Errorf("store mset: %w", err)
	}
	return nil
}

// Del deletes a single key.
func (s *SessionStore) Del(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("store del %s: %w", key, err)
	}
	return nil
}

// DelPrefix deletes every key matching the pattern via SCAN, so large
// keyspaces are not blocked the way KEYS would.
func (s *SessionStore) DelPrefix(ctx context.Context, pattern string) error {
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("store scan %s: %w", pattern, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("store del %s: %w", pattern, err)
	}
	return nil
}

// Keys returns every key matching the pattern.
func (s *SessionStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("store scan %s: %w", pattern, err)
	}
	return keys, nil
}

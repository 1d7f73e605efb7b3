// internal/app/store/sessions/store.go
package sessions

// Session payloads live in Redis so every process sees the same login state.
// The browser cookie only carries a signed session ID; the payload is looked
// up here by that ID, both by the HTTP session middleware and by the
// real-time handshake.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Well-known payload keys.
const (
	KeyAuthenticated = "is_authenticated"
	KeyUserID        = "user_id"
)

// ErrNotFound is returned when a session ID has no payload (never existed or expired).
var ErrNotFound = errors.New("session not found or expired")

// Payload is the decoded session content.
type Payload map[string]any

// UserID returns the authenticated principal, or "" if the payload does not
// carry an authenticated-principal claim.
func (p Payload) UserID() string {
	if ok, _ := p[KeyAuthenticated].(bool); !ok {
		return ""
	}
	id, _ := p[KeyUserID].(string)
	return id
}

// Store keeps session payloads in Redis under a key prefix.
type Store struct {
	client *redis.Client
	prefix string
}

// New creates a Store on an existing Redis client.
func New(client *redis.Client) *Store {
	return &Store{
		client: client,
		prefix: "session:",
	}
}

// Connect parses a redis:// URL, verifies the server answers, and returns the client.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

func (s *Store) key(id string) string {
	return s.prefix + id
}

// Get loads the payload for a session ID.
func (s *Store) Get(ctx context.Context, id string) (Payload, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return p, nil
}

// Save writes the payload with the given lifetime. A non-positive ttl keeps
// the key without expiry.
func (s *Store) Save(ctx context.Context, id string, p Payload, ttl time.Duration) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.key(id), raw, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete removes a session payload. Deleting a missing session is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

package testutil

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	sessionstore "github.com/dalemusser/taskhub/internal/app/store/sessions"
	"github.com/dalemusser/taskhub/internal/app/system/auth"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SessionKey is a 32+ byte signing key for tests.
const SessionKey = "test-session-key-must-be-32-chars-long"

// SetupRedis starts an in-process Redis and returns it with a client.
// Both are closed when the test ends.
func SetupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// NewSessionManager returns a session manager backed by a fresh miniredis.
func NewSessionManager(t *testing.T) (*auth.SessionManager, *redis.Client) {
	t.Helper()
	_, client := SetupRedis(t)
	sm, err := auth.NewSessionManager(sessionstore.New(client), SessionKey, "taskhub-test", "", 24*time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("new session manager: %v", err)
	}
	return sm, client
}

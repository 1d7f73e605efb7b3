package sessions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client, err := Connect(context.Background(), "redis://"+s.Addr())
	if err != nil {
		t.Fatalf("failed to connect to miniredis: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return New(client), s
}

func TestConnect_BadURL(t *testing.T) {
	if _, err := Connect(context.Background(), "not-a-url"); err == nil {
		t.Error("expected error for malformed redis url")
	}
}

func TestSaveAndGet(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	err := store.Save(ctx, "abc", Payload{KeyAuthenticated: true, KeyUserID: "u1"}, time.Hour)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	p, err := store.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if p.UserID() != "u1" {
		t.Errorf("expected user u1, got %q", p.UserID())
	}
}

func TestGet_Missing(t *testing.T) {
	store, _ := setupTestRedis(t)
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGet_Expired(t *testing.T) {
	store, s := setupTestRedis(t)
	ctx := context.Background()

	if err := store.Save(ctx, "short", Payload{KeyUserID: "u1"}, time.Second); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	s.FastForward(2 * time.Second)

	if _, err := store.Get(ctx, "short"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	_ = store.Save(ctx, "gone", Payload{KeyUserID: "u1"}, time.Hour)
	if err := store.Delete(ctx, "gone"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "gone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, "gone"); err != nil {
		t.Errorf("deleting twice should not fail: %v", err)
	}
}

func TestPayload_UserIDRequiresAuthenticatedClaim(t *testing.T) {
	tests := []struct {
		name string
		p    Payload
		want string
	}{
		{"authenticated", Payload{KeyAuthenticated: true, KeyUserID: "u1"}, "u1"},
		{"not authenticated", Payload{KeyAuthenticated: false, KeyUserID: "u1"}, ""},
		{"missing flag", Payload{KeyUserID: "u1"}, ""},
		{"missing id", Payload{KeyAuthenticated: true}, ""},
		{"empty", Payload{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.UserID(); got != tt.want {
				t.Errorf("UserID() = %q, want %q", got, tt.want)
			}
		})
	}
}

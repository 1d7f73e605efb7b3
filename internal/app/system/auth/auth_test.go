package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	sessionstore "github.com/dalemusser/taskhub/internal/app/store/sessions"
	"github.com/dalemusser/taskhub/internal/app/system/auth"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const testKey = "test-session-key-must-be-32-chars-long"

func newTestSessionManager(t *testing.T) (*auth.SessionManager, *sessionstore.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	payloads := sessionstore.New(client)
	sm, err := auth.NewSessionManager(payloads, testKey, "test-session", "", 24*time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to create session manager: %v", err)
	}
	return sm, payloads
}

type fakeFetcher map[string]*auth.SessionUser

func (f fakeFetcher) FetchUser(_ context.Context, id string) *auth.SessionUser {
	return f[id]
}

// signIn runs SignIn in a throwaway request and returns the cookie it set.
func signIn(t *testing.T, sm *auth.SessionManager, userID string) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/login", nil)
	if err := sm.SignIn(rec, req, userID); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == sm.CookieName() {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func TestNewSessionManager_ShortKey(t *testing.T) {
	mr := miniredis.RunT(t)
	payloads := sessionstore.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	if _, err := auth.NewSessionManager(payloads, "short", "s", "", time.Hour, true, zap.NewNop()); err != auth.ErrShortSessionKey {
		t.Errorf("secure + short key: err = %v, want ErrShortSessionKey", err)
	}
	if _, err := auth.NewSessionManager(payloads, "short", "s", "", time.Hour, false, zap.NewNop()); err != nil {
		t.Errorf("dev + short key should only warn, got %v", err)
	}
	if _, err := auth.NewSessionManager(payloads, "", "s", "", time.Hour, false, zap.NewNop()); err == nil {
		t.Error("empty key should fail")
	}
}

func TestSignIn_StoresPayloadAndSignedID(t *testing.T) {
	sm, payloads := newTestSessionManager(t)
	cookie := signIn(t, sm, "user-1")

	if !cookie.HttpOnly {
		t.Error("cookie should be HttpOnly")
	}
	id, err := sm.DecodeSessionID(cookie.Value)
	if err != nil {
		t.Fatalf("DecodeSessionID: %v", err)
	}
	p, err := payloads.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("payload missing: %v", err)
	}
	if p.UserID() != "user-1" {
		t.Errorf("UserID = %q, want user-1", p.UserID())
	}
}

func TestDecodeSessionID_RejectsTampered(t *testing.T) {
	sm, _ := newTestSessionManager(t)
	cookie := signIn(t, sm, "user-1")

	if _, err := sm.DecodeSessionID(cookie.Value + "x"); err == nil {
		t.Error("tampered cookie decoded")
	}
	if _, err := sm.DecodeSessionID("not-a-cookie"); err == nil {
		t.Error("garbage decoded")
	}
}

func TestSignIn_RotatesSessionID(t *testing.T) {
	sm, payloads := newTestSessionManager(t)
	first := signIn(t, sm, "user-1")
	firstID, _ := sm.DecodeSessionID(first.Value)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/login", nil)
	req.AddCookie(first)
	if err := sm.SignIn(rec, req, "user-2"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	if _, err := payloads.Get(context.Background(), firstID); err != sessionstore.ErrNotFound {
		t.Errorf("old session should be gone, got err=%v", err)
	}
	second := rec.Result().Cookies()[0]
	secondID, _ := sm.DecodeSessionID(second.Value)
	if secondID == firstID {
		t.Error("session ID was not rotated")
	}
}

func TestDestroy(t *testing.T) {
	sm, payloads := newTestSessionManager(t)
	cookie := signIn(t, sm, "user-1")
	id, _ := sm.DecodeSessionID(cookie.Value)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/logout", nil)
	req.AddCookie(cookie)
	if err := sm.Destroy(rec, req); err != nil {
		t.Fatalf("Destroy: %v", err)
	}

	if _, err := payloads.Get(context.Background(), id); err != sessionstore.ErrNotFound {
		t.Errorf("payload should be deleted, got %v", err)
	}
	if c := rec.Result().Cookies()[0]; c.MaxAge >= 0 {
		t.Errorf("cookie MaxAge = %d, want expired", c.MaxAge)
	}
}

func TestLoadSessionUser(t *testing.T) {
	sm, _ := newTestSessionManager(t)
	sm.SetUserFetcher(fakeFetcher{
		"active": {ID: "active", Name: "Ada", Role: "manager", OrganizationID: "org"},
	})

	tests := []struct {
		name     string
		userID   string
		wantUser bool
	}{
		{"active user", "active", true},
		{"disabled or missing user", "gone", false},
		{"no cookie", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/tasks", nil)
			if tt.userID != "" {
				req.AddCookie(signIn(t, sm, tt.userID))
			}

			var got *auth.SessionUser
			h := sm.LoadSessionUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = auth.CurrentUser(r)
			}))
			h.ServeHTTP(httptest.NewRecorder(), req)

			if (got != nil) != tt.wantUser {
				t.Fatalf("user present = %v, want %v", got != nil, tt.wantUser)
			}
			if got != nil && got.Name != "Ada" {
				t.Errorf("Name = %q", got.Name)
			}
		})
	}
}

func TestRequireSignedIn(t *testing.T) {
	sm, _ := newTestSessionManager(t)
	h := sm.RequireSignedIn(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/tasks", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous: status = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	req := auth.WithTestUser(httptest.NewRequest("GET", "/tasks", nil), &auth.SessionUser{ID: "u", Role: "employee"})
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("signed in: status = %d, want 200", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	sm, _ := newTestSessionManager(t)
	h := sm.RequireRole("admin", "manager")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name string
		user *auth.SessionUser
		want int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"employee", &auth.SessionUser{ID: "u", Role: "employee"}, http.StatusForbidden},
		{"manager", &auth.SessionUser{ID: "u", Role: "manager"}, http.StatusOK},
		{"admin mixed case", &auth.SessionUser{ID: "u", Role: "Admin"}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("DELETE", "/tasks/1", nil)
			if tt.user != nil {
				req = auth.WithTestUser(req, tt.user)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

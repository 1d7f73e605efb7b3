package realtime_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	sessionstore "github.com/dalemusser/taskhub/internal/app/store/sessions"
	"github.com/dalemusser/taskhub/internal/app/system/auth"
	"github.com/dalemusser/taskhub/internal/app/system/realtime"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type fakeUsers struct {
	mu    sync.Mutex
	byID  map[primitive.ObjectID]models.User
	fails error
}

func (f *fakeUsers) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails != nil {
		return nil, f.fails
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return &u, nil
}

// harness is a real Server behind httptest with Redis sessions on miniredis.
type harness struct {
	sm       *auth.SessionManager
	payloads *sessionstore.Store
	users    *fakeUsers
	reg      *realtime.Registry
	srv      *realtime.Server
	ts       *httptest.Server
	mr       *miniredis.Miniredis
}

func newHarness(t *testing.T, cfg realtime.Config, origins ...string) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	payloads := sessionstore.New(client)
	sm, err := auth.NewSessionManager(payloads, "realtime-test-key-0123456789abcdef", "taskhub-session", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}

	users := &fakeUsers{byID: make(map[primitive.ObjectID]models.User)}
	reg := realtime.NewRegistry(zap.NewNop())
	v := realtime.NewValidator(sm, payloads, users, origins, zap.NewNop())
	srv := realtime.NewServer(v, reg, cfg, zap.NewNop())
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return &harness{sm: sm, payloads: payloads, users: users, reg: reg, srv: srv, ts: ts, mr: mr}
}

func (h *harness) addUser(org *primitive.ObjectID, status string) models.User {
	u := models.User{
		ID:             primitive.NewObjectID(),
		FullName:       "Test User",
		Email:          "test@example.com",
		Role:           models.RoleEmployee,
		Status:         status,
		OrganizationID: org,
	}
	h.users.mu.Lock()
	h.users.byID[u.ID] = u
	h.users.mu.Unlock()
	return u
}

// cookieFor signs userID in and returns a Cookie header value.
func (h *harness) cookieFor(t *testing.T, userID primitive.ObjectID) string {
	t.Helper()
	rec := httptest.NewRecorder()
	if err := h.sm.SignIn(rec, httptest.NewRequest("POST", "/login", nil), userID.Hex()); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	c := rec.Result().Cookies()[0]
	return c.Name + "=" + c.Value
}

func (h *harness) url() string {
	return "ws" + strings.TrimPrefix(h.ts.URL, "http") + "/ws"
}

func (h *harness) dial(t *testing.T, cookie, origin string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	if cookie != "" {
		header.Set("Cookie", cookie)
	}
	if origin != "" {
		header.Set("Origin", origin)
	}
	ws, _, err := websocket.DefaultDialer.Dial(h.url(), header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

// connect signs a fresh user into a fresh organization and dials.
func (h *harness) connect(t *testing.T, org primitive.ObjectID) (*websocket.Conn, models.User) {
	t.Helper()
	u := h.addUser(&org, models.StatusActive)
	ws := h.dial(t, h.cookieFor(t, u.ID), "")
	if _, ok := readMsg(t, ws).(realtime.Connected); !ok {
		t.Fatal("first message is not a connection message")
	}
	return ws, u
}

func readMsg(t *testing.T, ws *websocket.Conn) realtime.Outbound {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	m, err := realtime.DecodeOutbound(data)
	if err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return m
}

// expectClose reads until the socket fails and checks the close code. Any
// data frame before the close fails the test.
func expectClose(t *testing.T, ws *websocket.Conn, code int) {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := ws.ReadMessage()
	if err == nil {
		t.Fatalf("expected close %d, got frame %s", code, data)
	}
	var ce *websocket.CloseError
	if !errors.As(err, &ce) {
		t.Fatalf("expected close error, got %v", err)
	}
	if ce.Code != code {
		t.Errorf("close code = %d (%q), want %d", ce.Code, ce.Text, code)
	}
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

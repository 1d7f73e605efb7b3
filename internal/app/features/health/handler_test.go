package health_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/taskhub/internal/app/features/health"
	"github.com/dalemusser/taskhub/internal/testutil"
	"go.uber.org/zap"
)

type fixedCount int

func (f fixedCount) Count() int { return int(f) }

type healthBody struct {
	Status      string `json:"status"`
	Database    string `json:"database"`
	Sessions    string `json:"sessions"`
	Connections int    `json:"connections"`
}

func TestServe_AllConnected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	_, rdb := testutil.SetupRedis(t)
	handler := health.NewHandler(db.Client(), rdb, fixedCount(3), zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Serve(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q", ct)
	}

	var body healthBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Status != "ok" || body.Database != "connected" || body.Sessions != "connected" {
		t.Errorf("unexpected body: %+v", body)
	}
	if body.Connections != 3 {
		t.Errorf("connections: got %d, want 3", body.Connections)
	}
}

func TestServe_RedisDown(t *testing.T) {
	db := testutil.SetupTestDB(t)
	mr, rdb := testutil.SetupRedis(t)
	mr.Close()
	handler := health.NewHandler(db.Client(), rdb, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	handler.Serve(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var body healthBody
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Sessions != "disconnected" || body.Database != "connected" {
		t.Errorf("unexpected body: %+v", body)
	}
}

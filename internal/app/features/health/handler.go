package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// ConnectionCounter reports live WebSocket connections. realtime.Registry implements it.
type ConnectionCounter interface {
	Count() int
}

// Handler holds dependencies needed for health checks.
type Handler struct {
	Client *mongo.Client
	Redis  *redis.Client
	Conns  ConnectionCounter
	Log    *zap.Logger
}

// NewHandler constructs a health Handler. conns may be nil.
func NewHandler(client *mongo.Client, rdb *redis.Client, conns ConnectionCounter, logger *zap.Logger) *Handler {
	return &Handler{
		Client: client,
		Redis:  rdb,
		Conns:  conns,
		Log:    logger,
	}
}

// healthResponse is the JSON structure for the health check response.
type healthResponse struct {
	Status      string `json:"status"`
	Database    string `json:"database"`
	Sessions    string `json:"sessions"`
	Connections int    `json:"connections"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "database":"connected", "sessions":"connected", "connections":12 }
//
// If Mongo or Redis does not answer: 503 with status "error".
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	resp := healthResponse{
		Status:   "ok",
		Database: "connected",
		Sessions: "connected",
	}
	if h.Conns != nil {
		resp.Connections = h.Conns.Count()
	}

	if err := h.Client.Ping(ctx, readpref.Primary()); err != nil {
		h.Log.Error("health-check: mongo ping failed", zap.Error(err))
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		resp.Error = err.Error()
	}
	if err := h.Redis.Ping(ctx).Err(); err != nil {
		h.Log.Error("health-check: redis ping failed", zap.Error(err))
		resp.Status = "error"
		resp.Sessions = "disconnected"
		if resp.Message == "" {
			resp.Message = "Session store unavailable"
			resp.Error = err.Error()
		}
	}

	if resp.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

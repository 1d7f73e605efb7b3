// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/taskhub/internal/app/system/realtime"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// minProdSessionKey is the shortest session key accepted in prod.
const minProdSessionKey = 32

// appConfigKeys defines the configuration keys for TaskHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: TASKHUB_MONGO_URI, TASKHUB_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "taskhub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "redis_url", Default: "redis://localhost:6379/0", Desc: "Redis URL for the shared session store"},

	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "taskhub-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "168h", Desc: "Session lifetime (e.g., 24h, 168h)"},

	// Real-time endpoint
	{Name: "ws_allowed_origins", Default: "", Desc: "Comma-separated origins allowed to open /ws (blank or * allows any)"},
	{Name: "ws_handshake_timeout", Default: "5s", Desc: "Time allowed to validate a WebSocket handshake"},
	{Name: "ws_heartbeat_interval", Default: "30s", Desc: "Expected client ping interval; two missed intervals close the socket"},
	{Name: "ws_send_buffer", Default: realtime.DefaultSendBuffer, Desc: "Queued outbound messages per connection before it is dropped"},
	{Name: "ws_sweep_interval", Default: "1m", Desc: "How often idle connections are swept"},

	// First-run seed
	{Name: "seed_organization", Default: "", Desc: "Organization created for the seed admin"},
	{Name: "seed_admin_email", Default: "", Desc: "Email of an admin created on startup if missing"},
	{Name: "seed_admin_password", Default: "", Desc: "Password for the seed admin"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig reads .env and config files, TASKHUB_*
// environment variables and flags, merged with precedence
// flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "TASKHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		RedisURL:         appValues.String("redis_url"),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionMaxAge: appValues.Duration("session_max_age", 7*24*time.Hour),

		WSAllowedOrigins:    splitList(appValues.String("ws_allowed_origins")),
		WSHandshakeTimeout:  appValues.Duration("ws_handshake_timeout", 5*time.Second),
		WSHeartbeatInterval: appValues.Duration("ws_heartbeat_interval", realtime.DefaultHeartbeat),
		WSSendBuffer:        appValues.Int("ws_send_buffer"),
		WSSweepInterval:     appValues.Duration("ws_sweep_interval", time.Minute),

		SeedOrganization:  appValues.String("seed_organization"),
		SeedAdminEmail:    appValues.String("seed_admin_email"),
		SeedAdminPassword: appValues.String("seed_admin_password"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Bad Mongo and Redis URLs are caught here, before anything tries to
// connect. Weak session keys are only fatal in prod.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if _, err := redis.ParseURL(appCfg.RedisURL); err != nil {
		logger.Error("invalid Redis URL", zap.Error(err))
		return fmt.Errorf("invalid Redis URL: %w", err)
	}
	if strings.TrimSpace(appCfg.SessionName) == "" {
		return errors.New("session_name must not be empty")
	}
	if coreCfg != nil && coreCfg.Env == "prod" && len(appCfg.SessionKey) < minProdSessionKey {
		return fmt.Errorf("session_key must be at least %d bytes in prod", minProdSessionKey)
	}
	if appCfg.SessionMaxAge <= 0 {
		return errors.New("session_max_age must be positive")
	}
	if appCfg.SeedAdminEmail != "" && (appCfg.SeedAdminPassword == "" || appCfg.SeedOrganization == "") {
		return errors.New("seed_admin_email requires seed_admin_password and seed_organization")
	}
	return nil
}

// splitList turns "a, b,,c" into [a b c].
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

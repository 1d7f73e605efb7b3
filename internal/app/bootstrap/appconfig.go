// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers the
// framework-level settings (ports, TLS, logging, CORS); everything TaskHub
// itself needs lives here and is passed to every lifecycle hook.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Redis holds session payloads shared with the real-time endpoint.
	RedisURL string // e.g., redis://localhost:6379/0

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: taskhub-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Cookie and Redis payload lifetime

	// Real-time endpoint
	WSAllowedOrigins    []string // Origins allowed to open /ws; empty or "*" allows any
	WSHandshakeTimeout  time.Duration
	WSHeartbeatInterval time.Duration
	WSSendBuffer        int
	WSSweepInterval     time.Duration // How often stale connections are swept

	// Optional first-run seed. When SeedAdminEmail is set, an admin with this
	// email is created inside SeedOrganization if it does not exist yet.
	SeedOrganization  string
	SeedAdminEmail    string
	SeedAdminPassword string
}

// Package timeouts holds the operation deadlines used across handlers, stores
// and the real-time server.
//
//   - Ping: health checks
//   - Short: single-document reads, session lookups
//   - Medium: list queries and single writes
//   - Long: multi-collection work such as a column rebalance
//   - Handshake: validating a WebSocket upgrade request
package timeouts

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultPing      = 2 * time.Second
	DefaultShort     = 5 * time.Second
	DefaultMedium    = 10 * time.Second
	DefaultLong      = 30 * time.Second
	DefaultHandshake = 5 * time.Second
)

// Config holds timeout values. Zero fields keep the current value.
type Config struct {
	Ping      time.Duration
	Short     time.Duration
	Medium    time.Duration
	Long      time.Duration
	Handshake time.Duration
}

var (
	mu      sync.RWMutex
	current = defaults()
)

func defaults() Config {
	return Config{
		Ping:      DefaultPing,
		Short:     DefaultShort,
		Medium:    DefaultMedium,
		Long:      DefaultLong,
		Handshake: DefaultHandshake,
	}
}

func Ping() time.Duration      { return get().Ping }
func Short() time.Duration     { return get().Short }
func Medium() time.Duration    { return get().Medium }
func Long() time.Duration      { return get().Long }
func Handshake() time.Duration { return get().Handshake }

func get() Config {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Configure overrides timeouts at startup, before handlers are built.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.Ping > 0 {
		current.Ping = cfg.Ping
	}
	if cfg.Short > 0 {
		current.Short = cfg.Short
	}
	if cfg.Medium > 0 {
		current.Medium = cfg.Medium
	}
	if cfg.Long > 0 {
		current.Long = cfg.Long
	}
	if cfg.Handshake > 0 {
		current.Handshake = cfg.Handshake
	}
}

// Reset restores the defaults. Used by tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	current = defaults()
}

// Current returns a copy of the active configuration, for startup logging.
func Current() Config {
	return get()
}

// WithTimeout is context.WithTimeout with a cancel func that logs when the
// deadline, rather than the caller, ended the operation.
//
//	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "rebalance column")
//	defer cancel()
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}

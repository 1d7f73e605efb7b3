package realtime

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dalemusser/taskhub/internal/app/system/limits"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Defaults for Config fields left zero.
const (
	DefaultHeartbeat    = 30 * time.Second
	DefaultSendBuffer   = 32
	DefaultWriteTimeout = 10 * time.Second
)

// Config tunes the real-time endpoint.
type Config struct {
	HandshakeTimeout time.Duration
	// HeartbeatInterval is how often clients ping. A socket silent for two
	// intervals is closed.
	HeartbeatInterval time.Duration
	SendBuffer        int
	WriteTimeout      time.Duration
}

func (c Config) withDefaults() Config {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = timeouts.Handshake()
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeat
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = DefaultSendBuffer
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	return c
}

// IdleTimeout is how long a connection may stay silent.
func (c Config) IdleTimeout() time.Duration {
	return 2 * c.withDefaults().HeartbeatInterval
}

// Server is the GET /ws endpoint. The handshake is validated before the
// upgrade; a failed handshake is still upgraded and then closed right away
// so browsers can read the close code.
type Server struct {
	auth     Authenticator
	registry *Registry
	upgrader websocket.Upgrader
	cfg      Config
	log      *zap.Logger

	closing atomic.Bool
	wg      sync.WaitGroup
}

func NewServer(auth Authenticator, registry *Registry, cfg Config, logger *zap.Logger) *Server {
	cfg = cfg.withDefaults()
	return &Server{
		auth:     auth,
		registry: registry,
		cfg:      cfg,
		log:      logger,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: cfg.HandshakeTimeout,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			// Origin is checked by the Authenticator so the rejection can
			// be reported with a close code instead of a bare 403.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.closing.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), s.cfg.HandshakeTimeout, s.log, "websocket handshake")
	ident, authErr := s.auth.Validate(ctx, r)
	cancel()

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error.
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	if authErr != nil {
		code, reason := CloseFor(authErr)
		if code == CloseInternal {
			s.log.Error("websocket handshake failed", zap.Error(authErr))
		} else {
			s.log.Info("websocket handshake rejected",
				zap.Int("code", code),
				zap.String("remote", r.RemoteAddr),
				zap.Error(authErr))
		}
		msg := websocket.FormatCloseMessage(code, reason)
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.cfg.WriteTimeout))
		_ = ws.Close()
		return
	}

	c := newConn(ws, ident, s.cfg.SendBuffer, s.cfg.WriteTimeout, s.log)
	c.authenticated.Store(true)

	// Queued before the connection is registered, so no broadcast can land
	// ahead of it: it is always the first frame the client sees.
	_ = c.Send(Connected{
		ConnectionID:   c.ID(),
		UserID:         ident.UserID,
		OrganizationID: ident.OrganizationID,
		Timestamp:      time.Now().UTC(),
	})
	if err := s.registry.Add(ident.OrganizationID, c); err != nil {
		c.Close(CloseInternal, "internal error")
		return
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		c.writePump()
	}()
	go func() {
		defer s.wg.Done()
		s.readLoop(c)
	}()

	c.log.Info("websocket connected", zap.Int("connections", s.registry.Count()))
}

// readLoop handles inbound frames in order until the socket fails.
func (s *Server) readLoop(c *Conn) {
	defer s.registry.Remove(c)

	idle := s.cfg.IdleTimeout()
	c.ws.SetReadLimit(limits.MaxWSMessage)
	_ = c.ws.SetReadDeadline(time.Now().Add(idle))

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			s.readFailed(c, err)
			return
		}
		c.touch()
		_ = c.ws.SetReadDeadline(time.Now().Add(idle))

		in, err := DecodeInbound(data)
		if err != nil {
			c.log.Info("closing connection: bad message", zap.Error(err))
			c.Close(CloseBadMessage, "bad message format")
			return
		}

		switch in.Type {
		case TypePing:
			_ = c.Send(Pong{Timestamp: time.Now().UTC()})
		default:
			if !c.Authenticated() {
				c.Close(CloseAuthRequired, "authentication required")
				return
			}
			c.log.Debug("ignoring inbound message", zap.String("type", in.Type))
		}
	}
}

func (s *Server) readFailed(c *Conn, err error) {
	var ne net.Error
	var ce *websocket.CloseError
	switch {
	case errors.As(err, &ce):
		c.log.Debug("client closed", zap.Int("code", ce.Code))
		c.drop()
	case errors.As(err, &ne) && ne.Timeout():
		c.log.Info("closing idle connection")
		c.Close(CloseIdle, "idle timeout")
	case errors.Is(err, websocket.ErrReadLimit):
		c.Close(websocket.CloseMessageTooBig, "message too big")
	default:
		c.drop()
	}
}

// Sweep closes connections silent since before cutoff. The read deadline
// normally catches these; this covers sockets stuck elsewhere.
func (s *Server) Sweep(cutoff time.Time) int {
	stale := s.registry.Stale(cutoff)
	for _, p := range stale {
		s.registry.Remove(p)
		p.Close(CloseIdle, "idle timeout")
	}
	return len(stale)
}

// Close rejects new handshakes, closes every connection with 1001, and waits
// for connection goroutines to finish or ctx to end.
func (s *Server) Close(ctx context.Context) error {
	s.closing.Store(true)
	n := s.registry.CloseAll(CloseGoingAway, "server shutting down")
	s.log.Info("websocket server closing", zap.Int("connections", n))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Registry exposes the connection registry, for health reporting.
func (s *Server) Registry() *Registry {
	return s.registry
}

package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrGaveUp is returned by Client.Run when reconnecting stops.
var ErrGaveUp = errors.New("realtime client gave up")

// ClientOptions configures a Client. Zero fields take defaults.
type ClientOptions struct {
	Policy            Policy
	HeartbeatInterval time.Duration
	Dialer            *websocket.Dialer
	// OnMessage receives every server message except pongs.
	OnMessage func(Outbound)
	// OnState is told about every state transition.
	OnState func(Status)
}

// Client is a Go consumer of the real-time endpoint. It authenticates with
// whatever cookie header it is given and reconnects per its Policy.
type Client struct {
	url    string
	header http.Header
	opts   ClientOptions
	log    *zap.Logger

	mu     sync.Mutex
	status Status
}

func NewClient(url string, header http.Header, opts ClientOptions, logger *zap.Logger) *Client {
	if opts.Policy == (Policy{}) {
		opts.Policy = DefaultPolicy
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeat
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &Client{url: url, header: header, opts: opts, log: logger}
}

// Status returns the current state.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Client) apply(ev Event) time.Duration {
	c.mu.Lock()
	next, delay := Next(c.status, ev, c.opts.Policy)
	changed := next != c.status
	c.status = next
	c.mu.Unlock()

	if changed {
		c.log.Debug("realtime client state", zap.Stringer("status", next))
		if c.opts.OnState != nil {
			c.opts.OnState(next)
		}
	}
	return delay
}

// Run connects and keeps reconnecting until ctx ends (returns ctx.Err()) or
// the state machine fails (returns an error wrapping ErrGaveUp and the last
// close code).
func (c *Client) Run(ctx context.Context) error {
	for {
		c.apply(Event{Kind: EventDial})
		code := c.session(ctx)

		if ctx.Err() != nil {
			c.apply(Event{Kind: EventStop})
			return ctx.Err()
		}

		delay := c.apply(Event{Kind: EventClosed, Code: code})
		if c.Status().State == Failed {
			return fmt.Errorf("%w: last close code %d", ErrGaveUp, code)
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			c.apply(Event{Kind: EventStop})
			return ctx.Err()
		case <-t.C:
		}
	}
}

// session runs one connection and returns its close code (0 if none).
func (c *Client) session(ctx context.Context) int {
	ws, _, err := c.opts.Dialer.DialContext(ctx, c.url, c.header)
	if err != nil {
		c.log.Debug("realtime dial failed", zap.Error(err))
		return 0
	}
	defer ws.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			_ = ws.Close()
		case <-stop:
		}
	}()

	var pingOnce sync.Once
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				return ce.Code
			}
			return 0
		}
		m, err := DecodeOutbound(data)
		if err != nil {
			c.log.Warn("realtime client: bad server message", zap.Error(err))
			continue
		}
		if _, ok := m.(Connected); ok {
			c.apply(Event{Kind: EventConnected})
			pingOnce.Do(func() { go c.heartbeat(ws, stop) })
		}
		if _, ok := m.(Pong); ok {
			continue
		}
		if c.opts.OnMessage != nil {
			c.opts.OnMessage(m)
		}
	}
}

// heartbeat is the only writer of data frames on ws.
func (c *Client) heartbeat(ws *websocket.Conn, stop <-chan struct{}) {
	t := time.NewTicker(c.opts.HeartbeatInterval)
	defer t.Stop()
	ping := []byte(`{"type":"ping"}`)
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			_ = ws.SetWriteDeadline(time.Now().Add(DefaultWriteTimeout))
			if err := ws.WriteMessage(websocket.TextMessage, ping); err != nil {
				return
			}
		}
	}
}

package realtime

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Peer is a live connection as seen by the Registry and the dispatcher.
type Peer interface {
	ID() string
	UserID() primitive.ObjectID
	OrganizationID() primitive.ObjectID
	Authenticated() bool
	// Send queues m without blocking.
	Send(m Outbound) error
	// Close sends a close frame and releases the socket. Safe to call more than once.
	Close(code int, reason string)
	LastSeen() time.Time
}

// Conn is a server-side WebSocket connection. One goroutine reads (see
// Server.readLoop); writePump is the only writer of data frames.
type Conn struct {
	id    string
	ws    *websocket.Conn
	ident Identity
	log   *zap.Logger

	authenticated atomic.Bool
	lastSeen      atomic.Int64

	send         chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
}

var _ Peer = (*Conn)(nil)

func newConn(ws *websocket.Conn, ident Identity, buffer int, writeTimeout time.Duration, logger *zap.Logger) *Conn {
	id := uuid.NewString()
	c := &Conn{
		id:           id,
		ws:           ws,
		ident:        ident,
		send:         make(chan []byte, buffer),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
		log: logger.With(
			zap.String("conn_id", id),
			zap.String("user_id", ident.UserID.Hex()),
			zap.String("org_id", ident.OrganizationID.Hex()),
		),
	}
	c.touch()
	return c
}

func (c *Conn) ID() string                         { return c.id }
func (c *Conn) UserID() primitive.ObjectID         { return c.ident.UserID }
func (c *Conn) OrganizationID() primitive.ObjectID { return c.ident.OrganizationID }
func (c *Conn) Authenticated() bool                { return c.authenticated.Load() }

func (c *Conn) LastSeen() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}

func (c *Conn) touch() {
	c.lastSeen.Store(time.Now().UnixNano())
}

// Send encodes m and queues it. A full queue closes the connection as a
// slow consumer instead of blocking the caller.
func (c *Conn) Send(m Outbound) error {
	frame, err := Encode(m)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	default:
		c.log.Warn("send queue full; closing slow consumer", zap.String("type", m.Type()))
		c.Close(CloseIdle, "slow consumer")
		return ErrSlowConsumer
	}
}

// Close sends a close frame with code and reason, then closes the socket.
func (c *Conn) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.authenticated.Store(false)
		close(c.done)
		msg := websocket.FormatCloseMessage(code, reason)
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeTimeout))
		_ = c.ws.Close()
		c.log.Debug("connection closed", zap.Int("code", code), zap.String("reason", reason))
	})
}

// drop closes the socket without a close frame, for when the peer already
// went away.
func (c *Conn) drop() {
	c.closeOnce.Do(func() {
		c.authenticated.Store(false)
		close(c.done)
		_ = c.ws.Close()
		c.log.Debug("connection dropped")
	})
}

// writePump drains the send queue until the connection closes.
func (c *Conn) writePump() {
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug("write failed", zap.Error(err))
				c.drop()
				return
			}
		}
	}
}

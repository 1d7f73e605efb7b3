package realtime

import (
	"errors"

	"github.com/gorilla/websocket"
)

// Close codes sent to clients. 4xxx codes are application-defined and
// mirror the matching HTTP status.
const (
	CloseGoingAway      = websocket.CloseGoingAway          // 1001, server shutdown
	CloseInternal       = websocket.CloseInternalServerErr  // 1011
	CloseBadMessage     = 4400
	CloseAuthRequired   = 4401
	CloseOriginRejected = 4403
	CloseIdle           = 4408 // idle timeout or slow consumer
)

// Handshake errors. All of them end the connection before any
// connection message is sent.
var (
	ErrNoSessionCookie = errors.New("session cookie missing")
	ErrInvalidSession  = errors.New("session invalid or expired")
	ErrUserNotFound    = errors.New("session user not found or disabled")
	ErrNoOrganization  = errors.New("session user has no organization")
	ErrOriginRejected  = errors.New("origin not allowed")
)

var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrUnauthenticated  = errors.New("connection is not authenticated")
	ErrClosed           = errors.New("connection closed")
	ErrSlowConsumer     = errors.New("send queue full")
)

// CloseFor maps a handshake error to the close code and reason sent to the client.
func CloseFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrOriginRejected):
		return CloseOriginRejected, "origin not allowed"
	case errors.Is(err, ErrNoSessionCookie),
		errors.Is(err, ErrInvalidSession),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrNoOrganization):
		return CloseAuthRequired, "authentication required"
	default:
		return CloseInternal, "internal error"
	}
}

// Terminal reports whether a close code means reconnecting cannot help.
func Terminal(code int) bool {
	return code == CloseAuthRequired || code == CloseOriginRejected
}

package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message type tags, the "type" field of every frame.
const (
	TypeConnection   = "connection"
	TypeNotification = "notification"
	TypePing         = "ping"
	TypePong         = "pong"
	TypeTaskMoved    = "task_moved"
)

// Outbound is a server-to-client message. The set is closed: only the types
// in this file implement it.
type Outbound interface {
	Type() string
	outbound()
}

// Connected is sent once, right after a successful handshake.
type Connected struct {
	ConnectionID   string             `json:"connectionId"`
	UserID         primitive.ObjectID `json:"userId"`
	OrganizationID primitive.ObjectID `json:"organizationId"`
	Timestamp      time.Time          `json:"timestamp"`
}

// NotificationPush carries a freshly persisted notification.
type NotificationPush struct {
	Notification models.Notification `json:"notification"`
	Timestamp    time.Time           `json:"timestamp"`
}

// Pong answers a client ping.
type Pong struct {
	Timestamp time.Time `json:"timestamp"`
}

// TaskMoved tells every client in an organization that a task changed column or order.
type TaskMoved struct {
	TaskID    primitive.ObjectID `json:"taskId"`
	Status    string             `json:"status"`
	Position  string             `json:"position"`
	MovedBy   primitive.ObjectID `json:"movedBy"`
	Timestamp time.Time          `json:"timestamp"`
}

func (Connected) Type() string        { return TypeConnection }
func (NotificationPush) Type() string { return TypeNotification }
func (Pong) Type() string             { return TypePong }
func (TaskMoved) Type() string        { return TypeTaskMoved }

func (Connected) outbound()        {}
func (NotificationPush) outbound() {}
func (Pong) outbound()             {}
func (TaskMoved) outbound()        {}

func (m Connected) MarshalJSON() ([]byte, error) {
	type plain Connected
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{TypeConnection, plain(m)})
}

func (m NotificationPush) MarshalJSON() ([]byte, error) {
	type plain NotificationPush
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{TypeNotification, plain(m)})
}

func (m Pong) MarshalJSON() ([]byte, error) {
	type plain Pong
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{TypePong, plain(m)})
}

func (m TaskMoved) MarshalJSON() ([]byte, error) {
	type plain TaskMoved
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{TypeTaskMoved, plain(m)})
}

// Encode renders an outbound message as a JSON text frame.
func Encode(m Outbound) ([]byte, error) {
	return json.Marshal(m)
}

type envelope struct {
	Type string `json:"type"`
}

// Inbound is a client-to-server message. Only ping is defined; any other
// type decodes successfully so the caller can decide what to do with it.
type Inbound struct {
	Type string
}

// DecodeInbound parses a client frame. Anything that is not a JSON object
// returns ErrMalformedMessage.
func DecodeInbound(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return Inbound{Type: env.Type}, nil
}

// DecodeOutbound parses a server frame on the client side.
func DecodeOutbound(data []byte) (Outbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	var (
		m   Outbound
		err error
	)
	switch env.Type {
	case TypeConnection:
		var v Connected
		err = json.Unmarshal(data, &v)
		m = v
	case TypeNotification:
		var v NotificationPush
		err = json.Unmarshal(data, &v)
		m = v
	case TypePong:
		var v Pong
		err = json.Unmarshal(data, &v)
		m = v
	case TypeTaskMoved:
		var v TaskMoved
		err = json.Unmarshal(data, &v)
		m = v
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedMessage, env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return m, nil
}

package testutil

import (
	"sync"
	"time"

	"github.com/dalemusser/taskhub/internal/app/system/realtime"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RecordingPeer is an authenticated realtime.Peer that keeps what it is sent.
type RecordingPeer struct {
	id   string
	user primitive.ObjectID
	org  primitive.ObjectID

	mu     sync.Mutex
	sent   []realtime.Outbound
	closed int
}

func NewRecordingPeer(org, user primitive.ObjectID) *RecordingPeer {
	return &RecordingPeer{id: primitive.NewObjectID().Hex(), org: org, user: user}
}

func (p *RecordingPeer) ID() string                         { return p.id }
func (p *RecordingPeer) UserID() primitive.ObjectID         { return p.user }
func (p *RecordingPeer) OrganizationID() primitive.ObjectID { return p.org }
func (p *RecordingPeer) Authenticated() bool                { return true }
func (p *RecordingPeer) LastSeen() time.Time                { return time.Now() }

func (p *RecordingPeer) Send(m realtime.Outbound) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, m)
	return nil
}

func (p *RecordingPeer) Close(code int, _ string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = code
}

// Sent returns a copy of everything sent so far.
func (p *RecordingPeer) Sent() []realtime.Outbound {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]realtime.Outbound(nil), p.sent...)
}

// SentOfType returns the sent messages whose Type() is typ.
func (p *RecordingPeer) SentOfType(typ string) []realtime.Outbound {
	var out []realtime.Outbound
	for _, m := range p.Sent() {
		if m.Type() == typ {
			out = append(out, m)
		}
	}
	return out
}

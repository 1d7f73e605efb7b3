package realtime_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/taskhub/internal/app/system/realtime"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// fakePeer records what it was sent.
type fakePeer struct {
	id     string
	user   primitive.ObjectID
	org    primitive.ObjectID
	authed bool
	seen   time.Time

	mu        sync.Mutex
	sent      []realtime.Outbound
	closeCode int
}

func newFakePeer(id string, org, user primitive.ObjectID) *fakePeer {
	return &fakePeer{id: id, org: org, user: user, authed: true, seen: time.Now()}
}

func (p *fakePeer) ID() string                         { return p.id }
func (p *fakePeer) UserID() primitive.ObjectID         { return p.user }
func (p *fakePeer) OrganizationID() primitive.ObjectID { return p.org }
func (p *fakePeer) Authenticated() bool                { return p.authed }
func (p *fakePeer) LastSeen() time.Time                { return p.seen }

func (p *fakePeer) Send(m realtime.Outbound) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, m)
	return nil
}

func (p *fakePeer) Close(code int, _ string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeCode = code
}

func (p *fakePeer) Sent() []realtime.Outbound {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]realtime.Outbound(nil), p.sent...)
}

func TestRegistry_AddRefusesUnauthenticated(t *testing.T) {
	reg := realtime.NewRegistry(zap.NewNop())
	p := newFakePeer("c1", primitive.NewObjectID(), primitive.NewObjectID())
	p.authed = false

	if err := reg.Add(p.org, p); !errors.Is(err, realtime.ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
	if reg.Count() != 0 {
		t.Errorf("Count = %d, want 0", reg.Count())
	}
}

func TestRegistry_AddIsIdempotent(t *testing.T) {
	reg := realtime.NewRegistry(zap.NewNop())
	org := primitive.NewObjectID()
	p := newFakePeer("c1", org, primitive.NewObjectID())

	for i := 0; i < 3; i++ {
		if err := reg.Add(org, p); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if reg.Count() != 1 || reg.CountInOrg(org) != 1 {
		t.Errorf("Count=%d CountInOrg=%d, want 1/1", reg.Count(), reg.CountInOrg(org))
	}
}

func TestRegistry_AddMovesBetweenOrgs(t *testing.T) {
	reg := realtime.NewRegistry(zap.NewNop())
	orgA, orgB := primitive.NewObjectID(), primitive.NewObjectID()
	p := newFakePeer("c1", orgA, primitive.NewObjectID())

	_ = reg.Add(orgA, p)
	_ = reg.Add(orgB, p)

	if reg.CountInOrg(orgA) != 0 {
		t.Error("peer still in old organization")
	}
	if reg.CountInOrg(orgB) != 1 {
		t.Error("peer missing from new organization")
	}
	if reg.Count() != 1 {
		t.Errorf("Count = %d, want 1", reg.Count())
	}
}

func TestRegistry_RemoveNeverAddedIsNoop(t *testing.T) {
	reg := realtime.NewRegistry(zap.NewNop())
	org := primitive.NewObjectID()
	kept := newFakePeer("kept", org, primitive.NewObjectID())
	_ = reg.Add(org, kept)

	reg.Remove(newFakePeer("stranger", org, primitive.NewObjectID()))

	if reg.Count() != 1 {
		t.Errorf("Count = %d, want 1", reg.Count())
	}
}

func TestRegistry_ConcurrentRemove(t *testing.T) {
	reg := realtime.NewRegistry(zap.NewNop())
	org := primitive.NewObjectID()
	p := newFakePeer("c1", org, primitive.NewObjectID())
	_ = reg.Add(org, p)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg.Remove(p)
		}()
	}
	wg.Wait()

	if reg.Count() != 0 {
		t.Errorf("Count = %d, want 0", reg.Count())
	}
}

func TestRegistry_ForEachInOrgForUser(t *testing.T) {
	reg := realtime.NewRegistry(zap.NewNop())
	orgA, orgB := primitive.NewObjectID(), primitive.NewObjectID()
	alice, bob := primitive.NewObjectID(), primitive.NewObjectID()

	aliceTab1 := newFakePeer("a1", orgA, alice)
	aliceTab2 := newFakePeer("a2", orgA, alice)
	bobTab := newFakePeer("b1", orgA, bob)
	aliceElsewhere := newFakePeer("a3", orgB, alice)
	for _, p := range []*fakePeer{aliceTab1, aliceTab2, bobTab, aliceElsewhere} {
		_ = reg.Add(p.org, p)
	}

	n := reg.ForEachInOrgForUser(orgA, alice, func(p realtime.Peer) {
		_ = p.Send(realtime.Pong{})
	})

	if n != 2 {
		t.Errorf("visited %d, want 2", n)
	}
	if len(aliceTab1.Sent()) != 1 || len(aliceTab2.Sent()) != 1 {
		t.Error("each of alice's org A connections should get exactly one message")
	}
	if len(bobTab.Sent()) != 0 || len(aliceElsewhere.Sent()) != 0 {
		t.Error("message leaked to another user or organization")
	}
}

func TestRegistry_CallbackMayRemove(t *testing.T) {
	reg := realtime.NewRegistry(zap.NewNop())
	org := primitive.NewObjectID()
	for _, id := range []string{"c1", "c2", "c3"} {
		_ = reg.Add(org, newFakePeer(id, org, primitive.NewObjectID()))
	}

	n := reg.ForEachInOrg(org, func(p realtime.Peer) {
		reg.Remove(p)
	})

	if n != 3 {
		t.Errorf("visited %d, want 3", n)
	}
	if reg.Count() != 0 {
		t.Errorf("Count = %d, want 0", reg.Count())
	}
}

func TestRegistry_Stale(t *testing.T) {
	reg := realtime.NewRegistry(zap.NewNop())
	org := primitive.NewObjectID()
	fresh := newFakePeer("fresh", org, primitive.NewObjectID())
	old := newFakePeer("old", org, primitive.NewObjectID())
	old.seen = time.Now().Add(-time.Hour)
	_ = reg.Add(org, fresh)
	_ = reg.Add(org, old)

	stale := reg.Stale(time.Now().Add(-time.Minute))

	if len(stale) != 1 || stale[0].ID() != "old" {
		t.Errorf("Stale = %v, want only old", stale)
	}
}

func TestRegistry_CloseAll(t *testing.T) {
	reg := realtime.NewRegistry(zap.NewNop())
	orgA, orgB := primitive.NewObjectID(), primitive.NewObjectID()
	p1 := newFakePeer("c1", orgA, primitive.NewObjectID())
	p2 := newFakePeer("c2", orgB, primitive.NewObjectID())
	_ = reg.Add(orgA, p1)
	_ = reg.Add(orgB, p2)

	if n := reg.CloseAll(realtime.CloseGoingAway, "bye"); n != 2 {
		t.Errorf("CloseAll = %d, want 2", n)
	}
	if reg.Count() != 0 {
		t.Errorf("Count = %d, want 0", reg.Count())
	}
	if p1.closeCode != realtime.CloseGoingAway || p2.closeCode != realtime.CloseGoingAway {
		t.Error("peers not closed with going-away code")
	}
}

package realtime

import (
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Registry tracks authenticated connections by organization. A peer is in
// at most one organization at a time.
//
// Iteration runs over a snapshot taken under the read lock, so callbacks may
// block, send, or call Remove.
type Registry struct {
	mu    sync.RWMutex
	byOrg map[primitive.ObjectID]map[string]Peer
	orgOf map[string]primitive.ObjectID
	log   *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		byOrg: make(map[primitive.ObjectID]map[string]Peer),
		orgOf: make(map[string]primitive.ObjectID),
		log:   logger,
	}
}

// Add registers p under orgID. Re-adding is a no-op; adding under a
// different organization moves the peer. Unauthenticated peers are refused.
func (r *Registry) Add(orgID primitive.ObjectID, p Peer) error {
	if !p.Authenticated() {
		return ErrUnauthenticated
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.orgOf[p.ID()]; ok {
		if prev == orgID {
			return nil
		}
		r.removeLocked(prev, p.ID())
	}

	set := r.byOrg[orgID]
	if set == nil {
		set = make(map[string]Peer)
		r.byOrg[orgID] = set
	}
	set[p.ID()] = p
	r.orgOf[p.ID()] = orgID

	r.log.Debug("connection registered",
		zap.String("conn_id", p.ID()),
		zap.String("org_id", orgID.Hex()),
		zap.Int("org_connections", len(set)))
	return nil
}

// Remove unregisters p. Removing an unknown peer does nothing.
func (r *Registry) Remove(p Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	orgID, ok := r.orgOf[p.ID()]
	if !ok {
		return
	}
	r.removeLocked(orgID, p.ID())
}

func (r *Registry) removeLocked(orgID primitive.ObjectID, id string) {
	delete(r.orgOf, id)
	set := r.byOrg[orgID]
	delete(set, id)
	if len(set) == 0 {
		delete(r.byOrg, orgID)
	}
}

// ForEachInOrg calls fn for every peer in orgID and returns how many it visited.
func (r *Registry) ForEachInOrg(orgID primitive.ObjectID, fn func(Peer)) int {
	peers := r.snapshot(orgID, func(Peer) bool { return true })
	for _, p := range peers {
		fn(p)
	}
	return len(peers)
}

// ForEachInOrgForUser calls fn for every peer of userID in orgID.
func (r *Registry) ForEachInOrgForUser(orgID, userID primitive.ObjectID, fn func(Peer)) int {
	peers := r.snapshot(orgID, func(p Peer) bool { return p.UserID() == userID })
	for _, p := range peers {
		fn(p)
	}
	return len(peers)
}

func (r *Registry) snapshot(orgID primitive.ObjectID, keep func(Peer) bool) []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.byOrg[orgID]
	out := make([]Peer, 0, len(set))
	for _, p := range set {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// Count returns the number of registered peers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orgOf)
}

// CountInOrg returns the number of peers registered under orgID.
func (r *Registry) CountInOrg(orgID primitive.ObjectID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byOrg[orgID])
}

// Stale returns peers whose last activity is before cutoff.
func (r *Registry) Stale(cutoff time.Time) []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Peer
	for _, set := range r.byOrg {
		for _, p := range set {
			if p.LastSeen().Before(cutoff) {
				out = append(out, p)
			}
		}
	}
	return out
}

// CloseAll closes and unregisters every peer. Returns how many were closed.
func (r *Registry) CloseAll(code int, reason string) int {
	r.mu.Lock()
	var all []Peer
	for _, set := range r.byOrg {
		for _, p := range set {
			all = append(all, p)
		}
	}
	r.byOrg = make(map[primitive.ObjectID]map[string]Peer)
	r.orgOf = make(map[string]primitive.ObjectID)
	r.mu.Unlock()

	for _, p := range all {
		p.Close(code, reason)
	}
	return len(all)
}

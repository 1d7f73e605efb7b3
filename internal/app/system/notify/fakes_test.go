package notify_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dalemusser/taskhub/internal/app/system/realtime"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type fakeTasks map[primitive.ObjectID]models.Task

func (f fakeTasks) GetByID(_ context.Context, orgID, id primitive.ObjectID) (*models.Task, error) {
	t, ok := f[id]
	if !ok || t.OrganizationID != orgID {
		return nil, mongo.ErrNoDocuments
	}
	return &t, nil
}

type fakeUsers struct {
	byID map[primitive.ObjectID]models.User
}

func (f *fakeUsers) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return &u, nil
}

func (f *fakeUsers) ListByOrganization(_ context.Context, orgID primitive.ObjectID) ([]models.User, error) {
	var out []models.User
	for _, u := range f.byID {
		if u.OrganizationID != nil && *u.OrganizationID == orgID && u.Status == models.StatusActive {
			out = append(out, u)
		}
	}
	return out, nil
}

type fakeNotifications struct {
	mu      sync.Mutex
	saved   []models.Notification
	failAt  int // 1-based; 0 never fails
	created int
}

func (f *fakeNotifications) Create(_ context.Context, n models.Notification) (models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	if f.failAt > 0 && f.created == f.failAt {
		return models.Notification{}, errors.New("disk full")
	}
	n.ID = primitive.NewObjectID()
	f.saved = append(f.saved, n)
	return n, nil
}

// peer is a realtime.Peer that records pushes.
type peer struct {
	id   string
	org  primitive.ObjectID
	user primitive.ObjectID

	mu   sync.Mutex
	sent []realtime.Outbound
}

func (p *peer) ID() string                         { return p.id }
func (p *peer) UserID() primitive.ObjectID         { return p.user }
func (p *peer) OrganizationID() primitive.ObjectID { return p.org }
func (p *peer) Authenticated() bool                { return true }
func (p *peer) LastSeen() time.Time                { return time.Now() }
func (p *peer) Close(int, string)                  {}

func (p *peer) Send(m realtime.Outbound) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, m)
	return nil
}

func (p *peer) pushes() []realtime.NotificationPush {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []realtime.NotificationPush
	for _, m := range p.sent {
		if n, ok := m.(realtime.NotificationPush); ok {
			out = append(out, n)
		}
	}
	return out
}

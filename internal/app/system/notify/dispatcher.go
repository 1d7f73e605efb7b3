// Package notify turns task events into persisted notifications and pushes
// them to the recipients' live connections.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/taskhub/internal/app/system/realtime"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	// ErrDispatchPersistence wraps a store failure. Nothing is pushed for
	// the notification that failed or any after it.
	ErrDispatchPersistence = errors.New("notification could not be saved")
	ErrTaskNotFound        = errors.New("task not found")
)

type TaskStore interface {
	GetByID(ctx context.Context, orgID, id primitive.ObjectID) (*models.Task, error)
}

type UserStore interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

type MemberStore interface {
	ListByOrganization(ctx context.Context, orgID primitive.ObjectID) ([]models.User, error)
}

type NotificationStore interface {
	Create(ctx context.Context, n models.Notification) (models.Notification, error)
}

// Connections is the part of realtime.Registry the dispatcher pushes through.
type Connections interface {
	ForEachInOrgForUser(orgID, userID primitive.ObjectID, fn func(realtime.Peer)) int
	ForEachInOrg(orgID primitive.ObjectID, fn func(realtime.Peer)) int
}

// Dispatcher persists notifications, then pushes them.
type Dispatcher struct {
	tasks         TaskStore
	users         UserStore
	members       MemberStore
	notifications NotificationStore
	conns         Connections
	log           *zap.Logger
	now           func() time.Time
}

func NewDispatcher(tasks TaskStore, users UserStore, members MemberStore, notifications NotificationStore, conns Connections, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		tasks:         tasks,
		users:         users,
		members:       members,
		notifications: notifications,
		conns:         conns,
		log:           logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// draft is a notification before it is saved.
type draft struct {
	recipient primitive.ObjectID
	kind      string
	title     string
	message   string
	commentID *primitive.ObjectID
}

// Dispatch handles one event and returns the notifications it saved. A
// recipient gets at most one notification of each type per event, so an
// assignee who is also mentioned gets a task_comment and a mention. The actor
// never notifies themselves. Recipients without a live connection are not an
// error.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) ([]models.Notification, error) {
	task, err := d.tasks.GetByID(ctx, ev.Org(), ev.Task())
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load task: %w", err)
	}

	drafts, err := d.plan(ctx, ev, task, d.actorName(ctx, ev.Actor()))
	if err != nil {
		return nil, err
	}
	if len(drafts) == 0 {
		return nil, nil
	}

	taskID := task.ID
	out := make([]models.Notification, 0, len(drafts))
	for _, dr := range drafts {
		n := models.Notification{
			UserID:            dr.recipient,
			OrganizationID:    ev.Org(),
			Type:              dr.kind,
			Title:             dr.title,
			Message:           dr.message,
			TaskID:            &taskID,
			CommentID:         dr.commentID,
			TriggeredByUserID: ev.Actor(),
			CreatedAt:         d.now(),
		}
		saved, err := d.notifications.Create(ctx, n)
		if err != nil {
			d.log.Error("notification persist failed",
				zap.String("type", n.Type),
				zap.String("user_id", n.UserID.Hex()),
				zap.Error(err))
			return out, fmt.Errorf("%w: %v", ErrDispatchPersistence, err)
		}
		out = append(out, saved)
		d.push(saved)
	}
	return out, nil
}

// plan decides who hears about ev and what they are told.
func (d *Dispatcher) plan(ctx context.Context, ev Event, task *models.Task, actor string) ([]draft, error) {
	title := quoteTitle(task.Title)
	var drafts []draft

	switch e := ev.(type) {
	case TaskAssigned:
		drafts = append(drafts, draft{
			recipient: e.AssigneeID,
			kind:      models.NotificationTaskAssigned,
			title:     "New task assigned",
			message:   actor + " assigned you to " + title,
		})

	case TaskStatusChanged:
		if task.AssigneeID == nil {
			return nil, nil
		}
		drafts = append(drafts, draft{
			recipient: *task.AssigneeID,
			kind:      models.NotificationTaskStatusChanged,
			title:     "Task status updated",
			message:   actor + " moved " + title + " to " + models.StatusLabel(e.NewStatus),
		})

	case TaskComment:
		commentID := e.CommentID
		if task.AssigneeID != nil {
			drafts = append(drafts, draft{
				recipient: *task.AssigneeID,
				kind:      models.NotificationTaskComment,
				title:     "New comment",
				message:   actor + " commented on " + title,
				commentID: &commentID,
			})
		}
		tokens := ParseMentions(e.CommentText)
		if len(tokens) > 0 {
			members, err := d.members.ListByOrganization(ctx, e.OrgID)
			if err != nil {
				return nil, fmt.Errorf("list members: %w", err)
			}
			for _, u := range ResolveMentions(tokens, members) {
				drafts = append(drafts, draft{
					recipient: u.ID,
					kind:      models.NotificationMention,
					title:     "You were mentioned",
					message:   actor + " mentioned you in a comment on " + title,
					commentID: &commentID,
				})
			}
		}

	default:
		return nil, fmt.Errorf("unknown event %T", ev)
	}

	return dedupe(drafts, ev.Actor()), nil
}

func dedupe(drafts []draft, actor primitive.ObjectID) []draft {
	type key struct {
		user primitive.ObjectID
		kind string
	}
	seen := make(map[key]struct{}, len(drafts))
	out := drafts[:0]
	for _, dr := range drafts {
		if dr.recipient == actor || dr.recipient.IsZero() {
			continue
		}
		k := key{dr.recipient, dr.kind}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, dr)
	}
	return out
}

func (d *Dispatcher) actorName(ctx context.Context, id primitive.ObjectID) string {
	u, err := d.users.GetByID(ctx, id)
	if err != nil || u.FullName == "" {
		if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
			d.log.Warn("actor lookup failed", zap.String("user_id", id.Hex()), zap.Error(err))
		}
		return "Someone"
	}
	return u.FullName
}

// quoteTitle expects a title that was made plain text when it was stored.
func quoteTitle(t string) string {
	return `"` + t + `"`
}

// push sends n to every live connection of its recipient in its organization.
func (d *Dispatcher) push(n models.Notification) {
	msg := realtime.NotificationPush{Notification: n, Timestamp: d.now()}
	count := d.conns.ForEachInOrgForUser(n.OrganizationID, n.UserID, func(p realtime.Peer) {
		if err := p.Send(msg); err != nil {
			d.log.Debug("push failed", zap.String("conn_id", p.ID()), zap.Error(err))
		}
	})
	d.log.Debug("notification pushed",
		zap.String("type", n.Type),
		zap.String("user_id", n.UserID.Hex()),
		zap.Int("connections", count))
}

// Broadcast sends msg to every connection in an organization and returns how
// many connections it reached.
func (d *Dispatcher) Broadcast(orgID primitive.ObjectID, msg realtime.Outbound) int {
	return d.conns.ForEachInOrg(orgID, func(p realtime.Peer) {
		if err := p.Send(msg); err != nil {
			d.log.Debug("broadcast failed", zap.String("conn_id", p.ID()), zap.Error(err))
		}
	})
}

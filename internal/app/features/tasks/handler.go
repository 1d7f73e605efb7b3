// internal/app/features/tasks/handler.go
package tasks

import (
	"net/http"
	"time"

	commentstore "github.com/dalemusser/taskhub/internal/app/store/comments"
	notificationstore "github.com/dalemusser/taskhub/internal/app/store/notifications"
	taskstore "github.com/dalemusser/taskhub/internal/app/store/tasks"
	userstore "github.com/dalemusser/taskhub/internal/app/store/users"
	"github.com/dalemusser/taskhub/internal/app/system/authz"
	"github.com/dalemusser/taskhub/internal/app/system/notify"
	"github.com/dalemusser/taskhub/internal/app/system/position"
	"github.com/dalemusser/taskhub/internal/app/system/reorder"
	"github.com/dalemusser/taskhub/internal/app/system/respond"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler owns the task, comment and reorder endpoints.
type Handler struct {
	Tasks         *taskstore.Store
	Comments      *commentstore.Store
	Notifications *notificationstore.Store
	Users         *userstore.Store
	Alloc         *position.Allocator
	Reorder       *reorder.Coordinator
	Dispatcher    *notify.Dispatcher
	Log           *zap.Logger

	now func() time.Time
}

// NewHandler wires the task feature to its stores and the real-time core.
func NewHandler(db *mongo.Database, alloc *position.Allocator, coord *reorder.Coordinator, dispatcher *notify.Dispatcher, logger *zap.Logger) *Handler {
	return &Handler{
		Tasks:         taskstore.New(db),
		Comments:      commentstore.New(db),
		Notifications: notificationstore.New(db),
		Users:         userstore.New(db),
		Alloc:         alloc,
		Reorder:       coord,
		Dispatcher:    dispatcher,
		Log:           logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// caller is the signed-in user a request acts for.
type caller struct {
	UserID primitive.ObjectID
	OrgID  primitive.ObjectID
	Role   string
}

// scope resolves the caller. Users without an organization have no board,
// so they get 403. It writes the error response itself.
func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (caller, bool) {
	role, _, uid, ok := authz.UserCtx(r)
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return caller{}, false
	}
	org := authz.UserOrgID(r)
	if org.IsZero() {
		respond.Error(w, http.StatusForbidden, "no organization")
		return caller{}, false
	}
	return caller{UserID: uid, OrgID: org, Role: role}, true
}

// taskID parses {id}; a malformed ID is indistinguishable from a missing task.
func taskID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusNotFound, "task not found")
		return primitive.NilObjectID, false
	}
	return id, true
}

// dispatch runs an event. The mutation it reports has already been written,
// so a failure here is logged and the request still succeeds.
func (h *Handler) dispatch(r *http.Request, ev notify.Event) {
	if h.Dispatcher == nil {
		return
	}
	if _, err := h.Dispatcher.Dispatch(r.Context(), ev); err != nil {
		h.Log.Error("notification dispatch failed",
			zap.String("task_id", ev.Task().Hex()),
			zap.Error(err))
	}
}

func (h *Handler) internalError(w http.ResponseWriter, msg string, err error) {
	h.Log.Error(msg, zap.Error(err))
	respond.Error(w, http.StatusInternalServerError, "internal error")
}

// internal/app/features/notifications/handler.go
package notifications

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	notificationstore "github.com/dalemusser/taskhub/internal/app/store/notifications"
	"github.com/dalemusser/taskhub/internal/app/system/authz"
	"github.com/dalemusser/taskhub/internal/app/system/limits"
	"github.com/dalemusser/taskhub/internal/app/system/respond"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the signed-in user's notification inbox. A user only ever
// sees notifications addressed to them in their own organization.
type Handler struct {
	Store *notificationstore.Store
	Log   *zap.Logger
}

func NewHandler(db *mongo.Database, logger *zap.Logger) *Handler {
	return &Handler{
		Store: notificationstore.New(db),
		Log:   logger,
	}
}

func (h *Handler) owner(w http.ResponseWriter, r *http.Request) (org, user primitive.ObjectID, ok bool) {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "unauthorized")
		return primitive.NilObjectID, primitive.NilObjectID, false
	}
	org = authz.UserOrgID(r)
	if org.IsZero() {
		respond.Error(w, http.StatusForbidden, "no organization")
		return primitive.NilObjectID, primitive.NilObjectID, false
	}
	return org, uid, true
}

// ServeList handles GET /notifications?unread=true&limit=N, newest first.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	org, user, ok := h.owner(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	unread, _ := strconv.ParseBool(q.Get("unread"))
	limit := int64(notificationstore.DefaultListLimit)
	if s := q.Get("limit"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n <= 0 {
			respond.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, limits.MaxNotificationList)
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	list, err := h.Store.ListForUser(ctx, org, user, unread, limit)
	if err != nil {
		h.Log.Error("list notifications", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if list == nil {
		list = []models.Notification{}
	}
	respond.JSON(w, http.StatusOK, list)
}

// ServeUnreadCount handles GET /notifications/unread-count.
func (h *Handler) ServeUnreadCount(w http.ResponseWriter, r *http.Request) {
	org, user, ok := h.owner(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	n, err := h.Store.CountUnread(ctx, org, user)
	if err != nil {
		h.Log.Error("count unread notifications", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	respond.JSON(w, http.StatusOK, map[string]int64{"count": n})
}

// HandleMarkRead handles POST /notifications/{id}/read.
func (h *Handler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, "mark notification read", h.Store.MarkRead)
}

// HandleDelete handles DELETE /notifications/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	h.byID(w, r, "delete notification", h.Store.Delete)
}

func (h *Handler) byID(w http.ResponseWriter, r *http.Request, what string, op func(ctx context.Context, org, user, id primitive.ObjectID) error) {
	org, user, ok := h.owner(w, r)
	if !ok {
		return
	}
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, http.StatusNotFound, "notification not found")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := op(ctx, org, user, id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.Error(w, http.StatusNotFound, "notification not found")
			return
		}
		h.Log.Error(what, zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	respond.NoContent(w)
}

// HandleMarkAllRead handles POST /notifications/read-all.
func (h *Handler) HandleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	org, user, ok := h.owner(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	n, err := h.Store.MarkAllRead(ctx, org, user)
	if err != nil {
		h.Log.Error("mark all notifications read", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	respond.JSON(w, http.StatusOK, map[string]int64{"updated": n})
}

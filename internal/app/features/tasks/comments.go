// internal/app/features/tasks/comments.go
package tasks

import (
	"context"
	"errors"
	"net/http"

	commentstore "github.com/dalemusser/taskhub/internal/app/store/comments"
	"github.com/dalemusser/taskhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/taskhub/internal/app/system/notify"
	"github.com/dalemusser/taskhub/internal/app/system/respond"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
)

// ServeComments handles GET /tasks/{id}/comments, oldest first.
func (h *Handler) ServeComments(w http.ResponseWriter, r *http.Request) {
	who, ok := h.scope(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if _, err := h.Tasks.GetByID(ctx, who.OrgID, id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.Error(w, http.StatusNotFound, "task not found")
			return
		}
		h.internalError(w, "list comments: load task", err)
		return
	}

	list, err := h.Comments.ListForTask(ctx, who.OrgID, id)
	if err != nil {
		h.internalError(w, "list comments", err)
		return
	}
	if list == nil {
		list = []models.Comment{}
	}
	respond.JSON(w, http.StatusOK, list)
}

// HandleAddComment handles POST /tasks/{id}/comments {body}. Markup is
// stripped; @mentions in the body notify the people named.
func (h *Handler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	who, ok := h.scope(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	var req commentRequest
	if !respond.Decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if _, err := h.Tasks.GetByID(ctx, who.OrgID, id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.Error(w, http.StatusNotFound, "task not found")
			return
		}
		h.internalError(w, "add comment: load task", err)
		return
	}

	c, err := h.Comments.Create(ctx, models.Comment{
		OrganizationID: who.OrgID,
		TaskID:         id,
		AuthorID:       who.UserID,
		Body:           htmlsanitize.PlainText(req.Body),
	})
	if errors.Is(err, commentstore.ErrEmptyBody) || errors.Is(err, commentstore.ErrBodyTooLong) {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.internalError(w, "add comment", err)
		return
	}

	h.dispatch(r, notify.TaskComment{
		TaskID:      id,
		CommentID:   c.ID,
		CommentText: c.Body,
		ActorID:     who.UserID,
		OrgID:       who.OrgID,
	})
	respond.JSON(w, http.StatusCreated, c)
}

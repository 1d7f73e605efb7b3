// internal/app/features/tasks/taskdelete.go
package tasks

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/taskhub/internal/app/system/reorder"
	"github.com/dalemusser/taskhub/internal/app/system/respond"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func mapNotFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return reorder.ErrTaskNotFound
	}
	return err
}

// HandleDelete handles DELETE /tasks/{id} (managers and admins). Comments and
// notifications pointing at the task go with it.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	who, ok := h.scope(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.Tasks.Delete(ctx, who.OrgID, id); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.Error(w, http.StatusNotFound, "task not found")
			return
		}
		h.internalError(w, "delete task", err)
		return
	}

	// Best effort; orphans are harmless and scoped to a dead task ID.
	if n, err := h.Comments.DeleteForTask(ctx, who.OrgID, id); err != nil {
		h.Log.Warn("delete task comments failed", zap.String("task_id", id.Hex()), zap.Error(err))
	} else if n > 0 {
		h.Log.Debug("task comments deleted", zap.Int64("count", n))
	}
	if _, err := h.Notifications.DeleteForTask(ctx, who.OrgID, id); err != nil {
		h.Log.Warn("delete task notifications failed", zap.String("task_id", id.Hex()), zap.Error(err))
	}

	h.Log.Info("task deleted", zap.String("task_id", id.Hex()), zap.String("by", who.UserID.Hex()))
	respond.NoContent(w)
}

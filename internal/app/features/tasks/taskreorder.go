// internal/app/features/tasks/taskreorder.go
package tasks

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/taskhub/internal/app/system/normalize"
	"github.com/dalemusser/taskhub/internal/app/system/notify"
	"github.com/dalemusser/taskhub/internal/app/system/realtime"
	"github.com/dalemusser/taskhub/internal/app/system/reorder"
	"github.com/dalemusser/taskhub/internal/app/system/respond"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.uber.org/zap"
)

// HandleReorder handles POST /tasks/{id}/reorder {status, before, after}.
// before and after are the position keys of the neighbours the client saw.
// Employees may move only tasks they created or are assigned to.
// Everyone in the organization gets a task_moved message.
func (h *Handler) HandleReorder(w http.ResponseWriter, r *http.Request) {
	who, ok := h.scope(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	var req reorderRequest
	if !respond.Decode(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	prev, err := h.Tasks.GetByID(ctx, who.OrgID, id)
	if err != nil {
		h.reorderError(w, mapNotFound(err))
		return
	}
	if !canEdit(who, prev) {
		respond.Error(w, http.StatusForbidden, "you may not move this task")
		return
	}

	moved, err := h.Reorder.Reorder(ctx, reorder.Request{
		TaskID:    id,
		OrgID:     who.OrgID,
		NewStatus: normalize.TaskStatus(req.Status),
		Before:    req.Before,
		After:     req.After,
	})
	if err != nil {
		h.reorderError(w, err)
		return
	}

	h.broadcastMove(who, moved)
	if moved.Status != prev.Status {
		h.dispatch(r, notify.TaskStatusChanged{
			TaskID:    id,
			NewStatus: moved.Status,
			ActorID:   who.UserID,
			OrgID:     who.OrgID,
		})
	}
	respond.JSON(w, http.StatusOK, moved)
}

func (h *Handler) broadcastMove(who caller, t models.Task) {
	if h.Dispatcher == nil {
		return
	}
	n := h.Dispatcher.Broadcast(who.OrgID, realtime.TaskMoved{
		TaskID:    t.ID,
		Status:    t.Status,
		Position:  t.Position,
		MovedBy:   who.UserID,
		Timestamp: h.now(),
	})
	h.Log.Debug("task_moved broadcast", zap.String("task_id", t.ID.Hex()), zap.Int("connections", n))
}

func (h *Handler) reorderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reorder.ErrTaskNotFound):
		respond.Error(w, http.StatusNotFound, "task not found")
	case errors.Is(err, reorder.ErrConflict):
		respond.Error(w, http.StatusConflict, "the board changed; reload and try again")
	case errors.Is(err, reorder.ErrInvalidStatus):
		respond.Error(w, http.StatusBadRequest, "invalid status")
	default:
		h.internalError(w, "reorder task", err)
	}
}

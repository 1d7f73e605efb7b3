// internal/app/features/tasks/taskview.go
package tasks

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/taskhub/internal/app/system/respond"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
)

// ServeTask handles GET /tasks/{id}.
func (h *Handler) ServeTask(w http.ResponseWriter, r *http.Request) {
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

	task, err := h.Tasks.GetByID(ctx, who.OrgID, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		respond.Error(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		h.internalError(w, "get task", err)
		return
	}
	respond.JSON(w, http.StatusOK, task)
}

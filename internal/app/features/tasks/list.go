// internal/app/features/tasks/list.go
package tasks

import (
	"context"
	"net/http"

	"github.com/dalemusser/taskhub/internal/app/system/normalize"
	"github.com/dalemusser/taskhub/internal/app/system/respond"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
	"github.com/dalemusser/taskhub/internal/domain/models"
)

// ServeList handles GET /tasks?status=. Tasks come back in board order:
// by status, then position.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	who, ok := h.scope(w, r)
	if !ok {
		return
	}

	status := normalize.TaskStatus(r.URL.Query().Get("status"))
	if status != "" && !models.IsValidTaskStatus(status) {
		respond.Error(w, http.StatusBadRequest, "invalid status")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	list, err := h.Tasks.List(ctx, who.OrgID, status)
	if err != nil {
		h.internalError(w, "list tasks", err)
		return
	}
	if list == nil {
		list = []models.Task{}
	}
	respond.JSON(w, http.StatusOK, list)
}

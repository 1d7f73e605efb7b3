// internal/app/features/tasks/taskcreate.go
package tasks

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/taskhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/taskhub/internal/app/system/normalize"
	"github.com/dalemusser/taskhub/internal/app/system/notify"
	"github.com/dalemusser/taskhub/internal/app/system/position"
	"github.com/dalemusser/taskhub/internal/app/system/reorder"
	"github.com/dalemusser/taskhub/internal/app/system/respond"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.uber.org/zap"
)

// HandleCreate handles POST /tasks. The task goes to the bottom of its
// column unless placement is "top". Assigning someone else notifies them.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	who, ok := h.scope(w, r)
	if !ok {
		return
	}
	var req createRequest
	if !respond.Decode(w, r, &req) {
		return
	}

	status := normalize.TaskStatus(req.Status)
	if status == "" {
		status = models.TaskTodo
	}
	if !models.IsValidTaskStatus(status) {
		respond.Error(w, http.StatusBadRequest, "invalid status")
		return
	}
	due, err := parseDueDate(req.DueDate)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	assignee, err := parseAssignee(req.AssigneeID)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	task := models.Task{
		OrganizationID: who.OrgID,
		Title:          htmlsanitize.PlainText(req.Title),
		Description:    htmlsanitize.Sanitize(req.Description),
		Status:         status,
		Priority:       normalize.Status(req.Priority),
		CreatedByID:    who.UserID,
	}
	if due.Set && !due.Clear {
		d := due.Value
		task.DueDate = &d
	}
	if assignee.Set && !assignee.Clear {
		if err := h.checkAssignee(ctx, who, assignee.Value); err != nil {
			h.assigneeError(w, err)
			return
		}
		a := assignee.Value
		task.AssigneeID = &a
	}

	top := req.Placement == "top"
	edge, err := h.Tasks.EdgePosition(ctx, who.OrgID, status, !top)
	if err != nil {
		h.internalError(w, "create task: read column edge", err)
		return
	}
	var exhausted bool
	if top {
		task.Position, err = h.Alloc.AllocateChecked("", edge)
	} else {
		task.Position, err = h.Alloc.AllocateChecked(edge, "")
	}
	if errors.Is(err, position.ErrExhausted) {
		// Insert at the clamped key, then let the coordinator respace the column.
		exhausted = true
		if top {
			task.Position = h.Alloc.Allocate("", edge)
		} else {
			task.Position = h.Alloc.Allocate(edge, "")
		}
	}

	created, err := h.Tasks.Create(ctx, task)
	if err != nil {
		// The store only rejects bad title/priority here.
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if exhausted && h.Reorder != nil {
		move := reorder.Request{TaskID: created.ID, OrgID: who.OrgID, NewStatus: status}
		if top {
			move.After = edge
		} else {
			move.Before = edge
		}
		if moved, err := h.Reorder.Reorder(ctx, move); err != nil {
			h.Log.Warn("create task: rebalance failed", zap.String("task_id", created.ID.Hex()), zap.Error(err))
		} else {
			created = moved
		}
	}

	h.Log.Info("task created",
		zap.String("task_id", created.ID.Hex()),
		zap.String("org_id", who.OrgID.Hex()),
		zap.String("status", created.Status))

	if created.AssigneeID != nil {
		h.dispatch(r, notify.TaskAssigned{
			TaskID:     created.ID,
			AssigneeID: *created.AssigneeID,
			ActorID:    who.UserID,
			OrgID:      who.OrgID,
		})
	}
	respond.JSON(w, http.StatusCreated, created)
}

func (h *Handler) assigneeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errAssignForbidden):
		respond.Error(w, http.StatusForbidden, err.Error())
	case isClientErr(err):
		respond.Error(w, http.StatusBadRequest, err.Error())
	default:
		h.internalError(w, "check assignee", err)
	}
}

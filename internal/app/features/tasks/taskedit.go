// internal/app/features/tasks/taskedit.go
package tasks

import (
	"context"
	"errors"
	"net/http"

	taskstore "github.com/dalemusser/taskhub/internal/app/store/tasks"
	"github.com/dalemusser/taskhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/taskhub/internal/app/system/normalize"
	"github.com/dalemusser/taskhub/internal/app/system/notify"
	"github.com/dalemusser/taskhub/internal/app/system/reorder"
	"github.com/dalemusser/taskhub/internal/app/system/respond"
	"github.com/dalemusser/taskhub/internal/app/system/timeouts"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// canEdit: managers and admins edit anything in their organization;
// employees edit tasks they created or are assigned to.
func canEdit(who caller, t *models.Task) bool {
	if who.Role == models.RoleAdmin || who.Role == models.RoleManager {
		return true
	}
	if t.CreatedByID == who.UserID {
		return true
	}
	return t.AssigneeID != nil && *t.AssigneeID == who.UserID
}

// HandleUpdate handles PATCH /tasks/{id}. A status change moves the task to
// the top of its new column through the reorder coordinator.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	who, ok := h.scope(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if !respond.Decode(w, r, &req) {
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
	var newStatus string
	if req.Status != nil {
		newStatus = normalize.TaskStatus(*req.Status)
		if !models.IsValidTaskStatus(newStatus) {
			respond.Error(w, http.StatusBadRequest, "invalid status")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	before, err := h.Tasks.GetByID(ctx, who.OrgID, id)
	if errors.Is(err, mongo.ErrNoDocuments) {
		respond.Error(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		h.internalError(w, "update task: load", err)
		return
	}
	if !canEdit(who, before) {
		respond.Error(w, http.StatusForbidden, "you may not edit this task")
		return
	}

	f := taskstore.Fields{ClearDueDate: due.Clear}
	if req.Title != nil {
		t := htmlsanitize.PlainText(*req.Title)
		f.Title = &t
	}
	if req.Description != nil {
		d := htmlsanitize.Sanitize(*req.Description)
		f.Description = &d
	}
	if req.Priority != nil {
		p := normalize.Status(*req.Priority)
		f.Priority = &p
	}
	if due.Set && !due.Clear {
		f.DueDate = &due.Value
	}
	if assignee.Set {
		if assignee.Clear {
			f.ClearAssignee = true
		} else {
			if err := h.checkAssignee(ctx, who, assignee.Value); err != nil {
				h.assigneeError(w, err)
				return
			}
			f.AssigneeID = &assignee.Value
		}
	}

	task := before
	if f.Title != nil || f.Description != nil || f.Priority != nil || due.Set || assignee.Set {
		task, err = h.Tasks.Update(ctx, who.OrgID, id, f)
		if errors.Is(err, mongo.ErrNoDocuments) {
			respond.Error(w, http.StatusNotFound, "task not found")
			return
		}
		if err != nil {
			// Remaining store errors are validation failures.
			respond.Error(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if newStatus != "" && newStatus != before.Status {
		moved, err := h.Reorder.Reorder(ctx, reorder.Request{
			TaskID:    id,
			OrgID:     who.OrgID,
			NewStatus: newStatus,
		})
		if err != nil {
			h.reorderError(w, err)
			return
		}
		task = &moved
		h.broadcastMove(who, moved)
		h.dispatch(r, notify.TaskStatusChanged{
			TaskID:    id,
			NewStatus: newStatus,
			ActorID:   who.UserID,
			OrgID:     who.OrgID,
		})
	}

	if f.AssigneeID != nil && (before.AssigneeID == nil || *before.AssigneeID != *f.AssigneeID) {
		h.dispatch(r, notify.TaskAssigned{
			TaskID:     id,
			AssigneeID: *f.AssigneeID,
			ActorID:    who.UserID,
			OrgID:      who.OrgID,
		})
	}

	h.Log.Debug("task updated", zap.String("task_id", id.Hex()))
	respond.JSON(w, http.StatusOK, task)
}

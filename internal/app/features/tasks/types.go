// internal/app/features/tasks/types.go
package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	errBadDueDate        = errors.New("due_date must be RFC 3339 or YYYY-MM-DD")
	errBadAssignee       = errors.New("assignee_id is not a valid id")
	errAssigneeNotMember = errors.New("assignee is not an active member of this organization")
	errAssignForbidden   = errors.New("employees may only assign tasks to themselves")
)

type createRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Priority    string          `json:"priority"`
	Status      string          `json:"status"`
	DueDate     json.RawMessage `json:"due_date"`
	AssigneeID  json.RawMessage `json:"assignee_id"`
	// Placement is "top" or "bottom" (default) of the status column.
	Placement string `json:"placement"`
}

// updateRequest is a partial update. Absent fields are left alone; for
// due_date and assignee_id an explicit null clears the value.
type updateRequest struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Priority    *string         `json:"priority"`
	Status      *string         `json:"status"`
	DueDate     json.RawMessage `json:"due_date"`
	AssigneeID  json.RawMessage `json:"assignee_id"`
}

type reorderRequest struct {
	Status string `json:"status"`
	Before string `json:"before"`
	After  string `json:"after"`
}

type commentRequest struct {
	Body string `json:"body"`
}

// optional is a decoded nullable JSON field.
type optional[T any] struct {
	Set   bool // present in the request
	Clear bool // present and null
	Value T
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func parseDueDate(raw json.RawMessage) (optional[time.Time], error) {
	if len(raw) == 0 {
		return optional[time.Time]{}, nil
	}
	if isNull(raw) {
		return optional[time.Time]{Set: true, Clear: true}, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return optional[time.Time]{}, errBadDueDate
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return optional[time.Time]{Set: true, Clear: true}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return optional[time.Time]{Set: true, Value: t.UTC()}, nil
		}
	}
	return optional[time.Time]{}, errBadDueDate
}

func parseAssignee(raw json.RawMessage) (optional[primitive.ObjectID], error) {
	if len(raw) == 0 {
		return optional[primitive.ObjectID]{}, nil
	}
	if isNull(raw) {
		return optional[primitive.ObjectID]{Set: true, Clear: true}, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return optional[primitive.ObjectID]{}, errBadAssignee
	}
	if strings.TrimSpace(s) == "" {
		return optional[primitive.ObjectID]{Set: true, Clear: true}, nil
	}
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(s))
	if err != nil {
		return optional[primitive.ObjectID]{}, errBadAssignee
	}
	return optional[primitive.ObjectID]{Set: true, Value: id}, nil
}

// checkAssignee verifies who may hand the task to assignee. Managers and
// admins assign anyone in the organization; employees only themselves.
func (h *Handler) checkAssignee(ctx context.Context, who caller, assignee primitive.ObjectID) error {
	if who.Role == models.RoleEmployee && assignee != who.UserID {
		return errAssignForbidden
	}
	u, err := h.Users.GetByID(ctx, assignee)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return errAssigneeNotMember
	}
	if err != nil {
		return err
	}
	if u.OrganizationID == nil || *u.OrganizationID != who.OrgID || u.Status == models.StatusDisabled {
		return errAssigneeNotMember
	}
	return nil
}

func isClientErr(err error) bool {
	return errors.Is(err, errBadDueDate) ||
		errors.Is(err, errBadAssignee) ||
		errors.Is(err, errAssigneeNotMember)
}

// internal/domain/models/task.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Task statuses. Each status is a board column.
const (
	TaskTodo       = "todo"
	TaskInProgress = "in_progress"
	TaskDone       = "done"
)

// Task priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// TaskStatuses lists the board columns in display order.
var TaskStatuses = []string{TaskTodo, TaskInProgress, TaskDone}

// TaskStatusLabels maps a status to the label shown to people.
var TaskStatusLabels = map[string]string{
	TaskTodo:       "To Do",
	TaskInProgress: "In Progress",
	TaskDone:       "Done",
}

// Task is a unit of work inside an organization.
//
// Position is an opaque key; within one (organization_id, status) column the
// lexicographic order of positions is the display order.
type Task struct {
	ID             primitive.ObjectID  `bson:"_id" json:"id"`
	OrganizationID primitive.ObjectID  `bson:"organization_id" json:"organization_id"`
	Title          string              `bson:"title" json:"title"`
	Description    string              `bson:"description,omitempty" json:"description,omitempty"`
	Status         string              `bson:"status" json:"status"`
	Priority       string              `bson:"priority" json:"priority"`
	AssigneeID     *primitive.ObjectID `bson:"assignee_id,omitempty" json:"assignee_id,omitempty"`
	CreatedByID    primitive.ObjectID  `bson:"created_by_id" json:"created_by_id"`
	DueDate        *time.Time          `bson:"due_date,omitempty" json:"due_date,omitempty"`
	Position       string              `bson:"position" json:"position"`
	CompletedAt    *time.Time          `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	CreatedAt      time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time           `bson:"updated_at" json:"updated_at"`
}

// IsValidTaskStatus reports whether s is a known column.
func IsValidTaskStatus(s string) bool {
	_, ok := TaskStatusLabels[s]
	return ok
}

// IsValidPriority reports whether p is a known priority.
func IsValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// StatusLabel returns the display label for a status, or the raw value if unknown.
func StatusLabel(s string) string {
	if l, ok := TaskStatusLabels[s]; ok {
		return l
	}
	return s
}

package notify

import "go.mongodb.org/mongo-driver/bson/primitive"

// Event is something that happened to a task. The set is closed.
type Event interface {
	Org() primitive.ObjectID
	Actor() primitive.ObjectID
	Task() primitive.ObjectID
	event()
}

// TaskAssigned: AssigneeID was given the task by ActorID.
type TaskAssigned struct {
	TaskID     primitive.ObjectID
	AssigneeID primitive.ObjectID
	ActorID    primitive.ObjectID
	OrgID      primitive.ObjectID
}

// TaskStatusChanged: ActorID moved the task to NewStatus.
type TaskStatusChanged struct {
	TaskID    primitive.ObjectID
	NewStatus string
	ActorID   primitive.ObjectID
	OrgID     primitive.ObjectID
}

// TaskComment: ActorID commented on the task.
type TaskComment struct {
	TaskID      primitive.ObjectID
	CommentID   primitive.ObjectID
	CommentText string
	ActorID     primitive.ObjectID
	OrgID       primitive.ObjectID
}

func (e TaskAssigned) Org() primitive.ObjectID      { return e.OrgID }
func (e TaskStatusChanged) Org() primitive.ObjectID { return e.OrgID }
func (e TaskComment) Org() primitive.ObjectID       { return e.OrgID }

func (e TaskAssigned) Actor() primitive.ObjectID      { return e.ActorID }
func (e TaskStatusChanged) Actor() primitive.ObjectID { return e.ActorID }
func (e TaskComment) Actor() primitive.ObjectID       { return e.ActorID }

func (e TaskAssigned) Task() primitive.ObjectID      { return e.TaskID }
func (e TaskStatusChanged) Task() primitive.ObjectID { return e.TaskID }
func (e TaskComment) Task() primitive.ObjectID       { return e.TaskID }

func (TaskAssigned) event()      {}
func (TaskStatusChanged) event() {}
func (TaskComment) event()       {}

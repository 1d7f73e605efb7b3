// internal/domain/models/notification.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification types
const (
	NotificationTaskAssigned      = "task_assigned"
	NotificationTaskStatusChanged = "task_status_changed"
	NotificationTaskComment       = "task_comment"
	NotificationMention           = "mention"
)

// Notification is the durable record of something a user should know about.
// Only IsRead changes after creation.
type Notification struct {
	ID                primitive.ObjectID  `bson:"_id" json:"id"`
	UserID            primitive.ObjectID  `bson:"user_id" json:"user_id"`
	OrganizationID    primitive.ObjectID  `bson:"organization_id" json:"organization_id"`
	Type              string              `bson:"type" json:"type"`
	Title             string              `bson:"title" json:"title"`
	Message           string              `bson:"message" json:"message"`
	IsRead            bool                `bson:"is_read" json:"is_read"`
	TaskID            *primitive.ObjectID `bson:"task_id,omitempty" json:"task_id,omitempty"`
	CommentID         *primitive.ObjectID `bson:"comment_id,omitempty" json:"comment_id,omitempty"`
	TriggeredByUserID primitive.ObjectID  `bson:"triggered_by_user_id" json:"triggered_by_user_id"`
	CreatedAt         time.Time           `bson:"created_at" json:"created_at"`
}

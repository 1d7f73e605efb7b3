// internal/app/store/notifications/notificationstore.go
package notificationstore

import (
	"context"
	"time"

	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultListLimit caps ListForUser when the caller passes limit <= 0.
const DefaultListLimit = 50

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("notifications")}
}

// Create persists a notification. ID and CreatedAt are assigned here;
// IsRead always starts false.
func (s *Store) Create(ctx context.Context, n models.Notification) (models.Notification, error) {
	n.ID = primitive.NewObjectID()
	n.IsRead = false
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if _, err := s.c.InsertOne(ctx, n); err != nil {
		return models.Notification{}, err
	}
	return n, nil
}

// ListForUser returns a user's notifications in an organization, newest first.
func (s *Store) ListForUser(ctx context.Context, orgID, userID primitive.ObjectID, unreadOnly bool, limit int64) ([]models.Notification, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	filter := bson.M{"organization_id": orgID, "user_id": userID}
	if unreadOnly {
		filter["is_read"] = false
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit)

	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Notification
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CountUnread returns how many unread notifications a user has.
func (s *Store) CountUnread(ctx context.Context, orgID, userID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{
		"organization_id": orgID,
		"user_id":         userID,
		"is_read":         false,
	})
}

// MarkRead flags one notification as read. Returns mongo.ErrNoDocuments when
// the notification does not belong to the user.
func (s *Store) MarkRead(ctx context.Context, orgID, userID, id primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "organization_id": orgID, "user_id": userID},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// MarkAllRead flags every unread notification of a user and returns the count.
func (s *Store) MarkAllRead(ctx context.Context, orgID, userID primitive.ObjectID) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"organization_id": orgID, "user_id": userID, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Delete removes one of the user's notifications.
func (s *Store) Delete(ctx context.Context, orgID, userID, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "organization_id": orgID, "user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// DeleteForTask removes notifications that point at a deleted task.
func (s *Store) DeleteForTask(ctx context.Context, orgID, taskID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"organization_id": orgID, "task_id": taskID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

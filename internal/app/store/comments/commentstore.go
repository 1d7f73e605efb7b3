// internal/app/store/comments/commentstore.go
package commentstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MaxBodyLen bounds a comment body, in bytes.
const MaxBodyLen = 10000

var (
	ErrEmptyBody   = errors.New("comment body is required")
	ErrBodyTooLong = errors.New("comment body is too long")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("comments")}
}

// Create stores a comment. Body is trimmed; sanitizing is the caller's job.
func (s *Store) Create(ctx context.Context, c models.Comment) (models.Comment, error) {
	c.Body = strings.TrimSpace(c.Body)
	if c.Body == "" {
		return models.Comment{}, ErrEmptyBody
	}
	if len(c.Body) > MaxBodyLen {
		return models.Comment{}, ErrBodyTooLong
	}
	c.ID = primitive.NewObjectID()
	c.CreatedAt = time.Now().UTC()
	if _, err := s.c.InsertOne(ctx, c); err != nil {
		return models.Comment{}, err
	}
	return c, nil
}

// ListForTask returns a task's comments, oldest first.
func (s *Store) ListForTask(ctx context.Context, orgID, taskID primitive.ObjectID) ([]models.Comment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"organization_id": orgID, "task_id": taskID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Comment
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteForTask removes every comment on a task and returns how many went.
func (s *Store) DeleteForTask(ctx context.Context, orgID, taskID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"organization_id": orgID, "task_id": taskID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

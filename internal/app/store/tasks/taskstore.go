// internal/app/store/tasks/taskstore.go
package taskstore

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

// Every query is scoped by organization_id; a task ID from another
// organization behaves exactly like a missing task.

var (
	errTitleRequired = errors.New("title is required")
	errBadStatus     = errors.New(`status must be "todo"|"in_progress"|"done"`)
	errBadPriority   = errors.New(`priority must be "low"|"medium"|"high"|"urgent"`)
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("tasks")}
}

// Create inserts a task. The caller supplies Position (see package position).
func (s *Store) Create(ctx context.Context, t models.Task) (models.Task, error) {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return models.Task{}, errTitleRequired
	}
	if t.Status == "" {
		t.Status = models.TaskTodo
	}
	if !models.IsValidTaskStatus(t.Status) {
		return models.Task{}, errBadStatus
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}
	if !models.IsValidPriority(t.Priority) {
		return models.Task{}, errBadPriority
	}

	now := time.Now().UTC()
	t.ID = primitive.NewObjectID()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Status == models.TaskDone && t.CompletedAt == nil {
		t.CompletedAt = &now
	}

	if _, err := s.c.InsertOne(ctx, t); err != nil {
		return models.Task{}, err
	}
	return t, nil
}

// GetByID loads a task in an organization. Returns mongo.ErrNoDocuments if not found.
func (s *Store) GetByID(ctx context.Context, orgID, id primitive.ObjectID) (*models.Task, error) {
	var t models.Task
	if err := s.c.FindOne(ctx, bson.M{"_id": id, "organization_id": orgID}).Decode(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

// List returns an organization's tasks in board order (status, then position).
// An empty status returns every column.
func (s *Store) List(ctx context.Context, orgID primitive.ObjectID, status string) ([]models.Task, error) {
	filter := bson.M{"organization_id": orgID}
	if status != "" {
		filter["status"] = status
	}
	opts := options.Find().SetSort(bson.D{
		{Key: "status", Value: 1},
		{Key: "position", Value: 1},
		{Key: "_id", Value: 1},
	})
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Task
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListColumn returns one column in position order.
func (s *Store) ListColumn(ctx context.Context, orgID primitive.ObjectID, status string) ([]models.Task, error) {
	return s.List(ctx, orgID, status)
}

// EdgePosition returns the first (or last) position in a column, or "" when
// the column is empty.
func (s *Store) EdgePosition(ctx context.Context, orgID primitive.ObjectID, status string, last bool) (string, error) {
	dir := 1
	if last {
		dir = -1
	}
	opts := options.FindOne().
		SetSort(bson.D{{Key: "position", Value: dir}}).
		SetProjection(bson.M{"position": 1})

	var row struct {
		Position string `bson:"position"`
	}
	err := s.c.FindOne(ctx, bson.M{"organization_id": orgID, "status": status}, opts).Decode(&row)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return row.Position, nil
}

// Fields holds the editable, non-ordering attributes of a task.
// Nil pointers are left unchanged.
type Fields struct {
	Title         *string
	Description   *string
	Priority      *string
	DueDate       *time.Time
	ClearDueDate  bool
	AssigneeID    *primitive.ObjectID
	ClearAssignee bool
}

// Update applies Fields and returns the updated task.
func (s *Store) Update(ctx context.Context, orgID, id primitive.ObjectID, f Fields) (*models.Task, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	unset := bson.M{}

	if f.Title != nil {
		title := strings.TrimSpace(*f.Title)
		if title == "" {
			return nil, errTitleRequired
		}
		set["title"] = title
	}
	if f.Description != nil {
		set["description"] = *f.Description
	}
	if f.Priority != nil {
		if !models.IsValidPriority(*f.Priority) {
			return nil, errBadPriority
		}
		set["priority"] = *f.Priority
	}
	switch {
	case f.ClearDueDate:
		unset["due_date"] = ""
	case f.DueDate != nil:
		set["due_date"] = f.DueDate.UTC()
	}
	switch {
	case f.ClearAssignee:
		unset["assignee_id"] = ""
	case f.AssigneeID != nil:
		set["assignee_id"] = *f.AssigneeID
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return s.findAndUpdate(ctx, orgID, id, update)
}

// Move is the ordering part of a task: column, position, and completion time.
type Move struct {
	Status         string
	Position       string
	CompletedAt    *time.Time
	ClearCompleted bool
}

// ApplyMove writes status, position and completion in a single document
// update, so a failure leaves the task as it was.
func (s *Store) ApplyMove(ctx context.Context, orgID, id primitive.ObjectID, m Move) (*models.Task, error) {
	if !models.IsValidTaskStatus(m.Status) {
		return nil, errBadStatus
	}
	set := bson.M{
		"status":     m.Status,
		"position":   m.Position,
		"updated_at": time.Now().UTC(),
	}
	update := bson.M{"$set": set}
	switch {
	case m.ClearCompleted:
		update["$unset"] = bson.M{"completed_at": ""}
	case m.CompletedAt != nil:
		set["completed_at"] = m.CompletedAt.UTC()
	}
	return s.findAndUpdate(ctx, orgID, id, update)
}

// SetPositions rewrites the positions of several tasks at once (column rebalance).
func (s *Store) SetPositions(ctx context.Context, orgID primitive.ObjectID, positions map[primitive.ObjectID]string) error {
	if len(positions) == 0 {
		return nil
	}
	now := time.Now().UTC()
	writes := make([]mongo.WriteModel, 0, len(positions))
	for id, pos := range positions {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": id, "organization_id": orgID}).
			SetUpdate(bson.M{"$set": bson.M{"position": pos, "updated_at": now}}))
	}
	_, err := s.c.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	return err
}

// Delete removes a task. Returns mongo.ErrNoDocuments if nothing was deleted.
func (s *Store) Delete(ctx context.Context, orgID, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "organization_id": orgID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (s *Store) findAndUpdate(ctx context.Context, orgID, id primitive.ObjectID, update bson.M) (*models.Task, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var t models.Task
	err := s.c.FindOneAndUpdate(ctx, bson.M{"_id": id, "organization_id": orgID}, update, opts).Decode(&t)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

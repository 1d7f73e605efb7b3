// Package reorder moves a task to a new place on the board: a new position
// within a column, optionally in a different column.
package reorder

import (
	"context"
	"errors"
	"fmt"
	"time"

	taskstore "github.com/dalemusser/taskhub/internal/app/store/tasks"
	"github.com/dalemusser/taskhub/internal/app/system/position"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	ErrTaskNotFound  = errors.New("task not found")
	ErrConflict      = errors.New("neighbour positions are stale or out of order")
	ErrInvalidStatus = errors.New("invalid status")
)

type TaskStore interface {
	GetByID(ctx context.Context, orgID, id primitive.ObjectID) (*models.Task, error)
	ListColumn(ctx context.Context, orgID primitive.ObjectID, status string) ([]models.Task, error)
	ApplyMove(ctx context.Context, orgID, id primitive.ObjectID, m taskstore.Move) (*models.Task, error)
	SetPositions(ctx context.Context, orgID primitive.ObjectID, positions map[primitive.ObjectID]string) error
}

// Request places TaskID between the tasks holding Before and After in the
// NewStatus column. Empty Before means "at the top"; empty After means "at
// the bottom"; both empty puts the task at the top of the column. Empty
// NewStatus keeps the current column.
type Request struct {
	TaskID    primitive.ObjectID
	OrgID     primitive.ObjectID
	NewStatus string
	Before    string
	After     string
}

// Atomic runs fn as one unit of work; fn must use the context it is given.
type Atomic func(ctx context.Context, fn func(ctx context.Context) error) error

type Coordinator struct {
	tasks  TaskStore
	alloc  *position.Allocator
	log    *zap.Logger
	now    func() time.Time
	atomic Atomic
}

func NewCoordinator(tasks TaskStore, alloc *position.Allocator, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		tasks:  tasks,
		alloc:  alloc,
		log:    logger,
		now:    func() time.Time { return time.Now().UTC() },
		atomic: direct,
	}
}

func direct(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

// WithTransactions makes a rebalance and the move that needed it commit
// together.
func (c *Coordinator) WithTransactions(run Atomic) *Coordinator {
	c.atomic = run
	return c
}

// Reorder computes the task's new position and writes position, status and
// completion time in one update. Entering done stamps CompletedAt; leaving
// done clears it. A failed write leaves the task unchanged; a rebalance
// that ran before it only renumbers the column, keeping its order.
func (c *Coordinator) Reorder(ctx context.Context, req Request) (models.Task, error) {
	task, err := c.tasks.GetByID(ctx, req.OrgID, req.TaskID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Task{}, ErrTaskNotFound
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("load task: %w", err)
	}

	status := req.NewStatus
	if status == "" {
		status = task.Status
	}
	if !models.IsValidTaskStatus(status) {
		return models.Task{}, ErrInvalidStatus
	}
	if req.Before != "" && req.After != "" && req.Before >= req.After {
		return models.Task{}, ErrConflict
	}

	m := taskstore.Move{Status: status}
	switch {
	case status == models.TaskDone && task.Status != models.TaskDone:
		now := c.now()
		m.CompletedAt = &now
	case status != models.TaskDone && task.Status == models.TaskDone:
		m.ClearCompleted = true
	}

	var updated *models.Task
	err = c.atomic(ctx, func(ctx context.Context) error {
		key, err := c.place(ctx, task, status, req.Before, req.After)
		if err != nil {
			return err
		}
		m.Position = key
		updated, err = c.tasks.ApplyMove(ctx, req.OrgID, req.TaskID, m)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrTaskNotFound
		}
		if err != nil {
			return fmt.Errorf("apply move: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}

	c.log.Debug("task reordered",
		zap.String("task_id", req.TaskID.Hex()),
		zap.String("from", task.Status),
		zap.String("to", status),
		zap.String("position", m.Position))
	return *updated, nil
}

// place allocates a key, rebalancing the column once if the gap is gone.
func (c *Coordinator) place(ctx context.Context, task *models.Task, status, before, after string) (string, error) {
	if before == "" && after == "" {
		return c.top(ctx, task, status)
	}

	key, err := c.alloc.AllocateChecked(before, after)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, position.ErrExhausted) {
		return "", err
	}

	c.log.Info("position gap exhausted; rebalancing column",
		zap.String("org_id", task.OrganizationID.Hex()),
		zap.String("status", status))

	before, after, err = c.rebalance(ctx, task, status, before, after)
	if err != nil {
		return "", err
	}
	key, err = c.alloc.AllocateChecked(before, after)
	if err != nil {
		return "", fmt.Errorf("allocate after rebalance: %w", err)
	}
	return key, nil
}

// top returns a key ahead of every other task in the column.
func (c *Coordinator) top(ctx context.Context, task *models.Task, status string) (string, error) {
	col, err := c.column(ctx, task, status)
	if err != nil {
		return "", err
	}
	if len(col) == 0 {
		return position.Initial(), nil
	}
	first := col[0].Position
	if key, err := c.alloc.AllocateChecked("", first); err == nil {
		return key, nil
	}
	_, after, err := c.rebalance(ctx, task, status, "", first)
	if err != nil {
		return "", err
	}
	return c.alloc.AllocateChecked("", after)
}

// column lists status's tasks in order, without the task being moved.
func (c *Coordinator) column(ctx context.Context, task *models.Task, status string) ([]models.Task, error) {
	all, err := c.tasks.ListColumn(ctx, task.OrganizationID, status)
	if err != nil {
		return nil, fmt.Errorf("list column: %w", err)
	}
	out := make([]models.Task, 0, len(all))
	for _, t := range all {
		if t.ID != task.ID {
			out = append(out, t)
		}
	}
	return out, nil
}

// rebalance respaces the column with position.Spread and maps the old
// neighbour keys onto their new values. A neighbour key that no task in the
// column holds means the caller's view is stale.
//
// A task moving within its own column is renumbered with the rest, so no
// fresh key can equal the one it still holds if the move is never applied.
func (c *Coordinator) rebalance(ctx context.Context, task *models.Task, status, before, after string) (string, string, error) {
	col, err := c.tasks.ListColumn(ctx, task.OrganizationID, status)
	if err != nil {
		return "", "", fmt.Errorf("list column: %w", err)
	}
	keys := position.Spread(len(col))

	beforeIdx, afterIdx := -1, -1
	updates := make(map[primitive.ObjectID]string, len(col))
	for i, t := range col {
		if before != "" && t.Position == before {
			beforeIdx = i
		}
		if after != "" && t.Position == after && afterIdx < 0 {
			afterIdx = i
		}
		updates[t.ID] = keys[i]
	}
	if (before != "" && beforeIdx < 0) || (after != "" && afterIdx < 0) {
		return "", "", ErrConflict
	}
	if beforeIdx >= 0 && afterIdx >= 0 && beforeIdx >= afterIdx {
		return "", "", ErrConflict
	}

	if err := c.tasks.SetPositions(ctx, task.OrganizationID, updates); err != nil {
		return "", "", fmt.Errorf("rebalance column: %w", err)
	}

	newBefore, newAfter := "", ""
	if beforeIdx >= 0 {
		newBefore = keys[beforeIdx]
	}
	if afterIdx >= 0 {
		newAfter = keys[afterIdx]
	}
	return newBefore, newAfter, nil
}

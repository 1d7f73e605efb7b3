package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Calling it again on the same request adds to the existing parameters.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures inserts test data directly, bypassing store validation.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

func (f *Fixtures) CreateOrganization(ctx context.Context, name string) models.Organization {
	f.t.Helper()

	now := time.Now().UTC()
	org := models.Organization{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		Status:    models.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("organizations").InsertOne(ctx, org); err != nil {
		f.t.Fatalf("failed to create test organization: %v", err)
	}
	return org
}

// CreateUser creates an active user. password may be empty.
func (f *Fixtures) CreateUser(ctx context.Context, fullName, email, role string, orgID *primitive.ObjectID, password string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:             primitive.NewObjectID(),
		FullName:       fullName,
		FullNameCI:     text.Fold(fullName),
		Email:          email,
		Role:           role,
		Status:         models.StatusActive,
		OrganizationID: orgID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if password != "" {
		// MinCost keeps the suite fast.
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		if err != nil {
			f.t.Fatalf("hash password: %v", err)
		}
		user.PasswordHash = string(hash)
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func (f *Fixtures) CreateAdmin(ctx context.Context, fullName, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, email, models.RoleAdmin, nil, "")
}

func (f *Fixtures) CreateManager(ctx context.Context, fullName, email string, orgID primitive.ObjectID) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, email, models.RoleManager, &orgID, "")
}

func (f *Fixtures) CreateEmployee(ctx context.Context, fullName, email string, orgID primitive.ObjectID) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, email, models.RoleEmployee, &orgID, "")
}

// CreateDisabledUser creates an employee whose status is disabled.
func (f *Fixtures) CreateDisabledUser(ctx context.Context, fullName, email string, orgID primitive.ObjectID) models.User {
	f.t.Helper()
	u := f.CreateEmployee(ctx, fullName, email, orgID)
	if _, err := f.db.Collection("users").UpdateByID(ctx, u.ID, bson.M{
		"$set": bson.M{"status": models.StatusDisabled},
	}); err != nil {
		f.t.Fatalf("failed to disable test user: %v", err)
	}
	u.Status = models.StatusDisabled
	return u
}

// CreateTask inserts a task at the given position.
func (f *Fixtures) CreateTask(ctx context.Context, orgID, creatorID primitive.ObjectID, title, status, position string) models.Task {
	f.t.Helper()

	now := time.Now().UTC()
	task := models.Task{
		ID:             primitive.NewObjectID(),
		OrganizationID: orgID,
		Title:          title,
		Status:         status,
		Priority:       models.PriorityMedium,
		CreatedByID:    creatorID,
		Position:       position,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if status == models.TaskDone {
		task.CompletedAt = &now
	}
	if _, err := f.db.Collection("tasks").InsertOne(ctx, task); err != nil {
		f.t.Fatalf("failed to create test task: %v", err)
	}
	return task
}

func (f *Fixtures) CreateComment(ctx context.Context, task models.Task, authorID primitive.ObjectID, body string) models.Comment {
	f.t.Helper()

	c := models.Comment{
		ID:             primitive.NewObjectID(),
		OrganizationID: task.OrganizationID,
		TaskID:         task.ID,
		AuthorID:       authorID,
		Body:           body,
		CreatedAt:      time.Now().UTC(),
	}
	if _, err := f.db.Collection("comments").InsertOne(ctx, c); err != nil {
		f.t.Fatalf("failed to create test comment: %v", err)
	}
	return c
}

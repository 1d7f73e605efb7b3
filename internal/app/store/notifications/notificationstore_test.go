package notificationstore_test

import (
	"errors"
	"testing"
	"time"

	notificationstore "github.com/dalemusser/taskhub/internal/app/store/notifications"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"github.com/dalemusser/taskhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func seed(t *testing.T, store *notificationstore.Store, org, user primitive.ObjectID, title string, at time.Time) models.Notification {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	n, err := store.Create(ctx, models.Notification{
		UserID:         user,
		OrganizationID: org,
		Type:           models.NotificationTaskComment,
		Title:          title,
		Message:        title,
		IsRead:         true, // Create must reset this
		CreatedAt:      at,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return n
}

func TestStore_CreateStartsUnread(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := notificationstore.New(db)

	n := seed(t, store, primitive.NewObjectID(), primitive.NewObjectID(), "hi", time.Time{})
	if n.IsRead {
		t.Error("new notification must be unread")
	}
	if n.CreatedAt.IsZero() || n.ID == primitive.NilObjectID {
		t.Error("expected ID and CreatedAt")
	}
}

func TestStore_ListForUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := notificationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := primitive.NewObjectID()
	user := primitive.NewObjectID()
	base := time.Now().UTC().Truncate(time.Millisecond)
	old := seed(t, store, org, user, "old", base.Add(-2*time.Minute))
	seed(t, store, org, user, "new", base)
	seed(t, store, org, primitive.NewObjectID(), "someone else", base)
	seed(t, store, primitive.NewObjectID(), user, "other org", base)

	list, err := store.ListForUser(ctx, org, user, false, 0)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(list) != 2 || list[0].Title != "new" || list[1].Title != "old" {
		t.Fatalf("unexpected list: %+v", list)
	}

	if err := store.MarkRead(ctx, org, user, old.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	unread, _ := store.ListForUser(ctx, org, user, true, 0)
	if len(unread) != 1 || unread[0].Title != "new" {
		t.Errorf("unread only: %+v", unread)
	}

	limited, _ := store.ListForUser(ctx, org, user, false, 1)
	if len(limited) != 1 {
		t.Errorf("limit: got %d", len(limited))
	}
}

func TestStore_ReadState(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := notificationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := primitive.NewObjectID()
	user := primitive.NewObjectID()
	a := seed(t, store, org, user, "a", time.Time{})
	seed(t, store, org, user, "b", time.Time{})
	seed(t, store, org, user, "c", time.Time{})

	if n, _ := store.CountUnread(ctx, org, user); n != 3 {
		t.Fatalf("CountUnread = %d, want 3", n)
	}

	// Another user cannot mark it.
	if err := store.MarkRead(ctx, org, primitive.NewObjectID(), a.ID); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("foreign MarkRead: got %v", err)
	}
	if err := store.MarkRead(ctx, org, user, a.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if n, _ := store.CountUnread(ctx, org, user); n != 2 {
		t.Errorf("CountUnread after MarkRead = %d, want 2", n)
	}

	n, err := store.MarkAllRead(ctx, org, user)
	if err != nil || n != 2 {
		t.Fatalf("MarkAllRead: n=%d err=%v", n, err)
	}
	if n, _ := store.CountUnread(ctx, org, user); n != 0 {
		t.Errorf("CountUnread after MarkAllRead = %d", n)
	}
}

func TestStore_Delete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := notificationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := primitive.NewObjectID()
	user := primitive.NewObjectID()
	n := seed(t, store, org, user, "x", time.Time{})

	if err := store.Delete(ctx, org, primitive.NewObjectID(), n.ID); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("foreign delete: got %v", err)
	}
	if err := store.Delete(ctx, org, user, n.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	task := primitive.NewObjectID()
	for i := 0; i < 2; i++ {
		if _, err := store.Create(ctx, models.Notification{OrganizationID: org, UserID: user, TaskID: &task, Type: models.NotificationTaskAssigned}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if got, err := store.DeleteForTask(ctx, org, task); err != nil || got != 2 {
		t.Errorf("DeleteForTask: n=%d err=%v", got, err)
	}
}

package indexes_test

import (
	"context"
	"testing"

	"github.com/dalemusser/taskhub/internal/app/system/indexes"
	"github.com/dalemusser/taskhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func indexNames(t *testing.T, ctx context.Context, c *mongo.Collection) map[string]bson.M {
	t.Helper()
	cur, err := c.Indexes().List(ctx)
	if err != nil {
		t.Fatalf("List indexes failed: %v", err)
	}
	defer cur.Close(ctx)

	out := make(map[string]bson.M)
	for cur.Next(ctx) {
		var idx bson.M
		if err := cur.Decode(&idx); err != nil {
			continue
		}
		if name, ok := idx["name"].(string); ok {
			out[name] = idx
		}
	}
	return out
}

func TestEnsureAll_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("first EnsureAll failed: %v", err)
	}
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("second EnsureAll failed: %v", err)
	}
}

func TestEnsureAll_CreatesIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	want := map[string][]string{
		"users":         {"uniq_users_email", "idx_users_org_status_fullnameci_id"},
		"organizations": {"uniq_orgs_nameci"},
		"tasks":         {"idx_tasks_org_status_position_id", "idx_tasks_org_assignee"},
		"comments":      {"idx_comments_org_task_created"},
		"notifications": {"idx_notifications_org_user_read_created", "idx_notifications_task"},
	}
	for coll, names := range want {
		have := indexNames(t, ctx, db.Collection(coll))
		for _, name := range names {
			if _, ok := have[name]; !ok {
				t.Errorf("expected index %q on %s", name, coll)
			}
		}
	}
}

func TestEnsureAll_TaskPositionIndexNotUnique(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}

	idx := indexNames(t, ctx, db.Collection("tasks"))["idx_tasks_org_status_position_id"]
	if u, _ := idx["unique"].(bool); u {
		t.Fatal("position index must not be unique")
	}

	// Two tasks with the same key in one column must both insert.
	org := primitive.NewObjectID()
	for i := 0; i < 2; i++ {
		if _, err := db.Collection("tasks").InsertOne(ctx, bson.M{
			"organization_id": org, "status": "todo", "position": "a0000001000",
		}); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
}

func TestEnsureAll_RenamesMisnamedIndex(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	c := db.Collection("organizations")
	if _, err := c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name_ci", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("legacy_name"),
	}); err != nil {
		t.Fatalf("create legacy index: %v", err)
	}

	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	have := indexNames(t, ctx, c)
	if _, ok := have["legacy_name"]; ok {
		t.Error("legacy index should have been replaced")
	}
	if _, ok := have["uniq_orgs_nameci"]; !ok {
		t.Error("uniq_orgs_nameci missing")
	}
}

func TestEnsureAll_UniqueUpgradeReportsDuplicates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	c := db.Collection("users")
	if _, err := c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetName("uniq_users_email"),
	}); err != nil {
		t.Fatalf("create non-unique index: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := c.InsertOne(ctx, bson.M{"email": "dup@example.com"}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	if err := indexes.EnsureAll(ctx, db); err == nil {
		t.Fatal("expected an error for duplicate emails")
	}
}

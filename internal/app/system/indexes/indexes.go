// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
Errors are aggregated so every problem shows up in one log line and
startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	sets := []struct {
		name string
		fn   func(context.Context, *mongo.Database) error
	}{
		{"users", ensureUsers},
		{"organizations", ensureOrganizations},
		{"tasks", ensureTasks},
		{"comments", ensureComments},
		{"notifications", ensureNotifications},
	}
	for _, s := range sets {
		if err := s.fn(ctx, db); err != nil {
			problems = append(problems, s.name+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func sameBoolPtr(a, b *bool) bool {
	return boolVal(a) == boolVal(b)
}

func boolVal(p *bool) bool {
	return p != nil && *p
}

// Best-effort duplicate detector (works across Mongo and DocumentDB).
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

// IndexOptionsConflict is returned when an index with the same keys already
// exists under a different name or with different options.
func isOptionsConflictErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "IndexOptionsConflict")
}

// listIndexes returns the collection's indexes keyed by key signature.
func listIndexes(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	out := map[string]existingIndex{}
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return out
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		out[keySig(idx.Key)] = idx
	}
	return out
}

// desired describes one index we want, pulled out of its IndexModel.
type desired struct {
	model  mongo.IndexModel
	name   string
	unique *bool
	sig    string
}

func describe(m mongo.IndexModel) desired {
	d := desired{model: m, sig: keySig(m.Keys.(bson.D))}
	if m.Options != nil {
		if m.Options.Name != nil {
			d.name = *m.Options.Name
		}
		d.unique = m.Options.Unique
	}
	return d
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string
	for _, m := range models {
		if err := reconcile(ctx, coll, describe(m)); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// reconcile makes one desired index exist with the desired name and
// uniqueness, dropping and recreating a same-keyed index when they differ.
func reconcile(ctx context.Context, coll *mongo.Collection, d desired) error {
	start := time.Now()
	log := zap.L().With(
		zap.String("collection", coll.Name()),
		zap.String("name", d.name),
		zap.String("keys", d.sig),
		zap.Bool("unique", boolVal(d.unique)))
	log.Info("ensuring index")

	if ex, ok := listIndexes(ctx, coll)[d.sig]; ok {
		if sameBoolPtr(d.unique, ex.Unique) && (d.name == "" || ex.Name == d.name) {
			log.Info("reusing existing index",
				zap.String("existing", ex.Name),
				zap.String("took", time.Since(start).String()))
			return nil
		}
		if err := recreate(ctx, coll, d, ex.Name); err != nil {
			log.Warn("index recreate failed", zap.String("existing", ex.Name), zap.Error(err))
			return err
		}
		log.Info("index dropped and recreated",
			zap.String("from", ex.Name),
			zap.String("took", time.Since(start).String()))
		return nil
	}

	created, err := coll.Indexes().CreateOne(ctx, d.model)
	if err == nil {
		log.Info("index ensured",
			zap.String("created_name", created),
			zap.String("took", time.Since(start).String()))
		return nil
	}

	// Another process may have created a conflicting index between our List
	// and CreateOne. Look again and reconcile against what is there now.
	if isOptionsConflictErr(err) {
		if ex, ok := listIndexes(ctx, coll)[d.sig]; ok {
			if sameBoolPtr(d.unique, ex.Unique) {
				log.Info("reusing existing index (post-conflict)",
					zap.String("existing", ex.Name),
					zap.String("took", time.Since(start).String()))
				return nil
			}
			if rerr := recreate(ctx, coll, d, ex.Name); rerr != nil {
				log.Warn("index recreate failed (post-conflict)", zap.Error(rerr))
				return rerr
			}
			log.Info("index dropped and recreated (post-conflict)",
				zap.String("took", time.Since(start).String()))
			return nil
		}
	}

	log.Warn("index ensure failed",
		zap.String("took", time.Since(start).String()),
		zap.Error(err))
	return fmt.Errorf("%s(%s): %v", coll.Name(), d.name, err)
}

func recreate(ctx context.Context, coll *mongo.Collection, d desired, existing string) error {
	if _, err := coll.Indexes().DropOne(ctx, existing); err != nil {
		return fmt.Errorf("%s(%s): drop failed: %v", coll.Name(), d.name, err)
	}
	if _, err := coll.Indexes().CreateOne(ctx, d.model); err != nil {
		if isDuplicateKeyErr(err) && boolVal(d.unique) {
			return fmt.Errorf("%s(%s): cannot create unique index (duplicates present)%s",
				coll.Name(), d.name, duplicateHint(coll.Name(), d.sig))
		}
		return fmt.Errorf("%s(%s): %v", coll.Name(), d.name, err)
	}
	return nil
}

func duplicateHint(coll, sig string) string {
	switch {
	case coll == "users" && strings.Contains(sig, "email:1"):
		return ". Example finder: " +
			`db.users.aggregate([{ $group: { _id: "$email", n: { $sum: 1 } } }, { $match: { n: { $gt: 1 } } }])`
	case coll == "organizations" && strings.Contains(sig, "name_ci:1"):
		return ". Example finder: " +
			`db.organizations.aggregate([{ $group: { _id: "$name_ci", n: { $sum: 1 } } }, { $match: { n: { $gt: 1 } } }])`
	}
	return ""
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("users")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Login is by email, globally unique.
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_email"),
		},
		// Member lists and mention resolution: org, active only, by name.
		{
			Keys: bson.D{
				{Key: "organization_id", Value: 1},
				{Key: "status", Value: 1},
				{Key: "full_name_ci", Value: 1},
				{Key: "_id", Value: 1},
			},
			Options: options.Index().SetName("idx_users_org_status_fullnameci_id"),
		},
	})
}

func ensureOrganizations(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("organizations")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Organization names are unique (case/diacritics folded).
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_orgs_nameci"),
		},
	})
}

func ensureTasks(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("tasks")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Board columns, read in position order. Not unique: a concurrent
		// reorder may briefly produce equal keys, ordered by _id.
		{
			Keys: bson.D{
				{Key: "organization_id", Value: 1},
				{Key: "status", Value: 1},
				{Key: "position", Value: 1},
				{Key: "_id", Value: 1},
			},
			Options: options.Index().SetName("idx_tasks_org_status_position_id"),
		},
		// "My tasks"
		{
			Keys: bson.D{
				{Key: "organization_id", Value: 1},
				{Key: "assignee_id", Value: 1},
			},
			Options: options.Index().SetName("idx_tasks_org_assignee"),
		},
	})
}

func ensureComments(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("comments")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "organization_id", Value: 1},
				{Key: "task_id", Value: 1},
				{Key: "created_at", Value: 1},
			},
			Options: options.Index().SetName("idx_comments_org_task_created"),
		},
	})
}

func ensureNotifications(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("notifications")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Inbox: newest first, optionally unread only. Also serves CountUnread.
		{
			Keys: bson.D{
				{Key: "organization_id", Value: 1},
				{Key: "user_id", Value: 1},
				{Key: "is_read", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_notifications_org_user_read_created"),
		},
		// Cleanup when a task is deleted.
		{
			Keys:    bson.D{{Key: "task_id", Value: 1}},
			Options: options.Index().SetName("idx_notifications_task"),
		},
	})
}

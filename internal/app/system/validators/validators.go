// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/taskhub/internal/domain/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	ensure("users", usersSchema())
	ensure("organizations", orgsSchema())
	ensure("tasks", tasksSchema())
	ensure("comments", commentsSchema())
	ensure("notifications", notificationsSchema())

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

// collectionExists returns true when <name> already exists.
// Uses ListCollectionNames to avoid "created collection" log when it didn't.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Info("collection exists", zap.String("collection", name))
		return false, nil
	}
	// If listing failed, fall back to create-and-handle-race.
	if err := db.CreateCollection(ctx, name); err != nil {
		// NamespaceExists / already exists is fine (race or prior run).
		if isNamespaceExistsErr(err) {
			zap.L().Info("collection exists", zap.String("collection", name))
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 115 ||
		strings.Contains(strings.ToLower(ce.Message), "not implemented") ||
		strings.Contains(strings.ToLower(ce.Message), "not supported")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

// nonBlank matches a string with at least one non-space character.
var nonBlank = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}

func enumOf(values []string) bson.A {
	out := make(bson.A, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"full_name", "email", "role", "status"},
			"properties": bson.M{
				"full_name":       nonBlank,
				"full_name_ci":    bson.M{"bsonType": "string"},
				"email":           nonBlank,
				"password_hash":   bson.M{"bsonType": "string"},
				"role":            bson.M{"enum": enumOf(models.AllRoles)},
				"status":          bson.M{"enum": bson.A{models.StatusActive, models.StatusDisabled}},
				"organization_id": bson.M{"bsonType": "objectId"},
			},
		},
	}
}

func orgsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "name_ci", "status"},
			"properties": bson.M{
				"name":    nonBlank,
				"name_ci": nonBlank,
				"status":  bson.M{"enum": bson.A{models.StatusActive, models.StatusDisabled}},
			},
		},
	}
}

func tasksSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"organization_id", "title", "status", "priority", "position", "created_by_id"},
			"properties": bson.M{
				"organization_id": bson.M{"bsonType": "objectId"},
				"title":           nonBlank,
				"description":     bson.M{"bsonType": "string"},
				"status":          bson.M{"enum": enumOf(models.TaskStatuses)},
				"priority": bson.M{"enum": bson.A{
					models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityUrgent,
				}},
				// Tag plus ten digits; see the position package.
				"position":      bson.M{"bsonType": "string", "pattern": "^a[0-9]{10}$"},
				"assignee_id":   bson.M{"bsonType": "objectId"},
				"created_by_id": bson.M{"bsonType": "objectId"},
				"due_date":      bson.M{"bsonType": "date"},
				"completed_at":  bson.M{"bsonType": "date"},
			},
		},
	}
}

func commentsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"organization_id", "task_id", "author_id", "body", "created_at"},
			"properties": bson.M{
				"organization_id": bson.M{"bsonType": "objectId"},
				"task_id":         bson.M{"bsonType": "objectId"},
				"author_id":       bson.M{"bsonType": "objectId"},
				"body":            nonBlank,
				"created_at":      bson.M{"bsonType": "date"},
			},
		},
	}
}

func notificationsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"user_id", "organization_id", "type", "is_read", "created_at"},
			"properties": bson.M{
				"user_id":         bson.M{"bsonType": "objectId"},
				"organization_id": bson.M{"bsonType": "objectId"},
				"type": bson.M{"enum": bson.A{
					models.NotificationTaskAssigned,
					models.NotificationTaskStatusChanged,
					models.NotificationTaskComment,
					models.NotificationMention,
				}},
				"title":                bson.M{"bsonType": "string"},
				"message":              bson.M{"bsonType": "string"},
				"is_read":              bson.M{"bsonType": "bool"},
				"task_id":              bson.M{"bsonType": "objectId"},
				"comment_id":           bson.M{"bsonType": "objectId"},
				"triggered_by_user_id": bson.M{"bsonType": "objectId"},
				"created_at":           bson.M{"bsonType": "date"},
			},
		},
	}
}

// internal/app/system/authz/authz.go
package authz

import (
	"net/http"
	"strings"

	"github.com/dalemusser/taskhub/internal/app/system/auth"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserCtx returns the user's role (lowercased), name, ObjectID, and a found flag.
// A missing user or a malformed ID yields "visitor", "", NilObjectID, false,
// so ok=true always means a signed-in user with a valid ObjectID.
func UserCtx(r *http.Request) (role string, name string, userID primitive.ObjectID, ok bool) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return "visitor", "", primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		// Corrupt session; fail closed.
		return "visitor", "", primitive.NilObjectID, false
	}
	return strings.ToLower(user.Role), user.Name, userID, true
}

// UserOrgID returns the current user's organization, or NilObjectID.
func UserOrgID(r *http.Request) primitive.ObjectID {
	user, ok := auth.CurrentUser(r)
	if !ok || user.OrganizationID == "" {
		return primitive.NilObjectID
	}
	oid, err := primitive.ObjectIDFromHex(user.OrganizationID)
	if err != nil {
		return primitive.NilObjectID
	}
	return oid
}

// IsAdmin reports whether the current user is an admin.
func IsAdmin(r *http.Request) bool {
	return HasRole(r, models.RoleAdmin)
}

// CanManageTasks reports whether the current user may delete tasks and
// reassign work they did not create.
func CanManageTasks(r *http.Request) bool {
	return HasAnyRole(r, models.RoleAdmin, models.RoleManager)
}

// internal/domain/models/roles.go
package models

import "strings"

// Roles
const (
	RoleAdmin    = "admin"
	RoleManager  = "manager"
	RoleEmployee = "employee"
)

// Statuses shared by users and organizations.
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// AllRoles lists every assignable role.
var AllRoles = []string{RoleAdmin, RoleManager, RoleEmployee}

// IsValidRole checks whether the given value is a known role.
func IsValidRole(role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents admins, managers, and employees.
//
// NOTE:
//   - OrganizationID is required for managers and employees. Admins may exist
//     without one, but real-time features are unavailable to them until assigned.
type User struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	FullName       string              `bson:"full_name" json:"full_name"`
	FullNameCI     string              `bson:"full_name_ci" json:"-"` // lowercase, diacritics-stripped
	Email          string              `bson:"email" json:"email"`
	PasswordHash   string              `bson:"password_hash,omitempty" json:"-"`
	Role           string              `bson:"role" json:"role"` // admin | manager | employee
	Status         string              `bson:"status,omitempty" json:"status,omitempty"`
	OrganizationID *primitive.ObjectID `bson:"organization_id,omitempty" json:"organization_id,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// EmailLocalPart returns the portion of the email before the "@".
func (u User) EmailLocalPart() string {
	for i := 0; i < len(u.Email); i++ {
		if u.Email[i] == '@' {
			return u.Email[:i]
		}
	}
	return u.Email
}

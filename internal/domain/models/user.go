// internal/domain/models/user.go
package models

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - LoginID / loginID / login_id: The human-readable string users type to log in

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is an operator of the admin console.
//
// Capabilities are not stored per user; they derive from Role
// (see authz.CapabilitiesFor).
type User struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName string             `bson:"full_name" json:"full_name"`

	LoginID      string  `bson:"login_id" json:"login_id"`                 // lowercase
	PasswordHash *string `bson:"password_hash,omitempty" json:"-"`          // bcrypt hash (never in JSON)
	Role         string  `bson:"role" json:"role"`                         // admin, shop_manager, viewer
	Status       string  `bson:"status,omitempty" json:"status,omitempty"` // active, disabled

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// User roles
const (
	RoleAdmin       = "admin"
	RoleShopManager = "shop_manager"
	RoleViewer      = "viewer"
)

// User statuses
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// AllRoles returns all valid user roles.
func AllRoles() []string {
	return []string{
		RoleAdmin,
		RoleShopManager,
		RoleViewer,
	}
}

// IsValidRole checks if a role is valid.
func IsValidRole(role string) bool {
	for _, r := range AllRoles() {
		if r == role {
			return true
		}
	}
	return false
}

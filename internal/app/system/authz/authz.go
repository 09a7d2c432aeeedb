// internal/app/system/authz/authz.go
package authz

import (
	"net/http"
	"strings"

	"github.com/dalemusser/pilitosync/internal/app/system/auth"
	"github.com/dalemusser/pilitosync/internal/app/system/normalize"
	"github.com/dalemusser/pilitosync/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Capabilities checked by admin screens and actions.
const (
	CapManageOptions = "manage_options"
	CapManageShop    = models.CapabilityManageShop
)

var roleCapabilities = map[string][]string{
	models.RoleAdmin:       {CapManageOptions, CapManageShop},
	models.RoleShopManager: {CapManageShop},
	models.RoleViewer:      nil,
}

// CapabilitiesFor returns the capabilities granted to role.
func CapabilitiesFor(role string) []string {
	caps := roleCapabilities[normalize.Role(role)]
	out := make([]string, len(caps))
	copy(out, caps)
	return out
}

// RoleHas reports whether role grants capability.
func RoleHas(role, capability string) bool {
	want := normalize.Capability(capability)
	for _, c := range roleCapabilities[normalize.Role(role)] {
		if c == want {
			return true
		}
	}
	return false
}

// UserCtx returns the user's role (lowercased), name, ObjectID and a found flag.
// A missing user or malformed ID yields "visitor", "", NilObjectID, false.
func UserCtx(r *http.Request) (role string, name string, userID primitive.ObjectID, ok bool) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return "visitor", "", primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		return "visitor", "", primitive.NilObjectID, false
	}
	return strings.ToLower(user.Role), user.Name, userID, true
}

// IsAdmin reports whether the current user is an admin.
func IsAdmin(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && role == models.RoleAdmin
}

// IsLoggedIn reports whether there is a user in the request context.
func IsLoggedIn(r *http.Request) bool {
	_, ok := auth.CurrentUser(r)
	return ok
}

// HasCapability reports whether the current user's role grants capability.
func HasCapability(r *http.Request, capability string) bool {
	role, _, _, ok := UserCtx(r)
	return ok && RoleHas(role, capability)
}

// RequireCapability is middleware that answers 403 unless the current user
// holds capability.
func RequireCapability(capability string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !HasCapability(r, capability) {
				auth.Forbidden(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

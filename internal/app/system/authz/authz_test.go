package authz

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/pilitosync/internal/app/system/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func withTestUser(id, name, role string) *http.Request {
	req := httptest.NewRequest("GET", "/", nil)
	return auth.WithTestUser(req, &auth.SessionUser{ID: id, Name: name, Role: role})
}

func TestUserCtx(t *testing.T) {
	validID := primitive.NewObjectID().Hex()

	tests := []struct {
		name     string
		id       string
		role     string
		wantRole string
		wantOK   bool
	}{
		{"admin", validID, "admin", "admin", true},
		{"uppercase role normalized", validID, "SHOP_MANAGER", "shop_manager", true},
		{"malformed id", "not-an-id", "admin", "visitor", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			role, _, id, ok := UserCtx(withTestUser(tt.id, "User", tt.role))
			if role != tt.wantRole || ok != tt.wantOK {
				t.Errorf("UserCtx() = %q/%v, want %q/%v", role, ok, tt.wantRole, tt.wantOK)
			}
			if !ok && !id.IsZero() {
				t.Error("UserCtx() should return NilObjectID when not ok")
			}
		})
	}

	role, _, _, ok := UserCtx(httptest.NewRequest("GET", "/", nil))
	if ok || role != "visitor" {
		t.Errorf("UserCtx(no user) = %q/%v", role, ok)
	}
}

func TestRoleHas(t *testing.T) {
	tests := []struct {
		role, capability string
		want             bool
	}{
		{"admin", CapManageOptions, true},
		{"admin", CapManageShop, true},
		{"shop_manager", CapManageShop, true},
		{"shop_manager", CapManageOptions, false},
		{"viewer", CapManageShop, false},
		{"unknown", CapManageShop, false},
		{" Admin ", "MANAGE_WOOCOMMERCE", true},
	}
	for _, tt := range tests {
		if got := RoleHas(tt.role, tt.capability); got != tt.want {
			t.Errorf("RoleHas(%q, %q) = %v, want %v", tt.role, tt.capability, got, tt.want)
		}
	}
}

func TestCapabilitiesFor_ReturnsCopy(t *testing.T) {
	caps := CapabilitiesFor("admin")
	if len(caps) != 2 {
		t.Fatalf("CapabilitiesFor(admin) = %v", caps)
	}
	caps[0] = "mutated"
	if !RoleHas("admin", CapManageOptions) {
		t.Error("mutating the returned slice changed the role map")
	}
}

func TestHasCapability(t *testing.T) {
	id := primitive.NewObjectID().Hex()
	if !HasCapability(withTestUser(id, "M", "shop_manager"), CapManageShop) {
		t.Error("shop manager should have manage_woocommerce")
	}
	if HasCapability(withTestUser(id, "V", "viewer"), CapManageShop) {
		t.Error("viewer should not have manage_woocommerce")
	}
	if HasCapability(httptest.NewRequest("GET", "/", nil), CapManageShop) {
		t.Error("anonymous request should have no capabilities")
	}
}

func TestRequireCapability(t *testing.T) {
	id := primitive.NewObjectID().Hex()
	h := RequireCapability(CapManageOptions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, withTestUser(id, "A", "admin"))
	if rec.Code != http.StatusTeapot {
		t.Errorf("admin status = %d, want %d", rec.Code, http.StatusTeapot)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, withTestUser(id, "M", "shop_manager"))
	if rec.Code != http.StatusForbidden {
		t.Errorf("shop manager status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestIsAdmin_IsLoggedIn(t *testing.T) {
	id := primitive.NewObjectID().Hex()
	if !IsAdmin(withTestUser(id, "A", "admin")) || IsAdmin(withTestUser(id, "M", "shop_manager")) {
		t.Error("IsAdmin() mismatch")
	}
	if IsLoggedIn(httptest.NewRequest("GET", "/", nil)) {
		t.Error("IsLoggedIn() should be false without user")
	}
}

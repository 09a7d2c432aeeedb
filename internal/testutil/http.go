package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	"github.com/dalemusser/pilitosync/internal/app/system/auth"
	"github.com/dalemusser/pilitosync/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TestUser represents user data for testing HTTP handlers.
type TestUser struct {
	ID      string
	Name    string
	LoginID string
	Role    string
	Token   string // session token; nonces are bound to it
}

// AdminUser returns a TestUser with the admin role.
func AdminUser() TestUser {
	return newTestUser("Test Admin", "admin@test.com", models.RoleAdmin)
}

// ShopManagerUser returns a TestUser with the shop_manager role.
func ShopManagerUser() TestUser {
	return newTestUser("Test Shop Manager", "manager@test.com", models.RoleShopManager)
}

// ViewerUser returns a TestUser without any capability.
func ViewerUser() TestUser {
	return newTestUser("Test Viewer", "viewer@test.com", models.RoleViewer)
}

func newTestUser(name, loginID, role string) TestUser {
	return TestUser{
		ID:      primitive.NewObjectID().Hex(),
		Name:    name,
		LoginID: loginID,
		Role:    role,
		Token:   "tok-" + primitive.NewObjectID().Hex(),
	}
}

// SessionUser converts the test user into the value the session middleware
// would place in the request context.
func (u TestUser) SessionUser() *auth.SessionUser {
	return &auth.SessionUser{
		ID:      u.ID,
		Name:    u.Name,
		LoginID: u.LoginID,
		Role:    u.Role,
		Token:   u.Token,
	}
}

// WithUser adds a user to the request context for testing authenticated handlers.
// This bypasses the session middleware and injects the user directly.
func WithUser(r *http.Request, user TestUser) *http.Request {
	return auth.WithTestUser(r, user.SessionUser())
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

// NewAuthenticatedRequest creates an HTTP request with a user in context.
func NewAuthenticatedRequest(method, target string, user TestUser) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	return WithUser(req, user)
}

// NewFormRequest creates a form-encoded POST request.
func NewFormRequest(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// ResponseRecorder wraps httptest.ResponseRecorder with helper methods.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

// NewRecorder creates a new ResponseRecorder.
func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{httptest.NewRecorder()}
}

// AssertStatus checks the response status code.
func (r *ResponseRecorder) AssertStatus(t interface{ Errorf(string, ...any) }, expected int) {
	if r.Code != expected {
		t.Errorf("status code: got %d, want %d", r.Code, expected)
	}
}

// AssertRedirect checks for a redirect to the expected location.
func (r *ResponseRecorder) AssertRedirect(t interface{ Errorf(string, ...any) }, expectedLocation string) {
	if r.Code != http.StatusSeeOther && r.Code != http.StatusFound && r.Code != http.StatusMovedPermanently {
		t.Errorf("expected redirect status, got %d", r.Code)
	}
	location := r.Header().Get("Location")
	if location != expectedLocation {
		t.Errorf("redirect location: got %q, want %q", location, expectedLocation)
	}
}

// AssertContains checks if the response body contains the expected string.
func (r *ResponseRecorder) AssertContains(t interface{ Errorf(string, ...any) }, expected string) {
	body := r.Body.String()
	if !strings.Contains(body, expected) {
		t.Errorf("response body does not contain %q", expected)
	}
}

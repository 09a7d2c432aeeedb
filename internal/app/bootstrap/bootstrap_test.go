package bootstrap

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/pilitosync/internal/app/features/pilitosettings"
	"github.com/dalemusser/pilitosync/internal/testutil"
	"go.uber.org/zap"
)

func validConfig() AppConfig {
	return AppConfig{
		NonceKey:               "test-nonce-key",
		PilitoDefaultAPIURL:    "https://api.pilito.com/",
		PilitoHTTPTimeout:      15 * time.Second,
		RateLimitEnabled:       true,
		RateLimitLoginAttempts: 5,
		AuditLogAuth:           "all",
		AuditLogAdmin:          "log",
	}
}

func TestValidateAppConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{"valid", func(*AppConfig) {}, ""},
		{"no nonce key", func(c *AppConfig) { c.NonceKey = "" }, "nonce_key"},
		{"relative api url", func(c *AppConfig) { c.PilitoDefaultAPIURL = "/api" }, "pilito_default_api_url"},
		{"ftp api url", func(c *AppConfig) { c.PilitoDefaultAPIURL = "ftp://pilito.com/" }, "pilito_default_api_url"},
		{"zero timeout", func(c *AppConfig) { c.PilitoHTTPTimeout = 0 }, "pilito_http_timeout"},
		{"bad audit mode", func(c *AppConfig) { c.AuditLogAdmin = "verbose" }, "audit_log_admin"},
		{"no attempts", func(c *AppConfig) { c.RateLimitLoginAttempts = 0 }, "rate_limit_login_attempts"},
		{"no attempts but disabled", func(c *AppConfig) { c.RateLimitEnabled = false; c.RateLimitLoginAttempts = 0 }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := validateAppConfig(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("validateAppConfig() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("validateAppConfig() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestCSRFMiddleware_ExemptsActionEndpoint(t *testing.T) {
	cfg := AppConfig{CSRFKey: "0123456789abcdef0123456789abcdef"}
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := csrfMiddleware(cfg, false, zap.NewNop())(ok)

	tests := []struct {
		path string
		want int
	}{
		{pilitosettings.AjaxURL, http.StatusNoContent},
		{pilitosettings.Path, http.StatusForbidden},
		{"/login", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader("a=b"))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("POST %s status = %d, want %d", tt.path, rec.Code, tt.want)
			}
		})
	}
}

func TestSessionToken(t *testing.T) {
	if _, ok := sessionToken(httptest.NewRequest(http.MethodPost, "/admin/ajax", nil)); ok {
		t.Error("sessionToken() ok for an anonymous request")
	}

	user := testutil.AdminUser()
	req := testutil.NewAuthenticatedRequest(http.MethodPost, "/admin/ajax", user)
	got, ok := sessionToken(req)
	if !ok || got != user.Token {
		t.Errorf("sessionToken() = %q, %v; want %q", got, ok, user.Token)
	}
}

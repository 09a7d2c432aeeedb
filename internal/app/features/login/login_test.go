package login

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	errorsfeature "github.com/dalemusser/pilitosync/internal/app/features/errors"
	"github.com/dalemusser/pilitosync/internal/app/store/ratelimit"
	"github.com/dalemusser/pilitosync/internal/app/store/sessions"
	"github.com/dalemusser/pilitosync/internal/app/system/auditlog"
	"github.com/dalemusser/pilitosync/internal/app/system/auth"
	"github.com/dalemusser/pilitosync/internal/app/system/authutil"
	"github.com/dalemusser/pilitosync/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const testPassword = "correct horse battery"

var (
	hashOnce sync.Once
	hash     string
)

func passwordHash(t *testing.T) *string {
	t.Helper()
	hashOnce.Do(func() {
		var err error
		if hash, err = authutil.HashPassword(testPassword); err != nil {
			t.Fatalf("HashPassword() error = %v", err)
		}
	})
	return &hash
}

type fakeUsers struct {
	byLogin map[string]*models.User
	err     error
}

func (f *fakeUsers) GetByLoginID(_ context.Context, loginID string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.byLogin[loginID]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return u, nil
}

type fakeLockout struct {
	failures map[string]int
	max      int
	cleared  []string
}

func (f *fakeLockout) Check(_ context.Context, loginID string) ratelimit.Decision {
	if f.failures[loginID] >= f.max {
		until := time.Now().Add(time.Hour)
		return ratelimit.Decision{LockedUntil: &until}
	}
	return ratelimit.Decision{Allowed: true, Remaining: f.max - f.failures[loginID]}
}

func (f *fakeLockout) RecordFailure(ctx context.Context, loginID string) (ratelimit.Decision, error) {
	f.failures[loginID]++
	return f.Check(ctx, loginID), nil
}

func (f *fakeLockout) Clear(_ context.Context, loginID string) error {
	delete(f.failures, loginID)
	f.cleared = append(f.cleared, loginID)
	return nil
}

type fakeSessions struct {
	opened []sessions.Session
	err    error
}

func (f *fakeSessions) Open(_ context.Context, s sessions.Session) (sessions.Session, error) {
	if f.err != nil {
		return sessions.Session{}, f.err
	}
	f.opened = append(f.opened, s)
	return s, nil
}

type fixture struct {
	h        *Handler
	users    *fakeUsers
	lockout  *fakeLockout
	sessions *fakeSessions
	logs     *observer.ObservedLogs
	lastVM   LoginVM
	rendered string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	sm, err := auth.NewSessionManager(strings.Repeat("k", 32), "", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	f := &fixture{
		users: &fakeUsers{byLogin: map[string]*models.User{
			"owner@example.com": {
				ID: primitive.NewObjectID(), FullName: "Shop Owner", LoginID: "owner@example.com",
				PasswordHash: passwordHash(t), Role: models.RoleShopManager, Status: models.StatusActive,
			},
			"gone@example.com": {
				ID: primitive.NewObjectID(), LoginID: "gone@example.com",
				PasswordHash: passwordHash(t), Role: models.RoleAdmin, Status: models.StatusDisabled,
			},
		}},
		lockout:  &fakeLockout{failures: map[string]int{}, max: 3},
		sessions: &fakeSessions{},
		logs:     logs,
	}
	f.h = NewHandler(f.users, sm, Config{
		Lockout:    f.lockout,
		Sessions:   f.sessions,
		SessionTTL: time.Hour,
		Home:       "/admin/pilito-settings",
	}, errorsfeature.NewErrorLogger(logger),
		auditlog.New(nil, logger, auditlog.Config{Auth: auditlog.ModeLog}), logger)
	f.h.render = func(w http.ResponseWriter, r *http.Request, name string, data any) {
		f.rendered = name
		f.lastVM, _ = data.(LoginVM)
	}
	return f
}

func (f *fixture) post(form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.h.handleLogin(rec, req)
	return rec
}

func TestShowLogin(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()
	f.h.showLogin(rec, httptest.NewRequest(http.MethodGet, "/login?return=/admin/pilito-settings", nil))

	if f.rendered != "login/index" {
		t.Fatalf("rendered %q, want login/index", f.rendered)
	}
	if f.lastVM.ReturnURL != "/admin/pilito-settings" {
		t.Errorf("ReturnURL = %q", f.lastVM.ReturnURL)
	}
}

func TestShowLogin_AlreadySignedIn(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req = auth.WithTestUser(req, &auth.SessionUser{ID: "x", Role: models.RoleAdmin})
	rec := httptest.NewRecorder()
	f.h.showLogin(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/admin/pilito-settings" {
		t.Errorf("status = %d location = %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestHandleLogin_Success(t *testing.T) {
	f := newFixture(t)
	f.lockout.failures["owner@example.com"] = 1

	rec := f.post(url.Values{"login_id": {" Owner@Example.com "}, "password": {testPassword}})

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/admin/pilito-settings" {
		t.Errorf("Location = %q", loc)
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Error("no session cookie set")
	}
	if len(f.sessions.opened) != 1 {
		t.Fatalf("opened %d sessions, want 1", len(f.sessions.opened))
	}
	s := f.sessions.opened[0]
	if s.Token == "" || s.LoginID != "owner@example.com" || s.ExpiresAt.Before(time.Now()) {
		t.Errorf("session = %+v", s)
	}
	if len(f.lockout.cleared) != 1 {
		t.Error("failure counter was not cleared")
	}
	if f.logs.FilterField(zap.String("event_type", "login_success")).Len() != 1 {
		t.Error("login_success not audited")
	}
}

func TestHandleLogin_SafeReturn(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		ret  string
		want string
	}{
		{"/admin/other", "/admin/other"},
		{"https://evil.example.com/", "/admin/pilito-settings"},
	}
	for _, tt := range tests {
		rec := f.post(url.Values{"login_id": {"owner@example.com"}, "password": {testPassword}, "return": {tt.ret}})
		if loc := rec.Header().Get("Location"); loc != tt.want {
			t.Errorf("return %q: Location = %q, want %q", tt.ret, loc, tt.want)
		}
	}
}

func TestHandleLogin_Failures(t *testing.T) {
	tests := []struct {
		name      string
		form      url.Values
		wantMsg   string
		wantEvent string
	}{
		{"missing fields", url.Values{"login_id": {"owner@example.com"}}, MsgMissingFields, ""},
		{"unknown user", url.Values{"login_id": {"nobody@example.com"}, "password": {"whatever123"}}, MsgBadCredentials, "login_failed_user_not_found"},
		{"wrong password", url.Values{"login_id": {"owner@example.com"}, "password": {"nope"}}, MsgBadCredentials, "login_failed_wrong_password"},
		{"disabled", url.Values{"login_id": {"gone@example.com"}, "password": {testPassword}}, MsgDisabled, "login_failed_user_disabled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rec := f.post(tt.form)

			if rec.Code != http.StatusOK || f.rendered != "login/index" {
				t.Fatalf("status = %d rendered = %q", rec.Code, f.rendered)
			}
			if f.lastVM.Error != tt.wantMsg {
				t.Errorf("Error = %q, want %q", f.lastVM.Error, tt.wantMsg)
			}
			if len(f.sessions.opened) != 0 {
				t.Error("session opened on failure")
			}
			if tt.wantEvent != "" && f.logs.FilterField(zap.String("event_type", tt.wantEvent)).Len() != 1 {
				t.Errorf("%s not audited", tt.wantEvent)
			}
		})
	}
}

func TestHandleLogin_Lockout(t *testing.T) {
	f := newFixture(t)
	bad := url.Values{"login_id": {"owner@example.com"}, "password": {"nope"}}

	f.post(bad)
	f.post(bad)
	f.post(bad)
	if f.lastVM.Error != MsgLockedOut {
		t.Errorf("third failure Error = %q, want %q", f.lastVM.Error, MsgLockedOut)
	}

	f.post(url.Values{"login_id": {"owner@example.com"}, "password": {testPassword}})
	if f.lastVM.Error != MsgLockedOut {
		t.Errorf("locked sign-in Error = %q, want %q", f.lastVM.Error, MsgLockedOut)
	}
	if len(f.sessions.opened) != 0 {
		t.Error("locked login opened a session")
	}
}

func TestHandleLogin_LookupError(t *testing.T) {
	f := newFixture(t)
	f.users.err = errors.New("connection refused")

	f.post(url.Values{"login_id": {"owner@example.com"}, "password": {testPassword}})
	if f.lastVM.Error != MsgUnavailable {
		t.Errorf("Error = %q, want %q", f.lastVM.Error, MsgUnavailable)
	}
	if f.lockout.failures["owner@example.com"] != 0 {
		t.Error("database errors should not count toward lockout")
	}
}

func TestHandleLogin_SessionRecordError(t *testing.T) {
	f := newFixture(t)
	f.sessions.err = errors.New("insert failed")

	rec := f.post(url.Values{"login_id": {"owner@example.com"}, "password": {testPassword}})
	if rec.Code == http.StatusSeeOther {
		t.Fatal("sign-in should not complete without a session record")
	}
	if f.lastVM.Error != MsgUnavailable {
		t.Errorf("Error = %q, want %q", f.lastVM.Error, MsgUnavailable)
	}
}

// internal/app/features/login/login.go
package login

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - LoginID / loginID / login_id: The human-readable string users type to log in

import (
	"context"
	"errors"
	"net/http"
	"time"

	errorsfeature "github.com/dalemusser/pilitosync/internal/app/features/errors"
	"github.com/dalemusser/pilitosync/internal/app/store/audit"
	"github.com/dalemusser/pilitosync/internal/app/store/ratelimit"
	"github.com/dalemusser/pilitosync/internal/app/store/sessions"
	"github.com/dalemusser/pilitosync/internal/app/system/auditlog"
	"github.com/dalemusser/pilitosync/internal/app/system/auth"
	"github.com/dalemusser/pilitosync/internal/app/system/authutil"
	"github.com/dalemusser/pilitosync/internal/app/system/normalize"
	"github.com/dalemusser/pilitosync/internal/app/system/timeouts"
	"github.com/dalemusser/pilitosync/internal/app/system/viewdata"
	"github.com/dalemusser/pilitosync/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Messages shown on the sign-in form.
const (
	MsgMissingFields  = "Please enter your login ID and password."
	MsgBadCredentials = "Invalid login ID or password."
	MsgDisabled       = "Account is disabled."
	MsgLockedOut      = "Too many failed attempts. Please try again later."
	MsgUnavailable    = "Service temporarily unavailable. Please try again."
)

// UserLookup finds an operator by login_id. A missing user is reported
// as mongo.ErrNoDocuments.
type UserLookup interface {
	GetByLoginID(ctx context.Context, loginID string) (*models.User, error)
}

// Lockout counts failed sign-ins. *ratelimit.Store implements it.
type Lockout interface {
	Check(ctx context.Context, loginID string) ratelimit.Decision
	RecordFailure(ctx context.Context, loginID string) (ratelimit.Decision, error)
	Clear(ctx context.Context, loginID string) error
}

// SessionRecorder records server-side sessions. *sessions.Store implements it.
type SessionRecorder interface {
	Open(ctx context.Context, sess sessions.Session) (sessions.Session, error)
}

// RenderFunc renders a named page template.
type RenderFunc func(w http.ResponseWriter, r *http.Request, name string, data any)

// Handler serves the sign-in form.
type Handler struct {
	users      UserLookup
	lockout    Lockout         // nil disables lockout
	tracked    SessionRecorder // nil disables session tracking
	sessionMgr *auth.SessionManager
	sessionTTL time.Duration
	home       string
	errLog     *errorsfeature.ErrorLogger
	audit      *auditlog.Logger
	logger     *zap.Logger
	render     RenderFunc
}

// Config carries the optional collaborators of a Handler.
type Config struct {
	Lockout    Lockout
	Sessions   SessionRecorder
	SessionTTL time.Duration
	Home       string // where to go after sign-in when no safe return is given
}

// NewHandler creates a login Handler.
func NewHandler(
	users UserLookup,
	sessionMgr *auth.SessionManager,
	cfg Config,
	errLog *errorsfeature.ErrorLogger,
	audit *auditlog.Logger,
	logger *zap.Logger,
) *Handler {
	if cfg.Home == "" {
		cfg.Home = "/"
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	return &Handler{
		users:      users,
		lockout:    cfg.Lockout,
		tracked:    cfg.Sessions,
		sessionMgr: sessionMgr,
		sessionTTL: cfg.SessionTTL,
		home:       cfg.Home,
		errLog:     errLog,
		audit:      audit,
		logger:     logger,
		render:     templates.Render,
	}
}

// LoginVM is the view model for the login page.
type LoginVM struct {
	viewdata.BaseVM
	Error     string
	LoginID   string
	ReturnURL string
}

// Routes returns a chi.Router with login routes mounted.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.showLogin)
	r.Post("/", h.handleLogin)
	return r
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.CurrentUser(r); ok {
		http.Redirect(w, r, urlutil.SafeReturn(query.Get(r, "return"), "", h.home), http.StatusSeeOther)
		return
	}
	h.renderForm(w, r, "", "", query.Get(r, "return"))
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, msg, loginID, returnURL string) {
	vm := LoginVM{
		BaseVM:    viewdata.New(r),
		Error:     msg,
		LoginID:   loginID,
		ReturnURL: returnURL,
	}
	vm.Title = "Sign in"
	h.render(w, r, "login/index", vm)
}

// handleLogin checks the password and opens a session. Unknown users and
// wrong passwords get the same message and both count toward lockout.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.errLog.Log(r, "failed to parse form", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	loginID := normalize.LoginID(r.PostForm.Get("login_id"))
	password := r.PostForm.Get("password")
	returnURL := r.PostForm.Get("return")

	if loginID == "" || password == "" {
		h.renderForm(w, r, MsgMissingFields, loginID, returnURL)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.logger, "login.handle")
	defer cancel()

	if h.lockout != nil {
		if d := h.lockout.Check(ctx, loginID); !d.Allowed {
			h.audit.LoginFailed(ctx, r, audit.EventLoginLockedOut, loginID, "locked out", nil)
			h.renderForm(w, r, MsgLockedOut, loginID, returnURL)
			return
		}
	}

	user, err := h.users.GetByLoginID(ctx, loginID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			h.audit.LoginFailed(ctx, r, audit.EventLoginFailedUserNotFound, loginID, "user not found", nil)
			h.fail(ctx, w, r, loginID, returnURL)
			return
		}
		h.errLog.Log(r, "database error during login lookup", err)
		h.renderForm(w, r, MsgUnavailable, loginID, returnURL)
		return
	}

	if normalize.Status(user.Status) == models.StatusDisabled {
		h.audit.LoginFailed(ctx, r, audit.EventLoginFailedUserDisabled, loginID, "user disabled", &user.ID)
		h.renderForm(w, r, MsgDisabled, loginID, returnURL)
		return
	}

	if user.PasswordHash == nil || !authutil.CheckPassword(password, *user.PasswordHash) {
		h.audit.LoginFailed(ctx, r, audit.EventLoginFailedWrongPassword, loginID, "wrong password", &user.ID)
		h.fail(ctx, w, r, loginID, returnURL)
		return
	}

	if h.lockout != nil {
		if err := h.lockout.Clear(ctx, loginID); err != nil {
			h.logger.Warn("failed to clear login attempts", zap.String("login_id", loginID), zap.Error(err))
		}
	}

	token, err := h.sessionMgr.CreateSession(w, r, &auth.SessionUser{
		ID:      user.ID.Hex(),
		Name:    user.FullName,
		LoginID: user.LoginID,
		Role:    normalize.Role(user.Role),
	})
	if err != nil {
		h.errLog.Log(r, "failed to create session", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	if h.tracked != nil {
		_, err := h.tracked.Open(ctx, sessions.Session{
			Token:     token,
			UserID:    user.ID,
			LoginID:   user.LoginID,
			IPAddress: r.RemoteAddr,
			UserAgent: r.UserAgent(),
			ExpiresAt: time.Now().Add(h.sessionTTL),
		})
		if err != nil {
			h.errLog.Log(r, "failed to record session", err)
			h.sessionMgr.DestroySession(w, r)
			h.renderForm(w, r, MsgUnavailable, loginID, returnURL)
			return
		}
	}

	h.audit.LoginSuccess(ctx, r, user.ID, user.LoginID)
	http.Redirect(w, r, urlutil.SafeReturn(returnURL, "", h.home), http.StatusSeeOther)
}

// fail counts a bad credential and re-renders the form.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, r *http.Request, loginID, returnURL string) {
	msg := MsgBadCredentials
	if h.lockout != nil {
		d, err := h.lockout.RecordFailure(ctx, loginID)
		if err != nil {
			h.logger.Warn("failed to record login failure", zap.String("login_id", loginID), zap.Error(err))
		}
		if d.LockedUntil != nil {
			h.audit.LoginFailed(ctx, r, audit.EventLoginLockedOut, loginID, "lockout started", nil)
			msg = MsgLockedOut
		}
	}
	h.renderForm(w, r, msg, loginID, returnURL)
}

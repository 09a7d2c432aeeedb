// internal/app/features/logout/logout.go
package logout

import (
	"context"
	"net/http"

	"github.com/dalemusser/pilitosync/internal/app/store/sessions"
	"github.com/dalemusser/pilitosync/internal/app/system/auditlog"
	"github.com/dalemusser/pilitosync/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// SessionCloser ends server-side session records. *sessions.Store implements it.
type SessionCloser interface {
	Close(ctx context.Context, token, reason string) error
}

// Handler provides logout handlers.
type Handler struct {
	sessionMgr  *auth.SessionManager
	auditLogger *auditlog.Logger
	tracked     SessionCloser // nil when sessions are not tracked
	logger      *zap.Logger
}

// NewHandler creates a new logout Handler.
func NewHandler(
	sessionMgr *auth.SessionManager,
	auditLogger *auditlog.Logger,
	tracked SessionCloser,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		sessionMgr:  sessionMgr,
		auditLogger: auditLogger,
		tracked:     tracked,
		logger:      logger,
	}
}

// Routes returns a chi.Router with logout mounted. Logout is POST only so
// it sits behind the CSRF check like every other state change.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(h.sessionMgr.RequireSignedIn)
	r.Post("/", h.handleLogout)
	return r
}

// handleLogout closes the tracked session, expires the cookie and returns
// to the sign-in page.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if user, ok := auth.CurrentUser(r); ok {
		h.auditLogger.Logout(r.Context(), r, user.ID, user.LoginID)

		if token := user.SessionToken(); token != "" && h.tracked != nil {
			if err := h.tracked.Close(r.Context(), token, sessions.EndReasonLogout); err != nil {
				h.logger.Warn("failed to close session in store", zap.Error(err))
			}
		}
	}

	h.sessionMgr.DestroySession(w, r)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

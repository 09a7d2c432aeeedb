// Package auth manages cookie-backed admin console sessions.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dalemusser/pilitosync/internal/app/system/normalize"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// DefaultSessionName is used when no cookie name is configured.
const DefaultSessionName = "pilitosync-session"

type sessionErrorType int

const (
	sessionErrUnknown   sessionErrorType = iota
	sessionErrExpired                    // timestamp expired
	sessionErrTampered                   // MAC invalid
	sessionErrCorrupted                  // decode/decrypt failed, usually key rotation
	sessionErrBackend                    // store failure
)

const (
	isAuthKey       = "is_authenticated"
	userIDKey       = "user_id"
	userNameKey     = "user_name"
	userLoginIDKey  = "user_login_id"
	userRoleKey     = "user_role"
	sessionTokenKey = "session_token"
)

// SessionManager owns the cookie store and the session middleware.
type SessionManager struct {
	store       *sessions.CookieStore
	logger      *zap.Logger
	name        string
	userFetcher UserFetcher
	tracker     SessionTracker
}

// SessionConfigError is returned when session configuration is invalid.
type SessionConfigError struct {
	Message string
}

func (e *SessionConfigError) Error() string {
	return e.Message
}

// NewSessionManager builds a SessionManager. Weak keys are rejected when
// secure is true and only logged otherwise.
func NewSessionManager(sessionKey, name, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, &SessionConfigError{Message: "session key is empty; provide at least 32 random chars"}
	}

	weak := len(sessionKey) < 32 || isDefaultKey(sessionKey)
	if weak && secure {
		return nil, &SessionConfigError{
			Message: "session key is too weak for production; provide at least 32 random chars",
		}
	}
	if weak {
		logger.Warn("session key is weak; 32+ random chars required in production",
			zap.Int("length", len(sessionKey)),
			zap.Bool("is_default", isDefaultKey(sessionKey)))
	}

	if name == "" {
		name = DefaultSessionName
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	store.Options = &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	logger.Info("session manager initialized",
		zap.Bool("secure", secure),
		zap.String("name", name),
		zap.String("domain", domain))

	return &SessionManager{store: store, logger: logger, name: name}, nil
}

// SessionName returns the configured cookie name.
func (sm *SessionManager) SessionName() string {
	return sm.name
}

// GetSession retrieves the session for the request.
func (sm *SessionManager) GetSession(r *http.Request) (*sessions.Session, error) {
	return sm.store.Get(r, sm.name)
}

// SetUserFetcher installs the fetcher LoadSessionUser uses to refresh the
// user on each request. Call it once the database is connected.
func (sm *SessionManager) SetUserFetcher(uf UserFetcher) {
	sm.userFetcher = uf
}

// SetSessionTracker installs the server-side session record check.
// Without one, any cookie that decodes is accepted until it expires.
func (sm *SessionManager) SetSessionTracker(t SessionTracker) {
	sm.tracker = t
}

// SessionTracker reports whether a session token is still open server-side.
type SessionTracker interface {
	IsActive(ctx context.Context, token string) bool
}

// UserFetcher loads a fresh view of a signed-in user.
// FetchUser returns nil when the user is missing or disabled.
type UserFetcher interface {
	FetchUser(ctx context.Context, userID string) *SessionUser
}

// SessionUser is the signed-in user carried on the request context.
type SessionUser struct {
	ID      string
	Name    string
	LoginID string
	Role    string
	Token   string // per-session token, also the identity nonces are bound to
}

// UserID returns the user's ObjectID, or the zero ObjectID if ID is malformed.
func (u *SessionUser) UserID() primitive.ObjectID {
	oid, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		return primitive.NilObjectID
	}
	return oid
}

// SessionToken returns the token of the user's current session.
func (u *SessionUser) SessionToken() string {
	return u.Token
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user from the request context.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok
}

// LoadSessionUser injects the signed-in user into the request context.
// A session whose user has vanished or been disabled is cleared.
func (sm *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := sm.store.Get(r, sm.name)
		if err != nil {
			sm.logSessionError(r, err)
		}

		if isAuth, _ := sess.Values[isAuthKey].(bool); isAuth {
			userID := getString(sess, userIDKey)
			token := getString(sess, sessionTokenKey)

			switch {
			case userID == "":
			case sm.tracker != nil && !sm.tracker.IsActive(r.Context(), token):
				sm.logger.Info("session invalidated: session closed",
					zap.String("user_id", userID),
					zap.String("path", r.URL.Path))
				sm.clear(w, r, sess)
			case sm.userFetcher != nil:
				if u := sm.userFetcher.FetchUser(r.Context(), userID); u != nil {
					u.Token = token
					r = withUser(r, u)
				} else {
					sm.logger.Info("session invalidated: user not found or disabled",
						zap.String("user_id", userID),
						zap.String("path", r.URL.Path))
					sm.clear(w, r, sess)
				}
			default:
				r = withUser(r, &SessionUser{
					ID:      userID,
					Name:    getString(sess, userNameKey),
					LoginID: getString(sess, userLoginIDKey),
					Role:    getString(sess, userRoleKey),
					Token:   token,
				})
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (sm *SessionManager) clear(w http.ResponseWriter, r *http.Request, sess *sessions.Session) {
	sess.Values[isAuthKey] = false
	delete(sess.Values, userIDKey)
	delete(sess.Values, sessionTokenKey)
	_ = sess.Save(r, w)
}

func (sm *SessionManager) logSessionError(r *http.Request, err error) {
	errType, category := classifySessionError(err)
	fields := []zap.Field{zap.String("category", category), zap.String("path", r.URL.Path)}
	switch errType {
	case sessionErrExpired:
		sm.logger.Debug("session expired, starting fresh session", fields...)
	case sessionErrTampered:
		sm.logger.Warn("session MAC validation failed (possible tampering)",
			append(fields, zap.String("remote_addr", r.RemoteAddr), zap.String("user_agent", r.UserAgent()))...)
	case sessionErrCorrupted:
		sm.logger.Info("session decode failed, starting fresh session", fields...)
	case sessionErrBackend:
		sm.logger.Error("session store error, starting fresh session", append(fields, zap.Error(err))...)
	default:
		sm.logger.Warn("session error, starting fresh session", append(fields, zap.Error(err))...)
	}
}

// RequireSignedIn rejects requests without a user in context. Browsers are
// sent to /login with a return path; other callers get 401.
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); !ok {
			unauthenticated(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects users whose role is not in allowed.
func (sm *SessionManager) RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[normalize.Role(role)] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			if !ok {
				unauthenticated(w, r)
				return
			}
			if _, has := set[normalize.Role(u.Role)]; !has {
				Forbidden(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Forbidden answers a signed-in request that lacks permission.
func Forbidden(w http.ResponseWriter, r *http.Request) {
	if wantsHTML(r) {
		http.Redirect(w, r, "/forbidden", http.StatusSeeOther)
		return
	}
	http.Error(w, "forbidden", http.StatusForbidden)
}

func unauthenticated(w http.ResponseWriter, r *http.Request) {
	if wantsHTML(r) {
		http.Redirect(w, r, "/login?return="+url.QueryEscape(currentURI(r)), http.StatusSeeOther)
		return
	}
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

// WithTestUser injects a SessionUser into the request context for testing.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

func getString(s *sessions.Session, key string) string {
	if v, ok := s.Values[key].(string); ok {
		return v
	}
	return ""
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func currentURI(r *http.Request) string {
	return r.URL.RequestURI()
}

var defaultKeyPatterns = []string{
	"dev-only", "change-me", "placeholder", "default",
	"example", "insecure", "test-key", "secret123", "password",
}

// isDefaultKey reports whether key looks like a placeholder value.
func isDefaultKey(key string) bool {
	lower := strings.ToLower(key)
	for _, p := range defaultKeyPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func classifySessionError(err error) (sessionErrorType, string) {
	if err == nil {
		return sessionErrUnknown, "none"
	}

	scErr, ok := err.(securecookie.Error)
	if !ok {
		return sessionErrBackend, "unknown"
	}
	if !scErr.IsDecode() {
		return sessionErrBackend, "backend"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "expired timestamp"):
		return sessionErrExpired, "expired"
	case strings.Contains(msg, "mac") || strings.Contains(msg, "hash"):
		return sessionErrTampered, "mac_invalid"
	case strings.Contains(msg, "decrypt"):
		return sessionErrCorrupted, "decrypt_failed"
	case strings.Contains(msg, "base64") || strings.Contains(msg, "decode"):
		return sessionErrCorrupted, "decode_failed"
	default:
		return sessionErrCorrupted, "decode_other"
	}
}

// CreateSession signs u in. A fresh session token is generated and returned;
// it is the identity one-time action tokens are bound to.
func (sm *SessionManager) CreateSession(w http.ResponseWriter, r *http.Request, u *SessionUser) (string, error) {
	sess, err := sm.store.Get(r, sm.name)
	if err != nil {
		sess, _ = sm.store.New(r, sm.name)
	}

	token, err := GenerateSessionToken()
	if err != nil {
		return "", err
	}

	sess.Values[isAuthKey] = true
	sess.Values[userIDKey] = u.ID
	sess.Values[userNameKey] = u.Name
	sess.Values[userLoginIDKey] = u.LoginID
	sess.Values[userRoleKey] = u.Role
	sess.Values[sessionTokenKey] = token

	if err := sess.Save(r, w); err != nil {
		return "", err
	}
	return token, nil
}

// GetSessionToken returns the session token from the request cookie.
func (sm *SessionManager) GetSessionToken(r *http.Request) string {
	sess, err := sm.store.Get(r, sm.name)
	if err != nil {
		return ""
	}
	return getString(sess, sessionTokenKey)
}

// GenerateSessionToken returns a random URL-safe token.
func GenerateSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// DestroySession signs the user out and expires the cookie.
func (sm *SessionManager) DestroySession(w http.ResponseWriter, r *http.Request) {
	sess, err := sm.store.Get(r, sm.name)
	if err != nil {
		return
	}

	sess.Values[isAuthKey] = false
	for _, k := range []string{userIDKey, userNameKey, userLoginIDKey, userRoleKey, sessionTokenKey} {
		delete(sess.Values, k)
	}
	sess.Options.MaxAge = -1
	_ = sess.Save(r, w)
}

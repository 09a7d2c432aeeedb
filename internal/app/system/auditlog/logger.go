// internal/app/system/auditlog/logger.go
package auditlog

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - LoginID / loginID / login_id: The human-readable string users type to log in

import (
	"context"
	"net/http"
	"strings"

	"github.com/dalemusser/pilitosync/internal/app/store/audit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destinations for a category of events.
const (
	ModeAll = "all" // MongoDB and zap
	ModeDB  = "db"  // MongoDB only
	ModeLog = "log" // zap only
	ModeOff = "off"
)

// Config selects where each category of events goes.
type Config struct {
	Auth  string // sign-in and sign-out
	Admin string // settings changes and connection tests
}

// Sink persists audit events. *audit.Store implements it.
type Sink interface {
	Log(ctx context.Context, event audit.Event) error
}

// Logger records audit events to the configured destinations.
// A nil *Logger is valid and records nothing.
type Logger struct {
	sink   Sink
	zapLog *zap.Logger
	config Config
}

// New creates a Logger. sink may be nil when no category uses ModeAll or ModeDB.
func New(sink Sink, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{sink: sink, zapLog: zapLog, config: config}
}

// ValidMode reports whether m is a known destination.
func ValidMode(m string) bool {
	switch m {
	case ModeAll, ModeDB, ModeLog, ModeOff:
		return true
	}
	return false
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}
	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.LoginID != "" {
		fields = append(fields, zap.String("login_id", event.LoginID))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records event according to its category's mode.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	mode := ModeAll
	switch event.Category {
	case audit.CategoryAuth:
		mode = l.config.Auth
	case audit.CategoryAdmin:
		mode = l.config.Admin
	}

	switch mode {
	case ModeAll:
		l.logToZap(event)
		l.store(ctx, event)
	case ModeDB:
		l.store(ctx, event)
	case ModeLog:
		l.logToZap(event)
	}
}

func (l *Logger) store(ctx context.Context, event audit.Event) {
	if l.sink == nil {
		return
	}
	if err := l.sink.Log(ctx, event); err != nil {
		l.zapLog.Error("failed to store audit event",
			zap.Error(err),
			zap.String("event_type", event.EventType))
	}
}

func (l *Logger) event(r *http.Request, category, eventType string, success bool) audit.Event {
	return audit.Event{
		Category:  category,
		EventType: eventType,
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
		Success:   success,
	}
}

// --- Authentication Events ---

// LoginSuccess logs a successful sign-in.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID, loginID string) {
	e := l.event(r, audit.CategoryAuth, audit.EventLoginSuccess, true)
	e.UserID = &userID
	e.LoginID = loginID
	e.Details = map[string]string{"auth_method": "password"}
	l.Log(ctx, e)
}

// LoginFailed logs a refused sign-in. eventType is one of the
// audit.EventLoginFailed* or audit.EventLoginLockedOut constants.
func (l *Logger) LoginFailed(ctx context.Context, r *http.Request, eventType, loginID, reason string, userID *primitive.ObjectID) {
	e := l.event(r, audit.CategoryAuth, eventType, false)
	e.UserID = userID
	e.LoginID = loginID
	e.FailureReason = reason
	l.Log(ctx, e)
}

// Logout logs a sign-out.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userIDHex, loginID string) {
	e := l.event(r, audit.CategoryAuth, audit.EventLogout, true)
	if oid, err := primitive.ObjectIDFromHex(userIDHex); err == nil {
		e.UserID = &oid
	}
	e.LoginID = loginID
	l.Log(ctx, e)
}

// --- Admin Events ---

// SettingsUpdated logs a save of the settings form. changed lists option
// names only, never their values.
func (l *Logger) SettingsUpdated(ctx context.Context, r *http.Request, loginID string, changed []string) {
	e := l.event(r, audit.CategoryAdmin, audit.EventSettingsUpdated, true)
	e.LoginID = loginID
	e.Details = map[string]string{"changed": strings.Join(changed, ",")}
	l.Log(ctx, e)
}

// ConnectionTested logs the outcome of a token verification.
func (l *Logger) ConnectionTested(ctx context.Context, r *http.Request, loginID string, success bool, message string) {
	e := l.event(r, audit.CategoryAdmin, audit.EventConnectionTested, success)
	e.LoginID = loginID
	if !success {
		e.FailureReason = message
	}
	l.Log(ctx, e)
}

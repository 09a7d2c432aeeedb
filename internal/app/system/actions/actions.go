// Package actions routes asynchronous admin actions posted to a single
// endpoint. Each action is registered by name; the dispatcher checks the
// posted one-time authorization value for that action before the handler
// runs.
package actions

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Form fields read by the dispatcher.
const (
	FieldAction = "action"
	FieldNonce  = "nonce"
)

// maxFormBytes caps the size of a posted action form.
const maxFormBytes = 1 << 20

var (
	ErrDuplicateAction = errors.New("actions: action already registered")
	ErrEmptyName       = errors.New("actions: empty action name")
	ErrUnregistered    = errors.New("actions: action not registered")
)

// Table maps action names to handlers.
type Table struct {
	mu       sync.RWMutex
	handlers map[string]http.Handler
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{handlers: make(map[string]http.Handler)}
}

// Register adds h under name. Registering the same name twice fails.
func (t *Table) Register(name string, h http.Handler) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.handlers[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAction, name)
	}
	t.handlers[name] = h
	return nil
}

// Lookup returns the handler registered under name.
func (t *Table) Lookup(name string) (http.Handler, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.handlers[name]
	return h, ok
}

// Names returns the registered action names, sorted.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.handlers))
	for n := range t.handlers {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// RequireRegistered fails if any of names has no handler. Startup calls
// it so a missing registration is caught before serving.
func (t *Table) RequireRegistered(names ...string) error {
	var missing []string
	for _, n := range names {
		if _, ok := t.Lookup(n); !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrUnregistered, strings.Join(missing, ", "))
	}
	return nil
}

// Verifier checks a one-time authorization value.
type Verifier interface {
	Verify(token, action, sessionID string) error
}

// SessionFunc returns the caller's session identity, or false when the
// request carries no signed-in session.
type SessionFunc func(r *http.Request) (string, bool)

// Dispatcher serves the action endpoint.
type Dispatcher struct {
	table    *Table
	verifier Verifier
	session  SessionFunc
	logger   *zap.Logger
}

// NewDispatcher builds a Dispatcher over table.
func NewDispatcher(table *Table, verifier Verifier, session SessionFunc, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{table: table, verifier: verifier, session: session, logger: logger}
}

// ServeHTTP dispatches a posted action. Unknown actions and anonymous
// callers get 400 with body "0". A failed authorization check ends the
// request with 403 and an empty body; the handler is not run.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		d.logger.Debug("action form parse failed", zap.Error(err))
		unknown(w)
		return
	}

	name := strings.TrimSpace(r.PostForm.Get(FieldAction))
	h, ok := d.table.Lookup(name)
	if !ok {
		d.logger.Debug("unknown admin action", zap.String("action", name))
		unknown(w)
		return
	}

	sessionID, ok := d.session(r)
	if !ok {
		unknown(w)
		return
	}

	if err := d.verifier.Verify(r.PostForm.Get(FieldNonce), name, sessionID); err != nil {
		d.logger.Warn("admin action rejected",
			zap.String("action", name),
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err))
		w.WriteHeader(http.StatusForbidden)
		return
	}

	h.ServeHTTP(w, r)
}

func unknown(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusBadRequest)
	_, _ = io.WriteString(w, "0")
}

// internal/app/features/errors/errors.go
package errors

import (
	"net/http"

	"github.com/dalemusser/pilitosync/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

// ErrorLogger logs handler failures with request context.
type ErrorLogger struct {
	logger *zap.Logger
}

// NewErrorLogger creates a new ErrorLogger.
func NewErrorLogger(logger *zap.Logger) *ErrorLogger {
	return &ErrorLogger{logger: logger}
}

// Log logs err with the request path and method.
func (e *ErrorLogger) Log(r *http.Request, msg string, err error) {
	e.LogWithFields(r, msg, err)
}

// LogWithFields logs err with the request path, method and extra fields.
func (e *ErrorLogger) LogWithFields(r *http.Request, msg string, err error, fields ...zap.Field) {
	all := append([]zap.Field{
		zap.Error(err),
		zap.String("path", r.URL.Path),
		zap.String("method", r.Method),
	}, fields...)
	e.logger.Error(msg, all...)
}

// RenderFunc renders a named page template.
type RenderFunc func(w http.ResponseWriter, r *http.Request, name string, data any)

// Handler serves the error pages.
type Handler struct {
	render RenderFunc
}

// NewHandler creates an error Handler that renders with the template engine.
func NewHandler() *Handler {
	return &Handler{render: templates.Render}
}

// Forbidden renders the 403 page.
func (h *Handler) Forbidden(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, http.StatusForbidden, "Access Denied", "errors/forbidden")
}

// NotFound renders the 404 page.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, http.StatusNotFound, "Not Found", "errors/not_found")
}

// InternalError renders the 500 page.
func (h *Handler) InternalError(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, http.StatusInternalServerError, "Server Error", "errors/internal")
}

func (h *Handler) page(w http.ResponseWriter, r *http.Request, status int, title, name string) {
	vm := viewdata.New(r)
	vm.Title = title
	w.WriteHeader(status)
	h.render(w, r, name, vm)
}

// internal/app/features/auditlog/auditlog.go
package auditlog

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - LoginID / loginID / login_id: The human-readable string users type to log in

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	errorsfeature "github.com/dalemusser/pilitosync/internal/app/features/errors"
	"github.com/dalemusser/pilitosync/internal/app/store/audit"
	"github.com/dalemusser/pilitosync/internal/app/system/adminmenu"
	"github.com/dalemusser/pilitosync/internal/app/system/authz"
	"github.com/dalemusser/pilitosync/internal/app/system/normalize"
	"github.com/dalemusser/pilitosync/internal/app/system/timeouts"
	"github.com/dalemusser/pilitosync/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const pageSize = 50

// Path is where the audit log is served.
const Path = "/admin/audit-log"

// Page is the audit log's entry in the admin menu. Only operators who
// manage options see it.
var Page = adminmenu.Page{
	Parent:     "pilito-sync",
	Slug:       "audit-log",
	Title:      "Audit Log",
	Capability: authz.CapManageOptions,
	Path:       Path,
}

// Querier reads audit events. *audit.Store implements it.
type Querier interface {
	Query(ctx context.Context, f audit.Filter) ([]audit.Event, error)
	Count(ctx context.Context, f audit.Filter) (int64, error)
}

// RenderFunc renders a named template.
type RenderFunc func(w http.ResponseWriter, r *http.Request, name string, data any)

// Handler serves the audit log screen.
type Handler struct {
	events Querier
	menu   *adminmenu.Registry
	errLog *errorsfeature.ErrorLogger
	logger *zap.Logger
	render RenderFunc
}

// NewHandler creates an audit log Handler.
func NewHandler(events Querier, menu *adminmenu.Registry, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		events: events,
		menu:   menu,
		errLog: errLog,
		logger: logger,
		render: templates.Render,
	}
}

// Register adds the screen to the admin menu.
func (h *Handler) Register() error {
	_, err := h.menu.AddPage(Page)
	return err
}

// MountRoutes mounts the screen on r. Callers wrap r with the capability check.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
}

type listItem struct {
	Timestamp time.Time
	Category  string
	EventType string
	LoginID   string
	IP        string
	Success   bool
	Reason    string
	Details   map[string]string
}

// ListVM is the view model for the audit log.
type ListVM struct {
	viewdata.BaseVM

	Items []listItem

	// Filters
	Category  string
	EventType string
	LoginID   string
	SinceDays int

	Categories []categoryOption
	EventTypes []string

	// Pagination
	Page       int
	TotalPages int
	Total      int64
	HasPrev    bool
	HasNext    bool
	PrevPage   int
	NextPage   int
}

type categoryOption struct {
	Value string
	Label string
}

func allCategories() []categoryOption {
	return []categoryOption{
		{Value: audit.CategoryAuth, Label: "Sign-in"},
		{Value: audit.CategoryAdmin, Label: "Settings"},
	}
}

// eventTypesForCategory returns the event types recorded under category,
// or all of them when category is empty.
func eventTypesForCategory(category string) []string {
	authEvents := []string{
		audit.EventLoginSuccess,
		audit.EventLoginFailedUserNotFound,
		audit.EventLoginFailedWrongPassword,
		audit.EventLoginFailedUserDisabled,
		audit.EventLoginLockedOut,
		audit.EventLogout,
	}
	adminEvents := []string{
		audit.EventSettingsUpdated,
		audit.EventConnectionTested,
	}

	switch category {
	case audit.CategoryAuth:
		return authEvents
	case audit.CategoryAdmin:
		return adminEvents
	case "":
		return append(append([]string{}, authEvents...), adminEvents...)
	default:
		return nil
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := strings.TrimSpace(q.Get("category"))
	eventType := strings.TrimSpace(q.Get("event_type"))
	loginID := normalize.LoginID(q.Get("login_id"))

	page := 1
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		page = p
	}
	sinceDays, _ := strconv.Atoi(q.Get("days"))
	if sinceDays < 0 {
		sinceDays = 0
	}

	filter := audit.Filter{
		Category:  category,
		EventType: eventType,
		LoginID:   loginID,
		Limit:     pageSize,
		Offset:    int64((page - 1) * pageSize),
	}
	if sinceDays > 0 {
		filter.Since = time.Now().AddDate(0, 0, -sinceDays)
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.logger, "auditlog.list")
	defer cancel()

	events, err := h.events.Query(ctx, filter)
	if err != nil {
		h.errLog.Log(r, "failed to query audit events", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	total, err := h.events.Count(ctx, filter)
	if err != nil {
		h.logger.Warn("failed to count audit events", zap.Error(err))
		total = int64(len(events))
	}

	items := make([]listItem, 0, len(events))
	for _, e := range events {
		items = append(items, listItem{
			Timestamp: e.CreatedAt,
			Category:  e.Category,
			EventType: e.EventType,
			LoginID:   e.LoginID,
			IP:        e.IP,
			Success:   e.Success,
			Reason:    e.FailureReason,
			Details:   e.Details,
		})
	}

	totalPages := int((total + pageSize - 1) / pageSize)
	if totalPages < 1 {
		totalPages = 1
	}

	vm := ListVM{
		BaseVM:     viewdata.ForScreen(r, h.menu, Page.ScreenID()),
		Items:      items,
		Category:   category,
		EventType:  eventType,
		LoginID:    loginID,
		SinceDays:  sinceDays,
		Categories: allCategories(),
		EventTypes: eventTypesForCategory(category),
		Page:       page,
		TotalPages: totalPages,
		Total:      total,
		HasPrev:    page > 1,
		HasNext:    page < totalPages,
		PrevPage:   max(page-1, 1),
		NextPage:   min(page+1, totalPages),
	}
	vm.Title = Page.Title

	h.render(w, r, "auditlog/list", vm)
}

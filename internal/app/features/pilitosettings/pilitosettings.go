// Package pilitosettings is the Pilito Sync settings screen: it declares the
// Pilito options, renders and saves the settings form, and serves the
// test_connection admin action.
package pilitosettings

import (
	"context"
	"fmt"
	"net/http"

	errorsfeature "github.com/dalemusser/pilitosync/internal/app/features/errors"
	"github.com/dalemusser/pilitosync/internal/app/system/actions"
	"github.com/dalemusser/pilitosync/internal/app/system/adminmenu"
	"github.com/dalemusser/pilitosync/internal/app/system/auditlog"
	"github.com/dalemusser/pilitosync/internal/app/system/options"
	"github.com/dalemusser/pilitosync/internal/app/system/pilito"
	"github.com/dalemusser/pilitosync/internal/app/system/textsanitize"
	"github.com/dalemusser/pilitosync/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ActionTestConnection is the admin action that verifies a token.
const ActionTestConnection = "test_connection"

// AjaxURL is the admin action endpoint the page script posts to.
const AjaxURL = "/admin/ajax"

// Path is where the settings screen is served.
const Path = "/admin/pilito-settings"

// Page is the settings screen's entry in the admin menu.
var Page = adminmenu.Page{
	Parent:     "pilito-sync",
	Slug:       "pilito-ps-settings",
	Title:      PageTitle,
	MenuTitle:  MenuTitle,
	Capability: models.CapabilityManageShop,
	Path:       Path,
}

// ScreenID is the settings screen's id, "pilito-sync_page_pilito-ps-settings".
var ScreenID = Page.ScreenID()

// Connector verifies a Pilito API token.
type Connector interface {
	TestConnection(ctx context.Context, token string) (pilito.Result, error)
}

// NonceMinter issues one-time authorization values.
type NonceMinter interface {
	Create(action, sessionID string) (string, error)
}

// RenderFunc renders a named page template.
type RenderFunc func(w http.ResponseWriter, r *http.Request, name string, data any)

// Handler serves the settings screen.
type Handler struct {
	opts   *options.Service
	menu   *adminmenu.Registry
	nonces NonceMinter
	client Connector
	errLog *errorsfeature.ErrorLogger
	audit  *auditlog.Logger
	logger *zap.Logger
	render RenderFunc
}

// NewHandler creates a settings Handler.
func NewHandler(
	opts *options.Service,
	menu *adminmenu.Registry,
	nonces NonceMinter,
	client Connector,
	errLog *errorsfeature.ErrorLogger,
	audit *auditlog.Logger,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		opts:   opts,
		menu:   menu,
		nonces: nonces,
		client: client,
		errLog: errLog,
		audit:  audit,
		logger: logger,
		render: templates.Render,
	}
}

// Options returns the declarations of the three Pilito options.
func Options() []options.Option {
	return []options.Option{
		{
			Name:    models.OptionAPIToken,
			Group:   models.PilitoSettingsGroup,
			Type:    options.TypeString,
			Default: "",
		},
		{
			Name:     models.OptionEnableLogging,
			Group:    models.PilitoSettingsGroup,
			Type:     options.TypeBoolean,
			Sanitize: func(v any) any { return textsanitize.Bool(v) },
			Default:  false,
		},
		{
			Name:     models.OptionAPIURL,
			Group:    models.PilitoSettingsGroup,
			Type:     options.TypeString,
			Sanitize: func(v any) any { return textsanitize.URL(fmt.Sprint(v)) },
			Default:  models.DefaultPilitoAPIURL,
		},
	}
}

// RegisterOptions declares the Pilito options on reg.
func RegisterOptions(reg *options.Registry) error {
	for _, opt := range Options() {
		if err := reg.Register(opt); err != nil {
			return err
		}
	}
	return nil
}

// Register adds the settings screen to the admin menu, hooks its assets
// and registers the test_connection action.
func (h *Handler) Register(table *actions.Table) error {
	if _, err := h.menu.AddPage(Page); err != nil {
		return err
	}
	h.menu.RegisterShared(AjaxHelper)
	h.menu.OnEnqueue(EnqueueAssets)
	return table.Register(ActionTestConnection, http.HandlerFunc(h.TestConnection))
}

// MountRoutes mounts the settings screen on r. Callers wrap r with the
// capability check.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.show)
	r.Post("/", h.save)
}

// Source adapts the option service to pilito.SettingsSource so the client
// reads the saved settings on every call.
func Source(svc *options.Service) pilito.SettingsSource {
	return settingsSource{svc: svc}
}

type settingsSource struct {
	svc *options.Service
}

func (s settingsSource) PilitoSettings(ctx context.Context) (models.PilitoSettings, error) {
	return Load(ctx, s.svc)
}

// Load reads the Pilito option group into a typed snapshot.
func Load(ctx context.Context, svc *options.Service) (models.PilitoSettings, error) {
	var out models.PilitoSettings
	var err error
	if out.APIToken, err = svc.String(ctx, models.OptionAPIToken); err != nil {
		return out, err
	}
	if out.LoggingEnabled, err = svc.Bool(ctx, models.OptionEnableLogging); err != nil {
		return out, err
	}
	if out.APIURL, err = svc.String(ctx, models.OptionAPIURL); err != nil {
		return out, err
	}
	return out, nil
}

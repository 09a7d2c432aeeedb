package pilitosettings

import (
	"net/http"

	"github.com/dalemusser/pilitosync/internal/app/system/auth"
	"github.com/dalemusser/pilitosync/internal/app/system/options"
	"github.com/dalemusser/pilitosync/internal/app/system/timeouts"
	"github.com/dalemusser/pilitosync/internal/app/system/viewdata"
	"github.com/dalemusser/pilitosync/internal/domain/models"
	"go.uber.org/zap"
)

// ScriptData is handed to the page script as a JSON data block.
type ScriptData struct {
	AjaxURL string `json:"ajaxUrl"`
	Nonce   string `json:"nonce"`
}

// SettingsVM is the view model for the settings screen.
type SettingsVM struct {
	viewdata.BaseVM
	Settings   models.PilitoSettings
	TokenField string
	LogField   string
	URLField   string
	DefaultURL string
	ScriptData ScriptData
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.logger, "pilitosettings.show")
	defer cancel()

	settings, err := Load(ctx, h.opts)
	if err != nil {
		h.errLog.Log(r, "failed to load pilito settings", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	vm, err := h.newVM(r, settings)
	if err != nil {
		h.errLog.Log(r, "failed to mint action nonce", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	switch r.URL.Query().Get("settings-updated") {
	case "true":
		vm.AddNotice(viewdata.NoticeSuccess, MsgSettingsSaved, true)
	case "false":
		vm.AddNotice(viewdata.NoticeError, MsgSaveFailed, true)
	case "partial":
		vm.AddNotice(viewdata.NoticeError, MsgSavePartial, true)
	}

	h.render(w, r, "pilitosettings/show", vm)
}

func (h *Handler) newVM(r *http.Request, settings models.PilitoSettings) (SettingsVM, error) {
	var sessionID string
	if u, ok := auth.CurrentUser(r); ok {
		sessionID = u.SessionToken()
	}
	nonce, err := h.nonces.Create(ActionTestConnection, sessionID)
	if err != nil {
		return SettingsVM{}, err
	}

	vm := SettingsVM{
		BaseVM:     viewdata.ForScreen(r, h.menu, ScreenID),
		Settings:   settings,
		TokenField: models.OptionAPIToken,
		LogField:   models.OptionEnableLogging,
		URLField:   models.OptionAPIURL,
		DefaultURL: models.DefaultPilitoAPIURL,
		ScriptData: ScriptData{AjaxURL: AjaxURL, Nonce: nonce},
	}
	vm.Title = PageTitle
	return vm, nil
}

// save persists the submitted form. An unchecked logging box is absent
// from the form and is stored as false.
func (h *Handler) save(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.logger, "pilitosettings.save")
	defer cancel()

	var actor string
	if u, ok := auth.CurrentUser(r); ok {
		actor = u.LoginID
	}

	// Without a prior snapshot the audit event records no changed fields.
	before, err := Load(ctx, h.opts)
	diff := err == nil
	if err != nil {
		h.errLog.Log(r, "failed to load pilito settings before save", err)
	}

	fields := []struct {
		name  string
		value any
	}{
		{models.OptionAPIToken, r.PostForm.Get(models.OptionAPIToken)},
		{models.OptionEnableLogging, r.PostForm.Get(models.OptionEnableLogging)},
		{models.OptionAPIURL, r.PostForm.Get(models.OptionAPIURL)},
	}
	for _, f := range fields {
		if _, ok := h.opts.Registry().Lookup(f.name); !ok {
			h.errLog.LogWithFields(r, "pilito option not registered", options.ErrUnknownOption, zap.String("option", f.name))
			http.Redirect(w, r, Path+"?settings-updated=false", http.StatusSeeOther)
			return
		}
	}

	var changed []string
	for i, f := range fields {
		stored, err := h.opts.Set(ctx, f.name, f.value, actor)
		if err != nil {
			h.errLog.LogWithFields(r, "failed to save pilito option", err, zap.String("option", f.name))
			outcome := "false"
			if i > 0 {
				outcome = "partial"
				h.audit.SettingsUpdated(ctx, r, actor, changed)
			}
			http.Redirect(w, r, Path+"?settings-updated="+outcome, http.StatusSeeOther)
			return
		}
		if diff && differs(before, f.name, stored) {
			changed = append(changed, f.name)
		}
	}

	h.audit.SettingsUpdated(ctx, r, actor, changed)

	http.Redirect(w, r, Path+"?settings-updated=true", http.StatusSeeOther)
}

func differs(before models.PilitoSettings, name string, stored any) bool {
	switch name {
	case models.OptionAPIToken:
		return stored != before.APIToken
	case models.OptionEnableLogging:
		return stored != before.LoggingEnabled
	case models.OptionAPIURL:
		return stored != before.APIURL
	}
	return false
}

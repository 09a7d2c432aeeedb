package pilitosettings

import (
	"github.com/dalemusser/pilitosync/internal/app/resources"
	"github.com/dalemusser/pilitosync/internal/app/system/adminmenu"
)

// Asset handles.
const (
	StyleHandle  = "pilito-admin"
	ScriptHandle = "pilito-admin-js"
	AjaxHandle   = "admin-ajax"
)

// AjaxHelper is the shared DOM/AJAX helper the page script depends on.
var AjaxHelper = adminmenu.Asset{
	Handle:  AjaxHandle,
	Kind:    adminmenu.Script,
	Src:     resources.AdminAjaxJS,
	Version: resources.AssetVersion,
}

// EnqueueAssets returns the settings screen's stylesheet and script when
// screenID is the settings screen, and nothing otherwise.
func EnqueueAssets(screenID string) []adminmenu.Asset {
	if screenID != ScreenID {
		return nil
	}
	return []adminmenu.Asset{
		{
			Handle:  StyleHandle,
			Kind:    adminmenu.Style,
			Src:     resources.PilitoAdminCSS,
			Version: resources.AssetVersion,
		},
		{
			Handle:  ScriptHandle,
			Kind:    adminmenu.Script,
			Src:     resources.PilitoAdminJS,
			Deps:    []string{AjaxHandle},
			Version: resources.AssetVersion,
		},
	}
}

// internal/app/system/viewdata/viewdata.go
package viewdata

import (
	"net/http"

	"github.com/dalemusser/pilitosync/internal/app/system/adminmenu"
	"github.com/dalemusser/pilitosync/internal/app/system/auth"
	"github.com/dalemusser/pilitosync/internal/app/system/authz"
	"github.com/dalemusser/waffle/pantry/httpnav"
	"github.com/gorilla/csrf"
)

// SiteName is shown in the console header.
const SiteName = "Pilito Sync"

// Notice kinds.
const (
	NoticeSuccess = "success"
	NoticeError   = "error"
	NoticeInfo    = "info"
)

// Notice is a banner shown above page content. Dismissible notices are
// hidden by the admin script a few seconds after load.
type Notice struct {
	Kind        string
	Message     string
	Dismissible bool
}

// MenuItem is one entry in the console navigation.
type MenuItem struct {
	Title  string
	Path   string
	Active bool
}

// AssetVM is an enqueued stylesheet or script ready for the layout.
type AssetVM struct {
	Handle string
	URL    string
}

// BaseVM contains common fields for all view models.
// Embed it in feature view models.
type BaseVM struct {
	SiteName string

	IsLoggedIn bool
	UserID     string
	LoginID    string
	Role       string
	UserName   string

	Title       string
	BackURL     string
	CurrentPath string
	ScreenID    string

	CSRFToken string

	Menu    []MenuItem
	Styles  []AssetVM
	Scripts []AssetVM
	Notices []Notice
}

// New builds a BaseVM from the request's user and CSRF context.
func New(r *http.Request) BaseVM {
	role, name, userID, signedIn := authz.UserCtx(r)

	vm := BaseVM{
		SiteName:    SiteName,
		IsLoggedIn:  signedIn,
		Role:        role,
		UserName:    name,
		CurrentPath: httpnav.CurrentPath(r),
		BackURL:     httpnav.ResolveBackURL(r, "/"),
		CSRFToken:   csrf.Token(r),
	}
	if signedIn {
		vm.UserID = userID.Hex()
		if u, ok := auth.CurrentUser(r); ok {
			vm.LoginID = u.LoginID
		}
	}
	return vm
}

// ForScreen builds a BaseVM for an admin page: the menu shows the pages
// the user may open and the assets enqueued for screenID are attached.
func ForScreen(r *http.Request, reg *adminmenu.Registry, screenID string) BaseVM {
	vm := New(r)
	vm.ScreenID = screenID

	for _, p := range reg.Pages() {
		if p.Capability != "" && !authz.HasCapability(r, p.Capability) {
			continue
		}
		title := p.MenuTitle
		if title == "" {
			title = p.Title
		}
		vm.Menu = append(vm.Menu, MenuItem{Title: title, Path: p.Path, Active: p.ScreenID() == screenID})
	}

	for _, a := range reg.Assets(screenID) {
		item := AssetVM{Handle: a.Handle, URL: a.URL()}
		if a.Kind == adminmenu.Style {
			vm.Styles = append(vm.Styles, item)
		} else {
			vm.Scripts = append(vm.Scripts, item)
		}
	}
	return vm
}

// AddNotice appends a notice to the page.
func (vm *BaseVM) AddNotice(kind, message string, dismissible bool) {
	vm.Notices = append(vm.Notices, Notice{Kind: kind, Message: message, Dismissible: dismissible})
}

// internal/app/resources/resources.go
package resources

import (
	"embed"
	"io/fs"
	"net/http"
	"strings"
	"sync"

	"github.com/dalemusser/waffle/pantry/templates"
)

// AssetVersion is appended as ?ver= to enqueued assets. Bump it when the
// embedded CSS or JS changes.
const AssetVersion = "1.2.0"

// Paths of the embedded assets, as served under /assets/.
const (
	AdminCSS       = "/assets/css/admin.css"
	AdminAjaxJS    = "/assets/js/admin-ajax.js"
	PilitoAdminCSS = "/assets/css/pilito-admin.css"
	PilitoAdminJS  = "/assets/js/pilito-admin.js"
)

// Shared templates: layout, menu and notices.
//
//go:embed templates/*.gohtml
var sharedFS embed.FS

//go:embed assets/css/*.css assets/js/*.js
var assetsFS embed.FS

var registerOnce sync.Once

// LoadSharedTemplates registers the shared templates with the template
// engine. Call it before the engine boots.
func LoadSharedTemplates() {
	registerOnce.Do(func() {
		templates.Register(templates.Set{
			Name:     "shared",
			FS:       sharedFS,
			Patterns: []string{"templates/*.gohtml"},
		})
	})
}

// Assets returns the embedded assets filesystem rooted at assets/.
func Assets() fs.FS {
	sub, err := fs.Sub(assetsFS, "assets")
	if err != nil {
		panic("failed to get assets subdirectory: " + err.Error())
	}
	return sub
}

// AssetsHandler serves the embedded assets with prefix stripped from the
// request path. Versioned requests are cacheable for a year.
func AssetsHandler(prefix string) http.Handler {
	fileServer := http.FileServer(http.FS(Assets()))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, prefix), "/")
		if path == "" || strings.HasSuffix(path, "/") {
			http.NotFound(w, r)
			return
		}

		if r.URL.Query().Get("ver") != "" {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		} else {
			w.Header().Set("Cache-Control", "no-cache")
		}

		r.URL.Path = "/" + path
		fileServer.ServeHTTP(w, r)
	})
}

package resources

import (
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAssets_Embedded(t *testing.T) {
	for _, p := range []string{AdminCSS, AdminAjaxJS, PilitoAdminCSS, PilitoAdminJS} {
		name := strings.TrimPrefix(p, "/assets/")
		if _, err := fs.Stat(Assets(), name); err != nil {
			t.Errorf("asset %s not embedded: %v", name, err)
		}
	}
}

func TestAssetsHandler(t *testing.T) {
	h := AssetsHandler("/assets")

	tests := []struct {
		name      string
		path      string
		wantCode  int
		wantCache string
		wantBody  string
	}{
		{"versioned script", PilitoAdminJS + "?ver=" + AssetVersion, http.StatusOK, "public, max-age=31536000, immutable", "test_connection"},
		{"unversioned style", PilitoAdminCSS, http.StatusOK, "no-cache", "pilito-result"},
		{"missing file", "/assets/js/nope.js", http.StatusNotFound, "", ""},
		{"directory", "/assets/js/", http.StatusNotFound, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCache != "" && rec.Header().Get("Cache-Control") != tt.wantCache {
				t.Errorf("Cache-Control = %q, want %q", rec.Header().Get("Cache-Control"), tt.wantCache)
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body does not contain %q", tt.wantBody)
			}
		})
	}
}

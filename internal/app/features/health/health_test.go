package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/pilitosync/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

type downDB struct{}

func (downDB) Ping(context.Context, *readpref.ReadPref) error { return errors.New("no servers") }

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestHandler_Check(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := NewHandler(db.Client(), func(context.Context) (bool, error) { return false, nil }, zap.NewNop())

	rec := httptest.NewRecorder()
	h.Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Check() status = %d, want %d", rec.Code, http.StatusOK)
	}
	resp := decode(t, rec)
	if resp.Status != "ok" || resp.Services["mongodb"] != "ok" {
		t.Errorf("response = %+v", resp)
	}
	if resp.Services["pilito_token"] != "missing" {
		t.Errorf("pilito_token = %q, want missing", resp.Services["pilito_token"])
	}
}

func TestHandler_Check_Degraded(t *testing.T) {
	h := NewHandler(downDB{}, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	h.Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	resp := decode(t, rec)
	if resp.Status != "degraded" || resp.Services["mongodb"] != "unavailable" {
		t.Errorf("response = %+v", resp)
	}
	if _, ok := resp.Services["pilito_token"]; ok {
		t.Error("pilito_token reported without a check")
	}
}

func TestHandler_Check_TokenStates(t *testing.T) {
	tests := []struct {
		name  string
		check TokenCheck
		want  string
	}{
		{"configured", func(context.Context) (bool, error) { return true, nil }, "configured"},
		{"error", func(context.Context) (bool, error) { return false, errors.New("x") }, "unknown"},
	}
	db := testutil.SetupTestDB(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(db.Client(), tt.check, zap.NewNop())
			rec := httptest.NewRecorder()
			h.Check(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			if got := decode(t, rec).Services["pilito_token"]; got != tt.want {
				t.Errorf("pilito_token = %q, want %q", got, tt.want)
			}
			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want 200", rec.Code)
			}
		})
	}
}

func TestHandler_Ready(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := NewHandler(db.Client(), nil, zap.NewNop())

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Ready() status = %d, want 200", rec.Code)
	}

	h = NewHandler(downDB{}, nil, zap.NewNop())
	rec = httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Ready() with db down status = %d, want 503", rec.Code)
	}
}

func TestHandler_Live(t *testing.T) {
	h := NewHandler(downDB{}, nil, zap.NewNop())
	rec := httptest.NewRecorder()
	h.Live(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Live() status = %d, want 200", rec.Code)
	}
	var body map[string]string
	_ = json.NewDecoder(rec.Body).Decode(&body)
	if body["status"] != "alive" {
		t.Errorf("body = %v", body)
	}
}

func TestMountRootEndpoints(t *testing.T) {
	h := NewHandler(downDB{}, nil, zap.NewNop())
	r := chi.NewRouter()
	MountRootEndpoints(r, h)

	for path, want := range map[string]int{
		"/ready":  http.StatusServiceUnavailable,
		"/readyz": http.StatusServiceUnavailable,
		"/livez":  http.StatusOK,
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != want {
			t.Errorf("%s status = %d, want %d", path, rec.Code, want)
		}
	}
}

func TestRoutes(t *testing.T) {
	h := NewHandler(downDB{}, nil, zap.NewNop())
	rec := httptest.NewRecorder()
	Routes(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/live status = %d, want 200", rec.Code)
	}
}

package auditlog

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/pilitosync/internal/app/store/audit"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type memSink struct {
	events []audit.Event
	err    error
}

func (m *memSink) Log(_ context.Context, e audit.Event) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, e)
	return nil
}

func TestLogger_Modes(t *testing.T) {
	tests := []struct {
		mode      string
		wantSink  int
		wantLines int
	}{
		{ModeAll, 1, 1},
		{ModeDB, 1, 0},
		{ModeLog, 0, 1},
		{ModeOff, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			core, logs := observer.New(zap.InfoLevel)
			sink := &memSink{}
			l := New(sink, zap.New(core), Config{Auth: tt.mode, Admin: tt.mode})

			l.SettingsUpdated(context.Background(), httptest.NewRequest("POST", "/", nil), "maya", []string{"a", "b"})

			if len(sink.events) != tt.wantSink {
				t.Errorf("stored %d events, want %d", len(sink.events), tt.wantSink)
			}
			if n := logs.FilterMessage("audit event").Len(); n != tt.wantLines {
				t.Errorf("logged %d lines, want %d", n, tt.wantLines)
			}
		})
	}
}

func TestLogger_SettingsUpdatedFields(t *testing.T) {
	sink := &memSink{}
	l := New(sink, zap.NewNop(), Config{Admin: ModeDB})
	l.SettingsUpdated(context.Background(), httptest.NewRequest("POST", "/", nil), "maya", []string{"x", "y"})

	e := sink.events[0]
	if e.Category != audit.CategoryAdmin || e.EventType != audit.EventSettingsUpdated {
		t.Errorf("event = %+v", e)
	}
	if e.LoginID != "maya" || e.Details["changed"] != "x,y" {
		t.Errorf("event = %+v", e)
	}
}

func TestLogger_LoginFailedIsWarning(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := New(nil, zap.New(core), Config{Auth: ModeLog})
	l.LoginFailed(context.Background(), httptest.NewRequest("POST", "/login", nil),
		audit.EventLoginFailedWrongPassword, "maya", "wrong password", nil)

	entries := logs.All()
	if len(entries) != 1 || entries[0].Level != zap.WarnLevel {
		t.Fatalf("entries = %+v, want one warning", entries)
	}
	if entries[0].ContextMap()["failure_reason"] != "wrong password" {
		t.Errorf("fields = %v", entries[0].ContextMap())
	}
}

func TestLogger_SinkError(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := New(&memSink{err: errors.New("down")}, zap.New(core), Config{Auth: ModeDB})
	l.Logout(context.Background(), httptest.NewRequest("POST", "/logout", nil), "bad-hex", "maya")

	if logs.FilterMessage("failed to store audit event").Len() != 1 {
		t.Error("sink failure was not logged")
	}
}

func TestLogger_Nil(t *testing.T) {
	var l *Logger
	l.Logout(context.Background(), httptest.NewRequest("POST", "/logout", nil), "", "maya")
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	if got := clientIP(r); got != "10.0.0.1" {
		t.Errorf("clientIP() = %q", got)
	}
	r.Header.Del("X-Forwarded-For")
	r.Header.Set("X-Real-IP", "10.0.0.3")
	if got := clientIP(r); got != "10.0.0.3" {
		t.Errorf("clientIP() = %q", got)
	}
}

func TestValidMode(t *testing.T) {
	for _, m := range []string{"all", "db", "log", "off"} {
		if !ValidMode(m) {
			t.Errorf("ValidMode(%q) = false", m)
		}
	}
	if ValidMode("yes") {
		t.Error("ValidMode(\"yes\") = true")
	}
}

package auditlog

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	errorsfeature "github.com/dalemusser/pilitosync/internal/app/features/errors"
	"github.com/dalemusser/pilitosync/internal/app/store/audit"
	"github.com/dalemusser/pilitosync/internal/app/system/adminmenu"
	"github.com/dalemusser/pilitosync/internal/testutil"
	"go.uber.org/zap"
)

type fakeEvents struct {
	events []audit.Event
	total  int64
	err    error
	got    audit.Filter
}

func (f *fakeEvents) Query(_ context.Context, flt audit.Filter) ([]audit.Event, error) {
	f.got = flt
	return f.events, f.err
}

func (f *fakeEvents) Count(context.Context, audit.Filter) (int64, error) {
	return f.total, nil
}

func newHandler(t *testing.T, events *fakeEvents) (*Handler, *ListVM) {
	t.Helper()
	menu := adminmenu.NewRegistry()
	h := NewHandler(events, menu, errorsfeature.NewErrorLogger(zap.NewNop()), zap.NewNop())
	if err := h.Register(); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	var vm ListVM
	h.render = func(w http.ResponseWriter, r *http.Request, name string, data any) {
		if name != "auditlog/list" {
			t.Errorf("rendered %q, want auditlog/list", name)
		}
		vm = data.(ListVM)
	}
	return h, &vm
}

func TestList(t *testing.T) {
	events := &fakeEvents{
		events: []audit.Event{{
			CreatedAt:     time.Now(),
			Category:      audit.CategoryAdmin,
			EventType:     audit.EventConnectionTested,
			LoginID:       "owner",
			FailureReason: "Invalid token",
		}},
		total: 120,
	}
	h, vm := newHandler(t, events)

	req := testutil.NewAuthenticatedRequest(http.MethodGet, "/admin/audit-log?category=admin&login_id=Owner&days=7&page=2", testutil.AdminUser())
	rec := testutil.NewRecorder()
	h.list(rec, req)

	if events.got.Offset != pageSize || events.got.Limit != pageSize {
		t.Errorf("filter paging = %d/%d, want offset %d", events.got.Offset, events.got.Limit, pageSize)
	}
	if events.got.LoginID != "owner" || events.got.Category != audit.CategoryAdmin {
		t.Errorf("filter = %+v", events.got)
	}
	if events.got.Since.IsZero() || time.Since(events.got.Since) < 6*24*time.Hour {
		t.Errorf("Since = %v, want about a week ago", events.got.Since)
	}

	if len(vm.Items) != 1 || vm.Items[0].Reason != "Invalid token" {
		t.Errorf("items = %+v", vm.Items)
	}
	if vm.TotalPages != 3 || !vm.HasPrev || !vm.HasNext || vm.PrevPage != 1 || vm.NextPage != 3 {
		t.Errorf("pagination = %+v", vm)
	}
	if len(vm.EventTypes) != 2 {
		t.Errorf("EventTypes = %v, want the admin events", vm.EventTypes)
	}
	var active bool
	for _, m := range vm.Menu {
		if m.Path == Path && m.Active {
			active = true
		}
	}
	if !active {
		t.Errorf("menu = %+v, want the audit log active", vm.Menu)
	}
}

func TestList_QueryError(t *testing.T) {
	h, _ := newHandler(t, &fakeEvents{err: errors.New("db down")})

	rec := testutil.NewRecorder()
	h.list(rec, testutil.NewAuthenticatedRequest(http.MethodGet, Path, testutil.AdminUser()))
	rec.AssertStatus(t, http.StatusInternalServerError)
}

func TestEventTypesForCategory(t *testing.T) {
	if got := len(eventTypesForCategory("")); got != 8 {
		t.Errorf("all event types = %d, want 8", got)
	}
	if got := eventTypesForCategory("billing"); got != nil {
		t.Errorf("unknown category = %v, want nil", got)
	}
}

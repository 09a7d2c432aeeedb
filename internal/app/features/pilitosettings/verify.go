package pilitosettings

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/dalemusser/pilitosync/internal/app/system/auth"
	"github.com/dalemusser/pilitosync/internal/app/system/authz"
	"github.com/dalemusser/pilitosync/internal/app/system/jsonutil"
	"github.com/dalemusser/pilitosync/internal/app/system/pilito"
	"github.com/dalemusser/pilitosync/internal/app/system/textsanitize"
	"github.com/dalemusser/pilitosync/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// TestConnection serves the test_connection action. The dispatcher has
// already checked the one-time authorization value. Every other outcome is
// answered with an envelope: capability and empty-token failures, API
// rejections, client errors and panics all produce a failure envelope.
func (h *Handler) TestConnection(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.errLog.LogWithFields(r, "test_connection panicked", fmt.Errorf("%v", rec),
				zap.String("action", ActionTestConnection))
			jsonutil.Failure(w, failure(MsgUnexpectedError))
		}
	}()

	if !authz.HasCapability(r, authz.CapManageShop) {
		jsonutil.Failure(w, failure(MsgAccessDenied))
		return
	}

	token := textsanitize.Text(r.PostFormValue("token"))
	if token == "" {
		jsonutil.Failure(w, failure(MsgEnterToken))
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Upstream(), h.logger, "pilito.test_connection")
	defer cancel()

	var actor string
	if u, ok := auth.CurrentUser(r); ok {
		actor = u.LoginID
	}

	res, err := h.client.TestConnection(ctx, token)
	if err != nil {
		h.errLog.LogWithFields(r, "pilito connection test failed", err,
			zap.String("action", ActionTestConnection))
		msg := summarize(err)
		h.audit.ConnectionTested(r.Context(), r, actor, false, msg)
		jsonutil.Failure(w, failure(msg))
		return
	}

	h.audit.ConnectionTested(r.Context(), r, actor, res.Success, res.Message)
	if res.Success {
		jsonutil.Success(w, res)
		return
	}
	jsonutil.Failure(w, res)
}

func failure(msg string) pilito.Result {
	return pilito.Result{Success: false, Message: msg}
}

func summarize(err error) string {
	if errors.Is(err, pilito.ErrBadBaseURL) {
		return MsgBadAPIURL
	}
	return MsgUpstreamError
}

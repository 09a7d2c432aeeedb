package timeouts

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestConfigure(t *testing.T) {
	t.Cleanup(Reset)

	Configure(Config{Upstream: 3 * time.Second})
	if Upstream() != 3*time.Second {
		t.Errorf("Upstream() = %v, want 3s", Upstream())
	}
	if Short() != DefaultShort {
		t.Errorf("Short() = %v, zero field should keep default", Short())
	}

	Reset()
	if Upstream() != DefaultUpstream {
		t.Errorf("Upstream() after Reset = %v", Upstream())
	}
}

func TestWithTimeout_LogsDeadline(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	ctx, cancel := WithTimeout(context.Background(), time.Millisecond, zap.New(core), "options.save")
	<-ctx.Done()
	cancel()

	if logs.Len() != 1 {
		t.Fatalf("logged %d entries, want 1", logs.Len())
	}
	if op := logs.All()[0].ContextMap()["operation"]; op != "options.save" {
		t.Errorf("operation = %v", op)
	}
}

func TestWithTimeout_NoLogWhenCancelledEarly(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	_, cancel := WithTimeout(context.Background(), time.Minute, zap.New(core), "noop")
	cancel()
	if logs.Len() != 0 {
		t.Errorf("logged %d entries, want 0", logs.Len())
	}
}

package tasks_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dalemusser/pilitosync/internal/app/system/tasks"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRunner_StartAndStop(t *testing.T) {
	runner := tasks.New(zap.NewNop())

	var runs atomic.Int32
	runner.Register(tasks.Job{
		Name:     "tick",
		Interval: 20 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	runner.Start(context.Background())
	time.Sleep(70 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := runner.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if runs.Load() < 2 {
		t.Errorf("job ran %d times, want at least 2", runs.Load())
	}
}

func TestRunner_StopTimesOut(t *testing.T) {
	runner := tasks.New(zap.NewNop())

	entered := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	runner.Register(tasks.Job{
		Name:     "stuck",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			close(entered)
			<-release
			return nil
		},
	})

	runner.Start(context.Background())
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := runner.Stop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Stop() error = %v, want DeadlineExceeded", err)
	}
	if got := runner.Running(); len(got) != 1 || got[0] != "stuck" {
		t.Errorf("Running() = %v, want [stuck]", got)
	}
}

func TestRunner_ParentCancelStopsJobs(t *testing.T) {
	runner := tasks.New(zap.NewNop())

	stopped := make(chan struct{})
	runner.Register(tasks.Job{
		Name:     "waiter",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			close(stopped)
			return ctx.Err()
		},
	})

	parent, cancel := context.WithCancel(context.Background())
	runner.Start(parent)
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("job did not observe parent cancellation")
	}
	if err := runner.Stop(context.Background()); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestRunner_LogsFailures(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	runner := tasks.New(zap.New(core))

	done := make(chan struct{})
	runner.Register(tasks.Job{
		Name:     "broken",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			defer close(done)
			return errors.New("boom")
		},
	})
	runner.Start(context.Background())
	<-done
	_ = runner.Stop(context.Background())

	entries := logs.FilterMessage("job failed").All()
	if len(entries) != 1 {
		t.Fatalf("got %d failure logs, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["job"]; got != "broken" {
		t.Errorf("job field = %v, want broken", got)
	}
}

func TestRunner_RunOnce(t *testing.T) {
	runner := tasks.New(zap.NewNop())

	var runs atomic.Int32
	runner.Register(tasks.Job{
		Name:     "manual",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	if err := runner.RunOnce(context.Background(), "manual"); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if runs.Load() != 1 {
		t.Errorf("job ran %d times, want 1", runs.Load())
	}
	if err := runner.RunOnce(context.Background(), "missing"); !errors.Is(err, tasks.ErrUnknownJob) {
		t.Errorf("RunOnce(missing) error = %v, want ErrUnknownJob", err)
	}
}

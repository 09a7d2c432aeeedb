package ratelimit

import (
	"testing"
	"time"

	"github.com/dalemusser/pilitosync/internal/testutil"
)

var testPolicy = Policy{MaxAttempts: 3, Window: 15 * time.Minute, Lockout: 30 * time.Minute}

func TestNew_Defaults(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db, Policy{})
	if got := s.Policy(); got != DefaultPolicy {
		t.Errorf("Policy() = %+v, want %+v", got, DefaultPolicy)
	}
}

func TestStore_EnsureIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db, testPolicy)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := s.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes() error = %v", err)
	}
	if err := s.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes() second call error = %v", err)
	}
}

func TestStore_Check_NoRecord(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db, testPolicy)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	d := s.Check(ctx, "new@example.com")
	if !d.Allowed || d.Remaining != 3 || d.LockedUntil != nil {
		t.Errorf("Check() = %+v, want allowed with 3 remaining", d)
	}
}

func TestStore_RecordFailure_CountsCaseInsensitively(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db, testPolicy)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := s.RecordFailure(ctx, "Owner@Example.com"); err != nil {
		t.Fatalf("RecordFailure() error = %v", err)
	}
	d := s.Check(ctx, " owner@example.COM ")
	if !d.Allowed || d.Remaining != 2 {
		t.Errorf("Check() = %+v, want allowed with 2 remaining", d)
	}
}

func TestStore_RecordFailure_Locks(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db, testPolicy)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	var d Decision
	for i := 0; i < testPolicy.MaxAttempts; i++ {
		var err error
		if d, err = s.RecordFailure(ctx, "locked@example.com"); err != nil {
			t.Fatalf("RecordFailure() error = %v", err)
		}
	}
	if d.Allowed || d.LockedUntil == nil {
		t.Fatalf("final RecordFailure() = %+v, want locked", d)
	}

	d = s.Check(ctx, "locked@example.com")
	if d.Allowed {
		t.Error("Check() allowed a locked login")
	}
	if d.LockedUntil == nil {
		t.Error("Check() LockedUntil = nil for a locked login")
	}
}

func TestStore_LockExpires(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db, testPolicy)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	start := time.Now()
	s.now = func() time.Time { return start }
	for i := 0; i < testPolicy.MaxAttempts; i++ {
		if _, err := s.RecordFailure(ctx, "later@example.com"); err != nil {
			t.Fatalf("RecordFailure() error = %v", err)
		}
	}

	s.now = func() time.Time { return start.Add(testPolicy.Lockout + time.Minute) }
	if d := s.Check(ctx, "later@example.com"); !d.Allowed || d.Remaining != 3 {
		t.Errorf("Check() after lockout = %+v, want allowed with full attempts", d)
	}
}

func TestStore_WindowExpiry_ResetsCounter(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db, testPolicy)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	start := time.Now()
	s.now = func() time.Time { return start }
	_, _ = s.RecordFailure(ctx, "window@example.com")
	_, _ = s.RecordFailure(ctx, "window@example.com")

	s.now = func() time.Time { return start.Add(testPolicy.Window + time.Second) }
	d, err := s.RecordFailure(ctx, "window@example.com")
	if err != nil {
		t.Fatalf("RecordFailure() error = %v", err)
	}
	if !d.Allowed || d.Remaining != 2 {
		t.Errorf("RecordFailure() after window = %+v, want a fresh count", d)
	}
}

func TestStore_Clear(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db, testPolicy)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, _ = s.RecordFailure(ctx, "clear@example.com")
	if err := s.Clear(ctx, "CLEAR@example.com"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	a, err := s.Get(ctx, "clear@example.com")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if a != nil {
		t.Errorf("Get() = %+v after Clear, want nil", a)
	}
}

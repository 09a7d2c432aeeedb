// internal/app/store/ratelimit/store.go
package ratelimit

// Terminology: User Identifiers
//   - LoginID / loginID / login_id: The human-readable string users type to log in

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/pilitosync/internal/app/system/normalize"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Policy controls how many failed sign-ins are tolerated.
type Policy struct {
	MaxAttempts int           // failures within Window before lockout
	Window      time.Duration // counting window
	Lockout     time.Duration // how long a locked login_id stays locked
}

// DefaultPolicy allows five failures per 15 minutes and locks for 30 minutes.
var DefaultPolicy = Policy{MaxAttempts: 5, Window: 15 * time.Minute, Lockout: 30 * time.Minute}

// Attempt tracks failed sign-ins for one login_id.
type Attempt struct {
	LoginID     string     `bson:"_id"`
	Failures    int        `bson:"failures"`
	WindowStart time.Time  `bson:"window_start"`
	LockedUntil *time.Time `bson:"locked_until,omitempty"`
	LastFailure time.Time  `bson:"last_failure"` // TTL anchor
}

// Decision is the outcome of Check.
type Decision struct {
	Allowed     bool
	Remaining   int // attempts left before lockout; 0 when locked
	LockedUntil *time.Time
}

// Store persists failed sign-in counters in the login_attempts collection.
type Store struct {
	c      *mongo.Collection
	policy Policy
	now    func() time.Time
}

// New creates a Store. A zero-valued field of p falls back to DefaultPolicy.
func New(db *mongo.Database, p Policy) *Store {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultPolicy.MaxAttempts
	}
	if p.Window <= 0 {
		p.Window = DefaultPolicy.Window
	}
	if p.Lockout <= 0 {
		p.Lockout = DefaultPolicy.Lockout
	}
	return &Store{c: db.Collection("login_attempts"), policy: p, now: time.Now}
}

// Policy returns the effective policy.
func (s *Store) Policy() Policy { return s.policy }

// EnsureIndexes expires idle counters a day after the last failure.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "last_failure", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(86400).SetName("idx_login_attempts_ttl"),
	})
	return err
}

// Check reports whether loginID may attempt to sign in. Lookup errors
// fail open so a database hiccup never locks every operator out.
func (s *Store) Check(ctx context.Context, loginID string) Decision {
	a, err := s.get(ctx, loginID)
	if err != nil || a == nil {
		return Decision{Allowed: true, Remaining: s.policy.MaxAttempts}
	}
	now := s.now()
	if a.LockedUntil != nil && now.Before(*a.LockedUntil) {
		return Decision{LockedUntil: a.LockedUntil}
	}
	if now.After(a.WindowStart.Add(s.policy.Window)) {
		return Decision{Allowed: true, Remaining: s.policy.MaxAttempts}
	}
	remaining := s.policy.MaxAttempts - a.Failures
	if remaining <= 0 {
		return Decision{}
	}
	return Decision{Allowed: true, Remaining: remaining}
}

// RecordFailure counts a failed sign-in and reports the resulting decision.
// The failure that reaches MaxAttempts locks the login_id.
func (s *Store) RecordFailure(ctx context.Context, loginID string) (Decision, error) {
	id := normalize.LoginID(loginID)
	now := s.now()

	a, err := s.get(ctx, id)
	if err != nil {
		return Decision{Allowed: true, Remaining: s.policy.MaxAttempts}, err
	}
	if a == nil || now.After(a.WindowStart.Add(s.policy.Window)) {
		a = &Attempt{LoginID: id, WindowStart: now}
	}
	a.Failures++
	a.LastFailure = now
	a.LockedUntil = nil
	if a.Failures >= s.policy.MaxAttempts {
		until := now.Add(s.policy.Lockout)
		a.LockedUntil = &until
	}

	_, err = s.c.ReplaceOne(ctx, bson.M{"_id": id}, a, options.Replace().SetUpsert(true))
	if err != nil {
		return Decision{Allowed: true, Remaining: s.policy.MaxAttempts}, err
	}
	if a.LockedUntil != nil {
		return Decision{LockedUntil: a.LockedUntil}, nil
	}
	return Decision{Allowed: true, Remaining: s.policy.MaxAttempts - a.Failures}, nil
}

// Clear removes the counter after a successful sign-in.
func (s *Store) Clear(ctx context.Context, loginID string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": normalize.LoginID(loginID)})
	return err
}

// Get returns the counter for loginID, or nil when there is none.
func (s *Store) Get(ctx context.Context, loginID string) (*Attempt, error) {
	return s.get(ctx, loginID)
}

func (s *Store) get(ctx context.Context, loginID string) (*Attempt, error) {
	var a Attempt
	err := s.c.FindOne(ctx, bson.M{"_id": normalize.LoginID(loginID)}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

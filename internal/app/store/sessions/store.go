// internal/app/store/sessions/store.go
package sessions

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/pilitosync/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Session end reasons
const (
	EndReasonLogout   = "logout"
	EndReasonDisabled = "user_disabled"
	EndReasonExpired  = "expired"
)

// ErrNotFound is returned when no open session has the given token.
var ErrNotFound = errors.New("session not found")

// Session is the server-side record of one admin console sign-in.
// The cookie carries Token; closing the record revokes the cookie.
type Session struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Token     string             `bson:"token"`
	UserID    primitive.ObjectID `bson:"user_id"`
	LoginID   string             `bson:"login_id"`
	IPAddress string             `bson:"ip_address,omitempty"`
	UserAgent string             `bson:"user_agent,omitempty"`

	LoginAt   time.Time  `bson:"login_at"`
	LogoutAt  *time.Time `bson:"logout_at,omitempty"` // nil while open
	EndReason string     `bson:"end_reason,omitempty"`
	ExpiresAt time.Time  `bson:"expires_at"`
}

// Store keeps session records in the sessions collection.
type Store struct {
	c      *mongo.Collection
	logger *zap.Logger
}

// New creates a session Store.
func New(db *mongo.Database, logger *zap.Logger) *Store {
	return &Store{c: db.Collection("sessions"), logger: logger}
}

// EnsureIndexes creates the token and TTL indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_session_token"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "logout_at", Value: 1}},
			Options: options.Index().SetName("idx_session_user_open"),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_session_ttl"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Open records a new session. LoginAt defaults to now.
func (s *Store) Open(ctx context.Context, sess Session) (Session, error) {
	if sess.ID.IsZero() {
		sess.ID = primitive.NewObjectID()
	}
	if sess.LoginAt.IsZero() {
		sess.LoginAt = time.Now()
	}
	sess.LogoutAt = nil
	sess.EndReason = ""
	if _, err := s.c.InsertOne(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Get returns the open, unexpired session with token.
func (s *Store) Get(ctx context.Context, token string) (*Session, error) {
	var sess Session
	err := s.c.FindOne(ctx, bson.M{
		"token":      token,
		"logout_at":  nil,
		"expires_at": bson.M{"$gt": time.Now()},
	}).Decode(&sess)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// IsActive reports whether token names an open session. It implements
// auth.SessionTracker. Lookup errors other than a missing record are logged
// and treated as active so a database outage does not sign everyone out.
func (s *Store) IsActive(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	_, err := s.Get(ctx, token)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrNotFound):
		return false
	default:
		s.logger.Warn("session lookup failed", zap.Error(err))
		return true
	}
}

// Close ends the session with token. Closing an already closed or unknown
// session is not an error.
func (s *Store) Close(ctx context.Context, token, reason string) error {
	now := time.Now()
	_, err := s.c.UpdateOne(ctx,
		bson.M{"token": token, "logout_at": nil},
		bson.M{"$set": bson.M{"logout_at": now, "end_reason": reason}},
	)
	return err
}

// CloseByUser ends every open session of userID and returns how many were closed.
func (s *Store) CloseByUser(ctx context.Context, userID primitive.ObjectID, reason string) (int64, error) {
	now := time.Now()
	res, err := s.c.UpdateMany(ctx,
		bson.M{"user_id": userID, "logout_at": nil},
		bson.M{"$set": bson.M{"logout_at": now, "end_reason": reason}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// CloseExpired marks open sessions whose expires_at is before now as
// ended with EndReasonExpired. The TTL index deletes them later.
func (s *Store) CloseExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"logout_at": nil, "expires_at": bson.M{"$lt": now}},
		bson.M{"$set": bson.M{"logout_at": now, "end_reason": EndReasonExpired}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// CountOpen counts open, unexpired sessions.
func (s *Store) CountOpen(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{
		"logout_at":  nil,
		"expires_at": bson.M{"$gt": time.Now()},
	})
}

// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SessionExpirer closes tracked sessions past their expiry.
type SessionExpirer interface {
	CloseExpired(ctx context.Context, now time.Time) (int64, error)
}

// AuditPurger deletes audit events older than a cutoff.
type AuditPurger interface {
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// SessionExpiryJob closes sessions whose cookie lifetime has run out so
// the session records show why they ended.
func SessionExpiryJob(s SessionExpirer, logger *zap.Logger) Job {
	return Job{
		Name:     "session-expiry",
		Interval: 15 * time.Minute,
		Run: func(ctx context.Context) error {
			n, err := s.CloseExpired(ctx, time.Now())
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("closed expired sessions", zap.Int64("closed", n))
			}
			return nil
		},
	}
}

// AuditRetentionJob deletes audit events older than retention.
// A non-positive retention keeps events forever and the job is a no-op.
func AuditRetentionJob(p AuditPurger, retention time.Duration, logger *zap.Logger) Job {
	return Job{
		Name:     "audit-retention",
		Interval: 6 * time.Hour,
		Run: func(ctx context.Context) error {
			if retention <= 0 {
				return nil
			}
			n, err := p.Purge(ctx, time.Now().Add(-retention))
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("purged old audit events",
					zap.Int64("deleted", n),
					zap.Duration("retention", retention))
			}
			return nil
		},
	}
}

// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/pilitosync/internal/app/resources"
	"github.com/dalemusser/pilitosync/internal/app/store/audit"
	"github.com/dalemusser/pilitosync/internal/app/store/sessions"
	"github.com/dalemusser/pilitosync/internal/app/system/tasks"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// taskRunner is kept for Shutdown.
var taskRunner *tasks.Runner

// Startup runs once after the schema is ensured and before the handler
// is built. A non-nil error aborts startup.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	resources.LoadSharedTemplates()

	startTaskRunner(appCfg, deps, logger)
	return nil
}

func startTaskRunner(appCfg AppConfig, deps DBDeps, logger *zap.Logger) {
	taskRunner = tasks.New(logger)
	taskRunner.Register(tasks.SessionExpiryJob(sessions.New(deps.MongoDatabase, logger), logger))
	taskRunner.Register(tasks.AuditRetentionJob(audit.New(deps.MongoDatabase), appCfg.AuditLogRetention, logger))
	taskRunner.Start(context.Background())
}

// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/pilitosync/internal/app/store/audit"
	"github.com/dalemusser/pilitosync/internal/app/store/ratelimit"
	"github.com/dalemusser/pilitosync/internal/app/store/sessions"
	"github.com/dalemusser/pilitosync/internal/app/system/indexes"
	"github.com/dalemusser/pilitosync/internal/app/system/seeding"
	"github.com/dalemusser/pilitosync/internal/app/system/validators"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// ConnectDB connects to MongoDB with the configured pool sizes.
// WAFFLE bounds ctx with coreCfg.DBConnectTimeout.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	poolCfg := wafflemongo.DefaultPoolConfig()
	if appCfg.MongoMaxPoolSize > 0 {
		poolCfg.MaxPoolSize = appCfg.MongoMaxPoolSize
	}
	if appCfg.MongoMinPoolSize > 0 {
		poolCfg.MinPoolSize = appCfg.MongoMinPoolSize
	}

	client, err := wafflemongo.ConnectWithPool(ctx, appCfg.MongoURI, appCfg.MongoDatabase, poolCfg)
	if err != nil {
		return DBDeps{}, err
	}

	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase),
		zap.Uint64("max_pool_size", poolCfg.MaxPoolSize),
		zap.Uint64("min_pool_size", poolCfg.MinPoolSize),
	)

	return DBDeps{
		MongoClient:   client,
		MongoDatabase: client.Database(appCfg.MongoDatabase),
	}, nil
}

// EnsureSchema creates collections, validators and indexes, then seeds
// the admin account and option defaults. ctx is bounded by
// coreCfg.IndexBootTimeout.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	db := deps.MongoDatabase

	// Collections first so indexes land on validated collections.
	logger.Info("ensuring collections and validators")
	if err := validators.EnsureAll(ctx, db); err != nil {
		logger.Error("failed to ensure validators", zap.Error(err))
		return err
	}

	logger.Info("ensuring database indexes")
	if err := indexes.EnsureAll(ctx, db); err != nil {
		logger.Error("failed to ensure indexes", zap.Error(err))
		return err
	}
	storeIndexes := []struct {
		name   string
		ensure func(context.Context) error
	}{
		{"sessions", sessions.New(db, logger).EnsureIndexes},
		{"login_attempts", ratelimit.New(db, ratelimit.Policy{}).EnsureIndexes},
		{"audit_logs", audit.New(db).EnsureIndexes},
	}
	for _, s := range storeIndexes {
		if err := s.ensure(ctx); err != nil {
			logger.Error("failed to ensure indexes", zap.String("collection", s.name), zap.Error(err))
			return err
		}
	}

	logger.Info("seeding default data")
	err := seeding.SeedAll(ctx, db, seeding.Config{
		AdminLoginID:  appCfg.SeedAdminLoginID,
		AdminName:     appCfg.SeedAdminName,
		AdminPassword: appCfg.SeedAdminPassword,
		DefaultAPIURL: appCfg.PilitoDefaultAPIURL,
	}, logger)
	if err != nil {
		logger.Error("failed to seed default data", zap.Error(err))
		return err
	}

	logger.Info("database schema ensured successfully")
	return nil
}

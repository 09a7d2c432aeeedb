// internal/app/system/seeding/seeding.go
package seeding

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - LoginID / loginID / login_id: The human-readable string users type to log in

import (
	"context"
	"errors"
	"fmt"

	optionstore "github.com/dalemusser/pilitosync/internal/app/store/options"
	userstore "github.com/dalemusser/pilitosync/internal/app/store/users"
	"github.com/dalemusser/pilitosync/internal/app/system/authutil"
	"github.com/dalemusser/pilitosync/internal/app/system/options"
	"github.com/dalemusser/pilitosync/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Config says what to seed. Empty fields skip their step.
type Config struct {
	AdminLoginID  string
	AdminName     string
	AdminPassword string

	// DefaultAPIURL is written to the Pilito API URL option when no value
	// has been saved yet.
	DefaultAPIURL string
}

// SeedAll seeds the admin account and option defaults. Each step leaves
// existing data untouched.
func SeedAll(ctx context.Context, db *mongo.Database, cfg Config, logger *zap.Logger) error {
	if cfg.AdminLoginID != "" {
		if err := seedAdmin(ctx, userstore.New(db), cfg, logger); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
	}
	if cfg.DefaultAPIURL != "" && cfg.DefaultAPIURL != models.DefaultPilitoAPIURL {
		if err := seedAPIURL(ctx, optionstore.New(db), cfg.DefaultAPIURL, logger); err != nil {
			return fmt.Errorf("seed api url: %w", err)
		}
	}
	return nil
}

// seedAdmin creates the admin account, or promotes an existing account
// with the same login ID to admin.
func seedAdmin(ctx context.Context, users *userstore.Store, cfg Config, logger *zap.Logger) error {
	existing, err := users.GetByLoginID(ctx, cfg.AdminLoginID)
	switch {
	case err == nil:
		if existing.Role == models.RoleAdmin {
			logger.Debug("admin user already configured", zap.String("login_id", existing.LoginID))
			return nil
		}
		if err := users.UpdateRole(ctx, existing.ID, models.RoleAdmin); err != nil {
			return err
		}
		logger.Info("promoted existing user to admin",
			zap.String("login_id", existing.LoginID),
			zap.String("previous_role", existing.Role))
		return nil
	case !errors.Is(err, mongo.ErrNoDocuments):
		return err
	}

	if cfg.AdminPassword == "" {
		return errors.New("seed_admin_password is required to create the admin user")
	}
	if err := authutil.ValidatePassword(cfg.AdminLoginID, cfg.AdminPassword); err != nil {
		return err
	}
	hash, err := authutil.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}

	name := cfg.AdminName
	if name == "" {
		name = "Admin"
	}
	u, err := users.Create(ctx, models.User{
		FullName:     name,
		LoginID:      cfg.AdminLoginID,
		PasswordHash: &hash,
		Role:         models.RoleAdmin,
	})
	if err != nil {
		return err
	}
	logger.Info("created admin user",
		zap.String("login_id", u.LoginID),
		zap.String("user_id", u.ID.Hex()))
	return nil
}

func seedAPIURL(ctx context.Context, store *optionstore.Store, url string, logger *zap.Logger) error {
	_, err := store.Get(ctx, models.OptionAPIURL)
	if err == nil {
		return nil
	}
	if !errors.Is(err, options.ErrNotFound) {
		return err
	}
	if err := store.Set(ctx, models.OptionAPIURL, models.PilitoSettingsGroup, url, "seed"); err != nil {
		return err
	}
	logger.Info("seeded Pilito API URL", zap.String("api_url", url))
	return nil
}

package db

import (
	"context"
	"log/slog"

	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/config"
	"github.com/geocoder89/taskhub/internal/domain/user"
)

type AdminCreator interface {
	CreateUser(ctx context.Context, req user.RegisterRequest, role user.Role) (user.Identity, error)
	FindByEmail(ctx context.Context, email string) (user.Identity, error)
}

// EnsureAdminUser creates the bootstrap admin once. An existing account is left untouched.
func EnsureAdminUser(ctx context.Context, accounts AdminCreator, cfg config.Config, log *slog.Logger) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		log.Info("admin_seed_skipped", "reason", "no admin credentials configured")
		return nil
	}

	id, err := accounts.CreateUser(ctx, user.RegisterRequest{
		Username: cfg.AdminUsername,
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
	}, user.RoleAdmin)

	if err != nil {
		if apperr.IsKind(err, apperr.KindDuplicateKey) {
			return checkExistingAdmin(ctx, accounts, cfg, log)
		}
		return err
	}

	log.Info("admin_seeded", "user_id", id.ID, "email", id.Email)

	return nil
}

// checkExistingAdmin warns when the seed collided with an account that is not an admin,
// which leaves the deployment without one.
func checkExistingAdmin(ctx context.Context, accounts AdminCreator, cfg config.Config, log *slog.Logger) error {
	existing, err := accounts.FindByEmail(ctx, cfg.AdminEmail)
	switch {
	case apperr.IsKind(err, apperr.KindNotFound):
		log.Warn("admin_seed_conflict", "reason", "username already taken by another account",
			"username", cfg.AdminUsername, "email", cfg.AdminEmail)
		return nil
	case err != nil:
		return err
	case !existing.IsAdmin():
		log.Warn("admin_seed_conflict", "reason", "account exists without admin role",
			"user_id", existing.ID, "email", existing.Email)
		return nil
	}

	log.Debug("admin_seed_exists", "user_id", existing.ID, "email", existing.Email)

	return nil
}

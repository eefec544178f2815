package identity

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/smartwaste/smartwaste-api/apperrors"
	"github.com/smartwaste/smartwaste-api/models"
)

// Enforcer keeps the collector capability in step with collector profiles.
// It only ever adds the capability.
type Enforcer struct {
	users    UserStore
	profiles ProfileStore
}

// NewEnforcer returns an Enforcer over the given stores
func NewEnforcer(users UserStore, profiles ProfileStore) *Enforcer {
	return &Enforcer{users: users, profiles: profiles}
}

// Enforce grants user the collector capability when a profile exists for it.
// user is updated in place.
func (e *Enforcer) Enforce(ctx context.Context, user *models.User) error {
	if user.HasRole(models.RoleCollector) {
		return nil
	}
	_, err := e.profiles.FindByUserID(ctx, user.ID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up collector profile: %w", err)
	}
	if err := e.users.AddRole(ctx, user.ID, models.RoleCollector); err != nil {
		return fmt.Errorf("failed to add collector role: %w", err)
	}
	user.Roles = append(user.Roles, models.RoleCollector)
	zap.S().Infow("synchronized collector role", "userId", user.ID.Hex())
	return nil
}

// SyncAll runs the enforcement over every collector profile and returns how
// many identities were updated. Profiles whose identity is gone are skipped.
func (e *Enforcer) SyncAll(ctx context.Context) (int, error) {
	profiles, err := e.profiles.FindAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list collector profiles: %w", err)
	}

	updated := 0
	for _, p := range profiles {
		user, err := e.users.FindByID(ctx, p.UserID)
		if errors.Is(err, apperrors.ErrNotFound) {
			zap.S().Warnw("collector profile without user", "collectorId", p.ID.Hex(), "userId", p.UserID.Hex())
			continue
		}
		if err != nil {
			return updated, err
		}
		if user.HasRole(models.RoleCollector) {
			continue
		}
		if err := e.users.AddRole(ctx, user.ID, models.RoleCollector); err != nil {
			return updated, fmt.Errorf("failed to add collector role: %w", err)
		}
		updated++
	}
	zap.S().Infow("collector role sync finished", "profiles", len(profiles), "updated", updated)
	return updated, nil
}

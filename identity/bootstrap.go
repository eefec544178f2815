package identity

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/smartwaste/smartwaste-api/apperrors"
	"github.com/smartwaste/smartwaste-api/models"
)

// AdminAccount describes the administrator created at startup
type AdminAccount struct {
	Username string
	Email    string
	Password string
	Phone    string
}

// EnsureAdmin creates the administrator account unless an account with the
// same username or email exists. Without a password nothing is created.
func EnsureAdmin(ctx context.Context, users UserStore, acct AdminAccount) (*models.User, error) {
	for _, login := range []string{acct.Username, acct.Email} {
		if login == "" {
			continue
		}
		existing, err := users.FindByLogin(ctx, login)
		if err == nil {
			zap.S().Debugw("admin account present", "userId", existing.ID.Hex())
			return existing, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
	}
	if acct.Password == "" {
		zap.S().Warnw("ADMIN_PASSWORD not set, skipping admin bootstrap", "username", acct.Username)
		return nil, nil
	}
	if acct.Username == "" {
		return nil, fmt.Errorf("admin username is required: %w", apperrors.ErrValidation)
	}

	hash, err := hashPassword(acct.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username: acct.Username,
		FullName: "Administrator",
		Email:    acct.Email,
		Phone:    acct.Phone,
		Password: hash,
		Roles:    []string{models.RoleAdmin},
	}
	if _, err := users.InsertOne(ctx, user); err != nil {
		return nil, err
	}
	zap.S().Infow("admin account created", "userId", user.ID.Hex(), "username", user.Username)
	return user, nil
}

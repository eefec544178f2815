package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/smartwaste/smartwaste-api/apperrors"
	"github.com/smartwaste/smartwaste-api/models"
)

// Registration is a self-service sign up
type Registration struct {
	Username         string
	Password         string
	FullName         string
	Email            string
	Phone            string
	Role             string
	TwoFactorEnabled bool
	TwoFactorMethod  string
	VehicleNumber    string
	VehicleType      string
}

// Accounts registers and authenticates identities
type Accounts struct {
	users    UserStore
	tx       Transactor
	enforcer *Enforcer
}

// NewAccounts returns an Accounts service
func NewAccounts(users UserStore, tx Transactor, enforcer *Enforcer) *Accounts {
	return &Accounts{users: users, tx: tx, enforcer: enforcer}
}

// Register creates a requester, or a collector together with its profile.
// The administrator capability cannot be self-assigned.
func (a *Accounts) Register(ctx context.Context, reg Registration) (*models.User, error) {
	if strings.TrimSpace(reg.Username) == "" || reg.Password == "" {
		return nil, fmt.Errorf("username and password are required: %w", apperrors.ErrValidation)
	}
	if reg.Email == "" && reg.Phone == "" {
		return nil, fmt.Errorf("provide either email or phone: %w", apperrors.ErrValidation)
	}
	// codes only go out by email
	if reg.TwoFactorEnabled && reg.Email == "" {
		return nil, fmt.Errorf("two-factor authentication needs an email address: %w", apperrors.ErrValidation)
	}
	if reg.TwoFactorEnabled && reg.TwoFactorMethod == "phone" {
		return nil, fmt.Errorf("SMS delivery is not configured, use the email method: %w", apperrors.ErrValidation)
	}
	if err := ensureUnique(ctx, a.users, reg.Username, reg.Email, reg.Phone); err != nil {
		return nil, err
	}

	hash, err := hashPassword(reg.Password)
	if err != nil {
		return nil, err
	}
	method := reg.TwoFactorMethod
	if method == "" && reg.Email != "" {
		method = "email"
	} else if method == "" {
		method = "phone"
	}
	user := &models.User{
		Username:         reg.Username,
		FullName:         reg.FullName,
		Email:            reg.Email,
		Phone:            reg.Phone,
		Password:         hash,
		Roles:            []string{models.RoleResident},
		TwoFactorEnabled: reg.TwoFactorEnabled,
		TwoFactorMethod:  method,
	}

	if reg.Role == models.RoleCollector {
		user.Roles = []string{models.RoleCollector}
		profile := &models.CollectorProfile{VehicleNumber: reg.VehicleNumber, VehicleType: reg.VehicleType, IsAvailable: true}
		if err := a.tx.CreateCollector(ctx, user, profile); err != nil {
			return nil, err
		}
	} else {
		if _, err := a.users.InsertOne(ctx, user); err != nil {
			return nil, err
		}
	}
	zap.S().Infow("user registered", "userId", user.ID.Hex(), "roles", user.Roles)

	if err := a.enforcer.Enforce(ctx, user); err != nil {
		zap.S().Errorw("failed to enforce collector role", "userId", user.ID.Hex(), "error", err)
	}
	return user, nil
}

// Authenticate checks a username, email or phone and password pair
func (a *Accounts) Authenticate(ctx context.Context, login, password string) (*models.User, error) {
	if login == "" || password == "" {
		return nil, fmt.Errorf("login and password are required: %w", apperrors.ErrValidation)
	}
	user, err := a.users.FindByLogin(ctx, login)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("invalid credentials: %w", apperrors.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, fmt.Errorf("invalid credentials: %w", apperrors.ErrUnauthorized)
	}

	if err := a.enforcer.Enforce(ctx, user); err != nil {
		zap.S().Errorw("failed to enforce collector role", "userId", user.ID.Hex(), "error", err)
	}
	return user, nil
}

// Me reloads the identity for a "who am I" request
func (a *Accounts) Me(ctx context.Context, user models.User) (*models.User, error) {
	fresh, err := a.users.FindByID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if err := a.enforcer.Enforce(ctx, fresh); err != nil {
		zap.S().Errorw("failed to enforce collector role", "userId", fresh.ID.Hex(), "error", err)
	}
	return fresh, nil
}

// ensureUnique fails with a conflict when any non-empty handle is taken
func ensureUnique(ctx context.Context, users UserStore, handles ...string) error {
	for _, h := range handles {
		if h == "" {
			continue
		}
		_, err := users.FindByLogin(ctx, h)
		if err == nil {
			return fmt.Errorf("%q is already registered: %w", h, apperrors.ErrConflict)
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

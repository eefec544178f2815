package identity

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/smartwaste/smartwaste-api/apperrors"
	"github.com/smartwaste/smartwaste-api/models"
	"github.com/smartwaste/smartwaste-api/notify"
)

const (
	// CodeTTL is how long a one-time code stays valid
	CodeTTL = 5 * time.Minute
	// ResendCooldown is the minimum gap between two codes
	ResendCooldown = 60 * time.Second
)

// TwoFactor issues and checks one-time codes
type TwoFactor struct {
	users  UserStore
	sender notify.CodeSender
	now    func() time.Time
}

// NewTwoFactor returns a TwoFactor delivering codes through sender
func NewTwoFactor(users UserStore, sender notify.CodeSender) *TwoFactor {
	return &TwoFactor{users: users, sender: sender, now: time.Now}
}

// Required reports whether user must pass a code challenge on login
func Required(user models.User) bool {
	return user.TwoFactorEnabled && (user.HasRole(models.RoleResident) || user.HasRole(models.RoleCollector))
}

// Issue stores a fresh code for user and sends it. Delivery failures are
// logged; the code stays valid.
func (t *TwoFactor) Issue(ctx context.Context, user models.User) error {
	code, err := newCode()
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash code: %w", err)
	}
	now := t.now()
	if err := t.users.SetTwoFactorCode(ctx, user.ID, string(hash), now.Add(CodeTTL), now); err != nil {
		return err
	}
	if err := t.sender.SendCode(ctx, notify.Recipient{Name: user.FullName, Email: user.Email}, code); err != nil {
		zap.S().Errorw("failed to send verification code", "userId", user.ID.Hex(), "error", err)
	}
	return nil
}

// Resend issues a new code unless the last one went out too recently
func (t *TwoFactor) Resend(ctx context.Context, userID primitive.ObjectID) error {
	user, err := t.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.TwoFactorEnabled {
		return fmt.Errorf("two-factor authentication is not enabled: %w", apperrors.ErrValidation)
	}
	if user.TwoFactorLastSent != nil {
		if wait := ResendCooldown - t.now().Sub(*user.TwoFactorLastSent); wait > 0 {
			return fmt.Errorf("retry in %ds: %w", int(wait.Seconds()+0.999), apperrors.ErrRateLimited)
		}
	}
	return t.Issue(ctx, *user)
}

// Verify checks code against the pending challenge and clears it on success
func (t *TwoFactor) Verify(ctx context.Context, userID primitive.ObjectID, code string) (*models.User, error) {
	user, err := t.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorCode == "" || user.TwoFactorExpires == nil {
		return nil, fmt.Errorf("no pending verification: %w", apperrors.ErrValidation)
	}
	if t.now().After(*user.TwoFactorExpires) {
		return nil, fmt.Errorf("verification code: %w", apperrors.ErrExpired)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.TwoFactorCode), []byte(code)) != nil {
		return nil, fmt.Errorf("invalid code: %w", apperrors.ErrUnauthorized)
	}
	if err := t.users.ClearTwoFactorCode(ctx, user.ID); err != nil {
		return nil, err
	}
	user.TwoFactorCode = ""
	user.TwoFactorExpires = nil
	return user, nil
}

// newCode returns a random six digit code
func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/smartwaste/smartwaste-api/apperrors"
	"github.com/smartwaste/smartwaste-api/models"
)

// NewCollector is an administrator-created collector account
type NewCollector struct {
	Username      string
	Password      string
	FullName      string
	Email         string
	Phone         string
	VehicleNumber string
	VehicleType   string
}

// Admin performs the administrator operations on identities
type Admin struct {
	users    UserStore
	profiles ProfileStore
	tx       Transactor
}

// NewAdmin returns an Admin service
func NewAdmin(users UserStore, profiles ProfileStore, tx Transactor) *Admin {
	return &Admin{users: users, profiles: profiles, tx: tx}
}

// ListUsers returns one page of identities, optionally narrowed to a role
func (a *Admin) ListUsers(ctx context.Context, role string, limit, page int) ([]models.User, error) {
	switch role {
	case "", models.RoleResident, models.RoleCollector, models.RoleAdmin:
	default:
		return nil, fmt.Errorf("unknown role %q: %w", role, apperrors.ErrValidation)
	}
	return a.users.List(ctx, role, limit, page)
}

// DeleteIdentity removes an identity with everything that depends on it.
// Administrators cannot be deleted. A collector's profile goes with it and its
// active tasks return to pending; a requester's bookings and reports are
// deleted. Nothing is removed unless all of it is.
func (a *Admin) DeleteIdentity(ctx context.Context, id primitive.ObjectID) error {
	user, err := a.users.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if user.HasRole(models.RoleAdmin) {
		return fmt.Errorf("cannot delete an admin user: %w", apperrors.ErrForbidden)
	}

	plan := models.DeletionPlan{
		UserID:         user.ID,
		DeleteRequests: user.HasRole(models.RoleResident),
	}
	profile, err := a.profiles.FindByUserID(ctx, user.ID)
	switch {
	case err == nil:
		plan.CollectorProfileID = &profile.ID
	case !errors.Is(err, apperrors.ErrNotFound):
		return fmt.Errorf("failed to look up collector profile: %w", err)
	}

	if err := a.tx.DeleteIdentity(ctx, plan); err != nil {
		return err
	}
	zap.S().Infow("user deleted",
		"userId", id.Hex(),
		"collectorProfile", plan.CollectorProfileID != nil,
		"requestsDeleted", plan.DeleteRequests,
	)
	return nil
}

// CreateCollector creates a collector identity and its profile together
func (a *Admin) CreateCollector(ctx context.Context, nc NewCollector) (*models.User, *models.CollectorProfile, error) {
	if strings.TrimSpace(nc.Username) == "" || nc.Password == "" {
		return nil, nil, fmt.Errorf("username and password are required: %w", apperrors.ErrValidation)
	}
	if strings.TrimSpace(nc.VehicleNumber) == "" {
		return nil, nil, fmt.Errorf("vehicle number is required: %w", apperrors.ErrValidation)
	}
	if err := ensureUnique(ctx, a.users, nc.Username, nc.Email, nc.Phone); err != nil {
		return nil, nil, err
	}
	hash, err := hashPassword(nc.Password)
	if err != nil {
		return nil, nil, err
	}

	user := &models.User{
		Username: nc.Username,
		FullName: nc.FullName,
		Email:    nc.Email,
		Phone:    nc.Phone,
		Password: hash,
		Roles:    []string{models.RoleCollector},
	}
	profile := &models.CollectorProfile{
		VehicleNumber: nc.VehicleNumber,
		VehicleType:   nc.VehicleType,
		IsAvailable:   true,
	}
	if err := a.tx.CreateCollector(ctx, user, profile); err != nil {
		return nil, nil, err
	}
	zap.S().Infow("collector created", "userId", user.ID.Hex(), "collectorId", profile.ID.Hex())
	return user, profile, nil
}

// EnsureProfile updates the vehicle of user's collector profile, creating the
// profile and the collector capability together when there is none
func (a *Admin) EnsureProfile(ctx context.Context, user models.User, vehicleNumber, vehicleType string) (*models.CollectorProfile, error) {
	profile, err := a.profiles.FindByUserID(ctx, user.ID)
	if errors.Is(err, apperrors.ErrNotFound) {
		profile = &models.CollectorProfile{VehicleNumber: vehicleNumber, VehicleType: vehicleType, IsAvailable: true}
		if err := a.tx.PromoteToCollector(ctx, user.ID, profile); err != nil {
			return nil, err
		}
		zap.S().Infow("collector profile created", "userId", user.ID.Hex(), "collectorId", profile.ID.Hex())
		return profile, nil
	}
	if err != nil {
		return nil, err
	}

	if vehicleNumber == "" {
		vehicleNumber = profile.VehicleNumber
	}
	if vehicleType == "" {
		vehicleType = profile.VehicleType
	}
	if err := a.profiles.UpdateVehicle(ctx, profile.ID, vehicleNumber, vehicleType); err != nil {
		return nil, err
	}
	profile.VehicleNumber, profile.VehicleType = vehicleNumber, vehicleType
	return profile, nil
}

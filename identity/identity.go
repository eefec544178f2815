// Package identity owns accounts and their capabilities: registration and
// login, one-time codes, the collector capability kept in step with collector
// profiles, and the transactional create and delete of identities.
package identity

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/smartwaste/smartwaste-api/models"
)

// UserStore persists identities
type UserStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByLogin(ctx context.Context, login string) (*models.User, error)
	List(ctx context.Context, role string, limit, page int) ([]models.User, error)
	InsertOne(ctx context.Context, user *models.User) (primitive.ObjectID, error)
	AddRole(ctx context.Context, id primitive.ObjectID, role string) error
	SetTwoFactorCode(ctx context.Context, id primitive.ObjectID, codeHash string, expires, sent time.Time) error
	ClearTwoFactorCode(ctx context.Context, id primitive.ObjectID) error
}

// ProfileStore persists collector profiles
type ProfileStore interface {
	FindByUserID(ctx context.Context, userID primitive.ObjectID) (*models.CollectorProfile, error)
	FindAll(ctx context.Context) ([]models.CollectorProfile, error)
	UpdateVehicle(ctx context.Context, id primitive.ObjectID, vehicleNumber, vehicleType string) error
}

// Transactor performs the identity writes that span collections
type Transactor interface {
	DeleteIdentity(ctx context.Context, plan models.DeletionPlan) error
	CreateCollector(ctx context.Context, user *models.User, profile *models.CollectorProfile) error
	PromoteToCollector(ctx context.Context, userID primitive.ObjectID, profile *models.CollectorProfile) error
}

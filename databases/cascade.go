package databases

// go generate: mockery --name IdentityTransactor

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/smartwaste/smartwaste-api/apperrors"
	"github.com/smartwaste/smartwaste-api/models"
)

// IdentityTransactor groups the multi-collection identity writes that must
// commit or abort together
type IdentityTransactor interface {
	DeleteIdentity(ctx context.Context, plan models.DeletionPlan) error
	CreateCollector(ctx context.Context, user *models.User, profile *models.CollectorProfile) error
	PromoteToCollector(ctx context.Context, userID primitive.ObjectID, profile *models.CollectorProfile) error
}

type identityTransactor struct {
	db DatabaseHelper
}

// NewIdentityTransactor initializes the transactional identity writer with the provided db connection
func NewIdentityTransactor(db DatabaseHelper) IdentityTransactor {
	return &identityTransactor{db: db}
}

// DeleteIdentity removes the user and everything hanging off it in one transaction.
// Every task assigned to a deleted collector goes back to pending so no task
// references the removed profile.
func (it *identityTransactor) DeleteIdentity(ctx context.Context, plan models.DeletionPlan) error {
	return it.db.Client().WithTransaction(ctx, func(sc context.Context) error {
		res, err := it.db.Collection(userName).DeleteOne(sc, bson.M{"_id": plan.UserID})
		if err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		if res.DeletedCount == 0 {
			return fmt.Errorf("user %s: %w", plan.UserID.Hex(), apperrors.ErrNotFound)
		}

		if plan.CollectorProfileID != nil {
			release := bson.M{
				"$set": bson.M{"collectorId": nil, "status": models.StatusPending, "assignedAt": nil, "updatedAt": time.Now()},
				"$inc": bson.M{"version": 1},
			}
			assigned := bson.M{"collectorId": *plan.CollectorProfileID}
			for _, coll := range []string{bookingName, reportName} {
				if _, err := it.db.Collection(coll).UpdateMany(sc, assigned, release); err != nil {
					return fmt.Errorf("failed to release %s: %w", coll, err)
				}
			}
			if _, err := it.db.Collection(collectorName).DeleteOne(sc, bson.M{"_id": *plan.CollectorProfileID}); err != nil {
				return fmt.Errorf("failed to delete collector profile: %w", err)
			}
		}

		if plan.DeleteRequests {
			for _, coll := range []string{bookingName, reportName} {
				if _, err := it.db.Collection(coll).DeleteMany(sc, bson.M{"userId": plan.UserID}); err != nil {
					return fmt.Errorf("failed to delete %s: %w", coll, err)
				}
			}
		}
		return nil
	})
}

// CreateCollector inserts the user and its collector profile together
func (it *identityTransactor) CreateCollector(ctx context.Context, user *models.User, profile *models.CollectorProfile) error {
	return it.db.Client().WithTransaction(ctx, func(sc context.Context) error {
		if _, err := NewUserDatabase(it.db).InsertOne(sc, user); err != nil {
			return err
		}
		profile.UserID = user.ID
		_, err := NewCollectorDatabase(it.db).InsertOne(sc, profile)
		return err
	})
}

// PromoteToCollector gives an existing user a collector profile and the
// matching capability together
func (it *identityTransactor) PromoteToCollector(ctx context.Context, userID primitive.ObjectID, profile *models.CollectorProfile) error {
	return it.db.Client().WithTransaction(ctx, func(sc context.Context) error {
		profile.UserID = userID
		if _, err := NewCollectorDatabase(it.db).InsertOne(sc, profile); err != nil {
			return err
		}
		return NewUserDatabase(it.db).AddRole(sc, userID, models.RoleCollector)
	})
}

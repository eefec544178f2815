package databases

// go generate: mockery --name CollectorDatabase

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/smartwaste/smartwaste-api/apperrors"
	"github.com/smartwaste/smartwaste-api/models"
)

const collectorName = "collectors"

// CollectorDatabase contains the methods to use with the collector database
type CollectorDatabase interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.CollectorProfile, error)
	FindByUserID(ctx context.Context, userID primitive.ObjectID) (*models.CollectorProfile, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.CollectorProfile, error)
	FindAll(ctx context.Context) ([]models.CollectorProfile, error)
	FindActive(ctx context.Context, since time.Time) ([]models.CollectorProfile, error)
	InsertOne(ctx context.Context, profile *models.CollectorProfile) (primitive.ObjectID, error)
	SaveLocation(ctx context.Context, profile *models.CollectorProfile) error
	UpdateVehicle(ctx context.Context, id primitive.ObjectID, vehicleNumber, vehicleType string) error
	MarkStaleOffline(ctx context.Context, before time.Time) (int64, error)
}

type collectorDatabase struct {
	db DatabaseHelper
}

// NewCollectorDatabase initializes a new instance of collector database with the provided db connection
func NewCollectorDatabase(db DatabaseHelper) CollectorDatabase {
	return &collectorDatabase{
		db: db,
	}
}

func (c *collectorDatabase) FindByID(ctx context.Context, id primitive.ObjectID) (*models.CollectorProfile, error) {
	return c.findOne(ctx, bson.M{"_id": id})
}

func (c *collectorDatabase) FindByUserID(ctx context.Context, userID primitive.ObjectID) (*models.CollectorProfile, error) {
	return c.findOne(ctx, bson.M{"userId": userID})
}

func (c *collectorDatabase) findOne(ctx context.Context, filter interface{}) (*models.CollectorProfile, error) {
	profile := &models.CollectorProfile{}
	err := c.db.Collection(collectorName).FindOne(ctx, filter).Decode(&profile)
	if err != nil {
		return nil, translate(err, "collector profile")
	}
	return profile, nil
}

func (c *collectorDatabase) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.CollectorProfile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return c.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (c *collectorDatabase) FindAll(ctx context.Context) ([]models.CollectorProfile, error) {
	return c.find(ctx, bson.M{})
}

// FindActive returns available profiles with a position reported at or after since
func (c *collectorDatabase) FindActive(ctx context.Context, since time.Time) ([]models.CollectorProfile, error) {
	return c.find(ctx, bson.M{
		"isAvailable":        true,
		"lastLocationUpdate": bson.M{"$gte": since},
	})
}

func (c *collectorDatabase) find(ctx context.Context, filter interface{}) ([]models.CollectorProfile, error) {
	cursor, err := c.db.Collection(collectorName).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find collector profiles: %w", err)
	}
	var profiles []models.CollectorProfile
	if err := cursor.Decode(&profiles); err != nil {
		return nil, fmt.Errorf("failed to decode collector profiles: %w", err)
	}
	return profiles, nil
}

func (c *collectorDatabase) InsertOne(ctx context.Context, profile *models.CollectorProfile) (primitive.ObjectID, error) {
	now := time.Now()
	if profile.ID.IsZero() {
		profile.ID = primitive.NewObjectID()
	}
	if profile.CurrentRoute.Type == "" {
		profile.CurrentRoute = models.Route{Type: "LineString", Coordinates: [][]float64{}}
	}
	profile.CreatedAt, profile.UpdatedAt = now, now
	if _, err := c.db.Collection(collectorName).InsertOne(ctx, profile); err != nil {
		return primitive.NilObjectID, translate(err, "collector profile")
	}
	return profile.ID, nil
}

// SaveLocation persists the live position fields and the trail of the profile
func (c *collectorDatabase) SaveLocation(ctx context.Context, profile *models.CollectorProfile) error {
	return c.updateByID(ctx, profile.ID, bson.M{"$set": bson.M{
		"isAvailable":        profile.IsAvailable,
		"currentLat":         profile.CurrentLat,
		"currentLng":         profile.CurrentLng,
		"lastLocationUpdate": profile.LastLocationUpdate,
		"currentRoute":       profile.CurrentRoute,
		"updatedAt":          profile.UpdatedAt,
	}})
}

func (c *collectorDatabase) UpdateVehicle(ctx context.Context, id primitive.ObjectID, vehicleNumber, vehicleType string) error {
	return c.updateByID(ctx, id, bson.M{"$set": bson.M{
		"vehicleNumber": vehicleNumber,
		"vehicleType":   vehicleType,
		"updatedAt":     time.Now(),
	}})
}

// MarkStaleOffline takes collectors that stopped reporting before the cutoff offline
func (c *collectorDatabase) MarkStaleOffline(ctx context.Context, before time.Time) (int64, error) {
	res, err := c.db.Collection(collectorName).UpdateMany(ctx,
		bson.M{"isAvailable": true, "lastLocationUpdate": bson.M{"$lt": before}},
		bson.M{"$set": bson.M{
			"isAvailable":        false,
			"currentLat":         nil,
			"currentLng":         nil,
			"lastLocationUpdate": nil,
			"updatedAt":          time.Now(),
		}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep stale collectors: %w", err)
	}
	return res.ModifiedCount, nil
}

func (c *collectorDatabase) updateByID(ctx context.Context, id primitive.ObjectID, update interface{}) error {
	res, err := c.db.Collection(collectorName).UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return translate(err, "collector profile")
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("collector profile %s: %w", id.Hex(), apperrors.ErrNotFound)
	}
	return nil
}

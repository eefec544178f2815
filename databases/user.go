package databases

// go generate: mockery --name UserDatabase

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/smartwaste/smartwaste-api/apperrors"
	"github.com/smartwaste/smartwaste-api/models"
)

const userName = "users"

// UserDatabase contains the methods to use with the user database
type UserDatabase interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByLogin(ctx context.Context, login string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	FindResidentsWithHome(ctx context.Context) ([]models.User, error)
	List(ctx context.Context, role string, limit, page int) ([]models.User, error)
	InsertOne(ctx context.Context, user *models.User) (primitive.ObjectID, error)
	AddRole(ctx context.Context, id primitive.ObjectID, role string) error
	SetHomeLocation(ctx context.Context, id primitive.ObjectID, address string, lat, lng float64) error
	SetTwoFactorCode(ctx context.Context, id primitive.ObjectID, codeHash string, expires, sent time.Time) error
	ClearTwoFactorCode(ctx context.Context, id primitive.ObjectID) error
	CountDocuments(ctx context.Context, filter interface{}) (int64, error)
}

type userDatabase struct {
	db DatabaseHelper
}

// NewUserDatabase initializes a new instance of user database with the provided db connection
func NewUserDatabase(db DatabaseHelper) UserDatabase {
	return &userDatabase{
		db: db,
	}
}

func (u *userDatabase) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user := &models.User{}
	err := u.db.Collection(userName).FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		return nil, translate(err, "user")
	}
	return user, nil
}

// FindByLogin matches the username, email or phone of an account
func (u *userDatabase) FindByLogin(ctx context.Context, login string) (*models.User, error) {
	user := &models.User{}
	filter := bson.M{"$or": []bson.M{
		{"username": login},
		{"email": login},
		{"phone": login},
	}}
	err := u.db.Collection(userName).FindOne(ctx, filter).Decode(&user)
	if err != nil {
		return nil, translate(err, "user")
	}
	return user, nil
}

func (u *userDatabase) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return u.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

// FindResidentsWithHome returns the proximity candidates: residents with a
// complete home location
func (u *userDatabase) FindResidentsWithHome(ctx context.Context) ([]models.User, error) {
	return u.find(ctx, bson.M{
		"roles":       models.RoleResident,
		"locationLat": bson.M{"$ne": nil},
		"locationLng": bson.M{"$ne": nil},
	})
}

func (u *userDatabase) List(ctx context.Context, role string, limit, page int) ([]models.User, error) {
	filter := bson.M{}
	if role != "" {
		filter["roles"] = role
	}
	cursor, err := u.db.Collection(userName).Find(ctx, filter, newMongoPaginate(limit, page).getPaginatedOpts())
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	var users []models.User
	if err := cursor.Decode(&users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}

func (u *userDatabase) find(ctx context.Context, filter interface{}) ([]models.User, error) {
	cursor, err := u.db.Collection(userName).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to find users: %w", err)
	}
	var users []models.User
	if err := cursor.Decode(&users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}

func (u *userDatabase) InsertOne(ctx context.Context, user *models.User) (primitive.ObjectID, error) {
	now := time.Now()
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	user.CreatedAt, user.UpdatedAt = now, now
	if _, err := u.db.Collection(userName).InsertOne(ctx, user); err != nil {
		return primitive.NilObjectID, translate(err, "user")
	}
	return user.ID, nil
}

// AddRole adds a capability without touching the others
func (u *userDatabase) AddRole(ctx context.Context, id primitive.ObjectID, role string) error {
	return u.updateByID(ctx, id, bson.M{
		"$addToSet": bson.M{"roles": role},
		"$set":      bson.M{"updatedAt": time.Now()},
	})
}

func (u *userDatabase) SetHomeLocation(ctx context.Context, id primitive.ObjectID, address string, lat, lng float64) error {
	return u.updateByID(ctx, id, bson.M{"$set": bson.M{
		"locationAddress": address,
		"locationLat":     lat,
		"locationLng":     lng,
		"updatedAt":       time.Now(),
	}})
}

func (u *userDatabase) SetTwoFactorCode(ctx context.Context, id primitive.ObjectID, codeHash string, expires, sent time.Time) error {
	return u.updateByID(ctx, id, bson.M{"$set": bson.M{
		"twoFactorCode":     codeHash,
		"twoFactorExpires":  expires,
		"twoFactorLastSent": sent,
	}})
}

func (u *userDatabase) ClearTwoFactorCode(ctx context.Context, id primitive.ObjectID) error {
	return u.updateByID(ctx, id, bson.M{"$unset": bson.M{
		"twoFactorCode":    "",
		"twoFactorExpires": "",
	}})
}

func (u *userDatabase) updateByID(ctx context.Context, id primitive.ObjectID, update interface{}) error {
	res, err := u.db.Collection(userName).UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return translate(err, "user")
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", id.Hex(), apperrors.ErrNotFound)
	}
	return nil
}

func (u *userDatabase) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	return u.db.Collection(userName).CountDocuments(ctx, filter)
}

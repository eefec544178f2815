package databases

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// identityIndexes back the uniqueness rules of users and collector profiles.
// Email and phone are optional, so their indexes skip documents without them.
func identityIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		userName: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetName("username_unique").SetUnique(true)},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetName("email_unique").SetUnique(true).SetSparse(true)},
			{Keys: bson.D{{Key: "phone", Value: 1}}, Options: options.Index().SetName("phone_unique").SetUnique(true).SetSparse(true)},
		},
		collectorName: {
			{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetName("userId_unique").SetUnique(true)},
		},
	}
}

// EnsureIndexes creates the unique indexes the identity writes rely on.
// Creating an index that already exists is a no-op.
func EnsureIndexes(ctx context.Context, db DatabaseHelper) error {
	for _, coll := range []string{userName, collectorName} {
		if _, err := db.Collection(coll).CreateIndexes(ctx, identityIndexes()[coll]); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", coll, err)
		}
	}
	return nil
}

package databases_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/smartwaste/smartwaste-api/databases"
	"github.com/smartwaste/smartwaste-api/databases/mocks"
)

func TestSchedulerLock_Acquire(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}

	collectionHelper.On("UpdateOne", context.Background(), mock.MatchedBy(func(filter bson.M) bool {
		return filter["_id"] == "role_sync"
	}), mock.Anything, mock.Anything).Return(&mongo.UpdateResult{UpsertedCount: 1}, nil)
	dbHelper.On("Collection", "schedulerLocks").Return(collectionHelper)

	ok, err := databases.NewSchedulerLockDatabase(dbHelper).TryAcquireLock(context.Background(), "role_sync", "web.1", time.Minute)

	assert.NoError(t, err)
	assert.True(t, ok)
	collectionHelper.AssertExpectations(t)
}

func TestSchedulerLock_HeldElsewhere(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}

	dup := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key"}}}
	collectionHelper.On("UpdateOne", context.Background(), mock.Anything, mock.Anything, mock.Anything).Return(nil, dup)
	dbHelper.On("Collection", "schedulerLocks").Return(collectionHelper)

	ok, err := databases.NewSchedulerLockDatabase(dbHelper).TryAcquireLock(context.Background(), "role_sync", "web.2", time.Minute)

	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestSchedulerLock_AcquireError(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}

	collectionHelper.On("UpdateOne", context.Background(), mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("socket closed"))
	dbHelper.On("Collection", "schedulerLocks").Return(collectionHelper)

	ok, err := databases.NewSchedulerLockDatabase(dbHelper).TryAcquireLock(context.Background(), "role_sync", "web.2", time.Minute)

	assert.Error(t, err)
	assert.False(t, ok)
}

func TestSchedulerLock_Release(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}

	collectionHelper.On("DeleteOne", context.Background(), bson.M{"_id": "role_sync", "owner": "web.1"}).Return(&mongo.DeleteResult{DeletedCount: 1}, nil)
	dbHelper.On("Collection", "schedulerLocks").Return(collectionHelper)

	err := databases.NewSchedulerLockDatabase(dbHelper).ReleaseLock(context.Background(), "role_sync", "web.1")

	assert.NoError(t, err)
	collectionHelper.AssertExpectations(t)
}

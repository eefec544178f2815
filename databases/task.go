package databases

// go generate: mockery --name TaskDatabase

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/smartwaste/smartwaste-api/models"
)

const (
	bookingName = "bookings"
	reportName  = "reports"
)

// TaskDatabase contains the methods to use with the bookings and reports databases
type TaskDatabase interface {
	Kind() models.TaskKind
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Task, error)
	List(ctx context.Context, q models.TaskQuery) ([]models.Task, error)
	InsertOne(ctx context.Context, task *models.Task) (primitive.ObjectID, error)
	CompareAndSwap(ctx context.Context, task *models.Task, expectedVersion int64) (bool, error)
}

type taskDatabase struct {
	db         DatabaseHelper
	collection string
	kind       models.TaskKind
}

// NewBookingDatabase initializes the task database backed by the bookings collection
func NewBookingDatabase(db DatabaseHelper) TaskDatabase {
	return &taskDatabase{db: db, collection: bookingName, kind: models.KindBooking}
}

// NewReportDatabase initializes the task database backed by the reports collection
func NewReportDatabase(db DatabaseHelper) TaskDatabase {
	return &taskDatabase{db: db, collection: reportName, kind: models.KindReport}
}

func (t *taskDatabase) Kind() models.TaskKind {
	return t.kind
}

func (t *taskDatabase) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Task, error) {
	task := &models.Task{}
	err := t.db.Collection(t.collection).FindOne(ctx, bson.M{"_id": id}).Decode(&task)
	if err != nil {
		return nil, translate(err, string(t.kind))
	}
	task.Kind = t.kind
	return task, nil
}

func (t *taskDatabase) List(ctx context.Context, q models.TaskQuery) ([]models.Task, error) {
	filter := bson.M{}
	if q.UserID != nil {
		filter["userId"] = *q.UserID
	}
	if q.CollectorID != nil {
		filter["collectorId"] = *q.CollectorID
	}
	if q.ServiceType != "" && t.kind == models.KindBooking {
		filter["serviceType"] = q.ServiceType
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := t.db.Collection(t.collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s: %w", t.collection, err)
	}
	var tasks []models.Task
	if err := cursor.Decode(&tasks); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", t.collection, err)
	}
	for i := range tasks {
		tasks[i].Kind = t.kind
	}
	return tasks, nil
}

func (t *taskDatabase) InsertOne(ctx context.Context, task *models.Task) (primitive.ObjectID, error) {
	now := time.Now()
	if task.ID.IsZero() {
		task.ID = primitive.NewObjectID()
	}
	task.Kind = t.kind
	task.CreatedAt, task.UpdatedAt = now, now
	if _, err := t.db.Collection(t.collection).InsertOne(ctx, task); err != nil {
		return primitive.NilObjectID, translate(err, string(t.kind))
	}
	return task.ID, nil
}

// CompareAndSwap writes the mutable workflow fields of task only if the stored
// version still equals expectedVersion. It reports whether the write happened.
func (t *taskDatabase) CompareAndSwap(ctx context.Context, task *models.Task, expectedVersion int64) (bool, error) {
	set := bson.M{
		"status":      task.Status,
		"collectorId": task.CollectorID,
		"assignedAt":  task.AssignedAt,
		"version":     expectedVersion + 1,
		"updatedAt":   task.UpdatedAt,
	}
	if task.StartedAt != nil {
		set["startedAt"] = task.StartedAt
	}
	if task.CompletedAt != nil {
		set["completedAt"] = task.CompletedAt
	}
	if task.ClearedAt != nil {
		set["clearedAt"] = task.ClearedAt
	}

	// documents written before versioning carry no version field
	versionFilter := bson.M{"version": expectedVersion}
	if expectedVersion == 0 {
		versionFilter = bson.M{"$or": []bson.M{{"version": 0}, {"version": bson.M{"$exists": false}}}}
	}
	filter := bson.M{"$and": []bson.M{{"_id": task.ID}, versionFilter}}

	res, err := t.db.Collection(t.collection).UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return false, translate(err, string(t.kind))
	}
	if res.MatchedCount == 0 {
		return false, nil
	}
	task.Version = expectedVersion + 1
	return true, nil
}

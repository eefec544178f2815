package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TaskKind distinguishes bookings from reports
type TaskKind string

// Task kinds
const (
	KindBooking TaskKind = "booking"
	KindReport  TaskKind = "report"
)

// Task status values. Completed is bookings only, cleared and rejected are reports only.
const (
	StatusPending    = "pending"
	StatusAssigned   = "assigned"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
	StatusCleared    = "cleared"
	StatusRejected   = "rejected"
)

// Booking service types
const (
	ServiceGarbage = "garbage"
	ServiceSewage  = "sewage"
)

var kindStatuses = map[TaskKind][]string{
	KindBooking: {StatusPending, StatusAssigned, StatusInProgress, StatusCompleted, StatusCancelled},
	KindReport:  {StatusPending, StatusAssigned, StatusInProgress, StatusCleared, StatusRejected},
}

// Valid reports whether k is a known kind
func (k TaskKind) Valid() bool {
	_, ok := kindStatuses[k]
	return ok
}

// HasStatus reports whether status belongs to the kind's vocabulary
func (k TaskKind) HasStatus(status string) bool {
	for _, s := range kindStatuses[k] {
		if s == status {
			return true
		}
	}
	return false
}

// CompletionStatus is the terminal success status of the kind
func (k TaskKind) CompletionStatus() string {
	if k == KindReport {
		return StatusCleared
	}
	return StatusCompleted
}

// ServiceDetails carries the size of a booking
type ServiceDetails struct {
	Bags       int     `json:"bags,omitempty" bson:"bags,omitempty"`
	TankVolume float64 `json:"tankVolume,omitempty" bson:"tankVolume,omitempty"`
}

// Task holds the shared structure of the bookings and reports collections.
// Kind is not persisted, it follows from the collection the task came from.
type Task struct {
	ID              primitive.ObjectID  `json:"_id" bson:"_id,omitempty"`
	Kind            TaskKind            `json:"kind" bson:"-"`
	UserID          primitive.ObjectID  `json:"userId" bson:"userId"`
	CollectorID     *primitive.ObjectID `json:"collectorId" bson:"collectorId"`
	LocationAddress string              `json:"locationAddress" bson:"locationAddress"`
	LocationLat     float64             `json:"locationLat" bson:"locationLat"`
	LocationLng     float64             `json:"locationLng" bson:"locationLng"`
	Status          string              `json:"status" bson:"status"`
	AssignedAt      *time.Time          `json:"assignedAt,omitempty" bson:"assignedAt"`
	StartedAt       *time.Time          `json:"startedAt,omitempty" bson:"startedAt,omitempty"`
	CompletedAt     *time.Time          `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
	ClearedAt       *time.Time          `json:"clearedAt,omitempty" bson:"clearedAt,omitempty"`
	Version         int64               `json:"version" bson:"version"`
	CreatedAt       time.Time           `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt" bson:"updatedAt"`

	// booking
	ServiceType    string          `json:"serviceType,omitempty" bson:"serviceType,omitempty"`
	ServiceDetails *ServiceDetails `json:"serviceDetails,omitempty" bson:"serviceDetails,omitempty"`
	Notes          string          `json:"notes,omitempty" bson:"notes,omitempty"`
	RequestedAt    *time.Time      `json:"requestedAt,omitempty" bson:"requestedAt,omitempty"`

	// report
	Description string     `json:"description,omitempty" bson:"description,omitempty"`
	PhotoURL    string     `json:"photoUrl,omitempty" bson:"photoUrl,omitempty"`
	ReportedAt  *time.Time `json:"reportedAt,omitempty" bson:"reportedAt,omitempty"`
}

// AssignmentConsistent reports whether the assignee matches the status:
// an assignee is present exactly when the task is assigned, underway or done.
func (t Task) AssignmentConsistent() bool {
	switch t.Status {
	case StatusAssigned, StatusInProgress, StatusCompleted, StatusCleared:
		return t.CollectorID != nil
	default:
		return t.CollectorID == nil
	}
}

// IsAssignedTo reports whether the task is held by the given profile
func (t Task) IsAssignedTo(profileID primitive.ObjectID) bool {
	return t.CollectorID != nil && *t.CollectorID == profileID
}

// TaskView is a task with requester and assignee resolved for display
type TaskView struct {
	Task
	Requester *UserSummary      `json:"requester,omitempty"`
	Collector *CollectorSummary `json:"collector,omitempty"`
}

// TaskQuery narrows a task listing. Zero fields do not filter.
type TaskQuery struct {
	UserID      *primitive.ObjectID
	CollectorID *primitive.ObjectID
	ServiceType string
}

// DeletionPlan describes everything removed together with an identity
type DeletionPlan struct {
	UserID             primitive.ObjectID
	CollectorProfileID *primitive.ObjectID
	DeleteRequests     bool
}

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxRoutePoints bounds the breadcrumb trail kept on a collector profile
const MaxRoutePoints = 100

// CollectorProfile holds the structure for the collectors collection in mongo.
// Identity fields live on the user and are joined at read time.
type CollectorProfile struct {
	ID                 primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	UserID             primitive.ObjectID `json:"userId" bson:"userId"`
	VehicleNumber      string             `json:"vehicleNumber" bson:"vehicleNumber"`
	VehicleType        string             `json:"vehicleType" bson:"vehicleType"`
	IsAvailable        bool               `json:"isAvailable" bson:"isAvailable"`
	CurrentLat         *float64           `json:"currentLat" bson:"currentLat"`
	CurrentLng         *float64           `json:"currentLng" bson:"currentLng"`
	LastLocationUpdate *time.Time         `json:"lastLocationUpdate" bson:"lastLocationUpdate"`
	CurrentRoute       Route              `json:"currentRoute" bson:"currentRoute"`
	CreatedAt          time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// Route is a GeoJSON LineString with [lng, lat] coordinates
type Route struct {
	Type        string      `json:"type" bson:"type"`
	Coordinates [][]float64 `json:"coordinates" bson:"coordinates"`
}

// RecordPosition applies a location report to the profile. The trail keeps
// the newest MaxRoutePoints entries.
func (c *CollectorProfile) RecordPosition(lat, lng float64, at time.Time) {
	c.CurrentLat = &lat
	c.CurrentLng = &lng
	c.LastLocationUpdate = &at
	c.IsAvailable = true
	c.CurrentRoute.Type = "LineString"
	c.CurrentRoute.Coordinates = append(c.CurrentRoute.Coordinates, []float64{lng, lat})
	if n := len(c.CurrentRoute.Coordinates); n > MaxRoutePoints {
		c.CurrentRoute.Coordinates = append([][]float64(nil), c.CurrentRoute.Coordinates[n-MaxRoutePoints:]...)
	}
	c.UpdatedAt = at
}

// GoOffline clears the live position. The trail is kept.
func (c *CollectorProfile) GoOffline(at time.Time) {
	c.IsAvailable = false
	c.CurrentLat = nil
	c.CurrentLng = nil
	c.LastLocationUpdate = nil
	c.UpdatedAt = at
}

// IsActive reports whether the profile belongs in the live snapshot at now
func (c CollectorProfile) IsActive(now time.Time, window time.Duration) bool {
	if !c.IsAvailable || c.CurrentLat == nil || c.CurrentLng == nil || c.LastLocationUpdate == nil {
		return false
	}
	return !c.LastLocationUpdate.Before(now.Add(-window))
}

// CollectorInfo is the identity and vehicle view attached to a live location
type CollectorInfo struct {
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	VehicleNumber string `json:"vehicleNumber"`
	VehicleType   string `json:"vehicleType"`
}

// LiveLocation is one entry of the active location snapshot
type LiveLocation struct {
	Latitude      float64       `json:"latitude"`
	Longitude     float64       `json:"longitude"`
	Timestamp     time.Time     `json:"timestamp"`
	IsOnline      bool          `json:"isOnline"`
	CollectorInfo CollectorInfo `json:"collectorInfo"`
}

// CollectorSummary is the resolved view of an assignee embedded in task responses
type CollectorSummary struct {
	ID            primitive.ObjectID `json:"_id"`
	VehicleNumber string             `json:"vehicleNumber"`
	VehicleType   string             `json:"vehicleType"`
	User          *UserSummary       `json:"userId,omitempty"`
}

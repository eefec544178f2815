package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/smartwaste/smartwaste-api/api"
	"github.com/smartwaste/smartwaste-api/apperrors"
	"github.com/smartwaste/smartwaste-api/config"
	"github.com/smartwaste/smartwaste-api/databases"
	"github.com/smartwaste/smartwaste-api/identity"
	"github.com/smartwaste/smartwaste-api/location"
	"github.com/smartwaste/smartwaste-api/models"
)

// Location handles collector position reports and location queries
type Location struct {
	Store   *location.Store
	Matcher *location.Matcher
	CDB     databases.CollectorDatabase
	UDB     databases.UserDatabase
	Admin   *identity.Admin
	Radius  float64
}

// locationUpdate accepts both latitude/longitude and lat/lng
type locationUpdate struct {
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	Lat       *float64   `json:"lat"`
	Lng       *float64   `json:"lng"`
	Timestamp *time.Time `json:"timestamp"`
}

func (u locationUpdate) point() (float64, float64, bool) {
	lat, lng := u.Latitude, u.Longitude
	if lat == nil {
		lat = u.Lat
	}
	if lng == nil {
		lng = u.Lng
	}
	if lat == nil || lng == nil {
		return 0, 0, false
	}
	return *lat, *lng, true
}

// LocationUpdateResponse reports the stored position and how many requesters were notified
type LocationUpdateResponse struct {
	Message       string                   `json:"message"`
	Collector     *models.CollectorProfile `json:"collector"`
	Notifications int                      `json:"notifications"`
}

// CollectorDetail is a collector profile joined with its identity
type CollectorDetail struct {
	CollectorID       primitive.ObjectID   `json:"collectorId"`
	UserID            primitive.ObjectID   `json:"userId"`
	Name              string               `json:"name"`
	Phone             string               `json:"phone"`
	Email             string               `json:"email"`
	VehicleNumber     string               `json:"vehicleNumber"`
	VehicleType       string               `json:"vehicleType"`
	IsAvailable       bool                 `json:"isAvailable"`
	LastKnownLocation KnownLocation        `json:"lastKnownLocation"`
	RealtimeLocation  *models.LiveLocation `json:"realtimeLocation,omitempty"`
}

// KnownLocation is the last persisted position of a collector
type KnownLocation struct {
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	Timestamp *time.Time `json:"timestamp"`
}

type vehicleRequest struct {
	VehicleNumber string `json:"vehicleNumber"`
	VehicleType   string `json:"vehicleType"`
}

// UpdateLocationHandler records the calling collector's position and runs
// proximity matching. Matching problems never fail the update.
func (l Location) UpdateLocationHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req locationUpdate
	if !decodeBody(w, r, &req) {
		return
	}
	lat, lng, ok := req.point()
	if !ok {
		config.ErrorStatus("latitude and longitude are required", http.StatusBadRequest, w, apperrors.ErrValidation)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	profile, err := l.CDB.FindByUserID(ctx, caller.ID)
	if err != nil {
		writeError(w, "collector not found", err)
		return
	}
	profile, err = l.Store.Update(ctx, profile.ID, lat, lng, req.Timestamp)
	if err != nil {
		writeError(w, "failed to update location", err)
		return
	}

	events, err := l.Matcher.Match(ctx, profile)
	if err != nil {
		zap.S().Errorw("proximity matching failed", "collectorId", profile.ID.Hex(), "error", err)
	}
	writeJSON(w, http.StatusOK, LocationUpdateResponse{
		Message:       "Location updated successfully",
		Collector:     profile,
		Notifications: len(events),
	})
}

// GoOfflineHandler marks the calling collector unavailable
func (l Location) GoOfflineHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	profile, err := l.CDB.FindByUserID(ctx, caller.ID)
	if err != nil {
		writeError(w, "collector not found", err)
		return
	}
	if err := l.Store.Deactivate(ctx, profile.ID); err != nil {
		writeError(w, "failed to go offline", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Successfully marked as offline"})
}

// ActiveCollectorsHandler returns the active location snapshot
func (l Location) ActiveCollectorsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	snap, err := l.Store.ActiveSnapshot(ctx)
	if err != nil {
		writeError(w, "failed to get collector locations", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// CollectorLocationHandler returns one collector with its last known and live position
func (l Location) CollectorLocationHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathObjectID(w, r, "collectorId")
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	profile, err := l.CDB.FindByID(ctx, id)
	if err != nil {
		writeError(w, "collector not found", err)
		return
	}
	details, err := l.details(ctx, []models.CollectorProfile{*profile})
	if err != nil {
		writeError(w, "failed to get collector location", err)
		return
	}
	writeJSON(w, http.StatusOK, details[0])
}

// AllCollectorsAdminHandler returns every collector, online or not
func (l Location) AllCollectorsAdminHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	profiles, err := l.CDB.FindAll(ctx)
	if err != nil {
		writeError(w, "failed to get collectors", err)
		return
	}
	details, err := l.details(ctx, profiles)
	if err != nil {
		writeError(w, "failed to get collectors", err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// OwnProfileHandler returns the calling collector's profile
func (l Location) OwnProfileHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	profile, err := l.CDB.FindByUserID(ctx, caller.ID)
	if err != nil {
		writeError(w, "collector profile not found", err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// UpdateOwnProfileHandler sets the caller's vehicle, creating the collector
// profile and capability if the caller has none yet
func (l Location) UpdateOwnProfileHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req vehicleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	profile, err := l.Admin.EnsureProfile(ctx, *caller, req.VehicleNumber, req.VehicleType)
	if err != nil {
		writeError(w, "failed to update collector profile", err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// NearbyHandler lists active collectors around the caller's home
func (l Location) NearbyHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}
	if !caller.HasHomeLocation() {
		config.ErrorStatus("no home location on record", http.StatusBadRequest, w, apperrors.ErrValidation)
		return
	}
	radius := l.Radius
	if v := r.URL.Query().Get("radius"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || parsed <= 0 {
			config.ErrorStatus("invalid radius", http.StatusBadRequest, w, err)
			return
		}
		radius = parsed
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	nearby, err := l.Store.Nearby(ctx, location.Point{Lat: *caller.LocationLat, Lng: *caller.LocationLng}, radius)
	if err != nil {
		writeError(w, "failed to find nearby collectors", err)
		return
	}
	writeJSON(w, http.StatusOK, nearby)
}

func (l Location) details(ctx context.Context, profiles []models.CollectorProfile) ([]CollectorDetail, error) {
	ids := make([]primitive.ObjectID, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.UserID)
	}
	users, err := l.UDB.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	snap, err := l.Store.ActiveSnapshot(ctx)
	if err != nil {
		zap.S().Warnw("failed to load live locations", "error", err)
	}

	details := make([]CollectorDetail, 0, len(profiles))
	for _, p := range profiles {
		u := byID[p.UserID]
		d := CollectorDetail{
			CollectorID:   p.ID,
			UserID:        p.UserID,
			Name:          u.FullName,
			Phone:         u.Phone,
			Email:         u.Email,
			VehicleNumber: p.VehicleNumber,
			VehicleType:   p.VehicleType,
			IsAvailable:   p.IsAvailable,
			LastKnownLocation: KnownLocation{
				Latitude:  p.CurrentLat,
				Longitude: p.CurrentLng,
				Timestamp: p.LastLocationUpdate,
			},
		}
		if live, ok := snap[p.ID.Hex()]; ok {
			d.RealtimeLocation = &live
		}
		details = append(details, d)
	}
	return details, nil
}

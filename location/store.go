// Package location tracks live collector positions, matches them against
// requester homes and streams the active set to subscribers.
package location

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/smartwaste/smartwaste-api/models"
)

// DefaultStalenessWindow is how long a reported position stays live
const DefaultStalenessWindow = 15 * time.Minute

// ProfileStore is the persistence the Store needs for collector profiles
type ProfileStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.CollectorProfile, error)
	FindActive(ctx context.Context, since time.Time) ([]models.CollectorProfile, error)
	SaveLocation(ctx context.Context, profile *models.CollectorProfile) error
}

// UserLookup resolves identities for display
type UserLookup interface {
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
}

// Snapshot maps collector profile ids (hex) to their live location
type Snapshot map[string]models.LiveLocation

// Store keeps the current position of each collector. Writes to one profile
// are last-write-wins; distinct profiles never contend.
type Store struct {
	profiles  ProfileStore
	users     UserLookup
	staleness time.Duration
	now       func() time.Time
}

// NewStore returns a Store; a non-positive staleness falls back to DefaultStalenessWindow
func NewStore(profiles ProfileStore, users UserLookup, staleness time.Duration) *Store {
	if staleness <= 0 {
		staleness = DefaultStalenessWindow
	}
	return &Store{profiles: profiles, users: users, staleness: staleness, now: time.Now}
}

// Update records a position for the collector and marks it available.
// A nil ts means now.
func (s *Store) Update(ctx context.Context, collectorID primitive.ObjectID, lat, lng float64, ts *time.Time) (*models.CollectorProfile, error) {
	if err := (Point{Lat: lat, Lng: lng}).Validate(); err != nil {
		return nil, err
	}
	profile, err := s.profiles.FindByID(ctx, collectorID)
	if err != nil {
		return nil, err
	}
	at := s.now()
	if ts != nil {
		at = *ts
	}
	profile.RecordPosition(lat, lng, at)
	if err := s.profiles.SaveLocation(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to save location: %w", err)
	}
	return profile, nil
}

// Deactivate takes the collector offline and clears its live position
func (s *Store) Deactivate(ctx context.Context, collectorID primitive.ObjectID) error {
	profile, err := s.profiles.FindByID(ctx, collectorID)
	if err != nil {
		return err
	}
	profile.GoOffline(s.now())
	if err := s.profiles.SaveLocation(ctx, profile); err != nil {
		return fmt.Errorf("failed to save offline state: %w", err)
	}
	return nil
}

// ActiveSnapshot returns every available collector with a fresh position
func (s *Store) ActiveSnapshot(ctx context.Context) (Snapshot, error) {
	active, err := s.active(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.usersByID(ctx, active)
	if err != nil {
		return nil, err
	}

	snap := make(Snapshot, len(active))
	for _, p := range active {
		snap[p.ID.Hex()] = liveLocation(p, users[p.UserID])
	}
	return snap, nil
}

// NearbyCollector is an active collector with its distance from a point
type NearbyCollector struct {
	CollectorID    string              `json:"collectorId"`
	DistanceMeters float64             `json:"distanceMeters"`
	Location       models.LiveLocation `json:"location"`
}

// Nearby returns active collectors within radius meters of p, closest first
func (s *Store) Nearby(ctx context.Context, p Point, radius float64) ([]NearbyCollector, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	snap, err := s.ActiveSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	nearby := []NearbyCollector{}
	for id, loc := range snap {
		d := Distance(p, Point{Lat: loc.Latitude, Lng: loc.Longitude})
		if d <= radius {
			nearby = append(nearby, NearbyCollector{CollectorID: id, DistanceMeters: d, Location: loc})
		}
	}
	sort.Slice(nearby, func(i, j int) bool { return nearby[i].DistanceMeters < nearby[j].DistanceMeters })
	return nearby, nil
}

func (s *Store) active(ctx context.Context) ([]models.CollectorProfile, error) {
	now := s.now()
	profiles, err := s.profiles.FindActive(ctx, now.Add(-s.staleness))
	if err != nil {
		return nil, fmt.Errorf("failed to load active collectors: %w", err)
	}
	active := profiles[:0]
	for _, p := range profiles {
		if p.IsActive(now, s.staleness) {
			active = append(active, p)
		}
	}
	return active, nil
}

func (s *Store) usersByID(ctx context.Context, profiles []models.CollectorProfile) (map[primitive.ObjectID]models.User, error) {
	ids := make([]primitive.ObjectID, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.UserID)
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load collector identities: %w", err)
	}
	byID := make(map[primitive.ObjectID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID, nil
}

func liveLocation(p models.CollectorProfile, u models.User) models.LiveLocation {
	return models.LiveLocation{
		Latitude:  *p.CurrentLat,
		Longitude: *p.CurrentLng,
		Timestamp: *p.LastLocationUpdate,
		IsOnline:  true,
		CollectorInfo: models.CollectorInfo{
			Name:          u.FullName,
			Phone:         u.Phone,
			Email:         u.Email,
			VehicleNumber: p.VehicleNumber,
			VehicleType:   p.VehicleType,
		},
	}
}

package location

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/smartwaste/smartwaste-api/apperrors"
	"github.com/smartwaste/smartwaste-api/models"
	"github.com/smartwaste/smartwaste-api/notify"
)

type memProfiles struct {
	mu       sync.Mutex
	profiles map[primitive.ObjectID]models.CollectorProfile
	err      error
}

func newMemProfiles(ps ...models.CollectorProfile) *memProfiles {
	m := &memProfiles{profiles: map[primitive.ObjectID]models.CollectorProfile{}}
	for _, p := range ps {
		m.profiles[p.ID] = p
	}
	return m
}

func (m *memProfiles) FindByID(_ context.Context, id primitive.ObjectID) (*models.CollectorProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, fmt.Errorf("collector profile: %w", apperrors.ErrNotFound)
	}
	p.CurrentRoute.Coordinates = append([][]float64(nil), p.CurrentRoute.Coordinates...)
	return &p, nil
}

// FindActive ignores since; the store filters again itself
func (m *memProfiles) FindActive(_ context.Context, _ time.Time) ([]models.CollectorProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []models.CollectorProfile
	for _, p := range m.profiles {
		out = append(out, p)
	}
	return out, nil
}

func (m *memProfiles) SaveLocation(_ context.Context, p *models.CollectorProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = *p
	return nil
}

func (m *memProfiles) get(id primitive.ObjectID) models.CollectorProfile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profiles[id]
}

type memUsers []models.User

func (m memUsers) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	var out []models.User
	for _, u := range m {
		for _, id := range ids {
			if u.ID == id {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

func (m memUsers) FindResidentsWithHome(_ context.Context) ([]models.User, error) {
	var out []models.User
	for _, u := range m {
		if u.HasRole(models.RoleResident) && u.HasHomeLocation() {
			out = append(out, u)
		}
	}
	return out, nil
}

type failingCandidates struct{}

func (failingCandidates) FindResidentsWithHome(_ context.Context) ([]models.User, error) {
	return nil, errors.New("connection reset")
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []notify.ProximityEvent
	failOn map[primitive.ObjectID]bool
}

func (r *recordingDispatcher) Dispatch(_ context.Context, ev notify.ProximityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn[ev.RequesterID] {
		return fmt.Errorf("smtp: %w", apperrors.ErrUnavailable)
	}
	r.events = append(r.events, ev)
	return nil
}

func resident(name string, lat, lng float64) models.User {
	return models.User{
		ID:          primitive.NewObjectID(),
		FullName:    name,
		Email:       name + "@example.com",
		Roles:       []string{models.RoleResident},
		LocationLat: &lat,
		LocationLng: &lng,
	}
}

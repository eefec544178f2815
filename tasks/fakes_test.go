package tasks

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/smartwaste/smartwaste-api/apperrors"
	"github.com/smartwaste/smartwaste-api/models"
)

type memTasks struct {
	mu    sync.Mutex
	kind  models.TaskKind
	tasks map[primitive.ObjectID]models.Task
	// interfere bumps the stored version before the next n swaps
	interfere int
	swaps     int
}

func newMemTasks(kind models.TaskKind, ts ...models.Task) *memTasks {
	m := &memTasks{kind: kind, tasks: map[primitive.ObjectID]models.Task{}}
	for _, t := range ts {
		m.tasks[t.ID] = t
	}
	return m
}

func (m *memTasks) Kind() models.TaskKind { return m.kind }

func (m *memTasks) FindByID(_ context.Context, id primitive.ObjectID) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", m.kind, apperrors.ErrNotFound)
	}
	return &t, nil
}

func (m *memTasks) List(_ context.Context, q models.TaskQuery) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Task
	for _, t := range m.tasks {
		if q.UserID != nil && t.UserID != *q.UserID {
			continue
		}
		if q.CollectorID != nil && !t.IsAssignedTo(*q.CollectorID) {
			continue
		}
		if q.ServiceType != "" && t.ServiceType != q.ServiceType {
			continue
		}
		t.Kind = m.kind
		out = append(out, t)
	}
	return out, nil
}

func (m *memTasks) InsertOne(_ context.Context, t *models.Task) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := primitive.NewObjectID()
	stored := *t
	stored.ID = id
	m.tasks[id] = stored
	return id, nil
}

func (m *memTasks) CompareAndSwap(_ context.Context, t *models.Task, expected int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.swaps++
	stored, ok := m.tasks[t.ID]
	if !ok {
		return false, nil
	}
	if m.interfere > 0 {
		m.interfere--
		stored.Version++
		m.tasks[t.ID] = stored
	}
	if stored.Version != expected {
		return false, nil
	}
	next := *t
	next.Version = expected + 1
	m.tasks[t.ID] = next
	t.Version = next.Version
	return true, nil
}

func (m *memTasks) get(id primitive.ObjectID) models.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks[id]
}

type memCollectors []models.CollectorProfile

func (m memCollectors) FindByID(_ context.Context, id primitive.ObjectID) (*models.CollectorProfile, error) {
	for _, p := range m {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("collector profile: %w", apperrors.ErrNotFound)
}

func (m memCollectors) FindByUserID(_ context.Context, userID primitive.ObjectID) (*models.CollectorProfile, error) {
	for _, p := range m {
		if p.UserID == userID {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("collector profile: %w", apperrors.ErrNotFound)
}

func (m memCollectors) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.CollectorProfile, error) {
	var out []models.CollectorProfile
	for _, p := range m {
		for _, id := range ids {
			if p.ID == id {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}

type memUsers []models.User

func (m memUsers) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	var out []models.User
	for _, u := range m {
		for _, id := range ids {
			if u.ID == id {
				out = append(out, u)
				break
			}
		}
	}
	return out, nil
}

type homeCall struct {
	id       primitive.ObjectID
	address  string
	lat, lng float64
}

type recordingHomes struct {
	calls []homeCall
	err   error
}

func (r *recordingHomes) SetHomeLocation(_ context.Context, id primitive.ObjectID, address string, lat, lng float64) error {
	r.calls = append(r.calls, homeCall{id: id, address: address, lat: lat, lng: lng})
	return r.err
}

func newUser(name string, roles ...string) models.User {
	return models.User{ID: primitive.NewObjectID(), Username: name, FullName: name, Roles: roles}
}

func newProfile(owner models.User, vehicle string) models.CollectorProfile {
	return models.CollectorProfile{ID: primitive.NewObjectID(), UserID: owner.ID, VehicleNumber: vehicle, VehicleType: "truck"}
}

func ptr(f float64) *float64 { return &f }

package handlers_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/smartwaste/smartwaste-api/apperrors"
	"github.com/smartwaste/smartwaste-api/models"
	"github.com/smartwaste/smartwaste-api/notify"
)

// world is an in-memory backing for every store the App needs
type world struct {
	mu         sync.Mutex
	users      map[primitive.ObjectID]models.User
	collectors map[primitive.ObjectID]models.CollectorProfile
}

func newWorld() *world {
	return &world{
		users:      map[primitive.ObjectID]models.User{},
		collectors: map[primitive.ObjectID]models.CollectorProfile{},
	}
}

func (w *world) addUser(u models.User) models.User {
	w.mu.Lock()
	defer w.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	w.users[u.ID] = u
	return u
}

func (w *world) addProfile(p models.CollectorProfile) models.CollectorProfile {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	w.collectors[p.ID] = p
	return p
}

func (w *world) user(id primitive.ObjectID) models.User {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.users[id]
}

func (w *world) profile(id primitive.ObjectID) models.CollectorProfile {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.collectors[id]
}

type userStore struct{ *world }

func (s userStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user: %w", apperrors.ErrNotFound)
	}
	u.Roles = append([]string(nil), u.Roles...)
	return &u, nil
}

func (s userStore) FindByLogin(_ context.Context, login string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == login || (u.Email != "" && u.Email == login) || (u.Phone != "" && u.Phone == login) {
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user: %w", apperrors.ErrNotFound)
}

func (s userStore) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s userStore) FindResidentsWithHome(_ context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for _, u := range s.users {
		if u.HasRole(models.RoleResident) && u.HasHomeLocation() {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s userStore) List(_ context.Context, role string, _, _ int) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for _, u := range s.users {
		if role == "" || u.HasRole(role) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s userStore) InsertOne(_ context.Context, u *models.User) (primitive.ObjectID, error) {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	s.addUser(*u)
	return u.ID, nil
}

func (s userStore) update(id primitive.ObjectID, fn func(*models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user: %w", apperrors.ErrNotFound)
	}
	fn(&u)
	s.users[id] = u
	return nil
}

func (s userStore) AddRole(_ context.Context, id primitive.ObjectID, role string) error {
	return s.update(id, func(u *models.User) {
		if !u.HasRole(role) {
			u.Roles = append(u.Roles, role)
		}
	})
}

func (s userStore) SetHomeLocation(_ context.Context, id primitive.ObjectID, address string, lat, lng float64) error {
	return s.update(id, func(u *models.User) {
		u.LocationAddress, u.LocationLat, u.LocationLng = address, &lat, &lng
	})
}

func (s userStore) SetTwoFactorCode(_ context.Context, id primitive.ObjectID, codeHash string, expires, sent time.Time) error {
	return s.update(id, func(u *models.User) {
		u.TwoFactorCode, u.TwoFactorExpires, u.TwoFactorLastSent = codeHash, &expires, &sent
	})
}

func (s userStore) ClearTwoFactorCode(_ context.Context, id primitive.ObjectID) error {
	return s.update(id, func(u *models.User) {
		u.TwoFactorCode, u.TwoFactorExpires = "", nil
	})
}

func (s userStore) CountDocuments(_ context.Context, _ interface{}) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.users)), nil
}

type collectorStore struct{ *world }

func (s collectorStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.CollectorProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.collectors[id]
	if !ok {
		return nil, fmt.Errorf("collector profile: %w", apperrors.ErrNotFound)
	}
	return &p, nil
}

func (s collectorStore) FindByUserID(_ context.Context, userID primitive.ObjectID) (*models.CollectorProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.collectors {
		if p.UserID == userID {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("collector profile: %w", apperrors.ErrNotFound)
}

func (s collectorStore) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.CollectorProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CollectorProfile
	for _, id := range ids {
		if p, ok := s.collectors[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s collectorStore) FindAll(_ context.Context) ([]models.CollectorProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.CollectorProfile, 0, len(s.collectors))
	for _, p := range s.collectors {
		out = append(out, p)
	}
	return out, nil
}

func (s collectorStore) FindActive(_ context.Context, since time.Time) ([]models.CollectorProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.CollectorProfile
	for _, p := range s.collectors {
		if p.IsAvailable && p.LastLocationUpdate != nil && !p.LastLocationUpdate.Before(since) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s collectorStore) InsertOne(_ context.Context, p *models.CollectorProfile) (primitive.ObjectID, error) {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	s.addProfile(*p)
	return p.ID, nil
}

func (s collectorStore) SaveLocation(_ context.Context, p *models.CollectorProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collectors[p.ID] = *p
	return nil
}

func (s collectorStore) UpdateVehicle(_ context.Context, id primitive.ObjectID, vehicleNumber, vehicleType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.collectors[id]
	if !ok {
		return fmt.Errorf("collector profile: %w", apperrors.ErrNotFound)
	}
	p.VehicleNumber, p.VehicleType = vehicleNumber, vehicleType
	s.collectors[id] = p
	return nil
}

func (s collectorStore) MarkStaleOffline(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type taskStore struct {
	mu    sync.Mutex
	kind  models.TaskKind
	tasks map[primitive.ObjectID]models.Task
}

func newTaskStore(kind models.TaskKind) *taskStore {
	return &taskStore{kind: kind, tasks: map[primitive.ObjectID]models.Task{}}
}

func (s *taskStore) Kind() models.TaskKind { return s.kind }

func (s *taskStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", s.kind, apperrors.ErrNotFound)
	}
	return &t, nil
}

func (s *taskStore) List(_ context.Context, q models.TaskQuery) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Task
	for _, t := range s.tasks {
		if q.UserID != nil && t.UserID != *q.UserID {
			continue
		}
		if q.CollectorID != nil && !t.IsAssignedTo(*q.CollectorID) {
			continue
		}
		if q.ServiceType != "" && t.ServiceType != q.ServiceType {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *taskStore) InsertOne(_ context.Context, t *models.Task) (primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	t.Kind = s.kind
	s.tasks[t.ID] = *t
	return t.ID, nil
}

func (s *taskStore) CompareAndSwap(_ context.Context, t *models.Task, expected int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.tasks[t.ID]
	if !ok || stored.Version != expected {
		return false, nil
	}
	next := *t
	next.Version = expected + 1
	s.tasks[t.ID] = next
	t.Version = next.Version
	return true, nil
}

func (s *taskStore) get(id primitive.ObjectID) models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[id]
}

type transactor struct {
	*world
	bookings, reports *taskStore
}

func (tx transactor) DeleteIdentity(_ context.Context, plan models.DeletionPlan) error {
	tx.mu.Lock()
	delete(tx.users, plan.UserID)
	if plan.CollectorProfileID != nil {
		delete(tx.collectors, *plan.CollectorProfileID)
	}
	tx.mu.Unlock()

	for _, s := range []*taskStore{tx.bookings, tx.reports} {
		s.mu.Lock()
		for id, t := range s.tasks {
			if plan.DeleteRequests && t.UserID == plan.UserID {
				delete(s.tasks, id)
				continue
			}
			if plan.CollectorProfileID != nil && t.CollectorID != nil && *t.CollectorID == *plan.CollectorProfileID {
				t.CollectorID = nil
				t.AssignedAt = nil
				t.Status = models.StatusPending
				t.Version++
				s.tasks[id] = t
			}
		}
		s.mu.Unlock()
	}
	return nil
}

func (tx transactor) CreateCollector(_ context.Context, u *models.User, p *models.CollectorProfile) error {
	stored := tx.addUser(*u)
	u.ID = stored.ID
	p.UserID = u.ID
	*p = tx.addProfile(*p)
	return nil
}

func (tx transactor) PromoteToCollector(_ context.Context, userID primitive.ObjectID, p *models.CollectorProfile) error {
	p.UserID = userID
	*p = tx.addProfile(*p)
	return userStore{tx.world}.AddRole(context.Background(), userID, models.RoleCollector)
}

type noLocks struct{}

func (noLocks) TryAcquireLock(context.Context, string, string, time.Duration) (bool, error) {
	return true, nil
}

func (noLocks) ReleaseLock(context.Context, string, string) error { return nil }

type recordingDispatcher struct {
	mu     sync.Mutex
	events []notify.ProximityEvent
}

func (d *recordingDispatcher) Dispatch(_ context.Context, ev notify.ProximityEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
	return nil
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.events)
}

type recordingCodes struct {
	mu    sync.Mutex
	codes []string
}

func (c *recordingCodes) SendCode(_ context.Context, _ notify.Recipient, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes = append(c.codes, code)
	return nil
}

func (c *recordingCodes) last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.codes) == 0 {
		return ""
	}
	return c.codes[len(c.codes)-1]
}

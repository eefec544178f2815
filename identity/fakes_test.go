package identity

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

type memUsers struct {
	mu     sync.Mutex
	users  map[primitive.ObjectID]*models.User
	addErr error
}

func newMemUsers(us ...models.User) *memUsers {
	m := &memUsers{users: map[primitive.ObjectID]*models.User{}}
	for i := range us {
		u := us[i]
		m.users[u.ID] = &u
	}
	return m
}

func (m *memUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user: %w", apperrors.ErrNotFound)
	}
	cp := *u
	cp.Roles = append([]string(nil), u.Roles...)
	return &cp, nil
}

func (m *memUsers) FindByLogin(_ context.Context, login string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == login || (u.Email != "" && u.Email == login) || (u.Phone != "" && u.Phone == login) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user: %w", apperrors.ErrNotFound)
}

func (m *memUsers) List(_ context.Context, role string, _, _ int) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	for _, u := range m.users {
		if role == "" || u.HasRole(role) {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *memUsers) InsertOne(_ context.Context, u *models.User) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	cp := *u
	m.users[u.ID] = &cp
	return u.ID, nil
}

func (m *memUsers) AddRole(_ context.Context, id primitive.ObjectID, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addErr != nil {
		return m.addErr
	}
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("user: %w", apperrors.ErrNotFound)
	}
	if !u.HasRole(role) {
		u.Roles = append(u.Roles, role)
	}
	return nil
}

func (m *memUsers) SetTwoFactorCode(_ context.Context, id primitive.ObjectID, hash string, expires, sent time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[id]
	u.TwoFactorCode = hash
	u.TwoFactorExpires = &expires
	u.TwoFactorLastSent = &sent
	return nil
}

func (m *memUsers) ClearTwoFactorCode(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[id]
	u.TwoFactorCode = ""
	u.TwoFactorExpires = nil
	return nil
}

func (m *memUsers) get(id primitive.ObjectID) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.users[id]
}

type memProfiles struct {
	profiles []models.CollectorProfile
	err      error
}

func (m *memProfiles) FindByUserID(_ context.Context, userID primitive.ObjectID) (*models.CollectorProfile, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, p := range m.profiles {
		if p.UserID == userID {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("collector profile: %w", apperrors.ErrNotFound)
}

func (m *memProfiles) FindAll(_ context.Context) ([]models.CollectorProfile, error) {
	return m.profiles, m.err
}

func (m *memProfiles) UpdateVehicle(_ context.Context, id primitive.ObjectID, number, kind string) error {
	for i := range m.profiles {
		if m.profiles[i].ID == id {
			m.profiles[i].VehicleNumber, m.profiles[i].VehicleType = number, kind
			return nil
		}
	}
	return fmt.Errorf("collector profile: %w", apperrors.ErrNotFound)
}

// memTx applies the transactional writes against the in-memory stores
type memTx struct {
	users    *memUsers
	profiles *memProfiles
	plans    []models.DeletionPlan
	err      error
}

func (m *memTx) DeleteIdentity(_ context.Context, plan models.DeletionPlan) error {
	if m.err != nil {
		return m.err
	}
	m.plans = append(m.plans, plan)
	return nil
}

func (m *memTx) CreateCollector(ctx context.Context, u *models.User, p *models.CollectorProfile) error {
	if m.err != nil {
		return m.err
	}
	if _, err := m.users.InsertOne(ctx, u); err != nil {
		return err
	}
	p.ID = primitive.NewObjectID()
	p.UserID = u.ID
	m.profiles.profiles = append(m.profiles.profiles, *p)
	return nil
}

func (m *memTx) PromoteToCollector(ctx context.Context, userID primitive.ObjectID, p *models.CollectorProfile) error {
	if m.err != nil {
		return m.err
	}
	p.ID = primitive.NewObjectID()
	p.UserID = userID
	m.profiles.profiles = append(m.profiles.profiles, *p)
	return m.users.AddRole(ctx, userID, models.RoleCollector)
}

type capturedCode struct {
	to   notify.Recipient
	code string
}

type recordingSender struct {
	sent []capturedCode
	err  error
}

func (r *recordingSender) SendCode(_ context.Context, to notify.Recipient, code string) error {
	r.sent = append(r.sent, capturedCode{to: to, code: code})
	return r.err
}

var errDown = errors.New("connection refused")

func user(name string, roles ...string) models.User {
	return models.User{ID: primitive.NewObjectID(), Username: name, Email: name + "@example.com", Roles: roles}
}

// Package tasks runs the booking and report workflow: intake, status
// transitions with assignment, and listings resolved for display.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/smartwaste/smartwaste-api/apperrors"
	"github.com/smartwaste/smartwaste-api/models"
)

// casAttempts bounds how often a status change is tried against a task that
// keeps changing underneath it
const casAttempts = 2

// TaskStore persists the tasks of one kind
type TaskStore interface {
	Kind() models.TaskKind
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Task, error)
	List(ctx context.Context, q models.TaskQuery) ([]models.Task, error)
	InsertOne(ctx context.Context, task *models.Task) (primitive.ObjectID, error)
	CompareAndSwap(ctx context.Context, task *models.Task, expectedVersion int64) (bool, error)
}

// CollectorLookup resolves collector profiles
type CollectorLookup interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.CollectorProfile, error)
	FindByUserID(ctx context.Context, userID primitive.ObjectID) (*models.CollectorProfile, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.CollectorProfile, error)
}

// UserLookup resolves identities for display
type UserLookup interface {
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
}

// StatusChange is a request to move a task to a new status
type StatusChange struct {
	Kind   models.TaskKind
	TaskID primitive.ObjectID
	Status string
	Actor  models.User
	// Assignee optionally names the collector profile for an assignment
	Assignee *primitive.ObjectID
}

// Machine applies status changes to tasks
type Machine struct {
	stores     map[models.TaskKind]TaskStore
	collectors CollectorLookup
	users      UserLookup
	now        func() time.Time
}

// NewMachine returns a Machine over the given stores, one per kind
func NewMachine(collectors CollectorLookup, users UserLookup, stores ...TaskStore) *Machine {
	m := &Machine{
		stores:     make(map[models.TaskKind]TaskStore, len(stores)),
		collectors: collectors,
		users:      users,
		now:        time.Now,
	}
	for _, s := range stores {
		m.stores[s.Kind()] = s
	}
	return m
}

func (m *Machine) store(kind models.TaskKind) (TaskStore, error) {
	s, ok := m.stores[kind]
	if !ok {
		return nil, fmt.Errorf("unknown task kind %q: %w", kind, apperrors.ErrValidation)
	}
	return s, nil
}

// SetStatus moves a task to the requested status on behalf of the actor and
// returns it resolved for display. The write only lands if the task did not
// change since it was read; one lost race is retried, a second is a conflict.
func (m *Machine) SetStatus(ctx context.Context, req StatusChange) (*models.TaskView, error) {
	store, err := m.store(req.Kind)
	if err != nil {
		return nil, err
	}
	if !req.Kind.HasStatus(req.Status) {
		return nil, fmt.Errorf("unknown %s status %q: %w", req.Kind, req.Status, apperrors.ErrValidation)
	}
	role := roleOf(req.Actor)
	if role == "" {
		return nil, fmt.Errorf("caller has no role: %w", apperrors.ErrForbidden)
	}
	actorProfile, err := m.actorProfile(ctx, req.Actor, role)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < casAttempts; attempt++ {
		current, err := store.FindByID(ctx, req.TaskID)
		if err != nil {
			return nil, err
		}
		current.Kind = req.Kind

		next, err := m.apply(ctx, *current, req, role, actorProfile)
		if err != nil {
			return nil, err
		}
		ok, err := store.CompareAndSwap(ctx, next, current.Version)
		if err != nil {
			return nil, fmt.Errorf("failed to save %s: %w", req.Kind, err)
		}
		if ok {
			zap.S().Infow("task status changed",
				"kind", req.Kind,
				"taskId", req.TaskID.Hex(),
				"from", current.Status,
				"to", next.Status,
				"actor", req.Actor.ID.Hex(),
			)
			views, err := m.views(ctx, []models.Task{*next})
			if err != nil {
				return nil, err
			}
			return &views[0], nil
		}
		zap.S().Debugw("task changed concurrently", "kind", req.Kind, "taskId", req.TaskID.Hex(), "attempt", attempt+1)
	}
	return nil, fmt.Errorf("%s %s was modified concurrently: %w", req.Kind, req.TaskID.Hex(), apperrors.ErrConflict)
}

// actorProfile loads the profile of a collector actor. Admins holding the
// collector capability get theirs too, when it exists, so they can self-assign.
func (m *Machine) actorProfile(ctx context.Context, actor models.User, role string) (*models.CollectorProfile, error) {
	if !actor.HasRole(models.RoleCollector) {
		return nil, nil
	}
	p, err := m.collectors.FindByUserID(ctx, actor.ID)
	switch {
	case err == nil:
		return p, nil
	case errors.Is(err, apperrors.ErrNotFound) && role == models.RoleAdmin:
		return nil, nil
	default:
		return nil, err
	}
}

func (m *Machine) apply(ctx context.Context, task models.Task, req StatusChange, role string, actorProfile *models.CollectorProfile) (*models.Task, error) {
	switch role {
	case models.RoleCollector:
		claim := task.Status == models.StatusPending && task.CollectorID == nil &&
			req.Status == models.StatusAssigned &&
			(req.Assignee == nil || *req.Assignee == actorProfile.ID)
		if !claim && !task.IsAssignedTo(actorProfile.ID) {
			return nil, fmt.Errorf("%s is not assigned to this collector: %w", req.Kind, apperrors.ErrForbidden)
		}
	case models.RoleResident:
		if task.UserID != req.Actor.ID {
			return nil, fmt.Errorf("%s belongs to another requester: %w", req.Kind, apperrors.ErrForbidden)
		}
	}

	roles, legal := rule(req.Kind, task.Status, req.Status)
	if !legal {
		return nil, fmt.Errorf("cannot move %s from %s to %s: %w", req.Kind, task.Status, req.Status, apperrors.ErrConflict)
	}
	if !contains(roles, role) {
		return nil, fmt.Errorf("%s may not move %s from %s to %s: %w", role, req.Kind, task.Status, req.Status, apperrors.ErrForbidden)
	}

	now := m.now()
	next := task
	next.Status = req.Status
	next.UpdatedAt = now

	switch req.Status {
	case models.StatusAssigned:
		assignee, err := m.assignee(ctx, req.Assignee, actorProfile)
		if err != nil {
			return nil, err
		}
		next.CollectorID = &assignee
		next.AssignedAt = &now
	case models.StatusInProgress:
		next.StartedAt = &now
	case models.StatusCompleted:
		next.CompletedAt = &now
	case models.StatusCleared:
		next.ClearedAt = &now
	case models.StatusCancelled, models.StatusRejected:
		next.CollectorID = nil
	case models.StatusPending:
		next.CollectorID = nil
		next.AssignedAt = nil
	}
	return &next, nil
}

func (m *Machine) assignee(ctx context.Context, explicit *primitive.ObjectID, actorProfile *models.CollectorProfile) (primitive.ObjectID, error) {
	if explicit != nil {
		p, err := m.collectors.FindByID(ctx, *explicit)
		if err != nil {
			return primitive.NilObjectID, err
		}
		return p.ID, nil
	}
	if actorProfile != nil {
		return actorProfile.ID, nil
	}
	return primitive.NilObjectID, fmt.Errorf("an assignee is required: %w", apperrors.ErrValidation)
}

// List returns tasks matching q, newest first. An empty kind lists every kind.
func (m *Machine) List(ctx context.Context, kind models.TaskKind, q models.TaskQuery) ([]models.TaskView, error) {
	stores := make([]TaskStore, 0, len(m.stores))
	if kind == "" {
		for _, k := range []models.TaskKind{models.KindBooking, models.KindReport} {
			if s, ok := m.stores[k]; ok {
				stores = append(stores, s)
			}
		}
	} else {
		s, err := m.store(kind)
		if err != nil {
			return nil, err
		}
		stores = append(stores, s)
	}

	var all []models.Task
	for _, s := range stores {
		found, err := s.List(ctx, q)
		if err != nil {
			return nil, err
		}
		all = append(all, found...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return m.views(ctx, all)
}

// ListForCollector returns the tasks of kind assigned to the collector profile of user
func (m *Machine) ListForCollector(ctx context.Context, kind models.TaskKind, user models.User) ([]models.TaskView, error) {
	p, err := m.collectors.FindByUserID(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return m.List(ctx, kind, models.TaskQuery{CollectorID: &p.ID})
}

// views resolves requester and assignee of each task
func (m *Machine) views(ctx context.Context, tasks []models.Task) ([]models.TaskView, error) {
	views := make([]models.TaskView, len(tasks))
	if len(tasks) == 0 {
		return views, nil
	}

	var profileIDs []primitive.ObjectID
	for _, t := range tasks {
		if t.CollectorID != nil {
			profileIDs = append(profileIDs, *t.CollectorID)
		}
	}
	profiles, err := m.collectors.FindByIDs(ctx, profileIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve assignees: %w", err)
	}
	profileByID := make(map[primitive.ObjectID]models.CollectorProfile, len(profiles))
	userIDs := make([]primitive.ObjectID, 0, len(tasks)+len(profiles))
	for _, p := range profiles {
		profileByID[p.ID] = p
		userIDs = append(userIDs, p.UserID)
	}
	for _, t := range tasks {
		userIDs = append(userIDs, t.UserID)
	}
	users, err := m.users.FindByIDs(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve requesters: %w", err)
	}
	userByID := make(map[primitive.ObjectID]models.User, len(users))
	for _, u := range users {
		userByID[u.ID] = u
	}

	for i, t := range tasks {
		views[i].Task = t
		if u, ok := userByID[t.UserID]; ok {
			views[i].Requester = u.Summary()
		}
		if t.CollectorID == nil {
			continue
		}
		p, ok := profileByID[*t.CollectorID]
		if !ok {
			continue
		}
		views[i].Collector = &models.CollectorSummary{
			ID:            p.ID,
			VehicleNumber: p.VehicleNumber,
			VehicleType:   p.VehicleType,
		}
		if u, ok := userByID[p.UserID]; ok {
			views[i].Collector.User = u.Summary()
		}
	}
	return views, nil
}

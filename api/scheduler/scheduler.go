package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// RoleSyncer repairs missing collector capabilities
type RoleSyncer interface {
	SyncAll(ctx context.Context) (int, error)
}

// CooldownPruner drops expired proximity cool-down entries
type CooldownPruner interface {
	Prune() int
}

// StaleSweeper marks collectors that stopped reporting as offline
type StaleSweeper interface {
	MarkStaleOffline(ctx context.Context, before time.Time) (int64, error)
}

// Locker coordinates jobs between instances
type Locker interface {
	TryAcquireLock(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name, owner string) error
}

// Scheduler handles periodic background jobs
type Scheduler struct {
	cron       *cron.Cron
	Roles      RoleSyncer
	Cooldown   CooldownPruner
	Collectors StaleSweeper
	Lock       Locker
	Staleness  time.Duration
	instanceID string
	now        func() time.Time
}

// NewScheduler creates a new scheduler instance
func NewScheduler(roles RoleSyncer, cooldown CooldownPruner, collectors StaleSweeper, lock Locker, staleness time.Duration) *Scheduler {
	// Heroku sets DYNO to "web.1", "web.2", etc.
	instanceID := os.Getenv("DYNO")
	if instanceID == "" {
		instanceID = fmt.Sprintf("instance-%d", time.Now().UnixNano())
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		Roles:      roles,
		Cooldown:   cooldown,
		Collectors: collectors,
		Lock:       lock,
		Staleness:  staleness,
		instanceID: instanceID,
		now:        time.Now,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	// Repair collector capabilities hourly
	_, err := s.cron.AddFunc("@hourly", s.syncCollectorRoles)
	if err != nil {
		zap.S().Errorw("failed to register role sync job", "error", err)
	}

	// Cool-down entries are per instance, so no lock
	_, err = s.cron.AddFunc("@every 5m", s.pruneCooldown)
	if err != nil {
		zap.S().Errorw("failed to register cooldown prune job", "error", err)
	}

	_, err = s.cron.AddFunc("@every 5m", s.sweepStaleCollectors)
	if err != nil {
		zap.S().Errorw("failed to register stale collector job", "error", err)
	}

	s.cron.Start()
	zap.S().Info("scheduler started")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("scheduler stopped")
}

// locked runs job only if this instance wins the named lock
func (s *Scheduler) locked(ctx context.Context, name string, ttl time.Duration, job func(ctx context.Context)) {
	if s.Lock != nil {
		acquired, err := s.Lock.TryAcquireLock(ctx, name, s.instanceID, ttl)
		if err != nil {
			zap.S().Errorw("failed to acquire lock", "job", name, "error", err)
			return
		}
		if !acquired {
			zap.S().Debugw("job already running on another instance, skipping", "job", name)
			return
		}
		defer func() {
			if err := s.Lock.ReleaseLock(ctx, name, s.instanceID); err != nil {
				zap.S().Warnw("failed to release lock", "job", name, "error", err)
			}
		}()
	}
	job(ctx)
}

func (s *Scheduler) syncCollectorRoles() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	s.locked(ctx, "collector_role_sync", 10*time.Minute, func(ctx context.Context) {
		updated, err := s.Roles.SyncAll(ctx)
		if err != nil {
			zap.S().Errorw("collector role sync failed", "updated", updated, "error", err)
			return
		}
		zap.S().Infow("collector role sync done", "instance", s.instanceID, "updated", updated)
	})
}

func (s *Scheduler) pruneCooldown() {
	if s.Cooldown == nil {
		return
	}
	if n := s.Cooldown.Prune(); n > 0 {
		zap.S().Debugw("pruned proximity cooldown entries", "count", n)
	}
}

func (s *Scheduler) sweepStaleCollectors() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	s.locked(ctx, "stale_collector_sweep", 2*time.Minute, func(ctx context.Context) {
		n, err := s.Collectors.MarkStaleOffline(ctx, s.now().Add(-s.Staleness))
		if err != nil {
			zap.S().Errorw("failed to mark stale collectors offline", "error", err)
			return
		}
		if n > 0 {
			zap.S().Infow("marked stale collectors offline", "count", n)
		}
	})
}

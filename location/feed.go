package location

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultFeedInterval is the push period of the live feed
const DefaultFeedInterval = 3 * time.Second

// SnapshotSource produces the active location snapshot
type SnapshotSource interface {
	ActiveSnapshot(ctx context.Context) (Snapshot, error)
}

// Feed pushes the active snapshot to subscribers on a fixed interval. Each
// subscriber gets its own ticker, so a slow consumer only delays itself.
type Feed struct {
	source      SnapshotSource
	interval    time.Duration
	subscribers atomic.Int64
}

// NewFeed returns a Feed; a non-positive interval falls back to DefaultFeedInterval
func NewFeed(source SnapshotSource, interval time.Duration) *Feed {
	if interval <= 0 {
		interval = DefaultFeedInterval
	}
	return &Feed{source: source, interval: interval}
}

// Subscribers returns the number of open streams
func (f *Feed) Subscribers() int64 {
	return f.subscribers.Load()
}

// Stream sends a snapshot right away and then once per interval until ctx is
// done or send fails. Snapshots are sent in order from a single goroutine.
// A snapshot that cannot be built is logged and skipped. Stream returns nil
// when ctx ends and send's error otherwise.
func (f *Feed) Stream(ctx context.Context, send func(Snapshot) error) error {
	id := uuid.NewString()
	n := f.subscribers.Add(1)
	defer f.subscribers.Add(-1)
	zap.S().Debugw("location feed subscriber connected", "subscriber", id, "subscribers", n)
	defer zap.S().Debugw("location feed subscriber disconnected", "subscriber", id)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	if err := f.push(ctx, id, send); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := f.push(ctx, id, send); err != nil {
				return err
			}
		}
	}
}

func (f *Feed) push(ctx context.Context, id string, send func(Snapshot) error) error {
	snap, err := f.source.ActiveSnapshot(ctx)
	if err != nil {
		if ctx.Err() == nil {
			zap.S().Warnw("failed to build location snapshot", "subscriber", id, "error", err)
		}
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}
	return send(snap)
}

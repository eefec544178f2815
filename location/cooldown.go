package location

import (
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type pair struct {
	collector primitive.ObjectID
	requester primitive.ObjectID
}

// Cooldown suppresses repeat proximity notifications for the same
// (collector, requester) pair inside a window. A zero window disables it.
type Cooldown struct {
	mu     sync.Mutex
	window time.Duration
	last   map[pair]time.Time
	now    func() time.Time
}

// NewCooldown returns a Cooldown with the given window
func NewCooldown(window time.Duration) *Cooldown {
	return &Cooldown{window: window, last: map[pair]time.Time{}, now: time.Now}
}

// Allow reports whether the pair may be notified now, and if so starts a new window
func (c *Cooldown) Allow(collector, requester primitive.ObjectID) bool {
	if c == nil || c.window <= 0 {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	k := pair{collector: collector, requester: requester}
	if at, ok := c.last[k]; ok && now.Sub(at) < c.window {
		return false
	}
	c.last[k] = now
	return true
}

// Forget drops a pair so its next match is delivered
func (c *Cooldown) Forget(collector, requester primitive.ObjectID) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.last, pair{collector: collector, requester: requester})
	c.mu.Unlock()
}

// Prune removes expired pairs and returns how many were dropped
func (c *Cooldown) Prune() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	dropped := 0
	for k, at := range c.last {
		if now.Sub(at) >= c.window {
			delete(c.last, k)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of tracked pairs
func (c *Cooldown) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.last)
}

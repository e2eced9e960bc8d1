package sim

import (
	"sync"
	"time"
)

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// ManualClock only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(now time.Time) *ManualClock {
	return &ManualClock{now: now}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *ManualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Timeline maps wall-clock time onto simulated time: Origin corresponds to
// SimStart and both advance at the same rate.
type Timeline struct {
	Origin   time.Time
	SimStart time.Time
}

func (tl Timeline) At(now time.Time) time.Time {
	return tl.SimStart.Add(now.Sub(tl.Origin))
}

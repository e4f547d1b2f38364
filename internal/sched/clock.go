// internal/sched/clock.go

package sched

import (
	"sync/atomic"
	"time"
)

// VTime is a point on the scheduler's virtual timeline, in nanoseconds since
// the scheduler was built. It is decoupled from wall-clock time: the loop
// advances it deterministically, and only when nothing is runnable at the
// current instant.
type VTime int64

// Duration converts a virtual instant into the offset from time zero.
func (t VTime) Duration() time.Duration { return time.Duration(t) }

// VirtualClock tracks virtual time and counts atomically, so status
// consumers on other goroutines can read it without racing the loop.
type VirtualClock struct {
	now atomic.Int64
}

// NewVirtualClock creates a clock stopped at time zero.
func NewVirtualClock() *VirtualClock {
	return &VirtualClock{}
}

// Now returns the current virtual time atomically.
func (c *VirtualClock) Now() VTime {
	return VTime(c.now.Load())
}

// AdvanceTo moves the clock forward to t. The clock never moves backwards;
// an attempt to do so is an internal bug and panics.
func (c *VirtualClock) AdvanceTo(t VTime) {
	if int64(t) < c.now.Load() {
		invariantf("virtual clock moved backwards: %d -> %d", c.now.Load(), int64(t))
	}
	c.now.Store(int64(t))
}

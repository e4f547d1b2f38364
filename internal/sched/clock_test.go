package sched

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVirtualClockStartsAtZero(t *testing.T) {
	c := NewVirtualClock()
	assert.Equal(t, VTime(0), c.Now())
}

func TestVirtualClockAdvances(t *testing.T) {
	c := NewVirtualClock()
	c.AdvanceTo(VTime(5 * time.Millisecond))
	require.Equal(t, VTime(5*time.Millisecond), c.Now())

	// advancing to the same instant is fine
	c.AdvanceTo(VTime(5 * time.Millisecond))
	require.Equal(t, VTime(5*time.Millisecond), c.Now())
}

func TestVirtualClockNeverMovesBackwards(t *testing.T) {
	c := NewVirtualClock()
	c.AdvanceTo(VTime(time.Second))
	require.Panics(t, func() {
		c.AdvanceTo(VTime(time.Millisecond))
	})
}

func TestVTimeDuration(t *testing.T) {
	assert.Equal(t, 3*time.Millisecond, VTime(3*time.Millisecond).Duration())
}

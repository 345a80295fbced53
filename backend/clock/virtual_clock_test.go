package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVirtualClockFiresInScheduleOrder(t *testing.T) {
	start := time.Date(2026, 1, 1, 9, 15, 0, 0, time.UTC)
	c := NewVirtualClock(start)

	var order []int
	c.Schedule(30*time.Second, func() { order = append(order, 1) })
	c.Schedule(10*time.Second, func() { order = append(order, 2) })
	c.Schedule(10*time.Second, func() { order = append(order, 3) })

	c.Advance(60 * time.Second)

	require.Equal(t, []int{2, 3, 1}, order)
	assert.Equal(t, start.Add(60*time.Second), c.Now())
}

func TestVirtualClockNeverFiresBeforeDue(t *testing.T) {
	start := time.Date(2026, 1, 1, 9, 15, 0, 0, time.UTC)
	c := NewVirtualClock(start)

	fired := false
	c.Schedule(60*time.Second, func() { fired = true })

	c.Advance(59 * time.Second)
	assert.False(t, fired)

	c.Advance(1 * time.Second)
	assert.True(t, fired)
}

func TestVirtualClockCancelIsIdempotentAndPreventsFiring(t *testing.T) {
	c := NewVirtualClock(time.Now())

	fired := false
	h := c.Schedule(time.Second, func() { fired = true })
	h.Cancel()
	h.Cancel() // idempotent, must not panic

	c.Advance(time.Second)
	assert.False(t, fired)
	assert.Equal(t, 0, c.PendingCount())
}

func TestVirtualClockRearmDuringCallbackFiresWithinSameAdvance(t *testing.T) {
	c := NewVirtualClock(time.Now())

	var fireCount int
	var schedule func(d time.Duration)
	schedule = func(d time.Duration) {
		c.Schedule(d, func() {
			fireCount++
			if fireCount < 3 {
				schedule(10 * time.Millisecond)
			}
		})
	}
	schedule(10 * time.Millisecond)

	c.Advance(time.Second)
	assert.Equal(t, 3, fireCount)
}

func TestVirtualClockCancelFromWithinAnotherCallback(t *testing.T) {
	c := NewVirtualClock(time.Now())

	var secondFired bool
	h2 := c.Schedule(20*time.Millisecond, func() { secondFired = true })
	c.Schedule(10*time.Millisecond, func() {
		h2.Cancel()
	})

	c.Advance(time.Second)
	assert.False(t, secondFired)
}

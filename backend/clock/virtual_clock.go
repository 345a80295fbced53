package clock

import (
	"sort"
	"sync"
	"time"
)

// VirtualClock never advances on its own. Tests and the backtest driver
// call Advance to move time forward; due timers fire synchronously, in
// the order they were scheduled, before Advance returns. This is what
// makes the determinism property in spec.md's testable-properties section
// possible: identical (signals, ticks, config) replayed through a
// VirtualClock produce byte-identical output, with no wall-clock jitter.
type VirtualClock struct {
	mu      sync.Mutex
	now     time.Time
	seq     uint64
	pending []*virtualTimer
}

// NewVirtualClock starts a VirtualClock at the given instant.
func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{now: start}
}

func (c *VirtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *VirtualClock) Schedule(d time.Duration, fn func()) TimerHandle {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &virtualTimer{
		clock:   c,
		firesAt: c.now.Add(d),
		seq:     c.seq,
		fn:      fn,
	}
	c.pending = append(c.pending, t)
	return t
}

// Advance moves the virtual clock forward by d and fires, in schedule
// order (ties broken by registration sequence), every timer whose
// deadline has now been reached. Firing one timer may schedule another
// that also falls within [now, now+d]; that new timer fires too, in the
// same Advance call, preserving single-event-completes-before-next-begins
// semantics within the advance.
func (c *VirtualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next, idx := c.nextDueLocked(target)
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = next.firesAt
		c.pending = append(c.pending[:idx], c.pending[idx+1:]...)
		fn := next.fn
		cancelled := next.cancelled
		c.mu.Unlock()

		if !cancelled && fn != nil {
			fn()
		}
	}
}

// nextDueLocked returns the earliest pending timer with firesAt <= target,
// or nil if none remain. Caller holds c.mu.
func (c *VirtualClock) nextDueLocked(target time.Time) (*virtualTimer, int) {
	best := -1
	for i, t := range c.pending {
		if t.firesAt.After(target) {
			continue
		}
		if best == -1 {
			best = i
			continue
		}
		bt := c.pending[best]
		if t.firesAt.Before(bt.firesAt) || (t.firesAt.Equal(bt.firesAt) && t.seq < bt.seq) {
			best = i
		}
	}
	if best == -1 {
		return nil, -1
	}
	return c.pending[best], best
}

// pendingCount reports the number of timers not yet fired or cancelled,
// for tests asserting window-liveness (§8: every non-IDLE state has
// exactly one outstanding timer).
func (c *VirtualClock) pendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.pending {
		if !t.cancelled {
			n++
		}
	}
	return n
}

// PendingCount exports pendingCount for use outside the package (tests in
// other packages asserting window liveness against a shared clock).
func (c *VirtualClock) PendingCount() int {
	return c.pendingCount()
}

type virtualTimer struct {
	clock     *VirtualClock
	firesAt   time.Time
	seq       uint64
	fn        func()
	cancelled bool
}

// Cancel removes the timer from the clock's pending set. It is safe to
// call from inside another timer's callback (the common case: a machine
// entering a new window cancels the previous window's timer) even though
// the clock's mutex is not held across callback execution.
func (t *virtualTimer) Cancel() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.cancelled {
		return
	}
	t.cancelled = true
	for i, p := range t.clock.pending {
		if p == t {
			t.clock.pending = append(t.clock.pending[:i], t.clock.pending[i+1:]...)
			break
		}
	}
}

var _ sort.Interface = (*timerSlice)(nil)

// timerSlice exists solely so virtualTimer ordering can be expressed with
// sort.Sort in tests that want to assert schedule order independent of
// Advance's internal scan.
type timerSlice []*virtualTimer

func (s timerSlice) Len() int      { return len(s) }
func (s timerSlice) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s timerSlice) Less(i, j int) bool {
	if s[i].firesAt.Equal(s[j].firesAt) {
		return s[i].seq < s[j].seq
	}
	return s[i].firesAt.Before(s[j].firesAt)
}

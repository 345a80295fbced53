package clock

import (
	"sync"
	"time"

	"github.com/marcusklein/windowtrader/backend/executor"
)

// RealClock is backed by the wall clock and a single-threaded Executor: a
// time.AfterFunc fires on its own goroutine, but it only ever does one
// thing — post the callback onto the executor — so the callback itself
// still runs serialized with every other machine transition, per the
// concurrency model's requirement that timer firing never races tick
// delivery or signal dispatch.
type RealClock struct {
	exec *executor.Executor
}

// NewRealClock returns a Clock whose timers are delivered onto exec.
func NewRealClock(exec *executor.Executor) *RealClock {
	return &RealClock{exec: exec}
}

func (c *RealClock) Now() time.Time {
	return time.Now()
}

func (c *RealClock) Schedule(d time.Duration, fn func()) TimerHandle {
	h := &realTimerHandle{}
	t := time.AfterFunc(d, func() {
		h.mu.Lock()
		cancelled := h.cancelled
		h.mu.Unlock()
		if cancelled {
			return
		}
		c.exec.Post(func() {
			h.mu.Lock()
			alreadyCancelled := h.cancelled
			h.mu.Unlock()
			if alreadyCancelled {
				return
			}
			fn()
		})
	})
	h.timer = t
	return h
}

type realTimerHandle struct {
	mu        sync.Mutex
	timer     *time.Timer
	cancelled bool
}

func (h *realTimerHandle) Cancel() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancelled {
		return
	}
	h.cancelled = true
	if h.timer != nil {
		h.timer.Stop()
	}
}

// Package clock provides the Clock & Timer Service: a monotonic "now" and
// one-shot, cancellable timers, delivered on the same single-threaded
// executor that runs every other machine transition. A virtual
// implementation backs deterministic tests and backtests.
package clock

import "time"

// TimerHandle identifies a scheduled, not-yet-fired timer. Cancel is
// idempotent: cancelling twice, or cancelling after the timer has already
// fired, is a silent no-op.
type TimerHandle interface {
	Cancel()
}

// Clock is the single source of truth for "now" and for scheduling
// one-shot callbacks. Implementations never fire a timer before
// now()+duration; RealClock delivers it at-or-after that instant on the
// wall clock, VirtualClock delivers it at-or-after that instant in test
// time, synchronously inside Advance.
type Clock interface {
	// Now returns the current instant.
	Now() time.Time

	// Schedule arranges for fn to run after d has elapsed, and returns a
	// handle that can cancel the pending firing. fn runs on the executor
	// that owns this Clock — callers must not assume any other goroutine.
	Schedule(d time.Duration, fn func()) TimerHandle
}

// Package executor provides the single-threaded scheduling primitive that
// the rest of windowtrader builds on. Every machine transition — tick
// delivery, timer firing, signal dispatch, and order placement — is
// serialized onto one Executor so that two asynchronous clocks (wall-time
// window expiry and tick arrivals) never race for the same state.
package executor

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Executor runs posted jobs one at a time, in the order they were posted,
// on a single goroutine. It is the serialization boundary required by the
// concurrency model: nothing outside the executor goroutine may read or
// write machine state directly.
type Executor struct {
	jobs   chan func()
	done   chan struct{}
	stopMu sync.Mutex
	closed bool
}

// New starts an Executor with the given job queue depth. A depth of 0
// makes Post synchronous with the queue (callers block until the loop has
// room), which is fine for the moderate throughput this system expects.
func New(queueDepth int) *Executor {
	e := &Executor{
		jobs: make(chan func(), queueDepth),
		done: make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *Executor) run() {
	for job := range e.jobs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("executor: recovered panic in posted job")
				}
			}()
			job()
		}()
	}
	close(e.done)
}

// Post enqueues fn to run on the executor goroutine. Post never blocks the
// caller on fn's execution, only (briefly) on queue capacity. Posting after
// Stop is a no-op — a stopped executor discards further work rather than
// panicking on a closed channel.
func (e *Executor) Post(fn func()) {
	e.stopMu.Lock()
	if e.closed {
		e.stopMu.Unlock()
		return
	}
	e.stopMu.Unlock()
	e.jobs <- fn
}

// PostAndWait enqueues fn and blocks until it has run. Useful for tests and
// for read-only snapshot queries that must observe a consistent view of
// executor-owned state.
func (e *Executor) PostAndWait(fn func()) {
	wg := make(chan struct{})
	e.Post(func() {
		fn()
		close(wg)
	})
	<-wg
}

// Stop drains the queue and shuts the executor down. It blocks until the
// goroutine has exited. Safe to call once; a second call is a no-op.
func (e *Executor) Stop() {
	e.stopMu.Lock()
	if e.closed {
		e.stopMu.Unlock()
		return
	}
	e.closed = true
	close(e.jobs)
	e.stopMu.Unlock()
	<-e.done
}

// Package tickhub implements the Tick Hub: it caches the latest price per
// instrument and fans ticks out to subscribers. It is grounded on
// backend/realtime's WebSocketManager — the same register/unregister/
// broadcast shape, generalized from websocket clients to per-symbol tick
// subscribers.
//
// Only the external entry points (Ingest, IngestAndWait, LastPriceSnapshot)
// cross the executor boundary by posting; every other method assumes the
// caller is already running inside a job on the Hub's executor — true for
// the Symbol Machine and the Paper Broker, which only ever react from
// inside a tick or signal event that the orchestrator already posted.
// Calling an on-executor method from outside the executor goroutine is a
// programming error, not a runtime-checked one, matching the single
// cooperative executor model: there is exactly one place state is
// mutated, and everything reachable from a posted job runs on it.
package tickhub

import (
	"github.com/rs/zerolog/log"

	"github.com/marcusklein/windowtrader/backend/executor"
	"github.com/marcusklein/windowtrader/backend/models"
)

// Handler receives delivered ticks. It runs synchronously, inline, as
// part of Ingest's delivery loop — it must not block.
type Handler func(models.Tick)

// Subscription identifies one Subscribe call. Unsubscribe is idempotent
// and may be called from on-executor code (the common case: a window
// transition unsubscribing its own handler).
type Subscription struct {
	id  uint64
	sym string
	hub *Hub
}

// Unsubscribe removes this subscription. Safe to call more than once, and
// safe to call from inside a Handler (on-executor). Per the delivery-snapshot
// rule in IngestSync, a tick already being delivered still reaches every
// subscriber in its snapshot; the removal applies from the next delivery.
func (s *Subscription) Unsubscribe() {
	s.hub.Unsubscribe(s)
}

// Hub caches the last price per symbol and fans out ingested ticks to
// subscribers. All fields are owned by whichever single executor posts
// Ingest/Subscribe calls; the Hub itself holds no lock.
type Hub struct {
	exec *executor.Executor

	lastPrice map[string]models.Tick
	subs      map[string][]*subEntry
	nextSubID uint64
}

type subEntry struct {
	id uint64
	fn Handler
}

// Exec returns the executor this hub is bound to, so other components
// sharing the same single-threaded goroutine (the Paper Broker's
// snapshot reads) can post onto it rather than open a second one.
func (h *Hub) Exec() *executor.Executor {
	return h.exec
}

// New returns a Hub whose boundary-crossing operations (Ingest,
// IngestAndWait, LastPriceSnapshot) post through exec.
func New(exec *executor.Executor) *Hub {
	return &Hub{
		exec:      exec,
		lastPrice: make(map[string]models.Tick),
		subs:      make(map[string][]*subEntry),
	}
}

// Ingest is the external boundary: called by a market-feed goroutine (or
// the backtest driver) that is not itself on the Hub's executor. It posts
// the delivery and returns without waiting.
func (h *Hub) Ingest(tick models.Tick) {
	h.exec.Post(func() {
		h.IngestSync(tick)
	})
}

// IngestAndWait is Ingest, but blocks until delivery to every subscriber
// has completed. The backtest driver uses this so that signals and ticks
// interleave deterministically: nothing about step N+1 starts before step
// N's delivery — including any orders or timers it armed — has finished.
func (h *Hub) IngestAndWait(tick models.Tick) {
	h.exec.PostAndWait(func() {
		h.IngestSync(tick)
	})
}

// IngestSync updates the cache for sym and delivers the tick to every
// current subscriber of sym, in subscription order, using a snapshot of
// the subscriber list taken at the start of the call: a subscriber that
// unsubscribes mid-delivery does not stop later subscribers in the same
// snapshot from seeing the tick, and a subscriber added during delivery
// does not see the in-flight tick. Callers must already be on the Hub's
// executor; use Ingest/IngestAndWait to cross in from outside.
func (h *Hub) IngestSync(tick models.Tick) {
	if tick.Price <= 0 {
		log.Warn().Str("sym", tick.Symbol).Float64("price", tick.Price).Msg("tickhub: dropping non-positive price")
		return
	}
	prev, had := h.lastPrice[tick.Symbol]
	if had && tick.Timestamp.Before(prev.Timestamp) {
		log.Warn().Str("sym", tick.Symbol).Msg("tickhub: dropping out-of-order tick")
		return
	}
	h.lastPrice[tick.Symbol] = tick

	snapshot := append([]*subEntry(nil), h.subs[tick.Symbol]...)
	for _, e := range snapshot {
		e.fn(tick)
	}
}

// LastPriceSnapshot returns the cached price for sym, if any, from outside
// the executor — it posts and waits so it observes a consistent view
// relative to in-flight events. Used by read-only HTTP snapshot handlers.
func (h *Hub) LastPriceSnapshot(sym string) (models.Tick, bool) {
	var tick models.Tick
	var ok bool
	h.exec.PostAndWait(func() {
		tick, ok = h.LastPrice(sym)
	})
	return tick, ok
}

// LastPrice returns the cached price for sym. On-executor callers (the
// Symbol Machine, the Paper Broker) call this directly.
func (h *Hub) LastPrice(sym string) (models.Tick, bool) {
	tick, ok := h.lastPrice[sym]
	return tick, ok
}

// Subscribe registers fn to receive every future tick for sym. If a
// cached price already exists for sym, fn is delivered that cached value
// synchronously once before Subscribe returns, ahead of any subsequent
// Ingest. On-executor callers (a Machine arming a window, a Paper Broker
// queuing a limit order against live ticks) must use this directly rather
// than from outside the executor, since it does not post.
func (h *Hub) Subscribe(sym string, fn Handler) *Subscription {
	h.nextSubID++
	sub := &Subscription{id: h.nextSubID, sym: sym, hub: h}
	h.subs[sym] = append(h.subs[sym], &subEntry{id: sub.id, fn: fn})

	if cached, ok := h.lastPrice[sym]; ok {
		fn(cached)
	}
	return sub
}

// Unsubscribe removes sub. Idempotent; safe from on-executor code.
func (h *Hub) Unsubscribe(sub *Subscription) {
	entries := h.subs[sub.sym]
	for i, e := range entries {
		if e.id == sub.id {
			h.subs[sub.sym] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

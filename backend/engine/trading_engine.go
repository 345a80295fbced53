// Package engine wires the Tick Hub, Symbol Machine registry, Signal
// Router, market-hours gate, and (in live mode) a market feed into one
// process lifecycle. It replaces the teacher's polling loop entirely:
// spec.md's architecture is push-driven off ticks and signals, not a
// scheduled strategy evaluation, so Start/Stop here only manage the
// optional live feed and shutdown-time position liquidation — the Tick
// Hub and Signal Router dispatch everything else as events arrive.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/marcusklein/windowtrader/backend/execution"
	"github.com/marcusklein/windowtrader/backend/machine"
	"github.com/marcusklein/windowtrader/backend/models"
)

// Feed is the subset of backend/live.Feed the engine needs to start/stop
// a live market feed. Left nil in paper/backtest mode.
type Feed interface {
	Stop()
}

// Engine owns the process lifecycle around the event-driven core: it
// starts/stops the live feed (if any) and, on shutdown, optionally
// liquidates every open position through the same Paper/live Broker path
// a Symbol Machine itself uses.
type Engine struct {
	registry        *machine.Registry
	broker          execution.Broker
	feed            Feed
	closeOnShutdown bool

	mu      sync.Mutex
	running bool
}

// New returns an Engine over registry and broker. feed may be nil (paper
// or backtest mode, where ticks arrive from a backtest.Driver or test
// harness instead of a live connection). closeOnShutdown mirrors the
// teacher's flag of the same name: if true, Stop places a SELL limit for
// every open position at the position's CurrentPrice (its last fill
// price) before returning; the broker fills it at once only if the last
// tick is at or above that price and queues it otherwise.
func New(registry *machine.Registry, broker execution.Broker, feed Feed, closeOnShutdown bool) *Engine {
	return &Engine{registry: registry, broker: broker, feed: feed, closeOnShutdown: closeOnShutdown}
}

// Start marks the engine running. The live feed (if any) is expected to
// already be subscribed by the caller before Start is invoked — Engine
// only tracks lifecycle state and owns shutdown behavior, it does not
// open subscriptions itself, since symbol selection is the caller's
// concern. main.go subscribes its feed to no symbols.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return fmt.Errorf("engine: already running")
	}
	e.running = true
	log.Info().Bool("close_on_shutdown", e.closeOnShutdown).Msg("engine: started")
	return nil
}

// IsRunning reports whether Start has been called without a matching Stop.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Stop tears down the live feed (if any) and, if closeOnShutdown is set,
// liquidates every open position before returning.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.running = false

	if e.feed != nil {
		e.feed.Stop()
	}

	if e.closeOnShutdown {
		e.liquidateAll()
	}

	log.Info().Msg("engine: stopped")
}

// liquidateAll places a SELL limit at the position's CurrentPrice against every symbol the
// registry knows about that still carries an open long, using the
// broker's own last-crossing-tick fill path — the same PlaceLimit a
// Symbol Machine would call, just issued directly by the engine at
// shutdown rather than by a window rule.
func (e *Engine) liquidateAll() {
	for _, m := range e.registry.All() {
		sym := m.Sym()
		qty := e.broker.OpenQty(sym)
		if qty <= 0 {
			continue
		}
		pos, err := e.broker.GetPosition(sym)
		if err != nil {
			log.Warn().Err(err).Str("sym", sym).Msg("engine: no position to liquidate despite nonzero open qty")
			continue
		}
		if _, err := e.broker.PlaceLimit(sym, models.OrderSideSell, qty, pos.CurrentPrice, "ENGINE_SHUTDOWN_LIQUIDATE"); err != nil {
			log.Error().Err(err).Str("sym", sym).Msg("engine: failed to liquidate position on shutdown")
		}
	}
}

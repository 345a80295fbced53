// Package signals implements the Signal Router (spec.md §4.7) and the
// webhook intake parsing of spec.md §6.1. It is grounded on
// backend/tickhub's executor-posting shape: Submit is the one entry point
// that crosses from an arbitrary caller goroutine onto the shared
// executor, same as Hub.Ingest.
package signals

import (
	"context"
	"fmt"
	"time"

	"github.com/marcusklein/windowtrader/backend/executor"
	"github.com/marcusklein/windowtrader/backend/machine"
	"github.com/marcusklein/windowtrader/backend/models"
	"github.com/marcusklein/windowtrader/backend/tracing"
)

// Registry is the subset of machine.Registry the router needs.
type Registry interface {
	Get(sym string) *machine.Machine
}

// Gate is the subset of backend/markethours.Gate the router needs to
// enforce spec.md §7's MarketClosed taxonomy entry. A nil Gate (the
// default) means the market is always considered open.
type Gate interface {
	IsOpen(at time.Time) bool
}

// ErrMarketClosed is returned by Submit when a Gate is attached and
// reports the market closed, per spec.md §7: "signal is ignored; return
// {ignored, reason}".
type ErrMarketClosed struct {
	Symbol string
}

func (e *ErrMarketClosed) Error() string {
	return fmt.Sprintf("signals: market closed for %s", e.Symbol)
}

// Router accepts inbound signals from the intake webhook and dispatches
// each one to its Symbol Machine on the shared executor.
type Router struct {
	exec     *executor.Executor
	registry Registry
	gate     Gate
}

// NewRouter returns a Router that dispatches onto exec, against registry.
func NewRouter(exec *executor.Executor, registry Registry) *Router {
	return &Router{exec: exec, registry: registry}
}

// SetGate attaches the market-hours gate consulted by every subsequent
// Submit call. Tests may leave this unset to keep the market always open.
func (r *Router) SetGate(gate Gate) {
	r.gate = gate
}

// Submit validates sig and posts its dispatch onto the executor. It
// returns immediately once validation passes and the market-hours gate
// (if attached) reports open — spec.md §7's InvalidSignal and
// MarketClosed are the only errors Submit itself can produce; everything
// past that point is asynchronous and any failure is logged with sym +
// state context, never propagated back to the caller.
func (r *Router) Submit(sig models.Signal) error {
	if err := validateSignal(sig); err != nil {
		return err
	}
	if r.gate != nil && !r.gate.IsOpen(time.Now()) {
		return &ErrMarketClosed{Symbol: sig.Symbol}
	}
	r.exec.Post(func() {
		r.dispatch(sig)
	})
	return nil
}

func (r *Router) dispatch(sig models.Signal) {
	log := tracing.Logger(context.Background()).With().Str("sym", sig.Symbol).Logger()
	m := r.registry.Get(sig.Symbol)

	var err error
	switch sig.Side {
	case models.SignalSideBuy:
		err = m.HandleBuySignal(sig)
	case models.SignalSideSell:
		err = m.HandleSellSignal(sig)
	default:
		log.Warn().Str("side", string(sig.Side)).Msg("signals: dropped signal with unrecognized side")
		return
	}
	if err != nil {
		log.Warn().Err(err).Msg("signals: signal dispatch did not change machine state")
	}
}

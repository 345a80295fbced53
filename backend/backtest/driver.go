package backtest

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/marcusklein/windowtrader/backend/clock"
	"github.com/marcusklein/windowtrader/backend/executor"
	"github.com/marcusklein/windowtrader/backend/machine"
	"github.com/marcusklein/windowtrader/backend/models"
	"github.com/marcusklein/windowtrader/backend/tickhub"
)

// Registry is the subset of machine.Registry the driver needs to dispatch
// replayed signals.
type Registry interface {
	Get(sym string) *machine.Machine
}

// event is one step of the merged replay stream: exactly one of tick or
// signal is set.
type event struct {
	at     time.Time
	tick   *models.Tick
	signal *models.Signal
}

// Driver replays a merged, time-ordered stream of ticks and signals over a
// VirtualClock, advancing the clock to each event's timestamp before
// delivering it. Every step — the clock advance (which fires any timers
// due in between, e.g. a window expiry) and the event delivery itself —
// runs as a single job on the shared executor, so replay preserves the
// same single-event-completes-before-next-begins serialization the live
// path gets from RealClock + the executor goroutine.
type Driver struct {
	exec     *executor.Executor
	clk      *clock.VirtualClock
	hub      *tickhub.Hub
	registry Registry
}

// NewDriver returns a Driver over the given executor/clock/hub/registry.
// clk and hub must share the same exec the registry's machines were built
// against (backend/machine.NewRegistry's clk/hub arguments).
func NewDriver(exec *executor.Executor, clk *clock.VirtualClock, hub *tickhub.Hub, registry Registry) *Driver {
	return &Driver{exec: exec, clk: clk, hub: hub, registry: registry}
}

// Run merges ticks and signals into one chronological stream (ties broken
// signal-before-tick, then input order) and replays it. It blocks until
// every event has been delivered and the clock has caught up to the last
// event's timestamp.
func (d *Driver) Run(ticks []models.Tick, signals []models.Signal) error {
	events := make([]event, 0, len(ticks)+len(signals))
	for i := range ticks {
		t := ticks[i]
		events = append(events, event{at: t.Timestamp, tick: &t})
	}
	for i := range signals {
		s := signals[i]
		events = append(events, event{at: s.Timestamp, signal: &s})
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].at.Equal(events[j].at) {
			return events[i].signal != nil && events[j].tick != nil
		}
		return events[i].at.Before(events[j].at)
	})

	for _, ev := range events {
		dt := ev.at.Sub(d.clk.Now())
		if dt < 0 {
			return fmt.Errorf("backtest: event at %s precedes clock time %s", ev.at, d.clk.Now())
		}

		d.exec.PostAndWait(func() {
			d.clk.Advance(dt)
			switch {
			case ev.tick != nil:
				d.hub.IngestSync(*ev.tick)
			case ev.signal != nil:
				d.dispatchSignal(*ev.signal)
			}
		})
	}
	return nil
}

func (d *Driver) dispatchSignal(sig models.Signal) {
	m := d.registry.Get(sig.Symbol)
	var err error
	switch sig.Side {
	case models.SignalSideBuy:
		err = m.HandleBuySignal(sig)
	case models.SignalSideSell:
		err = m.HandleSellSignal(sig)
	default:
		log.Warn().Str("sym", sig.Symbol).Str("side", string(sig.Side)).Msg("backtest: dropped signal with unrecognized side")
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("sym", sig.Symbol).Msg("backtest: replayed signal did not change machine state")
	}
}

// Package machine implements the Symbol Machine (spec.md §4.5), the core
// of windowtrader: the per-instrument windowed entry/exit state machine
// with anchors, silencing, stop-out, breakout re-entry, and forced-anchor
// SELL→BUY flips. No single teacher file models a per-instrument FSM —
// this package is wholly new logic, written in the surrounding packages'
// idiom (zerolog sub-logger per call via backend/tracing, small exported
// operations, explicit error returns).
package machine

import (
	"context"

	"github.com/marcusklein/windowtrader/backend/clock"
	"github.com/marcusklein/windowtrader/backend/models"
	"github.com/marcusklein/windowtrader/backend/tickhub"
	"github.com/marcusklein/windowtrader/backend/tracing"
)

// Machine is the per-instrument state machine. All of its methods assume
// the caller is already running on the shared Executor — the same
// assumption backend/tickhub's on-executor methods make — since a
// Machine's handlers are themselves tickhub.Handlers and signal-router
// callbacks, both of which only ever run inside a posted job.
type Machine struct {
	sym    string
	cfg    Config
	clk    clock.Clock
	hub    *tickhub.Hub
	broker Broker
	sizer  Sizer

	state    State
	windowID uint64

	windowTimer clock.TimerHandle
	tickSub     *tickhub.Subscription

	savedBuyLTP         float64
	savedLastBuyLTP     float64
	savedSellLTP        float64
	sellStartAnchor     *float64
	waitMode            WaitMode
	pendingBuyAfterSell bool

	exitedThisWindow       bool
	silencedUntilWindowEnd bool

	recorder Recorder
}

// SetRecorder attaches an optional metrics/telemetry observer. Must be
// called before the machine starts handling signals — it is not
// synchronized against concurrent use, matching every other Machine field.
func (m *Machine) SetRecorder(r Recorder) {
	m.recorder = r
}

// setState updates m.state and, if a Recorder is attached, reports the
// transition.
func (m *Machine) setState(to State) {
	from := m.state
	m.state = to
	if m.recorder != nil && from != to {
		m.recorder.ObserveTransition(m.sym, from, to)
	}
}

// New creates a Machine for sym. It does not subscribe to anything until
// the first signal arrives — a machine is created lazily by the Registry
// on first use, per spec.md §3's Lifecycle.
func New(sym string, cfg Config, clk clock.Clock, hub *tickhub.Hub, broker Broker, sizer Sizer) *Machine {
	return &Machine{
		sym:    sym,
		cfg:    cfg,
		clk:    clk,
		hub:    hub,
		broker: broker,
		sizer:  sizer,
		state:  StateIdle,
		waitMode: WaitModeNone,
	}
}

// Sym returns the instrument key this machine owns.
func (m *Machine) Sym() string { return m.sym }

// State returns the externally observable state.
func (m *Machine) State() State { return m.state }

// Snapshot is the read-only view for persistence (spec.md §6.7) and for
// HTTP status endpoints.
type Snapshot struct {
	Sym                 string
	State               State
	SavedBuyLTP         float64
	SavedLastBuyLTP     float64
	SavedSellLTP        float64
	SellStartAnchor     *float64
	WindowID            uint64
	WaitMode            WaitMode
	PendingBuyAfterSell bool
	Silenced            bool
}

// Snapshot returns the machine's current persistable state.
func (m *Machine) Snapshot() Snapshot {
	return Snapshot{
		Sym:                 m.sym,
		State:               m.state,
		SavedBuyLTP:         m.savedBuyLTP,
		SavedLastBuyLTP:     m.savedLastBuyLTP,
		SavedSellLTP:        m.savedSellLTP,
		SellStartAnchor:     m.sellStartAnchor,
		WindowID:            m.windowID,
		WaitMode:            m.waitMode,
		PendingBuyAfterSell: m.pendingBuyAfterSell,
		Silenced:            m.silencedUntilWindowEnd,
	}
}

// Restore loads a previously persisted Snapshot into a freshly created
// machine, per spec.md §6.7. It never re-arms the window timer that
// produced the snapshot — a restart resumes in a windowless IDLE/WAIT
// posture and waits for the next signal or tick to decide what to do
// next, rather than guessing how much of the original window remains.
func (m *Machine) Restore(snap Snapshot) {
	m.state = snap.State
	m.savedBuyLTP = snap.SavedBuyLTP
	m.savedLastBuyLTP = snap.SavedLastBuyLTP
	m.savedSellLTP = snap.SavedSellLTP
	m.sellStartAnchor = snap.SellStartAnchor
	m.windowID = snap.WindowID
	m.waitMode = snap.WaitMode
	m.pendingBuyAfterSell = snap.PendingBuyAfterSell
	m.silencedUntilWindowEnd = snap.Silenced
}

// HandleSellSignal implements spec.md §4.5.3.
func (m *Machine) HandleSellSignal(sig models.Signal) error {
	log := tracing.Logger(context.Background()).With().Str("sym", m.sym).Logger()

	L, err := m.resolvePrice(sig)
	if err != nil {
		log.Warn().Err(err).Msg("machine: sell signal dropped, no price available")
		return err
	}

	m.cancelCurrentWindow()
	m.pendingBuyAfterSell = true
	m.waitMode = WaitModeAfterSell
	m.openSellWindow(L)

	log.Info().Float64("at_price", L).Msg("machine: sell signal opened sell window")
	return nil
}

// HandleBuySignal implements spec.md §4.5.4.
func (m *Machine) HandleBuySignal(sig models.Signal) error {
	log := tracing.Logger(context.Background()).With().Str("sym", m.sym).Logger()

	if m.silencedUntilWindowEnd {
		log.Info().Msg("machine: buy signal ignored, silenced until window deadline")
		return nil
	}

	L, err := m.resolvePrice(sig)
	if err != nil {
		log.Warn().Err(err).Msg("machine: buy signal dropped, no price available")
		return err
	}
	A := L

	if m.pendingBuyAfterSell {
		v := L
		m.sellStartAnchor = &v
		m.pendingBuyAfterSell = false
	}
	m.savedLastBuyLTP = A
	m.waitMode = WaitModeAfterBuy

	qty, err := m.sizer.QtyForEntry(m.sym, A)
	if err != nil {
		log.Warn().Err(err).Msg("machine: buy signal dropped, sizing failed")
		return err
	}
	price := Round(A + m.cfg.EntryOffset)
	m.placeLimit(models.OrderSideBuy, qty, price, TagBuySignalPrewindow)

	// saved_buy_ltp is only (re)captured when a fresh window is opened —
	// the anchor-persistence invariant (spec.md §8) requires it stay
	// immutable within an already-running window.
	if m.state == StateIdle {
		m.savedBuyLTP = A
		m.openBuyWindow(A)
	}

	return nil
}

// resolvePrice implements spec.md §4.5.7/§7's missing-price policy. A
// signal's own at_price always wins when present; when it is not, the
// configured policy decides whether to fall back to the cached tick or
// fail outright. A genuine bounded wait for the *next* tick to arrive
// would require suspending mid-event, which spec.md §5 forbids ("within a
// single event, processing runs to completion") — so wait_then_seed is
// implemented as "use whatever is cached right now, else fail" rather
// than an actual timed wait.
func (m *Machine) resolvePrice(sig models.Signal) (float64, error) {
	if sig.AtPrice > 0 {
		return sig.AtPrice, nil
	}
	switch m.cfg.MissingPricePolicy {
	case MissingPriceFail:
		return 0, ErrNoPriceAvailable
	default:
		if last, ok := m.hub.LastPrice(m.sym); ok {
			return last.Price, nil
		}
		return 0, ErrNoPriceAvailable
	}
}

// placeLimit submits an order intent and implements spec.md §4.5.7's
// failure semantics: a placement error is logged and dropped, the machine
// stays in its current state, and the next qualifying tick re-evaluates.
func (m *Machine) placeLimit(side models.OrderSide, qty int64, price float64, tag string) {
	if qty <= 0 {
		return
	}
	log := tracing.Logger(context.Background()).With().Str("sym", m.sym).Str("tag", tag).Logger()
	if _, err := m.broker.PlaceLimit(m.sym, side, qty, price, tag); err != nil {
		log.Error().Err(err).Msg("machine: order placement failed, intent dropped")
		return
	}
	log.Info().Str("side", string(side)).Int64("qty", qty).Float64("price", price).Msg("machine: order intent placed")
	if m.recorder != nil {
		m.recorder.ObserveOrderPlaced(m.sym, side, tag)
	}
}

func (m *Machine) qtyForEntry(price float64) int64 {
	qty, err := m.sizer.QtyForEntry(m.sym, price)
	if err != nil {
		tracing.Logger(context.Background()).Warn().Err(err).Str("sym", m.sym).Msg("machine: sizing failed, skipping placement")
		return 0
	}
	return qty
}

// cancelCurrentWindow cancels the outstanding timer and unsubscribes the
// tick handler of whatever window is currently running, per spec.md
// §4.5.2: "entering any new window cancels the previous window's timer
// and unsubscribes its tick handler before arming the new one." The
// stop-out path deliberately bypasses this — see onStopOut.
func (m *Machine) cancelCurrentWindow() {
	if m.windowTimer != nil {
		m.windowTimer.Cancel()
		m.windowTimer = nil
	}
	if m.tickSub != nil {
		m.tickSub.Unsubscribe()
		m.tickSub = nil
	}
}

// openSellWindow arms a new IN_SELL_WINDOW anchored at L, per spec.md
// §4.5.3. hadPos is re-evaluated fresh each time this is called, including
// on the window-expiry restart loop.
func (m *Machine) openSellWindow(L float64) {
	m.windowID++
	wid := m.windowID
	m.setState(StateInSellWindow)
	m.savedSellLTP = L
	m.exitedThisWindow = false
	m.silencedUntilWindowEnd = false

	hadPos := m.broker.OpenQty(m.sym) > 0
	if hadPos {
		m.tickSub = m.hub.Subscribe(m.sym, func(tk models.Tick) { m.onSellWindowTickInPos(wid, tk) })
	} else {
		m.tickSub = m.hub.Subscribe(m.sym, func(tk models.Tick) { m.onSellWindowTickFlat(wid, tk) })
	}
	m.windowTimer = m.clk.Schedule(m.cfg.WindowDuration, func() { m.onSellWindowExpiry(wid) })
}

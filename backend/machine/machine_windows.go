package machine

import (
	"github.com/marcusklein/windowtrader/backend/models"
)

// onSellWindowTickInPos implements spec.md §4.5.3's "If hadPos" branch:
// on the first tick after a SELL signal while holding a long, exit the
// entire open position immediately at the tick's price minus the exit
// offset, then go quiet for the rest of the window.
func (m *Machine) onSellWindowTickInPos(wid uint64, tick models.Tick) {
	if wid != m.windowID || m.exitedThisWindow {
		return
	}
	qty := m.broker.OpenQty(m.sym)
	if qty <= 0 {
		return
	}
	price := Round(tick.Price - m.cfg.ExitOffset)
	m.placeLimit(models.OrderSideSell, qty, price, TagSellInposImmediateExit)
	m.exitedThisWindow = true
	if m.tickSub != nil {
		m.tickSub.Unsubscribe()
		m.tickSub = nil
	}
}

// onSellWindowTickFlat implements spec.md §4.5.3's "If flat" branch: a
// breakout above the sell anchor, or a discount re-entry below the
// recorded sell_start_anchor, each cancel the SELL window and open a BUY
// window with a forced anchor.
func (m *Machine) onSellWindowTickFlat(wid uint64, tick models.Tick) {
	if wid != m.windowID {
		return
	}

	breakoutLevel := Round(m.savedSellLTP + m.cfg.EntryOffset)
	switch {
	case tick.Price > breakoutLevel:
		anchor := Round(m.savedSellLTP + 1.0)
		m.cancelCurrentWindow()
		qty := m.qtyForEntry(anchor)
		price := Round(anchor + m.cfg.EntryOffset)
		m.placeLimit(models.OrderSideBuy, qty, price, TagSellFlatBreakout)
		m.savedBuyLTP = anchor
		m.openBuyWindow(anchor)

	case m.sellStartAnchor != nil && tick.Price < *m.sellStartAnchor:
		anchor := *m.sellStartAnchor
		m.cancelCurrentWindow()
		qty := m.qtyForEntry(anchor)
		price := Round(anchor + m.cfg.EntryOffset)
		m.placeLimit(models.OrderSideBuy, qty, price, TagSellFlatDiscountReentry)
		m.savedBuyLTP = anchor
		m.openBuyWindow(anchor)

	default:
		// hold
	}
}

// onSellWindowExpiry implements spec.md §4.5.3's "On SELL-window expiry
// without a trigger: restart a new SELL window anchored on the current
// cached price (loop). Re-evaluate hadPos at restart."
func (m *Machine) onSellWindowExpiry(wid uint64) {
	if wid != m.windowID {
		return
	}
	if m.tickSub != nil {
		m.tickSub.Unsubscribe()
		m.tickSub = nil
	}
	anchor := m.savedSellLTP
	if last, ok := m.hub.LastPrice(m.sym); ok {
		anchor = last.Price
	}
	m.openSellWindow(anchor)
}

// openBuyWindow arms a new IN_BUY_WINDOW with the given (already-rounded
// where applicable) anchor, per spec.md §4.5.2/§4.5.5. It does not itself
// capture m.savedBuyLTP — callers set that before calling, since which
// cases reset the anchor versus leave it running is the subtle part the
// anchor-persistence invariant governs (see HandleBuySignal).
func (m *Machine) openBuyWindow(anchor float64) {
	m.windowID++
	wid := m.windowID
	m.setState(StateInBuyWindow)
	m.exitedThisWindow = false
	m.silencedUntilWindowEnd = false
	m.tickSub = m.hub.Subscribe(m.sym, func(tk models.Tick) { m.onBuyWindowTick(wid, tk) })
	m.windowTimer = m.clk.Schedule(m.cfg.WindowDuration, func() { m.onBuyWindowExpiry(wid) })
}

// onBuyWindowTick implements spec.md §4.5.5's per-tick rules, evaluated
// in order: stop-out, then flat breakout, then hold.
func (m *Machine) onBuyWindowTick(wid uint64, tick models.Tick) {
	if wid != m.windowID || m.exitedThisWindow {
		return
	}
	A := m.savedBuyLTP
	openQty := m.broker.OpenQty(m.sym)

	switch {
	case openQty > 0 && tick.Price < Round(A-m.cfg.StopLossPoints):
		m.onStopOut(wid, tick)

	case openQty == 0 && tick.Price > A:
		qty := m.qtyForEntry(tick.Price)
		price := Round(tick.Price + m.cfg.EntryOffset)
		m.placeLimit(models.OrderSideBuy, qty, price, TagBuyWindowBreakoutReenter)
		m.cancelCurrentWindow()
		m.openBuyWindow(A) // same anchor, restarted 60s timer

	default:
		// hold
	}
}

// onStopOut implements spec.md §4.5.5 step 1. The reported State flips to
// IDLE immediately (matching the literal "transition to IDLE" text), but
// the window's timer and window_id are deliberately left armed — they
// fire at the ORIGINAL deadline, gated by window_id rather than state,
// to both lift the silencing and run the auto-re-entry check. See
// DESIGN.md resolution 6 for why: the window-liveness invariant (spec.md
// §8) requires every non-IDLE state to have exactly one outstanding
// timer, but it says nothing about an IDLE state that still has one
// winding down — which is exactly the four-state decomposition's
// WAIT_WINDOW sub-phase, sanctioned as equivalent by spec.md §9.
func (m *Machine) onStopOut(wid uint64, tick models.Tick) {
	qty := m.broker.OpenQty(m.sym)
	price := Round(tick.Price - m.cfg.ExitOffset)
	m.placeLimit(models.OrderSideSell, qty, price, TagBuyWindowStopOut)

	m.exitedThisWindow = true
	m.silencedUntilWindowEnd = true
	m.setState(StateIdle)
	if m.tickSub != nil {
		m.tickSub.Unsubscribe()
		m.tickSub = nil
	}
	// m.windowTimer and m.windowID are intentionally left alone.
}

// onBuyWindowExpiry implements spec.md §4.5.5's "At BUY-window expiry"
// rule. Because onStopOut leaves this same timer armed, this single
// handler serves both the ordinary (un-silenced) expiry and the
// silencing-expiry case: both end with "if still flat and last_price >
// A, auto re-enter; else go/stay IDLE."
func (m *Machine) onBuyWindowExpiry(wid uint64) {
	if wid != m.windowID {
		return
	}
	m.silencedUntilWindowEnd = false
	if m.tickSub != nil {
		m.tickSub.Unsubscribe()
		m.tickSub = nil
	}

	flat := m.broker.OpenQty(m.sym) == 0
	last, ok := m.hub.LastPrice(m.sym)
	if flat && ok && last.Price > m.savedBuyLTP {
		A := m.savedBuyLTP
		qty := m.qtyForEntry(last.Price)
		price := Round(last.Price + m.cfg.EntryOffset)
		m.placeLimit(models.OrderSideBuy, qty, price, TagBuyWindowBreakoutReenter)
		m.openBuyWindow(A)
		return
	}

	m.setState(StateIdle)
}

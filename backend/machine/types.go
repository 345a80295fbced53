package machine

import (
	"errors"
	"time"

	"github.com/marcusklein/windowtrader/backend/models"
)

// State is the externally observable state of a Symbol Machine. The
// machine internally models a fourth sub-phase — a silenced window
// waiting out a stop-out's deadline — as IDLE with an internal flag
// rather than as its own exported state; see DESIGN.md resolution 6.
type State string

const (
	StateIdle         State = "IDLE"
	StateInSellWindow State = "IN_SELL_WINDOW"
	StateInBuyWindow  State = "IN_BUY_WINDOW"
)

// WaitMode steers which anchor a WAIT-mode read defends. Carried over from
// the four-state decomposition (spec.md §3) even though this machine uses
// the three-state set; it documents which anchor is currently live.
type WaitMode string

const (
	WaitModeNone      WaitMode = "none"
	WaitModeAfterBuy  WaitMode = "after_buy"
	WaitModeAfterSell WaitMode = "after_sell"
)

// Order intent tags, recording the rule that produced each placement —
// spec.md §3's "Order intent" tag field.
const (
	TagBuySignalPrewindow      = "BUY_SIGNAL_PREWINDOW"
	TagBuySignalForcedAnchor   = "BUY_SIGNAL_FORCED_ANCHOR" // no rule places this tag; forced-anchor BUY windows are tagged SELL_FLAT_BREAKOUT or SELL_FLAT_DISCOUNT_REENTRY
	TagSellInposImmediateExit = "SELL_INPOS_IMMEDIATE_EXIT"
	TagSellFlatBreakout       = "SELL_FLAT_BREAKOUT"
	TagSellFlatDiscountReentry = "SELL_FLAT_DISCOUNT_REENTRY" // see DESIGN.md resolution 11
	TagBuyWindowStopOut       = "BUY_WINDOW_STOP_OUT"
	TagBuyWindowBreakoutReenter = "BUY_WINDOW_BREAKOUT_REENTER"
)

// MissingPricePolicy selects how the machine resolves a signal with no
// usable price (spec.md §6.6/§7).
type MissingPricePolicy string

const (
	MissingPriceUseSeed      MissingPricePolicy = "use_seed"
	MissingPriceWaitThenSeed MissingPricePolicy = "wait_then_seed"
	MissingPriceFail         MissingPricePolicy = "fail"
)

// ErrNoPriceAvailable is returned when a signal carries no price and no
// cached tick exists to fall back on, per spec.md §7's NoPriceAvailable.
var ErrNoPriceAvailable = errors.New("machine: no price available")

// ErrUnknownUnderlying is surfaced from the Sizer through the machine
// unchanged; machines do not wrap it further.
var ErrUnknownUnderlying = errors.New("machine: unknown underlying")

// Config holds the per-machine tunables enumerated in spec.md §6.6 that
// are the Symbol Machine's own concern (capital/lot sizing lives in
// backend/sizing; market hours and brokerage live in their own packages).
type Config struct {
	// EntryOffset/ExitOffset are the price cushions added/subtracted when
	// converting an anchor or tick into a limit price. Default 0.5.
	EntryOffset float64
	ExitOffset  float64
	// StopLossPoints is the defended distance below the anchor for the
	// stop-out rule. Default 0.5.
	StopLossPoints float64
	// WindowDuration is the fixed window length. Default 60s.
	WindowDuration time.Duration
	// MissingPricePolicy governs signals without a usable price.
	MissingPricePolicy MissingPricePolicy
}

// DefaultConfig returns the spec.md defaults.
func DefaultConfig() Config {
	return Config{
		EntryOffset:        0.5,
		ExitOffset:         0.5,
		StopLossPoints:     0.5,
		WindowDuration:     60 * time.Second,
		MissingPricePolicy: MissingPriceUseSeed,
	}
}

// Broker is the subset of the Paper/live broker surface the Symbol
// Machine needs: placing limit orders and reading the current open
// quantity for no-flip sizing and stop-out/breakout checks. Satisfied
// structurally by backend/execution's PaperBroker — the machine package
// never imports execution, avoiding a cycle.
type Broker interface {
	PlaceLimit(sym string, side models.OrderSide, qty int64, limit float64, tag string) (orderID string, err error)
	OpenQty(sym string) int64
}

// Sizer is the subset of backend/sizing.Sizer the machine needs.
type Sizer interface {
	QtyForEntry(sym string, price float64) (int64, error)
}

// Recorder observes machine activity for metrics/telemetry. Every method
// is optional to implement meaningfully — a Machine with no Recorder set
// skips these calls entirely. Satisfied by backend/metrics.Recorder.
type Recorder interface {
	ObserveTransition(sym string, from, to State)
	ObserveOrderPlaced(sym string, side models.OrderSide, tag string)
}

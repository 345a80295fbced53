// Package sizing implements the Position/Sizing Service: it derives an
// entry quantity from a capital budget, an instrument lot size, and the
// current price, reusing the open quantity for no-flip exits and scale-
// ups. Grounded in style on backend/execution/risk.go's former
// CalculatePositionSize, whose stateless, pure-calculation shape this
// package follows; risk.go itself stays in execution, trimmed down to
// the guard-rail checks sizing doesn't cover.
package sizing

import (
	"fmt"
	"math"
)

// ErrUnknownUnderlying is returned when no lot size is configured for an
// instrument's underlying.
type ErrUnknownUnderlying struct {
	Underlying string
}

func (e *ErrUnknownUnderlying) Error() string {
	return fmt.Sprintf("sizing: unknown underlying %q", e.Underlying)
}

// OpenQtyFunc returns the current signed open quantity for sym (positive
// for a long, 0 when flat). The Sizer never inspects Sym internals; it
// only needs the Paper Broker's open_qty view.
type OpenQtyFunc func(sym string) int64

// UnderlyingResolver maps an instrument key to the underlying symbol used
// for lot-size lookup (e.g. "NIFTY25JUL23500CE" -> "NIFTY"). Symbol
// normalization itself is an external collaborator per spec.md §6.1; the
// Sizer only needs the resolved underlying.
type UnderlyingResolver func(sym string) string

// Sizer implements qty_for_entry per spec.md §4.4.
type Sizer struct {
	capital    float64
	lotSizes   map[string]int64
	openQty    OpenQtyFunc
	underlying UnderlyingResolver
}

// New returns a Sizer that budgets capital per entry, using lotSizes as
// the static underlying->lot-size table, openQty to query existing
// positions, and underlying to resolve an instrument key to its
// underlying for lot-size lookup.
func New(capital float64, lotSizes map[string]int64, openQty OpenQtyFunc, underlying UnderlyingResolver) *Sizer {
	table := make(map[string]int64, len(lotSizes))
	for k, v := range lotSizes {
		table[k] = v
	}
	return &Sizer{capital: capital, lotSizes: table, openQty: openQty, underlying: underlying}
}

// DefaultLotSizes is the static mapping referenced by spec.md §4.4's
// worked examples.
func DefaultLotSizes() map[string]int64 {
	return map[string]int64{
		"NIFTY":     75,
		"BANKNIFTY": 35,
	}
}

// QtyForEntry returns the quantity to use for a new entry order at price,
// or the already-open quantity (no-flip reuse) when sym is not flat.
func (s *Sizer) QtyForEntry(sym string, price float64) (int64, error) {
	if existing := s.openQty(sym); existing != 0 {
		if existing < 0 {
			return -existing, nil
		}
		return existing, nil
	}

	underlying := s.underlying(sym)
	lot, ok := s.lotSizes[underlying]
	if !ok {
		return 0, &ErrUnknownUnderlying{Underlying: underlying}
	}
	if price <= 0 || lot <= 0 {
		return lot, nil
	}

	lots := int64(math.Floor(s.capital / (price * float64(lot))))
	if lots < 1 {
		lots = 1
	}
	return lots * lot, nil
}

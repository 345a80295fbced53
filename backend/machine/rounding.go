package machine

import "github.com/shopspring/decimal"

// Round rounds x to two decimal places, half-away-from-zero. All of the
// machine's price arithmetic (anchors plus/minus an offset) goes through
// this instead of raw float64 addition, since accumulating float64 drift
// across many windows would eventually violate the round-trip trade-log
// invariant (spec.md §8: sum(realized_delta) == pnl.realized_gross).
func Round(x float64) float64 {
	d := decimal.NewFromFloat(x)
	return d.Round(2).InexactFloat64()
}

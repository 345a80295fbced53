// Package backtest implements the historical-candle replay of spec.md
// §6.3/§6.9: converting OHLC candles into ticks under one of two
// deterministic policies, and driving a merged signal+tick stream over a
// VirtualClock so that identical inputs replay byte-identically (spec.md's
// determinism testable property).
package backtest

import (
	"fmt"
	"time"

	"github.com/marcusklein/windowtrader/backend/models"
)

// Candle is one historical OHLC bar for sym at resolution "1m".
type Candle struct {
	Symbol string
	T      time.Time
	O, H, L, C float64
}

// TickStyle selects how a Candle is expanded into ticks (spec.md §6.3).
type TickStyle string

const (
	TickStyleClose    TickStyle = "close"
	TickStyleOHLCPath TickStyle = "ohlcPath"
)

// CandlesToTicks expands candles into the tick stream implied by style, in
// chronological order. Ticks across candles are already ordered since
// candles are assumed contiguous and non-overlapping; within a candle the
// ohlcPath order is t+10ms/t+20ms/t+30ms/t+59s with prices o/l/h/c.
func CandlesToTicks(candles []Candle, style TickStyle) ([]models.Tick, error) {
	var ticks []models.Tick
	for _, c := range candles {
		switch style {
		case TickStyleClose:
			ticks = append(ticks, models.Tick{
				Symbol:    c.Symbol,
				Price:     c.C,
				Timestamp: c.T.Add(59 * time.Second),
			})
		case TickStyleOHLCPath:
			ticks = append(ticks,
				models.Tick{Symbol: c.Symbol, Price: c.O, Timestamp: c.T.Add(10 * time.Millisecond)},
				models.Tick{Symbol: c.Symbol, Price: c.L, Timestamp: c.T.Add(20 * time.Millisecond)},
				models.Tick{Symbol: c.Symbol, Price: c.H, Timestamp: c.T.Add(30 * time.Millisecond)},
				models.Tick{Symbol: c.Symbol, Price: c.C, Timestamp: c.T.Add(59 * time.Second)},
			)
		default:
			return nil, fmt.Errorf("backtest: unknown tick style %q", style)
		}
	}
	return ticks, nil
}

// CandleSource fetches historical candles for a replay window, per spec.md
// §6.3's fetch_candles(sym, from, to, resolution). Implementations are
// external collaborators (a CSV loader, a vendor API) — the core contract
// only needs the returned shape.
type CandleSource interface {
	FetchCandles(sym string, from, to time.Time, resolution string) ([]Candle, error)
}

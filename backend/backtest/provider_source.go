package backtest

import (
	"time"

	"github.com/marcusklein/windowtrader/backend/data"
)

// ProviderSource adapts a data.DataProvider (concretely, the teacher's
// data/providers.BinanceProvider REST client) into a CandleSource, so the
// replay driver can run against real historical data instead of
// synthetically constructed Candles.
type ProviderSource struct {
	Provider data.DataProvider
}

// FetchCandles satisfies CandleSource by delegating to the wrapped
// provider and converting its OHLCV bars into Candles.
func (s ProviderSource) FetchCandles(sym string, from, to time.Time, resolution string) ([]Candle, error) {
	bars, err := s.Provider.GetHistoricalData(sym, from, to, resolution)
	if err != nil {
		return nil, err
	}
	out := make([]Candle, len(bars))
	for i, b := range bars {
		out[i] = Candle{Symbol: sym, T: b.Timestamp, O: b.Open, H: b.High, L: b.Low, C: b.Close}
	}
	return out, nil
}

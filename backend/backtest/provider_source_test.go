package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcusklein/windowtrader/backend/models"
)

type fakeProvider struct {
	bars []models.OHLCV
	err  error
}

func (p fakeProvider) Name() string { return "fake" }
func (p fakeProvider) GetHistoricalData(symbol string, start, end time.Time, interval string) ([]models.OHLCV, error) {
	return p.bars, p.err
}
func (p fakeProvider) GetLatestPrice(symbol string) (float64, error) { return 0, nil }
func (p fakeProvider) GetTicker(symbol string) (*models.Ticker, error) { return nil, nil }

func TestProviderSource_ConvertsOHLCVToCandles(t *testing.T) {
	base := time.Date(2026, 7, 31, 9, 30, 0, 0, time.UTC)
	src := ProviderSource{Provider: fakeProvider{bars: []models.OHLCV{
		{Symbol: "BTCUSDT", Timestamp: base, Open: 100, High: 105, Low: 99, Close: 103},
	}}}

	candles, err := src.FetchCandles("BTCUSDT", base, base.Add(time.Hour), "1m")
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, "BTCUSDT", candles[0].Symbol)
	assert.Equal(t, 103.0, candles[0].C)
	assert.True(t, candles[0].T.Equal(base))
}

func TestProviderSource_PropagatesError(t *testing.T) {
	src := ProviderSource{Provider: fakeProvider{err: assert.AnError}}
	_, err := src.FetchCandles("BTCUSDT", time.Now(), time.Now(), "1m")
	require.Error(t, err)
}

package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marcusklein/windowtrader/backend/models"
)

func TestDefaultRiskConfig(t *testing.T) {
	cfg := DefaultRiskConfig()
	assert.Equal(t, 500.0, cfg.MaxDailyLoss)
	assert.Equal(t, 50, cfg.MaxOpenOrders)
}

func TestNewRiskManagerUsesDefaultsWhenConfigNil(t *testing.T) {
	rm := NewRiskManager(nil)
	assert.Equal(t, 0.0, rm.GetDailyPnL())
}

func TestNewRiskManagerWithConfig(t *testing.T) {
	cfg := &RiskConfig{MaxDailyLoss: 100, MaxOpenOrders: 5}
	rm := NewRiskManager(cfg)
	assert.Equal(t, 0.0, rm.GetDailyPnL())
}

func TestCheckEntryPassesUnderLimits(t *testing.T) {
	rm := NewRiskManager(nil)
	err := rm.CheckEntry(testEntryOrder())
	assert.NoError(t, err)
}

func TestCheckEntryFailsWhenDailyLossExceeded(t *testing.T) {
	rm := NewRiskManager(&RiskConfig{MaxDailyLoss: 500, MaxOpenOrders: 10})
	rm.RecordRealized(-600)

	err := rm.CheckEntry(testEntryOrder())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "daily loss limit exceeded")
}

func TestCheckEntryFailsWhenMaxOpenOrdersReached(t *testing.T) {
	rm := NewRiskManager(&RiskConfig{MaxDailyLoss: 1000, MaxOpenOrders: 2})
	rm.RecordOrderOpened()
	rm.RecordOrderOpened()

	err := rm.CheckEntry(testEntryOrder())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "max open orders reached")
}

func TestRecordOrderOpenedAndClosedTrackCount(t *testing.T) {
	rm := NewRiskManager(&RiskConfig{MaxDailyLoss: 1000, MaxOpenOrders: 1})
	rm.RecordOrderOpened()

	err := rm.CheckEntry(testEntryOrder())
	assert.Error(t, err)

	rm.RecordOrderClosed()
	err = rm.CheckEntry(testEntryOrder())
	assert.NoError(t, err)
}

func TestDailyPnLTrackingAndReset(t *testing.T) {
	rm := NewRiskManager(nil)
	assert.Equal(t, 0.0, rm.GetDailyPnL())

	rm.RecordRealized(100)
	assert.Equal(t, 100.0, rm.GetDailyPnL())

	rm.RecordRealized(-50)
	assert.Equal(t, 50.0, rm.GetDailyPnL())

	rm.ResetDaily()
	assert.Equal(t, 0.0, rm.GetDailyPnL())
}

func TestNilRiskManagerIsAlwaysPermissive(t *testing.T) {
	var rm *RiskManager
	assert.NoError(t, rm.CheckEntry(testEntryOrder()))
	assert.Equal(t, 0.0, rm.GetDailyPnL())
	rm.RecordOrderOpened()
	rm.RecordOrderClosed()
	rm.RecordRealized(-1000)
	rm.ResetDaily()
}

func testEntryOrder() models.Order {
	return models.Order{
		Symbol:   "AAPL",
		Side:     models.OrderSideBuy,
		Type:     models.OrderTypeLimit,
		Quantity: 10,
		Price:    100.0,
	}
}

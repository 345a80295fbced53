// Package execution provides risk management functionality.
package execution

import (
	"fmt"

	"github.com/marcusklein/windowtrader/backend/models"
)

// RiskConfig holds the pre-trade guard rails the Paper Broker enforces
// before accepting a limit order from the Symbol Machine. This sits
// alongside, not instead of, the machine's own no-flip sizing — the
// machine always requests a quantity derived from capital and lot size;
// RiskManager is the broker-side backstop against a runaway loop of
// placements (e.g. a misbehaving machine re-arming every tick).
type RiskConfig struct {
	// MaxDailyLoss is the maximum cumulative realized loss tolerated in a
	// session before further entries are refused (exits always pass).
	MaxDailyLoss float64
	// MaxOpenOrders caps the number of simultaneously pending limit
	// orders across all symbols.
	MaxOpenOrders int
}

// DefaultRiskConfig returns conservative defaults.
func DefaultRiskConfig() *RiskConfig {
	return &RiskConfig{
		MaxDailyLoss:  500.0,
		MaxOpenOrders: 50,
	}
}

// RiskManager enforces pre-trade guard rails for the Paper Broker.
type RiskManager struct {
	config     *RiskConfig
	dailyPnL   float64
	openOrders int
}

// NewRiskManager creates a new risk manager. A nil config uses the defaults.
func NewRiskManager(config *RiskConfig) *RiskManager {
	if config == nil {
		config = DefaultRiskConfig()
	}
	return &RiskManager{config: config}
}

// CheckEntry evaluates whether a new (non-exit) limit order may be placed.
// Exits are never blocked — a guard rail must not prevent the machine from
// flattening a position.
func (rm *RiskManager) CheckEntry(order models.Order) error {
	if rm == nil {
		return nil
	}
	if rm.dailyPnL < -rm.config.MaxDailyLoss {
		return fmt.Errorf("daily loss limit exceeded: %.2f", rm.dailyPnL)
	}
	if rm.openOrders >= rm.config.MaxOpenOrders {
		return fmt.Errorf("max open orders reached: %d", rm.config.MaxOpenOrders)
	}
	return nil
}

// RecordOrderOpened increments the open-order count.
func (rm *RiskManager) RecordOrderOpened() {
	if rm != nil {
		rm.openOrders++
	}
}

// RecordOrderClosed decrements the open-order count.
func (rm *RiskManager) RecordOrderClosed() {
	if rm != nil && rm.openOrders > 0 {
		rm.openOrders--
	}
}

// RecordRealized folds a realized P&L delta into the daily tracker.
func (rm *RiskManager) RecordRealized(delta float64) {
	if rm != nil {
		rm.dailyPnL += delta
	}
}

// ResetDaily resets the daily tracking (call at market open).
func (rm *RiskManager) ResetDaily() {
	if rm != nil {
		rm.dailyPnL = 0
	}
}

// GetDailyPnL returns the current daily P&L.
func (rm *RiskManager) GetDailyPnL() float64 {
	if rm == nil {
		return 0
	}
	return rm.dailyPnL
}

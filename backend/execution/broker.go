// Package execution provides trade execution and order management.
package execution

import "github.com/marcusklein/windowtrader/backend/models"

// Broker is the execution-side view of the Paper Broker (and, eventually,
// a live adapter in backend/live): the full operation set spec.md §4.3
// requires, beyond the machine.Broker subset the Symbol Machine itself
// needs. backend/machine.Broker mirrors only PlaceLimit/OpenQty, to avoid
// an import cycle on this package.
type Broker interface {
	Name() string
	Connect() error
	Disconnect() error
	IsConnected() bool

	// PlaceLimit submits a limit order, filling immediately if the
	// current price already crosses it, or queuing it FIFO otherwise.
	PlaceLimit(sym string, side models.OrderSide, qty int64, limit float64, tag string) (orderID string, err error)

	// Cancel cancels a pending (not yet filled) order.
	Cancel(orderID string) error

	// Status retrieves an order by ID.
	Status(orderID string) (*models.Order, error)

	// OpenQty returns the current signed open quantity for sym.
	OpenQty(sym string) int64

	GetPositions() ([]models.Position, error)
	GetPosition(symbol string) (*models.Position, error)
	GetBalance() (*models.Balance, error)

	// Trades returns every fill in execution order.
	Trades() []models.Trade

	// Pnl returns the current realized/unrealized P&L snapshot.
	Pnl() PnlSummary
}

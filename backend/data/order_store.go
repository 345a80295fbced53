// Package data provides database connection and persistence.
package data

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/marcusklein/windowtrader/backend/models"
)

// OrderStore provides persistence operations for orders, trades,
// positions, and a small system_config key/value table used to carry
// bootstrap values (the initial capital) across restarts.
type OrderStore interface {
	SaveOrder(order models.Order) error
	GetOrder(orderID string) (*models.Order, error)
	GetAllOrders() ([]models.Order, error)
	DeleteOrder(orderID string) error

	SavePosition(position models.Position) error
	GetPosition(symbol string) (*models.Position, error)
	GetAllPositions() ([]models.Position, error)

	SaveTrade(trade models.Trade) error

	GetSystemConfig(key string) (string, error)
	SetSystemConfig(key, value string) error
}

// SQLOrderStore implements OrderStore using SQLite.
type SQLOrderStore struct {
	db *DB
}

// NewOrderStore creates a new SQL-based order store.
func NewOrderStore(db *DB) *SQLOrderStore {
	return &SQLOrderStore{db: db}
}

// SaveOrder persists an order to the database.
func (s *SQLOrderStore) SaveOrder(order models.Order) error {
	query := `
		INSERT OR REPLACE INTO orders
			(id, symbol, side, type, quantity, price, status, filled_quantity, average_price, tag, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		order.ID,
		order.Symbol,
		order.Side,
		order.Type,
		order.Quantity,
		order.Price,
		order.Status,
		order.FilledQuantity,
		order.AveragePrice,
		order.Tag,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

// GetOrder retrieves an order by ID.
func (s *SQLOrderStore) GetOrder(orderID string) (*models.Order, error) {
	var order models.Order
	query := `
		SELECT id, symbol, side, type, quantity, price, status, filled_quantity, average_price, tag, created_at, updated_at
		FROM orders
		WHERE id = ?
	`
	err := s.db.Get(&order, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

// GetAllOrders retrieves all orders from the database.
func (s *SQLOrderStore) GetAllOrders() ([]models.Order, error) {
	var orders []models.Order
	query := `
		SELECT id, symbol, side, type, quantity, price, status, filled_quantity, average_price, tag, created_at, updated_at
		FROM orders
		ORDER BY created_at DESC
	`
	err := s.db.Select(&orders, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get all orders: %w", err)
	}
	return orders, nil
}

// DeleteOrder removes an order from the database.
func (s *SQLOrderStore) DeleteOrder(orderID string) error {
	query := `DELETE FROM orders WHERE id = ?`
	_, err := s.db.Exec(query, orderID)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return nil
}

// SavePosition persists a position to the database.
func (s *SQLOrderStore) SavePosition(position models.Position) error {
	query := `
		INSERT OR REPLACE INTO positions
			(symbol, quantity, average_cost, current_price, market_value, unrealized_pl, realized_gross, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		position.Symbol,
		position.Quantity,
		position.AverageCost,
		position.CurrentPrice,
		position.MarketValue,
		position.UnrealizedPL,
		position.RealizedGross,
		position.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save position: %w", err)
	}
	return nil
}

// GetPosition retrieves a position by symbol.
func (s *SQLOrderStore) GetPosition(symbol string) (*models.Position, error) {
	var position models.Position
	query := `
		SELECT symbol, quantity, average_cost, current_price, market_value, unrealized_pl, realized_gross, updated_at
		FROM positions
		WHERE symbol = ?
	`
	err := s.db.Get(&position, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}
	return &position, nil
}

// GetAllPositions retrieves all positions from the database.
func (s *SQLOrderStore) GetAllPositions() ([]models.Position, error) {
	var positions []models.Position
	query := `
		SELECT symbol, quantity, average_cost, current_price, market_value, unrealized_pl, realized_gross, updated_at
		FROM positions
		ORDER BY symbol ASC
	`
	err := s.db.Select(&positions, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get all positions: %w", err)
	}
	return positions, nil
}

// SaveTrade records a trade execution, including its realized P&L and
// brokerage contribution.
func (s *SQLOrderStore) SaveTrade(trade models.Trade) error {
	query := `
		INSERT OR REPLACE INTO trades
			(id, order_id, symbol, side, quantity, price, realized_delta, brokerage_delta, tag, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		trade.ID,
		trade.OrderID,
		trade.Symbol,
		trade.Side,
		trade.Quantity,
		trade.Price,
		trade.RealizedDelta,
		trade.BrokerageDelta,
		trade.Tag,
		trade.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save trade: %w", err)
	}
	return nil
}

// GetSystemConfig retrieves a value from the system_config table.
func (s *SQLOrderStore) GetSystemConfig(key string) (string, error) {
	var value string
	query := `SELECT value FROM system_config WHERE key = ?`
	err := s.db.Get(&value, query, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("system config key %q not found", key)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get system config: %w", err)
	}
	return value, nil
}

// SetSystemConfig upserts a value in the system_config table.
func (s *SQLOrderStore) SetSystemConfig(key, value string) error {
	query := `INSERT OR REPLACE INTO system_config (key, value) VALUES (?, ?)`
	_, err := s.db.Exec(query, key, value)
	if err != nil {
		return fmt.Errorf("failed to set system config: %w", err)
	}
	return nil
}

// Package execution provides order management functionality.
package execution

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/marcusklein/windowtrader/backend/models"
	"github.com/marcusklein/windowtrader/backend/realtime"
)

// OrderStore defines persistence operations for orders, trades, and
// positions, plus a small key/value table for bootstrap config such as
// the initial capital.
type OrderStore interface {
	SaveOrder(order models.Order) error
	GetOrder(orderID string) (*models.Order, error)
	GetAllOrders() ([]models.Order, error)
	SaveTrade(trade models.Trade) error
	SavePosition(position models.Position) error
	GetAllPositions() ([]models.Position, error)
	GetSystemConfig(key string) (string, error)
	SetSystemConfig(key, value string) error
}

// OrderManager is a read model and persistence sink for the Paper
// Broker: the Symbol Machine places orders directly against the broker,
// so OrderManager no longer accepts inbound orders itself. It mirrors
// every fill into the database and out over the websocket, and serves
// cached reads to the snapshot HTTP handlers.
type OrderManager struct {
	broker    Broker
	store     OrderStore
	wsManager *realtime.WebSocketManager

	mu     sync.RWMutex
	orders map[string]models.Order
}

// NewOrderManager creates an order manager backed by broker for live
// reads, store for persistence (nil disables it), and wsManager for
// real-time fill broadcasts (nil disables it).
func NewOrderManager(broker Broker, store OrderStore, wsManager *realtime.WebSocketManager) *OrderManager {
	return &OrderManager{
		broker:    broker,
		store:     store,
		wsManager: wsManager,
		orders:    make(map[string]models.Order),
	}
}

// RecordFill is the Paper Broker's FillListener: it mirrors a fill into
// the in-memory cache, persists the order/trade/position, and broadcasts
// the update over the websocket.
func (om *OrderManager) RecordFill(order models.Order, trade models.Trade) {
	om.mu.Lock()
	om.orders[order.ID] = order
	om.mu.Unlock()

	if om.store != nil {
		if err := om.store.SaveOrder(order); err != nil {
			log.Error().Err(err).Str("order_id", order.ID).Msg("failed to persist order")
		}
		if err := om.store.SaveTrade(trade); err != nil {
			log.Error().Err(err).Str("trade_id", trade.ID).Msg("failed to persist trade")
		}
		if pos, err := om.broker.GetPosition(order.Symbol); err == nil {
			if err := om.store.SavePosition(*pos); err != nil {
				log.Error().Err(err).Str("symbol", order.Symbol).Msg("failed to persist position")
			}
		}
	}

	log.Info().
		Str("order_id", order.ID).
		Str("symbol", order.Symbol).
		Str("side", string(order.Side)).
		Str("tag", order.Tag).
		Float64("quantity", order.Quantity).
		Float64("price", order.AveragePrice).
		Float64("realized_delta", trade.RealizedDelta).
		Float64("brokerage_delta", trade.BrokerageDelta).
		Msg("order filled")

	if om.wsManager != nil {
		om.wsManager.Broadcast("order_update", order)
		om.wsManager.Broadcast("trade", trade)
	}
}

// LoadOrders restores orders from persistent storage into the in-memory
// cache on startup.
func (om *OrderManager) LoadOrders() error {
	if om.store == nil {
		return nil
	}

	orders, err := om.store.GetAllOrders()
	if err != nil {
		return fmt.Errorf("failed to load orders: %w", err)
	}

	om.mu.Lock()
	defer om.mu.Unlock()
	for _, order := range orders {
		om.orders[order.ID] = order
	}

	log.Info().Int("count", len(orders)).Msg("loaded orders from database")
	return nil
}

// GetOrder retrieves an order by ID, checking the local cache first and
// falling back to the broker.
func (om *OrderManager) GetOrder(orderID string) (*models.Order, error) {
	om.mu.RLock()
	order, exists := om.orders[orderID]
	om.mu.RUnlock()

	if exists {
		return &order, nil
	}
	return om.broker.Status(orderID)
}

// OrderFilter defines criteria for filtering orders.
type OrderFilter struct {
	Symbol string
	Status models.OrderStatus
	Limit  int
	Offset int
}

// GetOrders retrieves orders matching the filter criteria, newest first.
func (om *OrderManager) GetOrders(filter OrderFilter) ([]models.Order, int, error) {
	om.mu.RLock()
	defer om.mu.RUnlock()

	var filtered []models.Order
	for _, order := range om.orders {
		if filter.Symbol != "" && order.Symbol != filter.Symbol {
			continue
		}
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		filtered = append(filtered, order)
	}

	totalCount := len(filtered)
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.After(filtered[j].CreatedAt)
	})

	if filter.Offset >= totalCount {
		return []models.Order{}, totalCount, nil
	}
	end := filter.Offset + filter.Limit
	if filter.Limit == 0 {
		end = totalCount
	}
	if end > totalCount {
		end = totalCount
	}
	return filtered[filter.Offset:end], totalCount, nil
}

// GetAllOrders returns all tracked orders.
func (om *OrderManager) GetAllOrders() ([]models.Order, error) {
	orders, _, err := om.GetOrders(OrderFilter{})
	return orders, err
}

// GetPositions retrieves all current positions from the broker.
func (om *OrderManager) GetPositions() ([]models.Position, error) {
	return om.broker.GetPositions()
}

// GetBalance retrieves the current account balance from the broker.
func (om *OrderManager) GetBalance() (*models.Balance, error) {
	return om.broker.GetBalance()
}

// GetTrades retrieves every fill from the broker.
func (om *OrderManager) GetTrades() []models.Trade {
	return om.broker.Trades()
}

// GetPnl retrieves the current realized/unrealized P&L snapshot.
func (om *OrderManager) GetPnl() PnlSummary {
	return om.broker.Pnl()
}

// GetInitialCapital retrieves the initial capital recorded at startup.
func (om *OrderManager) GetInitialCapital() (float64, error) {
	if om.store == nil {
		return 0, nil
	}
	valStr, err := om.store.GetSystemConfig("initial_capital")
	if err != nil {
		return 0, err
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid initial capital value %q: %w", valStr, err)
	}
	return val, nil
}

// SetInitialCapital stores the initial capital for future restarts.
func (om *OrderManager) SetInitialCapital(amount float64) error {
	if om.store == nil {
		return fmt.Errorf("no persistence configured")
	}
	valStr := strconv.FormatFloat(amount, 'f', 2, 64)
	return om.store.SetSystemConfig("initial_capital", valStr)
}

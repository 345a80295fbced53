package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcusklein/windowtrader/backend/executor"
	"github.com/marcusklein/windowtrader/backend/models"
	"github.com/marcusklein/windowtrader/backend/tickhub"
)

// fakeOrderStore is an in-memory OrderStore for exercising OrderManager
// without a real database.
type fakeOrderStore struct {
	orders    map[string]models.Order
	trades    []models.Trade
	positions map[string]models.Position
	config    map[string]string
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{
		orders:    make(map[string]models.Order),
		positions: make(map[string]models.Position),
		config:    make(map[string]string),
	}
}

func (s *fakeOrderStore) SaveOrder(order models.Order) error {
	s.orders[order.ID] = order
	return nil
}

func (s *fakeOrderStore) GetOrder(orderID string) (*models.Order, error) {
	o, ok := s.orders[orderID]
	if !ok {
		return nil, assert.AnError
	}
	return &o, nil
}

func (s *fakeOrderStore) GetAllOrders() ([]models.Order, error) {
	out := make([]models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	return out, nil
}

func (s *fakeOrderStore) SaveTrade(trade models.Trade) error {
	s.trades = append(s.trades, trade)
	return nil
}

func (s *fakeOrderStore) SavePosition(position models.Position) error {
	s.positions[position.Symbol] = position
	return nil
}

func (s *fakeOrderStore) GetAllPositions() ([]models.Position, error) {
	out := make([]models.Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	return out, nil
}

func (s *fakeOrderStore) GetSystemConfig(key string) (string, error) {
	v, ok := s.config[key]
	if !ok {
		return "", assert.AnError
	}
	return v, nil
}

func (s *fakeOrderStore) SetSystemConfig(key, value string) error {
	s.config[key] = value
	return nil
}

func newTestOrderManager(t *testing.T) (*OrderManager, *PaperBroker, *fakeOrderStore, *executor.Executor) {
	t.Helper()
	exec := executor.New(16)
	t.Cleanup(exec.Stop)
	hub := tickhub.New(exec)
	broker := NewPaperBroker(hub, 100000, PerTradeRate{Rate: 0.01}, nil)
	require.NoError(t, broker.Connect())

	store := newFakeOrderStore()
	om := NewOrderManager(broker, store, nil)
	broker.SetFillListener(om.RecordFill)

	return om, broker, store, exec
}

func TestOrderManagerRecordFillPersistsOrderTradeAndPosition(t *testing.T) {
	om, broker, store, exec := newTestOrderManager(t)

	exec.PostAndWait(func() {
		hub := broker.hub
		hub.IngestSync(models.Tick{Symbol: "AAPL", Price: 99.0})
	})

	var id string
	var err error
	exec.PostAndWait(func() {
		id, err = broker.PlaceLimit("AAPL", models.OrderSideBuy, 10, 100.0, "entry")
	})
	require.NoError(t, err)

	order, err := om.GetOrder(id)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusFilled, order.Status)

	_, ok := store.orders[id]
	assert.True(t, ok)
	assert.Len(t, store.trades, 1)
	assert.Contains(t, store.positions, "AAPL")
}

func TestOrderManagerLoadOrdersPopulatesCache(t *testing.T) {
	om, _, store, _ := newTestOrderManager(t)

	store.orders["ord-1"] = models.Order{ID: "ord-1", Symbol: "AAPL"}
	require.NoError(t, om.LoadOrders())

	order, err := om.GetOrder("ord-1")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", order.Symbol)
}

func TestOrderManagerGetOrdersFiltersAndPaginates(t *testing.T) {
	om, broker, _, exec := newTestOrderManager(t)
	exec.PostAndWait(func() {
		broker.hub.IngestSync(models.Tick{Symbol: "AAPL", Price: 99.0})
		broker.hub.IngestSync(models.Tick{Symbol: "GOOGL", Price: 99.0})
	})
	exec.PostAndWait(func() {
		_, _ = broker.PlaceLimit("AAPL", models.OrderSideBuy, 1, 100.0, "a")
		_, _ = broker.PlaceLimit("GOOGL", models.OrderSideBuy, 1, 100.0, "b")
	})

	orders, total, err := om.GetOrders(OrderFilter{Symbol: "AAPL"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, orders, 1)
	assert.Equal(t, "AAPL", orders[0].Symbol)
}

func TestOrderManagerGetPositionsBalanceTradesPnl(t *testing.T) {
	om, broker, _, exec := newTestOrderManager(t)
	exec.PostAndWait(func() {
		broker.hub.IngestSync(models.Tick{Symbol: "AAPL", Price: 99.0})
	})
	exec.PostAndWait(func() {
		_, _ = broker.PlaceLimit("AAPL", models.OrderSideBuy, 10, 100.0, "entry")
	})

	positions, err := om.GetPositions()
	require.NoError(t, err)
	assert.Len(t, positions, 1)

	balance, err := om.GetBalance()
	require.NoError(t, err)
	assert.Less(t, balance.Cash, 100000.0)

	trades := om.GetTrades()
	assert.Len(t, trades, 1)

	pnl := om.GetPnl()
	assert.Equal(t, 0.0, pnl.GrossRealized)
}

func TestOrderManagerInitialCapitalRoundTrip(t *testing.T) {
	om, _, _, _ := newTestOrderManager(t)

	_, err := om.GetInitialCapital()
	assert.Error(t, err)

	require.NoError(t, om.SetInitialCapital(50000))
	got, err := om.GetInitialCapital()
	require.NoError(t, err)
	assert.Equal(t, 50000.0, got)
}

func TestOrderManagerInitialCapitalWithoutStoreErrors(t *testing.T) {
	exec := executor.New(4)
	t.Cleanup(exec.Stop)
	hub := tickhub.New(exec)
	broker := NewPaperBroker(hub, 1000, nil, nil)
	om := NewOrderManager(broker, nil, nil)

	amount, err := om.GetInitialCapital()
	require.NoError(t, err)
	assert.Equal(t, 0.0, amount)

	assert.Error(t, om.SetInitialCapital(1000))
}

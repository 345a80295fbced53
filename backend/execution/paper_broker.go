// Package execution provides the Paper Broker: a simulated brokerage
// that fills limit orders against the Tick Hub's price stream. No real
// money is at risk — all trades are simulated.
package execution

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/marcusklein/windowtrader/backend/models"
	"github.com/marcusklein/windowtrader/backend/tickhub"
)

// pendingOrder is a queued limit order waiting for the tick stream to
// cross its price, per spec.md §4.3's "queued, then FIFO-filled on a
// crossing tick" branch.
type pendingOrder struct {
	order models.Order
	sub   *tickhub.Subscription
}

// FillListener is notified synchronously, on the executor goroutine,
// whenever an order fills — immediately inside PlaceLimit, or later from
// a tick-crossing callback. Wired to OrderManager.RecordFill for
// persistence and websocket broadcast.
type FillListener func(order models.Order, trade models.Trade)

// PaperBroker simulates brokerage execution against live/backtest ticks.
// All of its state is only ever touched from the Tick Hub's executor
// goroutine: PlaceLimit is called synchronously from the Symbol Machine
// (itself only invoked on that goroutine), and fill-crossing callbacks
// run as tickhub.Handler subscriptions on the same goroutine. Snapshot
// reads from HTTP handlers go through hub.exec via the *Snapshot methods.
type PaperBroker struct {
	hub  *tickhub.Hub
	risk *RiskManager
	rule BrokerageRule
	onFill FillListener

	name      string
	connected bool
	balance   models.Balance

	positions map[string]models.Position
	orders    map[string]models.Order
	pending   map[string][]*pendingOrder // by symbol, FIFO
	trades    []models.Trade

	grossRealizedTotal float64
	brokeragePaid      float64
}

// NewPaperBroker creates a new paper trading broker seeded with
// initialCash, filling against hub's tick stream using rule to compute
// brokerage on each closing trade and risk as a pre-trade guard rail. A
// nil rule defaults to NoBrokerage; a nil risk skips guard-rail checks.
func NewPaperBroker(hub *tickhub.Hub, initialCash float64, rule BrokerageRule, risk *RiskManager) *PaperBroker {
	if rule == nil {
		rule = NoBrokerage{}
	}
	return &PaperBroker{
		hub:  hub,
		risk: risk,
		rule: rule,
		name: "paper",
		balance: models.Balance{
			Cash:           initialCash,
			Equity:         initialCash,
			BuyingPower:    initialCash,
			PortfolioValue: initialCash,
			UpdatedAt:      time.Now(),
		},
		positions: make(map[string]models.Position),
		orders:    make(map[string]models.Order),
		pending:   make(map[string][]*pendingOrder),
	}
}

// SetFillListener registers the callback invoked on every fill.
func (b *PaperBroker) SetFillListener(fn FillListener) {
	b.onFill = fn
}

// Name returns the broker name.
func (b *PaperBroker) Name() string { return b.name }

// Connect marks the broker ready (instant for paper trading).
func (b *PaperBroker) Connect() error {
	b.connected = true
	log.Info().Msg("paper broker connected")
	return nil
}

// Disconnect marks the broker unready.
func (b *PaperBroker) Disconnect() error {
	b.connected = false
	log.Info().Msg("paper broker disconnected")
	return nil
}

// IsConnected reports whether Connect has been called.
func (b *PaperBroker) IsConnected() bool { return b.connected }

// PlaceLimit places a limit order for sym and returns its order ID,
// satisfying machine.Broker. If the Tick Hub's cached last price already
// crosses limit, the order fills immediately; otherwise it is queued and
// filled FIFO the first time a subsequent tick crosses it, per spec.md
// §4.3.
func (b *PaperBroker) PlaceLimit(sym string, side models.OrderSide, qty int64, limit float64, tag string) (string, error) {
	order := models.Order{
		ID:        uuid.NewString(),
		Symbol:    sym,
		Side:      side,
		Type:      models.OrderTypeLimit,
		Quantity:  float64(qty),
		Price:     limit,
		Status:    models.OrderStatusSubmitted,
		Tag:       tag,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if side == models.OrderSideBuy {
		if err := b.risk.CheckEntry(order); err != nil {
			order.Status = models.OrderStatusRejected
			b.orders[order.ID] = order
			return order.ID, fmt.Errorf("risk check failed: %w", err)
		}
	}

	b.orders[order.ID] = order

	if tick, ok := b.hub.LastPrice(sym); ok && crosses(side, tick.Price, limit) {
		b.fill(order, tick.Price)
		return order.ID, nil
	}

	b.queue(order)
	return order.ID, nil
}

// crosses reports whether price has reached a level that fills a limit
// order: at-or-below the limit for a BUY, at-or-above for a SELL.
func crosses(side models.OrderSide, price, limit float64) bool {
	if side == models.OrderSideBuy {
		return price <= limit
	}
	return price >= limit
}

// queue enqueues order for FIFO fill-on-crossing and, if this is the
// symbol's first pending order, subscribes to its tick stream.
func (b *PaperBroker) queue(order models.Order) {
	pend := &pendingOrder{order: order}
	first := len(b.pending[order.Symbol]) == 0
	b.pending[order.Symbol] = append(b.pending[order.Symbol], pend)

	if first {
		pend.sub = b.hub.Subscribe(order.Symbol, func(tick models.Tick) {
			b.onTick(order.Symbol, tick)
		})
	} else {
		pend.sub = b.pending[order.Symbol][0].sub
	}

	b.risk.RecordOrderOpened()
}

// onTick drains every pending order on sym that tick now crosses, in
// FIFO order, and unsubscribes once the queue empties.
func (b *PaperBroker) onTick(sym string, tick models.Tick) {
	queue := b.pending[sym]
	if len(queue) == 0 {
		return
	}

	remaining := queue[:0]
	var sub *tickhub.Subscription
	for _, pend := range queue {
		sub = pend.sub
		if crosses(pend.order.Side, tick.Price, pend.order.Price) {
			b.fill(pend.order, tick.Price)
			b.risk.RecordOrderClosed()
		} else {
			remaining = append(remaining, pend)
		}
	}

	if len(remaining) == 0 {
		delete(b.pending, sym)
		if sub != nil {
			sub.Unsubscribe()
		}
	} else {
		b.pending[sym] = remaining
	}
}

// Cancel cancels a pending order. Filled or already-cancelled orders
// cannot be cancelled.
func (b *PaperBroker) Cancel(orderID string) error {
	order, ok := b.orders[orderID]
	if !ok {
		return fmt.Errorf("order not found: %s", orderID)
	}
	if order.Status == models.OrderStatusFilled {
		return fmt.Errorf("cannot cancel filled order: %s", orderID)
	}
	if order.Status == models.OrderStatusCancelled {
		return nil
	}

	queue := b.pending[order.Symbol]
	for i, pend := range queue {
		if pend.order.ID == orderID {
			queue = append(queue[:i], queue[i+1:]...)
			break
		}
	}
	if len(queue) == 0 {
		if subs := b.pending[order.Symbol]; len(subs) > 0 && subs[0].sub != nil {
			subs[0].sub.Unsubscribe()
		}
		delete(b.pending, order.Symbol)
	} else {
		b.pending[order.Symbol] = queue
	}

	order.Status = models.OrderStatusCancelled
	order.UpdatedAt = time.Now()
	b.orders[orderID] = order
	b.risk.RecordOrderClosed()
	return nil
}

// Status returns the current order by ID.
func (b *PaperBroker) Status(orderID string) (*models.Order, error) {
	order, ok := b.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order not found: %s", orderID)
	}
	return &order, nil
}

// OpenQty returns the current signed open quantity for sym, satisfying
// machine.Broker and backend/sizing.OpenQtyFunc.
func (b *PaperBroker) OpenQty(sym string) int64 {
	pos, ok := b.positions[sym]
	if !ok {
		return 0
	}
	return int64(pos.Quantity)
}

// fill executes order at price: updates cash/buying-power, the position's
// weighted-average cost basis (on a BUY) or realized P&L and brokerage
// (on a SELL that closes against a long), records a Trade, and notifies
// the fill listener.
func (b *PaperBroker) fill(order models.Order, price float64) {
	order.Status = models.OrderStatusFilled
	order.FilledQuantity = order.Quantity
	order.AveragePrice = price
	order.UpdatedAt = time.Now()
	b.orders[order.ID] = order

	var realizedDelta, brokerageDelta float64
	if order.Side == models.OrderSideBuy {
		b.applyBuy(order.Symbol, order.Quantity, price)
	} else {
		realizedDelta, brokerageDelta = b.applySell(order.Symbol, order.Quantity, price)
	}

	trade := models.Trade{
		ID:             uuid.NewString(),
		OrderID:        order.ID,
		Symbol:         order.Symbol,
		Side:           order.Side,
		Quantity:       order.Quantity,
		Price:          price,
		RealizedDelta:  realizedDelta,
		BrokerageDelta: brokerageDelta,
		Tag:            order.Tag,
		ExecutedAt:     order.UpdatedAt,
	}
	b.trades = append(b.trades, trade)
	b.risk.RecordRealized(realizedDelta - brokerageDelta)

	log.Info().
		Str("order_id", order.ID).
		Str("symbol", order.Symbol).
		Str("side", string(order.Side)).
		Str("tag", order.Tag).
		Float64("qty", order.Quantity).
		Float64("price", price).
		Msg("paper order filled")

	if b.onFill != nil {
		b.onFill(order, trade)
	}
}

// applyBuy folds a BUY fill into cash and the position's average cost.
func (b *PaperBroker) applyBuy(symbol string, quantity, price float64) {
	cost := quantity * price
	b.balance.Cash -= cost
	b.balance.BuyingPower -= cost
	b.balance.UpdatedAt = time.Now()

	pos, exists := b.positions[symbol]
	if exists && pos.Quantity > 0 {
		totalQty := pos.Quantity + quantity
		totalCost := (pos.AverageCost * pos.Quantity) + cost
		pos.AverageCost = totalCost / totalQty
		pos.Quantity = totalQty
	} else {
		pos = models.Position{Symbol: symbol, Quantity: quantity, AverageCost: price}
		if exists {
			pos.RealizedGross = b.positions[symbol].RealizedGross
		}
	}
	pos.CurrentPrice = price
	pos.MarketValue = pos.Quantity * price
	pos.UnrealizedPL = pos.MarketValue - (pos.Quantity * pos.AverageCost)
	pos.UpdatedAt = time.Now()
	b.positions[symbol] = pos
}

// applySell folds a SELL fill into cash, closes against the existing
// long, and charges brokerage via the configured rule on the realized
// gain. Returns the realized P&L and brokerage charged.
func (b *PaperBroker) applySell(symbol string, quantity, price float64) (realizedDelta, brokerageDelta float64) {
	proceeds := quantity * price

	pos, exists := b.positions[symbol]
	if exists && pos.Quantity > 0 {
		closedQty := quantity
		if closedQty > pos.Quantity {
			closedQty = pos.Quantity
		}
		realizedDelta = closedQty * (price - pos.AverageCost)
		b.grossRealizedTotal += realizedDelta
		brokerageDelta = b.rule.OnClose(closedQty*price, realizedDelta, b.grossRealizedTotal)
		b.brokeragePaid += brokerageDelta

		pos.Quantity -= quantity
		pos.RealizedGross += realizedDelta
		if pos.Quantity <= 0 {
			pos.Quantity = 0
			pos.CurrentPrice = price
			pos.MarketValue = 0
			pos.UnrealizedPL = 0
			pos.UpdatedAt = time.Now()
			b.positions[symbol] = pos
		} else {
			pos.CurrentPrice = price
			pos.MarketValue = pos.Quantity * price
			pos.UnrealizedPL = pos.MarketValue - (pos.Quantity * pos.AverageCost)
			pos.UpdatedAt = time.Now()
			b.positions[symbol] = pos
		}
	}

	b.balance.Cash += proceeds - brokerageDelta
	b.balance.BuyingPower += proceeds - brokerageDelta
	b.balance.UpdatedAt = time.Now()
	return realizedDelta, brokerageDelta
}

// PnlSummary is the aggregate P&L snapshot returned by Pnl, per spec.md
// §4.3/§6.4.
type PnlSummary struct {
	RealizedNet   float64            `json:"realized_net"`
	GrossRealized float64            `json:"gross_realized"`
	Brokerage     float64            `json:"brokerage"`
	Unrealized    float64            `json:"unrealized"`
	Total         float64            `json:"total"`
	BySymbol      map[string]float64 `json:"by_symbol"`
}

// Pnl computes the current realized/unrealized P&L snapshot.
func (b *PaperBroker) Pnl() PnlSummary {
	summary := PnlSummary{
		GrossRealized: b.grossRealizedTotal,
		Brokerage:     b.brokeragePaid,
		BySymbol:      make(map[string]float64, len(b.positions)),
	}
	summary.RealizedNet = b.grossRealizedTotal - b.brokeragePaid

	for sym, pos := range b.positions {
		summary.Unrealized += pos.UnrealizedPL
		summary.BySymbol[sym] = pos.RealizedGross + pos.UnrealizedPL
	}
	summary.Total = summary.RealizedNet + summary.Unrealized
	return summary
}

// Trades returns every fill in execution order.
func (b *PaperBroker) Trades() []models.Trade {
	out := make([]models.Trade, len(b.trades))
	copy(out, b.trades)
	return out
}

// GetPositions returns all open positions, sorted by symbol.
func (b *PaperBroker) GetPositions() ([]models.Position, error) {
	out := make([]models.Position, 0, len(b.positions))
	for _, pos := range b.positions {
		if pos.Quantity == 0 {
			continue
		}
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// GetPosition returns the position for a single symbol.
func (b *PaperBroker) GetPosition(symbol string) (*models.Position, error) {
	pos, ok := b.positions[symbol]
	if !ok || pos.Quantity == 0 {
		return nil, fmt.Errorf("no position for %s", symbol)
	}
	return &pos, nil
}

// GetBalance returns the current account balance.
func (b *PaperBroker) GetBalance() (*models.Balance, error) {
	return &b.balance, nil
}

// Snapshot* methods are safe to call from any goroutine: they hop onto
// the Tick Hub's executor to read state, mirroring tickhub.Hub's own
// LastPriceSnapshot pattern.

// PositionsSnapshot is the concurrency-safe form of GetPositions.
func (b *PaperBroker) PositionsSnapshot() []models.Position {
	var out []models.Position
	b.hub.Exec().PostAndWait(func() {
		out, _ = b.GetPositions()
	})
	return out
}

// BalanceSnapshot is the concurrency-safe form of GetBalance.
func (b *PaperBroker) BalanceSnapshot() models.Balance {
	var out models.Balance
	b.hub.Exec().PostAndWait(func() {
		bal, _ := b.GetBalance()
		out = *bal
	})
	return out
}

// TradesSnapshot is the concurrency-safe form of Trades.
func (b *PaperBroker) TradesSnapshot() []models.Trade {
	var out []models.Trade
	b.hub.Exec().PostAndWait(func() {
		out = b.Trades()
	})
	return out
}

// PnlSnapshot is the concurrency-safe form of Pnl.
func (b *PaperBroker) PnlSnapshot() PnlSummary {
	var out PnlSummary
	b.hub.Exec().PostAndWait(func() {
		out = b.Pnl()
	})
	return out
}

package live

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	binance "github.com/adshao/go-binance/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/marcusklein/windowtrader/backend/models"
)

// Broker places real limit orders against Binance, satisfying
// backend/machine.Broker so a Symbol Machine can run against a live
// exchange with no change to its own logic — spec.md §6.4's "in live mode
// these are thin adapters."
type Broker struct {
	client *binance.Client

	mu   sync.Mutex
	open map[string]int64 // binanceSymbol -> signed open qty, tracked locally
}

// NewBroker returns a Broker over apiKey/apiSecret. useUS selects the
// Binance.US REST base URL, mirroring BinanceProvider.
func NewBroker(apiKey, apiSecret string, useUS bool) *Broker {
	client := binance.NewClient(apiKey, apiSecret)
	if useUS {
		client.BaseURL = "https://api.binance.us"
	}
	return &Broker{client: client, open: make(map[string]int64)}
}

// PlaceLimit submits a real GTC limit order. qty/limit are converted to
// Binance's string-quantity wire format; tag is carried only in logs since
// Binance orders have no free-form client tag field in this API version.
func (b *Broker) PlaceLimit(sym string, side models.OrderSide, qty int64, limit float64, tag string) (string, error) {
	binanceSide := binance.SideTypeBuy
	if side == models.OrderSideSell {
		binanceSide = binance.SideTypeSell
	}

	order, err := b.client.NewCreateOrderService().
		Symbol(sym).
		Side(binanceSide).
		Type(binance.OrderTypeLimit).
		TimeInForce(binance.TimeInForceTypeGTC).
		Quantity(strconv.FormatInt(qty, 10)).
		Price(strconv.FormatFloat(limit, 'f', -1, 64)).
		Do(context.Background())
	if err != nil {
		return "", fmt.Errorf("live: place limit %s: %w", sym, err)
	}

	b.mu.Lock()
	if side == models.OrderSideBuy {
		b.open[sym] += qty
	} else {
		b.open[sym] -= qty
	}
	b.mu.Unlock()

	log.Info().Str("sym", sym).Str("tag", tag).Int64("binance_order_id", order.OrderID).Msg("live: limit order placed")
	return fmt.Sprintf("binance-%d", order.OrderID), nil
}

// OpenQty returns the locally tracked signed open quantity for sym. A
// fuller implementation would reconcile this against Binance's own
// account position endpoint at startup (spec.md §6.7's "reconciled, see
// §9" note) — out of scope for this thin adapter.
func (b *Broker) OpenQty(sym string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open[sym]
}

// NewOrderID is a small helper for callers that need a locally-generated
// ID ahead of a round trip (e.g. idempotency keys); not used by PlaceLimit
// itself since Binance assigns its own order ID.
func NewOrderID() string {
	return uuid.NewString()
}

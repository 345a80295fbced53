// Package live contains the thin, explicitly out-of-core live-trading
// adapters: a market feed that streams real trade prices into the Tick
// Hub, and a broker that forwards order placements to a real exchange.
// Neither implements trading logic — that is entirely the Symbol
// Machine's job (backend/machine); these packages only translate wire
// formats, per spec.md §6.2/§6.4's "thin adapter" framing.
package live

import (
	"fmt"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/rs/zerolog/log"

	"github.com/marcusklein/windowtrader/backend/models"
	"github.com/marcusklein/windowtrader/backend/tickhub"
)

// Feed streams real-time trade prices for a fixed set of symbols from
// Binance into a tickhub.Hub via WsAggTradeServe, the same
// adshao/go-binance/v2 dependency the teacher already carries for REST
// history (backend/data/providers/binance.go) — only the transport
// changes, from polled REST klines to a pushed trade stream.
type Feed struct {
	hub      *tickhub.Hub
	useUS    bool
	stopFns  []func() bool
}

// NewFeed returns a Feed that delivers ticks into hub. useUS selects
// Binance.US endpoints, mirroring BinanceProvider's useUS flag.
func NewFeed(hub *tickhub.Hub, useUS bool) *Feed {
	if useUS {
		binance.BaseWSMainURL = "wss://stream.binance.us:9443/ws"
	}
	return &Feed{hub: hub, useUS: useUS}
}

// Subscribe opens a streaming connection for binanceSymbol (already in
// Binance's concatenated form, e.g. "BTCUSDT") and maps every trade into a
// models.Tick for sym on the Tick Hub. It reconnects is the caller's
// responsibility — a stream that errors out calls errHandler and stops;
// Stop() tears down every subscription Subscribe has opened so far.
func (f *Feed) Subscribe(sym, binanceSymbol string) error {
	handler := func(event *binance.WsAggTradeEvent) {
		price, err := parsePrice(event.Price)
		if err != nil {
			log.Warn().Err(err).Str("sym", sym).Msg("live: dropping unparseable trade price")
			return
		}
		f.hub.Ingest(models.Tick{
			Symbol:    sym,
			Price:     price,
			Timestamp: time.UnixMilli(event.Time),
		})
	}
	errHandler := func(err error) {
		log.Error().Err(err).Str("sym", sym).Msg("live: feed stream error")
	}

	_, stopC, err := binance.WsAggTradeServe(binanceSymbol, handler, errHandler)
	if err != nil {
		return fmt.Errorf("live: subscribe %s: %w", sym, err)
	}
	f.stopFns = append(f.stopFns, func() bool {
		close(stopC)
		return true
	})
	return nil
}

// Stop tears down every open subscription.
func (f *Feed) Stop() {
	for _, stop := range f.stopFns {
		stop()
	}
	f.stopFns = nil
}

func parsePrice(s string) (float64, error) {
	var price float64
	_, err := fmt.Sscanf(s, "%f", &price)
	if err != nil {
		return 0, err
	}
	return price, nil
}

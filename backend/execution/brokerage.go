// Package execution provides the Paper Broker and its supporting policies.
package execution

// BrokerageRule computes the brokerage charged against a closing trade.
// spec.md §9 requires picking exactly one rule at configuration time;
// windowtrader wires both variants observed in the source and a
// config-selected no-op, rather than hard-coding one.
type BrokerageRule interface {
	// OnClose is invoked for the closing portion of a SELL against a long,
	// with the notional closed and the realized P&L it produced (before
	// brokerage). It returns the brokerage to deduct, always >= 0.
	OnClose(notionalClosed, realizedDelta, grossRealizedTotal float64) float64
}

// PerTradeRate charges a fixed rate against the notional closed by each
// SELL that closes against a long, per spec.md §4.3's "-rate *
// notional_closed" variant.
type PerTradeRate struct {
	Rate float64
}

func (r PerTradeRate) OnClose(notionalClosed, _, _ float64) float64 {
	if notionalClosed <= 0 {
		return 0
	}
	return r.Rate * notionalClosed
}

// GlobalProfitShare charges Share of each close's positive realized
// gain. A close that realizes a loss is charged nothing, and losses are
// not netted against earlier gains, so after a loss the cumulative charge
// exceeds Share times the net realized total.
type GlobalProfitShare struct {
	Share float64
}

func (r GlobalProfitShare) OnClose(_, realizedDelta, _ float64) float64 {
	if realizedDelta <= 0 {
		return 0
	}
	return r.Share * realizedDelta
}

// NoBrokerage charges nothing. Used when brokerage_policy is unset.
type NoBrokerage struct{}

func (NoBrokerage) OnClose(_, _, _ float64) float64 { return 0 }

// Package metrics exposes windowtrader's Prometheus metrics, in the
// counters/gauges-registered-at-init style of the teacher pack's
// chidi150c-coinbase/metrics.go: a package-level registry, one var block
// of CounterVec/GaugeVec declarations, and small typed setter/incrementer
// helpers rather than calling prometheus.* directly from call sites.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marcusklein/windowtrader/backend/machine"
	"github.com/marcusklein/windowtrader/backend/models"
)

var (
	machineTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "windowtrader_machine_transitions_total",
			Help: "Symbol Machine state transitions, by symbol/from-state/to-state.",
		},
		[]string{"sym", "from", "to"},
	)

	ordersPlaced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "windowtrader_orders_placed_total",
			Help: "Limit orders placed by the Symbol Machine, by symbol/side/tag.",
		},
		[]string{"sym", "side", "tag"},
	)

	fillsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "windowtrader_fills_total",
			Help: "Order fills recorded by the broker, by symbol/side.",
		},
		[]string{"sym", "side"},
	)

	openPositionQty = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "windowtrader_open_position_qty",
			Help: "Current open quantity per symbol.",
		},
		[]string{"sym"},
	)

	realizedPL = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "windowtrader_realized_pl",
			Help: "Realized profit/loss per symbol, net of brokerage.",
		},
		[]string{"sym"},
	)

	signalsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "windowtrader_signals_received_total",
			Help: "Inbound signals accepted by the Signal Router, by side.",
		},
		[]string{"side"},
	)

	signalsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "windowtrader_signals_rejected_total",
			Help: "Inbound signals rejected at validation, by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		machineTransitions,
		ordersPlaced,
		fillsTotal,
		openPositionQty,
		realizedPL,
		signalsReceived,
		signalsRejected,
	)
}

// Handler returns the /metrics HTTP handler in Prometheus text exposition
// format (spec.md's ambient-stack observability, carried per SPEC_FULL.md
// section B even though spec.md §1 scopes deeper dashboards out).
func Handler() http.Handler {
	return promhttp.Handler()
}

// Recorder implements machine.Recorder, forwarding Symbol Machine events
// into the registered series above. Broker-side events are recorded
// through the package-level ObserveFill/ObserveRealizedPL functions
// instead, since the Paper Broker does not depend on this package's types.
type Recorder struct{}

// NewRecorder returns a ready-to-attach Recorder. Stateless — Prometheus
// client_golang's registered collectors already hold all the state.
func NewRecorder() *Recorder { return &Recorder{} }

var _ machine.Recorder = Recorder{}

func (Recorder) ObserveTransition(sym string, from, to machine.State) {
	machineTransitions.WithLabelValues(sym, string(from), string(to)).Inc()
}

func (Recorder) ObserveOrderPlaced(sym string, side models.OrderSide, tag string) {
	ordersPlaced.WithLabelValues(sym, string(side), tag).Inc()
}

// ObserveFill records a completed fill and updates the open-quantity gauge
// for sym. Called from main.go's Paper Broker fill listener after a
// crossing fill.
func ObserveFill(sym string, side models.OrderSide, openQty int64) {
	fillsTotal.WithLabelValues(sym, string(side)).Inc()
	openPositionQty.WithLabelValues(sym).Set(float64(openQty))
}

// ObserveRealizedPL sets the realized-P&L gauge for sym to the given
// cumulative value (already netted against brokerage).
func ObserveRealizedPL(sym string, pl float64) {
	realizedPL.WithLabelValues(sym).Set(pl)
}

// ObserveSignalAccepted increments the accepted-signal counter for side.
func ObserveSignalAccepted(side string) {
	signalsReceived.WithLabelValues(side).Inc()
}

// ObserveSignalRejected increments the rejected-signal counter for reason.
func ObserveSignalRejected(reason string) {
	signalsRejected.WithLabelValues(reason).Inc()
}

package models

import "time"

// SignalSide is the direction carried by an inbound trading signal.
type SignalSide string

const (
	SignalSideBuy  SignalSide = "BUY"
	SignalSideSell SignalSide = "SELL"
)

// Signal is an external alert accepted by the Signal Router: a symbol, a
// direction, and the price the upstream alerting system observed when it
// fired. Reason is a free-form label carried through for audit only.
type Signal struct {
	Symbol    string     `json:"sym" validate:"required"`
	Side      SignalSide `json:"side" validate:"required,oneof=BUY SELL"`
	Timestamp time.Time  `json:"ts"`
	AtPrice   float64    `json:"at_price" validate:"gte=0"`
	Reason    string     `json:"reason,omitempty"`
}

package models

import "time"

// Tick is a single last-traded-price update for an instrument.
//
// Within the Tick Hub, ts is monotonically non-decreasing per Symbol;
// a duplicate (Symbol, Timestamp) is tolerated and the later value wins.
type Tick struct {
	Symbol    string    `json:"sym"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"ts"`
}

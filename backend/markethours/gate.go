// Package markethours implements the Market-Hours Gate of spec.md §6.5: a
// pure predicate over wall-clock time in a configured timezone, with
// configurable weekday/window/holiday overrides and force switches for
// testing.
package markethours

import (
	"fmt"
	"time"
)

// Config holds the gate's tunables, fed from config.Config's
// MarketTZ/MarketDays/MarketStart/MarketEnd/MarketHolidays/AllowAfterHours
// fields (spec.md §6.6).
type Config struct {
	// Location is the timezone local_time is evaluated in.
	Location *time.Location
	// Days is the set of weekdays the market trades. Default Mon–Fri.
	Days []time.Weekday
	// Start/End are "HH:MM" wall-clock bounds, inclusive, evaluated in
	// Location. Default 09:15–15:30.
	Start string
	End   string
	// Holidays is a set of "YYYY-MM-DD" dates that force-close regardless
	// of weekday/window.
	Holidays map[string]bool
	// AllowAfterHours bypasses the gate entirely when true (spec.md §6.6).
	AllowAfterHours bool
	// ForceOpen/ForceClosed override every other check, for tests.
	ForceOpen   bool
	ForceClosed bool
}

// DefaultConfig returns the spec.md §6.5 default: Mon–Fri 09:15–15:30 in
// the given timezone, no holidays.
func DefaultConfig(loc *time.Location) Config {
	return Config{
		Location: loc,
		Days:     []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		Start:    "09:15",
		End:      "15:30",
		Holidays: map[string]bool{},
	}
}

// Gate evaluates is_market_open(at).
type Gate struct {
	cfg Config
}

// New returns a Gate over cfg. A nil cfg.Location is treated as
// time.UTC.
func New(cfg Config) *Gate {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Gate{cfg: cfg}
}

// IsOpen implements is_market_open(at) (spec.md §6.5).
func (g *Gate) IsOpen(at time.Time) bool {
	if g.cfg.ForceClosed {
		return false
	}
	if g.cfg.ForceOpen || g.cfg.AllowAfterHours {
		return true
	}

	local := at.In(g.cfg.Location)

	if g.cfg.Holidays[local.Format("2006-01-02")] {
		return false
	}

	if !g.isTradingDay(local.Weekday()) {
		return false
	}

	startMin, err := parseHHMM(g.cfg.Start)
	if err != nil {
		return false
	}
	endMin, err := parseHHMM(g.cfg.End)
	if err != nil {
		return false
	}
	nowMin := local.Hour()*60 + local.Minute()

	return nowMin >= startMin && nowMin <= endMin
}

func (g *Gate) isTradingDay(d time.Weekday) bool {
	for _, day := range g.cfg.Days {
		if day == d {
			return true
		}
	}
	return false
}

func parseHHMM(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("markethours: invalid HH:MM %q: %w", s, err)
	}
	return h*60 + m, nil
}

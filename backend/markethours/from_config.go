package markethours

import "time"

// ConfigSource is the subset of config.Config the gate needs. Defined here
// (rather than imported from backend/config) so that markethours does not
// depend on the config package.
type ConfigSource struct {
	MarketTZ        string
	MarketDays      []time.Weekday
	MarketStart     string
	MarketEnd       string
	MarketHolidays  []string
	AllowAfterHours bool
}

// FromSource builds a Gate Config from a config.Config-shaped source,
// defaulting Days/Start/End when the source leaves them unset.
func FromSource(src ConfigSource) (Config, error) {
	loc, err := time.LoadLocation(src.MarketTZ)
	if err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig(loc)
	cfg.AllowAfterHours = src.AllowAfterHours

	if len(src.MarketDays) > 0 {
		cfg.Days = src.MarketDays
	}
	if src.MarketStart != "" {
		cfg.Start = src.MarketStart
	}
	if src.MarketEnd != "" {
		cfg.End = src.MarketEnd
	}
	for _, h := range src.MarketHolidays {
		cfg.Holidays[h] = true
	}

	return cfg, nil
}

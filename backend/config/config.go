// Package config provides configuration management for the windowtrader
// trading engine. It loads settings from environment variables and .env
// files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// validLogLevels is the set of accepted zerolog log levels.
var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true,
	"warn": true, "error": true, "fatal": true,
	"panic": true, "disabled": true,
}

// validTickStyles is the set of accepted backtest candle->tick policies
// (spec.md §6.3).
var validTickStyles = map[string]bool{
	"close": true, "ohlcPath": true,
}

// validBrokeragePolicies is the set of accepted brokerage rules
// (spec.md §6.6).
var validBrokeragePolicies = map[string]bool{
	"per_trade_rate": true, "global_profit_share": true, "": true,
}

// validMissingPricePolicyNames is the set of accepted missing-price
// policies (spec.md §6.6/§7). The wait_then_seed variant carries its
// timeout as a separate duration field rather than an encoded suffix.
var validMissingPricePolicyNames = map[string]bool{
	"use_seed": true, "wait_then_seed": true, "fail": true,
}

// ValidationError holds multiple configuration validation errors.
// It aggregates all issues so operators can fix everything in one pass.
type ValidationError struct {
	// Errors is the list of individual validation error messages.
	Errors []string
}

// Error returns a formatted multi-line error message listing all issues.
func (ve *ValidationError) Error() string {
	return fmt.Sprintf("%d configuration error(s):\n  - %s",
		len(ve.Errors), strings.Join(ve.Errors, "\n  - "))
}

// ReloadChange describes a single configuration change detected during hot-reload.
type ReloadChange struct {
	// Field is the name of the configuration field that changed.
	Field string `json:"field"`
	// OldValue is the previous value (may be redacted for secrets).
	OldValue interface{} `json:"old_value"`
	// NewValue is the updated value (may be redacted for secrets).
	NewValue interface{} `json:"new_value"`
	// Applied indicates whether the change was applied (false if restart required).
	Applied bool `json:"applied"`
}

// ReloadResult summarizes what happened during a configuration hot-reload.
type ReloadResult struct {
	// Changes is the list of detected field changes.
	Changes []ReloadChange `json:"changes"`
	// RequiresRestart is true if any non-hot-reloadable field changed.
	RequiresRestart bool `json:"requires_restart"`
	// RestartReasons lists the fields that require a restart to take effect.
	RestartReasons []string `json:"restart_reasons,omitempty"`
}

// Config holds all configuration for windowtrader, per spec.md §6.6 plus
// the ambient server/database/logging settings the teacher's config.go
// carries alongside the domain knobs.
type Config struct {
	mu sync.RWMutex // protects hot-reloadable fields during concurrent access

	// Server settings
	ServerPort int
	ServerHost string
	// AuditAPIKey is loaded from AUDIT_API_KEY. No middleware checks it;
	// the signal-intake webhook accepts requests without an API key.
	AuditAPIKey string

	// CORS settings
	AllowedOrigins []string

	// Database settings
	DatabasePath string

	// Logging
	LogLevel string

	// Binance credentials. main.go creates a backend/live Feed when both
	// are set; live.Broker is not constructed from them.
	BinanceAPIKey    string
	BinanceAPISecret string
	UseBinanceUS     bool

	// --- spec.md §6.6: domain configuration ---

	// Capital is the per-entry notional budget (spec.md §4.4).
	Capital float64
	// EntryOffset/ExitOffset are the price cushions added/subtracted when
	// converting an anchor or tick to a limit (default 0.5).
	EntryOffset float64
	ExitOffset  float64
	// StopLossPoints is the defended distance below the anchor for the
	// stop-out rule (default 0.5).
	StopLossPoints float64
	// EntryTTL is loaded and validated but no component reads it: pending
	// entries are not cancelled or re-placed on a timeout.
	EntryTTL time.Duration
	// WindowDuration is the fixed window length (default 60s).
	WindowDuration time.Duration
	// TickStyle selects the candle->tick conversion policy for the
	// backtest driver: "close" or "ohlcPath".
	TickStyle string

	// MarketTZ, MarketDays, MarketStart, MarketEnd, MarketHolidays feed
	// backend/markethours.Gate.
	MarketTZ        string
	MarketDays      []time.Weekday
	MarketStart     string // "HH:MM" local
	MarketEnd       string // "HH:MM" local
	MarketHolidays  []string // "YYYY-MM-DD"
	AllowAfterHours bool

	// BrokeragePolicy selects the backend/execution.BrokerageRule:
	// "per_trade_rate" or "global_profit_share"; BrokerageParam is its
	// rate/share parameter.
	BrokeragePolicy string
	BrokerageParam  float64

	// MissingPricePolicyName is one of use_seed/wait_then_seed/fail.
	// MissingPriceTimeout is loaded but no component reads it;
	// wait_then_seed does not wait and falls back to the seed at once.
	MissingPricePolicyName string
	MissingPriceTimeout    time.Duration

	// RiskMaxDailyLoss / RiskMaxOpenOrders feed
	// backend/execution.RiskConfig.
	RiskMaxDailyLoss  float64
	RiskMaxOpenOrders int

	// PersistMachineState makes main.go restore Symbol Machines from the
	// machine_snapshots table at startup. Nothing writes snapshots to that
	// table while the process runs.
	PersistMachineState bool

	// Shutdown settings
	CloseOnShutdown bool
	ShutdownTimeout time.Duration

	// Internal settings
	EnvFile string
}

// Load reads configuration from environment variables and .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	config := &Config{
		ServerPort:  getEnvInt("PORT", 8099),
		ServerHost:  getEnv("HOST", "0.0.0.0"),
		AuditAPIKey: os.Getenv("AUDIT_API_KEY"),

		DatabasePath: getEnv("DATABASE_PATH", "./data/windowtrader.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		AllowedOrigins: parseCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:8080")),

		BinanceAPIKey:    os.Getenv("BINANCE_API_KEY"),
		BinanceAPISecret: os.Getenv("BINANCE_API_SECRET"),
		UseBinanceUS:     getEnv("BINANCE_USE_US", "true") == "true",

		Capital:        getEnvFloat("CAPITAL", 100000.0),
		EntryOffset:    getEnvFloat("ENTRY_OFFSET", 0.5),
		ExitOffset:     getEnvFloat("EXIT_OFFSET", 0.5),
		StopLossPoints: getEnvFloat("STOP_LOSS_POINTS", 0.5),
		EntryTTL:       getEnvDuration("ENTRY_TTL", 5*time.Second),
		WindowDuration: getEnvDuration("WINDOW_MS", 60*time.Second),
		TickStyle:      getEnv("TICK_STYLE", "close"),

		MarketTZ:        getEnv("MARKET_TZ", "America/New_York"),
		MarketDays:      parseWeekdays(getEnv("MARKET_DAYS", "Mon,Tue,Wed,Thu,Fri")),
		MarketStart:     getEnv("MARKET_START", "09:15"),
		MarketEnd:       getEnv("MARKET_END", "15:30"),
		MarketHolidays:  parseCSV(getEnv("MARKET_HOLIDAYS", "")),
		AllowAfterHours: getEnv("ALLOW_AFTER_HOURS", "false") == "true",

		BrokeragePolicy: getEnv("BROKERAGE_POLICY", "per_trade_rate"),
		BrokerageParam:  getEnvFloat("BROKERAGE_PARAM", 0.001),

		MissingPricePolicyName: getEnv("MISSING_PRICE_POLICY", "use_seed"),
		MissingPriceTimeout:    getEnvDuration("MISSING_PRICE_TIMEOUT", 2*time.Second),

		RiskMaxDailyLoss:  getEnvFloat("RISK_MAX_DAILY_LOSS", 500.0),
		RiskMaxOpenOrders: getEnvInt("RISK_MAX_OPEN_ORDERS", 50),

		PersistMachineState: getEnv("PERSIST_MACHINE_STATE", "true") == "true",

		EnvFile: ".env",

		CloseOnShutdown: getEnv("CLOSE_ON_SHUTDOWN", "false") == "true",
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive configuration validation with fail-fast
// behavior. All errors are aggregated and returned as a single
// ValidationError so operators can fix everything in one pass.
func (c *Config) Validate() error {
	var errs []string

	if c.ServerPort < 1 || c.ServerPort > 65535 {
		errs = append(errs,
			fmt.Sprintf("invalid PORT %d: must be between 1 and 65535", c.ServerPort))
	}

	if c.DatabasePath == "" {
		errs = append(errs,
			"DATABASE_PATH is empty: set DATABASE_PATH in .env (e.g., DATABASE_PATH=./data/windowtrader.db)")
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs,
			fmt.Sprintf("invalid LOG_LEVEL '%s': must be one of trace, debug, info, warn, error, fatal, panic, disabled", c.LogLevel))
	}

	if c.Capital <= 0 {
		errs = append(errs, fmt.Sprintf("invalid CAPITAL %.2f: must be positive", c.Capital))
	}

	if !validTickStyles[c.TickStyle] {
		errs = append(errs,
			fmt.Sprintf("invalid TICK_STYLE '%s': must be 'close' or 'ohlcPath'", c.TickStyle))
	}

	if !validBrokeragePolicies[c.BrokeragePolicy] {
		errs = append(errs,
			fmt.Sprintf("invalid BROKERAGE_POLICY '%s': must be 'per_trade_rate' or 'global_profit_share'", c.BrokeragePolicy))
	}

	if !validMissingPricePolicyNames[c.MissingPricePolicyName] {
		errs = append(errs,
			fmt.Sprintf("invalid MISSING_PRICE_POLICY '%s': must be one of use_seed, wait_then_seed, fail", c.MissingPricePolicyName))
	}

	if c.MarketTZ != "" {
		if _, err := time.LoadLocation(c.MarketTZ); err != nil {
			errs = append(errs, fmt.Sprintf("invalid MARKET_TZ '%s': %v", c.MarketTZ, err))
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}

	return nil
}

// Reload re-reads configuration from environment variables and .env
// files, applying only hot-reloadable fields to the live config.
// Structural fields (server port and host, database path, window
// duration, tick style, market timezone) are detected but NOT applied —
// the caller receives a RestartRequired advisory. The other market-hours
// fields are neither detected nor applied.
//
// Hot-reloadable fields:
//   - LogLevel (also sets zerolog global level)
//   - CloseOnShutdown, ShutdownTimeout
//   - AllowedOrigins
//   - BinanceAPIKey, BinanceAPISecret
//   - RiskMaxDailyLoss, RiskMaxOpenOrders
func (c *Config) Reload() (*ReloadResult, error) {
	envFile := c.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Overload(envFile)

	newCfg := &Config{
		ServerPort:             getEnvInt("PORT", 8099),
		ServerHost:             getEnv("HOST", "0.0.0.0"),
		AuditAPIKey:            os.Getenv("AUDIT_API_KEY"),
		DatabasePath:           getEnv("DATABASE_PATH", "./data/windowtrader.db"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		AllowedOrigins:         parseCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:8080")),
		BinanceAPIKey:          os.Getenv("BINANCE_API_KEY"),
		BinanceAPISecret:       os.Getenv("BINANCE_API_SECRET"),
		UseBinanceUS:           getEnv("BINANCE_USE_US", "true") == "true",
		Capital:                getEnvFloat("CAPITAL", 100000.0),
		EntryOffset:            getEnvFloat("ENTRY_OFFSET", 0.5),
		ExitOffset:             getEnvFloat("EXIT_OFFSET", 0.5),
		StopLossPoints:         getEnvFloat("STOP_LOSS_POINTS", 0.5),
		EntryTTL:               getEnvDuration("ENTRY_TTL", 5*time.Second),
		WindowDuration:         getEnvDuration("WINDOW_MS", 60*time.Second),
		TickStyle:              getEnv("TICK_STYLE", "close"),
		MarketTZ:               getEnv("MARKET_TZ", "America/New_York"),
		MarketDays:             parseWeekdays(getEnv("MARKET_DAYS", "Mon,Tue,Wed,Thu,Fri")),
		MarketStart:            getEnv("MARKET_START", "09:15"),
		MarketEnd:              getEnv("MARKET_END", "15:30"),
		MarketHolidays:         parseCSV(getEnv("MARKET_HOLIDAYS", "")),
		AllowAfterHours:        getEnv("ALLOW_AFTER_HOURS", "false") == "true",
		BrokeragePolicy:        getEnv("BROKERAGE_POLICY", "per_trade_rate"),
		BrokerageParam:         getEnvFloat("BROKERAGE_PARAM", 0.001),
		MissingPricePolicyName: getEnv("MISSING_PRICE_POLICY", "use_seed"),
		MissingPriceTimeout:    getEnvDuration("MISSING_PRICE_TIMEOUT", 2*time.Second),
		RiskMaxDailyLoss:       getEnvFloat("RISK_MAX_DAILY_LOSS", 500.0),
		RiskMaxOpenOrders:      getEnvInt("RISK_MAX_OPEN_ORDERS", 50),
		PersistMachineState:    getEnv("PERSIST_MACHINE_STATE", "true") == "true",
		CloseOnShutdown:        getEnv("CLOSE_ON_SHUTDOWN", "false") == "true",
		ShutdownTimeout:        getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		EnvFile:                envFile,
	}

	if err := newCfg.Validate(); err != nil {
		return nil, fmt.Errorf("reloaded config validation failed: %w", err)
	}

	result := &ReloadResult{Changes: make([]ReloadChange, 0)}

	c.mu.Lock()
	defer c.mu.Unlock()

	// --- Detect restart-only changes (not applied) ---
	c.detectRestartChange(result, "ServerPort", c.ServerPort, newCfg.ServerPort)
	c.detectRestartChange(result, "ServerHost", c.ServerHost, newCfg.ServerHost)
	c.detectRestartChange(result, "DatabasePath", c.DatabasePath, newCfg.DatabasePath)
	c.detectRestartChange(result, "WindowDuration", c.WindowDuration, newCfg.WindowDuration)
	c.detectRestartChange(result, "TickStyle", c.TickStyle, newCfg.TickStyle)
	c.detectRestartChange(result, "MarketTZ", c.MarketTZ, newCfg.MarketTZ)

	// --- Apply hot-reloadable changes ---
	if c.LogLevel != newCfg.LogLevel {
		result.Changes = append(result.Changes, ReloadChange{Field: "LogLevel", OldValue: c.LogLevel, NewValue: newCfg.LogLevel, Applied: true})
		c.LogLevel = newCfg.LogLevel
		if lvl, err := zerolog.ParseLevel(newCfg.LogLevel); err == nil {
			zerolog.SetGlobalLevel(lvl)
		}
	}
	if c.CloseOnShutdown != newCfg.CloseOnShutdown {
		result.Changes = append(result.Changes, ReloadChange{Field: "CloseOnShutdown", OldValue: c.CloseOnShutdown, NewValue: newCfg.CloseOnShutdown, Applied: true})
		c.CloseOnShutdown = newCfg.CloseOnShutdown
	}
	if c.ShutdownTimeout != newCfg.ShutdownTimeout {
		result.Changes = append(result.Changes, ReloadChange{Field: "ShutdownTimeout", OldValue: c.ShutdownTimeout.String(), NewValue: newCfg.ShutdownTimeout.String(), Applied: true})
		c.ShutdownTimeout = newCfg.ShutdownTimeout
	}
	if !stringSlicesEqual(c.AllowedOrigins, newCfg.AllowedOrigins) {
		result.Changes = append(result.Changes, ReloadChange{Field: "AllowedOrigins", OldValue: c.AllowedOrigins, NewValue: newCfg.AllowedOrigins, Applied: true})
		c.AllowedOrigins = newCfg.AllowedOrigins
	}
	if c.BinanceAPIKey != newCfg.BinanceAPIKey {
		result.Changes = append(result.Changes, ReloadChange{Field: "BinanceAPIKey", OldValue: "[redacted]", NewValue: "[redacted]", Applied: true})
		c.BinanceAPIKey = newCfg.BinanceAPIKey
	}
	if c.BinanceAPISecret != newCfg.BinanceAPISecret {
		result.Changes = append(result.Changes, ReloadChange{Field: "BinanceAPISecret", OldValue: "[redacted]", NewValue: "[redacted]", Applied: true})
		c.BinanceAPISecret = newCfg.BinanceAPISecret
	}
	if c.RiskMaxDailyLoss != newCfg.RiskMaxDailyLoss {
		result.Changes = append(result.Changes, ReloadChange{Field: "RiskMaxDailyLoss", OldValue: c.RiskMaxDailyLoss, NewValue: newCfg.RiskMaxDailyLoss, Applied: true})
		c.RiskMaxDailyLoss = newCfg.RiskMaxDailyLoss
	}
	if c.RiskMaxOpenOrders != newCfg.RiskMaxOpenOrders {
		result.Changes = append(result.Changes, ReloadChange{Field: "RiskMaxOpenOrders", OldValue: c.RiskMaxOpenOrders, NewValue: newCfg.RiskMaxOpenOrders, Applied: true})
		c.RiskMaxOpenOrders = newCfg.RiskMaxOpenOrders
	}

	log.Info().
		Int("total_changes", len(result.Changes)).
		Bool("requires_restart", result.RequiresRestart).
		Msg("Configuration reloaded")

	return result, nil
}

// detectRestartChange checks if a field value changed and records it as a
// restart-required change (not applied to the live config).
func (c *Config) detectRestartChange(result *ReloadResult, field string, oldVal, newVal interface{}) {
	if fmt.Sprintf("%v", oldVal) != fmt.Sprintf("%v", newVal) {
		result.Changes = append(result.Changes, ReloadChange{
			Field:    field,
			OldValue: oldVal,
			NewValue: newVal,
			Applied:  false,
		})
		result.RequiresRestart = true
		result.RestartReasons = append(result.RestartReasons, field+" changed")
	}
}

// stringSlicesEqual returns true if two string slices have identical contents.
func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer or returns a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat retrieves an environment variable as a float64 or returns a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration retrieves an environment variable as a time.Duration or
// returns a default. The value should be a Go duration string (e.g.,
// "30s", "5m", "1h"); a bare integer is read as milliseconds, so
// WINDOW_MS=60000 (per spec.md §6.6) parses the same as WINDOW_MS=60s.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

// parseCSV parses a comma-separated list, trimming whitespace and
// dropping empty entries.
func parseCSV(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseWeekdays parses a comma-separated list of three-letter weekday
// abbreviations (Mon..Sun) into time.Weekday values, per spec.md §6.5's
// market_days.
func parseWeekdays(s string) []time.Weekday {
	names := map[string]time.Weekday{
		"Sun": time.Sunday, "Mon": time.Monday, "Tue": time.Tuesday,
		"Wed": time.Wednesday, "Thu": time.Thursday, "Fri": time.Friday,
		"Sat": time.Saturday,
	}
	var out []time.Weekday
	for _, tok := range parseCSV(s) {
		if d, ok := names[tok]; ok {
			out = append(out, d)
		}
	}
	return out
}

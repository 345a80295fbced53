package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		ServerPort:             8099,
		DatabasePath:           "./data/windowtrader.db",
		LogLevel:               "info",
		Capital:                100000,
		TickStyle:              "close",
		BrokeragePolicy:        "per_trade_rate",
		MissingPricePolicyName: "use_seed",
		MarketTZ:               "America/New_York",
	}
}

// TestParseCSV tests the parseCSV helper function.
func TestParseCSV(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "single value", input: "AAPL", expected: []string{"AAPL"}},
		{name: "multiple values", input: "AAPL,MSFT,SPY", expected: []string{"AAPL", "MSFT", "SPY"}},
		{name: "values with spaces", input: "AAPL , MSFT , SPY", expected: []string{"AAPL", "MSFT", "SPY"}},
		{name: "empty string", input: "", expected: []string{}},
		{name: "single value with spaces", input: "  AAPL  ", expected: []string{"AAPL"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := parseCSV(tc.input)
			assert.Equal(t, tc.expected, result)
		})
	}
}

// TestParseWeekdays tests the market_days parser.
func TestParseWeekdays(t *testing.T) {
	result := parseWeekdays("Mon,Tue,Wed,Thu,Fri")
	assert.Equal(t, []time.Weekday{
		time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
	}, result)

	assert.Empty(t, parseWeekdays(""))
	assert.Equal(t, []time.Weekday{time.Saturday}, parseWeekdays("Sat,Xyz"))
}

// TestGetEnvDuration_AcceptsMillisecondInteger verifies WINDOW_MS-style
// bare integers parse as milliseconds, per spec.md §6.6.
func TestGetEnvDuration_AcceptsMillisecondInteger(t *testing.T) {
	t.Setenv("WINDOW_MS", "60000")
	assert.Equal(t, 60*time.Second, getEnvDuration("WINDOW_MS", time.Minute))
}

func TestGetEnvDuration_AcceptsGoDurationString(t *testing.T) {
	t.Setenv("WINDOW_MS", "90s")
	assert.Equal(t, 90*time.Second, getEnvDuration("WINDOW_MS", time.Minute))
}

func TestGetEnvDuration_FallsBackOnGarbage(t *testing.T) {
	t.Setenv("WINDOW_MS", "not-a-duration")
	assert.Equal(t, time.Minute, getEnvDuration("WINDOW_MS", time.Minute))
}

// TestConfigLoad_Defaults tests loading with no env vars set reproduces
// spec.md §6.6's defaults.
func TestConfigLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8099, cfg.ServerPort)
	assert.Equal(t, 0.5, cfg.EntryOffset)
	assert.Equal(t, 0.5, cfg.ExitOffset)
	assert.Equal(t, 0.5, cfg.StopLossPoints)
	assert.Equal(t, 60*time.Second, cfg.WindowDuration)
	assert.Equal(t, "close", cfg.TickStyle)
	assert.Equal(t, "use_seed", cfg.MissingPricePolicyName)
	assert.Equal(t, "per_trade_rate", cfg.BrokeragePolicy)
}

// TestConfigLoad_Full tests loading with domain env vars set.
func TestConfigLoad_Full(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("HOST", "0.0.0.0")
	t.Setenv("DATABASE_PATH", "/tmp/test.db")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ALLOWED_ORIGINS", "http://example.com,http://foo.com")
	t.Setenv("CAPITAL", "250000")
	t.Setenv("TICK_STYLE", "ohlcPath")
	t.Setenv("BROKERAGE_POLICY", "global_profit_share")
	t.Setenv("BROKERAGE_PARAM", "0.1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, "0.0.0.0", cfg.ServerHost)
	assert.Equal(t, "/tmp/test.db", cfg.DatabasePath)
	assert.Equal(t, []string{"http://example.com", "http://foo.com"}, cfg.AllowedOrigins)
	assert.Equal(t, 250000.0, cfg.Capital)
	assert.Equal(t, "ohlcPath", cfg.TickStyle)
	assert.Equal(t, "global_profit_share", cfg.BrokeragePolicy)
	assert.Equal(t, 0.1, cfg.BrokerageParam)
}

// --- Validation tests ---

func TestValidate_ValidConfig(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.ServerPort = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.LogLevel = "verbose"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOG_LEVEL")
	assert.Contains(t, err.Error(), "verbose")
}

func TestValidate_ValidLogLevels(t *testing.T) {
	levels := []string{"trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled"}
	for _, level := range levels {
		t.Run(level, func(t *testing.T) {
			cfg := validConfig()
			cfg.LogLevel = level
			require.NoError(t, cfg.Validate())
		})
	}
}

func TestValidate_EmptyDatabasePath(t *testing.T) {
	cfg := validConfig()
	cfg.DatabasePath = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_PATH")
}

func TestValidate_InvalidCapital(t *testing.T) {
	cfg := validConfig()
	cfg.Capital = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CAPITAL")
}

func TestValidate_InvalidTickStyle(t *testing.T) {
	cfg := validConfig()
	cfg.TickStyle = "weekly"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TICK_STYLE")
}

func TestValidate_InvalidBrokeragePolicy(t *testing.T) {
	cfg := validConfig()
	cfg.BrokeragePolicy = "bogus"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BROKERAGE_POLICY")
}

func TestValidate_InvalidMissingPricePolicy(t *testing.T) {
	cfg := validConfig()
	cfg.MissingPricePolicyName = "bogus"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MISSING_PRICE_POLICY")
}

func TestValidate_InvalidMarketTZ(t *testing.T) {
	cfg := validConfig()
	cfg.MarketTZ = "Not/A_Real_Zone"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MARKET_TZ")
}

func TestValidate_MultipleErrorsAggregated(t *testing.T) {
	cfg := &Config{
		ServerPort:             0,
		DatabasePath:           "",
		LogLevel:               "verbose",
		Capital:                0,
		TickStyle:              "bogus",
		BrokeragePolicy:        "bogus",
		MissingPricePolicyName: "bogus",
	}
	err := cfg.Validate()
	require.Error(t, err)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.GreaterOrEqual(t, len(ve.Errors), 6)
}

func TestValidationError_ErrorFormat(t *testing.T) {
	ve := &ValidationError{Errors: []string{"error one", "error two", "error three"}}
	errStr := ve.Error()
	assert.Contains(t, errStr, "3 configuration error(s)")
	assert.Contains(t, errStr, "error one")
	assert.Contains(t, errStr, "error two")
	assert.Contains(t, errStr, "error three")
}

// TestReload_AppliesHotFields tests that Reload applies hot-reloadable
// fields without requiring a restart.
func TestReload_AppliesHotFields(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("RISK_MAX_DAILY_LOSS", "750")

	result, err := cfg.Reload()
	require.NoError(t, err)
	assert.False(t, result.RequiresRestart)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 750.0, cfg.RiskMaxDailyLoss)
}

// TestReload_FlagsRestartRequiredFields tests that changing a structural
// field is detected but not applied.
func TestReload_FlagsRestartRequiredFields(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	originalPort := cfg.ServerPort

	t.Setenv("PORT", "12345")

	result, err := cfg.Reload()
	require.NoError(t, err)
	assert.True(t, result.RequiresRestart)
	assert.Equal(t, originalPort, cfg.ServerPort)
}

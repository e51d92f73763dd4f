package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"propTradeSim/internal/adapters/logger"
	"propTradeSim/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	// Evaluation Plan
	InitialBalance    float64 // Starting balance of a new account
	MaxDrawdown       float64 // Trailing drawdown allowance in currency
	DailyLossLimitPct float64 // Fraction of day-start balance (e.g. 0.02 for 2%)
	ProfitTarget      float64 // Profit above initial balance required to pass
	MinTradingDays    int     // Distinct trading days required to pass

	// Simulation
	MonitorInterval time.Duration // Cadence of the evaluation loop
	CandleInterval  time.Duration // Width of synthetic candles
	HistoryCandles  int           // Backfilled candles per symbol
	Seed            int64         // RNG seed; 0 means derive from wall clock
	DayBoundaryTZ   *time.Location

	// Database
	DBPath string

	// HTTP API
	HTTPAddr string

	// Logging
	LogLevel  logger.LogLevel
	LogFormat string // "text" or "json"
}

// Plan converts the evaluation parameters into a domain risk plan.
func (c *Config) Plan() domain.RiskPlan {
	return domain.RiskPlan{
		InitialBalance:    c.InitialBalance,
		MaxDrawdown:       c.MaxDrawdown,
		DailyLossLimitPct: c.DailyLossLimitPct,
		ProfitTarget:      c.ProfitTarget,
		MinTradingDays:    c.MinTradingDays,
	}
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Evaluation Plan
	cfg.InitialBalance, err = getEnvAsFloatRequired("ACCOUNT_INITIAL_BALANCE", 50000.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid ACCOUNT_INITIAL_BALANCE: %v", err))
	} else if cfg.InitialBalance <= 0 {
		errs = append(errs, "ACCOUNT_INITIAL_BALANCE must be positive")
	}

	cfg.MaxDrawdown, err = getEnvAsFloatRequired("MAX_DRAWDOWN", 2500.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_DRAWDOWN: %v", err))
	} else if cfg.MaxDrawdown <= 0 {
		errs = append(errs, "MAX_DRAWDOWN must be positive")
	}

	cfg.DailyLossLimitPct, err = getEnvAsFloatRequired("DAILY_LOSS_LIMIT_PCT", 0.02)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DAILY_LOSS_LIMIT_PCT: %v", err))
	} else if cfg.DailyLossLimitPct <= 0 || cfg.DailyLossLimitPct >= 1.0 {
		errs = append(errs, "DAILY_LOSS_LIMIT_PCT must be between 0.0 and 1.0 (exclusive)")
	}

	cfg.ProfitTarget, err = getEnvAsFloatRequired("PROFIT_TARGET", 3000.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid PROFIT_TARGET: %v", err))
	} else if cfg.ProfitTarget <= 0 {
		errs = append(errs, "PROFIT_TARGET must be positive")
	}

	cfg.MinTradingDays, err = getEnvAsIntRequired("MIN_TRADING_DAYS", 5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MIN_TRADING_DAYS: %v", err))
	} else if cfg.MinTradingDays < 0 {
		errs = append(errs, "MIN_TRADING_DAYS cannot be negative")
	}

	// Simulation
	monitorSeconds := getEnvAsInt("MONITOR_INTERVAL_SECONDS", 5)
	if monitorSeconds <= 0 {
		errs = append(errs, "MONITOR_INTERVAL_SECONDS must be positive")
	}
	cfg.MonitorInterval = time.Duration(monitorSeconds) * time.Second

	candleMinutes := getEnvAsInt("CANDLE_INTERVAL_MINUTES", 1)
	if candleMinutes <= 0 {
		errs = append(errs, "CANDLE_INTERVAL_MINUTES must be positive")
	}
	cfg.CandleInterval = time.Duration(candleMinutes) * time.Minute

	cfg.HistoryCandles = getEnvAsInt("HISTORY_CANDLES", 500)
	if cfg.HistoryCandles < 0 {
		errs = append(errs, "HISTORY_CANDLES cannot be negative")
	}

	seed, err := getEnvAsIntRequired("SEED", 0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid SEED: %v", err))
	}
	cfg.Seed = int64(seed)

	// Trading days roll over at the exchange session boundary, not UTC
	// midnight, so the timezone is configurable.
	tzName := getEnv("DAY_BOUNDARY_TZ", "America/Chicago")
	cfg.DayBoundaryTZ, err = time.LoadLocation(tzName)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DAY_BOUNDARY_TZ '%s': %v", tzName, err))
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/prop_trade_sim.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// HTTP API
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", "text"))
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		errs = append(errs, fmt.Sprintf("invalid LOG_FORMAT '%s': must be 'text' or 'json'", cfg.LogFormat))
	}

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

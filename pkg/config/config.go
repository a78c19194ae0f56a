package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all simulator configuration.
type Config struct {
	// Application
	LogLevel  string
	LogFormat string // "json" or "console"
	HTTPPort  string

	// Polymarket feed
	PolymarketWSURL string

	// WebSocket
	WSDialTimeout           time.Duration
	WSRecvTimeout           time.Duration
	WSPingInterval          time.Duration
	WSReconnectInitialDelay time.Duration
	WSReconnectMaxDelay     time.Duration
	WSReconnectBackoffMult  float64
	WSFrameBufferSize       int

	// Shadow mode
	MaxWSStall time.Duration

	// Simulation
	StartingCash decimal.Decimal
	FeeRateBps   int
	SubmitTicks  int64
	CancelTicks  int64
	MarkMethod   string // "bid" or "midpoint"
	StrictBook   bool

	// Session manager
	SessionTapeCacheTTL time.Duration

	// Storage
	StorageMode  string // "postgres" or "console"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),
		HTTPPort:  getEnvOrDefault("HTTP_PORT", "8080"),

		// Polymarket feed defaults
		PolymarketWSURL: getEnvOrDefault("POLYMARKET_WS_URL", "wss://ws-subscriptions-clob.polymarket.com/ws/market"),

		// WebSocket defaults
		WSDialTimeout:           getDurationOrDefault("WS_DIAL_TIMEOUT", 10*time.Second),
		WSRecvTimeout:           getDurationOrDefault("WS_RECV_TIMEOUT", 10*time.Second),
		WSPingInterval:          getDurationOrDefault("WS_PING_INTERVAL", 10*time.Second),
		WSReconnectInitialDelay: getDurationOrDefault("WS_RECONNECT_INITIAL_DELAY", 1*time.Second),
		WSReconnectMaxDelay:     getDurationOrDefault("WS_RECONNECT_MAX_DELAY", 30*time.Second),
		WSReconnectBackoffMult:  getFloat64OrDefault("WS_RECONNECT_BACKOFF_MULTIPLIER", 2.0),
		WSFrameBufferSize:       getIntOrDefault("WS_FRAME_BUFFER_SIZE", 1000),

		// Shadow defaults
		MaxWSStall: getDurationOrDefault("MAX_WS_STALL", 60*time.Second),

		// Simulation defaults
		StartingCash: getDecimalOrDefault("STARTING_CASH", decimal.NewFromInt(1000)),
		FeeRateBps:   getIntOrDefault("FEE_RATE_BPS", 200),
		SubmitTicks:  int64(getIntOrDefault("SUBMIT_TICKS", 1)),
		CancelTicks:  int64(getIntOrDefault("CANCEL_TICKS", 1)),
		MarkMethod:   getEnvOrDefault("MARK_METHOD", "bid"),
		StrictBook:   getBoolOrDefault("STRICT_BOOK", false),

		// Session defaults
		SessionTapeCacheTTL: getDurationOrDefault("SESSION_TAPE_CACHE_TTL", 30*time.Minute),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "polymarket"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "polymarket123"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "polymarket_sim"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.PolymarketWSURL == "" {
		return fmt.Errorf("POLYMARKET_WS_URL cannot be empty")
	}

	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("LOG_FORMAT must be 'json' or 'console', got %q", c.LogFormat)
	}

	if c.WSRecvTimeout <= 0 {
		return fmt.Errorf("WS_RECV_TIMEOUT must be positive, got %v", c.WSRecvTimeout)
	}

	if c.MaxWSStall <= 0 {
		return fmt.Errorf("MAX_WS_STALL must be positive, got %v", c.MaxWSStall)
	}

	if c.StartingCash.Sign() <= 0 {
		return fmt.Errorf("STARTING_CASH must be positive, got %s", c.StartingCash)
	}

	if c.FeeRateBps < 0 {
		return fmt.Errorf("FEE_RATE_BPS must be non-negative, got %d", c.FeeRateBps)
	}

	if c.SubmitTicks < 0 {
		return fmt.Errorf("SUBMIT_TICKS must be non-negative, got %d", c.SubmitTicks)
	}

	if c.CancelTicks < 0 {
		return fmt.Errorf("CANCEL_TICKS must be non-negative, got %d", c.CancelTicks)
	}

	if c.MarkMethod != "bid" && c.MarkMethod != "midpoint" {
		return fmt.Errorf("MARK_METHOD must be 'bid' or 'midpoint', got %q", c.MarkMethod)
	}

	if c.StorageMode != "postgres" && c.StorageMode != "console" {
		return fmt.Errorf("STORAGE_MODE must be 'postgres' or 'console', got %q", c.StorageMode)
	}

	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getDecimalOrDefault(key string, defaultValue decimal.Decimal) decimal.Decimal {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	d, err := decimal.NewFromString(value)
	if err != nil {
		return defaultValue
	}

	return d
}

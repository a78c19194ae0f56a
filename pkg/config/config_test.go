package config

import (
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestConfig_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.PolymarketWSURL != "wss://ws-subscriptions-clob.polymarket.com/ws/market" {
		t.Errorf("unexpected default WS URL: %q", cfg.PolymarketWSURL)
	}
	if cfg.FeeRateBps != 200 {
		t.Errorf("expected default FeeRateBps to be 200, got %d", cfg.FeeRateBps)
	}
	if cfg.SubmitTicks != 1 || cfg.CancelTicks != 1 {
		t.Errorf("expected default latency ticks 1/1, got %d/%d", cfg.SubmitTicks, cfg.CancelTicks)
	}
	if cfg.MarkMethod != "bid" {
		t.Errorf("expected default MarkMethod to be bid, got %q", cfg.MarkMethod)
	}
	if !cfg.StartingCash.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("expected default StartingCash to be 1000, got %s", cfg.StartingCash)
	}
	if cfg.StorageMode != "console" {
		t.Errorf("expected default StorageMode to be console, got %q", cfg.StorageMode)
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Run("starting_cash_from_env", func(t *testing.T) {
		os.Setenv("STARTING_CASH", "2500.50")
		t.Cleanup(func() {
			os.Unsetenv("STARTING_CASH")
		})

		cfg, err := LoadFromEnv()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		want := decimal.RequireFromString("2500.50")
		if !cfg.StartingCash.Equal(want) {
			t.Errorf("expected StartingCash to be 2500.50, got %s", cfg.StartingCash)
		}
	})

	t.Run("stall_duration_from_env", func(t *testing.T) {
		os.Setenv("MAX_WS_STALL", "5s")
		t.Cleanup(func() {
			os.Unsetenv("MAX_WS_STALL")
		})

		cfg, err := LoadFromEnv()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if cfg.MaxWSStall != 5*time.Second {
			t.Errorf("expected MaxWSStall to be 5s, got %v", cfg.MaxWSStall)
		}
	})

	t.Run("invalid_decimal_falls_back_to_default", func(t *testing.T) {
		os.Setenv("STARTING_CASH", "not-a-number")
		t.Cleanup(func() {
			os.Unsetenv("STARTING_CASH")
		})

		cfg, err := LoadFromEnv()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if !cfg.StartingCash.Equal(decimal.NewFromInt(1000)) {
			t.Errorf("expected fallback StartingCash 1000, got %s", cfg.StartingCash)
		}
	})
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			HTTPPort:        "8080",
			PolymarketWSURL: "wss://ws-subscriptions-clob.polymarket.com/ws/market",
			LogFormat:       "json",
			WSRecvTimeout:   10 * time.Second,
			MaxWSStall:      time.Minute,
			StartingCash:    decimal.NewFromInt(1000),
			FeeRateBps:      200,
			MarkMethod:      "bid",
			StorageMode:     "console",
		}
	}

	t.Run("valid_config_passes", func(t *testing.T) {
		if err := valid().Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("bad_mark_method_rejected", func(t *testing.T) {
		cfg := valid()
		cfg.MarkMethod = "last"

		err := cfg.Validate()
		if err == nil {
			t.Fatal("expected error for bad mark method, got nil")
		}

		expectedMsg := `MARK_METHOD must be 'bid' or 'midpoint', got "last"`
		if err.Error() != expectedMsg {
			t.Errorf("expected error %q, got %q", expectedMsg, err.Error())
		}
	})

	t.Run("negative_fee_rejected", func(t *testing.T) {
		cfg := valid()
		cfg.FeeRateBps = -1

		err := cfg.Validate()
		if err == nil {
			t.Fatal("expected error for negative fee, got nil")
		}

		expectedMsg := "FEE_RATE_BPS must be non-negative, got -1"
		if err.Error() != expectedMsg {
			t.Errorf("expected error %q, got %q", expectedMsg, err.Error())
		}
	})

	t.Run("negative_ticks_rejected", func(t *testing.T) {
		cfg := valid()
		cfg.SubmitTicks = -2

		err := cfg.Validate()
		if err == nil {
			t.Fatal("expected error for negative submit ticks, got nil")
		}
	})

	t.Run("zero_starting_cash_rejected", func(t *testing.T) {
		cfg := valid()
		cfg.StartingCash = decimal.Zero

		err := cfg.Validate()
		if err == nil {
			t.Fatal("expected error for zero starting cash, got nil")
		}
	})

	t.Run("bad_storage_mode_rejected", func(t *testing.T) {
		cfg := valid()
		cfg.StorageMode = "sqlite"

		err := cfg.Validate()
		if err == nil {
			t.Fatal("expected error for bad storage mode, got nil")
		}
	})
}

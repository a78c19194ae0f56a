package app

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-sim/internal/storage"
	"github.com/mselser95/polymarket-sim/pkg/config"
)

func testAppConfig() *config.Config {
	return &config.Config{
		LogLevel:  "info",
		LogFormat: "json",
		HTTPPort:  "0",

		PolymarketWSURL: "ws://127.0.0.1:1/ws",

		WSDialTimeout:           time.Second,
		WSRecvTimeout:           time.Second,
		WSReconnectInitialDelay: 10 * time.Millisecond,
		WSReconnectMaxDelay:     50 * time.Millisecond,
		WSReconnectBackoffMult:  2.0,
		WSFrameBufferSize:       100,

		MaxWSStall: time.Minute,

		StartingCash: decimal.NewFromInt(1000),
		FeeRateBps:   200,
		SubmitTicks:  1,
		CancelTicks:  1,
		MarkMethod:   "bid",

		StorageMode: "console",
	}
}

func testAppOptions(t *testing.T) *Options {
	t.Helper()
	return &Options{
		OutDir:       t.TempDir(),
		AssetIDs:     []string{"yes-token-1"},
		StrategyName: "noop",
		RunID:        "app-test-1",
	}
}

func TestNew_RequiresOptions(t *testing.T) {
	_, err := New(testAppConfig(), zap.NewNop(), nil)
	if err == nil {
		t.Fatal("expected error for nil options")
	}
}

func TestNew_InvalidShadowConfig(t *testing.T) {
	opts := testAppOptions(t)
	opts.OutDir = ""

	_, err := New(testAppConfig(), zap.NewNop(), opts)
	if err == nil {
		t.Fatal("expected error for missing out dir")
	}
}

func TestNew_BuildsComponents(t *testing.T) {
	a, err := New(testAppConfig(), zap.NewNop(), testAppOptions(t))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if a.healthChecker == nil {
		t.Error("health checker not built")
	}
	if a.httpServer == nil {
		t.Error("http server not built")
	}
	if a.wsManager == nil {
		t.Error("websocket manager not built")
	}
	if a.mirror == nil {
		t.Error("book mirror not built")
	}
	if a.shadowRun == nil {
		t.Error("shadow engine not built")
	}
	if a.storage == nil {
		t.Error("storage not built")
	}

	a.cancel()
}

func TestSetupStorage_ConsoleMode(t *testing.T) {
	st, err := setupStorage(testAppConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("setupStorage() error = %v", err)
	}
	defer st.Close()

	if _, ok := st.(*storage.ConsoleStorage); !ok {
		t.Errorf("expected console storage, got %T", st)
	}
}

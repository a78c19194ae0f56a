// Package app wires the shadow-mode service together: configuration,
// health and metrics HTTP server, the live market feed, optional run
// persistence, and the shadow engine itself.
package app

import (
	"context"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-sim/internal/book"
	"github.com/mselser95/polymarket-sim/internal/shadow"
	"github.com/mselser95/polymarket-sim/internal/storage"
	"github.com/mselser95/polymarket-sim/pkg/config"
	"github.com/mselser95/polymarket-sim/pkg/healthprobe"
	"github.com/mselser95/polymarket-sim/pkg/httpserver"
	"github.com/mselser95/polymarket-sim/pkg/websocket"
)

// App is the shadow-mode orchestrator.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	wsManager     *websocket.Manager
	mirror        *book.Mirror
	shadowRun     *shadow.Shadow
	storage       storage.Storage
	assetIDs      []string
	strategyName  string
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// Options holds the per-run knobs the CLI collects; ambient settings
// (cash, fees, latency, feed endpoints) come from config.
type Options struct {
	OutDir         string
	AssetIDs       []string
	PrimaryAsset   string
	StrategyName   string
	StrategyConfig json.RawMessage

	// RecordDir tees the live session into a loadable tape directory.
	RecordDir string
	// Duration bounds the run wall clock. Zero runs until a signal
	// arrives or the feed dies.
	Duration time.Duration

	RunID string
}

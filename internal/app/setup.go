package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mselser95/polymarket-sim/internal/book"
	"github.com/mselser95/polymarket-sim/internal/shadow"
	"github.com/mselser95/polymarket-sim/internal/sim"
	"github.com/mselser95/polymarket-sim/internal/storage"
	"github.com/mselser95/polymarket-sim/pkg/config"
	"github.com/mselser95/polymarket-sim/pkg/healthprobe"
	"github.com/mselser95/polymarket-sim/pkg/httpserver"
	"github.com/mselser95/polymarket-sim/pkg/websocket"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		return nil, fmt.Errorf("options are required")
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Initialize components
	healthChecker := setupHealthChecker()
	mirror := book.NewMirror()

	// Setup HTTP server (reads live books out of the mirror)
	httpServer := setupHTTPServer(cfg, logger, healthChecker, mirror)

	wsManager := setupWebSocketManager(cfg, logger)

	// Setup storage
	runStorage, err := setupStorage(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	// Setup shadow engine
	shadowRun, err := setupShadow(cfg, logger, opts, mirror, runStorage)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup shadow: %w", err)
	}

	return &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		wsManager:     wsManager,
		mirror:        mirror,
		shadowRun:     shadowRun,
		storage:       runStorage,
		assetIDs:      opts.AssetIDs,
		strategyName:  opts.StrategyName,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

func setupHealthChecker() *healthprobe.HealthChecker {
	// Readiness waits for the market feed subscription.
	return healthprobe.New("ws-feed")
}

func setupHTTPServer(
	cfg *config.Config,
	logger *zap.Logger,
	healthChecker *healthprobe.HealthChecker,
	mirror *book.Mirror,
) *httpserver.Server {
	return httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Mirror:        mirror,
	})
}

func setupWebSocketManager(cfg *config.Config, logger *zap.Logger) *websocket.Manager {
	return websocket.New(websocket.Config{
		URL:                   cfg.PolymarketWSURL,
		DialTimeout:           cfg.WSDialTimeout,
		RecvTimeout:           cfg.WSRecvTimeout,
		PingInterval:          cfg.WSPingInterval,
		ReconnectInitialDelay: cfg.WSReconnectInitialDelay,
		ReconnectMaxDelay:     cfg.WSReconnectMaxDelay,
		ReconnectBackoffMult:  cfg.WSReconnectBackoffMult,
		FrameBufferSize:       cfg.WSFrameBufferSize,
		Logger:                logger,
	})
}

func setupStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.StorageMode == "postgres" {
		pgStorage, err := storage.NewPostgresStorage(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return pgStorage, nil
	}

	return storage.NewConsoleStorage(logger), nil
}

func setupShadow(
	cfg *config.Config,
	logger *zap.Logger,
	opts *Options,
	mirror *book.Mirror,
	runStorage storage.Storage,
) (*shadow.Shadow, error) {
	return shadow.New(&shadow.Config{
		OutDir:         opts.OutDir,
		AssetIDs:       opts.AssetIDs,
		PrimaryAsset:   opts.PrimaryAsset,
		StrategyName:   opts.StrategyName,
		StrategyConfig: opts.StrategyConfig,
		StartingCash:   cfg.StartingCash,
		FeeRateBps:     cfg.FeeRateBps,
		MarkMethod:     cfg.MarkMethod,
		Latency:        sim.LatencyModel{SubmitTicks: cfg.SubmitTicks, CancelTicks: cfg.CancelTicks},
		StrictBooks:    cfg.StrictBook,
		MaxWSStall:     cfg.MaxWSStall,
		Duration:       opts.Duration,
		RecordDir:      opts.RecordDir,
		WSURL:          cfg.PolymarketWSURL,
		RecvTimeout:    cfg.WSRecvTimeout,
		Mirror:         mirror,
		Storage:        runStorage,
		RunID:          opts.RunID,
		Logger:         logger,
	})
}

package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/polymarket-sim/internal/runner"
)

// Run starts the service and blocks inside the shadow run until it ends
// or a shutdown signal arrives. Signals cancel the run context, which
// the shadow loop treats as a graceful interrupted exit, so the full
// artifact set is written either way.
func (a *App) Run() (*runner.Result, error) {
	a.logger.Info("application-starting",
		zap.String("strategy", a.strategyName),
		zap.Int("assets", len(a.assetIDs)),
		zap.String("log-level", a.cfg.LogLevel))

	err := a.startComponents()
	if err != nil {
		if sdErr := a.Shutdown(); sdErr != nil {
			a.logger.Error("shutdown-error", zap.Error(sdErr))
		}
		return nil, err
	}

	a.healthChecker.SetComponentReady("ws-feed")

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort),
		zap.String("ws-url", a.cfg.PolymarketWSURL))

	a.wg.Add(1)
	go a.watchSignals()

	res, runErr := a.shadowRun.Run(a.ctx, a.wsManager)

	if err := a.Shutdown(); err != nil {
		a.logger.Error("shutdown-error", zap.Error(err))
	}

	return res, runErr
}

func (a *App) startComponents() error {
	// Start HTTP server
	a.wg.Add(1)
	go a.runHTTPServer()

	// Give HTTP server a moment to start
	time.Sleep(100 * time.Millisecond)

	// Start WebSocket manager and subscribe to the asset set
	err := a.wsManager.Start()
	if err != nil {
		return fmt.Errorf("start websocket manager: %w", err)
	}

	err = a.wsManager.Subscribe(a.ctx, a.assetIDs)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	return nil
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

func (a *App) watchSignals() {
	defer a.wg.Done()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
		a.cancel()
	case <-a.ctx.Done():
	}
}

package websocket

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-sim/pkg/types"
)

// Frame is one verbatim payload received from the market channel, stamped
// with the wall-clock receive time in seconds. Downstream normalization
// never re-reads the clock; ts_recv travels with the frame.
type Frame struct {
	Data   []byte
	TsRecv float64
}

// Stats is a snapshot of connection health counters.
type Stats struct {
	Reconnects int64
	Timeouts   int64
	Frames     int64
}

// Config holds WebSocket manager configuration.
type Config struct {
	URL                   string
	DialTimeout           time.Duration
	RecvTimeout           time.Duration
	PingInterval          time.Duration
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectBackoffMult  float64
	FrameBufferSize       int
	Logger                *zap.Logger
}

type readResult struct {
	data []byte
	err  error
}

// Manager owns a single WebSocket connection to the Polymarket market
// channel and delivers raw frames in arrival order. A recv timeout is not
// fatal: the manager sends a keepalive ping and keeps waiting. Read errors
// trigger reconnection with exponential backoff and a full resubscribe.
type Manager struct {
	cfg     Config
	logger  *zap.Logger
	backoff *Backoff

	frames chan Frame
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	conn     *websocket.Conn
	assetIDs []string
	warnings []string

	connected       atomic.Bool
	reconnects      atomic.Int64
	timeouts        atomic.Int64
	frameCount      atomic.Int64
	connectionStart atomic.Int64
}

// New creates a WebSocket manager.
func New(cfg Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Manager{
		cfg:     cfg,
		logger:  logger,
		backoff: NewBackoff(cfg.ReconnectInitialDelay, cfg.ReconnectMaxDelay, cfg.ReconnectBackoffMult),
		frames:  make(chan Frame, cfg.FrameBufferSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start dials the endpoint and begins delivering frames.
func (m *Manager) Start() error {
	m.logger.Info("websocket-manager-starting", zap.String("url", m.cfg.URL))

	if err := m.connect(m.ctx); err != nil {
		return fmt.Errorf("initial connection: %w", err)
	}

	m.wg.Add(2)
	go m.recvLoop()
	go m.pingLoop()

	return nil
}

// connect establishes a WebSocket connection.
func (m *Manager) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: m.cfg.DialTimeout,
	}

	m.logger.Info("connecting-to-websocket", zap.String("url", m.cfg.URL))

	conn, _, err := dialer.DialContext(ctx, m.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	if ctx.Err() != nil {
		conn.Close()
		return ctx.Err()
	}

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()

	m.connected.Store(true)
	m.connectionStart.Store(time.Now().Unix())
	ActiveConnections.Set(1)

	m.logger.Info("websocket-connected")

	return nil
}

// Subscribe sends the market subscription for the given asset IDs and
// remembers them for resubscription after reconnects.
func (m *Manager) Subscribe(ctx context.Context, assetIDs []string) error {
	if len(assetIDs) == 0 {
		return nil
	}

	m.mu.Lock()
	m.assetIDs = append([]string(nil), assetIDs...)
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("subscribe: not connected")
	}

	if err := conn.WriteJSON(types.NewSubscribeMessage(assetIDs)); err != nil {
		return fmt.Errorf("write subscribe message: %w", err)
	}

	SubscriptionCount.Set(float64(len(assetIDs)))

	m.logger.Info("subscribed-to-assets", zap.Int("count", len(assetIDs)))

	return nil
}

// recvLoop supervises the connection reader. Idle periods longer than the
// recv timeout produce a keepalive ping; read errors produce a reconnect.
func (m *Manager) recvLoop() {
	defer m.wg.Done()

	reads := m.startReader(m.currentConn())

	var idleC <-chan time.Time
	var idle *time.Timer
	if m.cfg.RecvTimeout > 0 {
		idle = time.NewTimer(m.cfg.RecvTimeout)
		defer idle.Stop()
		idleC = idle.C
	}

	for {
		select {
		case <-m.ctx.Done():
			return

		case res, ok := <-reads:
			if !ok || res.err != nil {
				m.connected.Store(false)
				ActiveConnections.Set(0)
				m.observeConnectionEnd()

				if m.ctx.Err() != nil {
					return
				}

				m.logger.Warn("websocket-disconnected", zap.Error(res.err))
				m.addWarning(fmt.Sprintf("ws_disconnect: %v", res.err))

				if err := m.reconnect(); err != nil {
					return
				}
				reads = m.startReader(m.currentConn())
				continue
			}

			m.frameCount.Add(1)
			FramesReceivedTotal.Inc()

			frame := Frame{Data: res.data, TsRecv: float64(time.Now().UnixNano()) / 1e9}
			select {
			case m.frames <- frame:
			case <-m.ctx.Done():
				return
			}

			if idle != nil {
				idle.Reset(m.cfg.RecvTimeout)
			}

		case <-idleC:
			m.timeouts.Add(1)
			RecvTimeoutsTotal.Inc()
			m.logger.Debug("recv-timeout-sending-keepalive")
			m.sendPing()
			idle.Reset(m.cfg.RecvTimeout)
		}
	}
}

// startReader owns blocking reads on one connection. It exits on the
// first read error after reporting it.
func (m *Manager) startReader(conn *websocket.Conn) <-chan readResult {
	out := make(chan readResult)

	go func() {
		defer close(out)

		if conn == nil {
			return
		}

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				select {
				case out <- readResult{err: err}:
				case <-m.ctx.Done():
				}
				return
			}

			select {
			case out <- readResult{data: data}:
			case <-m.ctx.Done():
				return
			}
		}
	}()

	return out
}

// reconnect retries the connection until it succeeds or the manager
// closes, then resubscribes to the remembered asset IDs.
func (m *Manager) reconnect() error {
	for {
		select {
		case <-m.ctx.Done():
			return m.ctx.Err()
		default:
		}

		delay := m.backoff.Next()
		m.logger.Info("attempting-reconnection", zap.Duration("backoff", delay))
		ReconnectAttemptsTotal.Inc()

		select {
		case <-time.After(delay):
		case <-m.ctx.Done():
			return m.ctx.Err()
		}

		if err := m.connect(m.ctx); err != nil {
			m.logger.Warn("reconnection-failed", zap.Error(err))
			ReconnectFailuresTotal.Inc()
			continue
		}

		m.backoff.Reset()
		m.reconnects.Add(1)
		ReconnectsTotal.Inc()

		if err := m.resubscribe(); err != nil {
			m.logger.Error("resubscribe-failed", zap.Error(err))
			m.addWarning(fmt.Sprintf("ws_resubscribe_failed: %v", err))
			m.connected.Store(false)
			continue
		}

		m.logger.Info("reconnection-complete")
		return nil
	}
}

// resubscribe replays the subscription after a reconnect.
func (m *Manager) resubscribe() error {
	m.mu.RLock()
	assetIDs := append([]string(nil), m.assetIDs...)
	conn := m.conn
	m.mu.RUnlock()

	if len(assetIDs) == 0 || conn == nil {
		return nil
	}

	if err := conn.WriteJSON(types.NewSubscribeMessage(assetIDs)); err != nil {
		return fmt.Errorf("write resubscribe message: %w", err)
	}

	m.logger.Info("resubscribed-to-assets", zap.Int("count", len(assetIDs)))

	return nil
}

// pingLoop sends periodic keepalive pings.
func (m *Manager) pingLoop() {
	defer m.wg.Done()

	if m.cfg.PingInterval <= 0 {
		return
	}

	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if !m.connected.Load() {
				continue
			}
			m.sendPing()
		}
	}
}

func (m *Manager) sendPing() {
	conn := m.currentConn()
	if conn == nil {
		return
	}

	err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second))
	if err != nil {
		m.logger.Warn("ping-error", zap.Error(err))
	}
}

func (m *Manager) currentConn() *websocket.Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conn
}

func (m *Manager) observeConnectionEnd() {
	start := m.connectionStart.Load()
	if start > 0 {
		ConnectionDuration.Observe(time.Since(time.Unix(start, 0)).Seconds())
	}
}

func (m *Manager) addWarning(w string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.warnings) < 100 {
		m.warnings = append(m.warnings, w)
	}
}

// Frames returns the channel of received frames. It closes when the
// manager closes.
func (m *Manager) Frames() <-chan Frame {
	return m.frames
}

// Stats returns current connection health counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Reconnects: m.reconnects.Load(),
		Timeouts:   m.timeouts.Load(),
		Frames:     m.frameCount.Load(),
	}
}

// Warnings returns connection warnings recorded so far.
func (m *Manager) Warnings() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.warnings...)
}

// Connected reports whether the socket is currently up.
func (m *Manager) Connected() bool {
	return m.connected.Load()
}

// Close sends a close frame, tears the connection down and drains the
// goroutines. The frames channel closes once everything has stopped.
func (m *Manager) Close() error {
	m.logger.Info("closing-websocket-manager")

	m.cancel()

	m.mu.RLock()
	conn := m.conn
	m.mu.RUnlock()

	if conn != nil {
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
			m.logger.Debug("close-frame-write-failed", zap.Error(err))
		}
		conn.Close()
	}

	m.wg.Wait()
	close(m.frames)

	ActiveConnections.Set(0)

	m.logger.Info("websocket-manager-closed")

	return nil
}

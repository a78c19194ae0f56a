package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// wsServer is a controllable WebSocket endpoint. Every accepted
// connection is appended to conns; subscribe payloads land on subscribes.
type wsServer struct {
	srv        *httptest.Server
	mu         sync.Mutex
	conns      []*websocket.Conn
	subscribes chan []byte
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()

	ws := &wsServer{subscribes: make(chan []byte, 10)}
	upgrader := websocket.Upgrader{}

	ws.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		ws.mu.Lock()
		ws.conns = append(ws.conns, conn)
		ws.mu.Unlock()

		// Drain client messages so subscribe payloads are observable and
		// control frames are answered.
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			select {
			case ws.subscribes <- data:
			default:
			}
		}
	}))

	t.Cleanup(ws.srv.Close)
	return ws
}

func (ws *wsServer) url() string {
	return "ws" + strings.TrimPrefix(ws.srv.URL, "http")
}

func (ws *wsServer) conn(t *testing.T, i int) *websocket.Conn {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ws.mu.Lock()
		if len(ws.conns) > i {
			conn := ws.conns[i]
			ws.mu.Unlock()
			return conn
		}
		ws.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no server-side connection %d", i)
	return nil
}

func (ws *wsServer) send(t *testing.T, i int, payload string) {
	t.Helper()
	if err := ws.conn(t, i).WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		t.Fatalf("server send: %v", err)
	}
}

func testConfig(url string) Config {
	logger, _ := zap.NewDevelopment()
	return Config{
		URL:                   url,
		DialTimeout:           2 * time.Second,
		RecvTimeout:           0,
		PingInterval:          0,
		ReconnectInitialDelay: 10 * time.Millisecond,
		ReconnectMaxDelay:     50 * time.Millisecond,
		ReconnectBackoffMult:  2.0,
		FrameBufferSize:       100,
		Logger:                logger,
	}
}

func recvFrame(t *testing.T, frames <-chan Frame) Frame {
	t.Helper()
	select {
	case f, ok := <-frames:
		if !ok {
			t.Fatal("frames channel closed")
		}
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
	return Frame{}
}

func TestNew(t *testing.T) {
	mgr := New(testConfig("wss://ws-subscriptions-clob.polymarket.com/ws/market"))

	if mgr == nil {
		t.Fatal("expected non-nil manager")
	}
	if cap(mgr.frames) != 100 {
		t.Errorf("expected frame buffer 100, got %d", cap(mgr.frames))
	}
	if mgr.backoff == nil {
		t.Error("expected non-nil backoff")
	}
}

func TestManager_SubscribeMessage(t *testing.T) {
	ws := newWSServer(t)

	mgr := New(testConfig(ws.url()))
	if err := mgr.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer mgr.Close()

	if err := mgr.Subscribe(context.Background(), []string{"token-a", "token-b"}); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	var payload []byte
	select {
	case payload = <-ws.subscribes:
	case <-time.After(2 * time.Second):
		t.Fatal("server never received subscribe message")
	}

	var msg map[string]interface{}
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("subscribe payload not JSON: %v", err)
	}

	assets, ok := msg["assets_ids"].([]interface{})
	if !ok || len(assets) != 2 {
		t.Errorf("assets_ids = %v, want two entries", msg["assets_ids"])
	}
	if msg["type"] != "market" {
		t.Errorf("type = %v, want market", msg["type"])
	}
	if msg["custom_feature_enabled"] != true {
		t.Errorf("custom_feature_enabled = %v, want true", msg["custom_feature_enabled"])
	}
	if msg["initial_dump"] != true {
		t.Errorf("initial_dump = %v, want true", msg["initial_dump"])
	}
}

func TestManager_DeliversFrames(t *testing.T) {
	ws := newWSServer(t)

	mgr := New(testConfig(ws.url()))
	if err := mgr.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer mgr.Close()

	ws.send(t, 0, `{"event_type":"book","asset_id":"t1","bids":[],"asks":[]}`)
	ws.send(t, 0, `[{"event_type":"last_trade_price","asset_id":"t1","price":"0.5"}]`)

	first := recvFrame(t, mgr.Frames())
	if !strings.Contains(string(first.Data), `"book"`) {
		t.Errorf("first frame = %s, want the book payload", first.Data)
	}
	if first.TsRecv <= 0 {
		t.Errorf("ts_recv = %v, want positive wall clock", first.TsRecv)
	}

	second := recvFrame(t, mgr.Frames())
	if !strings.Contains(string(second.Data), "last_trade_price") {
		t.Errorf("second frame = %s, want the trade payload", second.Data)
	}

	if got := mgr.Stats().Frames; got != 2 {
		t.Errorf("frames counter = %d, want 2", got)
	}
}

func TestManager_ReconnectsAndResubscribes(t *testing.T) {
	ws := newWSServer(t)

	mgr := New(testConfig(ws.url()))
	if err := mgr.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer mgr.Close()

	if err := mgr.Subscribe(context.Background(), []string{"token-a"}); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	<-ws.subscribes

	// Drop the first connection; the manager must reconnect and replay
	// the subscription on its own.
	ws.conn(t, 0).Close()

	var resub []byte
	select {
	case resub = <-ws.subscribes:
	case <-time.After(3 * time.Second):
		t.Fatal("no resubscribe after reconnect")
	}
	if !strings.Contains(string(resub), "token-a") {
		t.Errorf("resubscribe payload = %s, want token-a", resub)
	}

	ws.send(t, 1, `{"event_type":"book","asset_id":"t1","bids":[],"asks":[]}`)
	frame := recvFrame(t, mgr.Frames())
	if len(frame.Data) == 0 {
		t.Error("expected a frame after reconnect")
	}

	if got := mgr.Stats().Reconnects; got < 1 {
		t.Errorf("reconnects = %d, want >= 1", got)
	}
	if len(mgr.Warnings()) == 0 {
		t.Error("expected a disconnect warning")
	}
}

func TestManager_RecvTimeoutIsNotFatal(t *testing.T) {
	ws := newWSServer(t)

	cfg := testConfig(ws.url())
	cfg.RecvTimeout = 30 * time.Millisecond
	mgr := New(cfg)
	if err := mgr.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer mgr.Close()

	// Let several idle periods elapse, then prove the connection still works.
	time.Sleep(150 * time.Millisecond)

	if got := mgr.Stats().Timeouts; got < 1 {
		t.Errorf("timeouts = %d, want >= 1", got)
	}
	if got := mgr.Stats().Reconnects; got != 0 {
		t.Errorf("reconnects = %d, want 0 after idle timeouts", got)
	}

	ws.send(t, 0, `{"event_type":"book","asset_id":"t1","bids":[],"asks":[]}`)
	frame := recvFrame(t, mgr.Frames())
	if len(frame.Data) == 0 {
		t.Error("expected frame after idle period")
	}
}

func TestManager_CloseClosesFrames(t *testing.T) {
	ws := newWSServer(t)

	mgr := New(testConfig(ws.url()))
	if err := mgr.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := mgr.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	select {
	case _, ok := <-mgr.Frames():
		if ok {
			t.Error("expected frames channel to be closed")
		}
	case <-time.After(time.Second):
		t.Error("frames channel not closed after Close")
	}
}

func TestSubscribe_Empty(t *testing.T) {
	mgr := New(testConfig("ws://unused"))

	if err := mgr.Subscribe(context.Background(), nil); err != nil {
		t.Errorf("expected no error for empty asset list, got %v", err)
	}
}

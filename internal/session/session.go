// Package session implements interactive cursor-stepped replay. A
// session holds one loaded tape and advances through it on demand,
// taking orders from the caller instead of a strategy. The broker runs
// with zero latency, so an order submitted at the cursor is eligible on
// the very next step.
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-sim/internal/book"
	"github.com/mselser95/polymarket-sim/internal/jsonl"
	"github.com/mselser95/polymarket-sim/internal/portfolio"
	"github.com/mselser95/polymarket-sim/internal/runner"
	"github.com/mselser95/polymarket-sim/internal/sim"
	"github.com/mselser95/polymarket-sim/internal/tape"
	"github.com/mselser95/polymarket-sim/pkg/types"
)

// ModeSession is the mode recorded in session manifests.
const ModeSession = "session"

// Session artifact file names. Orders, fills, ledger and equity curve
// reuse the replay runner's names.
const (
	UserActionsFile = "user_actions.jsonl"
	ManifestFile    = "session_manifest.json"
)

// stateDepth is how many levels per side GetState exposes.
const stateDepth = 5

// User action names.
const (
	ActionSubmitOrder = "submit_order"
	ActionCancelOrder = "cancel_order"
)

// UserAction is one audit entry for a caller-driven order operation,
// anchored to the cursor position it was issued at. Rejected operations
// are logged too, with the rejection in Error.
type UserAction struct {
	Action     string           `json:"action"`
	Seq        int64            `json:"seq"`
	TsRecv     float64          `json:"ts_recv"`
	AssetID    string           `json:"asset_id,omitempty"`
	Side       string           `json:"side,omitempty"`
	LimitPrice *decimal.Decimal `json:"limit_price,omitempty"`
	Size       *decimal.Decimal `json:"size,omitempty"`
	OrderID    string           `json:"order_id,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// AssetState is one asset's view in a state snapshot.
type AssetState struct {
	AssetID   string           `json:"asset_id"`
	BestBid   *decimal.Decimal `json:"best_bid"`
	BestAsk   *decimal.Decimal `json:"best_ask"`
	Bids      []book.Level     `json:"bids"`
	Asks      []book.Level     `json:"asks"`
	LastTrade *decimal.Decimal `json:"last_trade,omitempty"`
}

// State is a full point-in-time snapshot of the session. Portfolio is
// the latest ledger row, recomputed over the current lifecycle log, so
// positions are marked per asset at the cursor's book state.
type State struct {
	SessionID   string              `json:"session_id"`
	Cursor      int                 `json:"cursor"`
	TotalEvents int                 `json:"total_events"`
	Assets      []AssetState        `json:"assets"`
	OpenOrders  []sim.Order         `json:"open_orders"`
	Portfolio   portfolio.LedgerRow `json:"portfolio"`
}

// Counts summarizes session activity for the manifest.
type Counts struct {
	EventsStepped int `json:"events_stepped"`
	TimelineRows  int `json:"timeline_rows"`
	Orders        int `json:"orders"`
	Fills         int `json:"fills"`
	UserActions   int `json:"user_actions"`
}

// Manifest is the session_manifest.json payload.
type Manifest struct {
	SessionID     string              `json:"session_id"`
	Mode          string              `json:"mode"`
	TapeDir       string              `json:"tape_dir"`
	CreatedAt     string              `json:"created_at"`
	SavedAt       string              `json:"saved_at"`
	Cursor        int                 `json:"cursor"`
	TotalEvents   int                 `json:"total_events"`
	AssetIDs      []string            `json:"asset_ids"`
	StartingCash  decimal.Decimal     `json:"starting_cash"`
	FeeRateBps    int                 `json:"fee_rate_bps"`
	MarkMethod    string              `json:"mark_method"`
	PricingSource string              `json:"pricing_source"`
	Latency       sim.LatencyModel    `json:"latency"`
	StrictBooks   bool                `json:"strict_books"`
	Counts        Counts              `json:"counts"`
	Portfolio     portfolio.LedgerRow `json:"portfolio"`
	RunQuality    string              `json:"run_quality"`
	Warnings      []string            `json:"warnings"`
	WarningsTotal int                 `json:"warnings_total"`
}

// Config holds session configuration.
type Config struct {
	Tape         *tape.Tape
	StartingCash decimal.Decimal
	FeeRateBps   int
	MarkMethod   string
	StrictBooks  bool
	// ID defaults to a fresh uuid.
	ID     string
	Logger *zap.Logger
}

// Session is cursor-stepped replay state. Not safe for concurrent use;
// callers serialize access per session.
type Session struct {
	id     string
	tape   *tape.Tape
	logger *zap.Logger

	startingCash decimal.Decimal
	feeRateBps   int
	markMethod   string
	strict       bool

	cursor    int
	books     map[string]*book.Book
	bookOrder []string
	broker    *sim.Broker
	timeline  []types.TimelineRow
	lastTrade map[string]decimal.Decimal
	actions   []UserAction
	warnings  []string
	createdAt time.Time
}

// New creates a session over a loaded tape, with books pre-created for
// every asset the tape names and the cursor before the first event.
func New(cfg *Config) (*Session, error) {
	if cfg.Tape == nil {
		return nil, fmt.Errorf("tape is required")
	}
	if cfg.StartingCash.Sign() < 0 {
		return nil, fmt.Errorf("starting cash cannot be negative, got %s", cfg.StartingCash)
	}
	if cfg.FeeRateBps < 0 {
		return nil, fmt.Errorf("fee rate cannot be negative, got %d bps", cfg.FeeRateBps)
	}
	markMethod := cfg.MarkMethod
	switch markMethod {
	case "":
		markMethod = portfolio.MarkMethodBid
	case portfolio.MarkMethodBid, portfolio.MarkMethodMidpoint:
	default:
		return nil, fmt.Errorf("invalid mark method %q", cfg.MarkMethod)
	}

	id := cfg.ID
	if id == "" {
		id = uuid.New().String()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Session{
		id:           id,
		tape:         cfg.Tape,
		logger:       logger,
		startingCash: cfg.StartingCash,
		feeRateBps:   cfg.FeeRateBps,
		markMethod:   markMethod,
		strict:       cfg.StrictBooks,
		books:        map[string]*book.Book{},
		broker:       sim.New(&sim.Config{Latency: sim.ZeroLatency, Logger: logger}),
		lastTrade:    map[string]decimal.Decimal{},
		createdAt:    time.Now().UTC(),
	}
	for _, assetID := range cfg.Tape.AssetIDs() {
		s.ensureBook(assetID)
	}

	SessionsTotal.Inc()
	logger.Info("session-created",
		zap.String("session-id", id),
		zap.String("tape-dir", cfg.Tape.Dir),
		zap.Int("events", len(cfg.Tape.Events)),
		zap.Int("assets", len(s.bookOrder)))
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

// Cursor returns how many events have been applied.
func (s *Session) Cursor() int {
	return s.cursor
}

// Done reports whether the cursor has reached the end of the tape.
func (s *Session) Done() bool {
	return s.cursor == len(s.tape.Events)
}

// Timeline returns the best-bid/ask rows observed so far, one per
// (touched asset, book event).
func (s *Session) Timeline() []types.TimelineRow {
	return s.timeline
}

// Warnings returns session warnings followed by per-book warnings in
// book creation order.
func (s *Session) Warnings() []string {
	out := append([]string{}, s.warnings...)
	for _, assetID := range s.bookOrder {
		out = append(out, s.books[assetID].Warnings()...)
	}
	return out
}

// Step advances the cursor by up to n events, applying books, stepping
// the broker per touched asset, tracking last-trade prints and
// appending one timeline row per (touched asset, book event). It
// returns how many events were actually applied, short only at the end
// of the tape. A strict-mode book error stops mid-batch with the
// cursor before the failing event.
func (s *Session) Step(n int) (int, error) {
	stepped := 0
	for stepped < n && s.cursor < len(s.tape.Events) {
		ev := &s.tape.Events[s.cursor]
		if err := s.processEvent(ev); err != nil {
			return stepped, err
		}
		s.cursor++
		stepped++
		EventsSteppedTotal.Inc()
	}
	return stepped, nil
}

func (s *Session) processEvent(ev *types.Event) error {
	touched, err := s.applyBooks(ev)
	if err != nil {
		return err
	}

	if ev.EventType == types.EventTypeLastTradePrice && ev.AssetID != "" {
		price, err := decimal.NewFromString(ev.Price)
		if err != nil {
			s.warn(fmt.Sprintf("bad last trade price at seq %d: %v", ev.Seq, err))
		} else {
			s.lastTrade[ev.AssetID] = price
		}
	}

	if len(touched) == 0 {
		s.broker.Step(ev, nil, "")
	} else {
		for _, assetID := range touched {
			s.broker.Step(ev, s.books[assetID], assetID)
		}
	}

	if ev.BookAffecting() {
		for _, assetID := range touched {
			bk := s.books[assetID]
			s.timeline = append(s.timeline, types.TimelineRow{
				Seq:       ev.Seq,
				TsRecv:    ev.TsRecv,
				AssetID:   assetID,
				EventType: ev.EventType,
				BestBid:   bk.BestBid(),
				BestAsk:   bk.BestAsk(),
			})
		}
	}

	return nil
}

// applyBooks dispatches the event to the books it names and returns the
// assets whose book actually changed, in payload order.
func (s *Session) applyBooks(ev *types.Event) ([]string, error) {
	if !ev.BookAffecting() {
		return nil, nil
	}

	if ev.Batched() {
		var touched []string
		seen := make(map[string]struct{}, len(ev.PriceChanges))
		for _, pc := range ev.PriceChanges {
			if pc.AssetID == "" {
				continue
			}
			applied, err := s.ensureBook(pc.AssetID).ApplySingleDelta(pc)
			if err != nil {
				return nil, fmt.Errorf("batched delta at seq %d: %w", ev.Seq, err)
			}
			if !applied {
				continue
			}
			if _, ok := seen[pc.AssetID]; ok {
				continue
			}
			seen[pc.AssetID] = struct{}{}
			touched = append(touched, pc.AssetID)
		}
		return touched, nil
	}

	if ev.AssetID == "" {
		return nil, nil
	}
	applied, err := s.ensureBook(ev.AssetID).Apply(ev)
	if err != nil {
		return nil, fmt.Errorf("event at seq %d: %w", ev.Seq, err)
	}
	if !applied {
		return nil, nil
	}
	return []string{ev.AssetID}, nil
}

func (s *Session) ensureBook(assetID string) *book.Book {
	if bk, ok := s.books[assetID]; ok {
		return bk
	}
	bk := book.New(&book.Config{AssetID: assetID, Strict: s.strict, Logger: s.logger})
	s.books[assetID] = bk
	s.bookOrder = append(s.bookOrder, assetID)
	return bk
}

// SubmitOrder places a limit order anchored at the cursor's seq/ts and
// logs a user action. The broker validates the side, the (0, 1] limit
// price range and the positive size; rejected submissions are logged
// with their error and returned.
func (s *Session) SubmitOrder(assetID, side string, limit, size decimal.Decimal) (string, error) {
	seq, ts := s.cursorAnchor()
	action := UserAction{
		Action:     ActionSubmitOrder,
		Seq:        seq,
		TsRecv:     ts,
		AssetID:    assetID,
		Side:       side,
		LimitPrice: &limit,
		Size:       &size,
	}

	orderID, err := s.broker.SubmitOrder(assetID, side, limit, size, seq, ts)
	if err != nil {
		action.Error = err.Error()
		s.recordAction(action)
		return "", err
	}
	action.OrderID = orderID
	s.recordAction(action)
	return orderID, nil
}

// CancelOrder requests cancellation of an open order at the cursor's
// seq/ts and logs a user action.
func (s *Session) CancelOrder(orderID string) error {
	seq, ts := s.cursorAnchor()
	action := UserAction{
		Action:  ActionCancelOrder,
		Seq:     seq,
		TsRecv:  ts,
		OrderID: orderID,
	}

	if err := s.broker.CancelOrder(orderID, seq, ts); err != nil {
		action.Error = err.Error()
		s.recordAction(action)
		return err
	}
	s.recordAction(action)
	return nil
}

// cursorAnchor returns the seq/ts user actions key on: the last applied
// event, or the tape's first event when nothing has been applied yet.
// Either way a zero-latency order is eligible on the next step.
func (s *Session) cursorAnchor() (int64, float64) {
	if s.cursor == 0 {
		first := s.tape.First()
		return first.Seq, first.TsRecv
	}
	ev := &s.tape.Events[s.cursor-1]
	return ev.Seq, ev.TsRecv
}

func (s *Session) recordAction(action UserAction) {
	s.actions = append(s.actions, action)
	UserActionsTotal.WithLabelValues(action.Action).Inc()

	fields := []zap.Field{
		zap.String("session-id", s.id),
		zap.String("action", action.Action),
		zap.Int64("seq", action.Seq),
		zap.String("order-id", action.OrderID),
	}
	if action.Error != "" {
		fields = append(fields, zap.String("error", action.Error))
		s.logger.Warn("session-action-rejected", fields...)
		return
	}
	s.logger.Info("session-action", fields...)
}

// GetState returns a full snapshot at the cursor: per-asset BBO and
// top-of-book depth, last trade prints, open orders and the live
// portfolio row.
func (s *Session) GetState() State {
	assets := make([]AssetState, 0, len(s.bookOrder))
	for _, assetID := range s.bookOrder {
		bk := s.books[assetID]
		st := AssetState{
			AssetID: assetID,
			BestBid: bk.BestBid(),
			BestAsk: bk.BestAsk(),
			Bids:    bk.TopBids(stateDepth),
			Asks:    bk.TopAsks(stateDepth),
		}
		if last, ok := s.lastTrade[assetID]; ok {
			v := last
			st.LastTrade = &v
		}
		assets = append(assets, st)
	}

	rows := s.computeLedger()
	return State{
		SessionID:   s.id,
		Cursor:      s.cursor,
		TotalEvents: len(s.tape.Events),
		Assets:      assets,
		OpenOrders:  s.broker.OpenOrders(),
		Portfolio:   rows[len(rows)-1],
	}
}

// computeLedger rebuilds the ledger over the current lifecycle log and
// timeline, with the final row anchored at the cursor.
func (s *Session) computeLedger() []portfolio.LedgerRow {
	ledger := portfolio.New(&portfolio.Config{
		StartingCash:  s.startingCash,
		FeeRateBps:    s.feeRateBps,
		MarkMethod:    s.markMethod,
		PricingSource: portfolio.PricingSourceTape,
		Logger:        s.logger,
	})
	return ledger.Compute(s.broker.OrderEvents(), s.timeline, s.bounds())
}

func (s *Session) bounds() portfolio.Bounds {
	first := s.tape.First()
	b := portfolio.Bounds{
		FirstSeq: first.Seq,
		FirstTs:  first.TsRecv,
		LastSeq:  first.Seq,
		LastTs:   first.TsRecv,
	}
	if s.cursor > 0 {
		last := &s.tape.Events[s.cursor-1]
		b.LastSeq = last.Seq
		b.LastTs = last.TsRecv
	}
	return b
}

// SaveArtifacts writes the session's artifact set: user actions, order
// states, fills, ledger, equity curve and the session manifest. Can be
// called at any cursor position and repeatedly; each call snapshots the
// session as it stands.
func (s *Session) SaveArtifacts(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	rows := s.computeLedger()
	curve := portfolio.EquityCurve(rows)
	orders := s.broker.Orders()
	fills := s.broker.Fills()

	if err := writeLines(dir, UserActionsFile, func(w *jsonl.Writer) error {
		for i := range s.actions {
			if err := w.Write(&s.actions[i]); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}
	if err := writeLines(dir, runner.OrdersFile, func(w *jsonl.Writer) error {
		for i := range orders {
			if err := w.Write(&orders[i]); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}
	if err := writeLines(dir, runner.FillsFile, func(w *jsonl.Writer) error {
		for i := range fills {
			if err := w.Write(&fills[i]); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}
	if err := writeLines(dir, runner.LedgerFile, func(w *jsonl.Writer) error {
		for i := range rows {
			if err := w.Write(&rows[i]); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}
	if err := writeLines(dir, runner.EquityCurveFile, func(w *jsonl.Writer) error {
		for i := range curve {
			if err := w.Write(&curve[i]); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}

	warnings := s.Warnings()
	quality, inline, total := runner.QualityFor(warnings)
	manifest := Manifest{
		SessionID:     s.id,
		Mode:          ModeSession,
		TapeDir:       s.tape.Dir,
		CreatedAt:     s.createdAt.Format(time.RFC3339),
		SavedAt:       time.Now().UTC().Format(time.RFC3339),
		Cursor:        s.cursor,
		TotalEvents:   len(s.tape.Events),
		AssetIDs:      append([]string{}, s.bookOrder...),
		StartingCash:  s.startingCash,
		FeeRateBps:    s.feeRateBps,
		MarkMethod:    s.markMethod,
		PricingSource: portfolio.PricingSourceTape,
		Latency:       sim.ZeroLatency,
		StrictBooks:   s.strict,
		Counts: Counts{
			EventsStepped: s.cursor,
			TimelineRows:  len(s.timeline),
			Orders:        len(orders),
			Fills:         len(fills),
			UserActions:   len(s.actions),
		},
		Portfolio:     rows[len(rows)-1],
		RunQuality:    quality,
		Warnings:      inline,
		WarningsTotal: total,
	}
	if err := jsonl.WritePretty(filepath.Join(dir, ManifestFile), &manifest); err != nil {
		return fmt.Errorf("write session manifest: %w", err)
	}

	s.logger.Info("session-artifacts-saved",
		zap.String("session-id", s.id),
		zap.String("out-dir", dir),
		zap.Int("cursor", s.cursor),
		zap.Int("user-actions", len(s.actions)),
		zap.String("run-quality", quality))
	return nil
}

func (s *Session) warn(msg string) {
	s.warnings = append(s.warnings, msg)
	s.logger.Warn("session-warning",
		zap.String("session-id", s.id),
		zap.String("detail", msg))
}

func writeLines(dir, name string, write func(w *jsonl.Writer) error) error {
	w, err := jsonl.NewWriter(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	if err := write(w); err != nil {
		w.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	return nil
}

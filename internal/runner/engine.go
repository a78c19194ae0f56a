// Package runner replays tapes through strategies. The Engine here is
// the per-event pipeline; the Runner wraps it with tape loading, the
// ledger and the artifact set. The shadow runner drives the same Engine
// from a live feed.
package runner

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-sim/internal/book"
	"github.com/mselser95/polymarket-sim/internal/jsonl"
	"github.com/mselser95/polymarket-sim/internal/portfolio"
	"github.com/mselser95/polymarket-sim/internal/sim"
	"github.com/mselser95/polymarket-sim/internal/strategy"
	"github.com/mselser95/polymarket-sim/pkg/types"
)

// Sinks are optional line-flushed writers the engine streams rows into
// as they are produced, so an interrupted run still leaves usable
// artifacts. A nil writer skips that stream.
type Sinks struct {
	Timeline  *jsonl.Writer
	Fills     *jsonl.Writer
	Decisions *jsonl.Writer
}

// DecisionRow is one decisions.jsonl line: the context the strategy saw
// and every intent it returned, with execution outcomes.
type DecisionRow struct {
	Seq       int64            `json:"seq"`
	TsRecv    float64          `json:"ts_recv"`
	EventType string           `json:"event_type"`
	BestBid   *decimal.Decimal `json:"best_bid"`
	BestAsk   *decimal.Decimal `json:"best_ask"`
	Intents   []IntentResult   `json:"intents"`
}

// IntentResult pairs an intent with what the broker did with it.
type IntentResult struct {
	Intent  strategy.OrderIntent `json:"intent"`
	OrderID string               `json:"order_id,omitempty"`
	Error   string               `json:"error,omitempty"`
}

// EngineConfig holds engine configuration.
type EngineConfig struct {
	PrimaryAsset string
	Strategy     strategy.Strategy
	Broker       *sim.Broker
	StrictBooks  bool
	Sinks        Sinks
	Logger       *zap.Logger
}

// Engine is the per-event pipeline shared by the replay and shadow
// runners: apply the event to its books, snapshot BBOs, poll the
// strategy, execute intents, step the broker once per touched asset,
// dispatch fills, and record the primary asset's timeline. One engine
// drives one run; it is not safe for concurrent use.
type Engine struct {
	primaryAsset string
	strat        strategy.Strategy
	broker       *sim.Broker
	strict       bool
	sinks        Sinks
	logger       *zap.Logger

	books     map[string]*book.Book
	bookOrder []string

	timeline []types.TimelineRow
	warnings []string

	decisions           int
	eventsProcessed     int64
	batchedPriceChanges int64
	perAssetUpdates     map[string]int64

	boundsSet bool
	bounds    portfolio.Bounds
}

// NewEngine creates an engine with no books; EnsureBook or the first
// event for an asset creates them.
func NewEngine(cfg *EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		primaryAsset:    cfg.PrimaryAsset,
		strat:           cfg.Strategy,
		broker:          cfg.Broker,
		strict:          cfg.StrictBooks,
		sinks:           cfg.Sinks,
		logger:          logger,
		books:           make(map[string]*book.Book),
		perAssetUpdates: make(map[string]int64),
	}
}

// EnsureBook returns the book for assetID, creating it on first use.
func (e *Engine) EnsureBook(assetID string) *book.Book {
	if bk, ok := e.books[assetID]; ok {
		return bk
	}

	bk := book.New(&book.Config{AssetID: assetID, Strict: e.strict, Logger: e.logger})
	e.books[assetID] = bk
	e.bookOrder = append(e.bookOrder, assetID)
	return bk
}

// Start hands the strategy its starting conditions.
func (e *Engine) Start(cash decimal.Decimal) {
	e.strat.OnStart(e.primaryAsset, cash)
}

// Finish tells the strategy the run is over.
func (e *Engine) Finish() {
	e.strat.OnFinish()
}

// ProcessEvent runs one event through the pipeline. Errors are either
// strict-mode book failures or artifact write failures; both end the
// run.
func (e *Engine) ProcessEvent(ev *types.Event) error {
	e.trackBounds(ev)
	e.eventsProcessed++
	if ev.Batched() {
		e.batchedPriceChanges++
	}
	EventsProcessedTotal.Inc()

	touched, err := e.applyBooks(ev)
	if err != nil {
		return err
	}
	for _, assetID := range touched {
		e.perAssetUpdates[assetID]++
	}

	ctx := e.buildContext(ev)
	intents := e.strat.OnEvent(ctx)
	if len(intents) > 0 {
		if err := e.executeIntents(ev, ctx, intents); err != nil {
			return err
		}
	}

	fills, err := e.stepBroker(ev, touched)
	if err != nil {
		return err
	}
	for i := range fills {
		if fills[i].FillSize.Sign() > 0 {
			e.strat.OnFill(fills[i])
		}
	}

	if ev.BookAffecting() && containsString(touched, e.primaryAsset) {
		if err := e.appendTimelineRow(ev); err != nil {
			return err
		}
	}

	return nil
}

// applyBooks dispatches the event to the books it names and returns the
// assets whose book actually changed, in payload order.
func (e *Engine) applyBooks(ev *types.Event) ([]string, error) {
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
			applied, err := e.EnsureBook(pc.AssetID).ApplySingleDelta(pc)
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
	applied, err := e.EnsureBook(ev.AssetID).Apply(ev)
	if err != nil {
		return nil, fmt.Errorf("event at seq %d: %w", ev.Seq, err)
	}
	if !applied {
		return nil, nil
	}
	return []string{ev.AssetID}, nil
}

// buildContext snapshots every book's BBO plus the broker's open orders.
func (e *Engine) buildContext(ev *types.Event) *strategy.Context {
	best := make(map[string]strategy.BBO, len(e.bookOrder))
	for _, assetID := range e.bookOrder {
		best[assetID] = snapshotBBO(e.books[assetID])
	}

	primary := best[e.primaryAsset]
	return &strategy.Context{
		Event:       ev,
		Seq:         ev.Seq,
		TsRecv:      ev.TsRecv,
		BestBid:     primary.BestBid,
		BestAsk:     primary.BestAsk,
		OpenOrders:  e.broker.OpenOrders(),
		BestByAsset: best,
	}
}

// executeIntents validates and executes the strategy's intents. A
// malformed intent or a broker rejection is logged, counted as a run
// warning and skipped; the run continues.
func (e *Engine) executeIntents(ev *types.Event, ctx *strategy.Context, intents []strategy.OrderIntent) error {
	results := make([]IntentResult, 0, len(intents))
	for _, intent := range intents {
		res := IntentResult{Intent: intent}

		if err := intent.Validate(); err != nil {
			e.warn(fmt.Sprintf("malformed intent at seq %d: %v", ev.Seq, err))
			MalformedIntentsTotal.Inc()
			results = append(results, res.withError(err))
			continue
		}

		switch intent.Action {
		case strategy.ActionSubmit:
			orderID, err := e.broker.SubmitOrder(intent.AssetID, intent.Side,
				*intent.LimitPrice, *intent.Size, ev.Seq, ev.TsRecv)
			if err != nil {
				e.warn(fmt.Sprintf("submit rejected at seq %d: %v", ev.Seq, err))
				results = append(results, res.withError(err))
				continue
			}
			res.OrderID = orderID

		case strategy.ActionCancel:
			if err := e.broker.CancelOrder(intent.OrderID, ev.Seq, ev.TsRecv); err != nil {
				e.warn(fmt.Sprintf("cancel rejected at seq %d: %v", ev.Seq, err))
				results = append(results, res.withError(err))
				continue
			}
			res.OrderID = intent.OrderID
		}
		results = append(results, res)
	}

	e.decisions++
	if e.sinks.Decisions != nil {
		row := DecisionRow{
			Seq:       ev.Seq,
			TsRecv:    ev.TsRecv,
			EventType: ev.EventType,
			BestBid:   ctx.BestBid,
			BestAsk:   ctx.BestAsk,
			Intents:   results,
		}
		if err := e.sinks.Decisions.Write(row); err != nil {
			return fmt.Errorf("stream decision: %w", err)
		}
	}
	return nil
}

func (r IntentResult) withError(err error) IntentResult {
	r.Error = err.Error()
	return r
}

// stepBroker advances order lifecycles through this event. Touched
// assets each get a fill-eligible step with their own book; an event
// that touched nothing still steps once so activations and cancels land
// at the seq they became effective.
func (e *Engine) stepBroker(ev *types.Event, touched []string) ([]sim.FillRecord, error) {
	var fills []sim.FillRecord
	if len(touched) == 0 {
		fills = e.broker.Step(ev, nil, "")
	}
	for _, assetID := range touched {
		fills = append(fills, e.broker.Step(ev, e.books[assetID], assetID)...)
	}

	if e.sinks.Fills != nil {
		for i := range fills {
			if err := e.sinks.Fills.Write(fills[i]); err != nil {
				return nil, fmt.Errorf("stream fill: %w", err)
			}
		}
	}
	return fills, nil
}

func (e *Engine) appendTimelineRow(ev *types.Event) error {
	bk := e.books[e.primaryAsset]
	row := types.TimelineRow{
		Seq:       ev.Seq,
		TsRecv:    ev.TsRecv,
		AssetID:   e.primaryAsset,
		EventType: ev.EventType,
		BestBid:   bk.BestBid(),
		BestAsk:   bk.BestAsk(),
	}

	e.timeline = append(e.timeline, row)
	TimelineRowsTotal.Inc()
	if e.sinks.Timeline != nil {
		if err := e.sinks.Timeline.Write(row); err != nil {
			return fmt.Errorf("stream timeline row: %w", err)
		}
	}
	return nil
}

func (e *Engine) trackBounds(ev *types.Event) {
	if !e.boundsSet {
		e.boundsSet = true
		e.bounds.FirstSeq = ev.Seq
		e.bounds.FirstTs = ev.TsRecv
	}
	e.bounds.LastSeq = ev.Seq
	e.bounds.LastTs = ev.TsRecv
}

func (e *Engine) warn(msg string) {
	e.warnings = append(e.warnings, msg)
	e.logger.Warn("run-warning", zap.String("detail", msg))
}

// Timeline returns the primary asset's best-bid/ask rows so far.
func (e *Engine) Timeline() []types.TimelineRow {
	return e.timeline
}

// Warnings returns run warnings: intent and broker issues recorded by
// the engine followed by every book's skipped-delta warnings, in book
// creation order.
func (e *Engine) Warnings() []string {
	out := make([]string, 0, len(e.warnings))
	out = append(out, e.warnings...)
	for _, assetID := range e.bookOrder {
		out = append(out, e.books[assetID].Warnings()...)
	}
	return out
}

// Bounds returns the seq/ts range of the events processed so far.
func (e *Engine) Bounds() portfolio.Bounds {
	return e.bounds
}

// EventsProcessed returns how many events ran through the pipeline.
func (e *Engine) EventsProcessed() int64 {
	return e.eventsProcessed
}

// BatchedPriceChanges returns how many processed events were batched.
func (e *Engine) BatchedPriceChanges() int64 {
	return e.batchedPriceChanges
}

// Decisions returns how many events produced at least one intent.
func (e *Engine) Decisions() int {
	return e.decisions
}

// PerAssetUpdates returns a copy of the per-asset book update counts.
func (e *Engine) PerAssetUpdates() map[string]int64 {
	out := make(map[string]int64, len(e.perAssetUpdates))
	for assetID, n := range e.perAssetUpdates {
		out[assetID] = n
	}
	return out
}

// AssetIDs returns every asset with a book, in creation order.
func (e *Engine) AssetIDs() []string {
	out := make([]string, len(e.bookOrder))
	copy(out, e.bookOrder)
	return out
}

// Book returns the book for assetID, if one exists.
func (e *Engine) Book(assetID string) (*book.Book, bool) {
	bk, ok := e.books[assetID]
	return bk, ok
}

// PrimaryBBO snapshots the primary asset's current top of book.
func (e *Engine) PrimaryBBO() strategy.BBO {
	bk, ok := e.books[e.primaryAsset]
	if !ok {
		return strategy.BBO{}
	}
	return snapshotBBO(bk)
}

// snapshotBBO captures one book's top of book with sizes.
func snapshotBBO(bk *book.Book) strategy.BBO {
	var out strategy.BBO
	if bids := bk.TopBids(1); len(bids) > 0 {
		price, size := bids[0].Price, bids[0].Size
		out.BestBid, out.BestBidSize = &price, &size
	}
	if asks := bk.TopAsks(1); len(asks) > 0 {
		price, size := asks[0].Price, asks[0].Size
		out.BestAsk, out.BestAskSize = &price, &size
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

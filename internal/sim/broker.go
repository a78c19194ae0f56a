package sim

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-sim/internal/book"
	"github.com/mselser95/polymarket-sim/pkg/types"
)

// Broker tracks simulated orders through their lifecycle and produces
// fills by stepping against L2 books. It is not safe for concurrent use:
// one run loop owns one broker, and every state change keys on the tape's
// seq so replays are deterministic. Orders iterate in submission order.
type Broker struct {
	latency LatencyModel
	logger  *zap.Logger

	orders      map[string]*Order
	orderIDs    []string
	fills       []FillRecord
	orderEvents []OrderEvent
	nextID      int64
}

// Config holds broker configuration.
type Config struct {
	Latency LatencyModel
	Logger  *zap.Logger
}

// New creates a broker with no open orders.
func New(cfg *Config) *Broker {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Broker{
		latency: cfg.Latency,
		logger:  logger,
		orders:  make(map[string]*Order),
	}
}

// SubmitOrder creates a pending order and returns its id. The order
// becomes eligible for fills at submitSeq + submit_ticks. Limit prices
// must lie in (0, 1] for binary outcome tokens and sizes must be
// positive.
func (b *Broker) SubmitOrder(assetID, side string, limit, size decimal.Decimal, submitSeq int64, submitTs float64) (string, error) {
	if assetID == "" {
		return "", fmt.Errorf("asset id cannot be empty")
	}
	if !types.ValidSide(side) {
		return "", fmt.Errorf("invalid side %q", side)
	}
	if limit.Sign() <= 0 || limit.GreaterThan(decimal.NewFromInt(1)) {
		return "", fmt.Errorf("limit price must be in (0, 1], got %s", limit)
	}
	if size.Sign() <= 0 {
		return "", fmt.Errorf("size must be positive, got %s", size)
	}

	b.nextID++
	orderID := fmt.Sprintf("ord-%d", b.nextID)

	order := &Order{
		OrderID:      orderID,
		AssetID:      assetID,
		Side:         side,
		LimitPrice:   limit,
		Size:         size,
		SubmitSeq:    submitSeq,
		SubmitTs:     submitTs,
		EffectiveSeq: b.latency.EffectiveSeq(submitSeq),
		Status:       StatusPending,
		FilledSize:   decimal.Zero,
	}

	b.orders[orderID] = order
	b.orderIDs = append(b.orderIDs, orderID)
	b.appendEvent(OrderEvent{
		Event:   EventSubmitted,
		OrderID: orderID,
		AssetID: assetID,
		Seq:     submitSeq,
		TsRecv:  submitTs,
		Side:    side,
	})
	OrdersSubmittedTotal.WithLabelValues(side).Inc()

	b.logger.Debug("order-submitted",
		zap.String("order-id", orderID),
		zap.String("asset-id", assetID),
		zap.String("side", side),
		zap.String("limit", limit.String()),
		zap.String("size", size.String()),
		zap.Int64("submit-seq", submitSeq),
		zap.Int64("effective-seq", order.EffectiveSeq))

	return orderID, nil
}

// CancelOrder requests cancellation of a non-terminal order. The cancel
// takes effect at cancelSeq + cancel_ticks; a fill at that same seq still
// wins because the broker fills before it cancels.
func (b *Broker) CancelOrder(orderID string, cancelSeq int64, cancelTs float64) error {
	order, ok := b.orders[orderID]
	if !ok {
		return fmt.Errorf("cancel %s: %w", orderID, types.ErrOrderNotFound)
	}
	if order.Terminal() {
		return fmt.Errorf("cancel %s (status %s): %w", orderID, order.Status, types.ErrOrderTerminal)
	}

	effective := b.latency.CancelEffectiveSeq(cancelSeq)
	order.CancelEffectiveSeq = &effective
	b.appendEvent(OrderEvent{
		Event:   EventCancelSubmitted,
		OrderID: orderID,
		AssetID: order.AssetID,
		Seq:     cancelSeq,
		TsRecv:  cancelTs,
	})

	b.logger.Debug("cancel-submitted",
		zap.String("order-id", orderID),
		zap.Int64("cancel-seq", cancelSeq),
		zap.Int64("cancel-effective-seq", effective))

	return nil
}

// Step advances every order through one tape event, in the fixed phase
// order that defines the simulator's semantics:
//
//  1. activate pending orders whose effective_seq has arrived,
//  2. evaluate fills for active/partial orders on book-affecting events,
//  3. apply cancels whose cancel_effective_seq has arrived.
//
// Filling before cancelling is the "no perfect cancels" rule: a cancel
// landing at the same seq as a fill opportunity cannot suppress the fill.
// fillAssetID restricts phase 2 to one asset's orders; the caller passes
// that asset's book. An empty fillAssetID is for single-asset callers and
// matches every order.
func (b *Broker) Step(ev *types.Event, bk *book.Book, fillAssetID string) []FillRecord {
	// Phase 1: activate.
	for _, id := range b.orderIDs {
		order := b.orders[id]
		if order.Status != StatusPending || order.EffectiveSeq > ev.Seq {
			continue
		}

		order.Status = StatusActive
		b.appendEvent(OrderEvent{
			Event:   EventActivated,
			OrderID: id,
			AssetID: order.AssetID,
			Seq:     ev.Seq,
			TsRecv:  ev.TsRecv,
		})
	}

	// Phase 2: fill.
	var newFills []FillRecord
	if ev.BookAffecting() && bk != nil {
		for _, id := range b.orderIDs {
			order := b.orders[id]
			if order.Status != StatusActive && order.Status != StatusPartial {
				continue
			}
			if fillAssetID != "" && order.AssetID != fillAssetID {
				continue
			}

			fr := TryFill(order, bk, ev.Seq, ev.TsRecv)
			if fr.FillStatus == FillStatusRejected || fr.FillSize.Sign() == 0 {
				continue
			}

			order.FilledSize = order.FilledSize.Add(fr.FillSize)
			if order.Remaining().Sign() == 0 {
				order.Status = StatusFilled
			} else {
				order.Status = StatusPartial
			}

			price := fr.FillPrice
			size := fr.FillSize
			b.fills = append(b.fills, fr)
			newFills = append(newFills, fr)
			b.appendEvent(OrderEvent{
				Event:   EventFill,
				OrderID: id,
				AssetID: order.AssetID,
				Seq:     ev.Seq,
				TsRecv:  ev.TsRecv,
				Side:    order.Side,
				Price:   &price,
				Size:    &size,
			})
			FillsTotal.WithLabelValues(fr.FillStatus).Inc()

			b.logger.Debug("order-filled",
				zap.String("order-id", id),
				zap.String("fill-price", fr.FillPrice.String()),
				zap.String("fill-size", fr.FillSize.String()),
				zap.String("fill-status", fr.FillStatus),
				zap.Int64("seq", ev.Seq))
		}
	}

	// Phase 3: cancel.
	for _, id := range b.orderIDs {
		order := b.orders[id]
		if order.Terminal() || order.CancelEffectiveSeq == nil || *order.CancelEffectiveSeq > ev.Seq {
			continue
		}

		order.Status = StatusCancelled
		b.appendEvent(OrderEvent{
			Event:   EventCancelled,
			OrderID: id,
			AssetID: order.AssetID,
			Seq:     ev.Seq,
			TsRecv:  ev.TsRecv,
		})
		CancelsTotal.Inc()

		b.logger.Debug("order-cancelled",
			zap.String("order-id", id),
			zap.String("remaining", order.Remaining().String()),
			zap.Int64("seq", ev.Seq))
	}

	return newFills
}

// Order returns a copy of one order.
func (b *Broker) Order(orderID string) (Order, bool) {
	order, ok := b.orders[orderID]
	if !ok {
		return Order{}, false
	}
	return *order, true
}

// Orders returns copies of every order in submission order.
func (b *Broker) Orders() []Order {
	out := make([]Order, 0, len(b.orderIDs))
	for _, id := range b.orderIDs {
		out = append(out, *b.orders[id])
	}
	return out
}

// OpenOrders returns copies of non-terminal orders in submission order.
func (b *Broker) OpenOrders() []Order {
	var out []Order
	for _, id := range b.orderIDs {
		order := b.orders[id]
		if !order.Terminal() {
			out = append(out, *order)
		}
	}
	return out
}

// Fills returns every accepted fill in evaluation order.
func (b *Broker) Fills() []FillRecord {
	return b.fills
}

// OrderEvents returns the lifecycle log in emission order.
func (b *Broker) OrderEvents() []OrderEvent {
	return b.orderEvents
}

func (b *Broker) appendEvent(ev OrderEvent) {
	b.orderEvents = append(b.orderEvents, ev)
}

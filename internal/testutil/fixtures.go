// Package testutil builds tape fixtures shared by command-level tests.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/mselser95/polymarket-sim/internal/tape"
	"github.com/mselser95/polymarket-sim/pkg/types"
)

// BookEvent builds a book snapshot event. Levels are {price, size}
// pairs, best first.
func BookEvent(seq int64, assetID string, bids, asks [][2]string) types.Event {
	ev := types.Event{
		ParserVersion: types.ParserVersion,
		Seq:           seq,
		TsRecv:        float64(seq) + 0.5,
		EventType:     types.EventTypeBook,
		AssetID:       assetID,
	}
	for _, b := range bids {
		ev.Bids = append(ev.Bids, types.PriceLevel{Price: b[0], Size: b[1]})
	}
	for _, a := range asks {
		ev.Asks = append(ev.Asks, types.PriceLevel{Price: a[0], Size: a[1]})
	}
	return ev
}

// TradeEvent builds a last trade print for one share at price.
func TradeEvent(seq int64, assetID, price string) types.Event {
	return types.Event{
		ParserVersion: types.ParserVersion,
		Seq:           seq,
		TsRecv:        float64(seq) + 0.5,
		EventType:     types.EventTypeLastTradePrice,
		AssetID:       assetID,
		Price:         price,
		Side:          types.SideBuy,
		Size:          "1",
	}
}

// WriteTape writes events.jsonl into a fresh temp dir and returns the
// tape directory.
func WriteTape(t testing.TB, events []types.Event) string {
	t.Helper()
	dir := t.TempDir()

	var buf bytes.Buffer
	for i := range events {
		line, err := json.Marshal(&events[i])
		if err != nil {
			t.Fatalf("marshal event: %v", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	if err := os.WriteFile(filepath.Join(dir, tape.EventsFileName), buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write tape: %v", err)
	}
	return dir
}

// WriteMeta adds meta.json to a tape directory.
func WriteMeta(t testing.TB, dir string, meta *tape.Meta) {
	t.Helper()
	data, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("marshal meta: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, tape.MetaFileName), data, 0o644); err != nil {
		t.Fatalf("write meta: %v", err)
	}
}

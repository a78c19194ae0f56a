package tape

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/mselser95/polymarket-sim/pkg/types"
)

// Normalizer turns raw WS frames into envelope events, assigning each
// one the next seq on a single monotonically increasing axis. The
// exchange sends either a single JSON object or a top-level array; one
// frame may therefore produce several events.
type Normalizer struct {
	nextSeq int64
}

// NewNormalizer creates a normalizer starting at seq 0.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Normalize parses one frame. Objects with an unknown event type are
// dropped silently. Malformed JSON never fails the run; it comes back as
// warnings, with any parseable objects of the same frame kept. Skipped
// objects do not consume seq numbers.
func (n *Normalizer) Normalize(raw []byte, tsRecv float64) ([]types.Event, []string) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var docs []json.RawMessage
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &docs); err != nil {
			return nil, []string{fmt.Sprintf("malformed frame: %v", err)}
		}
	} else {
		docs = []json.RawMessage{trimmed}
	}

	var events []types.Event
	var warnings []string

	for i, doc := range docs {
		var ev types.Event
		if err := json.Unmarshal(doc, &ev); err != nil {
			warnings = append(warnings, fmt.Sprintf("malformed frame object %d: %v", i, err))
			continue
		}

		if ev.EventType == "" {
			var alias struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(doc, &alias); err == nil {
				ev.EventType = alias.Type
			}
		}

		if !types.KnownEventType(ev.EventType) {
			continue
		}

		ev.ParserVersion = types.ParserVersion
		ev.Seq = n.nextSeq
		ev.TsRecv = tsRecv
		n.nextSeq++

		events = append(events, ev)
	}

	return events, warnings
}

// Count returns how many events have been assigned a seq so far.
func (n *Normalizer) Count() int64 {
	return n.nextSeq
}

package runner

import (
	"fmt"
	"path/filepath"

	"github.com/mselser95/polymarket-sim/internal/jsonl"
	"github.com/mselser95/polymarket-sim/internal/portfolio"
	"github.com/mselser95/polymarket-sim/internal/sim"
	"github.com/mselser95/polymarket-sim/internal/strategy"
)

// Artifact file names inside a run directory.
const (
	BestBidAskFile    = "best_bid_ask.jsonl"
	OrdersFile        = "orders.jsonl"
	FillsFile         = "fills.jsonl"
	DecisionsFile     = "decisions.jsonl"
	LedgerFile        = "ledger.jsonl"
	EquityCurveFile   = "equity_curve.jsonl"
	OpportunitiesFile = "opportunities.jsonl"
	SummaryFile       = "summary.json"
	ManifestFile      = "run_manifest.json"
	MetaFile          = "meta.json"
)

// SinkSet owns the artifact writers the engine streams into during the
// run.
type SinkSet struct {
	timeline  *jsonl.Writer
	fills     *jsonl.Writer
	decisions *jsonl.Writer
	closed    bool
}

// OpenSinks creates the streamed artifact files in dir.
func OpenSinks(dir string) (*SinkSet, error) {
	timeline, err := jsonl.NewWriter(filepath.Join(dir, BestBidAskFile))
	if err != nil {
		return nil, err
	}
	fills, err := jsonl.NewWriter(filepath.Join(dir, FillsFile))
	if err != nil {
		timeline.Close()
		return nil, err
	}
	decisions, err := jsonl.NewWriter(filepath.Join(dir, DecisionsFile))
	if err != nil {
		timeline.Close()
		fills.Close()
		return nil, err
	}
	return &SinkSet{timeline: timeline, fills: fills, decisions: decisions}, nil
}

// Sinks exposes the set in the form the engine takes.
func (s *SinkSet) Sinks() Sinks {
	return Sinks{Timeline: s.timeline, Fills: s.fills, Decisions: s.decisions}
}

// Close flushes and closes all streamed artifacts. Safe to call twice.
func (s *SinkSet) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	for _, w := range []*jsonl.Writer{s.timeline, s.fills, s.decisions} {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// writeLines writes one line-oriented artifact through a fresh writer.
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

// WriteFinalArtifacts writes everything that is only known once the run
// is over: final order states, ledger, equity curve, opportunities (when
// any were recorded), summary, manifest and meta.
func WriteFinalArtifacts(dir string, orders []sim.Order, ledgerRows []portfolio.LedgerRow,
	curve []portfolio.EquityPoint, opps []strategy.Opportunity,
	summary *portfolio.Summary, manifest *RunManifest, meta *RunMeta) error {

	err := writeLines(dir, OrdersFile, func(w *jsonl.Writer) error {
		for i := range orders {
			if err := w.Write(orders[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = writeLines(dir, LedgerFile, func(w *jsonl.Writer) error {
		for i := range ledgerRows {
			if err := w.Write(ledgerRows[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = writeLines(dir, EquityCurveFile, func(w *jsonl.Writer) error {
		for i := range curve {
			if err := w.Write(curve[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(opps) > 0 {
		err = writeLines(dir, OpportunitiesFile, func(w *jsonl.Writer) error {
			for i := range opps {
				if err := w.Write(opps[i]); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	if err := jsonl.WritePretty(filepath.Join(dir, SummaryFile), summary); err != nil {
		return err
	}
	if err := jsonl.WritePretty(filepath.Join(dir, ManifestFile), manifest); err != nil {
		return err
	}
	return jsonl.WritePretty(filepath.Join(dir, MetaFile), meta)
}

package tape

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/polymarket-sim/internal/jsonl"
	"github.com/mselser95/polymarket-sim/pkg/websocket"
)

// Source delivers raw frames, typically a websocket.Manager. The frames
// channel closing ends the recording.
type Source interface {
	Frames() <-chan websocket.Frame
	Stats() websocket.Stats
	Warnings() []string
}

// Config holds recorder configuration.
type Config struct {
	Dir      string
	WSURL    string
	AssetIDs []string
	// Source labels the recording origin in meta.json, "live" by default.
	Source string
	// Duration bounds the recording wall clock. Zero records until the
	// context ends or the source closes.
	Duration    time.Duration
	RecvTimeout time.Duration
	Logger      *zap.Logger
}

// Recorder tees raw frames to raw_ws.jsonl and normalized events to
// events.jsonl, line by line, then writes meta.json on the way out.
type Recorder struct {
	cfg        Config
	logger     *zap.Logger
	normalizer *Normalizer

	frameSeq  int64
	warnings  []string
	startedAt time.Time
}

// NewRecorder creates a recorder for one tape directory.
func NewRecorder(cfg *Config) *Recorder {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := *cfg
	if c.Source == "" {
		c.Source = "live"
	}

	return &Recorder{
		cfg:        c,
		logger:     logger,
		normalizer: NewNormalizer(),
	}
}

// Run consumes the source until the context ends, the duration budget
// runs out, or the source closes. meta.json is written even when the
// recording stops early, so partial tapes stay loadable.
func (r *Recorder) Run(ctx context.Context, src Source) error {
	if err := os.MkdirAll(r.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("create tape dir: %w", err)
	}

	rawWriter, err := jsonl.NewWriter(filepath.Join(r.cfg.Dir, RawFileName))
	if err != nil {
		return err
	}
	defer rawWriter.Close()

	eventWriter, err := jsonl.NewWriter(filepath.Join(r.cfg.Dir, EventsFileName))
	if err != nil {
		return err
	}
	defer eventWriter.Close()

	if r.cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Duration)
		defer cancel()
	}

	r.startedAt = time.Now()
	r.logger.Info("tape-recording-started",
		zap.String("dir", r.cfg.Dir),
		zap.Int("asset-count", len(r.cfg.AssetIDs)),
		zap.Duration("duration", r.cfg.Duration))

loop:
	for {
		select {
		case <-ctx.Done():
			break loop

		case frame, ok := <-src.Frames():
			if !ok {
				break loop
			}
			if err := r.record(rawWriter, eventWriter, frame); err != nil {
				return err
			}
		}
	}

	return r.writeMeta(src)
}

// record writes one frame and its normalized events.
func (r *Recorder) record(rawWriter, eventWriter *jsonl.Writer, frame websocket.Frame) error {
	raw := RawFrame{FrameSeq: r.frameSeq, TsRecv: frame.TsRecv, Raw: string(frame.Data)}
	if err := rawWriter.Write(&raw); err != nil {
		return fmt.Errorf("record raw frame %d: %w", r.frameSeq, err)
	}
	r.frameSeq++
	FramesRecordedTotal.Inc()

	events, warnings := r.normalizer.Normalize(frame.Data, frame.TsRecv)
	for _, w := range warnings {
		r.warn(w)
	}

	for i := range events {
		if err := eventWriter.Write(&events[i]); err != nil {
			return fmt.Errorf("record event %d: %w", events[i].Seq, err)
		}
		EventsRecordedTotal.Inc()
	}

	return nil
}

func (r *Recorder) warn(w string) {
	r.warnings = append(r.warnings, w)
	NormalizeWarningsTotal.Inc()
	r.logger.Warn("tape-frame-warning", zap.String("detail", w))
}

func (r *Recorder) writeMeta(src Source) error {
	stats := src.Stats()

	warnings := append(src.Warnings(), r.warnings...)
	if warnings == nil {
		warnings = []string{}
	}

	assetIDs := r.cfg.AssetIDs
	if assetIDs == nil {
		assetIDs = []string{}
	}

	meta := Meta{
		WSURL:              r.cfg.WSURL,
		AssetIDs:           assetIDs,
		Source:             r.cfg.Source,
		StartedAt:          r.startedAt.UTC().Format(time.RFC3339),
		EndedAt:            time.Now().UTC().Format(time.RFC3339),
		RecvTimeoutSeconds: r.cfg.RecvTimeout.Seconds(),
		ReconnectCount:     stats.Reconnects,
		FrameCount:         r.frameSeq,
		EventCount:         r.normalizer.Count(),
		Warnings:           warnings,
	}

	if err := jsonl.WritePretty(filepath.Join(r.cfg.Dir, MetaFileName), &meta); err != nil {
		return err
	}

	r.logger.Info("tape-recording-complete",
		zap.String("dir", r.cfg.Dir),
		zap.Int64("frames", meta.FrameCount),
		zap.Int64("events", meta.EventCount),
		zap.Int64("reconnects", meta.ReconnectCount),
		zap.Int("warnings", len(warnings)))

	return nil
}

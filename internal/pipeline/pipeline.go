// Package pipeline turns gate outcomes into user feedback: it picks the code
// to report from a decode batch, applies the debounce window, and hands
// accepted scans to the feedback dispatcher.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/alfredjeanlab/scanline/internal/debounce"
	"github.com/alfredjeanlab/scanline/internal/events"
	"github.com/alfredjeanlab/scanline/internal/gate"
	"github.com/alfredjeanlab/scanline/internal/model"
)

// Reporter receives accepted detections. *feedback.Dispatcher implements it.
type Reporter interface {
	Report(ctx context.Context, det model.Detection) bool
}

// Counter receives scan counters. *stats.Tracker implements it.
type Counter interface {
	ScanAccepted()
	ScanDuplicate()
}

// Handler implements gate.Handler.
type Handler struct {
	dedup     *debounce.Deduplicator
	reporter  Reporter
	counter   Counter
	publisher events.Publisher
	logger    *slog.Logger
}

var _ gate.Handler = (*Handler)(nil)

// Config holds the handler's collaborators. Counter, Publisher and Logger
// are optional.
type Config struct {
	Dedup     *debounce.Deduplicator
	Reporter  Reporter
	Counter   Counter
	Publisher events.Publisher
	Logger    *slog.Logger
}

// New creates a Handler.
func New(cfg Config) *Handler {
	h := &Handler{
		dedup:     cfg.Dedup,
		reporter:  cfg.Reporter,
		counter:   cfg.Counter,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
	}
	if h.dedup == nil {
		h.dedup = debounce.New()
	}
	if h.counter == nil {
		h.counter = nopCounter{}
	}
	if h.publisher == nil {
		h.publisher = &events.NoopPublisher{}
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// HandleOutcome processes one decode outcome. Decoder errors and empty
// batches report nothing; a repeat of the last value inside the debounce
// window is counted and dropped.
func (h *Handler) HandleOutcome(ctx context.Context, o gate.Outcome) {
	if o.Err != nil {
		h.logger.Warn("pipeline: decode failed", "seq", o.FrameSeq, "err", o.Err)
		if err := h.publisher.Publish(ctx, events.TopicDecodeFailed, events.DecodeFailed{
			FrameSeq: o.FrameSeq,
			Error:    o.Err.Error(),
		}); err != nil {
			h.logger.Warn("pipeline: publish failed", "topic", events.TopicDecodeFailed, "err", err)
		}
		return
	}

	code, ok := First(o.Codes)
	if !ok {
		return
	}

	if !h.dedup.Accept(code.RawValue, o.CompletedAt) {
		h.counter.ScanDuplicate()
		h.logger.Debug("pipeline: duplicate suppressed", "seq", o.FrameSeq)
		return
	}
	h.counter.ScanAccepted()

	h.reporter.Report(ctx, model.Detection{
		Code:     code,
		Latency:  o.Latency,
		FrameSeq: o.FrameSeq,
	})
}

// First returns the first code in a batch with a non-empty raw value. Later
// codes in the same frame are ignored.
func First(codes []model.DetectedCode) (model.DetectedCode, bool) {
	for _, c := range codes {
		if c.RawValue != "" {
			return c, true
		}
	}
	return model.DetectedCode{}, false
}

type nopCounter struct{}

func (nopCounter) ScanAccepted()  {}
func (nopCounter) ScanDuplicate() {}

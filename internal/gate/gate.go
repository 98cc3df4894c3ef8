// Package gate implements the single-flight decode guard between the frame
// source and the decode engine.
//
// At most one frame is inside the decoder at any time. A frame that arrives
// while a decode is outstanding is released immediately instead of queued:
// the source already keeps only the latest frame, so the next delivery after
// the decode completes is as fresh as it can be.
//
// Completion handling is the only place that clears the busy flag, and it
// runs in a deferred block so that every path (result, decoder error, panic
// in the handler) restores capacity and releases the frame exactly once.
package gate

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/alfredjeanlab/scanline/internal/model"
	"github.com/alfredjeanlab/scanline/internal/stats"
)

// Decoder is the recognition engine. Decode may block; the gate calls it off
// the delivery goroutine.
type Decoder interface {
	Decode(ctx context.Context, img image.Image, rotation int) ([]model.DetectedCode, error)
}

// Outcome is the result of one decoded frame.
type Outcome struct {
	FrameSeq    uint64
	Codes       []model.DetectedCode
	Err         error
	Latency     time.Duration // from acceptance in OnFrame to decoder return
	CompletedAt time.Time
}

// Handler consumes decode outcomes. It is only called for frames accepted
// while the gate was open and not closed since.
type Handler interface {
	HandleOutcome(ctx context.Context, o Outcome)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, o Outcome)

// HandleOutcome calls f(ctx, o).
func (f HandlerFunc) HandleOutcome(ctx context.Context, o Outcome) { f(ctx, o) }

// Recorder receives gate counters. *stats.Tracker implements it.
type Recorder interface {
	FrameDelivered()
	FrameDropped(reason string)
	DecodeStarted()
	DecodeFinished(latency time.Duration, err error, found int)
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// WithRecorder sets the counter sink.
func WithRecorder(r Recorder) Option {
	return func(g *Gate) { g.rec = r }
}

// WithClock overrides time.Now for latency measurement.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// Gate is the single-flight decode guard. It starts closed.
type Gate struct {
	decoder Decoder
	handler Handler
	rec     Recorder
	logger  *slog.Logger
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// reporting is read-held while an outcome is with the handler. Close
	// and Shutdown take it exclusively, so no outcome of a closed epoch is
	// still being handled once they return.
	reporting sync.RWMutex

	mu       sync.Mutex
	open     bool
	busy     bool
	shutdown bool
	epoch    uint64
}

// New creates a closed gate feeding decoder results to handler.
func New(decoder Decoder, handler Handler, opts ...Option) *Gate {
	ctx, cancel := context.WithCancel(context.Background())
	g := &Gate{
		decoder: decoder,
		handler: handler,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	if g.rec == nil {
		g.rec = nopRecorder{}
	}
	return g
}

// Open starts accepting frames.
func (g *Gate) Open() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.shutdown {
		return
	}
	g.open = true
}

// Close stops accepting frames. A decode already in flight still completes
// and releases its frame, but its outcome is not handed to the handler. If
// an outcome is being handled when Close is called, Close waits for it.
// The handler must not call Close or Shutdown.
func (g *Gate) Close() {
	g.reporting.Lock()
	defer g.reporting.Unlock()
	g.mu.Lock()
	g.open = false
	g.epoch++
	g.mu.Unlock()
}

// Busy reports whether a decode is outstanding.
func (g *Gate) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy
}

// Wait blocks until no decode is in flight.
func (g *Gate) Wait() {
	g.wg.Wait()
}

// Shutdown closes the gate permanently, cancels the decode context, and waits
// for any in-flight decode to finish.
func (g *Gate) Shutdown() {
	g.reporting.Lock()
	g.mu.Lock()
	g.open = false
	g.shutdown = true
	g.epoch++
	g.mu.Unlock()
	g.reporting.Unlock()
	g.cancel()
	g.wg.Wait()
}

// OnFrame takes ownership of f. The frame is either released immediately
// (gate closed, busy, or no payload) or submitted for decoding.
func (g *Gate) OnFrame(f *model.Frame) {
	g.rec.FrameDelivered()

	g.mu.Lock()
	var reason string
	switch {
	case !g.open:
		reason = stats.DropClosed
	case g.busy:
		reason = stats.DropBusy
	case f.Image == nil:
		reason = stats.DropEmpty
	}
	if reason != "" {
		g.mu.Unlock()
		g.rec.FrameDropped(reason)
		g.release(f)
		g.logger.Debug("gate: frame dropped", "seq", f.Seq, "reason", reason)
		return
	}
	g.busy = true
	epoch := g.epoch
	g.wg.Add(1)
	g.mu.Unlock()

	g.rec.DecodeStarted()
	go g.decode(f, epoch, g.now())
}

func (g *Gate) decode(f *model.Frame, epoch uint64, start time.Time) {
	defer g.wg.Done()
	defer g.complete(f)

	finished := false
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("gate: panic recovered in decode completion",
				"seq", f.Seq,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			if !finished {
				g.rec.DecodeFinished(g.now().Sub(start), fmt.Errorf("decoder panic: %v", r), 0)
			}
		}
	}()

	codes, err := g.decoder.Decode(g.ctx, f.Image, f.Rotation)
	done := g.now()
	latency := done.Sub(start)
	finished = true
	g.rec.DecodeFinished(latency, err, len(codes))

	g.report(epoch, Outcome{
		FrameSeq:    f.Seq,
		Codes:       codes,
		Err:         err,
		Latency:     latency,
		CompletedAt: done,
	})
}

// report hands o to the handler if the epoch it was decoded in is still
// current, holding off Close until the handler returns.
func (g *Gate) report(epoch uint64, o Outcome) {
	g.reporting.RLock()
	defer g.reporting.RUnlock()
	if !g.current(epoch) {
		g.logger.Debug("gate: discarding result after close", "seq", o.FrameSeq)
		return
	}
	g.handler.HandleOutcome(g.ctx, o)
}

// complete restores capacity before releasing the frame, so a source that
// waits on the release can deliver straight into an idle gate.
func (g *Gate) complete(f *model.Frame) {
	g.mu.Lock()
	g.busy = false
	g.mu.Unlock()
	g.release(f)
}

func (g *Gate) current(epoch uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.open && g.epoch == epoch
}

func (g *Gate) release(f *model.Frame) {
	if err := f.Release(); err != nil {
		g.logger.Error("gate: frame release failed", "seq", f.Seq, "err", err)
	}
}

type nopRecorder struct{}

func (nopRecorder) FrameDelivered()                          {}
func (nopRecorder) FrameDropped(string)                      {}
func (nopRecorder) DecodeStarted()                           {}
func (nopRecorder) DecodeFinished(time.Duration, error, int) {}

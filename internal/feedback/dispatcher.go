// Package feedback delivers accepted scans to the user: the result display,
// a confirmation tone, a haptic pulse, and the scan log.
//
// Every sink is best-effort. A sink that errors or panics is logged and
// skipped; the remaining sinks still run.
package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/alfredjeanlab/scanline/internal/model"
)

// Feedback timings.
const (
	ToneDuration  = 150 * time.Millisecond
	PulseDuration = 80 * time.Millisecond
)

// Display shows the decoded value to the user.
type Display interface {
	SetResult(value string) error
}

// StatusDisplay is implemented by displays that also have a status line.
type StatusDisplay interface {
	SetStatus(text string) error
}

// Tone plays the confirmation beep.
type Tone interface {
	PlayBeep() error
}

// Haptic drives the vibration unit, if there is one.
type Haptic interface {
	HasVibrator() bool
	Pulse(d time.Duration) error
}

// Record is one accepted scan as written to the scan log.
type Record struct {
	Value    string
	Format   model.Format
	Latency  time.Duration
	FrameSeq uint64
	At       time.Time
}

// Recorder writes accepted scans somewhere durable or observable.
type Recorder interface {
	Record(ctx context.Context, r Record) error
}

// Sinks groups the feedback outputs. Nil sinks are skipped.
type Sinks struct {
	Display  Display
	Tone     Tone
	Haptic   Haptic
	Recorder Recorder
}

// Dispatcher fans an accepted detection out to the sinks. It starts
// suspended; the session controller resumes it when a session becomes active.
type Dispatcher struct {
	sinks  Sinks
	logger *slog.Logger

	mu     sync.RWMutex
	active bool
}

// NewDispatcher creates a suspended dispatcher.
func NewDispatcher(sinks Sinks, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{sinks: sinks, logger: logger}
}

// Resume lets Report reach the sinks.
func (d *Dispatcher) Resume() {
	d.mu.Lock()
	d.active = true
	d.mu.Unlock()
}

// Suspend makes Report discard detections. It waits for a Report already
// running to finish, so no sink fires after Suspend returns.
func (d *Dispatcher) Suspend() {
	d.mu.Lock()
	d.active = false
	d.mu.Unlock()
}

// Active reports whether the dispatcher is delivering.
func (d *Dispatcher) Active() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.active
}

// Report delivers det to every sink. It returns false, doing nothing, while
// suspended.
func (d *Dispatcher) Report(ctx context.Context, det model.Detection) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.active {
		d.logger.Debug("feedback: suspended, detection discarded", "seq", det.FrameSeq)
		return false
	}

	value := det.Code.RawValue
	if s := d.sinks.Display; s != nil {
		d.call("display", func() error { return s.SetResult(value) })
		if sd, ok := s.(StatusDisplay); ok {
			status := fmt.Sprintf("Scan OK (%d ms)", det.Latency.Milliseconds())
			d.call("status", func() error { return sd.SetStatus(status) })
		}
	}
	if s := d.sinks.Tone; s != nil {
		d.call("tone", s.PlayBeep)
	}
	if s := d.sinks.Haptic; s != nil {
		d.call("haptic", func() error {
			if !s.HasVibrator() {
				return nil
			}
			return s.Pulse(PulseDuration)
		})
	}
	if s := d.sinks.Recorder; s != nil {
		rec := Record{
			Value:    value,
			Format:   det.Code.Format,
			Latency:  det.Latency,
			FrameSeq: det.FrameSeq,
			At:       det.Code.DetectedAt,
		}
		d.call("recorder", func() error { return s.Record(ctx, rec) })
	}
	return true
}

// call runs one sink with its failure contained.
func (d *Dispatcher) call(sink string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("feedback: panic recovered in sink",
				"sink", sink,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	if err := fn(); err != nil {
		d.logger.Warn("feedback: sink failed", "sink", sink, "err", err)
	}
}

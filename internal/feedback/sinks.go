package feedback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alfredjeanlab/scanline/internal/command"
	"github.com/alfredjeanlab/scanline/internal/events"
	"github.com/alfredjeanlab/scanline/internal/ui"
)

// TerminalDisplay writes results and status lines to a terminal.
type TerminalDisplay struct {
	mu      sync.Mutex
	w       io.Writer
	palette ui.Palette
	last    string
}

// NewTerminalDisplay writes to w using palette.
func NewTerminalDisplay(w io.Writer, palette ui.Palette) *TerminalDisplay {
	return &TerminalDisplay{w: w, palette: palette}
}

func (d *TerminalDisplay) SetResult(value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last = value
	_, err := fmt.Fprintf(d.w, "%s %s\n", d.palette.Accent("▶"), value)
	return err
}

func (d *TerminalDisplay) SetStatus(text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := fmt.Fprintf(d.w, "  %s\n", d.palette.OK(text))
	return err
}

// Last returns the most recent result shown.
func (d *TerminalDisplay) Last() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// BellTone rings the terminal bell.
type BellTone struct {
	W io.Writer
}

func (b BellTone) PlayBeep() error {
	_, err := io.WriteString(b.W, "\a")
	return err
}

// NoHaptic is a device without a vibration unit.
type NoHaptic struct{}

func (NoHaptic) HasVibrator() bool { return false }

func (NoHaptic) Pulse(time.Duration) error { return nil }

// ErrCommandRunning is returned when a command sink is asked to fire while
// its previous invocation is still running.
var ErrCommandRunning = errors.New("feedback command still running")

// asyncCommand runs a shell command in the background, one at a time, so a
// slow player never stalls the decode completion path.
type asyncCommand struct {
	name    string
	command string
	timeout time.Duration
	logger  *slog.Logger
	running atomic.Bool
	wg      sync.WaitGroup
}

func (c *asyncCommand) fire(env map[string]string) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrCommandRunning
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.running.Store(false)
		res := command.Execute(context.Background(), c.command, c.timeout, env)
		if res.Err != nil {
			c.logger.Warn("feedback: command failed",
				"sink", c.name, "err", res.Err, "output", res.Output)
			return
		}
		c.logger.Debug("feedback: command done", "sink", c.name, "duration", res.Duration)
	}()
	return nil
}

// CommandTone plays the beep with an external command, e.g. "aplay beep.wav".
// SCANLINE_TONE_MS carries the tone duration.
type CommandTone struct {
	cmd *asyncCommand
}

// NewCommandTone creates a tone sink running command with timeout.
func NewCommandTone(cmd string, timeout time.Duration, logger *slog.Logger) *CommandTone {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandTone{cmd: &asyncCommand{name: "tone", command: cmd, timeout: timeout, logger: logger}}
}

func (t *CommandTone) PlayBeep() error {
	return t.cmd.fire(map[string]string{
		"SCANLINE_TONE_MS": strconv.FormatInt(ToneDuration.Milliseconds(), 10),
	})
}

// Wait blocks until a running beep command exits.
func (t *CommandTone) Wait() { t.cmd.wg.Wait() }

// CommandHaptic pulses a vibration unit through an external command.
// SCANLINE_PULSE_MS carries the pulse length.
type CommandHaptic struct {
	cmd *asyncCommand
}

// NewCommandHaptic creates a haptic sink running command with timeout. An
// empty command means the device has no vibration unit.
func NewCommandHaptic(cmd string, timeout time.Duration, logger *slog.Logger) *CommandHaptic {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandHaptic{cmd: &asyncCommand{name: "haptic", command: cmd, timeout: timeout, logger: logger}}
}

func (h *CommandHaptic) HasVibrator() bool { return h.cmd.command != "" }

func (h *CommandHaptic) Pulse(d time.Duration) error {
	return h.cmd.fire(map[string]string{
		"SCANLINE_PULSE_MS": strconv.FormatInt(d.Milliseconds(), 10),
	})
}

// Wait blocks until a running pulse command exits.
func (h *CommandHaptic) Wait() { h.cmd.wg.Wait() }

// LogRecorder writes each accepted scan, value included, to the local log.
type LogRecorder struct {
	Logger *slog.Logger
}

func (r LogRecorder) Record(ctx context.Context, rec Record) error {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "feedback: scan accepted",
		"value", rec.Value,
		"format", rec.Format,
		"latency_ms", rec.Latency.Milliseconds(),
		"seq", rec.FrameSeq,
	)
	return nil
}

// EventRecorder publishes a value-free summary of each accepted scan.
type EventRecorder struct {
	Publisher events.Publisher
}

func (r EventRecorder) Record(ctx context.Context, rec Record) error {
	return r.Publisher.Publish(ctx, events.TopicScanAccepted, events.ScanAccepted{
		Format:      rec.Format.String(),
		ValueLength: len(rec.Value),
		LatencyMS:   float64(rec.Latency) / float64(time.Millisecond),
		FrameSeq:    rec.FrameSeq,
		At:          rec.At,
	})
}

// MultiRecorder records to each recorder in turn and joins their errors.
type MultiRecorder []Recorder

func (m MultiRecorder) Record(ctx context.Context, rec Record) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

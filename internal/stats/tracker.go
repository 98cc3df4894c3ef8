// Package stats keeps live counters for the capture-to-detection pipeline.
//
// The Tracker is fed directly by the frame gate and the scan pipeline. A
// background reporter goroutine periodically snapshots the counters and hands
// them to a callback (log line, event bus, export). The counters are the
// quickest way to spot a gate that stopped releasing capacity: delivered keeps
// climbing while decoded stays flat and every frame is dropped as busy.
package stats

import (
	"log/slog"
	"sync"
	"time"
)

// Drop reasons reported by the frame gate.
const (
	DropBusy   = "busy"
	DropClosed = "closed"
	DropEmpty  = "empty"
)

// Snapshot is a point-in-time copy of the pipeline counters.
type Snapshot struct {
	Since           time.Time `json:"since"`
	TakenAt         time.Time `json:"taken_at"`
	FramesDelivered uint64    `json:"frames_delivered"`
	FramesSubmitted uint64    `json:"frames_submitted"` // handed to the decoder
	FramesDecoded   uint64    `json:"frames_decoded"`   // decoder returned, success or failure
	DroppedBusy     uint64    `json:"dropped_busy"`
	DroppedClosed   uint64    `json:"dropped_closed"`
	DroppedEmpty    uint64    `json:"dropped_empty"`
	InFlight        uint64    `json:"in_flight"`
	DecodeFailures  uint64    `json:"decode_failures"`
	EmptyResults    uint64    `json:"empty_results"`
	ScansAccepted   uint64    `json:"scans_accepted"`
	ScansDuplicate  uint64    `json:"scans_duplicate"`
	LastLatencyMS   float64   `json:"last_latency_ms"`
	AvgLatencyMS    float64   `json:"avg_latency_ms"`
	MaxLatencyMS    float64   `json:"max_latency_ms"`
	LastFrameAt     time.Time `json:"last_frame_at,omitempty"`
	LastScanAt      time.Time `json:"last_scan_at,omitempty"`
}

// Dropped returns the total number of frames released without a decode.
func (s Snapshot) Dropped() uint64 {
	return s.DroppedBusy + s.DroppedClosed + s.DroppedEmpty
}

// ReporterConfig configures the background reporter.
type ReporterConfig struct {
	// Interval is how often a snapshot is taken.
	// Default: 60 seconds.
	Interval time.Duration

	// OnReport is called with each snapshot, outside the lock.
	OnReport func(Snapshot)
}

// Tracker accumulates pipeline counters. All methods are safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	started time.Time
	c       counters
	now     func() time.Time

	reporterStop chan struct{}
	reporterDone chan struct{}
}

type counters struct {
	delivered, submitted, decoded     uint64
	droppedBusy, droppedClosed, empty uint64
	failures, emptyResults            uint64
	accepted, duplicate               uint64
	latencyTotal, latencyMax, latency time.Duration
	lastFrameAt, lastScanAt           time.Time
}

// New creates a new tracker.
func New() *Tracker {
	return &Tracker{
		started: time.Now(),
		now:     time.Now,
	}
}

// FrameDelivered counts a frame arriving at the gate.
func (t *Tracker) FrameDelivered() {
	t.mu.Lock()
	t.c.delivered++
	t.c.lastFrameAt = t.now()
	t.mu.Unlock()
}

// FrameDropped counts a frame released without being decoded.
func (t *Tracker) FrameDropped(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch reason {
	case DropBusy:
		t.c.droppedBusy++
	case DropClosed:
		t.c.droppedClosed++
	case DropEmpty:
		t.c.empty++
	default:
		slog.Warn("stats: unknown drop reason", "reason", reason)
		t.c.droppedBusy++
	}
}

// DecodeStarted counts a frame handed to the decoder.
func (t *Tracker) DecodeStarted() {
	t.mu.Lock()
	t.c.submitted++
	t.mu.Unlock()
}

// DecodeFinished counts a decoder completion.
func (t *Tracker) DecodeFinished(latency time.Duration, err error, found int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.c.decoded++
	t.c.latency = latency
	t.c.latencyTotal += latency
	if latency > t.c.latencyMax {
		t.c.latencyMax = latency
	}
	switch {
	case err != nil:
		t.c.failures++
	case found == 0:
		t.c.emptyResults++
	}
}

// ScanAccepted counts a scan forwarded to feedback.
func (t *Tracker) ScanAccepted() {
	t.mu.Lock()
	t.c.accepted++
	t.c.lastScanAt = t.now()
	t.mu.Unlock()
}

// ScanDuplicate counts a scan suppressed by the debounce window.
func (t *Tracker) ScanDuplicate() {
	t.mu.Lock()
	t.c.duplicate++
	t.mu.Unlock()
}

// Snapshot returns the current counters.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	c := t.c
	s := Snapshot{
		Since:           t.started,
		TakenAt:         t.now(),
		FramesDelivered: c.delivered,
		FramesSubmitted: c.submitted,
		FramesDecoded:   c.decoded,
		DroppedBusy:     c.droppedBusy,
		DroppedClosed:   c.droppedClosed,
		DroppedEmpty:    c.empty,
		DecodeFailures:  c.failures,
		EmptyResults:    c.emptyResults,
		ScansAccepted:   c.accepted,
		ScansDuplicate:  c.duplicate,
		LastLatencyMS:   ms(c.latency),
		MaxLatencyMS:    ms(c.latencyMax),
		LastFrameAt:     c.lastFrameAt,
		LastScanAt:      c.lastScanAt,
	}
	if c.submitted > c.decoded {
		s.InFlight = c.submitted - c.decoded
	}
	if c.decoded > 0 {
		s.AvgLatencyMS = ms(c.latencyTotal / time.Duration(c.decoded))
	}
	return s
}

// StartReporter launches a background goroutine that periodically snapshots
// the counters. Call Stop() to shut it down.
func (t *Tracker) StartReporter(cfg *ReporterConfig) {
	if cfg == nil {
		cfg = &ReporterConfig{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}

	t.reporterStop = make(chan struct{})
	t.reporterDone = make(chan struct{})

	go t.reportLoop(cfg)
	slog.Info("stats: reporter started", "interval", cfg.Interval)
}

// Stop shuts down the reporter goroutine.
func (t *Tracker) Stop() {
	if t.reporterStop != nil {
		close(t.reporterStop)
		<-t.reporterDone
		t.reporterStop = nil
		t.reporterDone = nil
	}
}

func (t *Tracker) reportLoop(cfg *ReporterConfig) {
	defer close(t.reporterDone)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.reporterStop:
			return
		case <-ticker.C:
			snap := t.Snapshot()
			if cfg.OnReport != nil {
				cfg.OnReport(snap)
			}
		}
	}
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

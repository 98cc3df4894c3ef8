// Package export periodically writes pipeline counters to durable
// destinations (S3-compatible buckets, local files) as JSONL.
package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/scanline/internal/model"
	"github.com/alfredjeanlab/scanline/internal/stats"
)

// MaxHistory is how many snapshots an export carries: a day at the default
// five-minute interval.
const MaxHistory = 288

// Destination is the interface for an export target (S3, file, etc.).
type Destination interface {
	// Write replaces the destination's content with the JSONL payload.
	Write(ctx context.Context, data []byte) error
}

// Source supplies the counters to export.
type Source interface {
	Snapshot() stats.Snapshot
}

// Scheduler runs periodic exports to one or more destinations.
type Scheduler struct {
	source       Source
	state        func() model.SessionState
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	mu      sync.Mutex
	history []stats.Snapshot

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler that exports snapshots from source to the
// given destinations at the specified interval. state, if non-nil, is
// recorded in each export header.
func NewScheduler(source Source, state func() model.SessionState, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		source:       source,
		state:        state,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
	}
}

// Start begins periodic export. It runs an initial export immediately, then
// on each tick.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the current export (if any) to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.ExportOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ExportOnce(ctx)
		}
	}
}

// ExportOnce takes a snapshot, adds it to the history, and writes the
// history to every destination.
func (s *Scheduler) ExportOnce(ctx context.Context) {
	snap := s.source.Snapshot()
	state := model.SessionIdle
	if s.state != nil {
		state = s.state()
	}

	s.mu.Lock()
	s.history = append(s.history, snap)
	if len(s.history) > MaxHistory {
		s.history = append([]stats.Snapshot(nil), s.history[len(s.history)-MaxHistory:]...)
	}
	history := append([]stats.Snapshot(nil), s.history...)
	s.mu.Unlock()

	var buf bytes.Buffer
	if err := ExportJSONL(&buf, state, history); err != nil {
		s.logger.Error("export: encode failed", "err", err)
		return
	}
	data := buf.Bytes()

	failed := 0
	for i, dest := range s.destinations {
		if err := dest.Write(ctx, data); err != nil {
			failed++
			s.logger.Error("export: destination write failed", "destination", fmt.Sprintf("%d", i), "err", err)
		}
	}

	s.logger.Info("export: completed", "destinations", len(s.destinations), "failed", failed, "snapshots", len(history), "bytes", len(data))
}

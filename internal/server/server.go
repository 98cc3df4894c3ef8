// Package server exposes the scanner daemon over HTTP (control API and an SSE
// diagnostics stream) and gRPC (the standard health service).
package server

import (
	"context"
	"log/slog"

	"github.com/alfredjeanlab/scanline/internal/session"
	"github.com/alfredjeanlab/scanline/internal/stats"
)

// Controller is the session surface the HTTP API drives.
type Controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	SetTorch(ctx context.Context, enabled bool) error
	ToggleTorch(ctx context.Context) (bool, error)
	FocusAt(ctx context.Context, x, y float64) error
	Status() session.Status
}

// StatsSource supplies the pipeline counters.
type StatsSource interface {
	Snapshot() stats.Snapshot
}

// Server serves the control API.
type Server struct {
	ctrl   Controller
	stats  StatsSource
	hub    *EventHub
	logger *slog.Logger
}

// New returns a Server. A nil hub gets a fresh one; a nil logger uses the default.
func New(ctrl Controller, src StatsSource, hub *EventHub, logger *slog.Logger) *Server {
	if hub == nil {
		hub = NewEventHub()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{ctrl: ctrl, stats: src, hub: hub, logger: logger}
}

// Hub returns the SSE hub so it can be added to the event fanout.
func (s *Server) Hub() *EventHub { return s.hub }

// Package client talks to a running scanline daemon: the HTTP control API,
// its SSE diagnostics stream, and the gRPC health service.
package client

import (
	"context"
	"encoding/json"

	"github.com/alfredjeanlab/scanline/internal/session"
	"github.com/alfredjeanlab/scanline/internal/stats"
)

// ScannerClient is the interface the scan CLI uses to drive the daemon.
type ScannerClient interface {
	Start(ctx context.Context) (*session.Status, error)
	Stop(ctx context.Context) (*session.Status, error)
	SetTorch(ctx context.Context, enabled bool) (*TorchState, error)
	ToggleTorch(ctx context.Context) (*TorchState, error)
	FocusAt(ctx context.Context, x, y float64) error
	Status(ctx context.Context) (*session.Status, error)
	Stats(ctx context.Context) (*stats.Snapshot, error)
	Health(ctx context.Context) (string, error)
	Close() error
}

// TorchState is the daemon's answer to a torch command.
type TorchState struct {
	Enabled bool `json:"enabled"`
	TorchOn bool `json:"torch_on"`
}

// Event is one message from the diagnostics stream.
type Event struct {
	ID    string
	Topic string
	Data  json.RawMessage
}

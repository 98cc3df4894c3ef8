// Package events publishes scanner diagnostics on an event bus.
//
// Payloads describe what the pipeline is doing (session transitions, torch
// and focus commands, scan latency, counters). They never carry a decoded
// value: raw values stay on the local display and the local log.
package events

import (
	"context"
	"time"

	"github.com/alfredjeanlab/scanline/internal/stats"
)

// Event topic constants
const (
	TopicSessionAcquiring     = "scan.session.acquiring"
	TopicSessionStarted       = "scan.session.started"
	TopicSessionStopped       = "scan.session.stopped"
	TopicSessionAcquireFailed = "scan.session.acquire_failed"

	TopicTorchChanged   = "scan.torch.changed"
	TopicFocusRequested = "scan.focus.requested"

	TopicScanAccepted  = "scan.detection.accepted"
	TopicDecodeFailed  = "scan.decode.failed"
	TopicStatsReported = "scan.stats.reported"
)

// Event types

type SessionAcquiring struct {
	SessionID string `json:"session_id"`
}

type SessionStarted struct {
	SessionID string `json:"session_id"`
	Torch     bool   `json:"torch"`
	HasFlash  bool   `json:"has_flash"`
}

type SessionStopped struct {
	SessionID string `json:"session_id"`
	Duration  string `json:"duration"`
}

type SessionAcquireFailed struct {
	SessionID string `json:"session_id,omitempty"`
	Reason    string `json:"reason"`
}

type TorchChanged struct {
	SessionID     string `json:"session_id,omitempty"`
	UserRequested bool   `json:"user_requested"`
	Applied       bool   `json:"applied"` // false when deferred or no flash unit
	TorchOn       bool   `json:"torch_on"`
}

type FocusRequested struct {
	SessionID  string  `json:"session_id"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	AutoCancel string  `json:"auto_cancel"`
}

// ScanAccepted describes an accepted scan without its value.
type ScanAccepted struct {
	Format      string    `json:"format"`
	ValueLength int       `json:"value_length"`
	LatencyMS   float64   `json:"latency_ms"`
	FrameSeq    uint64    `json:"frame_seq"`
	At          time.Time `json:"at"`
}

type DecodeFailed struct {
	FrameSeq uint64 `json:"frame_seq"`
	Error    string `json:"error"`
}

type StatsReported struct {
	Stats stats.Snapshot `json:"stats"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

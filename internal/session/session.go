// Package session owns the camera lifecycle: acquiring the device, binding
// the frame source to the decode gate, applying the user's torch intent, and
// tearing everything down again.
//
// Every lifecycle operation holds one mutex for its whole duration,
// acquisition included, so start, stop, torch and focus requests never
// interleave. State is mirrored into an atomic snapshot for lock-free reads.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/alfredjeanlab/scanline/internal/model"
)

// FocusAutoCancel is how long a tap-to-focus request holds before the camera
// returns to continuous focus.
const FocusAutoCancel = 3 * time.Second

var (
	// ErrPermissionDenied means camera access was refused. The session never
	// leaves Idle.
	ErrPermissionDenied = errors.New("camera permission denied")

	// ErrAcquisitionFailed means the camera or frame source could not be
	// obtained. The session falls back to Idle; nothing retries.
	ErrAcquisitionFailed = errors.New("camera acquisition failed")

	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("session controller closed")
)

// PermissionChecker is the external camera access check.
type PermissionChecker interface {
	Granted(ctx context.Context) (bool, error)
}

// PermissionFunc adapts a function to PermissionChecker.
type PermissionFunc func(ctx context.Context) (bool, error)

func (f PermissionFunc) Granted(ctx context.Context) (bool, error) { return f(ctx) }

// Camera is an acquired capture device.
type Camera interface {
	HasFlashUnit() bool
	EnableTorch(enabled bool) error
	// MeteringPointFrom maps a point in preview coordinates to the sensor.
	MeteringPointFrom(x, y float64) model.MeteringPoint
	StartFocusAndMetering(ctx context.Context, p model.MeteringPoint, autoCancel time.Duration) error
	Release() error
}

// Provider hands out the camera.
type Provider interface {
	Acquire(ctx context.Context) (Camera, error)
}

// FrameSink receives frames and takes ownership of each one.
type FrameSink interface {
	OnFrame(f *model.Frame)
}

// Handle identifies one source binding.
type Handle string

// FrameSource delivers frames to a bound sink, keeping only the latest
// undelivered frame.
type FrameSource interface {
	Bind(sink FrameSink) (Handle, error)
	Unbind(h Handle) error
}

// Gate is the decode guard the controller opens and closes with the session.
type Gate interface {
	FrameSink
	Open()
	Close()
	Busy() bool
	Shutdown()
}

// Feedback is the dispatcher the controller resumes and suspends.
type Feedback interface {
	Resume()
	Suspend()
}

// Resetter is the deduplicator's reset hook.
type Resetter interface {
	Reset()
}

// Status is a point-in-time view of the controller.
type Status struct {
	State          model.SessionState `json:"state"`
	SessionID      string             `json:"session_id,omitempty"`
	StartedAt      time.Time          `json:"started_at,omitempty"`
	TorchRequested bool               `json:"torch_requested"`
	TorchOn        bool               `json:"torch_on"`
	HasFlash       bool               `json:"has_flash"`
	GateBusy       bool               `json:"gate_busy"`
}

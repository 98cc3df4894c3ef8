// Package device provides the capture hardware for hosts without a real
// camera: a virtual camera whose capabilities come from the device profile,
// and a frame source that replays image files from a directory.
package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/alfredjeanlab/scanline/internal/config"
	"github.com/alfredjeanlab/scanline/internal/model"
	"github.com/alfredjeanlab/scanline/internal/session"
)

var (
	ErrInUse    = errors.New("camera already acquired")
	ErrReleased = errors.New("camera released")
	ErrNoFlash  = errors.New("camera has no flash unit")
)

// VirtualProvider hands out a single VirtualCamera at a time.
type VirtualProvider struct {
	profile config.Profile
	logger  *slog.Logger

	mu   sync.Mutex
	held *VirtualCamera
}

// NewVirtualProvider creates a provider for profile.
func NewVirtualProvider(profile config.Profile, logger *slog.Logger) *VirtualProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &VirtualProvider{profile: profile, logger: logger}
}

// Acquire returns the camera. It fails while a previous camera is unreleased.
func (p *VirtualProvider) Acquire(ctx context.Context) (session.Camera, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.held != nil {
		return nil, ErrInUse
	}
	cam := &VirtualCamera{
		provider: p,
		flash:    p.profile.HasFlash,
		width:    float64(p.profile.PreviewWidth),
		height:   float64(p.profile.PreviewHeight),
		logger:   p.logger,
	}
	p.held = cam
	p.logger.Info("device: camera acquired", "profile", p.profile.Name, "flash", cam.flash)
	return cam, nil
}

// Current returns the acquired camera, or nil.
func (p *VirtualProvider) Current() *VirtualCamera {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.held
}

func (p *VirtualProvider) release(cam *VirtualCamera) {
	p.mu.Lock()
	if p.held == cam {
		p.held = nil
	}
	p.mu.Unlock()
}

// VirtualCamera tracks torch and focus state in memory.
type VirtualCamera struct {
	provider *VirtualProvider
	flash    bool
	width    float64
	height   float64
	logger   *slog.Logger

	mu         sync.Mutex
	torch      bool
	focusing   bool
	focusPoint model.MeteringPoint
	focusTimer *time.Timer
	released   bool
}

func (c *VirtualCamera) HasFlashUnit() bool { return c.flash }

func (c *VirtualCamera) EnableTorch(enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return ErrReleased
	}
	if !c.flash {
		return ErrNoFlash
	}
	c.torch = enabled
	c.logger.Debug("device: torch", "on", enabled)
	return nil
}

// TorchOn reports the torch hardware state.
func (c *VirtualCamera) TorchOn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.torch
}

// MeteringPointFrom normalizes preview coordinates by the preview size and
// clamps them to the sensor.
func (c *VirtualCamera) MeteringPointFrom(x, y float64) model.MeteringPoint {
	if c.width > 0 {
		x /= c.width
	}
	if c.height > 0 {
		y /= c.height
	}
	return model.MeteringPoint{X: clamp01(x), Y: clamp01(y)}
}

// StartFocusAndMetering focuses on p until autoCancel elapses.
func (c *VirtualCamera) StartFocusAndMetering(ctx context.Context, p model.MeteringPoint, autoCancel time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return ErrReleased
	}
	if autoCancel <= 0 {
		return fmt.Errorf("device: auto-cancel must be positive, got %v", autoCancel)
	}
	if c.focusTimer != nil {
		c.focusTimer.Stop()
	}
	c.focusing = true
	c.focusPoint = p
	var timer *time.Timer
	timer = time.AfterFunc(autoCancel, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.focusTimer != timer {
			return
		}
		c.focusing = false
		c.focusTimer = nil
		c.logger.Debug("device: focus auto-cancelled", "x", p.X, "y", p.Y)
	})
	c.focusTimer = timer
	c.logger.Info("device: focusing", "x", p.X, "y", p.Y, "auto_cancel", autoCancel)
	return nil
}

// Focus returns the current focus point and whether a focus request is held.
func (c *VirtualCamera) Focus() (model.MeteringPoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.focusPoint, c.focusing
}

// Release switches the torch off and hands the camera back to the provider.
func (c *VirtualCamera) Release() error {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return ErrReleased
	}
	c.released = true
	c.torch = false
	c.focusing = false
	if c.focusTimer != nil {
		c.focusTimer.Stop()
		c.focusTimer = nil
	}
	c.mu.Unlock()

	c.provider.release(c)
	c.logger.Info("device: camera released")
	return nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// DirPermission grants camera access when the frames directory is readable.
type DirPermission struct {
	Dir string
}

func (p DirPermission) Granted(context.Context) (bool, error) {
	info, err := os.Stat(p.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
			return false, nil
		}
		return false, err
	}
	if !info.IsDir() {
		return false, nil
	}
	f, err := os.Open(p.Dir)
	if err != nil {
		return false, nil
	}
	f.Close()
	return true, nil
}

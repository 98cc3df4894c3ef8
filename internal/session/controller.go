package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alfredjeanlab/scanline/internal/events"
	"github.com/alfredjeanlab/scanline/internal/idgen"
	"github.com/alfredjeanlab/scanline/internal/model"
)

// Config wires the controller to its collaborators. Permission, Dedup,
// Publisher, Logger, OnStateChange, NewID and Now are optional.
type Config struct {
	Permission PermissionChecker
	Provider   Provider
	Source     FrameSource
	Gate       Gate
	Feedback   Feedback
	Dedup      Resetter
	Publisher  events.Publisher
	Logger     *slog.Logger

	// OnStateChange is called after every transition, with the lock held.
	// It must not call back into the controller.
	OnStateChange func(model.SessionState)

	// NewID names each session. Defaults to idgen.Session.
	NewID func() (string, error)

	Now func() time.Time
}

// Controller is the session state machine.
type Controller struct {
	cfg    Config
	logger *slog.Logger
	pub    events.Publisher
	newID  func() (string, error)
	now    func() time.Time

	mu        sync.Mutex
	state     model.SessionState
	intent    model.TorchIntent
	torchOn   bool
	camera    Camera
	handle    Handle
	sessionID string
	startedAt time.Time
	closed    bool

	status atomic.Pointer[Status]
}

// New creates an idle controller.
func New(cfg Config) *Controller {
	c := &Controller{
		cfg:    cfg,
		logger: cfg.Logger,
		pub:    cfg.Publisher,
		newID:  cfg.NewID,
		now:    cfg.Now,
		state:  model.SessionIdle,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.pub == nil {
		c.pub = &events.NoopPublisher{}
	}
	if c.newID == nil {
		c.newID = idgen.Session
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.snapshot()
	return c
}

// Start acquires the camera and begins scanning. It is a no-op when a
// session is already active.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.state != model.SessionIdle {
		return nil
	}

	if err := c.checkPermission(ctx); err != nil {
		c.publish(ctx, events.TopicSessionAcquireFailed, events.SessionAcquireFailed{Reason: err.Error()})
		return err
	}

	id, err := c.newID()
	if err != nil {
		c.publish(ctx, events.TopicSessionAcquireFailed, events.SessionAcquireFailed{Reason: err.Error()})
		return fmt.Errorf("%w: %w", ErrAcquisitionFailed, err)
	}
	c.sessionID = id
	c.setState(model.SessionAcquiring)
	c.publish(ctx, events.TopicSessionAcquiring, events.SessionAcquiring{SessionID: id})

	if err := c.acquire(ctx); err != nil {
		c.logger.Warn("session: acquisition failed", "session", id, "err", err)
		c.sessionID = ""
		c.setState(model.SessionIdle)
		c.publish(ctx, events.TopicSessionAcquireFailed, events.SessionAcquireFailed{SessionID: id, Reason: err.Error()})
		return fmt.Errorf("%w: %w", ErrAcquisitionFailed, err)
	}

	c.applyIntent()
	c.startedAt = c.now()
	c.setState(model.SessionActive)
	c.logger.Info("session: started", "session", id, "torch", c.torchOn, "flash", c.camera.HasFlashUnit())
	c.publish(ctx, events.TopicSessionStarted, events.SessionStarted{
		SessionID: id,
		Torch:     c.torchOn,
		HasFlash:  c.camera.HasFlashUnit(),
	})
	return nil
}

func (c *Controller) checkPermission(ctx context.Context) error {
	if c.cfg.Permission == nil {
		return nil
	}
	ok, err := c.cfg.Permission.Granted(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}
	if !ok {
		return ErrPermissionDenied
	}
	return nil
}

// acquire obtains the camera and binds the source. On failure everything it
// obtained is given back.
func (c *Controller) acquire(ctx context.Context) error {
	cam, err := c.cfg.Provider.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring camera: %w", err)
	}

	c.cfg.Gate.Open()
	if c.cfg.Feedback != nil {
		c.cfg.Feedback.Resume()
	}
	h, err := c.cfg.Source.Bind(c.cfg.Gate)
	if err != nil {
		c.cfg.Gate.Close()
		if c.cfg.Feedback != nil {
			c.cfg.Feedback.Suspend()
		}
		if rerr := cam.Release(); rerr != nil {
			c.logger.Warn("session: camera release after failed bind", "err", rerr)
		}
		return fmt.Errorf("binding frame source: %w", err)
	}

	c.camera = cam
	c.handle = h
	c.torchOn = false
	return nil
}

// applyIntent turns the torch on for a fresh session if the user asked for it.
func (c *Controller) applyIntent() {
	if !c.intent.UserRequested || !c.camera.HasFlashUnit() {
		return
	}
	if err := c.camera.EnableTorch(true); err != nil {
		c.logger.Warn("session: applying torch intent", "err", err)
		return
	}
	c.torchOn = true
}

// Stop tears the session down. The torch is switched off before the camera
// is released; the intent is kept for the next Start. Teardown errors are
// returned joined, but the controller always ends Idle.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked(ctx)
}

func (c *Controller) stopLocked(ctx context.Context) error {
	if c.state == model.SessionIdle {
		return nil
	}
	id := c.sessionID
	c.setState(model.SessionStopping)

	var errs []error
	if c.torchOn {
		if err := c.camera.EnableTorch(false); err != nil {
			errs = append(errs, fmt.Errorf("torch off: %w", err))
		}
		c.torchOn = false
	}

	// Closing the gate first means a decode still in flight completes
	// without reaching feedback.
	c.cfg.Gate.Close()
	if c.cfg.Feedback != nil {
		c.cfg.Feedback.Suspend()
	}
	if err := c.cfg.Source.Unbind(c.handle); err != nil {
		errs = append(errs, fmt.Errorf("unbinding frame source: %w", err))
	}
	if err := c.camera.Release(); err != nil {
		errs = append(errs, fmt.Errorf("releasing camera: %w", err))
	}

	var ran time.Duration
	if !c.startedAt.IsZero() {
		ran = c.now().Sub(c.startedAt)
	}
	c.camera = nil
	c.handle = ""
	c.sessionID = ""
	c.startedAt = time.Time{}
	c.setState(model.SessionIdle)

	err := errors.Join(errs...)
	if err != nil {
		c.logger.Warn("session: teardown errors", "session", id, "err", err)
	}
	c.logger.Info("session: stopped", "session", id, "duration", ran)
	c.publish(ctx, events.TopicSessionStopped, events.SessionStopped{SessionID: id, Duration: ran.String()})
	return err
}

// SetTorch records the user's torch intent. The hardware follows only while
// active and only if the camera has a flash unit; otherwise the intent waits
// for the next Start.
func (c *Controller) SetTorch(ctx context.Context, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setTorchLocked(ctx, enabled)
}

// ToggleTorch flips the torch intent and returns the new value.
func (c *Controller) ToggleTorch(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	enabled := !c.intent.UserRequested
	return enabled, c.setTorchLocked(ctx, enabled)
}

func (c *Controller) setTorchLocked(ctx context.Context, enabled bool) error {
	c.intent.UserRequested = enabled

	applied := false
	if c.state == model.SessionActive && c.camera.HasFlashUnit() {
		if err := c.camera.EnableTorch(enabled); err != nil {
			c.snapshot()
			return fmt.Errorf("setting torch: %w", err)
		}
		c.torchOn = enabled
		applied = true
	}
	c.snapshot()

	c.logger.Debug("session: torch intent", "enabled", enabled, "applied", applied)
	c.publish(ctx, events.TopicTorchChanged, events.TorchChanged{
		SessionID:     c.sessionID,
		UserRequested: enabled,
		Applied:       applied,
		TorchOn:       c.torchOn,
	})
	return nil
}

// FocusAt requests autofocus at a point in preview coordinates. It does
// nothing unless a session is active.
func (c *Controller) FocusAt(ctx context.Context, x, y float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != model.SessionActive {
		return nil
	}
	p := c.camera.MeteringPointFrom(x, y)
	c.logger.Info("session: focus requested", "x", x, "y", y, "point_x", p.X, "point_y", p.Y)
	if err := c.camera.StartFocusAndMetering(ctx, p, FocusAutoCancel); err != nil {
		return fmt.Errorf("starting focus: %w", err)
	}
	c.publish(ctx, events.TopicFocusRequested, events.FocusRequested{
		SessionID:  c.sessionID,
		X:          x,
		Y:          y,
		AutoCancel: FocusAutoCancel.String(),
	})
	return nil
}

// State returns the current state without waiting for a transition.
func (c *Controller) State() model.SessionState {
	return c.status.Load().State
}

// Status returns a snapshot without waiting for a transition.
func (c *Controller) Status() Status {
	s := *c.status.Load()
	s.GateBusy = c.cfg.Gate.Busy()
	return s
}

// TorchIntent returns the recorded intent.
func (c *Controller) TorchIntent() model.TorchIntent {
	return model.TorchIntent{UserRequested: c.status.Load().TorchRequested}
}

// Close stops any session, forgets the torch intent and the last scanned
// value, and shuts the gate down, waiting for an in-flight decode. Start
// fails afterwards.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	err := c.stopLocked(ctx)
	c.closed = true
	c.intent = model.TorchIntent{}
	if c.cfg.Dedup != nil {
		c.cfg.Dedup.Reset()
	}
	c.cfg.Gate.Shutdown()
	c.snapshot()
	return err
}

func (c *Controller) setState(s model.SessionState) {
	c.state = s
	c.snapshot()
	if c.cfg.OnStateChange != nil {
		c.cfg.OnStateChange(s)
	}
}

// snapshot publishes the locked fields for lock-free readers.
func (c *Controller) snapshot() {
	s := &Status{
		State:          c.state,
		SessionID:      c.sessionID,
		StartedAt:      c.startedAt,
		TorchRequested: c.intent.UserRequested,
		TorchOn:        c.torchOn,
	}
	if c.camera != nil {
		s.HasFlash = c.camera.HasFlashUnit()
	}
	c.status.Store(s)
}

func (c *Controller) publish(ctx context.Context, topic string, event any) {
	if err := c.pub.Publish(ctx, topic, event); err != nil {
		c.logger.Warn("session: publish failed", "topic", topic, "err", err)
	}
}

package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alfredjeanlab/scanline/internal/debounce"
	"github.com/alfredjeanlab/scanline/internal/events"
	"github.com/alfredjeanlab/scanline/internal/feedback"
	"github.com/alfredjeanlab/scanline/internal/gate"
	"github.com/alfredjeanlab/scanline/internal/model"
	"github.com/alfredjeanlab/scanline/internal/pipeline"
)

// callLog records collaborator calls in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	l.mu.Lock()
	l.calls = append(l.calls, s)
	l.mu.Unlock()
}

func (l *callLog) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.calls, ",")
}

func (l *callLog) count(s string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.calls {
		if c == s {
			n++
		}
	}
	return n
}

type fakeCamera struct {
	log        *callLog
	flash      bool
	torchErr   error
	releaseErr error
	focusPoint model.MeteringPoint
	focusFor   time.Duration
}

func (c *fakeCamera) HasFlashUnit() bool { return c.flash }

func (c *fakeCamera) EnableTorch(on bool) error {
	if on {
		c.log.add("torch:on")
	} else {
		c.log.add("torch:off")
	}
	return c.torchErr
}

func (c *fakeCamera) MeteringPointFrom(x, y float64) model.MeteringPoint {
	return model.MeteringPoint{X: x / 100, Y: y / 100}
}

func (c *fakeCamera) StartFocusAndMetering(_ context.Context, p model.MeteringPoint, d time.Duration) error {
	c.log.add("focus")
	c.focusPoint, c.focusFor = p, d
	return nil
}

func (c *fakeCamera) Release() error {
	c.log.add("release")
	return c.releaseErr
}

type fakeProvider struct {
	log    *callLog
	camera *fakeCamera
	err    error
}

func (p *fakeProvider) Acquire(context.Context) (Camera, error) {
	p.log.add("acquire")
	if p.err != nil {
		return nil, p.err
	}
	return p.camera, nil
}

type fakeSource struct {
	log       *callLog
	bindErr   error
	unbindErr error
	sink      FrameSink
}

func (s *fakeSource) Bind(sink FrameSink) (Handle, error) {
	s.log.add("bind")
	if s.bindErr != nil {
		return "", s.bindErr
	}
	s.sink = sink
	return "fs-test", nil
}

func (s *fakeSource) Unbind(h Handle) error {
	s.log.add("unbind:" + string(h))
	s.sink = nil
	return s.unbindErr
}

type fakeGate struct {
	log  *callLog
	open bool
}

func (g *fakeGate) OnFrame(f *model.Frame) { f.Release() }
func (g *fakeGate) Open()                  { g.log.add("gate:open"); g.open = true }
func (g *fakeGate) Close()                 { g.log.add("gate:close"); g.open = false }
func (g *fakeGate) Busy() bool             { return false }
func (g *fakeGate) Shutdown()              { g.log.add("gate:shutdown"); g.open = false }

type fakeFeedback struct {
	log *callLog
}

func (f *fakeFeedback) Resume()  { f.log.add("feedback:resume") }
func (f *fakeFeedback) Suspend() { f.log.add("feedback:suspend") }

type fixture struct {
	log      *callLog
	camera   *fakeCamera
	provider *fakeProvider
	source   *fakeSource
	gate     *fakeGate
	states   []model.SessionState
	ctrl     *Controller
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func newFixture(t *testing.T, flash bool, perm PermissionChecker) *fixture {
	t.Helper()
	log := &callLog{}
	f := &fixture{
		log:    log,
		camera: &fakeCamera{log: log, flash: flash},
		source: &fakeSource{log: log},
		gate:   &fakeGate{log: log},
	}
	f.provider = &fakeProvider{log: log, camera: f.camera}
	f.ctrl = New(Config{
		Permission:    perm,
		Provider:      f.provider,
		Source:        f.source,
		Gate:          f.gate,
		Feedback:      &fakeFeedback{log: log},
		Logger:        quietLogger(),
		OnStateChange: func(s model.SessionState) { f.states = append(f.states, s) },
	})
	return f
}

func TestStart_FromIdle(t *testing.T) {
	f := newFixture(t, true, nil)
	if err := f.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if f.ctrl.State() != model.SessionActive {
		t.Fatalf("state = %s, want active", f.ctrl.State())
	}
	if got, want := f.log.String(), "acquire,gate:open,feedback:resume,bind"; got != want {
		t.Errorf("calls = %s, want %s", got, want)
	}
	if f.source.sink != FrameSink(f.gate) {
		t.Error("source not bound to the gate")
	}
	st := f.ctrl.Status()
	if !strings.HasPrefix(st.SessionID, "ss-") || !st.HasFlash || st.TorchOn || st.StartedAt.IsZero() {
		t.Errorf("status = %+v", st)
	}
	if got := joinStates(f.states); got != "acquiring,active" {
		t.Errorf("transitions = %s", got)
	}
}

func TestStart_Idempotent(t *testing.T) {
	f := newFixture(t, true, nil)
	ctx := context.Background()
	if err := f.ctrl.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := f.ctrl.Start(ctx); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if n := f.log.count("acquire"); n != 1 {
		t.Errorf("acquire called %d times, want 1", n)
	}
}

func TestStart_PermissionDenied(t *testing.T) {
	for _, tc := range []struct {
		name string
		perm PermissionFunc
	}{
		{"Refused", func(context.Context) (bool, error) { return false, nil }},
		{"CheckError", func(context.Context) (bool, error) { return false, errors.New("no prompt available") }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, true, tc.perm)
			err := f.ctrl.Start(context.Background())
			if !errors.Is(err, ErrPermissionDenied) {
				t.Fatalf("err = %v, want ErrPermissionDenied", err)
			}
			if f.ctrl.State() != model.SessionIdle {
				t.Errorf("state = %s, want idle", f.ctrl.State())
			}
			if len(f.states) != 0 {
				t.Errorf("transitions after denial: %v", f.states)
			}
			if f.log.String() != "" {
				t.Errorf("collaborators called: %s", f.log)
			}
		})
	}
}

func TestStart_AcquisitionFailed(t *testing.T) {
	f := newFixture(t, true, nil)
	f.provider.err = errors.New("camera in use")

	err := f.ctrl.Start(context.Background())
	if !errors.Is(err, ErrAcquisitionFailed) {
		t.Fatalf("err = %v, want ErrAcquisitionFailed", err)
	}
	if !strings.Contains(err.Error(), "camera in use") {
		t.Errorf("cause lost: %v", err)
	}
	if f.ctrl.State() != model.SessionIdle {
		t.Errorf("state = %s, want idle", f.ctrl.State())
	}
	if got := joinStates(f.states); got != "acquiring,idle" {
		t.Errorf("transitions = %s", got)
	}
	if f.gate.open {
		t.Error("gate left open")
	}

	// No automatic retry; an explicit Start tries again.
	f.provider.err = nil
	if err := f.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("retry Start: %v", err)
	}
	if f.ctrl.State() != model.SessionActive {
		t.Errorf("state after retry = %s", f.ctrl.State())
	}
}

func TestStart_BindFailureReleasesCamera(t *testing.T) {
	f := newFixture(t, true, nil)
	f.source.bindErr = errors.New("no frames")

	err := f.ctrl.Start(context.Background())
	if !errors.Is(err, ErrAcquisitionFailed) {
		t.Fatalf("err = %v, want ErrAcquisitionFailed", err)
	}
	want := "acquire,gate:open,feedback:resume,bind,gate:close,feedback:suspend,release"
	if got := f.log.String(); got != want {
		t.Errorf("calls = %s, want %s", got, want)
	}
	if f.ctrl.State() != model.SessionIdle {
		t.Errorf("state = %s", f.ctrl.State())
	}
}

func TestSetTorch_DeferredUntilActive(t *testing.T) {
	f := newFixture(t, true, nil)
	ctx := context.Background()

	if err := f.ctrl.SetTorch(ctx, true); err != nil {
		t.Fatalf("SetTorch while idle: %v", err)
	}
	if f.log.count("torch:on") != 0 {
		t.Fatal("hardware touched while idle")
	}
	if !f.ctrl.TorchIntent().UserRequested {
		t.Error("intent not recorded")
	}

	if err := f.ctrl.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if got, want := f.log.String(), "acquire,gate:open,feedback:resume,bind,torch:on"; got != want {
		t.Errorf("calls = %s, want %s", got, want)
	}
	if !f.ctrl.Status().TorchOn {
		t.Error("status does not show the torch on")
	}
}

func TestSetTorch_NoFlashUnit(t *testing.T) {
	f := newFixture(t, false, nil)
	ctx := context.Background()
	if err := f.ctrl.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := f.ctrl.SetTorch(ctx, true); err != nil {
		t.Fatalf("SetTorch without flash: %v", err)
	}
	if n := f.log.count("torch:on"); n != 0 {
		t.Errorf("EnableTorch called %d times on a camera without flash", n)
	}
	if !f.ctrl.TorchIntent().UserRequested {
		t.Error("intent not recorded")
	}
	if f.ctrl.Status().TorchOn {
		t.Error("status claims torch on")
	}
}

func TestSetTorch_AppliesWhileActive(t *testing.T) {
	f := newFixture(t, true, nil)
	ctx := context.Background()
	if err := f.ctrl.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := f.ctrl.SetTorch(ctx, true); err != nil {
		t.Fatal(err)
	}
	if err := f.ctrl.SetTorch(ctx, false); err != nil {
		t.Fatal(err)
	}
	if f.log.count("torch:on") != 1 || f.log.count("torch:off") != 1 {
		t.Errorf("calls = %s", f.log)
	}
}

func TestSetTorch_HardwareError(t *testing.T) {
	f := newFixture(t, true, nil)
	ctx := context.Background()
	if err := f.ctrl.Start(ctx); err != nil {
		t.Fatal(err)
	}
	f.camera.torchErr = errors.New("overheated")
	if err := f.ctrl.SetTorch(ctx, true); err == nil {
		t.Fatal("expected hardware error")
	}
	if !f.ctrl.TorchIntent().UserRequested {
		t.Error("intent should be recorded even when hardware fails")
	}
	if f.ctrl.Status().TorchOn {
		t.Error("status claims torch on after failure")
	}
}

func TestToggleTorch(t *testing.T) {
	f := newFixture(t, true, nil)
	ctx := context.Background()
	if err := f.ctrl.Start(ctx); err != nil {
		t.Fatal(err)
	}
	on, err := f.ctrl.ToggleTorch(ctx)
	if err != nil || !on {
		t.Fatalf("first toggle = %v, %v", on, err)
	}
	on, err = f.ctrl.ToggleTorch(ctx)
	if err != nil || on {
		t.Fatalf("second toggle = %v, %v", on, err)
	}
	if got := f.log.String(); !strings.HasSuffix(got, "torch:on,torch:off") {
		t.Errorf("calls = %s", got)
	}
}

func TestStopStart_ReappliesTorch(t *testing.T) {
	f := newFixture(t, true, nil)
	ctx := context.Background()
	if err := f.ctrl.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := f.ctrl.SetTorch(ctx, true); err != nil {
		t.Fatal(err)
	}
	if err := f.ctrl.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if !f.ctrl.TorchIntent().UserRequested {
		t.Error("Stop cleared the torch intent")
	}
	if err := f.ctrl.Start(ctx); err != nil {
		t.Fatal(err)
	}

	if f.ctrl.State() != model.SessionActive {
		t.Fatalf("state = %s", f.ctrl.State())
	}
	if n := f.log.count("torch:on"); n != 2 {
		t.Errorf("torch:on count = %d, want 2 (%s)", n, f.log)
	}
	if !f.ctrl.Status().TorchOn {
		t.Error("torch not back on after restart")
	}
}

func TestStop_TeardownOrder(t *testing.T) {
	f := newFixture(t, true, nil)
	ctx := context.Background()
	if err := f.ctrl.SetTorch(ctx, true); err != nil {
		t.Fatal(err)
	}
	if err := f.ctrl.Start(ctx); err != nil {
		t.Fatal(err)
	}
	f.log = &callLog{}
	f.camera.log, f.source.log, f.gate.log = f.log, f.log, f.log
	f.ctrl.cfg.Feedback = &fakeFeedback{log: f.log}
	f.states = nil

	if err := f.ctrl.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	want := "torch:off,gate:close,feedback:suspend,unbind:fs-test,release"
	if got := f.log.String(); got != want {
		t.Errorf("calls = %s, want %s", got, want)
	}
	if got := joinStates(f.states); got != "stopping,idle" {
		t.Errorf("transitions = %s", got)
	}
	st := f.ctrl.Status()
	if st.State != model.SessionIdle || st.SessionID != "" || st.TorchOn || !st.TorchRequested {
		t.Errorf("status after stop = %+v", st)
	}
}

func TestStop_IdleIsNoop(t *testing.T) {
	f := newFixture(t, true, nil)
	if err := f.ctrl.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.log.String() != "" || len(f.states) != 0 {
		t.Errorf("idle stop touched collaborators: %s %v", f.log, f.states)
	}
}

func TestStop_JoinsErrorsAndEndsIdle(t *testing.T) {
	f := newFixture(t, true, nil)
	ctx := context.Background()
	if err := f.ctrl.Start(ctx); err != nil {
		t.Fatal(err)
	}
	f.source.unbindErr = errors.New("source stuck")
	f.camera.releaseErr = errors.New("driver busy")

	err := f.ctrl.Stop(ctx)
	if err == nil {
		t.Fatal("expected teardown error")
	}
	for _, want := range []string{"source stuck", "driver busy"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
	if f.ctrl.State() != model.SessionIdle {
		t.Errorf("state = %s, want idle", f.ctrl.State())
	}
}

func TestFocusAt(t *testing.T) {
	f := newFixture(t, true, nil)
	ctx := context.Background()

	if err := f.ctrl.FocusAt(ctx, 50, 25); err != nil {
		t.Fatalf("FocusAt while idle: %v", err)
	}
	if f.log.count("focus") != 0 {
		t.Fatal("focus requested while idle")
	}

	if err := f.ctrl.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := f.ctrl.FocusAt(ctx, 50, 25); err != nil {
		t.Fatal(err)
	}
	if f.camera.focusPoint != (model.MeteringPoint{X: 0.5, Y: 0.25}) {
		t.Errorf("metering point = %+v", f.camera.focusPoint)
	}
	if f.camera.focusFor != 3*time.Second {
		t.Errorf("auto-cancel = %v, want 3s", f.camera.focusFor)
	}
}

type resetCounter struct{ n int }

func (r *resetCounter) Reset() { r.n++ }

func TestClose(t *testing.T) {
	f := newFixture(t, true, nil)
	dedup := &resetCounter{}
	f.ctrl.cfg.Dedup = dedup
	ctx := context.Background()

	if err := f.ctrl.SetTorch(ctx, true); err != nil {
		t.Fatal(err)
	}
	if err := f.ctrl.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := f.ctrl.Close(ctx); err != nil {
		t.Fatal(err)
	}

	if f.ctrl.State() != model.SessionIdle {
		t.Errorf("state = %s", f.ctrl.State())
	}
	if f.ctrl.TorchIntent().UserRequested {
		t.Error("Close kept the torch intent")
	}
	if dedup.n != 1 {
		t.Errorf("dedup reset %d times, want 1", dedup.n)
	}
	if f.log.count("gate:shutdown") != 1 {
		t.Error("gate not shut down")
	}
	if err := f.ctrl.Start(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Start after Close = %v, want ErrClosed", err)
	}
	if err := f.ctrl.Close(ctx); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

func TestState_ReadableDuringAcquisition(t *testing.T) {
	log := &callLog{}
	entered := make(chan struct{})
	proceed := make(chan struct{})
	cam := &fakeCamera{log: log, flash: true}
	ctrl := New(Config{
		Provider: providerFunc(func(ctx context.Context) (Camera, error) {
			close(entered)
			<-proceed
			return cam, nil
		}),
		Source: &fakeSource{log: log},
		Gate:   &fakeGate{log: log},
		Logger: quietLogger(),
	})

	done := make(chan error, 1)
	go func() { done <- ctrl.Start(context.Background()) }()
	<-entered

	if s := ctrl.State(); s != model.SessionAcquiring {
		t.Errorf("state during acquisition = %s, want acquiring", s)
	}
	close(proceed)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if ctrl.State() != model.SessionActive {
		t.Errorf("state = %s", ctrl.State())
	}
}

type providerFunc func(ctx context.Context) (Camera, error)

func (f providerFunc) Acquire(ctx context.Context) (Camera, error) { return f(ctx) }

// holdDecoder blocks each decode until release is closed.
type holdDecoder struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (d *holdDecoder) Decode(ctx context.Context, _ image.Image, _ int) ([]model.DetectedCode, error) {
	d.once.Do(func() { close(d.started) })
	<-d.release
	return []model.DetectedCode{{RawValue: "late", Format: model.FormatQRCode}}, nil
}

type recordingDisplay struct {
	mu      sync.Mutex
	results []string
}

func (d *recordingDisplay) SetResult(v string) error {
	d.mu.Lock()
	d.results = append(d.results, v)
	d.mu.Unlock()
	return nil
}

func (d *recordingDisplay) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.results)
}

func TestStop_SuppressesInFlightDecode(t *testing.T) {
	log := &callLog{}
	disp := &recordingDisplay{}
	dispatcher := feedback.NewDispatcher(feedback.Sinks{Display: disp}, quietLogger())
	handler := pipeline.New(pipeline.Config{Dedup: debounce.New(), Reporter: dispatcher, Logger: quietLogger()})
	dec := &holdDecoder{started: make(chan struct{}), release: make(chan struct{})}
	g := gate.New(dec, handler, gate.WithLogger(quietLogger()))
	src := &fakeSource{log: log}

	ctrl := New(Config{
		Provider: &fakeProvider{log: log, camera: &fakeCamera{log: log}},
		Source:   src,
		Gate:     g,
		Feedback: dispatcher,
		Logger:   quietLogger(),
	})
	ctx := context.Background()
	if err := ctrl.Start(ctx); err != nil {
		t.Fatal(err)
	}

	frame := model.NewFrame(1, image.NewGray(image.Rect(0, 0, 1, 1)), 0, time.Now(), nil)
	src.sink.OnFrame(frame)
	<-dec.started

	if err := ctrl.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	close(dec.release)
	g.Wait()

	if !frame.Released() {
		t.Error("in-flight frame not released after stop")
	}
	if n := disp.count(); n != 0 {
		t.Errorf("display updated %d times after stop", n)
	}
	if g.Busy() {
		t.Error("gate busy after late completion")
	}
}

func joinStates(states []model.SessionState) string {
	parts := make([]string, len(states))
	for i, s := range states {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}

// orderedFeedback logs lifecycle calls before delegating to a real dispatcher.
type orderedFeedback struct {
	log  *callLog
	next *feedback.Dispatcher
}

func (f *orderedFeedback) Resume()  { f.log.add("feedback:resume"); f.next.Resume() }
func (f *orderedFeedback) Suspend() { f.log.add("feedback:suspend"); f.next.Suspend() }

type loggingDisplay struct{ log *callLog }

func (d *loggingDisplay) SetResult(v string) error { d.log.add("display:" + v); return nil }

func TestStopStart_OutcomeInHandlerStaysInOldSession(t *testing.T) {
	log := &callLog{}
	dispatcher := feedback.NewDispatcher(feedback.Sinks{Display: &loggingDisplay{log: log}}, quietLogger())
	fb := &orderedFeedback{log: log, next: dispatcher}
	inner := pipeline.New(pipeline.Config{Dedup: debounce.New(), Reporter: dispatcher, Logger: quietLogger()})

	entered := make(chan struct{})
	proceed := make(chan struct{})
	var once sync.Once
	handler := gate.HandlerFunc(func(ctx context.Context, o gate.Outcome) {
		first := false
		once.Do(func() { first = true })
		if first {
			close(entered)
			<-proceed
		}
		inner.HandleOutcome(ctx, o)
	})

	dec := &holdDecoder{started: make(chan struct{}), release: make(chan struct{})}
	close(dec.release)
	g := gate.New(dec, handler, gate.WithLogger(quietLogger()))
	src := &fakeSource{log: &callLog{}}
	ctrl := New(Config{
		Provider: &fakeProvider{log: &callLog{}, camera: &fakeCamera{log: &callLog{}}},
		Source:   src,
		Gate:     g,
		Feedback: fb,
		Logger:   quietLogger(),
	})
	ctx := context.Background()
	if err := ctrl.Start(ctx); err != nil {
		t.Fatal(err)
	}

	src.sink.OnFrame(model.NewFrame(1, image.NewGray(image.Rect(0, 0, 1, 1)), 0, time.Now(), nil))
	<-entered

	restarted := make(chan error, 1)
	go func() {
		if err := ctrl.Stop(ctx); err != nil {
			restarted <- err
			return
		}
		restarted <- ctrl.Start(ctx)
	}()

	select {
	case err := <-restarted:
		t.Fatalf("stop and start finished while an outcome was being handled: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(proceed)
	if err := <-restarted; err != nil {
		t.Fatal(err)
	}
	g.Wait()

	want := "feedback:resume,display:late,feedback:suspend,feedback:resume"
	if got := log.String(); got != want {
		t.Errorf("calls = %s, want %s", got, want)
	}
	if err := ctrl.Close(ctx); err != nil {
		t.Fatal(err)
	}
}

type topicRecorder struct {
	mu     sync.Mutex
	topics []string
	events []any
}

func (r *topicRecorder) Publish(_ context.Context, topic string, event any) error {
	r.mu.Lock()
	r.topics = append(r.topics, topic)
	r.events = append(r.events, event)
	r.mu.Unlock()
	return nil
}

func (r *topicRecorder) Close() error { return nil }

func TestStart_IDFailurePublishesAcquireFailed(t *testing.T) {
	log := &callLog{}
	pub := &topicRecorder{}
	ctrl := New(Config{
		Provider:  &fakeProvider{log: log, camera: &fakeCamera{log: log}},
		Source:    &fakeSource{log: log},
		Gate:      &fakeGate{log: log},
		Publisher: pub,
		Logger:    quietLogger(),
		NewID:     func() (string, error) { return "", errors.New("entropy exhausted") },
	})

	err := ctrl.Start(context.Background())
	if !errors.Is(err, ErrAcquisitionFailed) {
		t.Fatalf("err = %v, want ErrAcquisitionFailed", err)
	}
	if ctrl.State() != model.SessionIdle {
		t.Errorf("state = %s, want idle", ctrl.State())
	}
	if log.String() != "" {
		t.Errorf("collaborators called: %s", log)
	}
	if len(pub.topics) != 1 || pub.topics[0] != events.TopicSessionAcquireFailed {
		t.Fatalf("topics = %v, want [%s]", pub.topics, events.TopicSessionAcquireFailed)
	}
	ev, ok := pub.events[0].(events.SessionAcquireFailed)
	if !ok || !strings.Contains(ev.Reason, "entropy exhausted") {
		t.Errorf("event = %#v", pub.events[0])
	}
}

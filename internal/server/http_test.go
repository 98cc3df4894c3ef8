package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/alfredjeanlab/scanline/internal/model"
	"github.com/alfredjeanlab/scanline/internal/session"
	"github.com/alfredjeanlab/scanline/internal/stats"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeController records calls and returns configured errors.
type fakeController struct {
	mu       sync.Mutex
	calls    []string
	startErr error
	stopErr  error
	torchErr error
	focusErr error
	status   session.Status
	focusX   float64
	focusY   float64
}

func (c *fakeController) record(call string) {
	c.mu.Lock()
	c.calls = append(c.calls, call)
	c.mu.Unlock()
}

func (c *fakeController) Start(context.Context) error {
	c.record("start")
	if c.startErr == nil {
		c.status.State = model.SessionActive
	}
	return c.startErr
}

func (c *fakeController) Stop(context.Context) error {
	c.record("stop")
	c.status.State = model.SessionIdle
	return c.stopErr
}

func (c *fakeController) SetTorch(_ context.Context, enabled bool) error {
	c.record(fmt.Sprintf("torch:%v", enabled))
	c.status.TorchRequested = enabled
	if c.torchErr != nil {
		return c.torchErr
	}
	c.status.TorchOn = enabled && c.status.State == model.SessionActive
	return nil
}

func (c *fakeController) ToggleTorch(ctx context.Context) (bool, error) {
	enabled := !c.status.TorchRequested
	return enabled, c.SetTorch(ctx, enabled)
}

func (c *fakeController) FocusAt(_ context.Context, x, y float64) error {
	c.record("focus")
	c.focusX, c.focusY = x, y
	return c.focusErr
}

func (c *fakeController) Status() session.Status {
	return c.status
}

type fakeStats struct{ snap stats.Snapshot }

func (f fakeStats) Snapshot() stats.Snapshot { return f.snap }

func newTestServer(ctrl *fakeController) (*Server, http.Handler) {
	srv := New(ctrl, fakeStats{snap: stats.Snapshot{FramesDelivered: 12, ScansAccepted: 3}}, nil, quietLogger())
	return srv, srv.NewHTTPHandler("")
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHandleStart(t *testing.T) {
	ctrl := &fakeController{}
	_, h := newTestServer(ctrl)

	rec := doRequest(t, h, "POST", "/v1/session/start", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	st := decodeJSON[session.Status](t, rec)
	if st.State != model.SessionActive {
		t.Errorf("state = %q, want active", st.State)
	}
}

func TestHandleStart_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"permission", session.ErrPermissionDenied, http.StatusForbidden},
		{"wrapped permission", fmt.Errorf("%w: prompt dismissed", session.ErrPermissionDenied), http.StatusForbidden},
		{"acquisition", fmt.Errorf("%w: device busy", session.ErrAcquisitionFailed), http.StatusServiceUnavailable},
		{"closed", session.ErrClosed, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, h := newTestServer(&fakeController{startErr: tt.err})
			rec := doRequest(t, h, "POST", "/v1/session/start", "")
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			body := decodeJSON[map[string]string](t, rec)
			if body["error"] != tt.err.Error() {
				t.Errorf("error = %q, want %q", body["error"], tt.err.Error())
			}
		})
	}
}

func TestHandleStop(t *testing.T) {
	ctrl := &fakeController{status: session.Status{State: model.SessionActive}}
	_, h := newTestServer(ctrl)

	rec := doRequest(t, h, "POST", "/v1/session/stop", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if st := decodeJSON[session.Status](t, rec); st.State != model.SessionIdle {
		t.Errorf("state = %q, want idle", st.State)
	}

	ctrl.stopErr = errors.New("release failed")
	rec = doRequest(t, h, "POST", "/v1/session/stop", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestHandleSetTorch(t *testing.T) {
	ctrl := &fakeController{status: session.Status{State: model.SessionActive}}
	_, h := newTestServer(ctrl)

	rec := doRequest(t, h, "PUT", "/v1/torch", `{"enabled":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeJSON[TorchResponse](t, rec)
	if !resp.Enabled || !resp.TorchOn {
		t.Errorf("response = %+v, want enabled and on", resp)
	}
}

func TestHandleSetTorch_BadRequests(t *testing.T) {
	tests := []struct {
		name, body string
	}{
		{"missing enabled", `{}`},
		{"not json", `on please`},
		{"empty", ``},
		{"too large", `{"enabled":true,"pad":"` + strings.Repeat("x", maxBodyBytes) + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &fakeController{}
			_, h := newTestServer(ctrl)
			rec := doRequest(t, h, "PUT", "/v1/torch", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if len(ctrl.calls) != 0 {
				t.Errorf("controller called: %v", ctrl.calls)
			}
		})
	}
}

func TestHandleToggleTorch(t *testing.T) {
	ctrl := &fakeController{}
	_, h := newTestServer(ctrl)

	rec := doRequest(t, h, "POST", "/v1/torch/toggle", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeJSON[TorchResponse](t, rec)
	if !resp.Enabled || resp.TorchOn {
		t.Errorf("idle toggle = %+v, want intent recorded with torch off", resp)
	}

	rec = doRequest(t, h, "POST", "/v1/torch/toggle", "")
	if resp := decodeJSON[TorchResponse](t, rec); resp.Enabled {
		t.Errorf("second toggle = %+v, want disabled", resp)
	}
}

func TestHandleToggleTorch_Error(t *testing.T) {
	_, h := newTestServer(&fakeController{torchErr: errors.New("torch stuck")})
	rec := doRequest(t, h, "POST", "/v1/torch/toggle", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestHandleFocus(t *testing.T) {
	ctrl := &fakeController{}
	_, h := newTestServer(ctrl)

	rec := doRequest(t, h, "POST", "/v1/focus", `{"x":120.5,"y":40}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ctrl.focusX != 120.5 || ctrl.focusY != 40 {
		t.Errorf("focus at (%v, %v)", ctrl.focusX, ctrl.focusY)
	}

	rec = doRequest(t, h, "POST", "/v1/focus", `{"x":1}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing y: status = %d, want 400", rec.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	ctrl := &fakeController{status: session.Status{State: model.SessionActive, SessionID: "ss-abc", HasFlash: true}}
	_, h := newTestServer(ctrl)

	rec := doRequest(t, h, "GET", "/v1/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	st := decodeJSON[session.Status](t, rec)
	if st.SessionID != "ss-abc" || !st.HasFlash {
		t.Errorf("status = %+v", st)
	}
}

func TestHandleStats(t *testing.T) {
	_, h := newTestServer(&fakeController{})
	rec := doRequest(t, h, "GET", "/v1/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	snap := decodeJSON[stats.Snapshot](t, rec)
	if snap.FramesDelivered != 12 || snap.ScansAccepted != 3 {
		t.Errorf("snapshot = %+v", snap)
	}

	srv := New(&fakeController{}, nil, nil, quietLogger())
	rec = doRequest(t, srv.NewHTTPHandler(""), "GET", "/v1/stats", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("no stats source: status = %d, want 404", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	_, h := newTestServer(&fakeController{status: session.Status{State: model.SessionIdle}})
	rec := doRequest(t, h, "GET", "/v1/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeJSON[map[string]string](t, rec)
	if body["status"] != "ok" || body["state"] != "idle" {
		t.Errorf("health = %v", body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, h := newTestServer(&fakeController{})
	rec := doRequest(t, h, "GET", "/v1/session/start", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

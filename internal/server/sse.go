package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alfredjeanlab/scanline/internal/events"
)

const (
	// replayDepth bounds how far back a reconnecting viewer can resume. At the
	// default stats interval this is hours of session history, but a burst of
	// decode failures can push older entries out quickly.
	replayDepth = 1000

	keepaliveEvery = 15 * time.Second

	// streamBuffer is how many diagnostics a viewer may lag behind before
	// newer ones are skipped for it.
	streamBuffer = 64
)

// diagnostic is one published scanner event as a viewer sees it.
type diagnostic struct {
	Seq     uint64
	Topic   string
	Payload []byte
}

// replayLog keeps the last replayDepth diagnostics in publication order.
type replayLog struct {
	mu      sync.RWMutex
	entries []diagnostic
	head    int // oldest entry once the log is full
}

func (l *replayLog) add(d diagnostic) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) < replayDepth {
		l.entries = append(l.entries, d)
		return
	}
	l.entries[l.head] = d
	l.head = (l.head + 1) % replayDepth
}

// after returns the retained diagnostics with Seq > seq, oldest first.
func (l *replayLog) after(seq uint64) []*diagnostic {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []*diagnostic
	n := len(l.entries)
	for i := range n {
		d := l.entries[(l.head+i)%n]
		if d.Seq > seq {
			out = append(out, &d)
		}
	}
	return out
}

// EventHub serves session, torch, scan and stats diagnostics to dashboards
// over SSE. The pipeline publishes into it next to NATS; viewers that
// reconnect with Last-Event-ID are replayed what they missed.
type EventHub struct {
	seq    atomic.Uint64
	replay replayLog

	mu      sync.RWMutex
	streams map[*stream]struct{}

	done      chan struct{}
	closeOnce sync.Once
}

var _ events.Publisher = (*EventHub)(nil)

// stream is one connected viewer.
type stream struct {
	filters []string // topic patterns; none means every topic
	out     chan *diagnostic
	skipped atomic.Uint64
}

func (s *stream) wants(topic string) bool {
	if len(s.filters) == 0 {
		return true
	}
	for _, p := range s.filters {
		if events.MatchTopic(p, topic) {
			return true
		}
	}
	return false
}

func NewEventHub() *EventHub {
	return &EventHub{
		streams: make(map[*stream]struct{}),
		done:    make(chan struct{}),
	}
}

// Publish encodes event as JSON and hands it to every interested viewer.
func (h *EventHub) Publish(_ context.Context, topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling %s event: %w", topic, err)
	}
	h.deliver(topic, payload)
	return nil
}

// Close ends every open stream. Later publishes are still retained for replay.
func (h *EventHub) Close() error {
	h.closeOnce.Do(func() { close(h.done) })
	return nil
}

// deliver never blocks the pipeline: a viewer whose buffer is full skips
// the diagnostic and can recover it through replay.
func (h *EventHub) deliver(topic string, payload []byte) {
	d := diagnostic{Seq: h.seq.Add(1), Topic: topic, Payload: payload}
	h.replay.add(d)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.streams {
		if !s.wants(topic) {
			continue
		}
		select {
		case s.out <- &d:
		default:
			s.skipped.Add(1)
		}
	}
}

func (h *EventHub) attach(filters []string) *stream {
	s := &stream{filters: filters, out: make(chan *diagnostic, streamBuffer)}
	h.mu.Lock()
	h.streams[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *EventHub) detach(s *stream) {
	h.mu.Lock()
	delete(h.streams, s)
	h.mu.Unlock()
}

// Clients returns the number of connected viewers.
func (h *EventHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.streams)
}

func (h *EventHub) replayAfter(seq uint64) []*diagnostic {
	return h.replay.after(seq)
}

// parseTopicFilters splits ?topics=scan.session.*,scan.torch.changed.
func parseTopicFilters(q string) []string {
	var filters []string
	for _, f := range strings.Split(q, ",") {
		if f = strings.TrimSpace(f); f != "" {
			filters = append(filters, f)
		}
	}
	return filters
}

// handleEventStream serves GET /v1/events/stream.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	viewer := s.hub.attach(parseTopicFilters(r.URL.Query().Get("topics")))
	defer func() {
		s.hub.detach(viewer)
		if n := viewer.skipped.Load(); n > 0 {
			s.logger.Debug("sse: viewer skipped diagnostics", "count", n)
		}
	}()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// A malformed Last-Event-ID is treated as a fresh connection.
	if last, err := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64); err == nil {
		for _, d := range s.hub.replayAfter(last) {
			if viewer.wants(d.Topic) {
				writeDiagnostic(w, d)
			}
		}
		flusher.Flush()
	}

	keepalive := time.NewTicker(keepaliveEvery)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.hub.done:
			return
		case d := <-viewer.out:
			writeDiagnostic(w, d)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeDiagnostic(w http.ResponseWriter, d *diagnostic) {
	fmt.Fprintf(w, "id:%d\nevent:%s\ndata:%s\n\n", d.Seq, d.Topic, d.Payload)
}

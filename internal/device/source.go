package device

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"

	"github.com/alfredjeanlab/scanline/internal/idgen"
	"github.com/alfredjeanlab/scanline/internal/model"
	"github.com/alfredjeanlab/scanline/internal/session"
)

var (
	ErrNoFrames      = errors.New("no frame images found")
	ErrAlreadyBound  = errors.New("frame source already bound")
	ErrUnknownHandle = errors.New("unknown frame source handle")
)

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true, ".tif": true, ".tiff": true,
}

// DirSourceConfig configures a DirSource.
type DirSourceConfig struct {
	Dir      string
	Interval time.Duration // capture period; default 100ms
	Rotation int           // clockwise correction stamped on every frame
	// MaxWidth and MaxHeight bound the preview; larger images are scaled down.
	MaxWidth  int
	MaxHeight int
	Logger    *slog.Logger
}

// DirSourceStats counts capture-side activity.
type DirSourceStats struct {
	Captured   uint64 `json:"captured"`
	Superseded uint64 `json:"superseded"` // replaced by a newer frame before delivery
	Delivered  uint64 `json:"delivered"`
}

// DirSource replays the images in a directory as camera frames. Capture runs
// on a ticker and keeps only the latest undelivered frame; delivery hands one
// frame to the sink and waits for its release before delivering the next.
type DirSource struct {
	cfg    DirSourceConfig
	logger *slog.Logger

	captured   atomic.Uint64
	superseded atomic.Uint64
	delivered  atomic.Uint64

	mu      sync.Mutex
	binding *binding
	seq     uint64
}

type binding struct {
	handle  session.Handle
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mailbox chan *model.Frame
}

// NewDirSource creates an unbound source.
func NewDirSource(cfg DirSourceConfig) *DirSource {
	if cfg.Interval <= 0 {
		cfg.Interval = 100 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &DirSource{cfg: cfg, logger: cfg.Logger}
}

// Bind loads the frame images and starts delivering to sink.
func (s *DirSource) Bind(sink session.FrameSink) (session.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.binding != nil {
		return "", ErrAlreadyBound
	}

	images, err := s.load()
	if err != nil {
		return "", err
	}
	id, err := idgen.Binding()
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &binding{
		handle:  session.Handle(id),
		cancel:  cancel,
		mailbox: make(chan *model.Frame, 1),
	}
	b.wg.Add(2)
	go s.capture(ctx, b, images)
	go s.deliver(ctx, b, sink)
	s.binding = b

	s.logger.Info("device: frame source bound", "handle", id, "dir", s.cfg.Dir, "images", len(images), "interval", s.cfg.Interval)
	return b.handle, nil
}

// Unbind stops capture and delivery and releases any pending frame. A frame
// already handed to the sink stays the sink's to release.
func (s *DirSource) Unbind(h session.Handle) error {
	s.mu.Lock()
	b := s.binding
	if b == nil || b.handle != h {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	s.binding = nil
	s.mu.Unlock()

	b.cancel()
	b.wg.Wait()
	select {
	case f := <-b.mailbox:
		s.release(f)
	default:
	}
	s.logger.Info("device: frame source unbound", "handle", h)
	return nil
}

// Bound reports whether a sink is bound.
func (s *DirSource) Bound() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.binding != nil
}

// Stats returns capture counters.
func (s *DirSource) Stats() DirSourceStats {
	return DirSourceStats{
		Captured:   s.captured.Load(),
		Superseded: s.superseded.Load(),
		Delivered:  s.delivered.Load(),
	}
}

func (s *DirSource) load() ([]image.Image, error) {
	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("reading frames dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var images []image.Image
	for _, name := range names {
		img, err := imaging.Open(filepath.Join(s.cfg.Dir, name))
		if err != nil {
			s.logger.Warn("device: skipping unreadable frame", "file", name, "err", err)
			continue
		}
		images = append(images, s.fit(img))
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFrames, s.cfg.Dir)
	}
	return images, nil
}

// fit scales img down to the preview bounds, keeping its aspect ratio.
func (s *DirSource) fit(img image.Image) image.Image {
	w, h := s.cfg.MaxWidth, s.cfg.MaxHeight
	if w <= 0 || h <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= w && b.Dy() <= h {
		return img
	}
	return imaging.Fit(img, w, h, imaging.Lanczos)
}

func (s *DirSource) capture(ctx context.Context, b *binding, images []image.Image) {
	defer b.wg.Done()
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.mu.Lock()
			s.seq++
			seq := s.seq
			s.mu.Unlock()

			f := model.NewFrame(seq, images[i%len(images)], s.cfg.Rotation, now, nil)
			s.captured.Add(1)

			// Keep only the latest: a frame still waiting is replaced.
			select {
			case old := <-b.mailbox:
				s.superseded.Add(1)
				s.release(old)
			default:
			}
			b.mailbox <- f
		}
	}
}

func (s *DirSource) deliver(ctx context.Context, b *binding, sink session.FrameSink) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-b.mailbox:
			s.delivered.Add(1)
			sink.OnFrame(f)
			select {
			case <-f.Done():
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *DirSource) release(f *model.Frame) {
	if err := f.Release(); err != nil {
		s.logger.Error("device: frame release failed", "seq", f.Seq, "err", err)
	}
}

package model

import (
	"errors"
	"image"
	"sync"
	"time"
)

// ErrFrameReleased is returned by Frame.Release when the frame was already released.
var ErrFrameReleased = errors.New("frame already released")

// Frame is one captured image plus its rotation metadata. Whoever holds a
// frame owns it until Release is called, and Release must be called exactly
// once whether the frame was decoded, skipped, or errored.
type Frame struct {
	Seq        uint64
	Image      image.Image // nil when the source produced no payload
	Rotation   int         // degrees clockwise needed to make the image upright
	CapturedAt time.Time

	once      sync.Once
	done      chan struct{}
	onRelease func(*Frame)
}

// NewFrame creates a frame. onRelease, if non-nil, runs once when the frame
// is released; sources use it to learn that the consumer is done.
func NewFrame(seq uint64, img image.Image, rotation int, capturedAt time.Time, onRelease func(*Frame)) *Frame {
	return &Frame{
		Seq:        seq,
		Image:      img,
		Rotation:   rotation,
		CapturedAt: capturedAt,
		done:       make(chan struct{}),
		onRelease:  onRelease,
	}
}

// Release hands the frame back to its source. A second call returns
// ErrFrameReleased and has no other effect.
func (f *Frame) Release() error {
	released := false
	f.once.Do(func() {
		released = true
		close(f.done)
		if f.onRelease != nil {
			f.onRelease(f)
		}
	})
	if !released {
		return ErrFrameReleased
	}
	return nil
}

// Released reports whether Release has been called.
func (f *Frame) Released() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Done returns a channel that is closed when the frame is released.
func (f *Frame) Done() <-chan struct{} {
	return f.done
}

// Package decode recognizes barcodes and QR codes in frame images using
// gozxing readers, one per enabled format.
package decode

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"

	"github.com/alfredjeanlab/scanline/internal/model"
)

// ErrNoImage is returned for a frame without an image payload.
var ErrNoImage = errors.New("decode: no image")

type reader struct {
	format model.Format
	r      gozxing.Reader
}

// Engine decodes one image at a time. It is not safe for concurrent Decode
// calls; the frame gate guarantees there is only ever one.
type Engine struct {
	readers []reader
	hints   map[gozxing.DecodeHintType]interface{}
	now     func() time.Time
}

// NewEngine builds an engine for formats. tryHarder trades speed for
// accuracy on blurry or skewed frames.
func NewEngine(formats []model.Format, tryHarder bool) (*Engine, error) {
	if len(formats) == 0 {
		formats = model.DefaultFormats
	}
	e := &Engine{
		hints: map[gozxing.DecodeHintType]interface{}{},
		now:   time.Now,
	}
	if tryHarder {
		e.hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}
	seen := map[model.Format]bool{}
	for _, f := range formats {
		if seen[f] {
			continue
		}
		seen[f] = true
		switch f {
		case model.FormatQRCode:
			e.readers = append(e.readers, reader{f, qrcode.NewQRCodeReader()})
		case model.FormatCode128:
			e.readers = append(e.readers, reader{f, oned.NewCode128Reader()})
		case model.FormatEAN13:
			e.readers = append(e.readers, reader{f, oned.NewEAN13Reader()})
		default:
			return nil, fmt.Errorf("decode: unsupported format %q", f)
		}
	}
	return e, nil
}

// Formats returns the enabled formats in reader order.
func (e *Engine) Formats() []model.Format {
	out := make([]model.Format, len(e.readers))
	for i, r := range e.readers {
		out[i] = r.format
	}
	return out
}

// Decode rotates img upright (rotation is the clockwise correction in
// degrees) and runs every reader over it. Finding nothing is not an error.
func (e *Engine) Decode(ctx context.Context, img image.Image, rotation int) ([]model.DetectedCode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img == nil {
		return nil, ErrNoImage
	}

	upright, err := Upright(img, rotation)
	if err != nil {
		return nil, err
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(upright)
	if err != nil {
		return nil, fmt.Errorf("decode: binarizing frame: %w", err)
	}

	var codes []model.DetectedCode
	for _, rd := range e.readers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := rd.r.Decode(bmp, e.hints)
		rd.r.Reset()
		if err != nil {
			var notFound gozxing.ReaderException
			if errors.As(err, &notFound) {
				continue
			}
			return nil, fmt.Errorf("decode: %s reader: %w", rd.format, err)
		}
		codes = append(codes, model.DetectedCode{
			RawValue:   res.GetText(),
			Format:     formatOf(res.GetBarcodeFormat(), rd.format),
			DetectedAt: e.now(),
		})
	}
	return codes, nil
}

// Upright applies a clockwise rotation of 0, 90, 180 or 270 degrees.
func Upright(img image.Image, rotation int) (image.Image, error) {
	switch ((rotation % 360) + 360) % 360 {
	case 0:
		return img, nil
	case 90:
		return imaging.Rotate270(img), nil
	case 180:
		return imaging.Rotate180(img), nil
	case 270:
		return imaging.Rotate90(img), nil
	}
	return nil, fmt.Errorf("decode: unsupported rotation %d", rotation)
}

func formatOf(f gozxing.BarcodeFormat, fallback model.Format) model.Format {
	switch f {
	case gozxing.BarcodeFormat_QR_CODE:
		return model.FormatQRCode
	case gozxing.BarcodeFormat_CODE_128:
		return model.FormatCode128
	case gozxing.BarcodeFormat_EAN_13:
		return model.FormatEAN13
	}
	return fallback
}
